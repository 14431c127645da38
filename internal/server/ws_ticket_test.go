package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"socialnet/internal/cache"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueWSTicket(t *testing.T) {
	env := newTestEnv(t)
	alice, token := env.user(t, "alice")

	resp := env.do(t, http.MethodPost, "/api/ws/ticket", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}
	decodeJSON(t, resp, &body)
	require.NotEmpty(t, body.Ticket)
	assert.Equal(t, int(cache.WSTicketTTL.Seconds()), body.ExpiresIn)

	stored, err := env.mr.Get(cache.WSTicketKey(body.Ticket))
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(uint64(alice.ID), 10), stored)
	assert.Equal(t, cache.WSTicketTTL, env.mr.TTL(cache.WSTicketKey(body.Ticket)))
}

func TestWSTicket_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")

	resp := env.do(t, http.MethodPost, "/api/ws/ticket", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Ticket string `json:"ticket"`
	}
	decodeJSON(t, resp, &body)

	// A plain GET authenticates but cannot upgrade.
	resp = env.do(t, http.MethodGet, "/api/ws?ticket="+body.Ticket, "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	assert.False(t, env.mr.Exists(cache.WSTicketKey(body.Ticket)), "ticket is consumed on first use")

	resp = env.do(t, http.MethodGet, "/api/ws?ticket="+body.Ticket, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/ws?ticket=never-issued", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIssueWSTicket_WithoutRedis(t *testing.T) {
	s := &Server{}
	app := fiber.New()
	app.Post("/ticket", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return s.IssueWSTicket(c)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/ticket", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
