package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"socialnet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMeili answers the handful of endpoints the indexer touches and records document writes.
type fakeMeili struct {
	mu   sync.Mutex
	docs map[string][]map[string]any
}

func (f *fakeMeili) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	task := `{"taskUid":1,"indexUid":"posts","status":"enqueued","type":"documentAdditionOrUpdate","enqueuedAt":"2026-01-01T00:00:00Z"}`

	switch {
	case r.URL.Path == "/keys" && r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `{"results":[],"offset":0,"limit":20,"total":0}`)
	case r.URL.Path == "/keys" && r.Method == http.MethodPost:
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"name":"SocialnetTenantTokenSigner","uid":"6062abda-a5aa-4414-ac91-ecd7944c0f8d","key":"d0552b41536279a0ad88bd595327b96f01176a60c2243e906c52ac02375f9bc4","actions":["search"],"indexes":["posts","users"]}`)
	case strings.HasSuffix(r.URL.Path, "/documents") && r.Method == http.MethodPost:
		var docs []map[string]any
		_ = json.NewDecoder(r.Body).Decode(&docs)
		index := strings.Split(strings.TrimPrefix(r.URL.Path, "/indexes/"), "/")[0]
		f.mu.Lock()
		f.docs[index] = append(f.docs[index], docs...)
		f.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, task)
	default:
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, task)
	}
}

func TestMeiliIndexer_IndexPostSanitizesContent(t *testing.T) {
	fake := &fakeMeili{docs: map[string][]map[string]any{}}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer srv.Close()

	idx := NewMeiliIndexer(srv.URL, "master-key")

	post := &models.Post{
		ID:        42,
		Content:   "<p>Learning</p><p>#golang</p>",
		UserID:    7,
		User:      models.User{Username: "alice"},
		Topics:    []models.Topic{{Name: "golang"}},
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, idx.IndexPost(context.Background(), post))
	require.NoError(t, idx.IndexUser(context.Background(), &models.User{ID: 7, Username: "alice"}))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.docs["posts"], 1)
	doc := fake.docs["posts"][0]
	assert.Equal(t, "42", doc["id"])
	assert.Equal(t, "Learning #golang", doc["content"])
	assert.Equal(t, "alice", doc["username"])
	require.Len(t, fake.docs["users"], 1)
	assert.Equal(t, "alice", fake.docs["users"][0]["username"])
}

func TestNew_WithoutHostIsNoop(t *testing.T) {
	idx := New("", "")
	assert.IsType(t, Noop{}, idx)
	assert.NoError(t, idx.IndexPost(context.Background(), &models.Post{ID: 1}))
	assert.NoError(t, idx.DeletePost(context.Background(), 1))

	_, err := idx.GenerateSearchToken(1)
	assert.ErrorIs(t, err, ErrTokenUnavailable)
}
