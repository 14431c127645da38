package server

import (
	"errors"
	"strings"
	"unicode"

	"socialnet/internal/middleware"
	"socialnet/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten means a helper already sent the response. Handlers
// return nil on it so the error handler does not write a second body.
var errResponseWritten = errors.New("response already written")

var errRedisUnavailable = errors.New("redis unavailable")

const maxPaginationLimit = 100

type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination reads ?limit= and ?offset=. Out-of-range values fall back
// to def and 0; limit is capped at maxPaginationLimit.
func parsePagination(c *fiber.Ctx, def int) Pagination {
	limit := c.QueryInt("limit", def)
	if limit <= 0 {
		limit = def
	}
	return Pagination{
		Limit:  min(limit, maxPaginationLimit),
		Offset: max(c.QueryInt("offset", 0), 0),
	}
}

// parseID reads a positive numeric route param. On failure it writes a 400
// naming the param ("userId" becomes "Invalid user ID") and returns
// errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err == nil && id > 0 {
		return uint(id), nil
	}
	_ = models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewValidationError("Invalid "+humanizeParam(param)))
	return 0, errResponseWritten
}

func humanizeParam(param string) string {
	stem, ok := strings.CutSuffix(param, "Id")
	if param == "id" {
		return "ID"
	}
	if !ok || stem == "" {
		return param
	}
	var b strings.Builder
	for i, r := range stem {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String() + " ID"
}

func currentUserID(c *fiber.Ctx) uint {
	userID, _ := c.Locals("userID").(uint)
	return userID
}

// respondServiceError writes err with the status its code maps to. Causes
// of internal errors are logged, never sent.
func respondServiceError(c *fiber.Ctx, err error) error {
	status := models.StatusForError(err)
	if status != fiber.StatusInternalServerError {
		return models.RespondWithError(c, status, err)
	}

	middleware.Logger.ErrorContext(c.UserContext(), "request failed",
		"method", c.Method(), "path", c.Path(), "error", err)
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		err = models.NewInternalError(err)
	}
	return models.RespondWithError(c, status, err)
}

// parseBody decodes the request body into dst or writes a 400.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}
