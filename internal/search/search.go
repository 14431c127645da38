// Package search indexes posts and users into Meilisearch.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"socialnet/internal/models"
	"socialnet/internal/validation"

	"github.com/meilisearch/meilisearch-go"
)

const (
	postsIndex = "posts"
	usersIndex = "users"

	signingKeyName = "SocialnetTenantTokenSigner"
)

// ErrTokenUnavailable is returned when no signing key could be set up.
var ErrTokenUnavailable = errors.New("search token signing key not initialized")

// Indexer keeps the search engine in step with the database.
type Indexer interface {
	IndexPost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id uint) error
	IndexUser(ctx context.Context, user *models.User) error
	GenerateSearchToken(userID uint) (string, error)
}

type postDoc struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	UserID    uint     `json:"user_id"`
	Username  string   `json:"username"`
	Topics    []string `json:"topics"`
	CreatedAt int64    `json:"created_at"`
}

type userDoc struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Location  string `json:"location"`
}

type meiliIndexer struct {
	client        meilisearch.ServiceManager
	signingKeyUID string
	signingKey    string
}

// NewMeiliIndexer connects to host and prepares indexes and the tenant token key.
// Setup failures are logged; indexing calls then surface their own errors.
func NewMeiliIndexer(host, apiKey string) Indexer {
	return newMeiliIndexer(meilisearch.New(host, meilisearch.WithAPIKey(apiKey)))
}

func newMeiliIndexer(client meilisearch.ServiceManager) *meiliIndexer {
	s := &meiliIndexer{client: client}
	s.initIndexes()
	s.initSigningKey()
	return s
}

func (s *meiliIndexer) initIndexes() {
	filterable := []any{"user_id", "topics"}
	if _, err := s.client.Index(postsIndex).UpdateFilterableAttributes(&filterable); err != nil {
		slog.Default().Warn("meilisearch: update posts filterable attributes", "error", err)
	}
	sortable := []string{"created_at"}
	if _, err := s.client.Index(postsIndex).UpdateSortableAttributes(&sortable); err != nil {
		slog.Default().Warn("meilisearch: update posts sortable attributes", "error", err)
	}
	searchable := []string{"username", "first_name", "last_name"}
	if _, err := s.client.Index(usersIndex).UpdateSearchableAttributes(&searchable); err != nil {
		slog.Default().Warn("meilisearch: update users searchable attributes", "error", err)
	}
}

func (s *meiliIndexer) initSigningKey() {
	resp, err := s.client.GetKeys(&meilisearch.KeysQuery{Limit: 20})
	if err != nil {
		slog.Default().Warn("meilisearch: list keys", "error", err)
		return
	}
	for _, key := range resp.Results {
		if key.Name == signingKeyName {
			s.signingKeyUID = key.UID
			s.signingKey = key.Key
			return
		}
	}

	key, err := s.client.CreateKey(&meilisearch.Key{
		Name:        signingKeyName,
		Description: "Signs tenant tokens for client-side search",
		Actions:     []string{"search"},
		Indexes:     []string{postsIndex, usersIndex},
		ExpiresAt:   time.Now().AddDate(10, 0, 0),
	})
	if err != nil {
		slog.Default().Warn("meilisearch: create signing key", "error", err)
		return
	}
	s.signingKeyUID = key.UID
	s.signingKey = key.Key
}

func (s *meiliIndexer) IndexPost(_ context.Context, post *models.Post) error {
	topics := make([]string, 0, len(post.Topics))
	for _, t := range post.Topics {
		topics = append(topics, t.Name)
	}
	doc := postDoc{
		ID:        strconv.FormatUint(uint64(post.ID), 10),
		Content:   validation.PlainText(post.Content),
		UserID:    post.UserID,
		Username:  post.User.Username,
		Topics:    topics,
		CreatedAt: post.CreatedAt.Unix(),
	}
	if _, err := s.client.Index(postsIndex).AddDocuments([]postDoc{doc}, strPtr("id")); err != nil {
		return fmt.Errorf("index post %d: %w", post.ID, err)
	}
	return nil
}

func (s *meiliIndexer) DeletePost(_ context.Context, id uint) error {
	if _, err := s.client.Index(postsIndex).DeleteDocument(strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("delete post %d from index: %w", id, err)
	}
	return nil
}

func (s *meiliIndexer) IndexUser(_ context.Context, user *models.User) error {
	doc := userDoc{
		ID:        strconv.FormatUint(uint64(user.ID), 10),
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Location:  user.Location,
	}
	if _, err := s.client.Index(usersIndex).AddDocuments([]userDoc{doc}, strPtr("id")); err != nil {
		return fmt.Errorf("index user %d: %w", user.ID, err)
	}
	return nil
}

// GenerateSearchToken issues a 24h tenant token scoped to the posts and users indexes.
func (s *meiliIndexer) GenerateSearchToken(userID uint) (string, error) {
	if s.signingKeyUID == "" || s.signingKey == "" {
		return "", ErrTokenUnavailable
	}
	rules := map[string]any{
		postsIndex: map[string]any{},
		usersIndex: map[string]any{"filter": nil},
	}
	token, err := s.client.GenerateTenantToken(s.signingKeyUID, rules, &meilisearch.TenantTokenOptions{
		APIKey:    s.signingKey,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		return "", fmt.Errorf("tenant token for user %d: %w", userID, err)
	}
	return token, nil
}

func strPtr(s string) *string {
	return &s
}

// Noop is used when no search engine is configured.
type Noop struct{}

func (Noop) IndexPost(context.Context, *models.Post) error { return nil }
func (Noop) DeletePost(context.Context, uint) error        { return nil }
func (Noop) IndexUser(context.Context, *models.User) error { return nil }
func (Noop) GenerateSearchToken(uint) (string, error)      { return "", ErrTokenUnavailable }

// New returns a Meilisearch indexer when host is set, otherwise Noop.
func New(host, apiKey string) Indexer {
	if host == "" {
		return Noop{}
	}
	return NewMeiliIndexer(host, apiKey)
}
