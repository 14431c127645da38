package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"socialnet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPost(t *testing.T, env *testEnv, token, content string) models.Post {
	t.Helper()
	resp := env.do(t, http.MethodPost, "/api/posts", token, map[string]string{"content": content})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var post models.Post
	decodeJSON(t, resp, &post)
	return post
}

func TestCreatePost_TopicsAndValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")

	post := createPost(t, env, token, "Shipping #Go today with #golang and #go again")
	names := make([]string, 0, len(post.Topics))
	for _, topic := range post.Topics {
		names = append(names, topic.Name)
	}
	assert.ElementsMatch(t, []string{"go", "golang"}, names)

	resp := env.do(t, http.MethodPost, "/api/posts", token, map[string]string{"content": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/posts", token, map[string]string{
		"content": strings.Repeat("a", models.MaxPostLength+1),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/posts", "", map[string]string{"content": "anonymous"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPostFeed_PublicWithOptionalViewer(t *testing.T) {
	env := newTestEnv(t)
	_, aliceToken := env.user(t, "alice")
	_, bobToken := env.user(t, "bob")

	first := createPost(t, env, aliceToken, "first")
	createPost(t, env, aliceToken, "second")

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", first.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var like models.LikeToggleResult
	decodeJSON(t, resp, &like)
	assert.True(t, like.Liked)
	assert.Equal(t, int64(1), like.LikesCount)

	resp = env.do(t, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var anon []models.Post
	decodeJSON(t, resp, &anon)
	require.Len(t, anon, 2)
	assert.Equal(t, "second", anon[0].Content)
	for _, p := range anon {
		assert.False(t, p.Liked)
	}

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", first.ID), bobToken, nil)
	var viewed models.Post
	decodeJSON(t, resp, &viewed)
	assert.True(t, viewed.Liked)
	assert.Equal(t, 1, viewed.LikesCount)

	// Toggling again removes the like.
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", first.ID), bobToken, nil)
	decodeJSON(t, resp, &like)
	assert.False(t, like.Liked)
	assert.Zero(t, like.LikesCount)

	resp = env.do(t, http.MethodGet, "/api/posts/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateAndDeletePost_Ownership(t *testing.T) {
	env := newTestEnv(t)
	_, aliceToken := env.user(t, "alice")
	_, bobToken := env.user(t, "bob")
	_, adminToken := env.admin(t, "root")

	post := createPost(t, env, aliceToken, "draft #old")

	resp := env.do(t, http.MethodPut, fmt.Sprintf("/api/posts/%d", post.ID), bobToken, map[string]string{"content": "hijack"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPut, fmt.Sprintf("/api/posts/%d", post.ID), aliceToken, map[string]string{"content": "final #new"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Post
	decodeJSON(t, resp, &updated)
	assert.Equal(t, "final #new", updated.Content)
	require.Len(t, updated.Topics, 1)
	assert.Equal(t, "new", updated.Topics[0].Name)

	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Admins may remove anyone's post.
	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), adminToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchAndUserPosts(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.user(t, "alice")
	_, bobToken := env.user(t, "bob")

	createPost(t, env, aliceToken, "Learning Fiber routing")
	createPost(t, env, bobToken, "Gardening notes")

	resp := env.do(t, http.MethodGet, "/api/posts/search?q=fiber", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found []models.Post
	decodeJSON(t, resp, &found)
	require.Len(t, found, 1)
	assert.Equal(t, alice.ID, found[0].UserID)

	resp = env.do(t, http.MethodGet, "/api/posts/search?q=", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/posts", alice.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []models.Post
	decodeJSON(t, resp, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, "Learning Fiber routing", mine[0].Content)
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	_, aliceToken := env.user(t, "alice")
	_, bobToken := env.user(t, "bob")

	post := createPost(t, env, aliceToken, "discuss")

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", post.ID), bobToken,
		map[string]string{"content": "<b>nice</b> post"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var comment models.Comment
	decodeJSON(t, resp, &comment)
	assert.Equal(t, "nice post", comment.Content)

	resp = env.do(t, http.MethodPost, "/api/posts/9999/comments", bobToken, map[string]string{"content": "lost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPut, fmt.Sprintf("/api/posts/%d/comments/%d", post.ID, comment.ID), aliceToken,
		map[string]string{"content": "edited by someone else"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPut, fmt.Sprintf("/api/posts/%d/comments/%d", post.ID, comment.ID), bobToken,
		map[string]string{"content": "really nice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", post.ID), "", nil)
	var comments []models.Comment
	decodeJSON(t, resp, &comments)
	require.Len(t, comments, 1)
	assert.Equal(t, "really nice", comments[0].Content)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), "", nil)
	var withCount models.Post
	decodeJSON(t, resp, &withCount)
	assert.Equal(t, 1, withCount.CommentsCount)

	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/posts/%d/comments/%d", post.ID, comment.ID), bobToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestTopics(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")

	createPost(t, env, token, "#go #rust")
	createPost(t, env, token, "#go again")
	createPost(t, env, token, "#Go once more")

	resp := env.do(t, http.MethodGet, "/api/topics/trending", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var trending []models.TrendingTopic
	decodeJSON(t, resp, &trending)
	require.Len(t, trending, 2)
	assert.Equal(t, models.TrendingTopic{Name: "go", Count: 3}, trending[0])
	assert.Equal(t, models.TrendingTopic{Name: "rust", Count: 1}, trending[1])

	resp = env.do(t, http.MethodGet, "/api/topics/rust/posts", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var posts []models.Post
	decodeJSON(t, resp, &posts)
	require.Len(t, posts, 1)
	assert.Equal(t, "#go #rust", posts[0].Content)

	resp = env.do(t, http.MethodGet, "/api/topics/missing/posts", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
