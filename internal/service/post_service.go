package service

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"socialnet/internal/cache"
	"socialnet/internal/models"
	"socialnet/internal/observability"
	"socialnet/internal/repository"
	"socialnet/internal/search"
	"socialnet/internal/validation"
)

const (
	trendingWindow = 7 * 24 * time.Hour
	trendingLimit  = 10
)

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

type PostService struct {
	postRepo  repository.PostRepository
	topicRepo repository.TopicRepository
	tx        repository.TxManager
	indexer   search.Indexer
	isAdmin   func(ctx context.Context, userID uint) (bool, error)
	now       func() time.Time
}

type CreatePostInput struct {
	UserID   uint
	Content  string `validate:"required,max=5000"`
	ImageURL string `validate:"omitempty,url"`
}

type ListPostsInput struct {
	Limit         int
	Offset        int
	CurrentUserID uint
}

type UpdatePostInput struct {
	UserID   uint
	PostID   uint
	Content  string `validate:"required,max=5000"`
	ImageURL string `validate:"omitempty,url"`
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(
	postRepo repository.PostRepository,
	topicRepo repository.TopicRepository,
	tx repository.TxManager,
	indexer search.Indexer,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *PostService {
	if indexer == nil {
		indexer = search.Noop{}
	}
	return &PostService{
		postRepo:  postRepo,
		topicRepo: topicRepo,
		tx:        tx,
		indexer:   indexer,
		isAdmin:   isAdmin,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ExtractHashtags returns the lowercase hashtags in content, each once, in
// order of first appearance.
func ExtractHashtags(content string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	in.Content = validation.SanitizeText(in.Content)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	post := &models.Post{
		Content:  in.Content,
		ImageURL: in.ImageURL,
		UserID:   in.UserID,
	}
	err := s.tx.WithinTx(ctx, func(r repository.Repos) error {
		topics, err := r.Topics.FindOrCreate(ctx, ExtractHashtags(in.Content))
		if err != nil {
			return err
		}
		post.Topics = topics
		return r.Posts.Create(ctx, post)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateTrending(ctx)
	created, err := s.postRepo.GetByID(ctx, post.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	s.index(ctx, created)
	return created, nil
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	var posts []*models.Post

	if in.Offset == 0 && in.Limit > 0 && in.Limit <= 20 {
		err := cache.Aside(ctx, cache.PostsListKey(in.Limit), &posts, cache.ListTTL, func() error {
			var err error
			posts, err = s.postRepo.List(ctx, in.Limit, in.Offset, 0)
			return err
		})
		if err != nil {
			return nil, err
		}
		if err := s.markLiked(ctx, posts, in.CurrentUserID); err != nil {
			return nil, err
		}
		return posts, nil
	}

	return s.postRepo.List(ctx, in.Limit, in.Offset, in.CurrentUserID)
}

// markLiked fills the per-viewer liked flag on posts loaded anonymously.
func (s *PostService) markLiked(ctx context.Context, posts []*models.Post, userID uint) error {
	if userID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	likedIDs, err := s.postRepo.GetLikedPostIDs(ctx, userID, ids)
	if err != nil {
		return err
	}
	liked := make(map[uint]bool, len(likedIDs))
	for _, id := range likedIDs {
		liked[id] = true
	}
	for _, p := range posts {
		p.Liked = liked[p.ID]
	}
	return nil
}

func (s *PostService) GetPost(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, currentUserID)
}

func (s *PostService) GetUserPosts(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.postRepo.GetByUserID(ctx, userID, limit, offset, currentUserID)
}

func (s *PostService) SearchPosts(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.postRepo.Search(ctx, query, limit, offset, currentUserID)
}

// AdminSearchPosts filters by content and author username; either may be empty.
func (s *PostService) AdminSearchPosts(ctx context.Context, content, author string, limit, offset int) ([]*models.Post, error) {
	return s.postRepo.AdminSearch(ctx, strings.TrimSpace(content), strings.TrimSpace(author), limit, offset)
}

// TopicPosts lists posts tagged with the named topic.
func (s *PostService) TopicPosts(ctx context.Context, name string, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
	if _, err := s.topicRepo.GetByName(ctx, name); err != nil {
		return nil, err
	}
	return s.postRepo.GetByTopic(ctx, name, limit, offset, currentUserID)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnerOrAdmin(ctx, post.UserID, in.UserID, "You can only update your own posts"); err != nil {
		return nil, err
	}

	in.Content = validation.SanitizeText(in.Content)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	post.Content = in.Content
	post.ImageURL = in.ImageURL
	err = s.tx.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Posts.Update(ctx, post); err != nil {
			return err
		}
		topics, err := r.Topics.FindOrCreate(ctx, ExtractHashtags(post.Content))
		if err != nil {
			return err
		}
		return r.Posts.ReplaceTopics(ctx, post, topics)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateTrending(ctx)
	cache.InvalidatePostsList(ctx)
	updated, err := s.postRepo.GetByID(ctx, post.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	s.index(ctx, updated)
	return updated, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
	if err != nil {
		return err
	}
	if err := s.requireOwnerOrAdmin(ctx, post.UserID, in.UserID, "You can only delete your own posts"); err != nil {
		return err
	}

	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return err
	}
	cache.InvalidateTrending(ctx)
	if err := s.indexer.DeletePost(ctx, in.PostID); err != nil {
		observability.LogAsyncOperationError(ctx, "search.delete_post", err)
	}
	return nil
}

// ToggleLike likes the post if the user has not, otherwise removes the like.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*models.LikeToggleResult, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}

	liked, err := s.postRepo.IsLiked(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if liked {
		err = s.postRepo.Unlike(ctx, userID, postID)
	} else {
		_, err = s.postRepo.Like(ctx, userID, postID)
	}
	if err != nil {
		return nil, err
	}

	count, err := s.postRepo.CountLikes(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &models.LikeToggleResult{Liked: !liked, LikesCount: count}, nil
}

// TrendingTopics counts hashtag occurrences in the last week of posts and
// returns the most frequent ones.
func (s *PostService) TrendingTopics(ctx context.Context) ([]models.TrendingTopic, error) {
	var topics []models.TrendingTopic
	err := cache.Aside(ctx, cache.TrendingTopicsKey, &topics, cache.TrendingTTL, func() error {
		contents, err := s.postRepo.ListContentSince(ctx, s.now().Add(-trendingWindow))
		if err != nil {
			return err
		}
		topics = rankHashtags(contents, trendingLimit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topics, nil
}

func rankHashtags(contents []string, limit int) []models.TrendingTopic {
	counts := make(map[string]int)
	for _, content := range contents {
		for _, m := range hashtagPattern.FindAllStringSubmatch(content, -1) {
			counts[strings.ToLower(m[1])]++
		}
	}

	ranked := make([]models.TrendingTopic, 0, len(counts))
	for name, n := range counts {
		ranked = append(ranked, models.TrendingTopic{Name: name, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func (s *PostService) requireOwnerOrAdmin(ctx context.Context, ownerID, actorID uint, msg string) error {
	if ownerID == actorID {
		return nil
	}
	if s.isAdmin == nil {
		return models.NewForbiddenError(msg)
	}
	admin, err := s.isAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewForbiddenError(msg)
	}
	return nil
}

// index pushes the post to search; failures only cost search freshness.
func (s *PostService) index(ctx context.Context, post *models.Post) {
	if err := s.indexer.IndexPost(ctx, post); err != nil {
		observability.LogAsyncOperationError(ctx, "search.index_post", err, "post_id", post.ID)
	}
}
