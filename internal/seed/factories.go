// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"socialnet/internal/models"
	"socialnet/internal/repository"
	"socialnet/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the login password of every generated user.
const DefaultPassword = "Seed!Passw0rd123"

var topicPool = []string{
	"golang", "travel", "music", "books", "fitness", "cooking", "photography",
	"gaming", "movies", "startups", "homelab", "design", "running", "coffee",
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder, scenarios and tests.
type Factory struct {
	db     *gorm.DB
	opts   Options
	faker  *gofakeit.Faker
	now    func() time.Time
	hashed map[string]string
}

// NewFactory creates a new Factory bound to the provided Gorm DB. A zero
// opts.Seed picks a time-based seed.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := &Factory{
		db:     db,
		opts:   opts,
		faker:  gofakeit.New(seed),
		now:    func() time.Time { return time.Now().UTC() },
		hashed: make(map[string]string),
	}
	return f
}

func (f *Factory) hash(password string) (string, error) {
	if h, ok := f.hashed[password]; ok {
		return h, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		// Still a valid hash so seeded users can log in.
		cost = bcrypt.MinCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	f.hashed[password] = string(h)
	return f.hashed[password], nil
}

// pastTime returns a moment within the last MaxDays days.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.faker.Number(0, maxDays-1))*24*time.Hour +
		time.Duration(f.faker.Number(0, 23))*time.Hour +
		time.Duration(f.faker.Number(0, 59))*time.Minute
	return f.now().Add(-back)
}

// BuildUser constructs a user with a unique username but does not persist it.
func (f *Factory) BuildUser(n int, overrides ...func(*models.User)) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	base := strings.ToLower(sanitizeUsername(first + "_" + last))
	username := fmt.Sprintf("%s%d", base, n)
	if len(username) > 30 {
		username = username[len(username)-30:]
	}

	user := &models.User{
		Username:       username,
		Email:          username + "@example.com",
		FirstName:      first,
		LastName:       last,
		Bio:            f.faker.Sentence(10),
		Location:       f.faker.City(),
		ProfilePicture: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

func sanitizeUsername(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// CreateUser persists a generated user with DefaultPassword. Overrides run
// before hashing, so an override may set a plain-text Password.
func (f *Factory) CreateUser(n int, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(n, overrides...)
	if user.Password == "" {
		user.Password = DefaultPassword
	}
	hashed, err := f.hash(user.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.Password = hashed

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a backdated post with one to three hashtags but does
// not persist it.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	tags := make([]string, 0, 3)
	for i := f.faker.Number(1, 3); i > 0; i-- {
		tags = append(tags, "#"+topicPool[f.faker.Number(0, len(topicPool)-1)])
	}
	post := &models.Post{
		Content: f.faker.Sentence(f.faker.Number(6, 18)) + " " + strings.Join(tags, " "),
		UserID:  user.ID,
	}
	if f.faker.Number(0, 9) < 4 {
		post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID())
	}
	post.CreatedAt = f.pastTime()
	post.UpdatedAt = post.CreatedAt

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost persists a post and links the topics named by its hashtags.
func (f *Factory) CreatePost(ctx context.Context, user *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(user, overrides...)

	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepos(tx)
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		topics, err := repos.Topics.FindOrCreate(ctx, service.ExtractHashtags(post.Content))
		if err != nil {
			return err
		}
		return repos.Posts.ReplaceTopics(ctx, post, topics)
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a sample comment on post authored by user.
func (f *Factory) CreateComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content: f.faker.Sentence(8),
		UserID:  user.ID,
		PostID:  post.ID,
	}
	for _, override := range overrides {
		override(comment)
	}
	if comment.CreatedAt.IsZero() && !post.CreatedAt.IsZero() {
		comment.CreatedAt = post.CreatedAt.Add(time.Duration(f.faker.Number(1, 240)) * time.Minute)
	}

	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from user on post. Repeats are ignored.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	like := &models.Like{UserID: user.ID, PostID: post.ID}
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).Create(like).Error
}

// CreateBanner persists an active banner starting now.
func (f *Factory) CreateBanner(sortOrder int, overrides ...func(*models.Banner)) (*models.Banner, error) {
	banner := &models.Banner{
		Title:       f.faker.Sentence(4),
		Description: f.faker.Sentence(12),
		ImageURL:    fmt.Sprintf("https://picsum.photos/seed/banner-%s/1200/300", f.faker.UUID()),
		URL:         f.faker.URL(),
		IsActive:    true,
		SortOrder:   sortOrder,
		StartDate:   f.now(),
	}
	for _, override := range overrides {
		override(banner)
	}

	if err := f.db.Create(banner).Error; err != nil {
		return nil, err
	}
	return banner, nil
}

// MessageText returns a short chat line.
func (f *Factory) MessageText() string {
	return f.faker.Sentence(f.faker.Number(3, 12))
}

// Pick returns a random index in [0, n).
func (f *Factory) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}
