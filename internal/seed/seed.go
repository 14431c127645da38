package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"socialnet/internal/database"
	"socialnet/internal/models"
	"socialnet/internal/repository"
	"socialnet/internal/service"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	Users          int
	PostsPerUser   int
	FriendsPerUser int
	// MessagesPerFriendship is the number of messages exchanged by each accepted pair.
	MessagesPerFriendship int
	Banners               int
	// BackfillDays recomputes daily metrics for this many days, today included.
	BackfillDays int
	// MaxDays bounds how far back generated posts are dated.
	MaxDays    int
	Seed       int64
	SkipBcrypt bool
}

// DefaultOptions is a small but connected demo network.
func DefaultOptions() Options {
	return Options{
		Users:                 30,
		PostsPerUser:          4,
		FriendsPerUser:        3,
		MessagesPerFriendship: 3,
		Banners:               2,
		BackfillDays:          7,
		MaxDays:               14,
	}
}

// Summary counts what a seeding run created.
type Summary struct {
	Users           int
	Friendships     int
	PendingRequests int
	Messages        int
	Posts           int
	Comments        int
	Likes           int
	Banners         int
	MetricDays      int
}

func (s Summary) String() string {
	return fmt.Sprintf("users=%d friendships=%d pending=%d messages=%d posts=%d comments=%d likes=%d banners=%d metric_days=%d",
		s.Users, s.Friendships, s.PendingRequests, s.Messages, s.Posts, s.Comments, s.Likes, s.Banners, s.MetricDays)
}

// Seeder creates demo data. Friendships and messages go through the services
// so request rows, notifications and canonical pairs match real traffic.
type Seeder struct {
	db        *gorm.DB
	opts      Options
	factory   *Factory
	friends   *service.FriendService
	messages  *service.MessageService
	banners   *service.BannerService
	analytics *service.AnalyticsService
}

// NewSeeder returns a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	repos := repository.NewRepos(db)
	tx := repository.NewTxManager(db)
	return &Seeder{
		db:        db,
		opts:      opts,
		factory:   NewFactory(db, opts),
		friends:   service.NewFriendService(repos.Friends, repos.Users, tx, nil),
		messages:  service.NewMessageService(repos.Messages, repos.Users, tx, nil, service.MessagingPolicy{RequireFriendship: true}),
		banners:   service.NewBannerService(repos.Banners),
		analytics: service.NewAnalyticsService(repos.Analytics, repos.Users),
	}
}

// Factory exposes the underlying entity factory.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// ClearAll deletes every row of every schema-managed table.
func (s *Seeder) ClearAll(ctx context.Context) error {
	log.Println("🗑️  Clearing existing data...")
	db := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	if err := db.Exec("DELETE FROM post_topics").Error; err != nil {
		return fmt.Errorf("clear post_topics: %w", err)
	}
	all := database.PersistentModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Unscoped().Delete(all[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", all[i], err)
		}
	}
	return nil
}

// Run seeds users, a friendship mesh with some pending requests, messages,
// posts with engagement, banners and backfilled metrics.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	log.Printf("🌱 Seeding %d users...", s.opts.Users)
	sum := &Summary{}

	users, err := s.seedUsers()
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	sum.Users = len(users)

	pairs, err := s.seedFriendMesh(ctx, users, sum)
	if err != nil {
		return nil, fmt.Errorf("seed friendships: %w", err)
	}

	if err := s.seedMessages(ctx, pairs, sum); err != nil {
		return nil, fmt.Errorf("seed messages: %w", err)
	}

	if err := s.seedPosts(ctx, users, sum); err != nil {
		return nil, fmt.Errorf("seed posts: %w", err)
	}

	for i := 0; i < s.opts.Banners; i++ {
		if _, err := s.factory.CreateBanner(i); err != nil {
			return nil, fmt.Errorf("seed banners: %w", err)
		}
		sum.Banners++
	}

	if err := s.Backfill(ctx, s.opts.BackfillDays); err != nil {
		return nil, err
	}
	sum.MetricDays = max(s.opts.BackfillDays, 0)

	log.Printf("🎉 Seeding complete: %s", sum)
	return sum, nil
}

func (s *Seeder) seedUsers() ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		u, err := s.factory.CreateUser(i)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

type userPair struct{ a, b *models.User }

// seedFriendMesh links each user to the next FriendsPerUser users on a ring.
// Every third request stays pending.
func (s *Seeder) seedFriendMesh(ctx context.Context, users []*models.User, sum *Summary) ([]userPair, error) {
	n := len(users)
	var pairs []userPair
	for i, u := range users {
		for k := 1; k <= s.opts.FriendsPerUser && k < n; k++ {
			other := users[(i+k)%n]
			req, err := s.friends.SendFriendRequest(ctx, u.ID, other.ID)
			if models.IsCode(err, models.CodeConflict) {
				// The ring wrapped onto an existing pair.
				continue
			}
			if err != nil {
				return nil, err
			}
			if (i+k)%3 == 0 {
				sum.PendingRequests++
				continue
			}
			if _, err := s.friends.AcceptFriendRequest(ctx, other.ID, req.ID); err != nil {
				return nil, err
			}
			sum.Friendships++
			pairs = append(pairs, userPair{a: u, b: other})
		}
	}
	return pairs, nil
}

func (s *Seeder) seedMessages(ctx context.Context, pairs []userPair, sum *Summary) error {
	for _, p := range pairs {
		for m := 0; m < s.opts.MessagesPerFriendship; m++ {
			from, to := p.a, p.b
			if m%2 == 1 {
				from, to = to, from
			}
			_, err := s.messages.SendMessage(ctx, service.SendMessageInput{
				SenderID:   from.ID,
				ReceiverID: to.ID,
				Content:    s.factory.MessageText(),
			})
			if err != nil {
				return err
			}
			sum.Messages++
		}
	}
	return nil
}

func (s *Seeder) seedPosts(ctx context.Context, users []*models.User, sum *Summary) error {
	for _, u := range users {
		for i := 0; i < s.opts.PostsPerUser; i++ {
			post, err := s.factory.CreatePost(ctx, u)
			if err != nil {
				return err
			}
			sum.Posts++

			for c := s.factory.Pick(3); c > 0; c-- {
				author := users[s.factory.Pick(len(users))]
				if _, err := s.factory.CreateComment(author, post); err != nil {
					return err
				}
				sum.Comments++
			}
			seen := map[uint]bool{}
			for l := s.factory.Pick(5); l > 0; l-- {
				liker := users[s.factory.Pick(len(users))]
				if seen[liker.ID] {
					continue
				}
				seen[liker.ID] = true
				if err := s.factory.CreateLike(liker, post); err != nil {
					return err
				}
				sum.Likes++
			}
		}
	}
	return nil
}

// Backfill rolls up platform metrics and per-user activity for the last days
// days, oldest first.
func (s *Seeder) Backfill(ctx context.Context, days int) error {
	if days <= 0 {
		return nil
	}
	today := time.Now().UTC()
	for d := days - 1; d >= 0; d-- {
		if _, err := s.analytics.RollupDay(ctx, today.AddDate(0, 0, -d)); err != nil {
			return fmt.Errorf("backfill metrics: %w", err)
		}
	}
	return nil
}

var errUnknownUser = errors.New("unknown user")
