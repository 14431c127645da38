package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"socialnet/internal/models"
	"socialnet/internal/service"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Scenario is a hand-written data set, typically kept in a YAML file next to
// the seed command:
//
//	users:
//	  - username: alice
//	    admin: true
//	  - username: bob
//	friendships:
//	  - [alice, bob]
//	messages:
//	  - {from: alice, to: bob, content: "hi bob"}
//	posts:
//	  - author: alice
//	    content: "Hello #golang"
//	    likes: [bob]
type Scenario struct {
	Users       []ScenarioUser    `yaml:"users"`
	Friendships [][2]string       `yaml:"friendships"`
	Requests    []ScenarioRequest `yaml:"requests"`
	Messages    []ScenarioMessage `yaml:"messages"`
	Posts       []ScenarioPost    `yaml:"posts"`
	Banners     []ScenarioBanner  `yaml:"banners"`
}

type ScenarioUser struct {
	Username  string `yaml:"username"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Bio       string `yaml:"bio"`
	Admin     bool   `yaml:"admin"`
}

// ScenarioRequest is a friend request left pending.
type ScenarioRequest struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type ScenarioMessage struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Content string `yaml:"content"`
}

type ScenarioPost struct {
	Author   string            `yaml:"author"`
	Content  string            `yaml:"content"`
	ImageURL string            `yaml:"image_url"`
	DaysAgo  int               `yaml:"days_ago"`
	Likes    []string          `yaml:"likes"`
	Comments []ScenarioComment `yaml:"comments"`
}

type ScenarioComment struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

type ScenarioBanner struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	ImageURL    string `yaml:"image_url"`
	URL         string `yaml:"url"`
	SortOrder   int    `yaml:"sort_order"`
	Inactive    bool   `yaml:"inactive"`
	// EndsInDays leaves the banner open-ended when zero.
	EndsInDays int `yaml:"ends_in_days"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes YAML strictly: unknown keys are errors.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that every reference names a declared user.
func (sc *Scenario) Validate() error {
	declared := make(map[string]bool, len(sc.Users))
	for _, u := range sc.Users {
		name := strings.TrimSpace(u.Username)
		if name == "" {
			return errors.New("scenario: user without username")
		}
		if declared[name] {
			return fmt.Errorf("scenario: duplicate user %q", name)
		}
		declared[name] = true
	}

	check := func(where, name string) error {
		if !declared[name] {
			return fmt.Errorf("scenario: %s: %w %q", where, errUnknownUser, name)
		}
		return nil
	}
	for _, f := range sc.Friendships {
		if err := errors.Join(check("friendships", f[0]), check("friendships", f[1])); err != nil {
			return err
		}
	}
	for _, r := range sc.Requests {
		if err := errors.Join(check("requests", r.From), check("requests", r.To)); err != nil {
			return err
		}
	}
	for _, m := range sc.Messages {
		if err := errors.Join(check("messages", m.From), check("messages", m.To)); err != nil {
			return err
		}
	}
	for _, p := range sc.Posts {
		if err := check("posts", p.Author); err != nil {
			return err
		}
		for _, l := range p.Likes {
			if err := check("likes", l); err != nil {
				return err
			}
		}
		for _, c := range p.Comments {
			if err := check("comments", c.Author); err != nil {
				return err
			}
		}
	}
	return nil
}

// Apply creates the scenario. Users that already exist are reused, so a
// scenario can extend a generated data set.
func (s *Seeder) Apply(ctx context.Context, sc *Scenario) (*Summary, error) {
	sum := &Summary{}
	users := make(map[string]*models.User, len(sc.Users))

	for i, su := range sc.Users {
		u, created, err := s.scenarioUser(i, su)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", su.Username, err)
		}
		if created {
			sum.Users++
		}
		users[su.Username] = u
	}

	for _, pair := range sc.Friendships {
		a, b := users[pair[0]], users[pair[1]]
		req, err := s.friends.SendFriendRequest(ctx, a.ID, b.ID)
		if err != nil {
			return nil, fmt.Errorf("friendship %s-%s: %w", a.Username, b.Username, err)
		}
		if _, err := s.friends.AcceptFriendRequest(ctx, b.ID, req.ID); err != nil {
			return nil, fmt.Errorf("friendship %s-%s: %w", a.Username, b.Username, err)
		}
		sum.Friendships++
	}

	for _, r := range sc.Requests {
		if _, err := s.friends.SendFriendRequest(ctx, users[r.From].ID, users[r.To].ID); err != nil {
			return nil, fmt.Errorf("request %s->%s: %w", r.From, r.To, err)
		}
		sum.PendingRequests++
	}

	for _, m := range sc.Messages {
		content := m.Content
		if content == "" {
			content = s.factory.MessageText()
		}
		_, err := s.messages.SendMessage(ctx, service.SendMessageInput{
			SenderID:   users[m.From].ID,
			ReceiverID: users[m.To].ID,
			Content:    content,
		})
		if err != nil {
			return nil, fmt.Errorf("message %s->%s: %w", m.From, m.To, err)
		}
		sum.Messages++
	}

	for _, sp := range sc.Posts {
		if err := s.scenarioPost(ctx, sp, users, sum); err != nil {
			return nil, fmt.Errorf("post by %s: %w", sp.Author, err)
		}
	}

	for _, sb := range sc.Banners {
		in := service.BannerInput{
			Title:       sb.Title,
			Description: sb.Description,
			ImageURL:    sb.ImageURL,
			URL:         sb.URL,
			SortOrder:   sb.SortOrder,
		}
		if sb.Inactive {
			inactive := false
			in.IsActive = &inactive
		}
		if sb.EndsInDays > 0 {
			end := time.Now().UTC().AddDate(0, 0, sb.EndsInDays)
			in.EndDate = &end
		}
		if _, err := s.banners.CreateBanner(ctx, in); err != nil {
			return nil, fmt.Errorf("banner %q: %w", sb.Title, err)
		}
		sum.Banners++
	}

	return sum, nil
}

func (s *Seeder) scenarioUser(n int, su ScenarioUser) (*models.User, bool, error) {
	var existing models.User
	err := s.db.Where("username = ?", su.Username).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	u, err := s.factory.CreateUser(n, func(u *models.User) {
		u.Username = su.Username
		u.Email = su.Email
		if u.Email == "" {
			u.Email = strings.ToLower(su.Username) + "@example.com"
		}
		u.Password = su.Password
		if su.FirstName != "" {
			u.FirstName = su.FirstName
		}
		if su.LastName != "" {
			u.LastName = su.LastName
		}
		if su.Bio != "" {
			u.Bio = su.Bio
		}
		u.IsAdmin = su.Admin
	})
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (s *Seeder) scenarioPost(ctx context.Context, sp ScenarioPost, users map[string]*models.User, sum *Summary) error {
	post, err := s.factory.CreatePost(ctx, users[sp.Author], func(p *models.Post) {
		p.Content = sp.Content
		p.ImageURL = sp.ImageURL
		p.CreatedAt = s.factory.now().AddDate(0, 0, -sp.DaysAgo)
		p.UpdatedAt = p.CreatedAt
	})
	if err != nil {
		return err
	}
	sum.Posts++

	for _, name := range sp.Likes {
		if err := s.factory.CreateLike(users[name], post); err != nil {
			return err
		}
		sum.Likes++
	}
	for _, sc := range sp.Comments {
		_, err := s.factory.CreateComment(users[sc.Author], post, func(c *models.Comment) {
			if sc.Content != "" {
				c.Content = sc.Content
			}
		})
		if err != nil {
			return err
		}
		sum.Comments++
	}
	return nil
}
