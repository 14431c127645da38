package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"socialnet/internal/models"
	"socialnet/internal/observability"
	"socialnet/internal/repository"
	"socialnet/internal/search"
	"socialnet/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// LoginRecorder counts successful logins for activity reports.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, userID uint) error
}

type UserService struct {
	userRepo repository.UserRepository
	indexer  search.Indexer
	logins   LoginRecorder
	now      func() time.Time
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// UpdateProfileInput carries a partial profile update; nil fields are left unchanged.
type UpdateProfileInput struct {
	UserID         uint
	FirstName      *string    `validate:"omitempty,max=150"`
	LastName       *string    `validate:"omitempty,max=150"`
	Bio            *string    `validate:"omitempty,max=500"`
	Location       *string    `validate:"omitempty,max=100"`
	Website        *string    `validate:"omitempty,url"`
	ProfilePicture *string    `validate:"omitempty,url"`
	MobileNumber   *string    `validate:"omitempty,mobile"`
	DateOfBirth    *time.Time `validate:"omitempty"`
}

func NewUserService(userRepo repository.UserRepository, indexer search.Indexer, logins LoginRecorder) *UserService {
	if indexer == nil {
		indexer = search.Noop{}
	}
	return &UserService{
		userRepo: userRepo,
		indexer:  indexer,
		logins:   logins,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := validation.NormalizeEmail(in.Email)

	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if existing, err := s.userRepo.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("Email is already registered")
	}
	if existing, err := s.userRepo.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("Username is already taken")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.index(ctx, user)
	return user, nil
}

// Authenticate checks credentials, stamps last_login_at and records the login.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	invalid := models.NewUnauthorizedError("Invalid email or password")

	user, err := s.userRepo.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, invalid
	}

	now := s.now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	if s.logins != nil {
		if err := s.logins.RecordLogin(ctx, user.ID); err != nil {
			observability.LogAsyncOperationError(ctx, "analytics.record_login", err, "user_id", user.ID)
		}
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetProfile loads the user with their most recent posts.
func (s *UserService) GetProfile(ctx context.Context, id uint, postLimit int) (*models.User, error) {
	return s.userRepo.GetByIDWithPosts(ctx, id, postLimit)
}

func (s *UserService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	for _, field := range []*string{in.FirstName, in.LastName, in.Bio, in.Location, in.Website, in.ProfilePicture, in.MobileNumber} {
		if field != nil {
			*field = validation.SanitizeText(*field)
		}
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.DateOfBirth != nil && in.DateOfBirth.After(s.now()) {
		return nil, models.NewValidationError("date_of_birth must be in the past")
	}

	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&user.FirstName, in.FirstName)
	apply(&user.LastName, in.LastName)
	apply(&user.Bio, in.Bio)
	apply(&user.Location, in.Location)
	apply(&user.Website, in.Website)
	apply(&user.ProfilePicture, in.ProfilePicture)
	apply(&user.MobileNumber, in.MobileNumber)
	if in.DateOfBirth != nil {
		user.DateOfBirth = in.DateOfBirth
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	s.index(ctx, user)
	return user, nil
}

// SearchUsers matches names case-insensitively and never returns the actor.
func (s *UserService) SearchUsers(ctx context.Context, query string, actorID uint, limit, offset int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.User{}, nil
	}
	return s.userRepo.Search(ctx, query, actorID, limit, offset)
}

func (s *UserService) Follow(ctx context.Context, actorID, targetID uint) error {
	if actorID == targetID {
		return models.NewValidationError("You cannot follow yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return err
	}
	return s.userRepo.Follow(ctx, actorID, targetID)
}

func (s *UserService) Unfollow(ctx context.Context, actorID, targetID uint) error {
	return s.userRepo.Unfollow(ctx, actorID, targetID)
}

func (s *UserService) IsFollowing(ctx context.Context, actorID, targetID uint) (bool, error) {
	return s.userRepo.IsFollowing(ctx, actorID, targetID)
}

func (s *UserService) Followers(ctx context.Context, userID uint) ([]models.User, error) {
	return s.userRepo.ListFollowers(ctx, userID)
}

func (s *UserService) Following(ctx context.Context, userID uint) ([]models.User, error) {
	return s.userRepo.ListFollowing(ctx, userID)
}

func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	if err := s.userRepo.SetAdmin(ctx, targetID, isAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}

// SearchToken issues a tenant token scoped to the user's search access.
func (s *UserService) SearchToken(userID uint) (string, error) {
	token, err := s.indexer.GenerateSearchToken(userID)
	if errors.Is(err, search.ErrTokenUnavailable) {
		return "", models.NewForbiddenError("Search is not configured")
	}
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return token, nil
}

func (s *UserService) index(ctx context.Context, user *models.User) {
	if err := s.indexer.IndexUser(ctx, user); err != nil {
		observability.LogAsyncOperationError(ctx, "search.index_user", err, "user_id", user.ID)
	}
}
