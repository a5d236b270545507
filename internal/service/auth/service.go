package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/crimespot/backend/internal/domain"
	"github.com/crimespot/backend/internal/repository"
	"github.com/crimespot/backend/pkg/crypto"
	"github.com/crimespot/backend/pkg/token"
)

var (
	// ErrDuplicateIdentity reports a registration conflict on username or email.
	ErrDuplicateIdentity = errors.New("auth: username or email already exists")
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password; callers must not be able to tell which.
	ErrInvalidCredentials = errors.New("auth: incorrect username or password")
	// ErrInvalidToken covers every token defect, including a subject that no
	// longer resolves to a stored account. The causes stay collapsed so a
	// probing client learns nothing from the failure mode.
	ErrInvalidToken = errors.New("auth: could not validate credentials")
	// ErrInactiveAccount reports a valid token for a disabled account.
	ErrInactiveAccount = errors.New("auth: inactive account")
	// ErrValidation reports a malformed registration payload.
	ErrValidation = errors.New("auth: invalid payload")
)

// Service handles registration, login, and bearer-token authorization.
type Service struct {
	users  repository.UserRepository
	hasher crypto.Hasher
	tokens token.Manager
	logger *slog.Logger
	ttl    TokenTTL
}

// TokenTTL carries the token lifetimes the service issues.
type TokenTTL struct {
	// Access is the default lifetime for issued tokens.
	Access time.Duration
	// Login is the longer lifetime granted by the login flow.
	Login time.Duration
}

// New constructs a Service.
func New(users repository.UserRepository, hasher crypto.Hasher, tokens token.Manager, logger *slog.Logger, ttl TokenTTL) Service {
	if ttl.Access <= 0 {
		ttl.Access = 15 * time.Minute
	}
	if ttl.Login <= 0 {
		ttl.Login = 30 * time.Minute
	}
	return Service{users: users, hasher: hasher, tokens: tokens, logger: logger, ttl: ttl}
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// Validate checks the payload before any store or hashing work happens.
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.Length(3, 32)),
		validation.Field(&in.Email, validation.Required, is.Email),
		// bcrypt ignores input beyond 72 bytes, so longer passwords are rejected.
		validation.Field(&in.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&in.FullName, validation.Length(0, 128)),
	)
}

// Register creates an account. Uniqueness of username and email is enforced
// by the store in the same statement as the insert, so concurrent duplicate
// registrations cannot both succeed.
func (s Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and issues a login-lived bearer token. An
// unknown username and a wrong password produce the identical error.
func (s Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}
	signed, err := s.tokens.Issue(user.ID, s.ttl.Login)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return signed, nil
}

// IssueToken signs a token for subject. A zero ttl selects the default
// access lifetime. Negative ttls pass through and yield a token that is
// already expired.
func (s Service) IssueToken(subject string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = s.ttl.Access
	}
	return s.tokens.Issue(subject, ttl)
}

// Authorize validates a bearer token and resolves its subject against the
// store. A token whose subject no longer exists fails exactly like a forged
// one. The disabled flag is deliberately not checked here: the session gate
// reports an inactive account as a distinct, user-visible condition.
func (s Service) Authorize(ctx context.Context, raw string) (*domain.User, error) {
	subject, err := s.tokens.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.users.GetUserByID(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}
