package auth

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/crimespot/backend/internal/domain"
	"github.com/crimespot/backend/internal/repository"
	"github.com/crimespot/backend/pkg/crypto"
	"github.com/crimespot/backend/pkg/token"
)

type userRepoMock struct {
	createFunc        func(ctx context.Context, user *domain.User) error
	getByUsernameFunc func(ctx context.Context, username string) (*domain.User, error)
	getByIDFunc       func(ctx context.Context, id string) (*domain.User, error)
	deleteFunc        func(ctx context.Context, id string) error
}

func (m userRepoMock) CreateUser(ctx context.Context, user *domain.User) error {
	if m.createFunc == nil {
		return nil
	}
	return m.createFunc(ctx, user)
}

func (m userRepoMock) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getByUsernameFunc == nil {
		return nil, repository.ErrNotFound
	}
	return m.getByUsernameFunc(ctx, username)
}

func (m userRepoMock) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if m.getByIDFunc == nil {
		return nil, repository.ErrNotFound
	}
	return m.getByIDFunc(ctx, id)
}

func (m userRepoMock) DeleteUser(ctx context.Context, id string) error {
	if m.deleteFunc == nil {
		return nil
	}
	return m.deleteFunc(ctx, id)
}

// memoryUserRepo enforces uniqueness under a mutex, mirroring the atomic
// check-and-insert the postgres store provides.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*domain.User)}
}

func (m *memoryUserRepo) CreateUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *memoryUserRepo) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (m *memoryUserRepo) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memoryUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(users repository.UserRepository) Service {
	return New(users, crypto.NewHasher(bcrypt.MinCost), token.NewManager("test-secret", "crimespot"), newLogger(), TokenTTL{Access: 15 * time.Minute, Login: 30 * time.Minute})
}

func TestRegisterStoresHashedPassword(t *testing.T) {
	var stored *domain.User
	repo := userRepoMock{
		createFunc: func(_ context.Context, user *domain.User) error {
			stored = user
			return nil
		},
	}
	svc := newService(repo)

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@x.com",
		Password: "secret123",
		FullName: "Alice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil {
		t.Fatalf("expected user persisted")
	}
	if user.ID == "" {
		t.Fatalf("expected store-assigned id")
	}
	if string(stored.PasswordHash) == "secret123" {
		t.Fatalf("plaintext password stored")
	}
	if err := crypto.NewHasher(bcrypt.MinCost).Compare(stored.PasswordHash, "secret123"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if stored.Disabled {
		t.Fatalf("new accounts must start enabled")
	}
}

func TestRegisterDuplicateIdentity(t *testing.T) {
	repo := userRepoMock{
		createFunc: func(_ context.Context, _ *domain.User) error {
			return repository.ErrDuplicate
		},
	}
	svc := newService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret123"})
	if !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(userRepoMock{
		createFunc: func(_ context.Context, _ *domain.User) error {
			t.Fatalf("store must not be reached for invalid payloads")
			return nil
		},
	})

	cases := []RegisterInput{
		{Username: "alice", Email: "not-an-email", Password: "secret123"},
		{Username: "al", Email: "alice@x.com", Password: "secret123"},
		{Username: "alice", Email: "alice@x.com", Password: "short"},
		{Email: "alice@x.com", Password: "secret123"},
	}
	for _, in := range cases {
		if _, err := svc.Register(context.Background(), in); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", in, err)
		}
	}
}

func TestConcurrentRegistrationExactlyOneSucceeds(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := newService(repo)

	const attempts = 8
	errs := make(chan error, attempts)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < attempts; i++ {
		go func() {
			start.Wait()
			_, err := svc.Register(context.Background(), RegisterInput{
				Username: "alice",
				Email:    "alice@x.com",
				Password: "secret123",
			})
			errs <- err
		}()
	}
	start.Done()

	var successes, duplicates int
	for i := 0; i < attempts; i++ {
		switch err := <-errs; {
		case err == nil:
			successes++
		case errors.Is(err, ErrDuplicateIdentity):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
	if duplicates != attempts-1 {
		t.Fatalf("expected %d duplicates, got %d", attempts-1, duplicates)
	}
	if repo.count() != 1 {
		t.Fatalf("expected one stored record, got %d", repo.count())
	}
}

func TestLoginIssuesResolvableToken(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := newService(repo)
	user, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	signed, err := svc.Login(context.Background(), "alice", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resolved, err := svc.Authorize(context.Background(), signed)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if resolved.ID != user.ID {
		t.Fatalf("token resolved to %q, want %q", resolved.ID, user.ID)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := newService(repo)
	if _, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret123"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, wrongPass := svc.Login(context.Background(), "alice", "wrongpass1")
	_, noUser := svc.Login(context.Background(), "nobody", "secret123")
	if !errors.Is(wrongPass, ErrInvalidCredentials) || !errors.Is(noUser, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v and %v", wrongPass, noUser)
	}
	if wrongPass.Error() != noUser.Error() {
		t.Fatalf("login failures must not reveal username existence: %q vs %q", wrongPass, noUser)
	}
}

func TestIssueTokenTTLSelection(t *testing.T) {
	svc := newService(newMemoryUserRepo())

	// Zero means "unspecified" and falls back to the access lifetime.
	defaulted, err := svc.IssueToken("user-1", 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	m := token.NewManager("test-secret", "crimespot")
	if _, err := m.Parse(defaulted); err != nil {
		t.Fatalf("default-ttl token must verify: %v", err)
	}

	// A negative ttl passes through and produces an already expired token.
	expired, err := svc.IssueToken("user-1", -time.Second)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(expired); !errors.Is(err, token.ErrInvalid) {
		t.Fatalf("expected expired token to fail parsing, got %v", err)
	}
}

func TestAuthorizeRejectsExpiredToken(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := newService(repo)
	user, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	expired, err := svc.IssueToken(user.ID, -time.Second)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Authorize(context.Background(), expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthorizeRejectsForeignSecretWithSameError(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := newService(repo)
	user, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	forged, err := token.NewManager("other-secret", "crimespot").Issue(user.ID, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, forgedErr := svc.Authorize(context.Background(), forged)
	if !errors.Is(forgedErr, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", forgedErr)
	}

	expired, err := svc.IssueToken(user.ID, -time.Second)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, expiredErr := svc.Authorize(context.Background(), expired)
	if forgedErr.Error() != expiredErr.Error() {
		t.Fatalf("token failure causes must collapse: %q vs %q", forgedErr, expiredErr)
	}
}

func TestAuthorizeRejectsDeletedSubject(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := newService(repo)
	user, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	signed, err := svc.Login(context.Background(), "alice", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := repo.DeleteUser(context.Background(), user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// A token for a deleted account fails exactly like a forged one.
	if _, err := svc.Authorize(context.Background(), signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthorizeReturnsDisabledUser(t *testing.T) {
	disabled := &domain.User{ID: "user-1", Username: "alice", Disabled: true}
	repo := userRepoMock{
		getByIDFunc: func(_ context.Context, id string) (*domain.User, error) {
			if id != "user-1" {
				t.Fatalf("unexpected lookup: %s", id)
			}
			return disabled, nil
		},
	}
	svc := newService(repo)
	signed, err := svc.IssueToken("user-1", 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Authorize does not reject disabled accounts; the session gate does,
	// with a response distinct from an invalid token.
	user, err := svc.Authorize(context.Background(), signed)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !user.Disabled {
		t.Fatalf("expected disabled flag preserved")
	}
}
