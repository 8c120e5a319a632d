package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "storefront/backoffice/internal/domain/auth"
	"storefront/backoffice/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

var tracer = otel.Tracer("storefront/backoffice/usecase/auth")

// Service signs operators in and keeps their credentials.
type Service struct {
	users   domain.UserRepository
	tokens  TokenManager
	nowFunc func() time.Time
	cost    int
}

// Option customises a Service.
type Option func(*Service)

// WithBcryptCost overrides the hashing cost, mostly for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFunc = now }
}

// NewService constructs an auth service.
func NewService(users domain.UserRepository, tokens TokenManager, opts ...Option) *Service {
	s := &Service{
		users:   users,
		tokens:  tokens,
		nowFunc: time.Now,
		cost:    bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register stores a new account. The returned user carries no password hash.
func (s *Service) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer span.End()

	email = normaliseEmail(email)
	password = strings.TrimSpace(password)
	switch {
	case email == "":
		return nil, errors.New("email is required")
	case password == "":
		return nil, errors.New("password is required")
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		metrics.AuthAttemptsTotal.WithLabelValues("register", "conflict").Inc()
		return nil, domain.ErrEmailExists
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	now := s.nowFunc().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	metrics.AuthAttemptsTotal.WithLabelValues("register", "ok").Inc()
	return withoutHash(user), nil
}

// EnsureOperator registers the account unless the email is already taken.
// It reports whether a new account was created.
func (s *Service) EnsureOperator(ctx context.Context, email, password string) (bool, error) {
	_, err := s.Register(ctx, email, password, "operator")
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrEmailExists):
		return false, nil
	default:
		return false, err
	}
}

// Login checks the credentials and issues a token for the account.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, creds domain.Credentials) (string, *domain.User, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	user, err := s.authenticate(ctx, normaliseEmail(creds.Email), strings.TrimSpace(creds.Password))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.AuthAttemptsTotal.WithLabelValues("login", "rejected").Inc()
		}
		return "", nil, err
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return "", nil, err
	}
	span.SetAttributes(attribute.String("user.id", user.ID))
	metrics.AuthAttemptsTotal.WithLabelValues("login", "ok").Inc()
	return token, withoutHash(user), nil
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !matches(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// VerifyToken resolves a bearer token to the account it was issued for.
func (s *Service) VerifyToken(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	return withoutHash(user), nil
}

// RenewToken exchanges a valid token for a fresh one.
func (s *Service) RenewToken(ctx context.Context, token string) (string, error) {
	user, err := s.VerifyToken(ctx, token)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("renew", "rejected").Inc()
		return "", err
	}
	metrics.AuthAttemptsTotal.WithLabelValues("renew", "ok").Inc()
	return s.tokens.Generate(user.ID, user.Email)
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	ctx, span := tracer.Start(ctx, "auth.ChangePassword")
	defer span.End()

	current = strings.TrimSpace(current)
	next = strings.TrimSpace(next)
	if current == "" || next == "" {
		return errors.New("current_password and new_password required")
	}
	if current == next {
		return domain.ErrPasswordUnchanged
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !matches(user.PasswordHash, current) {
		return domain.ErrPasswordMismatch
	}
	hash, err := s.hash(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, hash, s.nowFunc().UTC())
}

func (s *Service) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func matches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func withoutHash(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	return &out
}
