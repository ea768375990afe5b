package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"atlas/internal/core"
	"atlas/internal/log"
	"atlas/internal/storage"
)

const (
	DefaultSessionTTL = 7 * 24 * time.Hour
	ResetTokenTTL     = time.Hour
)

var (
	ErrEmailTaken         = &core.ValidationError{Field: "email", Message: "Este email já está cadastrado."}
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrResetTokenInvalid  = &core.ValidationError{Field: "token", Message: "Link de redefinição inválido ou expirado."}
)

// Session is an authenticated user as seen by handlers. Every ledger
// operation is scoped to UserID.
type Session struct {
	ID        string    `json:"-"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResetNotifier delivers a password reset token to the account owner.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, userID, email, token string, expiresAt time.Time) error
}

// LogNotifier records that a reset was issued. The token itself is only
// logged when ExposeToken is set, which is meant for local development.
type LogNotifier struct {
	Logger      *log.Logger
	ExposeToken bool
}

func (n LogNotifier) NotifyPasswordReset(ctx context.Context, userID, _, token string, expiresAt time.Time) error {
	args := []any{
		log.FieldOwner, userID,
		"expires_at", expiresAt.Format(time.RFC3339),
	}
	if n.ExposeToken {
		args = append(args, "reset_token", token)
	}
	n.Logger.InfoContext(ctx, "Password reset issued", args...)
	return nil
}

type Service struct {
	users    storage.UserStore
	secret   []byte
	ttl      time.Duration
	notifier ResetNotifier
	logger   *log.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithNotifier(n ResetNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users storage.UserStore, secret string, opts ...Option) (*Service, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	logger := log.FromContext(context.Background()).WithComponent(log.ComponentAuth)
	s := &Service{
		users:    users,
		secret:   []byte(secret),
		ttl:      DefaultSessionTTL,
		notifier: LogNotifier{Logger: logger},
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an account. The user still has to sign in.
func (s *Service) SignUp(ctx context.Context, email, password string) (storage.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return storage.User{}, core.ErrEmailRequired
	}
	if err := core.ValidatePassword(password); err != nil {
		return storage.User{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return storage.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := storage.User{ID: uuid.NewString(), Email: email, PasswordHash: hash, CreatedAt: s.now().UTC()}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return storage.User{}, ErrEmailTaken
		}
		return storage.User{}, err
	}
	s.logger.InfoContext(ctx, "User signed up", log.FieldOwner, u.ID)
	return u, nil
}

// SignIn verifies the credentials and opens a stored session.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.openSession(ctx, u)
}

func (s *Service) openSession(ctx context.Context, u storage.User) (Session, error) {
	now := s.now().UTC()
	stored := storage.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	token, err := signToken(s.secret, stored.ID, u.ID, u.Email, now, stored.ExpiresAt)
	if err != nil {
		return Session{}, err
	}
	if err := s.users.CreateSession(ctx, stored); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return Session{ID: stored.ID, UserID: u.ID, Email: u.Email, Token: token, ExpiresAt: stored.ExpiresAt}, nil
}

// Authenticate requires a valid signature, an unexpired token and a stored
// session that was not signed out.
func (s *Service) Authenticate(ctx context.Context, token string) (Session, error) {
	if strings.TrimSpace(token) == "" {
		return Session{}, ErrUnauthenticated
	}
	now := s.now()
	claims, err := parseToken(s.secret, token, now)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	stored, err := s.users.GetSession(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, ErrUnauthenticated
		}
		return Session{}, err
	}
	if stored.UserID != claims.Subject || !now.Before(stored.ExpiresAt) {
		return Session{}, ErrUnauthenticated
	}
	return Session{ID: stored.ID, UserID: stored.UserID, Email: claims.Email, ExpiresAt: stored.ExpiresAt}, nil
}

// SignOut deletes the stored session behind the token. Invalid tokens are
// already signed out.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := parseToken(s.secret, token, s.now())
	if err != nil {
		return nil
	}
	return s.users.DeleteSession(ctx, claims.ID)
}

// RequestPasswordReset issues a one-hour reset token. Unknown emails succeed
// without doing anything.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return core.ErrEmailRequired
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	now := s.now().UTC()
	reset := storage.PasswordReset{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: now.Add(ResetTokenTTL),
		CreatedAt: now,
	}
	if err := s.users.CreatePasswordReset(ctx, reset); err != nil {
		return fmt.Errorf("store password reset: %w", err)
	}
	if err := s.notifier.NotifyPasswordReset(ctx, u.ID, u.Email, reset.Token, reset.ExpiresAt); err != nil {
		return fmt.Errorf("notify password reset: %w", err)
	}
	return nil
}

// ResetPassword consumes the reset token, replaces the password and signs
// out every session of the user.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := core.ValidatePassword(newPassword); err != nil {
		return err
	}
	reset, err := s.users.ConsumePasswordReset(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}
	if !s.now().Before(reset.ExpiresAt) {
		return ErrResetTokenInvalid
	}
	if err := s.setPassword(ctx, reset.UserID, newPassword); err != nil {
		return err
	}
	return s.users.DeleteUserSessions(ctx, reset.UserID)
}

// UpdatePassword changes the password of the signed-in user.
func (s *Service) UpdatePassword(ctx context.Context, session Session, newPassword string) error {
	if err := core.ValidatePassword(newPassword); err != nil {
		return err
	}
	return s.setPassword(ctx, session.UserID, newPassword)
}

func (s *Service) setPassword(ctx context.Context, userID, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Password updated", log.FieldOwner, userID)
	return nil
}
