package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/parleyhq/service-social-go/internal/user/entity"
	"github.com/parleyhq/service-social-go/pkg/utilities"
)

// Error messages double as the wire-level error codes surfaced to clients.
var (
	ErrUserNotFound            = errors.New("UserNotFound")
	ErrEmailAlreadyInUse       = errors.New("EmailAlreadyInUse")
	ErrUsernameAlreadyInUse    = errors.New("UsernameAlreadyInUse")
	ErrInvalidPassword         = errors.New("InvalidPassword")
	ErrCurrentPasswordRequired = errors.New("CurrentPasswordRequired")
	ErrPasswordNotChanged      = errors.New("PasswordNotChanged")
	ErrInvalidInput            = errors.New("InvalidInput")
)

const minPasswordLength = 8

// PasswordHasher abstracts the hashing primitive so it can be swapped or
// faked in tests.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher is the default PasswordHasher.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Repository is the exact set of storage operations the service needs.
type Repository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	UpdateEmail(ctx context.Context, id, email string) (int64, error)
	UpdateUsername(ctx context.Context, id, username string) (int64, error)
	UpdatePassword(ctx context.Context, id, hash string) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// SessionRevoker invalidates every live session of a user. Implemented by the
// session repository; wired in at startup.
type SessionRevoker interface {
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

// Service orchestrates account lifecycle flows.
type Service struct {
	repo     Repository
	hasher   PasswordHasher
	sessions SessionRevoker
}

func NewService(repo Repository, hasher PasswordHasher, sessions SessionRevoker) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &Service{repo: repo, hasher: hasher, sessions: sessions}
}

// Register creates a new account. Username and email conflicts are enforced
// by unique indexes; the in-process path never sees a duplicate race.
func (s *Service) Register(ctx context.Context, username, email, password string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || len(password) < minPasswordLength {
		return nil, ErrInvalidInput
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		ID:           utilities.NewKSUID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, mapConflict(err)
	}
	return u, nil
}

// VerifyCredentials authenticates by email or username plus password and
// returns the matching user. Lookup failures and hash mismatches both come
// back as ErrInvalidPassword to avoid account enumeration.
func (s *Service) VerifyCredentials(ctx context.Context, identifier, password string) (*entity.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidPassword
	}
	var u *entity.User
	var err error
	if strings.Contains(identifier, "@") {
		u, err = s.repo.GetByEmail(ctx, identifier)
	} else {
		u, err = s.repo.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidPassword
		}
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrInvalidPassword
	}
	return u, nil
}

// Get returns the full account row for a user id.
func (s *Service) Get(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateEmail changes the account email and resets the verification flag.
func (s *Service) UpdateEmail(ctx context.Context, id, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrInvalidInput
	}
	rows, err := s.repo.UpdateEmail(ctx, id, email)
	if err != nil {
		return mapConflict(err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateUsername changes the account username.
func (s *Service) UpdateUsername(ctx context.Context, id, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidInput
	}
	rows, err := s.repo.UpdateUsername(ctx, id, username)
	if err != nil {
		return mapConflict(err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ChangePassword verifies the current password, stores the new hash and bulk
// invalidates every session owned by the user.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	if current == "" {
		return ErrCurrentPasswordRequired
	}
	if len(next) < minPasswordLength {
		return ErrInvalidInput
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(u.PasswordHash, current) {
		return ErrInvalidPassword
	}
	if current == next {
		return ErrPasswordNotChanged
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if _, err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	_, err = s.sessions.DeleteAllForUser(ctx, id)
	return err
}

// Delete removes the account. Owned sessions and relationship rows go with
// it via ON DELETE CASCADE.
func (s *Service) Delete(ctx context.Context, id string) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// mapConflict translates Postgres unique violations into domain conflicts.
func mapConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "idx_users_email":
			return ErrEmailAlreadyInUse
		case "idx_users_username":
			return ErrUsernameAlreadyInUse
		}
	}
	return err
}
