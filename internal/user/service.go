package user

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/errors"
)

const (
	bcryptCost = 10

	// MaxPasswordBytes is the longest password bcrypt can hash.
	MaxPasswordBytes = 72
)

var (
	ErrMissingCredentials = errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef("Username and password are required"))

	ErrPasswordTooLong = errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef("Password must be at most %d bytes", MaxPasswordBytes))
)

// DB is the subset of *pgxpool.Pool used by Service.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Config struct {
	DB DB
	// Cost is the bcrypt cost, bcrypt.MinCost is handy in tests.
	Cost int
}

type Service struct {
	db   DB
	cost int
}

func NewService(c Config) *Service {
	s := &Service{
		db:   c.DB,
		cost: c.Cost,
	}

	if s.cost == 0 {
		s.cost = bcryptCost
	}

	return s
}

type RegisterRequest struct {
	Username string
	Password string
}

// Register creates a user with a bcrypt hash of the password.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return ErrMissingCredentials
	}
	if len(req.Password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}

	exists, err := s.exists(ctx, req.Username)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if stderrors.Is(err, bcrypt.ErrPasswordTooLong) {
		return ErrPasswordTooLong
	}
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	const stmt = `INSERT INTO users (username, password) VALUES ($1, $2);`

	_, err = s.db.Exec(ctx, stmt, req.Username, string(hash))
	if isUniqueViolation(err) {
		// Lost a race with another registration of the same name.
		return domain.ErrUsernameExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

type LoginRequest struct {
	Username string
	Password string
}

// Login returns the user when the password matches its stored hash.
// Unknown users and wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*domain.User, error) {
	const stmt = `SELECT username, password FROM users WHERE username = $1;`

	var (
		u    domain.User
		hash string
	)
	err := s.db.QueryRow(ctx, stmt, req.Username).Scan(&u.Username, &hash)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	u.PasswordHash = []byte(hash)

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return &u, nil
}

func (s *Service) exists(ctx context.Context, username string) (bool, error) {
	const stmt = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1);`

	var exists bool
	if err := s.db.QueryRow(ctx, stmt, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("select user: %w", err)
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	return stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
