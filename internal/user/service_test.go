package user_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/user"
)

func TestService_Register(t *testing.T) {
	tests := map[string]struct {
		arrange func(db *fakeDB)
		req     user.RegisterRequest
		assert  func(t *testing.T, db *fakeDB, err error)
	}{
		"new user should be stored with a bcrypt hash": {
			req: user.RegisterRequest{Username: "alice", Password: "s3cret"},
			assert: func(t *testing.T, db *fakeDB, err error) {
				require.NoError(t, err)
				hash, ok := db.users["alice"]
				require.True(t, ok)
				assert.NotEqual(t, "s3cret", hash)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
			},
		},

		"missing password should be rejected": {
			req: user.RegisterRequest{Username: "alice"},
			assert: func(t *testing.T, db *fakeDB, err error) {
				require.ErrorIs(t, err, user.ErrMissingCredentials)
				assert.Empty(t, db.users)
			},
		},

		"missing username should be rejected": {
			req: user.RegisterRequest{Username: "  ", Password: "x"},
			assert: func(t *testing.T, db *fakeDB, err error) {
				require.ErrorIs(t, err, user.ErrMissingCredentials)
			},
		},

		"password over 72 bytes should be rejected": {
			req: user.RegisterRequest{Username: "alice", Password: strings.Repeat("p", 80)},
			assert: func(t *testing.T, db *fakeDB, err error) {
				require.ErrorIs(t, err, user.ErrPasswordTooLong)
				assert.Empty(t, db.users)
			},
		},

		"password of exactly 72 bytes should be accepted": {
			req: user.RegisterRequest{Username: "alice", Password: strings.Repeat("p", 72)},
			assert: func(t *testing.T, db *fakeDB, err error) {
				require.NoError(t, err)
				assert.Contains(t, db.users, "alice")
			},
		},

		"existing username should conflict": {
			arrange: func(db *fakeDB) { db.users["alice"] = "hash" },
			req:     user.RegisterRequest{Username: "alice", Password: "x"},
			assert: func(t *testing.T, db *fakeDB, err error) {
				require.ErrorIs(t, err, domain.ErrUsernameExists)
			},
		},

		"unique violation on insert should conflict": {
			arrange: func(db *fakeDB) { db.execErr = &pgconn.PgError{Code: "23505"} },
			req:     user.RegisterRequest{Username: "bob", Password: "x"},
			assert: func(t *testing.T, db *fakeDB, err error) {
				require.ErrorIs(t, err, domain.ErrUsernameExists)
			},
		},

		"other insert failures should be returned": {
			arrange: func(db *fakeDB) { db.execErr = errors.New("disk full") },
			req:     user.RegisterRequest{Username: "bob", Password: "x"},
			assert: func(t *testing.T, db *fakeDB, err error) {
				require.Error(t, err)
				assert.NotErrorIs(t, err, domain.ErrUsernameExists)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			db := newFakeDB()
			if tt.arrange != nil {
				tt.arrange(db)
			}

			s := user.NewService(user.Config{DB: db, Cost: bcrypt.MinCost})
			err := s.Register(context.Background(), tt.req)
			tt.assert(t, db, err)
		})
	}
}

func TestService_Login(t *testing.T) {
	db := newFakeDB()
	s := user.NewService(user.Config{DB: db, Cost: bcrypt.MinCost})
	require.NoError(t, s.Register(context.Background(), user.RegisterRequest{Username: "alice", Password: "s3cret"}))

	tests := map[string]struct {
		req    user.LoginRequest
		assert func(t *testing.T, u *domain.User, err error)
	}{
		"correct password should log in": {
			req: user.LoginRequest{Username: "alice", Password: "s3cret"},
			assert: func(t *testing.T, u *domain.User, err error) {
				require.NoError(t, err)
				assert.Equal(t, "alice", u.Username)
			},
		},
		"wrong password should be rejected": {
			req: user.LoginRequest{Username: "alice", Password: "nope"},
			assert: func(t *testing.T, u *domain.User, err error) {
				require.ErrorIs(t, err, domain.ErrInvalidCredentials)
				assert.Nil(t, u)
			},
		},
		"unknown user should be rejected the same way": {
			req: user.LoginRequest{Username: "mallory", Password: "s3cret"},
			assert: func(t *testing.T, u *domain.User, err error) {
				require.ErrorIs(t, err, domain.ErrInvalidCredentials)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			u, err := s.Login(context.Background(), tt.req)
			tt.assert(t, u, err)
		})
	}
}

// fakeDB understands the three statements issued by user.Service.
type fakeDB struct {
	mu      sync.Mutex
	users   map[string]string
	execErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{users: make(map[string]string)}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	if !strings.Contains(sql, "INSERT INTO users") {
		return pgconn.CommandTag{}, errors.New("unexpected statement")
	}

	f.users[args[0].(string)] = args[1].(string)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()

	username := args[0].(string)
	hash, ok := f.users[username]

	switch {
	case strings.Contains(sql, "SELECT EXISTS"):
		return fakeRow{values: []any{ok}}
	case !ok:
		return fakeRow{err: pgx.ErrNoRows}
	default:
		return fakeRow{values: []any{username, hash}}
	}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}

	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}
