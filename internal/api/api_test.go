package api_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizbattle/internal/api"
	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/event"
	"github.com/victornm/quizbattle/internal/leaderboard"
	"github.com/victornm/quizbattle/internal/question"
	"github.com/victornm/quizbattle/internal/user"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAPI_Register(t *testing.T) {
	tests := map[string]struct {
		body       string
		arrange    func(f *fakes)
		wantStatus int
		wantMsg    string
	}{
		"new user should be created": {
			body:       `{"username":"alice","password":"pw"}`,
			wantStatus: http.StatusCreated,
			wantMsg:    "User created successfully",
		},
		"missing password should be a bad request": {
			body:       `{"username":"alice"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Username and password are required",
		},
		"malformed body should be a bad request": {
			body:       `{`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Username and password are required",
		},
		"overlong password should be a bad request": {
			body:       `{"username":"alice","password":"` + strings.Repeat("p", 80) + `"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Password must be at most 72 bytes",
		},
		"existing username should conflict": {
			body:       `{"username":"taken","password":"pw"}`,
			arrange:    func(f *fakes) { f.users.known["taken"] = "pw" },
			wantStatus: http.StatusConflict,
			wantMsg:    "Username already exists",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFakes()
			if tt.arrange != nil {
				tt.arrange(f)
			}

			w := f.do(t, http.MethodPost, "/register", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantMsg, decodeMessage(t, w))
		})
	}
}

func TestAPI_Login(t *testing.T) {
	f := newFakes()
	f.users.known["alice"] = "pw"

	w := f.do(t, http.MethodPost, "/login", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Login successful", resp.Message)
	assert.Equal(t, "alice", resp.User.Username)

	w = f.do(t, http.MethodPost, "/login", `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decodeMessage(t, w))
}

func TestAPI_ListQuestions(t *testing.T) {
	f := newFakes()

	w := f.do(t, http.MethodGet, "/api/questions", "")
	require.Equal(t, http.StatusOK, w.Code)

	var qs []api.Question
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &qs))
	require.Len(t, qs, 2)
	assert.Equal(t, question.ListQuestionsRequest{Category: "9", Difficulty: "easy"}, f.questions.last)

	for _, q := range qs {
		assert.ElementsMatch(t, append([]string{q.CorrectAnswer}, q.IncorrectAnswers...), q.Answers)
	}

	w = f.do(t, http.MethodGet, "/api/questions?category=10&difficulty=hard", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, question.ListQuestionsRequest{Category: "10", Difficulty: "hard"}, f.questions.last)
}

func TestAPI_SubmitScore(t *testing.T) {
	tests := map[string]struct {
		body       string
		wantStatus int
		assert     func(t *testing.T, f *fakes)
	}{
		"valid score should be added": {
			body:       `{"username":"alice","score":7}`,
			wantStatus: http.StatusCreated,
			assert: func(t *testing.T, f *fakes) {
				require.Len(t, f.leaderboard.entries, 1)
				assert.Equal(t, int64(7), f.leaderboard.entries[0].Score)
			},
		},
		"fractional score should be rounded": {
			body:       `{"username":"alice","score":6.5}`,
			wantStatus: http.StatusCreated,
			assert: func(t *testing.T, f *fakes) {
				require.Len(t, f.leaderboard.entries, 1)
				assert.Equal(t, int64(7), f.leaderboard.entries[0].Score)
			},
		},
		"string score should be rejected": {
			body:       `{"username":"alice","score":"7"}`,
			wantStatus: http.StatusBadRequest,
			assert: func(t *testing.T, f *fakes) {
				assert.Empty(t, f.leaderboard.entries)
			},
		},
		"numeric username should be rejected": {
			body:       `{"username":42,"score":7}`,
			wantStatus: http.StatusBadRequest,
		},
		"missing score should be rejected": {
			body:       `{"username":"alice"}`,
			wantStatus: http.StatusBadRequest,
		},
		"largest int64 score should be added": {
			body:       `{"username":"alice","score":9223372036854775807}`,
			wantStatus: http.StatusCreated,
			assert: func(t *testing.T, f *fakes) {
				require.Len(t, f.leaderboard.entries, 1)
				assert.Equal(t, int64(math.MaxInt64), f.leaderboard.entries[0].Score)
			},
		},
		"exponent score beyond int64 should be rejected": {
			body:       `{"username":"alice","score":1e30}`,
			wantStatus: http.StatusBadRequest,
			assert: func(t *testing.T, f *fakes) {
				assert.Empty(t, f.leaderboard.entries)
			},
		},
		"score that would wrap int64 should be rejected": {
			body:       `{"username":"alice","score":18446744073709551623}`,
			wantStatus: http.StatusBadRequest,
			assert: func(t *testing.T, f *fakes) {
				assert.Empty(t, f.leaderboard.entries)
			},
		},
		"huge negative score should be rejected": {
			body:       `{"username":"alice","score":-1e30}`,
			wantStatus: http.StatusBadRequest,
			assert: func(t *testing.T, f *fakes) {
				assert.Empty(t, f.leaderboard.entries)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFakes()

			w := f.do(t, http.MethodPost, "/api/leaderboard", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.assert != nil {
				tt.assert(t, f)
			}
		})
	}
}

func TestAPI_GetLeaderboard(t *testing.T) {
	f := newFakes()
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	f.leaderboard.entries = []domain.LeaderboardEntry{
		{ID: "1", Username: "alice", Score: 9, Date: at},
		{ID: "2", Username: "bob", Score: 4, Date: at},
	}

	w := f.do(t, http.MethodGet, "/api/leaderboard", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[
		{"id":"1","username":"alice","score":9,"date":"2025-01-02T03:04:05Z"},
		{"id":"2","username":"bob","score":4,"date":"2025-01-02T03:04:05Z"}
	]`, w.Body.String())
	assert.Equal(t, leaderboard.DefaultTop, f.leaderboard.lastN)
}

func TestAPI_Misc(t *testing.T) {
	tests := map[string]struct {
		method, path string
		wantStatus   int
	}{
		"greeting":              {http.MethodGet, "/", http.StatusOK},
		"health":                {http.MethodGet, "/healthz", http.StatusOK},
		"google auth":           {http.MethodGet, "/auth/google", http.StatusNotImplemented},
		"google auth callback":  {http.MethodGet, "/auth/google/callback", http.StatusNotImplemented},
		"play without username": {http.MethodGet, "/api/play", http.StatusBadRequest},
		"preflight":             {http.MethodOptions, "/api/leaderboard", http.StatusNoContent},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFakes()
			w := f.do(t, tt.method, tt.path, "")
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAPI_CORS(t *testing.T) {
	f := newFakes()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

type fakes struct {
	bus         *event.Bus
	users       *fakeUsers
	questions   *fakeQuestions
	leaderboard *fakeLeaderboard
	api         *api.API
	engine      *gin.Engine
}

func newFakes() *fakes {
	f := &fakes{
		bus:         event.NewBus(),
		users:       &fakeUsers{known: make(map[string]string)},
		questions:   &fakeQuestions{qs: sampleQuestions()},
		leaderboard: &fakeLeaderboard{},
		engine:      gin.New(),
	}

	f.api = api.New(api.Config{
		EventBus:       f.bus,
		Users:          f.users,
		Questions:      f.questions,
		Leaderboard:    f.leaderboard,
		AllowedOrigins: []string{"http://localhost:5173"},
		Play: api.PlayConfig{
			TickInterval: time.Hour,
			RevealDelay:  10 * time.Millisecond,
		},
	})
	f.api.Register(f.engine)

	return f
}

func (f *fakes) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var m api.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m.Message
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Category: "9", Difficulty: "easy", Text: "Capital of France?", Correct: "Paris", Distractors: []string{"Rome", "Berlin", "Madrid"}},
		{ID: 2, Category: "9", Difficulty: "easy", Text: "2 + 2?", Correct: "4", Distractors: []string{"3", "5", "22"}},
	}
}

type fakeUsers struct {
	mu    sync.Mutex
	known map[string]string
}

func (f *fakeUsers) Register(_ context.Context, req user.RegisterRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if req.Username == "" || req.Password == "" {
		return user.ErrMissingCredentials
	}
	if len(req.Password) > user.MaxPasswordBytes {
		return user.ErrPasswordTooLong
	}
	if _, ok := f.known[req.Username]; ok {
		return domain.ErrUsernameExists
	}
	f.known[req.Username] = req.Password
	return nil
}

func (f *fakeUsers) Login(_ context.Context, req user.LoginRequest) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if pw, ok := f.known[req.Username]; !ok || pw != req.Password {
		return nil, domain.ErrInvalidCredentials
	}
	return &domain.User{Username: req.Username}, nil
}

type fakeQuestions struct {
	mu   sync.Mutex
	qs   []domain.Question
	last question.ListQuestionsRequest
}

func (f *fakeQuestions) ListQuestions(_ context.Context, req question.ListQuestionsRequest) ([]domain.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last = req
	var out []domain.Question
	for _, q := range f.qs {
		if q.Category == req.Category && q.Difficulty == req.Difficulty {
			out = append(out, q)
		}
	}
	return out, nil
}

type fakeLeaderboard struct {
	mu      sync.Mutex
	entries []domain.LeaderboardEntry
	lastN   int
}

func (f *fakeLeaderboard) Submit(_ context.Context, e domain.LeaderboardEntry) (*domain.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, e)
	return &e, nil
}

func (f *fakeLeaderboard) Top(_ context.Context, n int) (*domain.Leaderboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastN = n
	return &domain.Leaderboard{Entries: append([]domain.LeaderboardEntry(nil), f.entries...)}, nil
}
