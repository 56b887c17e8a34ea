package api

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/errors"
	"github.com/victornm/quizbattle/internal/leaderboard"
	"github.com/victornm/quizbattle/internal/question"
	"github.com/victornm/quizbattle/internal/user"
)

type (
	Message struct {
		Message string `json:"message"`
	}

	Credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	LoginResponse struct {
		Message string `json:"message"`
		User    struct {
			Username string `json:"username"`
		} `json:"user"`
	}

	Question struct {
		ID               int64    `json:"id"`
		Category         string   `json:"category_id"`
		Difficulty       string   `json:"difficulty"`
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
		Answers          []string `json:"answers"`
	}

	LeaderboardEntry struct {
		ID       string    `json:"id"`
		Username string    `json:"username"`
		Score    int64     `json:"score"`
		Date     time.Time `json:"date"`
	}
)

func (a *API) Hello(c *gin.Context) {
	c.String(http.StatusOK, "Hello from the Quiz Battle Backend!")
}

func (a *API) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (a *API) RegisterUser(c *gin.Context) {
	var req Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		a.writeError(c, user.ErrMissingCredentials)
		return
	}

	if err := a.us.Register(c.Request.Context(), user.RegisterRequest{
		Username: req.Username,
		Password: req.Password,
	}); err != nil {
		a.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Message{Message: "User created successfully"})
}

func (a *API) Login(c *gin.Context) {
	var req Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		a.writeError(c, domain.ErrInvalidCredentials)
		return
	}

	u, err := a.us.Login(c.Request.Context(), user.LoginRequest{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}

	var resp LoginResponse
	resp.Message = "Login successful"
	resp.User.Username = u.Username
	c.JSON(http.StatusOK, resp)
}

// ListQuestions returns the questions of a category and difficulty, each with a fresh answer order.
func (a *API) ListQuestions(c *gin.Context) {
	qs, err := a.qs.ListQuestions(c.Request.Context(), question.ListQuestionsRequest{
		Category:   c.DefaultQuery("category", domain.DefaultCategory),
		Difficulty: c.DefaultQuery("difficulty", domain.DefaultDifficulty),
	})
	if err != nil {
		a.writeError(c, err)
		return
	}

	resp := make([]Question, 0, len(qs))
	for _, q := range qs {
		p := a.shuffler.Present(q)
		resp = append(resp, Question{
			ID:               q.ID,
			Category:         q.Category,
			Difficulty:       q.Difficulty,
			Question:         q.Text,
			CorrectAnswer:    q.Correct,
			IncorrectAnswers: q.Distractors,
			Answers:          p.Answers,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) GetLeaderboard(c *gin.Context) {
	l, err := a.ls.Top(c.Request.Context(), leaderboard.DefaultTop)
	if err != nil {
		a.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboardEntries(l.Entries))
}

var maxScore = decimal.NewFromInt(math.MaxInt64)

// SubmitScore accepts {username, score} where username must be a JSON string
// and score a JSON number. Fractional scores are rounded to the nearest integer.
func (a *API) SubmitScore(c *gin.Context) {
	var body map[string]any

	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		a.writeError(c, leaderboard.ErrInvalidEntry)
		return
	}

	username, ok := body["username"].(string)
	if !ok {
		a.writeError(c, leaderboard.ErrInvalidEntry)
		return
	}

	n, ok := body["score"].(json.Number)
	if !ok {
		a.writeError(c, leaderboard.ErrInvalidEntry)
		return
	}

	score, err := decimal.NewFromString(n.String())
	if err != nil {
		a.writeError(c, leaderboard.ErrInvalidEntry)
		return
	}

	score = score.Round(0)
	if score.IsNegative() || score.GreaterThan(maxScore) {
		a.writeError(c, leaderboard.ErrInvalidEntry)
		return
	}

	if _, err := a.ls.Submit(c.Request.Context(), domain.LeaderboardEntry{
		Username: username,
		Score:    score.IntPart(),
	}); err != nil {
		a.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Message{Message: "Score added"})
}

func (a *API) GoogleAuth(c *gin.Context) {
	a.writeError(c, errors.New(errors.CodeUnimplemented,
		errors.WithMessagef("Google OAuth not implemented. This would redirect to Google.")))
}

func (a *API) GoogleAuthCallback(c *gin.Context) {
	a.writeError(c, errors.New(errors.CodeUnimplemented,
		errors.WithMessagef("Google OAuth callback not implemented.")))
}

func (a *API) writeError(c *gin.Context, err error) {
	e := errors.Convert(err)

	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.AbortWithStatusJSON(e.HTTPStatusCode(), Message{Message: "Internal server error"})
		return
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), Message{Message: e.Message})
}

// cors allows browsers on the configured origins to call the API. "*" allows any origin.
func (a *API) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (slices.Contains(a.origins, origin) || slices.Contains(a.origins, "*")) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func toLeaderboardEntries(entries []domain.LeaderboardEntry) []LeaderboardEntry {
	resp := make([]LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, LeaderboardEntry(e))
	}
	return resp
}
