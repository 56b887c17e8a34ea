// Package client talks to the Quiz Battle REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/errors"
)

const defaultTimeout = 10 * time.Second

// ErrNetwork is returned when the server could not be reached.
var ErrNetwork = errors.New(errors.CodeUnavailable,
	errors.WithMessagef("Network error, please check your connection and try again."))

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	base string
	http *http.Client
}

func New(c Config) *Client {
	cl := &Client{
		base: strings.TrimRight(c.BaseURL, "/"),
		http: c.HTTPClient,
	}

	if cl.http == nil {
		cl.http = &http.Client{Timeout: defaultTimeout}
	}

	return cl
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, "/register", credentials{username, password}, nil)
}

// Login returns the username confirmed by the server.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
	}

	if err := c.do(ctx, http.MethodPost, "/login", credentials{username, password}, &resp); err != nil {
		return "", err
	}

	return resp.User.Username, nil
}

type question struct {
	ID               int64    `json:"id"`
	Category         string   `json:"category_id"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

func (c *Client) Questions(ctx context.Context, category, difficulty string) ([]domain.Question, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if difficulty != "" {
		q.Set("difficulty", difficulty)
	}

	path := "/api/questions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp []question
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	qs := make([]domain.Question, 0, len(resp))
	for _, r := range resp {
		qs = append(qs, domain.Question{
			ID:          r.ID,
			Category:    r.Category,
			Difficulty:  r.Difficulty,
			Text:        r.Question,
			Correct:     r.CorrectAnswer,
			Distractors: r.IncorrectAnswers,
		})
	}

	return qs, nil
}

type leaderboardEntry struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Score    int64     `json:"score"`
	Date     time.Time `json:"date"`
}

func (c *Client) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	var resp []leaderboardEntry
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard", nil, &resp); err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(resp))
	for _, r := range resp {
		entries = append(entries, domain.LeaderboardEntry(r))
	}

	return entries, nil
}

func (c *Client) SubmitScore(ctx context.Context, username string, score int64) error {
	body := struct {
		Username string `json:"username"`
		Score    int64  `json:"score"`
	}{username, score}

	return c.do(ctx, http.MethodPost, "/api/leaderboard", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return fmt.Errorf("client: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("%s", ErrNetwork.Message),
			errors.WithCause(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var m struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&m)
		return errors.FromHTTPStatus(resp.StatusCode, m.Message)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}

	return nil
}
