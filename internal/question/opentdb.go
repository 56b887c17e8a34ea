package question

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/errors"
)

const (
	defaultOpenTDBURL = "https://opentdb.com/api.php"
	defaultAmount     = 10
)

// OpenTDB fetches multiple-choice questions from the Open Trivia DB API.
type OpenTDB struct {
	url    string
	client *http.Client
}

type OpenTDBConfig struct {
	URL        string
	HTTPClient *http.Client
}

func NewOpenTDB(c OpenTDBConfig) *OpenTDB {
	o := &OpenTDB{
		url:    c.URL,
		client: c.HTTPClient,
	}

	if o.url == "" {
		o.url = defaultOpenTDBURL
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: 10 * time.Second}
	}

	return o
}

type FetchRequest struct {
	Amount     int
	Category   string
	Difficulty string
}

type openTDBResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Category         string   `json:"category"`
		Difficulty       string   `json:"difficulty"`
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// Fetch returns questions with HTML entities decoded to plain text.
// The returned questions carry req.Category, the numeric ID the API was queried with.
func (o *OpenTDB) Fetch(ctx context.Context, req FetchRequest) ([]domain.Question, error) {
	if req.Amount <= 0 {
		req.Amount = defaultAmount
	}

	q := url.Values{}
	q.Set("amount", strconv.Itoa(req.Amount))
	q.Set("type", "multiple")
	if req.Category != "" {
		q.Set("category", req.Category)
	}
	if req.Difficulty != "" {
		q.Set("difficulty", req.Difficulty)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("opentdb: new request: %w", err)
	}

	resp, err := o.client.Do(hreq)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("opentdb: request failed"),
			errors.WithCause(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.FromHTTPStatus(resp.StatusCode, fmt.Sprintf("opentdb: unexpected status %d", resp.StatusCode))
	}

	var body openTDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("opentdb: decode response: %w", err)
	}

	if body.ResponseCode != 0 {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("Could not fetch questions. Response Code: %d", body.ResponseCode))
	}

	qs := make([]domain.Question, 0, len(body.Results))
	for _, r := range body.Results {
		ds := make([]string, 0, len(r.IncorrectAnswers))
		for _, a := range r.IncorrectAnswers {
			ds = append(ds, html.UnescapeString(a))
		}

		difficulty := r.Difficulty
		if req.Difficulty != "" {
			difficulty = req.Difficulty
		}

		qs = append(qs, domain.Question{
			Category:    req.Category,
			Difficulty:  difficulty,
			Text:        html.UnescapeString(r.Question),
			Correct:     html.UnescapeString(r.CorrectAnswer),
			Distractors: ds,
		})
	}

	return qs, nil
}
