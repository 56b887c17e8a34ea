package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/errors"
	"github.com/victornm/quizbattle/internal/question"
	"github.com/victornm/quizbattle/internal/quiz"
)

const (
	outboxSize   = 64
	writeTimeout = 10 * time.Second
)

const (
	MessageTypeState     = "state"
	MessageTypeCompleted = "completed"
	MessageTypeError     = "error"
	MessageTypeAnswer    = "answer"
)

type (
	InboundMessage struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}

	// AnswerPayload answers the question at Index, as sent in the last state message.
	AnswerPayload struct {
		Index  *int   `json:"index"`
		Answer string `json:"answer"`
	}

	OutboundMessage struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}

	PlayQuestion struct {
		ID         int64    `json:"id"`
		Category   string   `json:"category_id"`
		Difficulty string   `json:"difficulty"`
		Question   string   `json:"question"`
		Answers    []string `json:"answers"`
	}

	StatePayload struct {
		SessionID     string        `json:"session_id"`
		State         string        `json:"state"`
		Index         int           `json:"index"`
		Total         int           `json:"total"`
		Score         int           `json:"score"`
		Remaining     int           `json:"remaining"`
		Budget        int           `json:"budget"`
		Question      *PlayQuestion `json:"question,omitempty"`
		Selected      string        `json:"selected,omitempty"`
		CorrectAnswer string        `json:"correct_answer,omitempty"`
		Outcome       string        `json:"outcome,omitempty"`
	}

	AnswerResult struct {
		QuestionID int64  `json:"question_id"`
		Selected   string `json:"selected"`
		Outcome    string `json:"outcome"`
	}

	CompletedPayload struct {
		SessionID string         `json:"session_id"`
		Username  string         `json:"username"`
		Score     int            `json:"score"`
		Total     int            `json:"total"`
		Accuracy  string         `json:"accuracy"`
		Answers   []AnswerResult `json:"answers"`
	}
)

// Play runs a quiz session over a WebSocket. The server owns the session:
// it streams a state message after every change and a completed message at
// the end, and the client only sends answers. Closing the socket abandons
// the session.
func (a *API) Play(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		a.writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("username is required")))
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.checkOrigin,
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "api: ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	out := newOutbox(outboxSize)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		out.drain(conn, cancel)
	}()
	defer func() {
		out.close()
		<-writerDone
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}()

	qs, err := a.qs.ListQuestions(ctx, question.ListQuestionsRequest{
		Category:   c.DefaultQuery("category", domain.DefaultCategory),
		Difficulty: c.DefaultQuery("difficulty", domain.DefaultDifficulty),
	})
	if err != nil {
		out.push(errorMessage(ctx, err))
		return
	}

	if len(qs) == 0 {
		out.push(errorMessage(ctx, domain.ErrEmptyQuestionSet))
		return
	}

	var runner *quiz.Runner
	runner, err = quiz.NewRunner(qs, quiz.RunnerConfig{
		Username:     username,
		TimeBudget:   a.play.TimeBudget,
		TickInterval: a.play.TickInterval,
		RevealDelay:  a.play.RevealDelay,
		Shuffler:     a.shuffler,
		Reporter: quiz.ReporterFunc(func(ctx context.Context, e domain.LeaderboardEntry) error {
			a.eb.Publish(ctx, domain.EventSessionCompleted{
				SessionID: runner.ID(),
				Entry:     e,
				Total:     len(qs),
			})
			return nil
		}),
		Observer: func(s quiz.Snapshot) {
			out.push(OutboundMessage{Type: MessageTypeState, Payload: toStatePayload(runner.ID(), s)})
		},
	})
	if err != nil {
		out.push(errorMessage(ctx, err))
		return
	}

	go func() {
		defer cancel()
		a.readAnswers(conn, runner, out)
	}()

	res, err := runner.Run(ctx)
	if err != nil {
		slog.InfoContext(ctx, "api: play session ended", "session", runner.ID(), "username", username, "error", err)
		return
	}

	out.push(OutboundMessage{Type: MessageTypeCompleted, Payload: toCompletedPayload(runner.ID(), username, res)})
	runner.Wait()
}

func (a *API) readAnswers(conn *websocket.Conn, runner *quiz.Runner, out *outbox) {
	for {
		var in InboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			return
		}

		switch in.Type {
		case MessageTypeAnswer:
			var p AnswerPayload
			if err := json.Unmarshal(in.Payload, &p); err != nil || p.Index == nil {
				out.push(OutboundMessage{Type: MessageTypeError, Payload: Message{Message: "invalid answer payload"}})
				continue
			}
			runner.Submit(*p.Index, p.Answer)
		default:
			out.push(OutboundMessage{Type: MessageTypeError, Payload: Message{Message: "unsupported message type"}})
		}
	}
}

func (a *API) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range a.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func errorMessage(ctx context.Context, err error) OutboundMessage {
	e := errors.Convert(err)
	msg := e.Message
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(ctx, "api: play failed", "error", err)
		msg = "Internal server error"
	}
	return OutboundMessage{Type: MessageTypeError, Payload: Message{Message: msg}}
}

func toStatePayload(sessionID string, s quiz.Snapshot) StatePayload {
	p := StatePayload{
		SessionID: sessionID,
		State:     s.State.String(),
		Index:     s.Index,
		Total:     s.Total,
		Score:     s.Score,
		Remaining: s.Remaining,
		Budget:    s.Budget,
	}

	if s.Question != nil {
		p.Question = &PlayQuestion{
			ID:         s.Question.ID,
			Category:   s.Question.Category,
			Difficulty: s.Question.Difficulty,
			Question:   s.Question.Text,
			Answers:    s.Question.Answers,
		}
	}

	if s.State == quiz.StateAnswerRevealed {
		p.Selected = s.Selected
		p.CorrectAnswer = s.Correct
		p.Outcome = s.Outcome.String()
	}

	return p
}

func toCompletedPayload(sessionID, username string, res quiz.Result) CompletedPayload {
	p := CompletedPayload{
		SessionID: sessionID,
		Username:  username,
		Score:     res.Score,
		Total:     res.Total,
		Accuracy:  res.Accuracy().StringFixed(2),
		Answers:   make([]AnswerResult, 0, len(res.Answers)),
	}

	for _, a := range res.Answers {
		p.Answers = append(p.Answers, AnswerResult{
			QuestionID: a.QuestionID,
			Selected:   a.Selected,
			Outcome:    a.Outcome.String(),
		})
	}

	return p
}

// outbox queues messages for the single connection writer. Pushing never
// blocks, so it is safe from the session loop.
type outbox struct {
	mu     sync.Mutex
	closed bool
	ch     chan OutboundMessage
}

func newOutbox(size int) *outbox {
	return &outbox{ch: make(chan OutboundMessage, size)}
}

func (o *outbox) push(m OutboundMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	select {
	case o.ch <- m:
	default:
		slog.Warn("api: ws outbox full, dropping message", "type", m.Type)
	}
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.ch)
	}
}

// drain writes queued messages until the outbox is closed. After a write
// failure the rest is discarded and onFailure is called once.
func (o *outbox) drain(conn *websocket.Conn, onFailure func()) {
	failed := false
	for m := range o.ch {
		if failed {
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(m); err != nil {
			slog.Warn("api: ws write failed", "error", err)
			failed = true
			onFailure()
		}
	}
}
