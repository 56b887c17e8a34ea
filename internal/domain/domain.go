package domain

import (
	"time"

	"github.com/victornm/quizbattle/internal/errors"
)

const (
	DefaultCategory   = "9"
	DefaultDifficulty = "easy"
)

var (
	// ErrEmptyQuestionSet is returned when no question exists for a category/difficulty pair.
	ErrEmptyQuestionSet = errors.New(errors.CodeNotFound,
		errors.WithMessagef("No questions found for this category/difficulty."))

	ErrInvalidCredentials = errors.New(errors.CodeUnauthenticated,
		errors.WithMessagef("Invalid credentials"))

	ErrUsernameExists = errors.New(errors.CodeAlreadyExists,
		errors.WithMessagef("Username already exists"))
)

// Question is a multiple-choice question as stored in the question source.
type Question struct {
	ID          int64
	Category    string
	Difficulty  string
	Text        string
	Correct     string
	Distractors []string
}

// PresentedQuestion is a Question with the display order of all its answers.
type PresentedQuestion struct {
	Question
	Answers []string
}

type User struct {
	Username     string
	PasswordHash []byte
}

// LeaderboardEntry is the final score of one completed quiz session.
type LeaderboardEntry struct {
	ID       string
	Username string
	Score    int64
	Date     time.Time
}

// Leaderboard is the ranked list of entries, highest score first.
type Leaderboard struct {
	Entries []LeaderboardEntry
}
