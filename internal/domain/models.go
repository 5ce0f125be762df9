package domain

import "encoding/json"

// Session is a live room identified by a short numeric PIN. The presenter
// (host) switches the active dynamic and pushes slide content; participants
// join by PIN and contribute.
type Session struct {
	ID           int64           `json:"id"`
	PIN          string          `json:"pin"`
	Activity     ActivityType    `json:"type"`
	HostUserID   int64           `json:"host_user_id"`
	CurrentSlide json.RawMessage `json:"currentSlideContent,omitempty"`
}

// Participant is a joined room member. One row per join; removed on explicit
// leave or transport disconnect.
type Participant struct {
	ID        int64  `json:"id"`
	SessionID int64  `json:"session_id"`
	Name      string `json:"name"`
}

// Contribution is the generic unit handled by the aggregator and the scoring
// engine: a word-cloud entry, a ranking idea, a quiz question, or an answer
// option attached to its question via ParentID.
type Contribution struct {
	ID        int64            `json:"id"`
	SessionID *int64           `json:"session_id"`
	ParentID  *int64           `json:"parent_id,omitempty"`
	Kind      ContributionKind `json:"type"`
	Text      string           `json:"text"`
	Votes     int              `json:"votes"`
	Correct   bool             `json:"correct"`
}

// Question is the reply shape for question requests: a question contribution
// with its options inlined.
type Question struct {
	ID      int64    `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Option is a possible answer for a question.
type Option struct {
	ID      int64  `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// AnswerFeedback is the per-question outcome of a single-answer submission.
// CorrectAnswer mirrors the legacy behavior: it carries the text of the
// option the participant selected, even when that option was wrong.
type AnswerFeedback struct {
	QuestionID    int64  `json:"questionId"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
}

// MultiAnswerFeedback is the per-question outcome of a multi-answer
// submission. CorrectAnswer joins the text of every correct option.
type MultiAnswerFeedback struct {
	QuestionID     int64  `json:"questionId"`
	CorrectCount   int    `json:"correctCount"`
	IncorrectCount int    `json:"incorrectCount"`
	CorrectAnswer  string `json:"correctAnswer"`
}

// ScoreResult is the direct reply for a scored single-answer submission.
type ScoreResult struct {
	Feedback []AnswerFeedback `json:"feedback"`
	Score    int              `json:"score"`
}

// MultiScoreResult mirrors ScoreResult for the multi-answer mode, where the
// partial-credit rule can award half points.
type MultiScoreResult struct {
	Feedback []MultiAnswerFeedback `json:"feedback"`
	Score    float64               `json:"score"`
}
