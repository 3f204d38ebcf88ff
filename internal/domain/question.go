package domain

import "encoding/json"

// QuestionType mirrors the persisted numeric codes:
// 1 single choice, 2 multiple choice, 3 true/false, 4 fill-in, 5 open.
type QuestionType int

// Question is a quiz question. Answer and Analysis are never sent to
// participants while the question is live; use Public for broadcasts.
type Question struct {
	ID          int64           `json:"id"`
	Type        QuestionType    `json:"type"`
	Title       string          `json:"title"`
	Content     string          `json:"content,omitempty"`
	Options     json.RawMessage `json:"options,omitempty"`
	Answer      json.RawMessage `json:"answer,omitempty"`
	Analysis    string          `json:"analysis,omitempty"`
	Score       int             `json:"score"`
	Difficulty  int             `json:"difficulty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
}

// Public returns a copy with the answer-bearing fields stripped,
// safe to broadcast to a live session.
func (q Question) Public() Question {
	q.Answer = nil
	q.Analysis = ""
	return q
}
