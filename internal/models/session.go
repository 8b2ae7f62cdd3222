// Package models defines session structures for the survey flow.
package models

import "time"

// PostMode marks a session that is collecting a post-survey amendment
// instead of survey answers.
type PostMode string

const (
	// PostModeNone means the session is in the ordered survey sequence.
	PostModeNone PostMode = ""
	// PostModeContact means the next text input is contact details.
	PostModeContact PostMode = "contact"
	// PostModeComment means the next text input is a free comment.
	PostModeComment PostMode = "comment"
)

// Session is the ephemeral per-user conversation state: the current position
// in the step sequence plus every answer accepted so far. Answers accumulate
// monotonically; navigation never removes a written key.
type Session struct {
	UserID       int64             `json:"user_id"`
	SubmissionID string            `json:"submission_id"` // nonce assigned at begin
	Step         int               `json:"step"`          // index into the step sequence
	Answers      map[string]string `json:"answers"`
	Post         PostMode          `json:"post,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
