// Package flow drives the survey conversation state machine.
package flow

import "github.com/rentagg/feedbot/internal/records"

// StepKind selects how a step's input is interpreted.
type StepKind string

const (
	// StepFree accepts any text.
	StepFree StepKind = "free"
	// StepChoice accepts one of a small enumerated option set, or text.
	StepChoice StepKind = "choice"
	// StepScale accepts 1–10 buttons, or any text verbatim (numeric
	// validation is advisory, not a rejection).
	StepScale StepKind = "scale"
)

// ChoiceOption is one enumerated answer: the opaque token on the wire and
// the catalogue key of its display string.
type ChoiceOption struct {
	Token    string
	LabelKey string
}

// Step is one position in the ordered survey sequence. The chain is linear:
// at most one predecessor and one successor, traversed by navigation.
type Step struct {
	Name      string // token namespace in callbacks
	Column    string // row store column the answer lands in
	PromptKey string // catalogue key of the question text
	Kind      StepKind
	Options   []ChoiceOption
}

// SurveySteps returns the ordered step sequence: company capture followed
// by the five survey questions. The engine works with any ordered list.
func SurveySteps() []Step {
	return []Step{
		{Name: "company", Column: records.ColCompany, PromptKey: "ask_company", Kind: StepFree},
		{Name: "q1", Column: records.ColQ1, PromptKey: "q1", Kind: StepChoice, Options: []ChoiceOption{
			{Token: "1", LabelKey: "q1_opt1"},
			{Token: "2", LabelKey: "q1_opt2"},
			{Token: "3", LabelKey: "q1_opt3"},
		}},
		{Name: "q2", Column: records.ColQ2, PromptKey: "q2", Kind: StepScale},
		{Name: "q3", Column: records.ColQ3, PromptKey: "q3", Kind: StepFree},
		{Name: "q4", Column: records.ColQ4, PromptKey: "q4", Kind: StepFree},
		{Name: "q5", Column: records.ColQ5, PromptKey: "q5", Kind: StepScale},
	}
}

// scaleTokens are the accepted button tokens for scale steps.
var scaleTokens = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}

// validScaleToken reports whether a callback token is a valid scale button.
func validScaleToken(token string) bool {
	for _, t := range scaleTokens {
		if t == token {
			return true
		}
	}
	return false
}
