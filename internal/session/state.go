package session

import "github.com/dgallion1/pagequiz/internal/prompt"

// Phase is the quiz cycle position derived from State.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseQuestionShown Phase = "question_shown"
	PhaseFeedbackShown Phase = "feedback_shown"
)

// State is the per-session quiz state. Page and Image are meaningful only
// once a page has been drawn (Image != nil).
type State struct {
	Page      int
	Chapter   string
	Image     []byte // PNG of the drawn page
	Question  string
	Archetype prompt.Archetype
	Answer    string
	Feedback  string
}

// Phase derives the cycle position from which fields are set.
func (s State) Phase() Phase {
	switch {
	case s.Question == "":
		return PhaseIdle
	case s.Feedback == "":
		return PhaseQuestionShown
	default:
		return PhaseFeedbackShown
	}
}

// HasPage reports whether a page has been drawn.
func (s State) HasPage() bool {
	return s.Image != nil
}
