package enrollment

import (
	"sort"
	"time"
)

type Step int

const (
	StepPersonalData Step = iota + 1
	StepProgramSelection
	StepDocuments
	StepConfirmation // terminal
)

func (s Step) String() string {
	switch s {
	case StepPersonalData:
		return "personal_data"
	case StepProgramSelection:
		return "program_selection"
	case StepDocuments:
		return "documents"
	case StepConfirmation:
		return "confirmation"
	default:
		return "unknown"
	}
}

// Redirect is the navigation scheduled after a successful submission.
// Due is set once the delay has elapsed.
type Redirect struct {
	To          string        `json:"to"`
	After       time.Duration `json:"after"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	Due         bool          `json:"due"`
}

// Confirmation summarizes a submitted enrollment, once the draft is discarded.
type Confirmation struct {
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	StudyArea   string `json:"study_area"`
	Program     string `json:"program"`
	StartPeriod string `json:"start_period"`
}

// State is an enrollment session.
type State struct {
	ID              string        `json:"id"`
	Step            Step          `json:"step"`
	Completed       []Step        `json:"completed"`
	Draft           Draft         `json:"draft"`
	Error           string        `json:"error"`
	Submitting      bool          `json:"submitting"`
	SubmittingSince time.Time     `json:"submitting_since"` // start of the pending submission
	Redirect        *Redirect     `json:"redirect,omitempty"`
	Confirmation    *Confirmation `json:"confirmation,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func NewState(id string, now time.Time) State {
	return State{
		ID:        id,
		Step:      StepPersonalData,
		Completed: []Step{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SubmissionPending reports whether a submission started less than SubmissionTimeout before now.
func (st State) SubmissionPending(now time.Time) bool {
	return st.Submitting && now.Sub(st.SubmittingSince) < SubmissionTimeout
}

func (st State) IsTerminal() bool {
	return st.Step == StepConfirmation
}

func (st State) IsCompleted(step Step) bool {
	for _, s := range st.Completed {
		if s == step {
			return true
		}
	}
	return false
}

func (st *State) markCompleted(step Step) {
	if st.IsCompleted(step) {
		return
	}
	st.Completed = append(st.Completed, step)
	sort.Slice(st.Completed, func(i, j int) bool { return st.Completed[i] < st.Completed[j] })
}

// advance marks the current step completed and moves forward.
func (st *State) advance() {
	st.markCompleted(st.Step)
	if st.Step < StepConfirmation {
		st.Step++
	}
	st.Error = ""
}

// back moves one step backward, except from the first and the terminal steps.
// Completed steps are kept.
func (st *State) back() bool {
	if st.Step <= StepPersonalData || st.IsTerminal() {
		return false
	}
	st.Step--
	st.Error = ""
	return true
}
