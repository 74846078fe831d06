package types

import "strings"

// Analysis outcome -----------------------------------------------------------------

type State string

const (
	StateSmooth              State = "Smooth"
	StateFrictionDetected    State = "Friction Detected"
	StateErrorDetected       State = "Error Detected"
	StateDistracted          State = "Distracted"
	StateGoalAchieved        State = "Goal Achieved"
	StateClarificationNeeded State = "Clarification Needed"
	StateUnknown             State = "Initializing..."
)

// Uninteresting reports whether the state is a steady-state confirmation that
// should not be appended to the visible history log.
func (s State) Uninteresting() bool {
	return s == StateSmooth || s == StateUnknown || s == ""
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
	ConfidenceNone   Confidence = "---"
)

// AnalysisOutcome is the structured result of one successful analysis cycle.
// An empty AutomationSuggestion, nil Screenshot or empty Goal means absent.
type AnalysisOutcome struct {
	ID                   string     `json:"id,omitempty"`
	State                State      `json:"state"`
	Observation          string     `json:"observation"`
	MicroAssist          string     `json:"microAssist"`
	Confidence           Confidence `json:"confidence"`
	AutomationSuggestion string     `json:"automationSuggestion,omitempty"`
	Timestamp            int64      `json:"timestamp"`
	Screenshot           []byte     `json:"screenshot,omitempty"`
	Goal                 string     `json:"goal,omitempty"`
}

// Clone returns a copy that shares no mutable memory with o.
func (o AnalysisOutcome) Clone() AnalysisOutcome {
	out := o
	if o.Screenshot != nil {
		out.Screenshot = append([]byte(nil), o.Screenshot...)
	}
	return out
}

// SameDirective reports whether two outcomes carry the same (state, micro-assist) pair.
func (o AnalysisOutcome) SameDirective(other AnalysisOutcome) bool {
	return o.State == other.State && o.MicroAssist == other.MicroAssist
}

// AnalysisContext carries continuity from the previous successful cycle.
type AnalysisContext struct {
	LastObservation string `json:"lastObservation"`
	LastInstruction string `json:"lastInstruction"`
}

// ContextFrom derives the continuity block for the next cycle.
func ContextFrom(o AnalysisOutcome) *AnalysisContext {
	return &AnalysisContext{
		LastObservation: o.Observation,
		LastInstruction: o.MicroAssist,
	}
}

// Insight is one retrieved similar past scenario.
type Insight struct {
	Score       float64 `json:"score"`
	Observation string  `json:"observation"`
	MicroAssist string  `json:"microAssist"`
}

// Chat -----------------------------------------------------------------------------

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type ChatTurn struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Attachment is a user-supplied file sent along with a chat message.
type Attachment struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

func (a *Attachment) IsImage() bool {
	return a != nil && strings.HasPrefix(strings.ToLower(a.MIMEType), "image/")
}

func (a *Attachment) IsPDF() bool {
	if a == nil {
		return false
	}
	return strings.EqualFold(a.MIMEType, "application/pdf") ||
		strings.HasSuffix(strings.ToLower(a.Name), ".pdf")
}
