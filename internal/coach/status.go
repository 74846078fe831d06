package coach

import (
	"sync"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

// Phase is the analysis loop state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseCapturing Phase = "capturing"
	PhaseAnalyzing Phase = "analyzing"
	PhaseCooldown  Phase = "cooldown"
	PhaseHalted    Phase = "halted"
)

// Status messages surfaced to the user.
const (
	MsgAnalysing     = "Analysing..."
	MsgSafetyLocked  = "Safety Locked"
	MsgExhausted     = "All keys exhausted"
	MsgNoCredentials = "No API keys configured"
)

// Status is a point-in-time view of the session for the control plane.
type Status struct {
	Phase            Phase                  `json:"phase"`
	Capturing        bool                   `json:"capturing"`
	Analyzing        bool                   `json:"analyzing"`
	Paused           bool                   `json:"paused"`
	Goal             string                 `json:"goal"`
	Message          string                 `json:"message,omitempty"`
	CaptureError     string                 `json:"captureError,omitempty"`
	NeedsReconfigure bool                   `json:"needsReconfigure"`
	QuotaExceeded    bool                   `json:"quotaExceeded"`
	Usage            int                    `json:"usage"`
	Remaining        int                    `json:"remaining"`
	DailyLimit       int                    `json:"dailyLimit"`
	SafetyLimit      int                    `json:"safetyLimit"`
	KeyCount         int                    `json:"keyCount"`
	KeyIndex         int                    `json:"keyIndex"`
	Current          *types.AnalysisOutcome `json:"current,omitempty"`
	// SpeakText is the current micro-assist when it has not been handed out
	// for speech before; empty otherwise.
	SpeakText string `json:"speakText,omitempty"`
}

// Signal is the shared "reconfigure credentials" flag. Both orchestrators
// raise it on pool exhaustion; replacing the credentials clears it.
type Signal struct {
	mu     sync.Mutex
	raised bool
	source Op
}

// Raise sets the flag and reports whether it was previously clear.
func (s *Signal) Raise(source Op) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.raised
	s.raised, s.source = true, source
	return !was
}

func (s *Signal) Clear() {
	s.mu.Lock()
	s.raised, s.source = false, ""
	s.mu.Unlock()
}

func (s *Signal) Raised() (bool, Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raised, s.source
}
