package llm

import (
	"regexp"
	"strings"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

const (
	FallbackObservation = "Scanning UI..."
	FallbackMicroAssist = "Processing session..."
)

var (
	reState       = regexp.MustCompile(`(?i)State:\s*(.+)`)
	reObservation = regexp.MustCompile(`(?i)Observation:\s*(.+)`)
	reMicroAssist = regexp.MustCompile(`(?i)Micro-Assist:\s*(.+)`)
	reAutomation  = regexp.MustCompile(`(?i)Automation:\s*(.+)`)
	reConfidence  = regexp.MustCompile(`(?i)Confidence:\s*(.+)`)
)

// stateRules is checked in order; the first rule with a matching needle wins.
var stateRules = []struct {
	needles []string
	state   types.State
}{
	{[]string{"achieved", "completed", "success"}, types.StateGoalAchieved},
	{[]string{"clarif"}, types.StateClarificationNeeded},
	{[]string{"distracted"}, types.StateDistracted},
	{[]string{"friction"}, types.StateFrictionDetected},
	{[]string{"error"}, types.StateErrorDetected},
	{[]string{"smooth"}, types.StateSmooth},
}

// ParseOutcome maps free model text onto an AnalysisOutcome. It never fails:
// missing labels fall back to fixed defaults. Timestamp is left zero.
func ParseOutcome(text string) types.AnalysisOutcome {
	out := types.AnalysisOutcome{
		State:       ParseState(capture(reState, text)),
		Observation: capture(reObservation, text),
		MicroAssist: capture(reMicroAssist, text),
		Confidence:  ParseConfidence(capture(reConfidence, text)),
	}
	if out.Observation == "" {
		out.Observation = FallbackObservation
	}
	if out.MicroAssist == "" {
		out.MicroAssist = FallbackMicroAssist
	}
	if auto := capture(reAutomation, text); auto != "" && !strings.EqualFold(auto, "none") {
		out.AutomationSuggestion = auto
	}
	return out
}

// ParseState classifies a raw State label value.
func ParseState(raw string) types.State {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return types.StateUnknown
	}
	for _, rule := range stateRules {
		for _, n := range rule.needles {
			if strings.Contains(v, n) {
				return rule.state
			}
		}
	}
	return types.StateUnknown
}

// ParseConfidence classifies a raw Confidence label value; Medium is the default.
func ParseConfidence(raw string) types.Confidence {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(v, "high"):
		return types.ConfidenceHigh
	case strings.Contains(v, "low"):
		return types.ConfidenceLow
	default:
		return types.ConfidenceMedium
	}
}

func capture(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
