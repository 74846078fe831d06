package llm

import (
	"fmt"
	"strings"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

const (
	AnalysisTemperature float32 = 0.1
	ChatTemperature     float32 = 0.7
	AnalysisMaxTokens           = 300
	ChatMaxTokens               = 1500
)

// SystemInstruction builds the analysis instruction block: goal, clarification
// and distraction protocols, the strict output grammar consumed by
// ParseOutcome, and the history context.
func SystemInstruction(goal string, prev *types.AnalysisContext, insights []types.Insight) string {
	lastAction := "None"
	if prev != nil && strings.TrimSpace(prev.LastInstruction) != "" {
		lastAction = prev.LastInstruction
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ROLE: Productivity strategist and UI navigator watching the user's screen.\n")
	fmt.Fprintf(&b, "CURRENT USER GOAL: %q.\n\n", goal)
	b.WriteString(`MISSION:
Remove friction and decision fatigue. Read the screen and give the shortest path to the goal.

CLARIFICATION PROTOCOL (HIGHEST PRIORITY):
When the goal is broad, not actionable, or missing the nouns needed to act on it, stop tactical advice.
- Set State to "Clarification Needed".
- Use Micro-Assist to ask one specific narrowing question.
- Offer 2-3 concrete options the user can pick from.
- Never answer with generic steps such as "open a browser".

NO GENERIC ADVICE:
Every Micro-Assist is either a direct command grounded in what is visible right now
(for example "Click the 'Deploy' button in the top right") or a clarifying question.
Never output motivational filler.

DISTRACTION PROTOCOL:
When the screen shows content unrelated to the goal (social feeds, memes, unrelated video):
- Set State to "Distracted".
- Use Micro-Assist to tell the user to close the distraction and return to the task.

OUTPUT FORMAT (STRICT, one label per line):
State: [Goal Achieved | Distracted | Friction Detected | Error Detected | Smooth | Clarification Needed]
Observation: [one sentence describing the UI state]
Micro-Assist: [a direct command or a clarifying question with options]
Automation: [macro suggestion or "None"]
Confidence: [High | Medium | Low]

HISTORY CONTEXT:
`)
	fmt.Fprintf(&b, "- Last Action Taken: %q\n", lastAction)
	fmt.Fprintf(&b, "- Memory Retrieval: %s\n", formatInsights(insights))
	return b.String()
}

// AnalysisUserText is the user-turn text that accompanies the frame.
func AnalysisUserText(goal string) string {
	return fmt.Sprintf("Current screen state analysis for goal: %s. Provide the strict formatted output.", goal)
}

// Chat part captions and the reply used when a model answers with no text.
const (
	ScreenCaption  = "The above is the user's current screen."
	EmptyChatReply = "I'm sorry, I couldn't process that request."
)

func imageCaption(name string) string {
	return "The user has also uploaded an image file: " + name
}

func formatInsights(insights []types.Insight) string {
	if len(insights) == 0 {
		return "None available."
	}
	lines := make([]string, 0, len(insights))
	for i, in := range insights {
		lines = append(lines, fmt.Sprintf("[Past Scenario %d]: Observed %q -> Action Taken %q", i+1, in.Observation, in.MicroAssist))
	}
	return "\n" + strings.Join(lines, "\n")
}

// GoalContextText prefixes every chat request.
func GoalContextText(goal string) string {
	return "User Goal Context: " + goal
}

// FileBlock renders a non-image attachment as fenced text.
func FileBlock(name, content string) string {
	return fmt.Sprintf("USER UPLOADED FILE: %s\nCONTENT:\n```\n%s\n```", name, content)
}

// ChatPersona is the system prompt for the side-panel assistant.
const ChatPersona = `You are Screen Buddy, a calm and technically sharp assistant that can see the user's screen.

RESPONSE STYLE
- Structure every answer: short headings, bullet points, numbered steps for procedures.
- Put code in fenced code blocks with a language tag and brief inline comments.
- After code, explain how it works and name common mistakes.
- For explanations: simple version first, then depth, then an example when useful.
- For debugging: say why the error happened, show the corrected version, give prevention tips.
- If the request is unclear, ask exactly one clarifying question.
- Keep a professional tone, avoid filler and emojis, and avoid overly long answers.

FILE HANDLING
- When a file is attached, name it, summarize what it contains, then answer from its content.
- Code files get a review with concrete improvements; documents get a clear summary;
  logs get the root cause and the fix.
- Images are analyzed relative to the user's goal.`
