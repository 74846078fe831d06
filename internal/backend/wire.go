// Package backend implements the coach's history, chat log and similarity
// store: in-process over the gateway repositories, or as a REST client of a
// remote gateway.
package backend

import (
	"time"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

// REST routes shared by the client and the gateway handler.
const (
	PathHistory     = "/api/history"
	PathChatHistory = "/api/chat/history"
	PathChatLog     = "/api/chat/log"
	PathLog         = "/api/log"
	PathContext     = "/api/context"
	PathLastAction  = "/api/last-action"
)

type HistoryItem struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Goal        string    `json:"goal"`
	Observation string    `json:"observation"`
	MicroAssist string    `json:"microAssist"`
	State       string    `json:"state"`
	Confidence  string    `json:"confidence"`
	SnapshotURL string    `json:"snapshotUrl,omitempty"`
}

type ChatItem struct {
	Role        string    `json:"role"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	GoalContext string    `json:"goalContext,omitempty"`
}

type ChatLogRequest struct {
	Role        string `json:"role"`
	Text        string `json:"text"`
	GoalContext string `json:"goalContext,omitempty"`
}

type LogRequest struct {
	ID          string    `json:"id,omitempty"`
	Goal        string    `json:"goal"`
	Observation string    `json:"observation"`
	MicroAssist string    `json:"microAssist"`
	State       string    `json:"state"`
	Confidence  string    `json:"confidence"`
	Vector      []float32 `json:"vector,omitempty"`
	Timestamp   int64     `json:"timestamp,omitempty"`
	// Screenshot is an optional data URL or bare base64 JPEG.
	Screenshot string `json:"screenshot,omitempty"`
}

type LogResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
}

type ContextRequest struct {
	Vector []float32 `json:"vector"`
}

type ContextResponse struct {
	Context []types.Insight `json:"context"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h HistoryItem) Outcome() types.AnalysisOutcome {
	return types.AnalysisOutcome{
		ID:          h.ID,
		State:       types.State(h.State),
		Observation: h.Observation,
		MicroAssist: h.MicroAssist,
		Confidence:  types.Confidence(h.Confidence),
		Timestamp:   h.Timestamp.UnixMilli(),
		Goal:        h.Goal,
	}
}

func HistoryItemFrom(o types.AnalysisOutcome) HistoryItem {
	return HistoryItem{
		ID:          o.ID,
		Timestamp:   time.UnixMilli(o.Timestamp).UTC(),
		Goal:        o.Goal,
		Observation: o.Observation,
		MicroAssist: o.MicroAssist,
		State:       string(o.State),
		Confidence:  string(o.Confidence),
	}
}

func (c ChatItem) Turn() types.ChatTurn {
	return types.ChatTurn{Role: types.Role(c.Role), Text: c.Text, Timestamp: c.Timestamp.UnixMilli()}
}

func ChatItemFrom(t types.ChatTurn) ChatItem {
	return ChatItem{Role: string(t.Role), Text: t.Text, Timestamp: time.UnixMilli(t.Timestamp).UTC()}
}

func (r LogRequest) AnalysisLog() coach.AnalysisLog {
	return coach.AnalysisLog{
		ID:          r.ID,
		Goal:        r.Goal,
		Observation: r.Observation,
		MicroAssist: r.MicroAssist,
		State:       types.State(r.State),
		Confidence:  types.Confidence(r.Confidence),
		Vector:      r.Vector,
		Timestamp:   r.Timestamp,
	}
}

func LogRequestFrom(e coach.AnalysisLog) LogRequest {
	return LogRequest{
		ID:          e.ID,
		Goal:        e.Goal,
		Observation: e.Observation,
		MicroAssist: e.MicroAssist,
		State:       string(e.State),
		Confidence:  string(e.Confidence),
		Vector:      e.Vector,
		Timestamp:   e.Timestamp,
	}
}
