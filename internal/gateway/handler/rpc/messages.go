package rpc

import (
	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

type Empty struct{}

type StartRequest struct {
	Goal string `json:"goal,omitempty"`
}

type StatusResponse struct {
	Status  coach.Status            `json:"status"`
	History []types.AnalysisOutcome `json:"history"`
}

type SetGoalRequest struct {
	Goal string `json:"goal"`
}

// SetCredentialsRequest carries the pasted key list, one per line or comma
// separated.
type SetCredentialsRequest struct {
	Keys string `json:"keys"`
}

type SetCredentialsResponse struct {
	KeyCount int      `json:"keyCount"`
	Masked   []string `json:"masked"`
}

type SendChatRequest struct {
	Text string            `json:"text"`
	File *types.Attachment `json:"file,omitempty"`
}

type SendChatResponse struct {
	Reply     types.ChatTurn `json:"reply"`
	Attempts  int            `json:"attempts"`
	Exhausted bool           `json:"exhausted"`
	Error     string         `json:"error,omitempty"`
}

type ChatHistoryResponse struct {
	Turns []types.ChatTurn `json:"turns"`
}

type CaptureErrorRequest struct {
	// Kind is a capture error kind or a browser DOMException name.
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}
