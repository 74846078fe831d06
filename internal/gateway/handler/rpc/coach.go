// Package rpc exposes the coaching session control plane as Connect RPC
// procedures with JSON bodies.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

const ServiceName = "coach.v1.CoachService"

const (
	ProcedureStart              = "/" + ServiceName + "/Start"
	ProcedureStop               = "/" + ServiceName + "/Stop"
	ProcedureStatus             = "/" + ServiceName + "/Status"
	ProcedureSetGoal            = "/" + ServiceName + "/SetGoal"
	ProcedureSetCredentials     = "/" + ServiceName + "/SetCredentials"
	ProcedureSendChat           = "/" + ServiceName + "/SendChat"
	ProcedureChatHistory        = "/" + ServiceName + "/ChatHistory"
	ProcedureReportCaptureError = "/" + ServiceName + "/ReportCaptureError"
)

// Router is the subset of chi.Router and http.ServeMux used to mount handlers.
type Router interface {
	Handle(pattern string, h http.Handler)
}

type CoachHandler struct {
	analyzer *coach.Analyzer
	chat     *coach.Chat
	// forget drops cached provider clients after the credentials change.
	forget func()
}

func NewCoachHandler(analyzer *coach.Analyzer, chat *coach.Chat, forget func()) *CoachHandler {
	if forget == nil {
		forget = func() {}
	}
	return &CoachHandler{analyzer: analyzer, chat: chat, forget: forget}
}

// Mount registers every procedure on r.
func (h *CoachHandler) Mount(r Router, opts ...connect.HandlerOption) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	r.Handle(ProcedureStart, connect.NewUnaryHandler(ProcedureStart, h.Start, opts...))
	r.Handle(ProcedureStop, connect.NewUnaryHandler(ProcedureStop, h.Stop, opts...))
	r.Handle(ProcedureStatus, connect.NewUnaryHandler(ProcedureStatus, h.Status, opts...))
	r.Handle(ProcedureSetGoal, connect.NewUnaryHandler(ProcedureSetGoal, h.SetGoal, opts...))
	r.Handle(ProcedureSetCredentials, connect.NewUnaryHandler(ProcedureSetCredentials, h.SetCredentials, opts...))
	r.Handle(ProcedureSendChat, connect.NewUnaryHandler(ProcedureSendChat, h.SendChat, opts...))
	r.Handle(ProcedureChatHistory, connect.NewUnaryHandler(ProcedureChatHistory, h.ChatHistory, opts...))
	r.Handle(ProcedureReportCaptureError, connect.NewUnaryHandler(ProcedureReportCaptureError, h.ReportCaptureError, opts...))
}

func (h *CoachHandler) Start(ctx context.Context, req *connect.Request[StartRequest]) (*connect.Response[StatusResponse], error) {
	if goal := strings.TrimSpace(req.Msg.Goal); goal != "" {
		h.analyzer.SetGoal(goal)
	}
	if err := h.analyzer.Start(ctx); err != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("start capture: %w", err))
	}
	return connect.NewResponse(h.status()), nil
}

func (h *CoachHandler) Stop(_ context.Context, _ *connect.Request[Empty]) (*connect.Response[StatusResponse], error) {
	h.analyzer.Stop()
	return connect.NewResponse(h.status()), nil
}

func (h *CoachHandler) Status(_ context.Context, _ *connect.Request[Empty]) (*connect.Response[StatusResponse], error) {
	return connect.NewResponse(h.status()), nil
}

func (h *CoachHandler) SetGoal(_ context.Context, req *connect.Request[SetGoalRequest]) (*connect.Response[StatusResponse], error) {
	h.analyzer.SetGoal(req.Msg.Goal)
	return connect.NewResponse(h.status()), nil
}

func (h *CoachHandler) SetCredentials(ctx context.Context, req *connect.Request[SetCredentialsRequest]) (*connect.Response[SetCredentialsResponse], error) {
	creds := coach.ParseCredentials(req.Msg.Keys)
	if len(creds) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("at least one API key is required"))
	}
	if err := h.analyzer.Reconfigure(ctx, creds); err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("save credentials: %w", err))
	}
	h.forget()
	out := &SetCredentialsResponse{KeyCount: len(creds), Masked: make([]string, 0, len(creds))}
	for _, c := range creds {
		out.Masked = append(out.Masked, c.Masked())
	}
	return connect.NewResponse(out), nil
}

func (h *CoachHandler) SendChat(ctx context.Context, req *connect.Request[SendChatRequest]) (*connect.Response[SendChatResponse], error) {
	res, err := h.chat.Send(ctx, req.Msg.Text, req.Msg.File)
	switch {
	case errors.Is(err, coach.ErrEmptyMessage):
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, coach.ErrNoCredentials):
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	case err != nil:
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	out := &SendChatResponse{Reply: res.Reply, Attempts: res.Attempts, Exhausted: res.Exhausted}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return connect.NewResponse(out), nil
}

func (h *CoachHandler) ChatHistory(_ context.Context, _ *connect.Request[Empty]) (*connect.Response[ChatHistoryResponse], error) {
	turns := h.chat.Turns()
	if turns == nil {
		turns = []types.ChatTurn{}
	}
	return connect.NewResponse(&ChatHistoryResponse{Turns: turns}), nil
}

func (h *CoachHandler) ReportCaptureError(_ context.Context, req *connect.Request[CaptureErrorRequest]) (*connect.Response[StatusResponse], error) {
	h.analyzer.ReportCaptureError(coach.NewCaptureError(coach.CaptureErrorKind(req.Msg.Kind), req.Msg.Message))
	return connect.NewResponse(h.status()), nil
}

func (h *CoachHandler) status() *StatusResponse {
	history := h.analyzer.History()
	for i := range history {
		history[i].Screenshot = nil
	}
	if history == nil {
		history = []types.AnalysisOutcome{}
	}
	return &StatusResponse{Status: h.analyzer.Status(), History: history}
}
