package coach

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

var (
	ErrNoCredentials = errors.New("coach: no API keys configured")
	ErrEmptyMessage  = errors.New("coach: empty chat message")
)

// ChatErrorReply is shown in place of a model reply when every attempt failed.
const ChatErrorReply = "I'm sorry, I encountered a connection error (likely quota exceeded or network issue). Please check your API keys or try again in a moment."

type ChatResult struct {
	Reply     types.ChatTurn
	Attempts  int
	Err       *llm.ClassifiedError
	Exhausted bool
}

// Chat sends user-initiated messages with the current screen attached. It
// shares the credential pool, quota guard and reconfigure signal with the
// analysis loop but reads frames through its own source.
type Chat struct {
	cfg  Config
	deps Deps
	fo   *failover
	goal func() string

	mu    sync.Mutex
	turns []types.ChatTurn
}

// NewChat builds a chat orchestrator. goal supplies the current session goal
// and may be nil.
func NewChat(deps Deps, cfg Config, goal func() string) *Chat {
	cfg = cfg.withDefaults()
	deps = deps.withDefaults()
	if goal == nil {
		goal = func() string { return "" }
	}
	return &Chat{cfg: cfg, deps: deps, fo: deps.failover(cfg), goal: goal}
}

// LoadHistory seeds the transcript from the backend.
func (c *Chat) LoadHistory(ctx context.Context) {
	turns, err := c.deps.Backend.ChatHistory(ctx)
	if err != nil {
		log.Printf("coach: preload chat history: %v", err)
		return
	}
	c.mu.Lock()
	c.turns = append([]types.ChatTurn(nil), turns...)
	c.trimLocked()
	c.mu.Unlock()
}

// Turns returns the transcript in chronological order.
func (c *Chat) Turns() []types.ChatTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.ChatTurn(nil), c.turns...)
}

// Send appends the user turn immediately, then calls providers with
// failover. Failures produce an apology turn rather than an error; the error
// return is reserved for requests that never reach a provider.
func (c *Chat) Send(ctx context.Context, text string, file *types.Attachment) (ChatResult, error) {
	text = strings.TrimSpace(text)
	if text == "" && file == nil {
		return ChatResult{}, ErrEmptyMessage
	}
	if c.deps.Pool.Len() == 0 {
		c.deps.Signal.Raise(OpChat)
		return ChatResult{}, ErrNoCredentials
	}

	goal := c.goal()
	display := text
	if file != nil {
		display = strings.TrimSpace("[File: " + file.Name + "] " + text)
	}
	userTurn := types.ChatTurn{Role: types.RoleUser, Text: display, Timestamp: c.deps.Clock().UnixMilli()}

	c.mu.Lock()
	history := append([]types.ChatTurn(nil), c.turns...)
	c.appendLocked(userTurn)
	c.mu.Unlock()
	c.deps.Observer.ChatTurn(userTurn)
	c.logTurn(userTurn, goal)

	var screenshot []byte
	if c.deps.Frames != nil {
		screenshot = c.deps.Frames.TakeSnapshot()
	}
	req := llm.ChatRequest{
		Message:    text,
		History:    history,
		Screenshot: screenshot,
		Goal:       goal,
		File:       file,
	}

	var reply string
	fo := c.fo.run(ctx, OpChat, func(ctx context.Context, p llm.Provider) error {
		r, err := p.SendChat(ctx, req)
		if err == nil {
			reply = r
		}
		return err
	})

	res := ChatResult{Attempts: fo.Attempts, Err: fo.Err, Exhausted: fo.Exhausted}
	modelTurn := types.ChatTurn{Role: types.RoleModel, Timestamp: c.deps.Clock().UnixMilli()}
	if fo.ok() {
		modelTurn.Text = reply
	} else {
		modelTurn.Text = ChatErrorReply
		if fo.Err != nil {
			log.Printf("coach: chat failed after %d attempt(s): %v", fo.Attempts, fo.Err)
		}
	}
	res.Reply = modelTurn

	c.mu.Lock()
	c.appendLocked(modelTurn)
	c.mu.Unlock()
	c.deps.Observer.ChatTurn(modelTurn)

	switch {
	case fo.ok():
		c.logTurn(modelTurn, goal)
	case fo.Exhausted:
		c.deps.Signal.Raise(OpChat)
		c.deps.Observer.Exhausted(OpChat)
	}
	return res, nil
}

func (c *Chat) appendLocked(t types.ChatTurn) {
	c.turns = append(c.turns, t)
	c.trimLocked()
}

func (c *Chat) trimLocked() {
	if over := len(c.turns) - c.cfg.ChatHistoryLimit; over > 0 {
		c.turns = append([]types.ChatTurn(nil), c.turns[over:]...)
	}
}

func (c *Chat) logTurn(t types.ChatTurn, goal string) {
	backend := c.deps.Backend
	Detach("log chat", func(ctx context.Context) error {
		return backend.LogChat(ctx, ChatLog{
			Role:        t.Role,
			Text:        t.Text,
			GoalContext: goal,
			Timestamp:   t.Timestamp,
		})
	})
}
