package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/middleware"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/live"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
)

// Live relay message types.
const (
	LiveAudio       = "audio"
	LiveVideo       = "video"
	LiveInterrupt   = "interrupt"
	LiveInterrupted = "interrupted"
	LiveReady       = "ready"
	LiveClosed      = "closed"
	LiveError       = "error"
)

// LiveMessage is the websocket frame in both directions. Data is base64.
type LiveMessage struct {
	Type  string `json:"type"`
	Data  string `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	ID    string `json:"id,omitempty"`
}

// Pauser is the part of the analyzer the live relay drives.
type Pauser interface {
	SetPaused(paused bool)
}

// LiveHandler bridges one browser websocket to the realtime session.
// Passive analysis is paused for as long as the session runs.
type LiveHandler struct {
	mgr      *live.Manager
	pool     *coach.Pool
	analyzer Pauser
	upgrader websocket.Upgrader
}

// NewLiveHandler builds the relay. allowedOrigins is the same list the CORS
// middleware uses; browsers from other origins cannot open a session.
func NewLiveHandler(mgr *live.Manager, pool *coach.Pool, analyzer Pauser, allowedOrigins []string) *LiveHandler {
	return &LiveHandler{
		mgr:      mgr,
		pool:     pool,
		analyzer: analyzer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 64 << 10,
			CheckOrigin:     middleware.ParseOrigins(allowedOrigins).CheckWebSocket,
		},
	}
}

// GeminiKey picks the credential for the realtime session: the current key
// when it is a Gemini key, otherwise the first Gemini key in the pool.
func GeminiKey(pool *coach.Pool) (string, bool) {
	snap := pool.Snapshot()
	if snap.Current < len(snap.Creds) && snap.Creds[snap.Current].Kind == llm.ProviderGemini {
		return snap.Creds[snap.Current].Value, true
	}
	for _, c := range snap.Creds {
		if c.Kind == llm.ProviderGemini {
			return c.Value, true
		}
	}
	return "", false
}

type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(msg LiveMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := w.conn.WriteJSON(msg); err != nil {
		log.Printf("handler: live write: %v", err)
	}
}

func (h *LiveHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("handler: live upgrade: %v", err)
		return
	}
	defer conn.Close()
	out := &wsWriter{conn: conn}

	key, ok := GeminiKey(h.pool)
	if !ok {
		out.send(LiveMessage{Type: LiveError, Error: "Live mode needs a Gemini API key"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	closed := make(chan struct{})
	var closeOnce sync.Once

	id, err := h.mgr.Start(ctx, key, live.Callbacks{
		OnAudio: func(pcm []byte) {
			out.send(LiveMessage{Type: LiveAudio, Data: base64.StdEncoding.EncodeToString(pcm)})
		},
		OnInterrupted: func() { out.send(LiveMessage{Type: LiveInterrupted}) },
		OnError: func(err error) {
			out.send(LiveMessage{Type: LiveError, Error: err.Error()})
		},
		OnClose: func() {
			closeOnce.Do(func() {
				out.send(LiveMessage{Type: LiveClosed})
				close(closed)
			})
		},
	})
	if err != nil {
		msg := err.Error()
		if errors.Is(err, live.ErrActive) {
			msg = "A live session is already running"
		}
		out.send(LiveMessage{Type: LiveError, Error: msg})
		return
	}
	h.analyzer.SetPaused(true)
	defer h.analyzer.SetPaused(false)
	defer h.mgr.Stop()
	out.send(LiveMessage{Type: LiveReady, ID: id})

	incoming := make(chan LiveMessage)
	go func() {
		defer close(incoming)
		for {
			var msg LiveMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case incoming <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-incoming:
			if !ok {
				return
			}
			if err := h.relay(msg); err != nil {
				if errors.Is(err, live.ErrNotActive) {
					return
				}
				out.send(LiveMessage{Type: LiveError, Error: err.Error()})
			}
		}
	}
}

func (h *LiveHandler) relay(msg LiveMessage) error {
	switch msg.Type {
	case LiveAudio, LiveVideo:
		data, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			return err
		}
		if msg.Type == LiveAudio {
			return h.mgr.SendAudio(data)
		}
		return h.mgr.SendVideo(data)
	case LiveInterrupt:
		return h.mgr.Interrupt()
	default:
		return nil
	}
}
