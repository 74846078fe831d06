// Package live runs the full-duplex voice and video session with a realtime
// model. The coaching loop treats it as a black box with callbacks.
package live

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-2.5-flash-native-audio-preview-12-2025"
	DefaultVoice = "Puck"

	InputAudioMIME = "audio/pcm;rate=16000"
	VideoMIME      = "image/jpeg"
)

const persona = `You are Screen Buddy, a helpful AI copilot.
You can see the user's screen.
Be concise, friendly, and direct.
When the user speaks, listen carefully.
If you see something interesting on the screen, you can comment on it briefly.`

var (
	ErrActive    = errors.New("live: session already active")
	ErrNotActive = errors.New("live: no active session")
	ErrNoAPIKey  = errors.New("live: API key required")
)

// Callbacks receive session events. Any of them may be nil. They run on the
// session's receive goroutine.
type Callbacks struct {
	OnAudio       func(pcm []byte)
	OnInterrupted func()
	OnClose       func()
	OnError       func(err error)
}

// Session is the subset of *genai.Session the manager uses.
type Session interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

// Dialer opens a realtime session.
type Dialer func(ctx context.Context, apiKey, model string, cfg *genai.LiveConnectConfig) (Session, error)

// GenAIDialer connects through the genai SDK. A non-empty baseURL overrides
// the API endpoint.
func GenAIDialer(baseURL string) Dialer {
	return func(ctx context.Context, apiKey, model string, cfg *genai.LiveConnectConfig) (Session, error) {
		cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
		if baseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
		}
		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("live: new client: %w", err)
		}
		sess, err := client.Live.Connect(ctx, model, cfg)
		if err != nil {
			return nil, fmt.Errorf("live: connect: %w", err)
		}
		return sess, nil
	}
}

type Config struct {
	Model string
	Voice string
	Dial  Dialer
}

// Manager owns at most one live session.
type Manager struct {
	cfg Config

	mu   sync.Mutex
	sess Session
	id   string
	cb   Callbacks

	// gorilla connections allow a single concurrent writer.
	writeMu sync.Mutex
}

func NewManager(cfg Config) *Manager {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Dial == nil {
		cfg.Dial = GenAIDialer("")
	}
	return &Manager{cfg: cfg}
}

func (m *Manager) connectConfig() *genai.LiveConnectConfig {
	return &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: m.cfg.Voice},
			},
		},
		SystemInstruction: genai.NewContentFromText(persona, genai.RoleUser),
	}
}

// Start connects and begins relaying server messages to cb. It returns the
// session id.
func (m *Manager) Start(ctx context.Context, apiKey string, cb Callbacks) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", ErrNoAPIKey
	}
	m.mu.Lock()
	if m.sess != nil {
		m.mu.Unlock()
		return "", ErrActive
	}
	m.mu.Unlock()

	sess, err := m.cfg.Dial(ctx, apiKey, m.cfg.Model, m.connectConfig())
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.sess != nil {
		m.mu.Unlock()
		_ = sess.Close()
		return "", ErrActive
	}
	id := uuid.NewString()
	m.sess, m.id, m.cb = sess, id, cb
	m.mu.Unlock()

	log.Printf("live: session %s connected (%s)", id, m.cfg.Model)
	go m.receive(id, sess, cb)
	return id, nil
}

func (m *Manager) receive(id string, sess Session, cb Callbacks) {
	for {
		msg, err := sess.Receive()
		if err != nil {
			m.finish(id, err)
			return
		}
		sc := msg.ServerContent
		if sc == nil {
			continue
		}
		if sc.ModelTurn != nil && cb.OnAudio != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
					cb.OnAudio(p.InlineData.Data)
				}
			}
		}
		if sc.Interrupted && cb.OnInterrupted != nil {
			cb.OnInterrupted()
		}
	}
}

// finish tears down after the receive loop ends. A session already stopped
// locally reports nothing more.
func (m *Manager) finish(id string, err error) {
	m.mu.Lock()
	if m.id != id {
		m.mu.Unlock()
		return
	}
	sess, cb := m.sess, m.cb
	m.sess, m.id, m.cb = nil, "", Callbacks{}
	m.mu.Unlock()

	_ = sess.Close()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Printf("live: session %s error: %v", id, err)
		if cb.OnError != nil {
			cb.OnError(err)
		}
	}
	log.Printf("live: session %s closed", id)
	if cb.OnClose != nil {
		cb.OnClose()
	}
}

func (m *Manager) send(input genai.LiveRealtimeInput) error {
	m.mu.Lock()
	sess := m.sess
	m.mu.Unlock()
	if sess == nil {
		return ErrNotActive
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return sess.SendRealtimeInput(input)
}

// SendAudio forwards 16 kHz 16-bit mono PCM from the microphone.
func (m *Manager) SendAudio(pcm []byte) error {
	return m.send(genai.LiveRealtimeInput{Media: &genai.Blob{MIMEType: InputAudioMIME, Data: pcm}})
}

// SendVideo forwards one JPEG screen frame.
func (m *Manager) SendVideo(jpeg []byte) error {
	return m.send(genai.LiveRealtimeInput{Media: &genai.Blob{MIMEType: VideoMIME, Data: jpeg}})
}

// Interrupt ends the current user audio stream and tells the client to drop
// queued playback.
func (m *Manager) Interrupt() error {
	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()
	if err := m.send(genai.LiveRealtimeInput{AudioStreamEnd: true}); err != nil {
		return err
	}
	if cb.OnInterrupted != nil {
		cb.OnInterrupted()
	}
	return nil
}

// Stop closes the session. OnClose fires once.
func (m *Manager) Stop() {
	m.mu.Lock()
	sess, cb, id := m.sess, m.cb, m.id
	m.sess, m.id, m.cb = nil, "", Callbacks{}
	m.mu.Unlock()
	if sess == nil {
		return
	}
	m.writeMu.Lock()
	_ = sess.Close()
	m.writeMu.Unlock()
	log.Printf("live: session %s stopped", id)
	if cb.OnClose != nil {
		cb.OnClose()
	}
}

func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess != nil
}

// ID returns the active session id, or "".
func (m *Manager) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}
