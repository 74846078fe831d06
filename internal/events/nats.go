// Package events fans orchestration events out over NATS so other
// processes (overlays, dashboards, recorders) can follow a session.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

const DefaultSubject = "screenbuddy.events"

// Event types, appended to the base subject.
const (
	TypeOutcome   = "outcome"
	TypeChat      = "chat"
	TypeExhausted = "exhausted"
)

type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Outcome   *types.AnalysisOutcome `json:"outcome,omitempty"`
	Chat      *types.ChatTurn        `json:"chat,omitempty"`
	Op        coach.Op               `json:"op,omitempty"`
}

// Conn is the publishing side of a NATS connection.
type Conn interface {
	Publish(subject string, data []byte) error
}

type Config struct {
	URL            string
	Subject        string
	ConnectTimeout time.Duration
}

// Publisher implements coach.Observer by publishing outcomes, chat turns and
// exhaustion notices. Publish errors are logged and dropped.
type Publisher struct {
	coach.NopObserver
	conn    Conn
	subject string
	now     func() time.Time
	close   func()
}

var _ coach.Observer = (*Publisher)(nil)

// Connect dials NATS and returns a publisher on cfg.Subject.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("screenbuddy"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p := NewPublisher(nc, cfg.Subject)
	p.close = nc.Close
	return p, nil
}

func NewPublisher(conn Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject, now: time.Now}
}

func (p *Publisher) Outcome(o types.AnalysisOutcome) {
	o.Screenshot = nil
	p.publish(Event{Type: TypeOutcome, Outcome: &o})
}

func (p *Publisher) ChatTurn(t types.ChatTurn) {
	p.publish(Event{Type: TypeChat, Chat: &t})
}

func (p *Publisher) Exhausted(op coach.Op) {
	p.publish(Event{Type: TypeExhausted, Op: op})
}

func (p *Publisher) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}

func (p *Publisher) publish(ev Event) {
	ev.Timestamp = p.now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("events: marshal %s: %v", ev.Type, err)
		return
	}
	if err := p.conn.Publish(p.subject+"."+ev.Type, data); err != nil {
		log.Printf("events: publish %s: %v", ev.Type, err)
	}
}
