// Package frame holds the browser-fed frame source: the page captures the
// screen and pushes JPEG frames, the coaching loop pulls them on its own
// cadence.
package frame

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	fingerprintSide = 32

	DefaultDiffThreshold = 2.0
	DefaultMaxAge        = 15 * time.Second
)

var (
	ErrInactive = errors.New("frame: capture is not active")
	ErrEmpty    = errors.New("frame: empty frame")
)

// Frame is one pushed screen image.
type Frame struct {
	Seq  uint64
	Data []byte
	At   time.Time
	fp   []uint8
}

type Option func(*Mailbox)

// WithMaxAge drops frames older than d. Zero keeps them forever.
func WithMaxAge(d time.Duration) Option {
	return func(m *Mailbox) { m.maxAge = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Mailbox) { m.now = now }
}

// Mailbox keeps only the newest frame. Publishing never blocks and never
// queues: a frame nobody read before the next one arrives is dropped.
type Mailbox struct {
	mu     sync.RWMutex
	active bool
	latest *Frame
	seq    uint64
	maxAge time.Duration
	now    func() time.Time
}

func NewMailbox(opts ...Option) *Mailbox {
	m := &Mailbox{maxAge: DefaultMaxAge, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Mailbox) Activate() {
	m.mu.Lock()
	m.active = true
	m.mu.Unlock()
}

// Deactivate stops accepting frames and forgets the last one.
func (m *Mailbox) Deactivate() {
	m.mu.Lock()
	m.active = false
	m.latest = nil
	m.mu.Unlock()
}

func (m *Mailbox) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Publish decodes data as an image and stores it as the newest frame.
func (m *Mailbox) Publish(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, ErrEmpty
	}
	fp, err := fingerprint(data)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return 0, ErrInactive
	}
	m.seq++
	m.latest = &Frame{
		Seq:  m.seq,
		Data: append([]byte(nil), data...),
		At:   m.now(),
		fp:   fp,
	}
	return m.seq, nil
}

// Latest returns the newest fresh frame, or nil.
func (m *Mailbox) Latest() *Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.active || m.latest == nil {
		return nil
	}
	if m.maxAge > 0 && m.now().Sub(m.latest.At) > m.maxAge {
		return nil
	}
	return m.latest
}

// Reader returns an independent consumer view. With threshold > 0 the
// reader suppresses frames it already handed out and frames whose mean
// absolute grayscale difference from the last handed-out one is below
// threshold (0-255 scale). With threshold <= 0 every call returns the newest
// frame.
func (m *Mailbox) Reader(threshold float64) *Reader {
	return &Reader{box: m, threshold: threshold}
}

// Reader implements the coaching FrameSource contract over a Mailbox.
type Reader struct {
	box       *Mailbox
	threshold float64

	mu      sync.Mutex
	lastSeq uint64
	lastFP  []uint8
}

func (r *Reader) StartCapture(context.Context) error {
	r.box.Activate()
	r.reset()
	return nil
}

func (r *Reader) StopCapture() {
	r.box.Deactivate()
	r.reset()
}

func (r *Reader) reset() {
	r.mu.Lock()
	r.lastSeq, r.lastFP = 0, nil
	r.mu.Unlock()
}

func (r *Reader) TakeSnapshot() []byte {
	f := r.box.Latest()
	if f == nil {
		return nil
	}
	if r.threshold <= 0 {
		return append([]byte(nil), f.Data...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f.Seq == r.lastSeq {
		return nil
	}
	if r.lastFP != nil && meanAbsDiff(r.lastFP, f.fp) < r.threshold {
		return nil
	}
	r.lastSeq, r.lastFP = f.Seq, f.fp
	return append([]byte(nil), f.Data...)
}

func fingerprint(data []byte) ([]uint8, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("frame: decode: %w", err)
	}
	dst := image.NewGray(image.Rect(0, 0, fingerprintSide, fingerprintSide))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst.Pix, nil
}

func meanAbsDiff(a, b []uint8) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 255
	}
	var sum int
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(len(a))
}
