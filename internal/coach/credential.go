package coach

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
)

// Credential is one opaque API secret plus the provider it belongs to.
type Credential struct {
	Value string           `json:"value"`
	Kind  llm.ProviderKind `json:"kind"`
}

func NewCredential(value string) Credential {
	value = strings.TrimSpace(value)
	return Credential{Value: value, Kind: llm.DetectKind(value)}
}

// Masked returns a log-safe rendering of the secret.
func (c Credential) Masked() string {
	if len(c.Value) <= 8 {
		return "****"
	}
	return c.Value[:4] + "…" + c.Value[len(c.Value)-4:]
}

// ParseCredentials splits pasted input on newlines, commas and whitespace.
// Empty entries are dropped and duplicates keep their first position.
func ParseCredentials(raw string) []Credential {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]Credential, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, NewCredential(f))
	}
	return out
}

func rotate(i, n int) int {
	if n <= 0 {
		return 0
	}
	return (i + 1) % n
}

// Pool is the ordered credential list with a pointer to the last
// known-good entry. All reads and writes go through one mutex because the
// analysis loop and chat share it.
//
// gen increases every time the list is swapped; callers holding an older
// generation must not commit indexes or report exhaustion against it.
type Pool struct {
	mu      sync.Mutex
	creds   []Credential
	current int
	gen     uint64
	store   SettingsStore
}

func NewPool(store SettingsStore) *Pool {
	return &Pool{store: store}
}

// Load restores credentials and the current index from the settings store.
func (p *Pool) Load(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	raw, ok, err := p.store.Get(ctx, KeyCredentials)
	if err != nil || !ok {
		return err
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		// Older installs stored the pasted text as-is.
		values = nil
		for _, c := range ParseCredentials(raw) {
			values = append(values, c.Value)
		}
	}
	creds := ParseCredentials(strings.Join(values, "\n"))

	idx := 0
	if v, ok, _ := p.store.Get(ctx, KeyCurrentIndex); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < len(creds) {
			idx = n
		}
	}
	p.mu.Lock()
	p.creds = creds
	p.current = idx
	p.gen++
	p.mu.Unlock()
	return nil
}

// PoolSnapshot is a consistent copy of the pool at one generation.
type PoolSnapshot struct {
	Creds   []Credential
	Current int
	Gen     uint64
}

// Snapshot returns a copy of the credentials, the current index and the
// generation they belong to.
func (p *Pool) Snapshot() PoolSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolSnapshot{Creds: append([]Credential(nil), p.creds...), Current: p.current, Gen: p.gen}
}

// Generation reports how many times the credential list has been swapped.
func (p *Pool) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Current returns the credential at the current index.
func (p *Pool) Current() (Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.creds) == 0 {
		return Credential{}, false
	}
	return p.creds[p.current], true
}

// Commit pins i as the known-good index of generation gen. Commits against
// a replaced list, or out of range, are ignored.
func (p *Pool) Commit(gen uint64, i int) {
	p.mu.Lock()
	if gen != p.gen || i < 0 || i >= len(p.creds) || i == p.current {
		p.mu.Unlock()
		return
	}
	p.current = i
	p.mu.Unlock()
	p.persistIndex(i)
}

// Replace swaps the whole credential list and resets the index to 0.
func (p *Pool) Replace(ctx context.Context, creds []Credential) error {
	values := make([]string, 0, len(creds))
	for _, c := range creds {
		values = append(values, c.Value)
	}
	p.mu.Lock()
	p.creds = append([]Credential(nil), creds...)
	p.current = 0
	p.gen++
	p.mu.Unlock()

	if p.store == nil {
		return nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return err
	}
	if err := p.store.Set(ctx, KeyCredentials, string(b)); err != nil {
		return err
	}
	return p.store.Set(ctx, KeyCurrentIndex, "0")
}

func (p *Pool) persistIndex(i int) {
	if p.store == nil {
		return
	}
	if err := p.store.Set(context.Background(), KeyCurrentIndex, strconv.Itoa(i)); err != nil {
		log.Printf("coach: persist key index: %v", err)
	}
}
