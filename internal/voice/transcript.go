package voice

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Entry is one conversational turn.
type Entry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is an append-only log of turns in arrival order.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
	seen    map[string]struct{}
}

func NewTranscript() *Transcript {
	return &Transcript{seen: make(map[string]struct{})}
}

// Append records a turn under a fresh id. Unknown roles and blank content are
// rejected.
func (t *Transcript) Append(role Role, content string, at time.Time) (Entry, bool) {
	return t.AppendItem(uuid.NewString(), role, content, at)
}

// AppendItem records a turn keyed by the vendor item id. A second turn for the
// same item is dropped.
func (t *Transcript) AppendItem(itemID string, role Role, content string, at time.Time) (Entry, bool) {
	content = strings.TrimSpace(content)
	if !role.valid() || content == "" {
		return Entry{}, false
	}
	if itemID == "" {
		itemID = uuid.NewString()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen == nil {
		t.seen = make(map[string]struct{})
	}
	if _, dup := t.seen[itemID]; dup {
		return Entry{}, false
	}
	entry := Entry{ID: itemID, Role: role, Content: content, Timestamp: at.UTC()}
	t.seen[itemID] = struct{}{}
	t.entries = append(t.entries, entry)
	return entry, true
}

// Entries returns a copy of the log.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *Transcript) Clear() {
	t.mu.Lock()
	t.entries = nil
	t.seen = make(map[string]struct{})
	t.mu.Unlock()
}
