package transcript

import (
	"strconv"
	"sync"

	"govorilka/internal/models"

	"github.com/c-pro/geche"
)

// Transcript is the ordered message log for the active room. It is
// created empty or seeded from a history payload when a room is
// entered, and discarded when the room is left.
//
// Messages are accepted by identifier: an identifier already present
// in the index is discarded, which makes redelivery after a
// reconnect-triggered rejoin a no-op. The backend is the only party
// that assigns identifiers; a zero identifier is appended without
// entering the index.
type Transcript struct {
	messages []models.Message
	seen     geche.Geche[string, struct{}]

	mux sync.RWMutex
}

func New() *Transcript {
	return &Transcript{
		seen: geche.NewMapCache[string, struct{}](),
	}
}

// ApplyHistory replaces the transcript wholesale. Used once, at room
// entry, with whatever the backend returned for the room.
func (t *Transcript) ApplyHistory(messages []models.Message) {
	t.mux.Lock()
	defer t.mux.Unlock()

	t.messages = make([]models.Message, 0, len(messages))
	t.seen = geche.NewMapCache[string, struct{}]()
	for _, msg := range messages {
		if msg.ID != 0 {
			if _, err := t.seen.Get(key(msg.ID)); err == nil {
				continue
			}
			t.seen.Set(key(msg.ID), struct{}{})
		}
		t.messages = append(t.messages, msg)
	}
}

// ApplyIncoming appends a message unless its identifier was already
// applied. Reports whether the message was accepted.
func (t *Transcript) ApplyIncoming(msg models.Message) bool {
	t.mux.Lock()
	defer t.mux.Unlock()

	if msg.ID != 0 {
		if _, err := t.seen.Get(key(msg.ID)); err == nil {
			return false
		}
		t.seen.Set(key(msg.ID), struct{}{})
	}
	t.messages = append(t.messages, msg)
	return true
}

// Messages returns a copy of the transcript in arrival order.
func (t *Transcript) Messages() []models.Message {
	t.mux.RLock()
	defer t.mux.RUnlock()

	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return len(t.messages)
}

// Reset discards the transcript and its identifier index.
func (t *Transcript) Reset() {
	t.mux.Lock()
	defer t.mux.Unlock()

	t.messages = nil
	t.seen = geche.NewMapCache[string, struct{}]()
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}
