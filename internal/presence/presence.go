package presence

import (
	"sort"
	"sync"

	"govorilka/internal/models"
)

// Tracker maintains user online/offline status for the active room.
// Presence is scoped to a room's membership roster, so the tracker is
// reset on every room switch. Last write wins per user.
type Tracker struct {
	users map[string]models.Status

	mux sync.RWMutex
}

func New() *Tracker {
	return &Tracker{
		users: make(map[string]models.Status),
	}
}

// Apply sets or overwrites the status for a user.
func (t *Tracker) Apply(userName string, status models.Status) {
	t.mux.Lock()
	defer t.mux.Unlock()
	t.users[userName] = status
}

// Status returns the last known status for a user.
func (t *Tracker) Status(userName string) (models.Status, bool) {
	t.mux.RLock()
	defer t.mux.RUnlock()
	s, ok := t.users[userName]
	return s, ok
}

// Snapshot returns a copy of the presence map.
func (t *Tracker) Snapshot() map[string]models.Status {
	t.mux.RLock()
	defer t.mux.RUnlock()

	out := make(map[string]models.Status, len(t.users))
	for k, v := range t.users {
		out[k] = v
	}
	return out
}

// Online returns the sorted names of users currently online.
func (t *Tracker) Online() []string {
	t.mux.RLock()
	defer t.mux.RUnlock()

	var names []string
	for name, status := range t.users {
		if status == models.StatusOnline {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Reset clears the tracker for a room switch.
func (t *Tracker) Reset() {
	t.mux.Lock()
	defer t.mux.Unlock()
	t.users = make(map[string]models.Status)
}
