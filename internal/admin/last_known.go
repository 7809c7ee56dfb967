package admin

import "sync"

// LastKnown remembers positive admin determinations for the life of the process,
// so one failed re-check cannot demote an admin mid-session.
type LastKnown struct {
	mu     sync.RWMutex
	admins map[string]struct{}
}

func NewLastKnown() *LastKnown {
	return &LastKnown{admins: make(map[string]struct{})}
}

// Status returns StatusAdmin for remembered admins and StatusUnknown otherwise
func (l *LastKnown) Status(userID string) Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.admins[userID]; ok {
		return StatusAdmin
	}
	return StatusUnknown
}

func (l *LastKnown) MarkAdmin(userID string) {
	l.mu.Lock()
	l.admins[userID] = struct{}{}
	l.mu.Unlock()
}

// Forget drops a remembered admin; only authoritative negative results call it
func (l *LastKnown) Forget(userID string) {
	l.mu.Lock()
	delete(l.admins, userID)
	l.mu.Unlock()
}
