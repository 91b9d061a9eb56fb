package projector

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// refreshToken identifies a single view refresh for log correlation
type refreshToken struct {
	id string
}

// viewSnapshot is the last published projection of one view
type viewSnapshot struct {
	refreshID   string
	data        interface{}
	completedAt time.Time
}

// snapshotStore keeps the last published projection per view key. Refreshes
// of the same view may overlap; each one is a fresh self-consistent read
// set, so the one that completes last simply overwrites. There is no merge
// of partial results across refreshes.
type snapshotStore struct {
	mu    sync.Mutex
	views map[string]*viewSnapshot
	now   func() time.Time
}

func newSnapshotStore(now func() time.Time) *snapshotStore {
	return &snapshotStore{
		views: make(map[string]*viewSnapshot),
		now:   now,
	}
}

// begin registers the start of a refresh and returns its token
func (s *snapshotStore) begin() refreshToken {
	return refreshToken{id: uuid.NewString()}
}

// complete publishes the refresh result, overwriting whatever an earlier
// completion installed
func (s *snapshotStore) complete(key string, token refreshToken, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.views[key] = &viewSnapshot{
		refreshID:   token.id,
		data:        data,
		completedAt: s.now(),
	}
}

// current returns the last published snapshot for key, if any
func (s *snapshotStore) current(key string) (*viewSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.views[key]
	return snap, ok
}
