package memory

import (
	"time"

	"paperchat-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SnapshotRepository caches the last-known-good rendered view of each
// conversation. Entries are replaced wholesale; there are no partial
// updates, so a reader always sees a consistent message/citation pair.
type SnapshotRepository struct {
	cache *cache.Cache
}

func NewSnapshotRepository() *SnapshotRepository {
	c := cache.New(30*time.Minute, 10*time.Minute)
	return &SnapshotRepository{
		cache: c,
	}
}

func (r *SnapshotRepository) Save(snapshot *store.Snapshot) {
	snapshot.LastUpdated = time.Now()
	r.cache.Set(snapshot.ConversationID, snapshot, cache.DefaultExpiration)
}

func (r *SnapshotRepository) Get(conversationID string) (*store.Snapshot, bool) {
	if x, found := r.cache.Get(conversationID); found {
		return x.(*store.Snapshot), true
	}
	return nil, false
}

func (r *SnapshotRepository) Delete(conversationID string) {
	r.cache.Delete(conversationID)
}
