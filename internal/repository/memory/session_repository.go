package memory

import (
	"time"

	"paperchat-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionRepository holds per-conversation turn state. Busy sessions are
// pinned with no expiration so an in-flight turn can never be evicted
// under it; terminal states age out on the default TTL.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *store.Session) {
	expiration := cache.DefaultExpiration
	if store.Busy(session.State) {
		expiration = cache.NoExpiration
	}
	r.cache.Set(session.ConversationID, session, expiration)
}

func (r *SessionRepository) Get(conversationID string) (*store.Session, bool) {
	if x, found := r.cache.Get(conversationID); found {
		return x.(*store.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(conversationID string) {
	r.cache.Delete(conversationID)
}
