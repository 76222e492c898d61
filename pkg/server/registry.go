package server

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrUsernameTaken is returned by Registry.Login when the requested
// username is already claimed by a live session.
var ErrUsernameTaken = errors.New("username already taken")

// Registry is the shared table of live sessions, keyed by connection
// identity. It owns the username uniqueness invariant: a name is claimed
// atomically by Login and released only by Remove, so concurrent LOGINs
// for the same name can never both succeed. All reads iterate a snapshot
// taken under the lock; no caller ever observes a half-registered session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	names    map[string]uuid.UUID // authenticated usernames -> session ID
	loginSeq uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		names:    make(map[string]uuid.UUID),
	}
}

// Add inserts a freshly accepted session. The session is not visible to
// WHO or broadcasts until Login succeeds.
func (r *Registry) Add(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = sess
}

// Remove deletes a session and releases its username, if any.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	if name := sess.Username(); name != "" {
		if r.names[name] == id {
			delete(r.names, name)
		}
	}
}

// Login atomically claims a username for the session. Usernames are
// case-sensitive exact-match. On success the session becomes visible to
// WHO and broadcast iteration.
func (r *Registry) Login(sess *Session, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.names[name]; taken {
		return ErrUsernameTaken
	}
	r.loginSeq++
	sess.setLogin(name, r.loginSeq)
	r.names[name] = sess.ID
	return nil
}

// Lookup finds the authenticated session holding the given username.
func (r *Registry) Lookup(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.names[name]
	if !ok {
		return nil, false
	}
	sess, ok := r.sessions[id]
	return sess, ok
}

// Authenticated returns a snapshot of all logged-in sessions in login
// order.
func (r *Registry) Authenticated() []*Session {
	r.mu.RLock()
	result := make([]*Session, 0, len(r.names))
	for _, id := range r.names {
		if sess, ok := r.sessions[id]; ok {
			result = append(result, sess)
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].loginSeq < result[j].loginSeq
	})
	return result
}

// All returns a snapshot of every live session, authenticated or not.
// Used by the shutdown coordinator.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		result = append(result, sess)
	}
	return result
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
