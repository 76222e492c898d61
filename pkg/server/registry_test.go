package server

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistrySession(t *testing.T) *Session {
	t.Helper()
	_, server := net.Pipe()
	sess := newSession(server, time.Hour, func(*Session) {})
	t.Cleanup(func() { _ = server.Close() })
	return sess
}

func TestRegistryLoginUniqueness(t *testing.T) {
	reg := NewRegistry()
	a := newRegistrySession(t)
	b := newRegistrySession(t)
	reg.Add(a)
	reg.Add(b)

	require.NoError(t, reg.Login(a, "alice"))
	assert.ErrorIs(t, reg.Login(b, "alice"), ErrUsernameTaken)
	assert.Empty(t, b.Username())

	// Case-sensitive exact match: a different casing is a different name.
	require.NoError(t, reg.Login(b, "Alice"))
}

func TestRegistryRemoveReleasesUsername(t *testing.T) {
	reg := NewRegistry()
	a := newRegistrySession(t)
	reg.Add(a)
	require.NoError(t, reg.Login(a, "alice"))

	reg.Remove(a.ID)
	_, found := reg.Lookup("alice")
	assert.False(t, found)
	assert.Equal(t, 0, reg.Count())

	// The name is free again for a new session.
	b := newRegistrySession(t)
	reg.Add(b)
	assert.NoError(t, reg.Login(b, "alice"))
}

func TestRegistryAuthenticatedVisibility(t *testing.T) {
	reg := NewRegistry()
	a := newRegistrySession(t)
	b := newRegistrySession(t)
	reg.Add(a)
	reg.Add(b)

	// Pre-login sessions are live but not broadcast-visible.
	assert.Equal(t, 2, reg.Count())
	assert.Len(t, reg.All(), 2)
	assert.Empty(t, reg.Authenticated())

	require.NoError(t, reg.Login(b, "bob"))
	require.NoError(t, reg.Login(a, "alice"))

	authed := reg.Authenticated()
	require.Len(t, authed, 2)
	// Login order, not insertion order.
	assert.Equal(t, "bob", authed[0].Username())
	assert.Equal(t, "alice", authed[1].Username())
}

func TestRegistryConcurrentLogins(t *testing.T) {
	reg := NewRegistry()

	const contenders = 32
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		sess := newRegistrySession(t)
		reg.Add(sess)
		wg.Add(1)
		go func(i int, sess *Session) {
			defer wg.Done()
			errs[i] = reg.Login(sess, "highlander")
		}(i, sess)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, ErrUsernameTaken)
		}
	}
	assert.Equal(t, 1, won, "exactly one login may claim a name")
	assert.Len(t, reg.Authenticated(), 1)
}

func TestRegistryLookupIgnoresUnauthenticated(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < 3; i++ {
		sess := newRegistrySession(t)
		reg.Add(sess)
		require.NoError(t, reg.Login(sess, fmt.Sprintf("user%d", i)))
	}
	lurker := newRegistrySession(t)
	reg.Add(lurker)

	_, found := reg.Lookup("")
	assert.False(t, found)
	sess, found := reg.Lookup("user1")
	require.True(t, found)
	assert.Equal(t, "user1", sess.Username())
}
