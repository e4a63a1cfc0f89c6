package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_ValidatesID(t *testing.T) {
	m := NewManager()

	for _, id := range []string{"", "has space", "slash/id", "x" + string(make([]byte, 200))} {
		_, err := m.Create(id)
		assert.ErrorIs(t, err, ErrInvalidSessionID, "id %q", id)
	}

	ns, err := m.Create("client-42.upload_1")
	require.NoError(t, err)
	assert.NotEmpty(t, ns)
}

func TestNamespace_Deterministic(t *testing.T) {
	a := Namespace("session-a")
	b := Namespace("session-b")

	assert.Equal(t, a, Namespace("session-a"))
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "doc_")
}

func TestCreate_IdempotentBeforeReady(t *testing.T) {
	m := NewManager()

	first, err := m.Create("s1")
	require.NoError(t, err)

	again, err := m.Create("s1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, m.MarkIngesting("s1"))
	again, err = m.Create("s1")
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestCreate_RejectsReadySession(t *testing.T) {
	m := NewManager()

	_, err := m.Create("s1")
	require.NoError(t, err)
	require.NoError(t, m.MarkIngesting("s1"))
	require.NoError(t, m.MarkReady("s1"))

	_, err = m.Create("s1")
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestCreate_AllowsRetryAfterFailure(t *testing.T) {
	m := NewManager()

	_, err := m.Create("s1")
	require.NoError(t, err)
	require.NoError(t, m.MarkIngesting("s1"))
	require.NoError(t, m.MarkFailed("s1", "extraction failed"))

	ns, err := m.Create("s1")
	require.NoError(t, err)
	assert.Equal(t, Namespace("s1"), ns)

	s, err := m.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, s.Status)
	assert.Empty(t, s.FailReason)
}

func TestLifecycleTransitions(t *testing.T) {
	m := NewManager()
	_, err := m.Create("s1")
	require.NoError(t, err)

	// Ready straight from Created is illegal.
	assert.Error(t, m.MarkReady("s1"))

	require.NoError(t, m.MarkIngesting("s1"))
	require.NoError(t, m.MarkReady("s1"))

	// A Ready session cannot regress to Failed.
	assert.Error(t, m.MarkFailed("s1", "too late"))

	s, err := m.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, s.Status)
}

func TestResolve_GatesOnReady(t *testing.T) {
	m := NewManager()

	_, err := m.Resolve("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = m.Create("s1")
	require.NoError(t, err)
	_, err = m.Resolve("s1")
	assert.ErrorIs(t, err, ErrSessionNotReady)

	require.NoError(t, m.MarkIngesting("s1"))
	_, err = m.Resolve("s1")
	assert.ErrorIs(t, err, ErrSessionNotReady)

	require.NoError(t, m.MarkFailed("s1", "boom"))
	_, err = m.Resolve("s1")
	assert.ErrorIs(t, err, ErrSessionNotReady)
}

func TestResolve_ReadySession(t *testing.T) {
	m := NewManager()

	_, err := m.Create("s1")
	require.NoError(t, err)
	require.NoError(t, m.MarkIngesting("s1"))
	require.NoError(t, m.MarkReady("s1"))

	ns, err := m.Resolve("s1")
	require.NoError(t, err)
	assert.Equal(t, Namespace("s1"), ns)
}

func TestManager_ConcurrentSessions(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)

			_, err := m.Create(id)
			assert.NoError(t, err)
			assert.NoError(t, m.MarkIngesting(id))
			assert.NoError(t, m.MarkReady(id))

			ns, err := m.Resolve(id)
			assert.NoError(t, err)
			assert.Equal(t, Namespace(id), ns)
		}(i)
	}
	wg.Wait()

	// Every session got a distinct namespace.
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := m.Get(fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		assert.False(t, seen[s.Namespace], "namespace collision: %s", s.Namespace)
		seen[s.Namespace] = true
	}
}
