package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register_NewWorker(t *testing.T) {
	r := New(30 * time.Second)
	id := r.Register("10.0.0.1:9001")

	require.NotEmpty(t, id)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Register_IdempotentByAddress(t *testing.T) {
	r := New(30 * time.Second)
	id1 := r.Register("10.0.0.1:9001")
	id2 := r.Register("10.0.0.1:9001")

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Remove(t *testing.T) {
	r := New(30 * time.Second)
	id := r.Register("10.0.0.1:9001")
	r.Remove(id)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SetAvailable(t *testing.T) {
	r := New(30 * time.Second)
	id := r.Register("10.0.0.1:9001")
	r.SetAvailable(id, false)

	assert.Nil(t, r.NextAvailable())

	r.SetAvailable(id, true)
	w := r.NextAvailable()
	require.NotNil(t, w)
	assert.Equal(t, id, w.ID)
}

func TestRegistry_NextAvailable_Empty(t *testing.T) {
	r := New(30 * time.Second)
	assert.Nil(t, r.NextAvailable())
}

func TestRegistry_NextAvailable_SkipsUnavailable(t *testing.T) {
	r := New(30 * time.Second)
	id1 := r.Register("a:1")
	id2 := r.Register("b:2")
	r.SetAvailable(id1, false)

	w := r.NextAvailable()
	require.NotNil(t, w)
	assert.Equal(t, id2, w.ID)
}

func TestRegistry_NextAvailable_RoundRobin(t *testing.T) {
	r := New(30 * time.Second)
	r.Register("a:1")
	r.Register("b:2")

	first := r.NextAvailable()
	second := r.NextAvailable()
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRegistry_NextAvailable_SkipsDeadWorker(t *testing.T) {
	r := New(30 * time.Millisecond)
	id := r.Register("a:1")
	time.Sleep(50 * time.Millisecond)

	assert.Nil(t, r.NextAvailable())
	assert.Equal(t, 1, r.Len())
	_ = id
}

func TestRegistry_Touch_RegistersUnknownWorker(t *testing.T) {
	r := New(30 * time.Second)
	r.Touch("unknown-id", "10.0.0.2:9002")

	assert.Equal(t, 1, r.Len())
	w := r.NextAvailable()
	require.NotNil(t, w)
	assert.Equal(t, "unknown-id", w.ID)
}

func TestRegistry_Touch_RefreshesKnownWorker(t *testing.T) {
	r := New(30 * time.Second)
	id := r.Register("10.0.0.1:9001")
	r.SetAvailable(id, false)

	r.Touch(id, "10.0.0.1:9001")

	assert.Equal(t, 1, r.Len())
}

func TestWorker_Alive(t *testing.T) {
	w := &Worker{LastHeartbeat: time.Now().UTC()}
	assert.True(t, w.Alive(time.Now().UTC(), 30*time.Second))

	w.LastHeartbeat = time.Now().UTC().Add(-time.Minute)
	assert.False(t, w.Alive(time.Now().UTC(), 30*time.Second))
}
