package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_LookupInFlight(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("job-1", "key-a"))
	assert.Equal(t, "job-1", r.LookupInFlight("key-a"))
	assert.Equal(t, "", r.LookupInFlight("key-missing"))
	assert.Equal(t, "", r.LookupInFlight(""))
}

func TestRegister_EmptyKey(t *testing.T) {
	r := NewRegistry()
	err := r.Register("job-1", "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestRegister_LastWriterWins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("job-1", "key-a"))
	require.NoError(t, r.Register("job-2", "key-a"))
	assert.Equal(t, "job-2", r.LookupInFlight("key-a"))
	// job-1 is displaced but not tracked by idToKey anymore.
	r.Unregister("job-1")
	assert.Equal(t, "job-2", r.LookupInFlight("key-a"))
}

func TestRegisterThenUnregister_LeavesEmpty(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("job-1", "key-a"))
	r.Unregister("job-1")
	assert.Equal(t, "", r.LookupInFlight("key-a"))
	assert.Equal(t, 0, r.Count())
}

func TestUnregister_UnknownJobID_NoOp(t *testing.T) {
	r := NewRegistry()
	r.Unregister("does-not-exist")
	assert.Equal(t, 0, r.Count())
}
