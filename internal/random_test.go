package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIDRoundTrip(t *testing.T) {
	sid, err := NewSessionID()
	require.NoError(t, err)
	assert.Len(t, sid.String(), 22)

	parsed, err := ParseSessionID(sid.String())
	require.NoError(t, err)
	assert.Equal(t, sid, parsed)

	other, err := NewSessionID()
	require.NoError(t, err)
	assert.NotEqual(t, sid, other)
}

func TestParseSessionIDRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "user:1", "AAAA", "!!!!!!!!!!!!!!!!!!!!!!"} {
		_, err := ParseSessionID(bad)
		assert.Error(t, err, bad)
	}
}
