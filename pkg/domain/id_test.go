package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDShape(t *testing.T) {
	id := NewID()
	require.Len(t, id, IDLength)
	require.True(t, IsValidID(id))
}

func TestNewIDTimePrefix(t *testing.T) {
	before := time.Now().Add(-2 * time.Second)
	id := NewID()
	after := time.Now().Add(2 * time.Second)

	ts, ok := IDTimestamp(id)
	require.True(t, ok)
	assert.True(t, ts.After(before), "id timestamp %v before %v", ts, before)
	assert.True(t, ts.Before(after), "id timestamp %v after %v", ts, after)
}

func TestNewIDUniqueInProcess(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 10000; i++ {
		id := NewID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestIDOrderingFollowsTime(t *testing.T) {
	a := newIDAt(time.Unix(1700000000, 0))
	b := newIDAt(time.Unix(1700000100, 0))
	assert.Less(t, a, b)
}

func TestIsValidID(t *testing.T) {
	valid := NewID()
	cases := []struct {
		name string
		id   string
		want bool
	}{
		{"generated", valid, true},
		{"empty", "", false},
		{"short", valid[:23], false},
		{"long", valid + "0", false},
		{"uppercase", "ABCDEF0123456789ABCDEF01", false},
		{"nonhex", "zzzzzzzzzzzzzzzzzzzzzzzz", false},
		{"all zero", "000000000000000000000000", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidID(tc.id))
		})
	}
}

func TestValidateID(t *testing.T) {
	require.NoError(t, ValidateID(NewID()))

	err := ValidateID("nope")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}
