package seen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddAndContains(t *testing.T) {
	s := New(50 * time.Millisecond)
	assert.False(t, s.Contains(0x4840D6))

	s.Add(0x4840D6)
	assert.True(t, s.Contains(0x4840D6))
	assert.Equal(t, 1, s.Len())
}

func TestExpiry(t *testing.T) {
	s := New(20 * time.Millisecond)
	s.Add(0x4840D6)
	require := assert.New(t)
	require.True(s.Contains(0x4840D6))

	time.Sleep(60 * time.Millisecond)
	require.False(s.Contains(0x4840D6))
}

func TestDistinctAddresses(t *testing.T) {
	s := New(time.Second)
	s.Add(1)
	s.Add(2)
	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(3))
	assert.Equal(t, 2, s.Len())
}
