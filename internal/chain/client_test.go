package chain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRememberTimestampEvictsOldest(t *testing.T) {
	c := &Client{tsCache: make(map[uint64]uint64)}
	for i := uint64(0); i < maxCachedTimestamps+2; i++ {
		c.rememberTimestamp(i, i*3)
	}

	require.Len(t, c.tsCache, maxCachedTimestamps)
	require.Len(t, c.tsOrder, maxCachedTimestamps)
	_, ok := c.tsCache[0]
	require.False(t, ok)
	_, ok = c.tsCache[1]
	require.False(t, ok)
	require.Equal(t, uint64((maxCachedTimestamps+1)*3), c.tsCache[maxCachedTimestamps+1])
}

func TestRememberTimestampIgnoresDuplicates(t *testing.T) {
	c := &Client{tsCache: make(map[uint64]uint64)}
	c.rememberTimestamp(7, 21)
	c.rememberTimestamp(7, 21)
	require.Len(t, c.tsOrder, 1)
}

func TestIsPrunedState(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{msg: "missing trie node 1a2b (path )", want: true},
		{msg: "header not found", want: true},
		{msg: "historical state 0xabc is not available", want: true},
		{msg: "execution reverted", want: false},
		{msg: "context deadline exceeded", want: false},
	}
	for _, tc := range cases {
		if got := isPrunedState(errors.New(tc.msg)); got != tc.want {
			t.Fatalf("isPrunedState(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}
