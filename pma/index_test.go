package pma

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComparisonIndexAllEmptyInitial(t *testing.T) {
	idx := newComparisonIndex(4)
	// Every separator is the lower sentinel, so the only i with
	// separator[i] <= k < separator[i+1] is the last segment.
	require.Equal(t, 3, idx.Find(0))
	require.Equal(t, 3, idx.Find(-1000))
	require.Equal(t, 3, idx.Find(1000))
}

func TestComparisonIndexFind(t *testing.T) {
	idx := newComparisonIndex(4)
	idx.SetSeparator(0, negInf)
	idx.SetSeparator(1, 10)
	idx.SetSeparator(2, 20)
	idx.SetSeparator(3, 30)

	require.Equal(t, 0, idx.Find(5))
	require.Equal(t, 0, idx.Find(9))
	require.Equal(t, 1, idx.Find(10))
	require.Equal(t, 1, idx.Find(19))
	require.Equal(t, 2, idx.Find(20))
	require.Equal(t, 3, idx.Find(30))
	require.Equal(t, 3, idx.Find(1000))
}

func TestComparisonIndexFindFirstLast(t *testing.T) {
	idx := newComparisonIndex(4)
	idx.SetSeparator(0, negInf)
	idx.SetSeparator(1, 10)
	idx.SetSeparator(2, 20)
	idx.SetSeparator(3, 30)

	require.Equal(t, 1, idx.FindFirst(10))
	require.Equal(t, 2, idx.FindFirst(15))
	require.Equal(t, 3, idx.FindFirst(30))
	require.Equal(t, 3, idx.FindFirst(999))

	require.Equal(t, 0, idx.FindLast(5))
	require.Equal(t, 1, idx.FindLast(15))
	require.Equal(t, 2, idx.FindLast(25))
}

func TestComparisonIndexRebuildResetsSentinels(t *testing.T) {
	idx := newComparisonIndex(2)
	idx.SetSeparator(1, 50)
	idx.Rebuild(3)
	require.Len(t, idx.sep, 3)
	for _, s := range idx.sep {
		require.Equal(t, negInf, s)
	}
}
