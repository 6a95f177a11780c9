package pma

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorageEvenSegmentPacksTail(t *testing.T) {
	s := newStorage(8, 2)
	s.insertUnsafe(0, 10, 100)
	s.insertUnsafe(0, 20, 200)
	s.insertUnsafe(0, 5, 50)

	lo, hi := s.occupiedGlobalRange(0)
	require.Equal(t, 3, hi-lo)
	require.Equal(t, 8, hi, "even segment packs at its tail")
	require.Equal(t, []int64{5, 10, 20}, s.keys[lo:hi])
}

func TestStorageOddSegmentPacksHead(t *testing.T) {
	s := newStorage(8, 2)
	s.insertUnsafe(1, 10, 100)
	s.insertUnsafe(1, 20, 200)
	s.insertUnsafe(1, 5, 50)

	lo, hi := s.occupiedGlobalRange(1)
	require.Equal(t, s.segCap, 8)
	require.Equal(t, 0, lo%s.segCap, "odd segment packs at its head")
	require.Equal(t, []int64{5, 10, 20}, s.keys[lo:hi])
}

func TestStorageInsertReportsBecameMin(t *testing.T) {
	s := newStorage(8, 1)
	becameMin := s.insertUnsafe(0, 10, 1)
	require.True(t, becameMin)

	becameMin = s.insertUnsafe(0, 20, 2)
	require.False(t, becameMin)

	becameMin = s.insertUnsafe(0, 5, 3)
	require.True(t, becameMin)
}

func TestStorageRemoveFromSegment(t *testing.T) {
	s := newStorage(8, 1)
	s.insertUnsafe(0, 10, 1)
	s.insertUnsafe(0, 20, 2)
	s.insertUnsafe(0, 30, 3)

	v, found, minChanged := s.removeFromSegment(0, 20)
	require.True(t, found)
	require.False(t, minChanged)
	require.Equal(t, int64(2), v)

	v, found, minChanged = s.removeFromSegment(0, 10)
	require.True(t, found)
	require.True(t, minChanged)
	require.Equal(t, int64(1), v)

	_, found, _ = s.removeFromSegment(0, 999)
	require.False(t, found)
}

func TestStorageFindInSegment(t *testing.T) {
	s := newStorage(4, 1)
	s.insertUnsafe(0, 1, 100)
	s.insertUnsafe(0, 2, 200)

	v, ok := s.findInSegment(0, 2)
	require.True(t, ok)
	require.Equal(t, int64(200), v)

	_, ok = s.findInSegment(0, 99)
	require.False(t, ok)
}
