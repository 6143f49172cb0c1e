package opq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusivityRegistryGrantsFirstRequesterImmediately(t *testing.T) {
	r := NewExclusivityRegistry()
	var granted bool
	lock := r.RequestLock([]string{"cat-a"}, func(*ExclusivityLock) { granted = true })
	require.True(t, granted)
	assert.True(t, lock.granted)
}

func TestExclusivityRegistryQueuesSecondRequester(t *testing.T) {
	r := NewExclusivityRegistry()
	first := r.RequestLock([]string{"cat-a"}, func(*ExclusivityLock) {})

	var secondGranted bool
	second := r.RequestLock([]string{"cat-a"}, func(*ExclusivityLock) { secondGranted = true })
	assert.False(t, secondGranted, "second requester should wait for the first to release")

	r.Release(first)
	assert.True(t, secondGranted, "releasing the first should grant the second")
	assert.True(t, second.granted)
}

func TestExclusivityRegistryMultiCategoryWaitsForAll(t *testing.T) {
	r := NewExclusivityRegistry()
	holderA := r.RequestLock([]string{"a"}, func(*ExclusivityLock) {})
	holderB := r.RequestLock([]string{"b"}, func(*ExclusivityLock) {})

	var granted bool
	waiter := r.RequestLock([]string{"a", "b"}, func(*ExclusivityLock) { granted = true })
	assert.False(t, granted)

	r.Release(holderA)
	assert.False(t, granted, "still blocked on category b")

	r.Release(holderB)
	assert.True(t, granted)
	assert.True(t, waiter.granted)
}

func TestExclusivityRegistryReleaseAbandonedMidChainWaiter(t *testing.T) {
	r := NewExclusivityRegistry()
	first := r.RequestLock([]string{"cat"}, func(*ExclusivityLock) {})
	second := r.RequestLock([]string{"cat"}, func(*ExclusivityLock) {})

	var thirdGranted bool
	third := r.RequestLock([]string{"cat"}, func(*ExclusivityLock) { thirdGranted = true })

	// Abandon the middle waiter before it was ever granted.
	r.Release(second)
	assert.False(t, thirdGranted, "third is still behind first")

	r.Release(first)
	assert.True(t, thirdGranted)
	assert.True(t, third.granted)
}

func TestExclusivityRegistryEmptyCategoriesGrantsSynchronously(t *testing.T) {
	r := NewExclusivityRegistry()
	var granted bool
	lock := r.RequestLock(nil, func(*ExclusivityLock) { granted = true })
	assert.True(t, granted)
	r.Release(lock) // no-op, but must not panic
}
