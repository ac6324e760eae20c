package core_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/core"
	"github.com/huddlehq/huddle/internal/domain"
)

func TestGetOrCreateReturnsSingleInstance(t *testing.T) {
	rr := core.NewRoomRegistry(&fakeNotifier{})

	const callers = 16
	rooms := make([]*core.Room, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = rr.GetOrCreate("brand-new")
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		require.Same(t, rooms[0], rooms[i])
	}
}

func TestDeleteIfEmptyOnlyWhenEmpty(t *testing.T) {
	rr := core.NewRoomRegistry(&fakeNotifier{})
	room := rr.GetOrCreate("r1")
	room.Join("A", "alice")

	_, ok := rr.DeleteIfEmpty("r1")
	assert.False(t, ok)

	room.Leave("A")
	removed, ok := rr.DeleteIfEmpty("r1")
	require.True(t, ok)
	assert.Same(t, room, removed)

	_, ok = rr.Get("r1")
	assert.False(t, ok)

	// Next join treats the id as fresh.
	again := rr.GetOrCreate("r1")
	assert.NotSame(t, room, again)
}

func TestJoinAfterTeardownTargetsFreshInstance(t *testing.T) {
	rr := core.NewRoomRegistry(&fakeNotifier{})
	stale := rr.GetOrCreate("r1")
	require.True(t, stale.Join("A", "alice"))
	stale.Leave("A")
	_, ok := rr.DeleteIfEmpty("r1")
	require.True(t, ok)

	// A join that resolved the instance before the teardown must be
	// refused, not admitted into a room the registry no longer holds.
	assert.False(t, stale.Join("B", "bea"))
	assert.Equal(t, 0, stale.MemberCount())

	cur := rr.GetOrCreate("r1")
	require.NotSame(t, stale, cur)
	require.True(t, cur.Join("B", "bea"))
	assert.Equal(t, domain.ConnID("B"), cur.Host())
	assert.Equal(t, 1, cur.MemberCount())
}

func TestDeleteIfEmptyUnknownRoom(t *testing.T) {
	rr := core.NewRoomRegistry(&fakeNotifier{})
	_, ok := rr.DeleteIfEmpty("missing")
	assert.False(t, ok)
}

func TestListReportsMemberCounts(t *testing.T) {
	rr := core.NewRoomRegistry(&fakeNotifier{})
	rr.GetOrCreate("a").Join("A", "alice")
	rr.GetOrCreate("b")

	infos := rr.List()
	require.Len(t, infos, 2)
	counts := map[string]int{}
	for _, info := range infos {
		counts[string(info.ID)] = info.MemberCount
	}
	assert.Equal(t, 1, counts["a"])
	assert.Equal(t, 0, counts["b"])
}
