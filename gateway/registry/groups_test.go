package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/wsgateway/gateway/failure"
)

func TestGroupRegistryGetOrCreate(t *testing.T) {
	r := NewGroupRegistry()

	_, ok := r.Get("room1")
	assert.False(t, ok)

	first := r.GetOrCreate("room1")
	second := r.GetOrCreate("room1")
	assert.Same(t, first, second)
	assert.Equal(t, "room1", first.Name())
}

func TestGroupRegistryConcurrentGetOrCreate(t *testing.T) {
	r := NewGroupRegistry()
	const callers = 64

	groups := make([]*Group, callers)
	conns := make([]*fakeConn, callers)
	for i := range conns {
		conns[i] = newFakeConn(fmt.Sprintf("c%d", i))
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			groups[i] = r.GetOrCreate("room")
			// Every caller also adds its own connection twice
			groups[i].Add(conns[i])
			r.AddMember("room", conns[i])
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, groups[0], groups[i])
	}
	assert.Equal(t, callers, groups[0].Len())
	assert.Equal(t, 1, r.Len())
}

func isMember(g *Group, conn Connection) bool {
	for _, member := range g.Members() {
		if member == conn {
			return true
		}
	}
	return false
}

func TestGroupRegistryGetOrCreateAfterCreate(t *testing.T) {
	r := NewGroupRegistry()

	created, err := r.Create("room1")
	require.NoError(t, err)
	assert.Same(t, created, r.GetOrCreate("room1"), "existing group is reused")
	assert.Equal(t, 1, r.Len())
}

func TestGroupRegistryCreate(t *testing.T) {
	r := NewGroupRegistry()

	group, err := r.Create("room1")
	require.NoError(t, err)
	assert.Equal(t, "room1", group.Name())

	_, err = r.Create("room1")
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.KindGroupExists))
}

func TestGroupRegistryAddMember(t *testing.T) {
	r := NewGroupRegistry()
	conn := newFakeConn("a")

	assert.True(t, r.AddMember("room1", conn))
	assert.False(t, r.AddMember("room1", conn), "repeat add reports false")

	group, ok := r.Get("room1")
	require.True(t, ok)
	assert.True(t, isMember(group, conn))
	assert.Equal(t, 1, group.Len())
}

func TestGroupRegistryRemoveMember(t *testing.T) {
	r := NewGroupRegistry()
	connA := newFakeConn("a")
	connX := newFakeConn("x")

	assert.False(t, r.RemoveMember("nowhere", connA), "absent group")

	r.AddMember("room1", connA)
	assert.False(t, r.RemoveMember("room1", connX), "never a member")
	assert.True(t, r.RemoveMember("room1", connA))
	assert.False(t, r.RemoveMember("room1", connA))

	// Empty groups stay
	_, ok := r.Get("room1")
	assert.True(t, ok)
}

func TestGroupRegistryRemoveFromAllGroups(t *testing.T) {
	r := NewGroupRegistry()
	connA := newFakeConn("a")
	connB := newFakeConn("b")

	r.AddMember("room1", connA)
	r.AddMember("room2", connA)
	r.AddMember("room2", connB)
	r.GetOrCreate("room3")

	r.RemoveFromAllGroups(connA)

	for _, name := range []string{"room1", "room2", "room3"} {
		group, ok := r.Get(name)
		require.True(t, ok)
		assert.False(t, isMember(group, connA), name)
	}
	room2, _ := r.Get("room2")
	assert.True(t, isMember(room2, connB))
	assert.Equal(t, []string{"room1", "room2", "room3"}, r.Names())
}

func TestGroupMembersSnapshot(t *testing.T) {
	group := newGroup("room1")
	connA := newFakeConn("a")
	connB := newFakeConn("b")

	group.Add(connA)
	snapshot := group.Members()
	group.Add(connB)

	assert.Len(t, snapshot, 1)
	assert.Len(t, group.Members(), 2)
}
