package registry

import (
	"sort"
	"sync"

	"github.com/wricardo/wsgateway/gateway/failure"
)

// Group is a named set of connections.
type Group struct {
	name    string
	mu      sync.RWMutex
	members map[Connection]struct{}
}

func newGroup(name string) *Group {
	return &Group{
		name:    name,
		members: make(map[Connection]struct{}),
	}
}

// Name returns the group name.
func (g *Group) Name() string {
	return g.name
}

// Add inserts conn and reports whether it was not already a member.
func (g *Group) Add(conn Connection) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.members[conn]; exists {
		return false
	}
	g.members[conn] = struct{}{}
	return true
}

// Remove deletes conn and reports whether it was a member.
func (g *Group) Remove(conn Connection) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.members[conn]; !exists {
		return false
	}
	delete(g.members, conn)
	return true
}

// Members returns a point-in-time snapshot of the member set.
func (g *Group) Members() []Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]Connection, 0, len(g.members))
	for conn := range g.members {
		result = append(result, conn)
	}
	return result
}

// Len returns the current member count.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// GroupRegistry maps group names to groups.
type GroupRegistry struct {
	mu     sync.RWMutex
	groups map[string]*Group
}

// NewGroupRegistry creates an empty registry.
func NewGroupRegistry() *GroupRegistry {
	return &GroupRegistry{
		groups: make(map[string]*Group),
	}
}

// Get returns the named group.
func (r *GroupRegistry) Get(name string) (*Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	group, exists := r.groups[name]
	return group, exists
}

// Create adds a new empty group. It fails with a GROUP_EXISTS error if the
// name is taken.
func (r *GroupRegistry) Create(name string) (*Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[name]; exists {
		return nil, failure.GroupExists(name)
	}
	group := newGroup(name)
	r.groups[name] = group
	return group, nil
}

// GetOrCreate returns the named group, creating it if absent. Concurrent
// callers on the same name always receive the same *Group.
func (r *GroupRegistry) GetOrCreate(name string) *Group {
	for {
		if group, exists := r.Get(name); exists {
			return group
		}
		group, err := r.Create(name)
		// Lost the race to another creator; take theirs.
		if failure.Is(err, failure.KindGroupExists) {
			continue
		}
		return group
	}
}

// AddMember creates the group if needed and adds conn. It returns false if
// conn was already a member.
func (r *GroupRegistry) AddMember(name string, conn Connection) bool {
	return r.GetOrCreate(name).Add(conn)
}

// RemoveMember removes conn from the named group. It returns false when the
// group does not exist or conn was not a member.
func (r *GroupRegistry) RemoveMember(name string, conn Connection) bool {
	group, exists := r.Get(name)
	if !exists {
		return false
	}
	return group.Remove(conn)
}

// RemoveFromAllGroups removes conn from every known group.
func (r *GroupRegistry) RemoveFromAllGroups(conn Connection) {
	for _, group := range r.snapshot() {
		group.Remove(conn)
	}
}

// Names returns the sorted names of all known groups, empty ones included.
func (r *GroupRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of known groups.
func (r *GroupRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}

func (r *GroupRegistry) snapshot() []*Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Group, 0, len(r.groups))
	for _, group := range r.groups {
		result = append(result, group)
	}
	return result
}
