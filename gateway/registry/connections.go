package registry

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Connection is one live client session that can receive frames.
type Connection interface {
	// ID returns a process-unique identifier, used for logging.
	ID() string

	// Send queues data for delivery to the peer.
	Send(data []byte) error
}

// ConnectionRegistry maps claimed identities to connections and back.
type ConnectionRegistry struct {
	mu sync.RWMutex

	// Registration order is kept so ListIdentities is stable between
	// mutations.
	byIdentity *orderedmap.OrderedMap[string, Connection]
	byConn     map[Connection]string
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		byIdentity: orderedmap.New[string, Connection](),
		byConn:     make(map[Connection]string),
	}
}

// Add binds identity to conn. A previous binding for the
// same identity is overwritten; that connection stays open but is no longer
// addressable by identity. If conn already held another identity, that
// binding is dropped.
func (r *ConnectionRegistry) Add(identity string, conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byIdentity.Get(identity); ok && prev != conn {
		delete(r.byConn, prev)
	}
	if old, ok := r.byConn[conn]; ok && old != identity {
		r.byIdentity.Delete(old)
	}

	r.byIdentity.Set(identity, conn)
	r.byConn[conn] = identity
}

// Get returns the connection bound to identity.
func (r *ConnectionRegistry) Get(identity string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byIdentity.Get(identity)
}

// Remove unbinds identity and returns the connection it pointed at.
func (r *ConnectionRegistry) Remove(identity string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byIdentity.Delete(identity)
	if !ok {
		return nil, false
	}
	delete(r.byConn, conn)
	return conn, true
}

// RemoveConnection unbinds whatever identity conn holds. It returns false
// when conn never registered or was already orphaned by a rebind.
func (r *ConnectionRegistry) RemoveConnection(conn Connection) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byConn[conn]
	if !ok {
		return nil, false
	}
	delete(r.byConn, conn)

	bound, ok := r.byIdentity.Get(identity)
	if !ok || bound != conn {
		return nil, false
	}
	r.byIdentity.Delete(identity)
	return conn, true
}

// IdentityOf returns the identity conn currently holds.
func (r *ConnectionRegistry) IdentityOf(conn Connection) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.byConn[conn]
	return identity, ok
}

// ListIdentities returns a snapshot of bound identities in registration order.
func (r *ConnectionRegistry) ListIdentities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, r.byIdentity.Len())
	for pair := r.byIdentity.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Key)
	}
	return result
}

// Len returns the number of bound identities.
func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byIdentity.Len()
}
