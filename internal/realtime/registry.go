package realtime

import (
	"sync"
	"time"

	"marketplace-portal/internal/domain"
	"marketplace-portal/pkg/logger"
	"marketplace-portal/pkg/utils"
)

// Transport is the live bidirectional channel behind a connection.
type Transport interface {
	Send(frame []byte) error
	Close() error
	// Writable is false once the transport is closing or its send buffer is full.
	Writable() bool
}

// ConnectionInfo is a point-in-time copy of a registry entry.
type ConnectionInfo struct {
	ID            string
	UserID        string
	Authenticated bool
	ConnectedAt   time.Time
	LastLiveness  time.Time
}

type connection struct {
	info      ConnectionInfo
	transport Transport
}

type target struct {
	id        string
	userID    string
	transport Transport
}

type RegistryOption func(*Registry)

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithIDGenerator(gen func() string) RegistryOption {
	return func(r *Registry) { r.newID = gen }
}

// Registry is the single source of truth for who is connected to this process.
type Registry struct {
	connections map[string]*connection         // connectionID -> connection
	userConns   map[string]map[string]struct{} // userID -> connectionIDs
	open        bool
	mutex       sync.RWMutex
	now         func() time.Time
	newID       func() string
	log         logger.Logger
}

func NewRegistry(log logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		connections: make(map[string]*connection),
		userConns:   make(map[string]map[string]struct{}),
		now:         time.Now,
		newID:       func() string { return utils.GenerateID("conn") },
		log:         log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Initialize() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.open = true
	r.log.Info("Connection registry initialized")
}

// Shutdown closes every transport and drops all entries. Later registrations fail.
func (r *Registry) Shutdown() {
	r.mutex.Lock()
	conns := r.connections
	r.connections = make(map[string]*connection)
	r.userConns = make(map[string]map[string]struct{})
	r.open = false
	r.mutex.Unlock()

	for id, conn := range conns {
		if err := conn.transport.Close(); err != nil {
			r.log.Debug("Failed to close connection on shutdown", "connection_id", id, "error", err)
		}
	}
	r.log.Info("Connection registry shut down", "closed", len(conns))
}

// Register allocates an unauthenticated entry for t.
func (r *Registry) Register(t Transport) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.open {
		return "", domain.ErrRegistryClosed
	}

	now := r.now()
	id := r.newID()
	r.connections[id] = &connection{
		info: ConnectionInfo{
			ID:           id,
			ConnectedAt:  now,
			LastLiveness: now,
		},
		transport: t,
	}

	r.log.Debug("Connection registered", "connection_id", id)
	return id, nil
}

// Bind authenticates connID as userID. Binding the same user twice is a no-op,
// a connection never changes owner.
func (r *Registry) Bind(connID, userID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	conn, ok := r.connections[connID]
	if !ok {
		return domain.ErrUnknownConnection
	}
	if conn.info.Authenticated {
		if conn.info.UserID == userID {
			return nil
		}
		return domain.ErrAlreadyBound
	}

	conn.info.UserID = userID
	conn.info.Authenticated = true
	if r.userConns[userID] == nil {
		r.userConns[userID] = make(map[string]struct{})
	}
	r.userConns[userID][connID] = struct{}{}

	r.log.Info("Connection bound", "connection_id", connID, "user_id", userID)
	return nil
}

func (r *Registry) Touch(connID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if conn, ok := r.connections[connID]; ok {
		conn.info.LastLiveness = r.now()
	}
}

// Unregister removes connID. Safe to call any number of times; reports whether
// an entry was actually removed.
func (r *Registry) Unregister(connID string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, ok := r.removeLocked(connID)
	return ok
}

func (r *Registry) removeLocked(connID string) (*connection, bool) {
	conn, ok := r.connections[connID]
	if !ok {
		return nil, false
	}
	delete(r.connections, connID)

	if userID := conn.info.UserID; userID != "" {
		if ids, exists := r.userConns[userID]; exists {
			delete(ids, connID)
			if len(ids) == 0 {
				delete(r.userConns, userID)
			}
		}
	}

	r.log.Debug("Connection unregistered", "connection_id", connID, "user_id", conn.info.UserID)
	return conn, true
}

// ConnectionsFor returns the authenticated connection ids bound to userID.
// An offline user yields an empty slice.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ids := make([]string, 0, len(r.userConns[userID]))
	for id := range r.userConns[userID] {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) Lookup(connID string) (ConnectionInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	conn, ok := r.connections[connID]
	if !ok {
		return ConnectionInfo{}, false
	}
	return conn.info, true
}

func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.connections)
}

// StaleSince snapshots the ids whose last liveness is before cutoff.
func (r *Registry) StaleSince(cutoff time.Time) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var ids []string
	for id, conn := range r.connections {
		if conn.info.LastLiveness.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Evict closes the transport of connID and unregisters it.
func (r *Registry) Evict(connID string) bool {
	r.mutex.Lock()
	conn, ok := r.removeLocked(connID)
	r.mutex.Unlock()
	if !ok {
		return false
	}
	r.closeEvicted(connID, conn)
	return true
}

// EvictIfStale evicts connID only if its last liveness is still before cutoff.
// A connection touched after a StaleSince snapshot survives.
func (r *Registry) EvictIfStale(connID string, cutoff time.Time) bool {
	r.mutex.Lock()
	conn, ok := r.connections[connID]
	if !ok || !conn.info.LastLiveness.Before(cutoff) {
		r.mutex.Unlock()
		return false
	}
	r.removeLocked(connID)
	r.mutex.Unlock()

	r.closeEvicted(connID, conn)
	return true
}

func (r *Registry) closeEvicted(connID string, conn *connection) {
	if err := conn.transport.Close(); err != nil {
		r.log.Debug("Failed to close evicted connection", "connection_id", connID, "error", err)
	}
}

// Send writes a connection-level frame regardless of authentication state.
func (r *Registry) Send(connID string, frame []byte) error {
	r.mutex.RLock()
	conn, ok := r.connections[connID]
	r.mutex.RUnlock()
	if !ok {
		return domain.ErrUnknownConnection
	}
	return conn.transport.Send(frame)
}

func (r *Registry) userTargets(userID string) []target {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	targets := make([]target, 0, len(r.userConns[userID]))
	for id := range r.userConns[userID] {
		if conn, ok := r.connections[id]; ok {
			targets = append(targets, target{id: id, userID: userID, transport: conn.transport})
		}
	}
	return targets
}

func (r *Registry) authenticatedTargets(excludeUserID string) []target {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var targets []target
	for id, conn := range r.connections {
		if !conn.info.Authenticated {
			continue
		}
		if excludeUserID != "" && conn.info.UserID == excludeUserID {
			continue
		}
		targets = append(targets, target{id: id, userID: conn.info.UserID, transport: conn.transport})
	}
	return targets
}
