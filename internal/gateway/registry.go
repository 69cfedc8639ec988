package gateway

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type connection struct {
	conn     Conn
	identity Identity
	rooms    map[string]struct{}
}

// Registry is the single source of truth for who is online. It maps
// identities to their live connections and connections to the rooms they
// joined. All reads and writes go through one lock, so a lookup never observes
// a half-applied register or deregister.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*connection         // connectionID -> connection
	byUser   map[string]map[string]struct{} // userID -> connectionIDs
	rooms    map[string]map[string]struct{} // room -> connectionIDs
	lastSeen map[string]time.Time

	// notifyMu serializes online/offline flips together with their
	// notifications so observers never see two mutations interleaved.
	notifyMu  sync.Mutex
	observers []PresenceObserver

	now    func() time.Time
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the time source used for last-seen timestamps.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithRegistryLogger sets the logger used for bookkeeping anomalies.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		conns:    make(map[string]*connection),
		byUser:   make(map[string]map[string]struct{}),
		rooms:    make(map[string]map[string]struct{}),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe adds an observer for online/offline flips. Observers are called in
// the order they were added, after the mutation has been applied, and must
// not block: Register and Deregister wait for them.
func (r *Registry) Observe(obs PresenceObserver) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.observers = append(r.observers, obs)
}

// Register adds conn for identity and joins it to DefaultRoom. It returns
// ErrDuplicateConnection, leaving the registry untouched, when the connection
// id is already registered. Observers are notified when this is the
// identity's first live connection.
func (r *Registry) Register(identity Identity, conn Conn) (online bool, err error) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	id := conn.ID()

	r.mu.Lock()
	if _, exists := r.conns[id]; exists {
		r.mu.Unlock()
		r.logger.Warn("duplicate connection registration", "connectionId", id, "userId", identity.UserID)
		return false, fmt.Errorf("%w: %s", ErrDuplicateConnection, id)
	}

	r.conns[id] = &connection{
		conn:     conn,
		identity: identity,
		rooms:    make(map[string]struct{}),
	}
	userConns, ok := r.byUser[identity.UserID]
	if !ok {
		userConns = make(map[string]struct{})
		r.byUser[identity.UserID] = userConns
	}
	first := len(userConns) == 0
	userConns[id] = struct{}{}
	r.joinLocked(id, DefaultRoom)
	count := len(r.conns)
	r.mu.Unlock()

	r.logger.Debug("connection registered", "connectionId", id, "userId", identity.UserID, "connections", count)

	if first {
		r.notify(PresenceChange{Identity: identity, Online: true, At: r.now()})
	}
	return first, nil
}

// Deregister removes the connection and its room memberships. It returns
// ErrNotFound for unknown ids, which happens on redundant disconnect signals.
// When the last connection of an identity goes away the identity is marked
// offline, its last-seen time is recorded and observers are notified.
func (r *Registry) Deregister(connectionID string) (offline bool, err error) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	c, exists := r.conns[connectionID]
	if !exists {
		r.mu.Unlock()
		r.logger.Debug("deregister of unknown connection", "connectionId", connectionID)
		return false, fmt.Errorf("%w: %s", ErrNotFound, connectionID)
	}

	for room := range c.rooms {
		r.leaveLocked(connectionID, room)
	}
	delete(r.conns, connectionID)

	userID := c.identity.UserID
	userConns := r.byUser[userID]
	delete(userConns, connectionID)
	last := len(userConns) == 0
	at := r.now()
	if last {
		delete(r.byUser, userID)
		r.lastSeen[userID] = at
	}
	count := len(r.conns)
	r.mu.Unlock()

	r.logger.Debug("connection deregistered", "connectionId", connectionID, "userId", userID, "connections", count)

	if last {
		r.notify(PresenceChange{Identity: c.identity, Online: false, At: at})
	}
	return last, nil
}

func (r *Registry) notify(change PresenceChange) {
	for _, obs := range r.observers {
		obs.OnPresenceChange(change)
	}
}

// LookupConnections returns the live connection ids of userID, sorted. An
// empty result means the user is offline.
func (r *Registry) LookupConnections(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.byUser[userID])
}

// IsOnline reports whether userID holds at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Identity returns the identity owning connectionID.
func (r *Registry) Identity(connectionID string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connectionID]
	if !ok {
		return Identity{}, false
	}
	return c.identity, true
}

// LastSeen returns when userID last went offline.
func (r *Registry) LastSeen(userID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.lastSeen[userID]
	return t, ok
}

// Online returns the identities that are currently online, ordered by user id.
func (r *Registry) Online() PresenceSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(PresenceSnapshot, 0, len(r.byUser))
	for _, userID := range sortedKeys(r.byUser) {
		// Devices may carry different claims; the lowest connection id wins.
		connIDs := sortedKeys(r.byUser[userID])
		snapshot = append(snapshot, r.conns[connIDs[0]].identity)
	}
	return snapshot
}

// ConnectionIDs returns every live connection id, sorted.
func (r *Registry) ConnectionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.conns)
}

// Conns resolves connection ids to live connections, skipping ids that have
// been deregistered in the meantime.
func (r *Registry) Conns(ids []string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.conns[id]; ok {
			conns = append(conns, c.conn)
		}
	}
	return conns
}

// Stats reports the number of live connections, online users and rooms.
func (r *Registry) Stats() (connections, users, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.byUser), len(r.rooms)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
