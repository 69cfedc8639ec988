package gateway

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// privateRoomSeparator joins the two sorted participant ids of a private room.
const privateRoomSeparator = "-"

// PrivateRoomName returns the room shared by two identities. The ids are
// sorted first so both peers derive the same name independently.
//
// Ids that themselves contain the separator can collide: ("a-b", "c") and
// ("a", "b-c") both yield "a-b-c". Private messages are addressed by
// recipient id and never through this room, so a collision only merges two
// typing/join rooms.
func PrivateRoomName(idA, idB string) string {
	ids := []string{idA, idB}
	sort.Strings(ids)
	return strings.Join(ids, privateRoomSeparator)
}

// ValidateRoomName checks an explicitly requested room name.
func ValidateRoomName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: room name is required", ErrInvalidRoom)
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		return fmt.Errorf("%w: room name exceeds %d characters", ErrInvalidRoom, MaxRoomNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: room name is not valid UTF-8", ErrInvalidRoom)
	}
	return nil
}

// Join subscribes a connection to a room, creating the room on first join.
// Joining twice is a no-op.
func (r *Registry) Join(connectionID, room string) error {
	if err := ValidateRoomName(room); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connectionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, connectionID)
	}
	r.joinLocked(connectionID, room)
	return nil
}

// Leave removes a connection from a room. Empty rooms are discarded.
func (r *Registry) Leave(connectionID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connectionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, connectionID)
	}
	r.leaveLocked(connectionID, room)
	return nil
}

// Members returns the connection ids subscribed to room at call time.
func (r *Registry) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.rooms[room])
}

// Rooms returns the rooms a connection has joined.
func (r *Registry) Rooms(connectionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[connectionID]
	if !ok {
		return nil
	}
	return sortedKeys(c.rooms)
}

func (r *Registry) joinLocked(connectionID, room string) {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[connectionID] = struct{}{}
	r.conns[connectionID].rooms[room] = struct{}{}
}

func (r *Registry) leaveLocked(connectionID, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if c, ok := r.conns[connectionID]; ok {
		delete(c.rooms, room)
	}
}
