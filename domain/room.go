package domain

import "chat-probe/errors"

// Room is a messaging channel discovered on the target service.
// Exactly one room is selected per run and shared read-only by all sessions.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SelectTarget picks the room every session of the run will join.
// Policy: the first room in service order. An empty list is fatal to
// the whole run, there is nothing to load.
func SelectTarget(rooms []Room) (Room, error) {
	if len(rooms) == 0 {
		return Room{}, errors.ErrNoRoomAvailable
	}
	return rooms[0], nil
}
