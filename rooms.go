package main

import (
	"log"
	"sync"
)

const maxRooms = 200

// RoomManager handles creation, lookup, and teardown of rooms
type RoomManager struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	analytics *Analytics
}

// NewRoomManager creates an empty manager
func NewRoomManager(analytics *Analytics) *RoomManager {
	return &RoomManager{
		rooms:     make(map[string]*Room),
		analytics: analytics,
	}
}

// CreateRoom creates a new room. Returns nil if the room limit is reached.
func (rm *RoomManager) CreateRoom(name, password string, maxPlayers int, quick bool, rank string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.rooms) >= maxRooms {
		return nil
	}

	room := NewRoom(name, password, maxPlayers, quick, rank, rm.analytics)
	rm.rooms[room.ID] = room
	rm.analytics.Track(EvtRoomCreated, "", room.ID, "")
	return room
}

// GetRoom returns a room by id, nil when absent
func (rm *RoomManager) GetRoom(id string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[id]
}

// LeaveRoom removes a member and tears the room down when its human
// map empties — bots alone never keep a room alive. Teardown stops
// every timer the room owns before the room is dropped.
func (rm *RoomManager) LeaveRoom(roomID, playerID string, disconnected bool) {
	rm.mu.RLock()
	room, ok := rm.rooms[roomID]
	rm.mu.RUnlock()
	if !ok {
		return
	}

	humans := room.Leave(playerID, disconnected)
	if humans == 0 {
		room.Shutdown()
		rm.mu.Lock()
		delete(rm.rooms, roomID)
		rm.mu.Unlock()
		log.Printf("room %s: removed (no humans left)", roomID)
	}
}

// ListRooms returns listing summaries for all rooms
func (rm *RoomManager) ListRooms() []RoomInfo {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		rooms = append(rooms, r)
	}
	rm.mu.RUnlock()

	list := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		list = append(list, r.Info())
	}
	return list
}

// RoomCount returns the number of active rooms
func (rm *RoomManager) RoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}
