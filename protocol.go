package main

import "encoding/json"

// Client -> Server message types
const (
	MsgQuickMatch = "quickMatch"
	MsgCreateRoom = "createRoom"
	MsgJoinRoom   = "joinRoom"
	MsgLeaveRoom  = "leaveRoom"
	MsgStartGame  = "startGame"
	MsgForceStart = "forceStart"
	MsgGameUpdate = "gameUpdate"
	MsgGameOver   = "gameOver"
	MsgAttack     = "attack"
	MsgChat       = "chat" // also server -> client relay
	MsgBinary     = "binary"
)

// Server -> Client message types
const (
	MsgConnected          = "connected"
	MsgQuickMatchWaiting  = "quickMatchWaiting"
	MsgQuickMatchFound    = "quickMatchFound"
	MsgRoomCreated        = "roomCreated"
	MsgRoomJoined         = "roomJoined"
	MsgPlayerJoined       = "playerJoined"
	MsgPlayerLeft         = "playerLeft"
	MsgPlayerDisconnected = "playerDisconnected"
	MsgGameStart          = "gameStart"
	MsgPlayerUpdate       = "playerUpdate"
	MsgPlayerDied         = "playerDied"
	MsgAttacked           = "attacked"
	MsgGameEnd            = "gameEnd"
	MsgError              = "error"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// QuickMatchMsg asks to be queued for a quick match in the given rank
type QuickMatchMsg struct {
	Rank     string `json:"rank"`
	Username string `json:"username"`
}

// CreateRoomMsg creates a custom room
type CreateRoomMsg struct {
	RoomName   string `json:"roomName"`
	Password   string `json:"password,omitempty"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
	Username   string `json:"username"`
}

// JoinRoomMsg joins an existing room by id
type JoinRoomMsg struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password,omitempty"`
	Username string `json:"username"`
}

// GameUpdateMsg carries a client's periodic state snapshot.
// The server stores and rebroadcasts it as-is (no validation).
type GameUpdateMsg struct {
	Score        int        `json:"score"`
	LinesCleared int        `json:"linesCleared"`
	Field        [][]string `json:"field"`
	CurrentPiece string     `json:"currentPiece"`
}

// GameOverMsg reports a client topping out
type GameOverMsg struct {
	Score int `json:"score"`
}

// AttackMsg sends garbage lines at a random opponent
type AttackMsg struct {
	Lines int `json:"lines"`
}

// ChatMsg is a chat message (inbound: message only; outbound adds username)
type ChatMsg struct {
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
}

// BinaryMsg toggles compact msgpack playerUpdate frames for this connection
type BinaryMsg struct {
	Enabled bool `json:"enabled"`
}

// ConnectedMsg is the first message after the upgrade
type ConnectedMsg struct {
	ClientID string `json:"clientId"`
}

// PlayerInfo describes one room member in roster messages
type PlayerInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Lines      int    `json:"linesCleared"`
	Alive      bool   `json:"alive"`
	Bot        bool   `json:"bot"`
	Difficulty string `json:"difficulty,omitempty"`
}

// QuickMatchFoundMsg tells a queued client its room is ready
type QuickMatchFoundMsg struct {
	RoomID  string       `json:"roomId"`
	Players []PlayerInfo `json:"players"`
}

// RoomCreatedMsg confirms room creation to the creator
type RoomCreatedMsg struct {
	RoomID string `json:"roomId"`
}

// RoomJoinedMsg confirms a join to the joining client
type RoomJoinedMsg struct {
	RoomID  string       `json:"roomId"`
	Players []PlayerInfo `json:"players"`
}

// RosterMsg carries the current roster (playerJoined, gameStart)
type RosterMsg struct {
	Players []PlayerInfo `json:"players"`
}

// PlayerGoneMsg is broadcast when a member leaves or disconnects
type PlayerGoneMsg struct {
	PlayerID string       `json:"playerId"`
	Players  []PlayerInfo `json:"players"`
}

// PlayerUpdateMsg is the per-player state broadcast. It doubles as the
// msgpack payload for clients that opted into binary frames.
type PlayerUpdateMsg struct {
	PlayerID     string     `json:"playerId" msgpack:"id"`
	Score        int        `json:"score" msgpack:"sc"`
	LinesCleared int        `json:"linesCleared" msgpack:"ln"`
	Field        [][]string `json:"field" msgpack:"f"`
	CurrentPiece string     `json:"currentPiece,omitempty" msgpack:"cp,omitempty"`
}

// PlayerDiedMsg is broadcast when a member tops out
type PlayerDiedMsg struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// AttackedMsg is sent to the target of an attack
type AttackedMsg struct {
	FromPlayerID string `json:"fromPlayerId"`
	Lines        int    `json:"lines"`
}

// RankingEntry is one row of the final standings
type RankingEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Alive    bool   `json:"alive"`
	Bot      bool   `json:"bot"`
}

// GameEndMsg carries the final standings
type GameEndMsg struct {
	Rankings []RankingEntry `json:"rankings"`
}

// ErrorMsg sends an error to the client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// StatusSnapshot is the read-only /status payload
type StatusSnapshot struct {
	Rooms   int            `json:"rooms"`
	Clients int            `json:"clients"`
	Queues  map[string]int `json:"queues"`
}
