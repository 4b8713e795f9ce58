package main

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 16384
	sendBufSize       = 256
	maxMessagesPerSec = 50
	maxNameLen        = 16
	maxRoomNameLen    = 30
	maxChatLen        = 200
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	clientID   string
	remoteAddr string
	msgCount   int
	msgResetAt time.Time

	// Session state, mutated from the read pump and from matchmaker /
	// timer callbacks
	stateMu  sync.Mutex
	username string
	roomID   string
	binary   bool
}

// NewClient creates a new Client with a fresh client id
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		clientID:   GenerateID(4),
		remoteAddr: remoteAddr,
	}
}

// ClientID returns the opaque per-connection id
func (c *Client) ClientID() string { return c.clientID }

// DisplayName returns the most recently supplied username
func (c *Client) DisplayName() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.username
}

func (c *Client) setUsername(name string) {
	name = sanitizeName(name)
	c.stateMu.Lock()
	c.username = name
	c.stateMu.Unlock()
}

// EnterRoom records the room this client now belongs to. Called from
// the client's own read pump and from the matchmaker.
func (c *Client) EnterRoom(roomID string) {
	c.stateMu.Lock()
	c.roomID = roomID
	c.stateMu.Unlock()
}

func (c *Client) currentRoom() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.roomID
}

func (c *Client) clearRoom() {
	c.stateMu.Lock()
	c.roomID = ""
	c.stateMu.Unlock()
}

// BinarySnapshots reports whether this client opted into msgpack
// playerUpdate frames
func (c *Client) BinarySnapshots() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.binary
}

func sanitizeName(name string) string {
	if name == "" {
		name = "Player"
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming messages (single-pass decode via
// InEnvelope). Unknown types are silently ignored; malformed payloads
// are dropped and the connection stays open.
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgQuickMatch:
		c.handleQuickMatch(env.D)
	case MsgCreateRoom:
		c.handleCreateRoom(env.D)
	case MsgJoinRoom:
		c.handleJoinRoom(env.D)
	case MsgLeaveRoom:
		c.handleLeaveRoom()
	case MsgStartGame, MsgForceStart:
		c.handleStartGame()
	case MsgGameUpdate:
		c.handleGameUpdate(env.D)
	case MsgGameOver:
		c.handleGameOver(env.D)
	case MsgAttack:
		c.handleAttack(env.D)
	case MsgChat:
		c.handleChat(env.D)
	case MsgBinary:
		c.handleBinary(env.D)
	}
}

func (c *Client) handleQuickMatch(data json.RawMessage) {
	var msg QuickMatchMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if c.currentRoom() != "" {
		c.sendError("already in a room")
		return
	}
	c.setUsername(msg.Username)
	c.hub.matchmaker.Enqueue(c, msg.Rank)
}

func (c *Client) handleCreateRoom(data json.RawMessage) {
	var msg CreateRoomMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if c.currentRoom() != "" {
		c.sendError("already in a room")
		return
	}
	// A queued client that opts into a custom room must not be
	// force-matched later by its pending queue timer
	c.hub.matchmaker.Remove(c.clientID)
	c.setUsername(msg.Username)

	name := msg.RoomName
	if name == "" {
		name = "Block Party"
	}
	if len(name) > maxRoomNameLen {
		name = name[:maxRoomNameLen]
	}
	maxPlayers := msg.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = DefaultRoomSize
	}

	room := c.hub.rooms.CreateRoom(name, msg.Password, maxPlayers, false, RankC)
	if room == nil {
		c.sendError("too many active rooms")
		return
	}
	if err := room.AddPlayer(c.clientID, c.DisplayName(), msg.Password, c); err != nil {
		c.sendError(err.Error())
		return
	}
	c.EnterRoom(room.ID)
	c.SendJSON(Envelope{T: MsgRoomCreated, Data: RoomCreatedMsg{RoomID: room.ID}})
}

func (c *Client) handleJoinRoom(data json.RawMessage) {
	var msg JoinRoomMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if c.currentRoom() != "" {
		c.sendError("already in a room")
		return
	}
	c.hub.matchmaker.Remove(c.clientID)
	c.setUsername(msg.Username)

	room := c.hub.rooms.GetRoom(msg.RoomID)
	if room == nil {
		c.sendError(ErrRoomNotFound.Error())
		return
	}
	if err := room.AddPlayer(c.clientID, c.DisplayName(), msg.Password, c); err != nil {
		c.sendError(err.Error())
		return
	}
	c.EnterRoom(room.ID)

	c.SendJSON(Envelope{T: MsgRoomJoined, Data: RoomJoinedMsg{RoomID: room.ID, Players: room.Roster()}})
	room.Broadcast(Envelope{T: MsgPlayerJoined, Data: RosterMsg{Players: room.Roster()}}, c.clientID)
}

func (c *Client) handleLeaveRoom() {
	roomID := c.currentRoom()
	if roomID == "" {
		return
	}
	c.hub.rooms.LeaveRoom(roomID, c.clientID, false)
	c.clearRoom()
}

func (c *Client) handleStartGame() {
	room := c.hub.rooms.GetRoom(c.currentRoom())
	if room == nil {
		return
	}
	room.StartGame()
}

func (c *Client) handleGameUpdate(data json.RawMessage) {
	var msg GameUpdateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.hub.rooms.GetRoom(c.currentRoom())
	if room == nil {
		return
	}
	room.HandleGameUpdate(c.clientID, msg)
}

func (c *Client) handleGameOver(data json.RawMessage) {
	var msg GameOverMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.hub.rooms.GetRoom(c.currentRoom())
	if room == nil {
		return
	}
	room.HandleGameOver(c.clientID, msg.Score)
}

func (c *Client) handleAttack(data json.RawMessage) {
	var msg AttackMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.hub.rooms.GetRoom(c.currentRoom())
	if room == nil {
		return
	}
	room.HandleAttack(c.clientID, msg.Lines)
}

func (c *Client) handleChat(data json.RawMessage) {
	var msg ChatMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Message == "" {
		return
	}
	if len(msg.Message) > maxChatLen {
		msg.Message = msg.Message[:maxChatLen]
	}
	room := c.hub.rooms.GetRoom(c.currentRoom())
	if room == nil {
		return
	}
	room.HandleChat(c.clientID, msg.Message)
}

func (c *Client) handleBinary(data json.RawMessage) {
	var msg BinaryMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.stateMu.Lock()
	c.binary = msg.Enabled
	c.stateMu.Unlock()
}
