package main

import (
	"errors"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// GamePhase is the room lifecycle state
type GamePhase int

const (
	PhaseWaiting GamePhase = iota
	PhasePlaying
	PhaseEnded
)

// Join errors, surfaced to the requesting client as error messages
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrGameInProgress = errors.New("game already in progress")
	ErrWrongPassword  = errors.New("wrong password")
	ErrRoomFull       = errors.New("room is full")
)

// Broadcaster delivers messages to one client
type Broadcaster interface {
	SendJSON(msg interface{})
}

// binarySender is implemented by clients that can take compact
// msgpack playerUpdate frames instead of JSON
type binarySender interface {
	SendBinary(data []byte)
	BinarySnapshots() bool
}

// Room owns the shared state of one game session: human records, bot
// engines, the phase machine, and the match-start timer. One mutex
// serializes every mutation — network handlers, bot ticks, and timer
// callbacks are all independent entry points.
type Room struct {
	ID           string
	Name         string
	Password     string
	MaxPlayers   int
	IsQuickMatch bool
	Rank         string
	CreatedAt    time.Time

	mu         sync.Mutex
	phase      GamePhase
	players    map[string]*PlayerRecord
	bots       map[string]*BotPlayer
	clients    map[string]Broadcaster
	startTimer *time.Timer
	startedAt  time.Time
	rng        *rand.Rand

	analytics *Analytics
}

// NewRoom creates a room in the WAITING phase
func NewRoom(name, password string, maxPlayers int, quick bool, rank string, analytics *Analytics) *Room {
	if maxPlayers < 2 {
		maxPlayers = DefaultRoomSize
	}
	if maxPlayers > MaxRoomSize {
		maxPlayers = MaxRoomSize
	}
	if !ValidRank(rank) {
		rank = RankC
	}
	return &Room{
		ID:           NewRoomID(),
		Name:         name,
		Password:     password,
		MaxPlayers:   maxPlayers,
		IsQuickMatch: quick,
		Rank:         rank,
		CreatedAt:    time.Now(),
		phase:        PhaseWaiting,
		players:      make(map[string]*PlayerRecord),
		bots:         make(map[string]*BotPlayer),
		clients:      make(map[string]Broadcaster),
		rng:          rand.New(rand.NewSource(rand.Int63())),
		analytics:    analytics,
	}
}

// Phase returns the current lifecycle phase
func (r *Room) Phase() GamePhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// HumanCount returns the number of human members
func (r *Room) HumanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// MemberCount returns humans + bots
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) + len(r.bots)
}

// AddPlayer admits a human member. Fails once the game has started,
// the password is wrong, or membership reached capacity.
func (r *Room) AddPlayer(id, name, password string, bc Broadcaster) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseWaiting {
		return ErrGameInProgress
	}
	if r.Password != "" && r.Password != password {
		return ErrWrongPassword
	}
	if len(r.players)+len(r.bots) >= r.MaxPlayers {
		return ErrRoomFull
	}

	r.players[id] = NewPlayerRecord(id, name, r.Rank)
	if bc != nil {
		r.clients[id] = bc
	}
	return nil
}

// Leave removes a member by id from whichever map contains it. A
// departing bot has its timer stopped first so no dangling tick writes
// into a removed record. A human leaving mid-game is treated as a
// game over. Returns the remaining human count.
func (r *Room) Leave(id string, disconnected bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bots[id]; ok {
		b.StopTicker()
		delete(r.bots, id)
		return len(r.players)
	}

	p, ok := r.players[id]
	if !ok {
		return len(r.players)
	}

	diedInGame := r.phase == PhasePlaying && p.Alive
	if diedInGame {
		p.Alive = false
		r.broadcastLocked(Envelope{T: MsgPlayerDied, Data: PlayerDiedMsg{PlayerID: id, Score: p.Score}}, id)
	}

	delete(r.players, id)
	delete(r.clients, id)

	t := MsgPlayerLeft
	if disconnected {
		t = MsgPlayerDisconnected
	}
	r.broadcastLocked(Envelope{T: t, Data: PlayerGoneMsg{PlayerID: id, Players: r.rosterLocked()}}, "")

	if diedInGame {
		r.checkGameEndLocked()
	}
	return len(r.players)
}

// ArmStartTimer schedules an automatic StartGame. StartGame cancels it.
func (r *Room) ArmStartTimer(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseWaiting {
		return
	}
	r.startTimer = time.AfterFunc(d, r.StartGame)
}

// StartGame transitions WAITING -> PLAYING. Idempotent: the match-start
// timer and an explicit start request may race here safely. Quick-match
// rooms are backfilled with bots before play begins.
func (r *Room) StartGame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startGameLocked()
}

func (r *Room) startGameLocked() {
	if r.phase != PhaseWaiting {
		return
	}
	if r.startTimer != nil {
		r.startTimer.Stop()
		r.startTimer = nil
	}

	if r.IsQuickMatch {
		headcount := len(r.players) + len(r.bots)
		target := BackfillTarget(headcount)
		for n := headcount; n < target && n < r.MaxPlayers; n++ {
			b := NewBotPlayer(r.Rank, r.rng)
			r.bots[b.ID] = b
		}
	}

	r.phase = PhasePlaying
	r.startedAt = time.Now()

	for _, b := range r.bots {
		go r.runBot(b)
	}

	r.broadcastLocked(Envelope{T: MsgGameStart, Data: RosterMsg{Players: r.rosterLocked()}}, "")
	r.analytics.Track(EvtMatchStart, "", r.ID, "")
	log.Printf("room %s: game started (%d humans, %d bots, rank %s)", r.ID, len(r.players), len(r.bots), r.Rank)
}

// EndGame transitions to ENDED. Idempotent: near-simultaneous deaths
// may both trigger the end-of-game check.
func (r *Room) EndGame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endGameLocked()
}

func (r *Room) endGameLocked() {
	if r.phase == PhaseEnded {
		return
	}
	if r.startTimer != nil {
		r.startTimer.Stop()
		r.startTimer = nil
	}
	for _, b := range r.bots {
		b.StopTicker()
	}

	rankings := r.rankingsLocked()
	r.phase = PhaseEnded
	r.broadcastLocked(Envelope{T: MsgGameEnd, Data: GameEndMsg{Rankings: rankings}}, "")

	rec := MatchRecord{
		RoomID:   r.ID,
		Rank:     r.Rank,
		Quick:    r.IsQuickMatch,
		Players:  len(r.players),
		Bots:     len(r.bots),
		Duration: time.Since(r.startedAt).Seconds(),
	}
	if len(rankings) > 0 {
		rec.WinnerID = rankings[0].PlayerID
		rec.WinnerName = rankings[0].Name
	}
	r.analytics.RecordMatch(rec)
	r.analytics.Track(EvtMatchEnd, rec.WinnerID, r.ID, "")
	log.Printf("room %s: game ended, winner %s", r.ID, rec.WinnerName)
}

// Shutdown stops every timer the room owns. Called by the manager when
// the last human leaves; a leaked bot tick would mutate freed state.
func (r *Room) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startTimer != nil {
		r.startTimer.Stop()
		r.startTimer = nil
	}
	for _, b := range r.bots {
		b.StopTicker()
	}
	r.phase = PhaseEnded
}

// rankingsLocked sorts members alive-first, then by descending score,
// stable otherwise. Aliveness strictly dominates score.
func (r *Room) rankingsLocked() []RankingEntry {
	entries := make([]RankingEntry, 0, len(r.players)+len(r.bots))
	humans := make([]*PlayerRecord, 0, len(r.players))
	for _, p := range r.players {
		humans = append(humans, p)
	}
	sort.Slice(humans, func(i, j int) bool { return humans[i].JoinedAt.Before(humans[j].JoinedAt) })
	for _, p := range humans {
		entries = append(entries, RankingEntry{PlayerID: p.ID, Name: p.Name, Score: p.Score, Alive: p.Alive})
	}
	botIDs := make([]string, 0, len(r.bots))
	for id := range r.bots {
		botIDs = append(botIDs, id)
	}
	sort.Strings(botIDs)
	for _, id := range botIDs {
		b := r.bots[id]
		entries = append(entries, RankingEntry{PlayerID: b.ID, Name: b.Name, Score: b.Score, Alive: b.Alive, Bot: true})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Alive != entries[j].Alive {
			return entries[i].Alive
		}
		return entries[i].Score > entries[j].Score
	})
	return entries
}

// Rankings returns the current standings
func (r *Room) Rankings() []RankingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rankingsLocked()
}

func (r *Room) rosterLocked() []PlayerInfo {
	roster := make([]PlayerInfo, 0, len(r.players)+len(r.bots))
	humans := make([]*PlayerRecord, 0, len(r.players))
	for _, p := range r.players {
		humans = append(humans, p)
	}
	sort.Slice(humans, func(i, j int) bool { return humans[i].JoinedAt.Before(humans[j].JoinedAt) })
	for _, p := range humans {
		roster = append(roster, p.Info())
	}
	botIDs := make([]string, 0, len(r.bots))
	for id := range r.bots {
		botIDs = append(botIDs, id)
	}
	sort.Strings(botIDs)
	for _, id := range botIDs {
		roster = append(roster, r.bots[id].Info())
	}
	return roster
}

// Roster returns the current member list
func (r *Room) Roster() []PlayerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

// livingCountLocked counts living members across humans and bots
func (r *Room) livingCountLocked() int {
	n := 0
	for _, p := range r.players {
		if p.Alive {
			n++
		}
	}
	for _, b := range r.bots {
		if b.Alive {
			n++
		}
	}
	return n
}

// checkGameEndLocked ends the game once at most one member is living.
// endGameLocked's idempotency guard makes concurrent checks safe.
func (r *Room) checkGameEndLocked() {
	if r.phase != PhasePlaying {
		return
	}
	if r.livingCountLocked() <= 1 {
		r.endGameLocked()
	}
}

// HandleGameUpdate stores a human's client-reported snapshot and
// rebroadcasts it to the rest of the room. Ignored outside PLAYING.
func (r *Room) HandleGameUpdate(id string, msg GameUpdateMsg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhasePlaying {
		return
	}
	p, ok := r.players[id]
	if !ok || !p.Alive {
		return
	}
	p.ApplyUpdate(msg)
	r.broadcastUpdateLocked(PlayerUpdateMsg{
		PlayerID:     id,
		Score:        p.Score,
		LinesCleared: p.Lines,
		Field:        p.Field,
		CurrentPiece: p.CurrentPiece,
	}, id)
}

// HandleGameOver marks a human dead and re-evaluates end-of-game
func (r *Room) HandleGameOver(id string, score int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhasePlaying {
		return
	}
	p, ok := r.players[id]
	if !ok || !p.Alive {
		return
	}
	p.Alive = false
	if score > p.Score {
		p.Score = score
	}
	r.broadcastLocked(Envelope{T: MsgPlayerDied, Data: PlayerDiedMsg{PlayerID: id, Score: p.Score}}, "")
	r.analytics.Track(EvtPlayerDeath, id, r.ID, "")
	r.checkGameEndLocked()
}

// HandleAttack routes a human-initiated attack at a uniformly random
// living target, excluding the attacker
func (r *Room) HandleAttack(fromID string, lines int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhasePlaying || lines <= 0 {
		return
	}
	if lines > 4 {
		lines = 4
	}
	r.attackLocked(fromID, lines)
}

// attackLocked delivers garbage to a random living member other than
// the attacker. Bot targets take the garbage server-side; human
// targets are notified and apply it client-side.
func (r *Room) attackLocked(fromID string, lines int) {
	targets := make([]string, 0, len(r.players)+len(r.bots))
	for id, p := range r.players {
		if id != fromID && p.Alive {
			targets = append(targets, id)
		}
	}
	for id, b := range r.bots {
		if id != fromID && b.Alive {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return
	}
	sort.Strings(targets)
	targetID := targets[r.rng.Intn(len(targets))]

	if b, ok := r.bots[targetID]; ok {
		b.ReceiveGarbage(lines)
	} else if c, ok := r.clients[targetID]; ok {
		c.SendJSON(Envelope{T: MsgAttacked, Data: AttackedMsg{FromPlayerID: fromID, Lines: lines}})
	}
	r.analytics.Track(EvtAttack, fromID, r.ID, "")
}

// HandleChat relays a chat message to the whole room
func (r *Room) HandleChat(id, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := id
	if p, ok := r.players[id]; ok {
		name = p.Name
	}
	r.broadcastLocked(Envelope{T: MsgChat, Data: ChatMsg{Username: name, Message: message}}, "")
}

// runBot is the bot's independent tick loop: a repeating timer whose
// interval encodes difficulty and room rank
func (r *Room) runBot(b *BotPlayer) {
	ticker := time.NewTicker(b.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if !r.botTick(b) {
				return
			}
		}
	}
}

// botTick runs one bot move under the room lock. Returns false when
// the loop should stop. A tick that observes a dead bot, a removed
// bot, or a non-PLAYING room exits without side effects.
func (r *Room) botTick(b *BotPlayer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhasePlaying || !b.Alive {
		b.StopTicker()
		return false
	}
	if _, ok := r.bots[b.ID]; !ok {
		return false
	}

	_, alive := b.PlayMove()
	if !alive {
		b.StopTicker()
		r.broadcastLocked(Envelope{T: MsgPlayerDied, Data: PlayerDiedMsg{PlayerID: b.ID, Score: b.Score}}, "")
		r.analytics.Track(EvtPlayerDeath, b.ID, r.ID, "")
		r.checkGameEndLocked()
		return false
	}

	r.broadcastUpdateLocked(b.Update(), b.ID)

	if r.rng.Float64() < attackRate(r.Rank) {
		r.attackLocked(b.ID, 1+r.rng.Intn(3))
	}
	return true
}

// broadcastLocked fans a message out to every member transport except
// the excluded id ("" = nobody excluded)
func (r *Room) broadcastLocked(env Envelope, excludeID string) {
	for id, c := range r.clients {
		if id == excludeID {
			continue
		}
		c.SendJSON(env)
	}
}

// broadcastUpdateLocked sends a playerUpdate: msgpack frames to clients
// that opted into binary snapshots, JSON envelopes otherwise
func (r *Room) broadcastUpdateLocked(u PlayerUpdateMsg, excludeID string) {
	var packed []byte
	env := Envelope{T: MsgPlayerUpdate, Data: u}
	for id, c := range r.clients {
		if id == excludeID {
			continue
		}
		if bs, ok := c.(binarySender); ok && bs.BinarySnapshots() {
			if packed == nil {
				var err error
				packed, err = msgpack.Marshal(&u)
				if err != nil {
					log.Printf("msgpack marshal: %v", err)
					packed = []byte{}
				}
			}
			if len(packed) > 0 {
				bs.SendBinary(packed)
				continue
			}
		}
		c.SendJSON(env)
	}
}

// Broadcast fans a message out to the room (exported for handlers)
func (r *Room) Broadcast(env Envelope, excludeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(env, excludeID)
}

// Info summarizes the room for listings
type RoomInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	Rank       string `json:"rank"`
	QuickMatch bool   `json:"quickMatch"`
	Locked     bool   `json:"locked"`
	Playing    bool   `json:"playing"`
}

// Info returns a listing summary
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		ID:         r.ID,
		Name:       r.Name,
		Players:    len(r.players) + len(r.bots),
		MaxPlayers: r.MaxPlayers,
		Rank:       r.Rank,
		QuickMatch: r.IsQuickMatch,
		Locked:     r.Password != "",
		Playing:    r.phase == PhasePlaying,
	}
}
