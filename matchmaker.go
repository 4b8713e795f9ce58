package main

import (
	"log"
	"sync"
	"time"
)

// QueueMember is a waiting client as the matchmaker sees it
type QueueMember interface {
	Broadcaster
	ClientID() string
	DisplayName() string
	EnterRoom(roomID string)
}

type queueEntry struct {
	member   QueueMember
	joinedAt time.Time
}

// Matchmaker owns the per-rank waiting queues. Matching has a dual
// trigger: reaching the ideal queue length matches immediately, and a
// per-enqueue timeout force-matches whatever is still waiting. Every
// check-and-splice happens under one lock so no client is ever matched
// twice or left behind.
type Matchmaker struct {
	mu     sync.Mutex
	queues map[string][]queueEntry
	rooms  *RoomManager

	analytics *Analytics

	// test hooks
	queueTimeout    time.Duration
	matchStartDelay time.Duration
}

// NewMatchmaker creates a matchmaker over the given room manager
func NewMatchmaker(rooms *RoomManager, analytics *Analytics) *Matchmaker {
	return &Matchmaker{
		queues:          make(map[string][]queueEntry),
		rooms:           rooms,
		analytics:       analytics,
		queueTimeout:    QueueTimeout,
		matchStartDelay: MatchStartDelay,
	}
}

// Enqueue appends a client to its rank's queue. If the queue reaches
// the ideal length the oldest entries are spliced off synchronously
// into a new quick-match room; otherwise the client waits and a
// timeout timer is armed as fallback.
func (m *Matchmaker) Enqueue(member QueueMember, rank string) {
	if !ValidRank(rank) {
		rank = RankC
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A client sits in at most one queue; a repeat request moves it
	m.removeLocked(member.ClientID())

	q := append(m.queues[rank], queueEntry{member: member, joinedAt: time.Now()})
	if len(q) >= IdealPlayers {
		batch := q[:IdealPlayers]
		m.queues[rank] = append([]queueEntry(nil), q[IdealPlayers:]...)
		m.createMatchLocked(rank, batch)
		return
	}

	m.queues[rank] = q
	member.SendJSON(Envelope{T: MsgQuickMatchWaiting})

	clientID := member.ClientID()
	time.AfterFunc(m.queueTimeout, func() {
		m.timeoutMatch(rank, clientID)
	})
}

// timeoutMatch fires for one queued client: if that client is still
// waiting, the entire current queue is force-matched. Multiple timers
// may fire against the same queue; the membership re-check under the
// lock makes each splice happen at most once.
func (m *Matchmaker) timeoutMatch(rank, clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[rank]
	present := false
	for _, e := range q {
		if e.member.ClientID() == clientID {
			present = true
			break
		}
	}
	if !present || len(q) < MinQueueMatch {
		return
	}

	m.queues[rank] = nil
	m.createMatchLocked(rank, q)
}

// createMatchLocked moves the batch into a fresh quick-match room. The
// room carries the originating rank and is flagged for bot backfill.
func (m *Matchmaker) createMatchLocked(rank string, batch []queueEntry) {
	room := m.rooms.CreateRoom("Quick Match "+rank, "", QuickMatchCapacity, true, rank)
	if room == nil {
		for _, e := range batch {
			e.member.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "no rooms available, try again later"}})
		}
		return
	}

	for _, e := range batch {
		if err := room.AddPlayer(e.member.ClientID(), e.member.DisplayName(), "", e.member); err != nil {
			e.member.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
			continue
		}
		e.member.EnterRoom(room.ID)
	}

	roster := room.Roster()
	for _, e := range batch {
		e.member.SendJSON(Envelope{T: MsgQuickMatchFound, Data: QuickMatchFoundMsg{RoomID: room.ID, Players: roster}})
	}

	room.ArmStartTimer(m.matchStartDelay)
	m.analytics.Track(EvtQuickMatch, "", room.ID, "")
	log.Printf("matchmaker: created room %s for %d players (rank %s)", room.ID, len(batch), rank)
}

// Remove drops a client from every queue it appears in (disconnect or
// explicit cancel). A client is in at most one queue, but scanning all
// ranks keeps the caller simple.
func (m *Matchmaker) Remove(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(clientID)
}

func (m *Matchmaker) removeLocked(clientID string) {
	for rank, q := range m.queues {
		for i, e := range q {
			if e.member.ClientID() == clientID {
				m.queues[rank] = append(q[:i:i], q[i+1:]...)
				return
			}
		}
	}
}

// QueueDepths returns the waiting count per rank (for /status)
func (m *Matchmaker) QueueDepths() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	depths := make(map[string]int, len(Ranks))
	for _, rank := range Ranks {
		depths[rank] = len(m.queues[rank])
	}
	return depths
}
