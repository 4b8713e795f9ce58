package main

import (
	"sync"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// mockBroadcaster records every envelope a room sends to a client
type mockBroadcaster struct {
	mu   sync.Mutex
	msgs []Envelope
}

func (m *mockBroadcaster) SendJSON(msg interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if env, ok := msg.(Envelope); ok {
		m.msgs = append(m.msgs, env)
	}
}

func (m *mockBroadcaster) count(t string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, env := range m.msgs {
		if env.T == t {
			n++
		}
	}
	return n
}

func (m *mockBroadcaster) last(t string) (Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].T == t {
			return m.msgs[i], true
		}
	}
	return Envelope{}, false
}

// binaryBroadcaster additionally accepts msgpack snapshot frames
type binaryBroadcaster struct {
	mockBroadcaster
	frames [][]byte
}

func (m *binaryBroadcaster) SendBinary(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, data)
}

func (m *binaryBroadcaster) BinarySnapshots() bool { return true }

func newTestRoom(maxPlayers int, quick bool) *Room {
	return NewRoom("test", "", maxPlayers, quick, RankC, nil)
}

func TestAddPlayerWrongPassword(t *testing.T) {
	r := NewRoom("private", "secret", 4, false, RankC, nil)
	if err := r.AddPlayer("p1", "Ann", "nope", nil); err != ErrWrongPassword {
		t.Fatalf("err = %v, want ErrWrongPassword", err)
	}
	if err := r.AddPlayer("p1", "Ann", "secret", nil); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
}

func TestAddPlayerRoomFull(t *testing.T) {
	r := newTestRoom(2, false)
	if err := r.AddPlayer("p1", "Ann", "", nil); err != nil {
		t.Fatal(err)
	}
	if err := r.AddPlayer("p2", "Ben", "", nil); err != nil {
		t.Fatal(err)
	}
	if err := r.AddPlayer("p3", "Cal", "", nil); err != ErrRoomFull {
		t.Fatalf("err = %v, want ErrRoomFull", err)
	}
}

func TestAddPlayerAfterStart(t *testing.T) {
	r := newTestRoom(4, false)
	r.AddPlayer("p1", "Ann", "", nil)
	r.StartGame()
	if err := r.AddPlayer("p2", "Ben", "", nil); err != ErrGameInProgress {
		t.Fatalf("err = %v, want ErrGameInProgress", err)
	}
}

func TestStartGameIdempotent(t *testing.T) {
	r := newTestRoom(4, false)
	c1 := &mockBroadcaster{}
	c2 := &mockBroadcaster{}
	r.AddPlayer("p1", "Ann", "", c1)
	r.AddPlayer("p2", "Ben", "", c2)

	r.StartGame()
	r.StartGame()

	if r.Phase() != PhasePlaying {
		t.Fatal("room should be PLAYING")
	}
	if got := c1.count(MsgGameStart); got != 1 {
		t.Errorf("c1 received %d gameStart messages, want 1", got)
	}
	if got := c2.count(MsgGameStart); got != 1 {
		t.Errorf("c2 received %d gameStart messages, want 1", got)
	}
}

func TestEndGameIdempotent(t *testing.T) {
	r := newTestRoom(4, false)
	c1 := &mockBroadcaster{}
	r.AddPlayer("p1", "Ann", "", c1)
	r.StartGame()

	r.EndGame()
	r.EndGame()

	if r.Phase() != PhaseEnded {
		t.Fatal("room should be ENDED")
	}
	if got := c1.count(MsgGameEnd); got != 1 {
		t.Errorf("received %d gameEnd messages, want 1", got)
	}
}

func TestQuickMatchBackfill(t *testing.T) {
	cases := []struct {
		humans int
		want   int
	}{
		{2, 80},
		{3, 60},
		{5, 60},
		{6, 50},
	}
	for _, tc := range cases {
		r := newTestRoom(QuickMatchCapacity, true)
		for i := 0; i < tc.humans; i++ {
			id := string(rune('a' + i))
			if err := r.AddPlayer(id, "Player"+id, "", nil); err != nil {
				t.Fatal(err)
			}
		}
		r.StartGame()
		if got := r.MemberCount(); got != tc.want {
			t.Errorf("%d humans: member count = %d, want %d", tc.humans, got, tc.want)
		}
		r.Shutdown()
	}
}

func TestCustomRoomNotBackfilled(t *testing.T) {
	r := newTestRoom(6, false)
	r.AddPlayer("p1", "Ann", "", nil)
	r.AddPlayer("p2", "Ben", "", nil)
	r.StartGame()
	defer r.Shutdown()
	if got := r.MemberCount(); got != 2 {
		t.Errorf("member count = %d, want 2 (no bots in custom rooms)", got)
	}
}

func TestRankingsAliveBeforeScore(t *testing.T) {
	r := newTestRoom(6, false)
	now := time.Now()
	r.players["a"] = &PlayerRecord{ID: "a", Name: "Ann", Score: 50, Alive: true, JoinedAt: now}
	r.players["b"] = &PlayerRecord{ID: "b", Name: "Ben", Score: 900, Alive: false, JoinedAt: now.Add(time.Second)}
	r.players["c"] = &PlayerRecord{ID: "c", Name: "Cal", Score: 10, Alive: true, JoinedAt: now.Add(2 * time.Second)}

	got := r.Rankings()
	want := []string{"a", "c", "b"}
	if len(got) != len(want) {
		t.Fatalf("%d entries, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].PlayerID != id {
			t.Errorf("rank %d = %s, want %s", i+1, got[i].PlayerID, id)
		}
	}
}

func TestGameEndsWithOneSurvivor(t *testing.T) {
	r := newTestRoom(4, false)
	c3 := &mockBroadcaster{}
	r.AddPlayer("p1", "Ann", "", &mockBroadcaster{})
	r.AddPlayer("p2", "Ben", "", &mockBroadcaster{})
	r.AddPlayer("p3", "Cal", "", c3)
	r.StartGame()

	r.HandleGameOver("p1", 200)
	if r.Phase() != PhasePlaying {
		t.Fatal("two players still alive, game must continue")
	}
	r.HandleGameOver("p2", 400)
	if r.Phase() != PhaseEnded {
		t.Fatal("one survivor left, game must end")
	}

	env, ok := c3.last(MsgGameEnd)
	if !ok {
		t.Fatal("survivor did not receive gameEnd")
	}
	rankings := env.Data.(GameEndMsg).Rankings
	if rankings[0].PlayerID != "p3" {
		t.Errorf("winner = %s, want p3", rankings[0].PlayerID)
	}
}

func TestLeaveDuringGameCountsAsDeath(t *testing.T) {
	r := newTestRoom(4, false)
	c2 := &mockBroadcaster{}
	r.AddPlayer("p1", "Ann", "", &mockBroadcaster{})
	r.AddPlayer("p2", "Ben", "", c2)
	r.StartGame()

	r.Leave("p1", false)

	if got := c2.count(MsgPlayerDied); got != 1 {
		t.Errorf("received %d playerDied messages, want 1", got)
	}
	if got := c2.count(MsgPlayerLeft); got != 1 {
		t.Errorf("received %d playerLeft messages, want 1", got)
	}
	if r.Phase() != PhaseEnded {
		t.Error("game should end once only one member is living")
	}
}

func TestLeaveRemovesBotAndStopsTicker(t *testing.T) {
	r := newTestRoom(4, false)
	b := NewBotPlayer(RankC, r.rng)
	r.bots[b.ID] = b

	r.Leave(b.ID, false)

	if _, ok := r.bots[b.ID]; ok {
		t.Fatal("bot should be removed")
	}
	select {
	case <-b.stop:
	default:
		t.Error("bot ticker should be stopped")
	}
}

func TestGameUpdateIgnoredWhileWaiting(t *testing.T) {
	r := newTestRoom(4, false)
	c2 := &mockBroadcaster{}
	r.AddPlayer("p1", "Ann", "", &mockBroadcaster{})
	r.AddPlayer("p2", "Ben", "", c2)

	r.HandleGameUpdate("p1", GameUpdateMsg{Score: 300})

	if got := c2.count(MsgPlayerUpdate); got != 0 {
		t.Errorf("received %d playerUpdate messages while WAITING, want 0", got)
	}
}

func TestGameUpdateExcludesSender(t *testing.T) {
	r := newTestRoom(4, false)
	c1 := &mockBroadcaster{}
	c2 := &mockBroadcaster{}
	r.AddPlayer("p1", "Ann", "", c1)
	r.AddPlayer("p2", "Ben", "", c2)
	r.StartGame()

	r.HandleGameUpdate("p1", GameUpdateMsg{Score: 300, LinesCleared: 2})

	if got := c1.count(MsgPlayerUpdate); got != 0 {
		t.Errorf("sender received %d of its own updates, want 0", got)
	}
	env, ok := c2.last(MsgPlayerUpdate)
	if !ok {
		t.Fatal("other player did not receive the update")
	}
	u := env.Data.(PlayerUpdateMsg)
	if u.PlayerID != "p1" || u.Score != 300 {
		t.Errorf("update = %+v, want p1 with score 300", u)
	}
}

func TestBinarySnapshotPath(t *testing.T) {
	r := newTestRoom(4, false)
	bc := &binaryBroadcaster{}
	r.AddPlayer("p1", "Ann", "", &mockBroadcaster{})
	r.AddPlayer("p2", "Ben", "", bc)
	r.StartGame()

	r.HandleGameUpdate("p1", GameUpdateMsg{Score: 700})

	bc.mu.Lock()
	frames := len(bc.frames)
	var frame []byte
	if frames > 0 {
		frame = bc.frames[0]
	}
	bc.mu.Unlock()

	if frames != 1 {
		t.Fatalf("received %d binary frames, want 1", frames)
	}
	var u PlayerUpdateMsg
	if err := msgpack.Unmarshal(frame, &u); err != nil {
		t.Fatalf("frame does not decode: %v", err)
	}
	if u.PlayerID != "p1" || u.Score != 700 {
		t.Errorf("decoded = %+v, want p1 with score 700", u)
	}
	if got := bc.count(MsgPlayerUpdate); got != 0 {
		t.Errorf("binary client also received %d JSON updates, want 0", got)
	}
}

func TestAttackRoutedToOnlyBot(t *testing.T) {
	r := newTestRoom(4, false)
	r.AddPlayer("p1", "Ann", "", &mockBroadcaster{})
	r.StartGame()

	// Inject a bot after start so no tick loop runs for it
	b := NewBotPlayer(RankC, r.rng)
	r.mu.Lock()
	r.bots[b.ID] = b
	r.mu.Unlock()

	r.HandleAttack("p1", 2)

	for _, y := range []int{FieldRows - 1, FieldRows - 2} {
		occupied := 0
		for x := 0; x < FieldCols; x++ {
			if b.Field[y][x] != "" {
				occupied++
			}
		}
		if occupied != FieldCols-1 {
			t.Errorf("bot garbage row %d has %d cells, want %d", y, occupied, FieldCols-1)
		}
	}
}

func TestAttackNotifiesHumanTarget(t *testing.T) {
	r := newTestRoom(4, false)
	c2 := &mockBroadcaster{}
	r.AddPlayer("p1", "Ann", "", &mockBroadcaster{})
	r.AddPlayer("p2", "Ben", "", c2)
	r.StartGame()

	r.HandleAttack("p1", 9) // clamped to 4

	env, ok := c2.last(MsgAttacked)
	if !ok {
		t.Fatal("target did not receive attacked message")
	}
	a := env.Data.(AttackedMsg)
	if a.FromPlayerID != "p1" {
		t.Errorf("from = %s, want p1", a.FromPlayerID)
	}
	if a.Lines != 4 {
		t.Errorf("lines = %d, want clamp to 4", a.Lines)
	}
}

func TestAttackWithNoTargetsIsNoop(t *testing.T) {
	r := newTestRoom(4, false)
	c1 := &mockBroadcaster{}
	r.AddPlayer("p1", "Ann", "", c1)
	r.StartGame()

	r.HandleAttack("p1", 2)

	if got := c1.count(MsgAttacked); got != 0 {
		t.Errorf("attacker received %d attacked messages, want 0", got)
	}
}

func TestBotTickStopsOutsidePlaying(t *testing.T) {
	r := newTestRoom(4, false)
	b := NewBotPlayer(RankC, r.rng)
	r.bots[b.ID] = b

	if r.botTick(b) {
		t.Error("tick in WAITING room should stop the loop")
	}
}

func TestChatRelayedWithUsername(t *testing.T) {
	r := newTestRoom(4, false)
	c2 := &mockBroadcaster{}
	r.AddPlayer("p1", "Ann", "", &mockBroadcaster{})
	r.AddPlayer("p2", "Ben", "", c2)

	r.HandleChat("p1", "good luck")

	env, ok := c2.last(MsgChat)
	if !ok {
		t.Fatal("chat not relayed")
	}
	c := env.Data.(ChatMsg)
	if c.Username != "Ann" || c.Message != "good luck" {
		t.Errorf("chat = %+v", c)
	}
}
