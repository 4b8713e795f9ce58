package main

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Heuristic weights for placement evaluation
const (
	rowWeight  = 10  // reward per row of resting depth (lower is better)
	holeWeight = 50  // penalty per covered hole
	lineWeight = 100 // reward per completed line on the simulated board
)

// Bot display names, picked at random with a short id suffix
var botNames = []string{
	"Blockhead", "Tetra", "Stacker", "Rowbot", "Clearance",
	"Gridlock", "Downstack", "Combo", "Spinner", "Wellkeeper",
	"Overhang", "Skimmer", "Perfectionist", "Cheese", "Tucker",
}

// BotPlayer is an autonomous Tetris instance: it owns its bag, field,
// and score, and plays on an independent repeating timer. Its state is
// computed entirely server-side.
type BotPlayer struct {
	ID         string
	Name       string
	Difficulty Difficulty

	Field Field
	Score int
	Lines int
	Alive bool

	bag     *PieceBag
	current *Piece
	next    *Piece
	rng     *rand.Rand

	tickEvery time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewBotPlayer creates a bot for a room of the given rank, rolling its
// difficulty from the rank's distribution
func NewBotPlayer(rank string, rng *rand.Rand) *BotPlayer {
	d := RollDifficulty(rank, rng)
	return NewBotPlayerWithDifficulty(rank, d, rng)
}

// NewBotPlayerWithDifficulty creates a bot at a fixed difficulty tier
func NewBotPlayerWithDifficulty(rank string, d Difficulty, rng *rand.Rand) *BotPlayer {
	id := "bot-" + GenerateID(4)
	name := fmt.Sprintf("%s_%s", botNames[rng.Intn(len(botNames))], id[4:8])
	botRng := rand.New(rand.NewSource(rng.Int63()))
	return &BotPlayer{
		ID:         id,
		Name:       name,
		Difficulty: d,
		Field:      NewField(),
		Alive:      true,
		bag:        NewPieceBag(botRng),
		rng:        botRng,
		tickEvery:  BotTickInterval(d, rank),
		stop:       make(chan struct{}),
	}
}

// getNextPiece pops from the bag, refilling when exhausted
func (b *BotPlayer) getNextPiece() *Piece {
	return b.bag.Next()
}

// StopTicker signals the bot's tick loop to exit. Idempotent.
func (b *BotPlayer) StopTicker() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// TickInterval returns the bot's repeating-timer interval
func (b *BotPlayer) TickInterval() time.Duration {
	return b.tickEvery
}

// findBestMove searches all 4 rotations and every horizontal offset
// spanning two columns beyond each edge, hard-dropping each candidate
// and scoring the virtual board. Highest score wins; ties go to the
// first candidate found (rotation-major, then column ascending).
func (b *BotPlayer) findBestMove(p *Piece) (bestX, bestRot int, ok bool) {
	best := 0
	shape := p.Shape
	for rot := 0; rot < 4; rot++ {
		for x := -2; x < FieldCols+2; x++ {
			if b.Field.CheckCollision(x, 0, shape) {
				continue
			}
			y := 0
			for !b.Field.CheckCollision(x, y+1, shape) {
				y++
			}
			score := b.evaluatePosition(x, y, shape)
			if !ok || score > best {
				best = score
				bestX = x
				bestRot = rot
				ok = true
			}
		}
		shape = RotateShape(shape)
	}
	return bestX, bestRot, ok
}

// evaluatePosition scores a simulated placement: deeper resting rows
// score higher, covered holes score lower, completed lines score
// highest. One-ply lookahead only; the next piece is not considered.
func (b *BotPlayer) evaluatePosition(x, y int, shape Shape) int {
	sim := b.Field.Clone()
	sim.mergeAt(x, y, shape, garbageColor)

	holes := 0
	for cx := 0; cx < FieldCols; cx++ {
		covered := false
		for cy := 0; cy < FieldRows; cy++ {
			if sim[cy][cx] != "" {
				covered = true
			} else if covered {
				holes++
			}
		}
	}

	lines := 0
	for cy := 0; cy < FieldRows; cy++ {
		full := true
		for cx := 0; cx < FieldCols; cx++ {
			if sim[cy][cx] == "" {
				full = false
				break
			}
		}
		if full {
			lines++
		}
	}

	return y*rowWeight - holes*holeWeight + lines*lineWeight
}

// PlayMove advances the bot by one placement. Returns the lines
// cleared and whether the bot is still alive. Death is detected at
// spawn: when the current piece already collides on entry, the board
// became unplayable on the previous placement.
func (b *BotPlayer) PlayMove() (linesCleared int, alive bool) {
	if !b.Alive {
		return 0, false
	}
	if b.current == nil {
		b.current = b.getNextPiece()
		b.next = b.getNextPiece()
	}

	if b.Field.CheckCollision(b.current.X, b.current.Y, b.current.Shape) {
		b.Alive = false
		return 0, false
	}

	x, rot, ok := b.findBestMove(b.current)
	if !ok {
		b.Alive = false
		return 0, false
	}

	p := b.current
	for i := 0; i < rot; i++ {
		p.Rotate()
	}
	p.X = x
	p.Y = 0
	for !b.Field.CheckCollision(p.X, p.Y+1, p.Shape) {
		p.Y++
	}

	b.Field.MergePiece(p)
	n := b.Field.ClearLines()
	b.Lines += n
	b.Score += ScoreForLines(n)

	b.current = b.next
	b.next = b.getNextPiece()
	return n, true
}

// ReceiveGarbage applies an incoming attack: for each line the topmost
// row is discarded and a solid bottom row with one random empty column
// is appended. Affects bots exactly as attacks affect human fields
// client-side.
func (b *BotPlayer) ReceiveGarbage(lines int) {
	if lines <= 0 {
		return
	}
	b.Field.AddGarbageLines(lines, func() int {
		return b.rng.Intn(FieldCols)
	})
}

// Update returns the bot's current broadcast snapshot
func (b *BotPlayer) Update() PlayerUpdateMsg {
	return PlayerUpdateMsg{
		PlayerID:     b.ID,
		Score:        b.Score,
		LinesCleared: b.Lines,
		Field:        b.Field.Clone(),
	}
}

// Info converts to the roster representation
func (b *BotPlayer) Info() PlayerInfo {
	return PlayerInfo{
		ID:         b.ID,
		Name:       b.Name,
		Score:      b.Score,
		Lines:      b.Lines,
		Alive:      b.Alive,
		Bot:        true,
		Difficulty: b.Difficulty.String(),
	}
}
