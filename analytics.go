package main

import (
	"log"
	"sync"
	"time"
)

// Event types for analytics tracking
const (
	EvtRoomCreated = "room_created"
	EvtQuickMatch  = "quick_match"
	EvtMatchStart  = "match_start"
	EvtMatchEnd    = "match_end"
	EvtPlayerDeath = "player_death"
	EvtAttack      = "attack"
)

// AnalyticsEvent represents a single trackable event
type AnalyticsEvent struct {
	Type      string
	PlayerID  string
	RoomID    string
	Data      string // JSON metadata (optional)
	Timestamp time.Time
}

const (
	analyticsBufSize = 1024
	flushInterval    = 2 * time.Second
)

// Analytics handles event tracking with batched background writes. A
// nil *Analytics is valid and drops everything, so game code can track
// unconditionally.
type Analytics struct {
	db      *DB
	events  chan AnalyticsEvent
	matches chan MatchRecord
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewAnalytics creates and starts the analytics background writer.
// Returns nil when there is no database to write to.
func NewAnalytics(db *DB) *Analytics {
	if db == nil {
		return nil
	}
	a := &Analytics{
		db:      db,
		events:  make(chan AnalyticsEvent, analyticsBufSize),
		matches: make(chan MatchRecord, 64),
		stop:    make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues an event for async persistence (non-blocking)
func (a *Analytics) Track(evtType, playerID, roomID, data string) {
	if a == nil {
		return
	}
	select {
	case a.events <- AnalyticsEvent{
		Type:      evtType,
		PlayerID:  playerID,
		RoomID:    roomID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}:
	default:
		// Channel full — drop event rather than blocking game logic
	}
}

// RecordMatch enqueues a completed-match record (non-blocking)
func (a *Analytics) RecordMatch(rec MatchRecord) {
	if a == nil {
		return
	}
	select {
	case a.matches <- rec:
	default:
	}
}

// Stop gracefully shuts down the analytics writer
func (a *Analytics) Stop() {
	if a == nil {
		return
	}
	close(a.stop)
	a.wg.Wait()
}

// writer is the background goroutine that batches and writes events
func (a *Analytics) writer() {
	defer a.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]AnalyticsEvent, 0, 64)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := a.db.InsertEvents(batch); err != nil {
			log.Printf("analytics flush: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= cap(batch) {
				flush()
			}
		case rec := <-a.matches:
			if err := a.db.RecordMatch(rec); err != nil {
				log.Printf("record match: %v", err)
			}
		case <-ticker.C:
			flush()
		case <-a.stop:
			// Drain whatever is queued, then exit
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
				case rec := <-a.matches:
					if err := a.db.RecordMatch(rec); err != nil {
						log.Printf("record match: %v", err)
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
