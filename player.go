package main

import "time"

// PlayerRecord is the authoritative copy of one human member's state.
// Score and field are client-reported via gameUpdate and stored as-is;
// the server does not validate them (documented non-goal).
type PlayerRecord struct {
	ID           string
	Name         string
	Rank         string
	Score        int
	Lines        int
	Alive        bool
	Field        Field
	CurrentPiece string
	JoinedAt     time.Time
}

// NewPlayerRecord returns a fresh record with an empty field
func NewPlayerRecord(id, name, rank string) *PlayerRecord {
	return &PlayerRecord{
		ID:       id,
		Name:     name,
		Rank:     rank,
		Alive:    true,
		Field:    NewField(),
		JoinedAt: time.Now(),
	}
}

// ApplyUpdate stores a client-reported snapshot
func (p *PlayerRecord) ApplyUpdate(msg GameUpdateMsg) {
	p.Score = msg.Score
	p.Lines = msg.LinesCleared
	if len(msg.Field) == FieldRows {
		p.Field = msg.Field
	}
	p.CurrentPiece = msg.CurrentPiece
}

// Info converts to the roster representation
func (p *PlayerRecord) Info() PlayerInfo {
	return PlayerInfo{
		ID:    p.ID,
		Name:  p.Name,
		Score: p.Score,
		Lines: p.Lines,
		Alive: p.Alive,
	}
}
