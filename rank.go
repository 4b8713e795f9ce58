package main

import (
	"math/rand"
	"time"
)

// Rank tiers, weakest to strongest. The rank of a quick-match room
// governs bot speed, difficulty mix, and attack aggression.
const (
	RankC = "C"
	RankB = "B"
	RankA = "A"
	RankS = "S"
)

var Ranks = []string{RankC, RankB, RankA, RankS}

// ValidRank reports whether r is a known rank tier
func ValidRank(r string) bool {
	for _, v := range Ranks {
		if v == r {
			return true
		}
	}
	return false
}

// Matchmaking tuning
const (
	IdealPlayers       = 4                // queue length that triggers an immediate match
	MinQueueMatch      = 1                // smallest queue a timeout will still match
	QueueTimeout       = 10 * time.Second // per-enqueue force-match fallback
	MatchStartDelay    = 15 * time.Second // quick-match auto-start after creation
	QuickMatchCapacity = 99
	DefaultRoomSize    = 6
	MaxRoomSize        = 99
)

// BackfillTarget returns the total population a quick-match room is
// filled to, given its human+bot headcount at start
func BackfillTarget(headcount int) int {
	switch {
	case headcount <= 2:
		return 80
	case headcount <= 5:
		return 60
	default:
		return 50
	}
}

// Difficulty is a bot skill tier
type Difficulty int

const (
	DifficultyEasy Difficulty = iota
	DifficultyNormal
	DifficultyHard
)

// String returns the wire name of a difficulty tier
func (d Difficulty) String() string {
	switch d {
	case DifficultyEasy:
		return "easy"
	case DifficultyHard:
		return "hard"
	default:
		return "normal"
	}
}

// difficultyMix maps a rank to its {easy, normal, hard} probability
// triple, skewed toward harder bots at higher ranks
var difficultyMix = map[string][3]float64{
	RankC: {0.60, 0.30, 0.10},
	RankB: {0.35, 0.45, 0.20},
	RankA: {0.15, 0.45, 0.40},
	RankS: {0.05, 0.30, 0.65},
}

// RollDifficulty draws a bot difficulty from the rank's distribution
func RollDifficulty(rank string, rng *rand.Rand) Difficulty {
	mix, ok := difficultyMix[rank]
	if !ok {
		mix = difficultyMix[RankC]
	}
	r := rng.Float64()
	switch {
	case r < mix[0]:
		return DifficultyEasy
	case r < mix[0]+mix[1]:
		return DifficultyNormal
	default:
		return DifficultyHard
	}
}

// baseSpeed is the bot tick interval before rank scaling
func baseSpeed(d Difficulty) time.Duration {
	switch d {
	case DifficultyEasy:
		return 1100 * time.Millisecond
	case DifficultyHard:
		return 480 * time.Millisecond
	default:
		return 750 * time.Millisecond
	}
}

// rankSpeedMultiplier scales bot tick intervals; faster at higher ranks
func rankSpeedMultiplier(rank string) float64 {
	switch rank {
	case RankB:
		return 0.85
	case RankA:
		return 0.70
	case RankS:
		return 0.55
	default:
		return 1.0
	}
}

// BotTickInterval returns the repeating-timer interval for a bot
func BotTickInterval(d Difficulty, rank string) time.Duration {
	return time.Duration(float64(baseSpeed(d)) * rankSpeedMultiplier(rank))
}

// attackRate is the per-surviving-tick chance a bot launches an attack
func attackRate(rank string) float64 {
	switch rank {
	case RankB:
		return 0.12
	case RankA:
		return 0.16
	case RankS:
		return 0.22
	default:
		return 0.08
	}
}
