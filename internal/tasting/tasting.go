// Package tasting defines the blind tasting game state and the pure state
// machine that moves a session from setup through scoring to final results.
// It imports nothing outside the standard library.
package tasting

import (
	"encoding/json"
	"fmt"
)

type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseTasting    Phase = "tasting"
	PhaseReveal     Phase = "reveal"
	PhaseTieBreaker Phase = "tie-breaker"
	PhaseFinal      Phase = "final"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseSetup, PhaseTasting, PhaseReveal, PhaseTieBreaker, PhaseFinal:
		return true
	}
	return false
}

// Rating dimensions, in the order they appear in Ratings.
const (
	Nose = iota
	Body
	Finish
	Complexity
	Balance

	RatingCount
)

const (
	MinRating = 1
	MaxRating = 5
)

// Ratings holds one score per dimension: Nose, Body, Finish, Complexity, Balance.
type Ratings [RatingCount]int

// UnmarshalJSON requires exactly one value per dimension. A plain array
// decode would drop extra values and zero-fill missing ones.
func (r *Ratings) UnmarshalJSON(data []byte) error {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	if len(values) != RatingCount {
		return fmt.Errorf("ratings need exactly %d values, got %d", RatingCount, len(values))
	}
	copy(r[:], values)
	return nil
}

type Bottle struct {
	ID       int    `json:"id"`
	Varietal string `json:"varietal"`
	Producer string `json:"producer"`
	Year     string `json:"year"`
	Country  string `json:"country"`
}

type PlayerGuess struct {
	BottleID      int     `json:"bottleId"`
	Ratings       Ratings `json:"ratings"`
	GuessVarietal string  `json:"guessVarietal"`
	FoodPairing   string  `json:"foodPairing"`
}

type Player struct {
	Name    string        `json:"name"`
	Guesses []PlayerGuess `json:"guesses"`
	Score   float64       `json:"score"`
}

// State is the single source of truth for a session. Values returned by
// Reduce are never mutated afterwards; callers that need to change one must
// Clone it first.
type State struct {
	Players           []Player `json:"players"`
	Bottles           []Bottle `json:"bottles"`
	CurrentRound      int      `json:"currentRound"`
	IsDiscussionPhase bool     `json:"isDiscussionPhase"`
	Phase             Phase    `json:"phase"`
}

// NewState returns the empty state every session starts from.
func NewState() State {
	return State{
		Players: []Player{},
		Bottles: []Bottle{},
		Phase:   PhaseSetup,
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	if s.Bottles != nil {
		out.Bottles = append([]Bottle(nil), s.Bottles...)
	}
	if s.Players != nil {
		out.Players = make([]Player, len(s.Players))
		for i, p := range s.Players {
			out.Players[i] = p.clone()
		}
	}
	return out
}

func (p Player) clone() Player {
	if p.Guesses != nil {
		p.Guesses = append([]PlayerGuess(nil), p.Guesses...)
	}
	return p
}

// CurrentBottle returns the bottle being tasted this round. ok is false once
// every round has been played or before setup.
func (s State) CurrentBottle() (b Bottle, ok bool) {
	if s.CurrentRound < 0 || s.CurrentRound >= len(s.Bottles) {
		return Bottle{}, false
	}
	return s.Bottles[s.CurrentRound], true
}

// RoundsRemaining counts the bottles not yet reached, including the current one.
func (s State) RoundsRemaining() int {
	if n := len(s.Bottles) - s.CurrentRound; n > 0 {
		return n
	}
	return 0
}

func (s State) player(name string) int {
	for i, p := range s.Players {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Leaders returns the names of the players sharing the top score, in
// player order. More than one leader means the game is tied.
func Leaders(players []Player) []string {
	if len(players) == 0 {
		return nil
	}
	best := players[0].Score
	for _, p := range players[1:] {
		if p.Score > best {
			best = p.Score
		}
	}
	var names []string
	for _, p := range players {
		if p.Score == best {
			names = append(names, p.Name)
		}
	}
	return names
}
