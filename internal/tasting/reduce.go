package tasting

import (
	"fmt"
	"strings"
)

// Options tunes how strictly Reduce guards transitions.
type Options struct {
	// AllowRestart lets SetupGame replace a session that has already left
	// the setup phase. When false a second SetupGame fails with ErrPhase.
	AllowRestart bool
}

// Machine applies commands with a fixed set of Options.
type Machine struct {
	opts Options
}

func NewMachine(opts Options) *Machine {
	return &Machine{opts: opts}
}

// Apply is Reduce with the machine's options.
func (m *Machine) Apply(s State, cmd Command) (State, error) {
	return Reduce(m.opts, s, cmd)
}

// Reduce returns the state that follows s once cmd is applied. s is never
// modified: on success the result is a fresh copy, on error s itself is
// returned alongside the error. A command type Reduce does not handle panics
// with ContractViolation.
func Reduce(opts Options, s State, cmd Command) (State, error) {
	next := s.Clone()

	var err error
	switch c := cmd.(type) {
	case SetupGame:
		err = setupGame(opts, &next, c)
	case SubmitRound:
		err = submitRound(&next, c)
	case NextRound:
		err = nextRound(&next, c)
	case FinalReveal:
		err = finalReveal(&next, c)
	case FinalScore:
		err = finalScore(&next, c)
	case RecordGuess:
		err = recordGuess(&next, c)
	case RecordScores:
		err = recordScores(&next, c)
	case StartTieBreaker:
		err = startTieBreaker(&next, c)
	default:
		panic(ContractViolation{Command: cmd})
	}
	if err != nil {
		return s, err
	}
	return next, nil
}

func setupGame(opts Options, s *State, c SetupGame) error {
	if s.Phase != PhaseSetup && !opts.AllowRestart {
		return phaseError(c, s.Phase)
	}
	if err := validateSetup(c); err != nil {
		return err
	}

	fresh := State{
		Bottles: c.Bottles,
		Players: c.Players,
		Phase:   PhaseTasting,
	}
	*s = fresh.Clone()
	return nil
}

func validateSetup(c SetupGame) error {
	var v ValidationError

	if len(c.Players) == 0 {
		v.add("players", "at least one player is required")
	}
	if len(c.Bottles) == 0 {
		v.add("bottles", "at least one bottle is required")
	}

	ids := make(map[int]bool, len(c.Bottles))
	for _, b := range c.Bottles {
		if ids[b.ID] {
			v.add("bottles", "duplicate bottle id %d", b.ID)
		}
		ids[b.ID] = true
	}

	names := make(map[string]bool, len(c.Players))
	for i, p := range c.Players {
		if strings.TrimSpace(p.Name) == "" {
			v.add("players", "player %d has no name", i+1)
			continue
		}
		if names[p.Name] {
			v.add("players", "duplicate player name %q", p.Name)
		}
		names[p.Name] = true

		for j, g := range p.Guesses {
			field := fmt.Sprintf("players[%d].guesses[%d]", i, j)
			if !ids[g.BottleID] {
				v.add(field+".bottleId", "player %q has a guess for unknown bottle %d", p.Name, g.BottleID)
			}
			validateGuess(&v, field, p.Name, g, p.Guesses[:j])
		}
	}

	return v.err()
}

func submitRound(s *State, c SubmitRound) error {
	if s.Phase != PhaseTasting {
		return phaseError(c, s.Phase)
	}
	s.IsDiscussionPhase = true
	return nil
}

// nextRound does not require the discussion phase and never moves to reveal
// on its own; the caller decides when the last bottle is done.
func nextRound(s *State, c NextRound) error {
	if s.Phase != PhaseTasting {
		return phaseError(c, s.Phase)
	}
	if s.RoundsRemaining() == 0 {
		return ErrRoundOverflow
	}
	s.CurrentRound++
	s.IsDiscussionPhase = false
	return nil
}

func finalReveal(s *State, c FinalReveal) error {
	switch s.Phase {
	case PhaseTasting, PhaseTieBreaker, PhaseReveal:
	default:
		return phaseError(c, s.Phase)
	}
	s.IsDiscussionPhase = false
	s.Phase = PhaseReveal
	return nil
}

func finalScore(s *State, c FinalScore) error {
	if s.Phase != PhaseReveal && s.Phase != PhaseTieBreaker {
		return phaseError(c, s.Phase)
	}
	if s.Phase == PhaseTieBreaker && len(Leaders(s.Players)) > 1 {
		return ErrTieUnresolved
	}
	s.Phase = PhaseFinal
	return nil
}

// recordGuess accepts guesses only for the bottle in play this round.
func recordGuess(s *State, c RecordGuess) error {
	if s.Phase != PhaseTasting || s.IsDiscussionPhase {
		return phaseError(c, s.Phase)
	}
	bottle, ok := s.CurrentBottle()
	if !ok {
		return ErrRoundOverflow
	}

	var v ValidationError
	idx := s.player(c.Player)
	if idx < 0 {
		v.add("player", "unknown player %q", c.Player)
	}
	if c.Guess.BottleID != bottle.ID {
		v.add("guess.bottleId", "bottle %d is not in play, round %d pours bottle %d",
			c.Guess.BottleID, s.CurrentRound+1, bottle.ID)
	}
	var prior []PlayerGuess
	if idx >= 0 {
		prior = s.Players[idx].Guesses
	}
	validateGuess(&v, "guess", c.Player, c.Guess, prior)
	if err := v.err(); err != nil {
		return err
	}

	p := &s.Players[idx]
	p.Guesses = append(p.Guesses, c.Guess)
	return nil
}

// validateGuess checks the ratings of g and that player has no earlier
// guess for the same bottle.
func validateGuess(v *ValidationError, field, player string, g PlayerGuess, prior []PlayerGuess) {
	for i, r := range g.Ratings {
		if r < MinRating || r > MaxRating {
			v.add(field+".ratings", "rating %d is %d, want %d..%d", i+1, r, MinRating, MaxRating)
		}
	}
	for _, p := range prior {
		if p.BottleID == g.BottleID {
			v.add(field+".bottleId", "player %q already guessed bottle %d", player, g.BottleID)
			break
		}
	}
}

func recordScores(s *State, c RecordScores) error {
	if s.Phase != PhaseReveal && s.Phase != PhaseTieBreaker {
		return phaseError(c, s.Phase)
	}

	var v ValidationError
	if len(c.Scores) == 0 {
		v.add("scores", "at least one score is required")
	}
	for name := range c.Scores {
		if s.player(name) < 0 {
			v.add("scores", "unknown player %q", name)
		}
	}
	if err := v.err(); err != nil {
		return err
	}

	for i := range s.Players {
		if score, ok := c.Scores[s.Players[i].Name]; ok {
			s.Players[i].Score = score
		}
	}
	return nil
}

func startTieBreaker(s *State, c StartTieBreaker) error {
	if s.Phase != PhaseReveal {
		return phaseError(c, s.Phase)
	}
	if len(Leaders(s.Players)) < 2 {
		return ErrNoTie
	}
	s.Phase = PhaseTieBreaker
	return nil
}
