package tasting

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testBottles() []Bottle {
	return []Bottle{
		{ID: 1, Varietal: "Malbec", Producer: "Catena", Year: "2019", Country: "Argentina"},
		{ID: 2, Varietal: "Riesling", Producer: "Dr. Loosen", Year: "2021", Country: "Germany"},
	}
}

func testPlayers() []Player {
	return []Player{{Name: "A"}, {Name: "B"}}
}

func mustReduce(t *testing.T, s State, cmd Command) State {
	t.Helper()
	next, err := Reduce(Options{}, s, cmd)
	if err != nil {
		t.Fatalf("%s: %v", cmd.Type(), err)
	}
	return next
}

func tastingState(t *testing.T) State {
	t.Helper()
	return mustReduce(t, NewState(), SetupGame{Players: testPlayers(), Bottles: testBottles()})
}

func guess(bottleID int) PlayerGuess {
	return PlayerGuess{
		BottleID:      bottleID,
		Ratings:       Ratings{4, 3, 5, 2, 4},
		GuessVarietal: "Malbec",
		FoodPairing:   "steak",
	}
}

func TestSetupGame(t *testing.T) {
	players, bottles := testPlayers(), testBottles()
	s := mustReduce(t, NewState(), SetupGame{Players: players, Bottles: bottles})

	if s.Phase != PhaseTasting {
		t.Errorf("phase = %q, want %q", s.Phase, PhaseTasting)
	}
	if s.CurrentRound != 0 {
		t.Errorf("currentRound = %d, want 0", s.CurrentRound)
	}
	if s.IsDiscussionPhase {
		t.Error("isDiscussionPhase = true, want false")
	}
	if diff := cmp.Diff(players, s.Players); diff != "" {
		t.Errorf("players mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(bottles, s.Bottles); diff != "" {
		t.Errorf("bottles mismatch (-want +got):\n%s", diff)
	}

	// The payload must not alias the installed state.
	bottles[0].Varietal = "changed"
	if s.Bottles[0].Varietal != "Malbec" {
		t.Error("state shares memory with setup payload")
	}
}

func TestSetupGameValidation(t *testing.T) {
	tests := []struct {
		name    string
		players []Player
		bottles []Bottle
	}{
		{name: "no players", players: nil, bottles: testBottles()},
		{name: "no bottles", players: testPlayers(), bottles: nil},
		{name: "duplicate bottle id", players: testPlayers(), bottles: []Bottle{{ID: 1}, {ID: 1}}},
		{name: "duplicate player name", players: []Player{{Name: "A"}, {Name: "A"}}, bottles: testBottles()},
		{name: "blank player name", players: []Player{{Name: "  "}}, bottles: testBottles()},
		{
			name:    "guess for unknown bottle",
			players: []Player{{Name: "A", Guesses: []PlayerGuess{guess(99)}}},
			bottles: testBottles(),
		},
		{
			name: "guess with ratings out of range",
			players: []Player{{Name: "A", Guesses: []PlayerGuess{
				{BottleID: 1, Ratings: Ratings{0, 99, -3, 0, 0}},
			}}},
			bottles: testBottles(),
		},
		{
			name:    "two guesses for one bottle",
			players: []Player{{Name: "A", Guesses: []PlayerGuess{guess(1), guess(1)}}},
			bottles: testBottles(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := NewState()
			got, err := Reduce(Options{}, before, SetupGame{Players: tt.players, Bottles: tt.bottles})

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if len(verr.Problems) == 0 {
				t.Error("validation error has no problems")
			}
			if diff := cmp.Diff(before, got); diff != "" {
				t.Errorf("state changed on rejection (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSetupGameTwice(t *testing.T) {
	s := tastingState(t)
	s = mustReduce(t, s, NextRound{})

	again := SetupGame{Players: []Player{{Name: "C"}}, Bottles: []Bottle{{ID: 7}}}

	t.Run("guarded", func(t *testing.T) {
		got, err := Reduce(Options{}, s, again)
		if !errors.Is(err, ErrPhase) {
			t.Fatalf("err = %v, want ErrPhase", err)
		}
		if diff := cmp.Diff(s, got); diff != "" {
			t.Errorf("state changed on rejection (-want +got):\n%s", diff)
		}
	})

	t.Run("restart allowed", func(t *testing.T) {
		got, err := NewMachine(Options{AllowRestart: true}).Apply(s, again)
		if err != nil {
			t.Fatalf("restart: %v", err)
		}
		want := State{Players: again.Players, Bottles: again.Bottles, Phase: PhaseTasting}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("restart mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestScenario(t *testing.T) {
	s := tastingState(t)

	s = mustReduce(t, s, SubmitRound{})
	if !s.IsDiscussionPhase || s.CurrentRound != 0 {
		t.Fatalf("after submit: discussion=%v round=%d, want true 0", s.IsDiscussionPhase, s.CurrentRound)
	}

	s = mustReduce(t, s, NextRound{})
	if s.IsDiscussionPhase || s.CurrentRound != 1 {
		t.Fatalf("after next: discussion=%v round=%d, want false 1", s.IsDiscussionPhase, s.CurrentRound)
	}

	s = mustReduce(t, s, SubmitRound{})
	s = mustReduce(t, s, FinalReveal{})
	if s.Phase != PhaseReveal {
		t.Fatalf("phase = %q, want %q", s.Phase, PhaseReveal)
	}
	if s.IsDiscussionPhase {
		t.Error("discussion still set after leaving tasting")
	}

	s = mustReduce(t, s, FinalScore{})
	if s.Phase != PhaseFinal {
		t.Fatalf("phase = %q, want %q", s.Phase, PhaseFinal)
	}

	for _, cmd := range []Command{SubmitRound{}, NextRound{}, FinalReveal{}, FinalScore{}, StartTieBreaker{}} {
		if _, err := Reduce(Options{}, s, cmd); !errors.Is(err, ErrPhase) {
			t.Errorf("%s in final: err = %v, want ErrPhase", cmd.Type(), err)
		}
	}
}

func TestSubmitThenNextLeavesPlayersAndBottles(t *testing.T) {
	s := tastingState(t)
	s = mustReduce(t, s, RecordGuess{Player: "A", Guess: guess(1)})

	next := mustReduce(t, mustReduce(t, s, SubmitRound{}), NextRound{})

	if diff := cmp.Diff(s.Players, next.Players); diff != "" {
		t.Errorf("players changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.Bottles, next.Bottles); diff != "" {
		t.Errorf("bottles changed (-want +got):\n%s", diff)
	}
	if next.Phase != s.Phase {
		t.Errorf("phase = %q, want %q", next.Phase, s.Phase)
	}
}

func TestNextRound(t *testing.T) {
	tests := []struct {
		name       string
		round      int
		discussion bool
	}{
		{name: "after discussion", round: 0, discussion: true},
		{name: "without discussion", round: 0, discussion: false},
		{name: "last bottle", round: 1, discussion: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tastingState(t)
			s.CurrentRound = tt.round
			s.IsDiscussionPhase = tt.discussion

			got := mustReduce(t, s, NextRound{})
			if got.CurrentRound != tt.round+1 {
				t.Errorf("currentRound = %d, want %d", got.CurrentRound, tt.round+1)
			}
			if got.IsDiscussionPhase {
				t.Error("isDiscussionPhase = true, want false")
			}
			if got.Phase != PhaseTasting {
				t.Errorf("phase = %q, want %q", got.Phase, PhaseTasting)
			}
		})
	}
}

func TestNextRoundPastLastBottle(t *testing.T) {
	s := tastingState(t)
	s = mustReduce(t, s, NextRound{})
	s = mustReduce(t, s, NextRound{})
	if s.CurrentRound != len(s.Bottles) {
		t.Fatalf("currentRound = %d, want %d", s.CurrentRound, len(s.Bottles))
	}
	if _, ok := s.CurrentBottle(); ok {
		t.Error("CurrentBottle ok past the last round")
	}
	if s.RoundsRemaining() != 0 {
		t.Errorf("RoundsRemaining = %d, want 0", s.RoundsRemaining())
	}

	got, err := Reduce(Options{}, s, NextRound{})
	if !errors.Is(err, ErrRoundOverflow) {
		t.Fatalf("err = %v, want ErrRoundOverflow", err)
	}
	if got.CurrentRound != len(s.Bottles) {
		t.Errorf("currentRound = %d, want %d", got.CurrentRound, len(s.Bottles))
	}
}

func TestPhaseGuards(t *testing.T) {
	tests := []struct {
		name  string
		phase Phase
		cmd   Command
	}{
		{name: "submit in setup", phase: PhaseSetup, cmd: SubmitRound{}},
		{name: "next in setup", phase: PhaseSetup, cmd: NextRound{}},
		{name: "reveal in setup", phase: PhaseSetup, cmd: FinalReveal{}},
		{name: "score in setup", phase: PhaseSetup, cmd: FinalScore{}},
		{name: "score in tasting", phase: PhaseTasting, cmd: FinalScore{}},
		{name: "submit in reveal", phase: PhaseReveal, cmd: SubmitRound{}},
		{name: "next in reveal", phase: PhaseReveal, cmd: NextRound{}},
		{name: "guess in reveal", phase: PhaseReveal, cmd: RecordGuess{Player: "A", Guess: guess(1)}},
		{name: "scores in tasting", phase: PhaseTasting, cmd: RecordScores{Scores: map[string]float64{"A": 1}}},
		{name: "tie-breaker in tasting", phase: PhaseTasting, cmd: StartTieBreaker{}},
		{name: "tie-breaker twice", phase: PhaseTieBreaker, cmd: StartTieBreaker{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tastingState(t)
			s.Phase = tt.phase

			got, err := Reduce(Options{}, s, tt.cmd)
			if !errors.Is(err, ErrPhase) {
				t.Fatalf("err = %v, want ErrPhase", err)
			}
			if diff := cmp.Diff(s, got); diff != "" {
				t.Errorf("state changed on rejection (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFinalRevealIdempotent(t *testing.T) {
	s := mustReduce(t, tastingState(t), FinalReveal{})
	once := mustReduce(t, s, FinalReveal{})
	twice := mustReduce(t, once, FinalReveal{})

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second reveal changed state (-once +twice):\n%s", diff)
	}
}

func TestRecordGuess(t *testing.T) {
	s := tastingState(t)

	s = mustReduce(t, s, RecordGuess{Player: "B", Guess: guess(1)})
	if len(s.Players[1].Guesses) != 1 || s.Players[1].Guesses[0].BottleID != 1 {
		t.Fatalf("B guesses = %v, want one guess for bottle 1", s.Players[1].Guesses)
	}
	if len(s.Players[0].Guesses) != 0 {
		t.Errorf("A guesses = %v, want none", s.Players[0].Guesses)
	}

	bad := guess(1)
	bad.Ratings[Balance] = 6

	tests := []struct {
		name string
		cmd  RecordGuess
	}{
		{name: "unknown player", cmd: RecordGuess{Player: "Z", Guess: guess(2)}},
		{name: "unknown bottle", cmd: RecordGuess{Player: "A", Guess: guess(42)}},
		{name: "bottle not in play", cmd: RecordGuess{Player: "A", Guess: guess(2)}},
		{name: "rating out of range", cmd: RecordGuess{Player: "A", Guess: bad}},
		{name: "second guess for bottle", cmd: RecordGuess{Player: "B", Guess: guess(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reduce(Options{}, s, tt.cmd)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if diff := cmp.Diff(s, got); diff != "" {
				t.Errorf("state changed on rejection (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("after the last round", func(t *testing.T) {
		done := mustReduce(t, mustReduce(t, s, NextRound{}), NextRound{})
		if _, err := Reduce(Options{}, done, RecordGuess{Player: "A", Guess: guess(2)}); !errors.Is(err, ErrRoundOverflow) {
			t.Errorf("err = %v, want ErrRoundOverflow", err)
		}
	})

	t.Run("next round pours the next bottle", func(t *testing.T) {
		next := mustReduce(t, s, NextRound{})
		got := mustReduce(t, next, RecordGuess{Player: "A", Guess: guess(2)})
		if len(got.Players[0].Guesses) != 1 || got.Players[0].Guesses[0].BottleID != 2 {
			t.Errorf("A guesses = %v, want one guess for bottle 2", got.Players[0].Guesses)
		}
	})

	t.Run("during discussion", func(t *testing.T) {
		d := mustReduce(t, s, SubmitRound{})
		if _, err := Reduce(Options{}, d, RecordGuess{Player: "A", Guess: guess(1)}); !errors.Is(err, ErrPhase) {
			t.Errorf("err = %v, want ErrPhase", err)
		}
	})
}

func TestTieBreaker(t *testing.T) {
	s := mustReduce(t, tastingState(t), FinalReveal{})

	s = mustReduce(t, s, RecordScores{Scores: map[string]float64{"A": 12, "B": 9}})
	if _, err := Reduce(Options{}, s, StartTieBreaker{}); !errors.Is(err, ErrNoTie) {
		t.Fatalf("err = %v, want ErrNoTie", err)
	}

	s = mustReduce(t, s, RecordScores{Scores: map[string]float64{"B": 12}})
	if diff := cmp.Diff([]string{"A", "B"}, Leaders(s.Players)); diff != "" {
		t.Fatalf("leaders mismatch (-want +got):\n%s", diff)
	}

	tb := mustReduce(t, s, StartTieBreaker{})
	if tb.Phase != PhaseTieBreaker {
		t.Fatalf("phase = %q, want %q", tb.Phase, PhaseTieBreaker)
	}

	got, err := Reduce(Options{}, tb, FinalScore{})
	if !errors.Is(err, ErrTieUnresolved) {
		t.Fatalf("score while tied: err = %v, want ErrTieUnresolved", err)
	}
	if diff := cmp.Diff(tb, got); diff != "" {
		t.Errorf("state changed on rejection (-want +got):\n%s", diff)
	}

	tb = mustReduce(t, tb, RecordScores{Scores: map[string]float64{"A": 13}})

	back := mustReduce(t, tb, FinalReveal{})
	if back.Phase != PhaseReveal {
		t.Errorf("reveal from tie-breaker: phase = %q, want %q", back.Phase, PhaseReveal)
	}

	final := mustReduce(t, tb, FinalScore{})
	if final.Phase != PhaseFinal {
		t.Errorf("score from tie-breaker: phase = %q, want %q", final.Phase, PhaseFinal)
	}
	if final.Players[0].Score != 13 || final.Players[1].Score != 12 {
		t.Errorf("scores = %v/%v, want 13/12", final.Players[0].Score, final.Players[1].Score)
	}
}

func TestRecordScoresUnknownPlayer(t *testing.T) {
	s := mustReduce(t, tastingState(t), FinalReveal{})
	got, err := Reduce(Options{}, s, RecordScores{Scores: map[string]float64{"A": 3, "nobody": 1}})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if got.Players[0].Score != 0 {
		t.Error("partial scores applied on rejection")
	}
}

func TestRecordScoresEmpty(t *testing.T) {
	s := mustReduce(t, tastingState(t), FinalReveal{})

	for _, scores := range []map[string]float64{nil, {}} {
		_, err := Reduce(Options{}, s, RecordScores{Scores: scores})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("scores %v: err = %v, want *ValidationError", scores, err)
		}
		if verr.Problems[0].Field != "scores" {
			t.Errorf("field = %q, want scores", verr.Problems[0].Field)
		}
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := tastingState(t)
	s = mustReduce(t, s, RecordGuess{Player: "A", Guess: guess(1)})
	snapshot := s.Clone()

	next := mustReduce(t, s, SubmitRound{})
	next.Players[0].Guesses[0].FoodPairing = "mutated"
	next.Bottles[0].Producer = "mutated"

	if diff := cmp.Diff(snapshot, s); diff != "" {
		t.Errorf("input changed through output (-want +got):\n%s", diff)
	}
}

type rogueCommand struct{ SubmitRound }

func (rogueCommand) Type() string { return "ROGUE" }

func TestUnknownCommandPanics(t *testing.T) {
	defer func() {
		r := recover()
		cv, ok := r.(ContractViolation)
		if !ok {
			t.Fatalf("recovered %v, want ContractViolation", r)
		}
		if cv.Command.Type() != "ROGUE" {
			t.Errorf("command = %v, want rogue", cv.Command)
		}
	}()

	Reduce(Options{}, tastingState(t), rogueCommand{})
	t.Fatal("Reduce returned for an unknown command")
}

func TestLeaders(t *testing.T) {
	if got := Leaders(nil); got != nil {
		t.Errorf("Leaders(nil) = %v, want nil", got)
	}
	got := Leaders([]Player{{Name: "A", Score: 1}, {Name: "B", Score: 5}, {Name: "C", Score: 2}})
	if diff := cmp.Diff([]string{"B"}, got); diff != "" {
		t.Errorf("leaders mismatch (-want +got):\n%s", diff)
	}
}
