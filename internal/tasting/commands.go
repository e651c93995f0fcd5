package tasting

// Wire tags for each command.
const (
	TypeSetupGame       = "SETUP_GAME"
	TypeSubmitRound     = "SUBMIT_ROUND"
	TypeNextRound       = "NEXT_ROUND"
	TypeFinalReveal     = "FINAL_REVEAL"
	TypeFinalScore      = "FINAL_SCORE"
	TypeRecordGuess     = "RECORD_GUESS"
	TypeRecordScores    = "RECORD_SCORES"
	TypeStartTieBreaker = "START_TIE_BREAKER"
)

// Command is a request to move a session to its next state. The set of
// commands is closed; pass them to Reduce by value.
type Command interface {
	Type() string
	command()
}

// SetupGame installs the players and bottles and starts the first round.
type SetupGame struct {
	Players []Player `json:"players"`
	Bottles []Bottle `json:"bottles"`
}

// SubmitRound closes guessing for the current bottle and opens discussion.
type SubmitRound struct{}

// NextRound moves on to the next bottle.
type NextRound struct{}

// FinalReveal uncovers the bottle identities.
type FinalReveal struct{}

// FinalScore ends the game.
type FinalScore struct{}

// RecordGuess appends one player's guess for a bottle.
type RecordGuess struct {
	Player string      `json:"player"`
	Guess  PlayerGuess `json:"guess"`
}

// RecordScores writes scores computed outside the machine back into the
// state, keyed by player name.
type RecordScores struct {
	Scores map[string]float64 `json:"scores"`
}

// StartTieBreaker enters the tie-breaker when the leaders are tied.
type StartTieBreaker struct{}

func (SetupGame) Type() string       { return TypeSetupGame }
func (SubmitRound) Type() string     { return TypeSubmitRound }
func (NextRound) Type() string       { return TypeNextRound }
func (FinalReveal) Type() string     { return TypeFinalReveal }
func (FinalScore) Type() string      { return TypeFinalScore }
func (RecordGuess) Type() string     { return TypeRecordGuess }
func (RecordScores) Type() string    { return TypeRecordScores }
func (StartTieBreaker) Type() string { return TypeStartTieBreaker }

func (SetupGame) command()       {}
func (SubmitRound) command()     {}
func (NextRound) command()       {}
func (FinalReveal) command()     {}
func (FinalScore) command()      {}
func (RecordGuess) command()     {}
func (RecordScores) command()    {}
func (StartTieBreaker) command() {}
