// Package portfolio holds a player's financial state and the validated
// mutations that may be applied to it. The same state is replicated on the
// host and on the player's own client; every operation is deterministic,
// so replicas that apply the same operations in the same order against the
// same starting state stay byte-identical.
package portfolio

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"nivesh/internal/asset"
	"nivesh/internal/money"
)

var (
	ErrValidation           = errors.New("invalid operation input")
	ErrInsufficientFunds    = errors.New("insufficient pocket cash")
	ErrInsufficientBalance  = errors.New("insufficient savings balance")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrAccountInDebt        = errors.New("account is in debt")
	ErrMaxFDReached         = errors.New("fixed deposit limit reached")
	ErrFDNotFound           = errors.New("fixed deposit not found")
	ErrAlreadyMatured       = errors.New("fixed deposit already matured")
	ErrNotYetMatured        = errors.New("fixed deposit not yet matured")
)

// DefaultFDCap is the default number of concurrent fixed deposits.
const DefaultFDCap = 3

// fdDurations is the closed set of allowed fixed-deposit terms in months.
var fdDurations = map[int]bool{3: true, 12: true, 24: true, 36: true}

// SavingsAccount is the player's bank savings account. Balance never goes
// negative; TotalDeposited only grows after initialization.
type SavingsAccount struct {
	Balance        money.Money `json:"balance"`
	RateBps        int64       `json:"rate_bps"`
	TotalDeposited money.Money `json:"total_deposited"`
}

// FixedDeposit is a term deposit. The rate is snapshotted at creation and
// never changes afterwards.
type FixedDeposit struct {
	ID             int64       `json:"id"`
	Amount         money.Money `json:"amount"`
	DurationMonths int         `json:"duration_months"`
	RateBps        int64       `json:"rate_bps"`
	StartYear      int         `json:"start_year"`
	StartMonth     int         `json:"start_month"`
	MaturityYear   int         `json:"maturity_year"`
	MaturityMonth  int         `json:"maturity_month"`
	IsMatured      bool        `json:"is_matured"`
}

// Holding is the player's position in one instrument. AvgPrice is the
// cost-basis-weighted average of all buys; sells reduce Quantity and
// TotalInvested proportionally and leave AvgPrice untouched.
type Holding struct {
	QuantityUnits int64       `json:"quantity_units"`
	AvgPrice      money.Money `json:"avg_price"`
	TotalInvested money.Money `json:"total_invested"`
}

// State is one player's full financial state plus their game clock.
type State struct {
	PocketCash              money.Money `json:"pocket_cash"`
	PocketCashReceivedTotal money.Money `json:"pocket_cash_received_total"`

	Savings       SavingsAccount     `json:"savings"`
	FixedDeposits []FixedDeposit     `json:"fixed_deposits"`
	NextFDID      int64              `json:"next_fd_id"`
	FDCap         int                `json:"fd_cap"`
	Holdings      map[string]Holding `json:"holdings"`

	CompletedQuizzes map[asset.Category]bool `json:"completed_quizzes"`
	QuizIndices      map[asset.Category]int  `json:"quiz_indices"`

	CurrentYear  int  `json:"current_year"`
	CurrentMonth int  `json:"current_month"`
	IsPaused     bool `json:"is_paused"`
	IsStarted    bool `json:"is_started"`
}

// New creates a session-start state with the admin-configured initial
// cash. quizIndices must come from the shared session seed so every
// replica starts from the same assignment.
func New(initialCash money.Money, savingsRateBps int64, quizIndices map[asset.Category]int) *State {
	idx := make(map[asset.Category]int, len(quizIndices))
	for k, v := range quizIndices {
		idx[k] = v
	}
	return &State{
		PocketCash:              initialCash,
		PocketCashReceivedTotal: initialCash,
		Savings:                 SavingsAccount{RateBps: savingsRateBps},
		NextFDID:                1,
		FDCap:                   DefaultFDCap,
		Holdings:                make(map[string]Holding),
		CompletedQuizzes:        make(map[asset.Category]bool),
		QuizIndices:             idx,
		CurrentYear:             1,
		CurrentMonth:            1,
		IsStarted:               true,
	}
}

// Clone returns a deep copy. Used by the client for optimistic prediction
// and by the host when snapshotting state into an acknowledgement.
func (s *State) Clone() *State {
	out := *s
	out.FixedDeposits = append([]FixedDeposit(nil), s.FixedDeposits...)
	out.Holdings = make(map[string]Holding, len(s.Holdings))
	for k, v := range s.Holdings {
		out.Holdings[k] = v
	}
	out.CompletedQuizzes = make(map[asset.Category]bool, len(s.CompletedQuizzes))
	for k, v := range s.CompletedQuizzes {
		out.CompletedQuizzes[k] = v
	}
	out.QuizIndices = make(map[asset.Category]int, len(s.QuizIndices))
	for k, v := range s.QuizIndices {
		out.QuizIndices[k] = v
	}
	return &out
}

// Digest is a canonical hash of the state. encoding/json writes map keys
// in sorted order, so two states with equal contents always hash equal;
// host and client compare digests to detect divergence.
func (s *State) Digest() string {
	raw, err := json.Marshal(s)
	if err != nil {
		// State is a closed set of marshalable types; this cannot happen
		// for a well-formed state.
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// findFD returns the index of the deposit with the given id, or -1.
func (s *State) findFD(id int64) int {
	for i := range s.FixedDeposits {
		if s.FixedDeposits[i].ID == id {
			return i
		}
	}
	return -1
}

// Ended reports whether the session is over for this player.
func (s *State) Ended() bool {
	return s.CurrentYear > gameYears || !s.IsStarted
}

const gameYears = 20
