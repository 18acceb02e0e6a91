package portfolio

import (
	"fmt"

	"nivesh/internal/asset"
	"nivesh/internal/money"
)

// Every operation in this file is validate-then-apply: all checks run
// against the current state before the first field is mutated, so a
// rejected operation leaves the state untouched.

// Deposit moves amount from pocket cash into the savings account.
// Deposits are blocked while the player is in debt; withdrawals are not.
func (s *State) Deposit(amount money.Money) error {
	if amount <= 0 {
		return fmt.Errorf("%w: deposit amount must be > 0", ErrValidation)
	}
	if s.PocketCash < 0 {
		return ErrAccountInDebt
	}
	if s.PocketCash < amount {
		return ErrInsufficientFunds
	}
	s.PocketCash -= amount
	s.Savings.Balance += amount
	s.Savings.TotalDeposited += amount
	return nil
}

// Withdraw moves amount from savings back to pocket cash. Allowed even
// while in debt, so a player can always dig themselves out.
func (s *State) Withdraw(amount money.Money) error {
	if amount <= 0 {
		return fmt.Errorf("%w: withdraw amount must be > 0", ErrValidation)
	}
	if s.Savings.Balance < amount {
		return ErrInsufficientBalance
	}
	s.Savings.Balance -= amount
	s.PocketCash += amount
	return nil
}

// CreateFixedDeposit locks amount for durationMonths at rateBps annual
// interest, snapshotted now. Rate changes later never affect existing
// deposits.
func (s *State) CreateFixedDeposit(amount money.Money, durationMonths int, rateBps int64) (FixedDeposit, error) {
	if amount <= 0 {
		return FixedDeposit{}, fmt.Errorf("%w: deposit amount must be > 0", ErrValidation)
	}
	if !fdDurations[durationMonths] {
		return FixedDeposit{}, fmt.Errorf("%w: duration must be 3, 12, 24 or 36 months", ErrValidation)
	}
	if rateBps <= 0 {
		return FixedDeposit{}, fmt.Errorf("%w: rate must be > 0", ErrValidation)
	}
	if s.PocketCash < 0 {
		return FixedDeposit{}, ErrAccountInDebt
	}
	if s.PocketCash < amount {
		return FixedDeposit{}, ErrInsufficientFunds
	}
	if len(s.FixedDeposits) >= s.FDCap {
		return FixedDeposit{}, ErrMaxFDReached
	}

	my, mm := addMonths(s.CurrentYear, s.CurrentMonth, durationMonths)
	fd := FixedDeposit{
		ID:             s.NextFDID,
		Amount:         amount,
		DurationMonths: durationMonths,
		RateBps:        rateBps,
		StartYear:      s.CurrentYear,
		StartMonth:     s.CurrentMonth,
		MaturityYear:   my,
		MaturityMonth:  mm,
	}
	s.NextFDID++
	s.PocketCash -= amount
	s.FixedDeposits = append(s.FixedDeposits, fd)
	return fd, nil
}

// breakPenaltyDivisor: early withdrawal forfeits 1% of principal.
const breakPenaltyDivisor = 100

// BreakFixedDeposit ends a deposit before maturity, returning the
// principal minus the early-withdrawal penalty. Matured deposits must be
// collected instead.
func (s *State) BreakFixedDeposit(id int64) (money.Money, error) {
	i := s.findFD(id)
	if i < 0 {
		return 0, ErrFDNotFound
	}
	fd := s.FixedDeposits[i]
	if fd.IsMatured {
		return 0, ErrAlreadyMatured
	}
	returned := fd.Amount - fd.Amount/breakPenaltyDivisor
	s.removeFD(i)
	s.PocketCash += returned
	return returned, nil
}

// CollectFixedDeposit settles a matured deposit: principal plus simple
// pro-rated annual interest over the full term.
func (s *State) CollectFixedDeposit(id int64) (money.Money, error) {
	i := s.findFD(id)
	if i < 0 {
		return 0, ErrFDNotFound
	}
	fd := s.FixedDeposits[i]
	if !fd.IsMatured {
		return 0, ErrNotYetMatured
	}
	value := fd.Amount + money.SimpleInterest(fd.Amount, fd.RateBps, fd.DurationMonths)
	s.removeFD(i)
	s.PocketCash += value
	return value, nil
}

// AccruedValue is the display value of a non-matured deposit: principal
// plus interest earned so far, clamped to the deposit's term. Settlement
// always uses CollectFixedDeposit, never this.
func (s *State) AccruedValue(fd FixedDeposit) money.Money {
	elapsed := (s.CurrentYear-fd.StartYear)*12 + (s.CurrentMonth - fd.StartMonth)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > fd.DurationMonths {
		elapsed = fd.DurationMonths
	}
	return fd.Amount + money.SimpleInterest(fd.Amount, fd.RateBps, elapsed)
}

// Buy acquires qtyUnits of symbol at price per whole unit, recomputing the
// holding's weighted average price.
func (s *State) Buy(symbol string, qtyUnits int64, price money.Money) error {
	if symbol == "" || qtyUnits <= 0 || price <= 0 {
		return fmt.Errorf("%w: buy needs a symbol, quantity > 0 and price > 0", ErrValidation)
	}
	cost, err := money.Notional(price, qtyUnits)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if s.PocketCash < cost {
		return ErrInsufficientFunds
	}

	h := s.Holdings[symbol]
	newQty := h.QuantityUnits + qtyUnits
	newInvested := h.TotalInvested + cost
	newAvg, err := money.AvgPrice(newInvested, newQty)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s.PocketCash -= cost
	s.Holdings[symbol] = Holding{
		QuantityUnits: newQty,
		AvgPrice:      newAvg,
		TotalInvested: newInvested,
	}
	return nil
}

// Sell disposes of qtyUnits at price, crediting the proceeds to pocket
// cash. TotalInvested shrinks proportionally; AvgPrice stays unchanged. A
// holding sold down to zero is removed, so quantity 0 never carries a
// residual invested amount.
func (s *State) Sell(symbol string, qtyUnits int64, price money.Money) error {
	if symbol == "" || qtyUnits <= 0 || price <= 0 {
		return fmt.Errorf("%w: sell needs a symbol, quantity > 0 and price > 0", ErrValidation)
	}
	h, ok := s.Holdings[symbol]
	if !ok || h.QuantityUnits < qtyUnits {
		return ErrInsufficientHoldings
	}
	proceeds, err := money.Notional(price, qtyUnits)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	remaining := h.QuantityUnits - qtyUnits
	s.PocketCash += proceeds
	if remaining == 0 {
		delete(s.Holdings, symbol)
		return nil
	}
	s.Holdings[symbol] = Holding{
		QuantityUnits: remaining,
		AvgPrice:      h.AvgPrice,
		TotalInvested: money.ProRata(h.TotalInvested, remaining, h.QuantityUnits),
	}
	return nil
}

// CreditIncome adds an inbound cash credit (initial grant, recurring
// yearly income) and tracks it in the lifetime received total used for
// capital-adjusted return calculations.
func (s *State) CreditIncome(amount money.Money) error {
	if amount <= 0 {
		return fmt.Errorf("%w: income must be > 0", ErrValidation)
	}
	s.PocketCash += amount
	s.PocketCashReceivedTotal += amount
	return nil
}

// CompleteQuiz marks a category quiz as answered.
func (s *State) CompleteQuiz(cat asset.Category) {
	s.CompletedQuizzes[cat] = true
}

// QuizCompleted reports whether the category quiz has been answered.
func (s *State) QuizCompleted(cat asset.Category) bool {
	return s.CompletedQuizzes[cat]
}

func (s *State) removeFD(i int) {
	s.FixedDeposits = append(s.FixedDeposits[:i], s.FixedDeposits[i+1:]...)
}

func addMonths(year, month, n int) (int, int) {
	idx := (year-1)*12 + (month - 1) + n
	return idx/12 + 1, idx%12 + 1
}
