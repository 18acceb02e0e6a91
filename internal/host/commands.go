package host

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"nivesh/internal/asset"
	"nivesh/internal/gamelog"
	"nivesh/internal/portfolio"
	"nivesh/internal/wire"
)

var errUnknownCommand = errors.New("unknown trade command")

// applyTrade runs one client command against the player's authoritative
// state and returns the ack. Commands are idempotent on CommandID: a
// replayed command returns the cached ack instead of applying twice.
func (h *Hub) applyTrade(p *player, cmd wire.TradeCommand) wire.TradeAck {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ack, ok := p.acked[cmd.CommandID]; ok {
		return ack
	}

	cmdID, err := uuid.Parse(cmd.CommandID)
	if err != nil {
		return wire.TradeAck{
			CommandID: cmd.CommandID,
			Error:     fmt.Sprintf("invalid command id: %v", err),
			Digest:    p.state.Digest(),
		}
	}

	err = h.applyTradeLocked(p, cmd)
	ack := wire.TradeAck{
		CommandID: cmd.CommandID,
		OK:        err == nil,
		Digest:    p.state.Digest(),
		Snapshot:  p.state.Clone(),
	}
	if err != nil {
		ack.Error = err.Error()
	} else {
		clk := h.coord.Clock()
		p.journal = append(p.journal, gamelog.TradeRow{
			CommandID:     cmdID,
			Kind:          string(cmd.Kind),
			Symbol:        cmd.Symbol,
			QuantityUnits: cmd.QuantityUnits,
			Price:         cmd.Price,
			Amount:        cmd.Amount,
			GameYear:      clk.Year,
			GameMonth:     clk.Month,
		})
	}
	p.acked[cmd.CommandID] = ack
	return ack
}

func (h *Hub) applyTradeLocked(p *player, cmd wire.TradeCommand) error {
	clk := h.coord.Clock()

	switch cmd.Kind {
	case wire.TradeDeposit:
		return p.state.Deposit(cmd.Amount)
	case wire.TradeWithdraw:
		return p.state.Withdraw(cmd.Amount)
	case wire.TradeFDCreate:
		_, err := p.state.CreateFixedDeposit(cmd.Amount, cmd.DurationMonths, cmd.RateBps)
		return err
	case wire.TradeFDBreak:
		_, err := p.state.BreakFixedDeposit(cmd.FDID)
		return err
	case wire.TradeFDCollect:
		_, err := p.state.CollectFixedDeposit(cmd.FDID)
		return err
	case wire.TradeBuy, wire.TradeSell:
		inst, err := asset.Lookup(cmd.Symbol)
		if err != nil {
			return fmt.Errorf("%w: %v", portfolio.ErrValidation, err)
		}
		if !h.sched.IsUnlocked(inst.Category, clk.Year, clk.Month) {
			return fmt.Errorf("%w: %s is not unlocked yet", portfolio.ErrValidation, inst.Category)
		}
		// The host trades at its own feed, never the client's claimed
		// price. Both sides saw the same tick, so these normally agree;
		// when they do not, the digest in the ack forces the client back
		// in line.
		value, err := h.priceAt(cmd.Symbol, clk)
		if err != nil {
			return err
		}
		if cmd.Kind == wire.TradeBuy {
			return p.state.Buy(cmd.Symbol, cmd.QuantityUnits, value)
		}
		return p.state.Sell(cmd.Symbol, cmd.QuantityUnits, value)
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, cmd.Kind)
	}
}

// completeQuiz releases the player's quiz gate for the category and marks
// it done on the authoritative state.
func (h *Hub) completeQuiz(p *player, ans wire.QuizAnswer) {
	h.mu.Lock()
	p.state.CompleteQuiz(ans.Category)
	h.mu.Unlock()
	h.coord.CompleteQuiz(p.id, ans.Category)
	h.broadcastPhase()
}

// snapshot builds a full-state resync message for the player.
func (h *Hub) snapshot(p *player) (wire.Envelope, error) {
	h.mu.Lock()
	snap := wire.StateSnapshot{
		PlayerID: p.id,
		Digest:   p.state.Digest(),
		State:    p.state.Clone(),
	}
	h.mu.Unlock()
	return wire.NewEnvelope(wire.MsgStateSnapshot, h.coord.Clock(), snap)
}
