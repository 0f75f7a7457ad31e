// Package engine holds the position state machine shared by the backtester and
// the live driver. It performs no I/O; every transition is returned to the caller
// as a LifecycleEvent.
package engine

import (
	"fmt"
	"time"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
	"niftyGreeksBot/internal/risk"
	"niftyGreeksBot/internal/strategy"
)

// Machine owns at most one open position for a single instrument.
// It is not safe for concurrent use; each driver owns its own instance.
type Machine struct {
	policy    domain.Policy
	evaluator ports.SignalEvaluator
	risk      *risk.RiskManager
	gate      risk.TimeGate

	position *domain.Position
	history  []domain.Position
	lastID   int64
	lastSeen time.Time
	decision *domain.SignalDecision
}

// Option customises a Machine.
type Option func(*Machine)

// WithEvaluator replaces the default threshold evaluator.
func WithEvaluator(e ports.SignalEvaluator) Option {
	return func(m *Machine) { m.evaluator = e }
}

// WithStartID makes the next opened position use id+1.
func WithStartID(id int64) Option {
	return func(m *Machine) { m.lastID = id }
}

// New validates the policy and creates a FLAT machine.
func New(policy domain.Policy, opts ...Option) (*Machine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	rm, err := risk.FromPolicy(policy)
	if err != nil {
		return nil, err
	}
	m := &Machine{
		policy: policy,
		risk:   rm,
		gate:   risk.NewTimeGate(policy.Window),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.evaluator == nil {
		ev, err := strategy.New(policy.Signal)
		if err != nil {
			return nil, err
		}
		m.evaluator = ev
	}
	return m, nil
}

// Step advances the machine with one snapshot and returns the transition it
// caused, or nil when the state is unchanged. At most one transition happens
// per snapshot: a position closed here is not reopened until the next one.
//
// A malformed snapshot or one older than the last processed snapshot is
// rejected without touching state.
func (m *Machine) Step(snap domain.MarketSnapshot) (*domain.LifecycleEvent, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if snap.Timestamp.Before(m.lastSeen) {
		return nil, fmt.Errorf("%w: %s is before %s", ports.ErrOutOfOrder,
			snap.Timestamp.Format(time.RFC3339), m.lastSeen.Format(time.RFC3339))
	}
	m.lastSeen = snap.Timestamp

	decision := m.evaluator.Evaluate(snap)
	m.decision = &decision

	if m.position == nil {
		side, ok := decision.Signal.Side()
		if !ok || !m.gate.PermitsEntry(snap.Timestamp) {
			return nil, nil
		}
		ev, err := m.open(side, snap, decision.Signal)
		if err != nil {
			return nil, err
		}
		return &ev, nil
	}

	reason, exit := m.exitReason(snap, decision)
	if !exit {
		return nil, nil
	}
	ev, err := m.close(snap, reason, decision.Signal)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// LastDecision returns the evaluator's decision on the last accepted
// snapshot, or false before any snapshot was stepped.
func (m *Machine) LastDecision() (domain.SignalDecision, bool) {
	if m.decision == nil {
		return domain.SignalDecision{}, false
	}
	return *m.decision, true
}

// exitReason applies the close rules in priority order: risk, session end,
// then signal reversal.
func (m *Machine) exitReason(snap domain.MarketSnapshot, decision domain.SignalDecision) (domain.CloseReason, bool) {
	pos := m.position
	if reason, ok := m.risk.Evaluate(*pos, snap.Price).CloseReason(); ok {
		return reason, true
	}
	if m.gate.ReachedSessionEnd(pos.EntryTime, snap.Timestamp) {
		return domain.CloseReasonTimeExit, true
	}
	if side, ok := decision.Signal.Side(); ok && side == pos.Side.Opposite() {
		return domain.CloseReasonSignalReversal, true
	}
	return "", false
}

// Open enters a position at the snapshot price regardless of the signal or window.
func (m *Machine) Open(side domain.Side, snap domain.MarketSnapshot) (domain.LifecycleEvent, error) {
	if err := snap.Validate(); err != nil {
		return domain.LifecycleEvent{}, err
	}
	return m.open(side, snap, domain.SignalNone)
}

// Close exits the open position at the snapshot price with the given reason.
func (m *Machine) Close(snap domain.MarketSnapshot, reason domain.CloseReason) (domain.LifecycleEvent, error) {
	if err := snap.Validate(); err != nil {
		return domain.LifecycleEvent{}, err
	}
	return m.close(snap, reason, domain.SignalNone)
}

// ForceClose exits the open position at price and time, for callers that have
// no full snapshot, such as a manual stop.
func (m *Machine) ForceClose(price float64, at time.Time, reason domain.CloseReason) (domain.LifecycleEvent, error) {
	if m.position == nil {
		return domain.LifecycleEvent{}, ports.ErrNoOpenPosition
	}
	return m.close(domain.MarketSnapshot{Timestamp: at, Symbol: m.position.Symbol, Price: price}, reason, domain.SignalNone)
}

func (m *Machine) open(side domain.Side, snap domain.MarketSnapshot, sig domain.Signal) (domain.LifecycleEvent, error) {
	if m.position != nil {
		return domain.LifecycleEvent{}, fmt.Errorf("%w: position %d (%s)", ports.ErrPositionAlreadyOpen, m.position.ID, m.position.Side)
	}
	if side.Sign() == 0 {
		return domain.LifecycleEvent{}, fmt.Errorf("%w: unknown side %q", ports.ErrInvalidRequest, side)
	}
	symbol := snap.Symbol
	if symbol == "" {
		symbol = m.policy.Symbol
	}
	m.lastID++
	m.position = &domain.Position{
		ID:         m.lastID,
		Symbol:     symbol,
		Side:       side,
		EntryPrice: snap.Price,
		EntryTime:  snap.Timestamp,
		Quantity:   m.policy.LotSize,
		Status:     domain.StatusOpen,
	}
	return domain.LifecycleEvent{
		Type:      domain.EventOpen,
		Position:  *m.position,
		Signal:    sig,
		Price:     snap.Price,
		Timestamp: snap.Timestamp,
	}, nil
}

func (m *Machine) close(snap domain.MarketSnapshot, reason domain.CloseReason, sig domain.Signal) (domain.LifecycleEvent, error) {
	if m.position == nil {
		return domain.LifecycleEvent{}, ports.ErrNoOpenPosition
	}
	if !reason.Valid() {
		return domain.LifecycleEvent{}, fmt.Errorf("%w: unknown close reason %q", ports.ErrInvalidRequest, reason)
	}
	pos := *m.position
	pos.Status = domain.StatusClosed
	pos.CloseReason = reason
	pos.ExitPrice = snap.Price
	pos.ExitTime = snap.Timestamp
	pos.PNL = pos.UnrealizedPNL(snap.Price)

	m.history = append(m.history, pos)
	m.position = nil
	if snap.Timestamp.After(m.lastSeen) {
		m.lastSeen = snap.Timestamp
	}

	return domain.LifecycleEvent{
		Type:      domain.EventClose,
		Position:  pos,
		Reason:    reason,
		Signal:    sig,
		Price:     snap.Price,
		Timestamp: snap.Timestamp,
	}, nil
}

// Restore reinstates an open position loaded from storage, e.g. after a restart.
func (m *Machine) Restore(pos domain.Position) error {
	if m.position != nil {
		return fmt.Errorf("%w: cannot restore position %d", ports.ErrPositionAlreadyOpen, pos.ID)
	}
	if !pos.IsOpen() || pos.Side.Sign() == 0 || pos.Quantity <= 0 || pos.EntryPrice <= 0 {
		return fmt.Errorf("%w: position %d is not a valid open position", ports.ErrInvalidRequest, pos.ID)
	}
	m.position = &pos
	if pos.ID > m.lastID {
		m.lastID = pos.ID
	}
	if pos.EntryTime.After(m.lastSeen) {
		m.lastSeen = pos.EntryTime
	}
	return nil
}

// Position returns a copy of the open position, or nil when FLAT.
func (m *Machine) Position() *domain.Position {
	if m.position == nil {
		return nil
	}
	p := *m.position
	return &p
}

// IsFlat reports whether no position is open.
func (m *Machine) IsFlat() bool {
	return m.position == nil
}

// UnrealizedPNL marks the open position to price; zero when FLAT.
func (m *Machine) UnrealizedPNL(price float64) float64 {
	if m.position == nil {
		return 0
	}
	return m.position.UnrealizedPNL(price)
}

// History returns the closed positions in close order.
func (m *Machine) History() []domain.Position {
	out := make([]domain.Position, len(m.history))
	copy(out, m.history)
	return out
}

// Policy returns the policy the machine was built with.
func (m *Machine) Policy() domain.Policy {
	return m.policy
}

// RiskLevels returns the stop-loss and take-profit prices of the open position.
func (m *Machine) RiskLevels() (stop, target float64, ok bool) {
	if m.position == nil {
		return 0, 0, false
	}
	return m.risk.GetStopLoss(m.position.EntryPrice, m.position.Side),
		m.risk.GetTakeProfit(m.position.EntryPrice, m.position.Side), true
}
