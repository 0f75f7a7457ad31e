package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"niftyGreeksBot/config"
	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/engine"
	"niftyGreeksBot/internal/ports"
	"niftyGreeksBot/internal/strategy"
)

// LiveTrader drives the position state machine from a live snapshot feed.
// It forwards every transition to the order executor, the repositories and
// the event publisher.
type LiveTrader struct {
	cfg       *config.Config
	logger    ports.Logger
	feed      ports.SnapshotFeed
	executor  ports.OrderExecutor
	posRepo   ports.PositionRepository
	tradeRepo ports.TradeRepository
	publisher ports.EventPublisher // Optional
	evaluator ports.SignalEvaluator // Optional; replaces the threshold evaluator
	newID     func() string

	// State fields
	mu       sync.Mutex // Protects access to state fields below
	machine  *engine.Machine
	lastSnap *domain.MarketSnapshot
	policy   domain.Policy
}

// TraderOption customises a LiveTrader.
type TraderOption func(*LiveTrader)

// WithSignalEvaluator makes the trader's machine decide with e.
func WithSignalEvaluator(e ports.SignalEvaluator) TraderOption {
	return func(s *LiveTrader) { s.evaluator = e }
}

// NewLiveTrader creates the live driver. publisher may be nil.
func NewLiveTrader(
	cfg *config.Config,
	logger ports.Logger,
	feed ports.SnapshotFeed,
	executor ports.OrderExecutor,
	posRepo ports.PositionRepository,
	tradeRepo ports.TradeRepository,
	publisher ports.EventPublisher,
	opts ...TraderOption,
) (*LiveTrader, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || feed == nil || executor == nil || posRepo == nil || tradeRepo == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for LiveTrader", ports.ErrConfigurationError)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: PollInterval must be positive", ports.ErrConfigurationError)
	}

	s := &LiveTrader{
		cfg:       cfg,
		logger:    logger,
		feed:      feed,
		executor:  executor,
		posRepo:   posRepo,
		tradeRepo: tradeRepo,
		publisher: publisher,
		newID:     uuid.NewString,
		policy:    cfg.Policy(),
	}
	for _, opt := range opts {
		opt(s)
	}

	machine, err := s.newMachine(0)
	if err != nil {
		return nil, err
	}
	s.machine = machine
	return s, nil
}

func (s *LiveTrader) newMachine(lastID int64) (*engine.Machine, error) {
	opts := []engine.Option{engine.WithStartID(lastID)}
	if s.evaluator != nil {
		opts = append(opts, engine.WithEvaluator(s.evaluator))
	}
	return engine.New(s.policy, opts...)
}

// Start restores persisted state and processes the feed until the context is
// canceled, a shutdown signal arrives or the feed is exhausted.
func (s *LiveTrader) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting live trader...", map[string]interface{}{
		"symbol":  s.policy.Symbol,
		"window":  s.policy.Window.Start.String() + "-" + s.policy.Window.End.String(),
		"lotSize": s.policy.LotSize,
	})

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.restore(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

loop:
	for !s.poll(ctx) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
	}

	s.shutdown(context.WithoutCancel(ctx))
	return nil
}

// restore continues ID numbering after the stored positions and reinstates an
// open position left by a previous run.
func (s *LiveTrader) restore(ctx context.Context) error {
	lastID, err := s.posRepo.LastID(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load last position ID")
		return fmt.Errorf("failed to restore state: %w", err)
	}
	open, err := s.posRepo.FindOpenBySymbol(ctx, s.policy.Symbol)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load open position", map[string]interface{}{"symbol": s.policy.Symbol})
		return fmt.Errorf("failed to restore state: %w", err)
	}

	machine, err := s.newMachine(lastID)
	if err != nil {
		return err
	}
	if open != nil {
		if err := machine.Restore(*open); err != nil {
			s.logger.Error(ctx, err, "Failed to restore open position", map[string]interface{}{"positionID": open.ID})
			return fmt.Errorf("failed to restore state: %w", err)
		}
		stop, target, _ := machine.RiskLevels()
		s.logger.Info(ctx, "Restored open position", map[string]interface{}{
			"positionID": open.ID,
			"side":       open.Side,
			"entryPrice": open.EntryPrice,
			"entryTime":  open.EntryTime,
			"stopLoss":   stop,
			"takeProfit": target,
		})
	} else {
		s.logger.Info(ctx, "No open position found, starting FLAT", map[string]interface{}{"lastPositionID": lastID})
	}

	s.mu.Lock()
	s.machine = machine
	s.mu.Unlock()
	return nil
}

// poll reads one snapshot from the feed and reports whether the loop should stop.
func (s *LiveTrader) poll(ctx context.Context) bool {
	snap, err := s.feed.Next(ctx)
	switch {
	case err == nil:
		if _, err := s.ProcessSnapshot(ctx, snap); err != nil {
			s.logger.Warn(ctx, "Snapshot skipped", map[string]interface{}{"error": err.Error(), "timestamp": snap.Timestamp})
		}
		return false
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return true
	case errors.Is(err, ports.ErrFeedExhausted):
		s.logger.Info(ctx, "Snapshot feed exhausted")
		return true
	case errors.Is(err, ports.ErrMalformedSnapshot):
		s.logger.Warn(ctx, "Malformed snapshot skipped", map[string]interface{}{"error": err.Error()})
		return false
	case errors.Is(err, ports.ErrFeedUnavailable):
		s.logger.Error(ctx, err, "Snapshot feed unavailable, waiting for next poll")
		return false
	default:
		s.logger.Error(ctx, err, "Failed to read snapshot")
		return false
	}
}

// ProcessSnapshot feeds one snapshot into the state machine and carries out the
// resulting transition, if any. A malformed or out-of-order snapshot is
// returned as an error and leaves the state untouched.
func (s *LiveTrader) ProcessSnapshot(ctx context.Context, snap domain.MarketSnapshot) (*domain.LifecycleEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.machine.Step(snap)
	if err != nil {
		return nil, err
	}
	last := snap
	s.lastSnap = &last

	if ev == nil {
		fields := map[string]interface{}{}
		if decision, ok := s.machine.LastDecision(); ok {
			fields = strategy.Conditions(decision)
		}
		fields["price"] = snap.Price
		if stop, target, ok := s.machine.RiskLevels(); ok {
			fields["stopLoss"] = stop
			fields["takeProfit"] = target
			fields["unrealizedPNL"] = s.machine.UnrealizedPNL(snap.Price)
		}
		s.logger.Debug(ctx, "No transition", fields)
		return nil, nil
	}

	s.handleEvent(ctx, *ev)
	return ev, nil
}

// handleEvent submits the order intent, persists the position and publishes
// the event. Failures are logged; the machine state is already committed.
func (s *LiveTrader) handleEvent(ctx context.Context, ev domain.LifecycleEvent) {
	pos := ev.Position
	fields := map[string]interface{}{
		"positionID": pos.ID,
		"side":       pos.Side,
		"price":      ev.Price,
		"signal":     ev.Signal,
		"timestamp":  ev.Timestamp,
	}

	switch ev.Type {
	case domain.EventOpen:
		if stop, target, ok := s.machine.RiskLevels(); ok {
			fields["stopLoss"] = stop
			fields["takeProfit"] = target
		}
		s.logger.Info(ctx, "Position opened", fields)
	case domain.EventClose:
		fields["reason"] = ev.Reason
		fields["pnl"] = pos.PNL
		s.logger.Info(ctx, "Position closed", fields)
	}

	intent := s.newIntent(ev)
	if err := s.executor.Submit(ctx, intent); err != nil {
		s.logger.Error(ctx, err, "Failed to submit order intent", map[string]interface{}{
			"clientOrderID": intent.ClientOrderID,
			"action":        intent.Action,
			"positionID":    pos.ID,
		})
	}

	s.persist(ctx, ev)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn(ctx, "Failed to publish lifecycle event", map[string]interface{}{"error": err.Error(), "positionID": pos.ID})
		}
	}
}

func (s *LiveTrader) newIntent(ev domain.LifecycleEvent) domain.OrderIntent {
	reason := domain.IntentReasonEntry
	if ev.Type == domain.EventClose {
		reason = string(ev.Reason)
	}
	return domain.OrderIntent{
		ClientOrderID: s.newID(),
		PositionID:    ev.Position.ID,
		Symbol:        ev.Position.Symbol,
		Action:        ev.OrderAction(),
		Side:          ev.Position.Side,
		Quantity:      ev.Position.Quantity,
		Price:         ev.Price,
		Reason:        reason,
		Timestamp:     ev.Timestamp,
	}
}

func (s *LiveTrader) persist(ctx context.Context, ev domain.LifecycleEvent) {
	pos := ev.Position
	if ev.Type == domain.EventOpen {
		if err := s.posRepo.Create(ctx, &pos); err != nil {
			s.logger.Error(ctx, err, "Failed to save opened position", map[string]interface{}{"positionID": pos.ID})
		}
		return
	}

	if err := s.posRepo.Update(ctx, &pos); err != nil {
		s.logger.Error(ctx, err, "Failed to update closed position", map[string]interface{}{"positionID": pos.ID})
	}
	trade := domain.NewTradeRecord(pos, s.policy.CostPerOrder)
	if _, err := s.tradeRepo.CreateTrade(ctx, &trade); err != nil {
		s.logger.Error(ctx, err, "Failed to save trade record", map[string]interface{}{"positionID": pos.ID})
	}
}

// shutdown flattens the open position at the last seen price when configured to.
func (s *LiveTrader) shutdown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.machine.Position()
	if pos == nil {
		s.logger.Info(ctx, "Live trader stopped, no open position")
		return
	}
	if !s.cfg.FlattenOnStop || s.lastSnap == nil {
		s.logger.Warn(ctx, "Live trader stopped with open position", map[string]interface{}{
			"positionID": pos.ID,
			"side":       pos.Side,
			"entryPrice": pos.EntryPrice,
		})
		return
	}

	ev, err := s.machine.ForceClose(s.lastSnap.Price, s.lastSnap.Timestamp, domain.CloseReasonManual)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to flatten position on stop", map[string]interface{}{"positionID": pos.ID})
		return
	}
	s.handleEvent(ctx, ev)
	s.logger.Info(ctx, "Live trader stopped, position flattened", map[string]interface{}{"positionID": pos.ID})
}

// OpenPosition returns a copy of the open position, or nil when FLAT.
func (s *LiveTrader) OpenPosition() *domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Position()
}
