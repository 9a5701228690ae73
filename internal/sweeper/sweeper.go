// Package sweeper closes auctions whose deadline has passed.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/viney-shih/goroutines"
	"go.uber.org/zap"

	"github.com/and161185/bidhouse/internal/convert"
	"github.com/and161185/bidhouse/internal/fanout"
	"github.com/and161185/bidhouse/internal/metrics"
	"github.com/and161185/bidhouse/internal/model"
	"github.com/and161185/bidhouse/internal/realtime"
	"github.com/and161185/bidhouse/internal/repository"
)

const (
	DefaultInterval  = time.Minute
	DefaultBatchSize = 500
	DefaultWorkers   = 8
)

// State is the scheduler's single-flight state.
type State uint8

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Outcome of one item close attempt.
type Outcome string

const (
	OutcomeWon     Outcome = "won"
	OutcomeUnsold  Outcome = "unsold"
	OutcomeSkipped Outcome = "skipped" // already closed elsewhere
)

// Config tunes the sweep loop.
type Config struct {
	Interval  time.Duration
	BatchSize int // expired items handled per sweep
	Workers   int // items closed concurrently
}

// Report summarises one sweep.
type Report struct {
	Scanned  int
	Won      int
	Unsold   int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Closed is the number of items this sweep transitioned.
func (r Report) Closed() int { return r.Won + r.Unsold }

type Sweeper struct {
	store   repository.LedgerStore
	notify  *fanout.Fanout
	bc      realtime.Broadcaster
	metrics metrics.Recorder
	log     *zap.Logger
	cfg     Config
	now     func() time.Time

	mu    sync.Mutex
	state State
}

// New returns an idle sweeper. Zero config fields take defaults.
func New(store repository.LedgerStore, bc realtime.Broadcaster, m metrics.Recorder, log *zap.Logger, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Sweeper{
		store:   store,
		notify:  fanout.New(bc, log),
		bc:      bc,
		metrics: m,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// State reports whether a sweep is in progress.
func (s *Sweeper) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sweeper) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		return false
	}
	s.state = Running
	return true
}

func (s *Sweeper) finish() {
	s.mu.Lock()
	s.state = Idle
	s.mu.Unlock()
}

// Run sweeps on every tick until ctx is done. Ticks that arrive while a sweep
// is still running are dropped. Run waits for the in-flight sweep on exit.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	s.log.Info("sweeper started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("batch", s.cfg.BatchSize),
		zap.Int("workers", s.cfg.Workers),
	)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopping")
			return
		case <-ticker.C:
			if s.State() == Running {
				s.log.Warn("sweep skipped: previous run still in progress")
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Sweep(ctx)
			}()
		}
	}
}

// Sweep closes every expired Active item found in one batch. ran is false
// when another sweep was already in progress.
func (s *Sweeper) Sweep(ctx context.Context) (rep Report, ran bool) {
	if !s.tryStart() {
		return Report{}, false
	}
	defer s.finish()

	started := time.Now()
	now := s.now()
	defer func() {
		rep.Duration = time.Since(started)
		s.metrics.SweepFinished(rep.Duration, rep.Closed())
	}()

	ids, err := s.store.ListExpired(ctx, now, s.cfg.BatchSize)
	if err != nil {
		s.log.Error("sweep: list expired items", zap.Error(err))
		return rep, true
	}
	rep.Scanned = len(ids)
	if len(ids) == 0 {
		return rep, true
	}

	b := goroutines.NewBatch(s.cfg.Workers, goroutines.WithBatchSize(len(ids)))
	defer b.Close()
	for _, id := range ids {
		id := id
		b.Queue(func() (interface{}, error) {
			return s.closeOne(ctx, id, now)
		})
	}
	b.QueueComplete()

	for ret := range b.Results() {
		if ret.Error() != nil {
			rep.Failed++
			continue
		}
		switch ret.Value().(Outcome) {
		case OutcomeWon:
			rep.Won++
		case OutcomeUnsold:
			rep.Unsold++
		default:
			rep.Skipped++
		}
	}

	s.log.Info("sweep finished",
		zap.Int("scanned", rep.Scanned),
		zap.Int("won", rep.Won),
		zap.Int("unsold", rep.Unsold),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
	)
	return rep, true
}

// closeOne transitions a single item in its own transaction. Losing the
// compare-and-swap is reported as OutcomeSkipped, not as an error.
func (s *Sweeper) closeOne(ctx context.Context, id uuid.UUID, now time.Time) (Outcome, error) {
	var (
		closed model.Item
		done   bool
		notes  []model.Notification
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		it, ok, err := tx.CloseItem(ctx, id, now)
		if err != nil || !ok {
			return err
		}
		closed, done = it, true

		var transitions []fanout.Transition
		if it.HasBidder() {
			transitions = []fanout.Transition{
				{Kind: model.NotifyAuctionWon, Recipient: *it.HighBidderID, ItemID: it.ID, Title: it.Title, Amount: it.CurrentPrice},
				{Kind: model.NotifyItemSold, Recipient: it.SellerID, ItemID: it.ID, Title: it.Title, Amount: it.CurrentPrice},
			}
		} else {
			transitions = []fanout.Transition{
				{Kind: model.NotifyAuctionFailed, Recipient: it.SellerID, ItemID: it.ID, Title: it.Title, Amount: it.CurrentPrice},
			}
		}
		for _, t := range transitions {
			n, err := s.notify.Record(ctx, tx, t)
			if err != nil {
				return err
			}
			notes = append(notes, n)
		}
		return nil
	})
	if err != nil {
		s.log.Error("sweep: close item", zap.Stringer("item", id), zap.Error(err))
		return "", err
	}
	if !done {
		return OutcomeSkipped, nil
	}

	outcome := OutcomeUnsold
	if closed.HasBidder() {
		outcome = OutcomeWon
	}
	s.metrics.AuctionClosed(string(outcome))
	s.log.Info("auction closed",
		zap.Stringer("item", id),
		zap.String("status", string(closed.Status)),
		zap.String("price", closed.CurrentPrice.StringFixed(2)),
	)

	pushCtx := context.WithoutCancel(ctx)
	s.bc.Broadcast(pushCtx, realtime.GlobalRoom, convert.EventAuctionEnded, convert.ToAuctionEnded(id))
	s.notify.Deliver(pushCtx, notes)
	return outcome, nil
}
