// Package metrics reports auction counters and timings to a DogStatsD agent.
package metrics

import (
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"go.uber.org/zap"
)

// rate 1 means every sample is sent.
const rate = 1

// Recorder is the set of measurements the core emits.
type Recorder interface {
	BidAccepted()
	BidRejected(reason string)
	AuctionClosed(outcome string)
	SweepFinished(d time.Duration, closed int)
	PublishFailed()
}

// statsClient is the subset of the statsd client we use; *statsd.Client and
// *statsd.NoOpClient both implement it.
type statsClient interface {
	Incr(name string, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
}

// Statsd implements Recorder on top of DogStatsD.
type Statsd struct {
	cli statsClient
	log *zap.Logger
}

var _ Recorder = (*Statsd)(nil)

// New connects to the agent at addr. Metric names are prefixed with namespace.
func New(addr, namespace string, tags []string, log *zap.Logger) (*Statsd, error) {
	c, err := statsd.New(addr, statsd.WithNamespace(namespace), statsd.WithTags(tags))
	if err != nil {
		return nil, err
	}
	return &Statsd{cli: c, log: log}, nil
}

// Nop returns a recorder that drops everything.
func Nop() *Statsd {
	return &Statsd{cli: &statsd.NoOpClient{}, log: zap.NewNop()}
}

func (s *Statsd) BidAccepted() {
	s.report("bids.accepted", s.cli.Incr("bids.accepted", nil, rate))
}

func (s *Statsd) BidRejected(reason string) {
	s.report("bids.rejected", s.cli.Incr("bids.rejected", []string{"reason:" + reason}, rate))
}

func (s *Statsd) AuctionClosed(outcome string) {
	s.report("auctions.closed", s.cli.Incr("auctions.closed", []string{"outcome:" + outcome}, rate))
}

func (s *Statsd) SweepFinished(d time.Duration, closed int) {
	s.report("sweep.duration", s.cli.Timing("sweep.duration", d, nil, rate))
	s.report("sweep.closed", s.cli.Count("sweep.closed", int64(closed), nil, rate))
}

func (s *Statsd) PublishFailed() {
	s.report("realtime.publish_failed", s.cli.Incr("realtime.publish_failed", nil, rate))
}

// Close flushes buffered metrics.
func (s *Statsd) Close() error {
	if c, ok := s.cli.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (s *Statsd) report(key string, err error) {
	if err != nil {
		s.log.Debug("metric dropped", zap.String("key", key), zap.Error(err))
	}
}
