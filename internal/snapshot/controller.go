// Package snapshot owns the served token snapshot and the refresh cycle
// that rebuilds it.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/constants"
	"github.com/aman-zulfiqar/token-aggregator/internal/metrics"
	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Publisher receives every successful snapshot, e.g. cache.RedisPublisher.
type Publisher interface {
	Publish(ctx context.Context, snap *models.Snapshot) error
}

// ControllerConfig holds configuration for the snapshot controller
type ControllerConfig struct {
	Builder Builder
	TTL     time.Duration
	// RefreshTimeout bounds one refresh pass. Zero means no bound.
	RefreshTimeout time.Duration
	// RefreshOnRead starts a background refresh when a reader finds the
	// snapshot past its TTL.
	RefreshOnRead bool
	Publisher     Publisher
	Logger        *logrus.Logger
	Now           func() time.Time
}

// Controller holds the single snapshot slot. At most one refresh runs at a
// time; readers are always served the last good snapshot.
type Controller struct {
	builder        Builder
	ttl            time.Duration
	refreshTimeout time.Duration
	refreshOnRead  bool
	publisher      Publisher
	logger         *logrus.Logger
	now            func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	state         models.CacheState
	current       *models.Snapshot
	done          chan struct{} // closed when the in-flight refresh ends
	refreshID     string
	lastRefreshAt *time.Time
	lastSuccess   bool
	lastErr       string
}

// NewController creates a controller in the Empty state.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = constants.SnapshotTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		builder:        cfg.Builder,
		ttl:            cfg.TTL,
		refreshTimeout: cfg.RefreshTimeout,
		refreshOnRead:  cfg.RefreshOnRead,
		publisher:      cfg.Publisher,
		logger:         cfg.Logger,
		now:            cfg.Now,
		ctx:            ctx,
		cancel:         cancel,
		state:          models.StateEmpty,
	}
}

// TTL returns the snapshot time-to-live.
func (c *Controller) TTL() time.Duration {
	return c.ttl
}

// GetSnapshot returns a copy of the served snapshot. An empty snapshot is
// returned before the first successful refresh.
func (c *Controller) GetSnapshot(_ context.Context) models.Snapshot {
	c.mu.Lock()
	snap := c.current.Clone()
	kick := c.refreshOnRead && c.state != models.StateRefreshing && c.ttlStateLocked() != models.TTLStateFresh
	c.mu.Unlock()

	if kick {
		c.StartRefresh()
	}
	return snap
}

// TriggerRefresh rebuilds the snapshot and returns the result. If a refresh
// is already running it returns the served snapshot at once without
// touching any source. A failed refresh returns the prior snapshot. If ctx
// ends first the served snapshot is returned and the refresh carries on.
func (c *Controller) TriggerRefresh(ctx context.Context) models.Snapshot {
	done, started := c.begin()
	if !started {
		metrics.RecordRefresh(metrics.ResultSkipped, 0)
		return c.snapshot()
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
	return c.snapshot()
}

// StartRefresh starts a background refresh and reports whether one was
// started. It is a no-op while a refresh is running.
func (c *Controller) StartRefresh() bool {
	_, started := c.begin()
	if !started {
		metrics.RecordRefresh(metrics.ResultSkipped, 0)
	}
	return started
}

// Wait blocks until the in-flight refresh, if any, has finished and returns
// the served snapshot.
func (c *Controller) Wait(ctx context.Context) (models.Snapshot, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return models.Snapshot{}, ctx.Err()
		}
	}
	return c.snapshot(), nil
}

// Status summarises the slot.
func (c *Controller) Status() models.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := models.Status{
		State:              c.state,
		TTLState:           c.ttlStateLocked(),
		LastRefreshSuccess: c.lastSuccess,
		LastError:          c.lastErr,
		SourceCounts:       models.SourceCounts{},
		RefreshID:          c.refreshID,
	}
	if c.lastRefreshAt != nil {
		t := *c.lastRefreshAt
		st.LastRefreshAt = &t
	}
	if c.current != nil {
		built := c.current.BuiltAt
		st.BuiltAt = &built
		st.RecordCount = len(c.current.Records)
		for k, v := range c.current.SourceCounts {
			st.SourceCounts[k] = v
		}
	}
	return st
}

// Close cancels any running refresh and waits for it to return.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// begin is the single-flight gate. The state check and the switch to
// Refreshing happen in one critical section before any source is called.
func (c *Controller) begin() (<-chan struct{}, bool) {
	c.mu.Lock()
	if c.state == models.StateRefreshing {
		c.mu.Unlock()
		return nil, false
	}
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return nil, false
	}
	id := uuid.NewString()
	done := make(chan struct{})
	c.state = models.StateRefreshing
	c.done = done
	c.refreshID = id
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(id, done)
	return done, true
}

func (c *Controller) run(id string, done chan struct{}) {
	defer c.wg.Done()
	defer close(done)

	log := c.logger.WithField("refresh_id", id)
	start := time.Now()
	log.Info("refresh started")

	snap, err := c.build(id)

	c.mu.Lock()
	now := c.now()
	c.lastRefreshAt = &now
	if err != nil {
		c.lastSuccess = false
		c.lastErr = err.Error()
	} else {
		snap.BuiltAt = now
		snap.RefreshID = id
		snap.Success = true
		c.current = &snap
		c.lastSuccess = true
		c.lastErr = ""
	}
	if c.current != nil {
		c.state = models.StateServing
	} else {
		c.state = models.StateEmpty
	}
	c.done = nil
	c.mu.Unlock()

	took := time.Since(start)
	if err != nil {
		metrics.RecordRefresh(metrics.ResultFailure, took)
		log.WithError(err).WithField("took", took.Round(time.Millisecond)).Error("refresh failed, keeping previous snapshot")
		return
	}

	metrics.RecordRefresh(metrics.ResultSuccess, took)
	metrics.SetSnapshotRecords(len(snap.Records))
	log.WithFields(logrus.Fields{
		"records":       len(snap.Records),
		"source_counts": snap.SourceCounts,
		"took":          took.Round(time.Millisecond),
	}).Info("refresh completed")

	c.publish(&snap)
}

// build runs the builder, turning a panic into an error.
func (c *Controller) build(id string) (snap models.Snapshot, err error) {
	ctx := c.ctx
	if c.refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.refreshTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh %s panicked: %v", id, r)
		}
	}()
	return c.builder.Build(ctx)
}

func (c *Controller) publish(snap *models.Snapshot) {
	if c.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	if err := c.publisher.Publish(ctx, snap); err != nil {
		c.logger.WithError(err).WithField("refresh_id", snap.RefreshID).Warn("failed to publish snapshot")
	}
}

func (c *Controller) snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

func (c *Controller) ttlStateLocked() models.TTLState {
	if c.current == nil {
		return models.TTLStateEmpty
	}
	if c.now().Sub(c.current.BuiltAt) < c.ttl {
		return models.TTLStateFresh
	}
	return models.TTLStateStale
}
