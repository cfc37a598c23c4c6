package snapshot

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeBuilder returns queued results in order; the last one repeats.
type fakeBuilder struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}

	mu      sync.Mutex
	results []buildResult
}

type buildResult struct {
	snap  models.Snapshot
	err   error
	panic any
}

func (b *fakeBuilder) Build(ctx context.Context) (models.Snapshot, error) {
	n := int(b.calls.Add(1)) - 1
	if b.entered != nil {
		b.entered <- struct{}{}
	}
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return models.Snapshot{}, ctx.Err()
		}
	}

	b.mu.Lock()
	r := b.results[min(n, len(b.results)-1)]
	b.mu.Unlock()

	if r.panic != nil {
		panic(r.panic)
	}
	return r.snap, r.err
}

func okResult(addrs ...string) buildResult {
	recs := make([]models.TokenRecord, len(addrs))
	counts := models.SourceCounts{}
	for i, a := range addrs {
		recs[i] = models.TokenRecord{Address: a, Attribution: models.AttributionSwapOnly}
		counts[models.AttributionSwapOnly]++
	}
	return buildResult{snap: models.Snapshot{Records: recs, Success: true, SourceCounts: counts}}
}

func errResult(msg string) buildResult {
	return buildResult{err: errors.New(msg)}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []models.Snapshot
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, snap *models.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, *snap)
	return p.err
}

func (p *recordingPublisher) published() []models.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Snapshot(nil), p.snaps...)
}
