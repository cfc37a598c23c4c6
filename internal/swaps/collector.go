package swaps

import (
	"context"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/constants"
	"github.com/aman-zulfiqar/token-aggregator/internal/metrics"
	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/aman-zulfiqar/token-aggregator/internal/retry"
	"github.com/sirupsen/logrus"
)

// CollectorConfig holds configuration for the swap collector
type CollectorConfig struct {
	Source   PageSource
	PageSize int
	// Retry is applied to every page fetch. Use retry.Fixed.
	Retry  retry.Loop
	Logger *logrus.Logger
}

// Collector drains a paginated swap feed.
type Collector struct {
	source   PageSource
	pageSize int
	retry    retry.Loop
	logger   *logrus.Logger
}

// NewCollector creates a swap collector
func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = constants.SwapPageSize
	}
	return &Collector{
		source:   cfg.Source,
		pageSize: cfg.PageSize,
		retry:    cfg.Retry,
		logger:   cfg.Logger,
	}
}

// CollectAll pages through the feed from offset 0 and returns every valid
// event. Collection stops after two consecutive empty pages, after a short
// page, or once maxEvents events are collected (maxEvents <= 0 means no
// limit). Only a done context makes it return an error.
func (c *Collector) CollectAll(ctx context.Context, maxEvents int) ([]models.SwapEvent, error) {
	start := time.Now()

	var (
		events  []models.SwapEvent
		offset  int
		pages   int
		empty   int
		dropped int
	)

	for {
		rows, err := c.fetchPage(ctx, offset)
		if err != nil {
			return events, err
		}
		pages++

		if len(rows) == 0 {
			empty++
			metrics.RecordSwapPage(metrics.PageEmpty)
			if empty >= constants.SwapEmptyPagesLimit {
				break
			}
			continue
		}
		empty = 0
		metrics.RecordSwapPage(metrics.PageOK)

		for _, r := range rows {
			ev, err := r.Event()
			if err != nil {
				dropped++
				continue
			}
			events = append(events, ev)
		}
		offset += len(rows)

		if maxEvents > 0 && len(events) >= maxEvents {
			events = events[:maxEvents]
			break
		}
		if len(rows) < c.pageSize {
			break
		}
	}

	metrics.AddDroppedRows(dropped)
	c.logger.WithFields(logrus.Fields{
		"events":  len(events),
		"pages":   pages,
		"dropped": dropped,
		"took":    time.Since(start).Round(time.Millisecond),
	}).Info("collected swap events")

	return events, nil
}

// fetchPage fetches one page with fixed-delay retries. A page that keeps
// failing comes back empty.
func (c *Collector) fetchPage(ctx context.Context, offset int) ([]Row, error) {
	var rows []Row
	loop := c.retry.WithNotify(func(n int, d time.Duration, err error) {
		metrics.IncrementRetries("swaps")
		c.logger.WithFields(logrus.Fields{
			"offset": offset,
			"retry":  n,
			"delay":  d,
		}).WithError(err).Warn("swap page fetch failed, retrying")
	})
	_, err := loop.Run(ctx, func(ctx context.Context) error {
		var err error
		rows, err = c.source.FetchPage(ctx, offset, c.pageSize)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.RecordSwapPage(metrics.PageFailed)
		c.logger.WithError(err).WithField("offset", offset).Error("swap page failed, treating as empty")
		return nil, nil
	}
	return rows, nil
}
