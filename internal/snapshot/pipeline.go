package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/aggregator"
	"github.com/aman-zulfiqar/token-aggregator/internal/metadata"
	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/aman-zulfiqar/token-aggregator/internal/swaps"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Builder produces one complete snapshot.
type Builder interface {
	Build(ctx context.Context) (models.Snapshot, error)
}

type PriceFetcher interface {
	FetchPrices(ctx context.Context, addresses []string) (map[string]models.PriceInfo, error)
}

type SwapCollector interface {
	CollectAll(ctx context.Context, maxEvents int) ([]models.SwapEvent, error)
}

// PipelineConfig holds configuration for the refresh pipeline
type PipelineConfig struct {
	Metadata metadata.Source
	Prices   PriceFetcher
	// Swaps may be nil when no swap feed is configured.
	Swaps     SwapCollector
	Engine    *aggregator.Engine
	MaxEvents int
	Logger    *logrus.Logger
}

// Pipeline runs one refresh pass: metadata, then prices and swaps
// concurrently, then aggregation.
type Pipeline struct {
	metadata  metadata.Source
	prices    PriceFetcher
	swaps     SwapCollector
	engine    *aggregator.Engine
	maxEvents int
	logger    *logrus.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Engine == nil {
		cfg.Engine = aggregator.NewEngine(true)
	}
	return &Pipeline{
		metadata:  cfg.Metadata,
		prices:    cfg.Prices,
		swaps:     cfg.Swaps,
		engine:    cfg.Engine,
		maxEvents: cfg.MaxEvents,
		logger:    cfg.Logger,
	}
}

// Build returns a successful snapshot or an error. BuiltAt and RefreshID
// are left for the caller to stamp.
func (p *Pipeline) Build(ctx context.Context) (models.Snapshot, error) {
	addrs, err := p.metadata.ListAllAddresses(ctx)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("list addresses: %w", err)
	}
	meta, err := p.metadata.LoadMetadata(ctx)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("load metadata: %w", err)
	}

	var (
		prices map[string]models.PriceInfo
		events []models.SwapEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prices, err = p.prices.FetchPrices(gctx, addrs)
		if err != nil {
			return fmt.Errorf("fetch prices: %w", err)
		}
		return nil
	})
	if p.swaps != nil {
		g.Go(func() error {
			var err error
			events, err = p.swaps.CollectAll(gctx, p.maxEvents)
			if err != nil {
				return fmt.Errorf("collect swaps: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Snapshot{}, err
	}

	start := time.Now()
	records, counts := p.engine.Aggregate(addrs, meta, swaps.Aggregate(events), prices)

	p.logger.WithFields(logrus.Fields{
		"addresses": len(addrs),
		"records":   len(records),
		"events":    len(events),
		"took":      time.Since(start).Round(time.Millisecond),
	}).Debug("aggregated records")

	return models.Snapshot{
		Records:      records,
		Success:      true,
		SourceCounts: counts,
	}, nil
}
