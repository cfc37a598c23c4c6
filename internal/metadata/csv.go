package metadata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/sirupsen/logrus"
)

var ErrMissingAddressColumn = errors.New("metadata csv has no address column")

// CSVSource reads tokens from a CSV file with a header row naming the
// columns address, name, symbol and decimals (any order, case-insensitive).
// Only address is required. The first successful parse is memoized; a
// failed one is retried on the next call.
type CSVSource struct {
	path   string
	logger *logrus.Logger

	mu     sync.Mutex
	loaded bool
	meta   map[string]models.TokenMetadata
	order  []string
}

func NewCSVSource(path string, logger *logrus.Logger) *CSVSource {
	if logger == nil {
		logger = logrus.New()
	}
	return &CSVSource{path: path, logger: logger}
}

func (s *CSVSource) LoadMetadata(ctx context.Context) (map[string]models.TokenMetadata, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]models.TokenMetadata, len(s.meta))
	for k, v := range s.meta {
		out[k] = v
	}
	return out, nil
}

// ListAllAddresses returns normalized addresses in file order, without
// duplicates.
func (s *CSVSource) ListAllAddresses(ctx context.Context) ([]string, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}

func (s *CSVSource) load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open metadata: %w", err)
	}
	defer f.Close()

	meta, order, err := parseCSV(f, s.logger)
	if err != nil {
		return err
	}
	s.meta, s.order, s.loaded = meta, order, true

	s.logger.WithFields(logrus.Fields{
		"path":   s.path,
		"tokens": len(order),
	}).Info("loaded token metadata")
	return nil
}

func parseCSV(r io.Reader, logger *logrus.Logger) (map[string]models.TokenMetadata, []string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]models.TokenMetadata{}, nil, nil
		}
		return nil, nil, fmt.Errorf("read metadata header: %w", err)
	}

	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	addrCol, ok := cols["address"]
	if !ok {
		return nil, nil, ErrMissingAddressColumn
	}
	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	meta := map[string]models.TokenMetadata{}
	var order []string
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("read metadata line %d: %w", line, err)
		}
		if addrCol >= len(rec) {
			continue
		}
		addr := models.NormalizeAddress(rec[addrCol])
		if addr == "" {
			continue
		}
		if _, dup := meta[addr]; dup {
			continue
		}

		var decimals int
		if d := field(rec, "decimals"); d != "" {
			n, err := strconv.Atoi(d)
			if err != nil || n < 0 {
				logger.WithFields(logrus.Fields{"line": line, "decimals": d}).Warn("invalid decimals, using 0")
			} else {
				decimals = n
			}
		}

		meta[addr] = models.TokenMetadata{
			Address:  addr,
			Name:     field(rec, "name"),
			Symbol:   field(rec, "symbol"),
			Decimals: decimals,
		}
		order = append(order, addr)
	}
	return meta, order, nil
}
