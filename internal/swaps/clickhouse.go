package swaps

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

var tableRe = regexp.MustCompile(`^[a-zA-Z0-9_.]{1,128}$`)

// ClickHouseConfig holds connection settings for the ClickHouse swap feed.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
	Logger   *logrus.Logger
}

// ClickHouseSource pages through a trades table in ClickHouse.
type ClickHouseSource struct {
	conn  driver.Conn
	table string
}

func NewClickHouseSource(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseSource, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if !tableRe.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid swap table name %q", cfg.Table)
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":  cfg.Addr,
		"table": cfg.Table,
	}).Info("connected to ClickHouse swap feed")

	return &ClickHouseSource{conn: conn, table: cfg.Table}, nil
}

func (s *ClickHouseSource) query() string {
	return fmt.Sprintf(`
		SELECT
			token_sold_address, token_bought_address,
			token_sold_symbol, token_bought_symbol,
			amount_usd, block_time, token_pair, tx_hash, project
		FROM %s
		ORDER BY block_time DESC, tx_hash
		LIMIT ? OFFSET ?
	`, s.table)
}

// FetchPage returns up to limit rows starting at offset, newest first.
func (s *ClickHouseSource) FetchPage(ctx context.Context, offset, limit int) ([]Row, error) {
	rows, err := s.conn.Query(ctx, s.query(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query swaps: %w", err)
	}
	defer rows.Close()

	out := make([]Row, 0, limit)
	for rows.Next() {
		var (
			r         Row
			amountUSD *float64
			blockTime time.Time
		)
		if err := rows.Scan(
			&r.TokenSoldAddress, &r.TokenBoughtAddress,
			&r.TokenSoldSymbol, &r.TokenBoughtSymbol,
			&amountUSD, &blockTime, &r.TokenPair, &r.TxHash, &r.Project,
		); err != nil {
			return nil, fmt.Errorf("scan swap row: %w", err)
		}
		r.AmountUSD = amountUSD
		if !blockTime.IsZero() {
			r.BlockTime = blockTime.UTC().Format(time.RFC3339Nano)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap rows: %w", err)
	}
	return out, nil
}

// Close closes the ClickHouse connection.
func (s *ClickHouseSource) Close() error {
	return s.conn.Close()
}
