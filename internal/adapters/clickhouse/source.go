// Package clickhouse loads historical market snapshots from a ClickHouse table.
package clickhouse

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
)

// Config holds connection settings.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

// rowScanner is the subset of driver.Rows used by the source.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type queryFunc func(ctx context.Context, query string, args ...any) (rowScanner, error)

// Source implements ports.SnapshotSource. Numeric columns are Nullable(Float64);
// a NULL is reported as a missing field.
type Source struct {
	conn   driver.Conn
	query  queryFunc
	table  string
	logger ports.Logger
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Open connects to ClickHouse and verifies the connection with a ping.
func Open(ctx context.Context, cfg Config, logger ports.Logger) (*Source, error) {
	if !identifier.MatchString(cfg.Table) {
		return nil, fmt.Errorf("%w: invalid table name %q", ports.ErrConfigurationError, cfg.Table)
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open clickhouse at %s: %w", ports.ErrDBConnection, cfg.Addr, err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: failed to ping clickhouse at %s: %w", ports.ErrDBConnection, cfg.Addr, err)
	}
	logger.Info(ctx, "ClickHouse connection established", map[string]interface{}{"addr": cfg.Addr, "table": cfg.Table})

	s := newSource(cfg.Table, logger, func(ctx context.Context, q string, args ...any) (rowScanner, error) {
		return conn.Query(ctx, q, args...)
	})
	s.conn = conn
	return s, nil
}

func newSource(table string, logger ports.Logger, query queryFunc) *Source {
	return &Source{query: query, table: table, logger: logger}
}

// Close closes the connection.
func (s *Source) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// LoadSnapshots returns the snapshots for symbol within [from, to] ordered by
// time. A zero bound is left open.
func (s *Source) LoadSnapshots(ctx context.Context, symbol string, from, to time.Time) ([]domain.MarketSnapshot, error) {
	q := `
SELECT ts, price,
       call_delta, call_gamma, call_theta, call_vega,
       put_delta, put_gamma, put_theta, put_vega,
       rsi, ma, vix
FROM ` + s.table + `
WHERE symbol = ? AND ts >= ? AND ts <= ?
ORDER BY ts`

	if from.IsZero() {
		from = time.Unix(0, 0)
	}
	if to.IsZero() {
		to = time.Date(2299, 12, 31, 0, 0, 0, 0, time.UTC)
	}

	rows, err := s.query(ctx, q, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot query for %s: %w", ports.ErrQueryFailed, symbol, err)
	}
	defer rows.Close()

	var out []domain.MarketSnapshot
	for n := 1; rows.Next(); n++ {
		var ts time.Time
		f := domain.SnapshotFields{Symbol: symbol, Timestamp: &ts}
		if err := rows.Scan(&ts, &f.Price,
			&f.CallDelta, &f.CallGamma, &f.CallTheta, &f.CallVega,
			&f.PutDelta, &f.PutGamma, &f.PutTheta, &f.PutVega,
			&f.RSI, &f.MA, &f.VIX); err != nil {
			return nil, fmt.Errorf("%w: scan row %d: %w", ports.ErrQueryFailed, n, err)
		}
		snap, err := f.Build()
		if err != nil {
			return nil, fmt.Errorf("row %d at %s: %w", n, ts.Format(time.RFC3339), err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate snapshot rows: %w", ports.ErrQueryFailed, err)
	}

	s.logger.Debug(ctx, "Loaded snapshots from ClickHouse", map[string]interface{}{"symbol": symbol, "rows": len(out)})
	return out, nil
}
