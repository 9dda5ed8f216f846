package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"PriceShaper/internal/domain/models"
	domrepo "PriceShaper/internal/domain/repository"
	pkgch "PriceShaper/pkg/clickhouse"
	applogger "PriceShaper/pkg/logger"
)

// CHBarStore implements BarStore backed by ClickHouse raw candle tables.
type CHBarStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, database string) *CHBarStore {
	return &CHBarStore{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

// SchemaStatements returns the DDL for the raw candle tables in database.
func SchemaStatements(database string) []string {
	const tpl = `CREATE TABLE IF NOT EXISTS %s.%s (
        bucket DateTime64(3, 'UTC'),
        symbol LowCardinality(String),
        open Float64, high Float64, low Float64, close Float64, vol Float64
    ) ENGINE = ReplacingMergeTree ORDER BY (symbol, bucket)`
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(tpl, database, "raw_bars_1s"),
		fmt.Sprintf(tpl, database, "raw_bars_1m"),
	}
}

func (s *CHBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	table, err := s.tableForTF(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, symbol, open, high, low, close, vol
        FROM %s
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, table), symbol, from.UTC(), to.UTC())
	if err != nil {
		s.logErr("clickhouse get_bars query error", table, symbol, tf, err)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows, 1024)
	if err != nil {
		s.logErr("clickhouse get_bars scan error", table, symbol, tf, err)
		return nil, err
	}
	if tf == domrepo.TF5m {
		out = Rollup(out, tf)
	}
	if s.l != nil {
		s.l.Info("clickhouse get_bars ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHBarStore) GetLatestNBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	table, err := s.tableForTF(tf)
	if err != nil {
		return nil, err
	}
	limit := n
	if tf == domrepo.TF5m {
		limit = n * 5
	}
	const qtpl = `
        SELECT bucket, symbol, open, high, low, close, vol
        FROM %s
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, table), symbol, limit)
	if err != nil {
		s.logErr("clickhouse latest_bars query error", table, symbol, tf, err)
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	tmp, err := scanBars(rows, limit)
	if err != nil {
		s.logErr("clickhouse latest_bars scan error", table, symbol, tf, err)
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if tf == domrepo.TF5m {
		tmp = Rollup(tmp, tf)
		if len(tmp) > n {
			tmp = tmp[len(tmp)-n:]
		}
	}
	if s.l != nil {
		s.l.Info("clickhouse latest_bars ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("limit", n),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func scanBars(rows *sql.Rows, capHint int) ([]models.Bar, error) {
	out := make([]models.Bar, 0, capHint)
	for rows.Next() {
		var (
			b      models.Bar
			bucket time.Time
		)
		if err := rows.Scan(&bucket, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = bucket.UnixMilli()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Rollup folds ascending finer bars into tf buckets.
func Rollup(bars []models.Bar, tf domrepo.Timeframe) []models.Bar {
	out := make([]models.Bar, 0, len(bars)/5+1)
	for _, b := range bars {
		ts := tf.BucketStart(b.Timestamp)
		if n := len(out); n > 0 && out[n-1].Timestamp == ts && out[n-1].Symbol == b.Symbol {
			cur := &out[n-1]
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		b.Timestamp = ts
		out = append(out, b)
	}
	return out
}

func (s *CHBarStore) tableForTF(tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TF1s:
		return s.database + ".raw_bars_1s", nil
	case domrepo.TF1m, domrepo.TF5m:
		// 5m is rolled up from 1m in memory
		return s.database + ".raw_bars_1m", nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
}

func (s *CHBarStore) logErr(msg, table, symbol string, tf domrepo.Timeframe, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Error(err),
	)
}

// ErrBarStoreDisabled is returned when no bar history backend is configured.
var ErrBarStoreDisabled = errors.New("bar store disabled")

// DisabledBarStore stands in for the ClickHouse store when it is turned off.
type DisabledBarStore struct{}

func (DisabledBarStore) GetBars(context.Context, string, time.Time, time.Time, domrepo.Timeframe) ([]models.Bar, error) {
	return nil, ErrBarStoreDisabled
}

func (DisabledBarStore) GetLatestNBars(context.Context, string, int, domrepo.Timeframe) ([]models.Bar, error) {
	return nil, ErrBarStoreDisabled
}
