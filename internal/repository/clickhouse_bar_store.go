package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketForge/internal/domain/models"
	applogger "MarketForge/pkg/logger"
)

const insertChunkSize = 2000

// CHBarStore implements BarStore backed by ClickHouse: source daily bars plus
// the synthetic intraday table, overwritten on every run.
type CHBarStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHBarStore(db *sql.DB, database string) *CHBarStore {
	return &CHBarStore{db: db, database: database}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarStore) dailyTable() string    { return s.database + ".daily_bars" }
func (s *CHBarStore) intradayTable() string { return s.database + ".intraday_bars" }

func (s *CHBarStore) GetDailyBars(ctx context.Context, symbols []string, from, to time.Time) ([]models.DailyBar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT symbol, date, open, high, low, close, volume
        FROM %s
        WHERE date >= ? AND date <= ?
    `, s.dailyTable())
	args := []interface{}{from, to}
	if len(symbols) > 0 {
		q += " AND symbol IN (" + placeholders(len(symbols)) + ")"
		for _, sym := range symbols {
			args = append(args, sym)
		}
	}
	q += " ORDER BY symbol, date ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logErr("daily_bars query error", err)
		return nil, fmt.Errorf("get daily bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.DailyBar, 0, 1024)
	for rows.Next() {
		var b models.DailyBar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.logErr("daily_bars scan error", err)
			return nil, fmt.Errorf("scan daily bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse daily_bars read ok",
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// StoreDailyBars appends ingested source bars. Daily bars are the immutable
// input table, so this is insert-only, unlike the derived tables.
func (s *CHBarStore) StoreDailyBars(ctx context.Context, bars []models.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}
	for start := 0; start < len(bars); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(bars) {
			end = len(bars)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, b := range bars[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, date, open, high, low, close, volume) VALUES %s",
			s.dailyTable(), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store daily bars: %w", err)
		}
	}
	return nil
}

// ReplaceIntradayBars truncates the derived table and writes the new batch.
// Reruns fully overwrite prior output, never append-merge.
func (s *CHBarStore) ReplaceIntradayBars(ctx context.Context, bars []models.IntradayBar) error {
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE "+s.intradayTable()); err != nil {
		return fmt.Errorf("truncate intraday bars: %w", err)
	}
	for lo := 0; lo < len(bars); lo += insertChunkSize {
		hi := lo + insertChunkSize
		if hi > len(bars) {
			hi = len(bars)
		}
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*7)
		for _, b := range bars[lo:hi] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, b.Symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, ts, open, high, low, close, volume) VALUES %s",
			s.intradayTable(), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.logErr("intraday_bars insert error", err)
			return fmt.Errorf("store intraday bars: %w", err)
		}
	}
	if s.l != nil {
		s.l.Info("clickhouse intraday_bars replaced",
			applogger.Int("rows", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHBarStore) GetIntradayBars(ctx context.Context, symbol string, from, to time.Time) ([]models.IntradayBar, error) {
	q := fmt.Sprintf(`
        SELECT symbol, ts, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `, s.intradayTable())
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to)
	if err != nil {
		s.logErr("intraday_bars query error", err)
		return nil, fmt.Errorf("get intraday bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.IntradayBar, 0, 1024)
	for rows.Next() {
		var b models.IntradayBar
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan intraday bar: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHBarStore) logErr(msg string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.Error(err))
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
