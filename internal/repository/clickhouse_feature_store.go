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

// CHFeatureStore implements FeatureStore and AttributeStore backed by ClickHouse.
type CHFeatureStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHFeatureStore(db *sql.DB, database string) *CHFeatureStore {
	return &CHFeatureStore{db: db, database: database}
}

// SetLogger injects a structured logger.
func (s *CHFeatureStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHFeatureStore) featuresTable() string   { return s.database + ".price_features" }
func (s *CHFeatureStore) attributesTable() string { return s.database + ".symbol_attributes" }

func (s *CHFeatureStore) ReplaceFeatures(ctx context.Context, rows []models.FeatureRow) error {
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE "+s.featuresTable()); err != nil {
		return fmt.Errorf("truncate features: %w", err)
	}
	for lo := 0; lo < len(rows); lo += insertChunkSize {
		hi := lo + insertChunkSize
		if hi > len(rows) {
			hi = len(rows)
		}
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*10)
		for _, r := range rows[lo:hi] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.Symbol, r.Timestamp, r.Close, r.Volume,
				r.Ret1, r.SMA5, r.SMA20, r.Vol20, r.MomentumProxy, r.Sector,
			)
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, ts, close, volume, ret_1, sma_5, sma_20, vol_20, momentum_proxy, sector) VALUES %s",
			s.featuresTable(), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("features insert error", applogger.Error(err))
			}
			return fmt.Errorf("store features: %w", err)
		}
	}
	if s.l != nil {
		s.l.Info("clickhouse price_features replaced",
			applogger.Int("rows", len(rows)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHFeatureStore) GetFeatures(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.FeatureRow, error) {
	if limit <= 0 {
		limit = 10000
	}
	q := fmt.Sprintf(`
        SELECT symbol, ts, close, volume, ret_1, sma_5, sma_20, vol_20, momentum_proxy, sector
        FROM %s
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
        LIMIT ?
    `, s.featuresTable())
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("features query error", applogger.String("symbol", symbol), applogger.Error(err))
		}
		return nil, fmt.Errorf("get features: %w", err)
	}
	defer rows.Close()

	out := make([]models.FeatureRow, 0, 1024)
	for rows.Next() {
		var r models.FeatureRow
		var ret1, sma5, sma20, vol20, mom sql.NullFloat64
		var sector sql.NullString
		if err := rows.Scan(&r.Symbol, &r.Timestamp, &r.Close, &r.Volume, &ret1, &sma5, &sma20, &vol20, &mom, &sector); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		r.Ret1 = nullableFloat(ret1)
		r.SMA5 = nullableFloat(sma5)
		r.SMA20 = nullableFloat(sma20)
		r.Vol20 = nullableFloat(vol20)
		r.MomentumProxy = nullableFloat(mom)
		if sector.Valid {
			v := sector.String
			r.Sector = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSectors reads the static symbol -> sector mapping. Symbols absent from
// the attribute table are simply missing from the result map.
func (s *CHFeatureStore) GetSectors(ctx context.Context, symbols []string) (map[string]string, error) {
	q := fmt.Sprintf("SELECT symbol, sector FROM %s", s.attributesTable())
	args := []interface{}{}
	if len(symbols) > 0 {
		q += " WHERE symbol IN (" + placeholders(len(symbols)) + ")"
		for _, sym := range symbols {
			args = append(args, sym)
		}
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get sectors: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var symbol, sector string
		if err := rows.Scan(&symbol, &sector); err != nil {
			return nil, fmt.Errorf("scan sector: %w", err)
		}
		out[symbol] = sector
	}
	return out, rows.Err()
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
