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

// CHDatasetStore persists supervised rows and drift reports in ClickHouse.
type CHDatasetStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHDatasetStore(db *sql.DB, database string) *CHDatasetStore {
	return &CHDatasetStore{db: db, database: database}
}

// SetLogger injects a structured logger.
func (s *CHDatasetStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHDatasetStore) datasetTable() string { return s.database + ".supervised_rows" }
func (s *CHDatasetStore) driftTable() string   { return s.database + ".drift_psi" }

func (s *CHDatasetStore) ReplaceDataset(ctx context.Context, runID string, train, test []models.SupervisedRow) error {
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE "+s.datasetTable()); err != nil {
		return fmt.Errorf("truncate dataset: %w", err)
	}
	all := make([]models.SupervisedRow, 0, len(train)+len(test))
	all = append(all, train...)
	all = append(all, test...)

	for lo := 0; lo < len(all); lo += insertChunkSize {
		hi := lo + insertChunkSize
		if hi > len(all) {
			hi = len(all)
		}
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*12)
		for _, r := range all[lo:hi] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				runID, r.Symbol, r.Timestamp, r.Close, r.Volume,
				r.Ret1, r.SMA5, r.SMA20, r.Vol20, r.MomentumProxy,
				r.Target, r.Split,
			)
		}
		q := fmt.Sprintf("INSERT INTO %s (run_id, symbol, ts, close, volume, ret_1, sma_5, sma_20, vol_20, momentum_proxy, target, split) VALUES %s",
			s.datasetTable(), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("dataset insert error", applogger.Error(err))
			}
			return fmt.Errorf("store dataset: %w", err)
		}
	}
	if s.l != nil {
		s.l.Info("clickhouse supervised_rows replaced",
			applogger.String("run_id", runID),
			applogger.Int("train", len(train)),
			applogger.Int("test", len(test)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// GetDataset reads back the persisted partitions. An empty runID returns
// whatever the table currently holds (one run, by construction).
func (s *CHDatasetStore) GetDataset(ctx context.Context, runID string) (train, test []models.SupervisedRow, err error) {
	q := fmt.Sprintf("SELECT symbol, ts, close, volume, ret_1, sma_5, sma_20, vol_20, momentum_proxy, target, split FROM %s", s.datasetTable())
	args := []interface{}{}
	if runID != "" {
		q += " WHERE run_id = ?"
		args = append(args, runID)
	}
	q += " ORDER BY symbol ASC, ts ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("get dataset: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.SupervisedRow
		var ret1, sma5, sma20, vol20, mom sql.NullFloat64
		if err := rows.Scan(&r.Symbol, &r.Timestamp, &r.Close, &r.Volume,
			&ret1, &sma5, &sma20, &vol20, &mom, &r.Target, &r.Split); err != nil {
			return nil, nil, fmt.Errorf("scan supervised row: %w", err)
		}
		r.Ret1 = nullableFloat(ret1)
		r.SMA5 = nullableFloat(sma5)
		r.SMA20 = nullableFloat(sma20)
		r.Vol20 = nullableFloat(vol20)
		r.MomentumProxy = nullableFloat(mom)
		if r.Split == models.SplitTrain {
			train = append(train, r)
		} else {
			test = append(test, r)
		}
	}
	return train, test, rows.Err()
}

func (s *CHDatasetStore) ReplaceReports(ctx context.Context, runID string, reports []models.DriftReport) error {
	if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE "+s.driftTable()); err != nil {
		return fmt.Errorf("truncate drift reports: %w", err)
	}
	if len(reports) == 0 {
		return nil
	}
	values := make([]string, 0, len(reports))
	args := make([]interface{}, 0, len(reports)*4)
	for _, r := range reports {
		values = append(values, "(?, ?, ?, ?)")
		args = append(args, runID, r.Feature, r.PSI, r.CreatedAt)
	}
	q := fmt.Sprintf("INSERT INTO %s (run_id, feature, psi, created_at) VALUES %s",
		s.driftTable(), strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("drift insert error", applogger.Error(err))
		}
		return fmt.Errorf("store drift reports: %w", err)
	}
	return nil
}

func (s *CHDatasetStore) GetReports(ctx context.Context, runID string) ([]models.DriftReport, error) {
	q := fmt.Sprintf("SELECT run_id, feature, psi, created_at FROM %s", s.driftTable())
	args := []interface{}{}
	if runID != "" {
		q += " WHERE run_id = ?"
		args = append(args, runID)
	}
	q += " ORDER BY feature ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get drift reports: %w", err)
	}
	defer rows.Close()

	out := make([]models.DriftReport, 0, 16)
	for rows.Next() {
		var r models.DriftReport
		var psi sql.NullFloat64
		if err := rows.Scan(&r.RunID, &r.Feature, &psi, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan drift report: %w", err)
		}
		r.PSI = nullableFloat(psi)
		out = append(out, r)
	}
	return out, rows.Err()
}
