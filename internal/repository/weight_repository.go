package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/guregu/null/v6"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	pkgch "SignalForge/pkg/clickhouse"
	applogger "SignalForge/pkg/logger"
)

var weightColumns = []string{"time", "source_id", "weight", "accuracy", "observations"}

// CHWeightRepository keeps the history of learned weights in ClickHouse.
// Every upsert appends a row; LoadLatest returns the newest row per source.
type CHWeightRepository struct {
	db     chDB
	tables pkgch.Tables
	table  string
	l      *applogger.Logger
}

var _ domrepo.WeightRepository = (*CHWeightRepository)(nil)

func NewCHWeightRepository(ch *pkgch.Client, tables pkgch.Tables, l *applogger.Logger) *CHWeightRepository {
	return newCHWeightRepository(ch.DB(), tables, l)
}

func newCHWeightRepository(db chDB, tables pkgch.Tables, l *applogger.Logger) *CHWeightRepository {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHWeightRepository{db: db, tables: tables, table: tables.Qualified(tables.Weights), l: l}
}

// Init creates the database and tables if missing.
func (r *CHWeightRepository) Init(ctx context.Context) error {
	for _, stmt := range pkgch.SchemaStatements(r.tables) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (r *CHWeightRepository) UpsertBatch(ctx context.Context, ws []models.SignalWeight) error {
	if len(ws) == 0 {
		return nil
	}
	start := time.Now()
	err := insertRows(ctx, r.db, r.table, weightColumns, len(ws), func(i int) []any {
		w := ws[i]
		return []any{w.LastUpdated.UTC(), w.SourceID, w.Weight, w.Accuracy, uint64(w.Observations)}
	})
	if err != nil {
		r.l.Error("clickhouse.weights.upsert_failed", applogger.Int("rows", len(ws)), applogger.Error(err))
		return err
	}
	r.l.Debug("clickhouse.weights.upsert_ok",
		applogger.Int("rows", len(ws)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// LoadLatest returns the newest persisted row of every source.
func (r *CHWeightRepository) LoadLatest(ctx context.Context) ([]models.SignalWeight, error) {
	q := fmt.Sprintf(`
		SELECT time, source_id, weight, accuracy, observations
		FROM %s
		ORDER BY source_id ASC, time DESC
		LIMIT 1 BY source_id`, r.table)
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		r.l.Error("clickhouse.weights.load_failed", applogger.Error(err))
		return nil, fmt.Errorf("load latest weights: %w", err)
	}
	defer rows.Close()

	out := make([]models.SignalWeight, 0, 64)
	for rows.Next() {
		var (
			w   models.SignalWeight
			acc null.Float
			obs uint64
		)
		if err := rows.Scan(&w.LastUpdated, &w.SourceID, &w.Weight, &acc, &obs); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		w.Accuracy = acc
		w.Observations = int64(obs)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	r.l.Info("clickhouse.weights.loaded", applogger.Int("sources", len(out)))
	return out, nil
}

func (r *CHWeightRepository) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
