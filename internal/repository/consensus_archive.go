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

var consensusColumns = []string{
	"time", "opened_at", "token", "window_id", "decision",
	"score", "contributing_sources", "signal_ids", "correlation_id",
}

// CHConsensusArchive stores every consensus result for audit and replay.
type CHConsensusArchive struct {
	db    chDB
	table string
	l     *applogger.Logger
}

var _ domrepo.ConsensusArchive = (*CHConsensusArchive)(nil)

func NewCHConsensusArchive(ch *pkgch.Client, tables pkgch.Tables, l *applogger.Logger) *CHConsensusArchive {
	return newCHConsensusArchive(ch.DB(), tables, l)
}

func newCHConsensusArchive(db chDB, tables pkgch.Tables, l *applogger.Logger) *CHConsensusArchive {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHConsensusArchive{db: db, table: tables.Qualified(tables.Consensus), l: l}
}

func (a *CHConsensusArchive) Store(ctx context.Context, r models.ConsensusResult) error {
	return a.StoreBatch(ctx, []models.ConsensusResult{r})
}

func (a *CHConsensusArchive) StoreBatch(ctx context.Context, rs []models.ConsensusResult) error {
	if len(rs) == 0 {
		return nil
	}
	err := insertRows(ctx, a.db, a.table, consensusColumns, len(rs), func(i int) []any {
		return consensusRow(rs[i])
	})
	if err != nil {
		a.l.Error("clickhouse.consensus.store_failed", applogger.Int("rows", len(rs)), applogger.Error(err))
	}
	return err
}

func consensusRow(r models.ConsensusResult) []any {
	sources := r.ContributingSources
	if sources == nil {
		sources = []string{}
	}
	ids := r.SignalIDs
	if ids == nil {
		ids = []string{}
	}
	return []any{
		r.Timestamp.UTC(), r.OpenedAt.UTC(), r.Token, r.WindowID, string(r.Decision),
		r.Score, sources, ids, r.CorrelationID,
	}
}

// Recent returns up to limit results for token since the given time, newest first.
func (a *CHConsensusArchive) Recent(ctx context.Context, token string, since time.Time, limit int) ([]models.ConsensusResult, error) {
	q := fmt.Sprintf(`
		SELECT time, opened_at, token, window_id, decision, score, contributing_sources, signal_ids, correlation_id
		FROM %s
		WHERE token = ? AND time >= ?
		ORDER BY time DESC
		LIMIT ?`, a.table)
	rows, err := a.db.QueryContext(ctx, q, token, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("recent consensus: %w", err)
	}
	defer rows.Close()

	out := make([]models.ConsensusResult, 0, limit)
	for rows.Next() {
		var (
			r        models.ConsensusResult
			decision string
			score    null.Float
		)
		if err := rows.Scan(&r.Timestamp, &r.OpenedAt, &r.Token, &r.WindowID, &decision,
			&score, &r.ContributingSources, &r.SignalIDs, &r.CorrelationID); err != nil {
			return nil, fmt.Errorf("scan consensus: %w", err)
		}
		r.Decision = models.Decision(decision)
		r.Score = score
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
