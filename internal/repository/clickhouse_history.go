package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TradeCouncil/internal/domain/models"
	drepo "TradeCouncil/internal/domain/repository"
	pkgch "TradeCouncil/pkg/clickhouse"
)

const (
	defaultHistoryTable = "recommendations"

	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// ClickHouseHistory persists every published recommendation to ClickHouse.
// The table is append-only; the latest-per-asset view lives in the
// RecommendationStore, this layer answers "what did the engine say before".
type ClickHouseHistory struct {
	client *pkgch.Client
	table  string
}

// NewClickHouseHistory creates a history store on top of an existing
// ClickHouse client. The client's pool lifecycle stays with the caller.
func NewClickHouseHistory(client *pkgch.Client, table string) *ClickHouseHistory {
	if table == "" {
		table = defaultHistoryTable
	}
	return &ClickHouseHistory{client: client, table: table}
}

var _ drepo.HistoryStore = (*ClickHouseHistory)(nil)

// Init creates the recommendations table if it does not exist.
func (h *ClickHouseHistory) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id String,
		asset String,
		timeframe String,
		signal String,
		confidence Float64,
		has_consensus UInt8,
		no_consensus UInt8,
		current_price Float64,
		degraded_price UInt8,
		stop_loss Nullable(Float64),
		take_profit Nullable(Float64),
		risk_reward Nullable(Float64),
		buy_signals UInt32,
		sell_signals UInt32,
		hold_signals UInt32,
		total_signals UInt32,
		created_at DateTime
	) ENGINE = MergeTree()
	ORDER BY (asset, created_at)`, h.table)

	return h.client.InitSchema(ctx, []string{ddl})
}

// Insert appends one recommendation row.
func (h *ClickHouseHistory) Insert(ctx context.Context, rec *models.Recommendation) error {
	if rec == nil || rec.Asset == "" {
		return models.ErrInvalidInput
	}

	q := fmt.Sprintf(`INSERT INTO %s (
		id, asset, timeframe, signal, confidence,
		has_consensus, no_consensus, current_price, degraded_price,
		stop_loss, take_profit, risk_reward,
		buy_signals, sell_signals, hold_signals, total_signals,
		created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, h.table)

	_, err := h.client.DB().ExecContext(ctx, q,
		rec.ID,
		rec.Asset,
		rec.Timeframe,
		string(rec.Signal),
		rec.Confidence,
		boolToUInt8(rec.HasConsensus),
		boolToUInt8(rec.NoConsensus),
		rec.CurrentPrice,
		boolToUInt8(rec.DegradedPrice),
		nullFloat(rec.StopLoss),
		nullFloat(rec.TakeProfit),
		nullFloat(rec.RiskReward),
		uint32(rec.BuySignals),
		uint32(rec.SellSignals),
		uint32(rec.HoldSignals),
		uint32(rec.TotalSignals),
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("history insert %s: %w", rec.Asset, err)
	}
	return nil
}

// Recent returns up to limit rows for asset, newest first. A non-positive
// limit falls back to the default page size.
func (h *ClickHouseHistory) Recent(ctx context.Context, asset string, limit int) ([]*models.Recommendation, error) {
	if asset == "" {
		return nil, models.ErrInvalidInput
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	q := fmt.Sprintf(`SELECT
		id, asset, timeframe, signal, confidence,
		has_consensus, no_consensus, current_price, degraded_price,
		stop_loss, take_profit, risk_reward,
		buy_signals, sell_signals, hold_signals, total_signals,
		created_at
	FROM %s
	WHERE asset = ?
	ORDER BY created_at DESC
	LIMIT ?`, h.table)

	rows, err := h.client.DB().QueryContext(ctx, q, asset, limit)
	if err != nil {
		return nil, fmt.Errorf("history query %s: %w", asset, err)
	}
	defer rows.Close()

	var out []*models.Recommendation
	for rows.Next() {
		var (
			rec        models.Recommendation
			signal     string
			hasCons    uint8
			noCons     uint8
			degraded   uint8
			stopLoss   sql.NullFloat64
			takeProfit sql.NullFloat64
			riskReward sql.NullFloat64
			createdAt  time.Time
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Asset,
			&rec.Timeframe,
			&signal,
			&rec.Confidence,
			&hasCons,
			&noCons,
			&rec.CurrentPrice,
			&degraded,
			&stopLoss,
			&takeProfit,
			&riskReward,
			&rec.BuySignals,
			&rec.SellSignals,
			&rec.HoldSignals,
			&rec.TotalSignals,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("history scan %s: %w", asset, err)
		}

		rec.Signal = models.Signal(signal)
		rec.HasConsensus = hasCons != 0
		rec.NoConsensus = noCons != 0
		rec.DegradedPrice = degraded != 0
		rec.StopLoss = floatPtr(stopLoss)
		rec.TakeProfit = floatPtr(takeProfit)
		rec.RiskReward = floatPtr(riskReward)
		rec.Timestamp = createdAt

		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Health pings the underlying pool.
func (h *ClickHouseHistory) Health(ctx context.Context) error {
	return h.client.Health(ctx)
}

func (h *ClickHouseHistory) Close() error {
	return nil // pool is owned by pkg/clickhouse
}

// DisabledHistory is the history store used when ClickHouse is switched off
// in configuration. Every call reports the store as disabled so handlers
// can answer with an explicit status instead of a generic failure.
type DisabledHistory struct{}

var _ drepo.HistoryStore = DisabledHistory{}

func (DisabledHistory) Init(ctx context.Context) error { return nil }

func (DisabledHistory) Insert(ctx context.Context, rec *models.Recommendation) error {
	return models.ErrHistoryDisabled
}

func (DisabledHistory) Recent(ctx context.Context, asset string, limit int) ([]*models.Recommendation, error) {
	return nil, models.ErrHistoryDisabled
}

func (DisabledHistory) Health(ctx context.Context) error { return models.ErrHistoryDisabled }

func (DisabledHistory) Close() error { return nil }

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
