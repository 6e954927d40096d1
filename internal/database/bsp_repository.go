package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/logger"
	"github.com/ridopark/chanlun-engine/internal/models"
)

// BSPRepository persists confirmed buy/sell point signals, the one record
// kind worth a durable sink: pens, segments, and MACD history are cheap to
// recompute from raw candles, but a BSP classification is the thing a
// downstream consumer actually acts on.
type BSPRepository struct {
	db     *DB
	logger zerolog.Logger

	insertStmt       *sql.Stmt
	selectRecentStmt *sql.Stmt
	selectLatestStmt *sql.Stmt
}

// NewBSPRepository creates a new repository with prepared statements.
func NewBSPRepository(db *DB) (*BSPRepository, error) {
	logger := logger.NewContextLogger("bsp_repository")

	repo := &BSPRepository{db: db, logger: logger}
	if err := repo.prepareStatements(); err != nil {
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return repo, nil
}

// Close closes all prepared statements.
func (r *BSPRepository) Close() error {
	for _, stmt := range []*sql.Stmt{r.insertStmt, r.selectRecentStmt, r.selectLatestStmt} {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				r.logger.Error().Err(err).Msg("failed to close prepared statement")
			}
		}
	}
	return nil
}

// Record is a confirmed buy/sell point tagged with the series it belongs to.
type Record struct {
	ID         int64
	Symbol     string
	Timeframe  string
	Kind       string
	Price      float64
	Idx        int
	Confidence float64
	Notes      string
	DetectedAt time.Time
	InsertedAt time.Time
}

// Insert stores a single confirmed buy/sell point.
func (r *BSPRepository) Insert(ctx context.Context, symbol, timeframe string, bsp models.BuySellPoint, detectedAt time.Time) error {
	start := time.Now()
	defer func() {
		logger.LogPerformance(r.logger, "insert_bsp", start, true)
	}()

	var id int64
	err := r.insertStmt.QueryRowContext(
		ctx,
		symbol,
		timeframe,
		bsp.Kind.String(),
		bsp.Price,
		bsp.Idx,
		bsp.Confidence,
		bsp.Notes,
		detectedAt,
		time.Now(),
	).Scan(&id)

	if err != nil {
		logger.LogError(r.logger, err, "failed to insert bsp record", map[string]interface{}{
			"symbol": symbol, "timeframe": timeframe, "kind": bsp.Kind.String(),
			"transient": IsConnectionError(err),
		})
		return fmt.Errorf("failed to insert bsp: %w", err)
	}

	r.logger.Debug().
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Str("kind", bsp.Kind.String()).
		Int64("id", id).
		Msg("bsp record inserted")

	return nil
}

// InsertBatch stores a batch of confirmed points within a single transaction.
func (r *BSPRepository) InsertBatch(ctx context.Context, symbol, timeframe string, bsps []models.BuySellPoint, detectedAt time.Time) error {
	if len(bsps) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		logger.LogPerformance(r.logger, "insert_batch_bsp", start, true)
	}()

	return r.db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		stmt := tx.Stmt(r.insertStmt)
		defer stmt.Close()

		for _, bsp := range bsps {
			var id int64
			err := stmt.QueryRowContext(
				ctx,
				symbol,
				timeframe,
				bsp.Kind.String(),
				bsp.Price,
				bsp.Idx,
				bsp.Confidence,
				bsp.Notes,
				detectedAt,
				time.Now(),
			).Scan(&id)
			if err != nil {
				if IsConnectionError(err) {
					r.logger.Warn().Err(err).Msg("bsp batch insert hit a transient connection error")
				}
				return fmt.Errorf("failed to insert bsp batch record: %w", err)
			}
		}

		r.logger.Info().
			Str("symbol", symbol).
			Int("count", len(bsps)).
			Msg("bsp batch inserted")
		return nil
	})
}

// GetRecent retrieves the most recent confirmed points for a series.
func (r *BSPRepository) GetRecent(ctx context.Context, symbol, timeframe string, limit int) ([]Record, error) {
	start := time.Now()
	defer func() {
		logger.LogPerformance(r.logger, "get_recent_bsp", start, true)
	}()

	rows, err := r.selectRecentStmt.QueryContext(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent bsp records: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var rec Record
		rec.Symbol = symbol
		rec.Timeframe = timeframe
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Price, &rec.Idx, &rec.Confidence, &rec.Notes, &rec.DetectedAt, &rec.InsertedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bsp row: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bsp rows: %w", err)
	}
	return result, nil
}

// GetLatest retrieves the most recent confirmed point for a series, if any.
func (r *BSPRepository) GetLatest(ctx context.Context, symbol, timeframe string) (*Record, error) {
	start := time.Now()
	defer func() {
		logger.LogPerformance(r.logger, "get_latest_bsp", start, true)
	}()

	var rec Record
	rec.Symbol = symbol
	rec.Timeframe = timeframe
	err := r.selectLatestStmt.QueryRowContext(ctx, symbol, timeframe).Scan(
		&rec.ID, &rec.Kind, &rec.Price, &rec.Idx, &rec.Confidence, &rec.Notes, &rec.DetectedAt, &rec.InsertedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest bsp: %w", err)
	}
	return &rec, nil
}

func (r *BSPRepository) prepareStatements() error {
	var err error

	insertSQL := `
		INSERT INTO bsp_signals (symbol, timeframe, kind, price, idx, confidence, notes, detected_at, inserted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	r.insertStmt, err = r.db.conn.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	selectRecentSQL := `
		SELECT id, kind, price, idx, confidence, notes, detected_at, inserted_at
		FROM bsp_signals
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY idx DESC
		LIMIT $3`
	r.selectRecentStmt, err = r.db.conn.Prepare(selectRecentSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare select recent statement: %w", err)
	}

	selectLatestSQL := `
		SELECT id, kind, price, idx, confidence, notes, detected_at, inserted_at
		FROM bsp_signals
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY idx DESC
		LIMIT 1`
	r.selectLatestStmt, err = r.db.conn.Prepare(selectLatestSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare select latest statement: %w", err)
	}

	r.logger.Info().Msg("all prepared statements created successfully")
	return nil
}
