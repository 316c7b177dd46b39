package repository

import (
	"context"
	"database/sql"

	"statarb/internal/models"
)

// TradeRepository - append-only журнал сделок (таблица trades).
// Строки журнала не обновляются и не удаляются.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Record вставляет одну строку журнала
func (r *TradeRepository) Record(ctx context.Context, trade models.TradeRecord) error {
	query := `
		INSERT INTO trades (ts, symbol, side, qty, price, strategy, mode, order_tag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	return r.db.QueryRowContext(
		ctx,
		query,
		trade.Timestamp,
		trade.Symbol,
		trade.Side,
		trade.Quantity,
		trade.Price,
		trade.Strategy,
		trade.Mode,
		trade.OrderTag,
	).Scan(&trade.ID)
}

// ListRecent возвращает последние limit строк журнала
func (r *TradeRepository) ListRecent(limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, ts, symbol, side, qty, price, strategy, mode, order_tag
		FROM trades
		ORDER BY ts DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.TradeRecord
	for rows.Next() {
		trade := &models.TradeRecord{}
		err := rows.Scan(
			&trade.ID,
			&trade.Timestamp,
			&trade.Symbol,
			&trade.Side,
			&trade.Quantity,
			&trade.Price,
			&trade.Strategy,
			&trade.Mode,
			&trade.OrderTag,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}

// ListBySymbol возвращает сделки одной бумаги за день
func (r *TradeRepository) ListBySymbol(symbol string, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, ts, symbol, side, qty, price, strategy, mode, order_tag
		FROM trades
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT $2`

	rows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.TradeRecord
	for rows.Next() {
		trade := &models.TradeRecord{}
		err := rows.Scan(
			&trade.ID,
			&trade.Timestamp,
			&trade.Symbol,
			&trade.Side,
			&trade.Quantity,
			&trade.Price,
			&trade.Strategy,
			&trade.Mode,
			&trade.OrderTag,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}
