package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"statarb/internal/models"
)

// Ошибки репозитория пар
var (
	ErrPairNotFound = errors.New("pair not found")
	ErrPairExists   = errors.New("pair already exists")
)

// PairRepository - работа с таблицей pairs (калибровки торговых пар)
type PairRepository struct {
	db *sql.DB
}

// NewPairRepository создает новый экземпляр репозитория
func NewPairRepository(db *sql.DB) *PairRepository {
	return &PairRepository{db: db}
}

// Create создает новую откалиброванную пару
func (r *PairRepository) Create(pair *models.PairConfig) error {
	query := `
		INSERT INTO pairs (leg_y, leg_x, sector, beta, intercept, sigma, adf_value, quality, lot_size_y, lot_size_x, token_y, token_x, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	now := time.Now()
	pair.CreatedAt = now
	pair.UpdatedAt = now

	// Значения по умолчанию
	if pair.Status == "" {
		pair.Status = models.PairStatusPaused
	}

	err := r.db.QueryRow(
		query,
		pair.LegY,
		pair.LegX,
		pair.Sector,
		pair.Beta,
		pair.Intercept,
		pair.Sigma,
		pair.ADFValue,
		pair.Quality,
		pair.LotSizeY,
		pair.LotSizeX,
		pair.TokenY,
		pair.TokenX,
		pair.Status,
		pair.CreatedAt,
		pair.UpdatedAt,
	).Scan(&pair.ID)

	if err != nil {
		if isPairUniqueViolation(err) {
			return ErrPairExists
		}
		return err
	}

	return nil
}

// GetByID возвращает пару по ID
func (r *PairRepository) GetByID(id int) (*models.PairConfig, error) {
	query := `
		SELECT id, leg_y, leg_x, sector, beta, intercept, sigma, adf_value, quality, lot_size_y, lot_size_x, token_y, token_x, status, created_at, updated_at
		FROM pairs
		WHERE id = $1`

	pair := &models.PairConfig{}
	err := r.db.QueryRow(query, id).Scan(
		&pair.ID,
		&pair.LegY,
		&pair.LegX,
		&pair.Sector,
		&pair.Beta,
		&pair.Intercept,
		&pair.Sigma,
		&pair.ADFValue,
		&pair.Quality,
		&pair.LotSizeY,
		&pair.LotSizeX,
		&pair.TokenY,
		&pair.TokenX,
		&pair.Status,
		&pair.CreatedAt,
		&pair.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}

	return pair, nil
}

// GetByLegs возвращает пару по паре символов Y/X
func (r *PairRepository) GetByLegs(legY, legX string) (*models.PairConfig, error) {
	query := `
		SELECT id, leg_y, leg_x, sector, beta, intercept, sigma, adf_value, quality, lot_size_y, lot_size_x, token_y, token_x, status, created_at, updated_at
		FROM pairs
		WHERE leg_y = $1 AND leg_x = $2`

	pair := &models.PairConfig{}
	err := r.db.QueryRow(query, legY, legX).Scan(
		&pair.ID,
		&pair.LegY,
		&pair.LegX,
		&pair.Sector,
		&pair.Beta,
		&pair.Intercept,
		&pair.Sigma,
		&pair.ADFValue,
		&pair.Quality,
		&pair.LotSizeY,
		&pair.LotSizeX,
		&pair.TokenY,
		&pair.TokenX,
		&pair.Status,
		&pair.CreatedAt,
		&pair.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}

	return pair, nil
}

// GetAll возвращает все пары
func (r *PairRepository) GetAll() ([]*models.PairConfig, error) {
	query := `
		SELECT id, leg_y, leg_x, sector, beta, intercept, sigma, adf_value, quality, lot_size_y, lot_size_x, token_y, token_x, status, created_at, updated_at
		FROM pairs
		ORDER BY created_at DESC`

	return r.queryPairs(query)
}

// GetActive возвращает только активные пары
func (r *PairRepository) GetActive() ([]*models.PairConfig, error) {
	query := `
		SELECT id, leg_y, leg_x, sector, beta, intercept, sigma, adf_value, quality, lot_size_y, lot_size_x, token_y, token_x, status, created_at, updated_at
		FROM pairs
		WHERE status = $1
		ORDER BY created_at DESC`

	return r.queryPairs(query, models.PairStatusActive)
}

// UpdateCalibration обновляет параметры регрессии после перекалибровки
func (r *PairRepository) UpdateCalibration(id int, beta, intercept, sigma, adfValue float64, quality string) error {
	query := `
		UPDATE pairs
		SET beta = $1, intercept = $2, sigma = $3, adf_value = $4, quality = $5, updated_at = $6
		WHERE id = $7`

	result, err := r.db.Exec(query, beta, intercept, sigma, adfValue, quality, time.Now(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPairNotFound
	}

	return nil
}

// UpdateStatus переключает статус пары (active/paused)
func (r *PairRepository) UpdateStatus(id int, status string) error {
	query := `
		UPDATE pairs
		SET status = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, status, time.Now(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPairNotFound
	}

	return nil
}

// Delete удаляет пару
func (r *PairRepository) Delete(id int) error {
	result, err := r.db.Exec(`DELETE FROM pairs WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPairNotFound
	}

	return nil
}

// queryPairs выполняет запрос со стандартным набором колонок
func (r *PairRepository) queryPairs(query string, args ...interface{}) ([]*models.PairConfig, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []*models.PairConfig
	for rows.Next() {
		pair := &models.PairConfig{}
		err := rows.Scan(
			&pair.ID,
			&pair.LegY,
			&pair.LegX,
			&pair.Sector,
			&pair.Beta,
			&pair.Intercept,
			&pair.Sigma,
			&pair.ADFValue,
			&pair.Quality,
			&pair.LotSizeY,
			&pair.LotSizeX,
			&pair.TokenY,
			&pair.TokenX,
			&pair.Status,
			&pair.CreatedAt,
			&pair.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return pairs, nil
}

// isPairUniqueViolation проверяет, является ли ошибка нарушением UNIQUE constraint
func isPairUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}
