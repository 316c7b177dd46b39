package repository

import (
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"statarb/internal/models"
)

// ============================================================
// PairRepository Tests
// ============================================================

func pairColumns() []string {
	return []string{"id", "leg_y", "leg_x", "sector", "beta", "intercept", "sigma", "adf_value", "quality", "lot_size_y", "lot_size_x", "token_y", "token_x", "status", "created_at", "updated_at"}
}

func samplePairRow(id int) []driver.Value {
	now := time.Now()
	return []driver.Value{id, "HDFCBANK", "ICICIBANK", "BANKING", 1.42, 12.5, 8.3, 0.012, models.QualityExcellent, 550, 700, uint32(341249), uint32(1270529), models.PairStatusActive, now, now}
}

func TestNewPairRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewPairRepository(db)
	if repo == nil {
		t.Fatal("NewPairRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestPairRepositoryCreate(t *testing.T) {
	tests := []struct {
		name        string
		pair        *models.PairConfig
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			pair: &models.PairConfig{
				LegY:     "HDFCBANK",
				LegX:     "ICICIBANK",
				Sector:   "BANKING",
				Beta:     1.42,
				Sigma:    8.3,
				ADFValue: 0.012,
				Quality:  models.QualityExcellent,
				LotSizeY: 550,
				LotSizeX: 700,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO pairs`).
					WithArgs("HDFCBANK", "ICICIBANK", "BANKING", 1.42, float64(0), 8.3, 0.012, models.QualityExcellent, 550, 700, uint32(0), uint32(0), models.PairStatusPaused, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
			expectError: nil,
		},
		{
			name: "duplicate key error",
			pair: &models.PairConfig{
				LegY: "HDFCBANK",
				LegX: "ICICIBANK",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO pairs`).
					WillReturnError(errors.New("duplicate key value violates unique constraint"))
			},
			expectError: ErrPairExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewPairRepository(db)
			err = repo.Create(tt.pair)

			if tt.expectError != nil {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.pair.ID == 0 {
				t.Error("pair ID not set after create")
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestPairRepositoryGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(pairColumns()).AddRow(samplePairRow(7)...)
	mock.ExpectQuery(`SELECT (.+) FROM pairs`).WithArgs(7).WillReturnRows(rows)

	repo := NewPairRepository(db)
	pair, err := repo.GetByID(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.LegY != "HDFCBANK" || pair.LegX != "ICICIBANK" {
		t.Errorf("wrong legs: %s / %s", pair.LegY, pair.LegX)
	}
	if pair.Beta != 1.42 {
		t.Errorf("beta = %v, want 1.42", pair.Beta)
	}
	if pair.PairKey() != "HDFCBANK-ICICIBANK" {
		t.Errorf("pair key = %s", pair.PairKey())
	}
}

func TestPairRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM pairs`).WithArgs(99).
		WillReturnRows(sqlmock.NewRows(pairColumns()))

	repo := NewPairRepository(db)
	_, err = repo.GetByID(99)
	if !errors.Is(err, ErrPairNotFound) {
		t.Errorf("expected ErrPairNotFound, got %v", err)
	}
}

func TestPairRepositoryGetActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(pairColumns()).
		AddRow(samplePairRow(1)...).
		AddRow(samplePairRow(2)...)
	mock.ExpectQuery(`SELECT (.+) FROM pairs`).WithArgs(models.PairStatusActive).WillReturnRows(rows)

	repo := NewPairRepository(db)
	pairs, err := repo.GetActive()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 2 {
		t.Errorf("got %d pairs, want 2", len(pairs))
	}
}

func TestPairRepositoryUpdateCalibration(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE pairs`).
		WithArgs(1.38, 10.1, 7.9, 0.02, models.QualityGood, sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPairRepository(db)
	if err := repo.UpdateCalibration(7, 1.38, 10.1, 7.9, 0.02, models.QualityGood); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPairRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE pairs`).
		WithArgs(models.PairStatusActive, sqlmock.AnyArg(), 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPairRepository(db)
	err = repo.UpdateStatus(99, models.PairStatusActive)
	if !errors.Is(err, ErrPairNotFound) {
		t.Errorf("expected ErrPairNotFound, got %v", err)
	}
}

func TestPairRepositoryDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM pairs`).WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPairRepository(db)
	if err := repo.Delete(7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
