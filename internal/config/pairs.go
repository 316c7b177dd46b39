package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"statarb/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// pairsFile - формат файла откалиброванных пар
type pairsFile struct {
	Pairs []models.PairConfig `json:"pairs"`
}

// LoadPairs читает откалиброванные пары из JSON файла.
// Файл дополняет базу: удобен для обкатки пары до записи в базу
// и для paper-режима без поднятой БД. Любая невалидная запись
// отклоняет весь файл: частично загруженный набор пар опаснее отказа.
func LoadPairs(path string) ([]models.PairConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pairs file: %w", err)
	}

	var f pairsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("pairs file %s: %w", path, err)
	}
	if len(f.Pairs) == 0 {
		return nil, fmt.Errorf("pairs file %s: no pairs", path)
	}

	for i := range f.Pairs {
		if err := validatePair(&f.Pairs[i]); err != nil {
			return nil, fmt.Errorf("pairs file %s: entry %d: %w", path, i, err)
		}
	}
	return f.Pairs, nil
}

// validatePair проверяет запись пары, нормализуя пустой статус
func validatePair(p *models.PairConfig) error {
	if p.LegY == "" || p.LegX == "" {
		return fmt.Errorf("both legs are required")
	}
	if p.LegY == p.LegX {
		return fmt.Errorf("legs must differ, got %s twice", p.LegY)
	}
	if p.Beta == 0 {
		return fmt.Errorf("pair %s: hedge_ratio is required", p.PairKey())
	}
	if p.Sigma <= 0 {
		return fmt.Errorf("pair %s: sigma must be positive, got %v", p.PairKey(), p.Sigma)
	}
	if p.LotSizeY <= 0 || p.LotSizeX <= 0 {
		return fmt.Errorf("pair %s: lot sizes must be positive", p.PairKey())
	}
	switch p.Status {
	case models.PairStatusActive, models.PairStatusPaused:
	case "":
		p.Status = models.PairStatusPaused
	default:
		return fmt.Errorf("pair %s: unknown status %q", p.PairKey(), p.Status)
	}
	return nil
}
