package bot

import (
	"errors"
	"math"

	"statarb/internal/models"
	"statarb/pkg/utils"
)

// Допустимое отклонение фактической беты от целевой, %
const (
	betaDeviationAcceptable = 5.0
	betaDeviationMarginal   = 10.0
)

var ErrNoAffordableLots = errors.New("sizing: no lot combination fits capital")

// PositionSizer подбирает целочисленные лоты для бета-нейтральной
// позиции: qty_x / qty_y должно быть как можно ближе к beta.
type PositionSizer struct {
	Capital float64
}

// NewPositionSizer создаёт сайзер с потолком капитала на пару
func NewPositionSizer(capital float64) *PositionSizer {
	return &PositionSizer{Capital: capital}
}

// CalculateOptimalLots перебирает лоты Y и для каждого берёт ближайший
// лот X, минимизируя |actual_beta - target_beta| при ограничении по
// капиталу. Если гранулярность лотов не даёт уложиться в 5%,
// выставляется spot_needed с остатком в штуках.
func (s *PositionSizer) CalculateOptimalLots(beta, priceY, priceX float64, lotSizeY, lotSizeX int) (*models.PositionSizing, error) {
	if beta <= 0 || priceY <= 0 || priceX <= 0 || lotSizeY <= 0 || lotSizeX <= 0 {
		return nil, ErrNoAffordableLots
	}

	var best *models.PositionSizing
	bestDev := math.Inf(1)

	maxLotsY := int(s.Capital / (priceY * float64(lotSizeY)))
	for lotsY := 1; lotsY <= maxLotsY; lotsY++ {
		qtyY := lotsY * lotSizeY
		idealQtyX := beta * float64(qtyY)

		lotsX := int(math.Round(idealQtyX / float64(lotSizeX)))
		if lotsX < 1 {
			lotsX = 1
		}
		qtyX := lotsX * lotSizeX

		notionalY := float64(qtyY) * priceY
		notionalX := float64(qtyX) * priceX
		if notionalY+notionalX > s.Capital {
			continue
		}

		actualBeta := float64(qtyX) / float64(qtyY)
		deviation := utils.PercentDeviation(actualBeta, beta)

		if math.Abs(deviation) < math.Abs(bestDev) {
			bestDev = deviation
			best = &models.PositionSizing{
				LotsY:         lotsY,
				LotsX:         lotsX,
				SharesY:       qtyY,
				SharesX:       qtyX,
				TargetBeta:    beta,
				ActualBeta:    actualBeta,
				BetaDeviation: deviation,
				NotionalY:     notionalY,
				NotionalX:     notionalX,
				TotalCapital:  notionalY + notionalX,
			}
		}
	}

	if best == nil {
		return nil, ErrNoAffordableLots
	}

	if !best.IsValid() {
		// Лотами бету не добрать: остаток закрывается спотом
		ideal := int(math.Round(best.TargetBeta * float64(best.SharesY)))
		best.SpotNeeded = true
		best.SpotShares = ideal - best.SharesX
	}
	return best, nil
}
