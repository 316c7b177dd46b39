package stats

// DirectionResult - итог выбора направления регрессии для пары акций.
// Победителем становится вариант с меньшим error ratio.
type DirectionResult struct {
	StockY     string
	StockX     string
	Regression *Regression
	ErrorRatio float64
}

// SelectDirection прогоняет регрессию в обе стороны (A на B и B на A)
// и выбирает направление с меньшим отношением ошибок.
// При равенстве предпочитается вариант с A в роли регрессора X.
func SelectDirection(symbolA string, pricesA []float64, symbolB string, pricesB []float64) (*DirectionResult, error) {
	// Вариант 1: B = f(A), регрессор A
	regBA, err := Fit(pricesB, pricesA)
	if err != nil {
		return nil, err
	}
	// Вариант 2: A = f(B), регрессор B
	regAB, err := Fit(pricesA, pricesB)
	if err != nil {
		return nil, err
	}

	ratioBA := regBA.ErrorRatio()
	ratioAB := regAB.ErrorRatio()

	if ratioBA <= ratioAB {
		return &DirectionResult{
			StockY:     symbolB,
			StockX:     symbolA,
			Regression: regBA,
			ErrorRatio: ratioBA,
		}, nil
	}
	return &DirectionResult{
		StockY:     symbolA,
		StockX:     symbolB,
		Regression: regAB,
		ErrorRatio: ratioAB,
	}, nil
}
