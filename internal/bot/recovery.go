package bot

import (
	"context"

	"go.uber.org/zap"

	"statarb/internal/models"
)

// Recover восстанавливает позиции из файла состояния после рестарта.
//
// Каждый снапшот сверяется с позициями брокера: восстанавливается
// только позиция, обе ноги которой брокер подтверждает с нужным
// знаком и объёмом. Расхождение не чинится автоматически - снапшот
// отбрасывается с WARNING, разбирается оператор.
//
// Вызывать до Run, пока воркеры не запущены.
func (e *Engine) Recover(ctx context.Context, state EngineState) error {
	if len(state.ActiveTrades) == 0 {
		return nil
	}

	brokerPositions, err := e.broker.Positions(ctx)
	if err != nil {
		return err
	}
	held := make(map[string]int, len(brokerPositions))
	for _, p := range brokerPositions {
		held[p.Symbol] = p.Quantity
	}

	for key, snap := range state.ActiveTrades {
		w, ok := e.workers[key]
		if !ok {
			e.alerts.Publish(models.AlertWarning, "recovery",
				"saved position for unknown pair, dropped",
				map[string]interface{}{"pair": key})
			continue
		}

		if !legsMatch(w.cfg, snap, held) {
			e.alerts.Publish(models.AlertWarning, "recovery",
				"saved position does not match broker, dropped; reconcile manually",
				map[string]interface{}{
					"pair": key, "side": snap.Side,
					"qty_y": snap.QtyY, "qty_x": snap.QtyX,
					"broker_y": held[w.cfg.LegY], "broker_x": held[w.cfg.LegX],
				})
			continue
		}

		if err := w.tracker.Restore(snap); err != nil {
			e.log.Error("restore failed", zap.String("pair", key), zap.Error(err))
			continue
		}
		w.setState(models.StateHolding)
		e.portfolio.Opened(key)

		e.stateMu.Lock()
		e.snapshots[key] = snap
		e.stateMu.Unlock()

		e.log.Info("position recovered",
			zap.String("pair", key),
			zap.String("side", snap.Side),
			zap.Float64("entry_z", snap.EntryZScore))
	}

	OpenPositions.Set(float64(e.portfolio.OpenCount()))
	e.updatePairStateMetric()
	return nil
}

// legsMatch проверяет, что брокер держит обе ноги снапшота
// с правильным знаком и не меньшим объёмом
func legsMatch(cfg models.PairConfig, snap models.PositionSnapshot, held map[string]int) bool {
	wantY, wantX := snap.QtyY, -snap.QtyX
	if snap.Side == models.DirectionShort {
		wantY, wantX = -snap.QtyY, snap.QtyX
	}
	return sameSideAtLeast(held[cfg.LegY], wantY) && sameSideAtLeast(held[cfg.LegX], wantX)
}

// sameSideAtLeast: have того же знака, что want, и по модулю не меньше
func sameSideAtLeast(have, want int) bool {
	if want > 0 {
		return have >= want
	}
	return have <= want
}
