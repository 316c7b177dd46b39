package broker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"statarb/internal/alert"
	"statarb/internal/models"
	"statarb/pkg/ratelimit"
	"statarb/pkg/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Категории rate limit'а по типам запросов брокера
const (
	limitOrders     = "orders"
	limitQuotes     = "quotes"
	limitHistorical = "historical"
)

// KiteBroker - живой брокер поверх REST API Kite Connect.
// Все запросы идут через token bucket лимитер, чтение статусов
// ордеров с retry.
type KiteBroker struct {
	baseURL     string
	apiKey      string
	accessToken string

	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter
	alerts     alert.Sink
	log        *zap.Logger

	orderTimeout time.Duration
}

// NewKiteBroker создаёт клиент живого брокера
func NewKiteBroker(apiKey, accessToken string, orderTimeout time.Duration, alerts alert.Sink, log *zap.Logger) *KiteBroker {
	limiter := ratelimit.NewMultiLimiter()
	// Документированные лимиты Kite Connect
	limiter.Add(limitOrders, 10, 20)
	limiter.Add(limitQuotes, 1, 2)
	limiter.Add(limitHistorical, 3, 3)

	if alerts == nil {
		alerts = alert.NopSink{}
	}

	return &KiteBroker{
		baseURL:      "https://api.kite.trade",
		apiKey:       apiKey,
		accessToken:  accessToken,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		limiter:      limiter,
		alerts:       alerts,
		log:          log,
		orderTimeout: orderTimeout,
	}
}

func (k *KiteBroker) Name() string { return "kite" }

// apiEnvelope - общий конверт ответов Kite API
type apiEnvelope struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Data    jsoniter.RawMessage `json:"data"`
}

// request выполняет HTTP запрос с авторизацией и разбирает конверт
func (k *KiteBroker) request(ctx context.Context, method, path, category string, form url.Values) (jsoniter.RawMessage, error) {
	if err := k.limiter.Wait(ctx, category); err != nil {
		return nil, err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, k.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Kite-Version", "3")
	req.Header.Set("Authorization", "token "+k.apiKey+":"+k.accessToken)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("broker: bad response: %w", err)
	}
	if env.Status != "success" {
		// Отказ по марже или валидации повторять бессмысленно
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, retry.Permanent(fmt.Errorf("%w: %s", ErrOrderRejected, env.Message))
		}
		return nil, fmt.Errorf("broker: %s", env.Message)
	}
	return env.Data, nil
}

// PlaceOrder размещает ордер ровно один раз и опрашивает статус
// до терминального состояния или таймаута.
//
// ВАЖНО: сам запрос размещения НЕ ретраится. Повтор POST при
// неизвестном исходе может удвоить позицию. Ретраятся только
// последующие чтения статуса.
func (k *KiteBroker) PlaceOrder(ctx context.Context, params OrderParams) (*Order, error) {
	form := url.Values{}
	form.Set("tradingsymbol", params.Symbol)
	form.Set("exchange", "NSE")
	form.Set("transaction_type", params.Side)
	form.Set("order_type", params.OrderType)
	form.Set("product", params.Product)
	form.Set("quantity", strconv.Itoa(params.Quantity))
	form.Set("validity", "DAY")
	if params.Tag != "" {
		form.Set("tag", params.Tag)
	}
	if params.OrderType == OrderTypeLimit {
		form.Set("price", strconv.FormatFloat(params.Price, 'f', 2, 64))
	}
	if params.OrderType == OrderTypeSLM {
		form.Set("trigger_price", strconv.FormatFloat(params.TriggerPrice, 'f', 2, 64))
	}

	data, err := k.request(ctx, http.MethodPost, "/orders/regular", limitOrders, form)
	if err != nil {
		return nil, err
	}

	var placed struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(data, &placed); err != nil {
		return nil, fmt.Errorf("broker: bad order response: %w", err)
	}

	k.log.Info("order placed",
		zap.String("order_id", placed.OrderID),
		zap.String("symbol", params.Symbol),
		zap.String("side", params.Side),
		zap.String("tag", params.Tag))

	// SL-M остаётся открытым до триггера, подтверждения не ждём
	if params.OrderType == OrderTypeSLM {
		return &Order{
			ID:        placed.OrderID,
			Symbol:    params.Symbol,
			Side:      params.Side,
			OrderType: params.OrderType,
			Quantity:  params.Quantity,
			Status:    OrderStatusOpen,
			Tag:       params.Tag,
			PlacedAt:  time.Now(),
		}, nil
	}

	return k.awaitFill(ctx, placed.OrderID, params)
}

// awaitFill опрашивает историю ордера до терминального статуса
func (k *KiteBroker) awaitFill(ctx context.Context, orderID string, params OrderParams) (*Order, error) {
	deadline := time.Now().Add(k.orderTimeout)

	for time.Now().Before(deadline) {
		order, err := k.orderStatus(ctx, orderID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			k.log.Warn("order status poll failed", zap.Error(err))
		} else {
			switch order.Status {
			case OrderStatusComplete:
				return order, nil
			case OrderStatusRejected, OrderStatusCancelled:
				return order, fmt.Errorf("%w: %s", ErrOrderRejected, order.Status)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(300 * time.Millisecond):
		}
	}

	// Исход неизвестен, а DAY-заявка у брокера жива: снимаем её, чтобы
	// не получить неучтённое исполнение позже. Отмена уже исполненного
	// ордера вернёт ошибку брокера, это штатно.
	cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cancelErr := k.CancelOrder(cancelCtx, orderID)

	data := map[string]interface{}{
		"order_id": orderID,
		"symbol":   params.Symbol,
		"side":     params.Side,
		"quantity": params.Quantity,
	}
	if cancelErr != nil {
		data["cancel_error"] = cancelErr.Error()
	}
	k.alerts.Publish(models.AlertCritical, "kite",
		"order confirmation timeout, cancel attempted, verify position manually", data)

	k.log.Error("order confirmation timeout",
		zap.String("order_id", orderID),
		zap.String("symbol", params.Symbol),
		zap.Error(cancelErr))
	return nil, ErrOrderTimeout
}

// orderStatus читает последнюю запись истории ордера
func (k *KiteBroker) orderStatus(ctx context.Context, orderID string) (*Order, error) {
	data, err := retry.DoWithResult(ctx, func() (jsoniter.RawMessage, error) {
		return k.request(ctx, http.MethodGet, "/orders/"+orderID, limitOrders, nil)
	}, retry.Config{MaxRetries: 3, InitialDelay: 100 * time.Millisecond, RetryIf: retry.NotPermanent})
	if err != nil {
		return nil, err
	}

	var history []struct {
		OrderID       string  `json:"order_id"`
		Tradingsymbol string  `json:"tradingsymbol"`
		Side          string  `json:"transaction_type"`
		OrderType     string  `json:"order_type"`
		Quantity      int     `json:"quantity"`
		FilledQty     int     `json:"filled_quantity"`
		AvgPrice      float64 `json:"average_price"`
		Status        string  `json:"status"`
		Tag           string  `json:"tag"`
	}
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("broker: bad order history: %w", err)
	}
	if len(history) == 0 {
		return nil, ErrUnknownOrder
	}

	last := history[len(history)-1]
	return &Order{
		ID:           last.OrderID,
		Symbol:       last.Tradingsymbol,
		Side:         last.Side,
		OrderType:    last.OrderType,
		Quantity:     last.Quantity,
		FilledQty:    last.FilledQty,
		AvgFillPrice: last.AvgPrice,
		Status:       last.Status,
		Tag:          last.Tag,
		UpdatedAt:    time.Now(),
	}, nil
}

// CancelOrder отменяет ордер
func (k *KiteBroker) CancelOrder(ctx context.Context, orderID string) error {
	_, err := k.request(ctx, http.MethodDelete, "/orders/regular/"+orderID, limitOrders, nil)
	return err
}

// Positions возвращает дневные позиции счёта
func (k *KiteBroker) Positions(ctx context.Context) ([]BrokerPosition, error) {
	data, err := k.request(ctx, http.MethodGet, "/portfolio/positions", limitQuotes, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Day []struct {
			Tradingsymbol string  `json:"tradingsymbol"`
			Quantity      int     `json:"quantity"`
			AvgPrice      float64 `json:"average_price"`
			PnL           float64 `json:"pnl"`
		} `json:"day"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("broker: bad positions: %w", err)
	}

	out := make([]BrokerPosition, 0, len(payload.Day))
	for _, p := range payload.Day {
		out = append(out, BrokerPosition{
			Symbol:   p.Tradingsymbol,
			Quantity: p.Quantity,
			AvgPrice: p.AvgPrice,
			PnL:      p.PnL,
		})
	}
	return out, nil
}

// Margins возвращает доступную маржу сегмента equity
func (k *KiteBroker) Margins(ctx context.Context) (*Margins, error) {
	data, err := k.request(ctx, http.MethodGet, "/user/margins/equity", limitQuotes, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Net      float64 `json:"net"`
		Utilised struct {
			Debits float64 `json:"debits"`
		} `json:"utilised"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("broker: bad margins: %w", err)
	}
	return &Margins{Available: payload.Net, Used: payload.Utilised.Debits}, nil
}

// HistoricalData возвращает свечи инструмента за период.
// Kite отдаёт свечу массивом: [timestamp, open, high, low, close, volume].
func (k *KiteBroker) HistoricalData(ctx context.Context, token uint32, from, to time.Time, interval string) ([]Candle, error) {
	const timeLayout = "2006-01-02 15:04:05"
	path := fmt.Sprintf("/instruments/historical/%d/%s?from=%s&to=%s",
		token, interval,
		url.QueryEscape(from.Format(timeLayout)),
		url.QueryEscape(to.Format(timeLayout)))

	data, err := k.request(ctx, http.MethodGet, path, limitHistorical, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Candles [][]interface{} `json:"candles"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("broker: bad historical data: %w", err)
	}

	out := make([]Candle, 0, len(payload.Candles))
	for _, raw := range payload.Candles {
		if len(raw) < 6 {
			continue
		}
		ts, ok := raw[0].(string)
		if !ok {
			continue
		}
		at, err := time.Parse("2006-01-02T15:04:05-0700", ts)
		if err != nil {
			// Дневные свечи приходят без смещения
			at, err = time.Parse("2006-01-02T15:04:05", ts)
			if err != nil {
				continue
			}
		}
		out = append(out, Candle{
			Timestamp: at,
			Open:      asFloat(raw[1]),
			High:      asFloat(raw[2]),
			Low:       asFloat(raw[3]),
			Close:     asFloat(raw[4]),
			Volume:    int64(asFloat(raw[5])),
		})
	}
	return out, nil
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

// LTP возвращает последнюю цену инструмента
func (k *KiteBroker) LTP(ctx context.Context, symbol string) (float64, error) {
	instrument := "NSE:" + symbol
	data, err := k.request(ctx, http.MethodGet, "/quote/ltp?i="+url.QueryEscape(instrument), limitQuotes, nil)
	if err != nil {
		return 0, err
	}

	var payload map[string]struct {
		LastPrice float64 `json:"last_price"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("broker: bad ltp: %w", err)
	}
	quote, ok := payload[instrument]
	if !ok {
		return 0, fmt.Errorf("broker: no quote for %s", symbol)
	}
	return quote.LastPrice, nil
}
