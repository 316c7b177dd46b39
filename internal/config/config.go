package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Broker   BrokerConfig
	Trading  TradingConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port int
	Host string

	// Bcrypt-хэш операторского токена API, пустой = auth выключен
	APITokenHash string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// BrokerConfig - настройки подключения к брокеру
type BrokerConfig struct {
	Mode          string // paper или live
	APIKey        string
	AccessToken   string
	EncryptionKey string // AES-256 ключ для хранения токенов
	WSURL         string

	// WebSocket тикер: реконнект и сторожевой таймер
	WSReconnectDelay time.Duration
	WSMaxBackoff     time.Duration
	TickWatchdog     time.Duration // реконнект при молчании потока
	OrderTimeout     time.Duration
}

// TradingConfig - параметры стратегии и риск-лимитов
type TradingConfig struct {
	Capital          float64
	MaxOpenPositions int
	MaxDailyLoss     float64 // абсолютный дневной стоп в валюте счёта

	// Пороги z-score. Инварианты: entry < stop, exit <= entry.
	EntryThreshold float64
	ExitThreshold  float64
	StopThreshold  float64

	// Буфер маркетабельного лимитника и шаг цены
	LimitBufferPct float64
	TickSize       float64

	// Триггер катастрофного SL-M в процентах от цены исполнения ноги
	StopTriggerPct float64

	BarInterval time.Duration
	StateFile   string
	SquareOffAt string // HH:MM принудительного закрытия, пусто = выключено

	// Файл откалиброванных пар, дополняет базу. Пусто = только база
	PairsFile string

	// Перекалибровка всех пар по истории брокера на старте (live)
	RecalibrateOnStart bool
	CalibrationDays    int
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			APITokenHash: getEnv("API_TOKEN_HASH", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "statarb"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Broker: BrokerConfig{
			Mode:             getEnv("BROKER_MODE", "paper"),
			APIKey:           getEnv("BROKER_API_KEY", ""),
			AccessToken:      getEnv("BROKER_ACCESS_TOKEN", ""),
			EncryptionKey:    getEnv("ENCRYPTION_KEY", ""),
			WSURL:            getEnv("BROKER_WS_URL", "wss://ws.kite.trade"),
			WSReconnectDelay: getEnvAsDuration("WS_RECONNECT_DELAY", 1*time.Second),
			WSMaxBackoff:     getEnvAsDuration("WS_MAX_BACKOFF", 30*time.Second),
			TickWatchdog:     getEnvAsDuration("TICK_WATCHDOG", 15*time.Second),
			OrderTimeout:     getEnvAsDuration("ORDER_TIMEOUT", 5*time.Second),
		},
		Trading: TradingConfig{
			Capital:            getEnvAsFloat("TRADING_CAPITAL", 1_000_000),
			MaxOpenPositions:   getEnvAsInt("MAX_OPEN_POSITIONS", 5),
			MaxDailyLoss:       getEnvAsFloat("MAX_DAILY_LOSS", 20_000),
			EntryThreshold:     getEnvAsFloat("ENTRY_THRESHOLD", 2.5),
			ExitThreshold:      getEnvAsFloat("EXIT_THRESHOLD", 1.0),
			StopThreshold:      getEnvAsFloat("STOP_THRESHOLD", 3.0),
			LimitBufferPct:     getEnvAsFloat("LIMIT_BUFFER_PCT", 0.3),
			TickSize:           getEnvAsFloat("TICK_SIZE", 0.05),
			StopTriggerPct:     getEnvAsFloat("STOP_TRIGGER_PCT", 2.0),
			BarInterval:        getEnvAsDuration("BAR_INTERVAL", 1*time.Minute),
			StateFile:          getEnv("STATE_FILE", "engine_state.json"),
			SquareOffAt:        getEnv("SQUARE_OFF_AT", "15:10"),
			PairsFile:          getEnv("PAIRS_FILE", ""),
			RecalibrateOnStart: getEnvAsBool("RECALIBRATE_ON_START", false),
			CalibrationDays:    getEnvAsInt("CALIBRATION_DAYS", 90),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate проверяет инварианты конфигурации до старта движка
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Broker.Mode != "paper" && c.Broker.Mode != "live" {
		return fmt.Errorf("BROKER_MODE must be paper or live, got %q", c.Broker.Mode)
	}
	if c.Broker.Mode == "live" {
		if c.Broker.APIKey == "" || c.Broker.AccessToken == "" {
			return fmt.Errorf("BROKER_API_KEY and BROKER_ACCESS_TOKEN are required in live mode")
		}
		if len(c.Broker.EncryptionKey) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
		}
	}
	if c.Broker.OrderTimeout <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT must be positive, got %v", c.Broker.OrderTimeout)
	}
	if c.Broker.TickWatchdog <= 0 {
		return fmt.Errorf("TICK_WATCHDOG must be positive, got %v", c.Broker.TickWatchdog)
	}

	if err := c.Trading.validateThresholds(); err != nil {
		return err
	}
	if c.Trading.Capital <= 0 {
		return fmt.Errorf("TRADING_CAPITAL must be positive, got %v", c.Trading.Capital)
	}
	if c.Trading.MaxOpenPositions < 1 {
		return fmt.Errorf("MAX_OPEN_POSITIONS must be at least 1, got %d", c.Trading.MaxOpenPositions)
	}
	if c.Trading.MaxDailyLoss <= 0 {
		return fmt.Errorf("MAX_DAILY_LOSS must be positive, got %v", c.Trading.MaxDailyLoss)
	}
	if c.Trading.TickSize <= 0 {
		return fmt.Errorf("TICK_SIZE must be positive, got %v", c.Trading.TickSize)
	}
	if c.Trading.StopTriggerPct <= 0 {
		return fmt.Errorf("STOP_TRIGGER_PCT must be positive, got %v", c.Trading.StopTriggerPct)
	}
	if c.Trading.SquareOffAt != "" {
		if _, err := time.Parse("15:04", c.Trading.SquareOffAt); err != nil {
			return fmt.Errorf("SQUARE_OFF_AT must be HH:MM, got %q", c.Trading.SquareOffAt)
		}
	}
	return nil
}

// validateThresholds проверяет согласованность порогов z-score.
// Нарушение делает машину сигналов бессмысленной, поэтому отказ сразу.
func (t TradingConfig) validateThresholds() error {
	if t.EntryThreshold <= 0 {
		return fmt.Errorf("ENTRY_THRESHOLD must be positive, got %v", t.EntryThreshold)
	}
	if t.EntryThreshold >= t.StopThreshold {
		return fmt.Errorf("ENTRY_THRESHOLD %v must be below STOP_THRESHOLD %v",
			t.EntryThreshold, t.StopThreshold)
	}
	if t.ExitThreshold > t.EntryThreshold {
		return fmt.Errorf("EXIT_THRESHOLD %v must not exceed ENTRY_THRESHOLD %v",
			t.ExitThreshold, t.EntryThreshold)
	}
	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
