package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"signal_bot/pkg/logger"
)

const (
	configFilePathENV = "CONFIG_FILE"
	wsURLENV          = "EXCHANGE_WS_URL"
	restURLENV        = "EXCHANGE_REST_URL"
	mongoConnENV      = "MONGO_CONN_STRING"
	mongoDBENV        = "MONGO_DB_NAME"
	redisHostENV      = "REDIS_HOST"
	redisPortENV      = "REDIS_PORT"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
)

// Config ...
type Config struct {
	Exchange struct {
		WSURL   string `yaml:"ws_url"`
		RESTURL string `yaml:"rest_url"`
		Symbol  string `yaml:"symbol"`
	} `yaml:"exchange"`

	Redis struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"redis"`

	Mongo struct {
		ConnString string `yaml:"conn_string"`
		Database   string `yaml:"database"`
	} `yaml:"mongo"`

	Strategy struct {
		// SMA(50)/SMA(200) по дневным derived closes
		ShortWindow int `yaml:"short_window"`
		LongWindow  int `yaml:"long_window"`
		// Сколько цен держим в Redis-списке (окно + запас)
		CacheRetention int `yaml:"cache_retention"`
		// Сколько дневных свечей тянем на старте
		BackfillDays int `yaml:"backfill_days"`
	} `yaml:"strategy"`

	// Ёмкость очереди тиков между листенером и агрегатором
	QueueSize int `yaml:"queue_size"`
	// Пауза перед реконнектом WS. Фиксированная, без роста.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	Health struct {
		Addr string `yaml:"addr"`
	} `yaml:"health"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	config := Config{
		QueueSize:      intFromEnv("QUEUE_SIZE", 1000),
		ReconnectDelay: durationFromEnv("RECONNECT_DELAY", "5s"),
	}
	config.Exchange.WSURL = "wss://stream.binance.com:9443/ws/btcusdt@bookTicker"
	config.Exchange.RESTURL = "https://api.binance.com"
	config.Exchange.Symbol = "BTCUSDT"
	config.Redis.Host = "localhost"
	config.Redis.Port = 6379
	config.Mongo.ConnString = "mongodb://localhost:27017"
	config.Mongo.Database = "crypto_trading"
	config.Strategy.ShortWindow = intFromEnv("SMA_SHORT", 50)
	config.Strategy.LongWindow = intFromEnv("SMA_LONG", 200)
	config.Strategy.CacheRetention = intFromEnv("CACHE_RETENTION", 250)
	config.Strategy.BackfillDays = intFromEnv("BACKFILL_DAYS", 250)
	config.Health.Addr = ":8080"
	config.Jaeger.Host = "localhost"
	config.Jaeger.Port = 6831

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		// без файла живём на дефолтах + env
		logger.Warn("config file configs/%s not found, using defaults: %v", configFileName, err)
	} else {
		defer func() {
			_ = file.Close()
		}()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(&config); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv(wsURLENV); v != "" {
		config.Exchange.WSURL = v
	}
	if v := os.Getenv(restURLENV); v != "" {
		config.Exchange.RESTURL = v
	}
	if v := os.Getenv(mongoConnENV); v != "" {
		config.Mongo.ConnString = v
	}
	if v := os.Getenv(mongoDBENV); v != "" {
		config.Mongo.Database = v
	}
	if v := os.Getenv(redisHostENV); v != "" {
		config.Redis.Host = v
	}
	config.Redis.Port = intFromEnv(redisPortENV, config.Redis.Port)
	if v := os.Getenv(tokenTelegramENV); v != "" {
		config.Telegram.Token = v
	}
	if v := os.Getenv(chatTelegramENV); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := def
	if v := os.Getenv(key); v != "" {
		val = v
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
