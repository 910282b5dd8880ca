package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSimulated = "simulated"
	DriverBinance   = "binance"
	DriverREST      = "rest"
)

type Config struct {
	Host string
	Port int

	DB DBConfig

	AppName  string
	LogLevel string
	LogFile  string

	Exchange ExchangeConfig

	CORSOrigins     []string
	RateLimitPerMin int
	ShutdownTimeout time.Duration
	MigrationsDir   string

	// DotEnvLoaded - был ли прочитан файл .env
	DotEnvLoaded bool
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
}

type ExchangeConfig struct {
	Driver    string
	APIKey    string
	SecretKey string
	BaseURL   string
	ProxyAddr string
	Timeout   time.Duration
	Latency   time.Duration
}

// Load читает .env (если есть) и переменные окружения.
// Отсутствие обязательной переменной - ошибка, сервер не стартует.
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	cfg.DotEnvLoaded = loaded
	return cfg, nil
}

// FromEnv собирает конфиг только из окружения процесса.
func FromEnv() (*Config, error) {
	var missing []string
	required := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := &Config{
		Host: required("HOST"),
		DB: DBConfig{
			Host:     required("DB_HOST"),
			User:     required("DB_USER"),
			Password: required("DB_PASSWORD"),
			Name:     required("DB_NAME"),
			SSLMode:  getStr("DB_SSLMODE", "disable"),
		},
		AppName:       getStr("APP_NAME", "orderdesk"),
		LogLevel:      getStr("LOG_LEVEL", "info"),
		LogFile:       getStr("LOG_FILE", "logs/app.log"),
		MigrationsDir: getStr("MIGRATIONS_DIR", "db/migrations"),
		CORSOrigins:   splitList(os.Getenv("CORS_ORIGINS")),
		Exchange: ExchangeConfig{
			Driver:    strings.ToLower(getStr("EXCHANGE_DRIVER", DriverSimulated)),
			APIKey:    os.Getenv("EXCHANGE_API_KEY"),
			SecretKey: os.Getenv("EXCHANGE_SECRET_KEY"),
			BaseURL:   os.Getenv("EXCHANGE_BASE_URL"),
			ProxyAddr: os.Getenv("EXCHANGE_PROXY"),
		},
	}
	portStr := required("PORT")

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.Port, err = parsePort("PORT", portStr); err != nil {
		return nil, err
	}
	if cfg.DB.Port, err = parsePort("DB_PORT", getStr("DB_PORT", "5432")); err != nil {
		return nil, err
	}
	if cfg.DB.MaxConns, err = getPositiveInt("DB_MAX_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMin, err = getPositiveInt("RATE_LIMIT_PER_MIN", 100); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Exchange.Timeout, err = getDuration("EXCHANGE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Exchange.Latency, err = getDuration("EXCHANGE_LATENCY", 500*time.Millisecond); err != nil {
		return nil, err
	}

	switch cfg.Exchange.Driver {
	case DriverSimulated, DriverBinance:
	case DriverREST:
		if cfg.Exchange.BaseURL == "" {
			return nil, fmt.Errorf("EXCHANGE_BASE_URL is required when EXCHANGE_DRIVER=%s", DriverREST)
		}
	default:
		return nil, fmt.Errorf("invalid EXCHANGE_DRIVER: %q, must be one of: simulated, binance, rest", cfg.Exchange.Driver)
	}

	return cfg, nil
}

// Addr - адрес для http.Server.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// DSN - строка подключения lib/pq в формате key=value.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quote(c.DB.Host), c.DB.Port, quote(c.DB.User), quote(c.DB.Password), quote(c.DB.Name), quote(c.DB.SSLMode))
}

// quote экранирует значение для DSN, если в нём есть пробелы или кавычки.
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func getStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parsePort(key, v string) (int, error) {
	port, err := strconv.Atoi(v)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid %s: %q, must be an integer between 1 and 65535", key, v)
	}
	return port, nil
}

func getPositiveInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: %q, must be a positive integer", key, v)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q, must be a non-negative duration", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
