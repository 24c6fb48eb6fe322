package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	EventBus struct {
		// Backend selects delivery for async events: "inline", "workers",
		// or "rabbitmq".
		Backend string `koanf:"backend"`
		Workers int    `koanf:"workers"`
		Buffer  int    `koanf:"buffer"`
	} `koanf:"eventbus"`

	Rabbit struct {
		URL string `koanf:"url"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers     []string `koanf:"brokers"`
		TopicTopUps string   `koanf:"topic_topups"`
		GroupID     string   `koanf:"group_id"`
	} `koanf:"kafka"`

	Pricing struct {
		DefaultFeeBps     int64         `koanf:"default_fee_bps"`
		MinFeeCents       int64         `koanf:"min_fee_cents"`
		FeeThresholdCents int64         `koanf:"fee_threshold_cents"`
		RateCacheTTL      time.Duration `koanf:"rate_cache_ttl"`
	} `koanf:"pricing"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix COMMERCE_, nested with __)
	// e.g. COMMERCE_MYSQL__DSN, COMMERCE_REDIS__PASSWORD
	if err := k.Load(env.Provider("COMMERCE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "COMMERCE_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn required")
	}
	switch c.EventBus.Backend {
	case "", "inline", "workers":
	case "rabbitmq":
		if c.Rabbit.URL == "" {
			return fmt.Errorf("rabbitmq.url required for rabbitmq event backend")
		}
	default:
		return fmt.Errorf("eventbus.backend must be inline, workers, or rabbitmq")
	}
	return nil
}
