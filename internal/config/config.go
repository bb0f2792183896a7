package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/ride-dispatch/internal/matcher"
)

// ServerConfig captures all tunable parameters for the dispatch API process.
// Values come from the environment (optionally seeded from a .env file) with
// defaults that let the binary run locally with no brokers at all.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string

	MatchingPolicy    string
	StrictTransitions bool
	NotifyTimeout     time.Duration
	DefaultSpeedKmh   float64

	PricingSurge       float64
	PricingDiscountPct float64
	PricingToll        float64

	RedisAddr          string
	RedisPassword      string
	RedisEventsChannel string

	KafkaBrokers        []string
	KafkaEventsTopic    string
	KafkaLocationsTopic string
	KafkaGroup          string

	AMQPURL      string
	AMQPExchange string

	WebhookURL   string
	WebhookToken string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:            ":8080",
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        10 * time.Second,
		IdleTimeout:         120 * time.Second,
		ShutdownTimeout:     15 * time.Second,
		LogLevel:            "info",
		LogFormat:           "json",
		MatchingPolicy:      matcher.NameNearest,
		NotifyTimeout:       2 * time.Second,
		DefaultSpeedKmh:     25,
		PricingSurge:        1,
		RedisEventsChannel:  "ride-events",
		KafkaEventsTopic:    "ride-events",
		KafkaLocationsTopic: "driver-updates",
		KafkaGroup:          "ride-dispatch",
		AMQPExchange:        "ride.events",
	}
}

// LoadServerConfig reads .env (if present) and then the process environment.
// Every malformed or out-of-range value is reported; the returned config still
// carries defaults for those keys.
func LoadServerConfig() (ServerConfig, error) {
	// a missing .env is the normal case outside local dev
	_ = godotenv.Load()
	return loadFromEnv()
}

func loadFromEnv() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	setStringFromEnv(&cfg.MatchingPolicy, "MATCHING_POLICY")
	setBoolFromEnv(&cfg.StrictTransitions, "STRICT_TRANSITIONS", &errs)
	setDurationFromEnv(&cfg.NotifyTimeout, "NOTIFY_TIMEOUT", &errs)
	setFloatFromEnv(&cfg.DefaultSpeedKmh, "DEFAULT_SPEED_KMH", &errs)

	setFloatFromEnv(&cfg.PricingSurge, "PRICING_SURGE", &errs)
	setFloatFromEnv(&cfg.PricingDiscountPct, "PRICING_DISCOUNT_PCT", &errs)
	setFloatFromEnv(&cfg.PricingToll, "PRICING_TOLL", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisEventsChannel, "REDIS_EVENTS_CHANNEL")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaEventsTopic, "KAFKA_EVENTS_TOPIC")
	setStringFromEnv(&cfg.KafkaLocationsTopic, "KAFKA_LOCATIONS_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	setStringFromEnv(&cfg.AMQPExchange, "AMQP_EXCHANGE")

	cfg.WebhookURL = strings.TrimSpace(os.Getenv("WEBHOOK_URL"))
	cfg.WebhookToken = os.Getenv("WEBHOOK_TOKEN")

	errs = append(errs, cfg.validate()...)
	return cfg, errors.Join(errs...)
}

func (c ServerConfig) validate() []error {
	var errs []error
	if _, err := matcher.ByName(c.MatchingPolicy); err != nil {
		errs = append(errs, fmt.Errorf("MATCHING_POLICY: %w", err))
	}
	if c.PricingSurge <= 0 || c.PricingSurge > 5 {
		errs = append(errs, fmt.Errorf("PRICING_SURGE must be in (0, 5], got %v", c.PricingSurge))
	}
	if c.PricingDiscountPct < 0 || c.PricingDiscountPct > 100 {
		errs = append(errs, fmt.Errorf("PRICING_DISCOUNT_PCT must be in [0, 100], got %v", c.PricingDiscountPct))
	}
	if c.PricingToll < 0 {
		errs = append(errs, fmt.Errorf("PRICING_TOLL must be >= 0, got %v", c.PricingToll))
	}
	if c.DefaultSpeedKmh <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_SPEED_KMH must be > 0"))
	}
	for _, t := range []struct {
		key string
		d   time.Duration
	}{
		{"HTTP_READ_TIMEOUT", c.ReadTimeout},
		{"HTTP_WRITE_TIMEOUT", c.WriteTimeout},
		{"HTTP_IDLE_TIMEOUT", c.IdleTimeout},
		{"HTTP_SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
		{"NOTIFY_TIMEOUT", c.NotifyTimeout},
	} {
		if t.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", t.key))
		}
	}
	return errs
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
