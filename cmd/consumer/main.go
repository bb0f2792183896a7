package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/notify"
)

var (
	eventsConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_events_consumed_total",
		Help: "Ride events consumed, by kind",
	}, []string{"kind"})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_events_invalid_total",
		Help: "Messages that were not ride events",
	})
	redisWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_writes_total",
		Help: "Events mirrored into redis",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Redis writes that failed after retries",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, redisWrites, redisErrors)
}

const recentEventsLimit = 1000

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	_ = godotenv.Load()
	logger := logging.NewLoggerWithFormat(os.Stdout, getenv("LOG_LEVEL", "info"), getenv("LOG_FORMAT", "json"))

	brokers := splitBrokers(getenv("KAFKA_BROKERS", "localhost:9092"))
	topic := getenv("KAFKA_EVENTS_TOPIC", "ride-events")
	group := getenv("KAFKA_GROUP", "ride-dispatch") + "-events"
	listKey := getenv("REDIS_EVENTS_LIST", "ride-events:recent")

	rc := redis.NewClient(&redis.Options{Addr: getenv("REDIS_ADDR", "localhost:6379"), Password: os.Getenv("REDIS_PASSWORD")})
	sink := &redisAdapter{c: rc}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(200)
			_, _ = w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 1, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", topic, "brokers", brokers, "group", group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		var ev notify.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.Kind == "" {
			eventsInvalid.Inc()
			logger.Warn("invalid event", "offset", m.Offset, "error", err)
			continue
		}
		eventsConsumed.WithLabelValues(string(ev.Kind)).Inc()
		logger.Info("ride event", "kind", ev.Kind, "message", ev.Message, "at", ev.At)

		if err := mirrorWithRetry(ctx, sink, listKey, m.Value, 3, 200*time.Millisecond); err != nil {
			redisErrors.Inc()
			logger.Error("redis mirror failed", "kind", ev.Kind, "error", err)
			continue
		}
		redisWrites.Inc()
	}
}

// RecentEvents is the subset of redis the consumer writes through.
type RecentEvents interface {
	LPush(ctx context.Context, key string, value []byte) error
	LTrim(ctx context.Context, key string, keep int64) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) LPush(ctx context.Context, key string, value []byte) error {
	return r.c.LPush(ctx, key, value).Err()
}

func (r *redisAdapter) LTrim(ctx context.Context, key string, keep int64) error {
	return r.c.LTrim(ctx, key, 0, keep-1).Err()
}

// mirrorWithRetry pushes payload onto the recent-events list and trims it,
// retrying either step with doubling delay.
func mirrorWithRetry(ctx context.Context, rc RecentEvents, key string, payload []byte, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = rc.LPush(ctx, key, payload); err == nil {
			break
		}
		if i == attempts-1 {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	for i := 0; i < attempts; i++ {
		if err = rc.LTrim(ctx, key, recentEventsLimit); err == nil {
			return nil
		}
		if i == attempts-1 {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func splitBrokers(v string) []string {
	var out []string
	for _, b := range strings.Split(v, ",") {
		if s := strings.TrimSpace(b); s != "" {
			out = append(out, s)
		}
	}
	return out
}
