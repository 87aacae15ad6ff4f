package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avroute/internal/config"
	"github.com/vyrodovalexey/avroute/internal/observability"
	"github.com/vyrodovalexey/avroute/internal/retry"
)

const storeTracerName = "github.com/vyrodovalexey/avroute/internal/store"

// healthTTL bounds how long a crashed instance's last report lingers.
const healthTTL = 5 * time.Minute

// redisRetryConfig returns the retry configuration for store operations.
func redisRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		JitterFactor:   retry.DefaultJitterFactor,
	}
}

// isRetryableRedisError checks if the error is retryable.
func isRetryableRedisError(err error) bool {
	if err == nil {
		return false
	}
	// Don't retry on missing keys or context errors
	if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// redisStore implements Store on a Redis hash.
type redisStore struct {
	logger       observability.Logger
	client       *redis.Client
	routesKey    string
	healthKey    string
	writeTimeout time.Duration
	breaker      *gobreaker.CircuitBreaker
}

// NewRedis creates a Redis-backed store from the store configuration.
func NewRedis(cfg *config.StoreConfig, logger observability.Logger) (Store, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid store URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store connection failed: %w", err)
	}

	s := &redisStore{
		logger:       logger,
		client:       client,
		routesKey:    cfg.KeyPrefix + "routes",
		healthKey:    cfg.KeyPrefix + "health",
		writeTimeout: cfg.WriteTimeout.Duration(),
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "store",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			RecordBreakerState(to)
			logger.Warn("store breaker state changed",
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})

	logger.Info("redis store initialized",
		observability.String("routesKey", s.routesKey),
		observability.Duration("writeTimeout", s.writeTimeout),
	)

	return s, nil
}

// SaveRoute stores a route definition in the routes hash.
func (s *redisStore) SaveRoute(ctx context.Context, def RouteDefinition) error {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.SaveRoute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.backend", "redis"),
			attribute.String("route.name", def.Name),
		),
	)
	defer span.End()

	def.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal route %s: %w", def.Name, err)
	}

	err = s.execute(ctx, "save", func(ctx context.Context) error {
		return s.client.HSet(ctx, s.routesKey, def.Name, payload).Err()
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		s.logger.Error("store save failed",
			observability.String("route", def.Name),
			observability.Error(err),
		)
		return err
	}

	s.logger.Debug("route definition saved",
		observability.String("route", def.Name),
	)
	return nil
}

// LoadRoute returns a single route definition.
func (s *redisStore) LoadRoute(ctx context.Context, name string) (RouteDefinition, error) {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.LoadRoute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.backend", "redis"),
			attribute.String("route.name", name),
		),
	)
	defer span.End()

	var payload []byte
	err := s.execute(ctx, "load", func(ctx context.Context) error {
		val, getErr := s.client.HGet(ctx, s.routesKey, name).Bytes()
		if getErr != nil {
			return getErr
		}
		payload = val
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return RouteDefinition{}, ErrNotFound
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return RouteDefinition{}, err
	}

	var def RouteDefinition
	if err := json.Unmarshal(payload, &def); err != nil {
		return RouteDefinition{}, fmt.Errorf("unmarshal route %s: %w", name, err)
	}
	return def, nil
}

// LoadRoutes returns all route definitions.
func (s *redisStore) LoadRoutes(ctx context.Context) ([]RouteDefinition, error) {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.LoadRoutes",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.backend", "redis"),
		),
	)
	defer span.End()

	var raw map[string]string
	err := s.execute(ctx, "load_all", func(ctx context.Context) error {
		val, getErr := s.client.HGetAll(ctx, s.routesKey).Result()
		if getErr != nil {
			return getErr
		}
		raw = val
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, err
	}

	defs := make([]RouteDefinition, 0, len(raw))
	for name, payload := range raw {
		var def RouteDefinition
		if err := json.Unmarshal([]byte(payload), &def); err != nil {
			// Skip corrupt entries instead of failing the whole sync.
			s.logger.Warn("skipping corrupt route definition",
				observability.String("route", name),
				observability.Error(err),
			)
			continue
		}
		defs = append(defs, def)
	}

	span.SetAttributes(attribute.Int("store.routes", len(defs)))
	return defs, nil
}

// DeleteRoute removes a route definition.
func (s *redisStore) DeleteRoute(ctx context.Context, name string) error {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.DeleteRoute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.backend", "redis"),
			attribute.String("route.name", name),
		),
	)
	defer span.End()

	err := s.execute(ctx, "delete", func(ctx context.Context) error {
		return s.client.HDel(ctx, s.routesKey, name).Err()
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return err
	}
	return nil
}

// SaveHealth publishes an instance health report to the health hash.
func (s *redisStore) SaveHealth(ctx context.Context, report HealthReport) error {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.SaveHealth",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.backend", "redis"),
			attribute.String("instance.id", report.Instance),
		),
	)
	defer span.End()

	report.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal health report %s: %w", report.Instance, err)
	}

	err = s.execute(ctx, "save_health", func(ctx context.Context) error {
		if err := s.client.HSet(ctx, s.healthKey, report.Instance, payload).Err(); err != nil {
			return err
		}
		return s.client.Expire(ctx, s.healthKey, healthTTL).Err()
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return err
	}
	return nil
}

// LoadHealth returns the published health reports of all instances.
func (s *redisStore) LoadHealth(ctx context.Context) ([]HealthReport, error) {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.LoadHealth",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.backend", "redis"),
		),
	)
	defer span.End()

	var raw map[string]string
	err := s.execute(ctx, "load_health", func(ctx context.Context) error {
		val, getErr := s.client.HGetAll(ctx, s.healthKey).Result()
		if getErr != nil {
			return getErr
		}
		raw = val
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, err
	}

	reports := make([]HealthReport, 0, len(raw))
	for instance, payload := range raw {
		var report HealthReport
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			s.logger.Warn("skipping corrupt health report",
				observability.String("instance", instance),
				observability.Error(err),
			)
			continue
		}
		reports = append(reports, report)
	}

	span.SetAttributes(attribute.Int("store.instances", len(reports)))
	return reports, nil
}

// Close closes the Redis client.
func (s *redisStore) Close() error {
	return s.client.Close()
}

// execute runs a store operation through the circuit breaker and retry
// policy, recording metrics.
func (s *redisStore) execute(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	defer func() {
		RecordOperationDuration(op, time.Since(start))
	}()

	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		retryErr := retry.Do(ctx, redisRetryConfig(), func() error {
			return fn(ctx)
		}, &retry.Options{
			ShouldRetry: isRetryableRedisError,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				s.logger.Debug("retrying store operation",
					observability.String("op", op),
					observability.Int("attempt", attempt),
				)
			},
		})
		// A missing hash field is a lookup result, not a store failure.
		if errors.Is(retryErr, redis.Nil) {
			return redis.Nil, nil
		}
		return nil, retryErr
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		RecordOperation(op, "unavailable")
		return fmt.Errorf("%w: %s", ErrUnavailable, op)
	}
	if err != nil {
		RecordOperation(op, "error")
		return err
	}

	RecordOperation(op, "ok")
	// Propagate the not-found sentinel without counting it against the
	// breaker.
	if sentinel, ok := result.(error); ok {
		return sentinel
	}
	return nil
}
