package main

import (
	"context"
	"fmt"

	"sjsage522/dealworker/config"
	"sjsage522/dealworker/logger"
	"sjsage522/dealworker/services/cache"
	"sjsage522/dealworker/services/classifier"
	"sjsage522/dealworker/services/publisher"
	"sjsage522/dealworker/services/sink"
	"sjsage522/dealworker/services/store"
)

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher *publisher.RedisPublisher
	Store     *store.DB
	Sinks     *sink.Multi
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes the services enabled by the configuration
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	log := logger.Default
	services := &Services{}
	var sinks []sink.Sink

	// Initialize cache service
	if cfg.MemcacheAddr != "" {
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := cacheService.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache not reachable, dedupe will let records through")
		} else {
			log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
		services.Cache = cacheService
	}

	if cfg.OutputDir != "" {
		jsonSink, err := sink.NewJSONFileSink(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, jsonSink)
	}

	// Initialize publisher
	if cfg.RedisAddr != "" {
		services.Publisher = publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := services.Publisher.Ping(ctx); err != nil {
			services.Cleanup()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		sinks = append(sinks, sink.NewStreamSink(services.Publisher))

		log.Info().
			Str("addr", cfg.RedisAddr).
			Int("db", cfg.RedisDB).
			Str("stream", cfg.RedisStream).
			Msg("Connected to Redis")
	}

	if cfg.AnomalySinkEnabled() {
		db, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			services.Cleanup()
			return nil, err
		}
		services.Store = db
		if err := db.EnsureSchema(ctx); err != nil {
			services.Cleanup()
			return nil, err
		}

		var alerts publisher.Publisher
		if services.Publisher != nil {
			alerts = services.Publisher
		}
		client := classifier.NewClient(cfg.ClassifyURL, cfg.AnomalyURL)
		sinks = append(sinks, sink.NewAnomalySink(client, db, alerts))
		log.Info().Msg("Anomaly sink enabled")
	}

	if len(sinks) == 0 {
		services.Cleanup()
		return nil, fmt.Errorf("no sink configured: set OUTPUT_DIR, REDIS_ADDR or the anomaly sink variables")
	}
	services.Sinks = sink.NewMulti(sinks...)

	log.Info().Int("sinks", services.Sinks.Len()).Msg("Services initialized")
	return services, nil
}
