package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docqa-workers/internal/answers"
	"docqa-workers/internal/common/camunda"
	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/database"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/common/observability"
	"docqa-workers/internal/retrieval"
	"docqa-workers/internal/tasks"
)

// runtime owns every long-lived client so shutdown can release them in one
// place.
type runtime struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
	obs    *observability.Observability

	zeebe *camunda.Client
	pg    *database.PostgresClient
	redis *database.RedisClient
	es    *database.ElasticsearchClient

	queue   *tasks.Queue
	workers []*camunda.CamundaWorker
}

// connectStores opens Postgres, Redis and Elasticsearch when configured.
// Postgres and Redis are optional; Elasticsearch is required by the
// elasticsearch retrieval backend.
func (rt *runtime) connectStores(ctx context.Context) error {
	db := rt.cfg.Database

	if db.Postgres.Host != "" {
		err := retryWithBackoff(func() error {
			var err error
			rt.pg, err = database.NewPostgres(db.Postgres)
			if err != nil {
				return err
			}
			return rt.pg.Ping(ctx)
		}, 15, 2*time.Second, rt.zapLog, "PostgreSQL connection")
		if err != nil {
			return err
		}
		if err := answers.NewPostgresStore(rt.pg.DB).EnsureSchema(ctx); err != nil {
			return err
		}
		rt.zapLog.Info("PostgreSQL connected successfully")
	}

	if db.Redis.Address != "" {
		err := retryWithBackoff(func() error {
			var err error
			rt.redis, err = database.NewRedis(db.Redis)
			if err != nil {
				return err
			}
			return rt.redis.Ping(ctx)
		}, 10, 2*time.Second, rt.zapLog, "Redis connection")
		if err != nil {
			return err
		}
		rt.zapLog.Info("Redis connected successfully")
	}

	if rt.cfg.Retrieval.Backend == "elasticsearch" {
		err := retryWithBackoff(func() error {
			var err error
			rt.es, err = database.NewElasticsearch(db.Elasticsearch)
			if err != nil {
				return err
			}
			return rt.es.Ping(ctx)
		}, 15, 2*time.Second, rt.zapLog, "Elasticsearch connection")
		if err != nil {
			return err
		}
		rt.zapLog.Info("Elasticsearch connected successfully")
	}
	return nil
}

// buildIndex selects the retrieval backend and puts the Redis cache in front
// of it when enabled.
func (rt *runtime) buildIndex(ctx context.Context) (retrieval.Index, error) {
	var index retrieval.Index

	switch rt.cfg.Retrieval.Backend {
	case "elasticsearch":
		es := retrieval.NewElasticsearch(rt.es, rt.log)
		if err := es.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		index = es
	default:
		mem := retrieval.NewMemory()
		if path := rt.cfg.Retrieval.CorpusPath; path != "" {
			docs, err := retrieval.LoadCorpus(path)
			if err != nil {
				return nil, fmt.Errorf("load corpus %s: %w", path, err)
			}
			for _, doc := range docs {
				mem.AddDocument(doc)
			}
			rt.zapLog.Info("Corpus loaded", zap.String("path", path), zap.Int("documents", len(docs)))
		}
		index = mem
	}

	if rt.cfg.Retrieval.CacheEnabled && rt.redis != nil {
		index = retrieval.NewCached(index, rt.redis.Client, config.GetDuration(rt.cfg.Retrieval.CacheTTL), rt.log)
	}
	return index, nil
}

func (rt *runtime) register(taskType string, build func(config.WorkerConfig) camunda.JobHandler) {
	if !config.IsWorkerEnabled(rt.cfg, taskType) {
		rt.zapLog.Info("worker disabled", zap.String("taskType", taskType))
		return
	}
	wcfg := config.GetWorkerConfig(rt.cfg, taskType)
	w := camunda.NewWorker(rt.zeebe.GetClient(), taskType, wcfg, build(wcfg), rt.zapLog)
	rt.workers = append(rt.workers, w)
}

func (rt *runtime) stopWorkers() {
	for _, w := range rt.workers {
		w.Stop()
	}
}

func (rt *runtime) healthServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := rt.readiness(r.Context())
		status, code := "ready", http.StatusOK
		for _, result := range checks {
			if result != "ok" {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}
		writeStatus(w, code, map[string]interface{}{
			"status": status,
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func (rt *runtime) readiness(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	record := func(name string, err error) {
		if err != nil {
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}

	if rt.zeebe != nil {
		record("zeebe", rt.zeebe.HealthCheck(ctx))
	}
	if rt.pg != nil {
		record("postgres", rt.pg.Ping(ctx))
	}
	if rt.redis != nil {
		record("redis", rt.redis.Ping(ctx))
	}
	if rt.es != nil {
		record("elasticsearch", rt.es.Ping(ctx))
	}
	return checks
}

func writeStatus(w http.ResponseWriter, code int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func (rt *runtime) close() {
	if rt.zeebe != nil {
		if err := rt.zeebe.Close(); err != nil {
			rt.zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.pg != nil {
		_ = rt.pg.Close()
	}
}
