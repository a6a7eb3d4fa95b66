package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/scigraph/engine/internal/agents"
	"github.com/scigraph/engine/internal/aggregate"
	"github.com/scigraph/engine/internal/breaker"
	"github.com/scigraph/engine/internal/cache"
	"github.com/scigraph/engine/internal/config"
	"github.com/scigraph/engine/internal/embedclient"
	"github.com/scigraph/engine/internal/embedding"
	"github.com/scigraph/engine/internal/eventbus"
	"github.com/scigraph/engine/internal/eventbus/wsbridge"
	"github.com/scigraph/engine/internal/extract/problem"
	"github.com/scigraph/engine/internal/graph/neo4jrepo"
	"github.com/scigraph/engine/internal/httpapi"
	"github.com/scigraph/engine/internal/importer"
	"github.com/scigraph/engine/internal/llmclient"
	"github.com/scigraph/engine/internal/logging"
	"github.com/scigraph/engine/internal/match"
	matchworkflow "github.com/scigraph/engine/internal/match/workflow"
	"github.com/scigraph/engine/internal/match/workflow/llmdebate"
	"github.com/scigraph/engine/internal/metrics"
	"github.com/scigraph/engine/internal/ratelimit"
	"github.com/scigraph/engine/internal/retry"
	"github.com/scigraph/engine/internal/review"
	"github.com/scigraph/engine/internal/sandbox"
	"github.com/scigraph/engine/internal/sources"
	"github.com/scigraph/engine/internal/sources/arxiv"
	"github.com/scigraph/engine/internal/sources/openalex"
	"github.com/scigraph/engine/internal/sources/s2"
	"github.com/scigraph/engine/internal/workflow"
	"github.com/scigraph/engine/internal/workflow/store"

	"github.com/go-redis/redis/v8"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("load config: %v", err)
		os.Exit(2)
	}

	log0 := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: "stdout"})

	metrics.Init("engine-server")

	rootCtx := context.Background()

	repo, err := neo4jrepo.New(rootCtx, cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.Database)
	if err != nil {
		log0.WithField("error", err).Fatal("connect to graph store")
	}
	defer repo.Close(rootCtx)

	llmClient := llmclient.New(os.Getenv("LLM_API_KEY"), orDefault(os.Getenv("LLM_MODEL"), "gpt-4o-mini"), os.Getenv("LLM_BASE_URL"))
	embedProvider := embedclient.New(cfg.Embedding.APIKey, cfg.Embedding.Model)
	embeddingSvc := embedding.New(embedProvider, cfg.Embedding.BatchSize, retry.DefaultPolicy(), log0)

	responseCache := cache.New(cfg.Cache.MaxSize)
	breakers := breaker.NewRegistry()
	limiters := ratelimit.NewRegistry()
	srcDeps := sources.Deps{Breakers: breakers, Limiters: limiters, Cache: responseCache, Log: log0}

	aggSources := aggregate.Sources{
		S2:       s2.New(srcDeps, os.Getenv("S2_API_KEY"), breakerCfg(cfg), rateLimitCfg(cfg.RateLimit, "s2")),
		Arxiv:    arxiv.New(srcDeps, breakerCfg(cfg), rateLimitCfg(cfg.RateLimit, "arxiv")),
		OpenAlex: openalex.New(srcDeps, orDefault(os.Getenv("OPENALEX_MAILTO"), "engine@scigraph.example"), breakerCfg(cfg), rateLimitCfg(cfg.RateLimit, "openalex")),
	}
	aggregator := aggregate.New(aggSources, 3, log0)
	paperImporter := importer.New(repo, log0)
	problemExtractor := problem.New(llmClient, problem.DefaultConfig())

	var reviewQueue *review.Queue
	if strings.TrimSpace(cfg.ReviewQueue.Addr) != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.ReviewQueue.Addr, Password: cfg.ReviewQueue.Password, DB: cfg.ReviewQueue.DB})
		if err := rdb.Ping(rootCtx).Err(); err != nil {
			log0.WithField("error", err).Warn("review queue redis unreachable; review endpoints degrade to errors")
		} else {
			reviewQueue = review.New(rdb, repo)
		}
	}

	matcher := match.New(repo, 5)
	matchEngine := matchworkflow.New(
		matcher, repo,
		llmdebate.NewMaker(llmClient), llmdebate.NewHater(llmClient),
		llmdebate.NewArbiter(llmClient), llmdebate.NewEvaluator(llmClient),
		reviewQueueOrNil(reviewQueue),
	)

	sandboxRunner := buildSandboxRunner(cfg.Sandbox)

	agentDeps := agents.Deps{LLM: llmClient, Repo: repo, Sandbox: sandboxRunner}
	ranker := agents.NewRanker(agentDeps)
	continuer := agents.NewContinuer(agentDeps)
	evaluator := agents.NewEvaluator(agentDeps)
	synthesizer := agents.NewSynthesizer(agentDeps, log0)

	bus := eventbus.New(log0)
	bridge := wsbridge.New(log0)
	bus.Subscribe(bridge.HandleEvent)

	workflowStore, closeStore := buildWorkflowStore(rootCtx, cfg.Workflow, log0)
	if closeStore != nil {
		defer closeStore()
	}

	workflowEngine := workflow.New(workflow.Deps{
		Ranker: ranker, Continuer: continuer, Evaluator: evaluator, Synthesizer: synthesizer,
		Repo: repo, Store: workflowStore, Bus: bus, Log: log0, Checkpoints: cfg.Checkpoint,
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Repo:             repo,
		Aggregator:       aggregator,
		Importer:         paperImporter,
		ProblemExtractor: problemExtractor,
		Embedding:        embeddingSvc,
		Matcher:          matcher,
		MatchEngine:      matchEngine,
		ReviewQueue:      reviewQueue,
		Workflow:         workflowEngine,
		WSBridge:         bridge,
		Metrics:          metrics.Global(),
		Log:              log0,
	})

	listenAddr := determineAddr(*addr, cfg)
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log0.WithField("addr", listenAddr).Info("engine-server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log0.WithField("error", err).Fatal("http server")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log0.WithField("error", err).Fatal("graceful shutdown")
	}
}

func determineAddr(flagAddr string, cfg *config.Config) string {
	if a := strings.TrimSpace(flagAddr); a != "" {
		return a
	}
	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func breakerCfg(cfg *config.Config) breaker.Config {
	return breaker.Config{
		FailureThreshold: cfg.Circuit.FailureThreshold,
		SuccessThreshold: cfg.Circuit.SuccessThreshold,
		Cooldown:         cfg.Circuit.Cooldown,
	}
}

func rateLimitCfg(cfg config.RateLimitConfig, source string) ratelimit.Config {
	rl := cfg.Sources[source]
	return ratelimit.Config{RequestsPerSecond: rl.RequestsPerSecond, BurstMultiplier: rl.BurstMultiplier}
}

func buildSandboxRunner(cfg config.SandboxConfig) sandbox.Runner {
	if strings.TrimSpace(os.Getenv("SANDBOX_USE_GOJA")) == "true" {
		return sandbox.NewGojaRunner(cfg.Timeout)
	}
	return sandbox.NewProcessRunner(sandbox.Config{
		Interpreter:     cfg.Interpreter,
		Timeout:         cfg.Timeout,
		MemoryBytes:     cfg.MemoryBytes,
		CPUCores:        cfg.CPUCores,
		NetworkDisabled: cfg.NetworkDisabled,
		ReadOnlyRoot:    cfg.ReadOnlyRoot,
		WorkDir:         cfg.WorkDir,
	})
}

func buildWorkflowStore(ctx context.Context, cfg config.WorkflowStoreConfig, log0 *logging.Logger) (workflow.Store, func()) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		log0.Warn("WORKFLOW_DB_DSN not set; workflow runs will not survive a restart")
		return newMemStore(), nil
	}
	pgStore, err := store.Open(ctx, dsn)
	if err != nil {
		log0.WithField("error", err).Fatal("open workflow store")
	}
	return pgStore, func() { pgStore.Close() }
}

// reviewQueueOrNil avoids handing matchworkflow.New a typed-nil
// *review.Queue wrapped in a non-nil ReviewQueue interface, which would
// make the engine's nil check pass and panic on first Enqueue call.
func reviewQueueOrNil(q *review.Queue) matchworkflow.ReviewQueue {
	if q == nil {
		return nil
	}
	return q
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// memStore is a process-local fallback used only when no durable workflow
// database is configured; restarting the server loses every in-flight run.
type memStore struct {
	mu     sync.Mutex
	states map[workflow.RunID]workflow.State
}

func newMemStore() *memStore { return &memStore{states: make(map[workflow.RunID]workflow.State)} }

func (s *memStore) Save(ctx context.Context, state workflow.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.RunID] = state
	return nil
}

func (s *memStore) Load(ctx context.Context, id workflow.RunID) (workflow.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[id]
	return state, ok, nil
}

func (s *memStore) List(ctx context.Context) ([]workflow.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]workflow.State, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, state)
	}
	return out, nil
}
