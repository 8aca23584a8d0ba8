// Command deliberate runs the multi-agent discussion engine: it wires
// configuration, storage, the rate-limit-gated model, and the worker
// supervisor together, optionally submits one task, and blocks until
// told to stop.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/queenbee-sre/deliberate/pkg/config"
	"github.com/queenbee-sre/deliberate/pkg/discussion"
	"github.com/queenbee-sre/deliberate/pkg/llm"
	"github.com/queenbee-sre/deliberate/pkg/store"
	"github.com/queenbee-sre/deliberate/pkg/worker"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./config"), "Path to configuration directory")
	session := flag.String("session", "", "Session ID to submit a task under (requires -question)")
	question := flag.String("question", "", "Question to submit for deliberation; if set, deliberate runs it and exits")
	maxRounds := flag.Int("max-rounds", 0, "Override max_rounds for the submitted task (0 uses config default)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	var taskStore store.TaskStore
	var rateLimitStore llm.RateLimitStore
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pg, err := store.NewPostgres(ctx, dsn)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pg.Close()
		taskStore, rateLimitStore = pg, pg
		log.Println("using postgres task store")
	} else {
		mem := store.NewMemory()
		taskStore, rateLimitStore = mem, mem
		log.Println("using in-memory task store (set DATABASE_URL for postgres)")
	}

	model := buildModel(cfg, rateLimitStore)
	engine := discussion.NewEngine(taskStore, model, cfg, slog.Default())
	supervisor := worker.NewWorkerSupervisor(taskStore, engine, slog.Default())

	if *question != "" {
		runOneTask(ctx, taskStore, supervisor, *session, *question, *maxRounds)
		return
	}

	log.Println("deliberate supervisor running; send SIGINT/SIGTERM to stop")
	<-ctx.Done()
	supervisor.StopAll()
}

// buildModel assembles the rate-limit-gated Model the engine calls. This
// repository ships no concrete provider HTTP client (out of scope); echoModel
// stands in as a deterministic placeholder so the wiring is exercised without
// a network dependency. Production deployments supply a real llm.Model here.
func buildModel(cfg *config.Config, rateLimitStore llm.RateLimitStore) llm.Model {
	coord := llm.NewCoordinator(cfg.OpenRouter.RequestsPerMinute, cfg.OpenRouter.MaxRetries, cfg.OpenRouter.RetryDelay, rateLimitStore)
	return llm.RateLimited(echoModel{}, coord, "local", "echo")
}

// echoModel is a minimal deterministic Model: it always passes, so a
// discussion invoked against it terminates quickly via the all-passed
// condition without producing a misleading synthetic answer.
type echoModel struct{}

func (echoModel) Generate(_ context.Context, _ llm.Request) (string, error) {
	return "PASS", nil
}

func runOneTask(ctx context.Context, taskStore store.TaskStore, supervisor *worker.WorkerSupervisor, session, question string, maxRounds int) {
	if session == "" {
		session = "cli"
	}
	taskID, err := taskStore.Create(ctx, session, "cli", "engine", store.Description{
		Input:     question,
		MaxRounds: maxRounds,
	})
	if err != nil {
		log.Fatalf("failed to submit task: %v", err)
	}

	supervisor.Start(ctx, session)
	defer supervisor.Stop(session)

	for {
		task, err := taskStore.Get(ctx, taskID)
		if err != nil {
			log.Fatalf("failed to poll task: %v", err)
		}
		if task.Status == store.StatusCompleted || task.Status == store.StatusFailed {
			printResult(task)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func printResult(task *store.TaskRecord) {
	var pretty map[string]any
	if err := json.Unmarshal([]byte(task.Result), &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Println(task.Result)
}
