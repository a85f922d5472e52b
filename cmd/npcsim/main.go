// Command npcsim runs the NPC decision fleet against a sandbox world.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/calder-games/npcmind/internal/agent"
	"github.com/calder-games/npcmind/internal/api"
	"github.com/calder-games/npcmind/internal/config"
	"github.com/calder-games/npcmind/internal/emotion"
	"github.com/calder-games/npcmind/internal/fleet"
	"github.com/calder-games/npcmind/internal/memory"
	"github.com/calder-games/npcmind/internal/persistence"
	"github.com/calder-games/npcmind/internal/sandbox"
	"github.com/calder-games/npcmind/internal/tactics"
)

const framePeriod = 100 * time.Millisecond

func main() {
	var (
		configPath = flag.String("config", "", "path to config YAML (embedded defaults if empty)")
		dbPath     = flag.String("db", "data/npcmind.db", "path to the memory archive database")
		seed       = flag.Int64("seed", 42, "world and personality seed")
		population = flag.Int("population", 40, "creatures to spawn")
		genPeriod  = flag.Duration("generation", 5*time.Minute, "interval between memory generation saves")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("npcmind — NPC decision fleet")

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// ── Memory archive ───────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(*dbPath), 0755)
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("memory archive opened", "path", *dbPath)

	store := memory.NewStore(db, memory.Options{
		MaxPerType:      cfg.Memory.MaxPerType,
		FusionThreshold: cfg.Memory.FusionThreshold,
		RelevanceFloor:  cfg.Memory.RelevanceFloor,
		Rand:            rand.New(rand.NewSource(*seed)),
	})

	// ── Emotional layer and fleet ────────────────────────────────────
	emotions := emotion.NewLayer(emotion.Options{
		BaseDuration:  cfg.Emotion.BaseDuration,
		ResidualAtEnd: cfg.Emotion.ResidualAtEnd,
		MaxPerAgent:   cfg.Emotion.MaxPerAgent,
		TraumaGate:    cfg.Emotion.TraumaGate,
	}, logger)

	mgr := fleet.NewManager(fleet.Options{
		Config:   cfg.Fleet,
		Decision: cfg.Decision,
		Log:      logger,
		Rng:      rand.New(rand.NewSource(*seed)),
		Emotions: emotions,
		Memories: store,
		Advisor:  tactics.NewHeuristicAdvisor(),
	})
	mgr.SetFocus(0, 0)

	// ── Sandbox world ────────────────────────────────────────────────
	world := sandbox.NewWorld(sandbox.Options{
		Seed:     *seed,
		Log:      logger,
		Fleet:    mgr,
		Emotions: emotions,
		Memories: store,
	})
	spawned := spawnPopulation(world, *population)
	slog.Info("world populated", "creatures", spawned,
		"memory_generation", store.Statistics().Generation)

	// ── HTTP API ─────────────────────────────────────────────────────
	adminKey := os.Getenv("NPCMIND_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("NPCMIND_ADMIN_KEY not set — admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Fleet:    mgr,
		Memories: store,
		Emotions: emotions,
		Port:     cfg.API.Port,
		AdminKey: adminKey,
	}
	apiServer.Start()

	// ── Run ──────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("\n%d creatures thinking. API: http://localhost:%d/api/v1/status\n",
		spawned, cfg.API.Port)
	fmt.Println("Running... (Ctrl+C to stop)")

	frame := time.NewTicker(framePeriod)
	defer frame.Stop()
	genTicker := time.NewTicker(*genPeriod)
	defer genTicker.Stop()

	running := true
	for running {
		select {
		case <-frame.C:
			world.Step()
			mgr.Tick()
			apiServer.Publish()
		case <-genTicker.C:
			saveGeneration(store, world, spawned)
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			running = false
		}
	}

	// Final generation save on shutdown.
	saveGeneration(store, world, spawned)
	fmt.Println("Simulation stopped. Memories archived.")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

// spawnPopulation fills the world with two factions, promoting every tenth
// creature to elite and the first of each faction to boss.
func spawnPopulation(world *sandbox.World, n int) int {
	factions := []string{"wolves", "deer"}
	spawned := 0
	for i := 0; i < n; i++ {
		faction := factions[i%len(factions)]
		rank := agent.RankNormal
		level := 1 + i%5
		switch {
		case i < len(factions):
			rank = agent.RankBoss
			level = 8
		case i%10 == 0:
			rank = agent.RankElite
			level = 5
		}
		name := fmt.Sprintf("%s-%d", faction, i)
		if _, err := world.Spawn(name, faction, rank, level); err != nil {
			slog.Error("spawn failed", "name", name, "error", err)
			continue
		}
		spawned++
	}
	return spawned
}

func saveGeneration(store *memory.Store, world *sandbox.World, spawned int) {
	survival := 0.0
	if spawned > 0 {
		survival = float64(world.Alive()) / float64(spawned)
	}
	if err := store.AdvanceGeneration(survival, nil); err != nil {
		slog.Error("generation save failed", "error", err)
		return
	}
	slog.Info("memory generation saved",
		"generation", store.Statistics().Generation,
		"survival_rate", fmt.Sprintf("%.2f", survival))
}
