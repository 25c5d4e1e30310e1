package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/danielpatrickdp/identity-engine/internal/config"
	"github.com/danielpatrickdp/identity-engine/internal/embedding"
	"github.com/danielpatrickdp/identity-engine/internal/embedding/mock"
	"github.com/danielpatrickdp/identity-engine/internal/fault"
	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/learning"
	"github.com/danielpatrickdp/identity-engine/internal/modules"
	"github.com/danielpatrickdp/identity-engine/internal/orchestrator"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

// #region main

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	embedder, err := embedding.NewCachedEmbedder(mock.New(identity.EmbeddingDim), cfg.EmbedCacheMB<<20)
	if err != nil {
		log.Fatalf("embed cache: %v", err)
	}
	refresher := embedding.NewRefresher(store, embedder)

	registry := orchestrator.NewRegistry()
	if err := modules.RegisterAll(registry, store, refresher); err != nil {
		log.Fatalf("register modules: %v", err)
	}
	jobs, err := orchestrator.NewJobLog(store.DB())
	if err != nil {
		log.Fatalf("job log: %v", err)
	}
	orch := orchestrator.New(store, registry, jobs)
	engine := learning.NewEngine(store)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.DecayRefreshCron, func() { refreshAllDecay(store, engine) }); err != nil {
		log.Fatalf("decay schedule %q: %v", cfg.DecayRefreshCron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				log.Printf("metrics listener: %v", err)
			}
		}()
	}

	fmt.Println("Identity Engine ready.")
	fmt.Printf("  DB: %s | Modules: %s\n", cfg.DBPath, strings.Join(registry.Names(), ", "))
	fmt.Println("Commands: create show core feedback insights sync retry snapshot versions rollback persona quit")

	repl(store, engine, orch, cfg)
}

// #endregion main

// #region repl

func repl(store *state.Store, engine *learning.Engine, orch *orchestrator.Orchestrator, cfg config.Config) {
	scanner := bufio.NewScanner(os.Stdin)
	lastJobs := make(map[string]orchestrator.SyncJob) // userID -> last sync job

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			break
		}
		if err := dispatch(store, engine, orch, cfg, lastJobs, cmd, args); err != nil {
			log.Printf("error: %v", err)
		}
	}
}

func dispatch(
	store *state.Store,
	engine *learning.Engine,
	orch *orchestrator.Orchestrator,
	cfg config.Config,
	lastJobs map[string]orchestrator.SyncJob,
	cmd string,
	args []string,
) error {
	switch cmd {
	case "create":
		if len(args) < 1 {
			return fmt.Errorf("usage: create <userID>")
		}
		st, err := store.Create(args[0], state.CreateInput{})
		if err != nil {
			return err
		}
		fmt.Printf("created state %s for %s\n", st.ID, st.UserID)
		return nil

	case "show":
		if len(args) < 1 {
			return fmt.Errorf("usage: show <userID>")
		}
		st, err := store.GetByUser(args[0])
		if err != nil {
			return err
		}
		return printJSON(st)

	case "core":
		if len(args) < 2 {
			return fmt.Errorf("usage: core <userID> <json>")
		}
		var partial identity.CoreAttributes
		if err := json.Unmarshal([]byte(strings.Join(args[1:], " ")), &partial); err != nil {
			return fmt.Errorf("parse core json: %w", err)
		}
		st, err := store.GetByUser(args[0])
		if err != nil {
			return err
		}
		updated, err := store.UpdateCoreAttributes(st.ID, partial)
		if err != nil {
			return err
		}
		fmt.Printf("version %d, completion %.0f%%\n",
			updated.CurrentVersion, identity.CompletionScore(updated.Core))
		return nil

	case "feedback":
		if len(args) < 2 {
			return fmt.Errorf("usage: feedback <userID> <positive|negative|neutral> [content text]")
		}
		st, err := store.GetByUser(args[0])
		if err != nil {
			return err
		}
		updated, err := engine.ProcessFeedback(st.ID, learning.Feedback{
			ContentID:   fmt.Sprintf("repl-%d", len(st.Learning.FeedbackHistory)+1),
			ContentType: "text",
			Rating:      identity.Rating(args[1]),
			ContentText: strings.Join(args[2:], " "),
		})
		if err != nil {
			return err
		}
		pm := updated.Learning.PerformanceMetrics
		fmt.Printf("history=%d avg=%.2f\n", len(updated.Learning.FeedbackHistory), pm.AverageScore)
		return nil

	case "insights":
		if len(args) < 1 {
			return fmt.Errorf("usage: insights <userID>")
		}
		st, err := store.GetByUser(args[0])
		if err != nil {
			return err
		}
		ins, err := engine.GetLearningInsights(st.ID)
		if err != nil {
			return err
		}
		return printJSON(ins)

	case "sync":
		if len(args) < 1 {
			return fmt.Errorf("usage: sync <userID> [modules...]")
		}
		job, err := orch.ExecuteModuleSync(context.Background(), args[0], orchestrator.Options{
			Modules:    args[1:],
			Timeout:    cfg.SyncTimeout,
			OnProgress: printProgress,
		})
		if err != nil {
			return err
		}
		lastJobs[args[0]] = job
		printJob(job)
		return nil

	case "retry":
		if len(args) < 1 {
			return fmt.Errorf("usage: retry <userID>")
		}
		job, ok := lastJobs[args[0]]
		if !ok {
			return fmt.Errorf("no sync job recorded for %s", args[0])
		}
		retried, err := orch.RetryFailedModules(context.Background(), job, orchestrator.Options{
			Timeout:    cfg.SyncTimeout,
			OnProgress: printProgress,
		})
		if err != nil {
			return err
		}
		lastJobs[args[0]] = retried
		printJob(retried)
		return nil

	case "snapshot":
		if len(args) < 2 {
			return fmt.Errorf("usage: snapshot <userID> <name>")
		}
		st, err := store.GetByUser(args[0])
		if err != nil {
			return err
		}
		id, err := store.CreateManualSnapshot(st.ID, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("snapshot %s\n", id)
		return nil

	case "versions":
		if len(args) < 1 {
			return fmt.Errorf("usage: versions <userID>")
		}
		st, err := store.GetByUser(args[0])
		if err != nil {
			return err
		}
		snaps, err := store.ListSnapshots(st.ID, "")
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			name := snap.SnapshotName
			if name == "" {
				name = "—"
			}
			fmt.Printf("  v%-4d %-6s %-20s %s\n",
				snap.VersionNumber, snap.VersionType, name, snap.CreatedAt.Format("2006-01-02T15:04:05Z"))
		}
		fmt.Printf("current version: %d\n", st.CurrentVersion)
		return nil

	case "rollback":
		if len(args) < 2 {
			return fmt.Errorf("usage: rollback <userID> <versionNumber>")
		}
		st, err := store.GetByUser(args[0])
		if err != nil {
			return err
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("parse version: %w", err)
		}
		updated, err := store.Rollback(st.ID, version)
		if err != nil {
			return err
		}
		fmt.Printf("rolled back to v%d, now at version %d\n", version, updated.CurrentVersion)
		return nil

	case "persona":
		if len(args) < 2 {
			return fmt.Errorf("usage: persona <userID> <name|off>")
		}
		st, err := store.GetByUser(args[0])
		if err != nil {
			return err
		}
		name := args[1]
		if name == "off" {
			name = ""
		}
		return store.SetPersonaActive(st.ID, name)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// #endregion repl

// #region output

func printProgress(p orchestrator.Progress) {
	if p.CurrentModule == "" {
		return
	}
	res := p.Results[p.CurrentModule]
	fmt.Printf("  [%d/%d] %-10s %s\n", p.Completed, p.Total, p.CurrentModule, res.Status)
}

func printJob(job orchestrator.SyncJob) {
	fmt.Printf("job %s: %s\n", job.ID, job.Status)
	for name, res := range job.Results {
		line := fmt.Sprintf("  %-10s %-10s items=%d", name, res.Status, res.ItemsProcessed)
		if res.Error != "" {
			line += " error=" + res.Error
		}
		fmt.Println(line)
	}
	if failed := job.FailedModules(); len(failed) > 0 {
		fmt.Printf("retry available for: %s\n", strings.Join(failed, ", "))
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output

// #region decay-refresh

// refreshAllDecay recomputes decay weights for every known state.
func refreshAllDecay(store *state.Store, engine *learning.Engine) {
	ids, err := store.ListStateIDs()
	if err != nil {
		log.Printf("[DECAY] list states: %v", err)
		return
	}
	refreshed := 0
	for _, id := range ids {
		if _, err := engine.RefreshDecay(id); err != nil {
			if !fault.IsNotFound(err) {
				log.Printf("[DECAY] state=%s: %v", id, err)
			}
			continue
		}
		refreshed++
	}
	log.Printf("[DECAY] refreshed %d/%d states", refreshed, len(ids))
}

// #endregion decay-refresh
