package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/identity-engine/internal/embedding"
	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/orchestrator"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to identity.db")
	user := flag.String("user", "", "user ID to inspect")
	versions := flag.Bool("versions", false, "list version snapshots")
	personas := flag.Bool("personas", false, "list personas")
	jobsFlag := flag.Int("jobs", 0, "show N most recent sync jobs")
	jsonOut := flag.Bool("json", false, "output as JSON instead of text")
	flag.Parse()

	if *dbPath == "" || *user == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/identity.db --user id [--versions] [--personas] [--jobs N] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(store, *user, *versions, *personas, *jobsFlag, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(store *state.Store, user string, versions, personas bool, jobs int, jsonOut bool) error {
	st, err := store.GetByUser(user)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(buildReport(store, st, versions, personas, jobs))
	}

	printState(st)
	if versions {
		snaps, err := store.ListSnapshots(st.ID, "")
		if err != nil {
			return err
		}
		printSnapshots(snaps)
	}
	if personas {
		list, err := store.ListPersonas(st.ID)
		if err != nil {
			return err
		}
		printPersonas(list)
	}
	if jobs > 0 {
		joblog, err := orchestrator.NewJobLog(store.DB())
		if err != nil {
			return err
		}
		recent, err := joblog.ListRecent(user, jobs)
		if err != nil {
			return err
		}
		printJobs(recent)
	}
	return nil
}

// #endregion main

// #region report

type report struct {
	State     identity.IdentityState     `json:"state"`
	Snapshots []identity.VersionSnapshot `json:"snapshots,omitempty"`
	Personas  []identity.Persona         `json:"personas,omitempty"`
	Jobs      []orchestrator.SyncJob     `json:"jobs,omitempty"`
}

func buildReport(store *state.Store, st identity.IdentityState, versions, personas bool, jobs int) report {
	out := report{State: st}
	if versions {
		out.Snapshots, _ = store.ListSnapshots(st.ID, "")
	}
	if personas {
		out.Personas, _ = store.ListPersonas(st.ID)
	}
	if jobs > 0 {
		if joblog, err := orchestrator.NewJobLog(store.DB()); err == nil {
			out.Jobs, _ = joblog.ListRecent(st.UserID, jobs)
		}
	}
	return out
}

// #endregion report

// #region output

func printState(st identity.IdentityState) {
	fmt.Printf("State:      %s\n", st.ID)
	fmt.Printf("User:       %s\n", st.UserID)
	fmt.Printf("Version:    %d\n", st.CurrentVersion)
	fmt.Printf("Sync:       %s\n", st.SyncStatus)
	fmt.Printf("Completion: %.0f%%\n", identity.CompletionScore(st.Core))
	fmt.Printf("Updated:    %s\n", st.UpdatedAt.Format("2006-01-02T15:04:05Z"))

	if st.Core.Name != "" {
		fmt.Printf("Name:       %s\n", st.Core.Name)
	}
	if st.Core.Occupation != "" {
		fmt.Printf("Occupation: %s\n", st.Core.Occupation)
	}
	if len(st.IdentityEmbedding) > 0 && len(st.ContentEmbedding) > 0 {
		sim := embedding.CosineSimilarity(st.IdentityEmbedding, st.ContentEmbedding)
		fmt.Printf("Embeddings: %d-dim, identity/content similarity %.4f\n",
			len(st.IdentityEmbedding), sim)
	}

	pm := st.Learning.PerformanceMetrics
	fmt.Printf("Learning:   %d entries, avg %.2f (%d+ / %d-)\n",
		len(st.Learning.FeedbackHistory), pm.AverageScore, pm.PositiveRatings, pm.NegativeRatings)
}

func printSnapshots(snaps []identity.VersionSnapshot) {
	fmt.Printf("\nSnapshots (%d):\n", len(snaps))
	for _, snap := range snaps {
		name := snap.SnapshotName
		if name == "" {
			name = "—"
		}
		fmt.Printf("  v%-4d %-6s %-20s %s\n",
			snap.VersionNumber, snap.VersionType, name, snap.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
}

func printPersonas(list []identity.Persona) {
	fmt.Printf("\nPersonas (%d):\n", len(list))
	for _, p := range list {
		active := " "
		if p.IsActive {
			active = "*"
		}
		fmt.Printf("  %s %-14s formality=%-8s excluded=%d\n",
			active, p.Name, p.Rules.Formality, len(p.Rules.ExcludedTopics))
	}
}

func printJobs(jobs []orchestrator.SyncJob) {
	fmt.Printf("\nSync jobs (%d):\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("  %s %-10s %s\n", shortID(job.ID), job.Status, job.StartedAt.Format("2006-01-02T15:04:05Z"))
		for name, res := range job.Results {
			fmt.Printf("      %-10s %-10s items=%d\n", name, res.Status, res.ItemsProcessed)
		}
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

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
