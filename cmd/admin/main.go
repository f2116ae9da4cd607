// Command admin provides operational tooling for a recipebox deployment:
// reconciling leaked blob store assets and inspecting storage state.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/platefork/recipebox/pkg/recipebox"
	"github.com/platefork/recipebox/pkg/recipebox/config"
	"github.com/platefork/recipebox/pkg/recipebox/reconcile"
)

var (
	dryRun     bool
	jsonOutput bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "admin",
		Short: "Operational tooling for recipebox",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Delete blob store assets no record references",
		Long: `Scans the asset folders and compares their contents against the
references held by user and recipe records. Assets nothing references are
leaks from failed cleanup and are deleted; --dry-run only reports them.`,
		RunE: runReconcile,
	}
	reconcileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report leaked assets without deleting them")
	reconcileCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored asset counts per folder",
		RunE:  runStats,
	}
	statsCmd.Flags().BoolVar(&jsonOutput, "json", false, "print stats as JSON")

	rootCmd.AddCommand(reconcileCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildStack(ctx context.Context) (recipebox.Repository, recipebox.BlobStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	repo, err := cfg.BuildRepository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := cfg.BuildBlobStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	return repo, store, nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, store, err := buildStack(ctx)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	reconciler := reconcile.New(repo, store,
		reconcile.WithDryRun(dryRun),
		reconcile.WithLogger(logger))

	report, err := reconciler.Run(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(report)
	}

	fmt.Printf("scanned: %d\n", report.Scanned)
	fmt.Printf("leaked:  %d\n", len(report.Leaked))
	for _, ref := range report.Leaked {
		fmt.Printf("  %s\n", ref)
	}
	if dryRun {
		fmt.Println("dry run: nothing deleted")
	} else {
		fmt.Printf("deleted: %d\n", report.Deleted)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, store, err := buildStack(ctx)
	if err != nil {
		return err
	}

	referenced, err := repo.ListAssetRefs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list referenced assets: %w", err)
	}

	stats := struct {
		Referenced int            `json:"referenced"`
		Stored     map[string]int `json:"stored"`
	}{
		Referenced: len(referenced),
		Stored:     make(map[string]int),
	}

	for _, folder := range []string{recipebox.FolderUserImages, recipebox.FolderRecipeImages} {
		refs, err := store.List(ctx, folder)
		if err != nil {
			return fmt.Errorf("failed to list folder %s: %w", folder, err)
		}
		stats.Stored[folder] = len(refs)
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(stats)
	}

	fmt.Printf("referenced assets: %d\n", stats.Referenced)
	for folder, count := range stats.Stored {
		fmt.Printf("%s: %d stored\n", folder, count)
	}
	return nil
}
