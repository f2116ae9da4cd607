// Package reconcile sweeps the blob store for assets no relational record
// references anymore. Cleanup after a commit is best effort, so failed
// deletes leak blobs; this is the offline path that reclaims them.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/platefork/recipebox/pkg/recipebox"
)

// Report summarizes a reconciliation run.
type Report struct {
	Scanned int      `json:"scanned"`
	Leaked  []string `json:"leaked"`
	Deleted int      `json:"deleted"`
}

// Reconciler compares blob store contents against the refs the repository
// still holds and deletes the difference.
type Reconciler struct {
	repo    recipebox.Repository
	store   recipebox.BlobStore
	folders []string
	dryRun  bool
	logger  *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithFolders overrides the folders to scan.
func WithFolders(folders ...string) Option {
	return func(r *Reconciler) { r.folders = folders }
}

// WithDryRun reports leaked refs without deleting them.
func WithDryRun(dryRun bool) Option {
	return func(r *Reconciler) { r.dryRun = dryRun }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// New creates a Reconciler over the given repository and blob store.
func New(repo recipebox.Repository, store recipebox.BlobStore, options ...Option) *Reconciler {
	r := &Reconciler{
		repo:    repo,
		store:   store,
		folders: []string{recipebox.FolderUserImages, recipebox.FolderRecipeImages},
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Run scans the configured folders and deletes every blob the repository no
// longer references. Callers should run this while writes are quiet, or
// accept that a blob uploaded mid-scan can look leaked before its record
// commits.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	referenced, err := r.repo.ListAssetRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list referenced assets: %w", err)
	}

	refSet := make(map[string]struct{}, len(referenced))
	for _, ref := range referenced {
		refSet[ref] = struct{}{}
	}

	report := &Report{}
	for _, folder := range r.folders {
		stored, err := r.store.List(ctx, folder)
		if err != nil {
			return nil, fmt.Errorf("failed to list folder %s: %w", folder, err)
		}
		report.Scanned += len(stored)
		for _, ref := range stored {
			if _, ok := refSet[ref]; !ok {
				report.Leaked = append(report.Leaked, ref)
			}
		}
	}

	if len(report.Leaked) == 0 {
		r.logger.Info("reconcile: no leaked assets", "scanned", report.Scanned)
		return report, nil
	}

	if r.dryRun {
		r.logger.Info("reconcile: dry run",
			"scanned", report.Scanned, "leaked", len(report.Leaked))
		return report, nil
	}

	if err := r.store.Delete(ctx, report.Leaked); err != nil {
		return report, fmt.Errorf("failed to delete leaked assets: %w", err)
	}
	report.Deleted = len(report.Leaked)

	r.logger.Info("reconcile: deleted leaked assets",
		"scanned", report.Scanned, "deleted", report.Deleted)
	return report, nil
}
