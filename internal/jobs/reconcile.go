package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/corpusworks/corpusd/internal/service"
)

// ReconcileRepository exposes the chunk store operations the reconciler needs.
type ReconcileRepository interface {
	FindDuplicateSources(ctx context.Context) ([]*service.DuplicateSource, error)
	DeleteByDocID(ctx context.Context, docID string) (int, error)
}

// Reconciler heals the replace crash window: when an ingest wrote a new
// document but died before deleting the old one, a (source, library) pair
// maps to several documents. The reconciler keeps the newest and drops the
// rest.
type Reconciler struct {
	repo ReconcileRepository
}

// NewReconciler creates a new Reconciler instance
func NewReconciler(repo ReconcileRepository) *Reconciler {
	return &Reconciler{repo: repo}
}

// Name implements Job.
func (r *Reconciler) Name() string { return "reconcile" }

// RunOnce runs one reconciliation sweep.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	duplicates, err := r.repo.FindDuplicateSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to find duplicate sources: %w", err)
	}

	for _, dup := range duplicates {
		// DocIDs are newest first; index 0 stays.
		for _, docID := range dup.DocIDs[1:] {
			deleted, err := r.repo.DeleteByDocID(ctx, docID)
			if err != nil {
				log.Printf("reconcile: failed to delete stale document %s for %s: %v", docID, dup.Source, err)
				continue
			}
			log.Printf("reconcile: removed stale document %s (%d chunks) for %s in library %s", docID, deleted, dup.Source, dup.Library)
		}
	}

	return nil
}
