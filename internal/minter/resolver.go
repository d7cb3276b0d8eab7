package minter

import (
	"context"
	"fmt"

	"github.com/biscicol/bcid/internal/metrics"
	"github.com/biscicol/bcid/internal/models"
	"github.com/biscicol/bcid/internal/storage"
)

// Resolver maps external-facing codes and identifier strings back to the
// internal numeric ids and metadata they denote. Read-only.
type Resolver struct {
	store storage.Storage
}

// NewResolver creates a resolver.
func NewResolver(store storage.Storage) *Resolver {
	return &Resolver{store: store}
}

// ByToken returns the numeric id of the expedition inserted with the given
// allocation token. Used internally immediately after insert; tokens are
// never stable external identifiers.
func (r *Resolver) ByToken(ctx context.Context, token string) (int64, error) {
	id, err := r.store.Expeditions().IDByToken(ctx, token)
	if err != nil {
		metrics.ResolvesTotal.WithLabelValues("token", "error").Inc()
		return 0, fmt.Errorf("resolve token: %w", err)
	}
	if id == 0 {
		metrics.ResolvesTotal.WithLabelValues("token", "miss").Inc()
		return 0, ErrNotFound
	}
	metrics.ResolvesTotal.WithLabelValues("token", "ok").Inc()
	return id, nil
}

// ByCode resolves a human code within its owning project to the expedition's
// id and denormalized metadata. (code, projectID) is unique, so at most one
// row can match.
func (r *Resolver) ByCode(ctx context.Context, code string, projectID int64) (*models.ExpeditionMetadata, error) {
	id, err := r.store.Expeditions().IDByCode(ctx, code, projectID)
	if err != nil {
		metrics.ResolvesTotal.WithLabelValues("code", "error").Inc()
		return nil, fmt.Errorf("resolve code: %w", err)
	}
	if id == 0 {
		metrics.ResolvesTotal.WithLabelValues("code", "miss").Inc()
		return nil, ErrNotFound
	}

	md, err := r.store.Expeditions().Metadata(ctx, id)
	if err != nil {
		metrics.ResolvesTotal.WithLabelValues("code", "error").Inc()
		return nil, fmt.Errorf("resolve code: %w", err)
	}
	if md == nil {
		metrics.ResolvesTotal.WithLabelValues("code", "miss").Inc()
		return nil, ErrNotFound
	}
	metrics.ResolvesTotal.WithLabelValues("code", "ok").Inc()
	return md, nil
}

// Resource resolves an identifier string (BCID prefix) to the resource row
// it denotes.
func (r *Resolver) Resource(ctx context.Context, identifier string) (*models.Resource, error) {
	res, err := r.store.Resources().GetByPrefix(ctx, identifier)
	if err != nil {
		metrics.ResolvesTotal.WithLabelValues("resource", "error").Inc()
		return nil, fmt.Errorf("resolve resource: %w", err)
	}
	if res == nil {
		metrics.ResolvesTotal.WithLabelValues("resource", "miss").Inc()
		return nil, ErrNotFound
	}
	metrics.ResolvesTotal.WithLabelValues("resource", "ok").Inc()
	return res, nil
}

// ExpeditionResources returns the resources attached to the expedition
// denoted by (code, projectID).
func (r *Resolver) ExpeditionResources(ctx context.Context, code string, projectID int64) ([]*models.Resource, error) {
	id, err := r.store.Expeditions().IDByCode(ctx, code, projectID)
	if err != nil {
		return nil, fmt.Errorf("resolve expedition resources: %w", err)
	}
	if id == 0 {
		return nil, ErrNotFound
	}
	return r.store.Expeditions().Resources(ctx, id)
}
