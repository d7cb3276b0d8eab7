package minter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/biscicol/bcid/internal/metrics"
	"github.com/biscicol/bcid/internal/models"
	"github.com/biscicol/bcid/internal/registrar"
	"github.com/biscicol/bcid/internal/storage"
)

// RegistrationQueue receives fire-and-forget registration events after a
// successful mint. The queue's outcome never affects the mint result.
type RegistrationQueue interface {
	Enqueue(ev registrar.Event) bool
}

// ExpeditionConfig configures identifier construction for minted expeditions.
type ExpeditionConfig struct {
	// IdentifierPrefix is prepended to the numeric id to form the
	// externally registered identifier, e.g. "ark:/21547/B2x".
	IdentifierPrefix string
	// ResolverBase is the public URL expedition identifiers resolve at.
	ResolverBase string
}

// ExpeditionMinter allocates expeditions within projects.
type ExpeditionMinter struct {
	store  storage.Storage
	events RegistrationQueue
	config ExpeditionConfig
}

// NewExpeditionMinter creates an expedition minter. events may be nil, in
// which case minted identifiers are not registered externally.
func NewExpeditionMinter(store storage.Storage, events RegistrationQueue, config ExpeditionConfig) *ExpeditionMinter {
	return &ExpeditionMinter{store: store, events: events, config: config}
}

// MintRequest carries the fields for a new expedition.
type MintRequest struct {
	Code      string
	Title     string
	Abstract  string
	UserID    int64
	ProjectID int64
}

// Mint allocates a new expedition and returns its numeric id.
//
// Preconditions run in order, each failure aborting with no partial state:
// project membership (ErrUnauthorized), code syntax (InvalidCodeError),
// code availability (ErrDuplicateCode). Allocation then generates a fresh
// random token, inserts the row carrying it, and recovers the store-assigned
// id with a point lookup on the token. Because each call's token is unique,
// the lookup is unambiguous no matter how concurrent mints interleave. The
// UNIQUE(code, project_id) constraint turns a lost duplicate race into a
// deterministic ErrDuplicateCode at insert time.
func (m *ExpeditionMinter) Mint(ctx context.Context, req MintRequest) (int64, error) {
	start := time.Now()
	id, err := m.mint(ctx, req)
	metrics.MintDuration.Observe(time.Since(start).Seconds())
	metrics.MintsTotal.WithLabelValues(mintOutcome(err)).Inc()
	return id, err
}

func (m *ExpeditionMinter) mint(ctx context.Context, req MintRequest) (int64, error) {
	member, err := m.store.Projects().IsMember(ctx, req.UserID, req.ProjectID)
	if err != nil {
		return 0, fmt.Errorf("mint expedition: %w", err)
	}
	if !member {
		return 0, ErrUnauthorized
	}

	if err := ValidateCode(req.Code); err != nil {
		return 0, err
	}

	// Fast-path availability check for a friendly error; the unique
	// constraint below remains the authority under concurrency.
	taken, err := m.store.Expeditions().Exists(ctx, req.Code, req.ProjectID)
	if err != nil {
		return 0, fmt.Errorf("mint expedition: %w", err)
	}
	if taken {
		return 0, ErrDuplicateCode
	}

	token := uuid.New().String()
	exp := &models.Expedition{
		Token:     token,
		Code:      req.Code,
		Title:     req.Title,
		Abstract:  req.Abstract,
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		CreatedAt: time.Now(),
	}
	if err := m.store.Expeditions().Insert(ctx, exp); err != nil {
		// The token is fresh per call, so a constraint failure here can
		// only be the (code, project_id) uniqueness rule.
		if storage.IsConstraintViolation(err) {
			return 0, ErrDuplicateCode
		}
		return 0, fmt.Errorf("mint expedition: %w", err)
	}

	id, err := m.store.Expeditions().IDByToken(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("mint expedition: recover id: %w", err)
	}
	if id == 0 {
		return 0, fmt.Errorf("mint expedition: allocation token %s not found after insert", token)
	}

	m.publishRegistration(id, req)

	return id, nil
}

// publishRegistration emits the external registration event for a minted
// expedition. Best-effort: a full queue or missing dispatcher is not an error.
func (m *ExpeditionMinter) publishRegistration(id int64, req MintRequest) {
	if m.events == nil || m.config.IdentifierPrefix == "" {
		return
	}
	identifier := fmt.Sprintf("%s%d", m.config.IdentifierPrefix, id)
	m.events.Enqueue(registrar.Event{
		Identifier: identifier,
		Metadata: registrar.Metadata{
			Target:  fmt.Sprintf("%s/%d", m.config.ResolverBase, id),
			What:    req.Title,
			When:    time.Now().UTC().Format(time.RFC3339),
			Profile: "erc",
		},
	})
}

// AttachResource links an externally minted resource to an expedition. Both
// sides must already exist; either miss is ErrNotFound. Attaching the same
// resource twice is ErrDuplicateCode.
func (m *ExpeditionMinter) AttachResource(ctx context.Context, code string, projectID int64, identifier string) error {
	expID, err := m.store.Expeditions().IDByCode(ctx, code, projectID)
	if err != nil {
		return fmt.Errorf("attach resource: %w", err)
	}
	if expID == 0 {
		return ErrNotFound
	}

	res, err := m.store.Resources().GetByPrefix(ctx, identifier)
	if err != nil {
		return fmt.Errorf("attach resource: %w", err)
	}
	if res == nil {
		return ErrNotFound
	}

	if err := m.store.Expeditions().AttachResource(ctx, expID, res.ID); err != nil {
		if storage.IsConstraintViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("attach resource: %w", err)
	}
	return nil
}

// Exists reports whether (code, projectID) is already allocated.
func (m *ExpeditionMinter) Exists(ctx context.Context, code string, projectID int64) (bool, error) {
	return m.store.Expeditions().Exists(ctx, code, projectID)
}

// UserOwns reports whether userID minted the expedition (code, projectID).
func (m *ExpeditionMinter) UserOwns(ctx context.Context, userID int64, code string, projectID int64) (bool, error) {
	return m.store.Expeditions().UserOwns(ctx, userID, code, projectID)
}

// Metadata returns the denormalized projection for an expedition id.
func (m *ExpeditionMinter) Metadata(ctx context.Context, id int64) (*models.ExpeditionMetadata, error) {
	md, err := m.store.Expeditions().Metadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if md == nil {
		return nil, ErrNotFound
	}
	return md, nil
}

// ListForUser returns the expeditions minted by userID.
func (m *ExpeditionMinter) ListForUser(ctx context.Context, userID int64) ([]*models.ExpeditionMetadata, error) {
	return m.store.Expeditions().ListForUser(ctx, userID)
}

func mintOutcome(err error) string {
	var invalid *InvalidCodeError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrDuplicateCode):
		return "duplicate"
	case errors.As(err, &invalid):
		return "invalid"
	default:
		return "error"
	}
}
