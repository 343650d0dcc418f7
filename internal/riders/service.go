package riders

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Rider, error)
	List(ctx context.Context, status RiderStatus) ([]Rider, error)
	Claim(ctx context.Context, id int64) error
	Release(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Registry tracks which riders can take a new delivery.
type Registry struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewRegistry builds Registry.
func NewRegistry(repo RepositoryPort, audit AuditPort) *Registry {
	return &Registry{repo: repo, audit: audit}
}

// Get returns a rider by id.
func (s *Registry) Get(ctx context.Context, id int64) (*Rider, error) {
	return s.repo.Get(ctx, id)
}

// List returns riders filtered by status. An empty status returns all.
func (s *Registry) List(ctx context.Context, status RiderStatus) ([]Rider, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("riders: unknown status %q", status)
	}
	return s.repo.List(ctx, status)
}

// Assign claims a rider for a delivery. It fails with ErrRiderNotAvailable
// when the rider is already on a job, including when a concurrent assignment
// won the claim first.
func (s *Registry) Assign(ctx context.Context, riderID, actorID int64) error {
	if err := s.repo.Claim(ctx, riderID); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "riders:assign",
			Entity:   "rider",
			EntityID: fmt.Sprintf("%d", riderID),
		})
	}
	return nil
}

// Release marks a rider available again. Releasing an already available
// rider succeeds, so terminal delivery paths can call it unconditionally.
func (s *Registry) Release(ctx context.Context, riderID, actorID int64) error {
	if err := s.repo.Release(ctx, riderID); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "riders:release",
			Entity:   "rider",
			EntityID: fmt.Sprintf("%d", riderID),
		})
	}
	return nil
}
