package allocation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hearth-panel/hearth-ctl/internal/audit"
	"github.com/hearth-panel/hearth-ctl/internal/config"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/store"
)

// Service changes the allocations of existing servers and records what it
// did as server activity.
type Service struct {
	st       *store.Store
	cfg      config.AllocationConfig
	recorder audit.Recorder
}

// NewService returns a Service. recorder may be nil.
func NewService(st *store.Store, cfg config.AllocationConfig, recorder audit.Recorder) *Service {
	return &Service{st: st, cfg: cfg, recorder: recorder}
}

// AddToServer finds (or creates) a free allocation and assigns it to the
// server, as long as allocations.client_enabled is set and the server is
// below its allocation limit.
func (s *Service) AddToServer(ctx context.Context, server *model.Server) (*model.Allocation, error) {
	if !s.cfg.ClientEnabled {
		return nil, errors.AllocationsDisabled()
	}

	var reserved *model.Allocation
	err := s.st.WithTx(ctx, func(q *store.Queries) error {
		count, err := q.CountServerAllocations(ctx, server.ID)
		if err != nil {
			return err
		}
		if server.FeatureLimits.Allocations <= count {
			return errors.AllocationLimitReached(server.FeatureLimits.Allocations)
		}

		found, err := NewFinder(q, s.cfg).Handle(ctx, server)
		if err != nil {
			return err
		}
		reserved, err = NewPool(q).Reserve(ctx, found.ID, server)
		return err
	})
	if err != nil {
		return nil, err
	}

	audit.Emit(ctx, s.recorder, audit.Event{
		Type:       audit.EventAllocationCreate,
		Server:     server.UUID,
		Properties: map[string]string{"allocation": reserved.Address()},
	})
	return reserved, nil
}

// RemoveFromServer releases one of the server's allocations. The primary
// allocation cannot be removed.
func (s *Service) RemoveFromServer(ctx context.Context, server *model.Server, allocationID int64) error {
	var released *model.Allocation
	err := s.st.WithTx(ctx, func(q *store.Queries) error {
		a, err := owned(ctx, q, server, allocationID)
		if err != nil {
			return err
		}
		released = a
		return NewPool(q).Release(ctx, a.ID)
	})
	if err != nil {
		return err
	}

	audit.Emit(ctx, s.recorder, audit.Event{
		Type:       audit.EventAllocationDelete,
		Server:     server.UUID,
		Properties: map[string]string{"allocation": released.Address()},
	})
	return nil
}

// SetPrimary makes one of the server's allocations its primary.
func (s *Service) SetPrimary(ctx context.Context, server *model.Server, allocationID int64) (*model.Allocation, error) {
	var primary *model.Allocation
	err := s.st.WithTx(ctx, func(q *store.Queries) error {
		var err error
		primary, err = NewPool(q).SetPrimary(ctx, server, allocationID)
		return err
	})
	if err != nil {
		return nil, err
	}

	audit.Emit(ctx, s.recorder, audit.Event{
		Type:       audit.EventAllocationPrimary,
		Server:     server.UUID,
		Properties: map[string]string{"allocation": primary.Address()},
	})
	return primary, nil
}

// SetNotes replaces the notes on one of the server's allocations. Empty
// notes clear them.
func (s *Service) SetNotes(ctx context.Context, server *model.Server, allocationID int64, notes string) error {
	var value *string
	if notes != "" {
		value = &notes
	}
	err := s.st.WithTx(ctx, func(q *store.Queries) error {
		if _, err := owned(ctx, q, server, allocationID); err != nil {
			return err
		}
		return q.SetAllocationNotes(ctx, allocationID, value)
	})
	if err != nil {
		return err
	}

	audit.Emit(ctx, s.recorder, audit.Event{
		Type:       audit.EventAllocationNotes,
		Server:     server.UUID,
		Properties: map[string]string{"allocation": strconv.FormatInt(allocationID, 10)},
	})
	return nil
}

func owned(ctx context.Context, q *store.Queries, server *model.Server, allocationID int64) (*model.Allocation, error) {
	a, err := q.GetAllocation(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	if !a.OwnedBy(server.ID) {
		return nil, errors.NotFound(fmt.Sprintf("allocation on server %s", server.UUIDShort), allocationID)
	}
	return a, nil
}
