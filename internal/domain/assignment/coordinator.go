// Package assignment binds queue entries to the single staff member
// handling them. It sits over a narrow compare-and-swap store so any
// record type with an assignee column can participate.
package assignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrAlreadyClaimed = errors.New("record is already claimed by another staff member")
	ErrNotClaimant    = errors.New("record is claimed by a different staff member")
	ErrNotClaimed     = errors.New("record is not claimed")
)

// Store is the compare-and-swap contract a record store must offer.
// CASAssignee sets the assignee to `set` only when the current value
// equals `expect` (nil meaning unclaimed); it reports whether the swap
// happened and the value observed.
type Store interface {
	CASAssignee(ctx context.Context, id uuid.UUID, expect, set *uuid.UUID) (bool, *uuid.UUID, error)
}

// ClaimedError carries the staff member currently holding the claim.
// It matches ErrAlreadyClaimed under errors.Is.
type ClaimedError struct {
	HeldBy uuid.UUID
}

func (e *ClaimedError) Error() string {
	return fmt.Sprintf("record is already claimed by %s", e.HeldBy)
}

func (e *ClaimedError) Is(target error) bool { return target == ErrAlreadyClaimed }

type Coordinator struct {
	store Store
}

func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store}
}

// Claim binds staffID to the record. Re-claiming a record you already
// hold succeeds; of any set of concurrent claimants exactly one wins
// and the rest observe the winner in the returned error.
func (c *Coordinator) Claim(ctx context.Context, id, staffID uuid.UUID) error {
	if staffID == uuid.Nil {
		return fmt.Errorf("staff id is required")
	}

	swapped, current, err := c.store.CASAssignee(ctx, id, nil, &staffID)
	if err != nil {
		return err
	}
	if swapped {
		return nil
	}
	if current != nil && *current == staffID {
		return nil
	}
	if current == nil {
		// Lost a race against a release; claiming again would
		// normally succeed, but report the conflict as observed.
		return ErrAlreadyClaimed
	}
	return &ClaimedError{HeldBy: *current}
}

// Release clears the claim. Only the claimant may release, unless
// admin is set.
func (c *Coordinator) Release(ctx context.Context, id, staffID uuid.UUID, admin bool) error {
	if admin {
		return c.forceRelease(ctx, id)
	}

	swapped, current, err := c.store.CASAssignee(ctx, id, &staffID, nil)
	if err != nil {
		return err
	}
	if swapped {
		return nil
	}
	if current == nil {
		return ErrNotClaimed
	}
	return ErrNotClaimant
}

func (c *Coordinator) forceRelease(ctx context.Context, id uuid.UUID) error {
	for {
		swapped, current, err := c.store.CASAssignee(ctx, id, nil, nil)
		if err != nil {
			return err
		}
		if swapped || current == nil {
			return nil
		}
		swapped, _, err = c.store.CASAssignee(ctx, id, current, nil)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
		// The claim changed hands between reads; retry.
	}
}
