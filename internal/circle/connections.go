package circle

import (
	"context"
	"errors"
	"fmt"

	"github.com/bethatfriend/bethatfriend/internal/store"
)

// RequestConnection asks for a connection from a to b. If the pair is already
// connected in either direction the existing row is returned unchanged.
func (s *Service) RequestConnection(ctx context.Context, a, b string) (*store.Connection, error) {
	if a == b {
		return nil, validationf("cannot connect a user to themselves")
	}
	if existing, err := s.store.FindConnection(ctx, a, b); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find connection: %w", err)
	}

	if err := s.requireUsers(ctx, a, b); err != nil {
		return nil, err
	}
	c, err := s.store.InsertPendingConnection(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("request connection: %w", err)
	}
	return c, nil
}

// RequestConnectionByCode asks for a connection from the actor to the owner of
// code.
func (s *Service) RequestConnectionByCode(ctx context.Context, actor Actor, code string) (*store.Connection, error) {
	if err := actor.requireConfirmed(); err != nil {
		return nil, err
	}
	target, err := s.ResolveByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.RequestConnection(ctx, actor.UserID, target.ID)
}

// ConfirmConnection accepts a pending request addressed to the actor.
// Confirming an already confirmed connection is a no-op.
func (s *Service) ConfirmConnection(ctx context.Context, actor Actor, connectionID string) (*store.Connection, error) {
	if err := actor.requireConfirmed(); err != nil {
		return nil, err
	}
	c, err := s.store.GetConnection(ctx, connectionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("connection not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	if !c.Involves(actor.UserID) {
		return nil, notFoundf("connection not found")
	}
	if c.Status == store.ConnectionConfirmed {
		return c, nil
	}
	if c.UserAID == actor.UserID {
		return nil, authorizationf("only the other party can confirm this request")
	}

	c, err = s.store.ConfirmConnection(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("confirm connection: %w", err)
	}
	s.log.Info("connection confirmed", "connection_id", c.ID)
	return c, nil
}

// AutoConfirm creates a confirmed connection between a and b, or confirms the
// pair's existing row. Accepting an invite is itself the confirmation, so the
// pending step is skipped.
func (s *Service) AutoConfirm(ctx context.Context, a, b string) (*store.Connection, error) {
	if a == b {
		return nil, validationf("cannot connect a user to themselves")
	}
	if err := s.requireUsers(ctx, a, b); err != nil {
		return nil, err
	}
	c, err := s.store.UpsertConfirmedConnection(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("auto-confirm connection: %w", err)
	}
	if c.Status != store.ConnectionConfirmed {
		return nil, conflictf("connection %s could not be confirmed (status %s)", c.ID, c.Status)
	}
	return c, nil
}

// ListConnections returns userID's circle with the other party resolved.
func (s *Service) ListConnections(ctx context.Context, userID string) ([]store.ConnectionView, error) {
	views, err := s.store.ListConnectionsFor(ctx, userID, store.ConnectionConfirmed)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return views, nil
}

// ListIncomingRequests returns pending requests waiting on userID.
func (s *Service) ListIncomingRequests(ctx context.Context, userID string) ([]store.ConnectionView, error) {
	views, err := s.store.ListIncomingRequests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	return views, nil
}

func (s *Service) requireUsers(ctx context.Context, ids ...string) error {
	users, err := s.store.ListUsers(ctx, ids)
	if err != nil {
		return fmt.Errorf("lookup users: %w", err)
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			return notFoundf("profile %s not found", id)
		}
	}
	return nil
}
