package selection

import (
	"context"
	"errors"
	"fmt"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/prohmpiriya/storefront/pkg/logger"
	"go.uber.org/zap"
)

// PriceSource supplies the data a selection is built from
type PriceSource interface {
	BookingDetailsFor(ctx context.Context, entity domain.Entity, id domain.ID) (domain.BookingDetails, error)
	TicketPricesFor(ctx context.Context, entity domain.Entity, id domain.ID, date string) ([]domain.TicketType, error)
}

// Service loads, mutates and saves per-session selections
type Service struct {
	store  Store
	prices PriceSource
	logger *logger.Logger
}

// NewService creates a selection service
func NewService(store Store, prices PriceSource, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{store: store, prices: prices, logger: log}
}

// Get returns the session's selection for an entity, starting an empty one
// from the entity's booking details when none is stored
func (s *Service) Get(ctx context.Context, sessionID string, entity domain.Entity, id domain.ID) (*Selection, error) {
	st, err := s.store.Load(ctx, sessionID, entity, id)
	if err == nil {
		return Restore(st)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	details, err := s.prices.BookingDetailsFor(ctx, entity, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking details: %w", err)
	}
	if details.EntityID == "" {
		details.EntityID = id
	}
	return New(entity, details), nil
}

// SelectDate fetches the date's ticket prices and makes them the active price list
func (s *Service) SelectDate(ctx context.Context, sessionID string, entity domain.Entity, id, dateID domain.ID) (*Selection, error) {
	sel, err := s.Get(ctx, sessionID, entity, id)
	if err != nil {
		return nil, err
	}

	date := string(dateID)
	if d, ok := sel.FindDate(dateID); ok {
		date = d.Date
	}

	tickets, err := s.prices.TicketPricesFor(ctx, entity, id, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket prices: %w", err)
	}
	if err := sel.SelectDate(dateID, tickets); err != nil {
		return nil, err
	}
	return sel, s.save(ctx, sessionID, sel)
}

// SelectShow picks a show on the selected date
func (s *Service) SelectShow(ctx context.Context, sessionID string, entity domain.Entity, id, showID domain.ID) (*Selection, error) {
	sel, err := s.Get(ctx, sessionID, entity, id)
	if err != nil {
		return nil, err
	}
	if err := sel.SelectShow(showID); err != nil {
		return nil, err
	}
	return sel, s.save(ctx, sessionID, sel)
}

// AdjustQuantity applies delta to a ticket type under the current date and show
func (s *Service) AdjustQuantity(ctx context.Context, sessionID string, entity domain.Entity, id, ticketTypeID domain.ID, delta int) (*Selection, error) {
	sel, err := s.Get(ctx, sessionID, entity, id)
	if err != nil {
		return nil, err
	}
	if _, err := sel.SetQuantity(sel.KeyFor(ticketTypeID), delta); err != nil {
		return sel, err
	}
	return sel, s.save(ctx, sessionID, sel)
}

// Clear drops the stored selection for an entity
func (s *Service) Clear(ctx context.Context, sessionID string, entity domain.Entity, id domain.ID) error {
	if err := s.store.Delete(ctx, sessionID, entity, id); err != nil {
		return err
	}
	s.logger.WithContext(ctx).Debug("selection cleared",
		zap.String("entity", string(entity)),
		zap.String("entity_id", id.String()),
	)
	return nil
}

func (s *Service) save(ctx context.Context, sessionID string, sel *Selection) error {
	return s.store.Save(ctx, sessionID, sel.State())
}
