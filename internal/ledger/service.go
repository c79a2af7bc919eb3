package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/invoicely/invoicely/internal/dates"
)

// Repository is the persistence contract the service needs.
type Repository interface {
	Create(ctx context.Context, inv NewInvoice) (int64, error)
	Get(ctx context.Context, id int64) (Invoice, error)
	Update(ctx context.Context, id int64, inv NewInvoice) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, criteria Criteria) ([]ListEntry, error)
	Purge(ctx context.Context) error
}

// Invalidator is notified after every successful write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service applies validation and cache invalidation around the ledger store.
type Service struct {
	repo        Repository
	validate    *validator.Validate
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService wires the ledger service. invalidator may be nil.
func NewService(repo Repository, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		validate:    NewValidator(),
		invalidator: invalidator,
		logger:      logger,
	}
}

// Create validates and persists a new invoice.
func (s *Service) Create(ctx context.Context, inv NewInvoice) (int64, error) {
	if err := Validate(s.validate, inv); err != nil {
		return 0, err
	}
	id, err := s.repo.Create(ctx, inv)
	if err != nil {
		return 0, err
	}
	s.logger.Info("invoice created", slog.Int64("id", id), slog.String("invoice_number", inv.Info.InvoiceNumber))
	s.invalidate(ctx)
	return id, nil
}

// Get loads an invoice.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

// Update validates and replaces an invoice.
func (s *Service) Update(ctx context.Context, id int64, inv NewInvoice) error {
	if err := Validate(s.validate, inv); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, inv); err != nil {
		return err
	}
	s.logger.Info("invoice updated", slog.Int64("id", id))
	s.invalidate(ctx)
	return nil
}

// Delete removes an invoice.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("invoice deleted", slog.Int64("id", id))
	s.invalidate(ctx)
	return nil
}

// Search lists invoices matching the criteria. Date bounds must be
// comparable YYYY-MM-DD dates.
func (s *Service) Search(ctx context.Context, criteria Criteria) ([]ListEntry, error) {
	fields := make(map[string]string)
	for field, value := range map[string]string{"from": criteria.From, "to": criteria.To} {
		if value == "" {
			continue
		}
		if _, err := dates.ParseComparable(value); err != nil {
			fields[field] = "must be a YYYY-MM-DD date"
		}
	}
	if criteria.Currency != nil && !criteria.Currency.Supported() {
		fields["currency"] = "is not a supported currency"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return s.repo.Search(ctx, criteria)
}

// Purge deletes every invoice and the saved settings.
func (s *Service) Purge(ctx context.Context) error {
	if err := s.repo.Purge(ctx); err != nil {
		return err
	}
	s.logger.Warn("ledger purged")
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Error("invalidate analytics cache", slog.Any("error", fmt.Errorf("ledger: %w", err)))
	}
}
