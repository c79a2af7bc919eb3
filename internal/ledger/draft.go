package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/invoicely/invoicely/internal/dates"
	"github.com/invoicely/invoicely/internal/platform/httpx"
)

const draftKeyPrefix = "invoicely:draft:"

// ErrDraftNotFound is returned for unknown or expired drafts.
var ErrDraftNotFound = fmt.Errorf("ledger: draft not found: %w", httpx.ErrNotFound)

// Charges groups the item section of the invoice form.
type Charges struct {
	Items          []Item  `json:"items"`
	DiscountAmount float64 `json:"discountAmount"`
	TaxPercentage  float64 `json:"taxPercentage"`
	Shipping       float64 `json:"shipping"`
	Payed          float64 `json:"payed"`
}

// Draft is an invoice being composed section by section.
type Draft struct {
	ID        string     `json:"id"`
	Invoice   NewInvoice `json:"invoice"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NewDraft returns an empty draft with the given id.
func NewDraft(id string) *Draft {
	d := &Draft{ID: id}
	d.Reset()
	return d
}

// SetSender replaces the sender section.
func (d *Draft) SetSender(s Sender) { d.Invoice.Sender = s }

// SetRecipient replaces the recipient section.
func (d *Draft) SetRecipient(r Recipient) { d.Invoice.Recipient = r }

// SetInfo replaces the identifiers and stored dates.
func (d *Draft) SetInfo(info Info) { d.Invoice.Info = info }

// SetDates stores the issue and due dates in DD/MM/YYYY form.
func (d *Draft) SetDates(issued, due time.Time) {
	d.Invoice.Info.Date = dates.FormatStored(issued)
	d.Invoice.Info.DueDate = dates.FormatStored(due)
}

// SetItems replaces the items together with discount, tax, shipping and payed.
func (d *Draft) SetItems(c Charges) {
	d.Invoice.Items = append([]Item(nil), c.Items...)
	d.Invoice.DiscountAmount = c.DiscountAmount
	d.Invoice.TaxPercentage = c.TaxPercentage
	d.Invoice.Shipping = c.Shipping
	d.Invoice.Payed = c.Payed
}

// SetImages stores the opaque logo and signature references.
func (d *Draft) SetImages(logo, sign string) {
	d.Invoice.LogoImg = logo
	d.Invoice.SignImg = sign
}

// SetCurrency selects the invoice currency.
func (d *Draft) SetCurrency(c Currency) { d.Invoice.Currency = c }

// Replace swaps the whole payload, as when editing an existing invoice.
func (d *Draft) Replace(inv NewInvoice) { d.Invoice = inv }

// Reset clears every section.
func (d *Draft) Reset() {
	d.Invoice = NewInvoice{Items: []Item{}, Currency: NoCurrency}
}

// Creator persists a finished invoice.
type Creator interface {
	Create(ctx context.Context, inv NewInvoice) (int64, error)
}

// DefaultsSource supplies the sender and images new drafts start from.
type DefaultsSource interface {
	Defaults(ctx context.Context) (Defaults, error)
}

// DraftStore keeps drafts in redis under uuid keys with a sliding TTL.
type DraftStore struct {
	client   *redis.Client
	ttl      time.Duration
	now      func() time.Time
	defaults DefaultsSource
}

// NewDraftStore constructs the store. A non-positive ttl keeps drafts for a day.
func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DraftStore{client: client, ttl: ttl, now: time.Now}
}

// WithDefaults makes Start pre-fill the sender section and images.
func (s *DraftStore) WithDefaults(source DefaultsSource) *DraftStore {
	s.defaults = source
	return s
}

// Start creates and saves a new draft, pre-filled from the configured
// defaults when there are any.
func (s *DraftStore) Start(ctx context.Context) (*Draft, error) {
	d := NewDraft(uuid.NewString())
	if s.defaults != nil {
		defaults, err := s.defaults.Defaults(ctx)
		if err != nil {
			return nil, fmt.Errorf("ledger: draft defaults: %w", err)
		}
		defaults.apply(d)
	}
	if err := s.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Load fetches a draft by id.
func (s *DraftStore) Load(ctx context.Context, id string) (*Draft, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrDraftNotFound
	}
	raw, err := s.client.Get(ctx, draftKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: load draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("ledger: decode draft: %w", err)
	}
	return &d, nil
}

// Save writes the draft and refreshes its TTL.
func (s *DraftStore) Save(ctx context.Context, d *Draft) error {
	d.UpdatedAt = s.now().UTC()
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("ledger: encode draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKeyPrefix+d.ID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("ledger: save draft: %w", err)
	}
	return nil
}

// Discard deletes the draft; unknown ids are ignored.
func (s *DraftStore) Discard(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, draftKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("ledger: discard draft: %w", err)
	}
	return nil
}

// Commit persists the draft through creator and discards it on success.
func (s *DraftStore) Commit(ctx context.Context, id string, creator Creator) (int64, error) {
	d, err := s.Load(ctx, id)
	if err != nil {
		return 0, err
	}
	invoiceID, err := creator.Create(ctx, d.Invoice)
	if err != nil {
		return 0, err
	}
	if err := s.Discard(ctx, id); err != nil {
		return invoiceID, err
	}
	return invoiceID, nil
}
