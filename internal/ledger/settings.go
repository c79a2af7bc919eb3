package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-playground/validator/v10"
)

// Setting keys read by the invoice wizard.
const (
	SettingSenderName    = "defaultSenderName"
	SettingSenderAddress = "defaultSenderAddress"
	SettingSenderEmail   = "defaultSenderEmail"
	SettingSenderTaxID   = "defaultSenderTaxId"
	SettingSenderPhone   = "defaultSenderPhone"
	SettingLogoImage     = "logoImageUrl"
	SettingSignImage     = "signImageUrl"
)

var settingKeys = map[string]struct{}{
	SettingSenderName:    {},
	SettingSenderAddress: {},
	SettingSenderEmail:   {},
	SettingSenderTaxID:   {},
	SettingSenderPhone:   {},
	SettingLogoImage:     {},
	SettingSignImage:     {},
}

// Defaults are the sender details and images a new draft starts from.
type Defaults struct {
	Sender  Sender
	LogoImg string
	SignImg string
}

// DefaultsFrom maps stored settings onto draft defaults.
func DefaultsFrom(settings map[string]string) Defaults {
	return Defaults{
		Sender: Sender{
			Name:    settings[SettingSenderName],
			Address: settings[SettingSenderAddress],
			Email:   settings[SettingSenderEmail],
			TaxID:   settings[SettingSenderTaxID],
			Phone:   settings[SettingSenderPhone],
		},
		LogoImg: settings[SettingLogoImage],
		SignImg: settings[SettingSignImage],
	}
}

func (d Defaults) apply(draft *Draft) {
	draft.SetSender(d.Sender)
	draft.SetImages(d.LogoImg, d.SignImg)
}

// SaveSettings upserts every key in one transaction. An empty value removes
// the key.
func (s *Store) SaveSettings(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	err := s.conn.InTx(ctx, func(c conn) error {
		for _, key := range keys {
			value := values[key]
			if value == "" {
				if _, err := c.Exec(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
					return fmt.Errorf("clear %s: %w", key, err)
				}
				continue
			}
			if _, err := c.Exec(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
				ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
				return fmt.Errorf("save %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger: settings: %w", err)
	}
	return nil
}

// Settings returns every stored setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	r, err := s.conn.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("ledger: settings: %w", err)
	}
	defer r.Close()

	out := make(map[string]string)
	for r.Next() {
		var key, value string
		if err := r.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("ledger: scan setting: %w", err)
		}
		out[key] = value
	}
	return out, r.Err()
}

// SettingsRepository persists settings.
type SettingsRepository interface {
	SaveSettings(ctx context.Context, values map[string]string) error
	Settings(ctx context.Context) (map[string]string, error)
}

// SettingsService validates settings writes and exposes draft defaults.
type SettingsService struct {
	repo     SettingsRepository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSettingsService wires the settings service.
func NewSettingsService(repo SettingsRepository, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{repo: repo, validate: NewValidator(), logger: logger}
}

// All returns every stored setting.
func (s *SettingsService) All(ctx context.Context) (map[string]string, error) {
	return s.repo.Settings(ctx)
}

// Save stores the given keys. Unknown keys and a malformed sender email are
// rejected before anything is written.
func (s *SettingsService) Save(ctx context.Context, values map[string]string) error {
	fields := make(map[string]string)
	for key, value := range values {
		if _, ok := settingKeys[key]; !ok {
			fields[key] = "is not a known setting"
			continue
		}
		if key == SettingSenderEmail && value != "" {
			if err := s.validate.Var(value, "email"); err != nil {
				fields[key] = "must be a valid email"
			}
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	if err := s.repo.SaveSettings(ctx, values); err != nil {
		return err
	}
	s.logger.Info("settings saved", slog.Int("keys", len(values)))
	return nil
}

// Defaults loads the draft defaults.
func (s *SettingsService) Defaults(ctx context.Context) (Defaults, error) {
	settings, err := s.repo.Settings(ctx)
	if err != nil {
		return Defaults{}, err
	}
	return DefaultsFrom(settings), nil
}
