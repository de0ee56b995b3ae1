package driving

import "github.com/custodia-labs/pdfrag/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the effective settings: defaults, then the config file,
	// then environment variables. The result is validated.
	Get() (*domain.Settings, error)

	// Save persists settings to the config file.
	Save(settings *domain.Settings) error

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings
}
