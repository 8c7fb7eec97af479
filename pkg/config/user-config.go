package config

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// UserConfig holds the settings that users can change at runtime, persisted as
// a JSON file so they survive restarts without a database round trip.
type UserConfig struct {
	// ScanIntervalMinutes controls how often a scan job is scheduled for every
	// library. Zero disables periodic scans.
	ScanIntervalMinutes int `json:"scan_interval_minutes"`
	// KoboSyncCBZEnabled allows CBZ files to be offered to Kobo devices. EPUB
	// files are always offered.
	KoboSyncCBZEnabled bool `json:"kobo_sync_cbz_enabled"`
	// KoboSyncCBZSizeLimitMB is the largest CBZ file, in megabytes, that will
	// be offered to a device when KoboSyncCBZEnabled is on.
	KoboSyncCBZSizeLimitMB int `json:"kobo_sync_cbz_size_limit_mb"`
}

var userConfigMu sync.Mutex

func loadDefaultUserConfig() *UserConfig {
	return &UserConfig{
		ScanIntervalMinutes:    60, // 1 hour
		KoboSyncCBZSizeLimitMB: 100,
	}
}

// LoadUserConfig reads the user config file, falling back to defaults when the
// file doesn't exist yet.
func LoadUserConfig(configFilePath string) (*UserConfig, error) {
	if configFilePath == "" {
		return loadDefaultUserConfig(), nil
	}

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// File doesn't exist, return defaults
			return loadDefaultUserConfig(), nil
		}
		return nil, errors.WithStack(err)
	}

	userConfig := loadDefaultUserConfig()
	if err := json.Unmarshal(data, userConfig); err != nil {
		return nil, errors.WithStack(err)
	}

	return userConfig, nil
}

// SaveUserConfig persists the user config to disk, creating the directory if
// needed.
func SaveUserConfig(userConfig *UserConfig, configFilePath string) error {
	userConfigMu.Lock()
	defer userConfigMu.Unlock()

	// Ensure config directory exists.
	if err := os.MkdirAll(filepath.Dir(configFilePath), 0755); err != nil {
		return errors.WithStack(err)
	}

	data, err := json.MarshalIndent(userConfig, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	err = os.WriteFile(configFilePath, data, 0644) //nolint:gosec
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}
