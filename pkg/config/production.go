package config

import (
	"os"
	"path/filepath"
)

func loadProductionConfig(cfg *Config) {
	dataDir := os.Getenv("DATA_DIRECTORY")
	if dataDir == "" {
		dataDir = "/data"
	}

	bookdropDir := os.Getenv("BOOKDROP_DIRECTORY")
	if bookdropDir == "" {
		bookdropDir = "/bookdrop"
	}

	cfg.BookdropDirectory = bookdropDir
	cfg.DatabaseFilePath = filepath.Join(dataDir, "folio.sqlite")
	cfg.ServerHost = "0.0.0.0"
	cfg.UserConfigFilePath = filepath.Join(dataDir, "config.json")
}
