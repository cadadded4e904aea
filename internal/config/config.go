package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied when the config file is missing or leaves fields unset.
const (
	DefaultMaxAttachments = 10
	DefaultMaxReplies     = 5
)

// Config represents the global ~/.courier/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	Limits         Limits `toml:"limits"`
	API            API    `toml:"api"`
}

// Limits bounds what a single draft and a single message may carry.
type Limits struct {
	// MaxAttachments is the maximum number of attachments one message may
	// carry. A draft may reference more; the excess rolls into the next draft
	// when the current one is sent.
	MaxAttachments int `toml:"max_attachments_per_message"`
	// MaxReplies is the maximum number of reply references per draft.
	MaxReplies int `toml:"max_replies_per_draft"`
}

// API configures the HTTP transport used for uploads and sends.
type API struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// Default returns a config with all limits at their defaults.
func Default() *Config {
	return &Config{
		Limits: Limits{
			MaxAttachments: DefaultMaxAttachments,
			MaxReplies:     DefaultMaxReplies,
		},
	}
}

// Load reads config from the given path. Unset limits fall back to defaults.
// Returns an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Limits.MaxAttachments <= 0 {
		cfg.Limits.MaxAttachments = DefaultMaxAttachments
	}
	if cfg.Limits.MaxReplies <= 0 {
		cfg.Limits.MaxReplies = DefaultMaxReplies
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
