package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// EnvAPIURL overrides the configured API base URL.
	EnvAPIURL = "REPOVIEW_API_URL"

	DefaultAPIURL     = "http://localhost:8080/api"
	DefaultListenAddr = "localhost:8000"
)

// Config represents the application configuration
type Config struct {
	APIURL           string `json:"api_url"`
	Username         string `json:"username"`
	TokenPath        string `json:"token_path"`
	DownloadDir      string `json:"download_dir"`
	ProgressBarStyle string `json:"progress_bar_style"`
	ListenAddr       string `json:"listen_addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "~"
	}
	return Config{
		APIURL:           DefaultAPIURL,
		TokenPath:        filepath.Join(homeDir, ".repo-view", "token"),
		DownloadDir:      filepath.Join(homeDir, "Downloads"),
		ProgressBarStyle: "█",
		ListenAddr:       DefaultListenAddr,
	}
}

// LoadConfig loads the configuration from the config file, creating it
// with defaults when missing, and applies environment overrides.
func LoadConfig() (Config, error) {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config, err := createDefaultConfig()
		if err != nil {
			return Config{}, err
		}
		return ApplyEnv(config), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %w", err)
	}

	return ApplyEnv(config), nil
}

// ApplyEnv returns config with environment overrides applied.
func ApplyEnv(config Config) Config {
	if u := strings.TrimSpace(os.Getenv(EnvAPIURL)); u != "" {
		config.APIURL = u
	}
	return config
}

// SaveConfig saves the configuration to the config file
func SaveConfig(config Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	configPath := getConfigPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// ReadToken returns the API token stored at path. A missing file means no
// token.
func ReadToken(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "repo-view", "config.json")
}

// createDefaultConfig creates a new config file with default values
func createDefaultConfig() (Config, error) {
	config := DefaultConfig()
	if err := SaveConfig(config); err != nil {
		return Config{}, fmt.Errorf("error creating default config: %w", err)
	}
	return config, nil
}
