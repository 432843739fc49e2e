// Package config loads process settings from the environment, an optional .env file
// and an optional YAML file. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileEnv names the variable holding the optional YAML settings path.
const FileEnv = "METADATA_PUB_CONFIG"

// Config is the runtime configuration of one pipeline run.
type Config struct {
	CatalogHost   string `yaml:"catalog_host"`
	CatalogDomain string `yaml:"catalog_domain"`
	CatalogLimit  int    `yaml:"catalog_limit"`
	// CountHost serves the SoQL count queries. Defaults to CatalogDomain.
	CountHost string `yaml:"count_host"`
	// PublishHost owns the destination dataset (SO_WEB).
	PublishHost string `yaml:"publish_host"`
	ResourceID  string `yaml:"resource_id"`

	OwnerID      string `yaml:"owner_id"`
	CategoryName string `yaml:"category_name"`

	PublicBaseURL  string `yaml:"public_base_url"`
	PrivateBaseURL string `yaml:"private_base_url"`

	Workers        int           `yaml:"workers"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	BatchTimeout   time.Duration `yaml:"batch_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	FailFast       bool          `yaml:"fail_fast"`

	// Credentials are read from the environment only.
	AppToken string `yaml:"-"`
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// Defaults returns the settings used for the Austin open data portal.
func Defaults() Config {
	return Config{
		CatalogHost:    "api.us.socrata.com",
		CatalogDomain:  "datahub.austintexas.gov",
		CatalogLimit:   10000,
		ResourceID:     "28ys-ieqv",
		OwnerID:        "8t3r-wq64",
		CategoryName:   "Transportation and Mobility",
		PublicBaseURL:  "https://data.austintexas.gov/d/",
		PrivateBaseURL: "https://datahub.austintexas.gov/d/",
		Workers:        10,
		RequestTimeout: 60 * time.Second,
		BatchTimeout:   20 * time.Minute,
	}
}

// LoadDotEnv loads a .env file into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from defaults, the YAML file named by METADATA_PUB_CONFIG and
// the environment. Only syntax is checked; hosts and credentials are validated by the
// services they are sent to.
func Load() (Config, error) {
	cfg := Defaults()
	if p := strings.TrimSpace(os.Getenv(FileEnv)); p != "" {
		if err := loadFile(p, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.CountHost == "" {
		cfg.CountHost = cfg.CatalogDomain
	}
	if cfg.PublishHost == "" {
		cfg.PublishHost = cfg.CatalogDomain
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s file: %w", FileEnv, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse %s YAML: %w", FileEnv, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	envString(&cfg.CatalogHost, "CATALOG_HOST")
	envString(&cfg.CatalogDomain, "CATALOG_DOMAIN")
	envString(&cfg.CountHost, "COUNT_HOST")
	envString(&cfg.PublishHost, "SO_WEB")
	envString(&cfg.ResourceID, "RESOURCE_ID")
	envString(&cfg.OwnerID, "OWNER_ID")
	envString(&cfg.CategoryName, "CATEGORY_NAME")
	envString(&cfg.PublicBaseURL, "PUBLIC_BASE_URL")
	envString(&cfg.PrivateBaseURL, "PRIVATE_BASE_URL")
	envString(&cfg.AppToken, "SO_TOKEN")
	envString(&cfg.Username, "SO_KEY")
	envString(&cfg.Password, "SO_SECRET")

	var err error
	if cfg.CatalogLimit, err = envInt("CATALOG_LIMIT", cfg.CatalogLimit); err != nil {
		return err
	}
	if cfg.Workers, err = envInt("WORKERS", cfg.Workers); err != nil {
		return err
	}
	if cfg.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return err
	}
	if cfg.BatchTimeout, err = envDuration("BATCH_TIMEOUT", cfg.BatchTimeout); err != nil {
		return err
	}
	if cfg.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS); err != nil {
		return err
	}
	if cfg.FailFast, err = envBool("ENRICH_FAIL_FAST", cfg.FailFast); err != nil {
		return err
	}
	return nil
}

func envString(dst *string, varName string) {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		*dst = v
	}
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envBool(varName string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
