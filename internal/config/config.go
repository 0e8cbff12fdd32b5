// Package config reads process settings from the environment (optionally
// seeded from a .env file) and the word lists from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lucasfdcampos/gastro-leads/internal/contact"
	"github.com/lucasfdcampos/gastro-leads/internal/normalize"
)

// Config holds every env-driven setting shared by the commands.
type Config struct {
	Env      string
	LogLevel string
	DataDir  string

	DataForSEOLogin    string
	DataForSEOPassword string
	DataForSEOURL      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI string

	ArtifactBucket string
	AWSRegion      string

	Addr string

	ListsFile string

	Workers      int
	Delay        time.Duration
	FetchTimeout time.Duration
	Browser      bool
}

// Load reads .env when present, then the environment. Missing values fall
// back to defaults; Redis, MongoDB and S3 stay disabled when unset.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DataDir:  getEnv("DATA_DIR", "resultados"),

		DataForSEOLogin:    os.Getenv("DATAFORSEO_LOGIN"),
		DataForSEOPassword: os.Getenv("DATAFORSEO_PASSWORD"),
		DataForSEOURL:      getEnv("DATAFORSEO_URL", ""),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		MongoURI: os.Getenv("MONGO_URI"),

		ArtifactBucket: os.Getenv("ARTIFACT_BUCKET"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),

		Addr: getEnv("ADDR", ":8080"),

		ListsFile: os.Getenv("LISTS_FILE"),

		Workers:      getInt("ENRICH_WORKERS", 1),
		Delay:        getDuration("ENRICH_DELAY", 2*time.Second),
		FetchTimeout: getDuration("FETCH_TIMEOUT", 10*time.Second),
		Browser:      getEnv("ENRICH_BROWSER", "false") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}

// ─── Lists ────────────────────────────────────────────────────────────────────

// Lists is the YAML lists file. Any section left out keeps its default.
type Lists struct {
	Normalize normalize.Lists     `yaml:"normalize"`
	Contact   contact.Lists       `yaml:"contact"`
	Phone     normalize.PhonePlan `yaml:"phone"`
}

// DefaultLists returns the built-in lists.
func DefaultLists() Lists {
	return Lists{
		Normalize: normalize.DefaultLists(),
		Contact:   contact.DefaultLists(),
		Phone:     normalize.ArgentinaPlan,
	}
}

// LoadLists returns DefaultLists overlaid with the file at path. An empty
// path returns the defaults.
func LoadLists(path string) (Lists, error) {
	l := DefaultLists()
	if path == "" {
		return l, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return l, fmt.Errorf("config: read lists: %w", err)
	}
	var file Lists
	if err := yaml.Unmarshal(data, &file); err != nil {
		return l, fmt.Errorf("config: parse lists %s: %w", path, err)
	}

	overlay(&l.Normalize.StopWords, file.Normalize.StopWords)
	overlay(&l.Normalize.Neighborhoods, file.Normalize.Neighborhoods)
	overlay(&l.Normalize.ChainBrands, file.Normalize.ChainBrands)
	overlay(&l.Normalize.ExcludedPlatforms, file.Normalize.ExcludedPlatforms)
	overlay(&l.Contact.Ignored, file.Contact.Ignored)
	overlay(&l.Contact.FileExtensions, file.Contact.FileExtensions)
	overlay(&l.Contact.SuspiciousDomains, file.Contact.SuspiciousDomains)
	if file.Phone.CountryCode != "" {
		l.Phone = file.Phone
	}
	return l, nil
}

func overlay(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}

// Normalizer builds the normalizer for these lists.
func (l Lists) Normalizer() *normalize.Normalizer {
	return normalize.New(l.Normalize, l.Phone, contact.NewFilter(l.Contact))
}
