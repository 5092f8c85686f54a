// Package config loads application configuration from environment
// variables, with defaults, following the teacher's
// internal/infrastructure/config.Load idiom (struct + functional defaults +
// environment override) extended with the pipeline's own settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hermesflow/hermes/internal/domain"
)

// LLMProvider is the closed set of supported LLM backends.
type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "OpenAI"
	ProviderGemini LLMProvider = "Gemini"
)

var defaultModelsByProvider = map[LLMProvider][2]string{
	ProviderOpenAI: {"gpt-4.1", "gpt-4.1-mini"},
	ProviderGemini: {"gemini-2.5-flash-preview-04-17", "gemini-1.5-flash"},
}

// Config is the central configuration for the pipeline, sourced from
// environment variables with defaults provided below.
type Config struct {
	LLMProvider       LLMProvider
	LLMAPIKey         string
	LLMProviderURL    string
	LLMStrongModel    string
	LLMWeakModel      string

	EmbeddingModelName  string
	ChromaEmbeddingDim  int
	ChromaDBPath        string
	ChromaCollectionName string

	InputSpreadsheetID    string
	OutputSpreadsheetID   string
	OutputSpreadsheetName string
	OutputCSV             bool

	ProcessingLimit int

	PromotionSpecs []domain.PromotionSpec

	// ComposerSignature and ComposerBrandVoice are the fixed strings the
	// Composer appends/adopts for every reply (spec §4.7: "the signature
	// and brand voice are fixed strings from configuration").
	ComposerSignature  string
	ComposerBrandVoice string
}

// Load builds a Config from environment variables, applying the same
// defaults as the original implementation's _DEFAULT_CONFIG table.
func Load() (*Config, error) {
	provider := LLMProvider(getEnv("LLM_PROVIDER", string(ProviderGemini)))
	defaults, ok := defaultModelsByProvider[provider]
	if !ok {
		return nil, fmt.Errorf("config: unknown LLM_PROVIDER %q", provider)
	}

	embeddingDim, err := getEnvInt("CHROMA_EMBEDDING_DIM", 1536)
	if err != nil {
		return nil, err
	}
	limit, err := getEnvInt("HERMES_PROCESSING_LIMIT", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LLMProvider:    provider,
		LLMAPIKey:      getEnv("LLM_API_KEY", os.Getenv(strings.ToUpper(string(provider))+"_API_KEY")),
		LLMProviderURL: os.Getenv("LLM_PROVIDER_URL"),
		LLMStrongModel: getEnv("LLM_STRONG_MODEL_NAME", getEnv(strings.ToUpper(string(provider))+"_STRONG_MODEL", defaults[0])),
		LLMWeakModel:   getEnv("LLM_WEAK_MODEL_NAME", getEnv(strings.ToUpper(string(provider))+"_WEAK_MODEL", defaults[1])),

		EmbeddingModelName:   getEnv("EMBEDDING_MODEL_NAME", getEnv("CHROMA_EMBEDDING_MODEL", "text-embedding-3-small")),
		ChromaEmbeddingDim:   embeddingDim,
		ChromaDBPath:         getEnv("CHROMA_DB_PATH", "./chroma_db"),
		ChromaCollectionName: getEnv("CHROMA_COLLECTION_NAME", "product_catalog"),

		InputSpreadsheetID:    getEnv("INPUT_SPREADSHEET_ID", "14fKHsblfqZfWj3iAaM2oA51TlYfQlFT4WKo52fVaQ9U"),
		OutputSpreadsheetID:   os.Getenv("OUTPUT_SPREADSHEET_ID"),
		OutputSpreadsheetName: getEnv("OUTPUT_SPREADSHEET_NAME", "Hermes Output"),
		OutputCSV:             getEnvBool("OUTPUT_CSV", true),

		ProcessingLimit: limit,

		ComposerSignature:  getEnv("COMPOSER_SIGNATURE", "Warm regards,\nThe Hermes Customer Care Team"),
		ComposerBrandVoice: getEnv("COMPOSER_BRAND_VOICE", "friendly, concise, and precise about product details"),
	}

	if path := os.Getenv("PROMOTIONS_FILE"); path != "" {
		specs, err := LoadPromotionSpecs(path)
		if err != nil {
			return nil, err
		}
		cfg.PromotionSpecs = specs
	}

	return cfg, nil
}

// LoadPromotionSpecs reads a YAML file of promotion rules into the
// declarative (conditions, effects) shape the promotion engine consumes.
func LoadPromotionSpecs(path string) ([]domain.PromotionSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading promotions file: %w", err)
	}
	var specs []domain.PromotionSpec
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("config: parsing promotions file %s: %w", path, err)
	}
	return specs, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, value)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	switch strings.ToLower(value) {
	case "true", "1", "t", "yes", "y":
		return true
	default:
		return false
	}
}
