package config

import (
	"strconv"
	"strings"

	"github.com/Bill1907/prepup/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	LLMProvider  string
	LLMModel     string
	OpenAIAPIKey string
	GeminiAPIKey string

	RealtimeModel string
	RealtimeVoice string

	QueueBackend  string
	SQSQueueURL   string
	RabbitMQURL   string
	RabbitMQQueue string

	VoiceSessionsPerDay       int
	QuestionGenerationsPerDay int

	CacheTTLSeconds int
	CacheMaxEntries int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string

	// Missing records keys that no provider satisfied but are needed by the chosen setup.
	Missing []error
}

// Load reads configuration from the default provider chain.
func Load() Config {
	return LoadFrom(DefaultChain())
}

// LoadFrom builds a Config from an explicit provider chain.
func LoadFrom(chain Chain) Config {
	env := normalizeEnv(chain.Get("ENV", "dev"))

	cfg := Config{
		Port:            chain.Get("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(chain.Get("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		Env:             env,
		DatabaseURL:     chain.Get("DATABASE_URL", ""),

		ObjectStoreType: normalizeStoreType(chain.Get("OBJECT_STORE", "local")),
		LocalStoreDir:   chain.Get("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       chain.Get("AWS_REGION", ""),
		S3Bucket:        chain.Get("S3_BUCKET", ""),
		S3Prefix:        chain.Get("S3_PREFIX", ""),
		SSEKMSKeyID:     chain.Get("SSE_KMS_KEY_ID", ""),

		LLMProvider: strings.ToLower(chain.Get("LLM_PROVIDER", "openai")),
		LLMModel:    chain.Get("LLM_MODEL", ""),

		RealtimeModel: chain.Get("REALTIME_MODEL", "gpt-4o-realtime-preview-2024-12-17"),
		RealtimeVoice: chain.Get("REALTIME_VOICE", "alloy"),

		QueueBackend:  strings.ToLower(chain.Get("QUEUE_BACKEND", "")),
		SQSQueueURL:   chain.Get("RA_SQS_QUEUE_URL", ""),
		RabbitMQURL:   chain.Get("RABBITMQ_URL", ""),
		RabbitMQQueue: chain.Get("RABBITMQ_QUEUE", "resume-analysis"),

		VoiceSessionsPerDay:       getInt(chain, "VOICE_SESSIONS_PER_DAY", 20),
		QuestionGenerationsPerDay: getInt(chain, "QUESTION_GENERATIONS_PER_DAY", 10),

		CacheTTLSeconds: getInt(chain, "CACHE_TTL_SECONDS", 60),
		CacheMaxEntries: getInt(chain, "CACHE_MAX_ENTRIES", 1024),

		GoogleClientID:     chain.Get("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: chain.Get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  chain.Get("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      chain.Get("UI_REDIRECT_URL", ""),
	}

	if key, err := chain.ResolveAny("OPENAI_API_KEY", "OPENAI_KEY"); err == nil {
		cfg.OpenAIAPIKey = key
	} else {
		cfg.Missing = append(cfg.Missing, err)
	}
	if key, err := chain.ResolveAny("GEMINI_API_KEY", "GOOGLE_API_KEY"); err == nil {
		cfg.GeminiAPIKey = key
	} else if cfg.LLMProvider == "gemini" {
		cfg.Missing = append(cfg.Missing, err)
	}

	if cfg.QueueBackend == "" && cfg.SQSQueueURL != "" {
		cfg.QueueBackend = "sqs"
	}

	if env == "production" && cfg.DatabaseURL == "" {
		telemetry.Error("config.missing", map[string]any{"key": "DATABASE_URL", "env": env})
	}

	return cfg
}

func getInt(chain Chain, key string, def int) int {
	raw := chain.Get(key, "")
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "s3") {
		return "s3"
	}
	return "local"
}
