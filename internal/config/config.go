package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	GeminiKey        string
	DefaultProvider  string
	FallbackProvider string
	EmbedProvider    string
	GenerateModel    string
	EmbedModel       string
	MaxRetries       int
	GenerateTimeout  time.Duration
	EmbedTimeout     time.Duration
}

type EngineConfig struct {
	EmbeddingDim      int
	ChunkSize         int
	ChunkOverlap      int
	DefaultTopK       int
	DefaultThreshold  float64
	VectorWeight      float64
	LexicalWeight     float64
	CrossModalPenalty float64
	AnswerTTL         time.Duration
	EmbedCacheTTL     time.Duration
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	embeddingDim, err := getEnvInt("EMBEDDING_DIM", 768)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_DIM: %w", err)
	}

	chunkSize, err := getEnvInt("CHUNK_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_SIZE: %w", err)
	}

	chunkOverlap, err := getEnvInt("CHUNK_OVERLAP", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_OVERLAP: %w", err)
	}

	topK, err := getEnvInt("RETRIEVAL_TOP_K", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRIEVAL_TOP_K: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			GeminiKey:        getEnv("GEMINI_API_KEY", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "gemini"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			EmbedProvider:    getEnv("LLM_EMBED_PROVIDER", "gemini"),
			GenerateModel:    getEnv("LLM_GENERATE_MODEL", ""),
			EmbedModel:       getEnv("LLM_EMBED_MODEL", ""),
			MaxRetries:       maxRetries,
			GenerateTimeout:  getEnvDuration("LLM_GENERATE_TIMEOUT", 60*time.Second),
			EmbedTimeout:     getEnvDuration("LLM_EMBED_TIMEOUT", 20*time.Second),
		},
		Engine: EngineConfig{
			EmbeddingDim:      embeddingDim,
			ChunkSize:         chunkSize,
			ChunkOverlap:      chunkOverlap,
			DefaultTopK:       topK,
			DefaultThreshold:  getEnvFloat("RETRIEVAL_THRESHOLD", 0.0),
			VectorWeight:      getEnvFloat("HYBRID_VECTOR_WEIGHT", 0.7),
			LexicalWeight:     getEnvFloat("HYBRID_LEXICAL_WEIGHT", 0.3),
			CrossModalPenalty: getEnvFloat("HYBRID_CROSS_MODAL_PENALTY", 0.9),
			AnswerTTL:         getEnvDuration("ANSWER_CACHE_TTL", 24*time.Hour),
			EmbedCacheTTL:     getEnvDuration("EMBEDDING_CACHE_TTL", 7*24*time.Hour),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
