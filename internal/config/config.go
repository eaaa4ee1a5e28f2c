package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting the services need. It is built once in
// main and handed to each constructor; nothing reads the environment after
// Load returns.
type Config struct {
	OpenAIAPIKey   string
	EmbeddingModel string
	EmbeddingURL   string

	PineconeHost   string
	PineconeAPIKey string

	ChatEndpoint string

	DatabaseURL string
	HTTPPort    string
	LogLevel    string

	RequestTimeout time.Duration
}

func Load() (*Config, error) {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-large"),
		EmbeddingURL:   getEnv("OPENAI_EMBEDDING_URL", "https://api.openai.com/v1/embeddings"),
		PineconeHost:   getEnv("PINECONE_HOST", ""),
		PineconeAPIKey: getEnv("PINECONE_API_KEY", ""),
		ChatEndpoint:   getEnv("CHAT_ENDPOINT", ""),
		DatabaseURL:    getEnv("DATABASE_URL", "alex_assistant.db"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		RequestTimeout: time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 120)) * time.Second,
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required")
	}
	if cfg.PineconeHost == "" {
		return nil, fmt.Errorf("PINECONE_HOST environment variable is required")
	}
	if cfg.ChatEndpoint == "" {
		return nil, fmt.Errorf("CHAT_ENDPOINT environment variable is required")
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
