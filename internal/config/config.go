package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Retrieval RetrievalConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	TurnEventsTopic    string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	HuggingFace  string
	Jina         string
	GoogleGemini string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini", "ollama" or "jina"
	OllamaBaseURL     string
	OllamaEmbedModel  string

	// Primary generation backend (cloud) with a local fallback. The pair is
	// evaluated once per call by the failover provider.
	LLMProvider      string
	LLMModel         string
	LLMBaseURL       string
	FallbackProvider string
	FallbackModel    string

	RerankerBaseURL string
}

type RetrievalConfig struct {
	TopK                int
	SimilarityThreshold float64
	RerankTopN          int
	RerankTimeoutMs     int
	StallWindowSec      int
	TurnDeadlineSec     int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			TurnEventsTopic:    getEnv("TURN_EVENTS_TOPIC_NAME", "TURN_EVENTS"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
			Jina:         getEnv("JINA_API_KEY", ""),
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaEmbedModel:  getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "huggingface"),
			LLMModel:          getEnv("LLM_MODEL", "meta-llama/Llama-3.1-8B-Instruct"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", "https://router.huggingface.co/v1"),
			FallbackProvider:  getEnv("LLM_FALLBACK_PROVIDER", "ollama"),
			FallbackModel:     getEnv("LLM_FALLBACK_MODEL", "llama3"),
			RerankerBaseURL:   getEnv("RERANKER_BASE_URL", "https://api.jina.ai/v1/rerank"),
		},
		Retrieval: RetrievalConfig{
			TopK:                getEnvAsInt("RETRIEVAL_TOP_K", 12),
			SimilarityThreshold: getEnvAsFloat("RETRIEVAL_SIMILARITY_THRESHOLD", 0.35),
			RerankTopN:          getEnvAsInt("RERANK_TOP_N", 6),
			RerankTimeoutMs:     getEnvAsInt("RERANK_TIMEOUT_MS", 3000),
			StallWindowSec:      getEnvAsInt("STREAM_STALL_WINDOW_SEC", 20),
			TurnDeadlineSec:     getEnvAsInt("TURN_DEADLINE_SEC", 120),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
