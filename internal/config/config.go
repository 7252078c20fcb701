package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Chat     ChatConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
}

type DatabaseConfig struct {
	// Connection is the Postgres DSN. Empty switches every store, knowledge
	// base included, to the in-process memory repositories.
	Connection string
	// HistoryDriver selects where chat history lives: "database" or "memory".
	// The memory driver is the fallback when no durable store is available.
	HistoryDriver string
}

type AIConfig struct {
	OllamaBaseURL  string
	LLMProvider    string
	LLMModel       string
	EmbeddingModel string
	EmbedTopic     string
}

type ChatConfig struct {
	MaxToolIterations int
	TurnTimeout       time.Duration
	MinSimilarity     float64
	TopK              int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	dbConnection := getEnv("DB_CONNECTION_STRING", "")
	historyDriver := getEnv("CHAT_HISTORY_DRIVER", "database")
	if dbConnection == "" {
		// No DSN means there is nothing durable to write to.
		historyDriver = "memory"
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection:    dbConnection,
			HistoryDriver: historyDriver,
		},
		Ai: AIConfig{
			OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:    getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:       getEnv("LLM_MODEL", "qwen2.5"),
			EmbeddingModel: getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			EmbedTopic:     getEnv("EMBED_KNOWLEDGE_TOPIC_NAME", "EMBED_KNOWLEDGE_DOCUMENT"),
		},
		Chat: ChatConfig{
			MaxToolIterations: getEnvAsInt("CHAT_MAX_TOOL_ITERATIONS", 5),
			TurnTimeout:       time.Duration(getEnvAsInt("CHAT_TURN_TIMEOUT_SECONDS", 60)) * time.Second,
			MinSimilarity:     getEnvAsFloat("RAG_MIN_SIMILARITY", 0.5),
			TopK:              getEnvAsInt("RAG_TOP_K", 3),
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
