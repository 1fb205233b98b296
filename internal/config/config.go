package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"chathub-backend/internal/models"
)

const (
	AppName    = "Chat Hub"
	AppVersion = "1.0.0"
)

const controllerSystemPrompt = `You are a Financial Controller Agent, an advanced AI assistant specialized in:
- Financial planning, analysis, and reporting
- Budget management and variance analysis
- Cash flow forecasting and management
- Financial compliance and regulatory requirements
- Cost control and expense management
- Financial risk assessment and mitigation
- Investment analysis and capital allocation
- Management accounting and performance metrics
- Financial audit preparation and support
- Strategic financial decision-making

Provide detailed, actionable financial insights with step-by-step analysis when appropriate.
Always consider financial accuracy, compliance requirements, and best practices in your recommendations.
Support your analysis with relevant financial ratios, metrics, and industry benchmarks where applicable.`

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string
	DBMaxRetries     int
	DBRetryDelay     time.Duration
	RunMigrations    bool
	MigrationsDir    string

	// Redis (optional, enables cross-instance session events)
	RedisURL string

	// Sessions
	SessionSecret     string
	SessionTTL        time.Duration
	LoginPassword     string
	LoginPasswordHash string

	// Webhooks
	WebhookURL                string
	WebhookAPIKey             string
	ControllerWebhookURL      string
	ControllerWebhookUser     string
	ControllerWebhookPassword string

	// Chatbots, keyed by URL slug; ChatbotOrder keeps hub ordering stable.
	Chatbots     map[string]models.ChatbotProfile
	ChatbotOrder []string
}

// Error reports a missing or invalid setting. Handlers render it as an
// in-page panel instead of failing the request.
type Error struct {
	Key     string
	Message string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                      getFirstEnvOrDefault("8501", "PORT", "STREAMLIT_SERVER_PORT"),
		Env:                       getEnvOrDefault("ENV", "development"),
		PostgresHost:              getEnvOrDefault("POSTGRES_HOST", "postgres"),
		PostgresPort:              getEnvAsIntOrDefault("POSTGRES_PORT", 5432),
		PostgresDB:                getEnvOrDefault("POSTGRES_DB", "n8n"),
		PostgresUser:              getEnvOrDefault("POSTGRES_USER", "n8n"),
		PostgresPassword:          getEnvOrDefault("POSTGRES_PASSWORD", "n8npassword"),
		PostgresSSLMode:           getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		DBMaxRetries:              getEnvAsIntOrDefault("DB_MAX_RETRIES", 3),
		DBRetryDelay:              time.Duration(getEnvAsIntOrDefault("DB_RETRY_DELAY_MS", 2000)) * time.Millisecond,
		RunMigrations:             getEnvAsBoolOrDefault("RUN_MIGRATIONS", false),
		MigrationsDir:             getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:                  getEnvOrDefault("REDIS_URL", ""),
		SessionTTL:                time.Duration(getEnvAsIntOrDefault("SESSION_TTL_MINUTES", 720)) * time.Minute,
		LoginPassword:             getEnvOrDefault("LOGIN_PASSWORD", "demo123"),
		LoginPasswordHash:         getEnvOrDefault("LOGIN_PASSWORD_HASH", ""),
		WebhookURL:                getFirstEnvOrDefault("http://lightrag:9621/webhook/chat", "WEBHOOK_URL", "LIGHTRAG_URL"),
		WebhookAPIKey:             getFirstEnvOrDefault("changeme", "WEBHOOK_API_KEY", "LIGHTRAG_API_KEY"),
		ControllerWebhookURL:      getEnvOrDefault("CONTROLLER_WEBHOOK_URL", ""),
		ControllerWebhookUser:     getEnvOrDefault("CONTROLLER_WEBHOOK_USER", ""),
		ControllerWebhookPassword: getEnvOrDefault("CONTROLLER_WEBHOOK_PASSWORD", ""),
	}

	if cfg.Env == "production" {
		cfg.SessionSecret = mustGetEnv("SESSION_SECRET")
	} else {
		cfg.SessionSecret = getEnvOrDefault("SESSION_SECRET", "dev-session-secret-change-me-32b!")
	}

	cfg.Chatbots, cfg.ChatbotOrder = buildChatbots(cfg)
	return cfg
}

func buildChatbots(cfg *Config) (map[string]models.ChatbotProfile, []string) {
	profiles := []models.ChatbotProfile{
		{
			Key:          "ian_cruz",
			Name:         "Chat with Ian Cruz",
			Description:  "Personal assistant and knowledge expert",
			Icon:         "👨‍💼",
			SystemPrompt: "You are Ian Cruz, a knowledgeable assistant ready to help with various topics and questions.",
			ChatbotType:  "ian_cruz",
			Endpoint:     cfg.WebhookURL,
			Auth:         models.WebhookAuth{Scheme: models.AuthBearer, Token: cfg.WebhookAPIKey},
			Timeout:      30 * time.Second,
		},
		{
			Key:          "controller",
			Name:         "Financial Controller",
			Description:  "Financial analysis and planning expert",
			Icon:         "💰",
			Tip:          "Budgets • Analysis • Cash Flow • Investments • Planning",
			SystemPrompt: controllerSystemPrompt,
			ChatbotType:  "financial_controller",
			Endpoint:     cfg.ControllerWebhookURL,
			Auth: models.WebhookAuth{
				Scheme:   models.AuthBasic,
				Username: cfg.ControllerWebhookUser,
				Password: cfg.ControllerWebhookPassword,
			},
			Timeout: 45 * time.Second,
		},
	}

	byKey := make(map[string]models.ChatbotProfile, len(profiles))
	order := make([]string, 0, len(profiles))
	for _, p := range profiles {
		byKey[p.Key] = p
		order = append(order, p.Key)
	}
	return byKey, order
}

// PostgresDSN builds a keyword/value connection string for pgx.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresUser, quoteDSN(c.PostgresPassword), c.PostgresSSLMode)
}

// Chatbot returns the profile for key, or a *Error when it is unknown or
// its webhook settings are incomplete.
func (c *Config) Chatbot(key string) (models.ChatbotProfile, error) {
	p, ok := c.Chatbots[key]
	if !ok {
		return models.ChatbotProfile{}, &Error{Key: key, Message: "unknown chatbot"}
	}
	if err := p.Validate(); err != nil {
		return p, &Error{Key: key, Message: err.Error()}
	}
	return p, nil
}

// ChatbotList returns every profile in hub order.
func (c *Config) ChatbotList() []models.ChatbotProfile {
	out := make([]models.ChatbotProfile, 0, len(c.ChatbotOrder))
	for _, key := range c.ChatbotOrder {
		out = append(out, c.Chatbots[key])
	}
	return out
}

// Validate checks settings that would keep the server from starting.
// Chatbot problems are not fatal; they surface on the chat page.
func (c *Config) Validate() error {
	if c.PostgresPort <= 0 {
		return &Error{Key: "POSTGRES_PORT", Message: "must be a positive integer"}
	}
	if c.DBMaxRetries < 1 {
		return &Error{Key: "DB_MAX_RETRIES", Message: "must be at least 1"}
	}
	if c.DBRetryDelay < 0 {
		return &Error{Key: "DB_RETRY_DELAY_MS", Message: "must not be negative"}
	}
	if c.LoginPassword == "" && c.LoginPasswordHash == "" {
		return &Error{Key: "LOGIN_PASSWORD", Message: "either LOGIN_PASSWORD or LOGIN_PASSWORD_HASH must be set"}
	}
	if len(c.SessionSecret) < 16 {
		return &Error{Key: "SESSION_SECRET", Message: "must be at least 16 characters"}
	}
	return nil
}

func quoteDSN(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getFirstEnvOrDefault returns the first non-empty variable among keys.
// Later keys are older names kept for existing deployments.
func getFirstEnvOrDefault(defaultVal string, keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return defaultVal
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
