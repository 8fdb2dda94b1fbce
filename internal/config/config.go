package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Epic OAuth2 / SMART-on-FHIR Configuration
	EpicClientID     string
	EpicClientSecret string
	EpicAuthBaseURL  string
	EpicFHIRBaseURL  string
	EpicRedirectURI  string
	EpicScopes       string

	// Scheduling Configuration
	SchedulingProtocol  string // "parameters" ($find/$book) or "resource" (Slot search + Appointment POST)
	SlotSearchWindow    time.Duration
	SchedulingTimeout   time.Duration
	SchedulingProviderID string

	// Call Flow Configuration
	AuthPollInterval time.Duration
	AuthPollAttempts int
	ListenTimeout    time.Duration
	SessionTTL       time.Duration

	// Email Configuration
	EmailProvider     string // "sendgrid", "ses", or "stub"
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string

	// Summarizer Configuration
	SummaryProvider string // "bedrock", "gemini", or "stub"
	BedrockModelID  string
	GeminiAPIKey    string
	GeminiModelID   string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	ConsoleEnabled     bool
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		EpicClientID:     getEnv("EPIC_CLIENT_ID", ""),
		EpicClientSecret: getEnv("EPIC_CLIENT_SECRET", ""),
		EpicAuthBaseURL:  getEnv("EPIC_AUTH_BASE", "https://fhir.epic.com/interconnect-fhir-oauth/oauth2"),
		EpicFHIRBaseURL:  getEnv("EPIC_FHIR_BASE", ""),
		EpicRedirectURI:  getEnv("EPIC_REDIRECT_URI", ""),
		EpicScopes:       getEnv("EPIC_SCOPE", "launch/patient patient/Appointment.write patient/Slot.read openid fhirUser offline_access"),

		SchedulingProtocol:   strings.ToLower(strings.TrimSpace(getEnv("SCHEDULING_PROTOCOL", "parameters"))),
		SlotSearchWindow:     getEnvAsDuration("SLOT_SEARCH_WINDOW", 14*24*time.Hour),
		SchedulingTimeout:    getEnvAsDuration("SCHEDULING_TIMEOUT", 30*time.Second),
		SchedulingProviderID: getEnv("SCHEDULING_PROVIDER_ID", ""),

		AuthPollInterval: getEnvAsDuration("AUTH_POLL_INTERVAL", 5*time.Second),
		AuthPollAttempts: getEnvAsInt("AUTH_POLL_ATTEMPTS", 24),
		ListenTimeout:    getEnvAsDuration("LISTEN_TIMEOUT", 10*time.Second),
		SessionTTL:       getEnvAsDuration("SESSION_TTL", 30*time.Minute),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Virtual Care Assistant"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Virtual Care Assistant"),

		SummaryProvider: strings.ToLower(strings.TrimSpace(getEnv("SUMMARY_PROVIDER", "stub"))),
		BedrockModelID:  getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:   getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ConsoleEnabled:     getEnvAsBool("CONSOLE_ENABLED", true),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated environment variable, dropping empty
// entries.
func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
