package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"authrisk/internal/riskengine"
)

// Config holds the application configuration: the HTTP boundary knobs
// carried from the teacher, plus the risk-engine and learning-engine knobs
// from spec.md §6.
type Config struct {
	Port                string
	AllowedOrigins      []string
	JWTSecret           string
	AccessTokenTTLMin   int
	RefreshTokenTTLHour int

	RiskWeights        riskengine.Weights
	DefaultThresholds  riskengine.RiskThresholds
	MaxProcessingTime  time.Duration

	LearningRate             float64
	AdaptationWindow         int
	MinSamplesForAdaptation  int
	ThresholdAdjustmentStep  float64
	MaxThresholdAdjustment   float64
	MinThresholdValue        float64
	MaxThresholdValue        float64

	MaxModelVersions        int
	AutoRollbackThreshold   float64
	FeedbackConfidenceThreshold float64
	FeedbackWeightAdmin  float64
	FeedbackWeightUser   float64
	FeedbackWeightSystem float64

	CacheSize int
	CacheTTL  time.Duration

	StorageDir string
}

// LoadConfig loads configuration from environment variables, falling back
// to spec-mandated defaults wherever a variable is absent or malformed.
func LoadConfig() *Config {
	port := getEnv("PORT", "8081")

	validateRequiredEnvVars()

	accessTTL := getEnvInt("ACCESS_TOKEN_TTL_MIN", 15)
	refreshTTL := getEnvInt("REFRESH_TOKEN_TTL_HOUR", 24)

	weights := loadRiskWeights()
	thresholds := loadDefaultThresholds()

	cfg := &Config{
		Port:                port,
		AllowedOrigins:      strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		AccessTokenTTLMin:   accessTTL,
		RefreshTokenTTLHour: refreshTTL,

		RiskWeights:       weights,
		DefaultThresholds: thresholds,
		MaxProcessingTime: time.Duration(getEnvInt("MAX_PROCESSING_TIME_MS", 5000)) * time.Millisecond,

		LearningRate:            getEnvFloat("LEARNING_RATE", 0.01),
		AdaptationWindow:        getEnvInt("ADAPTATION_WINDOW", 100),
		MinSamplesForAdaptation: getEnvInt("MIN_SAMPLES_FOR_ADAPTATION", 10),
		ThresholdAdjustmentStep: getEnvFloat("THRESHOLD_ADJUSTMENT_STEP", 0.05),
		MaxThresholdAdjustment:  getEnvFloat("MAX_THRESHOLD_ADJUSTMENT", 0.3),
		MinThresholdValue:       getEnvFloat("MIN_THRESHOLD_VALUE", 0.1),
		MaxThresholdValue:       getEnvFloat("MAX_THRESHOLD_VALUE", 0.95),

		MaxModelVersions:            getEnvInt("MAX_MODEL_VERSIONS", 10),
		AutoRollbackThreshold:       getEnvFloat("AUTO_ROLLBACK_THRESHOLD", 0.10),
		FeedbackConfidenceThreshold: getEnvFloat("FEEDBACK_CONFIDENCE_THRESHOLD", 0.7),
		FeedbackWeightAdmin:         getEnvFloat("FEEDBACK_WEIGHT_ADMIN", 2.0),
		FeedbackWeightUser:          getEnvFloat("FEEDBACK_WEIGHT_USER", 1.0),
		FeedbackWeightSystem:        getEnvFloat("FEEDBACK_WEIGHT_SYSTEM", 0.5),

		CacheSize: getEnvInt("RISK_CACHE_SIZE", 10000),
		CacheTTL:  time.Duration(getEnvInt("RISK_CACHE_TTL_MS", 2500)) * time.Millisecond,

		StorageDir: getEnv("ADAPTIVE_LEARNING_DIR", "adaptive_learning"),
	}

	log.Printf("🔧 Configuration loaded:")
	log.Printf("   Port: %s", cfg.Port)
	log.Printf("   Allowed Origins: %v", cfg.AllowedOrigins)
	log.Printf("   JWT Access TTL (min): %d", cfg.AccessTokenTTLMin)
	log.Printf("   JWT Refresh TTL (h): %d", cfg.RefreshTokenTTLHour)
	log.Printf("   Risk weights: %+v (sum=%.4f)", cfg.RiskWeights, cfg.RiskWeights.Sum())
	log.Printf("   Default thresholds: %+v", cfg.DefaultThresholds)
	log.Printf("   Storage dir: %s", cfg.StorageDir)

	return cfg
}

// loadRiskWeights reads the seven combiner weights from the environment.
// Per spec.md §6 they must sum to 1.0 ± 1e-6; otherwise defaults are used
// and a warning is logged.
func loadRiskWeights() riskengine.Weights {
	w := riskengine.Weights{
		NLP:         getEnvFloat("RISK_WEIGHT_NLP", riskengine.DefaultWeights().NLP),
		Embedding:   getEnvFloat("RISK_WEIGHT_EMBEDDING", riskengine.DefaultWeights().Embedding),
		Behavioral:  getEnvFloat("RISK_WEIGHT_BEHAVIORAL", riskengine.DefaultWeights().Behavioral),
		Temporal:    getEnvFloat("RISK_WEIGHT_TEMPORAL", riskengine.DefaultWeights().Temporal),
		Geolocation: getEnvFloat("RISK_WEIGHT_GEOLOCATION", riskengine.DefaultWeights().Geolocation),
		Device:      getEnvFloat("RISK_WEIGHT_DEVICE", riskengine.DefaultWeights().Device),
		ThreatIntel: getEnvFloat("RISK_WEIGHT_THREAT_INTEL", riskengine.DefaultWeights().ThreatIntel),
	}

	if !w.Valid() {
		log.Printf("⚠️ Configured risk weights sum to %.4f, not 1.0 ± 1e-6; falling back to defaults", w.Sum())
		return riskengine.DefaultWeights()
	}
	return w
}

func loadDefaultThresholds() riskengine.RiskThresholds {
	t := riskengine.RiskThresholds{
		Low:      getEnvFloat("RISK_THRESHOLD_LOW", riskengine.DefaultRiskThresholds().Low),
		Medium:   getEnvFloat("RISK_THRESHOLD_MEDIUM", riskengine.DefaultRiskThresholds().Medium),
		High:     getEnvFloat("RISK_THRESHOLD_HIGH", riskengine.DefaultRiskThresholds().High),
		Critical: getEnvFloat("RISK_THRESHOLD_CRITICAL", riskengine.DefaultRiskThresholds().Critical),
	}

	if err := t.Validate(); err != nil {
		log.Printf("⚠️ Configured risk thresholds invalid (%v); falling back to defaults", err)
		return riskengine.DefaultRiskThresholds()
	}
	return t
}

// validateRequiredEnvVars checks if required environment variables are set for production
func validateRequiredEnvVars() {
	if os.Getenv("PORT") == "" {
		return
	}

	required := []string{"JWT_SECRET"}

	missing := []string{}
	for _, env := range required {
		if os.Getenv(env) == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		log.Printf("⚠️ Warning: Missing required environment variables: %v", missing)
		log.Printf("ℹ️ The application will use default values, but this may cause issues in production")
	}

	if os.Getenv("DATABASE_URL") == "" && os.Getenv("DB_TYPE") == "" {
		log.Printf("⚠️ Warning: No database configuration found. Will use SQLite fallback.")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration.
func ValidateConfig(cfg *Config) error {
	if cfg.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}
	if err := cfg.DefaultThresholds.Validate(); err != nil {
		return fmt.Errorf("default risk thresholds invalid: %w", err)
	}
	if !cfg.RiskWeights.Valid() {
		return fmt.Errorf("risk weights must sum to 1.0 ± 1e-6, got %.4f", cfg.RiskWeights.Sum())
	}
	return nil
}
