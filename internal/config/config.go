package config

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"campus_parking/internal/domain"
	"campus_parking/internal/logging"

	"github.com/joho/godotenv"
)

var ErrMissingAdminSecret = errors.New("ADMIN_SECRET must be set")

type Config struct {
	ServerPort string
	LotsFile   string
	FrameRoot  string
	Seed       int64

	AdminSecret   string
	JWTSecret     string
	AdminTokenTTL time.Duration

	EstimatorBackend         string
	EstimatorTimeout         time.Duration
	EstimatorRatePerSec      float64
	RuleVacantBelow          float64
	RekognitionMinConfidence float32

	PollInterval time.Duration
	PollWorkers  int

	AWSRegion        string
	SQSEventQueueURL string
	IoTMQTTEndpoint  string
	IoTTopicPrefix   string

	GoogleMapsAPIKey string
	CampusCenter     domain.Coordinate

	ServiceName  string
	OTLPEndpoint string
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		logging.Warnf(context.Background(), "config: could not load .env file: %v", err)
	}

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LotsFile:   getEnv("LOTS_FILE", ""),
		FrameRoot:  getEnv("FRAME_ROOT", ""),
		Seed:       int64(getEnvInt("SEED", 0)),

		AdminSecret:   getEnv("ADMIN_SECRET", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		AdminTokenTTL: time.Duration(getEnvInt("ADMIN_TOKEN_TTL_HOURS", 8)) * time.Hour,

		EstimatorBackend:         getEnv("ESTIMATOR_BACKEND", "rule"),
		EstimatorTimeout:         time.Duration(getEnvInt("ESTIMATOR_TIMEOUT_MS", 3000)) * time.Millisecond,
		EstimatorRatePerSec:      getEnvFloat("ESTIMATOR_RATE_PER_SEC", 5),
		RuleVacantBelow:          getEnvFloat("RULE_VACANT_BELOW", 0.12),
		RekognitionMinConfidence: float32(getEnvFloat("REKOGNITION_MIN_CONFIDENCE", 80)),

		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_SEC", 0)) * time.Second,
		PollWorkers:  getEnvInt("POLL_WORKERS", 4),

		AWSRegion:        getEnv("AWS_REGION", "eu-west-2"),
		SQSEventQueueURL: getEnv("SQS_EVENT_QUEUE_URL", ""),
		IoTMQTTEndpoint:  getEnv("IOT_MQTT_ENDPOINT", ""),
		IoTTopicPrefix:   getEnv("IOT_TOPIC_PREFIX", "campus/parking"),

		GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		CampusCenter: domain.Coordinate{
			Lat: getEnvFloat("CAMPUS_LAT", defaultCampusCenter.Lat),
			Lng: getEnvFloat("CAMPUS_LNG", defaultCampusCenter.Lng),
		},

		ServiceName:  getEnv("OTEL_SERVICE_NAME", "campus-parking"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// Validate reports settings the process cannot start without.
func (c *Config) Validate() error {
	if c.AdminSecret == "" {
		return ErrMissingAdminSecret
	}
	return nil
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	logging.Debugf(context.Background(), "config: %s not set, using default", key)
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		logging.Warnf(context.Background(), "config: %s=%q is not an integer, using %d", key, v, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		logging.Warnf(context.Background(), "config: %s=%q is not a number, using %g", key, v, fallback)
	}
	return fallback
}
