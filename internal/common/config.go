package common

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Upload   UploadConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Queue    QueueConfig
	Dedup    DedupConfig
	LogLevel slog.Level
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// UploadConfig holds upload-related configuration
type UploadConfig struct {
	Dir          string
	InboxDir     string // optional watched directory; empty disables the watcher
	MaxFileSize  int64
	AllowedTypes []string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine      string // "gosseract" (in-process) or "tesseract" (CLI)
	Language    string
	TessdataDir string
	Tesseract   string
	PDFDPI      int
	MaxPages    int // PDF pages read per file; 0 reads all
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	APIURL      string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
	Timeout     time.Duration
	// CoerceScalars turns numeric years, GPA and phone into strings before validation.
	CoerceScalars bool
}

// QueueConfig holds worker pool configuration
type QueueConfig struct {
	Workers     int
	Size        int
	TaskTimeout time.Duration
}

// DedupConfig holds duplicate-detection configuration
type DedupConfig struct {
	AmbiguousPolicy string // "duplicate" or "create"
	CountryCode     string
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env") into the
// process environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return NewAppError(CodeConfig, "load "+p, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "sqlite://resume_parser.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8001"),
		},
		Upload: UploadConfig{
			Dir:          getEnv("UPLOAD_DIR", "uploads"),
			InboxDir:     getEnv("INBOX_DIR", ""),
			MaxFileSize:  getEnvAsInt64("MAX_FILE_SIZE", 10*1024*1024),
			AllowedTypes: getEnvAsList("ALLOWED_FILE_TYPES", nil),
		},
		OCR: OCRConfig{
			Engine:      getEnv("OCR_ENGINE", "gosseract"),
			Language:    getEnv("OCR_LANGUAGE", "chi_sim+eng"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			PDFDPI:      getEnvAsInt("OCR_PDF_DPI", 144),
			MaxPages:    getEnvAsInt("OCR_PDF_MAX_PAGES", 0),
		},
		LLM: LLMConfig{
			APIURL:        getEnv("SILICONFLOW_API_URL", "https://api.siliconflow.cn/v1/messages"),
			APIKey:        getEnv("SILICONFLOW_API_KEY", ""),
			Model:         getEnv("LLM_MODEL", "Qwen/Qwen2.5-7B-Instruct"),
			MaxTokens:     getEnvAsInt("MAX_TOKENS", 4096),
			Temperature:   getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			TopP:          getEnvAsFloat32("LLM_TOP_P", 0.9),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			CoerceScalars: getEnvAsBool("LLM_COERCE_SCALARS", true),
		},
		Queue: QueueConfig{
			Workers:     getEnvAsInt("MAX_CONCURRENT_TASKS", 4),
			Size:        getEnvAsInt("TASK_QUEUE_SIZE", 64),
			TaskTimeout: getEnvAsDuration("TASK_TIMEOUT", 300*time.Second),
		},
		Dedup: DedupConfig{
			AmbiguousPolicy: strings.ToLower(getEnv("DUPLICATE_AMBIGUOUS_POLICY", "duplicate")),
			CountryCode:     getEnv("PHONE_COUNTRY_CODE", "86"),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// bare integers are seconds, e.g. TASK_TIMEOUT=300
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	if c.Upload.Dir == "" {
		return NewAppError(CodeConfig, "UPLOAD_DIR is required", ErrInvalidInput)
	}
	if c.Upload.MaxFileSize <= 0 {
		return NewAppError(CodeConfig, "MAX_FILE_SIZE must be positive", ErrInvalidInput)
	}
	if c.Queue.Workers <= 0 || c.Queue.Size <= 0 {
		return NewAppError(CodeConfig, "MAX_CONCURRENT_TASKS and TASK_QUEUE_SIZE must be positive", ErrInvalidInput)
	}
	if c.LLM.Timeout <= 0 {
		return NewAppError(CodeConfig, "LLM_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.OCR.MaxPages < 0 {
		return NewAppError(CodeConfig, "OCR_PDF_MAX_PAGES must not be negative", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case "gosseract", "tesseract":
	default:
		return NewAppError(CodeConfig, "OCR_ENGINE must be gosseract or tesseract", ErrInvalidInput)
	}
	switch c.Dedup.AmbiguousPolicy {
	case "duplicate", "create":
	default:
		return NewAppError(CodeConfig, "DUPLICATE_AMBIGUOUS_POLICY must be duplicate or create", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
