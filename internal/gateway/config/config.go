package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	// SettingsPath is the SQLite file for keys, key index and quota; empty
	// keeps settings in memory.
	SettingsPath string
	// BackendURL points the coach at a remote gateway's REST backend instead
	// of the local repositories.
	BackendURL string
	// SeedKeys is a comma separated credential list used when none are stored.
	SeedKeys string
	// AllowedOrigins is the CORS allow list; empty allows any origin.
	AllowedOrigins []string
	FakeLLM        bool
	OTelStdout     bool
	Snapshot       SnapshotConfig
	NATS           NATSConfig
	Gemini         GeminiConfig
	OpenAI         OpenAIConfig
	Policy         Policy
}

type SnapshotConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether enough is configured to reach an object store.
func (c SnapshotConfig) CanUseS3() bool {
	return c.Enabled &&
		strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

type NATSConfig struct {
	URL     string
	Subject string
}

type GeminiConfig struct {
	Model      string
	EmbedModel string
	LiveModel  string
	BaseURL    string
}

type OpenAIConfig struct {
	Model   string
	BaseURL string
}

// Policy holds the coaching cadence and budget knobs. Zero fields keep the
// package defaults of the component they configure.
type Policy struct {
	Interval         time.Duration `yaml:"interval"`
	FrameRetryDelay  time.Duration `yaml:"frameRetryDelay"`
	Backoff          time.Duration `yaml:"backoff"`
	CallTimeout      time.Duration `yaml:"callTimeout"`
	DiffThreshold    float64       `yaml:"diffThreshold"`
	FrameMaxAge      time.Duration `yaml:"frameMaxAge"`
	DailyLimit       int           `yaml:"dailyLimit"`
	SafetyLimit      int           `yaml:"safetyLimit"`
	RateLimit        float64       `yaml:"rateLimit"`
	RateBurst        int           `yaml:"rateBurst"`
	HistoryLimit     int           `yaml:"historyLimit"`
	ChatHistoryLimit int           `yaml:"chatHistoryLimit"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	return FromEnv(*port)
}

// FromEnv builds the configuration from the process environment. port is
// the flag default, overridden by PORT.
func FromEnv(port string) (*Config, error) {
	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			port = envPort
		} else {
			port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	policy, err := loadPolicy(strings.TrimSpace(os.Getenv("COACH_POLICY_FILE")))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:           port,
		Env:            env,
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SettingsPath:   firstNonEmpty(strings.TrimSpace(os.Getenv("SETTINGS_PATH")), defaultSettingsPath(env)),
		BackendURL:     strings.TrimSpace(os.Getenv("BACKEND_URL")),
		SeedKeys:       firstNonEmpty(strings.TrimSpace(os.Getenv("SCREENBUDDY_API_KEYS")), strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))),
		AllowedOrigins: splitList(os.Getenv("CORS_ORIGINS")),
		FakeLLM:        envBool("FAKE_LLM", false),
		OTelStdout:     envBool("OTEL_STDOUT", false),
		Snapshot:       loadSnapshotConfig(env),
		NATS: NATSConfig{
			URL:     strings.TrimSpace(os.Getenv("NATS_URL")),
			Subject: strings.TrimSpace(os.Getenv("NATS_SUBJECT")),
		},
		Gemini: GeminiConfig{
			Model:      strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
			EmbedModel: strings.TrimSpace(os.Getenv("GEMINI_EMBED_MODEL")),
			LiveModel:  strings.TrimSpace(os.Getenv("GEMINI_LIVE_MODEL")),
			BaseURL:    strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")),
		},
		OpenAI: OpenAIConfig{
			Model:   strings.TrimSpace(os.Getenv("OPENAI_MODEL")),
			BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		},
		Policy: policy,
	}, nil
}

func loadPolicy(path string) (Policy, error) {
	var p Policy
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if p.DailyLimit > 0 && p.SafetyLimit >= p.DailyLimit {
		return p, fmt.Errorf("policy: safetyLimit %d must be below dailyLimit %d", p.SafetyLimit, p.DailyLimit)
	}
	return p, nil
}

func defaultSettingsPath(env string) string {
	if strings.EqualFold(env, "test") {
		return ""
	}
	return "tmp/settings.db"
}

func loadSnapshotConfig(env string) SnapshotConfig {
	endpoint := resolveSnapshotEndpoint(env)
	return SnapshotConfig{
		Enabled:   strings.EqualFold(strings.TrimSpace(env), "local") || endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_BUCKET")), "screenbuddy-snapshots"),
		UseSSL:    resolveSnapshotUseSSL(env),
	}
}

func resolveSnapshotEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("SNAPSHOT_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("SNAPSHOT_S3_ENDPOINT"))
}

func resolveSnapshotUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	return envBool("SNAPSHOT_S3_USE_SSL", true)
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
