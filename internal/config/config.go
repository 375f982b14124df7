package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

const envPrefix = "TTPRO"

// ---- Root ----

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Firebase  FirebaseConfig  `mapstructure:"firebase"`
	MySQL     DatabaseConfig  `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Lock      LockConfig      `mapstructure:"lock"`
}

// ---- Leaf structs ----

type AppConfig struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// Production reports whether the process runs in production mode.
func (a AppConfig) Production() bool {
	return strings.EqualFold(strings.TrimSpace(a.Environment), "production")
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	Port string `mapstructure:"port"` // overrides the port of Addr when set
}

// ListenAddr returns ":<port>" when a port is configured, Addr otherwise.
func (h HTTPConfig) ListenAddr() string {
	if p := strings.TrimSpace(h.Port); p != "" {
		return ":" + p
	}
	if h.Addr == "" {
		return ":8000"
	}
	return h.Addr
}

type FirebaseConfig struct {
	CredentialsFile string        `mapstructure:"credentials_file"`
	ProjectID       string        `mapstructure:"project_id"`
	ClientEmail     string        `mapstructure:"client_email"`
	PrivateKey      string        `mapstructure:"private_key"`
	ClientID        string        `mapstructure:"client_id"`
	PrivateKeyID    string        `mapstructure:"private_key_id"`
	VerifyTimeout   time.Duration `mapstructure:"verify_timeout"` // 0 = caller's deadline only
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

type QuotaConfig struct {
	Daily                   int64 `mapstructure:"daily"`
	WarningThreshold        int64 `mapstructure:"warning_threshold"`
	CircuitBreakerThreshold int64 `mapstructure:"circuit_breaker_threshold"`
}

type LockConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// legacyEnv maps config keys to the unprefixed variables used by existing deployments.
var legacyEnv = map[string]string{
	"app.environment":                 "ENVIRONMENT",
	"http.port":                       "PORT",
	"firebase.credentials_file":       "GOOGLE_APPLICATION_CREDENTIALS",
	"firebase.project_id":             "FIREBASE_PROJECT_ID",
	"firebase.client_email":           "FIREBASE_CLIENT_EMAIL",
	"firebase.private_key":            "FIREBASE_PRIVATE_KEY",
	"firebase.client_id":              "FIREBASE_CLIENT_ID",
	"firebase.private_key_id":         "FIREBASE_PRIVATE_KEY_ID",
	"quota.daily":                     "YOUTUBE_DAILY_QUOTA",
	"quota.warning_threshold":         "QUOTA_WARNING_THRESHOLD",
	"quota.circuit_breaker_threshold": "QUOTA_CIRCUIT_BREAKER_THRESHOLD",
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides
// (TTPRO_* plus the legacy unprefixed names). Prefixed variables win over legacy ones.
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (TTPRO_*)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
