package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"stepflow/internal/executor"
	"stepflow/internal/locator"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Chrome    ChromeConfig    `mapstructure:"chrome"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	Mode         string `mapstructure:"mode"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // mysql or sqlite
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"name"`
	Charset  string `mapstructure:"charset"`
	Path     string `mapstructure:"path"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	ExpireTime int    `mapstructure:"expire_time"` // seconds
}

// AuthConfig holds the single operator account of the control API.
type AuthConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt
}

type ChromeConfig struct {
	HeadlessMode bool   `mapstructure:"headless"`
	RemoteURL    string `mapstructure:"remote_url"`
	Path         string `mapstructure:"path"`
	Device       string `mapstructure:"device"`
}

type ExecutionConfig struct {
	ElementTimeout      time.Duration `mapstructure:"element_timeout"`
	FallbackTimeout     time.Duration `mapstructure:"fallback_timeout"`
	LastFallbackTimeout time.Duration `mapstructure:"last_fallback_timeout"`
	NavigationTimeout   time.Duration `mapstructure:"navigation_timeout"`
	SettleDelay         time.Duration `mapstructure:"settle_delay"`
	SettleTick          time.Duration `mapstructure:"settle_tick"`
	StepDelay           time.Duration `mapstructure:"step_delay"`
	ScreenshotDir       string        `mapstructure:"screenshot_dir"`
	BaseURL             string        `mapstructure:"base_url"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Timeouts converts the execution settings into the engine's timeout bundle.
func (e ExecutionConfig) Timeouts() executor.Timeouts {
	return executor.Timeouts{
		Locator: locator.Timeouts{
			Primary:      e.ElementTimeout,
			Fallback:     e.FallbackTimeout,
			LastFallback: e.LastFallbackTimeout,
		},
		Navigation: e.NavigationTimeout,
		StepDelay:  e.StepDelay,
	}
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.Charset,
	)
}

var defaults = map[string]any{
	"server.port":          "8080",
	"server.host":          "0.0.0.0",
	"server.mode":          "debug",
	"server.read_timeout":  30,
	"server.write_timeout": 30,

	"database.driver":   "sqlite",
	"database.host":     "127.0.0.1",
	"database.port":     "3306",
	"database.username": "root",
	"database.password": "root",
	"database.name":     "stepflow",
	"database.charset":  "utf8mb4",
	"database.path":     "stepflow.db",

	"jwt.secret":      "stepflow-secret-key",
	"jwt.expire_time": 24 * 3600,

	"auth.username":      "admin",
	"auth.password_hash": "",

	"chrome.headless":   true,
	"chrome.remote_url": "",
	"chrome.path":       "",
	"chrome.device":     "",

	"execution.element_timeout":       10 * time.Second,
	"execution.fallback_timeout":      2 * time.Second,
	"execution.last_fallback_timeout": time.Second,
	"execution.navigation_timeout":    30 * time.Second,
	"execution.settle_delay":          3 * time.Second,
	"execution.settle_tick":           100 * time.Millisecond,
	"execution.step_delay":            500 * time.Millisecond,
	"execution.screenshot_dir":        "./screenshots",
	"execution.base_url":              "",

	"log.level":       "info",
	"log.development": false,
}

var envNames = map[string]string{
	"server.port":          "SERVER_PORT",
	"server.host":          "SERVER_HOST",
	"server.mode":          "SERVER_MODE",
	"server.read_timeout":  "SERVER_READ_TIMEOUT",
	"server.write_timeout": "SERVER_WRITE_TIMEOUT",

	"database.driver":   "DB_DRIVER",
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.username": "DB_USERNAME",
	"database.password": "DB_PASSWORD",
	"database.name":     "DB_NAME",
	"database.charset":  "DB_CHARSET",
	"database.path":     "DB_PATH",

	"jwt.secret":      "JWT_SECRET",
	"jwt.expire_time": "JWT_EXPIRE_TIME",

	"auth.username":      "AUTH_USERNAME",
	"auth.password_hash": "AUTH_PASSWORD_HASH",

	"chrome.headless":   "CHROME_HEADLESS",
	"chrome.remote_url": "CHROME_REMOTE_URL",
	"chrome.path":       "CHROME_PATH",
	"chrome.device":     "CHROME_DEVICE",

	"execution.element_timeout":       "EXEC_ELEMENT_TIMEOUT",
	"execution.fallback_timeout":      "EXEC_FALLBACK_TIMEOUT",
	"execution.last_fallback_timeout": "EXEC_LAST_FALLBACK_TIMEOUT",
	"execution.navigation_timeout":    "EXEC_NAVIGATION_TIMEOUT",
	"execution.settle_delay":          "EXEC_SETTLE_DELAY",
	"execution.settle_tick":           "EXEC_SETTLE_TICK",
	"execution.step_delay":            "EXEC_STEP_DELAY",
	"execution.screenshot_dir":        "EXEC_SCREENSHOT_DIR",
	"execution.base_url":              "EXEC_BASE_URL",

	"log.level":       "LOG_LEVEL",
	"log.development": "LOG_DEVELOPMENT",
}

// ConfigEnv names the environment variable that points at a config file.
const ConfigEnv = "STEPFLOW_CONFIG"

// Loader reads configuration from defaults, an optional YAML file and the environment.
type Loader struct {
	v *viper.Viper
}

func NewLoader() *Loader {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	for key, env := range envNames {
		_ = v.BindEnv(key, env)
	}
	return &Loader{v: v}
}

// Load uses the file named by STEPFLOW_CONFIG when set, else defaults and env only.
func (l *Loader) Load() (*Config, error) {
	if path := os.Getenv(ConfigEnv); path != "" {
		return l.LoadFromFile(path)
	}
	return l.unmarshal()
}

func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &cfg, nil
}

// LoadConfig loads from path when given, otherwise via Load.
func LoadConfig(path string) (*Config, error) {
	l := NewLoader()
	if path != "" {
		return l.LoadFromFile(path)
	}
	return l.Load()
}
