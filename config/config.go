package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	KIS      KISConfig      `mapstructure:"kis"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type KISConfig struct {
	REST RESTConfig `mapstructure:"rest"`
	WS   WSConfig   `mapstructure:"ws"`

	AppKey    string `mapstructure:"app_key"`
	AppSecret string `mapstructure:"app_secret"`
	CustType  string `mapstructure:"custtype"` // "P" personal, "B" corporate
	Account   string `mapstructure:"account"`  // CANO+ACNT_PRDT_CD, used for order placement
}

type RESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WSConfig struct {
	URL               string        `mapstructure:"url"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"` // base delay, scaled linearly per attempt
	MaxReconnect      int           `mapstructure:"max_reconnect"`
	MonitorInterval   time.Duration `mapstructure:"monitor_interval"` // liveness monitor period
}

type EngineConfig struct {
	HistoryWindow int           `mapstructure:"history_window"` // prices kept per instrument
	Workers       int           `mapstructure:"workers"`        // max concurrent strategy evaluations per tick
	PollInterval  time.Duration `mapstructure:"poll_interval"`  // REST snapshot poll period, 0 disables
	Instruments   []Instrument  `mapstructure:"instruments"`
}

// Instrument maps a vendor instrument code to its internal identity.
type Instrument struct {
	ID   int64  `mapstructure:"id"`
	Code string `mapstructure:"code"` // e.g., "005930"
	Name string `mapstructure:"name"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}

	// Support environment variables with dot notation (e.g., KIS_WS_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	cfg.applyDefaults()

	// App credentials come from Parameter Store in prod; config.yaml in dev.
	if cfg.Log.Environment == "prod" {
		if key := GetParameterStoreValue("KIS_APP_KEY", true); key != "" {
			cfg.KIS.AppKey = key
		}
		if secret := GetParameterStoreValue("KIS_APP_SECRET", true); secret != "" {
			cfg.KIS.AppSecret = secret
		}
	}

	return &cfg
}

func (c *Config) applyDefaults() {
	if c.KIS.WS.HeartbeatInterval == 0 {
		c.KIS.WS.HeartbeatInterval = 30 * time.Second
	}
	if c.KIS.WS.ReconnectInterval == 0 {
		c.KIS.WS.ReconnectInterval = 5 * time.Second
	}
	if c.KIS.WS.MaxReconnect == 0 {
		c.KIS.WS.MaxReconnect = 5
	}
	if c.KIS.WS.MonitorInterval == 0 {
		c.KIS.WS.MonitorInterval = time.Minute
	}
	if c.KIS.CustType == "" {
		c.KIS.CustType = "P"
	}
	if c.Engine.HistoryWindow == 0 {
		c.Engine.HistoryWindow = 200
	}
	if c.Engine.Workers == 0 {
		c.Engine.Workers = 5
	}
}
