package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full gateway configuration. Values come from the YAML
// file first; environment variables override connection settings so
// deployments can keep secrets out of the file.
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	AlarmServer struct {
		// URL is the externally reachable base address of this gateway,
		// pushed to devices as their notification host.
		URL  string `yaml:"url"`
		Path string `yaml:"path"`
	} `yaml:"alarm_server"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"ssl_mode"`
	} `yaml:"database"`

	Redis struct {
		Addr     string        `yaml:"addr"`
		AlertTTL time.Duration `yaml:"alert_ttl"`
	} `yaml:"redis"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
		RetryMax      int    `yaml:"retry_max"`
	} `yaml:"nats"`

	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		ClientID    string `yaml:"client_id"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`

	Events struct {
		DedupTTL      time.Duration `yaml:"dedup_ttl"`
		DedupMaxKeys  int           `yaml:"dedup_max_keys"`
		PollInterval  time.Duration `yaml:"poll_interval"`
		AuxInterval   time.Duration `yaml:"aux_interval"`
		MaxConcurrent int           `yaml:"max_concurrent"`
	} `yaml:"events"`

	Devices struct {
		Timeout time.Duration `yaml:"timeout"`
		Debug   bool          `yaml:"debug"`
	} `yaml:"devices"`
}

// Defaults fills every field a deployment can reasonably omit.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.AlarmServer.Path = "/api/hikvision"
	cfg.Database.Port = 5432
	cfg.Database.SSLMode = "disable"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.AlertTTL = 15 * time.Second
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.SubjectPrefix = "hikbridge.events"
	cfg.NATS.RetryMax = 3
	cfg.MQTT.ClientID = "hikbridge"
	cfg.MQTT.TopicPrefix = "hikbridge"
	cfg.Events.DedupTTL = 2 * time.Second
	cfg.Events.DedupMaxKeys = 4096
	cfg.Events.PollInterval = 5 * time.Minute
	cfg.Events.AuxInterval = time.Hour
	cfg.Events.MaxConcurrent = 4
	cfg.Devices.Timeout = 10 * time.Second
	return cfg
}

// Load reads the YAML file at path and applies environment overrides. A
// missing file is not an error; env vars and defaults carry a bare
// deployment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setStr(&cfg.Database.Host, "DB_HOST")
	setStr(&cfg.Database.User, "DB_USER")
	setStr(&cfg.Database.Password, "DB_PASSWORD")
	setStr(&cfg.Database.Name, "DB_NAME")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.NATS.URL, "NATS_URL")
	setStr(&cfg.MQTT.Broker, "MQTT_BROKER")
	setStr(&cfg.MQTT.Username, "MQTT_USERNAME")
	setStr(&cfg.MQTT.Password, "MQTT_PASSWORD")
	setStr(&cfg.AlarmServer.URL, "ALARM_SERVER_URL")
	setInt(&cfg.Server.Port, "PORT")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// DSN renders the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password, c.Database.Host,
		c.Database.Port, c.Database.Name, c.Database.SSLMode)
}
