package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	API        APIConfig        `yaml:"api"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
	Session    SessionConfig    `yaml:"session"`
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Notify     NotifyConfig     `yaml:"notify"`
	ParcelDesk ParcelDeskConfig `yaml:"parceldesk"`
}

type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RealtimeConfig struct {
	// "socketio" | "kafka"
	Transport string `yaml:"transport"`
	URL       string `yaml:"url"`

	ReconnectMinSeconds int `yaml:"reconnect_min_seconds"`
	ReconnectMaxSeconds int `yaml:"reconnect_max_seconds"`
	SubscriberBuffer    int `yaml:"subscriber_buffer"`
}

type SessionConfig struct {
	// "file" | "redis"
	TokenStore string `yaml:"token_store"`
	TokenPath  string `yaml:"token_path"`
	Profile    string `yaml:"profile"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

type KafkaConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	ParcelEventsTopic string `yaml:"parcel_events_topic"`
	MirrorTopic       string `yaml:"mirror_topic"`
	ConsumerGroup     string `yaml:"consumer_group"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type NotifyConfig struct {
	VisibleLimit          int `yaml:"visible_limit"`
	DefaultDurationMillis int `yaml:"default_duration_millis"`
}

type ParcelDeskConfig struct {
	RelayHTTPAddr         string `yaml:"relay_http_addr"`
	TrackCacheTTLSeconds  int    `yaml:"track_cache_ttl_seconds"`
	RefreshLimitPerMinute int    `yaml:"refresh_limit_per_minute"`
}

// Enabled reports whether a host was configured for the section.
func (d DatabaseConfig) Enabled() bool { return d.Host != "" }

func (k KafkaConfig) Enabled() bool { return k.Host != "" }

func (r RedisConfig) Enabled() bool { return r.Host != "" }

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
