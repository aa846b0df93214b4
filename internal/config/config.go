package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	ResolveTimeout int    `yaml:"resolve_timeout_ms"`
}

type VoiceConfig struct {
	SampleRate       int  `yaml:"sample_rate"`
	Channels         int  `yaml:"channels"`
	MaxWordsPerChunk int  `yaml:"max_words_per_chunk"`
	LeadInMS         int  `yaml:"lead_in_ms"`
	Debug            bool `yaml:"debug"`
}

type SynthConfig struct {
	Mode    string `yaml:"mode"` // mock, exec
	Command string `yaml:"command"`
	Voice   string `yaml:"voice"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type MemoryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Timeout  int    `yaml:"timeout_ms"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Auth        AuthConfig      `yaml:"auth"`
	Voice       VoiceConfig     `yaml:"voice"`
	Synth       SynthConfig     `yaml:"synth"`
	Bus         BusConfig       `yaml:"bus"`
	Store       StoreConfig     `yaml:"store"`
	Memory      MemoryConfig    `yaml:"memory"`
}

func Default() Config {
	return Config{
		RuntimeName: "alyve-voice",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Auth: AuthConfig{
			ResolveTimeout: 3000,
		},
		Voice: VoiceConfig{
			SampleRate:       24000,
			Channels:         1,
			MaxWordsPerChunk: 10,
			LeadInMS:         150,
		},
		Synth: SynthConfig{
			Mode: "mock",
		},
		Bus: BusConfig{
			Enabled:        false,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Store: StoreConfig{
			Path:          "./data/alyve-conversations.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Memory: MemoryConfig{
			Enabled:  false,
			Endpoint: "http://localhost:8001/rag/add_memory",
			Timeout:  10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "ALYVE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "ALYVE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "ALYVE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "ALYVE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "ALYVE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "ALYVE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "ALYVE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "ALYVE_TELEMETRY_PROMETHEUS_BIND")
	overrideString(&cfg.Auth.JWTSecret, "ALYVE_AUTH_JWT_SECRET")
	overrideInt(&cfg.Auth.ResolveTimeout, "ALYVE_AUTH_RESOLVE_TIMEOUT_MS")
	overrideInt(&cfg.Voice.SampleRate, "ALYVE_VOICE_SAMPLE_RATE")
	overrideInt(&cfg.Voice.Channels, "ALYVE_VOICE_CHANNELS")
	overrideInt(&cfg.Voice.MaxWordsPerChunk, "ALYVE_VOICE_MAX_WORDS_PER_CHUNK")
	overrideInt(&cfg.Voice.LeadInMS, "ALYVE_VOICE_LEAD_IN_MS")
	overrideBool(&cfg.Voice.Debug, "ALYVE_VOICE_DEBUG")
	overrideString(&cfg.Synth.Mode, "ALYVE_SYNTH_MODE")
	overrideString(&cfg.Synth.Command, "ALYVE_SYNTH_COMMAND")
	overrideString(&cfg.Synth.Voice, "ALYVE_SYNTH_VOICE")
	overrideBool(&cfg.Bus.Enabled, "ALYVE_BUS_ENABLED")
	overrideStringSlice(&cfg.Bus.Servers, "ALYVE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "ALYVE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "ALYVE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "ALYVE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "ALYVE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "ALYVE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "ALYVE_STORE_PATH")
	overrideString(&cfg.Store.RetentionMode, "ALYVE_STORE_RETENTION_MODE")
	overrideInt(&cfg.Store.RetentionDays, "ALYVE_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxSessions, "ALYVE_STORE_MAX_SESSIONS")
	overrideBool(&cfg.Store.VacuumOnStart, "ALYVE_STORE_VACUUM_ON_START")
	overrideBool(&cfg.Memory.Enabled, "ALYVE_MEMORY_ENABLED")
	overrideString(&cfg.Memory.Endpoint, "ALYVE_MEMORY_ENDPOINT")
	overrideString(&cfg.Memory.APIKey, "ALYVE_MEMORY_API_KEY")
	overrideInt(&cfg.Memory.Timeout, "ALYVE_MEMORY_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Auth.ResolveTimeout < 0 {
		return errors.New("auth.resolve_timeout_ms must be >= 0")
	}
	if cfg.Voice.SampleRate <= 0 {
		return errors.New("voice.sample_rate must be positive")
	}
	if cfg.Voice.Channels <= 0 {
		return errors.New("voice.channels must be positive")
	}
	if cfg.Voice.MaxWordsPerChunk <= 0 {
		return errors.New("voice.max_words_per_chunk must be >= 1")
	}
	if cfg.Voice.LeadInMS < 0 {
		return errors.New("voice.lead_in_ms must be >= 0")
	}
	switch cfg.Synth.Mode {
	case "mock", "exec":
	default:
		return errors.New("synth.mode must be one of mock|exec")
	}
	if cfg.Synth.Mode == "exec" && cfg.Synth.Command == "" {
		return errors.New("synth.command must be set when mode=exec")
	}
	if cfg.Bus.Enabled && len(cfg.Bus.Servers) == 0 {
		return errors.New("bus.servers must not be empty when bus is enabled")
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	switch cfg.Store.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	if cfg.Memory.Enabled {
		if cfg.Memory.Endpoint == "" {
			return errors.New("memory.endpoint must not be empty when memory indexing is enabled")
		}
		if cfg.Memory.Timeout <= 0 {
			return errors.New("memory.timeout_ms must be positive when memory indexing is enabled")
		}
	}
	return nil
}
