package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mossy-p/voice-broker/internal/agent"
	"github.com/spf13/viper"
)

// Config is built once at startup and never mutated afterwards.
type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string
	Media          MediaConfig
	Agent          agent.Config
	Redis          RedisConfig
	Speech         SpeechConfig
}

// MediaConfig holds the media endpoint and the key material used to sign access credentials.
type MediaConfig struct {
	URL                string
	APIKey             string
	APISecret          string
	TokenTTL           time.Duration
	DefaultRoom        string
	DefaultParticipant string
}

// RedisConfig selects the agent config store. An empty Addr keeps the store in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SpeechConfig configures the speech pipeline capabilities.
type SpeechConfig struct {
	APIKey           string
	BaseURL          string
	LLMModel         string
	STTModel         string
	TTSModel         string
	TTSVoice         string
	SampleRate       int
	NoiseSuppression bool
	VADThreshold     float64
	EndOfTurnSilence time.Duration
}

// SigningConfigured reports whether both halves of the signing key are present.
func (c *Config) SigningConfigured() bool {
	return c.Media.APIKey != "" && c.Media.APISecret != ""
}

// Load reads configuration from the environment and, when CONFIG_FILE is set, a YAML file.
// Environment variables take precedence over file values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("port", "8000")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origins", "http://localhost:3000,http://localhost:5173")

	v.SetDefault("livekit_url", "ws://localhost:8000/ws/media")
	v.SetDefault("token_ttl", "1h")
	v.SetDefault("default_room", "remi-voice-demo")
	v.SetDefault("default_participant", "Customer")

	v.SetDefault("agent_name", agent.DefaultName)
	v.SetDefault("agent_instructions", agent.DefaultInstructions)

	v.SetDefault("redis_db", 0)

	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("stt_model", "whisper-1")
	v.SetDefault("tts_model", "tts-1")
	v.SetDefault("tts_voice", "nova")
	v.SetDefault("sample_rate", 24000)
	v.SetDefault("noise_suppression", true)
	v.SetDefault("vad_threshold", 0.02)
	v.SetDefault("end_of_turn_silence", "700ms")

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Port:           v.GetString("port"),
		Environment:    v.GetString("environment"),
		LogLevel:       v.GetString("log_level"),
		AllowedOrigins: splitList(v.GetString("allowed_origins")),
		Media: MediaConfig{
			URL:                v.GetString("livekit_url"),
			APIKey:             v.GetString("livekit_api_key"),
			APISecret:          v.GetString("livekit_api_secret"),
			TokenTTL:           v.GetDuration("token_ttl"),
			DefaultRoom:        v.GetString("default_room"),
			DefaultParticipant: v.GetString("default_participant"),
		},
		Agent: agent.Config{
			Name:         v.GetString("agent_name"),
			Instructions: v.GetString("agent_instructions"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Speech: SpeechConfig{
			APIKey:           v.GetString("openai_api_key"),
			BaseURL:          strings.TrimRight(v.GetString("openai_base_url"), "/"),
			LLMModel:         v.GetString("llm_model"),
			STTModel:         v.GetString("stt_model"),
			TTSModel:         v.GetString("tts_model"),
			TTSVoice:         v.GetString("tts_voice"),
			SampleRate:       v.GetInt("sample_rate"),
			NoiseSuppression: v.GetBool("noise_suppression"),
			VADThreshold:     v.GetFloat64("vad_threshold"),
			EndOfTurnSilence: v.GetDuration("end_of_turn_silence"),
		},
	}

	if cfg.Media.TokenTTL <= 0 {
		return nil, fmt.Errorf("token_ttl must be positive, got %s", cfg.Media.TokenTTL)
	}
	if cfg.Speech.SampleRate <= 0 {
		return nil, fmt.Errorf("sample_rate must be positive, got %d", cfg.Speech.SampleRate)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
