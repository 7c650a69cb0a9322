package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the conversation client.
type Config struct {
	Endpoints EndpointConfig
	Realtime  RealtimeConfig
	Audio     AudioConfig
	Speech    SpeechConfig
	Session   SessionConfig
	Languages LanguageConfig
}

type EndpointConfig struct {
	HTTPBaseURL string
	RealtimeURL string
	TokenURL    string
	StaticToken string
}

type RealtimeConfig struct {
	Model                string
	VADThreshold         float64
	VADPrefixPaddingMS   int
	VADSilenceDurationMS int
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type SpeechConfig struct {
	Command   string
	AutoSpeak bool
}

type SessionConfig struct {
	ChunkSize         int
	FinalizeGrace     time.Duration
	IdleTimeout       time.Duration
	IdleCheckInterval time.Duration
}

type LanguageConfig struct {
	Left  string
	Right string
}

// Load resolves configuration from environment variables and sensible
// defaults.
func Load() Config {
	cfg := Config{
		Endpoints: EndpointConfig{
			HTTPBaseURL: envOrDefault("PARLEY_HTTP_BASE_URL", "http://localhost:8080"),
			RealtimeURL: envOrDefault("PARLEY_REALTIME_URL", "ws://localhost:8080/api/v1/asr/realtime"),
			TokenURL:    strings.TrimSpace(os.Getenv("PARLEY_TOKEN_URL")),
			StaticToken: strings.TrimSpace(os.Getenv("PARLEY_AUTH_TOKEN")),
		},
		Realtime: RealtimeConfig{
			Model:                envOrDefault("PARLEY_ASR_MODEL", "qwen3-asr-flash-realtime"),
			VADThreshold:         envOrDefaultFloat("PARLEY_VAD_THRESHOLD", 0.5),
			VADPrefixPaddingMS:   envOrDefaultInt("PARLEY_VAD_PREFIX_PADDING_MS", 300),
			VADSilenceDurationMS: envOrDefaultInt("PARLEY_VAD_SILENCE_DURATION_MS", 1000),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("PARLEY_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("PARLEY_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("PARLEY_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("PARLEY_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("PARLEY_CHANNELS", 1),
		},
		Speech: SpeechConfig{
			Command:   envOrDefault("PARLEY_SPEAKER_COMMAND", "espeak-ng"),
			AutoSpeak: envOrDefaultBool("PARLEY_AUTO_SPEAK", true),
		},
		Session: SessionConfig{
			ChunkSize:         envOrDefaultInt("PARLEY_AUDIO_CHUNK_SIZE", 3200),
			FinalizeGrace:     envOrDefaultMillis("PARLEY_FINALIZE_GRACE_MS", 3000),
			IdleTimeout:       envOrDefaultMillis("PARLEY_IDLE_TIMEOUT_MS", 30000),
			IdleCheckInterval: envOrDefaultMillis("PARLEY_IDLE_CHECK_INTERVAL_MS", 1000),
		},
		Languages: LanguageConfig{
			Left:  envOrDefault("PARLEY_LANG_LEFT", "zh"),
			Right: envOrDefault("PARLEY_LANG_RIGHT", "en"),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 3200
	}

	return cfg
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultMillis(key string, fallback int) time.Duration {
	ms := envOrDefaultInt(key, fallback)
	if ms < 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}
