package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Endpoints.HTTPBaseURL != "http://localhost:8080" {
		t.Fatalf("http base url = %q", cfg.Endpoints.HTTPBaseURL)
	}
	if cfg.Endpoints.RealtimeURL != "ws://localhost:8080/api/v1/asr/realtime" {
		t.Fatalf("realtime url = %q", cfg.Endpoints.RealtimeURL)
	}
	if cfg.Realtime.Model != "qwen3-asr-flash-realtime" {
		t.Fatalf("model = %q", cfg.Realtime.Model)
	}
	if cfg.Realtime.VADThreshold != 0.5 || cfg.Realtime.VADPrefixPaddingMS != 300 || cfg.Realtime.VADSilenceDurationMS != 1000 {
		t.Fatalf("vad defaults = %+v", cfg.Realtime)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Fatalf("audio defaults = %+v", cfg.Audio)
	}
	if !cfg.Speech.AutoSpeak {
		t.Fatalf("auto speak should default on")
	}
	if cfg.Session.ChunkSize != 3200 {
		t.Fatalf("chunk size = %d", cfg.Session.ChunkSize)
	}
	if cfg.Session.FinalizeGrace != 3*time.Second {
		t.Fatalf("finalize grace = %s", cfg.Session.FinalizeGrace)
	}
	if cfg.Session.IdleTimeout != 30*time.Second {
		t.Fatalf("idle timeout = %s", cfg.Session.IdleTimeout)
	}
	if cfg.Languages.Left != "zh" || cfg.Languages.Right != "en" {
		t.Fatalf("language defaults = %+v", cfg.Languages)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PARLEY_HTTP_BASE_URL", "https://speech.example.com")
	t.Setenv("PARLEY_REALTIME_URL", "wss://speech.example.com/asr")
	t.Setenv("PARLEY_TOKEN_URL", " https://speech.example.com/token ")
	t.Setenv("PARLEY_AUTH_TOKEN", "tok-static")
	t.Setenv("PARLEY_ASR_MODEL", "qwen3-asr-pro")
	t.Setenv("PARLEY_VAD_THRESHOLD", "0.7")
	t.Setenv("PARLEY_AUTO_SPEAK", "off")
	t.Setenv("PARLEY_FINALIZE_GRACE_MS", "5000")
	t.Setenv("PARLEY_LANG_LEFT", "ja")
	t.Setenv("PARLEY_LANG_RIGHT", "ko")

	cfg := Load()

	if cfg.Endpoints.HTTPBaseURL != "https://speech.example.com" {
		t.Fatalf("http base url = %q", cfg.Endpoints.HTTPBaseURL)
	}
	if cfg.Endpoints.TokenURL != "https://speech.example.com/token" {
		t.Fatalf("token url not trimmed: %q", cfg.Endpoints.TokenURL)
	}
	if cfg.Endpoints.StaticToken != "tok-static" {
		t.Fatalf("static token = %q", cfg.Endpoints.StaticToken)
	}
	if cfg.Realtime.Model != "qwen3-asr-pro" {
		t.Fatalf("model = %q", cfg.Realtime.Model)
	}
	if cfg.Realtime.VADThreshold != 0.7 {
		t.Fatalf("vad threshold = %v", cfg.Realtime.VADThreshold)
	}
	if cfg.Speech.AutoSpeak {
		t.Fatalf("auto speak should be off")
	}
	if cfg.Session.FinalizeGrace != 5*time.Second {
		t.Fatalf("finalize grace = %s", cfg.Session.FinalizeGrace)
	}
	if cfg.Languages.Left != "ja" || cfg.Languages.Right != "ko" {
		t.Fatalf("languages = %+v", cfg.Languages)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("PARLEY_VAD_THRESHOLD", "loud")
	t.Setenv("PARLEY_SAMPLE_RATE", "-1")
	t.Setenv("PARLEY_CHANNELS", "0")
	t.Setenv("PARLEY_AUDIO_CHUNK_SIZE", "12")
	t.Setenv("PARLEY_IDLE_TIMEOUT_MS", "-500")
	t.Setenv("PARLEY_AUTO_SPEAK", "maybe")

	cfg := Load()

	if cfg.Realtime.VADThreshold != 0.5 {
		t.Fatalf("unparsable threshold must fall back, got %v", cfg.Realtime.VADThreshold)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("negative sample rate must fall back, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Fatalf("zero channels must fall back, got %d", cfg.Audio.Channels)
	}
	if cfg.Session.ChunkSize != 3200 {
		t.Fatalf("undersized chunk must fall back, got %d", cfg.Session.ChunkSize)
	}
	if cfg.Session.IdleTimeout != 30*time.Second {
		t.Fatalf("negative idle timeout must fall back, got %s", cfg.Session.IdleTimeout)
	}
	if !cfg.Speech.AutoSpeak {
		t.Fatalf("unknown bool must fall back to default")
	}
}
