package bootstrap

import (
	"github.com/charmbracelet/log"

	"parley/internal/audio"
	"parley/internal/auth"
	"parley/internal/config"
	"parley/internal/history"
	"parley/internal/ports"
	"parley/internal/realtime"
	"parley/internal/speech"
	"parley/internal/translate"
	"parley/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.ConversationController
	History    *history.Client
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, logger *log.Logger) Services {
	cfg := config.Load()
	if logger == nil {
		logger = log.Default()
	}

	tokens := tokenSource(cfg.Endpoints)

	dialer := realtime.NewDialer(realtime.Config{
		URL:   cfg.Endpoints.RealtimeURL,
		Model: cfg.Realtime.Model,
		VAD: realtime.VADConfig{
			Threshold:         cfg.Realtime.VADThreshold,
			PrefixPaddingMS:   cfg.Realtime.VADPrefixPaddingMS,
			SilenceDurationMS: cfg.Realtime.VADSilenceDurationMS,
		},
	}, logger)

	controller := usecase.NewConversationController(
		audio.NewFFmpegCapture(cfg.Audio.RecorderCommand),
		dialer,
		tokens,
		translate.NewClient(cfg.Endpoints.HTTPBaseURL, tokens),
		speech.NewCommandSpeaker(cfg.Speech.Command, logger),
		eventSink,
		logger,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
				ChunkSize:   cfg.Session.ChunkSize,
			},
			FinalizeGrace:     cfg.Session.FinalizeGrace,
			IdleTimeout:       cfg.Session.IdleTimeout,
			IdleCheckInterval: cfg.Session.IdleCheckInterval,
			AutoSpeak:         cfg.Speech.AutoSpeak,
		},
	)
	controller.SetLanguages(cfg.Languages.Left, cfg.Languages.Right)

	return Services{
		Controller: controller,
		History:    history.NewClient(cfg.Endpoints.HTTPBaseURL, tokens),
		Config:     cfg,
	}
}

func tokenSource(endpoints config.EndpointConfig) ports.TokenSource {
	if endpoints.TokenURL != "" {
		return auth.NewHTTPTokenSource(endpoints.TokenURL)
	}
	return auth.NewStaticTokenSource(endpoints.StaticToken)
}
