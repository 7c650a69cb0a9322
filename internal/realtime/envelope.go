package realtime

import (
	"parley/internal/domain"
	"parley/internal/ports"
)

// Outbound wire envelopes. Every message is a JSON text frame with a type
// discriminator.

type sessionUpdate struct {
	Type    string         `json:"type"`
	Session sessionPayload `json:"session"`
}

type sessionPayload struct {
	Model            string `json:"model"`
	InputAudioFormat string `json:"input_audio_format"`
	SampleRate       int    `json:"sample_rate"`
	TurnDetection    any    `json:"turn_detection"`
	Mode             string `json:"mode"`
	LeftLang         string `json:"left_lang"`
	RightLang        string `json:"right_lang"`
}

type serverVAD struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type control struct {
	Type string `json:"type"`
}

// newSessionUpdate builds the opening envelope. Only FreeTalk sessions carry
// a voice-activity-detection block; the turn modes send an explicit null so
// the server never segments on its own.
func newSessionUpdate(dialerCfg Config, cfg ports.RealtimeConfig) sessionUpdate {
	var turnDetection any
	if cfg.Mode == domain.ModeFreeTalk {
		turnDetection = serverVAD{
			Type:              "server_vad",
			Threshold:         dialerCfg.VAD.Threshold,
			PrefixPaddingMS:   dialerCfg.VAD.PrefixPaddingMS,
			SilenceDurationMS: dialerCfg.VAD.SilenceDurationMS,
		}
	}

	return sessionUpdate{
		Type: "session.update",
		Session: sessionPayload{
			Model:            dialerCfg.Model,
			InputAudioFormat: "pcm",
			SampleRate:       16000,
			TurnDetection:    turnDetection,
			Mode:             string(cfg.Mode),
			LeftLang:         cfg.LeftLang,
			RightLang:        cfg.RightLang,
		},
	}
}
