package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// CommandSpeaker plays text aloud through an external synthesizer binary
// (espeak-ng by default). Playback is best effort; callers treat failures
// as log-worthy, never fatal.
type CommandSpeaker struct {
	command string
	logger  *log.Logger
}

func NewCommandSpeaker(command string, logger *log.Logger) *CommandSpeaker {
	if command == "" {
		command = "espeak-ng"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CommandSpeaker{command: command, logger: logger}
}

func (s *CommandSpeaker) Speak(ctx context.Context, text, lang string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	voice := VoiceForLanguage(lang)
	cmd := exec.CommandContext(ctx, s.command, "-v", voice, text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("speech synthesis failed (voice %s): %w", voice, err)
	}

	s.logger.Debug("spoke translation", "voice", voice, "chars", len(text))
	return nil
}

// VoiceForLanguage maps a conversation language code to a synthesizer
// voice/locale identifier.
func VoiceForLanguage(lang string) string {
	switch lang {
	case "zh":
		return "zh-CN"
	case "ja":
		return "ja-JP"
	case "ko":
		return "ko-KR"
	default:
		return "en-US"
	}
}
