package usecase

import (
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"parley/internal/ports"
)

// pumpEncodedAudio forwards captured audio frames to the realtime session.
// Delivery is best effort: a send failure ends the pump without tearing the
// session down, since the receive loop surfaces any real transport fault.
func pumpEncodedAudio(
	audio ports.AudioSession,
	stream ports.RealtimeSession,
	logger *log.Logger,
	done chan struct{},
) {
	defer close(done)

	for {
		frame, err := audio.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("audio capture read failed", "error", err)
			}
			return
		}
		if err := stream.SendAudio(frame); err != nil {
			logger.Warn("audio frame dropped", "error", err)
			return
		}
	}
}
