package audio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"parley/internal/ports"
)

// FFmpegCapture records the microphone through an ffmpeg subprocess and
// frames the output for the realtime transport: each frame is one chunk of
// little-endian 16-bit PCM, base64 encoded and ready for an audio append
// message.
type FFmpegCapture struct {
	command string
}

func NewFFmpegCapture(command string) *FFmpegCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegCapture{command: command}
}

func captureArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

func (c *FFmpegCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 3200
	}

	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Catch immediate device/format failures before handing the session out.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimmedOutput(&stderr))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	return &captureSession{
		stdout:  stdout,
		stderr:  &stderr,
		buf:     make([]byte, cfg.ChunkSize),
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type captureSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer
	buf    []byte

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

// ReadFrame returns the next chunk of captured PCM as an encoded frame. A
// short read still produces a frame; the chunk size only bounds it.
func (s *captureSession) ReadFrame() (string, error) {
	for {
		n, err := s.stdout.Read(s.buf)
		if n > 0 {
			return base64.StdEncoding.EncodeToString(s.buf[:n]), nil
		}
		if err != nil {
			return "", err
		}
	}
}

// Stop interrupts the recorder, reaps the process and closes the pipe.
// Idempotent; later ReadFrame calls drain and then fail.
func (s *captureSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}
		s.stopErr = s.reap()

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimmedOutput(s.stderr))
		}
	})

	return s.stopErr
}

// reap waits briefly for a clean exit after the interrupt, then kills.
func (s *captureSession) reap() error {
	select {
	case err, ok := <-s.waitErr:
		if !ok {
			return nil
		}
		return ignoreExitStatus(err)
	case <-time.After(1200 * time.Millisecond):
		if s.process != nil {
			_ = s.process.Kill()
		}
		err, ok := <-s.waitErr
		if !ok {
			return nil
		}
		return ignoreExitStatus(err)
	}
}

func ignoreExitStatus(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmedOutput(b *bytes.Buffer) string {
	return string(bytes.TrimSpace(b.Bytes()))
}
