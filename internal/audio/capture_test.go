package audio

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"parley/internal/ports"
)

func TestCaptureProducesEncodedFrames(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'pcm-sample-bytes'\nsleep 2\n")
	capture := NewFFmpegCapture(script)

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	frame, err := session.ReadFrame()
	if err != nil {
		t.Fatalf("read frame failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		t.Fatalf("frame is not valid base64: %v", err)
	}
	if !strings.Contains(string(raw), "pcm-sample") {
		t.Fatalf("unexpected frame payload: %q", raw)
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	// Repeated stop is a no-op.
	if err := session.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
}

func TestCaptureChunkSizeBoundsFrames(t *testing.T) {
	t.Parallel()

	// Emit more PCM than one chunk so the bound is actually exercised.
	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nhead -c 600 /dev/zero\nsleep 2\n")
	capture := NewFFmpegCapture(script)

	session, err := capture.Start(context.Background(), ports.AudioConfig{ChunkSize: 256})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer session.Stop()

	frame, err := session.ReadFrame()
	if err != nil {
		t.Fatalf("read frame failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		t.Fatalf("frame is not valid base64: %v", err)
	}
	if len(raw) == 0 || len(raw) > 256 {
		t.Fatalf("frame size %d outside chunk bound", len(raw))
	}
}

func TestCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'no such device' 1>&2\nexit 1\n")
	capture := NewFFmpegCapture(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "no such device") {
		t.Fatalf("stderr not surfaced: %v", err)
	}
}

func TestReadFrameFailsAfterRecorderExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'tail'\nsleep 0.4\n")
	capture := NewFFmpegCapture(script)

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer session.Stop()

	if _, err := session.ReadFrame(); err != nil {
		t.Fatalf("first frame failed: %v", err)
	}
	if _, err := session.ReadFrame(); err == nil {
		t.Fatalf("expected an error once the recorder is gone")
	}
}

func TestIgnoreExitStatus(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-lc", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := ignoreExitStatus(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
	if got := ignoreExitStatus(nil); got != nil {
		t.Fatalf("expected nil for nil, got %v", got)
	}
}

func TestTrimmedOutput(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBufferString("  device warning\n")
	if got := trimmedOutput(buf); got != "device warning" {
		t.Fatalf("unexpected trim result: %q", got)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
