package sandbox

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paasplatform/deepagents/logging"
)

// bashInstance runs commands through the host shell so quoting behavior is
// exercised for real, not against a fake's string handling.
type bashInstance struct{}

func (bashInstance) ID() string { return "bash" }

func (bashInstance) Execute(ctx context.Context, command string, _ time.Duration) (*ExecResult, error) {
	out, err := exec.CommandContext(ctx, "bash", "-c", command).CombinedOutput()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, err
		}
		exitCode = exitErr.ExitCode()
	}
	return &ExecResult{Output: string(out), ExitCode: exitCode}, nil
}

func (bashInstance) UploadFiles(context.Context, []FileUpload) error { return nil }

func (bashInstance) DownloadFiles(context.Context, []string) ([]FileDownload, error) {
	return nil, nil
}

func newBashBackend() *remoteBackend {
	b := &Binding{
		provider: newFakeProvider(),
		state:    StateReady,
		instance: bashInstance{},
		logger:   logging.NoOpLogger{},
	}
	return &remoteBackend{binding: b}
}

// A glob pattern crafted to break out of the expansion loop must stay inert:
// nothing it smuggles in may execute.
func TestRemoteGlobPatternNeverExecutes(t *testing.T) {
	r := newBashBackend()

	pattern := `x; do :; done; echo OWNED-$(id -u); for f in y`
	for p, err := range r.Glob(context.Background(), pattern) {
		if err != nil {
			assert.NotContains(t, err.Error(), "OWNED")
			continue
		}
		assert.NotContains(t, p, "OWNED")
	}
}
