package sandbox

import (
	"context"
	"time"
)

// DefaultExecTimeout bounds a single shell command when the caller supplies
// no explicit timeout.
const DefaultExecTimeout = 30 * time.Minute

// ExecResult is the outcome of one shell command. Stderr is appended to
// stdout so callers receive a single merged transcript, matching the shape
// every provider produces.
type ExecResult struct {
	Output    string `json:"output"`
	ExitCode  int    `json:"exit_code"`
	Truncated bool   `json:"truncated"`
}

// FileUpload is one file to place into an instance.
type FileUpload struct {
	Path    string
	Content []byte
}

// FileDownload is one file fetched from an instance. Err carries a provider
// error condition ("file_not_found", "is_directory", "invalid_path",
// "permission_denied") instead of content when the fetch failed.
type FileDownload struct {
	Path    string
	Content []byte
	Err     string
}

// Download error conditions shared across providers.
const (
	ErrCondFileNotFound     = "file_not_found"
	ErrCondIsDirectory      = "is_directory"
	ErrCondInvalidPath      = "invalid_path"
	ErrCondPermissionDenied = "permission_denied"
)

// Instance is a live remote execution environment. Implementations are not
// required to be safe for concurrent use; the Binding serializes access.
type Instance interface {
	// ID returns the provider-assigned instance identifier, usable for
	// attach-based reuse in a later session.
	ID() string

	// Execute runs a shell command inside the instance. A zero timeout
	// means DefaultExecTimeout.
	Execute(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error)

	// UploadFiles places files into the instance's filesystem.
	UploadFiles(ctx context.Context, files []FileUpload) error

	// DownloadFiles fetches files from the instance's filesystem. Per-file
	// failures are reported in FileDownload.Err, not as a call error.
	DownloadFiles(ctx context.Context, paths []string) ([]FileDownload, error)
}

// Provider creates or attaches to execution instances. An empty instanceID
// requests a fresh instance; a non-empty one requests attach-only, and a
// miss must surface a core.AttachError, never a silent create.
type Provider interface {
	Name() string
	CreateOrAttach(ctx context.Context, instanceID string) (Instance, error)
}
