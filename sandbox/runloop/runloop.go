// Package runloop provides a sandbox provider backed by Runloop devboxes via
// the Runloop REST API.
package runloop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/sandbox"
)

const defaultBaseURL = "https://api.runloop.ai/v1"

// Options configures the Runloop provider.
type Options struct {
	// APIKey authenticates against the Runloop API. Defaults to the
	// RUNLOOP_API_KEY environment variable.
	APIKey string
	// BaseURL overrides the API endpoint (testing).
	BaseURL string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Provider creates or attaches to Runloop devboxes.
type Provider struct {
	opts Options
}

var _ sandbox.Provider = (*Provider)(nil)

// New constructs a Runloop provider.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		APIKey:     os.Getenv("RUNLOOP_API_KEY"),
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{opts: opts}
}

// Name implements sandbox.Provider.
func (p *Provider) Name() string { return "runloop" }

type devboxResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateOrAttach implements sandbox.Provider. An explicit id only attaches;
// unknown or shutdown devboxes surface a core.AttachError.
func (p *Provider) CreateOrAttach(ctx context.Context, instanceID string) (sandbox.Instance, error) {
	if instanceID == "" {
		var resp devboxResponse
		if err := p.request(ctx, http.MethodPost, "/devboxes", map[string]any{}, &resp); err != nil {
			return nil, fmt.Errorf("creating devbox: %w", err)
		}
		return &devbox{provider: p, id: resp.ID}, nil
	}

	var resp devboxResponse
	if err := p.request(ctx, http.MethodGet, "/devboxes/"+instanceID, nil, &resp); err != nil {
		return nil, &core.AttachError{Provider: p.Name(), InstanceID: instanceID, Err: err}
	}
	if resp.Status != "running" {
		return nil, &core.AttachError{Provider: p.Name(), InstanceID: instanceID, Err: fmt.Errorf("devbox status is %q", resp.Status)}
	}
	return &devbox{provider: p, id: resp.ID}, nil
}

func (p *Provider) request(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.opts.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.opts.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("runloop api %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// devbox is a live Runloop instance.
type devbox struct {
	provider *Provider
	id       string
}

var _ sandbox.Instance = (*devbox)(nil)

// ID implements sandbox.Instance.
func (d *devbox) ID() string { return d.id }

// Execute implements sandbox.Instance. Stderr is appended to stdout.
func (d *devbox) Execute(ctx context.Context, command string, timeout time.Duration) (*sandbox.ExecResult, error) {
	if timeout <= 0 {
		timeout = sandbox.DefaultExecTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var resp struct {
		Stdout     string `json:"stdout"`
		Stderr     string `json:"stderr"`
		ExitStatus int    `json:"exit_status"`
	}
	err := d.provider.request(execCtx, http.MethodPost, "/devboxes/"+d.id+"/execute_sync", map[string]any{
		"command": command,
	}, &resp)
	if err != nil {
		return nil, err
	}

	output := resp.Stdout
	if resp.Stderr != "" {
		if output != "" {
			output += "\n" + resp.Stderr
		} else {
			output = resp.Stderr
		}
	}
	return &sandbox.ExecResult{Output: output, ExitCode: resp.ExitStatus}, nil
}

// UploadFiles implements sandbox.Instance.
func (d *devbox) UploadFiles(ctx context.Context, files []sandbox.FileUpload) error {
	for _, f := range files {
		err := d.provider.request(ctx, http.MethodPost, "/devboxes/"+d.id+"/write_file_contents", map[string]any{
			"file_path": f.Path,
			"contents":  string(f.Content),
		}, nil)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", f.Path, err)
		}
	}
	return nil
}

// DownloadFiles implements sandbox.Instance. Per-file misses are reported as
// error conditions, not call errors.
func (d *devbox) DownloadFiles(ctx context.Context, paths []string) ([]sandbox.FileDownload, error) {
	out := make([]sandbox.FileDownload, 0, len(paths))
	for _, p := range paths {
		var resp struct {
			Contents string `json:"contents"`
		}
		err := d.provider.request(ctx, http.MethodPost, "/devboxes/"+d.id+"/read_file_contents", map[string]any{
			"file_path": p,
		}, &resp)
		if err != nil {
			out = append(out, sandbox.FileDownload{Path: p, Err: sandbox.ErrCondFileNotFound})
			continue
		}
		out = append(out, sandbox.FileDownload{Path: p, Content: []byte(resp.Contents)})
	}
	return out, nil
}
