// Package daytona provides a sandbox provider backed by Daytona sandboxes
// via the Daytona REST API and its toolbox endpoints.
package daytona

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/sandbox"
)

const defaultBaseURL = "https://app.daytona.io/api"

// Options configures the Daytona provider.
type Options struct {
	// APIKey authenticates against the Daytona API. Defaults to the
	// DAYTONA_API_KEY environment variable.
	APIKey string
	// BaseURL overrides the API endpoint (testing).
	BaseURL string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Provider creates or attaches to Daytona sandboxes.
type Provider struct {
	opts Options
}

var _ sandbox.Provider = (*Provider)(nil)

// New constructs a Daytona provider.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		APIKey:     os.Getenv("DAYTONA_API_KEY"),
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{opts: opts}
}

// Name implements sandbox.Provider.
func (p *Provider) Name() string { return "daytona" }

type sandboxResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// CreateOrAttach implements sandbox.Provider.
func (p *Provider) CreateOrAttach(ctx context.Context, instanceID string) (sandbox.Instance, error) {
	if instanceID == "" {
		var resp sandboxResponse
		if err := p.requestJSON(ctx, http.MethodPost, "/sandbox", map[string]any{}, &resp); err != nil {
			return nil, fmt.Errorf("creating sandbox: %w", err)
		}
		return &box{provider: p, id: resp.ID}, nil
	}

	var resp sandboxResponse
	if err := p.requestJSON(ctx, http.MethodGet, "/sandbox/"+instanceID, nil, &resp); err != nil {
		return nil, &core.AttachError{Provider: p.Name(), InstanceID: instanceID, Err: err}
	}
	if resp.State != "started" {
		return nil, &core.AttachError{Provider: p.Name(), InstanceID: instanceID, Err: fmt.Errorf("sandbox state is %q", resp.State)}
	}
	return &box{provider: p, id: resp.ID}, nil
}

func (p *Provider) do(ctx context.Context, method, path string, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.opts.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.opts.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return p.opts.HTTPClient.Do(req)
}

func (p *Provider) requestJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	resp, err := p.do(ctx, method, path, "application/json", reader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("daytona api %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// box is a live Daytona sandbox.
type box struct {
	provider *Provider
	id       string
}

var _ sandbox.Instance = (*box)(nil)

// ID implements sandbox.Instance.
func (b *box) ID() string { return b.id }

func (b *box) toolboxPath(suffix string) string {
	return "/toolbox/" + b.id + "/toolbox" + suffix
}

// Execute implements sandbox.Instance. Daytona merges stderr into the result
// stream already; the exit code is forwarded as-is.
func (b *box) Execute(ctx context.Context, command string, timeout time.Duration) (*sandbox.ExecResult, error) {
	if timeout <= 0 {
		timeout = sandbox.DefaultExecTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var resp struct {
		Result   string `json:"result"`
		ExitCode int    `json:"exitCode"`
	}
	err := b.provider.requestJSON(execCtx, http.MethodPost, b.toolboxPath("/process/execute"), map[string]any{
		"command": command,
		"timeout": int(timeout.Seconds()),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &sandbox.ExecResult{Output: resp.Result, ExitCode: resp.ExitCode}, nil
}

// UploadFiles implements sandbox.Instance.
func (b *box) UploadFiles(ctx context.Context, files []sandbox.FileUpload) error {
	for _, f := range files {
		path := b.toolboxPath("/files/upload") + "?path=" + url.QueryEscape(f.Path)
		resp, err := b.provider.do(ctx, http.MethodPost, path, "application/octet-stream", bytes.NewReader(f.Content))
		if err != nil {
			return fmt.Errorf("uploading %s: %w", f.Path, err)
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("uploading %s: status %d", f.Path, resp.StatusCode)
		}
	}
	return nil
}

// DownloadFiles implements sandbox.Instance.
func (b *box) DownloadFiles(ctx context.Context, paths []string) ([]sandbox.FileDownload, error) {
	out := make([]sandbox.FileDownload, 0, len(paths))
	for _, p := range paths {
		path := b.toolboxPath("/files/download") + "?path=" + url.QueryEscape(p)
		resp, err := b.provider.do(ctx, http.MethodGet, path, "", nil)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			out = append(out, sandbox.FileDownload{Path: p, Err: sandbox.ErrCondFileNotFound})
			continue
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			out = append(out, sandbox.FileDownload{Path: p, Err: sandbox.ErrCondPermissionDenied})
			continue
		}
		content, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, sandbox.FileDownload{Path: p, Content: content})
	}
	return out, nil
}
