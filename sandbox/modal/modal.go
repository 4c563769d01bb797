// Package modal provides a sandbox provider backed by Modal sandboxes via
// Modal's REST API. Commands run through bash -c inside the sandbox; file
// transfer uses the sandbox filesystem endpoints.
package modal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/sandbox"
)

const defaultBaseURL = "https://api.modal.com/v1"

// Options configures the Modal provider.
type Options struct {
	// TokenID / TokenSecret authenticate against the Modal API. Default to
	// the MODAL_TOKEN_ID / MODAL_TOKEN_SECRET environment variables.
	TokenID     string
	TokenSecret string
	// BaseURL overrides the API endpoint (testing).
	BaseURL string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Provider creates or attaches to Modal sandboxes.
type Provider struct {
	opts Options
}

var _ sandbox.Provider = (*Provider)(nil)

// New constructs a Modal provider.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		TokenID:     os.Getenv("MODAL_TOKEN_ID"),
		TokenSecret: os.Getenv("MODAL_TOKEN_SECRET"),
		BaseURL:     defaultBaseURL,
		HTTPClient:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{opts: opts}
}

// Name implements sandbox.Provider.
func (p *Provider) Name() string { return "modal" }

type sandboxObject struct {
	ObjectID string `json:"object_id"`
	State    string `json:"state"`
}

// CreateOrAttach implements sandbox.Provider.
func (p *Provider) CreateOrAttach(ctx context.Context, instanceID string) (sandbox.Instance, error) {
	if instanceID == "" {
		var resp sandboxObject
		if err := p.request(ctx, http.MethodPost, "/sandboxes", map[string]any{}, &resp); err != nil {
			return nil, fmt.Errorf("creating sandbox: %w", err)
		}
		return &modalSandbox{provider: p, id: resp.ObjectID}, nil
	}

	var resp sandboxObject
	if err := p.request(ctx, http.MethodGet, "/sandboxes/"+instanceID, nil, &resp); err != nil {
		return nil, &core.AttachError{Provider: p.Name(), InstanceID: instanceID, Err: err}
	}
	if resp.State == "terminated" {
		return nil, &core.AttachError{Provider: p.Name(), InstanceID: instanceID, Err: fmt.Errorf("sandbox is terminated")}
	}
	return &modalSandbox{provider: p, id: resp.ObjectID}, nil
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
	req.Header.Set("Modal-Key", p.opts.TokenID)
	req.Header.Set("Modal-Secret", p.opts.TokenSecret)
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
		return fmt.Errorf("modal api %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// modalSandbox is a live Modal sandbox.
type modalSandbox struct {
	provider *Provider
	id       string
}

var _ sandbox.Instance = (*modalSandbox)(nil)

// ID implements sandbox.Instance.
func (m *modalSandbox) ID() string { return m.id }

// Execute implements sandbox.Instance. Stderr is appended to stdout.
func (m *modalSandbox) Execute(ctx context.Context, command string, timeout time.Duration) (*sandbox.ExecResult, error) {
	if timeout <= 0 {
		timeout = sandbox.DefaultExecTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var resp struct {
		Stdout     string `json:"stdout"`
		Stderr     string `json:"stderr"`
		ReturnCode int    `json:"returncode"`
	}
	err := m.provider.request(execCtx, http.MethodPost, "/sandboxes/"+m.id+"/exec", map[string]any{
		"args":    []string{"bash", "-c", command},
		"timeout": int(timeout.Seconds()),
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
	return &sandbox.ExecResult{Output: output, ExitCode: resp.ReturnCode}, nil
}

// UploadFiles implements sandbox.Instance. Paths must be absolute.
func (m *modalSandbox) UploadFiles(ctx context.Context, files []sandbox.FileUpload) error {
	for _, f := range files {
		if !strings.HasPrefix(f.Path, "/") {
			return fmt.Errorf("uploading %s: %s", f.Path, sandbox.ErrCondInvalidPath)
		}
		err := m.provider.request(ctx, http.MethodPost, "/sandboxes/"+m.id+"/files/write", map[string]any{
			"path":    f.Path,
			"content": base64.StdEncoding.EncodeToString(f.Content),
		}, nil)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", f.Path, err)
		}
	}
	return nil
}

// DownloadFiles implements sandbox.Instance. Per-file misses are reported as
// error conditions, not call errors.
func (m *modalSandbox) DownloadFiles(ctx context.Context, paths []string) ([]sandbox.FileDownload, error) {
	out := make([]sandbox.FileDownload, 0, len(paths))
	for _, p := range paths {
		if !strings.HasPrefix(p, "/") {
			out = append(out, sandbox.FileDownload{Path: p, Err: sandbox.ErrCondInvalidPath})
			continue
		}
		var resp struct {
			Content string `json:"content"`
		}
		err := m.provider.request(ctx, http.MethodPost, "/sandboxes/"+m.id+"/files/read", map[string]any{
			"path": p,
		}, &resp)
		if err != nil {
			cond := sandbox.ErrCondFileNotFound
			if strings.Contains(strings.ToLower(err.Error()), "is a directory") {
				cond = sandbox.ErrCondIsDirectory
			}
			out = append(out, sandbox.FileDownload{Path: p, Err: cond})
			continue
		}
		content, decErr := base64.StdEncoding.DecodeString(resp.Content)
		if decErr != nil {
			return nil, fmt.Errorf("decoding %s: %w", p, decErr)
		}
		out = append(out, sandbox.FileDownload{Path: p, Content: content})
	}
	return out, nil
}
