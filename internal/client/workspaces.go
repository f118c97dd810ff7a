package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"
)

// Health fetches the server health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if _, err := c.do(ctx, http.MethodGet, "/health", func(r *resty.Request) {
		r.SetResult(&out)
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateWorkspace opens an empty workspace.
func (c *Client) CreateWorkspace(ctx context.Context, name string) (*Workspace, error) {
	var out Workspace
	if _, err := c.do(ctx, http.MethodPost, "/workspaces", func(r *resty.Request) {
		r.SetBody(map[string]string{"name": name}).SetResult(&out)
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWorkspace fetches one workspace.
func (c *Client) GetWorkspace(ctx context.Context, wid string) (*Workspace, error) {
	var out Workspace
	if _, err := c.do(ctx, http.MethodGet, "/workspaces/{id}", func(r *resty.Request) {
		r.SetPathParam("id", wid).SetResult(&out)
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListWorkspaces lists every open workspace.
func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var out workspaceList
	if _, err := c.do(ctx, http.MethodGet, "/workspaces", func(r *resty.Request) {
		r.SetResult(&out)
	}); err != nil {
		return nil, err
	}
	return out.Workspaces, nil
}

// DeleteWorkspace closes a workspace on the server.
func (c *Client) DeleteWorkspace(ctx context.Context, wid string) error {
	_, err := c.do(ctx, http.MethodDelete, "/workspaces/{id}", func(r *resty.Request) {
		r.SetPathParam("id", wid)
	})
	return err
}

// Send delivers a payload to every bridge of the workspace.
func (c *Client) Send(ctx context.Context, wid, payload string) (int, error) {
	var out deliveredResponse
	if _, err := c.do(ctx, http.MethodPost, "/workspaces/{id}/send", func(r *resty.Request) {
		r.SetPathParam("id", wid).
			SetBody(map[string]string{"payload": payload}).
			SetResult(&out)
	}); err != nil {
		return 0, err
	}
	return out.Delivered, nil
}

// Invoke calls a registered UI callback by name.
func (c *Client) Invoke(ctx context.Context, wid, name, data string) (int, error) {
	var out deliveredResponse
	if _, err := c.do(ctx, http.MethodPost, "/workspaces/{id}/invoke", func(r *resty.Request) {
		r.SetPathParam("id", wid).
			SetBody(map[string]string{"name": name, "data": data}).
			SetResult(&out)
	}); err != nil {
		return 0, err
	}
	return out.Delivered, nil
}

// Logs reads the console entries after seq. Zero reads the whole log.
func (c *Client) Logs(ctx context.Context, wid string, since uint64) (*LogPage, error) {
	var out LogPage
	if _, err := c.do(ctx, http.MethodGet, "/workspaces/{id}/logs", func(r *resty.Request) {
		r.SetPathParam("id", wid).SetResult(&out)
		if since > 0 {
			r.SetQueryParam("since", strconv.FormatUint(since, 10))
		}
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// LogsText reads the console log rendered as plain text.
func (c *Client) LogsText(ctx context.Context, wid string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/workspaces/{id}/logs", func(r *resty.Request) {
		r.SetPathParam("id", wid).SetQueryParam("format", "text")
	})
	if err != nil {
		return "", err
	}
	return resp.String(), nil
}

// Snapshot saves the live files as a new version.
func (c *Client) Snapshot(ctx context.Context, wid string) (*Version, error) {
	var out Version
	if _, err := c.do(ctx, http.MethodPost, "/workspaces/{id}/versions", func(r *resty.Request) {
		r.SetPathParam("id", wid).SetResult(&out)
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Versions lists the snapshots of a workspace.
func (c *Client) Versions(ctx context.Context, wid string) ([]Version, error) {
	var out versionList
	if _, err := c.do(ctx, http.MethodGet, "/workspaces/{id}/versions", func(r *resty.Request) {
		r.SetPathParam("id", wid).SetResult(&out)
	}); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

// Export writes an archive of the workspace to w. Version 0 exports the
// live files. The returned name is the one the server offered.
func (c *Client) Export(ctx context.Context, wid string, vid int, format string, w io.Writer) (string, error) {
	url := "/workspaces/{id}/archive"
	if vid > 0 {
		url = "/workspaces/{id}/versions/{vid}/archive"
	}
	resp, err := c.do(ctx, http.MethodGet, url, func(r *resty.Request) {
		r.SetPathParam("id", wid).
			SetPathParam("vid", strconv.Itoa(vid))
		if format != "" {
			r.SetQueryParam("format", format)
		}
	})
	if err != nil {
		return "", err
	}
	if _, err := w.Write(resp.Body()); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	return attachmentName(resp.Header().Get("Content-Disposition")), nil
}
