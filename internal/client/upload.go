package client

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// Upload sends files as a folder upload, replacing the workspace content.
// The body is buffered so a retried request replays the same bytes.
func (c *Client) Upload(ctx context.Context, wid string, files []LocalFile) (*UploadResult, error) {
	body, contentType, err := encodeUpload(files)
	if err != nil {
		return nil, err
	}
	var out UploadResult
	if _, err := c.do(ctx, http.MethodPost, "/workspaces/{id}/upload", func(r *resty.Request) {
		r.SetPathParam("id", wid).
			SetHeader("Content-Type", contentType).
			SetBody(body).
			SetResult(&out)
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// encodeUpload writes one "files" part per file and a "paths" value in the
// same order, which is how the server recovers relative paths.
func encodeUpload(files []LocalFile) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		if err := mw.WriteField("paths", f.Path); err != nil {
			return nil, "", err
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Path)
		if err != nil {
			return nil, "", err
		}
		content, err := f.read()
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(content); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("encode upload: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func attachmentName(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
