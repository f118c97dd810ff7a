package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// decodeError reads the {"error": ...} body the server sends with failures.
func decodeError(resp *resty.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode()}
	var body struct {
		Error string `json:"error"`
	}
	if err := sonic.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		return apiErr
	}
	if msg := strings.TrimSpace(string(resp.Body())); msg != "" && len(msg) < 512 {
		apiErr.Message = msg
		return apiErr
	}
	apiErr.Message = http.StatusText(resp.StatusCode())
	return apiErr
}
