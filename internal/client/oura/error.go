package oura

import (
	"fmt"
	"io"
	"net/http"

	go_json "github.com/goccy/go-json"
)

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("oura api: %d %s", e.StatusCode, e.Message)
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var errResp struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := go_json.Unmarshal(body, &errResp); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	msg := errResp.Detail
	if msg == "" {
		msg = errResp.Title
	}
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
