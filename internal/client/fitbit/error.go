package fitbit

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	go_json "github.com/goccy/go-json"
)

type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("fitbit api: %d %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("fitbit api: %d %s", e.StatusCode, e.Message)
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var errResp struct {
		Errors []struct {
			ErrorType string `json:"errorType"`
			Message   string `json:"message"`
		} `json:"errors"`
	}
	if err := go_json.Unmarshal(body, &errResp); err != nil || len(errResp.Errors) == 0 {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	first := errResp.Errors[0]
	return &APIError{StatusCode: resp.StatusCode, Type: first.ErrorType, Message: first.Message}
}
