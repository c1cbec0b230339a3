package garmin

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
	return fmt.Sprintf("garmin api: %d %s", e.StatusCode, e.Message)
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(body) == 0 {
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var errResp struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := go_json.Unmarshal(body, &errResp); err != nil || errResp.ErrorMessage == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: errResp.ErrorMessage}
}
