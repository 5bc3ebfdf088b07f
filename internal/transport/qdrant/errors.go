package qdrant

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-2xx response from Qdrant.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("qdrant error %d: %s", e.Status, e.Message)
}

// newAPIError reads the error body, preferring Qdrant's status.error field.
func newAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed struct {
		Status struct {
			Error string `json:"error"`
		} `json:"status"`
	}
	msg := string(raw)
	if json.Unmarshal(raw, &parsed) == nil && parsed.Status.Error != "" {
		msg = parsed.Status.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
