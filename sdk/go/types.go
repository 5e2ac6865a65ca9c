package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"notifykit/core"
)

// NotifyResult is the response for a direct notify call.
type NotifyResult struct {
	Entry  core.Notification   `json:"entry"`
	Report core.DeliveryReport `json:"report"`
}

// ChannelNotifyResult is the response for a channel fan-out.
type ChannelNotifyResult struct {
	Recorded int                 `json:"recorded"`
	Report   core.DeliveryReport `json:"report"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyIdentity is returned when a required identity is empty.
var ErrEmptyIdentity = errors.New("identity is required")
