package raggate

import (
	"context"
	"net/http"
)

// HealthReport is the gateway's aggregated health status.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health reports backend reachability. A degraded gateway answers 503 but
// the report still decodes; inspect Status and Checks.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	var out HealthReport
	if err := c.call(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return HealthReport{}, err
	}
	return out, nil
}
