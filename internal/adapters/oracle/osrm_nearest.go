package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"accessibility-eta-service/internal/domain"
)

type nearestResponse struct {
	osrmResponse
	Waypoints []struct {
		Distance float64   `json:"distance"`
		Location []float64 `json:"location"`
	} `json:"waypoints"`
}

// Nearest returns meters from point to the nearest routable edge.
func (o *OSRMClient) Nearest(ctx context.Context, point orb.Point) (float64, error) {
	url := fmt.Sprintf("%s/nearest/v1/%s/%s?number=1", o.baseURL, o.profile, domain.CoordinatesOf(point))

	resp, err := o.doWithRetry(ctx, "nearest", url)
	if err != nil {
		return 0, &domain.OracleError{Op: "nearest", Err: err}
	}
	defer resp.Body.Close()

	var nr nearestResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return 0, &domain.OracleError{Op: "nearest", Err: fmt.Errorf("decode response: %w", err)}
	}
	if nr.Code != "Ok" {
		return 0, &domain.OracleError{Op: "nearest", Err: fmt.Errorf("code %s: %s", nr.Code, nr.Message)}
	}
	if len(nr.Waypoints) == 0 {
		return 0, &domain.OracleError{Op: "nearest", Err: errors.New("no waypoint returned")}
	}

	return nr.Waypoints[0].Distance, nil
}
