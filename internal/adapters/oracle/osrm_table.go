package oracle

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"accessibility-eta-service/internal/domain"
)

type tableResponse struct {
	osrmResponse
	Durations [][]*float64 `json:"durations"`
}

// Table returns durations in seconds with one row per source. Sources are
// sent in chunks of at most maxSources; rows keep the source order.
func (o *OSRMClient) Table(ctx context.Context, sources, destinations []orb.Point) ([][]*float64, error) {
	if len(sources) == 0 || len(destinations) == 0 {
		out := make([][]*float64, len(sources))
		for i := range out {
			out[i] = make([]*float64, len(destinations))
		}
		return out, nil
	}

	out := make([][]*float64, 0, len(sources))
	for start := 0; start < len(sources); start += o.maxSources {
		end := min(start+o.maxSources, len(sources))
		rows, err := o.fetchTable(ctx, sources[start:end], destinations)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (o *OSRMClient) fetchTable(ctx context.Context, sources, destinations []orb.Point) ([][]*float64, error) {
	coords := make([]string, 0, len(sources)+len(destinations))
	srcIdx := make([]string, 0, len(sources))
	dstIdx := make([]string, 0, len(destinations))
	for i, p := range sources {
		coords = append(coords, domain.CoordinatesOf(p).String())
		srcIdx = append(srcIdx, strconv.Itoa(i))
	}
	for i, p := range destinations {
		coords = append(coords, domain.CoordinatesOf(p).String())
		dstIdx = append(dstIdx, strconv.Itoa(len(sources)+i))
	}

	url := fmt.Sprintf("%s/table/v1/%s/%s?sources=%s&destinations=%s&annotations=duration",
		o.baseURL, o.profile,
		strings.Join(coords, ";"),
		strings.Join(srcIdx, ";"),
		strings.Join(dstIdx, ";"),
	)

	resp, err := o.doWithRetry(ctx, "table", url)
	if err != nil {
		return nil, &domain.OracleError{Op: "table", Err: err}
	}
	defer resp.Body.Close()

	var tr tableResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, &domain.OracleError{Op: "table", Err: fmt.Errorf("decode response: %w", err)}
	}
	if tr.Code != "Ok" {
		return nil, &domain.OracleError{Op: "table", Err: fmt.Errorf("code %s: %s", tr.Code, tr.Message)}
	}

	if len(tr.Durations) != len(sources) {
		return nil, &domain.OracleError{Op: "table", Err: fmt.Errorf(
			"expected %d source rows; got %d", len(sources), len(tr.Durations),
		)}
	}
	for i, row := range tr.Durations {
		if len(row) != len(destinations) {
			return nil, &domain.OracleError{Op: "table", Err: fmt.Errorf(
				"row %d has %d columns; want %d", i, len(row), len(destinations),
			)}
		}
	}

	return tr.Durations, nil
}
