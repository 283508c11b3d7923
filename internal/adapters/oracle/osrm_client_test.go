package oracle

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accessibility-eta-service/internal/domain"
)

func newTestClient(t *testing.T, cfg OSRMConfig) (*OSRMClient, *httpmock.MockTransport) {
	t.Helper()
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://osrm.test"
	}
	c, err := NewOSRMClient(cfg, nil)
	require.NoError(t, err)
	c.retryInitial = time.Millisecond

	transport := httpmock.NewMockTransport()
	c.session.Transport = transport
	return c, transport
}

func TestNewOSRMClientRequiresURL(t *testing.T) {
	_, err := NewOSRMClient(OSRMConfig{}, nil)
	assert.Error(t, err)
}

func TestNearest(t *testing.T) {
	c, transport := newTestClient(t, OSRMConfig{})
	transport.RegisterResponder(http.MethodGet, "http://osrm.test/nearest/v1/driving/13.388860,52.517037",
		httpmock.NewStringResponder(200, `{"code":"Ok","waypoints":[{"distance":4.152,"location":[13.38886,52.51703]}]}`))

	d, err := c.Nearest(context.Background(), orb.Point{13.38886, 52.517037})
	require.NoError(t, err)
	assert.InDelta(t, 4.152, d, 1e-9)
}

func TestNearestNonOkCode(t *testing.T) {
	c, transport := newTestClient(t, OSRMConfig{})
	transport.RegisterResponder(http.MethodGet, `=~^http://osrm\.test/nearest/`,
		httpmock.NewStringResponder(400, `{"code":"InvalidQuery","message":"Query string malformed"}`))

	_, err := c.Nearest(context.Background(), orb.Point{1, 2})
	require.Error(t, err)

	var oe *domain.OracleError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "nearest", oe.Op)
	assert.Contains(t, err.Error(), "InvalidQuery")
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestTableWithNulls(t *testing.T) {
	c, transport := newTestClient(t, OSRMConfig{})
	transport.RegisterResponder(http.MethodGet, `=~^http://osrm\.test/table/v1/driving/`,
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "0;1", q.Get("sources"))
			assert.Equal(t, "2;3", q.Get("destinations"))
			assert.Equal(t, "duration", q.Get("annotations"))
			return httpmock.NewStringResponse(200, `{"code":"Ok","durations":[[120.5,null],[null,null]]}`), nil
		})

	m, err := c.Table(context.Background(),
		[]orb.Point{{0, 0}, {0, 1}},
		[]orb.Point{{1, 0}, {1, 1}},
	)
	require.NoError(t, err)
	require.Len(t, m, 2)
	require.NotNil(t, m[0][0])
	assert.Equal(t, 120.5, *m[0][0])
	assert.Nil(t, m[0][1])
	assert.Nil(t, m[1][0])
	assert.Nil(t, m[1][1])
}

func TestTableChunksSourcesInOrder(t *testing.T) {
	c, transport := newTestClient(t, OSRMConfig{TableMaxSources: 2})
	transport.RegisterResponder(http.MethodGet, `=~^http://osrm\.test/table/`,
		func(req *http.Request) (*http.Response, error) {
			// Echo the first source longitude as the duration of each row.
			coords := strings.Split(strings.TrimPrefix(req.URL.Path, "/table/v1/driving/"), ";")
			n := len(strings.Split(req.URL.Query().Get("sources"), ";"))
			rows := make([]string, 0, n)
			for _, c := range coords[:n] {
				lon := strings.Split(c, ",")[0]
				rows = append(rows, "["+lon+"]")
			}
			return httpmock.NewStringResponse(200, `{"code":"Ok","durations":[`+strings.Join(rows, ",")+`]}`), nil
		})

	sources := []orb.Point{{1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}}
	m, err := c.Table(context.Background(), sources, []orb.Point{{9, 9}})
	require.NoError(t, err)
	require.Len(t, m, 5)
	for i, row := range m {
		require.Len(t, row, 1)
		assert.Equal(t, float64(i+1), *row[0])
	}
	assert.Equal(t, 3, transport.GetTotalCallCount())
}

func TestTableShapeMismatch(t *testing.T) {
	c, transport := newTestClient(t, OSRMConfig{})
	transport.RegisterResponder(http.MethodGet, `=~^http://osrm\.test/table/`,
		httpmock.NewStringResponder(200, `{"code":"Ok","durations":[[1,2]]}`))

	_, err := c.Table(context.Background(), []orb.Point{{0, 0}, {0, 1}}, []orb.Point{{1, 0}, {1, 1}})
	var oe *domain.OracleError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "table", oe.Op)
}

func TestRetryOnServiceUnavailable(t *testing.T) {
	c, transport := newTestClient(t, OSRMConfig{MaxRetries: 3})
	calls := 0
	transport.RegisterResponder(http.MethodGet, `=~^http://osrm\.test/nearest/`,
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(503, "busy"), nil
			}
			return httpmock.NewStringResponse(200, `{"code":"Ok","waypoints":[{"distance":7}]}`), nil
		})

	d, err := c.Nearest(context.Background(), orb.Point{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 7.0, d)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	c, transport := newTestClient(t, OSRMConfig{MaxRetries: 2})
	transport.RegisterResponder(http.MethodGet, `=~^http://osrm\.test/nearest/`,
		httpmock.NewStringResponder(502, "bad gateway"))

	_, err := c.Nearest(context.Background(), orb.Point{1, 2})
	require.Error(t, err)
	assert.Equal(t, 3, transport.GetTotalCallCount())
}

func TestFactoryWrapsCache(t *testing.T) {
	f := NewOSRMFactory(OSRMConfig{BaseURL: "http://osrm.test"}, newMemCache(), nil)
	o, err := f(context.Background())
	require.NoError(t, err)
	_, ok := o.(*CachedOracle)
	assert.True(t, ok)
	require.NoError(t, o.Close())

	f = NewOSRMFactory(OSRMConfig{BaseURL: "http://osrm.test"}, nil, nil)
	o, err = f(context.Background())
	require.NoError(t, err)
	_, ok = o.(*OSRMClient)
	assert.True(t, ok)
}
