package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accessibility-eta-service/internal/domain"
)

func TestStubOracleMissingPairIsNoRoute(t *testing.T) {
	a, b, c := orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{2, 0}
	stub := NewStubOracle().SetDuration(a, b, 30)

	m, err := stub.Table(context.Background(), []orb.Point{a}, []orb.Point{b, c})
	require.NoError(t, err)
	assert.Equal(t, 30.0, *m[0][0])
	assert.Nil(t, m[0][1])

	_, err = stub.Nearest(context.Background(), a)
	var oe *domain.OracleError
	assert.True(t, errors.As(err, &oe))
}

func TestStubOracleHookFails(t *testing.T) {
	stub := NewStubOracle()
	stub.Hook = func(ctx context.Context, op string) error {
		if op == "table" {
			return errors.New("boom")
		}
		return nil
	}

	_, err := stub.Table(context.Background(), []orb.Point{{0, 0}}, []orb.Point{{1, 1}})
	var oe *domain.OracleError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "table", oe.Op)
}

func TestStraightLineOracle(t *testing.T) {
	o := NewStraightLineOracle(36)
	m, err := o.Table(context.Background(), []orb.Point{{0, 0}}, []orb.Point{{0, 0.01}})
	require.NoError(t, err)
	// ~1112 m at 10 m/s
	assert.InDelta(t, 111.2, *m[0][0], 0.5)

	d, err := o.Nearest(context.Background(), orb.Point{5, 5})
	require.NoError(t, err)
	assert.Zero(t, d)
}
