package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/dodgesim/internal/core/env"
	"github.com/zeusync/dodgesim/internal/core/systems/physics"
	"github.com/zeusync/dodgesim/internal/server"
)

func startServer(t *testing.T, token string) string {
	t.Helper()
	envCfg := env.DefaultConfig()
	envCfg.Emitters = nil
	envCfg.Agent.Spawn = physics.V(0, 0)

	cfg := server.DefaultServerConfig()
	cfg.Token = token
	srv := server.NewServer(cfg, envCfg, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url, token string) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.URL = url
	cfg.Token = token
	c, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_Episode(t *testing.T) {
	c := dial(t, startServer(t, ""), "")
	ctx := context.Background()

	_, err := c.Step(ctx, []float64{0, 0}, 0)
	assert.ErrorIs(t, err, ErrNotReset)

	info, err := c.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.ActionSize, info.ActionSize)

	first, err := c.Reset(ctx)
	require.NoError(t, err)
	assert.Len(t, first.Observation, info.ObservationSize)

	res, err := c.Step(ctx, []float64{0, 1, 0}, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Step)
	assert.InDelta(t, 0.5, res.Observation[1], 1e-12)

	require.NoError(t, c.ReportCollision(ctx))
	res, err = c.Step(ctx, []float64{0, 0}, 0)
	require.NoError(t, err)
	assert.True(t, res.Done)

	_, err = c.Step(ctx, []float64{0, 0}, 0)
	assert.ErrorIs(t, err, ErrEpisodeOver)
	var serr *ServerError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, server.CodeEpisodeOver, serr.Code)

	_, err = c.Reset(ctx)
	require.NoError(t, err)
	_, err = c.Step(ctx, []float64{0}, 0)
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestClient_Token(t *testing.T) {
	url := startServer(t, "s3cret")

	cfg := DefaultClientConfig()
	cfg.URL = url
	_, err := Dial(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnauthorized)

	c := dial(t, url, "s3cret")
	_, err = c.Reset(context.Background())
	assert.NoError(t, err)
}

func TestClient_Close(t *testing.T) {
	c := dial(t, startServer(t, ""), "")
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Reset(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestDial_InvalidConfig(t *testing.T) {
	_, err := Dial(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
