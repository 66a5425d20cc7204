package mcp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/deadwood/pkg/mcp"
)

func TestNewServer_RegistersTools(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	require.NotNil(t, srv)

	names := srv.ListToolNames()
	assert.Len(t, names, 2)
	assert.Contains(t, names, "deadwood_scan")
	assert.Contains(t, names, "deadwood_clean_preview")
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, srv.Run(ctx))
}
