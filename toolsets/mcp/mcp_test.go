package mcp

import (
	"context"
	"testing"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/relayforge/workerflow/runtime/agent/toolset"
)

func TestToolsAppliesFilter(t *testing.T) {
	ts := &Toolset{
		tools: []gomcp.Tool{
			{Name: "search", Description: "web search"},
			{Name: "fetch", Description: "fetch a url"},
		},
		filter: map[string]bool{"search": true},
	}

	tools := ts.Tools()
	require.Len(t, tools, 1)
	require.Equal(t, "search", tools[0].Name)
	require.Equal(t, "web search", tools[0].Description)
}

func TestToolsWithNilFilterExposesEverything(t *testing.T) {
	ts := &Toolset{
		tools: []gomcp.Tool{
			{Name: "search"},
			{Name: "fetch"},
		},
	}

	tools := ts.Tools()
	require.Len(t, tools, 2)
}

func TestNewFactoryRequiresCommand(t *testing.T) {
	factory := NewFactory(Config{})
	_, err := factory(context.Background(), toolset.FactoryContext{})
	require.Error(t, err)
}
