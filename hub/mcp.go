package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes hub operations as MCP tools on stdio so an assistant
// can inspect devices and flip relays.
type MCPServer struct {
	server *server.MCPServer
}

func NewMCPServer(h *Hub, registry *Registry) *MCPServer {
	s := server.NewMCPServer("gobeacon-hub", "1.0.0")

	listTool := mcp.NewTool("list_devices",
		mcp.WithDescription("List every node the hub has heard from, with its last readings"),
	)
	s.AddTool(listTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		devices := registry.List()
		result := map[string]interface{}{
			"devices": devices,
			"count":   len(devices),
		}
		resultBytes, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error marshaling devices: %v", err)), err
		}
		return mcp.NewToolResultText(string(resultBytes)), nil
	})

	setRelayTool := mcp.NewTool("set_relay",
		mcp.WithDescription("Broadcast a relay command addressed to one device"),
		mcp.WithString("device_id",
			mcp.Required(),
			mcp.Description("Target device id, e.g. swift-falcon-a3f2"),
		),
		mcp.WithBoolean("state",
			mcp.Required(),
			mcp.Description("Desired relay state"),
		),
		mcp.WithNumber("relay_id",
			mcp.Description("Relay index on the device (default 0)"),
		),
	)
	s.AddTool(setRelayTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		deviceID, err := request.RequireString("device_id")
		if err != nil {
			return mcp.NewToolResultError("device_id is required and must be a string"), err
		}
		state := request.GetBool("state", false)

		relayID := 0
		if args, ok := request.GetRawArguments().(map[string]interface{}); ok {
			if v, ok := args["relay_id"].(float64); ok {
				relayID = int(v)
			}
		}
		if relayID < 0 || relayID > 255 {
			return mcp.NewToolResultError("relay_id must be 0-255"), fmt.Errorf("relay_id %d out of range", relayID)
		}

		if err := h.SendRelayCommand(deviceID, uint8(relayID), state); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to send relay command: %v", err)), err
		}
		return mcp.NewToolResultText(fmt.Sprintf("Relay command sent to %s (relay %d -> %t)", deviceID, relayID, state)), nil
	})

	return &MCPServer{server: s}
}

// Start serves MCP on stdio until the peer disconnects.
func (s *MCPServer) Start() error {
	slog.Info("started stdio MCP server")
	defer slog.Info("shut down stdio MCP server")
	return server.ServeStdio(s.server)
}
