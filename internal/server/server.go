// Package server exposes the bridge operations as MCP tools over stdio.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sigmcp/signal-mcp-go/internal/signal"
)

const (
	// Version is reported to MCP clients during initialization.
	Version = "1.0.0"

	defaultReceiveTimeout = 60 * time.Second
	defaultMaxWait        = 3600
	maxWaitCeiling        = 7200
)

// Server is the MCP stdio server for the bridge.
type Server struct {
	log *slog.Logger
	svc *signal.Service
	mcp *mcp.Server
}

// New builds the MCP server and registers the bridge's tools.
func New(log *slog.Logger, svc *signal.Service) *Server {
	s := &Server{
		log: log.With("component", "server"),
		svc: svc,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "signal-cli",
			Version: Version,
		}, nil),
	}

	s.registerTools()

	return s
}

// Run serves MCP over stdio until ctx is cancelled or the client hangs up.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp server starting", "transport", "stdio")

	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "send_message_to_user",
		Description: "Send a Signal message to a single user. The user_id is a phone number in E.164 form (e.g. +15551234567) or a Signal username.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"message": {Type: "string", Description: "The message text to send."},
				"user_id": {Type: "string", Description: "Recipient phone number or username."},
			},
			Required: []string{"message", "user_id"},
		},
	}, s.handleSendToUser)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "send_message_to_group",
		Description: "Send a Signal message to a group. The group_id is the base64 group id as reported by list_groups.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"message":  {Type: "string", Description: "The message text to send."},
				"group_id": {Type: "string", Description: "Base64 id of the target group."},
			},
			Required: []string{"message", "group_id"},
		},
	}, s.handleSendToGroup)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "receive_message",
		Description: "Wait for the next incoming Signal message from anyone. Returns a timeout notice when nothing arrives in time.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"timeout": {Type: "integer", Description: "Seconds to wait before giving up. Defaults to 60."},
			},
		},
	}, s.handleReceiveMessage)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "wait_for_message",
		Description: "Wait for an incoming Signal message, optionally from a specific sender. The sender may be a phone number, UUID, or a known display name.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"from_user":        {Type: "string", Description: "Only accept messages from this sender. Empty matches anyone."},
				"max_wait_seconds": {Type: "integer", Description: "Seconds to wait, between 1 and 7200. Defaults to 3600."},
			},
		},
	}, s.handleWaitForMessage)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_groups",
		Description: "List the Signal groups the configured account is a member of.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleListGroups)
}

func (s *Server) handleSendToUser(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArguments(req)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	message := stringArg(args, "message")
	userID := stringArg(args, "user_id")

	if message == "" || userID == "" {
		return errorResult("message and user_id are required"), nil
	}

	if err := s.svc.SendToUser(ctx, userID, message); err != nil {
		s.log.Error("send to user failed", "user_id", userID, "error", err)

		return errorResult(err.Error()), nil
	}

	return textResult(fmt.Sprintf("Message sent to %s", userID)), nil
}

func (s *Server) handleSendToGroup(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArguments(req)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	message := stringArg(args, "message")
	groupID := stringArg(args, "group_id")

	if message == "" || groupID == "" {
		return errorResult("message and group_id are required"), nil
	}

	if err := s.svc.SendToGroup(ctx, groupID, message); err != nil {
		s.log.Error("send to group failed", "group_id", groupID, "error", err)

		return errorResult(err.Error()), nil
	}

	return textResult(fmt.Sprintf("Message sent to group %s", groupID)), nil
}

func (s *Server) handleReceiveMessage(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArguments(req)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	timeout := defaultReceiveTimeout
	if secs := intArg(args, "timeout"); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	resp, err := s.svc.ReceiveMessage(ctx, timeout)
	if err != nil {
		s.log.Error("receive failed", "error", err)

		return errorResult(err.Error()), nil
	}

	return jsonResult(resp)
}

func (s *Server) handleWaitForMessage(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArguments(req)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	maxWait := defaultMaxWait
	if secs := intArg(args, "max_wait_seconds"); secs != 0 {
		maxWait = secs
	}

	if err := validateMaxWait(maxWait); err != nil {
		return jsonResult(&signal.MessageResponse{Error: err.Error()})
	}

	resp, err := s.svc.WaitForMessage(ctx, stringArg(args, "from_user"), time.Duration(maxWait)*time.Second)
	if err != nil {
		s.log.Error("wait failed", "error", err)

		return errorResult(err.Error()), nil
	}

	return jsonResult(resp)
}

func (s *Server) handleListGroups(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groups, err := s.svc.ListGroups(ctx)
	if err != nil {
		s.log.Error("list groups failed", "error", err)

		return errorResult(err.Error()), nil
	}

	return jsonResult(groups)
}

// validateMaxWait enforces the allowed wait window for wait_for_message.
func validateMaxWait(seconds int) error {
	if seconds < 1 || seconds > maxWaitCeiling {
		return fmt.Errorf("max_wait_seconds must be between 1 and %d, got %d", maxWaitCeiling, seconds)
	}

	return nil
}
