// Package mcp exposes the transition engine as Model Context Protocol tools
// so AI agents can advance work items conversationally.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MuiGoku123432/adoflow"
	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Engine defines the interface required by the MCP server.
type Engine interface {
	BeginTransition(ctx context.Context, workItemID int) (*domain.TransitionResult, error)
	FinishTransition(ctx context.Context, correlationID string, values map[string]any) (*domain.TransitionOutcome, error)
	CancelTransition(ctx context.Context, correlationID string) error
	PreviewTransition(ctx context.Context, workItemID int) (*domain.TransitionPreview, error)
	InvalidateAllPreviews()
}

// TransitionResponse is the structured result of begin/finish tools.
type TransitionResponse struct {
	Status        string               `json:"status" jsonschema_description:"completed, pending or none"`
	WorkItemID    int                  `json:"work_item_id" jsonschema_description:"The work item that was advanced"`
	TargetState   string               `json:"target_state,omitempty" jsonschema_description:"The state the item moved (or will move) to"`
	CorrelationID string               `json:"correlation_id,omitempty" jsonschema_description:"Ticket to pass to finish_transition or cancel_transition"`
	Prompts       []domain.FieldPrompt `json:"prompts,omitempty" jsonschema_description:"Fields that must be supplied before the transition can complete"`
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("adoflow-mcp", strings.TrimSpace(adoflow.Version)),
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	beginTool := mcp.NewTool("begin_transition",
		mcp.WithDescription("Advance a work item to its next workflow state. Completes immediately when no extra fields are needed, otherwise returns prompts and a correlation id for finish_transition."),
		mcp.WithNumber("work_item_id", mcp.Required(), mcp.Description("Numeric work item id")),
		mcp.WithOutputSchema[TransitionResponse](),
	)
	s.mcpServer.AddTool(beginTool, mcp.NewStructuredToolHandler(s.handleBegin))

	finishTool := mcp.NewTool("finish_transition",
		mcp.WithDescription("Complete a pending transition by supplying the requested field values."),
		mcp.WithString("correlation_id", mcp.Required(), mcp.Description("Ticket returned by begin_transition")),
		mcp.WithString("values", mcp.Description("JSON object mapping field reference names to values")),
		mcp.WithOutputSchema[TransitionResponse](),
	)
	s.mcpServer.AddTool(finishTool, mcp.NewStructuredToolHandler(s.handleFinish))

	cancelTool := mcp.NewTool("cancel_transition",
		mcp.WithDescription("Abandon a pending transition. Safe to call more than once."),
		mcp.WithString("correlation_id", mcp.Required(), mcp.Description("Ticket returned by begin_transition")),
	)
	s.mcpServer.AddTool(cancelTool, s.handleCancel)

	previewTool := mcp.NewTool("preview_transition",
		mcp.WithDescription("Look up the next workflow state for a work item without changing anything. Served from a short-lived cache."),
		mcp.WithNumber("work_item_id", mcp.Required(), mcp.Description("Numeric work item id")),
		mcp.WithOutputSchema[domain.TransitionPreview](),
	)
	s.mcpServer.AddTool(previewTool, mcp.NewStructuredToolHandler(s.handlePreview))

	s.mcpServer.AddTool(mcp.NewTool("invalidate_previews",
		mcp.WithDescription("Drop all cached previews, forcing fresh lookups."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.engine.InvalidateAllPreviews()
		return mcp.NewToolResultText("preview cache cleared"), nil
	})
}

func (s *Server) handleBegin(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TransitionResponse, error) {
	id, err := workItemIDArg(args)
	if err != nil {
		return TransitionResponse{}, err
	}

	result, err := s.engine.BeginTransition(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNoTransitionAvailable) {
			return TransitionResponse{Status: "none", WorkItemID: id}, nil
		}
		return TransitionResponse{}, fmt.Errorf("begin failed: %w", err)
	}

	return TransitionResponse{
		Status:        string(result.Status),
		WorkItemID:    result.WorkItemID,
		TargetState:   result.TargetState,
		CorrelationID: result.CorrelationID,
		Prompts:       result.Prompts,
	}, nil
}

func (s *Server) handleFinish(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TransitionResponse, error) {
	correlationID, _ := args["correlation_id"].(string)
	if correlationID == "" {
		return TransitionResponse{}, fmt.Errorf("correlation_id is required")
	}

	values := make(map[string]any)
	if raw, ok := args["values"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return TransitionResponse{}, fmt.Errorf("values must be a JSON object: %w", err)
		}
	}

	outcome, err := s.engine.FinishTransition(ctx, correlationID, values)
	if err != nil {
		return TransitionResponse{}, fmt.Errorf("finish failed: %w", err)
	}

	return TransitionResponse{
		Status:      "completed",
		WorkItemID:  outcome.WorkItemID,
		TargetState: outcome.TargetState,
	}, nil
}

func (s *Server) handleCancel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	correlationID := request.GetString("correlation_id", "")
	if correlationID == "" {
		return mcp.NewToolResultError("correlation_id is required"), nil
	}

	if err := s.engine.CancelTransition(ctx, correlationID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cancel failed: %v", err)), nil
	}
	return mcp.NewToolResultText("pending transition cancelled"), nil
}

func (s *Server) handlePreview(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.TransitionPreview, error) {
	id, err := workItemIDArg(args)
	if err != nil {
		return domain.TransitionPreview{}, err
	}

	p, err := s.engine.PreviewTransition(ctx, id)
	if err != nil {
		return domain.TransitionPreview{}, fmt.Errorf("preview failed: %w", err)
	}
	return *p, nil
}

func workItemIDArg(args map[string]interface{}) (int, error) {
	raw, ok := args["work_item_id"].(float64)
	if !ok || raw <= 0 {
		return 0, fmt.Errorf("work_item_id must be a positive number")
	}
	return int(raw), nil
}
