// Package mcp serves the dataset actions as Model Context Protocol tools,
// so a planning agent can call them over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jobrunner/geofix/internal/application"
	"github.com/jobrunner/geofix/internal/domain"
	"github.com/jobrunner/geofix/internal/ports/input"
)

// LayerMetadataInput are the arguments of get_layer_metadata.
type LayerMetadataInput struct {
	FilePath string `json:"file_path" jsonschema:"dataset path relative to the workspace"`
}

// ReprojectInput are the arguments of reproject.
type ReprojectInput struct {
	SourcePath string `json:"source_path" jsonschema:"dataset path relative to the workspace"`
	TargetCRS  string `json:"tgt_crs,omitempty" jsonschema:"target CRS, EPSG:<code> or a PROJ string"`
}

// RepairInput are the arguments of repair.
type RepairInput struct {
	FilePath  string `json:"file_path" jsonschema:"dataset path relative to the workspace"`
	TargetCRS string `json:"target_crs,omitempty" jsonschema:"target CRS, EPSG:<code> or a PROJ string"`
}

// RepairAndJoinInput are the arguments of repair_and_join.
type RepairAndJoinInput struct {
	SourcePath string `json:"source_path" jsonschema:"source dataset path relative to the workspace"`
	TargetPath string `json:"target_path" jsonschema:"target dataset path relative to the workspace"`
	Predicate  string `json:"predicate,omitempty" jsonschema:"spatial predicate: intersects, contains or within"`
}

// ToolOutput is the structured content of every tool result.
type ToolOutput struct {
	ID      string      `json:"id"`
	Status  string      `json:"status"`
	Kind    string      `json:"kind,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Server is an MCP server backed by an action invoker.
type Server struct {
	server  *mcpsdk.Server
	actions input.ActionInvoker
	logger  *slog.Logger
}

// NewServer registers one tool per action.
func NewServer(actions input.ActionInvoker, version string, logger *slog.Logger) *Server {
	s := &Server{
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "geofix",
			Version: version,
		}, nil),
		actions: actions,
		logger:  logger,
	}

	descriptions := make(map[string]string)
	for _, spec := range actions.Actions() {
		descriptions[spec.Name] = spec.Description
	}
	tool := func(name string) *mcpsdk.Tool {
		return &mcpsdk.Tool{Name: name, Description: descriptions[name]}
	}

	mcpsdk.AddTool(s.server, tool(application.ActionGetLayerMetadata),
		handler(s, application.ActionGetLayerMetadata, func(in LayerMetadataInput) map[string]string {
			return args("file_path", in.FilePath)
		}))
	mcpsdk.AddTool(s.server, tool(application.ActionReproject),
		handler(s, application.ActionReproject, func(in ReprojectInput) map[string]string {
			return args("source_path", in.SourcePath, "tgt_crs", in.TargetCRS)
		}))
	mcpsdk.AddTool(s.server, tool(application.ActionRepair),
		handler(s, application.ActionRepair, func(in RepairInput) map[string]string {
			return args("file_path", in.FilePath, "target_crs", in.TargetCRS)
		}))
	mcpsdk.AddTool(s.server, tool(application.ActionRepairAndJoin),
		handler(s, application.ActionRepairAndJoin, func(in RepairAndJoinInput) map[string]string {
			return args("source_path", in.SourcePath, "target_path", in.TargetPath, "predicate", in.Predicate)
		}))

	return s
}

// Run serves over stdin/stdout until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio")
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect serves a single session over the given transport.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// handler adapts an action to a typed tool handler. Action failures are
// tool errors, not protocol errors.
func handler[In any](s *Server, name string, toArgs func(In) map[string]string) mcpsdk.ToolHandlerFor[In, ToolOutput] {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		result := s.actions.Invoke(ctx, name, toArgs(in))

		out := ToolOutput{
			ID:      result.ID,
			Status:  string(result.Status),
			Kind:    string(result.Kind),
			Message: result.Message,
			Data:    jsonData(result.Data),
		}

		s.logger.Debug("tool call",
			"tool", name,
			"id", result.ID,
			"status", result.Status,
		)

		return &mcpsdk.CallToolResult{
			IsError: result.Status != domain.StatusSuccess,
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result.Message}},
		}, out, nil
	}
}

// jsonData round-trips data through JSON so structured content only holds
// plain maps, slices and scalars.
func jsonData(data interface{}) interface{} {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// args builds an argument map from key/value pairs, dropping empty values
// so the action defaults apply.
func args(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			m[kv[i]] = kv[i+1]
		}
	}
	return m
}
