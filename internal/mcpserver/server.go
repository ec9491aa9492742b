// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes read-only Agora tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/agora/internal/artifacts"
	"github.com/starford/agora/internal/authz"
	"github.com/starford/agora/internal/communities"
	"github.com/starford/agora/internal/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Server wraps the MCP server with Agora tools. Every tool runs as the
// anonymous principal, so only published artifacts are reachable.
type Server struct {
	mcp         *server.MCPServer
	artifacts   *artifacts.Service
	communities *communities.Service
}

// New creates a new MCP server with all Agora tools registered.
func New(arts *artifacts.Service, comms *communities.Service) *Server {
	s := &Server{artifacts: arts, communities: comms}

	s.mcp = server.NewMCPServer(
		"Agora",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_artifacts",
		mcp.WithDescription("List published artifacts, newest first. Returns JSON."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of artifacts (default 20, max 100)")),
		mcp.WithNumber("offset", mcp.Description("Number of artifacts to skip")),
	), s.listArtifacts)

	s.mcp.AddTool(mcp.NewTool("read_artifact",
		mcp.WithDescription("Read a published artifact with its review and ratings. "+
			"See the agora://artifact-format resource for the field layout."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Artifact ID")),
	), s.readArtifact)

	s.mcp.AddTool(mcp.NewTool("artifact_rating",
		mcp.WithDescription("Return the rating count and mean score (1-5) of a published artifact."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Artifact ID")),
	), s.artifactRating)

	s.mcp.AddTool(mcp.NewTool("list_communities",
		mcp.WithDescription("List communities with their follower counts."),
	), s.listCommunities)

	// Resource: artifact format and lifecycle.
	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Artifact Format",
			mcp.WithResourceDescription("Artifact JSON fields and review lifecycle."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listArtifacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := max(req.GetInt("offset", 0), 0)

	items, err := s.artifacts.List(ctx, authz.Anonymous, artifacts.ListFilter{
		Status: models.StatusPublished,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) readArtifact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.artifacts.Get(ctx, authz.Anonymous, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a)
}

func (s *Server) artifactRating(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	agg, err := s.artifacts.Rating(ctx, authz.Anonymous, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(agg)
}

func (s *Server) listCommunities(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.communities.List(ctx, authz.Anonymous)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     ArtifactFormat,
		},
	}, nil
}
