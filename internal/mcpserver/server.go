// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes orgsync queries for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/orgservice"
)

const contractURI = "orgsync://document-model"

// Server wraps the MCP server with orgsync tools.
type Server struct {
	mcp *server.MCPServer
	svc *orgservice.Service
}

// New creates a new MCP server with all orgsync tools registered.
func New(svc *orgservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"orgsync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List parsed org documents ordered by path, optionally only those using a tag."),
		mcp.WithString("tag", mcp.Description("Only documents where this tag occurs")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of documents (default all)")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Return a document with its full headline tree. "+
			"Read the orgsync://document-model resource or call get_model_contract to understand the fields."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document id or absolute path")),
	), s.getDocument)

	s.mcp.AddTool(mcp.NewTool("get_headline",
		mcp.WithDescription("Return one headline with its resolved TODO status and category."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("headline", mcp.Required(), mcp.Description("Dotted headline id, e.g. 1.2")),
	), s.getHeadline)

	s.mcp.AddTool(mcp.NewTool("find_headlines_with_tag",
		mcp.WithDescription("Find every headline declaring a tag."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name without colons")),
	), s.findByTag)

	s.mcp.AddTool(mcp.NewTool("find_headlines_with_category",
		mcp.WithDescription("Find every headline whose effective category matches."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
	), s.findByCategory)

	s.mcp.AddTool(mcp.NewTool("find_headlines_with_status",
		mcp.WithDescription("Find open tasks (active) or finished tasks (closed)."),
		mcp.WithString("state", mcp.Required(), mcp.Enum("active", "closed"), mcp.Description("Task state")),
	), s.findByStatus)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List every tag with its usage count and documents."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List every category with its usage count and documents."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("search_headlines",
		mcp.WithDescription("Full-text search through headline titles, content and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchHeadlines)

	s.mcp.AddTool(mcp.NewTool("get_updates",
		mcp.WithDescription("Return change records after a sequence number."),
		mcp.WithNumber("since", mcp.Description("Last sequence already seen (default 0)")),
		mcp.WithString("document", mcp.Description("Only changes to this document id")),
	), s.getUpdates)

	s.mcp.AddTool(mcp.NewTool("list_failures",
		mcp.WithDescription("List monitored files that currently fail to load."),
	), s.listFailures)

	s.mcp.AddTool(mcp.NewTool("get_model_contract",
		mcp.WithDescription("Returns the orgsync document model: identifiers, headline fields and change feed semantics."),
	), s.getModelContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Document Model",
			mcp.WithResourceDescription("How org documents and headlines are identified and described."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func errorResult(what string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", what))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := req.GetString("tag", "")
	limit := req.GetInt("limit", 0)
	items, _, err := s.svc.ListDocuments(ctx, limit, 0, tag)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.GetDocument(ctx, id)
	if err != nil {
		return errorResult(id, err), nil
	}
	return jsonResult(doc)
}

func (s *Server) getHeadline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hid, err := req.RequireString("headline")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h, err := s.svc.GetHeadline(ctx, models.HeadlineRef{DocumentID: docID, HeadlineID: hid})
	if err != nil {
		return errorResult(docID+"#"+hid, err), nil
	}
	return jsonResult(h)
}

func (s *Server) findByTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.HeadlinesWithTag(ctx, tag))
}

func (s *Server) findByCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.HeadlinesWithCategory(ctx, category))
}

func (s *Server) findByStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := req.RequireString("state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var st models.StateType
	switch state {
	case "active":
		st = models.StateActive
	case "closed":
		st = models.StateClosed
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown state %q, want active or closed", state)), nil
	}
	return jsonResult(s.svc.HeadlinesWithStatus(ctx, st))
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Tags(ctx))
}

func (s *Server) listCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Categories(ctx))
}

func (s *Server) searchHeadlines(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getUpdates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	since := req.GetInt("since", 0)
	if since < 0 {
		since = 0
	}
	return jsonResult(s.svc.Updates(ctx, uint64(since), req.GetString("document", "")))
}

func (s *Server) listFailures(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Failures(ctx))
}

func (s *Server) getModelContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ModelContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     ModelContract,
		},
	}, nil
}
