// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes FlowCRM saved views and filtering via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/flowcrm/internal/models"
	"github.com/starford/flowcrm/internal/viewservice"
)

const referenceURI = "flowcrm://filter-reference"

// Server wraps the MCP server with FlowCRM tools.
type Server struct {
	mcp *server.MCPServer
	svc *viewservice.Service
}

// New creates a new MCP server with all FlowCRM tools registered.
func New(svc *viewservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"FlowCRM",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	typeParam := mcp.WithString("type", mcp.Required(),
		mcp.Enum(string(models.ViewContacts), string(models.ViewDeals)),
		mcp.Description("Entity type"))
	rulesParam := mcp.WithArray("rules",
		mcp.Description("Filter rules; see get_filter_reference"),
		mcp.Items(map[string]any{"type": "object"}))

	s.mcp.AddTool(mcp.NewTool("list_views",
		mcp.WithDescription("List saved filter views for contacts or deals."),
		typeParam,
	), s.listViews)

	s.mcp.AddTool(mcp.NewTool("get_view",
		mcp.WithDescription("Read one saved view including its rules."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("View id")),
	), s.getView)

	s.mcp.AddTool(mcp.NewTool("save_view",
		mcp.WithDescription("Create a saved view, or update one when id is given. "+
			"Rules MUST follow the filter reference (get_filter_reference tool or the "+
			referenceURI+" resource)."),
		mcp.WithNumber("id", mcp.Description("Existing view id to update; omit to create")),
		mcp.WithString("name", mcp.Description("Display name; required when creating")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("type",
			mcp.Enum(string(models.ViewContacts), string(models.ViewDeals)),
			mcp.Description("Entity type; required when creating")),
		mcp.WithArray("rules",
			mcp.Description("Filter rules; see get_filter_reference. On update, omitted rules are kept"),
			mcp.Items(map[string]any{"type": "object"})),
	), s.saveView)

	s.mcp.AddTool(mcp.NewTool("delete_view",
		mcp.WithDescription("Delete a saved view."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("View id")),
	), s.deleteView)

	s.mcp.AddTool(mcp.NewTool("filter_records",
		mcp.WithDescription("Return the contacts or deals matching a saved view or ad-hoc rules, "+
			"optionally narrowed by a quick-search term."),
		typeParam,
		mcp.WithNumber("view_id", mcp.Description("Saved view to apply; overrides rules")),
		mcp.WithString("q", mcp.Description("Quick-search term")),
		rulesParam,
	), s.filterRecords)

	s.mcp.AddTool(mcp.NewTool("get_filter_reference",
		mcp.WithDescription("Returns the filter rule reference: fields, operators and evaluation order. "+
			"Call this before building rules."),
	), s.getFilterReference)

	s.mcp.AddResource(
		mcp.NewResource(referenceURI, "Filter Reference",
			mcp.WithResourceDescription("Fields, operators and evaluation order for filter rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFilterReference,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func requireID(req mcp.CallToolRequest, key string) (int64, error) {
	f, err := req.RequireFloat(key)
	if err != nil {
		return 0, err
	}
	if f < 1 || f != float64(int64(f)) {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return int64(f), nil
}

// rulesArg decodes the optional "rules" argument. Clients send either an
// array of rule objects or the same array encoded as a JSON string.
func rulesArg(req mcp.CallToolRequest) ([]models.FilterRule, error) {
	raw, ok := req.GetArguments()["rules"]
	if !ok || raw == nil {
		return nil, nil
	}
	var data []byte
	if str, isStr := raw.(string); isStr {
		data = []byte(str)
	} else {
		var err error
		if data, err = json.Marshal(raw); err != nil {
			return nil, err
		}
	}
	var rules []models.FilterRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	return rules, nil
}

func (s *Server) listViews(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	views, err := s.svc.ListViews(ctx, models.ViewType(typ))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(views), nil
}

func (s *Server) getView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.GetView(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v), nil
}

func (s *Server) saveView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rules, err := rulesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := req.GetArguments()
	if _, hasID := args["id"]; hasID {
		id, idErr := requireID(req, "id")
		if idErr != nil {
			return mcp.NewToolResultError(idErr.Error()), nil
		}
		v, err := s.svc.UpdateView(ctx, id, viewPatch(req, rules), "")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(v), nil
	}

	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.SaveView(ctx, models.ViewInput{
		Name:        name,
		Description: req.GetString("description", ""),
		Type:        models.ViewType(typ),
		Filters:     rules,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v), nil
}

// viewPatch carries only the arguments present in req, so omitted fields
// keep their stored values.
func viewPatch(req mcp.CallToolRequest, rules []models.FilterRule) models.ViewPatch {
	args := req.GetArguments()
	var patch models.ViewPatch
	if _, ok := args["name"]; ok {
		name := req.GetString("name", "")
		patch.Name = &name
	}
	if _, ok := args["description"]; ok {
		description := req.GetString("description", "")
		patch.Description = &description
	}
	if _, ok := args["type"]; ok {
		typ := models.ViewType(req.GetString("type", ""))
		patch.Type = &typ
	}
	if raw, ok := args["rules"]; ok && raw != nil {
		if rules == nil {
			rules = []models.FilterRule{}
		}
		patch.Filters = &rules
	}
	return patch
}

func (s *Server) deleteView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteView(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", id)), nil
}

func (s *Server) filterRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rules, err := rulesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fr := viewservice.FilterRequest{Rules: rules, Query: req.GetString("q", "")}
	if _, ok := req.GetArguments()["view_id"]; ok {
		if fr.ViewID, err = requireID(req, "view_id"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	switch models.ViewType(typ) {
	case models.ViewContacts:
		contacts, err := s.svc.FilterContacts(ctx, fr)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(contacts), nil
	case models.ViewDeals:
		deals, err := s.svc.FilterDeals(ctx, fr)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(deals), nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("unknown type: %s", typ)), nil
}

func (s *Server) getFilterReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FilterReference), nil
}

func (s *Server) readFilterReference(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      referenceURI,
			MIMEType: "text/markdown",
			Text:     FilterReference,
		},
	}, nil
}
