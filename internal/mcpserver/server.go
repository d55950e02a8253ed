// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Home History tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/homehistory/internal/apperr"
	"github.com/starford/homehistory/internal/enrich"
	"github.com/starford/homehistory/internal/models"
	"github.com/starford/homehistory/internal/property"
)

const guidelinesURI = "homehistory://memory-guidelines"

// Properties is the property behaviour exposed as tools.
type Properties interface {
	Get(ctx context.Context, id string) (*models.Property, error)
	Nearby(ctx context.Context, c models.Coordinates, radiusMiles float64) ([]*models.Property, error)
	FindOrCreate(ctx context.Context, in property.CreateInput) (*models.Property, bool, error)
}

// Enricher looks up geocoding data for an address.
type Enricher interface {
	Enrich(ctx context.Context, address string) enrich.Result
}

// Server wraps the MCP server with Home History tools.
type Server struct {
	mcp        *server.MCPServer
	properties Properties
	enricher   Enricher
}

// New creates a new MCP server with all tools registered.
func New(properties Properties, enricher Enricher) *Server {
	s := &Server{properties: properties, enricher: enricher}

	s.mcp = server.NewMCPServer(
		"Home History",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("enrich_address",
		mcp.WithDescription("Look up a free-text US address in the Census geocoder and OpenStreetMap. "+
			"Returns both raw provider payloads; results are cached."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Address, e.g. 123 Main St, Springfield, IL")),
	), s.enrichAddress)

	s.mcp.AddTool(mcp.NewTool("find_nearby_properties",
		mcp.WithDescription("List properties within a radius (miles) of a point."),
		mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude in degrees")),
		mcp.WithNumber("lng", mcp.Required(), mcp.Description("Longitude in degrees")),
		mcp.WithNumber("radius", mcp.Description("Radius in miles (default 1)")),
	), s.findNearby)

	s.mcp.AddTool(mcp.NewTool("get_property",
		mcp.WithDescription("Read a property with all of its memories and enrichment."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Property id")),
	), s.getProperty)

	s.mcp.AddTool(mcp.NewTool("add_memory",
		mcp.WithDescription("Record a memory at a location. It joins the property within about 100m "+
			"or starts a new one. Read the guidelines first via get_memory_guidelines."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Street address of the home")),
		mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude in degrees")),
		mcp.WithNumber("lng", mcp.Required(), mcp.Description("Longitude in degrees")),
		mcp.WithString("memory", mcp.Required(), mcp.Description("The memory text")),
		mcp.WithString("submitter_name", mcp.Required(), mcp.Description("Who is sharing the memory")),
		mcp.WithNumber("year_moved_in", mcp.Description("Year the submitter moved in")),
		mcp.WithNumber("year_moved_out", mcp.Description("Year the submitter moved out")),
	), s.addMemory)

	s.mcp.AddTool(mcp.NewTool("get_memory_guidelines",
		mcp.WithDescription("Returns the guidelines for writing memories. Call this before add_memory."),
	), s.getGuidelines)

	s.mcp.AddResource(
		mcp.NewResource(guidelinesURI, "Memory Guidelines",
			mcp.WithResourceDescription("How memories should be written and attributed."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuidelinesResource,
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

func (s *Server) enrichAddress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, err := req.RequireString("address")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := s.enricher.Enrich(ctx, address)
	return jsonResult(map[string]any{
		"cached":     res.Cached,
		"data":       res,
		"enrichment": res.Enrichment,
	})
}

func (s *Server) findNearby(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := req.RequireFloat("lat")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lng, err := req.RequireFloat("lng")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	radius := req.GetFloat("radius", property.DefaultRadiusMiles)
	items, err := s.properties.Nearby(ctx, models.Coordinates{Lat: lat, Lng: lng}, radius)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no properties found"), nil
	}
	return jsonResult(items)
}

func (s *Server) getProperty(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.properties.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(p)
}

func (s *Server) addMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in property.CreateInput
	var err error
	if in.Address, err = req.RequireString("address"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if in.Coordinates.Lat, err = req.RequireFloat("lat"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if in.Coordinates.Lng, err = req.RequireFloat("lng"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if in.Memory.Text, err = req.RequireString("memory"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if in.Memory.SubmitterName, err = req.RequireString("submitter_name"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in.Memory.Residency = &models.Residency{
		YearMovedIn:  optionalYear(req, "year_moved_in"),
		YearMovedOut: optionalYear(req, "year_moved_out"),
	}

	p, created, err := s.properties.FindOrCreate(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(apperr.Message(err)), nil
	}
	verb := "added to"
	if created {
		verb = "created"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s (%d memories)", verb, p.ID, len(p.Memories))), nil
}

func optionalYear(req mcp.CallToolRequest, key string) *int {
	v := int(req.GetFloat(key, 0))
	if v == 0 {
		return nil
	}
	return &v
}

func (s *Server) getGuidelines(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MemoryGuidelines), nil
}

func (s *Server) readGuidelinesResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guidelinesURI,
			MIMEType: "text/markdown",
			Text:     MemoryGuidelines,
		},
	}, nil
}
