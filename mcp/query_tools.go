package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pactline-backend/core/pact"
)

// Read-only tools take no session key. Everything they return is public
// ledger state.

// registerListOpenPactsTool creates a tool for browsing unaccepted pacts
func (s *MCPServer) registerListOpenPactsTool() {
	tool := mcp.NewTool("list_open_pacts",
		mcp.WithDescription("List pacts still awaiting a counterparty"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of pacts to return")),
		mcp.WithNumber("offset", mcp.Description("Number of pacts to skip")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		limit := int(toInt64(args["limit"]))
		if limit == 0 {
			limit = 50
		}

		pacts, err := s.ledger.OpenPacts(ctx, int(toInt64(args["offset"])), limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list open pacts: %v", err)), nil
		}
		total, err := s.ledger.OpenPactCount(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to count open pacts: %v", err)), nil
		}

		result := map[string]interface{}{
			"pacts":       pacts,
			"total_count": total,
		}

		return mcp.NewToolResultText(fmt.Sprintf("Found %d open pacts:\n\n%+v", total, result)), nil
	})
}

// registerGetPactTool creates a tool for getting a specific pact
func (s *MCPServer) registerGetPactTool() {
	tool := mcp.NewTool("get_pact",
		mcp.WithDescription("Get details of a specific pact"),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of pact to retrieve")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pactID := uint64(toInt64(request.GetArguments()["pact_id"]))
		if pactID == 0 {
			return mcp.NewToolResultError("pact_id is required"), nil
		}

		p, err := s.ledger.GetPact(ctx, pactID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get pact: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Pact details:\n\n%+v", p)), nil
	})
}

// registerListParticipantPactsTool creates a tool for an address's history
func (s *MCPServer) registerListParticipantPactsTool() {
	tool := mcp.NewTool("list_participant_pacts",
		mcp.WithDescription("List every pact an address has ever been party to"),
		mcp.WithString("address", mcp.Required(), mcp.Description("Participant address")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of pacts to return")),
		mcp.WithNumber("offset", mcp.Description("Number of pacts to skip")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		addr, err := request.RequireString("address")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		limit := int(toInt64(args["limit"]))
		if limit == 0 {
			limit = 50
		}

		pacts, err := s.ledger.PactsOf(ctx, pact.Address(addr), int(toInt64(args["offset"])), limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list pacts: %v", err)), nil
		}
		total, err := s.ledger.PactCountOf(ctx, pact.Address(addr))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to count pacts: %v", err)), nil
		}

		result := map[string]interface{}{
			"pacts":       pacts,
			"total_count": total,
		}

		return mcp.NewToolResultText(fmt.Sprintf("Found %d pacts for %s:\n\n%+v", total, addr, result)), nil
	})
}

// registerGetReputationTool creates a tool for reading reputation counters
func (s *MCPServer) registerGetReputationTool() {
	tool := mcp.NewTool("get_reputation",
		mcp.WithDescription("Get the reputation counters for an address"),
		mcp.WithString("address", mcp.Required(), mcp.Description("Address to look up")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		addr, err := request.RequireString("address")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		rep, err := s.ledger.GetReputation(ctx, pact.Address(addr))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get reputation: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Reputation for %s:\n\n%+v", addr, rep)), nil
	})
}

// registerListVerifiersTool creates a tool for listing registered verifiers
func (s *MCPServer) registerListVerifiersTool() {
	tool := mcp.NewTool("list_verifiers",
		mcp.WithDescription("List verifiers registered with the routing service"),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if s.registry == nil {
			return mcp.NewToolResultError("verifier registry not configured"), nil
		}

		verifiers := s.registry.List()

		result := map[string]interface{}{
			"verifiers": verifiers,
			"count":     len(verifiers),
		}

		return mcp.NewToolResultText(fmt.Sprintf("Registered verifiers (%d total):\n\n%+v", len(verifiers), result)), nil
	})
}

// registerListEventsTool creates a tool for the recent event feed
func (s *MCPServer) registerListEventsTool() {
	tool := mcp.NewTool("list_events",
		mcp.WithDescription("List recent ledger events, newest last"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of events to return")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		events := s.ledger.Events().Recent(int(toInt64(request.GetArguments()["limit"])))

		result := map[string]interface{}{
			"events":      events,
			"total_count": len(events),
		}

		return mcp.NewToolResultText(fmt.Sprintf("Found %d events:\n\n%+v", len(events), result)), nil
	})
}
