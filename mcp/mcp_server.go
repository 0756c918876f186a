package mcp

import (
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/server"

	"pactline-backend/core/pact"
	"pactline-backend/services"
)

// MCPServer wraps the mcp-go server with the pact ledger and the session
// policy layer. Every mutating tool authenticates with a session key issued
// by the policy administrator; the key resolves to the on-ledger address the
// operation is performed as.
type MCPServer struct {
	mcpServer *server.MCPServer
	ledger    *pact.Ledger
	policy    *services.PolicyEngine
	registry  *services.Registry
}

// NewMCPServer creates a new MCP server using the mcp-go library
func NewMCPServer(ledger *pact.Ledger, policy *services.PolicyEngine, registry *services.Registry) *MCPServer {
	mcpServer := server.NewMCPServer(
		"Pactline MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		mcpServer: mcpServer,
		ledger:    ledger,
		policy:    policy,
		registry:  registry,
	}

	s.registerTools()

	return s
}

// GetMCPServer returns the underlying MCP server for transport setup
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// registerTools registers all MCP tools with the server
func (s *MCPServer) registerTools() {
	// Pact lifecycle tools
	s.registerCreatePactTool()
	s.registerAcceptPactTool()
	s.registerStartWorkTool()
	s.registerSubmitWorkTool()

	// Verification tools
	s.registerSubmitVerificationTool()
	s.registerFinalizeVerificationTool()

	// Settlement tools
	s.registerApproveWorkTool()
	s.registerRejectWorkTool()
	s.registerAutoApproveTool()

	// Amendment tools
	s.registerProposeAmendmentTool()
	s.registerAcceptAmendmentTool()

	// Dispute tools
	s.registerRaiseDisputeTool()
	s.registerResolveDisputeTool()
	s.registerClaimTimeoutTool()

	// Discovery tools
	s.registerListOpenPactsTool()
	s.registerGetPactTool()
	s.registerListParticipantPactsTool()
	s.registerGetReputationTool()
	s.registerListVerifiersTool()
	s.registerListEventsTool()
}

// authorize resolves a session key to its owning address after the policy
// check for the given tool and value.
func (s *MCPServer) authorize(key, op string, value int64) (pact.Address, error) {
	if err := s.policy.Authorize(key, op, value); err != nil {
		return "", err
	}
	owner, ok := s.policy.Owner(key)
	if !ok {
		return "", pact.Err("unknown session key")
	}
	return owner, nil
}

// Helper function to convert interface{} to string
func toString(val interface{}) string {
	if str, ok := val.(string); ok {
		return str
	}
	if val == nil {
		return ""
	}
	return fmt.Sprintf("%v", val)
}

// Helper function to convert interface{} to int64
func toInt64(val interface{}) int64 {
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	if f, ok := val.(float64); ok {
		return int64(f)
	}
	if str, ok := val.(string); ok {
		if i, err := strconv.ParseInt(str, 10, 64); err == nil {
			return i
		}
	}
	return 0
}

// Helper function to convert interface{} to bool
func toBool(val interface{}) bool {
	b, _ := val.(bool)
	return b
}
