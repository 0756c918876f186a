package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"pactline-backend/core/pact"
)

// registerCreatePactTool creates a tool for opening a new pact
func (s *MCPServer) registerCreatePactTool() {
	tool := mcp.NewTool("create_pact",
		mcp.WithDescription("Create a new work agreement and deposit the initiator's side of the escrow"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithString("initiator", mcp.Required(), mcp.Description("Role the caller takes: buyer or seller")),
		mcp.WithString("spec_hash", mcp.Required(), mcp.Description("Hash of the agreed work specification")),
		mcp.WithString("deadline", mcp.Required(), mcp.Description("Work deadline (ISO 8601 format)")),
		mcp.WithArray("oracles", mcp.Required(), mcp.Description("Verification panel: objects with address and weight, weights sum to 100")),
		mcp.WithNumber("threshold", mcp.Required(), mcp.Description("Passing score threshold, 0-100")),
		mcp.WithNumber("payment", mcp.Required(), mcp.Description("Payment amount in base units")),
		mcp.WithNumber("review_period_secs", mcp.Description("Buyer review window before auto-approval, in seconds")),
		mcp.WithNumber("oracle_fee", mcp.Description("Total fee paid to the verification panel")),
		mcp.WithString("asset_kind", mcp.Description("native or token, default native")),
		mcp.WithString("asset_token", mcp.Description("Token identifier when asset_kind is token")),
		mcp.WithNumber("value", mcp.Description("Native value attached to the call")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		key, err := request.RequireString("session_key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		value := toInt64(args["value"])
		caller, err := s.authorize(key, "create_pact", value)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		deadline, err := time.Parse(time.RFC3339, toString(args["deadline"]))
		if err != nil {
			return mcp.NewToolResultError("deadline must be an ISO 8601 timestamp"), nil
		}

		var oracles []pact.OracleWeight
		if oracleSlice, ok := args["oracles"].([]interface{}); ok {
			for _, o := range oracleSlice {
				if m, ok := o.(map[string]interface{}); ok {
					oracles = append(oracles, pact.OracleWeight{
						Address: pact.Address(toString(m["address"])),
						Weight:  int(toInt64(m["weight"])),
					})
				}
			}
		}

		assetKind := pact.AssetKind(toString(args["asset_kind"]))
		if assetKind == "" {
			assetKind = pact.AssetNative
		}

		params := pact.CreateParams{
			Initiator:    pact.Role(toString(args["initiator"])),
			SpecHash:     toString(args["spec_hash"]),
			Deadline:     deadline,
			Oracles:      oracles,
			Threshold:    int(toInt64(args["threshold"])),
			Payment:      toInt64(args["payment"]),
			ReviewPeriod: time.Duration(toInt64(args["review_period_secs"])) * time.Second,
			OracleFee:    toInt64(args["oracle_fee"]),
			Asset:        pact.Asset{Kind: assetKind, Token: toString(args["asset_token"])},
		}

		resID, err := s.policy.Reserve(key, value)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		id, err := s.ledger.CreatePact(ctx, caller, value, params)
		if err != nil {
			_ = s.policy.Release(resID)
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create pact: %v", err)), nil
		}
		_ = s.policy.Commit(resID)

		result := map[string]interface{}{
			"pact_id": id,
			"status":  pact.StatusNegotiating,
		}

		return mcp.NewToolResultText(fmt.Sprintf("Pact created successfully:\n\n%+v", result)), nil
	})
}

// registerAcceptPactTool creates a tool for accepting an open pact
func (s *MCPServer) registerAcceptPactTool() {
	tool := mcp.NewTool("accept_pact",
		mcp.WithDescription("Accept an open pact as the counterparty and deposit the complementary escrow"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact to accept")),
		mcp.WithNumber("value", mcp.Description("Native value attached to the call")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		key, err := request.RequireString("session_key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		value := toInt64(args["value"])
		caller, err := s.authorize(key, "accept_pact", value)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		resID, err := s.policy.Reserve(key, value)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := s.ledger.AcceptPact(ctx, caller, value, uint64(toInt64(args["pact_id"]))); err != nil {
			_ = s.policy.Release(resID)
			return mcp.NewToolResultError(fmt.Sprintf("Failed to accept pact: %v", err)), nil
		}
		_ = s.policy.Commit(resID)

		return mcp.NewToolResultText("Pact accepted. Escrow is fully funded."), nil
	})
}

// registerStartWorkTool creates a tool for the seller to start work
func (s *MCPServer) registerStartWorkTool() {
	tool := mcp.NewTool("start_work",
		mcp.WithDescription("Mark a funded pact as in progress (seller only)"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, pactID, errResult := s.simpleAuth(request, "start_work")
		if errResult != nil {
			return errResult, nil
		}
		if err := s.ledger.StartWork(ctx, caller, pactID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to start work: %v", err)), nil
		}
		return mcp.NewToolResultText("Work started."), nil
	})
}

// registerSubmitWorkTool creates a tool for submitting the work proof
func (s *MCPServer) registerSubmitWorkTool() {
	tool := mcp.NewTool("submit_work",
		mcp.WithDescription("Submit the completed work proof for verification (seller only)"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact")),
		mcp.WithString("proof_hash", mcp.Required(), mcp.Description("Hash of the work deliverable")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, pactID, errResult := s.simpleAuth(request, "submit_work")
		if errResult != nil {
			return errResult, nil
		}
		proofHash, err := request.RequireString("proof_hash")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.ledger.SubmitWork(ctx, caller, pactID, proofHash); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to submit work: %v", err)), nil
		}
		return mcp.NewToolResultText("Work submitted. Awaiting oracle verification."), nil
	})
}

// registerSubmitVerificationTool creates a tool for oracles to score work
func (s *MCPServer) registerSubmitVerificationTool() {
	tool := mcp.NewTool("submit_verification",
		mcp.WithDescription("Submit a verification score for a pact's work (panel oracles only)"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact")),
		mcp.WithNumber("score", mcp.Required(), mcp.Description("Score from 0 to 100")),
		mcp.WithString("proof", mcp.Description("Supporting evidence for the score")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		caller, pactID, errResult := s.simpleAuth(request, "submit_verification")
		if errResult != nil {
			return errResult, nil
		}
		err := s.ledger.SubmitVerification(ctx, caller, pactID, int(toInt64(args["score"])), toString(args["proof"]))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to submit verification: %v", err)), nil
		}
		return mcp.NewToolResultText("Verification recorded."), nil
	})
}

// registerFinalizeVerificationTool creates a tool for tallying the panel
func (s *MCPServer) registerFinalizeVerificationTool() {
	tool := mcp.NewTool("finalize_verification",
		mcp.WithDescription("Tally the verification panel once every oracle has scored, settling the outcome"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, pactID, errResult := s.simpleAuth(request, "finalize_verification")
		if errResult != nil {
			return errResult, nil
		}
		score, err := s.ledger.FinalizeVerification(ctx, caller, pactID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to finalize verification: %v", err)), nil
		}
		p, err := s.ledger.GetPact(ctx, pactID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result := map[string]interface{}{
			"score":  score,
			"status": p.Status,
		}

		return mcp.NewToolResultText(fmt.Sprintf("Verification finalized:\n\n%+v", result)), nil
	})
}

// registerApproveWorkTool creates a tool for buyer approval
func (s *MCPServer) registerApproveWorkTool() {
	tool := mcp.NewTool("approve_work",
		mcp.WithDescription("Approve verified work and release the escrow (buyer only)"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, pactID, errResult := s.simpleAuth(request, "approve_work")
		if errResult != nil {
			return errResult, nil
		}
		if err := s.ledger.ApproveWork(ctx, caller, pactID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to approve work: %v", err)), nil
		}
		return mcp.NewToolResultText("Work approved. Escrow released to the seller."), nil
	})
}

// registerRejectWorkTool creates a tool for buyer rejection
func (s *MCPServer) registerRejectWorkTool() {
	tool := mcp.NewTool("reject_work",
		mcp.WithDescription("Reject verified work, moving the pact into dispute (buyer only)"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, pactID, errResult := s.simpleAuth(request, "reject_work")
		if errResult != nil {
			return errResult, nil
		}
		if err := s.ledger.RejectWork(ctx, caller, pactID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to reject work: %v", err)), nil
		}
		return mcp.NewToolResultText("Work rejected. Pact is now disputed."), nil
	})
}

// registerAutoApproveTool creates a tool for claiming expired review windows
func (s *MCPServer) registerAutoApproveTool() {
	tool := mcp.NewTool("auto_approve",
		mcp.WithDescription("Settle a pact whose buyer review window has elapsed without a decision"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, pactID, errResult := s.simpleAuth(request, "auto_approve")
		if errResult != nil {
			return errResult, nil
		}
		if err := s.ledger.AutoApprove(ctx, caller, pactID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to auto-approve: %v", err)), nil
		}
		return mcp.NewToolResultText("Review window elapsed. Escrow released to the seller."), nil
	})
}

// registerProposeAmendmentTool creates a tool for proposing term changes
func (s *MCPServer) registerProposeAmendmentTool() {
	tool := mcp.NewTool("propose_amendment",
		mcp.WithDescription("Propose changed terms for a pact. Omitted fields keep the current term. Replaces any prior pending proposal."),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact")),
		mcp.WithNumber("payment", mcp.Description("New payment amount, 0 keeps the current one")),
		mcp.WithString("deadline", mcp.Description("New deadline (ISO 8601), empty keeps the current one")),
		mcp.WithString("spec_hash", mcp.Description("New specification hash, empty keeps the current one")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		caller, pactID, errResult := s.simpleAuth(request, "propose_amendment")
		if errResult != nil {
			return errResult, nil
		}

		var deadline time.Time
		if ds := toString(args["deadline"]); ds != "" {
			var err error
			deadline, err = time.Parse(time.RFC3339, ds)
			if err != nil {
				return mcp.NewToolResultError("deadline must be an ISO 8601 timestamp"), nil
			}
		}

		err := s.ledger.ProposeAmendment(ctx, caller, pactID, pact.Amendment{
			Payment:  toInt64(args["payment"]),
			Deadline: deadline,
			SpecHash: toString(args["spec_hash"]),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to propose amendment: %v", err)), nil
		}
		return mcp.NewToolResultText("Amendment proposed. Awaiting counterparty acceptance."), nil
	})
}

// registerAcceptAmendmentTool creates a tool for accepting a pending amendment
func (s *MCPServer) registerAcceptAmendmentTool() {
	tool := mcp.NewTool("accept_amendment",
		mcp.WithDescription("Accept the pending amendment on a pact, topping up escrow if the payment increased"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact")),
		mcp.WithNumber("value", mcp.Description("Native value attached to cover any escrow top-up")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		key, err := request.RequireString("session_key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		value := toInt64(args["value"])
		caller, err := s.authorize(key, "accept_amendment", value)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		resID, err := s.policy.Reserve(key, value)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := s.ledger.AcceptAmendment(ctx, caller, value, uint64(toInt64(args["pact_id"]))); err != nil {
			_ = s.policy.Release(resID)
			return mcp.NewToolResultError(fmt.Sprintf("Failed to accept amendment: %v", err)), nil
		}
		_ = s.policy.Commit(resID)

		return mcp.NewToolResultText("Amendment accepted. Pact terms updated."), nil
	})
}

// registerRaiseDisputeTool creates a tool for raising a dispute
func (s *MCPServer) registerRaiseDisputeTool() {
	tool := mcp.NewTool("raise_dispute",
		mcp.WithDescription("Raise a dispute on an active pact and nominate an arbitrator"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact")),
		mcp.WithString("arbitrator", mcp.Required(), mcp.Description("Address of the arbitrator to decide the dispute")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		caller, pactID, errResult := s.simpleAuth(request, "raise_dispute")
		if errResult != nil {
			return errResult, nil
		}
		err := s.ledger.RaiseDispute(ctx, caller, pactID, pact.Address(toString(args["arbitrator"])))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to raise dispute: %v", err)), nil
		}
		return mcp.NewToolResultText("Dispute raised. Awaiting arbitrator ruling."), nil
	})
}

// registerResolveDisputeTool creates a tool for the arbitrator's ruling
func (s *MCPServer) registerResolveDisputeTool() {
	tool := mcp.NewTool("resolve_dispute",
		mcp.WithDescription("Rule on a disputed pact, awarding all escrowed funds to one side (arbitrator only)"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact")),
		mcp.WithBoolean("seller_wins", mcp.Description("True to award the seller, false to award the buyer")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		caller, pactID, errResult := s.simpleAuth(request, "resolve_dispute")
		if errResult != nil {
			return errResult, nil
		}
		if err := s.ledger.ResolveDispute(ctx, caller, pactID, toBool(args["seller_wins"])); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve dispute: %v", err)), nil
		}
		return mcp.NewToolResultText("Dispute resolved and escrow settled."), nil
	})
}

// registerClaimTimeoutTool creates a tool for claiming a deadline timeout
func (s *MCPServer) registerClaimTimeoutTool() {
	tool := mcp.NewTool("claim_timeout",
		mcp.WithDescription("Refund a pact whose deadline passed before the work reached verification"),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Session key issued by the administrator")),
		mcp.WithNumber("pact_id", mcp.Required(), mcp.Description("ID of the pact")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, pactID, errResult := s.simpleAuth(request, "claim_timeout")
		if errResult != nil {
			return errResult, nil
		}
		if err := s.ledger.ClaimTimeout(ctx, caller, pactID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to claim timeout: %v", err)), nil
		}
		return mcp.NewToolResultText("Timeout claimed. Deposits refunded."), nil
	})
}

// simpleAuth handles the session_key + pact_id preamble shared by the
// zero-value tools.
func (s *MCPServer) simpleAuth(request mcp.CallToolRequest, op string) (pact.Address, uint64, *mcp.CallToolResult) {
	key, err := request.RequireString("session_key")
	if err != nil {
		return "", 0, mcp.NewToolResultError(err.Error())
	}
	caller, err := s.authorize(key, op, 0)
	if err != nil {
		return "", 0, mcp.NewToolResultError(err.Error())
	}
	pactID := uint64(toInt64(request.GetArguments()["pact_id"]))
	if pactID == 0 {
		return "", 0, mcp.NewToolResultError("pact_id is required")
	}
	return caller, pactID, nil
}
