package pact

import (
	"encoding/json"
	"net/http"
	"time"

	"pactline-backend/core/pact"
)

type oracleWeightBody struct {
	Address string `json:"address" validate:"required"`
	Weight  int    `json:"weight" validate:"gt=0,lte=100"`
}

type createPactBody struct {
	Initiator        string             `json:"initiator" validate:"required,oneof=buyer seller"`
	SpecHash         string             `json:"spec_hash" validate:"required"`
	Deadline         time.Time          `json:"deadline" validate:"required"`
	Oracles          []oracleWeightBody `json:"oracles" validate:"required,min=1,dive"`
	Threshold        int                `json:"threshold" validate:"gte=0,lte=100"`
	Payment          int64              `json:"payment" validate:"gt=0"`
	ReviewPeriodSecs int64              `json:"review_period_secs" validate:"gte=0"`
	OracleFee        int64              `json:"oracle_fee" validate:"gte=0"`
	AssetKind        string             `json:"asset_kind" validate:"required,oneof=native token"`
	AssetToken       string             `json:"asset_token"`
	Value            int64              `json:"value" validate:"gte=0"`
}

// handleCreatePact opens a new agreement.
//
// @Summary Create a pact
// @Tags pacts
// @Accept json
// @Produce json
// @Param body body createPactBody true "pact terms"
// @Success 200 {object} map[string]interface{}
// @Router /api/pact/pacts [post]
func (s *Server) handleCreatePact(w http.ResponseWriter, r *http.Request) {
	var body createPactBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate.Struct(body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	oracles := make([]pact.OracleWeight, 0, len(body.Oracles))
	for _, ow := range body.Oracles {
		oracles = append(oracles, pact.OracleWeight{Address: pact.Address(ow.Address), Weight: ow.Weight})
	}
	params := pact.CreateParams{
		Initiator:    pact.Role(body.Initiator),
		SpecHash:     body.SpecHash,
		Deadline:     body.Deadline,
		Oracles:      oracles,
		Threshold:    body.Threshold,
		Payment:      body.Payment,
		ReviewPeriod: time.Duration(body.ReviewPeriodSecs) * time.Second,
		OracleFee:    body.OracleFee,
		Asset:        pact.Asset{Kind: pact.AssetKind(body.AssetKind), Token: body.AssetToken},
	}

	id, err := s.ledger.CreatePact(r.Context(), caller(r), body.Value, params)
	s.metrics.Observe("create_pact", err)
	if err != nil {
		fail(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": pact.StatusNegotiating})
}

type valueBody struct {
	Value int64 `json:"value" validate:"gte=0"`
}

func (s *Server) acceptPact(r *http.Request, id uint64) error {
	var body valueBody
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	return s.ledger.AcceptPact(r.Context(), caller(r), body.Value, id)
}

func (s *Server) submitWork(r *http.Request, id uint64) error {
	var body struct {
		ProofHash string `json:"proof_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return &pact.RuleError{Violation: pact.ViolationParameter, Reason: "invalid json"}
	}
	return s.ledger.SubmitWork(r.Context(), caller(r), id, body.ProofHash)
}

func (s *Server) handleVerifications(w http.ResponseWriter, r *http.Request, id uint64, parts []string) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			Score int    `json:"score"`
			Proof string `json:"proof"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		err := s.ledger.SubmitVerification(r.Context(), caller(r), id, body.Score, body.Proof)
		s.metrics.Observe("submit_verification", err)
		if err != nil {
			fail(w, err)
			return
		}
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case http.MethodGet:
		if len(parts) < 3 {
			Error(w, http.StatusBadRequest, "oracle address required")
			return
		}
		v, err := s.ledger.GetVerification(r.Context(), id, pact.Address(parts[2]))
		if err != nil {
			fail(w, err)
			return
		}
		JSON(w, http.StatusOK, v)
	default:
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request, id uint64) {
	if r.Method != http.MethodPost {
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	score, err := s.ledger.FinalizeVerification(r.Context(), caller(r), id)
	s.metrics.Observe("finalize_verification", err)
	if err != nil {
		fail(w, err)
		return
	}
	p, err := s.ledger.GetPact(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"score": score, "status": p.Status})
}

type amendmentBody struct {
	Payment  int64     `json:"payment" validate:"gte=0"`
	Deadline time.Time `json:"deadline"`
	SpecHash string    `json:"spec_hash"`
	Value    int64     `json:"value" validate:"gte=0"`
}

func (s *Server) handleAmendments(w http.ResponseWriter, r *http.Request, id uint64, parts []string) {
	if len(parts) > 2 && parts[2] == "accept" {
		s.post(w, r, func() error {
			var body valueBody
			if r.Body != nil {
				_ = json.NewDecoder(r.Body).Decode(&body)
			}
			return s.ledger.AcceptAmendment(r.Context(), caller(r), body.Value, id)
		}, "accept_amendment")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var body amendmentBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := s.validate.Struct(body); err != nil {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		err := s.ledger.ProposeAmendment(r.Context(), caller(r), id, pact.Amendment{
			Payment:  body.Payment,
			Deadline: body.Deadline,
			SpecHash: body.SpecHash,
		})
		s.metrics.Observe("propose_amendment", err)
		if err != nil {
			fail(w, err)
			return
		}
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case http.MethodGet:
		a, pending, err := s.ledger.PendingAmendment(r.Context(), id)
		if err != nil {
			fail(w, err)
			return
		}
		if !pending {
			Error(w, http.StatusNotFound, "no pending amendment")
			return
		}
		JSON(w, http.StatusOK, a)
	default:
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleDisputes(w http.ResponseWriter, r *http.Request, id uint64, parts []string) {
	if len(parts) > 2 && parts[2] == "resolve" {
		s.post(w, r, func() error {
			var body struct {
				SellerWins bool `json:"seller_wins"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				return &pact.RuleError{Violation: pact.ViolationParameter, Reason: "invalid json"}
			}
			return s.ledger.ResolveDispute(r.Context(), caller(r), id, body.SellerWins)
		}, "resolve_dispute")
		return
	}

	s.post(w, r, func() error {
		var body struct {
			Arbitrator string `json:"arbitrator"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return &pact.RuleError{Violation: pact.ViolationParameter, Reason: "invalid json"}
		}
		return s.ledger.RaiseDispute(r.Context(), caller(r), id, pact.Address(body.Arbitrator))
	}, "raise_dispute")
}
