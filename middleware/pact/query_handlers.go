package pact

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"pactline-backend/core/pact"
)

// handleListPacts serves the discovery indexes: ?participant=addr pages an
// address's agreements, anything else pages the open (unaccepted) set.
// Open-index order is not stable across removals.
func (s *Server) handleListPacts(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)

	if addr := r.URL.Query().Get("participant"); addr != "" {
		pacts, err := s.ledger.PactsOf(r.Context(), pact.Address(addr), offset, limit)
		if err != nil {
			fail(w, err)
			return
		}
		total, err := s.ledger.PactCountOf(r.Context(), pact.Address(addr))
		if err != nil {
			fail(w, err)
			return
		}
		JSON(w, http.StatusOK, map[string]interface{}{"pacts": pacts, "total_count": total})
		return
	}

	pacts, err := s.ledger.OpenPacts(r.Context(), offset, limit)
	if err != nil {
		fail(w, err)
		return
	}
	total, err := s.ledger.OpenPactCount(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"pacts": pacts, "total_count": total})
}

// handleGetPact serves the full agreement record.
//
// @Summary Get a pact by ID
// @Tags pacts
// @Produce json
// @Param id path int true "pact id"
// @Success 200 {object} pact.Pact
// @Router /api/pact/pacts/{id} [get]
func (s *Server) handleGetPact(w http.ResponseWriter, r *http.Request, id uint64) {
	p, err := s.ledger.GetPact(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	JSON(w, http.StatusOK, p)
}

func (s *Server) handleOracles(w http.ResponseWriter, r *http.Request, id uint64) {
	if r.Method != http.MethodGet {
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	oracles, err := s.ledger.Oracles(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"oracles": oracles})
}

// handleQR renders the deposit URI for a pact as a PNG QR code, so a wallet
// can scan the amount still required to accept.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request, id uint64) {
	if r.Method != http.MethodGet {
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	p, err := s.ledger.GetPact(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}

	required := pact.StakeFor(p.Payment)
	if p.Buyer.Zero() {
		required = p.Payment + p.OracleFee + pact.StakeFor(p.Payment)
	}
	uri := fmt.Sprintf("pact:%d?amount=%d&asset=%s", p.ID, required, p.Asset.Kind)
	if p.Asset.Kind == pact.AssetToken {
		uri += "&token=" + p.Asset.Token
	}

	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleReputation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	addr := strings.TrimPrefix(r.URL.Path, "/api/pact/reputation/")
	addr = strings.Trim(addr, "/")
	if addr == "" {
		Error(w, http.StatusBadRequest, "address required")
		return
	}
	rep, err := s.ledger.GetReputation(r.Context(), pact.Address(addr))
	if err != nil {
		fail(w, err)
		return
	}
	JSON(w, http.StatusOK, rep)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events := s.ledger.Events().Recent(limit)
	JSON(w, http.StatusOK, map[string]interface{}{"events": events, "total_count": len(events)})
}
