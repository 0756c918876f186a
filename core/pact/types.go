package pact

import "time"

// Address identifies a participant. The empty string is the unassigned
// (zero) address.
type Address string

// Zero reports whether the address is unassigned.
func (a Address) Zero() bool { return a == "" }

// AssetKind distinguishes native value from fungible tokens.
type AssetKind string

const (
	AssetNative AssetKind = "native"
	AssetToken  AssetKind = "token"
)

// Asset is the payment denomination of a pact: either native value or a
// specific fungible token identified by Token.
type Asset struct {
	Kind  AssetKind `json:"kind"`
	Token string    `json:"token,omitempty"`
}

// NativeAsset returns the native-value asset.
func NativeAsset() Asset { return Asset{Kind: AssetNative} }

// TokenAsset returns a token-denominated asset.
func TokenAsset(token string) Asset { return Asset{Kind: AssetToken, Token: token} }

// Status is the lifecycle state of a pact.
type Status string

const (
	StatusNegotiating     Status = "negotiating"
	StatusFunded          Status = "funded"
	StatusInProgress      Status = "in_progress"
	StatusPendingVerify   Status = "pending_verify"
	StatusPendingApproval Status = "pending_approval"
	StatusDisputed        Status = "disputed"
	StatusCompleted       Status = "completed"
	StatusRefunded        Status = "refunded"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusRefunded }

// Role names which side of the agreement an address holds.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

const (
	// stakeDivisor derives each party's bond from the payment: payment/10,
	// integer division. Recomputed at creation and acceptance, never stored
	// as a rate.
	stakeDivisor = 10

	// weightTotal is the required sum of oracle weights.
	weightTotal = 100

	// maxScore bounds oracle scores and the pass threshold.
	maxScore = 100
)

// OracleWeight pairs an oracle address with its integer weight. Weights on a
// pact sum to exactly 100.
type OracleWeight struct {
	Address Address `json:"address"`
	Weight  int     `json:"weight"`
}

// Pact is one escrowed work agreement between a buyer and a seller. Amounts
// are int64 base units. The sum payment+buyerStake+sellerStake+oracleFee is
// held in custody until a terminal transition fully disburses it.
type Pact struct {
	ID            uint64         `json:"id"`
	Buyer         Address        `json:"buyer,omitempty"`
	Seller        Address        `json:"seller,omitempty"`
	Payment       int64          `json:"payment"`
	Asset         Asset          `json:"asset"`
	BuyerStake    int64          `json:"buyer_stake"`
	SellerStake   int64          `json:"seller_stake"`
	OracleFee     int64          `json:"oracle_fee"`
	OracleFeePaid bool           `json:"oracle_fee_paid"`
	Deadline      time.Time      `json:"deadline"`
	Status        Status         `json:"status"`
	SpecHash      string         `json:"spec_hash"`
	Oracles       []OracleWeight `json:"oracles"`
	Threshold     int            `json:"threshold"`
	Initiator     Role           `json:"initiator"`
	ReviewPeriod  time.Duration  `json:"review_period"`
	Arbitrator    Address        `json:"arbitrator,omitempty"`
	WorkProof     string         `json:"work_proof,omitempty"`
	VerifiedAt    time.Time      `json:"verified_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// OracleFor returns the weight entry for the given address, if listed.
func (p *Pact) OracleFor(addr Address) (OracleWeight, bool) {
	for _, ow := range p.Oracles {
		if ow.Address == addr {
			return ow, true
		}
	}
	return OracleWeight{}, false
}

// IsParty reports whether addr is the pact's buyer or seller.
func (p *Pact) IsParty(addr Address) bool {
	return !addr.Zero() && (addr == p.Buyer || addr == p.Seller)
}

// Verification is one oracle's scored assessment of the delivered work.
// Written once per (pact, oracle) pair; duplicates are rejected.
type Verification struct {
	PactID    uint64    `json:"pact_id"`
	Oracle    Address   `json:"oracle"`
	Score     int       `json:"score"`
	Submitted bool      `json:"submitted"`
	Proof     string    `json:"proof,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Amendment is a proposed change to a pact's terms awaiting counterparty
// acceptance. Zero-valued fields (0 payment, zero deadline, empty hash) keep
// the current term. A new proposal replaces any prior pending one wholesale.
type Amendment struct {
	PactID   uint64    `json:"pact_id"`
	Payment  int64     `json:"payment,omitempty"`
	Deadline time.Time `json:"deadline,omitempty"`
	SpecHash string    `json:"spec_hash,omitempty"`
	Proposer Address   `json:"proposer"`
	Pending  bool      `json:"pending"`
}

// Reputation aggregates derived counters per address. Counters are purely
// additive; nothing here is ever decremented or deleted.
type Reputation struct {
	Address             Address `json:"address"`
	CompletionsAsBuyer  int64   `json:"completions_as_buyer"`
	CompletionsAsSeller int64   `json:"completions_as_seller"`
	DisputesLost        int64   `json:"disputes_lost"`
	SettledVolume       int64   `json:"settled_volume"`
}

// CreateParams carries the terms for a new pact.
type CreateParams struct {
	Initiator    Role           `json:"initiator"`
	SpecHash     string         `json:"spec_hash"`
	Deadline     time.Time      `json:"deadline"`
	Oracles      []OracleWeight `json:"oracles"`
	Threshold    int            `json:"threshold"`
	Payment      int64          `json:"payment"`
	ReviewPeriod time.Duration  `json:"review_period"`
	OracleFee    int64          `json:"oracle_fee"`
	Asset        Asset          `json:"asset"`
}

// StakeFor returns the canonical bond for a payment: payment/10, floored.
func StakeFor(payment int64) int64 { return payment / stakeDivisor }
