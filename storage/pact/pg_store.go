package pact

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"pactline-backend/core/pact"
)

// PGStore persists the pact ledger in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects and initializes the schema.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	s := &PGStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "init schema")
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS pact_agreements (
  id BIGSERIAL PRIMARY KEY,
  buyer TEXT NOT NULL DEFAULT '',
  seller TEXT NOT NULL DEFAULT '',
  payment BIGINT NOT NULL,
  asset_kind TEXT NOT NULL,
  asset_token TEXT NOT NULL DEFAULT '',
  buyer_stake BIGINT NOT NULL DEFAULT 0,
  seller_stake BIGINT NOT NULL DEFAULT 0,
  oracle_fee BIGINT NOT NULL DEFAULT 0,
  oracle_fee_paid BOOLEAN NOT NULL DEFAULT FALSE,
  deadline TIMESTAMPTZ NOT NULL,
  status TEXT NOT NULL,
  spec_hash TEXT NOT NULL DEFAULT '',
  oracles JSONB NOT NULL,
  threshold INT NOT NULL,
  initiator TEXT NOT NULL,
  review_period_secs BIGINT NOT NULL DEFAULT 0,
  arbitrator TEXT NOT NULL DEFAULT '',
  work_proof TEXT NOT NULL DEFAULT '',
  verified_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pact_verifications (
  pact_id BIGINT NOT NULL,
  oracle TEXT NOT NULL,
  score INT NOT NULL,
  submitted BOOLEAN NOT NULL DEFAULT TRUE,
  proof TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (pact_id, oracle)
);
CREATE TABLE IF NOT EXISTS pact_amendments (
  pact_id BIGINT PRIMARY KEY,
  payment BIGINT NOT NULL DEFAULT 0,
  deadline TIMESTAMPTZ,
  spec_hash TEXT NOT NULL DEFAULT '',
  proposer TEXT NOT NULL,
  pending BOOLEAN NOT NULL
);
CREATE TABLE IF NOT EXISTS pact_reputation (
  address TEXT PRIMARY KEY,
  completions_as_buyer BIGINT NOT NULL DEFAULT 0,
  completions_as_seller BIGINT NOT NULL DEFAULT 0,
  disputes_lost BIGINT NOT NULL DEFAULT 0,
  settled_volume BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS pact_open_index (
  pact_id BIGINT PRIMARY KEY,
  pos BIGINT UNIQUE NOT NULL
);
CREATE TABLE IF NOT EXISTS pact_participants (
  seq BIGSERIAL PRIMARY KEY,
  address TEXT NOT NULL,
  pact_id BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pact_agreements_status ON pact_agreements(status);
CREATE INDEX IF NOT EXISTS idx_pact_participants_address ON pact_participants(address, seq);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close shuts down the pool.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// CreatePact inserts the record and returns its serial ID.
func (s *PGStore) CreatePact(ctx context.Context, p pact.Pact) (uint64, error) {
	oraclesJSON, err := json.Marshal(p.Oracles)
	if err != nil {
		return 0, errors.Wrap(err, "marshal oracles")
	}
	var id uint64
	err = s.pool.QueryRow(ctx, `
INSERT INTO pact_agreements
  (buyer, seller, payment, asset_kind, asset_token, buyer_stake, seller_stake,
   oracle_fee, oracle_fee_paid, deadline, status, spec_hash, oracles, threshold,
   initiator, review_period_secs, arbitrator, work_proof, verified_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
RETURNING id
`, p.Buyer, p.Seller, p.Payment, p.Asset.Kind, p.Asset.Token, p.BuyerStake, p.SellerStake,
		p.OracleFee, p.OracleFeePaid, p.Deadline, p.Status, p.SpecHash, oraclesJSON, p.Threshold,
		p.Initiator, int64(p.ReviewPeriod/time.Second), p.Arbitrator, p.WorkProof,
		nullableTime(p.VerifiedAt), p.CreatedAt).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "insert pact")
	}
	return id, nil
}

func scanPact(row pgx.Row) (pact.Pact, error) {
	var (
		p           pact.Pact
		kind, token string
		reviewSecs  int64
		verifiedAt  *time.Time
		oraclesJSON []byte
	)
	err := row.Scan(&p.ID, &p.Buyer, &p.Seller, &p.Payment, &kind, &token,
		&p.BuyerStake, &p.SellerStake, &p.OracleFee, &p.OracleFeePaid, &p.Deadline,
		&p.Status, &p.SpecHash, &oraclesJSON, &p.Threshold, &p.Initiator,
		&reviewSecs, &p.Arbitrator, &p.WorkProof, &verifiedAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pact.Pact{}, pact.ErrPactNotFound
	}
	if err != nil {
		return pact.Pact{}, err
	}
	p.Asset = pact.Asset{Kind: pact.AssetKind(kind), Token: token}
	p.ReviewPeriod = time.Duration(reviewSecs) * time.Second
	if verifiedAt != nil {
		p.VerifiedAt = *verifiedAt
	}
	if err := json.Unmarshal(oraclesJSON, &p.Oracles); err != nil {
		return pact.Pact{}, errors.Wrap(err, "unmarshal oracles")
	}
	return p, nil
}

const pactColumns = `id, buyer, seller, payment, asset_kind, asset_token, buyer_stake,
seller_stake, oracle_fee, oracle_fee_paid, deadline, status, spec_hash, oracles,
threshold, initiator, review_period_secs, arbitrator, work_proof, verified_at, created_at`

// GetPact returns the record for id.
func (s *PGStore) GetPact(ctx context.Context, id uint64) (pact.Pact, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pactColumns+` FROM pact_agreements WHERE id = $1`, id)
	return scanPact(row)
}

// PutPact overwrites the record for p.ID.
func (s *PGStore) PutPact(ctx context.Context, p pact.Pact) error {
	oraclesJSON, err := json.Marshal(p.Oracles)
	if err != nil {
		return errors.Wrap(err, "marshal oracles")
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE pact_agreements SET
  buyer=$2, seller=$3, payment=$4, asset_kind=$5, asset_token=$6, buyer_stake=$7,
  seller_stake=$8, oracle_fee=$9, oracle_fee_paid=$10, deadline=$11, status=$12,
  spec_hash=$13, oracles=$14, threshold=$15, initiator=$16, review_period_secs=$17,
  arbitrator=$18, work_proof=$19, verified_at=$20
WHERE id=$1
`, p.ID, p.Buyer, p.Seller, p.Payment, p.Asset.Kind, p.Asset.Token, p.BuyerStake,
		p.SellerStake, p.OracleFee, p.OracleFeePaid, p.Deadline, p.Status, p.SpecHash,
		oraclesJSON, p.Threshold, p.Initiator, int64(p.ReviewPeriod/time.Second),
		p.Arbitrator, p.WorkProof, nullableTime(p.VerifiedAt))
	if err != nil {
		return errors.Wrap(err, "update pact")
	}
	if tag.RowsAffected() == 0 {
		return pact.ErrPactNotFound
	}
	return nil
}

// PutVerification stores one oracle's record for a pact.
func (s *PGStore) PutVerification(ctx context.Context, v pact.Verification) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO pact_verifications (pact_id, oracle, score, submitted, proof, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (pact_id, oracle) DO UPDATE SET score=$3, submitted=$4, proof=$5
`, v.PactID, v.Oracle, v.Score, v.Submitted, v.Proof, v.CreatedAt)
	return errors.Wrap(err, "put verification")
}

// GetVerification returns the record for (pactID, oracle).
func (s *PGStore) GetVerification(ctx context.Context, pactID uint64, oracle pact.Address) (pact.Verification, error) {
	var v pact.Verification
	err := s.pool.QueryRow(ctx, `
SELECT pact_id, oracle, score, submitted, proof, created_at
FROM pact_verifications WHERE pact_id=$1 AND oracle=$2
`, pactID, oracle).Scan(&v.PactID, &v.Oracle, &v.Score, &v.Submitted, &v.Proof, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pact.Verification{}, pact.ErrVerificationNotFound
	}
	if err != nil {
		return pact.Verification{}, err
	}
	return v, nil
}

// PutAmendment replaces the pact's amendment record wholesale.
func (s *PGStore) PutAmendment(ctx context.Context, a pact.Amendment) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO pact_amendments (pact_id, payment, deadline, spec_hash, proposer, pending)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (pact_id) DO UPDATE SET payment=$2, deadline=$3, spec_hash=$4, proposer=$5, pending=$6
`, a.PactID, a.Payment, nullableTime(a.Deadline), a.SpecHash, a.Proposer, a.Pending)
	return errors.Wrap(err, "put amendment")
}

// GetAmendment returns the amendment record for a pact.
func (s *PGStore) GetAmendment(ctx context.Context, pactID uint64) (pact.Amendment, error) {
	var (
		a        pact.Amendment
		deadline *time.Time
	)
	err := s.pool.QueryRow(ctx, `
SELECT pact_id, payment, deadline, spec_hash, proposer, pending
FROM pact_amendments WHERE pact_id=$1
`, pactID).Scan(&a.PactID, &a.Payment, &deadline, &a.SpecHash, &a.Proposer, &a.Pending)
	if errors.Is(err, pgx.ErrNoRows) {
		return pact.Amendment{}, pact.ErrAmendmentNotFound
	}
	if err != nil {
		return pact.Amendment{}, err
	}
	if deadline != nil {
		a.Deadline = *deadline
	}
	return a, nil
}

// GetReputation returns the counters for addr, zero-valued when absent.
func (s *PGStore) GetReputation(ctx context.Context, addr pact.Address) (pact.Reputation, error) {
	r := pact.Reputation{Address: addr}
	err := s.pool.QueryRow(ctx, `
SELECT completions_as_buyer, completions_as_seller, disputes_lost, settled_volume
FROM pact_reputation WHERE address=$1
`, addr).Scan(&r.CompletionsAsBuyer, &r.CompletionsAsSeller, &r.DisputesLost, &r.SettledVolume)
	if errors.Is(err, pgx.ErrNoRows) {
		return pact.Reputation{Address: addr}, nil
	}
	if err != nil {
		return pact.Reputation{}, err
	}
	return r, nil
}

// PutReputation upserts the counters for r.Address.
func (s *PGStore) PutReputation(ctx context.Context, r pact.Reputation) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO pact_reputation (address, completions_as_buyer, completions_as_seller, disputes_lost, settled_volume)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (address) DO UPDATE SET
  completions_as_buyer=$2, completions_as_seller=$3, disputes_lost=$4, settled_volume=$5
`, r.Address, r.CompletionsAsBuyer, r.CompletionsAsSeller, r.DisputesLost, r.SettledVolume)
	return errors.Wrap(err, "put reputation")
}

// AppendOpen adds id to the open-agreement index at the next position.
func (s *PGStore) AppendOpen(ctx context.Context, id uint64) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO pact_open_index (pact_id, pos)
SELECT $1, COALESCE(MAX(pos)+1, 0) FROM pact_open_index
ON CONFLICT (pact_id) DO NOTHING
`, id)
	return errors.Wrap(err, "append open index")
}

// RemoveOpen removes id by relocating the highest-position entry into the
// freed slot, mirroring the in-memory swap-and-pop. Order is not stable.
func (s *PGStore) RemoveOpen(ctx context.Context, id uint64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin remove open")
	}
	defer tx.Rollback(ctx)

	var pos int64
	err = tx.QueryRow(ctx, `SELECT pos FROM pact_open_index WHERE pact_id=$1`, id).Scan(&pos)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "lookup open index")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM pact_open_index WHERE pact_id=$1`, id); err != nil {
		return errors.Wrap(err, "delete open index")
	}
	_, err = tx.Exec(ctx, `
UPDATE pact_open_index SET pos=$1
WHERE pos = (SELECT MAX(pos) FROM pact_open_index) AND pos > $1
`, pos)
	if err != nil {
		return errors.Wrap(err, "relocate open index")
	}
	return tx.Commit(ctx)
}

// OpenPacts returns a page of open-agreement IDs by position.
func (s *PGStore) OpenPacts(ctx context.Context, offset, limit int) ([]uint64, error) {
	if limit <= 0 {
		limit = 1 << 30
	}
	rows, err := s.pool.Query(ctx, `
SELECT pact_id FROM pact_open_index ORDER BY pos OFFSET $1 LIMIT $2
`, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list open index")
	}
	defer rows.Close()
	return scanIDs(rows)
}

// OpenPactCount returns the size of the open-agreement index.
func (s *PGStore) OpenPactCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pact_open_index`).Scan(&n)
	return n, errors.Wrap(err, "count open index")
}

// AppendParticipant records that addr created or joined the pact.
func (s *PGStore) AppendParticipant(ctx context.Context, addr pact.Address, id uint64) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO pact_participants (address, pact_id) VALUES ($1, $2)
`, addr, id)
	return errors.Wrap(err, "append participant")
}

// ParticipantPacts returns a page of the address's agreement IDs in join
// order.
func (s *PGStore) ParticipantPacts(ctx context.Context, addr pact.Address, offset, limit int) ([]uint64, error) {
	if limit <= 0 {
		limit = 1 << 30
	}
	rows, err := s.pool.Query(ctx, `
SELECT pact_id FROM pact_participants WHERE address=$1 ORDER BY seq OFFSET $2 LIMIT $3
`, addr, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list participant index")
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ParticipantPactCount returns how many agreements the address is listed on.
func (s *PGStore) ParticipantPactCount(ctx context.Context, addr pact.Address) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pact_participants WHERE address=$1`, addr).Scan(&n)
	return n, errors.Wrap(err, "count participant index")
}

func scanIDs(rows pgx.Rows) ([]uint64, error) {
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
