package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/covenanthq/covenant/internal/engine"
	"github.com/covenanthq/covenant/internal/pact"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SettlementRow is a persisted settlement with its provenance metadata.
type SettlementRow struct {
	RunID             string          `json:"run_id"`
	GroupID           string          `json:"group"`
	CommitmentSetHash string          `json:"commitment_set_hash"`
	Iterations        int             `json:"iterations"`
	EngineVersion     string          `json:"engine_version"`
	Seq               int64           `json:"seq"`
	Records           []engine.Record `json:"liabilities"`
}

// ReadGroup returns a group by id. Returns ErrNotFound if absent.
func (s *Store) ReadGroup(ctx context.Context, groupID string) (pact.Group, error) {
	var g pact.Group
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name FROM groups WHERE id = ?
	`, groupID).Scan(&g.ID, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return pact.Group{}, fmt.Errorf("read group %q: %w", groupID, ErrNotFound)
	}
	if err != nil {
		return pact.Group{}, fmt.Errorf("read group: %w", err)
	}
	return g, nil
}

// ReadMembers returns a group's members ordered by user id.
// Returns an empty slice (not nil) when the group has no members.
func (s *Store) ReadMembers(ctx context.Context, groupID string) ([]pact.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, username
		FROM members
		WHERE group_id = ?
		ORDER BY user_id COLLATE BINARY ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []pact.Member
	for rows.Next() {
		var m pact.Member
		var userID string
		if err := rows.Scan(&userID, &m.Username); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.UserID = pact.UserID(userID)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	if members == nil {
		members = []pact.Member{}
	}
	return members, nil
}

// ReadActiveCommitments returns a group's active commitments ordered by id.
// Retired commitments are excluded; they remain readable via ReadCommitment.
func (s *Store) ReadActiveCommitments(ctx context.Context, groupID string) ([]pact.Commitment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body
		FROM commitments
		WHERE group_id = ? AND active = 1
		ORDER BY id COLLATE BINARY ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query commitments: %w", err)
	}
	defer rows.Close()

	var commitments []pact.Commitment
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan commitment: %w", err)
		}
		c, err := unmarshalCommitment(body)
		if err != nil {
			return nil, err
		}
		commitments = append(commitments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commitments: %w", err)
	}

	if commitments == nil {
		commitments = []pact.Commitment{}
	}
	return commitments, nil
}

// ReadCommitment returns a single commitment by id, active or retired.
// Returns ErrNotFound if absent.
func (s *Store) ReadCommitment(ctx context.Context, commitmentID string) (pact.Commitment, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT body FROM commitments WHERE id = ?
	`, commitmentID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return pact.Commitment{}, fmt.Errorf("read commitment %q: %w", commitmentID, ErrNotFound)
	}
	if err != nil {
		return pact.Commitment{}, fmt.Errorf("read commitment: %w", err)
	}
	return unmarshalCommitment(body)
}

// ReadSettlement returns a persisted settlement with its liability rows.
// Returns ErrNotFound if the run id is unknown.
func (s *Store) ReadSettlement(ctx context.Context, runID string) (*SettlementRow, error) {
	row := &SettlementRow{}
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, group_id, commitment_set_hash, iterations, engine_version, seq
		FROM settlements
		WHERE run_id = ?
	`, runID).Scan(&row.RunID, &row.GroupID, &row.CommitmentSetHash, &row.Iterations, &row.EngineVersion, &row.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read settlement %q: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read settlement: %w", err)
	}

	records, err := s.readLiabilities(ctx, runID)
	if err != nil {
		return nil, err
	}
	row.Records = records
	return row, nil
}

// LatestSettlement returns the most recent settlement for a group, ordering
// by seq with run id as a deterministic tiebreak. Returns ErrNotFound when
// the group has no settlements.
func (s *Store) LatestSettlement(ctx context.Context, groupID string) (*SettlementRow, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id
		FROM settlements
		WHERE group_id = ?
		ORDER BY seq DESC, run_id COLLATE BINARY DESC
		LIMIT 1
	`, groupID).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest settlement for group %q: %w", groupID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest settlement: %w", err)
	}
	return s.ReadSettlement(ctx, runID)
}

// ListSettlements returns all settlements for a group in run order, oldest
// first, without liability rows. Returns an empty slice (not nil) when the
// group has none.
func (s *Store) ListSettlements(ctx context.Context, groupID string) ([]SettlementRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, group_id, commitment_set_hash, iterations, engine_version, seq
		FROM settlements
		WHERE group_id = ?
		ORDER BY seq ASC, run_id COLLATE BINARY ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query settlements: %w", err)
	}
	defer rows.Close()

	var settlements []SettlementRow
	for rows.Next() {
		var r SettlementRow
		if err := rows.Scan(&r.RunID, &r.GroupID, &r.CommitmentSetHash, &r.Iterations, &r.EngineVersion, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		settlements = append(settlements, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlements: %w", err)
	}

	if settlements == nil {
		settlements = []SettlementRow{}
	}
	return settlements, nil
}

// readLiabilities returns a settlement's liability rows with the same
// ordering the engine emits: user, then action, then unit.
func (s *Store) readLiabilities(ctx context.Context, runID string) ([]engine.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, username, action, unit, amount_millis, effective
		FROM liabilities
		WHERE run_id = ?
		ORDER BY user_id COLLATE BINARY ASC, action COLLATE BINARY ASC, unit COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query liabilities: %w", err)
	}
	defer rows.Close()

	var records []engine.Record
	for rows.Next() {
		var r engine.Record
		var userID string
		var millis int64
		var effective string
		if err := rows.Scan(&userID, &r.Username, &r.Action, &r.Unit, &millis, &effective); err != nil {
			return nil, fmt.Errorf("scan liability: %w", err)
		}
		r.User = pact.UserID(userID)
		r.Amount = pact.Amount(millis)
		ids, err := unmarshalEffective(effective)
		if err != nil {
			return nil, err
		}
		r.Effective = ids
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liabilities: %w", err)
	}

	if records == nil {
		records = []engine.Record{}
	}
	return records, nil
}
