package store

import (
	"context"
	"fmt"

	"github.com/covenanthq/covenant/internal/engine"
	"github.com/covenanthq/covenant/internal/pact"
)

// UpsertGroup inserts or renames a group.
func (s *Store) UpsertGroup(ctx context.Context, g pact.Group) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (id, name)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, g.ID, g.Name)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

// UpsertMember adds a member to a group or updates their username.
func (s *Store) UpsertMember(ctx context.Context, groupID string, m pact.Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (group_id, user_id, username)
		VALUES (?, ?, ?)
		ON CONFLICT(group_id, user_id) DO UPDATE SET username = excluded.username
	`, groupID, string(m.UserID), m.Username)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

// RemoveMember deletes a member from a group. Commitments referencing the
// departed member stay in the store; the engine gates them off at solve
// time instead.
func (s *Store) RemoveMember(ctx context.Context, groupID string, userID pact.UserID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM members WHERE group_id = ? AND user_id = ?
	`, groupID, string(userID))
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// WriteCommitment inserts a commitment into the store. The body is stored as
// canonical JSON and keyed by its content hash.
//
// Uses ON CONFLICT(content_hash) DO NOTHING for idempotency - importing the
// same commitment content twice is a no-op. Returns whether a new row was
// inserted.
func (s *Store) WriteCommitment(ctx context.Context, groupID string, c pact.Commitment) (inserted bool, err error) {
	body, err := marshalCommitment(c)
	if err != nil {
		return false, fmt.Errorf("write commitment: %w", err)
	}

	hash, err := pact.CommitmentHash(c)
	if err != nil {
		return false, fmt.Errorf("write commitment: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO commitments
		(id, group_id, creator, body, content_hash, active, engine_version, schema_version)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING
	`,
		c.ID,
		groupID,
		string(c.Creator),
		body,
		hash,
		pact.EngineVersion,
		pact.SchemaVersion,
	)
	if err != nil {
		return false, fmt.Errorf("write commitment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write commitment: rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// RetireCommitment marks a commitment inactive. The row stays for settlement
// provenance; retired commitments no longer participate in solves.
func (s *Store) RetireCommitment(ctx context.Context, commitmentID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE commitments SET active = 0 WHERE id = ?
	`, commitmentID)
	if err != nil {
		return fmt.Errorf("retire commitment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("retire commitment: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("retire commitment: %q not found", commitmentID)
	}
	return nil
}

// WriteSettlement atomically persists a settlement and all its liability
// rows in a single transaction. The commitment set hash ties the run to the
// exact commitments it was computed from.
//
// Uses ON CONFLICT(run_id) DO NOTHING: rewriting a run id is a silent no-op
// and the liability rows are not touched, so a settlement is immutable once
// written.
func (s *Store) WriteSettlement(ctx context.Context, runID, setHash string, settlement *engine.Settlement) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write settlement: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// seq gives settlements a total order without wall-clock timestamps.
	var seq int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM settlements
	`).Scan(&seq); err != nil {
		return false, fmt.Errorf("write settlement: next seq: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO settlements
		(run_id, group_id, commitment_set_hash, iterations, engine_version, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		runID,
		settlement.GroupID,
		setHash,
		settlement.Iterations,
		pact.EngineVersion,
		seq,
	)
	if err != nil {
		return false, fmt.Errorf("write settlement: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write settlement: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("write settlement: commit (existing): %w", err)
		}
		return false, nil
	}

	for _, record := range settlement.Records {
		effective, err := marshalEffective(record.Effective)
		if err != nil {
			return false, fmt.Errorf("write settlement: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO liabilities
			(run_id, user_id, username, action, unit, amount_millis, effective)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			runID,
			string(record.User),
			record.Username,
			record.Action,
			record.Unit,
			int64(record.Amount),
			effective,
		)
		if err != nil {
			return false, fmt.Errorf("write settlement: insert liability: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write settlement: commit: %w", err)
	}

	return true, nil
}
