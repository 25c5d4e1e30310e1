package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/identity-engine/internal/fault"
	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/metrics"
)

// #region manual-snapshot

// CreateManualSnapshot captures the current full state under a name without
// mutating currentVersion. Manual snapshots are never auto-pruned.
func (s *Store) CreateManualSnapshot(stateID, name string) (string, error) {
	m := s.lock(stateID)
	m.Lock()
	defer m.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := loadStateTx(tx, stateID)
	if err != nil {
		return "", err
	}

	snap := snapshotOf(current, identity.VersionManual, name)
	if err := insertSnapshotTx(tx, snap); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	metrics.SnapshotsCreated.WithLabelValues(string(identity.VersionManual)).Inc()
	return snap.ID, nil
}

// #endregion manual-snapshot

// #region snapshot-queries

// ListSnapshots returns the state's snapshots ordered oldest first,
// optionally filtered by version type ("" for all).
func (s *Store) ListSnapshots(stateID string, versionType identity.VersionType) ([]identity.VersionSnapshot, error) {
	query := `SELECT snapshot_id, state_id, version_number, version_type, snapshot_name,
	                 core_json, aesthetic_json, learning_json,
	                 identity_embedding, content_embedding, created_at
	          FROM version_snapshots WHERE state_id = ?`
	args := []any{stateID}
	if versionType != "" {
		query += ` AND version_type = ?`
		args = append(args, string(versionType))
	}
	query += ` ORDER BY created_at, version_number`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []identity.VersionSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// SnapshotByVersion looks up the snapshot carrying that exact version
// number. Fails NotFound when absent.
func (s *Store) SnapshotByVersion(stateID string, versionNumber int) (identity.VersionSnapshot, error) {
	row := s.db.QueryRow(
		`SELECT snapshot_id, state_id, version_number, version_type, snapshot_name,
		        core_json, aesthetic_json, learning_json,
		        identity_embedding, content_embedding, created_at
		 FROM version_snapshots
		 WHERE state_id = ? AND version_number = ?
		 ORDER BY created_at DESC LIMIT 1`,
		stateID, versionNumber)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return identity.VersionSnapshot{}, fault.NotFound("snapshot version %d for state %s not found", versionNumber, stateID)
	}
	if err != nil {
		return identity.VersionSnapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	return snap, nil
}

// #endregion snapshot-queries

// #region snapshot-internals

// snapshotOf copies the state's sections and embeddings into a snapshot
// stamped with the state's pre-mutation version number.
func snapshotOf(st identity.IdentityState, vt identity.VersionType, name string) identity.VersionSnapshot {
	return identity.VersionSnapshot{
		ID:                uuid.New().String(),
		StateID:           st.ID,
		VersionNumber:     st.CurrentVersion,
		VersionType:       vt,
		SnapshotName:      name,
		Core:              st.Core,
		Aesthetic:         st.Aesthetic,
		Learning:          st.Learning,
		IdentityEmbedding: st.IdentityEmbedding,
		ContentEmbedding:  st.ContentEmbedding,
		CreatedAt:         time.Now().UTC(),
	}
}

func insertSnapshotTx(tx *sql.Tx, snap identity.VersionSnapshot) error {
	coreJSON, aesJSON, learnJSON, err := marshalSections(snap.Core, snap.Aesthetic, snap.Learning)
	if err != nil {
		return err
	}
	var namePtr any
	if snap.SnapshotName != "" {
		namePtr = snap.SnapshotName
	}
	_, err = tx.Exec(
		`INSERT INTO version_snapshots
		 (snapshot_id, state_id, version_number, version_type, snapshot_name,
		  core_json, aesthetic_json, learning_json, identity_embedding, content_embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.StateID, snap.VersionNumber, string(snap.VersionType), namePtr,
		coreJSON, aesJSON, learnJSON,
		encodeVector(snap.IdentityEmbedding), encodeVector(snap.ContentEmbedding),
		snap.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// pruneAutoSnapshotsTx deletes the oldest auto snapshots beyond the
// retention bound. Manual snapshots are never touched.
func pruneAutoSnapshotsTx(tx *sql.Tx, stateID string) error {
	_, err := tx.Exec(
		`DELETE FROM version_snapshots
		 WHERE state_id = ? AND version_type = ?
		 AND snapshot_id NOT IN (
		   SELECT snapshot_id FROM version_snapshots
		   WHERE state_id = ? AND version_type = ?
		   ORDER BY created_at DESC, version_number DESC
		   LIMIT ?
		 )`,
		stateID, string(identity.VersionAuto),
		stateID, string(identity.VersionAuto),
		identity.MaxAutoSnapshots,
	)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

func scanSnapshot(row rowScanner) (identity.VersionSnapshot, error) {
	var snap identity.VersionSnapshot
	var versionType string
	var name sql.NullString
	var coreJSON, aesJSON, learnJSON string
	var idEmb, ctEmb []byte
	var createdStr string

	err := row.Scan(&snap.ID, &snap.StateID, &snap.VersionNumber, &versionType, &name,
		&coreJSON, &aesJSON, &learnJSON, &idEmb, &ctEmb, &createdStr)
	if err != nil {
		return identity.VersionSnapshot{}, err
	}

	snap.VersionType = identity.VersionType(versionType)
	if name.Valid {
		snap.SnapshotName = name.String
	}
	if err := unmarshalSnapshotSections(&snap, coreJSON, aesJSON, learnJSON); err != nil {
		return identity.VersionSnapshot{}, err
	}
	snap.IdentityEmbedding = decodeVector(idEmb)
	snap.ContentEmbedding = decodeVector(ctEmb)
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return snap, nil
}

func unmarshalSnapshotSections(snap *identity.VersionSnapshot, coreJSON, aesJSON, learnJSON string) error {
	if err := jsonInto(coreJSON, &snap.Core); err != nil {
		return fmt.Errorf("unmarshal snapshot core: %w", err)
	}
	if err := jsonInto(aesJSON, &snap.Aesthetic); err != nil {
		return fmt.Errorf("unmarshal snapshot aesthetic: %w", err)
	}
	if err := jsonInto(learnJSON, &snap.Learning); err != nil {
		return fmt.Errorf("unmarshal snapshot learning: %w", err)
	}
	return nil
}

// #endregion snapshot-internals
