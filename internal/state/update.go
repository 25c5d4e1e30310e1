package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/identity-engine/internal/fault"
	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/metrics"
)

// #region update-input

// UpdateInput carries full-section replacements. Nil sections are left
// untouched. Sections are replaced wholesale, never deep-merged here;
// callers merge partials first (see UpdateCoreAttributes).
type UpdateInput struct {
	Core              *identity.CoreAttributes
	Aesthetic         *identity.AestheticState
	Learning          *identity.LearningState
	IdentityEmbedding []float32
	ContentEmbedding  []float32

	// SetEmbeddings writes both embedding slots verbatim, nil included.
	// Without it, a nil embedding leaves the stored vector untouched.
	// Rollback needs this: a restored snapshot may predate any embedding.
	SetEmbeddings bool

	// Snapshot requests an auto snapshot of the pre-update sections. The
	// snapshot (and the version increment) only happens when at least one
	// supplied section actually differs from the stored value.
	Snapshot bool
}

// #endregion update-input

// #region update

// Update applies full-section replacements under the per-state lock.
// currentVersion increases by exactly 1 if and only if a snapshot was
// created; it never decreases.
func (s *Store) Update(stateID string, in UpdateInput) (identity.IdentityState, error) {
	return s.applyUpdate(stateID, func(identity.IdentityState) (UpdateInput, error) {
		return in, nil
	})
}

// UpdateCoreAttributes shallow-merges the partial over the stored section,
// then replaces it wholesale with snapshotting. The merge runs under the
// per-state lock so concurrent partial updates cannot clobber each other.
func (s *Store) UpdateCoreAttributes(stateID string, partial identity.CoreAttributes) (identity.IdentityState, error) {
	return s.applyUpdate(stateID, func(current identity.IdentityState) (UpdateInput, error) {
		merged := identity.MergeCore(current.Core, partial)
		return UpdateInput{Core: &merged, Snapshot: true}, nil
	})
}

// UpdateAestheticState shallow-merges the partial over the stored section,
// then replaces it wholesale with snapshotting.
func (s *Store) UpdateAestheticState(stateID string, partial identity.AestheticState) (identity.IdentityState, error) {
	return s.applyUpdate(stateID, func(current identity.IdentityState) (UpdateInput, error) {
		merged := identity.MergeAesthetic(current.Aesthetic, partial)
		return UpdateInput{Aesthetic: &merged, Snapshot: true}, nil
	})
}

// UpdateLearningState replaces the learning section without creating
// version history. Learning updates never snapshot.
func (s *Store) UpdateLearningState(stateID string, learning identity.LearningState) (identity.IdentityState, error) {
	return s.Update(stateID, UpdateInput{Learning: &learning, Snapshot: false})
}

// MutateLearningState applies fn to the freshly loaded state under the
// per-state lock, so concurrent feedback folds cannot lose entries. Like
// UpdateLearningState, it never snapshots.
func (s *Store) MutateLearningState(stateID string, fn func(identity.IdentityState) (identity.LearningState, error)) (identity.IdentityState, error) {
	return s.applyUpdate(stateID, func(current identity.IdentityState) (UpdateInput, error) {
		learning, err := fn(current)
		if err != nil {
			return UpdateInput{}, err
		}
		return UpdateInput{Learning: &learning, Snapshot: false}, nil
	})
}

// #endregion update

// #region rollback

// Rollback restores the sections and embeddings captured in the snapshot
// with that exact version number. Per the update contract this first auto-
// snapshots the current (pre-rollback) state, so nothing is lost and the
// version counter still only increases. The snapshot's embeddings replace
// the stored ones wholesale, nil included, so the vectors always match the
// restored sections.
func (s *Store) Rollback(stateID string, versionNumber int) (identity.IdentityState, error) {
	snap, err := s.SnapshotByVersion(stateID, versionNumber)
	if err != nil {
		return identity.IdentityState{}, err
	}
	return s.Update(stateID, UpdateInput{
		Core:              &snap.Core,
		Aesthetic:         &snap.Aesthetic,
		Learning:          &snap.Learning,
		IdentityEmbedding: snap.IdentityEmbedding,
		ContentEmbedding:  snap.ContentEmbedding,
		SetEmbeddings:     true,
		Snapshot:          true,
	})
}

// #endregion rollback

// #region apply-update

// applyUpdate serializes the load-snapshot-store triad per state id. build
// receives the freshly loaded state and returns the replacement input.
// The final write re-checks current_version so a write from another
// process between load and store surfaces as Internal instead of silently
// losing an update.
func (s *Store) applyUpdate(stateID string, build func(identity.IdentityState) (UpdateInput, error)) (identity.IdentityState, error) {
	m := s.lock(stateID)
	m.Lock()
	defer m.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return identity.IdentityState{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := loadStateTx(tx, stateID)
	if err != nil {
		return identity.IdentityState{}, err
	}

	in, err := build(current)
	if err != nil {
		return identity.IdentityState{}, err
	}

	changed := false
	if in.Core != nil && !sectionEqual(current.Core, *in.Core) {
		changed = true
	}
	if in.Aesthetic != nil && !sectionEqual(current.Aesthetic, *in.Aesthetic) {
		changed = true
	}
	if in.Learning != nil && !sectionEqual(current.Learning, *in.Learning) {
		changed = true
	}

	snapshotted := false
	if in.Snapshot && changed {
		snap := snapshotOf(current, identity.VersionAuto, "")
		if err := insertSnapshotTx(tx, snap); err != nil {
			return identity.IdentityState{}, err
		}
		if err := pruneAutoSnapshotsTx(tx, stateID); err != nil {
			return identity.IdentityState{}, err
		}
		metrics.SnapshotsCreated.WithLabelValues(string(identity.VersionAuto)).Inc()
		snapshotted = true
	}

	next := current
	if in.Core != nil {
		next.Core = *in.Core
	}
	if in.Aesthetic != nil {
		next.Aesthetic = *in.Aesthetic
	}
	if in.Learning != nil {
		next.Learning = *in.Learning
	}
	if in.SetEmbeddings {
		next.IdentityEmbedding = in.IdentityEmbedding
		next.ContentEmbedding = in.ContentEmbedding
	} else {
		if in.IdentityEmbedding != nil {
			next.IdentityEmbedding = in.IdentityEmbedding
		}
		if in.ContentEmbedding != nil {
			next.ContentEmbedding = in.ContentEmbedding
		}
	}
	if snapshotted {
		next.CurrentVersion = current.CurrentVersion + 1
	}
	next.UpdatedAt = time.Now().UTC()

	coreJSON, aesJSON, learnJSON, err := marshalSections(next.Core, next.Aesthetic, next.Learning)
	if err != nil {
		return identity.IdentityState{}, err
	}

	res, err := tx.Exec(
		`UPDATE identity_states
		 SET core_json = ?, aesthetic_json = ?, learning_json = ?,
		     identity_embedding = ?, content_embedding = ?,
		     current_version = ?, updated_at = ?
		 WHERE state_id = ? AND current_version = ?`,
		coreJSON, aesJSON, learnJSON,
		encodeVector(next.IdentityEmbedding), encodeVector(next.ContentEmbedding),
		next.CurrentVersion, next.UpdatedAt.Format(time.RFC3339Nano),
		stateID, current.CurrentVersion,
	)
	if err != nil {
		return identity.IdentityState{}, fmt.Errorf("update state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return identity.IdentityState{}, fmt.Errorf("update state: %w", err)
	}
	if n == 0 {
		return identity.IdentityState{}, fault.Internal("update of state %s affected no row (stale version %d)", stateID, current.CurrentVersion)
	}

	if err := tx.Commit(); err != nil {
		return identity.IdentityState{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// #endregion apply-update

// #region tx-load

// loadStateTx reads the state row inside the caller's transaction.
func loadStateTx(tx *sql.Tx, stateID string) (identity.IdentityState, error) {
	row := tx.QueryRow(
		`SELECT state_id, user_id, core_json, aesthetic_json, learning_json,
		        identity_embedding, content_embedding, sync_status, current_version,
		        created_at, updated_at
		 FROM identity_states WHERE state_id = ?`, stateID)
	st, err := scanState(row)
	if err == sql.ErrNoRows {
		return identity.IdentityState{}, fault.NotFound("identity state %s not found", stateID)
	}
	if err != nil {
		return identity.IdentityState{}, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}

// #endregion tx-load
