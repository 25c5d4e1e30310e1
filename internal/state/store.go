// Package state owns the identity document and enforces the versioning,
// snapshot, and rollback invariants on top of SQLite.
package state

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/identity-engine/internal/fault"
	"github.com/danielpatrickdp/identity-engine/internal/identity"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS identity_states (
	state_id           TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL UNIQUE,
	core_json          TEXT NOT NULL,
	aesthetic_json     TEXT NOT NULL,
	learning_json      TEXT NOT NULL,
	identity_embedding BLOB,
	content_embedding  BLOB,
	sync_status        TEXT NOT NULL DEFAULT 'idle',
	current_version    INTEGER NOT NULL DEFAULT 1,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS version_snapshots (
	snapshot_id        TEXT PRIMARY KEY,
	state_id           TEXT NOT NULL,
	version_number     INTEGER NOT NULL,
	version_type       TEXT NOT NULL,
	snapshot_name      TEXT,
	core_json          TEXT NOT NULL,
	aesthetic_json     TEXT NOT NULL,
	learning_json      TEXT NOT NULL,
	identity_embedding BLOB,
	content_embedding  BLOB,
	created_at         TEXT NOT NULL,
	FOREIGN KEY (state_id) REFERENCES identity_states(state_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_snapshots_state
ON version_snapshots(state_id, version_type, created_at);

CREATE TABLE IF NOT EXISTS personas (
	persona_id    TEXT PRIMARY KEY,
	state_id      TEXT NOT NULL,
	name          TEXT NOT NULL,
	tone_weights  TEXT NOT NULL,
	style_markers TEXT NOT NULL,
	content_rules TEXT NOT NULL,
	is_active     INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (state_id) REFERENCES identity_states(state_id) ON DELETE CASCADE
);
`

// #endregion schema

// #region store-struct

// Store manages identity states, snapshots, and personas in SQLite.
// The read-modify-write triad in Update is serialized per state id with a
// keyed mutex; the write additionally carries an optimistic version check
// so a stale write from another process cannot slip through.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// #endregion store-struct

// #region constructor

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. the
// sync job log).
func (s *Store) DB() *sql.DB {
	return s.db
}

// lock returns the per-state mutex, creating it on first use.
func (s *Store) lock(stateID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[stateID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[stateID] = m
	}
	return m
}

// #endregion constructor

// #region create

// CreateInput optionally seeds the new state's sections.
type CreateInput struct {
	Core      *identity.CoreAttributes
	Aesthetic *identity.AestheticState
}

// Create inserts a fresh identity state for the user, seeding the four
// default personas as a side effect. Fails with AlreadyExists when the
// user already has one.
func (s *Store) Create(userID string, init CreateInput) (identity.IdentityState, error) {
	if userID == "" {
		return identity.IdentityState{}, fault.Invalid("user id is required")
	}

	st := identity.IdentityState{
		ID:             uuid.New().String(),
		UserID:         userID,
		Learning:       identity.DefaultLearningState(),
		SyncStatus:     identity.SyncIdle,
		CurrentVersion: 1,
		CreatedAt:      time.Now().UTC(),
	}
	st.UpdatedAt = st.CreatedAt
	if init.Core != nil {
		st.Core = *init.Core
	}
	if init.Aesthetic != nil {
		st.Aesthetic = *init.Aesthetic
	}

	coreJSON, aesJSON, learnJSON, err := marshalSections(st.Core, st.Aesthetic, st.Learning)
	if err != nil {
		return identity.IdentityState{}, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return identity.IdentityState{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM identity_states WHERE user_id = ?`, userID).Scan(&existing); err != nil {
		return identity.IdentityState{}, fmt.Errorf("check user: %w", err)
	}
	if existing > 0 {
		return identity.IdentityState{}, fault.AlreadyExists("identity state for user %s already exists", userID)
	}

	_, err = tx.Exec(
		`INSERT INTO identity_states
		 (state_id, user_id, core_json, aesthetic_json, learning_json, sync_status, current_version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.UserID, coreJSON, aesJSON, learnJSON,
		string(st.SyncStatus), st.CurrentVersion,
		st.CreatedAt.Format(time.RFC3339Nano), st.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return identity.IdentityState{}, fmt.Errorf("insert state: %w", err)
	}

	if err := seedPersonas(tx, st.ID, st.CreatedAt); err != nil {
		return identity.IdentityState{}, err
	}

	if err := tx.Commit(); err != nil {
		return identity.IdentityState{}, fmt.Errorf("commit: %w", err)
	}
	return st, nil
}

// #endregion create

// #region get

// Get retrieves an identity state by id. Fails NotFound when absent.
func (s *Store) Get(stateID string) (identity.IdentityState, error) {
	return s.getWhere(`state_id = ?`, stateID)
}

// GetByUser retrieves the identity state owned by the user.
func (s *Store) GetByUser(userID string) (identity.IdentityState, error) {
	return s.getWhere(`user_id = ?`, userID)
}

func (s *Store) getWhere(cond string, arg string) (identity.IdentityState, error) {
	row := s.db.QueryRow(
		`SELECT state_id, user_id, core_json, aesthetic_json, learning_json,
		        identity_embedding, content_embedding, sync_status, current_version,
		        created_at, updated_at
		 FROM identity_states WHERE `+cond, arg)
	st, err := scanState(row)
	if err == sql.ErrNoRows {
		return identity.IdentityState{}, fault.NotFound("identity state %s not found", arg)
	}
	if err != nil {
		return identity.IdentityState{}, fmt.Errorf("get state: %w", err)
	}
	return st, nil
}

// ListStateIDs returns every identity state id. Used by maintenance jobs
// such as the scheduled decay refresh.
func (s *Store) ListStateIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT state_id FROM identity_states ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan state id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// #endregion get

// #region delete

// Delete removes the identity state and, via foreign keys, its snapshots
// and personas. Only used on account deletion.
func (s *Store) Delete(stateID string) error {
	res, err := s.db.Exec(`DELETE FROM identity_states WHERE state_id = ?`, stateID)
	if err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	if n == 0 {
		return fault.NotFound("identity state %s not found", stateID)
	}
	return nil
}

// #endregion delete

// #region sync-status

// SetSyncStatus flips the state row's sync status. Not a content mutation:
// no snapshot, no version bump.
func (s *Store) SetSyncStatus(stateID string, status identity.SyncStatus) error {
	res, err := s.db.Exec(
		`UPDATE identity_states SET sync_status = ?, updated_at = ? WHERE state_id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), stateID,
	)
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	if n == 0 {
		return fault.NotFound("identity state %s not found", stateID)
	}
	return nil
}

// #endregion sync-status

// #region scan-helpers

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (identity.IdentityState, error) {
	var st identity.IdentityState
	var coreJSON, aesJSON, learnJSON string
	var idEmb, ctEmb []byte
	var syncStatus, createdStr, updatedStr string

	err := row.Scan(&st.ID, &st.UserID, &coreJSON, &aesJSON, &learnJSON,
		&idEmb, &ctEmb, &syncStatus, &st.CurrentVersion, &createdStr, &updatedStr)
	if err != nil {
		return identity.IdentityState{}, err
	}

	if err := json.Unmarshal([]byte(coreJSON), &st.Core); err != nil {
		return identity.IdentityState{}, fmt.Errorf("unmarshal core: %w", err)
	}
	if err := json.Unmarshal([]byte(aesJSON), &st.Aesthetic); err != nil {
		return identity.IdentityState{}, fmt.Errorf("unmarshal aesthetic: %w", err)
	}
	if err := json.Unmarshal([]byte(learnJSON), &st.Learning); err != nil {
		return identity.IdentityState{}, fmt.Errorf("unmarshal learning: %w", err)
	}
	st.IdentityEmbedding = decodeVector(idEmb)
	st.ContentEmbedding = decodeVector(ctEmb)
	st.SyncStatus = identity.SyncStatus(syncStatus)
	st.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	st.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return st, nil
}

func marshalSections(core identity.CoreAttributes, aes identity.AestheticState, learn identity.LearningState) (string, string, string, error) {
	coreJSON, err := json.Marshal(core)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal core: %w", err)
	}
	aesJSON, err := json.Marshal(aes)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal aesthetic: %w", err)
	}
	learnJSON, err := json.Marshal(learn)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal learning: %w", err)
	}
	return string(coreJSON), string(aesJSON), string(learnJSON), nil
}

func jsonInto(src string, dst any) error {
	return json.Unmarshal([]byte(src), dst)
}

// sectionEqual compares two section values by canonical JSON encoding.
// encoding/json sorts map keys, so equal values always encode identically.
func sectionEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

// #endregion scan-helpers

// #region vector-encoding

// encodeVector packs a float32 slice as little-endian bytes. nil stays nil
// so absent embeddings round-trip as NULL.
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// #endregion vector-encoding
