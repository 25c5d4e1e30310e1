package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/identity-engine/internal/fault"
	"github.com/danielpatrickdp/identity-engine/internal/identity"
)

// #region seed

// seedPersonas inserts the fixed default persona set inside the create
// transaction.
func seedPersonas(tx *sql.Tx, stateID string, createdAt time.Time) error {
	for _, p := range identity.DefaultPersonas() {
		tones, err := json.Marshal(p.ToneWeights)
		if err != nil {
			return fmt.Errorf("marshal tone weights: %w", err)
		}
		markers, err := json.Marshal(p.StyleMarkers)
		if err != nil {
			return fmt.Errorf("marshal style markers: %w", err)
		}
		rules, err := json.Marshal(p.Rules)
		if err != nil {
			return fmt.Errorf("marshal content rules: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO personas
			 (persona_id, state_id, name, tone_weights, style_markers, content_rules, is_active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), stateID, p.Name, string(tones), string(markers), string(rules),
			boolToInt(p.IsActive), createdAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert persona %s: %w", p.Name, err)
		}
	}
	return nil
}

// #endregion seed

// #region persona-queries

// ListPersonas returns the state's personas in creation order.
func (s *Store) ListPersonas(stateID string) ([]identity.Persona, error) {
	rows, err := s.db.Query(
		`SELECT persona_id, state_id, name, tone_weights, style_markers, content_rules, is_active, created_at
		 FROM personas WHERE state_id = ? ORDER BY created_at, name`, stateID)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	defer rows.Close()

	var personas []identity.Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

// ActivePersona returns the state's active persona, or NotFound when none
// is active.
func (s *Store) ActivePersona(stateID string) (identity.Persona, error) {
	row := s.db.QueryRow(
		`SELECT persona_id, state_id, name, tone_weights, style_markers, content_rules, is_active, created_at
		 FROM personas WHERE state_id = ? AND is_active = 1 LIMIT 1`, stateID)
	p, err := scanPersona(row)
	if err == sql.ErrNoRows {
		return identity.Persona{}, fault.NotFound("no active persona for state %s", stateID)
	}
	if err != nil {
		return identity.Persona{}, fmt.Errorf("get active persona: %w", err)
	}
	return p, nil
}

// PersonaByName returns the state's persona with the given name.
func (s *Store) PersonaByName(stateID, name string) (identity.Persona, error) {
	row := s.db.QueryRow(
		`SELECT persona_id, state_id, name, tone_weights, style_markers, content_rules, is_active, created_at
		 FROM personas WHERE state_id = ? AND name = ? LIMIT 1`, stateID, name)
	p, err := scanPersona(row)
	if err == sql.ErrNoRows {
		return identity.Persona{}, fault.NotFound("persona %s for state %s not found", name, stateID)
	}
	if err != nil {
		return identity.Persona{}, fmt.Errorf("get persona: %w", err)
	}
	return p, nil
}

// SetPersonaActive activates the named persona and deactivates the rest.
// Passing an empty name deactivates all personas.
func (s *Store) SetPersonaActive(stateID, name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE personas SET is_active = 0 WHERE state_id = ?`, stateID); err != nil {
		return fmt.Errorf("deactivate personas: %w", err)
	}
	if name != "" {
		res, err := tx.Exec(`UPDATE personas SET is_active = 1 WHERE state_id = ? AND name = ?`, stateID, name)
		if err != nil {
			return fmt.Errorf("activate persona: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("activate persona: %w", err)
		}
		if n == 0 {
			return fault.NotFound("persona %s for state %s not found", name, stateID)
		}
	}
	return tx.Commit()
}

// UpdatePersonaRules replaces the named persona's content rules wholesale.
// Persona rows live outside the versioned document, so no snapshot is taken.
func (s *Store) UpdatePersonaRules(stateID, name string, rules identity.ContentRules) error {
	encoded, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshal content rules: %w", err)
	}
	res, err := s.db.Exec(
		`UPDATE personas SET content_rules = ? WHERE state_id = ? AND name = ?`,
		string(encoded), stateID, name)
	if err != nil {
		return fmt.Errorf("update persona rules: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update persona rules: %w", err)
	}
	if n == 0 {
		return fault.NotFound("persona %s for state %s not found", name, stateID)
	}
	return nil
}

// #endregion persona-queries

// #region persona-scan

func scanPersona(row rowScanner) (identity.Persona, error) {
	var p identity.Persona
	var tones, markers, rules string
	var active int
	var createdStr string

	err := row.Scan(&p.ID, &p.StateID, &p.Name, &tones, &markers, &rules, &active, &createdStr)
	if err != nil {
		return identity.Persona{}, err
	}
	if err := json.Unmarshal([]byte(tones), &p.ToneWeights); err != nil {
		return identity.Persona{}, fmt.Errorf("unmarshal tone weights: %w", err)
	}
	if err := json.Unmarshal([]byte(markers), &p.StyleMarkers); err != nil {
		return identity.Persona{}, fmt.Errorf("unmarshal style markers: %w", err)
	}
	if err := json.Unmarshal([]byte(rules), &p.Rules); err != nil {
		return identity.Persona{}, fmt.Errorf("unmarshal content rules: %w", err)
	}
	p.IsActive = active != 0
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion persona-scan
