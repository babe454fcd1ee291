package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
)

// AtcSession is one online period of an ATC station
type AtcSession struct {
	ID             int64              `json:"id"`
	Callsign       aviation.Callsign  `json:"callsign"`
	ControllerID   string             `json:"controller_id,omitempty"`
	ControllerName string             `json:"controller_name,omitempty"`
	Frequency      aviation.Frequency `json:"frequency"`
	ConnectedAt    time.Time          `json:"connected_at"`
	DisconnectedAt *time.Time         `json:"disconnected_at,omitempty"`
}

// RecordAtcSession opens a session when connected is true and closes the open
// session of the station otherwise. A second connect for an already open
// session is ignored.
func (s *Storage) RecordAtcSession(station aviation.AtcStation, connected bool, at time.Time) error {
	ts := at.UTC().Format(time.RFC3339Nano)
	cs := station.Callsign.String()

	if !connected {
		_, err := s.db.Exec(
			`UPDATE atc_sessions SET disconnected_at = ?
			WHERE callsign = ? AND disconnected_at IS NULL`,
			ts, cs,
		)
		if err != nil {
			return fmt.Errorf("failed to close session of %s: %w", cs, err)
		}
		return nil
	}

	var open int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM atc_sessions WHERE callsign = ? AND disconnected_at IS NULL`, cs,
	).Scan(&open)
	if err != nil {
		return fmt.Errorf("failed to check open session of %s: %w", cs, err)
	}
	if open > 0 {
		return nil
	}

	_, err = s.db.Exec(
		`INSERT INTO atc_sessions
		(callsign, controller_id, controller_name, frequency_hz, connected_at)
		VALUES (?, ?, ?, ?, ?)`,
		cs,
		station.Controller.ID,
		station.Controller.RealName,
		int64(station.Frequency),
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to open session of %s: %w", cs, err)
	}
	return nil
}

// AtcSessions returns the sessions of callsign, newest first
func (s *Storage) AtcSessions(callsign aviation.Callsign) ([]AtcSession, error) {
	rows, err := s.db.Query(
		`SELECT id, callsign, controller_id, controller_name, frequency_hz, connected_at, disconnected_at
		FROM atc_sessions
		WHERE callsign = ?
		ORDER BY connected_at DESC, id DESC`,
		callsign.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query atc sessions: %w", err)
	}
	defer rows.Close()

	var sessions []AtcSession
	for rows.Next() {
		var (
			session        AtcSession
			cs, connected  string
			id, name       sql.NullString
			freq           int64
			disconnectedAt sql.NullString
		)
		if err := rows.Scan(&session.ID, &cs, &id, &name, &freq, &connected, &disconnectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan atc session: %w", err)
		}
		session.Callsign = aviation.Callsign(cs)
		session.ControllerID = id.String
		session.ControllerName = name.String
		session.Frequency = aviation.Frequency(freq)
		if session.ConnectedAt, err = time.Parse(time.RFC3339Nano, connected); err != nil {
			return nil, fmt.Errorf("failed to parse connected_at %q: %w", connected, err)
		}
		if disconnectedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, disconnectedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse disconnected_at %q: %w", disconnectedAt.String, err)
			}
			session.DisconnectedAt = &t
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating atc sessions: %w", err)
	}
	return sessions, nil
}
