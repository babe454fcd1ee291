package sqlite

import (
	"fmt"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
)

// StoreTextMessage stores a text message and returns its row ID
func (s *Storage) StoreTextMessage(msg aviation.TextMessage) (int64, error) {
	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	result, err := s.db.Exec(
		`INSERT INTO text_messages
		(sender, recipient, frequency_hz, message, outgoing, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.From.String(),
		msg.To.String(),
		int64(msg.Frequency),
		msg.Message,
		msg.Outgoing,
		sentAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert text message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// RecentTextMessages returns up to limit messages, oldest first
func (s *Storage) RecentTextMessages(limit int) ([]aviation.TextMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT sender, recipient, frequency_hz, message, outgoing, sent_at
		FROM (
			SELECT id, sender, recipient, frequency_hz, message, outgoing, sent_at
			FROM text_messages
			ORDER BY sent_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY sent_at ASC, id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query text messages: %w", err)
	}
	defer rows.Close()

	var messages []aviation.TextMessage
	for rows.Next() {
		var (
			from, to, sentAt string
			freq             int64
			outgoing         bool
			msg              aviation.TextMessage
		)
		if err := rows.Scan(&from, &to, &freq, &msg.Message, &outgoing, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan text message: %w", err)
		}
		msg.From = aviation.Callsign(from)
		msg.To = aviation.Callsign(to)
		msg.Frequency = aviation.Frequency(freq)
		msg.Outgoing = outgoing
		if msg.SentAt, err = time.Parse(time.RFC3339Nano, sentAt); err != nil {
			return nil, fmt.Errorf("failed to parse sent_at %q: %w", sentAt, err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating text messages: %w", err)
	}
	return messages, nil
}
