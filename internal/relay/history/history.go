package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/internal/relay/content"
)

// Append stages conversation messages for the chat. Rows are written
// to the database once the batch fills or the flush ticker fires.
func (s *Store) Append(ctx context.Context, chatID int64, messages ...content.Message) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if len(messages) == 0 {
		return nil
	}

	now := time.Now().Unix()

	s.mu.Lock()
	for _, msg := range messages {
		body := renderBody(msg)
		if body == "" {
			continue
		}
		s.pending = append(s.pending, pendingRow{
			chatID:    chatID,
			role:      string(msg.Role),
			body:      body,
			createdAt: now,
		})
	}
	full := len(s.pending) >= s.flushSize
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Recent returns up to limit messages for the chat in chronological
// order. Staged rows are flushed first so reads observe prior appends.
func (s *Store) Recent(ctx context.Context, chatID int64, limit int) ([]content.Message, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if limit <= 0 {
		return nil, nil
	}

	if err := s.Flush(ctx); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT role, body FROM (
			SELECT id, role, body FROM chat_history
			WHERE chat_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	var messages []content.Message
	for rows.Next() {
		var role, body string
		if err := rows.Scan(&role, &body); err != nil {
			return nil, fmt.Errorf("scan chat history: %w", err)
		}
		messages = append(messages, content.Text(content.Role(role), body))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chat history: %w", err)
	}

	return messages, nil
}

// Flush writes all staged rows in one transaction and trims each
// touched chat down to the retention limit.
func (s *Store) Flush(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history flush: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	touched := make(map[int64]struct{}, len(batch))
	for _, row := range batch {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_history (chat_id, role, body, created_at)
			VALUES (?, ?, ?, ?)
		`, row.chatID, row.role, row.body, row.createdAt); err != nil {
			return fmt.Errorf("insert chat history: %w", err)
		}
		touched[row.chatID] = struct{}{}
	}

	for chatID := range touched {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM chat_history
			WHERE chat_id = ? AND id NOT IN (
				SELECT id FROM chat_history
				WHERE chat_id = ?
				ORDER BY id DESC
				LIMIT ?
			)
		`, chatID, chatID, s.keepPerChat); err != nil {
			return fmt.Errorf("trim chat history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history flush: %w", err)
	}
	return nil
}

// ClearChat drops all stored context for a chat.
func (s *Store) ClearChat(ctx context.Context, chatID int64) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	s.mu.Lock()
	kept := s.pending[:0]
	for _, row := range s.pending {
		if row.chatID != chatID {
			kept = append(kept, row)
		}
	}
	s.pending = kept
	s.mu.Unlock()

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM chat_history WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clear chat history: %w", err)
	}
	return nil
}

// renderBody flattens message content to plain text for storage.
// Image blocks are recorded as a placeholder so history stays small.
func renderBody(msg content.Message) string {
	var parts []string
	for _, block := range msg.Content {
		switch block.Type {
		case content.BlockTypeText:
			if text := strings.TrimSpace(block.Text); text != "" {
				parts = append(parts, text)
			}
		case content.BlockTypeImage:
			parts = append(parts, "[image]")
		}
	}
	return strings.Join(parts, "\n")
}
