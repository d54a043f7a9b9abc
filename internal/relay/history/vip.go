package history

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AddVIP persists a user in the VIP roster.
func (s *Store) AddVIP(ctx context.Context, userID int64) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO vips (user_id, added_at)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("add vip: %w", err)
	}
	return nil
}

// RemoveVIP removes a user from the VIP roster.
func (s *Store) RemoveVIP(ctx context.Context, userID int64) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM vips WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("remove vip: %w", err)
	}
	return nil
}

// VIPs returns the persisted VIP roster.
func (s *Store) VIPs(ctx context.Context) ([]int64, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT user_id FROM vips ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list vips: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan vip: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read vips: %w", err)
	}

	return ids, nil
}
