package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
)

// Preferences are opaque JSON blobs owned by the service layer, one
// row per (user, key).

func (r *Repository) GetPreference(ctx context.Context, userID, key string) ([]byte, error) {
	query, args, err := r.builder().
		Select("value").
		From("user_prefs").
		Where(squirrel.Eq{"user_id": userID, "pref_key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build preference select query: %w", err)
	}

	var value []byte
	err = r.db.GetContext(ctx, &value, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}

	return value, nil
}

func (r *Repository) SetPreference(ctx context.Context, userID, key string, value []byte) error {
	query, args, err := r.builder().
		Insert("user_prefs").
		SetMap(map[string]interface{}{
			"user_id":    userID,
			"pref_key":   key,
			"value":      value,
			"updated_at": time.Now().UTC(),
		}).
		Suffix("ON CONFLICT (user_id, pref_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build preference upsert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}

	return nil
}

func (r *Repository) DeletePreference(ctx context.Context, userID, key string) error {
	query, args, err := r.builder().
		Delete("user_prefs").
		Where(squirrel.Eq{"user_id": userID, "pref_key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build preference delete query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}

	return nil
}
