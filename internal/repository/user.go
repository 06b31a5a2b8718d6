package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/allthriveai/allthriveai-sub012/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type User struct {
	ID               string    `db:"id"`
	Username         string    `db:"username"`
	DisplayName      string    `db:"display_name"`
	Points           int       `db:"points"`
	AvatarURL        string    `db:"avatar_url"`
	IsAdmin          bool      `db:"is_admin"`
	RegistrationDate time.Time `db:"registration_date"`
	LastAuthDate     time.Time `db:"last_auth_date"`
}

func (u *User) toModel() *model.User {
	return &model.User{
		ID:               u.ID,
		Username:         u.Username,
		DisplayName:      u.DisplayName,
		Points:           u.Points,
		AvatarURL:        u.AvatarURL,
		IsAdmin:          u.IsAdmin,
		RegistrationDate: u.RegistrationDate,
		LastAuthDate:     u.LastAuthDate,
	}
}

func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		existsQuery, existsArgs, err := r.builder().
			Select("1").
			From("users").
			Where(squirrel.Eq{"id": user.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build user exists query: %w", err)
		}

		var one int
		err = tx.GetContext(ctx, &one, existsQuery, existsArgs...)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check user existence: %w", err)
		}

		query, args, err := r.builder().
			Insert("users").
			SetMap(map[string]interface{}{
				"id":                user.ID,
				"username":          user.Username,
				"display_name":      user.DisplayName,
				"points":            user.Points,
				"avatar_url":        user.AvatarURL,
				"is_admin":          user.IsAdmin,
				"registration_date": user.RegistrationDate,
				"last_auth_date":    user.LastAuthDate,
			}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build user insert query: %w", err)
		}

		_, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		return nil
	})
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var user User
	query, args, err := r.builder().
		Select("*").
		From("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return user.toModel(), nil
}

func (r *Repository) UpdateUserPoints(ctx context.Context, id string, points int) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := r.builder().
			Update("users").
			Set("points", squirrel.Expr("points + ?", points)).
			Where(squirrel.Eq{"id": id}).
			ToSql()
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}

		return nil
	})
}

func (r *Repository) UpdateUserAvatar(ctx context.Context, id string, avatarURL string) error {
	query, args, err := r.builder().
		Update("users").
		Set("avatar_url", avatarURL).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) TouchLastAuth(ctx context.Context, id string, authDate time.Time) error {
	query, args, err := r.builder().
		Update("users").
		Set("last_auth_date", authDate).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}
