package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/app/store"
)

type userColl struct {
	pool *pgxpool.Pool
}

const userCols = `username, display_name, gender, country, avatar, bio, status, last_seen`

func scanUser(row pgx.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(
		&u.Username, &u.DisplayName, &u.Gender, &u.Country, &u.Avatar, &u.Bio,
		&u.Status, &u.LastSeen,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (c *userColl) Upsert(ctx context.Context, user *store.User) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO users (username, display_name, gender, country, avatar, bio, status, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (username) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			gender = EXCLUDED.gender,
			country = EXCLUDED.country,
			avatar = EXCLUDED.avatar,
			bio = EXCLUDED.bio,
			status = EXCLUDED.status,
			last_seen = EXCLUDED.last_seen`,
		user.Username, user.DisplayName, user.Gender, user.Country, user.Avatar,
		user.Bio, user.Status, user.LastSeen,
	)
	return mapErr(err)
}

func (c *userColl) Get(ctx context.Context, username string) (*store.User, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// SetStatus upserts so presence updates also work for identities that never
// registered a profile record.
func (c *userColl) SetStatus(ctx context.Context, username string, status store.PresenceStatus, lastSeen time.Time) (*store.User, error) {
	row := c.pool.QueryRow(ctx, `
		INSERT INTO users (username, status, last_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET status = EXCLUDED.status, last_seen = EXCLUDED.last_seen
		RETURNING `+userCols,
		username, status, lastSeen)
	return scanUser(row)
}

func (c *userColl) UpdateProfile(ctx context.Context, username string, update store.ProfileUpdate) (*store.User, error) {
	row := c.pool.QueryRow(ctx, `
		UPDATE users SET
			display_name = COALESCE($2, display_name),
			gender = COALESCE($3, gender),
			country = COALESCE($4, country),
			avatar = COALESCE($5, avatar),
			bio = COALESCE($6, bio)
		WHERE username = $1
		RETURNING `+userCols,
		username, update.DisplayName, update.Gender, update.Country, update.Avatar, update.Bio)
	return scanUser(row)
}
