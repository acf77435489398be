package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/app/store"
)

type roomColl struct {
	pool *pgxpool.Pool
}

const roomCols = `id, name, description, created_by, members, moderators, admins,
	banned, visibility, active, created_at`

func scanRoom(row pgx.Row) (*store.Room, error) {
	var r store.Room
	err := row.Scan(
		&r.ID, &r.Name, &r.Description, &r.CreatedBy, &r.Members, &r.Moderators,
		&r.Admins, &r.Banned, &r.Visibility, &r.Active, &r.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func scanRooms(rows pgx.Rows) ([]store.Room, error) {
	defer rows.Close()

	out := []store.Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, mapErr(rows.Err())
}

func (c *roomColl) Insert(ctx context.Context, room *store.Room) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO rooms (id, name, description, created_by, members, moderators,
			admins, banned, visibility, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		room.ID, room.Name, room.Description, room.CreatedBy, room.Members,
		room.Moderators, room.Admins, room.Banned, room.Visibility, room.Active,
		room.CreatedAt,
	)
	return mapErr(err)
}

func (c *roomColl) GetByID(ctx context.Context, id string) (*store.Room, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+roomCols+` FROM rooms WHERE id = $1`, id)
	return scanRoom(row)
}

func (c *roomColl) GetByName(ctx context.Context, name string) (*store.Room, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+roomCols+` FROM rooms WHERE name = $1`, name)
	return scanRoom(row)
}

func (c *roomColl) ListActive(ctx context.Context) ([]store.Room, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT `+roomCols+` FROM rooms WHERE active = TRUE ORDER BY name`)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanRooms(rows)
}

func (c *roomColl) ListByMember(ctx context.Context, user string) ([]store.Room, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT `+roomCols+` FROM rooms
		WHERE active = TRUE AND $1 = ANY(members)
		ORDER BY name`, user)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanRooms(rows)
}

// addToSet appends user to the named array column if absent, atomically.
func (c *roomColl) addToSet(ctx context.Context, column, name, user string) (*store.Room, error) {
	// column comes from a fixed internal call site, never from user input.
	row := c.pool.QueryRow(ctx, `
		UPDATE rooms
		SET `+column+` = CASE
			WHEN $2 = ANY(`+column+`) THEN `+column+`
			ELSE array_append(`+column+`, $2)
		END
		WHERE name = $1
		RETURNING `+roomCols,
		name, user)
	return scanRoom(row)
}

// pullFromSet removes user from the named array column, atomically.
func (c *roomColl) pullFromSet(ctx context.Context, column, name, user string) (*store.Room, error) {
	row := c.pool.QueryRow(ctx, `
		UPDATE rooms SET `+column+` = array_remove(`+column+`, $2)
		WHERE name = $1
		RETURNING `+roomCols,
		name, user)
	return scanRoom(row)
}

func (c *roomColl) AddMember(ctx context.Context, name, user string) (*store.Room, error) {
	return c.addToSet(ctx, "members", name, user)
}

func (c *roomColl) RemoveMember(ctx context.Context, name, user string) (*store.Room, error) {
	return c.pullFromSet(ctx, "members", name, user)
}

func (c *roomColl) AddBan(ctx context.Context, name, user string) (*store.Room, error) {
	return c.addToSet(ctx, "banned", name, user)
}

func (c *roomColl) RemoveBan(ctx context.Context, name, user string) (*store.Room, error) {
	return c.pullFromSet(ctx, "banned", name, user)
}

func (c *roomColl) Promote(ctx context.Context, name, user string, role store.Role) (*store.Room, error) {
	switch role {
	case store.RoleAdmin:
		return c.addToSet(ctx, "admins", name, user)
	case store.RoleModerator:
		return c.addToSet(ctx, "moderators", name, user)
	default:
		return nil, store.ErrNotFound
	}
}

func (c *roomColl) SetActive(ctx context.Context, id string, active bool) (*store.Room, error) {
	row := c.pool.QueryRow(ctx, `
		UPDATE rooms SET active = $2 WHERE id = $1
		RETURNING `+roomCols, id, active)
	return scanRoom(row)
}
