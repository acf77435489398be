package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/app/store"
)

type messageColl struct {
	pool *pgxpool.Pool
}

const messageCols = `id, room, sender, body, kind, reply_to, mentions, reactions,
	read_by, edited, edited_at, pinned, reported, deleted, file_data, gif_data, created_at`

func scanMessage(row pgx.Row) (*store.Message, error) {
	var m store.Message
	err := row.Scan(
		&m.ID, &m.Room, &m.Sender, &m.Body, &m.Kind, &m.ReplyTo, &m.Mentions,
		&m.Reactions, &m.ReadBy, &m.Edited, &m.EditedAt, &m.Pinned, &m.Reported,
		&m.Deleted, &m.File, &m.Gif, &m.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func scanMessages(rows pgx.Rows) ([]store.Message, error) {
	defer rows.Close()

	out := []store.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, mapErr(rows.Err())
}

func (c *messageColl) Insert(ctx context.Context, msg *store.Message) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO messages (id, room, sender, body, kind, reply_to, mentions,
			reactions, read_by, edited, edited_at, pinned, reported, deleted,
			file_data, gif_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		msg.ID, msg.Room, msg.Sender, msg.Body, msg.Kind, msg.ReplyTo, msg.Mentions,
		msg.Reactions, msg.ReadBy, msg.Edited, msg.EditedAt, msg.Pinned, msg.Reported,
		msg.Deleted, msg.File, msg.Gif, msg.CreatedAt,
	)
	return mapErr(err)
}

func (c *messageColl) Get(ctx context.Context, id string) (*store.Message, error) {
	row := c.pool.QueryRow(ctx,
		`SELECT `+messageCols+` FROM messages WHERE id = $1`, id)
	return scanMessage(row)
}

func (c *messageColl) Edit(ctx context.Context, id, body string, editedAt time.Time) (*store.Message, error) {
	row := c.pool.QueryRow(ctx, `
		UPDATE messages
		SET body = $2, edited = TRUE, edited_at = $3
		WHERE id = $1 AND deleted = FALSE
		RETURNING `+messageCols,
		id, body, editedAt)
	return scanMessage(row)
}

func (c *messageColl) SoftDelete(ctx context.Context, id string) (*store.Message, error) {
	row := c.pool.QueryRow(ctx, `
		UPDATE messages SET deleted = TRUE WHERE id = $1
		RETURNING `+messageCols, id)
	return scanMessage(row)
}

// AddReactor appends the user to the emoji's reactor set in a single statement,
// creating the emoji entry if it does not exist yet. The whole read-modify-write
// happens inside Postgres, so concurrent reactions on the same message cannot
// lose updates.
func (c *messageColl) AddReactor(ctx context.Context, id, emoji, user string) (*store.Message, error) {
	row := c.pool.QueryRow(ctx, `
		UPDATE messages
		SET reactions = CASE
			WHEN EXISTS (
				SELECT 1 FROM jsonb_array_elements(reactions) AS e
				WHERE e->>'emoji' = $2
			)
			THEN (
				SELECT jsonb_agg(
					CASE
						WHEN e->>'emoji' = $2 AND NOT (e->'users') ? $3
						THEN jsonb_set(e, '{users}', (e->'users') || to_jsonb($3::text))
						ELSE e
					END)
				FROM jsonb_array_elements(reactions) AS e
			)
			ELSE reactions || jsonb_build_array(
				jsonb_build_object('emoji', $2::text, 'users', jsonb_build_array($3::text)))
		END
		WHERE id = $1
		RETURNING `+messageCols,
		id, emoji, user)
	return scanMessage(row)
}

// RemoveReactor removes the user from the emoji's reactor set and drops the
// emoji entry entirely once its set is empty, atomically.
func (c *messageColl) RemoveReactor(ctx context.Context, id, emoji, user string) (*store.Message, error) {
	row := c.pool.QueryRow(ctx, `
		UPDATE messages
		SET reactions = COALESCE((
			SELECT jsonb_agg(mapped.r)
			FROM (
				SELECT CASE
					WHEN e->>'emoji' = $2
					THEN jsonb_set(e, '{users}', COALESCE((
						SELECT jsonb_agg(to_jsonb(u))
						FROM jsonb_array_elements_text(e->'users') AS t(u)
						WHERE u <> $3), '[]'::jsonb))
					ELSE e
				END AS r
				FROM jsonb_array_elements(reactions) AS e
			) AS mapped
			WHERE NOT (mapped.r->>'emoji' = $2 AND jsonb_array_length(mapped.r->'users') = 0)
		), '[]'::jsonb)
		WHERE id = $1
		RETURNING `+messageCols,
		id, emoji, user)
	return scanMessage(row)
}

// AddReader appends the user to readBy if absent. The CASE keeps the statement
// a no-op (but still matching) when the user already read the message, so the
// updated document is returned either way.
func (c *messageColl) AddReader(ctx context.Context, id, user string) (*store.Message, error) {
	row := c.pool.QueryRow(ctx, `
		UPDATE messages
		SET read_by = CASE
			WHEN $2 = ANY(read_by) THEN read_by
			ELSE array_append(read_by, $2)
		END
		WHERE id = $1
		RETURNING `+messageCols,
		id, user)
	return scanMessage(row)
}

func (c *messageColl) MarkRoomRead(ctx context.Context, room, user string) (int64, error) {
	tag, err := c.pool.Exec(ctx, `
		UPDATE messages
		SET read_by = array_append(read_by, $2)
		WHERE room = $1 AND sender <> $2 AND NOT $2 = ANY(read_by)`,
		room, user)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func (c *messageColl) SetPinned(ctx context.Context, id string, pinned bool) (*store.Message, error) {
	row := c.pool.QueryRow(ctx, `
		UPDATE messages SET pinned = $2 WHERE id = $1
		RETURNING `+messageCols, id, pinned)
	return scanMessage(row)
}

func (c *messageColl) SetReported(ctx context.Context, id string, reported bool) (*store.Message, error) {
	row := c.pool.QueryRow(ctx, `
		UPDATE messages SET reported = $2 WHERE id = $1
		RETURNING `+messageCols, id, reported)
	return scanMessage(row)
}

func (c *messageColl) List(ctx context.Context, room string, limit, skip int) ([]store.Message, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE room = $1 AND deleted = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		room, limit, skip)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanMessages(rows)
}

// escapeLike escapes LIKE metacharacters so user queries match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (c *messageColl) Search(ctx context.Context, room, query string, limit int) ([]store.Message, error) {
	pattern := "%" + escapeLike(query) + "%"

	rows, err := c.pool.Query(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE room = $1 AND deleted = FALSE
			AND (body ILIKE $2 OR sender ILIKE $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`,
		room, pattern, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanMessages(rows)
}

func (c *messageColl) ListPinned(ctx context.Context, room string) ([]store.Message, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE room = $1 AND pinned = TRUE AND deleted = FALSE
		ORDER BY created_at DESC, id DESC`,
		room)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanMessages(rows)
}

func (c *messageColl) UnreadCount(ctx context.Context, room, user string) (int64, error) {
	var n int64
	err := c.pool.QueryRow(ctx, `
		SELECT count(*) FROM messages
		WHERE room = $1 AND deleted = FALSE
			AND sender <> $2 AND NOT $2 = ANY(read_by)`,
		room, user).Scan(&n)
	return n, mapErr(err)
}

func (c *messageColl) Count(ctx context.Context, room, sender string) (int64, error) {
	var n int64
	err := c.pool.QueryRow(ctx, `
		SELECT count(*) FROM messages
		WHERE room = $1 AND deleted = FALSE
			AND ($2 = '' OR sender = $2)`,
		room, sender).Scan(&n)
	return n, mapErr(err)
}
