package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hearth-panel/hearth-ctl/internal/model"
)

const userColumns = `id, uuid, external_id, username, email, root_admin, created_at`

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	var externalID sql.NullString
	var created int64
	if err := row.Scan(&u.ID, &u.UUID, &externalID, &u.Username, &u.Email, &u.RootAdmin, &created); err != nil {
		return nil, err
	}
	u.ExternalID = externalID.String
	u.CreatedAt = time.Unix(created, 0)
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateUser inserts u and fills in its ID, UUID, and creation time.
func (q *Queries) CreateUser(ctx context.Context, u *model.User) error {
	if u.UUID == "" {
		u.UUID = uuid.NewString()
	}
	u.CreatedAt = time.Now()
	res, err := q.q.ExecContext(ctx,
		`INSERT INTO users (uuid, external_id, username, email, root_admin, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.UUID, nullString(u.ExternalID), u.Username, u.Email, u.RootAdmin, u.CreatedAt.Unix(),
	)
	if err != nil {
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

// GetUser loads a user by id.
func (q *Queries) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

// GetUserByExternalID loads a user by the identifier an external system
// assigned to it.
func (q *Queries) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = ?`, externalID)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user with external id", externalID)
	}
	return u, nil
}

// GetUserByUsername loads a user by username.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user", username)
	}
	return u, nil
}

// ListUsers returns all users ordered by id.
func (q *Queries) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
