package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hearth-panel/hearth-ctl/internal/model"
)

const eggColumns = `id, uuid, author, name, description, startup, docker_image`

const variableColumns = `id, egg_id, name, description, env_variable, default_value,
	rules, user_viewable, user_editable, sort`

func scanEgg(row scanner) (*model.Egg, error) {
	var e model.Egg
	if err := row.Scan(&e.ID, &e.UUID, &e.Author, &e.Name, &e.Description, &e.Startup, &e.DefaultImage); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEgg inserts e together with its variable definitions.
func (q *Queries) CreateEgg(ctx context.Context, e *model.Egg) error {
	if e.UUID == "" {
		e.UUID = uuid.NewString()
	}
	res, err := q.q.ExecContext(ctx,
		`INSERT INTO eggs (uuid, author, name, description, startup, docker_image, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UUID, e.Author, e.Name, e.Description, e.Startup, e.DefaultImage, time.Now().Unix(),
	)
	if err != nil {
		return err
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	for i := range e.Variables {
		v := &e.Variables[i]
		v.EggID = e.ID
		res, err := q.q.ExecContext(ctx,
			`INSERT INTO egg_variables (egg_id, name, description, env_variable, default_value,
				rules, user_viewable, user_editable, sort)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.EggID, v.Name, v.Description, v.EnvVariable, v.DefaultValue,
			v.Rules, v.UserViewable, v.UserEditable, v.Sort,
		)
		if err != nil {
			return err
		}
		if v.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

// GetEgg loads an egg and its variable definitions.
func (q *Queries) GetEgg(ctx context.Context, id int64) (*model.Egg, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+eggColumns+` FROM eggs WHERE id = ?`, id)
	e, err := scanEgg(row)
	if err != nil {
		return nil, notFound(err, "egg", id)
	}
	if e.Variables, err = q.EggVariables(ctx, id); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEggs returns all eggs without their variables.
func (q *Queries) ListEggs(ctx context.Context) ([]*model.Egg, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+eggColumns+` FROM eggs ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eggs []*model.Egg
	for rows.Next() {
		e, err := scanEgg(rows)
		if err != nil {
			return nil, err
		}
		eggs = append(eggs, e)
	}
	return eggs, rows.Err()
}

// EggVariables returns the definitions of an egg in sort order.
func (q *Queries) EggVariables(ctx context.Context, eggID int64) ([]model.VariableDefinition, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+variableColumns+` FROM egg_variables WHERE egg_id = ? ORDER BY sort, id`, eggID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []model.VariableDefinition
	for rows.Next() {
		var v model.VariableDefinition
		if err := rows.Scan(&v.ID, &v.EggID, &v.Name, &v.Description, &v.EnvVariable,
			&v.DefaultValue, &v.Rules, &v.UserViewable, &v.UserEditable, &v.Sort); err != nil {
			return nil, err
		}
		defs = append(defs, v)
	}
	return defs, rows.Err()
}
