package repo

import (
	"context"
	"database/sql"
)

func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, actorID string, now string) error {
	_, err := r.with(tx).ExecContext(ctx, `INSERT OR IGNORE INTO actors(id, created_at) VALUES (?,?)`, actorID, now)
	return err
}

func (r Repo) AssignRole(ctx context.Context, tx *sql.Tx, orgID, actorID, roleID string) error {
	_, err := r.with(tx).ExecContext(ctx, `INSERT OR IGNORE INTO actor_roles(org_id, actor_id, role_id) VALUES (?,?,?)`, orgID, actorID, roleID)
	return err
}

func (r Repo) RevokeRole(ctx context.Context, tx *sql.Tx, orgID, actorID, roleID string) error {
	res, err := r.with(tx).ExecContext(ctx, `DELETE FROM actor_roles WHERE org_id=? AND actor_id=? AND role_id=?`, orgID, actorID, roleID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ActorRoles(ctx context.Context, tx *sql.Tx, orgID, actorID string) ([]string, error) {
	rows, err := r.with(tx).QueryContext(ctx, `SELECT role_id FROM actor_roles WHERE org_id=? AND actor_id=? ORDER BY role_id`, orgID, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
