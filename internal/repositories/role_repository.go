package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

type RoleRepository struct {
	DB *pgxpool.Pool
}

func NewRoleRepository(db *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{DB: db}
}

func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return classify(err, "role")
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		"INSERT INTO roles (theater_id, name, is_default) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at",
		role.TheaterID, role.Name, role.IsDefault).
		Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return classify(err, "role")
	}

	for i := range role.Permissions {
		p := &role.Permissions[i]
		p.RoleID = role.ID
		err = tx.QueryRow(ctx,
			"INSERT INTO role_permissions (role_id, page, can_view, can_write) VALUES ($1, $2, $3, $4) RETURNING id",
			p.RoleID, p.Page, p.CanView, p.CanWrite).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to insert permission: %w", classify(err, "permission"))
		}
	}

	return classify(tx.Commit(ctx), "role")
}

func (r *RoleRepository) Get(ctx context.Context, id int) (*models.Role, error) {
	var role models.Role
	err := r.DB.QueryRow(ctx,
		"SELECT id, theater_id, name, is_default, created_at, updated_at FROM roles WHERE id = $1", id).
		Scan(&role.ID, &role.TheaterID, &role.Name, &role.IsDefault, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, classify(err, "role")
	}

	perms, err := r.loadPermissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return &role, nil
}

func (r *RoleRepository) List(ctx context.Context, theaterID int) ([]*models.Role, error) {
	rows, err := r.DB.Query(ctx,
		"SELECT id, theater_id, name, is_default, created_at, updated_at FROM roles WHERE theater_id = $1 ORDER BY name",
		theaterID)
	if err != nil {
		return nil, classify(err, "role")
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.TheaterID, &role.Name, &role.IsDefault,
			&role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, classify(err, "role")
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "role")
	}

	for _, role := range roles {
		perms, err := r.loadPermissions(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}
	return roles, nil
}

func (r *RoleRepository) loadPermissions(ctx context.Context, roleID int) ([]models.PagePermission, error) {
	rows, err := r.DB.Query(ctx,
		"SELECT id, role_id, page, can_view, can_write FROM role_permissions WHERE role_id = $1 ORDER BY page",
		roleID)
	if err != nil {
		return nil, classify(err, "permission")
	}
	defer rows.Close()

	var perms []models.PagePermission
	for rows.Next() {
		var p models.PagePermission
		if err := rows.Scan(&p.ID, &p.RoleID, &p.Page, &p.CanView, &p.CanWrite); err != nil {
			return nil, classify(err, "permission")
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *RoleRepository) Update(ctx context.Context, role *models.Role) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return classify(err, "role")
	}
	defer tx.Rollback(ctx)

	// Default roles keep their name
	tag, err := tx.Exec(ctx,
		"UPDATE roles SET name = CASE WHEN is_default THEN name ELSE $1 END, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		role.Name, role.ID)
	if err != nil {
		return classify(err, "role")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("role")
	}

	if _, err := tx.Exec(ctx, "DELETE FROM role_permissions WHERE role_id = $1", role.ID); err != nil {
		return classify(err, "permission")
	}
	for i := range role.Permissions {
		p := &role.Permissions[i]
		p.RoleID = role.ID
		err = tx.QueryRow(ctx,
			"INSERT INTO role_permissions (role_id, page, can_view, can_write) VALUES ($1, $2, $3, $4) RETURNING id",
			p.RoleID, p.Page, p.CanView, p.CanWrite).Scan(&p.ID)
		if err != nil {
			return classify(err, "permission")
		}
	}

	return classify(tx.Commit(ctx), "role")
}

// Delete refuses to remove default roles
func (r *RoleRepository) Delete(ctx context.Context, id int) error {
	var isDefault bool
	err := r.DB.QueryRow(ctx, "SELECT is_default FROM roles WHERE id = $1", id).Scan(&isDefault)
	if err != nil {
		return classify(err, "role")
	}
	if isDefault {
		return models.NewConflictError("default role cannot be deleted")
	}

	tag, err := r.DB.Exec(ctx, "DELETE FROM roles WHERE id = $1", id)
	if err != nil {
		return classify(err, "role")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("role")
	}
	return nil
}
