package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lazyrag/authplane/internal/core/domain"
)

type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

const selectRole = `
	SELECT r.id, r.name, r.built_in,
	       COALESCE(array_agg(g.name ORDER BY g.name) FILTER (WHERE g.name IS NOT NULL), '{}')
	FROM roles r
	LEFT JOIN role_permission_groups rp ON rp.role_id = r.id
	LEFT JOIN permission_groups g ON g.id = rp.group_id`

func scanRole(row pgx.Row) (*domain.Role, error) {
	var role domain.Role
	if err := row.Scan(&role.ID, &role.Name, &role.BuiltIn, &role.Permissions); err != nil {
		return nil, err
	}
	if role.Permissions == nil {
		role.Permissions = []string{}
	}
	return &role, nil
}

func (r *RoleRepository) Create(ctx context.Context, name string, builtIn bool) (*domain.Role, error) {
	role := &domain.Role{Name: name, BuiltIn: builtIn, Permissions: []string{}}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO roles (name, built_in) VALUES ($1, $2) RETURNING id`, name, builtIn,
	).Scan(&role.ID)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return nil, domain.ErrRoleExists
		}
		return nil, fmt.Errorf("insert role: %w", err)
	}
	return role, nil
}

func (r *RoleRepository) FindByID(ctx context.Context, id int64) (*domain.Role, error) {
	return r.findOne(ctx, selectRole+` WHERE r.id = $1 GROUP BY r.id`, id)
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.findOne(ctx, selectRole+` WHERE r.name = $1 GROUP BY r.id`, name)
}

func (r *RoleRepository) findOne(ctx context.Context, query string, arg any) (*domain.Role, error) {
	role, err := scanRole(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return role, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]*domain.Role, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, selectRole+` GROUP BY r.id ORDER BY r.name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	out := []*domain.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (r *RoleRepository) Delete(ctx context.Context, id int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return domain.ErrRoleInUse
		}
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoleNotFound
	}
	return nil
}

func (r *RoleRepository) Permissions(ctx context.Context, roleID int64) ([]string, error) {
	role, err := r.FindByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return role.Permissions, nil
}

func (r *RoleRepository) SetPermissions(ctx context.Context, roleID int64, groups []string) error {
	return WithTx(ctx, r.pool, pgx.TxOptions{}, func(ctx context.Context) error {
		if err := r.exists(ctx, roleID); err != nil {
			return err
		}
		if _, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM role_permission_groups WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("clear role permissions: %w", err)
		}
		return r.grant(ctx, roleID, groups)
	})
}

func (r *RoleRepository) Grant(ctx context.Context, roleID int64, groups []string) error {
	if err := r.exists(ctx, roleID); err != nil {
		return err
	}
	return r.grant(ctx, roleID, groups)
}

// grant links roleID to every named group that exists; unknown names are skipped.
func (r *RoleRepository) grant(ctx context.Context, roleID int64, groups []string) error {
	if len(groups) == 0 {
		return nil
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO role_permission_groups (role_id, group_id)
		SELECT $1, id FROM permission_groups WHERE name = ANY($2)
		ON CONFLICT DO NOTHING`, roleID, groups)
	if err != nil {
		return fmt.Errorf("grant role permissions: %w", err)
	}
	return nil
}

func (r *RoleRepository) exists(ctx context.Context, roleID int64) error {
	var one int
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT 1 FROM roles WHERE id = $1`, roleID).Scan(&one)
	if noRows(err) {
		return domain.ErrRoleNotFound
	}
	if err != nil {
		return fmt.Errorf("find role: %w", err)
	}
	return nil
}

func (r *RoleRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT count(*) FROM roles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count roles: %w", err)
	}
	return n, nil
}

type PermissionGroupRepository struct {
	pool *pgxpool.Pool
}

func NewPermissionGroupRepository(pool *pgxpool.Pool) *PermissionGroupRepository {
	return &PermissionGroupRepository{pool: pool}
}

func (r *PermissionGroupRepository) List(ctx context.Context) ([]*domain.PermissionGroup, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT id, name FROM permission_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list permission groups: %w", err)
	}
	defer rows.Close()

	out := []*domain.PermissionGroup{}
	for rows.Next() {
		var g domain.PermissionGroup
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan permission group: %w", err)
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

func (r *PermissionGroupRepository) Ensure(ctx context.Context, name string) (*domain.PermissionGroup, error) {
	g := &domain.PermissionGroup{Name: name}
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO permission_groups (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, name).Scan(&g.ID)
	if err != nil {
		return nil, fmt.Errorf("ensure permission group: %w", err)
	}
	return g, nil
}
