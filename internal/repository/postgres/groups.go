package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/felag/mailengine/internal/domain"
	"github.com/felag/mailengine/internal/service/groups"
)

// GroupRepo implements groups.Repository against PostgreSQL.
type GroupRepo struct{ db *sql.DB }

// NewGroupRepo creates a Postgres-backed group repository.
func NewGroupRepo(db *sql.DB) *GroupRepo { return &GroupRepo{db: db} }

func (r *GroupRepo) Group(ctx context.Context, id string) (*domain.MemberGroup, error) {
	g := &domain.MemberGroup{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, techname, COALESCE(email,''), combination_method, added
		FROM member_groups
		WHERE id = $1
	`, id).Scan(&g.ID, &g.Name, &g.Techname, &g.Email, &g.Combination, &g.Added)
	if err == sql.ErrNoRows {
		return nil, groups.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if err := r.loadAssociations(ctx, map[string]*domain.MemberGroup{g.ID: g}); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GroupRepo) GroupArena(ctx context.Context) (map[string]*domain.MemberGroup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, techname, COALESCE(email,''), combination_method, added
		FROM member_groups
	`)
	if err != nil {
		return nil, fmt.Errorf("load group arena: %w", err)
	}
	defer rows.Close()

	arena := make(map[string]*domain.MemberGroup)
	for rows.Next() {
		g := &domain.MemberGroup{}
		if err := rows.Scan(&g.ID, &g.Name, &g.Techname, &g.Email, &g.Combination, &g.Added); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		arena[g.ID] = g
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	if err := r.loadAssociations(ctx, arena); err != nil {
		return nil, err
	}
	return arena, nil
}

// loadAssociations fills subgroup and location-code sets for every
// group in the arena with two queries instead of per-group lookups.
func (r *GroupRepo) loadAssociations(ctx context.Context, arena map[string]*domain.MemberGroup) error {
	subRows, err := r.db.QueryContext(ctx, `
		SELECT group_id, subgroup_id FROM member_group_subgroups
	`)
	if err != nil {
		return fmt.Errorf("load subgroups: %w", err)
	}
	defer subRows.Close()
	for subRows.Next() {
		var groupID, subID string
		if err := subRows.Scan(&groupID, &subID); err != nil {
			return fmt.Errorf("scan subgroup row: %w", err)
		}
		if g, ok := arena[groupID]; ok {
			g.AutoSubgroupIDs = append(g.AutoSubgroupIDs, subID)
		}
	}
	if err := subRows.Err(); err != nil {
		return fmt.Errorf("iterate subgroups: %w", err)
	}

	locRows, err := r.db.QueryContext(ctx, `
		SELECT group_id, code FROM member_group_locations
	`)
	if err != nil {
		return fmt.Errorf("load group locations: %w", err)
	}
	defer locRows.Close()
	for locRows.Next() {
		var groupID, code string
		if err := locRows.Scan(&groupID, &code); err != nil {
			return fmt.Errorf("scan group location row: %w", err)
		}
		if g, ok := arena[groupID]; ok {
			g.LocationCodes = append(g.LocationCodes, code)
		}
	}
	if err := locRows.Err(); err != nil {
		return fmt.Errorf("iterate group locations: %w", err)
	}
	return nil
}

func (r *GroupRepo) DirectMembers(ctx context.Context, groupIDs []string) ([]domain.Member, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT m.id, m.ssn, m.name, m.email, m.email_verified, m.consent,
		       COALESCE(m.municipality_code,''), COALESCE(m.postal_code,''),
		       m.token, m.token_issued_at, m.added
		FROM members m
		JOIN member_group_members gm ON gm.member_id = m.id
		WHERE gm.group_id = ANY($1)
	`, pq.Array(groupIDs))
	if err != nil {
		return nil, fmt.Errorf("load direct members: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

func (r *GroupRepo) MembersByLocation(ctx context.Context, codes []string) ([]domain.Member, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	// Member location codes are derived columns; match either prefix form.
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT m.id, m.ssn, m.name, m.email, m.email_verified, m.consent,
		       COALESCE(m.municipality_code,''), COALESCE(m.postal_code,''),
		       m.token, m.token_issued_at, m.added
		FROM members m
		WHERE ('mun:' || m.municipality_code) = ANY($1)
		   OR ('zip:' || m.postal_code) = ANY($1)
	`, pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("load members by location: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

func (r *GroupRepo) LocationArena(ctx context.Context) (map[string]*domain.LocationCode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, name FROM location_codes
	`)
	if err != nil {
		return nil, fmt.Errorf("load location codes: %w", err)
	}
	defer rows.Close()

	arena := make(map[string]*domain.LocationCode)
	for rows.Next() {
		lc := &domain.LocationCode{}
		if err := rows.Scan(&lc.Code, &lc.Name); err != nil {
			return nil, fmt.Errorf("scan location code: %w", err)
		}
		arena[lc.Code] = lc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location codes: %w", err)
	}

	autoRows, err := r.db.QueryContext(ctx, `
		SELECT code, auto_code FROM location_code_autos
	`)
	if err != nil {
		return nil, fmt.Errorf("load location autos: %w", err)
	}
	defer autoRows.Close()
	for autoRows.Next() {
		var code, auto string
		if err := autoRows.Scan(&code, &auto); err != nil {
			return nil, fmt.Errorf("scan location auto row: %w", err)
		}
		if lc, ok := arena[code]; ok {
			lc.AutoCodes = append(lc.AutoCodes, auto)
		}
	}
	if err := autoRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location autos: %w", err)
	}
	return arena, nil
}

// scanMembers drains a member query's rows. The column order is fixed
// across every member query in this package.
func scanMembers(rows *sql.Rows) ([]domain.Member, error) {
	var out []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(
			&m.ID, &m.SSN, &m.Name, &m.Email, &m.EmailVerified, &m.Consent,
			&m.MunicipalityCode, &m.PostalCode,
			&m.Token, &m.TokenIssuedAt, &m.Added,
		); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return out, nil
}
