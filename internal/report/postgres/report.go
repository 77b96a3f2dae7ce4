package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/frahmantamala/attendance-management/internal/report"
	"github.com/jmoiron/sqlx"
)

// ReportRepository reads attendance projections with plain SQL. Queries are
// written with ? placeholders and rebound for the connected driver.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) report.RepositoryAPI {
	return &ReportRepository{db: db}
}

const recordColumns = `
	r.id AS record_id,
	r.user_id,
	r.employee_id,
	COALESCE(e.employee_code, '') AS employee_code,
	COALESCE(e.full_name, '') AS employee_name,
	COALESCE(d.name, '') AS department,
	r.work_date,
	r.first_check_in_time,
	r.check_in_time,
	COALESCE(r.check_in_method, '') AS check_in_method,
	r.check_out_time,
	r.total_hours,
	r.sessions,
	COALESCE(r.status, '') AS status`

const recordJoins = `
	FROM attendance_records r
	LEFT JOIN employees e ON e.id = r.employee_id
	LEFT JOIN departments d ON d.id = e.department_id`

func (r *ReportRepository) ActiveEmployees(ctx context.Context) ([]report.Employee, error) {
	query := r.db.Rebind(`
SELECT
	e.id AS employee_id,
	e.employee_code,
	COALESCE(e.full_name, '') AS employee_name,
	COALESCE(d.name, '') AS department
FROM employees e
LEFT JOIN departments d ON d.id = e.department_id
WHERE e.is_active = ?
ORDER BY e.id`)

	var employees []report.Employee
	if err := r.db.SelectContext(ctx, &employees, query, true); err != nil {
		return nil, fmt.Errorf("select active employees: %w", err)
	}
	return employees, nil
}

func (r *ReportRepository) RecordsBetween(ctx context.Context, from, to string) ([]report.Row, error) {
	query := r.db.Rebind(`SELECT` + recordColumns + recordJoins + `
WHERE r.is_active = ? AND r.work_date >= ? AND r.work_date <= ?
ORDER BY r.work_date, r.id`)

	var rows []report.Row
	if err := r.db.SelectContext(ctx, &rows, query, true, from, to); err != nil {
		return nil, fmt.Errorf("select records %s..%s: %w", from, to, err)
	}
	return rows, nil
}

// likeEscaper makes wildcard characters in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// RecordsByDate matches search case-insensitively against the employee
// name and code. limit <= 0 returns every row.
func (r *ReportRepository) RecordsByDate(ctx context.Context, day, search string, limit, offset int) ([]report.Row, int64, error) {
	where := `
WHERE r.is_active = ? AND r.work_date = ?`
	args := []interface{}{true, day}
	if search != "" {
		where += ` AND (LOWER(e.full_name) LIKE ? ESCAPE '\' OR LOWER(e.employee_code) LIKE ? ESCAPE '\')`
		pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		args = append(args, pattern, pattern)
	}

	var total int64
	countQuery := r.db.Rebind(`SELECT COUNT(*)` + recordJoins + where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count records for %s: %w", day, err)
	}

	query := `SELECT` + recordColumns + recordJoins + where + `
ORDER BY r.check_in_time DESC, r.id DESC`
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	var rows []report.Row
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("select records for %s: %w", day, err)
	}
	return rows, total, nil
}
