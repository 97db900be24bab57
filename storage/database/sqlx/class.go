package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core/grade"
	"github.com/fitprize/fitprize/core/school"
)

const classColumns = "id, name, grade, section, school_id, student_count, fitness_minutes, created_at, updated_at"

type classRow struct {
	ID             string    `db:"id"`
	Name           string    `db:"name"`
	Grade          string    `db:"grade"`
	Section        string    `db:"section"`
	SchoolID       string    `db:"school_id"`
	StudentCount   int       `db:"student_count"`
	FitnessMinutes int       `db:"fitness_minutes"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r classRow) class() school.Class {
	return school.Class{
		ID:             r.ID,
		Name:           r.Name,
		Grade:          r.Grade,
		Section:        r.Section,
		SchoolID:       r.SchoolID,
		StudentCount:   r.StudentCount,
		FitnessMinutes: r.FitnessMinutes,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func classes(rows []classRow) []school.Class {
	out := make([]school.Class, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.class())
	}
	return out
}

func (repo *schoolRepository) CreateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	if !validID(cls.SchoolID) {
		return school.Class{}, school.ErrSchoolNotFound
	}
	var row classRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO classes (`+classColumns+`)
		SELECT $1, $2, $3, $4, s.id, $5, $6, $7, $8 FROM schools s WHERE s.id = $9 AND s.deleted_at IS NULL
		RETURNING `+classColumns,
		cls.ID, cls.Name, cls.Grade, cls.Section, cls.StudentCount, cls.FitnessMinutes, cls.CreatedAt.UTC(), cls.UpdatedAt.UTC(),
		cls.SchoolID)
	if err != nil {
		return school.Class{}, trapErr(err, school.ErrSchoolNotFound, "inserting class")
	}
	return row.class(), nil
}

func (repo *schoolRepository) GetClass(ctx context.Context, id string) (school.Class, error) {
	if !validID(id) {
		return school.Class{}, school.ErrClassNotFound
	}
	var row classRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+classColumns+` FROM classes WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return school.Class{}, trapErr(err, school.ErrClassNotFound, "getting class")
	}
	return row.class(), nil
}

func (repo *schoolRepository) GetClasses(ctx context.Context, ids []string) ([]school.Class, error) {
	var rows []classRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+classColumns+` FROM classes WHERE id = ANY($1::uuid[]) AND deleted_at IS NULL`, pq.Array(validIDs(ids)))
	if err != nil {
		return nil, trapErr(err, nil, "getting classes")
	}
	return classes(rows), nil
}

func (repo *schoolRepository) QueryClasses(ctx context.Context, filter school.ClassFilter) ([]school.Class, int, error) {
	var w whereClause
	w.add("deleted_at IS NULL")
	if filter.IDs != nil {
		w.add("id = ANY(?::uuid[])", pq.Array(validIDs(filter.IDs)))
	}
	if filter.SchoolID != "" {
		if !validID(filter.SchoolID) {
			return []school.Class{}, 0, nil
		}
		w.add("school_id = ?", filter.SchoolID)
	}
	if g := grade.Normalize(filter.Grade); g != "" {
		w.add(`LOWER(REGEXP_REPLACE(TRIM(grade), '\s+', ' ', 'g')) = ANY(?)`, pq.Array(gradeSpellings(g)))
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(name ILIKE ? OR section ILIKE ? OR grade ILIKE ?)", pattern, pattern, pattern)
	}

	total, err := count(ctx, repo.db, repo.db.Rebind("SELECT COUNT(*) FROM classes"+w.String()), w.args...)
	if err != nil {
		return nil, 0, err
	}
	filter.Page.Clean()
	var rows []classRow
	q := repo.db.Rebind("SELECT " + classColumns + " FROM classes" + w.String() + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?")
	if err = repo.db.SelectContext(ctx, &rows, q, append(w.args, filter.Page.Limit, filter.Page.Offset())...); err != nil {
		return nil, 0, trapErr(err, nil, "querying classes")
	}
	return classes(rows), total, nil
}

func (repo *schoolRepository) UpdateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	if !validID(cls.ID) {
		return school.Class{}, school.ErrClassNotFound
	}
	// fitness_minutes only moves through AddClassMinutes
	var row classRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE classes SET name = $2, grade = $3, section = $4, student_count = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+classColumns,
		cls.ID, cls.Name, cls.Grade, cls.Section, cls.StudentCount, cls.UpdatedAt.UTC())
	if err != nil {
		return school.Class{}, trapErr(err, school.ErrClassNotFound, "updating class")
	}
	return row.class(), nil
}

func (repo *schoolRepository) DeleteClass(ctx context.Context, id string) error {
	if !validID(id) {
		return school.ErrClassNotFound
	}
	res, err := repo.db.ExecContext(ctx, `UPDATE classes SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return trapErr(err, nil, "deleting class")
	}
	return mustAffect(res, school.ErrClassNotFound)
}

func (repo *schoolRepository) AddClassMinutes(ctx context.Context, classID string, minutes int) (school.Class, error) {
	if !validID(classID) {
		return school.Class{}, school.ErrClassNotFound
	}
	if minutes > school.MaxMinutes {
		return school.Class{}, school.ErrMinutesOverflow
	}
	var row classRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE classes SET fitness_minutes = fitness_minutes + $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL AND fitness_minutes <= $4::integer - $2
		RETURNING `+classColumns, classID, minutes, time.Now().UTC(), school.MaxMinutes)
	if errors.Cause(err) == sql.ErrNoRows {
		// the class is missing or the total would overflow
		if _, err = repo.GetClass(ctx, classID); err != nil {
			return school.Class{}, err
		}
		return school.Class{}, school.ErrMinutesOverflow
	}
	if err != nil {
		return school.Class{}, trapErr(err, nil, "adding class minutes")
	}
	return row.class(), nil
}

// gradeSpellings lists the lowercase spellings that normalize to g ("5th grade": "5", "5th", "5th grade").
func gradeSpellings(g string) []string {
	n := strings.TrimSuffix(g, " grade")
	if n == g {
		return []string{g}
	}
	digits := strings.TrimRight(n, "stndrh")
	return []string{digits, n, g}
}
