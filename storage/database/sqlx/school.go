package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/core/user"
)

const (
	schoolColumns  = "id, name, address, phone, email, status, created_at, updated_at"
	teacherColumns = "id, name, email, password_hash, phone, signup_code, grade, student_count, school_id, status, created_at, updated_at"
)

var errSignupCodeTaken = errors.New("signup code already in use")

type schoolRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Address   string    `db:"address"`
	Phone     string    `db:"phone"`
	Email     string    `db:"email"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r schoolRow) school() school.School {
	return school.School{
		ID:        r.ID,
		Name:      r.Name,
		Address:   r.Address,
		Phone:     r.Phone,
		Email:     r.Email,
		Status:    r.Status,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type teacherRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	PasswordHash []byte      `db:"password_hash"`
	Phone        string      `db:"phone"`
	SignupCode   null.String `db:"signup_code"`
	Grade        string      `db:"grade"`
	StudentCount int         `db:"student_count"`
	SchoolID     null.String `db:"school_id"`
	Status       string      `db:"status"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func toTeacherRow(t school.Teacher) teacherRow {
	return teacherRow{
		ID:           t.ID,
		Name:         t.Name,
		Email:        t.Email,
		PasswordHash: t.PasswordHash,
		Phone:        t.Phone,
		SignupCode:   null.NewString(t.SignupCode, t.SignupCode != ""),
		Grade:        t.Grade,
		StudentCount: t.StudentCount,
		SchoolID:     null.NewString(t.SchoolID, t.SchoolID != ""),
		Status:       t.Status,
		CreatedAt:    t.CreatedAt.UTC(),
		UpdatedAt:    t.UpdatedAt.UTC(),
	}
}

func (r teacherRow) teacher() school.Teacher {
	return school.Teacher{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Phone:        r.Phone,
		SignupCode:   r.SignupCode.String,
		Grade:        r.Grade,
		StudentCount: r.StudentCount,
		SchoolID:     r.SchoolID.String,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		ClassIDs:     []string{},
	}
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

// Schools

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School, admin user.User) (school.School, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schools (`+schoolColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			sch.ID, sch.Name, sch.Address, sch.Phone, sch.Email, sch.Status, sch.CreatedAt.UTC(), sch.UpdatedAt.UTC())
		if isPQError(err, uniqueViolation) {
			return school.ErrEmailExists
		}
		if err != nil {
			return trapErr(err, nil, "inserting school")
		}
		admin.SchoolID = sch.ID
		return insertUser(ctx, tx, admin)
	})
	if err != nil {
		return school.School{}, err
	}
	return sch, nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, id string) (school.School, error) {
	if !validID(id) {
		return school.School{}, school.ErrSchoolNotFound
	}
	var row schoolRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+schoolColumns+` FROM schools WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return school.School{}, trapErr(err, school.ErrSchoolNotFound, "getting school")
	}
	return row.school(), nil
}

func (repo *schoolRepository) QuerySchools(ctx context.Context, filter school.SchoolFilter) ([]school.School, int, error) {
	var w whereClause
	w.add("deleted_at IS NULL")
	if filter.IDs != nil {
		w.add("id = ANY(?::uuid[])", pq.Array(validIDs(filter.IDs)))
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(name ILIKE ? OR email ILIKE ? OR address ILIKE ?)", pattern, pattern, pattern)
	}

	total, err := count(ctx, repo.db, repo.db.Rebind("SELECT COUNT(*) FROM schools"+w.String()), w.args...)
	if err != nil {
		return nil, 0, err
	}
	filter.Page.Clean()
	var rows []schoolRow
	q := repo.db.Rebind("SELECT " + schoolColumns + " FROM schools" + w.String() + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?")
	if err = repo.db.SelectContext(ctx, &rows, q, append(w.args, filter.Page.Limit, filter.Page.Offset())...); err != nil {
		return nil, 0, trapErr(err, nil, "querying schools")
	}

	schools := make([]school.School, 0, len(rows))
	for _, r := range rows {
		schools = append(schools, r.school())
	}
	return schools, total, nil
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	if !validID(sch.ID) {
		return school.School{}, school.ErrSchoolNotFound
	}
	var row schoolRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE schools SET name = $2, address = $3, phone = $4, email = $5, status = $6, updated_at = $7
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+schoolColumns,
		sch.ID, sch.Name, sch.Address, sch.Phone, sch.Email, sch.Status, sch.UpdatedAt.UTC())
	if isPQError(err, uniqueViolation) {
		return school.School{}, school.ErrEmailExists
	}
	if err != nil {
		return school.School{}, trapErr(err, school.ErrSchoolNotFound, "updating school")
	}
	return row.school(), nil
}

func (repo *schoolRepository) DeleteSchool(ctx context.Context, id string) error {
	if !validID(id) {
		return school.ErrSchoolNotFound
	}
	now := time.Now().UTC()
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE schools SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`, now, id)
		if err != nil {
			return trapErr(err, nil, "deleting school")
		}
		if err = mustAffect(res, school.ErrSchoolNotFound); err != nil {
			return err
		}
		for _, table := range []string{"earned_prizes", "prizes", "grade_groups", "classes", "teachers", "users"} {
			q := `UPDATE ` + table + ` SET deleted_at = $1 WHERE school_id = $2 AND deleted_at IS NULL`
			if _, err = tx.ExecContext(ctx, q, now, id); err != nil {
				return trapErr(err, nil, "deleting school "+table)
			}
		}
		return nil
	})
}

func (repo *schoolRepository) SchoolEmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM schools WHERE email = $1 AND deleted_at IS NULL AND NOT (id = ANY($2::uuid[])))`
	if err := repo.db.GetContext(ctx, &exists, q, email, pq.Array(validIDs(excludedIDs))); err != nil {
		return false, trapErr(err, nil, "checking school email")
	}
	return exists, nil
}

// Teachers

// teacherClassIDs returns the non-deleted linked classes of each teacher, in link order.
func (repo *schoolRepository) teacherClassIDs(ctx context.Context, teacherIDs []string) (map[string][]string, error) {
	var links []struct {
		TeacherID string `db:"teacher_id"`
		ClassID   string `db:"class_id"`
	}
	err := repo.db.SelectContext(ctx, &links, `
		SELECT ct.teacher_id, ct.class_id
		FROM class_teachers ct
		JOIN classes c ON c.id = ct.class_id AND c.deleted_at IS NULL
		WHERE ct.teacher_id = ANY($1::uuid[])
		ORDER BY ct.created_at, ct.id`, pq.Array(validIDs(teacherIDs)))
	if err != nil {
		return nil, trapErr(err, nil, "loading teacher classes")
	}
	ids := make(map[string][]string, len(teacherIDs))
	for _, l := range links {
		ids[l.TeacherID] = append(ids[l.TeacherID], l.ClassID)
	}
	return ids, nil
}

func (repo *schoolRepository) withClassIDs(ctx context.Context, teachers ...school.Teacher) ([]school.Teacher, error) {
	teacherIDs := make([]string, 0, len(teachers))
	for _, t := range teachers {
		teacherIDs = append(teacherIDs, t.ID)
	}
	ids, err := repo.teacherClassIDs(ctx, teacherIDs)
	if err != nil {
		return nil, err
	}
	for i := range teachers {
		if classIDs, ok := ids[teachers[i].ID]; ok {
			teachers[i].ClassIDs = classIDs
		}
	}
	return teachers, nil
}

func teacherWriteErr(err error, msg string) error {
	if isPQError(err, uniqueViolation) {
		return errSignupCodeTaken
	}
	return trapErr(err, school.ErrTeacherNotFound, msg)
}

func (repo *schoolRepository) CreateTeacher(ctx context.Context, tchr school.Teacher) (school.Teacher, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO teachers (`+teacherColumns+`)
			VALUES (:id, :name, :email, :password_hash, :phone, :signup_code, :grade, :student_count, :school_id, :status,
				:created_at, :updated_at)`, toTeacherRow(tchr))
		if err != nil {
			return teacherWriteErr(err, "inserting teacher")
		}
		return replaceLinks(ctx, tx, "teacher_id", tchr.ID, tchr.ClassIDs, func(classID string) (string, string) {
			return classID, tchr.ID
		})
	})
	if err != nil {
		return school.Teacher{}, err
	}
	return repo.GetTeacher(ctx, school.TeacherGetFilter{ID: tchr.ID})
}

func (repo *schoolRepository) GetTeacher(ctx context.Context, filter school.TeacherGetFilter) (school.Teacher, error) {
	var w whereClause
	w.add("deleted_at IS NULL")
	if filter.ID != "" {
		if !validID(filter.ID) {
			return school.Teacher{}, school.ErrTeacherNotFound
		}
		w.add("id = ?", filter.ID)
	}
	if filter.Email != "" {
		w.add("email = ?", filter.Email)
	}
	if filter.SignupCode != "" {
		w.add("signup_code = ?", filter.SignupCode)
	}
	if len(w.conds) == 1 {
		return school.Teacher{}, school.ErrTeacherNotFound
	}

	var row teacherRow
	q := repo.db.Rebind("SELECT " + teacherColumns + " FROM teachers" + w.String() + " ORDER BY created_at LIMIT 1")
	if err := repo.db.GetContext(ctx, &row, q, w.args...); err != nil {
		return school.Teacher{}, trapErr(err, school.ErrTeacherNotFound, "getting teacher")
	}
	teachers, err := repo.withClassIDs(ctx, row.teacher())
	if err != nil {
		return school.Teacher{}, err
	}
	return teachers[0], nil
}

func (repo *schoolRepository) QueryTeachers(ctx context.Context, filter school.TeacherFilter) ([]school.Teacher, int, error) {
	var w whereClause
	w.add("deleted_at IS NULL")
	if filter.Unassigned {
		w.add("school_id IS NULL")
	}
	if filter.SchoolID != "" {
		if !validID(filter.SchoolID) {
			return []school.Teacher{}, 0, nil
		}
		w.add("school_id = ?", filter.SchoolID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(name ILIKE ? OR email ILIKE ?)", pattern, pattern)
	}

	total, err := count(ctx, repo.db, repo.db.Rebind("SELECT COUNT(*) FROM teachers"+w.String()), w.args...)
	if err != nil {
		return nil, 0, err
	}
	filter.Page.Clean()
	var rows []teacherRow
	q := repo.db.Rebind("SELECT " + teacherColumns + " FROM teachers" + w.String() + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?")
	if err = repo.db.SelectContext(ctx, &rows, q, append(w.args, filter.Page.Limit, filter.Page.Offset())...); err != nil {
		return nil, 0, trapErr(err, nil, "querying teachers")
	}

	teachers := make([]school.Teacher, 0, len(rows))
	for _, r := range rows {
		teachers = append(teachers, r.teacher())
	}
	if teachers, err = repo.withClassIDs(ctx, teachers...); err != nil {
		return nil, 0, err
	}
	return teachers, total, nil
}

func (repo *schoolRepository) UpdateTeacher(ctx context.Context, tchr school.Teacher) (school.Teacher, error) {
	if !validID(tchr.ID) {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	q, args, err := sqlx.Named(`
		UPDATE teachers
		SET name = :name, email = :email, password_hash = :password_hash, phone = :phone, signup_code = :signup_code,
			grade = :grade, student_count = :student_count, school_id = :school_id, status = :status, updated_at = :updated_at
		WHERE id = :id AND deleted_at IS NULL
		RETURNING `+teacherColumns, toTeacherRow(tchr))
	if err != nil {
		return school.Teacher{}, err
	}
	var row teacherRow
	if err = repo.db.GetContext(ctx, &row, repo.db.Rebind(q), args...); err != nil {
		return school.Teacher{}, teacherWriteErr(err, "updating teacher")
	}
	teachers, err := repo.withClassIDs(ctx, row.teacher())
	if err != nil {
		return school.Teacher{}, err
	}
	return teachers[0], nil
}

func (repo *schoolRepository) DeleteTeacher(ctx context.Context, id string) error {
	if !validID(id) {
		return school.ErrTeacherNotFound
	}
	res, err := repo.db.ExecContext(ctx, `UPDATE teachers SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return trapErr(err, nil, "deleting teacher")
	}
	return mustAffect(res, school.ErrTeacherNotFound)
}

func (repo *schoolRepository) TeacherEmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM teachers WHERE email = $1 AND deleted_at IS NULL AND NOT (id = ANY($2::uuid[])))`
	if err := repo.db.GetContext(ctx, &exists, q, email, pq.Array(validIDs(excludedIDs))); err != nil {
		return false, trapErr(err, nil, "checking teacher email")
	}
	return exists, nil
}

func (repo *schoolRepository) SignupCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM teachers WHERE signup_code = $1 AND deleted_at IS NULL)`
	if err := repo.db.GetContext(ctx, &exists, q, code); err != nil {
		return false, trapErr(err, nil, "checking signup code")
	}
	return exists, nil
}

// Class-teacher links

// replaceLinks replaces the links owned by `ownerCol = ownerID` with one link per id, keeping the date of links that remain.
// pair maps an id to its (class_id, teacher_id).
func replaceLinks(ctx context.Context, tx *sqlx.Tx, ownerCol, ownerID string, ids []string, pair func(id string) (string, string)) error {
	ids = validIDs(ids)
	_, err := tx.ExecContext(ctx,
		`DELETE FROM class_teachers WHERE `+ownerCol+` = $1 AND NOT (`+otherCol(ownerCol)+` = ANY($2::uuid[]))`,
		ownerID, pq.Array(ids))
	if err != nil {
		return trapErr(err, nil, "unlinking class teachers")
	}

	now := time.Now().UTC()
	for i, id := range ids {
		classID, teacherID := pair(id)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO class_teachers (id, class_id, teacher_id, created_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (class_id, teacher_id) DO NOTHING`,
			newID(), classID, teacherID, now.Add(time.Duration(i)*time.Microsecond))
		if isPQError(err, fkViolation) {
			return school.ErrClassNotFound
		}
		if err != nil {
			return trapErr(err, nil, "linking class teachers")
		}
	}
	return nil
}

func otherCol(col string) string {
	if col == "class_id" {
		return "teacher_id"
	}
	return "class_id"
}

func (repo *schoolRepository) SetTeacherClasses(ctx context.Context, teacherID string, classIDs []string) error {
	if !validID(teacherID) {
		return school.ErrTeacherNotFound
	}
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		return replaceLinks(ctx, tx, "teacher_id", teacherID, classIDs, func(classID string) (string, string) {
			return classID, teacherID
		})
	})
}

func (repo *schoolRepository) SetClassTeachers(ctx context.Context, classID string, teacherIDs []string) error {
	if !validID(classID) {
		return school.ErrClassNotFound
	}
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		return replaceLinks(ctx, tx, "class_id", classID, teacherIDs, func(teacherID string) (string, string) {
			return classID, teacherID
		})
	})
}

func (repo *schoolRepository) ClassTeacherLinks(ctx context.Context, classID string) ([]school.TeacherLink, error) {
	if !validID(classID) {
		return []school.TeacherLink{}, nil
	}
	var rows []struct {
		TeacherID string    `db:"teacher_id"`
		Name      string    `db:"name"`
		Deleted   bool      `db:"deleted"`
		LinkedAt  time.Time `db:"created_at"`
	}
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT ct.teacher_id, t.name, t.deleted_at IS NOT NULL AS deleted, ct.created_at
		FROM class_teachers ct
		JOIN teachers t ON t.id = ct.teacher_id
		WHERE ct.class_id = $1
		ORDER BY ct.created_at, ct.id`, classID)
	if err != nil {
		return nil, trapErr(err, nil, "loading class teachers")
	}
	links := make([]school.TeacherLink, 0, len(rows))
	for _, r := range rows {
		links = append(links, school.TeacherLink{
			TeacherID:      r.TeacherID,
			TeacherName:    r.Name,
			TeacherDeleted: r.Deleted,
			LinkedAt:       r.LinkedAt.UTC(),
		})
	}
	return links, nil
}

func (repo *schoolRepository) TeacherClassIDs(ctx context.Context, teacherID string) ([]string, error) {
	ids, err := repo.teacherClassIDs(ctx, []string{teacherID})
	if err != nil {
		return nil, err
	}
	if classIDs, ok := ids[teacherID]; ok {
		return classIDs, nil
	}
	return []string{}, nil
}

// Stats

func (repo *schoolRepository) CountSchools(ctx context.Context, status string) (int, error) {
	return count(ctx, repo.db, `SELECT COUNT(*) FROM schools WHERE deleted_at IS NULL AND ($1 = '' OR status = $1)`, status)
}

func (repo *schoolRepository) CountTeachers(ctx context.Context, schoolID, status string) (int, error) {
	return count(ctx, repo.db, `
		SELECT COUNT(*) FROM teachers
		WHERE deleted_at IS NULL AND ($1 = '' OR school_id::text = $1) AND ($2 = '' OR status = $2)`, schoolID, status)
}

func (repo *schoolRepository) CountClasses(ctx context.Context, schoolID string) (int, error) {
	return count(ctx, repo.db, `SELECT COUNT(*) FROM classes WHERE deleted_at IS NULL AND ($1 = '' OR school_id::text = $1)`, schoolID)
}

func (repo *schoolRepository) SumStudents(ctx context.Context, schoolID string) (int, error) {
	return count(ctx, repo.db, `
		SELECT COALESCE(SUM(student_count), 0) FROM classes
		WHERE deleted_at IS NULL AND ($1 = '' OR school_id::text = $1)`, schoolID)
}
