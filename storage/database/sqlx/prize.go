package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/fitprize/fitprize/core/school"
)

const (
	gradeGroupColumns  = "g.id, g.name, g.label, g.grades, g.school_id, g.created_at, g.updated_at"
	prizeColumns       = "p.id, p.name, p.description, p.minutes_required, p.icon, p.grade_group_id, p.school_id, p.created_at, p.updated_at, g.name AS grade_group_name"
	earnedPrizeColumns = "e.id, e.prize_id, e.class_id, e.school_id, e.delivered, e.earned_at, e.created_at, e.updated_at, p.name AS prize_name, p.icon AS prize_icon, c.name AS class_name"

	prizeFrom       = " FROM prizes p JOIN grade_groups g ON g.id = p.grade_group_id"
	earnedPrizeFrom = " FROM earned_prizes e JOIN prizes p ON p.id = e.prize_id JOIN classes c ON c.id = e.class_id"
)

// schoolScope adds the school scoping of grade groups and prizes: one school, or every school when empty,
// and the records without a school only when includeOrphans is set.
func schoolScope(w *whereClause, col, schoolID string, includeOrphans bool) {
	switch {
	case schoolID != "" && includeOrphans:
		w.add("("+col+" = ? OR "+col+" IS NULL)", schoolID)
	case schoolID != "":
		w.add(col+" = ?", schoolID)
	case !includeOrphans:
		w.add(col + " IS NOT NULL")
	}
}

// Grade groups

type gradeGroupRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Label     string      `db:"label"`
	Grades    null.String `db:"grades"`
	SchoolID  null.String `db:"school_id"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r gradeGroupRow) gradeGroup() school.GradeGroup {
	return school.GradeGroup{
		ID:        r.ID,
		Name:      r.Name,
		Label:     r.Label,
		Grades:    r.Grades.String,
		SchoolID:  r.SchoolID.String,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
		ClassIDs:  []string{},
	}
}

func (repo *schoolRepository) withMembers(ctx context.Context, rows ...gradeGroupRow) ([]school.GradeGroup, error) {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var members []struct {
		GradeGroupID string `db:"grade_group_id"`
		ClassID      string `db:"class_id"`
	}
	err := repo.db.SelectContext(ctx, &members, `
		SELECT gc.grade_group_id, gc.class_id
		FROM grade_group_classes gc
		JOIN classes c ON c.id = gc.class_id AND c.deleted_at IS NULL
		WHERE gc.grade_group_id = ANY($1::uuid[])
		ORDER BY c.created_at, c.id`, pq.Array(ids))
	if err != nil {
		return nil, trapErr(err, nil, "loading grade group classes")
	}
	byGroup := make(map[string][]string, len(rows))
	for _, m := range members {
		byGroup[m.GradeGroupID] = append(byGroup[m.GradeGroupID], m.ClassID)
	}

	groups := make([]school.GradeGroup, 0, len(rows))
	for _, r := range rows {
		grp := r.gradeGroup()
		if classIDs, ok := byGroup[r.ID]; ok {
			grp.ClassIDs = classIDs
		}
		groups = append(groups, grp)
	}
	return groups, nil
}

func setMembers(ctx context.Context, tx *sqlx.Tx, groupID string, classIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM grade_group_classes WHERE grade_group_id = $1`, groupID); err != nil {
		return trapErr(err, nil, "clearing grade group classes")
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO grade_group_classes (grade_group_id, class_id)
		SELECT $1, c.id FROM classes c WHERE c.id = ANY($2::uuid[]) AND c.deleted_at IS NULL
		ON CONFLICT DO NOTHING`, groupID, pq.Array(validIDs(classIDs)))
	return trapErr(err, nil, "setting grade group classes")
}

func (repo *schoolRepository) getGradeGroup(ctx context.Context, id string) (school.GradeGroup, error) {
	if !validID(id) {
		return school.GradeGroup{}, school.ErrGradeGroupNotFound
	}
	var row gradeGroupRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+gradeGroupColumns+` FROM grade_groups g WHERE g.id = $1 AND g.deleted_at IS NULL`, id)
	if err != nil {
		return school.GradeGroup{}, trapErr(err, school.ErrGradeGroupNotFound, "getting grade group")
	}
	groups, err := repo.withMembers(ctx, row)
	if err != nil {
		return school.GradeGroup{}, err
	}
	return groups[0], nil
}

func (repo *schoolRepository) CreateGradeGroup(ctx context.Context, grp school.GradeGroup) (school.GradeGroup, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO grade_groups (id, name, label, grades, school_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			grp.ID, grp.Name, grp.Label, null.NewString(grp.Grades, grp.Grades != ""),
			null.NewString(grp.SchoolID, grp.SchoolID != ""), grp.CreatedAt.UTC(), grp.UpdatedAt.UTC())
		if isPQError(err, fkViolation) {
			return school.ErrSchoolNotFound
		}
		if err != nil {
			return trapErr(err, nil, "inserting grade group")
		}
		return setMembers(ctx, tx, grp.ID, grp.ClassIDs)
	})
	if err != nil {
		return school.GradeGroup{}, err
	}
	return repo.getGradeGroup(ctx, grp.ID)
}

func (repo *schoolRepository) GetGradeGroup(ctx context.Context, id string) (school.GradeGroup, error) {
	return repo.getGradeGroup(ctx, id)
}

func (repo *schoolRepository) QueryGradeGroups(ctx context.Context, filter school.GradeGroupFilter) ([]school.GradeGroup, error) {
	var w whereClause
	w.add("g.deleted_at IS NULL")
	if filter.SchoolID != "" && !validID(filter.SchoolID) {
		if !filter.IncludeOrphans {
			return []school.GradeGroup{}, nil
		}
		w.add("g.school_id IS NULL")
	} else {
		schoolScope(&w, "g.school_id", filter.SchoolID, filter.IncludeOrphans)
	}

	var rows []gradeGroupRow
	q := repo.db.Rebind("SELECT " + gradeGroupColumns + " FROM grade_groups g" + w.String() + " ORDER BY g.created_at, g.id")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, trapErr(err, nil, "querying grade groups")
	}
	return repo.withMembers(ctx, rows...)
}

func (repo *schoolRepository) UpdateGradeGroup(ctx context.Context, grp school.GradeGroup) (school.GradeGroup, error) {
	if !validID(grp.ID) {
		return school.GradeGroup{}, school.ErrGradeGroupNotFound
	}
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE grade_groups SET name = $2, label = $3, grades = $4, updated_at = $5
			WHERE id = $1 AND deleted_at IS NULL`,
			grp.ID, grp.Name, grp.Label, null.NewString(grp.Grades, grp.Grades != ""), grp.UpdatedAt.UTC())
		if err != nil {
			return trapErr(err, nil, "updating grade group")
		}
		if err = mustAffect(res, school.ErrGradeGroupNotFound); err != nil {
			return err
		}
		return setMembers(ctx, tx, grp.ID, grp.ClassIDs)
	})
	if err != nil {
		return school.GradeGroup{}, err
	}
	return repo.getGradeGroup(ctx, grp.ID)
}

func (repo *schoolRepository) DeleteGradeGroup(ctx context.Context, id string) error {
	if !validID(id) {
		return school.ErrGradeGroupNotFound
	}
	now := time.Now().UTC()
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE grade_groups SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`, now, id)
		if err != nil {
			return trapErr(err, nil, "deleting grade group")
		}
		if err = mustAffect(res, school.ErrGradeGroupNotFound); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE prizes SET deleted_at = $1 WHERE grade_group_id = $2 AND deleted_at IS NULL`, now, id)
		return trapErr(err, nil, "deleting grade group prizes")
	})
}

// Prizes

type prizeRow struct {
	ID              string      `db:"id"`
	Name            string      `db:"name"`
	Description     string      `db:"description"`
	MinutesRequired int         `db:"minutes_required"`
	Icon            string      `db:"icon"`
	GradeGroupID    string      `db:"grade_group_id"`
	SchoolID        null.String `db:"school_id"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
	GradeGroupName  string      `db:"grade_group_name"`
}

func (r prizeRow) prize() school.Prize {
	return school.Prize{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		MinutesRequired: r.MinutesRequired,
		Icon:            r.Icon,
		GradeGroupID:    r.GradeGroupID,
		SchoolID:        r.SchoolID.String,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		GradeGroupName:  r.GradeGroupName,
	}
}

func prizes(rows []prizeRow) []school.Prize {
	out := make([]school.Prize, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.prize())
	}
	return out
}

const ladderOrder = " ORDER BY p.minutes_required, p.created_at, p.id"

func (repo *schoolRepository) CreatePrize(ctx context.Context, prz school.Prize) (school.Prize, error) {
	if !validID(prz.GradeGroupID) {
		return school.Prize{}, school.ErrGradeGroupNotFound
	}
	res, err := repo.db.ExecContext(ctx, `
		INSERT INTO prizes (id, name, description, minutes_required, icon, grade_group_id, school_id, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, g.id, $6, $7, $8 FROM grade_groups g WHERE g.id = $9 AND g.deleted_at IS NULL`,
		prz.ID, prz.Name, prz.Description, prz.MinutesRequired, prz.Icon, null.NewString(prz.SchoolID, prz.SchoolID != ""),
		prz.CreatedAt.UTC(), prz.UpdatedAt.UTC(), prz.GradeGroupID)
	if err != nil {
		return school.Prize{}, trapErr(err, nil, "inserting prize")
	}
	if err = mustAffect(res, school.ErrGradeGroupNotFound); err != nil {
		return school.Prize{}, err
	}
	return repo.GetPrize(ctx, prz.ID)
}

func (repo *schoolRepository) GetPrize(ctx context.Context, id string) (school.Prize, error) {
	if !validID(id) {
		return school.Prize{}, school.ErrPrizeNotFound
	}
	var row prizeRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+prizeColumns+prizeFrom+` WHERE p.id = $1 AND p.deleted_at IS NULL`, id)
	if err != nil {
		return school.Prize{}, trapErr(err, school.ErrPrizeNotFound, "getting prize")
	}
	return row.prize(), nil
}

func (repo *schoolRepository) QueryPrizes(ctx context.Context, filter school.PrizeFilter) ([]school.Prize, int, error) {
	var w whereClause
	w.add("p.deleted_at IS NULL")
	if filter.SchoolID != "" && !validID(filter.SchoolID) {
		if !filter.IncludeOrphans {
			return []school.Prize{}, 0, nil
		}
		w.add("p.school_id IS NULL")
	} else {
		schoolScope(&w, "p.school_id", filter.SchoolID, filter.IncludeOrphans)
	}
	if filter.GradeGroupIDs != nil {
		w.add("p.grade_group_id = ANY(?::uuid[])", pq.Array(validIDs(filter.GradeGroupIDs)))
	}

	total, err := count(ctx, repo.db, repo.db.Rebind("SELECT COUNT(*)"+prizeFrom+w.String()), w.args...)
	if err != nil {
		return nil, 0, err
	}
	filter.Page.Clean()
	var rows []prizeRow
	q := repo.db.Rebind("SELECT " + prizeColumns + prizeFrom + w.String() + ladderOrder + " LIMIT ? OFFSET ?")
	if err = repo.db.SelectContext(ctx, &rows, q, append(w.args, filter.Page.Limit, filter.Page.Offset())...); err != nil {
		return nil, 0, trapErr(err, nil, "querying prizes")
	}
	return prizes(rows), total, nil
}

func (repo *schoolRepository) UpdatePrize(ctx context.Context, prz school.Prize) (school.Prize, error) {
	if !validID(prz.ID) || !validID(prz.GradeGroupID) {
		return school.Prize{}, school.ErrPrizeNotFound
	}
	res, err := repo.db.ExecContext(ctx, `
		UPDATE prizes SET name = $2, description = $3, minutes_required = $4, icon = $5, grade_group_id = $6, updated_at = $7
		WHERE id = $1 AND deleted_at IS NULL`,
		prz.ID, prz.Name, prz.Description, prz.MinutesRequired, prz.Icon, prz.GradeGroupID, prz.UpdatedAt.UTC())
	if isPQError(err, fkViolation) {
		return school.Prize{}, school.ErrGradeGroupNotFound
	}
	if err != nil {
		return school.Prize{}, trapErr(err, nil, "updating prize")
	}
	if err = mustAffect(res, school.ErrPrizeNotFound); err != nil {
		return school.Prize{}, err
	}
	return repo.GetPrize(ctx, prz.ID)
}

func (repo *schoolRepository) DeletePrize(ctx context.Context, id string) error {
	if !validID(id) {
		return school.ErrPrizeNotFound
	}
	res, err := repo.db.ExecContext(ctx, `UPDATE prizes SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return trapErr(err, nil, "deleting prize")
	}
	return mustAffect(res, school.ErrPrizeNotFound)
}

func (repo *schoolRepository) SchoolLadder(ctx context.Context, schoolID string) ([]school.Prize, error) {
	if !validID(schoolID) {
		return []school.Prize{}, nil
	}
	var rows []prizeRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+prizeColumns+prizeFrom+` WHERE p.school_id = $1 AND p.deleted_at IS NULL`+ladderOrder, schoolID)
	if err != nil {
		return nil, trapErr(err, nil, "loading school ladder")
	}
	return prizes(rows), nil
}

// Earned prizes

type earnedPrizeRow struct {
	ID        string    `db:"id"`
	PrizeID   string    `db:"prize_id"`
	ClassID   string    `db:"class_id"`
	SchoolID  string    `db:"school_id"`
	Delivered bool      `db:"delivered"`
	EarnedAt  time.Time `db:"earned_at"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	PrizeName string    `db:"prize_name"`
	PrizeIcon string    `db:"prize_icon"`
	ClassName string    `db:"class_name"`
}

func (r earnedPrizeRow) earnedPrize() school.EarnedPrize {
	return school.EarnedPrize{
		ID:        r.ID,
		PrizeID:   r.PrizeID,
		ClassID:   r.ClassID,
		SchoolID:  r.SchoolID,
		Delivered: r.Delivered,
		EarnedAt:  r.EarnedAt.UTC(),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
		PrizeName: r.PrizeName,
		PrizeIcon: r.PrizeIcon,
		ClassName: r.ClassName,
	}
}

func (repo *schoolRepository) CreateEarnedPrize(ctx context.Context, ep school.EarnedPrize) (school.EarnedPrize, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO earned_prizes (id, prize_id, class_id, school_id, delivered, earned_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ep.ID, ep.PrizeID, ep.ClassID, ep.SchoolID, ep.Delivered, ep.EarnedAt.UTC(), ep.CreatedAt.UTC(), ep.UpdatedAt.UTC())
	switch {
	case isPQError(err, uniqueViolation):
		return school.EarnedPrize{}, school.ErrEarnedPrizeExists
	case isPQError(err, fkViolation):
		return school.EarnedPrize{}, school.ErrPrizeNotFound
	case err != nil:
		return school.EarnedPrize{}, trapErr(err, nil, "inserting earned prize")
	}
	return repo.GetEarnedPrize(ctx, ep.ID)
}

func (repo *schoolRepository) GetEarnedPrize(ctx context.Context, id string) (school.EarnedPrize, error) {
	if !validID(id) {
		return school.EarnedPrize{}, school.ErrEarnedPrizeNotFound
	}
	var row earnedPrizeRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+earnedPrizeColumns+earnedPrizeFrom+` WHERE e.id = $1 AND e.deleted_at IS NULL`, id)
	if err != nil {
		return school.EarnedPrize{}, trapErr(err, school.ErrEarnedPrizeNotFound, "getting earned prize")
	}
	return row.earnedPrize(), nil
}

func (repo *schoolRepository) QueryEarnedPrizes(ctx context.Context, filter school.EarnedPrizeFilter) ([]school.EarnedPrize, int, error) {
	var w whereClause
	w.add("e.deleted_at IS NULL")
	for col, id := range map[string]string{"e.school_id": filter.SchoolID, "e.class_id": filter.ClassID} {
		if id == "" {
			continue
		}
		if !validID(id) {
			return []school.EarnedPrize{}, 0, nil
		}
		w.add(col+" = ?", id)
	}
	if filter.Delivered != nil {
		w.add("e.delivered = ?", *filter.Delivered)
	}

	total, err := count(ctx, repo.db, repo.db.Rebind("SELECT COUNT(*) FROM earned_prizes e"+w.String()), w.args...)
	if err != nil {
		return nil, 0, err
	}
	filter.Page.Clean()
	var rows []earnedPrizeRow
	q := repo.db.Rebind("SELECT " + earnedPrizeColumns + earnedPrizeFrom + w.String() + " ORDER BY e.earned_at DESC, e.id LIMIT ? OFFSET ?")
	if err = repo.db.SelectContext(ctx, &rows, q, append(w.args, filter.Page.Limit, filter.Page.Offset())...); err != nil {
		return nil, 0, trapErr(err, nil, "querying earned prizes")
	}

	eps := make([]school.EarnedPrize, 0, len(rows))
	for _, r := range rows {
		eps = append(eps, r.earnedPrize())
	}
	return eps, total, nil
}

func (repo *schoolRepository) CountEarnedPrizes(ctx context.Context, classID string) (int, error) {
	if !validID(classID) {
		return 0, nil
	}
	return count(ctx, repo.db, `SELECT COUNT(*) FROM earned_prizes WHERE class_id = $1 AND deleted_at IS NULL`, classID)
}

func (repo *schoolRepository) UpdateEarnedPrize(ctx context.Context, ep school.EarnedPrize) (school.EarnedPrize, error) {
	if !validID(ep.ID) {
		return school.EarnedPrize{}, school.ErrEarnedPrizeNotFound
	}
	res, err := repo.db.ExecContext(ctx, `
		UPDATE earned_prizes SET delivered = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`,
		ep.ID, ep.Delivered, ep.UpdatedAt.UTC())
	if err != nil {
		return school.EarnedPrize{}, trapErr(err, nil, "updating earned prize")
	}
	if err = mustAffect(res, school.ErrEarnedPrizeNotFound); err != nil {
		return school.EarnedPrize{}, err
	}
	return repo.GetEarnedPrize(ctx, ep.ID)
}
