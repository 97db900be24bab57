package school

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/user"
)

type GradeGroupQuery struct {
	SchoolID       string `query:"schoolId"`
	ClassID        string `query:"classId"`
	IncludeOrphans bool   `query:"includeOrphans"`
	Page           core.Page
}

// QueryGradeGroups lists the grade groups visible to the caller.
func (svc *Service) QueryGradeGroups(ctx context.Context, caller user.Caller, q GradeGroupQuery) ([]GradeGroup, int, error) {
	schoolID, err := ResolveSchool(caller, q.SchoolID)
	if err != nil {
		return nil, 0, err
	}
	groups, err := svc.visibleGradeGroups(ctx, caller, schoolID, q.ClassID, caller.IsSuperAdmin() && q.IncludeOrphans)
	if err != nil {
		return nil, 0, err
	}
	return core.Paginate(groups, q.Page), len(groups), nil
}

func (svc *Service) GetGradeGroup(ctx context.Context, caller user.Caller, id string) (GradeGroup, error) {
	grp, err := svc.repo.GetGradeGroup(ctx, id)
	if err != nil {
		return GradeGroup{}, err
	}
	if err = CheckSchoolAccess(caller, grp.SchoolID); err != nil {
		return GradeGroup{}, err
	}
	return grp, nil
}

// GradeGroupPrizes returns the ladder rungs of one grade group.
func (svc *Service) GradeGroupPrizes(ctx context.Context, caller user.Caller, id string) ([]Prize, error) {
	grp, err := svc.GetGradeGroup(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	filter := PrizeFilter{
		SchoolID:       grp.SchoolID,
		IncludeOrphans: grp.SchoolID == "",
		GradeGroupIDs:  []string{grp.ID},
		Page:           core.Page{Page: 1, Limit: core.MaxPageLimit},
	}
	var prizes []Prize
	for {
		page, total, err := svc.repo.QueryPrizes(ctx, filter)
		if err != nil {
			return nil, errors.Wrap(err, "querying grade group prizes")
		}
		prizes = append(prizes, page...)
		if len(page) == 0 || len(prizes) >= total {
			break
		}
		filter.Page.Page++
	}
	if prizes == nil {
		prizes = []Prize{}
	}
	return prizes, nil
}

// groupGrades derives the stored grades: from the member classes when there are any, else from the given list.
func groupGrades(given GradeList, classes []Class) string {
	if len(classes) == 0 {
		return given.Labels()
	}
	grades := make([]string, 0, len(classes))
	for _, c := range classes {
		grades = append(grades, c.Grade)
	}
	return GradeList(grades).Labels()
}

// CreateGradeGroup creates a grade group. Super admins may leave it without a school.
func (svc *Service) CreateGradeGroup(ctx context.Context, caller user.Caller, ng NewGradeGroup) (GradeGroup, error) {
	if err := requireAdmin(caller); err != nil {
		return GradeGroup{}, err
	}
	schoolID, err := ResolveSchool(caller, ng.SchoolID)
	if err != nil {
		return GradeGroup{}, err
	}
	if schoolID != "" {
		if _, err = svc.repo.GetSchool(ctx, schoolID); err != nil {
			return GradeGroup{}, err
		}
	}
	classes, err := svc.checkClassesOfSchool(ctx, ng.ClassIDs, schoolID)
	if err != nil {
		return GradeGroup{}, err
	}

	now := svc.now()
	grp, err := svc.repo.CreateGradeGroup(ctx, GradeGroup{
		ID:        uuid.New().String(),
		Name:      ng.Name,
		Label:     ng.Label,
		Grades:    groupGrades(ng.Grades, classes),
		SchoolID:  schoolID,
		CreatedAt: now,
		UpdatedAt: now,
		ClassIDs:  ng.ClassIDs,
	})
	if err != nil {
		return GradeGroup{}, errors.Wrap(err, "creating grade group")
	}
	return grp, nil
}

// UpdateGradeGroup applies the allow-listed update. New members re-derive the grades.
func (svc *Service) UpdateGradeGroup(ctx context.Context, caller user.Caller, id string, ug UpdateGradeGroup) (GradeGroup, error) {
	if err := requireAdmin(caller); err != nil {
		return GradeGroup{}, err
	}
	grp, err := svc.GetGradeGroup(ctx, caller, id)
	if err != nil {
		return GradeGroup{}, err
	}

	if ug.Name != nil {
		grp.Name = core.CleanString(*ug.Name)
	}
	if ug.Label != nil {
		grp.Label = core.CleanString(*ug.Label)
	}
	if ug.Grades != nil {
		grp.Grades = ug.Grades.Labels()
	}
	if ug.ClassIDs != nil {
		classes, err := svc.checkClassesOfSchool(ctx, *ug.ClassIDs, grp.SchoolID)
		if err != nil {
			return GradeGroup{}, err
		}
		grp.ClassIDs = *ug.ClassIDs
		if len(classes) > 0 {
			grp.Grades = groupGrades(nil, classes)
		}
	}

	grp.UpdatedAt = svc.now()
	if grp, err = svc.repo.UpdateGradeGroup(ctx, grp); err != nil {
		return GradeGroup{}, errors.Wrap(err, "updating grade group")
	}
	return grp, nil
}

// DeleteGradeGroup soft-deletes the group and its prizes.
func (svc *Service) DeleteGradeGroup(ctx context.Context, caller user.Caller, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	grp, err := svc.GetGradeGroup(ctx, caller, id)
	if err != nil {
		return err
	}
	return svc.repo.DeleteGradeGroup(ctx, grp.ID)
}
