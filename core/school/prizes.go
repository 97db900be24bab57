package school

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/realtime"
	"github.com/fitprize/fitprize/core/user"
)

type PrizeQuery struct {
	SchoolID       string `query:"schoolId"`
	ClassID        string `query:"classId"`
	GradeGroupID   string `query:"gradeGroupId"`
	IncludeOrphans bool   `query:"includeOrphans"`
	Page           core.Page
}

// QueryPrizes lists the prizes visible to the caller in ladder order.
// Teachers, and anyone listing for a class, are restricted to the visible grade groups.
// An explicit grade group only narrows the result.
func (svc *Service) QueryPrizes(ctx context.Context, caller user.Caller, q PrizeQuery) ([]Prize, int, error) {
	schoolID, err := ResolveSchool(caller, q.SchoolID)
	if err != nil {
		return nil, 0, err
	}
	filter := PrizeFilter{
		SchoolID:       schoolID,
		IncludeOrphans: caller.IsSuperAdmin() && q.IncludeOrphans,
		Page:           q.Page,
	}
	filter.Page.Clean()

	if caller.IsTeacher() || q.ClassID != "" {
		groups, err := svc.visibleGradeGroups(ctx, caller, schoolID, q.ClassID, filter.IncludeOrphans)
		if err != nil {
			return nil, 0, err
		}
		filter.GradeGroupIDs = make([]string, 0, len(groups))
		for _, g := range groups {
			filter.GradeGroupIDs = append(filter.GradeGroupIDs, g.ID)
		}
	}
	filter.GradeGroupIDs = narrowIDs(filter.GradeGroupIDs, core.CleanString(q.GradeGroupID))
	if filter.GradeGroupIDs != nil && len(filter.GradeGroupIDs) == 0 {
		return []Prize{}, 0, nil
	}

	prizes, total, err := svc.repo.QueryPrizes(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying prizes")
	}
	return prizes, total, nil
}

func (svc *Service) GetPrize(ctx context.Context, caller user.Caller, id string) (Prize, error) {
	prz, err := svc.repo.GetPrize(ctx, id)
	if err != nil {
		return Prize{}, err
	}
	if err = CheckSchoolAccess(caller, prz.SchoolID); err != nil {
		return Prize{}, err
	}
	return prz, nil
}

// prizeGradeGroup loads the grade group a prize is attached to, which must belong to schoolID.
func (svc *Service) prizeGradeGroup(ctx context.Context, id, schoolID string) (GradeGroup, error) {
	grp, err := svc.repo.GetGradeGroup(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return GradeGroup{}, core.NewFieldError("gradeGroupId", "grade group not found")
		}
		return GradeGroup{}, errors.Wrap(err, "loading grade group")
	}
	if grp.SchoolID != schoolID {
		return GradeGroup{}, core.NewFieldError("gradeGroupId", "grade group does not belong to the school")
	}
	return grp, nil
}

func prizeChanged(prz Prize, grp GradeGroup) realtime.SchoolPrizeChanged {
	return realtime.SchoolPrizeChanged{
		SchoolID:        prz.SchoolID,
		PrizeID:         prz.ID,
		Name:            prz.Name,
		GradeGroupID:    prz.GradeGroupID,
		GradeGroupName:  grp.Name,
		MinutesRequired: prz.MinutesRequired,
		Icon:            prz.Icon,
	}
}

// CreatePrize adds a rung to the school ladder and notifies the school room.
// Super admins may leave the school empty to inherit the grade group's one.
func (svc *Service) CreatePrize(ctx context.Context, caller user.Caller, np NewPrize) (Prize, error) {
	if err := requireAdmin(caller); err != nil {
		return Prize{}, err
	}
	schoolID, err := ResolveSchool(caller, np.SchoolID)
	if err != nil {
		return Prize{}, err
	}
	if schoolID == "" {
		grp, err := svc.repo.GetGradeGroup(ctx, np.GradeGroupID)
		if err != nil {
			if core.IsNotFound(err) {
				return Prize{}, core.NewFieldError("gradeGroupId", "grade group not found")
			}
			return Prize{}, errors.Wrap(err, "loading grade group")
		}
		schoolID = grp.SchoolID
	}
	grp, err := svc.prizeGradeGroup(ctx, np.GradeGroupID, schoolID)
	if err != nil {
		return Prize{}, err
	}

	now := svc.now()
	prz, err := svc.repo.CreatePrize(ctx, Prize{
		ID:              uuid.New().String(),
		Name:            np.Name,
		Description:     np.Description,
		MinutesRequired: np.MinutesRequired,
		Icon:            np.Icon,
		GradeGroupID:    grp.ID,
		SchoolID:        schoolID,
		CreatedAt:       now,
		UpdatedAt:       now,
		GradeGroupName:  grp.Name,
	})
	if err != nil {
		return Prize{}, errors.Wrap(err, "creating prize")
	}
	svc.notifier.SchoolPrizeCreated(prizeChanged(prz, grp))
	return prz, nil
}

// UpdatePrize applies the allow-listed update and notifies the school room.
func (svc *Service) UpdatePrize(ctx context.Context, caller user.Caller, id string, up UpdatePrize) (Prize, error) {
	if err := requireAdmin(caller); err != nil {
		return Prize{}, err
	}
	prz, err := svc.GetPrize(ctx, caller, id)
	if err != nil {
		return Prize{}, err
	}

	up.Apply(&prz)
	grp, err := svc.prizeGradeGroup(ctx, prz.GradeGroupID, prz.SchoolID)
	if err != nil {
		return Prize{}, err
	}
	prz.GradeGroupName = grp.Name
	prz.UpdatedAt = svc.now()
	if prz, err = svc.repo.UpdatePrize(ctx, prz); err != nil {
		return Prize{}, errors.Wrap(err, "updating prize")
	}
	svc.notifier.SchoolPrizeUpdated(prizeChanged(prz, grp))
	return prz, nil
}

func (svc *Service) DeletePrize(ctx context.Context, caller user.Caller, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	prz, err := svc.GetPrize(ctx, caller, id)
	if err != nil {
		return err
	}
	return svc.repo.DeletePrize(ctx, prz.ID)
}
