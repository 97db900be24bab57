package school

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/realtime"
	"github.com/fitprize/fitprize/core/user"
)

type EarnedPrizeQuery struct {
	SchoolID  string `query:"schoolId"`
	ClassID   string `query:"classId"`
	Delivered *bool  `query:"-"`
	Page      core.Page
}

// QueryEarnedPrizes lists earned prizes, most recent first. Teachers only see the classes they are linked to.
func (svc *Service) QueryEarnedPrizes(ctx context.Context, caller user.Caller, q EarnedPrizeQuery) ([]EarnedPrize, int, error) {
	schoolID, err := ResolveSchool(caller, q.SchoolID)
	if err != nil {
		return nil, 0, err
	}
	if q.ClassID != "" {
		cls, err := svc.repo.GetClass(ctx, q.ClassID)
		if err != nil {
			return nil, 0, err
		}
		if err = svc.authorizeClass(ctx, caller, cls); err != nil {
			return nil, 0, err
		}
	} else if caller.IsTeacher() {
		return nil, 0, core.NewFieldError("classId", "this field is required")
	}

	filter := EarnedPrizeFilter{SchoolID: schoolID, ClassID: q.ClassID, Delivered: q.Delivered, Page: q.Page}
	filter.Page.Clean()
	eps, total, err := svc.repo.QueryEarnedPrizes(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying earned prizes")
	}
	return eps, total, nil
}

// PendingCount is the number of earned prizes of a school not delivered yet.
func (svc *Service) PendingCount(ctx context.Context, caller user.Caller, schoolID string) (int, error) {
	if err := requireAdmin(caller); err != nil {
		return 0, err
	}
	if err := CheckSchoolAccess(caller, schoolID); err != nil {
		return 0, err
	}
	pending := false
	_, total, err := svc.repo.QueryEarnedPrizes(ctx, EarnedPrizeFilter{
		SchoolID:  schoolID,
		Delivered: &pending,
		Page:      core.Page{Page: 1, Limit: 1},
	})
	if err != nil {
		return 0, errors.Wrap(err, "counting pending prizes")
	}
	return total, nil
}

func (svc *Service) GetEarnedPrize(ctx context.Context, caller user.Caller, id string) (EarnedPrize, error) {
	ep, err := svc.repo.GetEarnedPrize(ctx, id)
	if err != nil {
		return EarnedPrize{}, err
	}
	if err = CheckSchoolAccess(caller, ep.SchoolID); err != nil {
		return EarnedPrize{}, err
	}
	if caller.IsTeacher() {
		linked, err := svc.isLinked(ctx, caller.ID, ep.ClassID)
		if err != nil {
			return EarnedPrize{}, err
		}
		if !linked {
			return EarnedPrize{}, core.ErrForbidden
		}
	}
	return ep, nil
}

// MarkDelivered sets the delivered flag of an earned prize and notifies the school room.
func (svc *Service) MarkDelivered(ctx context.Context, caller user.Caller, id string, md MarkDelivered) (EarnedPrize, error) {
	if err := requireAdmin(caller); err != nil {
		return EarnedPrize{}, err
	}
	ep, err := svc.GetEarnedPrize(ctx, caller, id)
	if err != nil {
		return EarnedPrize{}, err
	}

	ep.Delivered = *md.Delivered
	ep.UpdatedAt = svc.now()
	if ep, err = svc.repo.UpdateEarnedPrize(ctx, ep); err != nil {
		return EarnedPrize{}, errors.Wrap(err, "updating earned prize")
	}
	svc.notifier.SchoolPrizeDelivered(realtime.SchoolPrizeDelivered{
		SchoolID:      ep.SchoolID,
		EarnedPrizeID: ep.ID,
		Delivered:     ep.Delivered,
	})
	return ep, nil
}
