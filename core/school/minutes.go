package school

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core/ladder"
	"github.com/fitprize/fitprize/core/realtime"
	"github.com/fitprize/fitprize/core/user"
)

// AddMinutes records fitness minutes for a class, awards the ladder rungs the new total reaches
// and notifies the class and school rooms.
//
// The increment is atomic in the store, and an EarnedPrize is unique per (prize, class),
// so concurrent calls on the same class never lose minutes nor award a rung twice.
func (svc *Service) AddMinutes(ctx context.Context, caller user.Caller, classID string, am AddMinutes) (MinutesUpdate, error) {
	if err := am.Validate(); err != nil {
		return MinutesUpdate{}, err
	}

	cls, err := svc.repo.GetClass(ctx, classID)
	if err != nil {
		return MinutesUpdate{}, err
	}
	if err = svc.authorizeClass(ctx, caller, cls); err != nil {
		return MinutesUpdate{}, err
	}
	if err = checkContext(ctx); err != nil {
		return MinutesUpdate{}, err
	}

	cls, err = svc.repo.AddClassMinutes(ctx, cls.ID, am.Minutes)
	if err != nil {
		return MinutesUpdate{}, errors.Wrap(err, "adding class minutes")
	}

	prizes, costs, err := svc.ladderCosts(ctx, cls.SchoolID)
	if err != nil {
		return MinutesUpdate{}, err
	}
	newEarned, err := svc.awardReached(ctx, cls, prizes, costs)
	if err != nil {
		return MinutesUpdate{}, err
	}

	view, err := svc.classView(ctx, caller, cls, costs)
	if err != nil {
		return MinutesUpdate{}, err
	}

	svc.notifier.ClassMinutesUpdated(realtime.ClassMinutesUpdated{
		ClassID:            cls.ID,
		SchoolID:           cls.SchoolID,
		FitnessMinutes:     cls.FitnessMinutes,
		EarnedPrizesCount:  view.EarnedPrizesCount,
		NewEarnedPrizes:    newEarned,
		PrimaryTeacherName: view.PrimaryTeacherName,
	})
	if newEarned > 0 {
		svc.notifier.SchoolPrizeEarned(realtime.SchoolPrizeEarned{
			SchoolID:          cls.SchoolID,
			ClassID:           cls.ID,
			ClassName:         cls.Name,
			EarnedPrizesCount: view.EarnedPrizesCount,
			NewEarnedPrizes:   newEarned,
		})
	}
	svc.observer.MinutesAdded(cls.SchoolID, am.Minutes, newEarned)

	return MinutesUpdate{Class: view, NewEarnedPrizes: newEarned}, nil
}

// awardReached creates an EarnedPrize for every rung reached by the class and returns how many were new.
func (svc *Service) awardReached(ctx context.Context, cls Class, prizes []Prize, costs []int) (int, error) {
	var created int
	now := svc.now()
	for _, i := range ladder.Reached(costs, cls.FitnessMinutes) {
		_, err := svc.repo.CreateEarnedPrize(ctx, EarnedPrize{
			ID:        uuid.New().String(),
			PrizeID:   prizes[i].ID,
			ClassID:   cls.ID,
			SchoolID:  cls.SchoolID,
			EarnedAt:  now,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if errors.Cause(err) == ErrEarnedPrizeExists {
			continue
		}
		if err != nil {
			return created, errors.Wrap(err, "creating earned prize")
		}
		created++
	}
	return created, nil
}
