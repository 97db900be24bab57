// Package school is the school domain: schools, teachers, classes, grade groups and the prize ladder.
// Every operation is executed on behalf of a user.Caller and scoped to what that caller may see.
package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core/ladder"
	"github.com/fitprize/fitprize/core/realtime"
	"github.com/fitprize/fitprize/core/user"
)

// Observer is notified of minutes recorded on classes.
type Observer interface {
	MinutesAdded(schoolID string, minutes, newEarnedPrizes int)
}

type nopObserver struct{}

func (nopObserver) MinutesAdded(string, int, int) {}

type Service struct {
	repo     Repository
	usrRepo  user.Repository
	notifier *realtime.Notifier
	observer Observer
	now      func() time.Time
}

type Option func(svc *Service)

// WithObserver sets the observer of minutes updates.
func WithObserver(o Observer) Option {
	return func(svc *Service) {
		if o != nil {
			svc.observer = o
		}
	}
}

func NewService(repo Repository, usrRepo user.Repository, notifier *realtime.Notifier, opts ...Option) *Service {
	if notifier == nil {
		notifier = realtime.NewNotifier(nil)
	}
	svc := &Service{
		repo:     repo,
		usrRepo:  usrRepo,
		notifier: notifier,
		observer: nopObserver{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ladderCosts returns the rung costs of the school ladder.
// The ladder spans every grade group of the school even though listings filter prizes by grade group.
// TODO: confirm with product whether crediting should be restricted to the class's grade groups.
func (svc *Service) ladderCosts(ctx context.Context, schoolID string) ([]Prize, []int, error) {
	prizes, err := svc.repo.SchoolLadder(ctx, schoolID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading school ladder")
	}
	costs := make([]int, len(prizes))
	for i, p := range prizes {
		costs[i] = p.MinutesRequired
	}
	return prizes, costs, nil
}

// classView decorates cls with its teachers and its progress on `costs`.
func (svc *Service) classView(ctx context.Context, caller user.Caller, cls Class, costs []int) (ClassView, error) {
	links, err := svc.repo.ClassTeacherLinks(ctx, cls.ID)
	if err != nil {
		return ClassView{}, errors.Wrap(err, "loading class teachers")
	}
	earned, err := svc.repo.CountEarnedPrizes(ctx, cls.ID)
	if err != nil {
		return ClassView{}, errors.Wrap(err, "counting earned prizes")
	}

	teacherIDs := make([]string, 0, len(links))
	for _, l := range links {
		if !l.TeacherDeleted {
			teacherIDs = append(teacherIDs, l.TeacherID)
		}
	}
	return ClassView{
		Class:              cls,
		Progress:           ladder.SegmentProgress(costs, cls.FitnessMinutes, earned),
		TeacherIDs:         teacherIDs,
		PrimaryTeacherName: displayName(PrimaryTeacherName(links, caller)),
		EarnedPrizesCount:  earned,
	}, nil
}

func (svc *Service) classViews(ctx context.Context, caller user.Caller, classes []Class) ([]ClassView, error) {
	ladders := make(map[string][]int)
	views := make([]ClassView, 0, len(classes))
	for _, cls := range classes {
		costs, ok := ladders[cls.SchoolID]
		if !ok {
			var err error
			if _, costs, err = svc.ladderCosts(ctx, cls.SchoolID); err != nil {
				return nil, err
			}
			ladders[cls.SchoolID] = costs
		}
		view, err := svc.classView(ctx, caller, cls, costs)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}
