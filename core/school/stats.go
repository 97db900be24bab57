package school

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/user"
)

// Stats gathers the dashboard head counts of the caller concurrently.
// Super admins get platform-wide counts, school admins the counts of their school.
func (svc *Service) Stats(ctx context.Context, caller user.Caller) (Stats, error) {
	if err := requireAdmin(caller); err != nil {
		return Stats{}, err
	}

	var stats Stats
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst **int, msg string, fn func(ctx context.Context) (int, error)) {
		g.Go(func() error {
			n, err := fn(gctx)
			if err != nil {
				return errors.Wrap(err, msg)
			}
			*dst = &n
			return nil
		})
	}

	if caller.IsSuperAdmin() {
		count(&stats.TotalSchools, "counting schools", func(ctx context.Context) (int, error) {
			return svc.repo.CountSchools(ctx, "")
		})
		count(&stats.ActiveSchools, "counting active schools", func(ctx context.Context) (int, error) {
			return svc.repo.CountSchools(ctx, core.StatusActive)
		})
		count(&stats.TotalAdmins, "counting admins", func(ctx context.Context) (int, error) {
			_, total, err := svc.usrRepo.QueryUsers(ctx, user.QueryFilter{Role: user.RoleSchoolAdmin, Page: core.Page{Page: 1, Limit: 1}})
			return total, err
		})
		count(&stats.TotalTeachers, "counting teachers", func(ctx context.Context) (int, error) {
			return svc.repo.CountTeachers(ctx, "", "")
		})
		count(&stats.TotalClasses, "counting classes", func(ctx context.Context) (int, error) {
			return svc.repo.CountClasses(ctx, "")
		})
	} else {
		schoolID := caller.SchoolID
		if schoolID == "" {
			return Stats{}, core.ErrForbidden
		}
		count(&stats.TotalTeachers, "counting teachers", func(ctx context.Context) (int, error) {
			return svc.repo.CountTeachers(ctx, schoolID, "")
		})
		count(&stats.ActiveTeachers, "counting active teachers", func(ctx context.Context) (int, error) {
			return svc.repo.CountTeachers(ctx, schoolID, core.StatusActive)
		})
		count(&stats.TotalClasses, "counting classes", func(ctx context.Context) (int, error) {
			return svc.repo.CountClasses(ctx, schoolID)
		})
		count(&stats.TotalStudents, "summing students", func(ctx context.Context) (int, error) {
			return svc.repo.SumStudents(ctx, schoolID)
		})
	}

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
