package school

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/grade"
	"github.com/fitprize/fitprize/core/user"
)

// ResolveSchool returns the school a caller's query or command applies to.
// Super admins get `requested` as is (empty means every school).
// Everyone else is pinned to their own school and may not name another one.
func ResolveSchool(caller user.Caller, requested string) (string, error) {
	if caller.IsSuperAdmin() {
		return requested, nil
	}
	if caller.SchoolID == "" {
		return "", core.ErrForbidden
	}
	if requested != "" && requested != caller.SchoolID {
		return "", core.ErrForbidden
	}
	return caller.SchoolID, nil
}

// CheckSchoolAccess rejects callers reading or writing a record of another school.
// Records without a school are only reachable by super admins.
func CheckSchoolAccess(caller user.Caller, schoolID string) error {
	if caller.IsSuperAdmin() {
		return nil
	}
	if schoolID == "" || caller.SchoolID != schoolID {
		return core.ErrForbidden
	}
	return nil
}

func requireAdmin(caller user.Caller) error {
	if !caller.IsAdmin() {
		return core.ErrForbidden
	}
	return nil
}

func requireSuperAdmin(caller user.Caller) error {
	if !caller.IsSuperAdmin() {
		return core.ErrForbidden
	}
	return nil
}

// requiredSchool is ResolveSchool for commands, which always need a school.
func requiredSchool(caller user.Caller, requested string) (string, error) {
	schoolID, err := ResolveSchool(caller, requested)
	if err != nil {
		return "", err
	}
	if schoolID == "" {
		return "", core.NewFieldError("schoolId", "this field is required")
	}
	return schoolID, nil
}

func (svc *Service) isLinked(ctx context.Context, teacherID, classID string) (bool, error) {
	ids, err := svc.repo.TeacherClassIDs(ctx, teacherID)
	if err != nil {
		return false, errors.Wrap(err, "loading teacher classes")
	}
	for _, id := range ids {
		if id == classID {
			return true, nil
		}
	}
	return false, nil
}

// authorizeClass lets admins of the class's school and teachers linked to the class through.
func (svc *Service) authorizeClass(ctx context.Context, caller user.Caller, cls Class) error {
	if err := CheckSchoolAccess(caller, cls.SchoolID); err != nil {
		return err
	}
	if caller.IsTeacher() {
		linked, err := svc.isLinked(ctx, caller.ID, cls.ID)
		if err != nil {
			return err
		}
		if !linked {
			return core.ErrForbidden
		}
	}
	return nil
}

// visibleGradeGroups returns the grade groups of schoolID that the caller may see.
// With a class context, visibility follows class membership; teachers must also be linked to the class,
// otherwise nothing is visible. Without one, teachers see the groups open to their grade.
func (svc *Service) visibleGradeGroups(ctx context.Context, caller user.Caller, schoolID, classID string, includeOrphans bool) ([]GradeGroup, error) {
	if classID != "" {
		cls, err := svc.repo.GetClass(ctx, classID)
		if err != nil {
			if caller.IsTeacher() && core.IsNotFound(err) {
				return []GradeGroup{}, nil
			}
			return nil, err
		}
		if caller.IsTeacher() {
			if cls.SchoolID != caller.SchoolID {
				return []GradeGroup{}, nil
			}
			linked, err := svc.isLinked(ctx, caller.ID, cls.ID)
			if err != nil {
				return nil, err
			}
			if !linked {
				return []GradeGroup{}, nil
			}
		} else if err = CheckSchoolAccess(caller, cls.SchoolID); err != nil {
			return nil, err
		}
	}

	groups, err := svc.repo.QueryGradeGroups(ctx, GradeGroupFilter{SchoolID: schoolID, IncludeOrphans: includeOrphans})
	if err != nil {
		return nil, errors.Wrap(err, "querying grade groups")
	}

	visible := make([]GradeGroup, 0, len(groups))
	for _, g := range groups {
		switch {
		case classID != "":
			if grade.ClassMembershipVisible(g.ClassIDs, classID) {
				visible = append(visible, g)
			}
		case caller.IsTeacher():
			if grade.MatchesTeacherGrade(g.Grades, caller.Grade) {
				visible = append(visible, g)
			}
		default:
			visible = append(visible, g)
		}
	}
	return visible, nil
}

// narrowIDs intersects a restriction with one explicit id. A nil restriction means unrestricted.
func narrowIDs(restriction []string, id string) []string {
	if id == "" {
		return restriction
	}
	if restriction == nil {
		return []string{id}
	}
	for _, r := range restriction {
		if r == id {
			return []string{id}
		}
	}
	return []string{}
}
