package school

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/user"
)

// ClassQuery are the class listing filters. Mine restricts teachers to their linked classes.
type ClassQuery struct {
	Search   string `query:"search"`
	SchoolID string `query:"schoolId"`
	Grade    string `query:"grade"`
	Mine     bool   `query:"mine"`
	Page     core.Page
}

func (svc *Service) QueryClasses(ctx context.Context, caller user.Caller, q ClassQuery) ([]ClassView, int, error) {
	schoolID, err := ResolveSchool(caller, q.SchoolID)
	if err != nil {
		return nil, 0, err
	}
	q.Page.Clean()
	filter := ClassFilter{
		Search:   core.CleanString(q.Search),
		SchoolID: schoolID,
		Grade:    core.CleanString(q.Grade),
		Page:     q.Page,
	}
	if caller.IsTeacher() && q.Mine {
		if filter.IDs, err = svc.repo.TeacherClassIDs(ctx, caller.ID); err != nil {
			return nil, 0, errors.Wrap(err, "loading teacher classes")
		}
	}

	classes, total, err := svc.repo.QueryClasses(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying classes")
	}
	views, err := svc.classViews(ctx, caller, classes)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// GetClass returns the class view. Teachers only get the classes they are linked to.
func (svc *Service) GetClass(ctx context.Context, caller user.Caller, id string) (ClassView, error) {
	cls, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return ClassView{}, err
	}
	if err = svc.authorizeClass(ctx, caller, cls); err != nil {
		return ClassView{}, err
	}
	views, err := svc.classViews(ctx, caller, []Class{cls})
	if err != nil {
		return ClassView{}, err
	}
	return views[0], nil
}

func (svc *Service) CreateClass(ctx context.Context, caller user.Caller, nc NewClass) (ClassView, error) {
	if err := requireAdmin(caller); err != nil {
		return ClassView{}, err
	}
	schoolID, err := requiredSchool(caller, nc.SchoolID)
	if err != nil {
		return ClassView{}, err
	}
	if _, err = svc.repo.GetSchool(ctx, schoolID); err != nil {
		return ClassView{}, err
	}
	if err = svc.checkTeachersOfSchool(ctx, nc.TeacherIDs, schoolID); err != nil {
		return ClassView{}, err
	}

	now := svc.now()
	cls, err := svc.repo.CreateClass(ctx, Class{
		ID:             uuid.New().String(),
		Name:           nc.Name,
		Grade:          nc.Grade,
		Section:        nc.Section,
		SchoolID:       schoolID,
		StudentCount:   nc.StudentCount,
		FitnessMinutes: nc.FitnessMinutes,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return ClassView{}, errors.Wrap(err, "creating class")
	}
	if len(nc.TeacherIDs) > 0 {
		if err = svc.repo.SetClassTeachers(ctx, cls.ID, nc.TeacherIDs); err != nil {
			return ClassView{}, errors.Wrap(err, "linking class teachers")
		}
	}
	return svc.GetClass(ctx, caller, cls.ID)
}

// UpdateClass applies the allow-listed update. Teachers may update their linked classes but not their teachers.
func (svc *Service) UpdateClass(ctx context.Context, caller user.Caller, id string, uc UpdateClass) (ClassView, error) {
	cls, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return ClassView{}, err
	}
	if err = svc.authorizeClass(ctx, caller, cls); err != nil {
		return ClassView{}, err
	}
	if caller.IsTeacher() {
		uc.TeacherIDs = nil
	}
	if uc.TeacherIDs != nil {
		if err = svc.checkTeachersOfSchool(ctx, *uc.TeacherIDs, cls.SchoolID); err != nil {
			return ClassView{}, err
		}
	}

	uc.Apply(&cls)
	cls.UpdatedAt = svc.now()
	if cls, err = svc.repo.UpdateClass(ctx, cls); err != nil {
		return ClassView{}, errors.Wrap(err, "updating class")
	}
	if uc.TeacherIDs != nil {
		if err = svc.repo.SetClassTeachers(ctx, cls.ID, *uc.TeacherIDs); err != nil {
			return ClassView{}, errors.Wrap(err, "linking class teachers")
		}
	}
	return svc.GetClass(ctx, caller, cls.ID)
}

func (svc *Service) DeleteClass(ctx context.Context, caller user.Caller, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	cls, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return err
	}
	if err = CheckSchoolAccess(caller, cls.SchoolID); err != nil {
		return err
	}
	return svc.repo.DeleteClass(ctx, cls.ID)
}

// checkClassesOfSchool makes sure every class of ids exists in schoolID and returns them in the order of ids.
func (svc *Service) checkClassesOfSchool(ctx context.Context, ids []string, schoolID string) ([]Class, error) {
	if len(ids) == 0 {
		return []Class{}, nil
	}
	classes, err := svc.repo.GetClasses(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "loading classes")
	}
	byID := make(map[string]Class, len(classes))
	for _, c := range classes {
		byID[c.ID] = c
	}
	ordered := make([]Class, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok || c.SchoolID != schoolID {
			return nil, core.NewFieldError("classIds", "all classes must belong to the school")
		}
		ordered = append(ordered, c)
	}
	return ordered, nil
}

func (svc *Service) checkTeachersOfSchool(ctx context.Context, ids []string, schoolID string) error {
	for _, id := range ids {
		tchr, err := svc.repo.GetTeacher(ctx, TeacherGetFilter{ID: id})
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewFieldError("teacherIds", "all teachers must belong to the school")
			}
			return errors.Wrap(err, "loading teacher")
		}
		if tchr.SchoolID != schoolID {
			return core.NewFieldError("teacherIds", "all teachers must belong to the school")
		}
	}
	return nil
}
