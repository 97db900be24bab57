package school

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/user"
)

// checkSchoolEmail rejects an email held by another school, or by an account outside schoolID.
func (svc *Service) checkSchoolEmail(ctx context.Context, email, schoolID string) error {
	var excluded []string
	if schoolID != "" {
		excluded = append(excluded, schoolID)
	}
	exists, err := svc.repo.SchoolEmailExists(ctx, email, excluded...)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if !exists {
		usr, err := svc.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
		switch {
		case err == nil:
			exists = schoolID == "" || usr.SchoolID != schoolID
		case !core.IsNotFound(err):
			return errors.Wrap(err, "checking email uniqueness")
		}
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (svc *Service) schoolAdmins(ctx context.Context, schoolID string) ([]user.User, error) {
	admins, _, err := svc.usrRepo.QueryUsers(ctx, user.QueryFilter{
		Role:      user.RoleSchoolAdmin,
		SchoolID:  schoolID,
		Page:      core.Page{Page: 1, Limit: core.MaxPageLimit},
		Orderings: []core.DBOrdering{{Field: "createdAt", Ascending: true}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying school admins")
	}
	return admins, nil
}

func (svc *Service) schoolDetails(ctx context.Context, sch School) (SchoolDetails, error) {
	teachers, err := svc.repo.CountTeachers(ctx, sch.ID, "")
	if err != nil {
		return SchoolDetails{}, errors.Wrap(err, "counting teachers")
	}
	classes, err := svc.repo.CountClasses(ctx, sch.ID)
	if err != nil {
		return SchoolDetails{}, errors.Wrap(err, "counting classes")
	}
	admins, err := svc.schoolAdmins(ctx, sch.ID)
	if err != nil {
		return SchoolDetails{}, err
	}
	return SchoolDetails{School: sch, TeacherCount: teachers, ClassCount: classes, Admins: admins}, nil
}

// QuerySchools lists schools. School admins and teachers only get their own.
func (svc *Service) QuerySchools(ctx context.Context, caller user.Caller, filter SchoolFilter) ([]SchoolDetails, int, error) {
	filter.Search = core.CleanString(filter.Search)
	filter.Page.Clean()
	if !caller.IsSuperAdmin() {
		if caller.SchoolID == "" {
			return nil, 0, core.ErrForbidden
		}
		filter.IDs = []string{caller.SchoolID}
	}

	schools, total, err := svc.repo.QuerySchools(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying schools")
	}
	details := make([]SchoolDetails, 0, len(schools))
	for _, sch := range schools {
		d, err := svc.schoolDetails(ctx, sch)
		if err != nil {
			return nil, 0, err
		}
		details = append(details, d)
	}
	return details, total, nil
}

func (svc *Service) GetSchool(ctx context.Context, caller user.Caller, id string) (SchoolDetails, error) {
	sch, err := svc.repo.GetSchool(ctx, id)
	if err != nil {
		return SchoolDetails{}, err
	}
	if err = CheckSchoolAccess(caller, sch.ID); err != nil {
		return SchoolDetails{}, err
	}
	return svc.schoolDetails(ctx, sch)
}

// CreateSchool creates the school and its admin account, who logs in with the school email.
func (svc *Service) CreateSchool(ctx context.Context, caller user.Caller, ns NewSchool) (SchoolDetails, error) {
	if err := requireSuperAdmin(caller); err != nil {
		return SchoolDetails{}, err
	}
	if err := svc.checkSchoolEmail(ctx, ns.Email, ""); err != nil {
		return SchoolDetails{}, err
	}

	now := svc.now()
	sch := School{
		ID:        uuid.New().String(),
		Name:      ns.Name,
		Address:   ns.Address,
		Phone:     ns.Phone,
		Email:     ns.Email,
		Status:    ns.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	admin := user.User{
		ID:        uuid.New().String(),
		Name:      ns.Name,
		Email:     ns.Email,
		Role:      user.RoleSchoolAdmin,
		SchoolID:  sch.ID,
		Status:    core.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := admin.SetPassword(ns.Password); err != nil {
		return SchoolDetails{}, errors.Wrap(err, "hashing password")
	}

	sch, err := svc.repo.CreateSchool(ctx, sch, admin)
	if err != nil {
		return SchoolDetails{}, errors.Wrap(err, "creating school")
	}
	return svc.schoolDetails(ctx, sch)
}

// UpdateSchool applies the allow-listed update. A new email is carried over to the admin account that used the old one.
func (svc *Service) UpdateSchool(ctx context.Context, caller user.Caller, id string, us UpdateSchool) (SchoolDetails, error) {
	if err := requireSuperAdmin(caller); err != nil {
		return SchoolDetails{}, err
	}
	sch, err := svc.repo.GetSchool(ctx, id)
	if err != nil {
		return SchoolDetails{}, err
	}

	oldEmail := sch.Email
	emailChanged := us.Email != nil && *us.Email != oldEmail
	if emailChanged {
		if err = svc.checkSchoolEmail(ctx, *us.Email, sch.ID); err != nil {
			return SchoolDetails{}, err
		}
	}

	us.Apply(&sch)
	sch.UpdatedAt = svc.now()
	if sch, err = svc.repo.UpdateSchool(ctx, sch); err != nil {
		return SchoolDetails{}, errors.Wrap(err, "updating school")
	}

	if emailChanged {
		admin, err := svc.usrRepo.GetUser(ctx, user.GetFilter{Email: oldEmail})
		if err == nil && admin.SchoolID == sch.ID && admin.Role == user.RoleSchoolAdmin {
			taken, err := svc.usrRepo.EmailExists(ctx, sch.Email, admin.ID)
			if err != nil {
				return SchoolDetails{}, errors.Wrap(err, "checking email uniqueness")
			}
			if taken {
				return svc.schoolDetails(ctx, sch)
			}
			admin.Email = sch.Email
			admin.UpdatedAt = sch.UpdatedAt
			if _, err = svc.usrRepo.UpdateUser(ctx, admin); err != nil {
				return SchoolDetails{}, errors.Wrap(err, "updating school admin email")
			}
		} else if err != nil && !core.IsNotFound(err) {
			return SchoolDetails{}, errors.Wrap(err, "finding school admin")
		}
	}
	return svc.schoolDetails(ctx, sch)
}

// DeleteSchool soft-deletes the school and everything that belongs to it.
func (svc *Service) DeleteSchool(ctx context.Context, caller user.Caller, id string) error {
	if err := requireSuperAdmin(caller); err != nil {
		return err
	}
	sch, err := svc.repo.GetSchool(ctx, id)
	if err != nil {
		return err
	}
	return svc.repo.DeleteSchool(ctx, sch.ID)
}
