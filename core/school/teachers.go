package school

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/user"
)

const signupCodeAttempts = 20

var (
	ErrSignupCodeExhausted = errors.New("could not generate a unique code, please try again")
	ErrInvalidSignupCode   = core.NewFieldError("code", "code invalid or already used")
	ErrSignupCodeNotFound  = core.NewNotFoundError("signup code")

	signupCodeRegex = regexp.MustCompile(`^[0-9]{4}$`)
)

// NotAssignedError is returned on login by teachers who signed up but were not assigned to a school yet.
// Code is the signup code they hand over to their school.
type NotAssignedError struct {
	Code string
}

func (err NotAssignedError) Error() string {
	return "teacher not assigned to a school"
}

type TeacherQuery struct {
	Search     string `query:"search"`
	SchoolID   string `query:"schoolId"`
	Status     string `query:"status"`
	Unassigned bool   `query:"unassigned"`
	Page       core.Page
}

func (svc *Service) checkTeacherEmail(ctx context.Context, email string, excludedIDs ...string) error {
	exists, err := svc.repo.TeacherEmailExists(ctx, email, excludedIDs...)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (svc *Service) newSignupCode(ctx context.Context) (string, error) {
	for i := 0; i < signupCodeAttempts; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(9000))
		if err != nil {
			return "", errors.Wrap(err, "generating signup code")
		}
		code := fmt.Sprintf("%04d", 1000+n.Int64())
		exists, err := svc.repo.SignupCodeExists(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, "checking signup code")
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrSignupCodeExhausted
}

// Signup registers a teacher without a school. The returned teacher carries the signup code.
func (svc *Service) Signup(ctx context.Context, ts TeacherSignup) (Teacher, error) {
	if err := svc.checkTeacherEmail(ctx, ts.Email); err != nil {
		return Teacher{}, err
	}
	code, err := svc.newSignupCode(ctx)
	if err != nil {
		return Teacher{}, err
	}

	now := svc.now()
	tchr := Teacher{
		ID:         uuid.New().String(),
		Name:       ts.Name,
		Email:      ts.Email,
		Phone:      ts.Phone,
		SignupCode: code,
		Status:     core.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
		ClassIDs:   []string{},
	}
	if err = tchr.SetPassword(ts.Password); err != nil {
		return Teacher{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateTeacher(ctx, tchr)
}

// AuthenticateTeacher checks the credentials of a teacher.
// Teachers without a school get a NotAssignedError once their credentials are verified.
func (svc *Service) AuthenticateTeacher(ctx context.Context, email, pwd string) (Teacher, error) {
	tchr, err := svc.repo.GetTeacher(ctx, TeacherGetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		if core.IsNotFound(err) {
			return Teacher{}, user.ErrInvalidCredentials
		}
		return Teacher{}, errors.Wrap(err, "finding teacher by email")
	}
	if !tchr.IsActive() {
		return Teacher{}, user.ErrAccountInactive
	}
	if !tchr.HasPassword() || tchr.CheckPassword(pwd) != nil {
		return Teacher{}, user.ErrInvalidCredentials
	}
	if tchr.SchoolID == "" {
		return Teacher{}, &NotAssignedError{Code: tchr.SignupCode}
	}
	return tchr, nil
}

// TeacherByID returns a teacher regardless of the caller. It backs identity resolution.
func (svc *Service) TeacherByID(ctx context.Context, id string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, TeacherGetFilter{ID: id})
}

func (svc *Service) QueryTeachers(ctx context.Context, caller user.Caller, q TeacherQuery) ([]Teacher, int, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, 0, err
	}
	filter := TeacherFilter{
		Search:     core.CleanString(q.Search),
		Status:     q.Status,
		Unassigned: q.Unassigned,
		Page:       q.Page,
	}
	filter.Page.Clean()
	if !q.Unassigned {
		schoolID, err := ResolveSchool(caller, q.SchoolID)
		if err != nil {
			return nil, 0, err
		}
		filter.SchoolID = schoolID
	}
	teachers, total, err := svc.repo.QueryTeachers(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying teachers")
	}
	return teachers, total, nil
}

// checkTeacherAccess lets teachers reach themselves only, and school admins reach their school's
// teachers as well as unassigned ones.
func checkTeacherAccess(caller user.Caller, tchr Teacher) error {
	switch {
	case caller.IsSuperAdmin():
		return nil
	case caller.IsTeacher():
		if caller.ID != tchr.ID {
			return core.ErrForbidden
		}
		return nil
	case caller.IsSchoolAdmin():
		if tchr.SchoolID != "" && tchr.SchoolID != caller.SchoolID {
			return core.ErrForbidden
		}
		return nil
	}
	return core.ErrForbidden
}

func (svc *Service) GetTeacher(ctx context.Context, caller user.Caller, id string) (Teacher, error) {
	tchr, err := svc.repo.GetTeacher(ctx, TeacherGetFilter{ID: id})
	if err != nil {
		return Teacher{}, err
	}
	if err = checkTeacherAccess(caller, tchr); err != nil {
		return Teacher{}, err
	}
	return tchr, nil
}

// GetTeacherByCode looks up a teacher by signup code, typically before assigning them.
func (svc *Service) GetTeacherByCode(ctx context.Context, caller user.Caller, code string) (Teacher, error) {
	if err := requireAdmin(caller); err != nil {
		return Teacher{}, err
	}
	if !signupCodeRegex.MatchString(code) {
		return Teacher{}, ErrInvalidSignupCode
	}
	tchr, err := svc.repo.GetTeacher(ctx, TeacherGetFilter{SignupCode: code})
	if err != nil {
		if core.IsNotFound(err) {
			return Teacher{}, ErrSignupCodeNotFound
		}
		return Teacher{}, err
	}
	if err = checkTeacherAccess(caller, tchr); err != nil {
		return Teacher{}, err
	}
	return tchr, nil
}

// derivedGrade returns the grade of the first class when no grade is given.
func derivedGrade(given string, classes []Class) string {
	if given != "" || len(classes) == 0 {
		return given
	}
	return classes[0].Grade
}

func (svc *Service) CreateTeacher(ctx context.Context, caller user.Caller, nt NewTeacher) (Teacher, error) {
	if err := requireAdmin(caller); err != nil {
		return Teacher{}, err
	}
	schoolID, err := requiredSchool(caller, nt.SchoolID)
	if err != nil {
		return Teacher{}, err
	}
	if _, err = svc.repo.GetSchool(ctx, schoolID); err != nil {
		return Teacher{}, err
	}
	if err = svc.checkTeacherEmail(ctx, nt.Email); err != nil {
		return Teacher{}, err
	}
	classes, err := svc.checkClassesOfSchool(ctx, nt.ClassIDs, schoolID)
	if err != nil {
		return Teacher{}, err
	}

	now := svc.now()
	tchr := Teacher{
		ID:           uuid.New().String(),
		Name:         nt.Name,
		Email:        nt.Email,
		Phone:        nt.Phone,
		Grade:        derivedGrade(nt.Grade, classes),
		StudentCount: nt.StudentCount,
		SchoolID:     schoolID,
		Status:       nt.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
		ClassIDs:     nt.ClassIDs,
	}
	if nt.Password != "" {
		if err = tchr.SetPassword(nt.Password); err != nil {
			return Teacher{}, errors.Wrap(err, "hashing password")
		}
	}
	return svc.repo.CreateTeacher(ctx, tchr)
}

// UpdateTeacher applies the allow-listed update.
// Teachers may only edit their own profile and cannot move themselves between schools, classes or statuses.
// Assigning a school to an unassigned teacher invalidates their signup code.
func (svc *Service) UpdateTeacher(ctx context.Context, caller user.Caller, id string, ut UpdateTeacher) (Teacher, error) {
	tchr, err := svc.repo.GetTeacher(ctx, TeacherGetFilter{ID: id})
	if err != nil {
		return Teacher{}, err
	}
	if err = checkTeacherAccess(caller, tchr); err != nil {
		return Teacher{}, err
	}
	if caller.IsTeacher() {
		ut.SchoolID = NullableString{}
		ut.ClassIDs = nil
		ut.Status = nil
	}

	if ut.Email != nil && *ut.Email != tchr.Email {
		if err = svc.checkTeacherEmail(ctx, *ut.Email, tchr.ID); err != nil {
			return Teacher{}, err
		}
		tchr.Email = *ut.Email
	}
	if ut.SchoolID.Set {
		if !ut.SchoolID.Valid || ut.SchoolID.Value == "" {
			if caller.IsSchoolAdmin() {
				return Teacher{}, core.ErrForbidden
			}
			tchr.SchoolID = ""
		} else {
			schoolID, err := requiredSchool(caller, ut.SchoolID.Value)
			if err != nil {
				return Teacher{}, err
			}
			if _, err = svc.repo.GetSchool(ctx, schoolID); err != nil {
				return Teacher{}, err
			}
			if tchr.SchoolID == "" {
				tchr.SignupCode = ""
			}
			tchr.SchoolID = schoolID
		}
	}

	if ut.Name != nil {
		tchr.Name = *ut.Name
	}
	if ut.Phone != nil {
		tchr.Phone = core.CleanString(*ut.Phone)
	}
	if ut.Grade != nil {
		tchr.Grade = *ut.Grade
	}
	if ut.StudentCount != nil {
		tchr.StudentCount = *ut.StudentCount
	}
	if ut.Status != nil {
		tchr.Status = *ut.Status
	}
	if ut.Password.Set {
		if !ut.Password.Valid || ut.Password.Value == "" {
			tchr.PasswordHash = nil
		} else if err = tchr.SetPassword(ut.Password.Value); err != nil {
			return Teacher{}, errors.Wrap(err, "hashing password")
		}
	}

	if ut.ClassIDs != nil {
		classes, err := svc.checkClassesOfSchool(ctx, *ut.ClassIDs, tchr.SchoolID)
		if err != nil {
			return Teacher{}, err
		}
		if ut.Grade == nil || *ut.Grade == "" {
			tchr.Grade = derivedGrade("", classes)
		}
		if err = svc.repo.SetTeacherClasses(ctx, tchr.ID, *ut.ClassIDs); err != nil {
			return Teacher{}, errors.Wrap(err, "linking teacher classes")
		}
	}

	tchr.UpdatedAt = svc.now()
	if _, err = svc.repo.UpdateTeacher(ctx, tchr); err != nil {
		return Teacher{}, errors.Wrap(err, "updating teacher")
	}
	return svc.repo.GetTeacher(ctx, TeacherGetFilter{ID: tchr.ID})
}

// AssignTeacher assigns the unassigned teacher holding `code` to the caller's school.
func (svc *Service) AssignTeacher(ctx context.Context, caller user.Caller, at AssignTeacher) (Teacher, error) {
	if !caller.IsSchoolAdmin() || caller.SchoolID == "" {
		return Teacher{}, core.ErrForbidden
	}
	tchr, err := svc.repo.GetTeacher(ctx, TeacherGetFilter{SignupCode: at.Code})
	if err != nil {
		if core.IsNotFound(err) {
			return Teacher{}, ErrInvalidSignupCode
		}
		return Teacher{}, err
	}
	if tchr.SchoolID != "" {
		return Teacher{}, ErrInvalidSignupCode
	}

	tchr.SchoolID = caller.SchoolID
	tchr.SignupCode = ""
	tchr.UpdatedAt = svc.now()
	if tchr, err = svc.repo.UpdateTeacher(ctx, tchr); err != nil {
		return Teacher{}, errors.Wrap(err, "assigning teacher")
	}
	return tchr, nil
}

// DeleteTeacher soft-deletes a teacher. School admins may only delete their school's teachers.
func (svc *Service) DeleteTeacher(ctx context.Context, caller user.Caller, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	tchr, err := svc.repo.GetTeacher(ctx, TeacherGetFilter{ID: id})
	if err != nil {
		return err
	}
	if err = CheckSchoolAccess(caller, tchr.SchoolID); err != nil {
		return err
	}
	return svc.repo.DeleteTeacher(ctx, tchr.ID)
}
