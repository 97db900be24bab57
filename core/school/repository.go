package school

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/user"
)

// MaxMinutes bounds class totals and prize costs to the INTEGER columns that store them.
const MaxMinutes = math.MaxInt32

var (
	ErrSchoolNotFound      = core.NewNotFoundError("school")
	ErrTeacherNotFound     = core.NewNotFoundError("teacher")
	ErrClassNotFound       = core.NewNotFoundError("class")
	ErrGradeGroupNotFound  = core.NewNotFoundError("grade group")
	ErrPrizeNotFound       = core.NewNotFoundError("prize")
	ErrEarnedPrizeNotFound = core.NewNotFoundError("earned prize")

	// ErrEarnedPrizeExists is returned when a class already holds a non-deleted EarnedPrize for a prize.
	ErrEarnedPrizeExists = errors.New("prize already earned by class")
	ErrEmailExists       = errors.New("this email is already in use")
	// ErrMinutesOverflow is returned when an increment would take a class past MaxMinutes.
	ErrMinutesOverflow = core.NewFieldError("minutes", fmt.Sprintf("class total cannot exceed %d minutes", MaxMinutes))
)

// Repository is the relational store of the school domain.
// Soft-deleted rows are never returned, counted or updated.
type Repository interface {
	// CreateSchool stores the school and its first admin account in one unit.
	CreateSchool(ctx context.Context, sch School, admin user.User) (School, error)
	GetSchool(ctx context.Context, id string) (School, error)
	QuerySchools(ctx context.Context, filter SchoolFilter) ([]School, int, error)
	UpdateSchool(ctx context.Context, sch School) (School, error)
	// DeleteSchool soft-deletes the school along with its classes, teachers, grade groups, prizes, earned prizes and admins.
	DeleteSchool(ctx context.Context, id string) error
	SchoolEmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error)

	// CreateTeacher stores the teacher and links it to Teacher.ClassIDs.
	CreateTeacher(ctx context.Context, tchr Teacher) (Teacher, error)
	// GetTeacher returns the teacher matching every set field of filter, with its ClassIDs.
	GetTeacher(ctx context.Context, filter TeacherGetFilter) (Teacher, error)
	QueryTeachers(ctx context.Context, filter TeacherFilter) ([]Teacher, int, error)
	// UpdateTeacher saves the teacher columns. Class links are left untouched.
	UpdateTeacher(ctx context.Context, tchr Teacher) (Teacher, error)
	DeleteTeacher(ctx context.Context, id string) error
	TeacherEmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error)
	SignupCodeExists(ctx context.Context, code string) (bool, error)

	// SetTeacherClasses replaces the class links of a teacher.
	SetTeacherClasses(ctx context.Context, teacherID string, classIDs []string) error
	// SetClassTeachers replaces the teacher links of a class.
	SetClassTeachers(ctx context.Context, classID string, teacherIDs []string) error
	// ClassTeacherLinks returns the teacher links of a class ordered by link date, soft-deleted teachers included.
	ClassTeacherLinks(ctx context.Context, classID string) ([]TeacherLink, error)
	// TeacherClassIDs returns the non-deleted classes linked to a teacher.
	TeacherClassIDs(ctx context.Context, teacherID string) ([]string, error)

	CreateClass(ctx context.Context, cls Class) (Class, error)
	GetClass(ctx context.Context, id string) (Class, error)
	// GetClasses returns the non-deleted classes among ids, in no particular order.
	GetClasses(ctx context.Context, ids []string) ([]Class, error)
	QueryClasses(ctx context.Context, filter ClassFilter) ([]Class, int, error)
	UpdateClass(ctx context.Context, cls Class) (Class, error)
	DeleteClass(ctx context.Context, id string) error
	// AddClassMinutes atomically adds minutes to the class and returns the updated row.
	// It returns ErrMinutesOverflow, leaving the class unchanged, when the total would exceed MaxMinutes.
	AddClassMinutes(ctx context.Context, classID string, minutes int) (Class, error)

	// CreateGradeGroup stores the group and its GradeGroup.ClassIDs members.
	CreateGradeGroup(ctx context.Context, grp GradeGroup) (GradeGroup, error)
	GetGradeGroup(ctx context.Context, id string) (GradeGroup, error)
	// QueryGradeGroups returns every matching group with its members, oldest first.
	QueryGradeGroups(ctx context.Context, filter GradeGroupFilter) ([]GradeGroup, error)
	// UpdateGradeGroup saves the group and replaces its members.
	UpdateGradeGroup(ctx context.Context, grp GradeGroup) (GradeGroup, error)
	// DeleteGradeGroup soft-deletes the group and its prizes.
	DeleteGradeGroup(ctx context.Context, id string) error

	CreatePrize(ctx context.Context, prz Prize) (Prize, error)
	GetPrize(ctx context.Context, id string) (Prize, error)
	// QueryPrizes returns one page of matching prizes in ladder order and the total count of matches.
	QueryPrizes(ctx context.Context, filter PrizeFilter) ([]Prize, int, error)
	UpdatePrize(ctx context.Context, prz Prize) (Prize, error)
	DeletePrize(ctx context.Context, id string) error
	// SchoolLadder returns every prize of a school ordered by minutes required, then creation date.
	SchoolLadder(ctx context.Context, schoolID string) ([]Prize, error)

	// CreateEarnedPrize returns ErrEarnedPrizeExists when the class already holds the prize.
	CreateEarnedPrize(ctx context.Context, ep EarnedPrize) (EarnedPrize, error)
	GetEarnedPrize(ctx context.Context, id string) (EarnedPrize, error)
	QueryEarnedPrizes(ctx context.Context, filter EarnedPrizeFilter) ([]EarnedPrize, int, error)
	CountEarnedPrizes(ctx context.Context, classID string) (int, error)
	UpdateEarnedPrize(ctx context.Context, ep EarnedPrize) (EarnedPrize, error)

	CountSchools(ctx context.Context, status string) (int, error)
	CountTeachers(ctx context.Context, schoolID, status string) (int, error)
	CountClasses(ctx context.Context, schoolID string) (int, error)
	SumStudents(ctx context.Context, schoolID string) (int, error)
}

type SchoolFilter struct {
	Search string `query:"search"`
	Status string `query:"status"`
	// IDs restricts the result when not nil.
	IDs  []string
	Page core.Page
}

type TeacherGetFilter struct {
	ID         string
	Email      string
	SignupCode string
}

type TeacherFilter struct {
	Search     string `query:"search"`
	SchoolID   string `query:"schoolId"`
	Status     string `query:"status"`
	Unassigned bool   `query:"unassigned"`
	Page       core.Page
}

type ClassFilter struct {
	Search   string `query:"search"`
	SchoolID string `query:"schoolId"`
	Grade    string `query:"grade"`
	// IDs restricts the result when not nil.
	IDs  []string
	Page core.Page
}

type GradeGroupFilter struct {
	SchoolID       string
	IncludeOrphans bool
}

type PrizeFilter struct {
	SchoolID       string
	IncludeOrphans bool
	// GradeGroupIDs restricts the result when not nil. An empty non-nil slice matches nothing.
	GradeGroupIDs []string
	Page          core.Page
}

type EarnedPrizeFilter struct {
	SchoolID  string
	ClassID   string
	Delivered *bool
	Page      core.Page
}
