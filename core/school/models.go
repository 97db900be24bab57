package school

import (
	"strings"
	"time"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/ladder"
	"github.com/fitprize/fitprize/core/user"
)

// NoTeacherAssigned is the display name of a class without any named teacher.
const NoTeacherAssigned = "No teacher assigned"

type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Teacher struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Phone        string    `json:"phone"`
	SignupCode   string    `json:"signupCode,omitempty"`
	Grade        string    `json:"grade"`
	StudentCount int       `json:"studentCount"`
	SchoolID     string    `json:"schoolId,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	ClassIDs []string `json:"classIds"`
}

func (t *Teacher) SetPassword(pwd string) error {
	hash, err := core.HashPassword(pwd)
	if err != nil {
		return err
	}
	t.PasswordHash = hash
	return nil
}

func (t *Teacher) CheckPassword(pwd string) error {
	return core.CheckPassword(t.PasswordHash, pwd)
}

func (t *Teacher) IsActive() bool  { return t.Status != core.StatusInactive }
func (t *Teacher) HasPassword() bool { return len(t.PasswordHash) > 0 }

func (t Teacher) Caller() user.Caller {
	return user.Caller{
		ID:       t.ID,
		Email:    t.Email,
		Name:     t.Name,
		Role:     user.RoleTeacher,
		SchoolID: t.SchoolID,
		Grade:    t.Grade,
	}
}

type Class struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Grade          string    `json:"grade"`
	Section        string    `json:"section"`
	SchoolID       string    `json:"schoolId"`
	StudentCount   int       `json:"studentCount"`
	FitnessMinutes int       `json:"fitnessMinutes"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TeacherLink is a class-teacher link along with the linked teacher's display data.
type TeacherLink struct {
	TeacherID      string
	TeacherName    string
	TeacherDeleted bool
	LinkedAt       time.Time
}

type GradeGroup struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Grades    string    `json:"grades"`
	SchoolID  string    `json:"schoolId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ClassIDs []string `json:"classIds"`
}

type Prize struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	MinutesRequired int       `json:"minutesRequired"`
	Icon            string    `json:"icon"`
	GradeGroupID    string    `json:"gradeGroupId"`
	SchoolID        string    `json:"schoolId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	GradeGroupName string `json:"gradeGroupName,omitempty"`
}

type EarnedPrize struct {
	ID        string    `json:"id"`
	PrizeID   string    `json:"prizeId"`
	ClassID   string    `json:"classId"`
	SchoolID  string    `json:"schoolId"`
	Delivered bool      `json:"delivered"`
	EarnedAt  time.Time `json:"earnedAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	PrizeName string `json:"prizeName,omitempty"`
	PrizeIcon string `json:"prizeIcon,omitempty"`
	ClassName string `json:"className,omitempty"`
}

// ClassView is a class along with its teachers and its progress on the school ladder.
type ClassView struct {
	Class
	ladder.Progress

	TeacherIDs         []string `json:"teacherIds"`
	PrimaryTeacherName *string  `json:"primaryTeacherName"`
	EarnedPrizesCount  int      `json:"earnedPrizesCount"`
}

// MinutesUpdate is the outcome of an AddMinutes call.
type MinutesUpdate struct {
	Class           ClassView `json:"data"`
	NewEarnedPrizes int       `json:"newEarnedPrizes"`
}

// SchoolDetails is a school along with its head counts and admins.
type SchoolDetails struct {
	School
	TeacherCount int         `json:"teacherCount"`
	ClassCount   int         `json:"classCount"`
	Admins       []user.User `json:"admins"`
}

// Stats are the dashboard head counts. Fields not relevant to the caller's role are omitted.
type Stats struct {
	TotalSchools   *int `json:"totalSchools,omitempty"`
	ActiveSchools  *int `json:"activeSchools,omitempty"`
	TotalAdmins    *int `json:"totalAdmins,omitempty"`
	TotalTeachers  *int `json:"totalTeachers,omitempty"`
	ActiveTeachers *int `json:"activeTeachers,omitempty"`
	TotalClasses   *int `json:"totalClasses,omitempty"`
	TotalStudents  *int `json:"totalStudents,omitempty"`
}

// PrimaryTeacherName picks the name a class is attributed to.
// An acting teacher linked to the class is named first; otherwise the earliest linked teacher
// that is not deleted and has a non-blank name; otherwise NoTeacherAssigned.
func PrimaryTeacherName(links []TeacherLink, caller user.Caller) string {
	if caller.IsTeacher() && strings.TrimSpace(caller.Name) != "" {
		for _, l := range links {
			if l.TeacherID == caller.ID {
				return strings.TrimSpace(caller.Name)
			}
		}
	}

	var first *TeacherLink
	for i := range links {
		l := &links[i]
		if l.TeacherDeleted || strings.TrimSpace(l.TeacherName) == "" {
			continue
		}
		if first == nil || l.LinkedAt.Before(first.LinkedAt) {
			first = l
		}
	}
	if first == nil {
		return NoTeacherAssigned
	}
	return strings.TrimSpace(first.TeacherName)
}

func displayName(name string) *string {
	if name == NoTeacherAssigned {
		return nil
	}
	return &name
}
