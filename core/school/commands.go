package school

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/grade"
)

// NewSchool contains information needed to create a School and its first admin account.
// The admin logs in with the school email and Password.
type NewSchool struct {
	Name     string `json:"name" validate:"required,notblank"`
	Address  string `json:"address" validate:"required,notblank"`
	Phone    string `json:"phone" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Status   string `json:"status" validate:"omitempty,status"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Address = core.CleanString(ns.Address)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	if ns.Status == "" {
		ns.Status = core.StatusActive
	}
	return validate.Struct(ns)
}

type UpdateSchool struct {
	Name    *string `json:"name" validate:"omitempty,notblank"`
	Address *string `json:"address" validate:"omitempty,notblank"`
	Phone   *string `json:"phone" validate:"omitempty,notblank"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Status  *string `json:"status" validate:"omitempty,status"`
}

func (us *UpdateSchool) Validate(validate *validator.Validate) error {
	if us.Email != nil {
		email := core.CleanString(*us.Email, true /* lower */)
		us.Email = &email
	}
	return validate.Struct(us)
}

func (us UpdateSchool) Apply(sch *School) {
	if us.Name != nil {
		sch.Name = core.CleanString(*us.Name)
	}
	if us.Address != nil {
		sch.Address = core.CleanString(*us.Address)
	}
	if us.Phone != nil {
		sch.Phone = core.CleanString(*us.Phone)
	}
	if us.Email != nil {
		sch.Email = *us.Email
	}
	if us.Status != nil {
		sch.Status = *us.Status
	}
}

// TeacherSignup is a self-registration. The teacher is created without a school.
type TeacherSignup struct {
	Name     string `json:"name" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone" validate:"required,phone"`
}

func (ts *TeacherSignup) Validate(validate *validator.Validate) error {
	ts.Name = core.CleanString(ts.Name)
	ts.Email = core.CleanString(ts.Email, true /* lower */)
	ts.Phone = core.CleanString(ts.Phone)
	return validate.Struct(ts)
}

type NewTeacher struct {
	Name         string   `json:"name" validate:"required,notblank"`
	Email        string   `json:"email" validate:"required,email"`
	Phone        string   `json:"phone" validate:"required,notblank"`
	Grade        string   `json:"grade" validate:"omitempty,grade"`
	StudentCount int      `json:"studentCount" validate:"min=0"`
	SchoolID     string   `json:"schoolId"`
	ClassIDs     []string `json:"classIds"`
	Status       string   `json:"status" validate:"omitempty,status"`
	Password     string   `json:"password"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Phone = core.CleanString(nt.Phone)
	nt.Grade = core.CleanString(nt.Grade)
	nt.SchoolID = core.CleanString(nt.SchoolID)
	nt.ClassIDs = cleanIDs(nt.ClassIDs)
	if nt.Status == "" {
		nt.Status = core.StatusActive
	}
	return validate.Struct(nt)
}

// UpdateTeacher is the allow-listed teacher update.
// An explicit null SchoolID unassigns the teacher; a null or empty Password removes it.
type UpdateTeacher struct {
	Name         *string        `json:"name" validate:"omitempty,notblank"`
	Email        *string        `json:"email" validate:"omitempty,email"`
	Phone        *string        `json:"phone"`
	Grade        *string        `json:"grade" validate:"omitempty,grade"`
	StudentCount *int           `json:"studentCount" validate:"omitempty,min=0"`
	SchoolID     NullableString `json:"schoolId"`
	ClassIDs     *[]string      `json:"classIds"`
	Status       *string        `json:"status" validate:"omitempty,status"`
	Password     NullableString `json:"password"`
}

func (ut *UpdateTeacher) Validate(validate *validator.Validate) error {
	if ut.Name != nil {
		name := core.CleanString(*ut.Name)
		ut.Name = &name
	}
	if ut.Email != nil {
		email := core.CleanString(*ut.Email, true /* lower */)
		ut.Email = &email
	}
	if ut.Grade != nil {
		g := core.CleanString(*ut.Grade)
		ut.Grade = &g
	}
	if ut.ClassIDs != nil {
		ids := cleanIDs(*ut.ClassIDs)
		ut.ClassIDs = &ids
	}
	return validate.Struct(ut)
}

type NewClass struct {
	Name           string   `json:"name" validate:"required,notblank"`
	Grade          string   `json:"grade" validate:"required,grade"`
	Section        string   `json:"section" validate:"required,notblank"`
	SchoolID       string   `json:"schoolId"`
	TeacherIDs     []string `json:"teacherIds"`
	StudentCount   int      `json:"studentCount" validate:"min=0"`
	FitnessMinutes int      `json:"fitnessMinutes" validate:"min=0"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Grade = core.CleanString(nc.Grade)
	nc.Section = core.CleanString(nc.Section)
	nc.SchoolID = core.CleanString(nc.SchoolID)
	nc.TeacherIDs = cleanIDs(nc.TeacherIDs)
	return validate.Struct(nc)
}

// UpdateClass is the allow-listed class update. Minutes only move through AddMinutes.
type UpdateClass struct {
	Name         *string   `json:"name" validate:"omitempty,notblank"`
	Grade        *string   `json:"grade" validate:"omitempty,grade"`
	Section      *string   `json:"section" validate:"omitempty,notblank"`
	TeacherIDs   *[]string `json:"teacherIds"`
	StudentCount *int      `json:"studentCount" validate:"omitempty,min=0"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	if uc.TeacherIDs != nil {
		ids := cleanIDs(*uc.TeacherIDs)
		uc.TeacherIDs = &ids
	}
	return validate.Struct(uc)
}

func (uc UpdateClass) Apply(cls *Class) {
	if uc.Name != nil {
		cls.Name = core.CleanString(*uc.Name)
	}
	if uc.Grade != nil {
		cls.Grade = core.CleanString(*uc.Grade)
	}
	if uc.Section != nil {
		cls.Section = core.CleanString(*uc.Section)
	}
	if uc.StudentCount != nil {
		cls.StudentCount = *uc.StudentCount
	}
}

type AddMinutes struct {
	Minutes int `json:"minutes"`
}

func (am AddMinutes) Validate() error {
	if am.Minutes < 1 {
		return core.NewFieldError("minutes", "minutes must be at least 1")
	}
	if am.Minutes > MaxMinutes {
		return core.NewFieldError("minutes", fmt.Sprintf("minutes must be at most %d", MaxMinutes))
	}
	return nil
}

type NewGradeGroup struct {
	Name     string    `json:"name" validate:"required,notblank"`
	Label    string    `json:"label" validate:"required,notblank"`
	SchoolID string    `json:"schoolId"`
	Grades   GradeList `json:"grades"`
	ClassIDs []string  `json:"classIds"`
}

func (ng *NewGradeGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Label = core.CleanString(ng.Label)
	ng.SchoolID = core.CleanString(ng.SchoolID)
	ng.ClassIDs = cleanIDs(ng.ClassIDs)
	return validate.Struct(ng)
}

type UpdateGradeGroup struct {
	Name     *string    `json:"name" validate:"omitempty,notblank"`
	Label    *string    `json:"label" validate:"omitempty,notblank"`
	Grades   *GradeList `json:"grades"`
	ClassIDs *[]string  `json:"classIds"`
}

func (ug *UpdateGradeGroup) Validate(validate *validator.Validate) error {
	if ug.ClassIDs != nil {
		ids := cleanIDs(*ug.ClassIDs)
		ug.ClassIDs = &ids
	}
	return validate.Struct(ug)
}

type NewPrize struct {
	Name            string `json:"name" validate:"required,notblank"`
	Description     string `json:"description" validate:"required,notblank"`
	MinutesRequired int    `json:"minutesRequired" validate:"min=0,max=2147483647"`
	Icon            string `json:"icon" validate:"required,notblank"`
	GradeGroupID    string `json:"gradeGroupId" validate:"required"`
	SchoolID        string `json:"schoolId"`
}

func (np *NewPrize) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Description = strings.TrimSpace(np.Description)
	np.Icon = core.CleanString(np.Icon)
	np.GradeGroupID = core.CleanString(np.GradeGroupID)
	np.SchoolID = core.CleanString(np.SchoolID)
	return validate.Struct(np)
}

type UpdatePrize struct {
	Name            *string `json:"name" validate:"omitempty,notblank"`
	Description     *string `json:"description" validate:"omitempty,notblank"`
	MinutesRequired *int    `json:"minutesRequired" validate:"omitempty,min=0,max=2147483647"`
	Icon            *string `json:"icon" validate:"omitempty,notblank"`
	GradeGroupID    *string `json:"gradeGroupId" validate:"omitempty,notblank"`
}

func (up *UpdatePrize) Validate(validate *validator.Validate) error { return validate.Struct(up) }

func (up UpdatePrize) Apply(prz *Prize) {
	if up.Name != nil {
		prz.Name = core.CleanString(*up.Name)
	}
	if up.Description != nil {
		prz.Description = strings.TrimSpace(*up.Description)
	}
	if up.MinutesRequired != nil {
		prz.MinutesRequired = *up.MinutesRequired
	}
	if up.Icon != nil {
		prz.Icon = core.CleanString(*up.Icon)
	}
	if up.GradeGroupID != nil {
		prz.GradeGroupID = core.CleanString(*up.GradeGroupID)
	}
}

type MarkDelivered struct {
	Delivered *bool `json:"delivered" validate:"required"`
}

func (md MarkDelivered) Validate(validate *validator.Validate) error { return validate.Struct(md) }

// AssignTeacher assigns an unassigned teacher to the caller's school by signup code.
type AssignTeacher struct {
	Code string `json:"code" validate:"required,len=4,numeric"`
}

func (at *AssignTeacher) Validate(validate *validator.Validate) error {
	at.Code = core.CleanString(at.Code)
	return validate.Struct(at)
}

// NullableString tells an absent JSON field (Set false) from an explicit null (Set true, Valid false).
type NullableString struct {
	Set   bool
	Valid bool
	Value string
}

func (ns *NullableString) UnmarshalJSON(b []byte) error {
	ns.Set = true
	if string(b) == "null" {
		ns.Valid = false
		ns.Value = ""
		return nil
	}
	if err := json.Unmarshal(b, &ns.Value); err != nil {
		return err
	}
	ns.Valid = true
	return nil
}

// GradeList accepts grades as a comma-separated string or as an array of strings.
type GradeList []string

func (gl *GradeList) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*gl = GradeList{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*gl = grade.Split(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return errors.New("grades must be a string or an array of strings")
	}
	*gl = list
	return nil
}

// Labels returns the list as stored: allowed grades only, in canonical form.
func (gl GradeList) Labels() string { return grade.JoinLabels(gl) }

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// checkContext reports a cancelled request before any write.
func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return core.NewTransientError(err)
	}
	return nil
}
