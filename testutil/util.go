// Package testutil holds the fixtures shared by the package tests. Every fixture is stored in the in-memory store.
package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/core/user"
)

// NopLogger discards everything.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// NewConfig returns the configuration of the TEST environment, without reading the environment.
func NewConfig() *core.Config {
	conf := &core.Config{
		Env:              "TEST",
		AppName:          "Fitprize",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Fitprize", Address: "noreply@localhost"},
	}
	conf.Server.ShutdownTimeout = time.Second
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	conf.Database.Engine = core.EngineMemory
	conf.Realtime.Enabled = true
	conf.Realtime.SendBuffer = 16
	conf.Auth.OTPTTL = 10 * time.Minute
	conf.Auth.ResetTokenTTL = 30 * time.Minute
	return conf
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator returns a validator with every application tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	return validate, translator
}

func fatal(t *testing.T, fn string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s() failed: %v", fn, err)
	}
}

// CreateSchool stores an active school along with its admin account, who logs in with the school email and pwd.
func CreateSchool(t *testing.T, repo school.Repository, name, email, pwd string) (school.School, user.User) {
	t.Helper()
	now := time.Now().UTC()
	sch := school.School{
		ID:        uuid.New().String(),
		Name:      name,
		Address:   "1 Main Street",
		Phone:     "+12345678901",
		Email:     email,
		Status:    core.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	admin := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      user.RoleSchoolAdmin,
		SchoolID:  sch.ID,
		Status:    core.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		fatal(t, "CreateSchool", admin.SetPassword(pwd))
	}
	sch, err := repo.CreateSchool(context.Background(), sch, admin)
	fatal(t, "CreateSchool", err)
	return sch, admin
}

// CreateUser stores an admin account. schoolID is ignored for super admins.
func CreateUser(t *testing.T, repo user.Repository, name, email, pwd, role, schoolID string, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      role,
		SchoolID:  schoolID,
		Status:    core.StatusActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if role == user.RoleSuperAdmin {
		usr.SchoolID = ""
	}
	if pwd != "" {
		fatal(t, "CreateUser", usr.SetPassword(pwd))
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	fatal(t, "CreateUser", err)
	return usr
}

// CreateTeacher stores an active teacher linked to classIDs. An empty schoolID leaves the teacher unassigned.
func CreateTeacher(t *testing.T, repo school.Repository, name, email, pwd, schoolID, grd string, classIDs ...string) school.Teacher {
	t.Helper()
	now := time.Now().UTC()
	tchr := school.Teacher{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Phone:     "+12345678901",
		Grade:     grd,
		SchoolID:  schoolID,
		Status:    core.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		ClassIDs:  classIDs,
	}
	if pwd != "" {
		fatal(t, "CreateTeacher", tchr.SetPassword(pwd))
	}
	tchr, err := repo.CreateTeacher(context.Background(), tchr)
	fatal(t, "CreateTeacher", err)
	return tchr
}

// CreateClass stores a class of schoolID with `minutes` fitness minutes, linked to teacherIDs in order.
func CreateClass(t *testing.T, repo school.Repository, name, grd, schoolID string, minutes int, teacherIDs ...string) school.Class {
	t.Helper()
	now := time.Now().UTC()
	cls, err := repo.CreateClass(context.Background(), school.Class{
		ID:             uuid.New().String(),
		Name:           name,
		Grade:          grd,
		Section:        "A",
		SchoolID:       schoolID,
		StudentCount:   20,
		FitnessMinutes: minutes,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	fatal(t, "CreateClass", err)
	if len(teacherIDs) > 0 {
		fatal(t, "CreateClass", repo.SetClassTeachers(context.Background(), cls.ID, teacherIDs))
	}
	return cls
}

// CreateGradeGroup stores a grade group. An empty schoolID makes an orphan group.
func CreateGradeGroup(t *testing.T, repo school.Repository, name, grades, schoolID string, classIDs ...string) school.GradeGroup {
	t.Helper()
	now := time.Now().UTC()
	grp, err := repo.CreateGradeGroup(context.Background(), school.GradeGroup{
		ID:        uuid.New().String(),
		Name:      name,
		Label:     name,
		Grades:    grades,
		SchoolID:  schoolID,
		CreatedAt: now,
		UpdatedAt: now,
		ClassIDs:  classIDs,
	})
	fatal(t, "CreateGradeGroup", err)
	return grp
}

// CreatePrize stores a rung of the ladder of schoolID. Rungs of equal cost are ordered by createdAt.
func CreatePrize(t *testing.T, repo school.Repository, name string, minutes int, gradeGroupID, schoolID string, createdAt ...time.Time) school.Prize {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	prz, err := repo.CreatePrize(context.Background(), school.Prize{
		ID:              uuid.New().String(),
		Name:            name,
		Description:     name + " prize",
		MinutesRequired: minutes,
		Icon:            "trophy",
		GradeGroupID:    gradeGroupID,
		SchoolID:        schoolID,
		CreatedAt:       tstamp,
		UpdatedAt:       tstamp,
	})
	fatal(t, "CreatePrize", err)
	return prz
}
