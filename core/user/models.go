package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fitprize/fitprize/core"
)

// Roles
const (
	RoleSuperAdmin  = "super_admin"
	RoleSchoolAdmin = "school_admin"
	RoleTeacher     = "teacher"
)

var AdminRoles = []string{RoleSuperAdmin, RoleSchoolAdmin}

// User is an admin account. Teachers live in their own table (see school.Teacher).
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	SchoolID     string     `json:"schoolId,omitempty"`
	Status       string     `json:"status"`
	PasswordHash []byte     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"` // UTC
	UpdatedAt    time.Time  `json:"updatedAt"` // UTC
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := core.HashPassword(pwd)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return core.CheckPassword(u.PasswordHash, pwd)
}

func (u *User) IsActive() bool { return u.Status != core.StatusInactive }

// Caller returns the identity the user acts with.
func (u User) Caller() Caller {
	return Caller{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
		SchoolID: u.SchoolID,
	}
}

// Caller is the authenticated identity of a request or a socket connection.
// Grade is only set for teachers.
type Caller struct {
	ID       string
	Email    string
	Name     string
	Role     string
	SchoolID string
	Grade    string
}

func (c Caller) IsSuperAdmin() bool  { return c.Role == RoleSuperAdmin }
func (c Caller) IsSchoolAdmin() bool { return c.Role == RoleSchoolAdmin }
func (c Caller) IsTeacher() bool     { return c.Role == RoleTeacher }
func (c Caller) IsAdmin() bool       { return c.IsSuperAdmin() || c.IsSchoolAdmin() }

// NewUser contains information needed to create a new admin User.
type NewUser struct {
	Name     string `json:"name" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=super_admin school_admin"`
	SchoolID string `json:"schoolId"`
	Status   string `json:"status" validate:"omitempty,status"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.SchoolID = core.CleanString(nu.SchoolID)
	if nu.Role == "" {
		nu.Role = RoleSchoolAdmin
	}
	if nu.Status == "" {
		nu.Status = core.StatusActive
	}

	if err := validate.Struct(nu); err != nil {
		return err
	}
	if nu.Role == RoleSchoolAdmin && nu.SchoolID == "" {
		return core.NewFieldError("schoolId", "this field is required")
	}
	return svc.CheckEmailUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Nil fields are left untouched.
type UpdateUser struct {
	Name     *string `json:"name" validate:"omitempty,notblank"`
	Email    *string `json:"email" validate:"omitempty,email"`
	SchoolID *string `json:"schoolId" validate:"omitempty,notblank"`
	Status   *string `json:"status" validate:"omitempty,status"`
	Password *string `json:"password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	if uu.Name != nil {
		name := core.CleanString(*uu.Name)
		uu.Name = &name
	}
	if uu.Email != nil {
		email := core.CleanString(*uu.Email, true /* lower */)
		uu.Email = &email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	if uu.Email != nil && *uu.Email != origUsr.Email {
		return svc.CheckEmailUniqueness(ctx, *uu.Email, origUsr.ID)
	}
	return nil
}

// Apply copies the set fields onto usr.
func (uu UpdateUser) Apply(usr *User) error {
	if uu.Name != nil {
		usr.Name = *uu.Name
	}
	if uu.Email != nil {
		usr.Email = *uu.Email
	}
	if uu.SchoolID != nil {
		usr.SchoolID = *uu.SchoolID
	}
	if uu.Status != nil {
		usr.Status = *uu.Status
	}
	if uu.Password != nil && *uu.Password != "" {
		return usr.SetPassword(*uu.Password)
	}
	return nil
}

type ResetPassword struct {
	ResetToken  string `json:"resetToken" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (rp ResetPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search    string `query:"search"`
	Role      string `query:"role"`
	SchoolID  string `query:"schoolId"`
	Status    string `query:"status"`
	Page      core.Page
	Orderings []core.DBOrdering
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Page.Clean()
}
