package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
)

var (
	ErrNotFound           = core.NewNotFoundError("user")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is inactive")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		// GetUser returns the non-deleted user matching every set field of filter.
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers returns one page of matching users and the total count of matches.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, int, error)
		EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id string) error
	}

	Service interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter QueryFilter) ([]User, int, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, id string) error
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		VerifyOTP(ctx context.Context, email, otp string) (string, error)
		ResetPassword(ctx context.Context, rp ResetPassword) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		otps    *OTPStore
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, otps *OTPStore) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		otps:    otps,
	}
}

func (svc *service) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	exists, err := svc.repo.EmailExists(ctx, email, excludedIDs...)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		SchoolID:  nu.SchoolID,
		Status:    nu.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Role == RoleSuperAdmin {
		usr.SchoolID = ""
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]User, int, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	if err = uu.Apply(&usr); err != nil {
		return User{}, errors.Wrap(err, "applying update")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteUser(ctx, id)
}

// Authenticate checks the credentials of an admin account.
func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if !usr.IsActive() {
		return User{}, ErrAccountInactive
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	usr.LastLogin = &now
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset emails a one-time code to the account owner.
func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	otp, err := svc.otps.IssueOTP(usr.Email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(usr, otp)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User, otp string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset Code",
		TemplateName: "password_reset_otp",
		TemplateData: map[string]interface{}{
			"OTP":      otp,
			"ValidFor": fmt.Sprintf("%.0f minutes", svc.otps.otpTTL.Minutes()),
		},
	})
}

func (svc *service) VerifyOTP(_ context.Context, email, otp string) (string, error) {
	return svc.otps.VerifyOTP(core.CleanString(email, true /* lower */), core.CleanString(otp))
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetPassword) error {
	email, err := svc.otps.ResetEmail(rp.ResetToken)
	if err != nil {
		return err
	}
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(rp.NewPassword); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	svc.otps.ConsumeResetToken(rp.ResetToken)
	return nil
}
