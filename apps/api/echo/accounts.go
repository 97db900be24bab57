package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/core/user"
)

type authApi struct {
	auth      *Authenticator
	usrSvc    user.Service
	schoolSvc *school.Service
	validate  *validator.Validate
	logger    core.Logger
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *Authenticator, deps ServerDeps) {
	api := authApi{
		auth:      auth,
		usrSvc:    deps.UserSvc,
		schoolSvc: deps.SchoolSvc,
		validate:  deps.Validate,
		logger:    deps.Logger,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/forgot-password` & `/verify-otp`
	ag.POST("/login", api.login)
	ag.POST("/teacher/login", api.teacherLogin)
	ag.POST("/teacher/signup", api.teacherSignup)
	ag.POST("/forgot-password", api.forgotPassword)
	ag.POST("/verify-otp", api.verifyOTP)
	ag.POST("/reset-password", api.resetPassword)

	// authed endpoints
	ag.GET("/me", api.me, jwt)
	ag.POST("/token-refresh", api.refreshToken, jwt)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string      `json:"token"`
		User  interface{} `json:"user,omitempty"`
	}

	NotAssignedResponse struct {
		NotAssigned bool   `json:"notAssigned"`
		Code        string `json:"code"`
		Message     string `json:"message"`
	}

	ForgotPasswordRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	VerifyOTPRequest struct {
		Email string `json:"email" validate:"required,email"`
		OTP   string `json:"otp" validate:"required,len=6,numeric"`
	}

	VerifyOTPResponse struct {
		ResetToken string `json:"resetToken"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (fr *ForgotPasswordRequest) Validate(validate *validator.Validate) error {
	fr.Email = core.CleanString(fr.Email, true /* lower */)
	return validate.Struct(fr)
}

func (vr *VerifyOTPRequest) Validate(validate *validator.Validate) error {
	vr.Email = core.CleanString(vr.Email, true /* lower */)
	vr.OTP = core.CleanString(vr.OTP)
	return validate.Struct(vr)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	usr, err := api.usrSvc.Authenticate(rctx, data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	if usr, err = api.usrSvc.SetLastLogin(rctx, usr); err != nil {
		return errors.Wrap(err, "setting lastLogin")
	}

	token, err := api.auth.GenerateToken(api.auth.Claims(usr.Caller()))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *authApi) teacherLogin(ctx echo.Context) error {
	var data LoginRequest
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tchr, err := api.schoolSvc.AuthenticateTeacher(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		var notAssigned *school.NotAssignedError
		if errors.As(err, &notAssigned) {
			return ctx.JSON(http.StatusOK, NotAssignedResponse{
				NotAssigned: true,
				Code:        notAssigned.Code,
				Message:     "Your account is not assigned to a school yet. Share this code with your school admin.",
			})
		}
		return errors.Wrap(err, "authenticating teacher")
	}

	token, err := api.auth.GenerateToken(api.auth.Claims(tchr.Caller()))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: tchr})
}

func (api *authApi) teacherSignup(ctx echo.Context) error {
	var data school.TeacherSignup
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tchr, err := api.schoolSvc.Signup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing teacher up")
	}
	return respondCreated(ctx, tchr)
}

func (api *authApi) forgotPassword(ctx echo.Context) error {
	var data ForgotPasswordRequest
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.usrSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		api.logger.Error(fmt.Sprintf("requesting password reset: %v", err), errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with a code to reset your password.",
	})
}

func (api *authApi) verifyOTP(ctx echo.Context) error {
	var data VerifyOTPRequest
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	token, err := api.usrSvc.VerifyOTP(ctx.Request().Context(), data.Email, data.OTP)
	if err != nil {
		return errors.Wrap(err, "verifying OTP")
	}
	return ctx.JSON(http.StatusOK, VerifyOTPResponse{ResetToken: token})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data user.ResetPassword
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.usrSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *authApi) me(ctx echo.Context) error {
	caller, err := contextCaller(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context caller")
	}

	rctx := ctx.Request().Context()
	if caller.IsTeacher() {
		tchr, err := api.schoolSvc.TeacherByID(rctx, caller.ID)
		if err != nil {
			return errors.Wrap(err, "finding teacher by ID")
		}
		return respondOK(ctx, tchr)
	}
	usr, err := api.usrSvc.GetByID(rctx, caller.ID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return respondOK(ctx, usr)
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}
