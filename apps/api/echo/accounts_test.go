package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/fitprize/fitprize/apps/api/echo"
	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/user"
	"github.com/fitprize/fitprize/testutil"
)

func Test_authApi_login(t *testing.T) {
	app := setup(t)
	sch, admin := testutil.CreateSchool(t, app.repo, "Springfield Elementary", "admin@springfield.edu", strongPwd)
	naughty := testutil.CreateUser(t, app.usrRepo, "Nelson", "nelson@springfield.edu", strongPwd, user.RoleSchoolAdmin, sch.ID)
	naughty.Status = core.StatusInactive
	if _, err := app.usrRepo.UpdateUser(context.Background(), naughty); err != nil {
		t.Fatalf("UpdateUser() failed: %v", err)
	}

	invalidCreds := marchallObj(t, httpErr{Error: user.ErrInvalidCredentials.Error()})
	login := func(email, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Email: email, Password: pwd})
	}

	app.run(t, []httpTest{
		{name: "empty body", method: http.MethodPost, path: "/v1/auth/login", wantCode: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, path: "/v1/auth/login", body: []byte(`{"username":"x"}`), wantCode: http.StatusBadRequest},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/v1/auth/login",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email":"this field is required","password":"this field is required"}`),
		},
		{name: "unknown email", method: http.MethodPost, path: "/v1/auth/login", body: login("who@test.com", strongPwd), wantCode: http.StatusUnauthorized, wantData: invalidCreds},
		{name: "wrong password", method: http.MethodPost, path: "/v1/auth/login", body: login(admin.Email, "wrong-pwd"), wantCode: http.StatusUnauthorized, wantData: invalidCreds},
		{
			name:     "inactive account",
			method:   http.MethodPost,
			path:     "/v1/auth/login",
			body:     login(naughty.Email, strongPwd),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: user.ErrAccountInactive.Error()}),
		},
	})

	t.Run("success", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/auth/login", "", login(" Admin@Springfield.edu ", strongPwd))
		if !assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
			return
		}
		var resp struct {
			Token string    `json:"token"`
			User  user.User `json:"user"`
		}
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, admin.ID, resp.User.ID)
		assert.NotNil(t, resp.User.LastLogin)

		rec = app.do(http.MethodGet, "/v1/auth/me", resp.Token)
		var me object[user.User]
		unmarshal(t, rec, &me)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, admin.ID, me.Data.ID)
		assert.Equal(t, user.RoleSchoolAdmin, me.Data.Role)
		assert.Equal(t, sch.ID, me.Data.SchoolID)
	})
}

func Test_authApi_teacher(t *testing.T) {
	app := setup(t)
	sch, admin := testutil.CreateSchool(t, app.repo, "Springfield Elementary", "admin@springfield.edu", "")
	noPwd := testutil.CreateTeacher(t, app.repo, "Dewey", "dewey@springfield.edu", "", sch.ID, "4th Grade")

	signup := []byte(`{"name":"Edna Krabappel","email":"edna@springfield.edu","password":"` + strongPwd + `","phone":"+12345678901"}`)
	login := marchallObj(t, echoapi.LoginRequest{Email: "edna@springfield.edu", Password: strongPwd})

	// sign up
	rec := app.do(http.MethodPost, "/v1/auth/teacher/signup", "", signup)
	if !assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String()) {
		return
	}
	var signedUp struct {
		Data struct {
			ID         string `json:"id"`
			SignupCode string `json:"signupCode"`
			SchoolID   string `json:"schoolId"`
		} `json:"data"`
	}
	unmarshal(t, rec, &signedUp)
	assert.Len(t, signedUp.Data.SignupCode, 4)
	assert.Empty(t, signedUp.Data.SchoolID)

	app.run(t, []httpTest{
		{name: "duplicate signup", method: http.MethodPost, path: "/v1/auth/teacher/signup", body: signup, wantCode: http.StatusBadRequest},
		{
			name:     "bad phone",
			method:   http.MethodPost,
			path:     "/v1/auth/teacher/signup",
			body:     []byte(`{"name":"Otto","email":"otto@springfield.edu","password":"` + strongPwd + `","phone":"555-1234"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"phone":"enter a valid number with country code (e.g. +12345678901)"}`),
		},
		{
			name:     "not assigned yet",
			method:   http.MethodPost,
			path:     "/v1/auth/teacher/login",
			body:     login,
			wantData: marchallObj(t, echoapi.NotAssignedResponse{NotAssigned: true, Code: signedUp.Data.SignupCode, Message: "Your account is not assigned to a school yet. Share this code with your school admin."}),
		},
		{
			name:     "no password set",
			method:   http.MethodPost,
			path:     "/v1/auth/teacher/login",
			body:     marchallObj(t, echoapi.LoginRequest{Email: noPwd.Email, Password: strongPwd}),
			wantCode: http.StatusUnauthorized,
		},
	})

	// the school admin assigns the teacher with the signup code
	adminToken := app.getToken(t, admin.Caller())
	rec = app.do(http.MethodPost, "/v1/teachers/assign", adminToken, []byte(`{"code":"`+signedUp.Data.SignupCode+`"}`))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(http.MethodPost, "/v1/auth/teacher/login", "", login)
	if !assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
		return
	}
	var resp echoapi.LoginResponse
	unmarshal(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)

	rec = app.do(http.MethodGet, "/v1/auth/me", resp.Token)
	var me struct {
		Data struct {
			ID         string `json:"id"`
			SchoolID   string `json:"schoolId"`
			SignupCode string `json:"signupCode"`
		} `json:"data"`
	}
	unmarshal(t, rec, &me)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, signedUp.Data.ID, me.Data.ID)
	assert.Equal(t, sch.ID, me.Data.SchoolID)
	assert.Empty(t, me.Data.SignupCode)
}

func Test_authApi_passwordReset(t *testing.T) {
	app := setup(t)
	_, admin := testutil.CreateSchool(t, app.repo, "Springfield Elementary", "admin@springfield.edu", strongPwd)
	newPwd := "Mv4$Tn8&Lp"

	// unknown emails get the same answer and no email
	rec := app.do(http.MethodPost, "/v1/auth/forgot-password", "", []byte(`{"email":"who@test.com"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, app.mailSvc.SentMessages())

	rec = app.do(http.MethodPost, "/v1/auth/forgot-password", "", []byte(`{"email":"`+admin.Email+`"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	sent := app.mailSvc.SentMessages()
	if !assert.Len(t, sent, 1) {
		return
	}
	assert.Equal(t, admin.Email, sent[0].To[0].Address)
	otp, _ := sent[0].TemplateData.(map[string]interface{})["OTP"].(string)
	assert.Len(t, otp, 6)

	app.run(t, []httpTest{
		{
			name:     "wrong otp",
			method:   http.MethodPost,
			path:     "/v1/auth/verify-otp",
			body:     []byte(`{"email":"` + admin.Email + `","otp":"000000"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidOTP.Error()}),
		},
		{
			name:     "invalid reset token",
			method:   http.MethodPost,
			path:     "/v1/auth/reset-password",
			body:     []byte(`{"resetToken":"nope","newPassword":"` + newPwd + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidResetToken.Error()}),
		},
	})

	rec = app.do(http.MethodPost, "/v1/auth/verify-otp", "", []byte(`{"email":"`+admin.Email+`","otp":"`+otp+`"}`))
	if !assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
		return
	}
	var verified echoapi.VerifyOTPResponse
	unmarshal(t, rec, &verified)
	assert.NotEmpty(t, verified.ResetToken)

	rec = app.do(http.MethodPost, "/v1/auth/reset-password", "", []byte(`{"resetToken":"`+verified.ResetToken+`","newPassword":"abc"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodPost, "/v1/auth/reset-password", "", []byte(`{"resetToken":"`+verified.ResetToken+`","newPassword":"`+newPwd+`"}`))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the token is single use
	rec = app.do(http.MethodPost, "/v1/auth/reset-password", "", []byte(`{"resetToken":"`+verified.ResetToken+`","newPassword":"`+newPwd+`"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodPost, "/v1/auth/login", "", marchallObj(t, echoapi.LoginRequest{Email: admin.Email, Password: newPwd}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_authApi_refreshToken(t *testing.T) {
	app := setup(t)
	_, admin := testutil.CreateSchool(t, app.repo, "Springfield Elementary", "admin@springfield.edu", "")
	expired := time.Now().Add(-app.conf.Server.JWTRefreshExpirationDelta - time.Minute).Unix()

	app.run(t, []httpTest{
		{name: "no token", method: http.MethodPost, path: "/v1/auth/token-refresh", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name:     "refresh expired",
			method:   http.MethodPost,
			path:     "/v1/auth/token-refresh",
			token:    app.getToken(t, admin.Caller(), expired),
			wantCode: http.StatusUnauthorized,
			wantData: []byte(`{"error":"refresh has expired"}`),
		},
	})

	t.Run("refreshed", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/auth/token-refresh", app.getToken(t, admin.Caller()))
		if !assert.Equal(t, http.StatusOK, rec.Code) {
			return
		}
		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		claims, err := app.auth.ParseToken(resp.Token)
		if assert.NoError(t, err) {
			assert.Equal(t, admin.ID, claims.Subject)
			assert.Equal(t, user.RoleSchoolAdmin, claims.Role)
		}
	})
}

func Test_authMiddleware(t *testing.T) {
	app := setup(t)
	sch, admin := testutil.CreateSchool(t, app.repo, "Springfield Elementary", "admin@springfield.edu", "")
	gone := testutil.CreateUser(t, app.usrRepo, "Gone", "gone@springfield.edu", "", user.RoleSchoolAdmin, sch.ID)
	idle := testutil.CreateUser(t, app.usrRepo, "Idle", "idle@springfield.edu", "", user.RoleSchoolAdmin, sch.ID)
	tchr := testutil.CreateTeacher(t, app.repo, "Edna", "edna@springfield.edu", "", sch.ID, "4th Grade")

	ctx := context.Background()
	if err := app.usrRepo.DeleteUser(ctx, gone.ID); err != nil {
		t.Fatalf("DeleteUser() failed: %v", err)
	}
	idle.Status = core.StatusInactive
	if _, err := app.usrRepo.UpdateUser(ctx, idle); err != nil {
		t.Fatalf("UpdateUser() failed: %v", err)
	}

	// a teacher token naming an admin role is resolved against the users, where the teacher does not exist
	forged := tchr.Caller()
	forged.Role = user.RoleSuperAdmin

	app.run(t, []httpTest{
		{name: "missing token", method: http.MethodGet, path: "/v1/auth/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "garbage token", method: http.MethodGet, path: "/v1/auth/me", token: "garbage", wantCode: http.StatusUnauthorized},
		{name: "deleted account", method: http.MethodGet, path: "/v1/auth/me", token: app.getToken(t, gone.Caller()), wantCode: http.StatusUnauthorized, wantData: []byte(`{"error":"not authenticated"}`)},
		{name: "inactive account", method: http.MethodGet, path: "/v1/auth/me", token: app.getToken(t, idle.Caller()), wantCode: http.StatusUnauthorized, wantData: []byte(`{"error":"account is inactive"}`)},
		{name: "forged role", method: http.MethodGet, path: "/v1/dashboard/stats", token: app.getToken(t, forged), wantCode: http.StatusUnauthorized},
		{name: "teacher on admin endpoint", method: http.MethodGet, path: "/v1/dashboard/stats", token: app.getToken(t, tchr.Caller()), wantCode: http.StatusForbidden, wantData: []byte(`{"error":"permission denied"}`)},
		{name: "admin", method: http.MethodGet, path: "/v1/auth/me", token: app.getToken(t, admin.Caller())},
		{name: "health is public", method: http.MethodGet, path: "/health", wantData: []byte(`{"status":"ok"}`)},
	})
}
