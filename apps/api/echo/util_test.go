package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/fitprize/fitprize/apps/api/echo"
	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/realtime"
	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/core/user"
	emailsvc "github.com/fitprize/fitprize/services/email"
	inmemdb "github.com/fitprize/fitprize/storage/database/inmem"
	"github.com/fitprize/fitprize/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

const strongPwd = "Xq7#Zr9!Kw"

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

type testApp struct {
	echoapi.Server
	conf    *core.Config
	auth    *echoapi.Authenticator
	repo    school.Repository
	usrRepo user.Repository
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) testApp {
	conf := testutil.NewConfig()
	core.ParseEmailTemplates(conf, testutil.NopLogger{})

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	repo := inmemdb.NewSchoolRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{})
	usrSvc := user.NewService(usrRepo, mailSvc, user.NewOTPStore(conf.Auth.OTPTTL, conf.Auth.ResetTokenTTL))
	schoolSvc := school.NewService(repo, usrRepo, realtime.NewNotifier(realtime.NopEmitter{}))
	validate, translator := testutil.NewValidator()
	auth := echoapi.NewAuthenticator(conf, usrSvc, schoolSvc)

	// set up server
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     testutil.NopLogger{},
		UserSvc:    usrSvc,
		SchoolSvc:  schoolSvc,
		Validate:   validate,
		Translator: translator,
		Auth:       auth,
	})
	t.Cleanup(func() { _ = server.Close() })

	return testApp{
		Server:  server,
		conf:    conf,
		auth:    auth,
		repo:    repo,
		usrRepo: usrRepo,
		mailSvc: mailSvc,
	}
}

func (app testApp) getToken(t *testing.T, caller user.Caller, origIat ...int64) string {
	token, err := app.auth.GenerateToken(app.auth.Claims(caller, origIat...))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// do serves a single request and returns the recorder.
func (app testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func (app testApp) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			rec := app.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

// checkCodeAndData compares the body only when tt.wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// page is the envelope of list endpoints.
type page[T any] struct {
	Data       []T             `json:"data"`
	Pagination core.Pagination `json:"pagination"`
}

// object is the envelope of detail endpoints.
type object[T any] struct {
	Data T `json:"data"`
}
