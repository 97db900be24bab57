package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/core/user"
	"github.com/fitprize/fitprize/testutil"
)

func Test_schoolApi(t *testing.T) {
	app := setup(t)
	root := testutil.CreateUser(t, app.usrRepo, "Root", "root@fitprize.com", "", user.RoleSuperAdmin, "")
	springfield, admin := testutil.CreateSchool(t, app.repo, "Springfield Elementary", "admin@springfield.edu", "")
	shelbyville, _ := testutil.CreateSchool(t, app.repo, "Shelbyville Elementary", "admin@shelbyville.edu", "")
	tchr := testutil.CreateTeacher(t, app.repo, "Edna", "edna@springfield.edu", "", springfield.ID, "4th Grade")

	rootToken := app.getToken(t, root.Caller())
	adminToken := app.getToken(t, admin.Caller())
	tchrToken := app.getToken(t, tchr.Caller())

	newSchool := []byte(`{"name":"West Springfield","address":"2 Evergreen Terrace","phone":"+12345678902","email":"admin@westspringfield.edu","password":"` + strongPwd + `"}`)

	app.run(t, []httpTest{
		{name: "create as school admin", method: http.MethodPost, path: "/v1/schools", body: newSchool, token: adminToken, wantCode: http.StatusForbidden},
		{name: "create unknown field", method: http.MethodPost, path: "/v1/schools", body: []byte(`{"name":"x","motto":"y"}`), token: rootToken, wantCode: http.StatusBadRequest},
		{
			name:     "create taken email",
			method:   http.MethodPost,
			path:     "/v1/schools",
			body:     []byte(`{"name":"Copycat","address":"3 Main","phone":"+12345678903","email":"admin@springfield.edu","password":"` + strongPwd + `"}`),
			token:    rootToken,
			wantCode: http.StatusBadRequest,
		},
		{name: "other school", method: http.MethodGet, path: "/v1/schools/" + shelbyville.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "unknown school", method: http.MethodGet, path: "/v1/schools/nope", token: rootToken, wantCode: http.StatusNotFound, wantData: []byte(`{"error":"school not found"}`)},
		{name: "teacher reads own school", method: http.MethodGet, path: "/v1/schools/" + springfield.ID, token: tchrToken},
		{name: "update as school admin", method: http.MethodPut, path: "/v1/schools/" + springfield.ID, body: []byte(`{"name":"x"}`), token: adminToken, wantCode: http.StatusForbidden},
	})

	t.Run("create", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/schools", rootToken, newSchool)
		if !assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String()) {
			return
		}
		var created object[school.SchoolDetails]
		unmarshal(t, rec, &created)
		assert.Equal(t, "West Springfield", created.Data.Name)
		assert.Equal(t, "active", created.Data.Status)
		if assert.Len(t, created.Data.Admins, 1) {
			assert.Equal(t, "admin@westspringfield.edu", created.Data.Admins[0].Email)
		}

		// the school admin logs in with the school email
		rec = app.do(http.MethodPost, "/v1/auth/login", "", []byte(`{"email":"admin@westspringfield.edu","password":"`+strongPwd+`"}`))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("list is scoped", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/schools", adminToken)
		var got page[school.SchoolDetails]
		unmarshal(t, rec, &got)
		assert.Equal(t, http.StatusOK, rec.Code)
		if assert.Len(t, got.Data, 1) {
			assert.Equal(t, springfield.ID, got.Data[0].ID)
			assert.Equal(t, 1, got.Data[0].TeacherCount)
		}
		assert.Equal(t, 1, got.Pagination.Total)

		rec = app.do(http.MethodGet, "/v1/schools?limit=2", rootToken)
		unmarshal(t, rec, &got)
		assert.Len(t, got.Data, 2)
		assert.Equal(t, 3, got.Pagination.Total)
		assert.True(t, got.Pagination.HasNext)
	})

	t.Run("update", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/schools/"+springfield.ID, rootToken, []byte(`{"address":"19 Plympton Street"}`))
		var got object[school.SchoolDetails]
		unmarshal(t, rec, &got)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "19 Plympton Street", got.Data.Address)
		assert.Equal(t, springfield.Name, got.Data.Name)
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/schools/"+shelbyville.ID, rootToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = app.do(http.MethodGet, "/v1/schools/"+shelbyville.ID, rootToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
