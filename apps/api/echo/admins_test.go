package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fitprize/fitprize/core/user"
	"github.com/fitprize/fitprize/testutil"
)

func Test_adminApi(t *testing.T) {
	app := setup(t)
	root := testutil.CreateUser(t, app.usrRepo, "Root", "root@fitprize.com", "", user.RoleSuperAdmin, "")
	springfield, admin := testutil.CreateSchool(t, app.repo, "Springfield Elementary", "admin@springfield.edu", "")
	testutil.CreateSchool(t, app.repo, "Shelbyville Elementary", "admin@shelbyville.edu", "")

	rootToken := app.getToken(t, root.Caller())
	newAdmin := func(schoolID string) []byte {
		return []byte(`{"name":"Agnes","email":"agnes@springfield.edu","password":"` + strongPwd + `","schoolId":"` + schoolID + `"}`)
	}

	app.run(t, []httpTest{
		{name: "school admin", method: http.MethodGet, path: "/v1/admins", token: app.getToken(t, admin.Caller()), wantCode: http.StatusForbidden},
		{name: "no school", method: http.MethodPost, path: "/v1/admins", body: newAdmin(""), token: rootToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"schoolId":"this field is required"}`)},
		{name: "unknown school", method: http.MethodPost, path: "/v1/admins", body: newAdmin("nope"), token: rootToken, wantCode: http.StatusNotFound, wantData: []byte(`{"error":"school not found"}`)},
		{name: "unknown admin", method: http.MethodGet, path: "/v1/admins/nope", token: rootToken, wantCode: http.StatusNotFound, wantData: []byte(`{"error":"user not found"}`)},
		{name: "delete self", method: http.MethodDelete, path: "/v1/admins/" + root.ID, token: rootToken, wantCode: http.StatusForbidden},
	})

	t.Run("list", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/admins?ordering=email", rootToken)
		var got page[user.User]
		unmarshal(t, rec, &got)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, got.Pagination.Total)
		for _, usr := range got.Data {
			assert.Equal(t, user.RoleSchoolAdmin, usr.Role)
		}
	})

	t.Run("create, update & delete", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/admins", rootToken, newAdmin(springfield.ID))
		if !assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String()) {
			return
		}
		var created object[user.User]
		unmarshal(t, rec, &created)
		assert.Equal(t, user.RoleSchoolAdmin, created.Data.Role)
		assert.Equal(t, springfield.ID, created.Data.SchoolID)

		rec = app.do(http.MethodPut, "/v1/admins/"+created.Data.ID, rootToken, []byte(`{"name":"Agnes Skinner","status":"inactive"}`))
		var updated object[user.User]
		unmarshal(t, rec, &updated)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Agnes Skinner", updated.Data.Name)
		assert.Equal(t, "inactive", updated.Data.Status)

		rec = app.do(http.MethodPut, "/v1/admins/"+created.Data.ID, rootToken, []byte(`{"email":"admin@springfield.edu"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = app.do(http.MethodDelete, "/v1/admins/"+created.Data.ID, rootToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = app.do(http.MethodGet, "/v1/admins/"+created.Data.ID, rootToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
