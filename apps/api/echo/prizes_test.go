package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/core/user"
	"github.com/fitprize/fitprize/testutil"
)

func Test_prizeApi(t *testing.T) {
	app := setup(t)
	springfield, admin := testutil.CreateSchool(t, app.repo, "Springfield Elementary", "admin@springfield.edu", "")
	edna := testutil.CreateTeacher(t, app.repo, "Edna", "edna@springfield.edu", "", springfield.ID, "4th Grade")
	cls := testutil.CreateClass(t, app.repo, "4A", "4th Grade", springfield.ID, 0, edna.ID)

	adminToken := app.getToken(t, admin.Caller())
	ednaToken := app.getToken(t, edna.Caller())

	// build the ladder through the API
	rec := app.do(http.MethodPost, "/v1/grade-groups", adminToken, []byte(`{"name":"Upper","label":"Grades 3-5","grades":["3rd Grade","4th Grade","5th Grade"],"classIds":["`+cls.ID+`"]}`))
	if !assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String()) {
		return
	}
	var grp object[school.GradeGroup]
	unmarshal(t, rec, &grp)
	assert.Equal(t, springfield.ID, grp.Data.SchoolID)
	assert.Equal(t, []string{cls.ID}, grp.Data.ClassIDs)

	for _, body := range []string{
		`{"name":"Stickers","description":"A sheet of stickers","minutesRequired":100,"icon":"star","gradeGroupId":"` + grp.Data.ID + `"}`,
		`{"name":"Pizza party","description":"Pizza for the class","minutesRequired":200,"icon":"pizza","gradeGroupId":"` + grp.Data.ID + `"}`,
	} {
		rec = app.do(http.MethodPost, "/v1/prizes", adminToken, []byte(body))
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		time.Sleep(time.Millisecond)
	}

	rec = app.do(http.MethodPost, "/v1/classes/"+cls.ID+"/add-minutes", ednaToken, []byte(`{"minutes":300}`))
	var upd school.MinutesUpdate
	unmarshal(t, rec, &upd)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, upd.NewEarnedPrizes)

	app.run(t, []httpTest{
		{name: "teacher cannot create prize", method: http.MethodPost, path: "/v1/prizes", body: []byte(`{"name":"x"}`), token: ednaToken, wantCode: http.StatusForbidden},
		{
			name:     "prize without grade group",
			method:   http.MethodPost,
			path:     "/v1/prizes",
			body:     []byte(`{"name":"Medal","description":"A medal","minutesRequired":50,"icon":"medal"}`),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"gradeGroupId":"this field is required"}`),
		},
		{name: "bad delivered filter", method: http.MethodGet, path: "/v1/earned-prizes?delivered=maybe", token: adminToken, wantCode: http.StatusBadRequest},
		{name: "teacher lists without class", method: http.MethodGet, path: "/v1/earned-prizes", token: ednaToken, wantCode: http.StatusBadRequest},
		{name: "teacher pending count", method: http.MethodGet, path: "/v1/earned-prizes/pending-count", token: ednaToken, wantCode: http.StatusForbidden},
		{name: "pending count", method: http.MethodGet, path: "/v1/earned-prizes/pending-count", token: adminToken, wantData: []byte(`{"data":{"count":2}}`)},
		{name: "page past the end", method: http.MethodGet, path: "/v1/grade-groups?page=922337203685477582", token: adminToken},
		{name: "unknown earned prize", method: http.MethodGet, path: "/v1/earned-prizes/nope", token: adminToken, wantCode: http.StatusNotFound},
		{
			name:     "dashboard",
			method:   http.MethodGet,
			path:     "/v1/dashboard/stats",
			token:    adminToken,
			wantData: []byte(`{"data":{"totalTeachers":1,"activeTeachers":1,"totalClasses":1,"totalStudents":20}}`),
		},
	})

	t.Run("grade group prizes", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/grade-groups/"+grp.Data.ID+"/prizes", ednaToken)
		var got object[[]school.Prize]
		unmarshal(t, rec, &got)
		assert.Equal(t, http.StatusOK, rec.Code)
		if assert.Len(t, got.Data, 2) {
			assert.Equal(t, "Stickers", got.Data[0].Name)
			assert.Equal(t, "Pizza party", got.Data[1].Name)
		}
	})

	t.Run("teacher sees class prizes", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/prizes?classId="+cls.ID, ednaToken)
		var got page[school.Prize]
		unmarshal(t, rec, &got)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, got.Pagination.Total)
	})

	t.Run("deliver", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/earned-prizes?delivered=false", adminToken)
		var pending page[school.EarnedPrize]
		unmarshal(t, rec, &pending)
		if !assert.Len(t, pending.Data, 2) {
			return
		}
		id := pending.Data[0].ID

		rec = app.do(http.MethodPatch, "/v1/earned-prizes/"+id, ednaToken, []byte(`{"delivered":true}`))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = app.do(http.MethodPatch, "/v1/earned-prizes/"+id, adminToken, []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = app.do(http.MethodPatch, "/v1/earned-prizes/"+id, adminToken, []byte(`{"delivered":true}`))
		var delivered object[school.EarnedPrize]
		unmarshal(t, rec, &delivered)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, delivered.Data.Delivered)

		rec = app.do(http.MethodGet, "/v1/earned-prizes/pending-count", adminToken)
		assert.JSONEq(t, `{"data":{"count":1}}`, rec.Body.String())

		rec = app.do(http.MethodGet, "/v1/earned-prizes?delivered=true&classId="+cls.ID, ednaToken)
		var done page[school.EarnedPrize]
		unmarshal(t, rec, &done)
		assert.Equal(t, http.StatusOK, rec.Code)
		if assert.Len(t, done.Data, 1) {
			assert.Equal(t, id, done.Data[0].ID)
		}
	})

	t.Run("super admin dashboard", func(t *testing.T) {
		root := testutil.CreateUser(t, app.usrRepo, "Root", "root@fitprize.com", "", user.RoleSuperAdmin, "")
		rec := app.do(http.MethodGet, "/v1/dashboard/stats", app.getToken(t, root.Caller()))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":{"totalSchools":1,"activeSchools":1,"totalAdmins":1,"totalTeachers":1,"totalClasses":1}}`, rec.Body.String())
	})
}
