package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/testutil"
)

func Test_classApi(t *testing.T) {
	app := setup(t)
	springfield, admin := testutil.CreateSchool(t, app.repo, "Springfield Elementary", "admin@springfield.edu", "")
	shelbyville, rival := testutil.CreateSchool(t, app.repo, "Shelbyville Elementary", "admin@shelbyville.edu", "")
	edna := testutil.CreateTeacher(t, app.repo, "Edna", "edna@springfield.edu", "", springfield.ID, "4th Grade")
	dewey := testutil.CreateTeacher(t, app.repo, "Dewey", "dewey@springfield.edu", "", springfield.ID, "4th Grade")

	cls := testutil.CreateClass(t, app.repo, "4A", "4th Grade", springfield.ID, 50, edna.ID)
	other := testutil.CreateClass(t, app.repo, "4B", "4th Grade", springfield.ID, 0, dewey.ID)
	testutil.CreateClass(t, app.repo, "S1", "1st Grade", shelbyville.ID, 0)

	grp := testutil.CreateGradeGroup(t, app.repo, "Upper", "4th Grade,5th Grade", springfield.ID)
	t0 := time.Now().Add(-time.Hour)
	testutil.CreatePrize(t, app.repo, "Stickers", 100, grp.ID, springfield.ID, t0)
	testutil.CreatePrize(t, app.repo, "Pizza party", 100, grp.ID, springfield.ID, t0.Add(time.Minute))

	adminToken := app.getToken(t, admin.Caller())
	ednaToken := app.getToken(t, edna.Caller())
	rivalToken := app.getToken(t, rival.Caller())

	minutes := func(n string) []byte { return []byte(`{"minutes":` + n + `}`) }

	app.run(t, []httpTest{
		{name: "no token", method: http.MethodPost, path: "/v1/classes/" + cls.ID + "/add-minutes", body: minutes("10"), wantCode: http.StatusUnauthorized},
		{
			name:     "zero minutes",
			method:   http.MethodPost,
			path:     "/v1/classes/" + cls.ID + "/add-minutes",
			body:     minutes("0"),
			token:    ednaToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"minutes":"minutes must be at least 1"}`),
		},
		{
			name:     "minutes out of range",
			method:   http.MethodPost,
			path:     "/v1/classes/" + cls.ID + "/add-minutes",
			body:     minutes("9223372036854775807"),
			token:    ednaToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"minutes":"minutes must be at most 2147483647"}`),
		},
		{name: "unknown class", method: http.MethodPost, path: "/v1/classes/nope/add-minutes", body: minutes("10"), token: ednaToken, wantCode: http.StatusNotFound, wantData: []byte(`{"error":"class not found"}`)},
		{name: "other school", method: http.MethodPost, path: "/v1/classes/" + cls.ID + "/add-minutes", body: minutes("10"), token: rivalToken, wantCode: http.StatusForbidden},
		{name: "unlinked teacher", method: http.MethodPost, path: "/v1/classes/" + other.ID + "/add-minutes", body: minutes("10"), token: ednaToken, wantCode: http.StatusForbidden},
		{name: "teacher cannot create", method: http.MethodPost, path: "/v1/classes", body: []byte(`{"name":"4C","grade":"4th Grade","section":"C"}`), token: ednaToken, wantCode: http.StatusForbidden},
		{name: "teacher cannot delete", method: http.MethodDelete, path: "/v1/classes/" + cls.ID, token: ednaToken, wantCode: http.StatusForbidden},
		{name: "unlinked teacher cannot read", method: http.MethodGet, path: "/v1/classes/" + other.ID, token: ednaToken, wantCode: http.StatusForbidden},
	})

	t.Run("add minutes", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/classes/"+cls.ID+"/add-minutes", ednaToken, minutes("100"))
		if !assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
			return
		}
		var got school.MinutesUpdate
		unmarshal(t, rec, &got)
		assert.Equal(t, 1, got.NewEarnedPrizes)
		assert.Equal(t, 150, got.Class.FitnessMinutes)
		assert.Equal(t, 1, got.Class.EarnedPrizesCount)
		assert.Equal(t, 50, got.Class.CurrentSegmentMinutes)
		assert.Equal(t, 100, got.Class.MinutesForNextPrize)
		assert.Equal(t, []string{edna.ID}, got.Class.TeacherIDs)

		// reaching the same rung again awards nothing
		rec = app.do(http.MethodPost, "/v1/classes/"+cls.ID+"/add-minutes", adminToken, minutes("10"))
		unmarshal(t, rec, &got)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, got.NewEarnedPrizes)
		assert.Equal(t, 160, got.Class.FitnessMinutes)

		// last rung
		rec = app.do(http.MethodPost, "/v1/classes/"+cls.ID+"/add-minutes", adminToken, minutes("40"))
		unmarshal(t, rec, &got)
		assert.Equal(t, 1, got.NewEarnedPrizes)
		assert.Equal(t, 2, got.Class.EarnedPrizesCount)
	})

	t.Run("create and list", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/classes", adminToken, []byte(`{"name":"5A","grade":"5th Grade","section":"A","teacherIds":["`+edna.ID+`"],"studentCount":22}`))
		if !assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String()) {
			return
		}
		var created object[school.ClassView]
		unmarshal(t, rec, &created)
		assert.Equal(t, springfield.ID, created.Data.SchoolID)
		assert.Equal(t, 0, created.Data.FitnessMinutes)

		rec = app.do(http.MethodGet, "/v1/classes", adminToken)
		var all page[school.ClassView]
		unmarshal(t, rec, &all)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, all.Pagination.Total)

		rec = app.do(http.MethodGet, "/v1/classes?mine=true", ednaToken)
		var mine page[school.ClassView]
		unmarshal(t, rec, &mine)
		assert.Equal(t, 2, mine.Pagination.Total)
		for _, c := range mine.Data {
			assert.Contains(t, c.TeacherIDs, edna.ID)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/classes/"+other.ID, adminToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = app.do(http.MethodGet, "/v1/classes/"+other.ID, adminToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
