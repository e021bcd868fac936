package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core/draft"
	"github.com/trezcool/alama/core/gradebook"
	"github.com/trezcool/alama/services/email"
	"github.com/trezcool/alama/tests"
)

type fixture struct {
	app    *echoapi.Server
	drafts *draft.Store

	student          gradebook.Student
	subject          gradebook.Subject
	open, locked     gradebook.Semester
	openEnr, lockEnr gradebook.Enrollment
}

func setup(t *testing.T) *fixture {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	validate := testutil.NewValidator()
	repo := testutil.NewGradebook(t)

	f := &fixture{}
	f.locked = testutil.CreateSemester(t, repo, "Summer 2023", true)
	f.open = testutil.CreateSemester(t, repo, "Winter 2023", false)
	f.subject = testutil.CreateSubject(t, repo, "CSE-101", "Programming", 3)
	f.student = testutil.CreateStudent(t, repo, "Baraka Otieno", "baraka@alama.test")
	f.lockEnr = testutil.Enroll(t, repo, f.student, f.subject, f.locked)
	f.openEnr = testutil.Enroll(t, repo, f.student, f.subject, f.open)
	testutil.SetMarks(t, repo, f.lockEnr, 35)

	f.drafts = draft.NewStore(draft.NewMemoryBackend(), logger, conf)
	t.Cleanup(func() { _ = f.drafts.Close(context.Background()) })

	f.app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		GradebookSvc: gradebook.NewService(repo, validate, emailsvc.NewConsoleServiceMock(conf), logger, conf),
		Drafts:       f.drafts,
	})
	return f
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte // compared when set
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func (f *fixture) do(method, path string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := f.do(method, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("failed! code = %v; wantCode %v (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantData != nil {
				assert.JSONEq(t, string(tt.wantData), rec.Body.String())
			}
		})
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data), rec.Body.String())
	return data
}

func TestServer_home(t *testing.T) {
	f := setup(t)
	rec := f.do(http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Alama API!", rec.Body.String())
}

func TestGradebookAPI(t *testing.T) {
	f := setup(t)
	studentPath := "/v1/students/" + f.student.ID
	reportPath := fmt.Sprintf("/v1/subjects/%s/semesters/%s/report", f.subject.ID, f.open.ID)
	gradesPath := func(sem gradebook.Semester) string {
		return fmt.Sprintf("/v1/subjects/%s/semesters/%s/grades", f.subject.ID, sem.ID)
	}

	f.run(t, []httpTest{
		{name: "transcript", path: studentPath + "/transcript", wantCode: http.StatusOK},
		{name: "transcript: trailing slash", path: studentPath + "/transcript/", wantCode: http.StatusOK},
		{name: "transcript: unknown student", path: "/v1/students/lol/transcript", wantCode: http.StatusNotFound, wantData: []byte(`{"error":"student not found"}`)},
		{name: "insights: unknown student", path: "/v1/students/lol/insights", wantCode: http.StatusNotFound},
		{name: "simulate: bad json", method: http.MethodPost, path: studentPath + "/simulate", body: []byte(`{"overrides":`), wantCode: http.StatusBadRequest},
		{
			name:     "simulate: grade point above 4",
			method:   http.MethodPost,
			path:     studentPath + "/simulate",
			body:     []byte(fmt.Sprintf(`{"overrides":{%q:4.5}}`, f.openEnr.ID)),
			wantCode: http.StatusBadRequest,
		},
		{name: "projection: missing cgpa", path: "/v1/projection?current_credits=10", wantCode: http.StatusBadRequest},
		{name: "projection: cgpa above 4", path: "/v1/projection?current_cgpa=4.2&current_credits=10", wantCode: http.StatusBadRequest},
		{name: "projection: not a number", path: "/v1/projection?current_cgpa=lol&current_credits=10", wantCode: http.StatusBadRequest},
		{name: "report: unknown semester", path: fmt.Sprintf("/v1/subjects/%s/semesters/lol/report", f.subject.ID), wantCode: http.StatusNotFound},
		{name: "report: ordered", path: reportPath + "?ordering=-marks,student_name", wantCode: http.StatusOK},
		{
			name:     "report: unknown ordering",
			path:     reportPath + "?ordering=-marks,password",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"ordering":"cannot order by \"password\", expected one of: student_name, student_number, marks"}`),
		},
		{
			name:     "report: repeated ordering",
			path:     reportPath + "?ordering=marks,-marks",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"ordering":"\"marks\" is repeated"}`),
		},
		{
			name:     "grades: locked semester",
			method:   http.MethodPut,
			path:     gradesPath(f.locked),
			body:     []byte(fmt.Sprintf(`{"grades":[{"enrollment_id":%q,"marks":90}]}`, f.lockEnr.ID)),
			wantCode: http.StatusConflict,
			wantData: []byte(`{"error":"semester is locked, grades can no longer be changed"}`),
		},
		{
			name:     "grades: marks out of range",
			method:   http.MethodPut,
			path:     gradesPath(f.open),
			body:     []byte(fmt.Sprintf(`{"grades":[{"enrollment_id":%q,"marks":101}]}`, f.openEnr.ID)),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"marks":"marks must be a number between 0 and 100"}`),
		},
		{
			name:     "grades: no grades",
			method:   http.MethodPut,
			path:     gradesPath(f.open),
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"grades":"this field is required"}`),
		},
		{
			name:     "grades: enrollment of another semester",
			method:   http.MethodPut,
			path:     gradesPath(f.open),
			body:     []byte(fmt.Sprintf(`{"grades":[{"enrollment_id":%q,"marks":50}]}`, f.lockEnr.ID)),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"grades[0].enrollment_id":"enrollment not found in this subject and semester"}`),
		},
	})

	t.Run("grade mappings", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/grade-mappings")
		require.Equal(t, http.StatusOK, rec.Code)
		var scale []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scale))
		require.Len(t, scale, 10)
		assert.Equal(t, "A+", scale[0]["letter_grade"])
		assert.Equal(t, "F", scale[9]["letter_grade"])
	})

	t.Run("grade options", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/grade-options")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `{"label":"B+","grade_point":3.25}`)
	})

	t.Run("insights", func(t *testing.T) {
		rec := f.do(http.MethodGet, studentPath+"/insights")
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)
		assert.Equal(t, true, data["at_risk"])
		assert.Equal(t, map[string]interface{}{"label": "Needs Improvement", "severity": "danger"}, data["standing"])
	})

	t.Run("simulate", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"overrides":{%q:4}}`, f.openEnr.ID))
		rec := f.do(http.MethodPost, studentPath+"/simulate", body)
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)
		assert.Equal(t, 0.0, data["actual_gpa"])
		assert.Equal(t, 2.0, data["simulated_gpa"])
	})

	t.Run("projection", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/projection?current_cgpa=2.5&current_credits=60")
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)
		assert.Equal(t, 3.0, data["target_cgpa"])
		assert.Equal(t, 18.0, data["future_credits"])
		assert.Equal(t, 4.0, data["required_gpa"])
		assert.Equal(t, false, data["reachable"])
		assert.Equal(t, map[string]interface{}{"label": "Satisfactory", "severity": "warning"}, data["standing"])

		rec = f.do(http.MethodGet, "/v1/projection?current_cgpa=3.2&current_credits=30&target_cgpa=3.5&future_credits=0")
		require.Equal(t, http.StatusOK, rec.Code)
		data = decode(t, rec)
		assert.Equal(t, 0.0, data["required_gpa"])
		assert.Equal(t, false, data["reachable"])
	})

	t.Run("at risk", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/at-risk")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"name":"Baraka Otieno"`)
	})

	t.Run("commit clears drafts", func(t *testing.T) {
		scope := draft.Scope{TeacherID: "teacher-1", SubjectID: f.subject.ID, SemesterID: f.open.ID}
		require.NoError(t, f.drafts.Set(scope, f.openEnr.ID, 66))

		body := []byte(fmt.Sprintf(`{"grades":[{"enrollment_id":%q,"marks":66}]}`, f.openEnr.ID))
		rec := f.do(http.MethodPut, gradesPath(f.open)+"?teacher_id=teacher-1", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 0, f.drafts.Count(scope))

		rec = f.do(http.MethodGet, fmt.Sprintf("/v1/subjects/%s/semesters/%s/report?ordering=-marks", f.subject.ID, f.open.ID))
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)
		rows := data["rows"].([]interface{})
		require.Len(t, rows, 1)
		assert.Equal(t, "B+", rows[0].(map[string]interface{})["letter_grade"])
	})
}

func TestDraftAPI(t *testing.T) {
	f := setup(t)
	base := fmt.Sprintf("/v1/drafts/teacher-1/%s/%s", f.subject.ID, f.open.ID)

	f.run(t, []httpTest{
		{name: "empty", path: base, wantCode: http.StatusOK},
		{
			name:     "separator in teacher",
			path:     fmt.Sprintf("/v1/drafts/teacher_1/%s/%s", f.subject.ID, f.open.ID),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error":"draft scope IDs cannot contain '_'"}`),
		},
		{name: "no marks", method: http.MethodPut, path: base + "/" + f.openEnr.ID, body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"marks":"this field is required"}`)},
		{name: "marks out of range", method: http.MethodPut, path: base + "/" + f.openEnr.ID, body: []byte(`{"marks":-3}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"marks":"marks must be a number between 0 and 100"}`)},
	})

	rec := f.do(http.MethodPut, base+"/"+f.openEnr.ID, []byte(`{"marks":72.5}`))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	data := decode(t, rec)
	assert.Equal(t, 1.0, data["count"])
	assert.Equal(t, string(draft.StatusSaving), data["status"])
	assert.Equal(t, map[string]interface{}{f.openEnr.ID: 72.5}, data["grades"])

	rec = f.do(http.MethodGet, base)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["count"])

	rec = f.do(http.MethodDelete, base)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, base)
	require.Equal(t, http.StatusOK, rec.Code)
	data = decode(t, rec)
	assert.Equal(t, 0.0, data["count"])
	assert.Equal(t, string(draft.StatusIdle), data["status"])
}
