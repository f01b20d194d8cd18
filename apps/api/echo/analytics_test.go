package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/maoni-app/maoni/core/analytics"
	"github.com/maoni-app/maoni/core/feedback"
	"github.com/maoni-app/maoni/core/user"
)

func Test_analyticsApi_overview(t *testing.T) {
	env := newTestEnv(t)

	teacher1 := env.createUser(t, "Ada Lovelace", "adalove", "ada@test.cd", "mdr", user.RoleTeacher, true)
	teacher2 := env.createUser(t, "Alan Turing", "alantur", "alan@test.cd", "mdr", user.RoleTeacher, true)
	stud1 := env.createUser(t, "Stud One", "studone", "s1@test.cd", "mdr", user.RoleStudent, true)
	stud2 := env.createUser(t, "Stud Two", "studtwo", "s2@test.cd", "mdr", user.RoleStudent, true)
	admin := env.createUser(t, "Admin", "adminone", "admin@test.cd", "mdr", user.RoleAdmin, true)

	env.createCourse(t, "CS101", "Programming I", teacher1.ID)
	env.createCourse(t, "CS102", "Programming II", teacher2.ID)

	submit := func(usr user.User, code string, rating float64, comments string) {
		body := marshalObj(t, feedback.NewSubmission{CourseCode: code, Rating: rating, Comments: comments})
		req, rec := newAuthRequest(http.MethodPost, "/v1/feedback", getToken(t, usr), body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("submit failed! code = %v, body = %s", rec.Code, rec.Body.String())
		}
	}
	submit(stud1, "CS101", 5, "excellent")
	submit(stud2, "CS101", 3, "")
	submit(stud1, "CS102", 4, "solid")

	type extraTest struct {
		wantTotal    int
		wantAvg      float64
		wantTeachers int // len(Teachers); 0 means breakdown absent
	}
	tests := []httpTest{
		{name: "Auth required", path: "/v1/analytics", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Students not allowed", path: "/v1/analytics", token: getToken(t, stud1),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Teacher sees own responses only", path: "/v1/analytics", token: getToken(t, teacher1),
			wantCode: http.StatusOK, extra: extraTest{wantTotal: 2, wantAvg: 4},
		},
		{
			name: "Teacher filtered by own course", path: "/v1/analytics?course=CS101", token: getToken(t, teacher1),
			wantCode: http.StatusOK, extra: extraTest{wantTotal: 2, wantAvg: 4},
		},
		{
			name: "Teacher filtered by untaught course sees nothing", path: "/v1/analytics?course=CS102", token: getToken(t, teacher1),
			wantCode: http.StatusOK, extra: extraTest{wantTotal: 0},
		},
		{
			name: "Admin sees everything with per-teacher breakdown", path: "/v1/analytics", token: getToken(t, admin),
			wantCode: http.StatusOK, extra: extraTest{wantTotal: 3, wantAvg: 4, wantTeachers: 2},
		},
		{
			name: "Admin filtered by course", path: "/v1/analytics?course=CS102", token: getToken(t, admin),
			wantCode: http.StatusOK, extra: extraTest{wantTotal: 1, wantAvg: 4, wantTeachers: 1},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			extra, ok := tt.extra.(extraTest)
			if !ok || rec.Code != http.StatusOK {
				return
			}

			var summary analytics.Summary
			if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
				t.Fatalf("json.Unmarshal(): %v", err)
			}
			if summary.TotalResponses != extra.wantTotal {
				t.Errorf("failed! total = %d; want %d", summary.TotalResponses, extra.wantTotal)
			}
			if extra.wantTotal > 0 {
				if summary.AverageRating == nil {
					t.Fatal("failed! nil average")
				}
				if *summary.AverageRating != extra.wantAvg {
					t.Errorf("failed! average = %v; want %v", *summary.AverageRating, extra.wantAvg)
				}
			}
			if len(summary.Teachers) != extra.wantTeachers {
				t.Errorf("failed! len(teachers) = %d; want %d", len(summary.Teachers), extra.wantTeachers)
			}
		})
	}
}

// Anonymous submissions surface their comment but never the student's name.
func Test_analyticsApi_anonymousComments(t *testing.T) {
	env := newTestEnv(t)

	teacher := env.createUser(t, "Ada Lovelace", "adalove", "ada@test.cd", "mdr", user.RoleTeacher, true)
	stud := env.createUser(t, "Stud One", "studone", "s1@test.cd", "mdr", user.RoleStudent, true)
	env.createCourse(t, "CS101", "Programming I", teacher.ID)

	body := marshalObj(t, feedback.NewSubmission{CourseCode: "CS101", Rating: 2, Comments: "too fast", IsAnonymous: true})
	req, rec := newAuthRequest(http.MethodPost, "/v1/feedback", getToken(t, stud), body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed! code = %v, body = %s", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/analytics", getToken(t, teacher))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("overview failed! code = %v, body = %s", rec.Code, rec.Body.String())
	}

	var summary analytics.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("json.Unmarshal(): %v", err)
	}
	if len(summary.Comments) != 1 {
		t.Fatalf("failed! len(comments) = %d; want 1", len(summary.Comments))
	}
	if summary.Comments[0].Comment != "too fast" {
		t.Errorf("failed! comment = %q", summary.Comments[0].Comment)
	}
	if summary.Comments[0].StudentName != "" {
		t.Errorf("failed! anonymous comment leaked student name %q", summary.Comments[0].StudentName)
	}
}
