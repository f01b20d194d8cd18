package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/maoni-app/maoni/core/feedback"
	"github.com/maoni-app/maoni/core/user"
)

func Test_feedbackApi_submit(t *testing.T) {
	env := newTestEnv(t)

	student := env.createUser(t, "Student", "studone", "stud@test.cd", "mdr", user.RoleStudent, true)
	teacher := env.createUser(t, "Ada Lovelace", "adalove", "ada@test.cd", "mdr", user.RoleTeacher, true)
	admin := env.createUser(t, "Admin", "adminone", "admin@test.cd", "mdr", user.RoleAdmin, true)
	env.createCourse(t, "CS101", "Programming I", teacher.ID)

	studentToken := getToken(t, student)
	submission := func(code string, rating float64, comments string) []byte {
		return marshalObj(t, feedback.NewSubmission{
			CourseCode: code,
			Rating:     rating,
			Comments:   comments,
		})
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Teachers cannot submit", token: getToken(t, teacher), body: submission("CS101", 4, ""),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Admins cannot submit", token: getToken(t, admin), body: submission("CS101", 4, ""),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Course code required", token: studentToken, body: submission("   ", 4, ""),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"courseCode": "course code is required"}),
		},
		{
			name: "Rating too low", token: studentToken, body: submission("CS101", 0.5, ""),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"rating": "rating must be a number between 1 and 5"}),
		},
		{
			name: "Rating too high", token: studentToken, body: submission("CS101", 5.5, ""),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"rating": "rating must be a number between 1 and 5"}),
		},
		{name: "Submitted", token: studentToken, body: submission("CS101", 4.5, "Great course"), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/feedback"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var respData SubmissionResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if respData.Message != "Feedback submitted. Thank you!" {
					t.Errorf("failed! message = %q", respData.Message)
				}
				if respData.ResponseID == "" {
					t.Error("failed! empty responseId")
				}

				// assigned teacher picked up without being named
				details, err := env.fbkSvc.QueryResponses(context.Background(), feedback.Filter{StudentID: student.ID})
				if err != nil {
					t.Fatalf("QueryResponses(): %v", err)
				}
				if len(details) != 1 {
					t.Fatalf("failed! len(details) = %d; want 1", len(details))
				}
				if details[0].TeacherID.String != teacher.ID {
					t.Errorf("failed! teacherID = %q; want %q", details[0].TeacherID.String, teacher.ID)
				}
			}
		})
	}
}

func Test_feedbackApi_submitIdempotent(t *testing.T) {
	env := newTestEnv(t)

	student := env.createUser(t, "Student", "studone", "stud@test.cd", "mdr", user.RoleStudent, true)
	teacher := env.createUser(t, "Ada Lovelace", "adalove", "ada@test.cd", "mdr", user.RoleTeacher, true)
	env.createCourse(t, "CS101", "Programming I", teacher.ID)

	token := getToken(t, student)
	submit := func(rating float64, comments string) SubmissionResponse {
		body := marshalObj(t, feedback.NewSubmission{CourseCode: "CS101", Rating: rating, Comments: comments})
		req, rec := newAuthRequest(http.MethodPost, "/v1/feedback", token, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("submit failed! code = %v, body = %s", rec.Code, rec.Body.String())
		}
		var respData SubmissionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		return respData
	}

	first := submit(3, "meh")
	second := submit(5, "actually great")

	if first.ResponseID != second.ResponseID {
		t.Errorf("failed! responseId changed on resubmission: %s != %s", first.ResponseID, second.ResponseID)
	}

	details, err := env.fbkSvc.ListStudentReviews(context.Background(), student.ID)
	if err != nil {
		t.Fatalf("ListStudentReviews(): %v", err)
	}
	if len(details) != 1 {
		t.Fatalf("failed! len(details) = %d; want 1", len(details))
	}

	var rating float64
	var comment string
	for _, ans := range details[0].Answers {
		if ans.Rating.Valid {
			rating = ans.Rating.Float64
		}
		if ans.Text.Valid {
			comment = ans.Text.String
		}
	}
	if rating != 5 {
		t.Errorf("failed! rating = %v; want 5", rating)
	}
	if comment != "actually great" {
		t.Errorf("failed! comment = %q; want %q", comment, "actually great")
	}
}

func Test_feedbackApi_questions(t *testing.T) {
	env := newTestEnv(t)

	student := env.createUser(t, "Student", "studone", "stud@test.cd", "mdr", user.RoleStudent, true)
	teacher := env.createUser(t, "Ada Lovelace", "adalove", "ada@test.cd", "mdr", user.RoleTeacher, true)
	env.createCourse(t, "CS101", "Programming I", teacher.ID)

	token := getToken(t, student)

	// no form yet
	req, rec := newAuthRequest(http.MethodGet, "/v1/feedback/questions?course=CS101", token)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusNotFound)
	}

	// a submission auto-creates the form and its default question pair
	body := marshalObj(t, feedback.NewSubmission{CourseCode: "CS101", Rating: 4})
	req, rec = newAuthRequest(http.MethodPost, "/v1/feedback", token, body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed! code = %v, body = %s", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/feedback/questions?course=CS101", token)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v, body = %s", rec.Code, rec.Body.String())
	}
	var questions []feedback.Question
	if err := json.Unmarshal(rec.Body.Bytes(), &questions); err != nil {
		t.Fatalf("json.Unmarshal(): %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("failed! len(questions) = %d; want 2", len(questions))
	}
	if questions[0].Type != feedback.QuestionRating || questions[1].Type != feedback.QuestionText {
		t.Errorf("failed! question types = %q, %q", questions[0].Type, questions[1].Type)
	}

	// unknown course
	req, rec = newAuthRequest(http.MethodGet, "/v1/feedback/questions?course=NOPE", token)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusNotFound)
	}
}

func Test_feedbackApi_reviews(t *testing.T) {
	env := newTestEnv(t)

	student := env.createUser(t, "Student", "studone", "stud@test.cd", "mdr", user.RoleStudent, true)
	other := env.createUser(t, "Other", "othstud", "oth@test.cd", "mdr", user.RoleStudent, true)
	teacher := env.createUser(t, "Ada Lovelace", "adalove", "ada@test.cd", "mdr", user.RoleTeacher, true)
	env.createCourse(t, "CS101", "Programming I", teacher.ID)

	// one submission each
	for _, usr := range []user.User{student, other} {
		body := marshalObj(t, feedback.NewSubmission{CourseCode: "CS101", Rating: 4})
		req, rec := newAuthRequest(http.MethodPost, "/v1/feedback", getToken(t, usr), body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("submit failed! code = %v, body = %s", rec.Code, rec.Body.String())
		}
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Students only", token: getToken(t, teacher), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Own reviews only", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/feedback/reviews"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var details []feedback.ResponseDetail
				if err := json.Unmarshal(rec.Body.Bytes(), &details); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if len(details) != 1 {
					t.Fatalf("failed! len(details) = %d; want 1", len(details))
				}
				if details[0].StudentID != student.ID {
					t.Errorf("failed! studentID = %q; want %q", details[0].StudentID, student.ID)
				}
			}
		})
	}
}
