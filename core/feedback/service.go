package feedback

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maoni-app/maoni/core"
	"github.com/maoni-app/maoni/core/course"
	"github.com/maoni-app/maoni/core/user"
)

var (
	// errors
	ErrFormNotFound     = errors.New("feedback form not found")
	ErrResponseNotFound = errors.New("feedback response not found")

	errCourseCodeRequired = "course code is required"
	errRatingOutOfRange   = "rating must be a number between 1 and 5"

	nowFunc = time.Now // mockable

	// Auto-created forms open a week early and stay open ~6 months.
	formStartLead = 7 * 24 * time.Hour
	formDuration  = 180 * 24 * time.Hour
)

type (
	Repository interface {
		// GetLatestActiveForm returns the most-recently-created active form for
		// the course, ErrFormNotFound when none exists.
		GetLatestActiveForm(ctx context.Context, courseID string) (Form, error)
		CreateForm(ctx context.Context, frm Form) (Form, error)
		QueryQuestions(ctx context.Context, formID string) ([]Question, error)
		CreateQuestion(ctx context.Context, q Question) (Question, error)
		// UpsertResponse inserts the response or, when a row already exists for
		// (form_id, course_id, teacher_id, student_id), updates is_anonymous and
		// refreshes submitted_at. This is the pipeline's idempotency anchor;
		// concurrent submissions race at the store, not here.
		UpsertResponse(ctx context.Context, res Response) (Response, error)
		DeleteAnswers(ctx context.Context, responseID string) error
		CreateAnswers(ctx context.Context, answers ...Answer) error
		QueryResponses(ctx context.Context, filter Filter) ([]ResponseDetail, error)
	}

	Service struct {
		repo    Repository
		courses *course.Service
	}
)

func NewService(repo Repository, courses *course.Service) *Service {
	return &Service{repo: repo, courses: courses}
}

// Submit runs the feedback-submission pipeline for a student caller:
// resolve-or-create the course, resolve the teacher, resolve-or-create the
// active form and its default questions, upsert the response and replace its
// answers. Steps are individually retry-safe but not wrapped in a
// transaction; a failure mid-way leaves earlier rows in place and re-running
// converges to the same end state.
func (svc *Service) Submit(ctx context.Context, caller user.User, sub NewSubmission) (Response, error) {
	// 1. authenticate & authorize
	if caller.ID == "" {
		return Response{}, core.ErrUnauthenticated
	}
	if !caller.IsStudent() {
		return Response{}, core.ErrForbidden
	}

	// 2. validate input
	sub.CourseCode = core.CleanString(sub.CourseCode)
	sub.Comments = core.CleanString(sub.Comments)
	if sub.CourseCode == "" {
		return Response{}, core.NewValidationError(errors.New(errCourseCodeRequired),
			core.FieldError{Field: "courseCode", Error: errCourseCodeRequired})
	}
	if math.IsNaN(sub.Rating) || math.IsInf(sub.Rating, 0) || sub.Rating < 1 || sub.Rating > 5 {
		return Response{}, core.NewValidationError(errors.New(errRatingOutOfRange),
			core.FieldError{Field: "rating", Error: errRatingOutOfRange})
	}

	// 3. resolve-or-create course
	crs, err := svc.courses.EnsureByCode(ctx, sub.CourseCode, sub.CourseName)
	if err != nil {
		return Response{}, err
	}

	// 4. resolve teacher; "" leaves the response unattributed
	teacherID, err := svc.courses.ResolveTeacher(ctx, crs.ID, sub.InstructorName)
	if err != nil {
		return Response{}, err
	}

	// 5. resolve-or-create active form
	frm, err := svc.ensureActiveForm(ctx, crs, teacherID)
	if err != nil {
		return Response{}, err
	}

	// 6. resolve-or-create default questions
	ratingQ, textQ, err := svc.ensureDefaultQuestions(ctx, frm.ID)
	if err != nil {
		return Response{}, err
	}

	// 7. upsert response
	res, err := svc.repo.UpsertResponse(ctx, Response{
		FormID:      frm.ID,
		CourseID:    crs.ID,
		TeacherID:   null.NewString(teacherID, teacherID != ""),
		StudentID:   caller.ID,
		IsAnonymous: sub.IsAnonymous,
		SubmittedAt: nowFunc().UTC(),
	})
	if err != nil {
		return Response{}, errors.Wrap(err, "upserting response")
	}

	// 8. replace answers
	if err := svc.repo.DeleteAnswers(ctx, res.ID); err != nil {
		return Response{}, errors.Wrap(err, "deleting stale answers")
	}
	answers := []Answer{{
		ResponseID: res.ID,
		QuestionID: ratingQ.ID,
		Rating:     null.Float64From(sub.Rating),
	}}
	if sub.Comments != "" {
		answers = append(answers, Answer{
			ResponseID: res.ID,
			QuestionID: textQ.ID,
			Text:       null.StringFrom(sub.Comments),
		})
	}
	if err := svc.repo.CreateAnswers(ctx, answers...); err != nil {
		return Response{}, errors.Wrap(err, "inserting answers")
	}

	return res, nil
}

func (svc *Service) ensureActiveForm(ctx context.Context, crs course.Course, teacherID string) (Form, error) {
	frm, err := svc.repo.GetLatestActiveForm(ctx, crs.ID)
	if err == nil {
		return frm, nil
	}
	if errors.Cause(err) != ErrFormNotFound {
		return Form{}, errors.Wrap(err, "looking up active form")
	}

	now := nowFunc().UTC()
	frm = Form{
		CourseID:     crs.ID,
		Title:        fmt.Sprintf("%s Feedback", crs.Name),
		AcademicYear: AcademicYearLabel(now),
		IsActive:     true,
		StartDate:    now.Add(-formStartLead),
		EndDate:      now.Add(formDuration),
		CreatedBy:    null.NewString(teacherID, teacherID != ""),
		CreatedAt:    now,
	}
	frm, err = svc.repo.CreateForm(ctx, frm)
	if err != nil {
		return Form{}, errors.Wrap(err, "creating form")
	}
	return frm, nil
}

// ensureDefaultQuestions guarantees the managed rating/text question pair
// exists on the form. Pre-existing questions of other types are ignored.
func (svc *Service) ensureDefaultQuestions(ctx context.Context, formID string) (ratingQ, textQ Question, err error) {
	questions, err := svc.repo.QueryQuestions(ctx, formID)
	if err != nil {
		return Question{}, Question{}, errors.Wrap(err, "listing questions")
	}
	for _, q := range questions {
		switch q.Type {
		case QuestionRating:
			if ratingQ.ID == "" {
				ratingQ = q
			}
		case QuestionText:
			if textQ.ID == "" {
				textQ = q
			}
		}
	}

	if ratingQ.ID == "" {
		ratingQ, err = svc.repo.CreateQuestion(ctx, Question{
			FormID:      formID,
			Text:        defaultRatingPrompt,
			Type:        QuestionRating,
			OrderNumber: 1,
			CreatedAt:   nowFunc().UTC(),
		})
		if err != nil {
			return Question{}, Question{}, errors.Wrap(err, "creating rating question")
		}
	}
	if textQ.ID == "" {
		textQ, err = svc.repo.CreateQuestion(ctx, Question{
			FormID:      formID,
			Text:        defaultTextPrompt,
			Type:        QuestionText,
			OrderNumber: 2,
			CreatedAt:   nowFunc().UTC(),
		})
		if err != nil {
			return Question{}, Question{}, errors.Wrap(err, "creating text question")
		}
	}
	return ratingQ, textQ, nil
}

// ActiveFormQuestions lists the active form's questions for a course, in
// display order. ErrFormNotFound when the course has no active form yet.
func (svc *Service) ActiveFormQuestions(ctx context.Context, courseCode string) ([]Question, error) {
	courseCode = core.CleanString(courseCode)
	if courseCode == "" {
		return nil, core.NewValidationError(errors.New(errCourseCodeRequired),
			core.FieldError{Field: "courseCode", Error: errCourseCodeRequired})
	}

	crs, err := svc.courses.GetByCode(ctx, courseCode)
	if err != nil {
		return nil, err
	}
	frm, err := svc.repo.GetLatestActiveForm(ctx, crs.ID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryQuestions(ctx, frm.ID)
}

// QueryResponses lists flattened responses matching the filter.
func (svc *Service) QueryResponses(ctx context.Context, filter Filter) ([]ResponseDetail, error) {
	return svc.repo.QueryResponses(ctx, filter)
}

// ListStudentReviews lists a student's own submitted responses.
func (svc *Service) ListStudentReviews(ctx context.Context, studentID string) ([]ResponseDetail, error) {
	return svc.repo.QueryResponses(ctx, Filter{StudentID: studentID})
}

// AcademicYearLabel computes the June 1-based academic-year label for a
// date: June through December belong to "thisYear-nextYear", earlier months
// to "lastYear-thisYear".
func AcademicYearLabel(t time.Time) string {
	year := t.Year()
	if t.Month() >= time.June {
		return fmt.Sprintf("%d-%d", year, year+1)
	}
	return fmt.Sprintf("%d-%d", year-1, year)
}
