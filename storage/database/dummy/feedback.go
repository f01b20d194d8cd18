package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/maoni-app/maoni/core/feedback"
)

type feedbackRepository struct {
	db       *feedbackTable
	courses  *courseTable
	users    *userTable
	profiles *profileTable
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(db *DB) *feedbackRepository {
	return &feedbackRepository{
		db:       db.feedback,
		courses:  db.course,
		users:    db.user,
		profiles: db.profile,
	}
}

func (repo *feedbackRepository) GetLatestActiveForm(ctx context.Context, courseID string) (feedback.Form, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *feedback.Form
	for _, frm := range repo.db.forms {
		if frm.CourseID != courseID || !frm.IsActive {
			continue
		}
		if latest == nil || frm.CreatedAt.After(latest.CreatedAt) {
			latest = frm
		}
	}
	if latest == nil {
		return feedback.Form{}, feedback.ErrFormNotFound
	}
	return *latest, nil
}

func (repo *feedbackRepository) CreateForm(ctx context.Context, frm feedback.Form) (feedback.Form, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	frm.ID = uuid.New().String()
	repo.db.forms[frm.ID] = &frm
	return frm, nil
}

func (repo *feedbackRepository) QueryQuestions(ctx context.Context, formID string) ([]feedback.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	questions := make([]feedback.Question, 0)
	for _, q := range repo.db.questions {
		if q.FormID == formID {
			questions = append(questions, *q)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].OrderNumber < questions[j].OrderNumber })
	return questions, nil
}

func (repo *feedbackRepository) CreateQuestion(ctx context.Context, q feedback.Question) (feedback.Question, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	q.ID = uuid.New().String()
	repo.db.questions[q.ID] = &q
	return q, nil
}

func (repo *feedbackRepository) UpsertResponse(ctx context.Context, res feedback.Response) (feedback.Response, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.responses {
		if existing.FormID == res.FormID && existing.CourseID == res.CourseID &&
			existing.TeacherID == res.TeacherID && existing.StudentID == res.StudentID {
			existing.IsAnonymous = res.IsAnonymous
			existing.SubmittedAt = res.SubmittedAt
			return *existing, nil
		}
	}
	res.ID = uuid.New().String()
	repo.db.responses[res.ID] = &res
	return res, nil
}

func (repo *feedbackRepository) DeleteAnswers(ctx context.Context, responseID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, ans := range repo.db.answers {
		if ans.ResponseID == responseID {
			delete(repo.db.answers, id)
		}
	}
	return nil
}

func (repo *feedbackRepository) CreateAnswers(ctx context.Context, answers ...feedback.Answer) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, ans := range answers {
		ans := ans
		ans.ID = uuid.New().String()
		repo.db.answers[ans.ID] = &ans
	}
	return nil
}

func (repo *feedbackRepository) QueryResponses(ctx context.Context, filter feedback.Filter) ([]feedback.ResponseDetail, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	inCourseSet := func(courseID string) bool {
		if filter.CourseIDs == nil {
			return true
		}
		for _, id := range filter.CourseIDs {
			if id == courseID {
				return true
			}
		}
		return false
	}

	details := make([]feedback.ResponseDetail, 0)
	for _, res := range repo.db.responses {
		if filter.StudentID != "" && res.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != "" && res.TeacherID.String != filter.TeacherID {
			continue
		}
		if !inCourseSet(res.CourseID) {
			continue
		}

		detail := feedback.ResponseDetail{Response: *res}

		repo.courses.RLock()
		if crs, ok := repo.courses.courses[res.CourseID]; ok {
			detail.CourseCode = crs.Code
			detail.CourseName = crs.Name
			detail.CourseDepartment = crs.Department
		}
		repo.courses.RUnlock()

		if filter.CourseCode != "" && !strings.EqualFold(detail.CourseCode, filter.CourseCode) {
			continue
		}

		repo.profiles.RLock()
		if res.TeacherID.Valid {
			if prof, ok := repo.profiles.table[res.TeacherID.String]; ok {
				detail.TeacherName = prof.FullName
			}
		}
		repo.profiles.RUnlock()

		repo.users.RLock()
		if stu, ok := repo.users.table[res.StudentID]; ok {
			detail.StudentName = stu.Name
		}
		repo.users.RUnlock()

		for _, ans := range repo.db.answers {
			if ans.ResponseID == res.ID {
				detail.Answers = append(detail.Answers, *ans)
			}
		}
		sort.Slice(detail.Answers, func(i, j int) bool {
			// rating answers first so "first rating" extraction is stable
			return detail.Answers[i].Rating.Valid && !detail.Answers[j].Rating.Valid
		})

		details = append(details, detail)
	}
	sort.Slice(details, func(i, j int) bool { return details[i].SubmittedAt.After(details[j].SubmittedAt) })
	return details, nil
}
