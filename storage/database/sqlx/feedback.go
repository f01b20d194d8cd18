package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maoni-app/maoni/core/feedback"
)

type feedbackRepository struct {
	db *sqlx.DB
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(db *sqlx.DB) *feedbackRepository {
	return &feedbackRepository{db: db}
}

type formRow struct {
	ID           string      `db:"id"`
	CourseID     string      `db:"course_id"`
	Title        string      `db:"title"`
	AcademicYear string      `db:"academic_year"`
	IsActive     bool        `db:"is_active"`
	StartDate    time.Time   `db:"start_date"`
	EndDate      time.Time   `db:"end_date"`
	CreatedBy    null.String `db:"created_by"`
	CreatedAt    time.Time   `db:"created_at"`
}

type questionRow struct {
	ID          string    `db:"id"`
	FormID      string    `db:"form_id"`
	Text        string    `db:"question_text"`
	Type        string    `db:"question_type"`
	OrderNumber int       `db:"order_number"`
	IsRequired  bool      `db:"is_required"`
	CreatedAt   time.Time `db:"created_at"`
}

type responseRow struct {
	ID          string      `db:"id"`
	FormID      string      `db:"form_id"`
	CourseID    string      `db:"course_id"`
	TeacherID   null.String `db:"teacher_id"`
	StudentID   string      `db:"student_id"`
	IsAnonymous bool        `db:"is_anonymous"`
	SubmittedAt time.Time   `db:"submitted_at"`
}

type answerRow struct {
	ID         string       `db:"id"`
	ResponseID string       `db:"response_id"`
	QuestionID string       `db:"question_id"`
	Rating     null.Float64 `db:"answer_rating"`
	Text       null.String  `db:"answer_text"`
}

type responseDetailRow struct {
	responseRow
	CourseCode       string      `db:"course_code"`
	CourseName       string      `db:"course_name"`
	CourseDepartment string      `db:"course_department"`
	TeacherName      null.String `db:"teacher_name"`
	StudentName      null.String `db:"student_name"`
}

func (repo feedbackRepository) GetLatestActiveForm(ctx context.Context, courseID string) (feedback.Form, error) {
	var row formRow
	const query = `
SELECT * FROM feedback_forms
WHERE course_id = $1 AND is_active
ORDER BY created_at DESC
LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, query, courseID); err != nil {
		if err == sql.ErrNoRows {
			return feedback.Form{}, feedback.ErrFormNotFound
		}
		return feedback.Form{}, errors.Wrap(err, "getting active form")
	}
	return feedback.Form(row), nil
}

func (repo feedbackRepository) CreateForm(ctx context.Context, frm feedback.Form) (feedback.Form, error) {
	frm.ID = uuid.New().String()
	const query = `
INSERT INTO feedback_forms (id, course_id, title, academic_year, is_active, start_date, end_date, created_by, created_at)
VALUES (:id, :course_id, :title, :academic_year, :is_active, :start_date, :end_date, :created_by, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, formRow(frm)); err != nil {
		return feedback.Form{}, errors.Wrap(err, "inserting form")
	}
	return frm, nil
}

func (repo feedbackRepository) QueryQuestions(ctx context.Context, formID string) ([]feedback.Question, error) {
	rows := []questionRow{}
	const query = `SELECT * FROM feedback_questions WHERE form_id = $1 ORDER BY order_number, created_at`
	if err := repo.db.SelectContext(ctx, &rows, query, formID); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	questions := make([]feedback.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, feedback.Question(row))
	}
	return questions, nil
}

func (repo feedbackRepository) CreateQuestion(ctx context.Context, q feedback.Question) (feedback.Question, error) {
	q.ID = uuid.New().String()
	const query = `
INSERT INTO feedback_questions (id, form_id, question_text, question_type, order_number, is_required, created_at)
VALUES (:id, :form_id, :question_text, :question_type, :order_number, :is_required, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, questionRow(q)); err != nil {
		return feedback.Question{}, errors.Wrap(err, "inserting question")
	}
	return q, nil
}

// UpsertResponse relies on the store's unique (form_id, course_id,
// teacher_id, student_id) constraint (NULLS NOT DISTINCT) so two racing
// submissions resolve to one row; last write wins.
func (repo feedbackRepository) UpsertResponse(ctx context.Context, res feedback.Response) (feedback.Response, error) {
	res.ID = uuid.New().String()
	const query = `
INSERT INTO feedback_responses (id, form_id, course_id, teacher_id, student_id, is_anonymous, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (form_id, course_id, teacher_id, student_id)
DO UPDATE SET is_anonymous = EXCLUDED.is_anonymous, submitted_at = EXCLUDED.submitted_at
RETURNING id`
	var id string
	err := repo.db.GetContext(ctx, &id, query,
		res.ID, res.FormID, res.CourseID, res.TeacherID, res.StudentID, res.IsAnonymous, res.SubmittedAt.UTC())
	if err != nil {
		return feedback.Response{}, errors.Wrap(err, "upserting response")
	}
	res.ID = id
	return res, nil
}

func (repo feedbackRepository) DeleteAnswers(ctx context.Context, responseID string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM feedback_answers WHERE response_id = $1`, responseID); err != nil {
		return errors.Wrap(err, "deleting answers")
	}
	return nil
}

func (repo feedbackRepository) CreateAnswers(ctx context.Context, answers ...feedback.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	rows := make([]answerRow, 0, len(answers))
	for _, ans := range answers {
		ans.ID = uuid.New().String()
		rows = append(rows, answerRow(ans))
	}
	const query = `
INSERT INTO feedback_answers (id, response_id, question_id, answer_rating, answer_text)
VALUES (:id, :response_id, :question_id, :answer_rating, :answer_text)`
	if _, err := repo.db.NamedExecContext(ctx, query, rows); err != nil {
		return errors.Wrap(err, "inserting answers")
	}
	return nil
}

func (repo feedbackRepository) QueryResponses(ctx context.Context, filter feedback.Filter) ([]feedback.ResponseDetail, error) {
	query := `
SELECT r.*,
       c.course_code, c.course_name, c.department AS course_department,
       tp.full_name AS teacher_name,
       s.name AS student_name
FROM feedback_responses r
JOIN courses c ON c.id = r.course_id
LEFT JOIN profiles tp ON tp.id = r.teacher_id
JOIN users s ON s.id = r.student_id
WHERE 1=1`
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.StudentID != "" {
		query += ` AND r.student_id = ` + arg(filter.StudentID)
	}
	if filter.TeacherID != "" {
		query += ` AND r.teacher_id = ` + arg(filter.TeacherID)
	}
	if filter.CourseCode != "" {
		query += ` AND c.course_code = ` + arg(filter.CourseCode)
	}
	if filter.CourseIDs != nil {
		if len(filter.CourseIDs) == 0 {
			return []feedback.ResponseDetail{}, nil
		}
		in, inArgs, err := sqlx.In(` AND r.course_id IN (?)`, filter.CourseIDs)
		if err != nil {
			return nil, errors.Wrap(err, "building responses query")
		}
		for _, v := range inArgs {
			in = strings.Replace(in, "?", arg(v), 1)
		}
		query += in
	}
	query += ` ORDER BY r.submitted_at DESC`

	rows := []responseDetailRow{}
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying responses")
	}
	if len(rows) == 0 {
		return []feedback.ResponseDetail{}, nil
	}

	details := make([]feedback.ResponseDetail, 0, len(rows))
	byID := make(map[string]int, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		details = append(details, feedback.ResponseDetail{
			Response:         feedback.Response(row.responseRow),
			CourseCode:       row.CourseCode,
			CourseName:       row.CourseName,
			CourseDepartment: row.CourseDepartment,
			TeacherName:      row.TeacherName.String,
			StudentName:      row.StudentName.String,
		})
		byID[row.ID] = len(details) - 1
		ids = append(ids, row.ID)
	}

	ansQuery, ansArgs, err := sqlx.In(`SELECT * FROM feedback_answers WHERE response_id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building answers query")
	}
	ansRows := []answerRow{}
	if err := repo.db.SelectContext(ctx, &ansRows, repo.db.Rebind(ansQuery), ansArgs...); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	for _, row := range ansRows {
		if i, ok := byID[row.ResponseID]; ok {
			details[i].Answers = append(details[i].Answers, feedback.Answer(row))
		}
	}
	return details, nil
}
