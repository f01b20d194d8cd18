package feedback

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Question types
const (
	QuestionRating         = "rating"
	QuestionText           = "text"
	QuestionMultipleChoice = "multiple_choice"
)

// Default questions attached to auto-created forms. The pipeline only ever
// manages this rating/text pair; custom questions of other types are left
// untouched.
const (
	defaultRatingPrompt = "How would you rate this course overall?"
	defaultTextPrompt   = "Share any additional comments for the instructor."
)

// Form is a feedback campaign for a course. Multiple may physically exist;
// readers resolve "the" form as the latest active one.
type Form struct {
	ID           string      `json:"id"`
	CourseID     string      `json:"course_id"`
	Title        string      `json:"title"`
	AcademicYear string      `json:"academic_year"`
	IsActive     bool        `json:"is_active"`
	StartDate    time.Time   `json:"start_date"`
	EndDate      time.Time   `json:"end_date"`
	CreatedBy    null.String `json:"created_by"`
	CreatedAt    time.Time   `json:"created_at"`
}

type Question struct {
	ID          string    `json:"id"`
	FormID      string    `json:"form_id"`
	Text        string    `json:"question_text"`
	Type        string    `json:"question_type"`
	OrderNumber int       `json:"order_number"`
	IsRequired  bool      `json:"is_required"`
	CreatedAt   time.Time `json:"created_at"`
}

// Response is a student's feedback for a (form, course, teacher) tuple.
// At most one row exists per (form_id, course_id, teacher_id, student_id);
// resubmission overwrites rather than duplicates.
type Response struct {
	ID          string      `json:"id"`
	FormID      string      `json:"form_id"`
	CourseID    string      `json:"course_id"`
	TeacherID   null.String `json:"teacher_id"`
	StudentID   string      `json:"student_id"`
	IsAnonymous bool        `json:"is_anonymous"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// Answer is owned exclusively by its Response; the full set is replaced
// (delete-then-insert) on every resubmission, never partially patched.
type Answer struct {
	ID         string       `json:"id"`
	ResponseID string       `json:"response_id"`
	QuestionID string       `json:"question_id"`
	Rating     null.Float64 `json:"answer_rating"`
	Text       null.String  `json:"answer_text"`
}

// ResponseDetail is a Response flattened together with its join context,
// as consumed by the analytics aggregator and review listings.
type ResponseDetail struct {
	Response
	Answers []Answer `json:"answers"`

	CourseCode       string `json:"course_code"`
	CourseName       string `json:"course_name"`
	CourseDepartment string `json:"course_department"`
	TeacherName      string `json:"teacher_name,omitempty"`
	StudentName      string `json:"student_name,omitempty"`
}

// Filter scopes response queries. Zero-valued fields are ignored; CourseIDs
// restricts to the given set when non-nil.
type Filter struct {
	StudentID  string
	TeacherID  string
	CourseCode string
	CourseIDs  []string
}

// NewSubmission is a student's feedback-submission input.
type NewSubmission struct {
	CourseCode     string  `json:"courseCode"`
	CourseName     string  `json:"courseName"`
	InstructorName string  `json:"instructorName"`
	Rating         float64 `json:"rating"`
	Comments       string  `json:"comments"`
	IsAnonymous    bool    `json:"isAnonymous"`
}
