package course

import "time"

// Placeholder metadata for courses auto-created at feedback-submission time.
// Such records are intentionally low-fidelity; they exist so feedback has
// somewhere to attach until an admin fills in the real details.
const (
	PlaceholderDepartment = "General"
	PlaceholderYear       = 1
	PlaceholderSemester   = 1
)

type Course struct {
	ID         string    `json:"id"`
	Code       string    `json:"course_code"`
	Name       string    `json:"course_name"`
	Department string    `json:"department"`
	Year       int       `json:"year"`
	Semester   int       `json:"semester"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// Assignment links one teacher to a course. Uniqueness of (course, teacher)
// is by convention, not enforced; readers use first-match semantics.
type Assignment struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	TeacherID string    `json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCourse contains information needed to register a Course.
type NewCourse struct {
	Code       string `json:"course_code" validate:"required"`
	Name       string `json:"course_name" validate:"required"`
	Department string `json:"department"`
	Year       int    `json:"year" validate:"omitempty,min=1"`
	Semester   int    `json:"semester" validate:"omitempty,min=1"`
}

// NewAssignment contains information needed to assign a teacher to a Course.
type NewAssignment struct {
	CourseID  string `json:"course_id" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
}
