package analytics

import "time"

// Summary is the read-only aggregation served to teacher and admin
// dashboards. AverageRating is nil when no response carries a rating;
// consumers render a dash instead of dividing by zero.
type Summary struct {
	TotalResponses int              `json:"total_responses"`
	RatedResponses int              `json:"rated_responses"`
	AverageRating  *float64         `json:"average_rating"`
	Histogram      [5]int           `json:"histogram"` // counts for ratings 1..5
	Courses        []CourseSummary  `json:"courses"`
	Comments       []Comment        `json:"comments"`
	Teachers       []TeacherSummary `json:"teachers,omitempty"` // admin view only
}

// CourseSummary groups responses by course code; responses whose course
// cannot be resolved fall under the "Unassigned" group.
type CourseSummary struct {
	CourseCode    string   `json:"course_code"`
	CourseName    string   `json:"course_name"`
	Department    string   `json:"department"`
	ResponseCount int      `json:"response_count"`
	AverageRating *float64 `json:"average_rating"`
}

type TeacherSummary struct {
	TeacherID     string   `json:"teacher_id"`
	TeacherName   string   `json:"teacher_name"`
	ResponseCount int      `json:"response_count"`
	AverageRating *float64 `json:"average_rating"`
}

// Comment is a commented response flattened for display. StudentName is
// blanked for anonymous responses before it ever leaves the aggregator.
type Comment struct {
	CourseCode  string    `json:"course_code"`
	CourseName  string    `json:"course_name"`
	TeacherName string    `json:"teacher_name,omitempty"`
	StudentName string    `json:"student_name,omitempty"`
	Rating      *float64  `json:"rating"`
	Comment     string    `json:"comment"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Query narrows the overview; a zero Query means "everything visible to
// the caller's role".
type Query struct {
	CourseCode string
}
