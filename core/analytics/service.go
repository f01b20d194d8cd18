package analytics

import (
	"context"
	"math"
	"sort"

	"github.com/maoni-app/maoni/core"
	"github.com/maoni-app/maoni/core/feedback"
	"github.com/maoni-app/maoni/core/user"
)

const (
	// commentCap bounds the recent-comments list; dashboards page the rest
	// through the reviews listing instead.
	commentCap = 20

	// barFloorPercent keeps zero-count histogram bars visibly present.
	barFloorPercent = 6.0

	unassignedGroup = "Unassigned"
)

type (
	// ResponseSource provides the flattened response rows the aggregator
	// reads. It never writes.
	ResponseSource interface {
		QueryResponses(ctx context.Context, filter feedback.Filter) ([]feedback.ResponseDetail, error)
	}

	// CourseDirectory resolves the courses a teacher is assigned to, used
	// to scope the teacher view when no explicit course filter is given.
	CourseDirectory interface {
		AssignedCourseIDs(ctx context.Context, teacherID string) ([]string, error)
	}

	Service struct {
		responses ResponseSource
		courses   CourseDirectory
	}
)

func NewService(responses ResponseSource, courses CourseDirectory) *Service {
	return &Service{responses: responses, courses: courses}
}

// Overview aggregates the responses visible to the caller's role. Teachers
// only ever see responses attributed to themselves; when they give no course
// filter the view is further restricted to their assigned courses. Admins
// see everything, optionally narrowed to one course code. Students have no
// analytics view at all.
func (svc *Service) Overview(ctx context.Context, caller user.User, q Query) (Summary, error) {
	if caller.ID == "" {
		return Summary{}, core.ErrUnauthenticated
	}

	var filter feedback.Filter
	switch {
	case caller.IsAdmin():
		filter = feedback.Filter{CourseCode: core.CleanString(q.CourseCode)}
	case caller.IsTeacher():
		filter = feedback.Filter{TeacherID: caller.ID, CourseCode: core.CleanString(q.CourseCode)}
		if filter.CourseCode == "" {
			ids, err := svc.courses.AssignedCourseIDs(ctx, caller.ID)
			if err != nil {
				return Summary{}, err
			}
			// no assignments means no visible responses, not "everything"
			if ids == nil {
				ids = []string{}
			}
			filter.CourseIDs = ids
		}
	default:
		return Summary{}, core.ErrForbidden
	}

	details, err := svc.responses.QueryResponses(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return aggregate(details, caller.IsAdmin()), nil
}

// BarPercent is the display width for a histogram bucket: proportional to
// its share of responses but never below the visibility floor.
func (s Summary) BarPercent(rating int) float64 {
	if rating < 1 || rating > 5 || s.TotalResponses == 0 {
		return barFloorPercent
	}
	pct := float64(s.Histogram[rating-1]) / float64(s.TotalResponses) * 100
	return math.Max(barFloorPercent, pct)
}

type ratingAcc struct {
	sum   float64
	count int
}

func (a *ratingAcc) add(r float64) {
	a.sum += r
	a.count++
}

func (a ratingAcc) average() *float64 {
	if a.count == 0 {
		return nil
	}
	avg := math.Round(a.sum/float64(a.count)*100) / 100
	return &avg
}

func aggregate(details []feedback.ResponseDetail, withTeachers bool) Summary {
	s := Summary{
		TotalResponses: len(details),
		Courses:        []CourseSummary{},
		Comments:       []Comment{},
	}

	var overall ratingAcc
	type courseAcc struct {
		CourseSummary
		ratingAcc
	}
	type teacherAcc struct {
		TeacherSummary
		ratingAcc
	}
	courseGroups := map[string]*courseAcc{}
	teacherGroups := map[string]*teacherAcc{}

	for _, d := range details {
		rating, hasRating := firstRating(d.Answers)
		comment := firstComment(d.Answers)

		if hasRating {
			overall.add(rating)
			if bucket := int(math.Round(rating)); bucket >= 1 && bucket <= 5 {
				s.Histogram[bucket-1]++
			}
		}

		key := d.CourseCode
		if key == "" {
			key = unassignedGroup
		}
		grp, ok := courseGroups[key]
		if !ok {
			grp = &courseAcc{CourseSummary: CourseSummary{
				CourseCode: key,
				CourseName: d.CourseName,
				Department: d.CourseDepartment,
			}}
			courseGroups[key] = grp
		}
		grp.ResponseCount++
		if hasRating {
			grp.add(rating)
		}

		if withTeachers && d.TeacherID.Valid {
			tGrp, ok := teacherGroups[d.TeacherID.String]
			if !ok {
				tGrp = &teacherAcc{TeacherSummary: TeacherSummary{
					TeacherID:   d.TeacherID.String,
					TeacherName: d.TeacherName,
				}}
				teacherGroups[d.TeacherID.String] = tGrp
			}
			tGrp.ResponseCount++
			if hasRating {
				tGrp.add(rating)
			}
		}

		if comment != "" {
			c := Comment{
				CourseCode:  key,
				CourseName:  d.CourseName,
				TeacherName: d.TeacherName,
				Comment:     comment,
				SubmittedAt: d.SubmittedAt,
			}
			if hasRating {
				r := rating
				c.Rating = &r
			}
			if !d.IsAnonymous {
				c.StudentName = d.StudentName
			}
			s.Comments = append(s.Comments, c)
		}
	}

	s.RatedResponses = overall.count
	s.AverageRating = overall.average()

	for _, grp := range courseGroups {
		grp.AverageRating = grp.average()
		s.Courses = append(s.Courses, grp.CourseSummary)
	}
	sort.Slice(s.Courses, func(i, j int) bool { return s.Courses[i].CourseCode < s.Courses[j].CourseCode })

	if withTeachers {
		s.Teachers = []TeacherSummary{}
		for _, grp := range teacherGroups {
			grp.AverageRating = grp.average()
			s.Teachers = append(s.Teachers, grp.TeacherSummary)
		}
		sort.Slice(s.Teachers, func(i, j int) bool { return s.Teachers[i].TeacherName < s.Teachers[j].TeacherName })
	}

	sort.SliceStable(s.Comments, func(i, j int) bool { return s.Comments[i].SubmittedAt.After(s.Comments[j].SubmittedAt) })
	if len(s.Comments) > commentCap {
		s.Comments = s.Comments[:commentCap]
	}
	return s
}

// firstRating picks the first finite answer_rating of a response. Under the
// provisioning rules a response carries at most one, but extra rows are
// tolerated by taking the first.
func firstRating(answers []feedback.Answer) (float64, bool) {
	for _, ans := range answers {
		if !ans.Rating.Valid {
			continue
		}
		r := ans.Rating.Float64
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		return r, true
	}
	return 0, false
}

func firstComment(answers []feedback.Answer) string {
	for _, ans := range answers {
		if txt := core.CleanString(ans.Text.String); ans.Text.Valid && txt != "" {
			return txt
		}
	}
	return ""
}
