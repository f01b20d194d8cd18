package dummydb

import (
	"sync"

	"github.com/maoni-app/maoni/core/course"
	"github.com/maoni-app/maoni/core/feedback"
	"github.com/maoni-app/maoni/core/user"
)

// DB is an in-memory stand-in for the relational store, used by tests and
// the dev fast path. Not safe for production use; everything is lost on
// restart.
type (
	DB struct {
		user     *userTable
		profile  *profileTable
		course   *courseTable
		feedback *feedbackTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	profileTable struct {
		sync.RWMutex
		table map[string]*user.Profile
	}

	courseTable struct {
		sync.RWMutex
		courses     map[string]*course.Course
		assignments []*course.Assignment
	}

	feedbackTable struct {
		sync.RWMutex
		forms     map[string]*feedback.Form
		questions map[string]*feedback.Question
		responses map[string]*feedback.Response
		answers   map[string]*feedback.Answer
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		profile: &profileTable{table: make(map[string]*user.Profile)},
		course: &courseTable{
			courses: make(map[string]*course.Course),
		},
		feedback: &feedbackTable{
			forms:     make(map[string]*feedback.Form),
			questions: make(map[string]*feedback.Question),
			responses: make(map[string]*feedback.Response),
			answers:   make(map[string]*feedback.Answer),
		},
	}
	return db, nil
}
