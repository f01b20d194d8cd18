package dummydb

import (
	"context"
	"testing"

	"github.com/volatiletech/null/v8"

	"github.com/maoni-app/maoni/core/feedback"
)

// A rating/comment pair inserted in one call must land as two distinct rows.
func Test_feedbackRepository_CreateAnswers(t *testing.T) {
	db, err := Open()
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	repo := NewFeedbackRepository(db)

	answers := []feedback.Answer{
		{ResponseID: "res-1", QuestionID: "q-rating", Rating: null.Float64From(4)},
		{ResponseID: "res-1", QuestionID: "q-text", Text: null.StringFrom("solid course")},
	}
	if err := repo.CreateAnswers(context.Background(), answers...); err != nil {
		t.Fatalf("CreateAnswers(): %v", err)
	}

	if len(db.feedback.answers) != 2 {
		t.Fatalf("failed! len(answers) = %d; want 2", len(db.feedback.answers))
	}
	var ratings, comments int
	for _, ans := range db.feedback.answers {
		if ans.Rating.Valid {
			ratings++
		}
		if ans.Text.Valid {
			comments++
		}
	}
	if ratings != 1 {
		t.Errorf("failed! stored ratings = %d; want 1", ratings)
	}
	if comments != 1 {
		t.Errorf("failed! stored comments = %d; want 1", comments)
	}
}
