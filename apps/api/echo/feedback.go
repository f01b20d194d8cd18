package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maoni-app/maoni/core/feedback"
	"github.com/maoni-app/maoni/core/user"
)

type feedbackApi struct {
	svc     *feedback.Service
	userSvc user.Service
}

func registerFeedbackAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *feedback.Service, userSvc user.Service) {
	api := feedbackApi{svc: svc, userSvc: userSvc}

	fg := g.Group("/feedback", jwt)
	fg.POST("", api.submit)
	fg.GET("/questions", api.questions)
	fg.GET("/reviews", api.reviews, roleMiddleware(userSvc, user.RoleStudent))
}

// submit runs the feedback-submission pipeline for the calling student.
// The student-role check lives in the pipeline itself so it cannot be
// bypassed by another transport.
func (api *feedbackApi) submit(ctx echo.Context) error {
	var data feedback.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}

	caller, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Submit(ctx.Request().Context(), caller, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SubmissionResponse{
		Message:    "Feedback submitted. Thank you!",
		ResponseID: res.ID,
	})
}

// questions lists the active form's questions for ?course=CODE.
func (api *feedbackApi) questions(ctx echo.Context) error {
	questions, err := api.svc.ActiveFormQuestions(ctx.Request().Context(), ctx.QueryParam("course"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, questions)
}

// reviews lists the calling student's own submitted responses.
func (api *feedbackApi) reviews(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	details, err := api.svc.ListStudentReviews(ctx.Request().Context(), caller.ID)
	if err != nil {
		return errors.Wrap(err, "listing reviews")
	}
	if details == nil {
		details = []feedback.ResponseDetail{}
	}
	return ctx.JSON(http.StatusOK, details)
}

type SubmissionResponse struct {
	Message    string `json:"message"`
	ResponseID string `json:"responseId"`
}
