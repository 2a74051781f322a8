package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"reviewapi/internal/domain"
	"reviewapi/internal/engine"
	"reviewapi/internal/repo"
)

func registerSubmissions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-submission",
		Method:        http.MethodPost,
		Path:          "/submissions",
		Summary:       "Register a submission",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateSubmissionRequest `json:"body"`
	}) (*struct {
		Body domain.Submission `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sub, err := e.CreateSubmission(ctx, ident, engine.SubmissionCreateOptions{
			ID:           input.Body.ID,
			MemberID:     input.Body.MemberID,
			MemberHandle: input.Body.MemberHandle,
			ChallengeID:  input.Body.ChallengeID,
			Type:         input.Body.Type,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Submission `json:"body"`
		}{Body: sub}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-submissions",
		Method:      http.MethodGet,
		Path:        "/submissions",
		Summary:     "List submissions",
	}, func(ctx context.Context, input *struct {
		ChallengeID string `query:"challenge_id"`
		MemberID    string `query:"member_id"`
	}) (*struct {
		Body []domain.Submission `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListSubmissions(ctx, ident, input.ChallengeID, input.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Submission `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-submission",
		Method:      http.MethodGet,
		Path:        "/submissions/{id}",
		Summary:     "Get submission",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Submission `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sub, err := e.GetSubmission(ctx, ident, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Submission `json:"body"`
		}{Body: sub}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-submission-artifacts",
		Method:      http.MethodGet,
		Path:        "/submissions/{id}/artifacts",
		Summary:     "List visible artifacts",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.Artifact `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListArtifacts(ctx, ident, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Artifact `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-summation",
		Method:        http.MethodPost,
		Path:          "/submissions/{id}/summations",
		Summary:       "Record a review summation",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body CreateSummationRequest `json:"body"`
	}) (*struct {
		Body domain.ReviewSummation `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.RecordSummation(ctx, ident, input.ID, input.Body.AggregateScore, input.Body.IsPassing)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ReviewSummation `json:"body"`
		}{Body: s}, nil
	})
}

func registerOpportunities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-opportunity",
		Method:        http.MethodPost,
		Path:          "/review-opportunities",
		Summary:       "Post a review opportunity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateOpportunityRequest `json:"body"`
	}) (*struct {
		Body domain.ReviewOpportunity `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := e.CreateOpportunity(ctx, ident, engine.OpportunityCreateOptions{
			ChallengeID:   input.Body.ChallengeID,
			Type:          input.Body.Type,
			OpenPositions: input.Body.OpenPositions,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ReviewOpportunity `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-opportunities",
		Method:      http.MethodGet,
		Path:        "/review-opportunities",
		Summary:     "List review opportunities",
	}, func(ctx context.Context, input *struct {
		ChallengeID string `query:"challenge_id"`
	}) (*struct {
		Body []domain.ReviewOpportunity `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListOpportunities(ctx, input.ChallengeID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ReviewOpportunity `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-opportunity",
		Method:      http.MethodGet,
		Path:        "/review-opportunities/{id}",
		Summary:     "Get review opportunity",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.ReviewOpportunity `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		o, err := e.GetOpportunity(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ReviewOpportunity `json:"body"`
		}{Body: o}, nil
	})
}

func registerApplications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-application",
		Method:        http.MethodPost,
		Path:          "/review-applications",
		Summary:       "Apply to a review opportunity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateApplicationRequest `json:"body"`
	}) (*struct {
		Body domain.ReviewApplication `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateApplication(ctx, ident, input.Body.OpportunityID, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ReviewApplication `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        "/review-applications",
		Summary:     "List review applications",
	}, func(ctx context.Context, input *struct {
		OpportunityID string `query:"opportunity_id"`
		Status        string `query:"status"`
	}) (*struct {
		Body []domain.ReviewApplication `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListApplications(ctx, ident, repo.ApplicationFilters{
			OpportunityID: input.OpportunityID,
			Status:        input.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ReviewApplication `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/review-applications/{id}",
		Summary:     "Get review application",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.ReviewApplication `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.GetApplication(ctx, ident, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ReviewApplication `json:"body"`
		}{Body: a}, nil
	})

	decide := func(opID, pathSuffix, summary string, fn func(context.Context, engine.Engine, string) (domain.ReviewApplication, error)) {
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        "/review-applications/{id}/" + pathSuffix,
			Summary:     summary,
			Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, input *struct {
			ID string `path:"id"`
		}) (*struct {
			Body domain.ReviewApplication `json:"body"`
		}, error) {
			if _, authErr := identityFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			a, err := fn(ctx, e, input.ID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.ReviewApplication `json:"body"`
			}{Body: a}, nil
		})
	}
	decide("approve-application", "approve", "Approve review application",
		func(ctx context.Context, e engine.Engine, id string) (domain.ReviewApplication, error) {
			ident, _ := identityFromContext(ctx)
			return e.ApproveApplication(ctx, ident, id)
		})
	decide("reject-application", "reject", "Reject review application",
		func(ctx context.Context, e engine.Engine, id string) (domain.ReviewApplication, error) {
			ident, _ := identityFromContext(ctx)
			return e.RejectApplication(ctx, ident, id)
		})

	huma.Register(api, huma.Operation{
		OperationID: "reject-pending-applications",
		Method:      http.MethodPost,
		Path:        "/review-opportunities/{id}/reject-pending",
		Summary:     "Reject all pending applications on an opportunity",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.ReviewApplication `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.RejectAllPendingApplications(ctx, ident, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ReviewApplication `json:"body"`
		}{Body: items}, nil
	})
}

func registerRuns(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-workflow",
		Method:        http.MethodPost,
		Path:          "/workflows",
		Summary:       "Create an AI review workflow",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateWorkflowRequest `json:"body"`
	}) (*struct {
		Body domain.Workflow `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.CreateWorkflow(ctx, ident, input.Body.ChallengeID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Workflow `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-run",
		Method:        http.MethodPost,
		Path:          "/runs",
		Summary:       "Start a workflow run",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateRunRequest `json:"body"`
	}) (*struct {
		Body domain.WorkflowRun `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		run, err := e.CreateRun(ctx, ident, input.Body.WorkflowID, input.Body.SubmissionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkflowRun `json:"body"`
		}{Body: run}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{id}",
		Summary:     "Get a run with its items",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RunResponse `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		run, items, err := e.GetRun(ctx, ident, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.RunItem{}
		}
		return &struct {
			Body RunResponse `json:"body"`
		}{Body: RunResponse{Run: run, Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-run-item",
		Method:        http.MethodPost,
		Path:          "/runs/{id}/items",
		Summary:       "Append a run item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body AddRunItemRequest `json:"body"`
	}) (*struct {
		Body domain.RunItem `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := e.AddRunItem(ctx, ident, input.ID, input.Body.Seq, input.Body.Title, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RunItem `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-run-item",
		Method:      http.MethodPatch,
		Path:        "/run-items/{id}",
		Summary:     "Update a run item",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateRunItemRequest `json:"body"`
	}) (*struct {
		Body domain.RunItem `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := e.UpdateRunItem(ctx, ident, input.ID, engine.RunItemUpdateOptions{
			Title:   input.Body.Title,
			Content: input.Body.Content,
			Status:  input.Body.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RunItem `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-item-comments",
		Method:      http.MethodGet,
		Path:        "/run-items/{id}/comments",
		Summary:     "List run item comments",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.RunItemComment `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListComments(ctx, ident, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.RunItemComment `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-item-comment",
		Method:        http.MethodPost,
		Path:          "/run-items/{id}/comments",
		Summary:       "Comment on a run item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body CommentRequest `json:"body"`
	}) (*struct {
		Body domain.RunItemComment `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateComment(ctx, ident, input.ID, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RunItemComment `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-comment",
		Method:      http.MethodPatch,
		Path:        "/comments/{id}",
		Summary:     "Edit a comment",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body CommentRequest `json:"body"`
	}) (*struct {
		Body domain.RunItemComment `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateComment(ctx, ident, input.ID, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RunItemComment `json:"body"`
		}{Body: c}, nil
	})
}

func registerScorecards(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-scorecard",
		Method:        http.MethodPost,
		Path:          "/scorecards",
		Summary:       "Create scorecard",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateScorecardRequest `json:"body"`
	}) (*struct {
		Body domain.Scorecard `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateScorecard(ctx, ident, engine.ScorecardCreateOptions{
			Name:          input.Body.Name,
			ChallengeType: input.Body.ChallengeType,
			MinScore:      input.Body.MinScore,
			MaxScore:      input.Body.MaxScore,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Scorecard `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-scorecards",
		Method:      http.MethodGet,
		Path:        "/scorecards",
		Summary:     "List scorecards",
	}, func(ctx context.Context, input *struct {
		ChallengeType string `query:"challenge_type"`
	}) (*struct {
		Body []domain.Scorecard `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListScorecards(ctx, input.ChallengeType)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Scorecard `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-scorecard",
		Method:      http.MethodGet,
		Path:        "/scorecards/{id}",
		Summary:     "Get scorecard with questions",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ScorecardResponse `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		s, qs, err := e.GetScorecard(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if qs == nil {
			qs = []domain.ScorecardQuestion{}
		}
		return &struct {
			Body ScorecardResponse `json:"body"`
		}{Body: ScorecardResponse{Scorecard: s, Questions: qs}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-scorecard",
		Method:      http.MethodPatch,
		Path:        "/scorecards/{id}",
		Summary:     "Update scorecard",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body UpdateScorecardRequest `json:"body"`
	}) (*struct {
		Body domain.Scorecard `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.UpdateScorecard(ctx, ident, input.ID, engine.ScorecardUpdateOptions{
			Name:     input.Body.Name,
			MinScore: input.Body.MinScore,
			MaxScore: input.Body.MaxScore,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Scorecard `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-scorecard",
		Method:      http.MethodDelete,
		Path:        "/scorecards/{id}",
		Summary:     "Delete scorecard",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteScorecard(ctx, ident, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-scorecard-question",
		Method:        http.MethodPost,
		Path:          "/scorecards/{id}/questions",
		Summary:       "Add scorecard question",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body AddQuestionRequest `json:"body"`
	}) (*struct {
		Body domain.ScorecardQuestion `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q, err := e.AddScorecardQuestion(ctx, ident, input.ID, input.Body.Seq, input.Body.Description, input.Body.Weight)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ScorecardQuestion `json:"body"`
		}{Body: q}, nil
	})
}

func registerContactRequests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-contact-request",
		Method:        http.MethodPost,
		Path:          "/contact-requests",
		Summary:       "File a contact request",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ContactRequestBody `json:"body"`
	}) (*struct {
		Body domain.ContactRequest `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateContactRequest(ctx, ident, input.Body.Subject, input.Body.Message)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ContactRequest `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contact-requests",
		Method:      http.MethodGet,
		Path:        "/contact-requests",
		Summary:     "List contact requests",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*struct {
		Body []domain.ContactRequest `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListContactRequests(ctx, ident, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ContactRequest `json:"body"`
		}{Body: items}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List audit events",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit"`
		Cursor     int64  `query:"cursor"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListEvents(ctx, ident, input.Limit, input.Cursor, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}
