package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"pecpulse/internal/domain"
	"pecpulse/internal/engine"
	"pecpulse/internal/repo"
)

func registerActions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-action",
		Method:        http.MethodPost,
		Path:          "/actions",
		Summary:       "Create action",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateActionRequest `json:"body"`
	}) (*struct {
		Body domain.Action `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "action.write"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateAction(ctx, engine.ActionCreateOptions{
			ID:          input.Body.ID,
			WorkbodyID:  input.Body.WorkbodyID,
			MeetingID:   input.Body.MeetingID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Owner:       input.Body.Owner,
			DueDate:     input.Body.DueDate,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Action `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-actions",
		Method:      http.MethodGet,
		Path:        "/actions",
		Summary:     "List actions",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		WorkbodyID string `query:"workbody_id"`
		MeetingID  string `query:"meeting_id"`
		Status     string `query:"status" enum:"open,in_progress,completed,canceled"`
		Owner      string `query:"owner"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body []domain.Action `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "action.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListActions(ctx, repo.ActionFilters{
			OrgID:      e.Config.Organization.ID,
			WorkbodyID: input.WorkbodyID,
			MeetingID:  input.MeetingID,
			Status:     input.Status,
			Owner:      input.Owner,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Action `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-action",
		Method:      http.MethodGet,
		Path:        "/actions/{action_id}",
		Summary:     "Get action",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActionID string `path:"action_id"`
	}) (*struct {
		Body domain.Action `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "action.read"); err != nil {
			return nil, handleError(err)
		}
		a, err := e.Repo.GetAction(ctx, input.ActionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Action `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-action",
		Method:      http.MethodPatch,
		Path:        "/actions/{action_id}",
		Summary:     "Update action",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ActionID string              `path:"action_id"`
		Body     UpdateActionRequest `json:"body"`
	}) (*struct {
		Body domain.Action `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "action.write"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.UpdateAction(ctx, engine.ActionUpdateOptions{
			ID:          input.ActionID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Owner:       input.Body.Owner,
			DueDate:     input.Body.DueDate,
			Status:      input.Body.Status,
			Force:       input.Body.Force,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Action `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-action-status",
		Method:      http.MethodPost,
		Path:        "/actions/{action_id}/status",
		Summary:     "Change action status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ActionID string              `path:"action_id"`
		Body     ActionStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Action `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "action.write"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.SetActionStatus(ctx, input.ActionID, input.Body.Status, actorID, input.Body.Force)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Action `json:"body"`
		}{Body: a}, nil
	})
}
