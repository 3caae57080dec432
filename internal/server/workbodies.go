package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"pecpulse/internal/domain"
	"pecpulse/internal/engine"
	"pecpulse/internal/repo"
)

func registerWorkbodies(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-workbody",
		Method:        http.MethodPost,
		Path:          "/workbodies",
		Summary:       "Create workbody",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateWorkbodyRequest `json:"body"`
	}) (*struct {
		Body domain.Workbody `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "workbody.write"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.CreateWorkbody(ctx, engine.WorkbodyCreateOptions{
			ID:          input.Body.ID,
			Name:        input.Body.Name,
			Type:        input.Body.Type,
			Description: input.Body.Description,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Workbody `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workbodies",
		Method:      http.MethodGet,
		Path:        "/workbodies",
		Summary:     "List workbodies",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Type   string `query:"type"`
		Status string `query:"status" enum:"active,dormant,dissolved"`
	}) (*struct {
		Body []domain.Workbody `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "workbody.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListWorkbodies(ctx, repo.WorkbodyFilters{
			OrgID:  e.Config.Organization.ID,
			Type:   input.Type,
			Status: input.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Workbody `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workbody",
		Method:      http.MethodGet,
		Path:        "/workbodies/{workbody_id}",
		Summary:     "Get workbody",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkbodyID string `path:"workbody_id"`
	}) (*struct {
		Body domain.Workbody `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "workbody.read"); err != nil {
			return nil, handleError(err)
		}
		w, err := e.Repo.GetWorkbody(ctx, input.WorkbodyID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Workbody `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-workbody",
		Method:      http.MethodPatch,
		Path:        "/workbodies/{workbody_id}",
		Summary:     "Update workbody",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		WorkbodyID string                `path:"workbody_id"`
		Body       UpdateWorkbodyRequest `json:"body"`
	}) (*struct {
		Body domain.Workbody `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "workbody.write"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.UpdateWorkbody(ctx, engine.WorkbodyUpdateOptions{
			ID:          input.WorkbodyID,
			Name:        input.Body.Name,
			Type:        input.Body.Type,
			Description: input.Body.Description,
			Status:      input.Body.Status,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Workbody `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-workbody",
		Method:        http.MethodDelete,
		Path:          "/workbodies/{workbody_id}",
		Summary:       "Delete workbody",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		WorkbodyID string `path:"workbody_id"`
		Force      bool   `query:"force"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, "workbody.write"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteWorkbody(ctx, input.WorkbodyID, actorID, input.Force); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
