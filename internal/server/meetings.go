package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"pecpulse/internal/calendar"
	"pecpulse/internal/domain"
	"pecpulse/internal/engine"
	"pecpulse/internal/repo"
)

var meetingWriteErrors = []int{
	http.StatusBadRequest,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
}

func registerMeetings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "validate-meeting",
		Method:      http.MethodPost,
		Path:        "/meetings/validate",
		Summary:     "Validate a candidate meeting without saving it",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body MeetingRequest `json:"body"`
	}) (*struct {
		Body ValidateMeetingResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "meeting.read"); err != nil {
			return nil, handleError(err)
		}
		chk, err := e.ValidateMeeting(ctx, input.Body.candidate())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ValidateMeetingResponse `json:"body"`
		}{Body: ValidateMeetingResponse{
			Result:    chk.Result,
			Conflicts: nonNilSlice(chk.Conflicts),
			Duplicate: chk.Duplicate,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "find-duplicate-meeting",
		Method:      http.MethodPost,
		Path:        "/meetings/duplicate",
		Summary:     "Find a stored meeting identical to the candidate",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body MeetingRequest `json:"body"`
	}) (*struct {
		Body DuplicateResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "meeting.read"); err != nil {
			return nil, handleError(err)
		}
		m, found, err := e.CheckDuplicate(ctx, input.Body.candidate())
		if err != nil {
			return nil, handleError(err)
		}
		resp := DuplicateResponse{Found: found}
		if found {
			resp.Meeting = &m
		}
		return &struct {
			Body DuplicateResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-meetings-calendar",
		Method:      http.MethodGet,
		Path:        "/meetings/calendar.ics",
		Summary:     "Export meetings as iCalendar",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		WorkbodyID string `query:"workbody_id"`
		From       string `query:"from" format:"date"`
		To         string `query:"to" format:"date"`
	}) (*struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}, error) {
		if err := requirePermission(ctx, e, "meeting.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListMeetings(ctx, repo.MeetingFilters{
			OrgID:      e.Config.Organization.ID,
			WorkbodyID: input.WorkbodyID,
			From:       input.From,
			To:         input.To,
		})
		if err != nil {
			return nil, handleError(err)
		}
		opts := calendar.Options{
			OrgID:    e.Config.Organization.ID,
			Name:     e.Config.Organization.Name,
			Location: e.Config.Location(),
			Duration: e.Config.MeetingDuration(),
		}
		if e.Now != nil {
			opts.Now = e.Now()
		}
		data, _ := calendar.Export(items, opts)
		return &struct {
			ContentType string `header:"Content-Type"`
			Body        []byte
		}{ContentType: "text/calendar; charset=utf-8", Body: data}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "schedule-meeting",
		Method:        http.MethodPost,
		Path:          "/meetings",
		Summary:       "Schedule meeting",
		DefaultStatus: http.StatusCreated,
		Errors:        meetingWriteErrors,
	}, func(ctx context.Context, input *struct {
		Body MeetingRequest `json:"body"`
	}) (*struct {
		Body ScheduleMeetingResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "meeting.write"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, warnings, err := e.ScheduleMeeting(ctx, input.Body.candidate(), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ScheduleMeetingResponse `json:"body"`
		}{Body: ScheduleMeetingResponse{Meeting: m, Warnings: nonNilSlice(warnings)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-meetings",
		Method:      http.MethodGet,
		Path:        "/meetings",
		Summary:     "List meetings",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		WorkbodyID string `query:"workbody_id"`
		From       string `query:"from" format:"date"`
		To         string `query:"to" format:"date"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body []domain.ScheduledMeeting `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "meeting.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListMeetings(ctx, repo.MeetingFilters{
			OrgID:      e.Config.Organization.ID,
			WorkbodyID: input.WorkbodyID,
			From:       input.From,
			To:         input.To,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ScheduledMeeting `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-meeting",
		Method:      http.MethodGet,
		Path:        "/meetings/{meeting_id}",
		Summary:     "Get meeting",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
	}) (*struct {
		Body domain.ScheduledMeeting `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "meeting.read"); err != nil {
			return nil, handleError(err)
		}
		m, err := e.Repo.GetMeeting(ctx, input.MeetingID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ScheduledMeeting `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reschedule-meeting",
		Method:      http.MethodPatch,
		Path:        "/meetings/{meeting_id}",
		Summary:     "Reschedule or edit meeting",
		Errors:      meetingWriteErrors,
	}, func(ctx context.Context, input *struct {
		MeetingID string               `path:"meeting_id"`
		Body      UpdateMeetingRequest `json:"body"`
	}) (*struct {
		Body ScheduleMeetingResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "meeting.write"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		current, err := e.Repo.GetMeeting(ctx, input.MeetingID)
		if err != nil {
			return nil, handleError(err)
		}
		m, warnings, err := e.RescheduleMeeting(ctx, current.ID, input.Body.apply(current), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ScheduleMeetingResponse `json:"body"`
		}{Body: ScheduleMeetingResponse{Meeting: m, Warnings: nonNilSlice(warnings)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "cancel-meeting",
		Method:        http.MethodDelete,
		Path:          "/meetings/{meeting_id}",
		Summary:       "Cancel meeting",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, "meeting.write"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.CancelMeeting(ctx, input.MeetingID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
