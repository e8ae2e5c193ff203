package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"citizenportal/internal/domain"
	"citizenportal/internal/engine"
	"citizenportal/internal/engine/auth"
	"citizenportal/internal/repo"
	"citizenportal/internal/staff"
)

func registerCatalog(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "categories-list",
		Method:      http.MethodGet,
		Path:        "/categories",
		Summary:     "List request categories and their services",
	}, func(ctx context.Context, _ *struct{}) (*struct{ Body CategoriesResponse }, error) {
		return &struct{ Body CategoriesResponse }{Body: CategoriesResponse{Items: e.Catalog()}}, nil
	})
}

func registerReferences(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "references-create",
		Method:        http.MethodPost,
		Path:          "/references",
		Summary:       "Reserve a reference id for an idempotent submission",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, _ *struct{}) (*struct{ Body ReferenceResponse }, error) {
		ref, err := e.NewReference()
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body ReferenceResponse }{Body: ReferenceResponse{ReferenceID: ref}}, nil
	})
}

func registerRequests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "requests-submit",
		Method:        http.MethodPost,
		Path:          "/requests",
		Summary:       "Submit a service request",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body SubmitRequestBody
	}) (*struct {
		Status int
		Body   SubmitResponse
	}, error) {
		res, err := e.Submit(ctx, input.Body.options(actorID(ctx)))
		if err != nil {
			return nil, handleError(err)
		}
		status := http.StatusCreated
		if res.Replayed {
			status = http.StatusOK
		}
		return &struct {
			Status int
			Body   SubmitResponse
		}{Status: status, Body: SubmitResponse{
			ReferenceID:         res.Request.ReferenceID,
			Request:             res.Request,
			RejectedAttachments: rejectedAttachments(res.Rejected),
			Replayed:            res.Replayed,
		}}, nil
	})

	lookup := func(ctx context.Context, ref string) (*struct{ Body LookupResponse }, error) {
		res, err := e.Lookup(ctx, ref)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body LookupResponse }{Body: LookupResponse{Request: res.Request, Source: res.Source}}, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "requests-get",
		Method:      http.MethodGet,
		Path:        "/requests/{reference_id}",
		Summary:     "Look up a request by reference id",
	}, func(ctx context.Context, input *struct {
		ReferenceID string `path:"reference_id"`
	}) (*struct{ Body LookupResponse }, error) {
		return lookup(ctx, input.ReferenceID)
	})

	huma.Register(api, huma.Operation{
		OperationID: "status-lookup",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Look up a request by the ref query parameter",
	}, func(ctx context.Context, input *struct {
		Ref string `query:"ref"`
	}) (*struct{ Body LookupResponse }, error) {
		return lookup(ctx, input.Ref)
	})
}

func registerContact(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "contact-submit",
		Method:        http.MethodPost,
		Path:          "/contact",
		Summary:       "Send a contact message",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body ContactRequestBody
	}) (*struct{ Body domain.ContactSubmission }, error) {
		b := input.Body
		c, err := e.SubmitContact(ctx, domain.ContactCandidate{
			Name:     b.Name,
			Email:    b.Email,
			Phone:    b.Phone,
			Subject:  b.Subject,
			Category: b.Category,
			Message:  b.Message,
			Honeypot: b.Website,
		}, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.ContactSubmission }{Body: c}, nil
	})
}

func registerStaffAuth(api huma.API, s staff.Service, a auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "staff-login",
		Method:      http.MethodPost,
		Path:        "/staff/login",
		Summary:     "Exchange staff credentials for a session token",
	}, func(ctx context.Context, input *struct {
		Body LoginRequest
	}) (*struct{ Body staff.Session }, error) {
		sess, err := s.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body staff.Session }{Body: sess}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "staff-me",
		Method:      http.MethodGet,
		Path:        "/staff/me",
		Summary:     "Current staff principal",
	}, func(ctx context.Context, _ *struct{}) (*struct{ Body WhoAmIResponse }, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := a.Repo.GetStaff(ctx, p.StaffID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body WhoAmIResponse }{Body: WhoAmIResponse{
			StaffID:     u.ID,
			Email:       u.Email,
			Role:        u.Role,
			Department:  u.Department,
			Permissions: auth.RolePermissions(u.Role),
			Source:      p.Source,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "staff-api-keys-create",
		Method:        http.MethodPost,
		Path:          "/staff/api-keys",
		Summary:       "Create an API key for the current staff member",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body struct {
			Name string `json:"name,omitempty"`
		}
	}) (*struct {
		Body struct {
			Key    string        `json:"key"`
			APIKey domain.APIKey `json:"apiKey"`
		}
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		plain, key, err := s.CreateAPIKey(ctx, p.StaffID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Key    string        `json:"key"`
				APIKey domain.APIKey `json:"apiKey"`
			}
		}{}
		out.Body.Key = plain
		out.Body.APIKey = key
		return out, nil
	})
}

func registerStaffRequests(api huma.API, e engine.Engine, a auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "staff-requests-list",
		Method:      http.MethodGet,
		Path:        "/staff/requests",
		Summary:     "List requests newest first",
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status"`
		Category string `query:"category"`
		Limit    int    `query:"limit"`
		Cursor   string `query:"cursor"`
	}) (*struct{ Body paginatedRequests }, error) {
		if err := requirePermission(ctx, a, auth.PermRequestRead); err != nil {
			return nil, handleError(err)
		}
		var status domain.Status
		if input.Status != "" {
			s, err := domain.ParseStatus(input.Status)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
			}
			status = s
		}
		res, err := e.List(ctx, engine.ListOptions{
			Status:   status,
			Category: input.Category,
			Limit:    normalizeLimit(input.Limit),
			Cursor:   input.Cursor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		items := res.Requests
		if items == nil {
			items = []domain.Request{}
		}
		return &struct{ Body paginatedRequests }{Body: paginatedRequests{Items: items, NextCursor: res.NextCursor}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "staff-requests-stats",
		Method:      http.MethodGet,
		Path:        "/staff/stats",
		Summary:     "Request counts by status, category and priority",
	}, func(ctx context.Context, _ *struct{}) (*struct{ Body engine.Stats }, error) {
		if err := requirePermission(ctx, a, auth.PermRequestRead); err != nil {
			return nil, handleError(err)
		}
		st, err := e.Stats(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body engine.Stats }{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "staff-requests-transition",
		Method:      http.MethodPost,
		Path:        "/staff/requests/{reference_id}/transitions",
		Summary:     "Move a request to a new status",
	}, func(ctx context.Context, input *struct {
		ReferenceID string `path:"reference_id"`
		Body        TransitionRequest
	}) (*struct{ Body domain.Request }, error) {
		if err := requirePermission(ctx, a, auth.PermRequestTransition); err != nil {
			return nil, handleError(err)
		}
		to, err := domain.ParseStatus(input.Body.Status)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		req, err := e.Transition(ctx, engine.TransitionOptions{
			ReferenceID:         input.ReferenceID,
			To:                  to,
			Progress:            input.Body.Progress,
			Description:         input.Body.Description,
			By:                  input.Body.By,
			AssignedTo:          input.Body.AssignedTo,
			Notes:               input.Body.Notes,
			EstimatedCompletion: input.Body.EstimatedCompletion,
			ActorID:             actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Request }{Body: req}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "staff-requests-documents",
		Method:        http.MethodPost,
		Path:          "/staff/requests/{reference_id}/documents",
		Summary:       "Attach a document to a request",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ReferenceID string `path:"reference_id"`
		Body        DocumentRequest
	}) (*struct{ Body DocumentResponse }, error) {
		if err := requirePermission(ctx, a, auth.PermRequestDocument); err != nil {
			return nil, handleError(err)
		}
		req, doc, err := e.AddDocument(ctx, engine.DocumentOptions{
			ReferenceID: input.ReferenceID,
			Name:        input.Body.Name,
			Size:        input.Body.Size,
			Type:        input.Body.Type,
			Kind:        input.Body.Kind,
			ActorID:     actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body DocumentResponse }{Body: DocumentResponse{Attachment: doc, Request: req}}, nil
	})
}

func registerStaffAdmin(api huma.API, e engine.Engine, s staff.Service, a auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "staff-contacts-list",
		Method:      http.MethodGet,
		Path:        "/staff/contacts",
		Summary:     "List contact messages",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*struct{ Body contactList }, error) {
		if err := requirePermission(ctx, a, auth.PermContactRead); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListContacts(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.ContactSubmission{}
		}
		return &struct{ Body contactList }{Body: contactList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "staff-users-create",
		Method:        http.MethodPost,
		Path:          "/staff/users",
		Summary:       "Create a staff account",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateStaffRequest
	}) (*struct{ Body domain.StaffUser }, error) {
		if err := requirePermission(ctx, a, auth.PermStaffManage); err != nil {
			return nil, handleError(err)
		}
		u, err := s.Create(ctx, staff.CreateOptions{
			Email:      input.Body.Email,
			Password:   input.Body.Password,
			Role:       input.Body.Role,
			Department: input.Body.Department,
			ActorID:    actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.StaffUser }{Body: u}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine, a auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "staff-events-list",
		Method:      http.MethodGet,
		Path:        "/staff/events",
		Summary:     "List audit events newest first",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit"`
		Cursor     string `query:"cursor"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct{ Body paginatedEvents }, error) {
		if err := requirePermission(ctx, a, auth.PermRequestRead); err != nil {
			return nil, handleError(err)
		}
		var before int64
		if input.Cursor != "" {
			v, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || v <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", nil)
			}
			before = v
		}
		limit := normalizeLimit(input.Limit)
		list, err := e.Repo.LatestEvents(ctx, limit, before, repo.EventFilter{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: make([]EventResponse, 0, len(list))}
		for _, ev := range list {
			resp.Items = append(resp.Items, eventResponse(ev))
		}
		if len(list) == limit {
			resp.NextCursor = strconv.FormatInt(list[len(list)-1].ID, 10)
		}
		return &struct{ Body paginatedEvents }{Body: resp}, nil
	})
}
