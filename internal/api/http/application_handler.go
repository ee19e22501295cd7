// internal/api/http/application_handler.go
package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"job-board/internal/domain"
	"job-board/internal/usecase"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SubmitLimit throttles submissions per identity.
type SubmitLimit struct {
	Limiter Limiter
	Limit   int
	Window  time.Duration
}

// ApplicationHandler serves the /api/v1/application routes.
type ApplicationHandler struct {
	service *usecase.ApplicationService
	tokens  *TokenProvider
	limit   SubmitLimit
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewApplicationHandler(service *usecase.ApplicationService, tokens *TokenProvider, limit SubmitLimit, logger *slog.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service: service,
		tokens:  tokens,
		limit:   limit,
		logger:  logger.With("component", "application-handler"),
		tracer:  otel.Tracer("job-board-api"),
	}
}

// RegisterRoutes registers application routes to the http.ServeMux.
func (h *ApplicationHandler) RegisterRoutes(mux *http.ServeMux) {
	auth := Authenticate(h.tokens)
	seekerOnly := RequireRole(domain.RoleJobSeeker)
	employerOnly := RequireRole(domain.RoleEmployer)
	throttle := RateLimit(h.limit.Limiter, PrincipalKey, h.limit.Limit, h.limit.Window)

	routes := []struct {
		pattern string
		handler http.Handler
	}{
		{"POST /api/v1/application/post/{jobID}", Chain(http.HandlerFunc(h.handleSubmit), auth, seekerOnly, throttle)},
		{"GET /api/v1/application/employer/getall", Chain(http.HandlerFunc(h.handleListForEmployer), auth, employerOnly)},
		{"GET /api/v1/application/jobseeker/getall", Chain(http.HandlerFunc(h.handleListForSeeker), auth, seekerOnly)},
		{"GET /api/v1/application/{id}", Chain(http.HandlerFunc(h.handleGet), auth)},
		{"DELETE /api/v1/application/delete/{id}", Chain(http.HandlerFunc(h.handleWithdraw), auth)},
	}
	for _, route := range routes {
		mux.Handle(route.pattern, Instrument(route.pattern, route.handler))
	}
}

func (h *ApplicationHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.SubmitApplication")
	defer span.End()

	principal, _ := PrincipalFromContext(ctx)
	jobID := r.PathValue("jobID")
	span.SetAttributes(attribute.String("job.id", jobID), attribute.String("seeker.id", principal.IdentityID))

	if err := parseMultipart(w, r); err != nil {
		if errors.Is(err, errFormTooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large.")
			return
		}
		writeError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	resume, err := resumeFromForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if resume != nil {
		if c, ok := resume.Body.(io.Closer); ok {
			defer c.Close()
		}
	}

	app, err := h.service.Submit(ctx, usecase.SubmitRequest{
		JobID:    jobID,
		SeekerID: principal.IdentityID,
		Details:  bindSubmitForm(r).ToDetails(),
		Resume:   resume,
	})
	if err != nil {
		h.fail(span, "submit application", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		"success":     true,
		"message":     "Application Submitted!",
		"application": app,
	})
}

func (h *ApplicationHandler) handleListForEmployer(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.ListForEmployer")
	defer span.End()

	principal, _ := PrincipalFromContext(ctx)
	apps, err := h.service.ListForEmployer(ctx, principal.IdentityID)
	if err != nil {
		h.fail(span, "list employer applications", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "applications": apps})
}

func (h *ApplicationHandler) handleListForSeeker(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.ListForSeeker")
	defer span.End()

	principal, _ := PrincipalFromContext(ctx)
	apps, err := h.service.ListForSeeker(ctx, principal.IdentityID)
	if err != nil {
		h.fail(span, "list seeker applications", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "applications": apps})
}

func (h *ApplicationHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.GetApplication")
	defer span.End()

	principal, _ := PrincipalFromContext(ctx)
	id := r.PathValue("id")
	span.SetAttributes(attribute.String("application.id", id))

	app, err := h.service.Get(ctx, id, principal.IdentityID)
	if err != nil {
		h.fail(span, "get application", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "application": app})
}

func (h *ApplicationHandler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.WithdrawApplication")
	defer span.End()

	principal, _ := PrincipalFromContext(ctx)
	id := r.PathValue("id")
	span.SetAttributes(attribute.String("application.id", id))

	outcome, err := h.service.Withdraw(ctx, id, principal.IdentityID)
	if err != nil {
		h.fail(span, "withdraw application", err)
		writeError(w, err)
		return
	}
	span.SetAttributes(attribute.String("withdraw.outcome", string(outcome)))
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Application Deleted."})
}

func (h *ApplicationHandler) fail(span trace.Span, op string, err error) {
	span.RecordError(err)
	if statusFor(err) >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, "failed to "+op)
		h.logger.Error("failed to "+op, "error", err)
		return
	}
	h.logger.Debug("request rejected", "op", op, "error", err)
}
