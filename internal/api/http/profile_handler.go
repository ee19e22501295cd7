package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"job-board/internal/domain"
	"job-board/internal/usecase"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProfileHandler serves the stored résumé replacement route.
type ProfileHandler struct {
	service *usecase.ProfileService
	tokens  *TokenProvider
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewProfileHandler(service *usecase.ProfileService, tokens *TokenProvider, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		tokens:  tokens,
		logger:  logger.With("component", "profile-handler"),
		tracer:  otel.Tracer("job-board-api"),
	}
}

func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux) {
	const pattern = "PUT /api/v1/user/resume"
	handler := Chain(http.HandlerFunc(h.handleReplaceResume), Authenticate(h.tokens), RequireRole(domain.RoleJobSeeker))
	mux.Handle(pattern, Instrument(pattern, handler))
}

func (h *ProfileHandler) handleReplaceResume(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.ReplaceResume")
	defer span.End()

	principal, _ := PrincipalFromContext(ctx)
	span.SetAttributes(attribute.String("identity.id", principal.IdentityID))

	if err := parseMultipart(w, r); err != nil {
		if errors.Is(err, errFormTooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large.")
			return
		}
		writeError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	upload, err := resumeFromForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if upload == nil {
		writeMessage(w, http.StatusBadRequest, "Resume file is required.")
		return
	}
	if f, ok := upload.Body.(io.Closer); ok {
		defer f.Close()
	}

	ref, err := h.service.ReplaceStoredResume(ctx, principal.IdentityID, upload)
	if err != nil {
		span.RecordError(err)
		if statusFor(err) >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, "failed to replace resume")
			h.logger.Error("failed to replace resume", "identity_id", principal.IdentityID, "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Resume Updated.", "resume": ref})
}
