package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/portfolio-contact/backend/internal/iplookup"
	"github.com/portfolio-contact/backend/internal/service"
	"github.com/portfolio-contact/backend/internal/validation"
)

const maxSubmitBody = 64 << 10

// ContactHandler handles contact form submission and live field validation.
type ContactHandler struct {
	contactService    service.ContactService
	schema            *validation.Schema
	trustedProxyCount int
}

// NewContactHandler creates a ContactHandler. schema must be the one the
// service validates with so live validation and submit agree.
func NewContactHandler(contactService service.ContactService, schema *validation.Schema, trustedProxyCount int) *ContactHandler {
	return &ContactHandler{contactService: contactService, schema: schema, trustedProxyCount: trustedProxyCount}
}

type submitResponse struct {
	OK      bool   `json:"ok"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

type validationFailedResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

// Submit handles POST /api/contact. The body is JSON or a urlencoded /
// multipart form using the same field names.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBody)

	sub, ok := decodeSubmission(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	sub.IP = iplookup.FromRequest(r, h.trustedProxyCount)

	msg, err := h.contactService.Submit(r.Context(), sub)
	if err != nil {
		var verrs *validation.Errors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, validationFailedResponse{
				Error:   "validation_failed",
				Message: service.MsgFixErrors,
				Fields:  verrs.Fields,
			})
			return
		}
		slog.Error("contact submit failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "submit_failed",
			"message": service.MsgSomethingFailed,
		})
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{OK: true, ID: msg.ID, Message: service.MsgSubmitted})
}

func decodeSubmission(r *http.Request) (service.ContactSubmission, bool) {
	var sub service.ContactSubmission
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxSubmitBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return sub, false
		}
		sub.Name = r.PostFormValue("name")
		sub.Email = r.PostFormValue("email")
		sub.Phone = r.PostFormValue("phone")
		sub.Subject = r.PostFormValue("subject")
		sub.Message = r.PostFormValue("message")
		sub.Newsletter = r.PostFormValue("newsletter") == "on"
		return sub, true
	default:
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			return sub, false
		}
		return sub, true
	}
}

type validateRequest struct {
	Field     string `json:"field"`
	Value     string `json:"value"`
	ShowError bool   `json:"show_error"`
}

type validateResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Validate handles POST /api/contact/validate: one field checked the way the
// form does on input (show_error=false) or on blur (show_error=true).
func (h *ContactHandler) Validate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBody)

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Field == "" {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	msg := h.schema.Field(req.Field, req.Value, req.ShowError)
	writeJSON(w, http.StatusOK, validateResponse{Valid: msg == "", Message: msg})
}
