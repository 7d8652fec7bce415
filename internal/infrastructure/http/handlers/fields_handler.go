package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carbonbits/farmdb/internal/application/ports"
	"github.com/carbonbits/farmdb/internal/domain"
)

// FieldsHandler serves farm field creation and listing.
type FieldsHandler struct {
	fields   ports.FieldRepository
	validate *validator.Validate
	log      zerolog.Logger
}

func NewFieldsHandler(fields ports.FieldRepository, log zerolog.Logger) *FieldsHandler {
	return &FieldsHandler{fields: fields, validate: validator.New(), log: log}
}

func (h *FieldsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name" validate:"required,max=200"`
		Description string `json:"description" validate:"max=2000"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}

	now := time.Now().UTC()
	field := &domain.FarmField{
		ID:          uuid.NewString(),
		Name:        body.Name,
		Description: body.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.fields.Create(r.Context(), field); err != nil {
		h.log.Error().Err(err).Msg("create field failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, field)
}

func (h *FieldsHandler) List(w http.ResponseWriter, r *http.Request) {
	fields, err := h.fields.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list fields failed")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	if fields == nil {
		fields = []*domain.FarmField{}
	}
	writeJSON(w, http.StatusOK, fields)
}
