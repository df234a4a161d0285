package handler

import (
	"net/http"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/models"
	"github.com/ayo6706/hold-ledger/internal/service"
	"github.com/google/uuid"
)

// HoldHandler exposes the authorization hold lifecycle.
type HoldHandler struct {
	holds    *service.HoldService
	exponent int32
}

func NewHoldHandler(holds *service.HoldService, exponent int32) *HoldHandler {
	return &HoldHandler{holds: holds, exponent: exponent}
}

// Upsert handles PUT /v1/holds/{id}. With ?dry_run=true it only reports the
// diagnostics an upsert would return.
func (h *HoldHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req models.UpsertHoldRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	cmd, err := h.command(id, req)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", err.Error())
		return
	}

	if r.URL.Query().Get("dry_run") == "true" {
		v, err := h.holds.ValidateUpsert(r.Context(), cmd)
		if err != nil {
			RespondServiceError(w, r, "validate hold", err)
			return
		}
		RespondJSON(w, http.StatusOK, models.ValidationResult{
			Valid:  len(v.Errors) == 0,
			Errors: append([]domain.FieldError{}, v.Errors...),
		})
		return
	}

	hold, created, err := h.holds.Put(r.Context(), cmd)
	if err != nil {
		RespondServiceError(w, r, "upsert hold", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	RespondJSON(w, status, models.NewHold(hold, h.exponent))
}

// Get handles GET /v1/holds/{id}.
func (h *HoldHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	hold, err := h.holds.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, "get hold", err)
		return
	}
	RespondJSON(w, http.StatusOK, models.NewHold(hold, h.exponent))
}

// Capture handles POST /v1/holds/{id}/capture.
func (h *HoldHandler) Capture(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	hold, err := h.holds.Capture(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, "capture hold", err)
		return
	}
	RespondJSON(w, http.StatusOK, models.NewHold(hold, h.exponent))
}

// Release handles POST /v1/holds/{id}/release.
func (h *HoldHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	hold, err := h.holds.Release(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, "release hold", err)
		return
	}
	RespondJSON(w, http.StatusOK, models.NewHold(hold, h.exponent))
}

func (h *HoldHandler) command(id uuid.UUID, req models.UpsertHoldRequest) (service.UpsertHoldCmd, error) {
	cmd := service.UpsertHoldCmd{ID: id, Metadata: req.Metadata}
	if req.UserID != nil {
		userID := uuid.MustParse(*req.UserID)
		cmd.UserID = &userID
	}
	if req.Amount != nil {
		amount, err := domain.ParseAmount(*req.Amount, h.exponent)
		if err != nil {
			return cmd, err
		}
		cmd.Amount = &amount
	}
	if req.TransferCode != nil {
		code := domain.TransferCode(*req.TransferCode)
		cmd.TransferCode = &code
	}
	if req.PartnerAccount != nil {
		partner := req.PartnerAccount.Account()
		cmd.PartnerAccount = &partner
	}
	cmd.Detail = req.Detail.Domain()
	return cmd, nil
}
