package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/models"
	"github.com/ayo6706/hold-ledger/internal/service"
	"github.com/google/uuid"
)

type moveFunc func(ctx context.Context, userID uuid.UUID, amount int64, metadata json.RawMessage) (*service.MoneyMovement, error)

// UserHandler serves user registration, balances and money movements.
type UserHandler struct {
	accounts *service.AccountService
	credit   *service.CreditService
	exponent int32
}

func NewUserHandler(accounts *service.AccountService, credit *service.CreditService, exponent int32) *UserHandler {
	return &UserHandler{accounts: accounts, credit: credit, exponent: exponent}
}

// Ensure handles PUT /v1/users/{id}.
func (h *UserHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.accounts.EnsureUser(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, "ensure user", err)
		return
	}
	RespondJSON(w, http.StatusOK, models.NewUser(u, h.exponent))
}

// Balance handles GET /v1/users/{id}/balance.
func (h *UserHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sum, err := h.credit.Summary(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, "get balance", err)
		return
	}
	RespondJSON(w, http.StatusOK, models.NewBalance(sum, h.exponent))
}

// SetCreditLimit handles PUT /v1/users/{id}/credit-limit.
func (h *UserHandler) SetCreditLimit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req models.CreditLimitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	var limit *int64
	if req.CreditLimit != nil {
		v, err := domain.ParseAmount(*req.CreditLimit, h.exponent)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", err.Error())
			return
		}
		limit = &v
	}
	u, err := h.accounts.SetCreditLimit(r.Context(), id, limit)
	if err != nil {
		RespondServiceError(w, r, "set credit limit", err)
		return
	}
	RespondJSON(w, http.StatusOK, models.NewUser(u, h.exponent))
}

// Lines handles GET /v1/users/{id}/lines?page=&page_size=.
func (h *UserHandler) Lines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize > 100 {
		pageSize = 100
	}

	lines, err := h.accounts.Statement(r.Context(), id, page, pageSize)
	if err != nil {
		RespondServiceError(w, r, "list lines", err)
		return
	}
	out := make([]models.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, models.NewLine(l, h.exponent))
	}
	RespondJSON(w, http.StatusOK, out)
}

// Deposit handles POST /v1/users/{id}/deposits.
func (h *UserHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "deposit", h.accounts.Deposit)
}

// Withdraw handles POST /v1/users/{id}/withdrawals.
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "withdraw", h.accounts.Withdraw)
}

func (h *UserHandler) move(w http.ResponseWriter, r *http.Request, op string, fn moveFunc) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req models.MoneyMovementRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amount, err := domain.ParseAmount(req.Amount, h.exponent)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", err.Error())
		return
	}
	mv, err := fn(r.Context(), id, amount, req.Metadata)
	if err != nil {
		RespondServiceError(w, r, op, err)
		return
	}
	RespondJSON(w, http.StatusCreated, models.MoneyMovement{
		Debit:  models.NewLine(*mv.Debit, h.exponent),
		Credit: models.NewLine(*mv.Credit, h.exponent),
	})
}
