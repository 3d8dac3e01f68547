/*
handlers.go - HTTP API handlers for the banking ledger

PURPOSE:
  Exposes the ledger engine and its services via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    POST   /api/accounts                      Signup
    POST   /api/login                         PIN check
    GET    /api/accounts/{id}                 Account details
    GET    /api/accounts/{id}/statement       Ledger history
    GET    /api/accounts/{id}/notifications   Notification feed

  Money:
    POST   /api/accounts/{id}/withdraw        Withdraw (fee applies)
    POST   /api/accounts/{id}/deposit         Deposit
    POST   /api/accounts/{id}/transfer        Transfer by username
    POST   /api/accounts/{id}/billpay         Bill payment
    POST   /api/otp/confirm                   Confirm a high-value op
    POST   /api/otp/cancel                    Discard a pending op

  Goals / Requests / Scheduled:
    GET|POST /api/accounts/{id}/goals
    POST     /api/accounts/{id}/goals/{goalID}/fund
    GET      /api/accounts/{id}/requests      Inbox
    GET      /api/accounts/{id}/requests/sent
    POST     /api/requests                    Send a money request
    POST     /api/requests/{id}/respond       Approve/decline
    GET|POST /api/accounts/{id}/scheduled
    DELETE   /api/accounts/{id}/scheduled/{sid}
    POST     /api/accounts/{id}/scheduled/run-due

  Gift:
    GET    /api/accounts/{id}/gift            Eligibility
    POST   /api/accounts/{id}/gift            Claim

  Admin:
    GET    /api/admin/accounts
    DELETE /api/admin/accounts/{id}
    POST   /api/admin/accounts/{id}/adjust    Balance override
    POST   /api/admin/interest                Interest batch
    GET    /api/admin/audit

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Account/recipient/goal not found
  - 409: Already settled / already claimed
  - 422: Invariant violations (funds, limits, self-transfer)
  - 503: Optimistic-concurrency retries exhausted

SECURITY NOTE:
  Currently NO authentication or authorization beyond the PIN check
  endpoint. All endpoints are public; this mirrors the demo nature of
  the system.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian/bank-ledger/bank"
	"github.com/meridian/bank-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         ledger.Store
	Accounts      *bank.AccountService
	Money         *bank.MoneyService
	Goals         *bank.GoalService
	Requests      *bank.RequestService
	Schedules     *bank.ScheduleService
	Gifts         *bank.GiftService
	Interest      *bank.InterestRunner
	OTP           *bank.OTPGate
	Billers       *bank.BillerRegistry
	Notifications ledger.NotificationStore
	Audit         ledger.AuditLog
	Clock         ledger.Clock
	Log           *log.Logger
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// Signup creates an account.
// POST /api/accounts
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	a, err := h.Accounts.Signup(r.Context(), bank.SignupParams{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		PIN:       req.PIN,
		Tier:      ledger.Tier(req.Tier),
		Birthday:  req.Birthday,
	})
	if err != nil {
		h.fail(w, "signup failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(a))
}

// Login verifies a username + PIN pair.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	a, err := h.Accounts.VerifyPIN(r.Context(), req.Username, req.PIN)
	if err != nil {
		if errors.Is(err, bank.ErrWrongPIN) {
			writeError(w, http.StatusUnauthorized, "Incorrect PIN", nil)
			return
		}
		h.fail(w, "login failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(a))
}

// GetAccount returns account details.
// GET /api/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAccount(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, "failed to load account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(a))
}

// Statement returns the account's ledger history, newest first.
// GET /api/accounts/{id}/statement
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.EntriesByAccount(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, "failed to load statement", err)
		return
	}
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": dtos})
}

// ListNotifications returns the account's notification feed.
// GET /api/accounts/{id}/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAccount(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, "failed to load account", err)
		return
	}
	notifs, err := h.Notifications.ListNotifications(r.Context(), a.Username)
	if err != nil {
		h.fail(w, "failed to load notifications", err)
		return
	}
	dtos := make([]NotificationDTO, 0, len(notifs))
	for _, n := range notifs {
		dtos = append(dtos, toNotificationDTO(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": dtos})
}

// =============================================================================
// MONEY HANDLERS - withdraw / deposit / transfer / billpay + OTP gate
// =============================================================================

// Withdraw debits amount plus fee.
// POST /api/accounts/{id}/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req MoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	id := accountID(r)

	h.submit(w, r, id, amount, func(ctx context.Context) (*ledger.Receipt, error) {
		return h.Money.Withdraw(ctx, id, amount, req.Note, req.Category)
	})
}

// Deposit credits amount. Deposits are never OTP-gated.
// POST /api/accounts/{id}/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req MoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	receipt, err := h.Money.Deposit(r.Context(), accountID(r), amount, req.Note, req.Category)
	if err != nil {
		h.fail(w, "deposit failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

// Transfer moves funds to another user by username.
// POST /api/accounts/{id}/transfer
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	id := accountID(r)

	h.submit(w, r, id, amount, func(ctx context.Context) (*ledger.Receipt, error) {
		return h.Money.Transfer(ctx, id, req.To, amount, req.Note, req.Category)
	})
}

// PayBill pays a registered biller.
// POST /api/accounts/{id}/billpay
func (h *Handler) PayBill(w http.ResponseWriter, r *http.Request) {
	var req BillPayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	id := accountID(r)

	h.submit(w, r, id, amount, func(ctx context.Context) (*ledger.Receipt, error) {
		return h.Money.PayBill(ctx, id, req.BillerID, req.AccountNumber, amount, req.Note)
	})
}

// submit routes an operation through the OTP gate when the amount is
// above the threshold, otherwise runs it immediately. Gated operations
// get their context from the confirm request later.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, account ledger.AccountID, amount decimal.Decimal, action bank.Action) {
	if h.OTP != nil && h.OTP.Required(amount) {
		id, code, err := h.OTP.Issue(account, action)
		if err != nil {
			h.fail(w, "failed to issue confirmation", err)
			return
		}
		writeJSON(w, http.StatusAccepted, OTPChallengeDTO{ChallengeID: id, Code: code})
		return
	}
	receipt, err := action(r.Context())
	if err != nil {
		h.fail(w, "operation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

// ConfirmOTP runs a parked high-value operation.
// POST /api/otp/confirm
func (h *Handler) ConfirmOTP(w http.ResponseWriter, r *http.Request) {
	var req ConfirmOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	receipt, err := h.OTP.Confirm(r.Context(), req.ChallengeID, req.Code)
	if err != nil {
		h.fail(w, "confirmation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

// CancelOTP discards a pending confirmation.
// POST /api/otp/cancel
func (h *Handler) CancelOTP(w http.ResponseWriter, r *http.Request) {
	var req ConfirmOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.OTP.Cancel(req.ChallengeID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ListBillers returns the biller registry.
// GET /api/billers
func (h *Handler) ListBillers(w http.ResponseWriter, r *http.Request) {
	billers := h.Billers.List()
	dtos := make([]BillerDTO, 0, len(billers))
	for _, b := range billers {
		dtos = append(dtos, BillerDTO{ID: b.ID, Name: b.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"billers": dtos})
}

// =============================================================================
// GOAL HANDLERS
// =============================================================================

// ListGoals returns the account's savings goals.
// GET /api/accounts/{id}/goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.Goals.List(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, "failed to load goals", err)
		return
	}
	dtos := make([]GoalDTO, 0, len(goals))
	for _, g := range goals {
		dtos = append(dtos, toGoalDTO(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": dtos})
}

// CreateGoal adds a savings goal.
// POST /api/accounts/{id}/goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	target, err := parseAmount(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target", err)
		return
	}
	g, err := h.Goals.Create(r.Context(), accountID(r), req.Name, target, req.TargetDate)
	if err != nil {
		h.fail(w, "failed to create goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalDTO(g))
}

// FundGoal moves funds from the balance into a goal.
// POST /api/accounts/{id}/goals/{goalID}/fund
func (h *Handler) FundGoal(w http.ResponseWriter, r *http.Request) {
	var req FundGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	receipt, err := h.Money.FundGoal(r.Context(), accountID(r), chi.URLParam(r, "goalID"), amount)
	if err != nil {
		h.fail(w, "failed to fund goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

// =============================================================================
// MONEY REQUEST HANDLERS
// =============================================================================

// SendRequest creates a pending money request.
// POST /api/requests  (body carries the requester id)
func (h *Handler) SendRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		SendMoneyRequestRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	mr, err := h.Requests.Send(r.Context(), ledger.AccountID(req.From), req.To, amount, req.Reason)
	if err != nil {
		h.fail(w, "failed to send request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(mr))
}

// RespondToRequest approves or declines a pending request.
// POST /api/requests/{id}/respond  (responder id in body)
func (h *Handler) RespondToRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Responder string `json:"responder"`
		RespondRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	receipt, err := h.Requests.Respond(r.Context(), ledger.AccountID(req.Responder), chi.URLParam(r, "id"), req.Approve)
	if err != nil {
		h.fail(w, "failed to respond to request", err)
		return
	}
	resp := map[string]any{"status": "declined"}
	if req.Approve {
		resp["status"] = "approved"
		resp["receipt"] = toReceiptDTO(receipt)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Inbox lists requests addressed to the account.
// GET /api/accounts/{id}/requests
func (h *Handler) Inbox(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, h.Requests.Inbox)
}

// SentRequests lists requests the account created.
// GET /api/accounts/{id}/requests/sent
func (h *Handler) SentRequests(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, h.Requests.Sent)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request, load func(ctx context.Context, id ledger.AccountID) ([]*ledger.MoneyRequest, error)) {
	reqs, err := load(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, "failed to load requests", err)
		return
	}
	dtos := make([]MoneyRequestDTO, 0, len(reqs))
	for _, mr := range reqs {
		dtos = append(dtos, toRequestDTO(mr))
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": dtos})
}

// =============================================================================
// SCHEDULED TRANSFER HANDLERS
// =============================================================================

// ListScheduled lists the account's scheduled transfers.
// GET /api/accounts/{id}/scheduled
func (h *Handler) ListScheduled(w http.ResponseWriter, r *http.Request) {
	items, err := h.Schedules.List(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, "failed to load scheduled transfers", err)
		return
	}
	dtos := make([]ScheduledDTO, 0, len(items))
	for _, s := range items {
		dtos = append(dtos, toScheduledDTO(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"scheduled": dtos})
}

// CreateScheduled adds a scheduled transfer.
// POST /api/accounts/{id}/scheduled
func (h *Handler) CreateScheduled(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	st, err := h.Schedules.Create(r.Context(), bank.ScheduleParams{
		From:       accountID(r),
		ToUsername: req.To,
		Amount:     amount,
		Frequency:  ledger.Frequency(req.Frequency),
		StartDate:  req.StartDate,
		Note:       req.Note,
	})
	if err != nil {
		h.fail(w, "failed to create scheduled transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduledDTO(st))
}

// DeleteScheduled removes a scheduled transfer.
// DELETE /api/accounts/{id}/scheduled/{sid}
func (h *Handler) DeleteScheduled(w http.ResponseWriter, r *http.Request) {
	if err := h.Schedules.Delete(r.Context(), accountID(r), chi.URLParam(r, "sid")); err != nil {
		h.fail(w, "failed to delete scheduled transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// RunDue executes the account's due scheduled transfers. This is the
// same pass the login flow of the original system triggers.
// POST /api/accounts/{id}/scheduled/run-due
func (h *Handler) RunDue(w http.ResponseWriter, r *http.Request) {
	today := ledger.DateKey(h.Clock.Now())
	results, err := h.Schedules.RunDueForAccount(r.Context(), accountID(r), today)
	if err != nil {
		h.fail(w, "failed to run scheduled transfers", err)
		return
	}

	type runDTO struct {
		ScheduleID string      `json:"schedule_id"`
		NextRun    string      `json:"next_run,omitempty"`
		Receipt    *ReceiptDTO `json:"receipt,omitempty"`
		Error      string      `json:"error,omitempty"`
	}
	dtos := make([]runDTO, 0, len(results))
	for _, res := range results {
		d := runDTO{ScheduleID: res.ScheduleID, NextRun: res.NextRun}
		if res.Receipt != nil {
			rd := toReceiptDTO(res.Receipt)
			d.Receipt = &rd
		}
		if res.Err != nil {
			d.Error = res.Err.Error()
		}
		dtos = append(dtos, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// =============================================================================
// GIFT HANDLERS
// =============================================================================

// GiftEligibility reports whether the gift is claimable today.
// GET /api/accounts/{id}/gift
func (h *Handler) GiftEligibility(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAccount(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, "failed to load account", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"eligible": h.Gifts.Eligible(a)})
}

// ClaimGift credits the birthday gift.
// POST /api/accounts/{id}/gift
func (h *Handler) ClaimGift(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.Gifts.Claim(r.Context(), accountID(r))
	if err != nil {
		h.fail(w, "failed to claim gift", err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ListAccounts returns all accounts.
// GET /api/admin/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Accounts.List(r.Context())
	if err != nil {
		h.fail(w, "failed to list accounts", err)
		return
	}
	dtos := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, toAccountDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": dtos})
}

// DeleteAccount removes an account.
// DELETE /api/admin/accounts/{id}
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		actor = "admin"
	}
	if err := h.Accounts.Delete(r.Context(), actor, accountID(r)); err != nil {
		h.fail(w, "failed to delete account", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AdjustBalance is the admin balance override.
// POST /api/admin/accounts/{id}/adjust
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	balance, err := decimal.NewFromString(req.Balance)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid balance", err)
		return
	}
	actor := req.Actor
	if actor == "" {
		actor = "admin"
	}
	if err := h.Accounts.SetBalance(r.Context(), actor, accountID(r), balance); err != nil {
		h.fail(w, "failed to adjust balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "adjusted"})
}

// RunInterest triggers the interest batch.
// POST /api/admin/interest
func (h *Handler) RunInterest(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Interest.ApplyAll(r.Context())
	if err != nil {
		h.fail(w, "interest batch failed", err)
		return
	}
	failures := make(map[string]string, len(summary.Failures))
	for id, ferr := range summary.Failures {
		failures[string(id)] = ferr.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"credited": summary.Credited,
		"total":    summary.Total.StringFixed(2),
		"failures": failures,
	})
}

// ListAudit returns recent audit events.
// GET /api/admin/audit
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	events, err := h.Audit.ListAudit(r.Context(), 100)
	if err != nil {
		h.fail(w, "failed to load audit log", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Stats returns summary numbers for the admin dashboard.
// GET /api/admin/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Accounts.List(r.Context())
	if err != nil {
		h.fail(w, "failed to load accounts", err)
		return
	}
	total := decimal.Zero
	byTier := map[string]int{}
	for _, a := range accounts {
		total = total.Add(a.Balance)
		byTier[string(a.Tier)]++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts":      len(accounts),
		"total_balance": total.StringFixed(2),
		"by_tier":       byTier,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func accountID(r *http.Request) ledger.AccountID {
	return ledger.AccountID(chi.URLParam(r, "id"))
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

// fail maps a domain error onto an HTTP status.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if h.Log != nil && status >= 500 {
		h.Log.Error(msg, "err", err)
	}
	writeError(w, status, msg, err)
}

func statusFor(err error) int {
	switch {
	case ledger.IsNotFound(err),
		errors.Is(err, bank.ErrUnknownBiller),
		errors.Is(err, bank.ErrChallengeNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyClaimed),
		errors.Is(err, bank.ErrRequestNotPending):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrDailyLimitExceeded),
		errors.Is(err, ledger.ErrMonthlyLimitExceeded),
		errors.Is(err, ledger.ErrSelfTransfer):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrConflictRetryExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, bank.ErrWrongPIN):
		return http.StatusUnauthorized
	case errors.Is(err, bank.ErrNotYourRequest), errors.Is(err, bank.ErrNotOwner):
		return http.StatusForbidden
	case ledger.IsClientError(err),
		errors.Is(err, bank.ErrInvalidAccountNumber),
		errors.Is(err, bank.ErrInvalidUsername),
		errors.Is(err, bank.ErrInvalidPIN),
		errors.Is(err, bank.ErrInvalidFrequency),
		errors.Is(err, bank.ErrInvalidStartDate),
		errors.Is(err, bank.ErrSelfRequest),
		errors.Is(err, bank.ErrNotBirthday),
		errors.Is(err, bank.ErrCodeMismatch),
		errors.Is(err, bank.ErrCodeExpired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
