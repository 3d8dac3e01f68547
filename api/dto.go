/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

Amounts travel as strings ("125.00") so clients never touch binary
floating point.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/meridian/bank-ledger/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type SignupRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	PIN       string `json:"pin"`
	Tier      string `json:"tier"`
	Birthday  string `json:"birthday,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
}

// MoneyRequest covers withdraw and deposit.
type MoneyRequest struct {
	Amount   string `json:"amount"`
	Note     string `json:"note,omitempty"`
	Category string `json:"category,omitempty"`
}

type TransferRequest struct {
	To       string `json:"to"`
	Amount   string `json:"amount"`
	Note     string `json:"note,omitempty"`
	Category string `json:"category,omitempty"`
}

type BillPayRequest struct {
	BillerID      string `json:"biller_id"`
	AccountNumber string `json:"account_number"`
	Amount        string `json:"amount"`
	Note          string `json:"note,omitempty"`
}

type CreateGoalRequest struct {
	Name       string `json:"name"`
	Target     string `json:"target"`
	TargetDate string `json:"target_date,omitempty"`
}

type FundGoalRequest struct {
	Amount string `json:"amount"`
}

type SendMoneyRequestRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

type RespondRequest struct {
	Approve bool `json:"approve"`
}

type CreateScheduleRequest struct {
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Frequency string `json:"frequency"`
	StartDate string `json:"start_date"`
	Note      string `json:"note,omitempty"`
}

type AdjustBalanceRequest struct {
	Actor   string `json:"actor"`
	Balance string `json:"balance"`
}

type ConfirmOTPRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type AccountDTO struct {
	ID         string      `json:"id"`
	Username   string      `json:"username"`
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	Tier       string      `json:"tier"`
	Balance    string      `json:"balance"`
	CardNumber string      `json:"card_number"`
	Birthday   string      `json:"birthday,omitempty"`
	LastTx     *ReceiptDTO `json:"last_transaction,omitempty"`
	CreatedAt  string      `json:"created_at"`
}

type ReceiptDTO struct {
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	Fee          string `json:"fee,omitempty"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Recipient    string `json:"recipient,omitempty"`
	Note         string `json:"note,omitempty"`
	Category     string `json:"category,omitempty"`
	BalanceAfter string `json:"balance_after"`
}

type EntryDTO struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Username     string `json:"username"`
	Recipient    string `json:"recipient,omitempty"`
	Amount       string `json:"amount"`
	Fee          string `json:"fee,omitempty"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Note         string `json:"note,omitempty"`
	Category     string `json:"category,omitempty"`
	BalanceAfter string `json:"balance_after"`
	BillerID     string `json:"biller_id,omitempty"`
	GoalID       string `json:"goal_id,omitempty"`
}

type GoalDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Target     string `json:"target"`
	Saved      string `json:"saved"`
	Remaining  string `json:"remaining"`
	TargetDate string `json:"target_date,omitempty"`
	Created    string `json:"created"`
}

type MoneyRequestDTO struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Reason string `json:"reason,omitempty"`
	Status string `json:"status"`
	Date   string `json:"date"`
}

type ScheduledDTO struct {
	ID        string `json:"id"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Frequency string `json:"frequency"`
	NextRun   string `json:"next_run"`
	Note      string `json:"note,omitempty"`
}

type BillerDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type NotificationDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Kind      string `json:"kind"`
	RefID     string `json:"ref_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// OTPChallengeDTO is returned when an operation needs confirmation. The
// code is included because this demo has no out-of-band channel.
type OTPChallengeDTO struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTO(a *ledger.Account) AccountDTO {
	dto := AccountDTO{
		ID:         string(a.ID),
		Username:   a.Username,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Tier:       string(a.Tier),
		Balance:    a.Balance.StringFixed(2),
		CardNumber: a.CardNumber,
		Birthday:   a.Birthday,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
	if a.LastTransaction != nil {
		r := toReceiptDTO(a.LastTransaction)
		dto.LastTx = &r
	}
	return dto
}

func toReceiptDTO(r *ledger.Receipt) ReceiptDTO {
	dto := ReceiptDTO{
		Type:         r.Type,
		Amount:       r.Amount.StringFixed(2),
		Date:         r.Date,
		Time:         r.Time,
		Recipient:    r.Recipient,
		Note:         r.Note,
		Category:     r.Category,
		BalanceAfter: r.BalanceAfter.StringFixed(2),
	}
	if !r.Fee.IsZero() {
		dto.Fee = r.Fee.StringFixed(2)
	}
	return dto
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	dto := EntryDTO{
		ID:           string(e.ID),
		Type:         string(e.Type),
		Username:     e.Username,
		Recipient:    e.Recipient,
		Amount:       e.Amount.StringFixed(2),
		Date:         e.Date,
		Time:         e.Time,
		Note:         e.Note,
		Category:     e.Category,
		BalanceAfter: e.BalanceAfter.StringFixed(2),
		BillerID:     e.BillerID,
		GoalID:       e.GoalID,
	}
	if !e.Fee.IsZero() {
		dto.Fee = e.Fee.StringFixed(2)
	}
	return dto
}

func toGoalDTO(g *ledger.Goal) GoalDTO {
	return GoalDTO{
		ID:         g.ID,
		Name:       g.Name,
		Target:     g.Target.StringFixed(2),
		Saved:      g.Saved.StringFixed(2),
		Remaining:  g.Remaining().StringFixed(2),
		TargetDate: g.TargetDate,
		Created:    g.Created,
	}
}

func toRequestDTO(r *ledger.MoneyRequest) MoneyRequestDTO {
	return MoneyRequestDTO{
		ID:     r.ID,
		From:   r.FromUsername,
		To:     r.ToUsername,
		Amount: r.Amount.StringFixed(2),
		Reason: r.Reason,
		Status: string(r.Status),
		Date:   r.Date,
	}
}

func toScheduledDTO(s *ledger.ScheduledTransfer) ScheduledDTO {
	return ScheduledDTO{
		ID:        s.ID,
		To:        s.ToUsername,
		Amount:    s.Amount.StringFixed(2),
		Frequency: string(s.Frequency),
		NextRun:   s.NextRun,
		Note:      s.Note,
	}
}

func toNotificationDTO(n ledger.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		Kind:      n.Kind,
		RefID:     n.RefID,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}
