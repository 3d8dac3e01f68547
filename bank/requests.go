/*
requests.go - Money-request lifecycle

PURPOSE:
  A money request is "please pay me": the requester creates it, the
  target approves or declines. Approval settles through the engine's
  atomic transfer; the request row flips to approved only after the
  transfer has committed, so a failed settlement leaves the request
  pending and retryable.

STATUS FLOW:
  pending ──approve──▶ transfer commits ──▶ approved
     │                      │
     │                      └─ transfer fails ──▶ still pending
     └────decline──▶ declined

  The pending → approved/declined edge is a compare-and-set in the
  request store, so a request settles at most once even under
  concurrent responders.
*/
package bank

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian/bank-ledger/ledger"
)

// =============================================================================
// REQUEST SERVICE
// =============================================================================

type RequestService struct {
	Engine        *ledger.Engine
	Store         ledger.Store
	Requests      ledger.RequestStore
	Notifications ledger.NotificationStore
	Clock         ledger.Clock
}

func NewRequestService(engine *ledger.Engine, store ledger.Store, requests ledger.RequestStore, notifs ledger.NotificationStore) *RequestService {
	return &RequestService{Engine: engine, Store: store, Requests: requests, Notifications: notifs, Clock: ledger.SystemClock{}}
}

// Send creates a pending request from the requester to the target user.
func (rs *RequestService) Send(ctx context.Context, requester ledger.AccountID, toUsername string, amount decimal.Decimal, reason string) (*ledger.MoneyRequest, error) {
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	from, err := rs.Store.GetAccount(ctx, requester)
	if err != nil {
		return nil, err
	}
	target, err := rs.Store.FindByUsername(ctx, toUsername)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, ledger.ErrRecipientNotFound
		}
		return nil, err
	}
	if target.ID == from.ID {
		return nil, ErrSelfRequest
	}

	now := rs.Clock.Now()
	req := &ledger.MoneyRequest{
		ID:           uuid.NewString(),
		FromID:       from.ID,
		FromUsername: from.Username,
		ToID:         target.ID,
		ToUsername:   target.Username,
		Amount:       amount.Round(2),
		Reason:       reason,
		Status:       ledger.RequestPending,
		Date:         ledger.DateKey(now),
		CreatedAt:    now,
	}
	if err := rs.Requests.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	rs.notify(ctx, target.Username, "request_received",
		fmt.Sprintf("%s requested %s", from.Username, amount.StringFixed(2)), req.ID)
	return req, nil
}

// Respond settles a pending request. Only the target may respond. On
// approval the target pays the requester via the engine; the status flips
// only after the transfer commits. On decline no funds move.
func (rs *RequestService) Respond(ctx context.Context, responder ledger.AccountID, requestID string, approve bool) (*ledger.Receipt, error) {
	req, err := rs.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToID != responder {
		return nil, ErrNotYourRequest
	}
	if req.Status != ledger.RequestPending {
		return nil, ErrRequestNotPending
	}

	if !approve {
		if err := rs.Requests.UpdateRequestStatus(ctx, req.ID, ledger.RequestPending, ledger.RequestDeclined); err != nil {
			return nil, err
		}
		rs.notify(ctx, req.FromUsername, "request_declined",
			fmt.Sprintf("%s declined your request for %s", req.ToUsername, req.Amount.StringFixed(2)), req.ID)
		return nil, nil
	}

	// Settlement transfer: target pays requester. Balance is checked
	// inside the atomic cycle; limit counters are not consumed for
	// settlements.
	receipt, err := rs.Engine.Apply(ctx, ledger.Transfer{
		From:       req.ToID,
		ToUsername: req.FromUsername,
		Amount:     req.Amount,
		Note:       "Request: " + req.Reason,
		Category:   "Request",
		Origin:     ledger.OriginSettlement,
	})
	if err != nil {
		return nil, err
	}

	if err := rs.Requests.UpdateRequestStatus(ctx, req.ID, ledger.RequestPending, ledger.RequestApproved); err != nil {
		// Funds moved but the row did not flip: another responder raced
		// us after our pending check. Surface it; the transfer stands.
		return receipt, err
	}

	rs.notify(ctx, req.FromUsername, "request_approved",
		fmt.Sprintf("%s paid your request for %s", req.ToUsername, req.Amount.StringFixed(2)), req.ID)
	return receipt, nil
}

// Inbox lists requests addressed to the account.
func (rs *RequestService) Inbox(ctx context.Context, id ledger.AccountID) ([]*ledger.MoneyRequest, error) {
	return rs.Requests.ListRequestsFor(ctx, id)
}

// Sent lists requests the account created.
func (rs *RequestService) Sent(ctx context.Context, id ledger.AccountID) ([]*ledger.MoneyRequest, error) {
	return rs.Requests.ListRequestsBy(ctx, id)
}

func (rs *RequestService) notify(ctx context.Context, username, kind, body, refID string) {
	if rs.Notifications == nil {
		return
	}
	_ = rs.Notifications.AppendNotification(ctx, ledger.Notification{
		ID:        uuid.NewString(),
		Username:  username,
		Title:     "Money request",
		Body:      body,
		Kind:      kind,
		RefID:     refID,
		CreatedAt: rs.Clock.Now(),
	})
}
