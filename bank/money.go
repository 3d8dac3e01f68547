package bank

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/meridian/bank-ledger/ledger"
)

// =============================================================================
// MONEY SERVICE - Operation submission
// =============================================================================

// MoneyService is the thin front door for customer-initiated operations.
// It owns the checks that need data the engine does not have (the biller
// registry); everything else passes straight through to the engine.
type MoneyService struct {
	Engine  *ledger.Engine
	Billers *BillerRegistry
}

func NewMoneyService(engine *ledger.Engine, billers *BillerRegistry) *MoneyService {
	return &MoneyService{Engine: engine, Billers: billers}
}

func (m *MoneyService) Withdraw(ctx context.Context, account ledger.AccountID, amount decimal.Decimal, note, category string) (*ledger.Receipt, error) {
	return m.Engine.Apply(ctx, ledger.Withdraw{Account: account, Amount: amount, Note: note, Category: category})
}

func (m *MoneyService) Deposit(ctx context.Context, account ledger.AccountID, amount decimal.Decimal, note, category string) (*ledger.Receipt, error) {
	return m.Engine.Apply(ctx, ledger.Deposit{Account: account, Amount: amount, Note: note, Category: category})
}

func (m *MoneyService) Transfer(ctx context.Context, from ledger.AccountID, toUsername string, amount decimal.Decimal, note, category string) (*ledger.Receipt, error) {
	return m.Engine.Apply(ctx, ledger.Transfer{From: from, ToUsername: toUsername, Amount: amount, Note: note, Category: category})
}

// PayBill validates the account number against the biller registry, then
// submits the payment.
func (m *MoneyService) PayBill(ctx context.Context, account ledger.AccountID, billerID, accountNumber string, amount decimal.Decimal, note string) (*ledger.Receipt, error) {
	b, err := m.Billers.Validate(billerID, accountNumber)
	if err != nil {
		return nil, err
	}
	return m.Engine.Apply(ctx, ledger.BillPayment{
		Account:       account,
		BillerID:      b.ID,
		BillerName:    b.Name,
		AccountNumber: accountNumber,
		Amount:        amount,
		Note:          note,
	})
}

func (m *MoneyService) FundGoal(ctx context.Context, account ledger.AccountID, goalID string, amount decimal.Decimal) (*ledger.Receipt, error) {
	return m.Engine.Apply(ctx, ledger.FundGoal{Account: account, GoalID: goalID, Amount: amount})
}
