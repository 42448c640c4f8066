package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finledger/internal/core"
	"finledger/internal/cryptox"
	"finledger/internal/rates"
	"finledger/internal/storage"
)

// Ledger is the entry point for the surrounding HTTP layer: it validates and
// records transactions, then drives the budget and goal evaluators.
type Ledger struct {
	storage *storage.SQLiteRepository
	codec   *cryptox.Codec
	rates   rates.Resolver
	budgets *BudgetEvaluator
	goals   *GoalEvaluator
	locks   *userLocks
	now     func() time.Time
}

func NewLedger(storage *storage.SQLiteRepository, codec *cryptox.Codec, resolver rates.Resolver, budgets *BudgetEvaluator, goals *GoalEvaluator) *Ledger {
	return &Ledger{
		storage: storage,
		codec:   codec,
		rates:   resolver,
		budgets: budgets,
		goals:   goals,
		locks:   newUserLocks(),
		now:     time.Now,
	}
}

// SubmitRequest carries a user-submitted transaction. Amount is a decimal
// string; the window and recurrence are optional.
type SubmitRequest struct {
	UserID         string
	Amount         string
	Category       string
	Tags           []string
	Kind           core.TransactionKind
	Currency       string
	TargetCurrency string
	ExchangeRate   float64
	Recurrence     core.Recurrence
	StartDate      time.Time
	EndDate        time.Time
}

// Entry is a ledger record with its decoded amount.
type Entry struct {
	Transaction core.Transaction
	Amount      core.Money
}

// SubmitTransaction validates, converts, encodes and appends a transaction,
// then runs the budget and goal evaluators for the user. Validation and rate
// resolution failures abort before anything is persisted; evaluator failures
// after the append are logged, not surfaced, so the recorded write stands.
//
// A recurring submission additionally registers a template whose durable
// next-due drives future materializations.
func (l *Ledger) SubmitTransaction(ctx context.Context, req SubmitRequest) (Entry, error) {
	if err := core.ValidateTags(req.Tags); err != nil {
		return Entry{}, err
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return Entry{}, err
	}
	amount := core.Money{Cents: cents}

	now := l.now()
	tx := core.Transaction{
		UserID:           req.UserID,
		Category:         req.Category,
		Tags:             req.Tags,
		Kind:             req.Kind,
		OriginalCurrency: req.Currency,
		ExchangeRate:     req.ExchangeRate,
		Recurrence:       req.Recurrence,
		Date:             now,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
	}
	if err := tx.Validate(); err != nil {
		return Entry{}, err
	}

	// Convert into the target currency before applying the submitted rate.
	if req.TargetCurrency != "" && req.TargetCurrency != req.Currency {
		rate, err := l.rates.Rate(ctx, req.Currency, req.TargetCurrency)
		if err != nil {
			return Entry{}, err
		}
		amount = amount.Mul(rate)
	}
	sourceAmount := amount
	amount = amount.Mul(req.ExchangeRate)

	encoded, err := l.codec.Encode(amount)
	if err != nil {
		return Entry{}, fmt.Errorf("encode amount: %w", err)
	}
	tx.EncodedAmount = encoded

	id, err := l.storage.AppendTransaction(ctx, tx)
	if err != nil {
		return Entry{}, fmt.Errorf("append transaction: %w", err)
	}
	tx.ID = id

	l.evaluate(ctx, req.UserID)

	if req.Recurrence.Recurring() {
		if err := l.registerTemplate(ctx, req, sourceAmount, now); err != nil {
			slog.ErrorContext(ctx, "Failed to register recurring template",
				"user_id", req.UserID, "error", err)
		}
	}

	return Entry{Transaction: tx, Amount: amount}, nil
}

// evaluate runs the budget and goal passes sequentially under the user's
// lock. Failures are logged and swallowed: one user's evaluation trouble must
// not fail the acknowledged write.
func (l *Ledger) evaluate(ctx context.Context, userID string) {
	unlock := l.locks.Lock(userID)
	defer unlock()

	if _, err := l.budgets.Evaluate(ctx, userID); err != nil {
		slog.ErrorContext(ctx, "Budget evaluation failed", "user_id", userID, "error", err)
	}
	if _, err := l.goals.Evaluate(ctx, userID); err != nil {
		slog.ErrorContext(ctx, "Goal evaluation failed", "user_id", userID, "error", err)
	}
	if _, err := l.goals.SendDueSoonReminders(ctx, userID); err != nil {
		slog.ErrorContext(ctx, "Due-soon reminder pass failed", "user_id", userID, "error", err)
	}
}

func (l *Ledger) registerTemplate(ctx context.Context, req SubmitRequest, sourceAmount core.Money, now time.Time) error {
	start := req.StartDate
	if start.IsZero() {
		start = now
	}

	// The submitted transaction is the first occurrence; the template arms
	// for the one after it, or for the window start if it is still ahead.
	nextDue := start
	if !start.After(now) {
		next, err := core.NextOccurrence(now, req.Recurrence)
		if err != nil {
			return err
		}
		nextDue = next
	}

	template := core.RecurringTemplate{
		UserID:           req.UserID,
		Amount:           sourceAmount,
		Category:         req.Category,
		Tags:             req.Tags,
		Kind:             req.Kind,
		OriginalCurrency: req.Currency,
		ExchangeRate:     req.ExchangeRate,
		Recurrence:       req.Recurrence,
		StartDate:        start,
		EndDate:          req.EndDate,
		NextDue:          nextDue,
	}
	if err := template.Validate(); err != nil {
		return err
	}

	_, err := l.storage.CreateTemplate(ctx, template)
	return err
}

// ListTransactions returns the user's ledger with decoded amounts. A decode
// failure propagates: an export with partially decoded amounts would be
// silently wrong.
func (l *Ledger) ListTransactions(ctx context.Context, userID string) ([]Entry, error) {
	transactions, err := l.storage.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	entries := make([]Entry, len(transactions))
	for i, tx := range transactions {
		amount, err := l.codec.Decode(tx.EncodedAmount)
		if err != nil {
			return nil, fmt.Errorf("decode amount of %s: %w", tx.ID, err)
		}
		entries[i] = Entry{Transaction: tx, Amount: amount}
	}
	return entries, nil
}

// EvaluateBudgets re-runs budget evaluation for the user on demand.
func (l *Ledger) EvaluateBudgets(ctx context.Context, userID string) ([]BudgetResult, error) {
	unlock := l.locks.Lock(userID)
	defer unlock()
	return l.budgets.Evaluate(ctx, userID)
}

// EvaluateGoals re-runs goal evaluation for the user on demand.
func (l *Ledger) EvaluateGoals(ctx context.Context, userID string) ([]GoalResult, error) {
	unlock := l.locks.Lock(userID)
	defer unlock()
	return l.goals.Evaluate(ctx, userID)
}

// SendDueSoonReminders fires due-date reminders for the user's open goals.
func (l *Ledger) SendDueSoonReminders(ctx context.Context, userID string) (int, error) {
	return l.goals.SendDueSoonReminders(ctx, userID)
}

// AllocateSavings credits a fixed share of an income amount to the user's
// first unachieved goal. No-op when every goal is done.
func (l *Ledger) AllocateSavings(ctx context.Context, userID string, income core.Money) error {
	const savingsPercent = 10

	unlock := l.locks.Lock(userID)
	defer unlock()

	goals, err := l.storage.ListUnachievedGoalsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list unachieved goals: %w", err)
	}
	if len(goals) == 0 {
		return nil
	}

	goal := goals[0]
	credited := goal.CurrentAmount.Add(income.Mul(float64(savingsPercent) / 100))
	if err := l.storage.UpdateGoalProgress(ctx, goal.ID, credited, goal.Achieved); err != nil {
		return fmt.Errorf("credit savings allocation: %w", err)
	}

	slog.InfoContext(ctx, "Savings allocated to goal",
		"user_id", userID,
		"goal_id", goal.ID,
		"credited", credited)

	return nil
}
