package services

import (
	"context"
	"fmt"
	"log/slog"

	"finledger/internal/core"
	"finledger/internal/cryptox"
	"finledger/internal/storage"
)

// BudgetEvaluator compares a user's per-category spend against their budget
// thresholds and raises an alert for every exceeded budget.
type BudgetEvaluator struct {
	storage  *storage.SQLiteRepository
	codec    *cryptox.Codec
	notifier *Notifier
}

func NewBudgetEvaluator(storage *storage.SQLiteRepository, codec *cryptox.Codec, notifier *Notifier) *BudgetEvaluator {
	return &BudgetEvaluator{
		storage:  storage,
		codec:    codec,
		notifier: notifier,
	}
}

// BudgetResult is the outcome of evaluating a single budget.
type BudgetResult struct {
	BudgetID string
	Category string
	Total    core.Money
	Exceeded bool
	Err      error
}

// Evaluate sums the user's decoded spend per budgeted category and emits one
// alert per exceeded threshold. The budget declares a monthly timeframe but
// the sum is all-time: no date filter is applied.
//
// A failure on one budget is recorded and logged, and evaluation continues
// with the remaining budgets.
func (e *BudgetEvaluator) Evaluate(ctx context.Context, userID string) ([]BudgetResult, error) {
	budgets, err := e.storage.ListBudgetsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	results := make([]BudgetResult, 0, len(budgets))
	for _, budget := range budgets {
		result := BudgetResult{BudgetID: budget.ID, Category: budget.Category}

		total, err := e.sumCategory(ctx, userID, budget.Category)
		if err != nil {
			slog.ErrorContext(ctx, "Budget evaluation failed, skipping",
				"budget_id", budget.ID,
				"category", budget.Category,
				"error", err)
			result.Err = err
			results = append(results, result)
			continue
		}
		result.Total = total

		if total.Cents > budget.Amount.Cents {
			result.Exceeded = true
			message := fmt.Sprintf("You have exceeded your budget for %s", budget.Category)
			if _, err := e.notifier.Notify(ctx, userID, core.Alert, message); err != nil {
				slog.ErrorContext(ctx, "Failed to record budget alert",
					"budget_id", budget.ID, "error", err)
				result.Err = err
			}
		}

		results = append(results, result)
	}

	return results, nil
}

// sumCategory decodes and adds every transaction amount in the category.
// A single undecodable record fails the whole sum: a partial total would be
// silently wrong.
func (e *BudgetEvaluator) sumCategory(ctx context.Context, userID, category string) (core.Money, error) {
	transactions, err := e.storage.ListTransactionsByUserAndCategory(ctx, userID, category)
	if err != nil {
		return core.Money{}, fmt.Errorf("list category transactions: %w", err)
	}

	var total core.Money
	for _, tx := range transactions {
		amount, err := e.codec.Decode(tx.EncodedAmount)
		if err != nil {
			return core.Money{}, fmt.Errorf("decode amount of %s: %w", tx.ID, err)
		}
		total = total.Add(amount)
	}
	return total, nil
}
