package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finledger/internal/core"
	"finledger/internal/cryptox"
	"finledger/internal/storage"
)

// DueSoonWindow is how far ahead of a goal's due date reminders start firing.
const DueSoonWindow = 7 * 24 * time.Hour

// GoalEvaluator tracks savings progress against the user's goals and raises
// reminders for completion and approaching due dates.
type GoalEvaluator struct {
	storage  *storage.SQLiteRepository
	codec    *cryptox.Codec
	notifier *Notifier
	window   time.Duration
	now      func() time.Time
}

func NewGoalEvaluator(storage *storage.SQLiteRepository, codec *cryptox.Codec, notifier *Notifier) *GoalEvaluator {
	return &GoalEvaluator{
		storage:  storage,
		codec:    codec,
		notifier: notifier,
		window:   DueSoonWindow,
		now:      time.Now,
	}
}

// SetDueSoonWindow overrides how far ahead due-date reminders fire.
// Non-positive values are ignored.
func (e *GoalEvaluator) SetDueSoonWindow(window time.Duration) {
	if window > 0 {
		e.window = window
	}
}

// GoalResult is the outcome of evaluating a single goal.
type GoalResult struct {
	GoalID        string
	Progress      float64
	NewlyAchieved bool
	Err           error
}

// Evaluate recomputes every goal's progress from the user's total "Savings"
// spend. The current amount is overwritten on each pass; reaching 100% flips
// the achieved flag (once, it never resets) and emits one congratulatory
// reminder. A zero target is rejected per goal with ErrInvalidGoal instead of
// producing an infinite progress value.
//
// A decode failure aborts the pass: the savings total feeds every goal, so no
// per-goal recovery is possible.
func (e *GoalEvaluator) Evaluate(ctx context.Context, userID string) ([]GoalResult, error) {
	totalSaved, err := e.totalSaved(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sum savings: %w", err)
	}

	goals, err := e.storage.ListGoalsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	results := make([]GoalResult, 0, len(goals))
	for _, goal := range goals {
		result := GoalResult{GoalID: goal.ID}

		progress, err := goal.Progress(totalSaved)
		if err != nil {
			slog.ErrorContext(ctx, "Goal evaluation failed, skipping",
				"goal_id", goal.ID,
				"name", goal.Name,
				"error", err)
			result.Err = err
			results = append(results, result)
			continue
		}
		result.Progress = progress

		achieved := progress >= 100
		result.NewlyAchieved = achieved && !goal.Achieved

		if err := e.storage.UpdateGoalProgress(ctx, goal.ID, totalSaved, achieved); err != nil {
			slog.ErrorContext(ctx, "Failed to persist goal progress",
				"goal_id", goal.ID, "error", err)
			result.Err = err
			results = append(results, result)
			continue
		}

		if result.NewlyAchieved {
			message := fmt.Sprintf("Congratulations! You've reached your goal of %s", goal.Name)
			if _, err := e.notifier.Notify(ctx, userID, core.Reminder, message); err != nil {
				slog.ErrorContext(ctx, "Failed to record goal notification",
					"goal_id", goal.ID, "error", err)
				result.Err = err
			}
		}

		results = append(results, result)
	}

	return results, nil
}

// SendDueSoonReminders emits a reminder for every unachieved goal whose due
// date falls within the due-soon window of now, boundary inclusive. There is
// no deduplication: every invocation fires again for a still-due goal.
func (e *GoalEvaluator) SendDueSoonReminders(ctx context.Context, userID string) (int, error) {
	goals, err := e.storage.ListUnachievedGoalsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list unachieved goals: %w", err)
	}

	now := e.now()
	sent := 0
	for _, goal := range goals {
		if goal.DueDate.IsZero() {
			continue
		}
		if goal.DueDate.Sub(now) > e.window {
			continue
		}

		message := fmt.Sprintf("Reminder: Your goal '%s' is due soon!", goal.Name)
		if _, err := e.notifier.Notify(ctx, userID, core.Reminder, message); err != nil {
			slog.ErrorContext(ctx, "Failed to record due-soon reminder",
				"goal_id", goal.ID, "error", err)
			continue
		}
		sent++
	}

	return sent, nil
}

// totalSaved sums decoded amounts in the fixed savings category.
func (e *GoalEvaluator) totalSaved(ctx context.Context, userID string) (core.Money, error) {
	transactions, err := e.storage.ListTransactionsByUserAndCategory(ctx, userID, core.SavingsCategory)
	if err != nil {
		return core.Money{}, fmt.Errorf("list savings transactions: %w", err)
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
