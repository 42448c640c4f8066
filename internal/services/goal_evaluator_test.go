package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"finledger/internal/core"
)

func TestEvaluateGoalAchievedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	evaluator := NewGoalEvaluator(env.repo, env.codec, env.notifier)

	_, err := env.repo.CreateGoal(ctx, core.Goal{
		UserID:       "u1",
		Name:         "Vacation",
		TargetAmount: core.Money{Cents: 50000},
	})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}

	// Savings exactly at the target counts as achieved.
	env.appendEncoded(t, "u1", core.SavingsCategory, core.Income, 50000)

	results, err := evaluator.Evaluate(ctx, "u1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Progress != 100 {
		t.Errorf("progress = %v, want 100", results[0].Progress)
	}
	if !results[0].NewlyAchieved {
		t.Error("goal should be newly achieved")
	}
	env.requireNotification(t, "u1", "Congratulations! You've reached your goal of Vacation")

	// A second pass keeps the flag but does not congratulate again.
	results, err = evaluator.Evaluate(ctx, "u1")
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if results[0].NewlyAchieved {
		t.Error("already achieved goal must not report newly achieved")
	}
	if got := env.notifications(t, "u1"); len(got) != 1 {
		t.Fatalf("got %d notifications, want exactly 1", len(got))
	}
}

func TestEvaluateGoalZeroTargetRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	evaluator := NewGoalEvaluator(env.repo, env.codec, env.notifier)

	if _, err := env.repo.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "Broken"}); err != nil {
		t.Fatalf("create goal: %v", err)
	}
	_, err := env.repo.CreateGoal(ctx, core.Goal{
		UserID:       "u1",
		Name:         "Valid",
		TargetAmount: core.Money{Cents: 1000},
	})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}

	env.appendEncoded(t, "u1", core.SavingsCategory, core.Income, 500)

	results, err := evaluator.Evaluate(ctx, "u1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	var broken, valid GoalResult
	for _, r := range results {
		if r.Err != nil {
			broken = r
		} else {
			valid = r
		}
	}
	if !errors.Is(broken.Err, core.ErrInvalidGoal) {
		t.Errorf("zero target error = %v, want ErrInvalidGoal", broken.Err)
	}
	if valid.Progress != 50 {
		t.Errorf("valid goal progress = %v, want 50", valid.Progress)
	}
}

func TestSendDueSoonReminders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	evaluator := NewGoalEvaluator(env.repo, env.codec, env.notifier)
	evaluator.now = func() time.Time { return now }

	goals := []core.Goal{
		{UserID: "u1", Name: "Soon", TargetAmount: core.Money{Cents: 100}, DueDate: now.Add(6 * 24 * time.Hour)},
		{UserID: "u1", Name: "Edge", TargetAmount: core.Money{Cents: 100}, DueDate: now.Add(DueSoonWindow)},
		{UserID: "u1", Name: "Far", TargetAmount: core.Money{Cents: 100}, DueDate: now.Add(8 * 24 * time.Hour)},
		{UserID: "u1", Name: "Open", TargetAmount: core.Money{Cents: 100}},
	}
	for _, goal := range goals {
		if _, err := env.repo.CreateGoal(ctx, goal); err != nil {
			t.Fatalf("create goal: %v", err)
		}
	}

	sent, err := evaluator.SendDueSoonReminders(ctx, "u1")
	if err != nil {
		t.Fatalf("send reminders: %v", err)
	}
	if sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	env.requireNotification(t, "u1", "Reminder: Your goal 'Soon' is due soon!")
	env.requireNotification(t, "u1", "Reminder: Your goal 'Edge' is due soon!")

	// No dedup: a second sweep reminds again.
	sent, err = evaluator.SendDueSoonReminders(ctx, "u1")
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if sent != 2 {
		t.Fatalf("second sweep sent = %d, want 2", sent)
	}
}
