package services

import (
	"context"
	"testing"
	"time"

	"finledger/internal/core"
)

func newTestTemplate(userID string) core.RecurringTemplate {
	return core.RecurringTemplate{
		UserID:           userID,
		Amount:           core.Money{Cents: 1500},
		Category:         "Rent",
		Kind:             core.Expense,
		OriginalCurrency: "EUR",
		ExchangeRate:     1,
		Recurrence:       core.Monthly,
		StartDate:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		NextDue:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRunSweepMaterializesDueTemplate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scheduler := NewScheduler(env.repo, env.codec, env.notifier)

	template := newTestTemplate("u1")
	id, err := env.repo.CreateTemplate(ctx, template)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	now := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	created, err := scheduler.RunSweep(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	transactions, err := env.repo.ListTransactionsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(transactions))
	}
	amount, err := env.codec.Decode(transactions[0].EncodedAmount)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if amount.Cents != 1500 {
		t.Errorf("amount = %d cents, want 1500", amount.Cents)
	}

	env.requireNotification(t, "u1", "Recurring transaction for Rent created. Amount: 15.00")

	// The template rearms for the clamped end of February.
	stored, err := env.repo.GetTemplate(ctx, id)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	wantNext := time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC)
	if !stored.NextDue.Equal(wantNext) {
		t.Errorf("next due = %v, want %v", stored.NextDue, wantNext)
	}

	// Re-sweeping at the same instant finds nothing due.
	created, err = scheduler.RunSweep(ctx, now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if created != 0 {
		t.Fatalf("second sweep created = %d, want 0", created)
	}
}

func TestMaterializeBeforeWindowOpens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scheduler := NewScheduler(env.repo, env.codec, env.notifier)

	template := newTestTemplate("u1")
	template.StartDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	ok, err := scheduler.Materialize(ctx, template, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if ok {
		t.Error("a template before its start date must not materialize")
	}

	transactions, err := env.repo.ListTransactionsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(transactions) != 0 {
		t.Fatalf("got %d transactions, want none", len(transactions))
	}
}

func TestMaterializePastEndDateExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scheduler := NewScheduler(env.repo, env.codec, env.notifier)

	template := newTestTemplate("u1")
	template.EndDate = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	id, err := env.repo.CreateTemplate(ctx, template)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	template.ID = id

	ok, err := scheduler.Materialize(ctx, template, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if ok {
		t.Error("a template past its end date must not materialize")
	}

	stored, err := env.repo.GetTemplate(ctx, id)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if !stored.Expired {
		t.Error("template should be marked expired")
	}

	// An expired template never shows up as due again.
	due, err := env.repo.ListDueTemplates(ctx, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("got %d due templates, want none", len(due))
	}
}

func TestMaterializeAppliesExchangeRate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scheduler := NewScheduler(env.repo, env.codec, env.notifier)

	template := newTestTemplate("u1")
	template.ExchangeRate = 1.1
	id, err := env.repo.CreateTemplate(ctx, template)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	template.ID = id

	ok, err := scheduler.Materialize(ctx, template, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if !ok {
		t.Fatal("expected a materialized transaction")
	}

	transactions, err := env.repo.ListTransactionsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	amount, err := env.codec.Decode(transactions[0].EncodedAmount)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if amount.Cents != 1650 {
		t.Errorf("amount = %d cents, want 1650", amount.Cents)
	}
}
