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

// Scheduler materializes recurring templates into ledger transactions. The
// single source of dueness is the stored next-due timestamp, so a sweep after
// a restart picks up exactly the templates that came due in the meantime.
type Scheduler struct {
	storage  *storage.SQLiteRepository
	codec    *cryptox.Codec
	notifier *Notifier
}

func NewScheduler(storage *storage.SQLiteRepository, codec *cryptox.Codec, notifier *Notifier) *Scheduler {
	return &Scheduler{storage: storage, codec: codec, notifier: notifier}
}

// RunSweep materializes every template due at now and returns how many
// produced a transaction. One template's failure is logged and does not stop
// the rest of the sweep.
func (s *Scheduler) RunSweep(ctx context.Context, now time.Time) (int, error) {
	templates, err := s.storage.ListDueTemplates(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due templates: %w", err)
	}

	created := 0
	for _, template := range templates {
		ok, err := s.Materialize(ctx, template, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to materialize recurring template",
				"template_id", template.ID,
				"user_id", template.UserID,
				"error", err)
			continue
		}
		if ok {
			created++
		}
	}

	if created > 0 {
		slog.InfoContext(ctx, "Recurring sweep completed",
			"due", len(templates), "created", created)
	}
	return created, nil
}

// Materialize produces one transaction from the template and advances its
// next-due. It reports whether a transaction was created: a template whose
// window has not opened yet is skipped, one whose window has closed is
// expired and never rearmed.
func (s *Scheduler) Materialize(ctx context.Context, template core.RecurringTemplate, now time.Time) (bool, error) {
	if now.Before(template.StartDate) {
		return false, nil
	}
	if !template.EndDate.IsZero() && now.After(template.EndDate) {
		if err := s.storage.MarkTemplateExpired(ctx, template.ID); err != nil {
			return false, fmt.Errorf("expire template: %w", err)
		}
		slog.InfoContext(ctx, "Recurring template expired",
			"template_id", template.ID, "user_id", template.UserID)
		return false, nil
	}

	amount := template.Amount.Mul(template.ExchangeRate)
	encoded, err := s.codec.Encode(amount)
	if err != nil {
		return false, fmt.Errorf("encode amount: %w", err)
	}

	tx := core.Transaction{
		UserID:           template.UserID,
		EncodedAmount:    encoded,
		Category:         template.Category,
		Tags:             template.Tags,
		Kind:             template.Kind,
		OriginalCurrency: template.OriginalCurrency,
		ExchangeRate:     template.ExchangeRate,
		Recurrence:       template.Recurrence,
		Date:             now,
		StartDate:        template.StartDate,
		EndDate:          template.EndDate,
	}
	created := true
	if _, err := s.storage.AppendTransaction(ctx, tx); err != nil {
		// The template still rearms so one bad write does not stall the
		// schedule; the occurrence itself is lost and logged.
		slog.ErrorContext(ctx, "Failed to append materialized transaction",
			"template_id", template.ID,
			"user_id", template.UserID,
			"error", err)
		created = false
	} else {
		message := fmt.Sprintf("Recurring transaction for %s created. Amount: %s",
			template.Category, amount)
		if _, err := s.notifier.Notify(ctx, template.UserID, core.Reminder, message); err != nil {
			slog.ErrorContext(ctx, "Failed to record recurring notification",
				"template_id", template.ID,
				"user_id", template.UserID,
				"error", err)
		}
	}

	next, err := core.NextOccurrence(now, template.Recurrence)
	if err != nil {
		return created, fmt.Errorf("compute next occurrence: %w", err)
	}
	if !next.After(now) {
		return created, fmt.Errorf("next occurrence %s not after %s", next, now)
	}
	if err := s.storage.UpdateTemplateNextDue(ctx, template.ID, next); err != nil {
		return created, fmt.Errorf("rearm template: %w", err)
	}
	return created, nil
}
