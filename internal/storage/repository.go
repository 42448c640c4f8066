package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"finledger/internal/core"
)

// SQLiteRepository is the persistence layer for all ledger entities. The
// transactions table is append-only: no update or delete statement exists for
// it anywhere in this package.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AppendTransaction persists a ledger record and returns its id. The amount
// must already be encoded by the caller.
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	id := tx.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, user_id, amount, category, tags, kind, original_currency,
			 exchange_rate, recurrence, occurred_at, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, tx.UserID, tx.EncodedAmount, tx.Category, joinTags(tx.Tags),
		string(tx.Kind), tx.OriginalCurrency, tx.ExchangeRate,
		recurrenceOrNone(tx.Recurrence), tx.Date.UTC(),
		nullTime(tx.StartDate), nullTime(tx.EndDate))
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction appended",
		"id", id,
		"user_id", tx.UserID,
		"category", tx.Category,
		"kind", tx.Kind)

	return id, nil
}

// ListTransactionsByUser returns all of a user's ledger records, oldest first.
// Amounts stay encoded.
func (r *SQLiteRepository) ListTransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, category, tags, kind, original_currency,
		       exchange_rate, recurrence, occurred_at, start_date, end_date
		FROM transactions
		WHERE user_id = ?
		ORDER BY occurred_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListTransactionsByUserAndCategory returns a user's records in one category,
// oldest first.
func (r *SQLiteRepository) ListTransactionsByUserAndCategory(ctx context.Context, userID, category string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, category, tags, kind, original_currency,
		       exchange_rate, recurrence, occurred_at, start_date, end_date
		FROM transactions
		WHERE user_id = ? AND category = ?
		ORDER BY occurred_at, id`, userID, category)
	if err != nil {
		return nil, fmt.Errorf("list transactions by category: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		var (
			tx         core.Transaction
			tags       string
			kind       string
			recurrence string
			start, end sql.NullTime
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.EncodedAmount, &tx.Category,
			&tags, &kind, &tx.OriginalCurrency, &tx.ExchangeRate, &recurrence,
			&tx.Date, &start, &end); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Tags = splitTags(tags)
		tx.Kind = core.TransactionKind(kind)
		tx.Recurrence = core.Recurrence(recurrence)
		if start.Valid {
			tx.StartDate = start.Time
		}
		if end.Valid {
			tx.EndDate = end.Time
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (string, error) {
	id := b.ID
	if id == "" {
		id = uuid.NewString()
	}
	timeframe := b.Timeframe
	if timeframe == "" {
		timeframe = "monthly"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, user_id, category, amount_cents, timeframe)
		VALUES (?, ?, ?, ?, ?)`,
		id, b.UserID, b.Category, b.Amount.Cents, timeframe)
	if err != nil {
		return "", fmt.Errorf("insert budget: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ListBudgetsByUser(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category, amount_cents, timeframe, created_at
		FROM budgets
		WHERE user_id = ?
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.Category, &b.Amount.Cents,
			&b.Timeframe, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (string, error) {
	id := g.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (id, user_id, name, target_cents, current_cents, due_date, achieved)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, g.UserID, g.Name, g.TargetAmount.Cents, g.CurrentAmount.Cents,
		nullTime(g.DueDate), boolToInt(g.Achieved))
	if err != nil {
		return "", fmt.Errorf("insert goal: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ListGoalsByUser(ctx context.Context, userID string) ([]core.Goal, error) {
	return r.listGoals(ctx, `
		SELECT id, user_id, name, target_cents, current_cents, due_date, achieved
		FROM goals
		WHERE user_id = ?
		ORDER BY created_at, id`, userID)
}

func (r *SQLiteRepository) ListUnachievedGoalsByUser(ctx context.Context, userID string) ([]core.Goal, error) {
	return r.listGoals(ctx, `
		SELECT id, user_id, name, target_cents, current_cents, due_date, achieved
		FROM goals
		WHERE user_id = ? AND achieved = 0
		ORDER BY created_at, id`, userID)
}

func (r *SQLiteRepository) listGoals(ctx context.Context, query string, args ...any) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			g        core.Goal
			due      sql.NullTime
			achieved int
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount.Cents,
			&g.CurrentAmount.Cents, &due, &achieved); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if due.Valid {
			g.DueDate = due.Time
		}
		g.Achieved = achieved != 0
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpdateGoalProgress overwrites the derived current amount and raises the
// achieved flag. The flag is monotonic: once set it can never be lowered.
func (r *SQLiteRepository) UpdateGoalProgress(ctx context.Context, goalID string, current core.Money, achieved bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE goals
		SET current_cents = ?, achieved = MAX(achieved, ?)
		WHERE id = ?`,
		current.Cents, boolToInt(achieved), goalID)
	if err != nil {
		return fmt.Errorf("update goal progress: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) AppendNotification(ctx context.Context, n core.Notification) (string, error) {
	id := n.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, message, kind, created_at, read)
		VALUES (?, ?, ?, ?, ?, 0)`,
		id, n.UserID, n.Message, string(n.Kind), createdAt.UTC())
	if err != nil {
		return "", fmt.Errorf("insert notification: %w", err)
	}

	slog.InfoContext(ctx, "Notification appended",
		"id", id,
		"user_id", n.UserID,
		"kind", n.Kind)

	return id, nil
}

func (r *SQLiteRepository) ListNotificationsByUser(ctx context.Context, userID string) ([]core.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, message, kind, created_at, read
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var (
			n    core.Notification
			kind string
			read int
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &kind, &n.CreatedAt, &read); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = core.NotificationKind(kind)
		n.Read = read != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flips the read flag. One-way: there is no unread path.
func (r *SQLiteRepository) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateTemplate(ctx context.Context, t core.RecurringTemplate) (string, error) {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_templates
			(id, user_id, amount_cents, category, tags, kind, original_currency,
			 exchange_rate, recurrence, start_date, end_date, next_due, expired)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, t.UserID, t.Amount.Cents, t.Category, joinTags(t.Tags),
		string(t.Kind), t.OriginalCurrency, t.ExchangeRate, string(t.Recurrence),
		t.StartDate.UTC(), nullTime(t.EndDate), nullTime(t.NextDue),
		boolToInt(t.Expired))
	if err != nil {
		return "", fmt.Errorf("insert recurring template: %w", err)
	}

	slog.InfoContext(ctx, "Recurring template registered",
		"id", id,
		"user_id", t.UserID,
		"recurrence", t.Recurrence,
		"next_due", t.NextDue)

	return id, nil
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id string) (*core.RecurringTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount_cents, category, tags, kind, original_currency,
		       exchange_rate, recurrence, start_date, end_date, next_due, expired
		FROM recurring_templates
		WHERE id = ?`, id)

	t, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("get recurring template: %w", err)
	}
	return t, nil
}

// ListDueTemplates returns every non-expired template whose durable next_due
// has passed. This is the single authoritative due-time source for the
// scheduler.
func (r *SQLiteRepository) ListDueTemplates(ctx context.Context, now time.Time) ([]core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount_cents, category, tags, kind, original_currency,
		       exchange_rate, recurrence, start_date, end_date, next_due, expired
		FROM recurring_templates
		WHERE expired = 0 AND next_due IS NOT NULL AND next_due <= ?
		ORDER BY next_due, id`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list due templates: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateTemplateNextDue(ctx context.Context, id string, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE recurring_templates SET next_due = ? WHERE id = ?`,
		next.UTC(), id)
	if err != nil {
		return fmt.Errorf("update template next due: %w", err)
	}
	return nil
}

// MarkTemplateExpired makes the template terminal; the scheduler never picks
// it up again.
func (r *SQLiteRepository) MarkTemplateExpired(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE recurring_templates SET expired = 1, next_due = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark template expired: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*core.RecurringTemplate, error) {
	var (
		t          core.RecurringTemplate
		tags       string
		kind       string
		recurrence string
		end, next  sql.NullTime
		expired    int
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Amount.Cents, &t.Category, &tags,
		&kind, &t.OriginalCurrency, &t.ExchangeRate, &recurrence,
		&t.StartDate, &end, &next, &expired); err != nil {
		return nil, fmt.Errorf("scan recurring template: %w", err)
	}
	t.Tags = splitTags(tags)
	t.Kind = core.TransactionKind(kind)
	t.Recurrence = core.Recurrence(recurrence)
	if end.Valid {
		t.EndDate = end.Time
	}
	if next.Valid {
		t.NextDue = next.Time
	}
	t.Expired = expired != 0
	return &t, nil
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func recurrenceOrNone(r core.Recurrence) string {
	if r == "" {
		return string(core.None)
	}
	return string(r)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
