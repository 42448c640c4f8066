package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"

	Alert    NotificationKind = "alert"
	Reminder NotificationKind = "reminder"

	None        Recurrence = "none"
	EveryMinute Recurrence = "1min"
	Daily       Recurrence = "daily"
	Weekly      Recurrence = "weekly"
	Monthly     Recurrence = "monthly"

	// SavingsCategory is the fixed category goal progress is computed from.
	SavingsCategory = "Savings"
)

type (
	TransactionKind  string
	NotificationKind string
	Recurrence       string

	// Transaction is a single ledger record. The amount is stored encoded and
	// must be decoded before any arithmetic or export. Records are immutable
	// once appended.
	Transaction struct {
		ID               string
		UserID           string
		EncodedAmount    string
		Category         string
		Tags             []string
		Kind             TransactionKind
		OriginalCurrency string
		ExchangeRate     float64
		Recurrence       Recurrence
		Date             time.Time
		StartDate        time.Time // optional active window
		EndDate          time.Time
	}

	// RecurringTemplate materializes future ledger entries. NextDue is the
	// durable schedule entry: the scheduler only acts on templates whose
	// NextDue has passed and which are not expired.
	RecurringTemplate struct {
		ID               string
		UserID           string
		Amount           Money // source amount, before exchange-rate conversion
		Category         string
		Tags             []string
		Kind             TransactionKind
		OriginalCurrency string
		ExchangeRate     float64
		Recurrence       Recurrence
		StartDate        time.Time
		EndDate          time.Time // zero means open-ended
		NextDue          time.Time
		Expired          bool
	}

	Budget struct {
		ID        string
		UserID    string
		Category  string
		Amount    Money
		Timeframe string // declared but not used to window sums
		CreatedAt time.Time
	}

	Goal struct {
		ID            string
		UserID        string
		Name          string
		TargetAmount  Money
		CurrentAmount Money
		DueDate       time.Time
		Achieved      bool // monotonic, never reset
	}

	Notification struct {
		ID        string
		UserID    string
		Message   string
		Kind      NotificationKind
		CreatedAt time.Time
		Read      bool
	}
)

var (
	ErrInvalidTag        = errors.New("invalid tag")
	ErrInvalidKind       = errors.New("invalid transaction kind")
	ErrInvalidRecurrence = errors.New("invalid recurrence type")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidGoal       = errors.New("invalid goal")
	ErrEmptyCategory     = errors.New("empty category")
	ErrRateUnavailable   = errors.New("exchange rate unavailable")
)

// tagPattern allows letters, numbers and underscores only.
var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateTags rejects the whole set if any tag contains a character outside
// [A-Za-z0-9_].
func ValidateTags(tags []string) error {
	for _, tag := range tags {
		if !tagPattern.MatchString(tag) {
			return ErrInvalidTag
		}
	}
	return nil
}

func (k TransactionKind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (r Recurrence) Validate() error {
	switch r {
	case None, EveryMinute, Daily, Weekly, Monthly:
		return nil
	default:
		return ErrInvalidRecurrence
	}
}

// Recurring reports whether the recurrence produces future occurrences.
func (r Recurrence) Recurring() bool {
	return r != "" && r != None
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return errors.New("empty user id")
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if err := ValidateTags(t.Tags); err != nil {
		return err
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if t.ExchangeRate <= 0 {
		return errors.New("exchange rate must be positive")
	}
	if t.Recurrence != "" {
		if err := t.Recurrence.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (rt RecurringTemplate) Validate() error {
	if strings.TrimSpace(rt.UserID) == "" {
		return errors.New("empty user id")
	}
	if strings.TrimSpace(rt.Category) == "" {
		return ErrEmptyCategory
	}
	if err := ValidateTags(rt.Tags); err != nil {
		return err
	}
	if err := rt.Kind.Validate(); err != nil {
		return err
	}
	if err := rt.Amount.Validate(); err != nil {
		return err
	}
	if rt.ExchangeRate <= 0 {
		return errors.New("exchange rate must be positive")
	}
	if !rt.Recurrence.Recurring() {
		return ErrInvalidRecurrence
	}
	if err := rt.Recurrence.Validate(); err != nil {
		return err
	}
	if rt.StartDate.IsZero() {
		return errors.New("start date cannot be zero")
	}
	if !rt.EndDate.IsZero() && rt.EndDate.Before(rt.StartDate) {
		return errors.New("end date must be after start date")
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	return b.Amount.Validate()
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return errors.New("empty goal name")
	}
	if g.TargetAmount.Cents <= 0 {
		return ErrInvalidGoal
	}
	return nil
}

// Progress returns completion of the goal as a percentage of the target.
// A zero target is undefined and reported as ErrInvalidGoal rather than
// letting the division produce Inf.
func (g Goal) Progress(totalSaved Money) (float64, error) {
	if g.TargetAmount.Cents == 0 {
		return 0, ErrInvalidGoal
	}
	return float64(totalSaved.Cents) / float64(g.TargetAmount.Cents) * 100, nil
}
