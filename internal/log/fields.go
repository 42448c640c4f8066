package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldUserID     = "user_id"
	FieldCategory   = "category"
	FieldAmount     = "amount"
	FieldKind       = "kind"
	FieldTemplateID = "template_id"
	FieldGoalID     = "goal_id"
	FieldBudgetID   = "budget_id"
	FieldNextDue    = "next_due"
	FieldError      = "error"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentScheduler = "scheduler"
	ComponentLedger    = "ledger"
	ComponentBudget    = "budget"
	ComponentGoal      = "goal"
	ComponentRates     = "rates"
	ComponentWorker    = "worker"
)
