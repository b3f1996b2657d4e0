package log

// Field names for structured logging.
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldDriver      = "driver"
	FieldParty       = "party_id"
	FieldAccount     = "account_id"
	FieldTransaction = "transaction_id"
	FieldTemplate    = "template_id"
	FieldBudget      = "budget_id"
	FieldCategory    = "category_id"
	FieldPeriod      = "period"
	FieldAmount      = "amount"
	FieldKind        = "kind"
	FieldCount       = "count"
	FieldFile        = "file"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldClientIP    = "client_ip"
	FieldEvent       = "event"
	FieldAddr        = "addr"
)

// Component names.
const (
	ComponentApp        = "app"
	ComponentHTTP       = "api"
	ComponentJournal    = "journal"
	ComponentRollover   = "rollover"
	ComponentRecurring  = "recurring"
	ComponentAllocation = "allocation"
	ComponentAccounts   = "accounts"
	ComponentStore      = "store"
	ComponentEvents     = "events"
	ComponentImporter   = "importer"
)
