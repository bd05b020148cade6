package analysis

import "time"

// AnalysisID identifier type
type AnalysisID string

// ProjectInfo is the general project sheet extracted from the tender
// dossier. String fields left empty by the model are backfilled with the
// NotSpecified sentinel so the schema stays stable for consumers.
type ProjectInfo struct {
	Name               string   `json:"name"`
	Client             string   `json:"client"`
	ClientType         string   `json:"client_type"`
	Location           string   `json:"location"`
	PostalCode         string   `json:"postal_code,omitempty"`
	ProjectType        string   `json:"project_type"`
	Usage              string   `json:"usage"`
	TotalSurfaceM2     *float64 `json:"total_surface_m2"`
	BudgetHT           *float64 `json:"budget_ht"`
	PricePerSqm        *float64 `json:"price_per_sqm"`
	DurationMonths     *float64 `json:"duration_months"`
	StartDate          string   `json:"start_date,omitempty"`
	DeadlineSubmission string   `json:"deadline_submission,omitempty"`
	MOE                string   `json:"moe"`
	StructureType      string   `json:"structure_type"`
	MarketType         string   `json:"market_type"`
}

// GeneralInfo carries everything the general-information call extracts.
// Sections the orchestrator never computes on stay schemaless.
type GeneralInfo struct {
	ProjectInfo          ProjectInfo    `json:"project_info"`
	TechnicalConstraints map[string]any `json:"technical_constraints"`
	Requirements         []any          `json:"requirements"`
	EvaluationCriteria   map[string]any `json:"evaluation_criteria"`
	SuspendedOpinions    []any          `json:"suspended_opinions"`
	Risks                []any          `json:"risks"`
	KeyDates             map[string]any `json:"key_dates"`
	DocumentsProvided    []any          `json:"documents_provided"`
	StrategicAnalysis    map[string]any `json:"strategic_analysis"`
}

// Lot is one sub-unit section of the assembled analysis.
type Lot struct {
	Number          string   `json:"number"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	EstimatedAmount *float64 `json:"estimated_amount"`
	Materials       []string `json:"materials"`
	Specifications  string   `json:"specifications"`
	// Placeholder marks a section whose call failed; position is kept.
	Placeholder bool `json:"placeholder,omitempty"`
}

// LotBudget is one line of the derived budget breakdown.
type LotBudget struct {
	LotNumber  string   `json:"lot_number"`
	LotName    string   `json:"lot_name"`
	AmountHT   float64  `json:"amount_ht"`
	Percentage *float64 `json:"percentage"`
}

// BudgetBreakdown aggregates per-lot amounts against the project total.
type BudgetBreakdown struct {
	TotalHT     *float64    `json:"total_ht"`
	TotalTTC    *float64    `json:"total_ttc"`
	Currency    string      `json:"currency"`
	PricePerSqm *float64    `json:"price_per_sqm"`
	ByLot       []LotBudget `json:"by_lot"`
}

// Document is the assembled analysis: the general section plus the ordered
// lot sections plus derived aggregates.
type Document struct {
	GeneralInfo
	Lots            []Lot           `json:"lots"`
	BudgetBreakdown BudgetBreakdown `json:"budget_breakdown"`
}

// Record is the persisted analysis row, keyed by the job that produced it.
type Record struct {
	ID          AnalysisID `json:"id"`
	JobID       string     `json:"job_id"`
	OwnerID     string     `json:"owner_id"`
	Filename    string     `json:"filename"`
	FileSize    int64      `json:"file_size"`
	Result      string     `json:"result"` // assembled Document as JSON
	ProjectName string     `json:"project_name,omitempty"`
	ClientName  string     `json:"client_name,omitempty"`
	BudgetHT    *float64   `json:"budget_ht,omitempty"`
	ReportURL   string     `json:"report_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
