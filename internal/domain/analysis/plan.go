package analysis

// Strategy enum
type Strategy string

const (
	StrategySingle Strategy = "single"
	StrategyMulti  Strategy = "multi"
)

// SubUnit describes one lot call: a unique key within the plan, the lot's
// display name and a bounded text excerpt relevant to it.
type SubUnit struct {
	Key     string
	Name    string
	Excerpt string
}

// Plan is the chunk planner's decision for one job. Ephemeral, never
// persisted.
type Plan struct {
	InputSize int
	Strategy  Strategy
	Units     []SubUnit
}

// GeneralResult is the outcome of the general-information call.
type GeneralResult struct {
	OK   bool
	Info GeneralInfo
}

// UnitResult is the outcome of one sub-unit call. Failed calls keep their
// position as placeholders instead of aborting the job.
type UnitResult struct {
	Key         string
	Name        string
	OK          bool
	Lot         Lot
	Err         string
	RateLimited bool
}
