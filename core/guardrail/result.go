package guardrail

type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

type Category string

const (
	CategoryNone     Category = "NONE"
	CategoryOffBrand Category = "OFF_BRAND"
)

// DefaultTripRationale is used when a trip signal carries no rationale.
const DefaultTripRationale = "Guardrail triggered"

type Result struct {
	Status    Status   `json:"status"`
	Category  Category `json:"category,omitempty"`
	Rationale string   `json:"rationale,omitempty"`
}

func InProgress() Result { return Result{Status: StatusInProgress} }

func Passed() Result { return Result{Status: StatusDone, Category: CategoryNone} }

func Tripped(rationale string) Result {
	if rationale == "" {
		rationale = DefaultTripRationale
	}
	return Result{Status: StatusDone, Category: CategoryOffBrand, Rationale: rationale}
}

// IsTripped reports whether the result is a terminal trip.
func (r Result) IsTripped() bool {
	return r.Status == StatusDone && r.Category != "" && r.Category != CategoryNone
}

func (r Result) IsPending() bool { return r.Status == StatusInProgress }
