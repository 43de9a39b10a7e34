package domain

// Category is one of the fixed harm categories scored by the content
// safety service.
type Category string

const (
	CategoryHate     Category = "Hate"
	CategorySelfHarm Category = "SelfHarm"
	CategorySexual   Category = "Sexual"
	CategoryViolence Category = "Violence"
)

// Categories lists every scored category in display order.
var Categories = []Category{CategoryHate, CategorySelfHarm, CategorySexual, CategoryViolence}

// Label returns the display name for the severity report. It differs
// from the wire name only for self-harm, shown as "Self_harm".
func (c Category) Label() string {
	if c == CategorySelfHarm {
		return "Self_harm"
	}
	return string(c)
}

// SafetyVerdict holds the per-category severity scores for one message
// and the derived pass/fail decision. It is computed per message and
// never persisted.
type SafetyVerdict struct {
	Severities map[Category]int
	Safe       bool
}

// NewSafetyVerdict derives a verdict from the scored severities. A
// category the classifier did not score counts as severity zero. The
// message is safe iff every category scores strictly below threshold.
func NewSafetyVerdict(severities map[Category]int, threshold int) SafetyVerdict {
	v := SafetyVerdict{Severities: make(map[Category]int, len(Categories)), Safe: true}
	for _, c := range Categories {
		sev := severities[c]
		v.Severities[c] = sev
		if sev >= threshold {
			v.Safe = false
		}
	}
	return v
}

// Severity returns the scored severity for a category, zero when absent.
func (v SafetyVerdict) Severity(c Category) int {
	return v.Severities[c]
}
