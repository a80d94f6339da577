package pending

import (
	"fmt"

	"github.com/jmehdipour/marketplace-admin/internal/model"
)

// ApplicationRule selects how seller applications are judged pending.
//
// RuleLegacy only looks at rejection_reason, so an approved application with
// no reason still reads as pending. RuleStrict also requires approved_at to be
// absent, matching the product rule. Which one is right is an owner decision.
type ApplicationRule string

const (
	RuleLegacy ApplicationRule = "legacy"
	RuleStrict ApplicationRule = "strict"
)

func ParseApplicationRule(s string) (ApplicationRule, error) {
	switch ApplicationRule(s) {
	case RuleLegacy, RuleStrict:
		return ApplicationRule(s), nil
	default:
		return "", fmt.Errorf("unknown application rule %q", s)
	}
}

// Filter describes the pending predicate in storage terms so the count query
// and the in-memory evaluator never drift apart.
type Filter struct {
	ApprovedAtNull    bool // require approved_at IS NULL
	ReasonNullOrEmpty bool // require rejection_reason IS NULL OR ''
}

// Evaluator is the pure isPending(entityType, row) function.
type Evaluator struct {
	ApplicationRule ApplicationRule
}

func NewEvaluator(rule ApplicationRule) Evaluator {
	if rule == "" {
		rule = RuleLegacy
	}
	return Evaluator{ApplicationRule: rule}
}

func (e Evaluator) Filter(t model.EntityType) Filter {
	if t == model.EntitySellerApplication && e.ApplicationRule != RuleStrict {
		return Filter{ReasonNullOrEmpty: true}
	}
	return Filter{ApprovedAtNull: true, ReasonNullOrEmpty: true}
}

// IsPending evaluates the predicate on a possibly partial row. known is false
// when a column the predicate needs was not delivered; callers must then read
// the full row instead of guessing.
func (e Evaluator) IsPending(t model.EntityType, row model.PartialRow) (pending, known bool) {
	if !t.Valid() {
		return false, true
	}
	f := e.Filter(t)

	reasonKnown := row.RejectionReason.Present
	if reasonKnown && !row.RejectionReason.Null && row.RejectionReason.Value != "" {
		// a reason rules pending out under every rule
		return false, true
	}
	if !f.ApprovedAtNull {
		return reasonKnown, reasonKnown
	}
	if row.ApprovedAt.Present && !row.ApprovedAt.Null {
		return false, true
	}
	if !reasonKnown || !row.ApprovedAt.Present {
		return false, false
	}
	return true, true
}
