package quota

import (
	"sync"

	"github.com/jbellec/marketwatch/internal/alert"
)

// Plans is an in-memory alert.PlanResolver. Subscription changes arrive
// asynchronously from the billing surface via SetPlan and are picked up by
// the ledger on its next evaluation.
type Plans struct {
	mu    sync.RWMutex
	plans map[string]alert.PlanCode
}

// NewPlans constructs an empty resolver; unknown users are on the free tier.
func NewPlans() *Plans {
	return &Plans{plans: make(map[string]alert.PlanCode)}
}

// PlanFor returns the user's current tier.
func (p *Plans) PlanFor(userID string) alert.PlanCode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if code, ok := p.plans[userID]; ok {
		return code
	}
	return alert.PlanFree
}

// SetPlan records a tier change for a user.
func (p *Plans) SetPlan(userID string, code alert.PlanCode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans[userID] = code
}
