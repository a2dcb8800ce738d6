package workflow

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the live workflows of this process by id.
type Registry struct {
	policy    Policy
	validator Validator
	ledger    Ledger
	pub       EventPublisher

	mu        sync.RWMutex
	workflows map[string]*Workflow
}

// NewRegistry creates a registry whose workflows share validator, ledger and pub.
func NewRegistry(policy Policy, validator Validator, ledger Ledger, pub EventPublisher) *Registry {
	return &Registry{
		policy:    policy,
		validator: validator,
		ledger:    ledger,
		pub:       pub,
		workflows: make(map[string]*Workflow),
	}
}

// Create starts a new workflow in the dictation state.
func (r *Registry) Create() *Workflow {
	w := New(uuid.NewString(), r.policy, r.validator, r.ledger, r.pub)
	r.mu.Lock()
	r.workflows[w.ID()] = w
	r.mu.Unlock()
	return w
}

func (r *Registry) Get(id string) (*Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[id]
	return w, ok
}

// Delete forgets a workflow. It reports whether the id was known.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workflows[id]; !ok {
		return false
	}
	delete(r.workflows, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workflows)
}
