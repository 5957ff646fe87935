package dashboard

import (
	"context"
	"sync"
)

// Manager holds one mounted view-model per authenticated account.
type Manager struct {
	gw         Gateway
	selections SelectionStore
	webhookURL string

	// onChange, when set, receives every snapshot together with the account
	// it belongs to (wired to the SSE broadcaster by the server).
	onChange func(userID string, snap Snapshot)

	mu    sync.Mutex
	views map[string]*ViewModel
}

// NewManager creates an empty view-model manager.
func NewManager(gw Gateway, selections SelectionStore, webhookURL string) *Manager {
	return &Manager{
		gw:         gw,
		selections: selections,
		webhookURL: webhookURL,
		views:      make(map[string]*ViewModel),
	}
}

// OnChange registers the snapshot listener for all accounts. Must be set
// before the first Get.
func (m *Manager) OnChange(fn func(userID string, snap Snapshot)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Get returns the account's view-model, mounting it on first access.
func (m *Manager) Get(ctx context.Context, userID, userEmail string) *ViewModel {
	m.mu.Lock()
	vm, ok := m.views[userID]
	if !ok {
		vm = NewViewModel(m.gw, m.selections, userID, userEmail, m.webhookURL)
		if fn := m.onChange; fn != nil {
			vm.OnChange(func(snap Snapshot) { fn(userID, snap) })
		}
		m.views[userID] = vm
	}
	m.mu.Unlock()

	if !ok {
		vm.Mount(ctx)
	}
	return vm
}

// Drop discards the account's view-model, e.g. after account deletion.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	delete(m.views, userID)
	m.mu.Unlock()
}

// Count returns the number of mounted view-models.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.views)
}
