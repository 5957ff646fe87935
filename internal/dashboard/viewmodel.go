package dashboard

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/DhisHub/wapi-dashboard/internal/gateway"
	"github.com/DhisHub/wapi-dashboard/pkg/models"
)

// Gateway is the subset of the gateway client the view-model drives.
type Gateway interface {
	CreateSession(ctx context.Context, req gateway.CreateSessionRequest) error
	ListSessions(ctx context.Context) ([]models.Session, error)
	GetSession(ctx context.Context, name string) (*models.Session, error)
	QRCode(ctx context.Context, name string) ([]byte, string, error)
	Screenshot(ctx context.Context, name string) (string, error)
	Lifecycle(ctx context.Context, name string, action gateway.Action) error
	DeleteSession(ctx context.Context, name string) error
}

// SelectionStore persists the last-selected session name across reloads.
type SelectionStore interface {
	Save(ctx context.Context, userID, sessionName string) error
	Get(ctx context.Context, userID string) (string, error)
	Clear(ctx context.Context, userID string) error
}

// QRImage is an opaque pairing image. The client tracks no expiry; a stale
// image is only replaced by a manual retry or a fresh SCAN_QR_CODE arrival.
type QRImage struct {
	Data        []byte
	ContentType string
}

// CreateResponse is the user-visible outcome of a create-session request.
type CreateResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// Snapshot is the renderable view-model state pushed to the browser.
type Snapshot struct {
	Selected   string                   `json:"selected"`
	Sessions   Fetch[[]models.Session]  `json:"sessions"`
	Info       Fetch[*models.Session]   `json:"info"`
	QR         Fetch[string]            `json:"qr"`         // data URL
	Screenshot Fetch[string]            `json:"screenshot"` // data URL
	Message    string                   `json:"message,omitempty"`
}

// ViewModel owns the dashboard state for one account. Fetches for a
// selection capture a generation counter at issue time; completions for a
// superseded selection are discarded, so a slow response for session A can
// never clobber the panels after the user has moved on to session B.
type ViewModel struct {
	gw         Gateway
	selections SelectionStore
	userID     string
	userEmail  string
	webhookURL string

	mu         sync.Mutex
	gen        uint64
	selected   string
	sessions   Fetch[[]models.Session]
	info       Fetch[*models.Session]
	qr         Fetch[QRImage]
	screenshot Fetch[string]
	message    string

	// onChange, when set, receives a snapshot after every state change.
	onChange func(Snapshot)
}

// NewViewModel creates a view-model for one account.
func NewViewModel(gw Gateway, selections SelectionStore, userID, userEmail, webhookURL string) *ViewModel {
	return &ViewModel{
		gw:         gw,
		selections: selections,
		userID:     userID,
		userEmail:  userEmail,
		webhookURL: webhookURL,
		sessions:   idle[[]models.Session](),
		info:       idle[*models.Session](),
		qr:         idle[QRImage](),
		screenshot: idle[string](),
	}
}

// OnChange registers the snapshot listener. Must be set before Mount.
func (vm *ViewModel) OnChange(fn func(Snapshot)) {
	vm.mu.Lock()
	vm.onChange = fn
	vm.mu.Unlock()
}

// Mount restores the persisted selection and loads the session list,
// mirroring the page-load sequence of the dashboard.
func (vm *ViewModel) Mount(ctx context.Context) {
	saved, err := vm.selections.Get(ctx, vm.userID)
	if err != nil {
		log.Warn().Err(err).Str("userId", vm.userID).Msg("Failed to load saved selection")
	}
	vm.Refresh(ctx, saved)
}

// Refresh re-fetches the session list and reconciles the selection:
// a stale persisted reference is cleared, and when nothing is selected the
// preferred (or first) owned session is selected automatically.
func (vm *ViewModel) Refresh(ctx context.Context, preferred string) {
	vm.mu.Lock()
	vm.sessions = loading[[]models.Session]()
	g := vm.gen
	vm.mu.Unlock()
	vm.notify()

	all, err := vm.gw.ListSessions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch sessions")
		vm.apply(g, func() {
			vm.sessions = failed[[]models.Session]("Failed to fetch live sessions")
		})
		return
	}

	// The gateway listing is unscoped; filtering by owner id runs on every
	// list fetch and is correctness-critical.
	owned := make([]models.Session, 0, len(all))
	for _, session := range all {
		if session.OwnerID() == vm.userID {
			owned = append(owned, session)
		}
	}

	var next string
	applied := vm.apply(g, func() {
		vm.sessions = ready(owned)
		next = vm.reconcileSelectionLocked(owned, preferred)
	})
	if !applied {
		return
	}

	if next != "" {
		vm.Select(ctx, next)
	}
}

// reconcileSelectionLocked decides what should be selected after a list
// fetch and returns a non-empty name when a (re)selection must run.
// Caller holds vm.mu via apply.
func (vm *ViewModel) reconcileSelectionLocked(owned []models.Session, preferred string) string {
	contains := func(name string) bool {
		for _, s := range owned {
			if s.Name == name {
				return true
			}
		}
		return false
	}

	// A persisted reference to a session deleted externally is stale: clear
	// it and fall through to auto-selection.
	if vm.selected != "" && !contains(vm.selected) {
		log.Debug().Str("session", vm.selected).Msg("Selected session gone, clearing stale reference")
		vm.selected = ""
		vm.info = idle[*models.Session]()
		vm.qr = idle[QRImage]()
		vm.screenshot = idle[string]()
		go func() {
			if err := vm.selections.Clear(context.Background(), vm.userID); err != nil {
				log.Warn().Err(err).Msg("Failed to clear stale selection")
			}
		}()
	}

	if vm.selected != "" || len(owned) == 0 {
		return ""
	}
	if preferred != "" && contains(preferred) {
		return preferred
	}
	return owned[0].Name
}

// Select makes name the current session and fetches its panels: status info
// immediately, the screenshot independently, and the QR image when the
// reported status calls for it. Each panel fails field-level; one failing
// fetch never takes down the rest of the view.
func (vm *ViewModel) Select(ctx context.Context, name string) {
	vm.mu.Lock()
	vm.gen++
	g := vm.gen
	vm.selected = name
	vm.info = loading[*models.Session]()
	vm.qr = idle[QRImage]()
	vm.screenshot = loading[string]()
	vm.mu.Unlock()
	vm.notify()

	if err := vm.selections.Save(ctx, vm.userID, name); err != nil {
		log.Warn().Err(err).Str("session", name).Msg("Failed to persist selection")
	}

	var eg errgroup.Group
	eg.Go(func() error {
		vm.fetchInfo(ctx, g, name)
		return nil
	})
	eg.Go(func() error {
		vm.fetchScreenshot(ctx, g, name)
		return nil
	})
	_ = eg.Wait()
}

// fetchInfo loads the session status and chains the QR fetch when the
// session is waiting to be paired.
func (vm *ViewModel) fetchInfo(ctx context.Context, g uint64, name string) {
	session, err := vm.gw.GetSession(ctx, name)
	if err != nil {
		vm.apply(g, func() {
			vm.info = failed[*models.Session]("Failed to fetch session info")
		})
		return
	}

	needQR := false
	vm.apply(g, func() {
		vm.info = ready(session)
		// Fetch a QR image only on SCAN_QR_CODE with no image currently
		// held; WORKING and the rest render text panels instead.
		needQR = session.Status == models.StatusScanQRCode && vm.qr.Status != FetchReady
	})
	if needQR {
		vm.fetchQR(ctx, g, name)
	}
}

// fetchQR loads the pairing image for the given generation.
func (vm *ViewModel) fetchQR(ctx context.Context, g uint64, name string) {
	ok := vm.apply(g, func() {
		vm.qr = loading[QRImage]()
	})
	if !ok {
		return
	}

	data, contentType, err := vm.gw.QRCode(ctx, name)
	if err != nil {
		vm.apply(g, func() {
			vm.qr = failed[QRImage]("Failed to fetch QR code")
		})
		return
	}
	vm.apply(g, func() {
		vm.qr = ready(QRImage{Data: data, ContentType: contentType})
	})
}

// fetchScreenshot loads the chat screenshot for the given generation.
func (vm *ViewModel) fetchScreenshot(ctx context.Context, g uint64, name string) {
	data, err := vm.gw.Screenshot(ctx, name)
	if err != nil {
		vm.apply(g, func() {
			vm.screenshot = failed[string]("Failed to fetch screenshot")
		})
		return
	}
	vm.apply(g, func() {
		vm.screenshot = ready("data:image/png;base64," + data)
	})
}

// RetryQR is the manual refresh control next to the QR panel. Like the
// automatic path it only fetches while the session is waiting for a scan.
func (vm *ViewModel) RetryQR(ctx context.Context) {
	vm.mu.Lock()
	g := vm.gen
	name := vm.selected
	eligible := vm.info.Status == FetchReady &&
		vm.info.Value != nil &&
		vm.info.Value.Status == models.StatusScanQRCode
	vm.mu.Unlock()

	if name == "" || !eligible {
		return
	}
	vm.fetchQR(ctx, g, name)
}

// Action requests a lifecycle transition for the selected session. Success
// triggers a full view reload rather than an incremental update; failure
// surfaces a message and nothing is retried.
func (vm *ViewModel) Action(ctx context.Context, action gateway.Action) {
	vm.mu.Lock()
	name := vm.selected
	vm.mu.Unlock()

	if name == "" {
		vm.setMessage("Please select a session.")
		return
	}

	if err := vm.gw.Lifecycle(ctx, name, action); err != nil {
		log.Error().Err(err).Str("session", name).Str("action", string(action)).Msg("Session action failed")
		vm.setMessage(fmt.Sprintf("Failed to %s session.", action))
		return
	}

	vm.setMessage(fmt.Sprintf("Session %s %sed successfully.", name, action))
	vm.reload(ctx)
}

// Delete removes the selected session. Failure degrades the info panel only.
func (vm *ViewModel) Delete(ctx context.Context) {
	vm.mu.Lock()
	name := vm.selected
	vm.mu.Unlock()

	if name == "" {
		vm.setInfoError("Please select a session")
		return
	}

	if err := vm.gw.DeleteSession(ctx, name); err != nil {
		vm.setInfoError("Failed to delete session")
		return
	}
	vm.reload(ctx)
}

// Create creates a new session owned by this account and refreshes the list
// so it eventually appears. The response message is rendered inline on the
// create form.
func (vm *ViewModel) Create(ctx context.Context, name, tell, email string) CreateResponse {
	err := vm.gw.CreateSession(ctx, gateway.CreateSessionRequest{
		Name:         name,
		OwnerID:      vm.userID,
		OwnerEmail:   vm.userEmail,
		ContactEmail: email,
		ContactTell:  tell,
		WebhookURL:   vm.webhookURL,
	})
	if err != nil {
		return CreateResponse{Error: true, Message: err.Error()}
	}

	vm.Refresh(ctx, "")
	return CreateResponse{Message: "Success! Your session has been created."}
}

// reload re-runs the full page sequence: list fetch plus re-selection of the
// current session (which re-fetches every panel).
func (vm *ViewModel) reload(ctx context.Context) {
	vm.mu.Lock()
	current := vm.selected
	vm.selected = ""
	vm.mu.Unlock()
	vm.Refresh(ctx, current)
}

// Selected returns the currently selected session name.
func (vm *ViewModel) Selected() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.selected
}

// QR returns the held QR image for raw serving, if one is ready.
func (vm *ViewModel) QR() (QRImage, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.qr.Status != FetchReady {
		return QRImage{}, false
	}
	return vm.qr.Value, true
}

// Snapshot returns the current renderable state.
func (vm *ViewModel) Snapshot() Snapshot {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.snapshotLocked()
}

func (vm *ViewModel) snapshotLocked() Snapshot {
	qr := Fetch[string]{Status: vm.qr.Status, Err: vm.qr.Err}
	if vm.qr.Status == FetchReady {
		qr.Value = "data:" + vm.qr.Value.ContentType + ";base64," +
			base64.StdEncoding.EncodeToString(vm.qr.Value.Data)
	}
	return Snapshot{
		Selected:   vm.selected,
		Sessions:   vm.sessions,
		Info:       vm.info,
		QR:         qr,
		Screenshot: vm.screenshot,
		Message:    vm.message,
	}
}

// apply runs fn under the lock only if the generation still matches, and
// notifies listeners when it does. A false return means the response was for
// a superseded selection and has been discarded.
func (vm *ViewModel) apply(g uint64, fn func()) bool {
	vm.mu.Lock()
	if g != vm.gen {
		current := vm.gen
		vm.mu.Unlock()
		log.Debug().Uint64("gen", g).Uint64("current", current).Msg("Discarding stale fetch result")
		return false
	}
	fn()
	vm.mu.Unlock()
	vm.notify()
	return true
}

func (vm *ViewModel) setMessage(msg string) {
	vm.mu.Lock()
	vm.message = msg
	vm.mu.Unlock()
	vm.notify()
}

func (vm *ViewModel) setInfoError(msg string) {
	vm.mu.Lock()
	vm.info = failed[*models.Session](msg)
	vm.mu.Unlock()
	vm.notify()
}

func (vm *ViewModel) notify() {
	vm.mu.Lock()
	fn := vm.onChange
	var snap Snapshot
	if fn != nil {
		snap = vm.snapshotLocked()
	}
	vm.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}
