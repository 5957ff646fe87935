package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/DhisHub/wapi-dashboard/internal/gateway"
	"github.com/DhisHub/wapi-dashboard/pkg/models"
)

// fakeGateway is an in-memory gateway with per-operation counters.
type fakeGateway struct {
	mu       sync.Mutex
	sessions map[string]*models.Session

	qrFetches         int
	screenshotFetches int
	infoFetches       int
	listFetches       int

	// infoGate, when set, blocks GetSession until released. Used to race a
	// stale response against a newer selection.
	infoGate chan struct{}

	lifecycleErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]*models.Session)}
}

func (f *fakeGateway) add(name, owner string, status models.SessionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[name] = &models.Session{
		Name:   name,
		Status: status,
		Config: models.SessionConfig{Metadata: map[string]string{
			models.MetaUserID:       owner,
			models.MetaSessionTell:  "252615983417",
			models.MetaSessionEmail: "a@b.com",
		}},
	}
}

func (f *fakeGateway) setStatus(name string, status models.SessionStatus, me *models.Me) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[name].Status = status
	f.sessions[name].Me = me
}

func (f *fakeGateway) CreateSession(_ context.Context, req gateway.CreateSessionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[req.Name] = &models.Session{
		Name:   req.Name,
		Status: models.StatusStarting,
		Config: models.SessionConfig{Metadata: map[string]string{
			models.MetaUserID:       req.OwnerID,
			models.MetaUserEmail:    req.OwnerEmail,
			models.MetaSessionEmail: req.ContactEmail,
			models.MetaSessionTell:  req.ContactTell,
		}},
	}
	return nil
}

func (f *fakeGateway) ListSessions(context.Context) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFetches++
	out := make([]models.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeGateway) GetSession(_ context.Context, name string) (*models.Session, error) {
	f.mu.Lock()
	gate := f.infoGate
	f.infoFetches++
	session, ok := f.sessions[name]
	var copied models.Session
	if ok {
		copied = *session
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return nil, errors.New("session not found")
	}
	return &copied, nil
}

func (f *fakeGateway) QRCode(_ context.Context, name string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qrFetches++
	return []byte("qr-" + name), "image/png", nil
}

func (f *fakeGateway) Screenshot(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screenshotFetches++
	return "c2NyZWVu", nil
}

func (f *fakeGateway) Lifecycle(_ context.Context, name string, action gateway.Action) error {
	return f.lifecycleErr
}

func (f *fakeGateway) DeleteSession(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, name)
	return nil
}

// memSelections is an in-memory SelectionStore.
type memSelections struct {
	mu    sync.Mutex
	byUID map[string]string
}

func newMemSelections() *memSelections {
	return &memSelections{byUID: make(map[string]string)}
}

func (m *memSelections) Save(_ context.Context, userID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUID[userID] = name
	return nil
}

func (m *memSelections) Get(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byUID[userID], nil
}

func (m *memSelections) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUID, userID)
	return nil
}

// ViewModelSuite is a test suite for the dashboard view-model.
type ViewModelSuite struct {
	suite.Suite
	gw         *fakeGateway
	selections *memSelections
	vm         *ViewModel
	ctx        context.Context
}

func (s *ViewModelSuite) SetupTest() {
	s.gw = newFakeGateway()
	s.selections = newMemSelections()
	s.vm = NewViewModel(s.gw, s.selections, "u1", "owner@example.com", "https://hooks.example.com/wa")
	s.ctx = context.Background()
}

func TestViewModelSuite(t *testing.T) {
	suite.Run(t, new(ViewModelSuite))
}

// TestListFilteredByOwner tests that sessions of other accounts never show
// up, regardless of how many the gateway returns.
func (s *ViewModelSuite) TestListFilteredByOwner() {
	s.gw.add("mine", "u1", models.StatusWorking)
	s.gw.add("theirs-1", "u2", models.StatusWorking)
	s.gw.add("theirs-2", "u3", models.StatusScanQRCode)
	s.gw.add("orphan", "", models.StatusStopped)

	s.vm.Mount(s.ctx)

	snap := s.vm.Snapshot()
	s.Equal(FetchReady, snap.Sessions.Status)
	s.Require().Len(snap.Sessions.Value, 1)
	s.Equal("mine", snap.Sessions.Value[0].Name)
}

// TestSelectScanQR_FetchesQROnce tests the QR eligibility rule: selecting a
// SCAN_QR_CODE session holding no QR image triggers exactly one QR fetch.
func (s *ViewModelSuite) TestSelectScanQR_FetchesQROnce() {
	s.gw.add("default", "u1", models.StatusScanQRCode)

	s.vm.Mount(s.ctx)

	s.Equal("default", s.vm.Selected())
	s.Equal(1, s.gw.qrFetches)

	snap := s.vm.Snapshot()
	s.Equal(FetchReady, snap.QR.Status)
	s.Contains(snap.QR.Value, "data:image/png;base64,")
}

// TestSelectWorking_NoQRFetch tests that a WORKING session triggers zero QR
// fetches and the panel falls back to the paired account identity.
func (s *ViewModelSuite) TestSelectWorking_NoQRFetch() {
	s.gw.add("default", "u1", models.StatusWorking)
	s.gw.setStatus("default", models.StatusWorking, &models.Me{ID: "252615983417@c.us", PushName: "Abdi"})

	s.vm.Mount(s.ctx)

	s.Equal(0, s.gw.qrFetches)

	snap := s.vm.Snapshot()
	s.Equal(FetchReady, snap.Info.Status)
	s.Equal("252615983417", snap.Info.Value.PhoneNumber())
	s.Equal("Abdi", snap.Info.Value.Me.PushName)
	s.NotEqual(FetchReady, snap.QR.Status)
}

// TestPairingTransition tests STARTING → SCAN_QR_CODE → WORKING: one QR
// fetch on the scan phase, then the QR image is dropped on re-selection and
// the panel shows the account instead.
func (s *ViewModelSuite) TestPairingTransition() {
	s.gw.add("default", "u1", models.StatusStarting)

	s.vm.Mount(s.ctx)
	s.Equal(0, s.gw.qrFetches)

	// Gateway moves to SCAN_QR_CODE; the dashboard re-polls via Select.
	s.gw.setStatus("default", models.StatusScanQRCode, nil)
	s.vm.Select(s.ctx, "default")
	s.Equal(1, s.gw.qrFetches)
	s.Equal(FetchReady, s.vm.Snapshot().QR.Status)

	// Pairing completes.
	s.gw.setStatus("default", models.StatusWorking, &models.Me{ID: "252615983417@c.us", PushName: "Abdi"})
	s.vm.Select(s.ctx, "default")
	s.Equal(1, s.gw.qrFetches)

	snap := s.vm.Snapshot()
	s.Equal(models.StatusWorking, snap.Info.Value.Status)
	s.NotEqual(FetchReady, snap.QR.Status)
}

// TestRetryQR tests the manual retry control: re-fetches during
// SCAN_QR_CODE, no-op otherwise.
func (s *ViewModelSuite) TestRetryQR() {
	s.gw.add("default", "u1", models.StatusScanQRCode)
	s.vm.Mount(s.ctx)
	s.Equal(1, s.gw.qrFetches)

	s.vm.RetryQR(s.ctx)
	s.Equal(2, s.gw.qrFetches)

	s.gw.setStatus("default", models.StatusWorking, nil)
	s.vm.Select(s.ctx, "default")
	s.vm.RetryQR(s.ctx)
	s.Equal(2, s.gw.qrFetches)
}

// TestStaleSelectionCleared tests that a persisted reference to a session
// deleted externally is treated as stale and cleared on the next list fetch.
func (s *ViewModelSuite) TestStaleSelectionCleared() {
	s.Require().NoError(s.selections.Save(s.ctx, "u1", "ghost"))
	s.gw.add("real", "u1", models.StatusStopped)

	s.vm.Mount(s.ctx)

	// The stale name was not selectable; the first owned session wins.
	s.Equal("real", s.vm.Selected())
	s.Eventually(func() bool {
		name, _ := s.selections.Get(s.ctx, "u1")
		return name == "real"
	}, time.Second, 10*time.Millisecond)
}

// TestStaleResponseDiscarded tests the generation guard: a slow info
// response for a superseded selection must not clobber the current one.
func (s *ViewModelSuite) TestStaleResponseDiscarded() {
	s.gw.add("slow", "u1", models.StatusStopped)
	s.gw.add("fast", "u1", models.StatusWorking)

	gate := make(chan struct{})
	s.gw.mu.Lock()
	s.gw.infoGate = gate
	s.gw.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.vm.Select(s.ctx, "slow")
		close(done)
	}()

	// Wait until the slow fetch is in flight, then supersede it.
	s.Eventually(func() bool {
		s.gw.mu.Lock()
		defer s.gw.mu.Unlock()
		return s.gw.infoFetches >= 1
	}, time.Second, time.Millisecond)

	s.gw.mu.Lock()
	s.gw.infoGate = nil
	s.gw.mu.Unlock()
	s.vm.Select(s.ctx, "fast")

	// Release the stale response; it must be discarded.
	close(gate)
	<-done

	snap := s.vm.Snapshot()
	s.Equal("fast", snap.Selected)
	s.Require().Equal(FetchReady, snap.Info.Status)
	s.Equal("fast", snap.Info.Value.Name)
	s.Equal(models.StatusWorking, snap.Info.Value.Status)
}

// TestCreate tests the success message and that the new session appears in
// the filtered list for its owner only.
func (s *ViewModelSuite) TestCreate() {
	resp := s.vm.Create(s.ctx, "default", "252615983417", "a@b.com")
	s.False(resp.Error)
	s.Equal("Success! Your session has been created.", resp.Message)

	snap := s.vm.Snapshot()
	s.Require().Len(snap.Sessions.Value, 1)
	s.Equal("default", snap.Sessions.Value[0].Name)
	s.Equal("252615983417", snap.Sessions.Value[0].ContactTell())

	// Another account sees none of it.
	other := NewViewModel(s.gw, s.selections, "u2", "other@example.com", "")
	other.Mount(s.ctx)
	s.Empty(other.Snapshot().Sessions.Value)
}

// TestAction tests lifecycle messages and the no-selection guard.
func (s *ViewModelSuite) TestAction() {
	s.vm.Action(s.ctx, gateway.ActionStart)
	s.Equal("Please select a session.", s.vm.Snapshot().Message)

	s.gw.add("default", "u1", models.StatusStopped)
	s.vm.Mount(s.ctx)

	s.vm.Action(s.ctx, gateway.ActionStart)
	s.Equal("Session default started successfully.", s.vm.Snapshot().Message)

	s.gw.lifecycleErr = errors.New("boom")
	s.vm.Action(s.ctx, gateway.ActionStop)
	s.Equal("Failed to stop session.", s.vm.Snapshot().Message)
}

// TestDelete tests deletion and the reload that follows.
func (s *ViewModelSuite) TestDelete() {
	s.gw.add("default", "u1", models.StatusStopped)
	s.vm.Mount(s.ctx)
	s.Equal("default", s.vm.Selected())

	s.vm.Delete(s.ctx)

	snap := s.vm.Snapshot()
	s.Empty(snap.Selected)
	s.Equal(FetchReady, snap.Sessions.Status)
	s.Empty(snap.Sessions.Value)
}

// TestScreenshotFailureIsFieldLevel tests that a screenshot error degrades
// only its own panel.
func (s *ViewModelSuite) TestScreenshotFailureIsFieldLevel() {
	s.gw.add("default", "u1", models.StatusWorking)
	s.vm.Mount(s.ctx)

	snap := s.vm.Snapshot()
	s.Equal(FetchReady, snap.Info.Status)
	s.Equal(FetchReady, snap.Screenshot.Status)
	s.Equal("data:image/png;base64,c2NyZWVu", snap.Screenshot.Value)
}
