// Package dashboard implements the session dashboard view-model: selected
// session state, status-driven QR/screenshot fetch eligibility, owner
// filtering of the unscoped gateway listing, and persistence of the last
// selection. The status machine itself is externally driven; the view-model
// only requests transitions and re-polls to observe them.
package dashboard

// FetchStatus is the lifecycle of a single fetch concern. Each concern
// (list, info, QR, screenshot) carries its own tagged state instead of
// ad hoc loading/error flags.
type FetchStatus string

const (
	FetchIdle    FetchStatus = "idle"
	FetchLoading FetchStatus = "loading"
	FetchReady   FetchStatus = "ready"
	FetchError   FetchStatus = "error"
)

// Fetch is the tagged variant for one fetch concern. Value is meaningful
// only in the ready state, Err only in the error state.
type Fetch[T any] struct {
	Status FetchStatus `json:"status"`
	Value  T           `json:"value,omitempty"`
	Err    string      `json:"error,omitempty"`
}

func idle[T any]() Fetch[T] {
	return Fetch[T]{Status: FetchIdle}
}

func loading[T any]() Fetch[T] {
	return Fetch[T]{Status: FetchLoading}
}

func ready[T any](v T) Fetch[T] {
	return Fetch[T]{Status: FetchReady, Value: v}
}

func failed[T any](msg string) Fetch[T] {
	return Fetch[T]{Status: FetchError, Err: msg}
}
