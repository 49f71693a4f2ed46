package methods

import "snaprpc/server/internal/snaps"

// Permitted builds the registry of every permitted method. wallet_requestSnaps
// merges through merger, which must be shared by all connections so that
// merges for one origin are serialized process-wide.
func Permitted(merger *snaps.Merger) *Registry {
	return MustRegistry(
		getAllSnapsHandler(),
		getSnapsHandler(),
		requestSnapsHandler(merger),
		invokeSnapHandler(),
		getClientStatusHandler(),
		getPreferencesHandler(),
		getCurrencyRateHandler(),
		getStateHandler(),
		setStateHandler(),
		clearStateHandler(),
	)
}
