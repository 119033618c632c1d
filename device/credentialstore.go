package device

import "context"

// CredentialStore is the external collaborator the Device Relay consults
// to authenticate connecting devices and to keep a backing database in
// sync with the set of devices actually connected. It is implemented
// outside this package; the relay only depends on this interface.
type CredentialStore interface {
	// VerifyDeviceKey reports whether key is the currently provisioned
	// key for id. A false return (with a nil error) causes the connect
	// attempt to be rejected with CloseForbidden.
	VerifyDeviceKey(ctx context.Context, id ID, key string) (bool, error)

	// UpdateDeviceStatus records whether id is currently connected.
	UpdateDeviceStatus(ctx context.Context, id ID, online bool) error

	// SyncOnlineDevicesWithConnections marks any device flagged online in
	// persistence but absent from connectedIDs as offline, and returns how
	// many rows were corrected. Called once per reconciliation sweep.
	SyncOnlineDevicesWithConnections(ctx context.Context, connectedIDs []ID) (staleCount int, err error)
}
