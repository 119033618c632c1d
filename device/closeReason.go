package device

// Close codes used on the device socket. These sit in the 4000-4999
// application range reserved by RFC 6455. The client socket uses the
// clientproxy package's own constants.
const (
	// CloseForceDisconnect is sent when an operator forcibly disconnects a
	// device through Relay.DisconnectDevice.
	CloseForceDisconnect = 4000

	// CloseAuthFailed is sent when the id or key query parameter is
	// missing, or the id is malformed.
	CloseAuthFailed = 4001

	// CloseReplaced is sent to a connection that loses its slot to a newer
	// connection for the same device.
	CloseReplaced = 4002

	// CloseForbidden is sent when the device key is outside 32-64
	// characters or the Credential Store rejects it.
	CloseForbidden = 4003
)

// CloseReason exposes metadata around why a particular connection was
// closed.
type CloseReason struct {
	// Code is the WebSocket close code sent to the peer.
	Code int

	// Err is the optional underlying error, such as an I/O error. If nil,
	// the close reason is application logic, e.g. a forced disconnect.
	Err error

	// Text is a short, human-readable description of the reason.
	Text string
}

func (c CloseReason) String() string {
	errText := "*no error*"
	if c.Err != nil {
		errText = c.Err.Error()
	}

	return errText + ":" + c.Text
}
