package fleet

import (
	"github.com/ucifleet/ucifleet/pkg/transport"
)

// newTransport builds the right Transport implementation for a device's
// resolved connection parameters. Grounded on
// wrtkit.fleet_executor.create_connection.
func newTransport(params ConnectionParams) transport.Transport {
	parsed := transport.ParseTarget(params.Target)
	switch parsed.Kind {
	case transport.TargetSerial:
		s, err := transport.NewSerial(parsed.SerialPort, 0, params.Timeout, "", params.Username, params.Password)
		if err != nil {
			// NewSerial only fails on a malformed prompt pattern; the empty
			// pattern passed here selects DefaultPromptPattern, so this
			// branch is not taken.
			return s
		}
		return s
	default:
		host := parsed.Host
		port := parsed.Port
		username := parsed.Username
		if params.Username != "" {
			username = params.Username
		}
		return transport.NewSSH(host, port, username, params.Password, params.KeyFile, params.Timeout)
	}
}
