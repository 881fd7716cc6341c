package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/harveysanders/picolock/smartlock/lock"
)

// Topics are the lock's MQTT topic names.
type Topics struct {
	// Command is subscribed to; an "unlock" payload opens the latch.
	Command string
	// State receives a StateReport for every transition.
	State string
}

// NewTopics returns <prefix>/command and <prefix>/state.
func NewTopics(prefix string) Topics {
	return Topics{
		Command: prefix + "/command",
		State:   prefix + "/state",
	}
}

// StateReport is the JSON body published on the state topic.
type StateReport struct {
	State       string        `json:"state"`
	Source      string        `json:"source"`
	UnlockCount uint32        `json:"unlocks,omitempty"`
	SinceBoot   time.Duration `json:"sinceBoot"` // Nanoseconds since boot.
}

// MarshalEvent encodes ev as a StateReport.
func MarshalEvent(ev lock.Event) ([]byte, error) {
	return json.Marshal(StateReport{
		State:       ev.State.String(),
		Source:      string(ev.Source),
		UnlockCount: ev.Count,
		SinceBoot:   ev.SinceBoot,
	})
}

var errUnknownCommand = errors.New("unknown command")

// ParseCommand decodes a command payload. Only "unlock" is understood,
// ignoring case and surrounding whitespace.
func ParseCommand(payload []byte) (lock.Request, error) {
	cmd := bytes.TrimSpace(payload)
	if !bytes.EqualFold(cmd, []byte("unlock")) {
		return lock.Request{}, errUnknownCommand
	}
	return lock.Request{Source: lock.SourceNetwork}, nil
}

// splitHostPort splits a host:port string into separate host and port components.
// Returns an error if the format is invalid.
func splitHostPort(addr string) (host, port string, err error) {
	// Find the last colon to support IPv6 addresses
	colonIdx := -1
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			colonIdx = i
			break
		}
	}

	if colonIdx == -1 {
		return "", "", errors.New("missing port in address")
	}

	host = addr[:colonIdx]
	port = addr[colonIdx+1:]

	if host == "" {
		return "", "", errors.New("empty host")
	}
	if port == "" {
		return "", "", errors.New("empty port")
	}

	return host, port, nil
}

// parsePort converts a port string to uint16.
// Returns 0 if parsing fails (caller should validate).
func parsePort(portStr string) uint16 {
	var port uint32
	for i := 0; i < len(portStr); i++ {
		if portStr[i] < '0' || portStr[i] > '9' {
			return 0
		}
		port = port*10 + uint32(portStr[i]-'0')
		if port > 0xFFFF {
			return 0
		}
	}
	return uint16(port)
}
