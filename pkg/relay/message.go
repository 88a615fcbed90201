// Package relay replicates a replica.Doc between one server and many peers
// over websockets. The server applies and forwards every update; peers are
// told who else is connected so they can track presence.
package relay

import "coopsweep/pkg/replica"

// Envelope types.
const (
	TypeHello  = "hello"
	TypeUpdate = "update"
	TypePeers  = "peers"
)

// Envelope is the only message on the wire, encoded as JSON.
type Envelope struct {
	Type string `json:"type"`
	// Peer is the receiver's own ID in a hello.
	Peer   string          `json:"peer,omitempty"`
	Update *replica.Update `json:"update,omitempty"`
	// Added and Removed carry a membership delta. The first peers envelope a
	// client receives lists everyone already connected.
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

func updateEnvelope(u replica.Update) Envelope {
	return Envelope{Type: TypeUpdate, Update: &u}
}
