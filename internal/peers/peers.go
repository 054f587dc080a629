// Package peers holds the clients for the two collaborating services:
// the content service, which converts and uploads training material to
// the learning platform, and the instantiation service, which
// provisions isolated cyber ranges. Both speak the urlencoded-form
// request / JSON-envelope response protocol of the upstream servers.
package peers

import (
	"encoding/json"
	"fmt"
)

// Peer names used in upstream errors.
const (
	PeerContent       = "content"
	PeerInstantiation = "instantiation"
)

// Actions recognized by the peer services.
const (
	ActionUploadContent    = "upload_content"
	ActionRemoveContent    = "remove_content"
	ActionInstantiateRange = "instantiate_range"
	ActionDestroyRange     = "destroy_range"
)

// Envelope status values.
const (
	statusSuccess = "SUCCESS"
	statusError   = "ERROR"
)

// UpstreamError reports a failed peer service call: which peer, which
// operation, and the underlying cause (rejection, unreachability, or
// timeout).
type UpstreamError struct {
	Peer string
	Op   string
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s service: %s: %v", e.Peer, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// envelope is one element of the JSON array the peer services reply
// with: [{"status": "SUCCESS", ...}].
type envelope struct {
	Status     string   `json:"status"`
	Message    string   `json:"message,omitempty"`
	ActivityID string   `json:"activity_id,omitempty"`
	RangeID    string   `json:"range_id,omitempty"`
	Endpoints  []string `json:"endpoints,omitempty"`
}

// parseEnvelope decodes a peer reply and returns its first element. A
// reply with status ERROR yields an error carrying the peer's message.
func parseEnvelope(body []byte) (*envelope, error) {
	var replies []envelope
	if err := json.Unmarshal(body, &replies); err != nil {
		return nil, fmt.Errorf("malformed reply: %w", err)
	}
	if len(replies) == 0 {
		return nil, fmt.Errorf("empty reply")
	}
	reply := &replies[0]
	if reply.Status != statusSuccess {
		if reply.Message != "" {
			return nil, fmt.Errorf("rejected: %s", reply.Message)
		}
		return nil, fmt.Errorf("rejected with status %q", reply.Status)
	}
	return reply, nil
}
