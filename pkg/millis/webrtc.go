package millis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pion/webrtc/v4"
)

// ValidateOffer checks that offer is a parseable SDP offer.
func ValidateOffer(offer webrtc.SessionDescription) error {
	if offer.Type != webrtc.SDPTypeOffer {
		return fmt.Errorf("session description type must be offer, got %s", offer.Type)
	}
	if strings.TrimSpace(offer.SDP) == "" {
		return fmt.Errorf("session description has no sdp")
	}
	if _, err := offer.Unmarshal(); err != nil {
		return fmt.Errorf("invalid sdp: %w", err)
	}
	return nil
}

func ValidateCandidate(candidate webrtc.ICECandidateInit) error {
	if strings.TrimSpace(candidate.Candidate) == "" {
		return fmt.Errorf("ice candidate is empty")
	}
	return nil
}

// WebRTCOffer relays a browser offer and returns the platform's answer verbatim.
func (c *Client) WebRTCOffer(ctx context.Context, agentID string, offer webrtc.SessionDescription) (json.RawMessage, error) {
	var answer json.RawMessage
	err := c.do(ctx, "webrtc_offer", http.MethodPost, "/webrtc/offer", map[string]interface{}{
		"agent_id": agentID,
		"offer":    offer,
	}, &answer)
	if err != nil {
		return nil, err
	}
	return answer, nil
}

func (c *Client) WebRTCICECandidate(ctx context.Context, agentID string, candidate webrtc.ICECandidateInit) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, "webrtc_ice_candidate", http.MethodPost, "/webrtc/ice-candidate", map[string]interface{}{
		"agent_id":  agentID,
		"candidate": candidate,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
