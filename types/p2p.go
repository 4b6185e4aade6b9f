package types

import "encoding/json"

// P2PSignal is one WebRTC signalling message (offer, answer, ICE candidate...).
// The server relays Data untouched.
type P2PSignal struct {
	From string          `json:"from"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// P2PSignalRequest is the body of POST /api/p2p/signal.
type P2PSignalRequest struct {
	Room string          `json:"room" binding:"required"`
	From string          `json:"from"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// P2PPollResponse returns the signals a peer has not seen yet.
type P2PPollResponse struct {
	Signals []P2PSignal `json:"signals"`
	Index   int         `json:"index"`
}
