package net

// RPCResponse captures both a response and a potential error.
type RPCResponse struct {
	Response interface{}
	Error    error
}

// RPC encapsulates an inbound request and provides a response mechanism.
// SenderPub is the frame-level authenticated sender identity: handlers use
// it to bind payload claims to the peer that actually sent the frame.
type RPC struct {
	Command   interface{}
	SenderPub string
	RespChan  chan<- RPCResponse
}

// Respond is used to respond with a response, error or both.
func (r *RPC) Respond(resp interface{}, err error) {
	r.RespChan <- RPCResponse{resp, err}
}
