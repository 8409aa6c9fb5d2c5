package model

import (
	"encoding/json"
	"sync"
)

// Status tracks the health of one model. The health worker writes it, API
// handlers read it concurrently; every access goes through the mutex.
type Status struct {
	mu        sync.Mutex
	pingOK    bool
	requestOK bool
	err       string
}

// NewStatus returns a Status with all probes unpassed.
func NewStatus() *Status {
	return &Status{}
}

// PingOK reports whether the last ping probe succeeded.
func (s *Status) PingOK() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingOK
}

// SetPingOK records the outcome of a ping probe.
func (s *Status) SetPingOK(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingOK = ok
}

// RequestOK reports whether the last end-to-end request probe succeeded.
func (s *Status) RequestOK() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestOK
}

// SetRequestOK records the outcome of a request probe.
func (s *Status) SetRequestOK(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestOK = ok
}

// Err returns the recorded error string, empty when healthy.
func (s *Status) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// SetErr records an error string. Pass "" to clear.
func (s *Status) SetErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = msg
}

// Running reports whether the model is usable: both probes passed and no
// error is recorded.
func (s *Status) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingOK && s.requestOK && s.err == ""
}

// statusJSON is the wire shape of a Status in /v0/models responses.
type statusJSON struct {
	PingOK    bool    `json:"ping_ok"`
	RequestOK bool    `json:"request_ok"`
	Error     *string `json:"error"`
	Running   bool    `json:"running"`
}

// MarshalJSON renders the status as {ping_ok, request_ok, error, running}.
func (s *Status) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	out := statusJSON{
		PingOK:    s.pingOK,
		RequestOK: s.requestOK,
		Running:   s.pingOK && s.requestOK && s.err == "",
	}
	if s.err != "" {
		msg := s.err
		out.Error = &msg
	}
	s.mu.Unlock()
	return json.Marshal(out)
}
