package server

import (
	"bytes"
	"sync"

	"github.com/chazu/lox/driver"
)

// runStepLimit bounds one lox.run so a looping document cannot hold the
// worker that also serves diagnostics, completion and hover.
const runStepLimit = 5_000_000

// RunResult is what the lox.run command reports back to the editor.
type RunResult struct {
	Session string `json:"session"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

// runSession is a driver session bound to one document. Its globals
// survive between runs until the document is reset or closed.
type runSession struct {
	session *driver.Session
	out     bytes.Buffer
}

// SessionStore manages per-document run sessions.
type SessionStore struct {
	mu       sync.RWMutex
	engine   driver.Engine
	maxSteps int
	sessions map[string]*runSession
}

// NewSessionStore creates a store whose sessions run on engine.
func NewSessionStore(engine driver.Engine) *SessionStore {
	return &SessionStore{
		engine:   engine,
		maxSteps: runStepLimit,
		sessions: make(map[string]*runSession),
	}
}

// getOrCreate returns the session for uri, creating it on first use.
func (s *SessionStore) getOrCreate(uri string) *runSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.sessions[uri]
	if !ok {
		rs = &runSession{}
		rs.session = driver.NewSession(driver.Options{
			Engine:   s.engine,
			Out:      &rs.out,
			MaxSteps: s.maxSteps,
		})
		s.sessions[uri] = rs
	}
	return rs
}

// Run executes src in the session for uri and returns what it printed.
func (s *SessionStore) Run(uri, src string) RunResult {
	rs := s.getOrCreate(uri)
	rs.out.Reset()

	_, err := rs.session.Run(src)
	res := RunResult{
		Session: rs.session.ID.String(),
		Output:  rs.out.String(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	log.Infof("run %s in session %s", uri, res.Session)
	return res
}

// Globals lists the globals the session for uri has defined so far.
func (s *SessionStore) Globals(uri string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rs, ok := s.sessions[uri]; ok {
		return rs.session.Globals()
	}
	return nil
}

// Destroy removes the session for uri.
func (s *SessionStore) Destroy(uri string) {
	s.mu.Lock()
	delete(s.sessions, uri)
	s.mu.Unlock()
}

// Len reports how many sessions are live.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
