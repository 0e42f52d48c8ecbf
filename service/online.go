package service

import (
	"strings"
	"sync"
)

// Status is the read-only server state exposed over the status API.
type Status struct {
	Online      []OnlineUser `json:"online"`
	Viewers     int          `json:"viewers"`
	HistorySize int          `json:"history_size"`
}

type OnlineUser struct {
	Username string `json:"username"`
	Addr     string `json:"addr"`
}

type onlineEntry struct {
	username string
	handle   SessionHandle
}

// onlineRegistry maps logged-in usernames (case-insensitive) to their
// session handles. add is check-then-insert under one lock, which is what
// backs the duplicate-login rejection.
type onlineRegistry struct {
	mx       *sync.Mutex
	sessions map[string]onlineEntry
}

func newOnlineRegistry() *onlineRegistry {
	return &onlineRegistry{
		mx:       &sync.Mutex{},
		sessions: make(map[string]onlineEntry),
	}
}

func (r *onlineRegistry) add(username string, h SessionHandle) bool {
	key := strings.ToLower(username)
	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.sessions[key]; ok {
		return false
	}
	r.sessions[key] = onlineEntry{
		username: username,
		handle:   h,
	}
	return true
}

func (r *onlineRegistry) remove(username string) bool {
	key := strings.ToLower(username)
	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.sessions[key]; !ok {
		return false
	}
	delete(r.sessions, key)
	return true
}

func (r *onlineRegistry) has(username string) bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	_, ok := r.sessions[strings.ToLower(username)]
	return ok
}

func (r *onlineRegistry) list() []OnlineUser {
	r.mx.Lock()
	defer r.mx.Unlock()

	out := make([]OnlineUser, 0, len(r.sessions))
	for _, entry := range r.sessions {
		addr := ""
		if entry.handle != nil {
			addr = entry.handle.RemoteAddr().String()
		}
		out = append(out, OnlineUser{
			Username: entry.username,
			Addr:     addr,
		})
	}
	return out
}
