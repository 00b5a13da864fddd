package handlers

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleSwapper Role = "SWAPPER"
)

// Registry resolves which concrete handler serves a (token, lending protocol
// index) pair and answers role checks for the gated entry points. Lending
// protocol index 0 is reserved for "no lending": its protocol name is empty
// and interest withdrawal against it is rejected.
type Registry struct {
	mu        sync.RWMutex
	roles     map[Role]map[common.Address]bool
	handlers  map[common.Address]map[uint64]Handler
	protocols map[uint64]string
}

func NewRegistry() *Registry {
	return &Registry{
		roles:     make(map[Role]map[common.Address]bool),
		handlers:  make(map[common.Address]map[uint64]Handler),
		protocols: map[uint64]string{0: ""},
	}
}

func (r *Registry) GrantRole(role Role, addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roles[role] == nil {
		r.roles[role] = make(map[common.Address]bool)
	}
	r.roles[role][addr] = true
}

func (r *Registry) RevokeRole(role Role, addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles[role], addr)
}

func (r *Registry) HasRole(role Role, addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roles[role][addr]
}

// RegisterTokenHandler binds a handler to a token for one lending venue.
func (r *Registry) RegisterTokenHandler(token common.Address, lendingProtocolIndex uint64, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers[token] == nil {
		r.handlers[token] = make(map[uint64]Handler)
	}
	r.handlers[token][lendingProtocolIndex] = h
}

// GetTokenHandler resolves the handler for a token/protocol pair. Absence
// means the token is not accepted on that venue.
func (r *Registry) GetTokenHandler(token common.Address, lendingProtocolIndex uint64) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[token][lendingProtocolIndex]
	return h, ok
}

// SetProtocolName names a lending venue. Index 0 stays the empty "no
// lending" sentinel.
func (r *Registry) SetProtocolName(index uint64, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index == 0 {
		return
	}
	r.protocols[index] = name
}

func (r *Registry) ProtocolName(index uint64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.protocols[index]
}
