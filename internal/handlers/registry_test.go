package handlers

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestRoles(t *testing.T) {
	r := NewRegistry()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	assert.False(t, r.HasRole(RoleAdmin, addr))
	r.GrantRole(RoleAdmin, addr)
	assert.True(t, r.HasRole(RoleAdmin, addr))
	assert.False(t, r.HasRole(RoleSwapper, addr))

	r.RevokeRole(RoleAdmin, addr)
	assert.False(t, r.HasRole(RoleAdmin, addr))
}

func TestTokenHandlerResolution(t *testing.T) {
	r := NewRegistry()
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")
	h := NewMemoryHandler(big.NewInt(1), big.NewInt(1), 0)

	_, ok := r.GetTokenHandler(token, 0)
	assert.False(t, ok)

	r.RegisterTokenHandler(token, 0, h)
	got, ok := r.GetTokenHandler(token, 0)
	assert.True(t, ok)
	assert.Equal(t, Handler(h), got)

	_, ok = r.GetTokenHandler(token, 1)
	assert.False(t, ok)
}

func TestProtocolNameIndexZeroReserved(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, "", r.ProtocolName(0))
	r.SetProtocolName(0, "sovryn")
	assert.Equal(t, "", r.ProtocolName(0))

	r.SetProtocolName(2, "tropykus")
	assert.Equal(t, "tropykus", r.ProtocolName(2))
	assert.Equal(t, "", r.ProtocolName(9))
}
