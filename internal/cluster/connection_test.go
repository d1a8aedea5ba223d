package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-driver-go/address"
	"github.com/redbco/redb-driver-go/internal/wire"
)

func TestNewRegistry_TranslatesPrivateToPublicAddress(t *testing.T) {
	addrs, err := address.FromTranslation(map[string]string{
		"public1:443": "10.0.0.1:5000",
		"public2:443": "10.0.0.2:5000",
	})
	require.NoError(t, err)

	resp := wire.ServerListResponse{Replicas: []wire.ServerReplicaInfo{
		{ID: 1, PrivateAddress: "10.0.0.1:5000", Role: wire.RolePrimary, Term: 1},
		{ID: 2, PrivateAddress: "10.0.0.2:5000", Role: wire.RoleSecondary, Term: 1},
	}}

	reg, err := NewRegistry(resp, addrs, "grpc")
	require.NoError(t, err)

	primary, ok := reg.Primary()
	require.True(t, ok)
	assert.Equal(t, "public1:443", primary.PublicAddress.Authority)
}

func TestNewRegistry_RejectsTwoPrimariesInSameTerm(t *testing.T) {
	addrs, err := address.FromTranslation(map[string]string{
		"public1:443": "10.0.0.1:5000",
		"public2:443": "10.0.0.2:5000",
	})
	require.NoError(t, err)

	resp := wire.ServerListResponse{Replicas: []wire.ServerReplicaInfo{
		{ID: 1, PrivateAddress: "10.0.0.1:5000", Role: wire.RolePrimary, Term: 1},
		{ID: 2, PrivateAddress: "10.0.0.2:5000", Role: wire.RolePrimary, Term: 1},
	}}

	_, err = NewRegistry(resp, addrs, "grpc")
	assert.Error(t, err)
}

func TestRegistry_AllIsSortedByID(t *testing.T) {
	addrs, err := address.FromTranslation(map[string]string{
		"a:443": "10.0.0.1:5000",
		"b:443": "10.0.0.2:5000",
		"c:443": "10.0.0.3:5000",
	})
	require.NoError(t, err)

	resp := wire.ServerListResponse{Replicas: []wire.ServerReplicaInfo{
		{ID: 3, PrivateAddress: "10.0.0.3:5000", Role: wire.RoleSecondary, Term: 1},
		{ID: 1, PrivateAddress: "10.0.0.1:5000", Role: wire.RolePrimary, Term: 1},
		{ID: 2, PrivateAddress: "10.0.0.2:5000", Role: wire.RoleSecondary, Term: 1},
	}}

	reg, err := NewRegistry(resp, addrs, "grpc")
	require.NoError(t, err)

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{all[0].ID, all[1].ID, all[2].ID})
}

func TestRegistry_ByAddressFindsReplica(t *testing.T) {
	addrs, err := address.FromTranslation(map[string]string{
		"a:443": "10.0.0.1:5000",
	})
	require.NoError(t, err)

	resp := wire.ServerListResponse{Replicas: []wire.ServerReplicaInfo{
		{ID: 1, PrivateAddress: "10.0.0.1:5000", Role: wire.RolePrimary, Term: 1},
	}}

	reg, err := NewRegistry(resp, addrs, "grpc")
	require.NoError(t, err)

	pub, perr := address.Parse("a:443")
	require.NoError(t, perr)

	r, ok := reg.ByAddress(pub)
	require.True(t, ok)
	assert.Equal(t, uint64(1), r.ID)
}
