package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AcceptsSchemeForm(t *testing.T) {
	a, err := Parse("grpc://db1.example.com:1729")
	require.NoError(t, err)
	assert.Equal(t, "grpc", a.Scheme)
	assert.Equal(t, "db1.example.com:1729", a.Authority)
}

func TestParse_DefaultsSchemeForBareHostPort(t *testing.T) {
	a, err := Parse("db1.example.com:1729")
	require.NoError(t, err)
	assert.Equal(t, defaultScheme, a.Scheme)
}

func TestParse_FailsOnEmptyAddress(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
}

func TestParse_FailsOnMissingPort(t *testing.T) {
	_, err := Parse("db1.example.com")
	assert.Error(t, err)
}

func TestAddress_EqualIgnoresScheme(t *testing.T) {
	a := MustParse("grpc://host:1729")
	b := MustParse("host:1729")
	assert.True(t, a.Equal(b))
}

func TestAddresses_ExcludeRetainsOnlyPublicIntersection(t *testing.T) {
	full, err := FromList([]string{"a:1", "b:1", "c:1"})
	require.NoError(t, err)
	subset, err := FromList([]string{"a:1", "c:1"})
	require.NoError(t, err)

	result := full.Exclude(subset)
	assert.Equal(t, 2, result.Len())
	assert.True(t, result.Contains(MustParse("a:1")))
	assert.False(t, result.Contains(MustParse("b:1")))
}

func TestAddresses_ValidateAgainstServerView_DetectsMismatch(t *testing.T) {
	addrs, err := FromTranslation(map[string]string{
		"pub1:443": "10.0.0.1:5000",
		"pub2:443": "10.0.0.2:5000",
	})
	require.NoError(t, err)

	err = addrs.ValidateAgainstServerView([]Address{MustParse("10.0.0.1:5000")})
	assert.Error(t, err)
}

func TestAddresses_ValidateAgainstServerView_AcceptsExactMatch(t *testing.T) {
	addrs, err := FromTranslation(map[string]string{
		"pub1:443": "10.0.0.1:5000",
		"pub2:443": "10.0.0.2:5000",
	})
	require.NoError(t, err)

	err = addrs.ValidateAgainstServerView([]Address{
		MustParse("10.0.0.1:5000"),
		MustParse("10.0.0.2:5000"),
	})
	assert.NoError(t, err)
}

func TestAddresses_IterPublicAddressesIsSorted(t *testing.T) {
	addrs, err := FromList([]string{"c:1", "a:1", "b:1"})
	require.NoError(t, err)

	pubs := addrs.IterPublicAddresses()
	require.Len(t, pubs, 3)
	assert.Equal(t, "a:1", pubs[0].Authority)
	assert.Equal(t, "b:1", pubs[1].Authority)
	assert.Equal(t, "c:1", pubs[2].Authority)
}
