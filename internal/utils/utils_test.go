package utils

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheExpiresEntries(t *testing.T) {
	c, err := NewCache[uint64, string](2, time.Minute)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	c.Set(1, "one")
	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewCache[uint64, string](2, time.Hour)
	require.NoError(t, err)

	c.Set(1, "one")
	c.Set(2, "two")
	c.Get(1)
	c.Set(3, "three")

	_, ok := c.Get(2)
	assert.False(t, ok)
	_, ok = c.Get(1)
	assert.True(t, ok)

	c.Delete(1)
	_, ok = c.Get(1)
	assert.False(t, ok)
}

func TestNewCacheRejectsBadSize(t *testing.T) {
	_, err := NewCache[string, int](0, time.Second)
	assert.Error(t, err)
}

func TestParseReportID(t *testing.T) {
	id, err := ParseReportID("17")
	require.NoError(t, err)
	assert.Equal(t, uint64(17), id)

	for _, bad := range []string{"", "0", "-1", "abc", "1.5"} {
		_, err := ParseReportID(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, 0, StringToInt("x"))
	assert.Equal(t, 3, StringToInt("3"))
}

func TestNameHashMatchesKeccak(t *testing.T) {
	assert.Equal(t, crypto.Keccak256Hash([]byte("Jane Doe")), NameHash("Jane Doe"))
	assert.Equal(t, NameHash("Jane Doe"), NameHash("  Jane   Doe "))
	assert.NotEqual(t, NameHash("Jane Doe"), NameHash("John Doe"))
}

func TestParseHash(t *testing.T) {
	want := crypto.Keccak256Hash([]byte("x"))

	got, err := ParseHash(want.Hex())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ParseHash("0x1234")
	assert.Error(t, err)
	_, err = ParseHash("0x" + string(make([]byte, 64)))
	assert.Error(t, err)
}

func TestParseLatLng(t *testing.T) {
	lat, lng, err := ParseLatLng("-22.9099, -47.0626")
	require.NoError(t, err)
	assert.Equal(t, -22.9099, lat)
	assert.Equal(t, -47.0626, lng)
	assert.Equal(t, "-22.9099,-47.0626", FormatLatLng(lat, lng))

	for _, bad := range []string{"", "1", "1,2,3", "a,b", "91,0", "0,181", "-90.5,10", "NaN,0", "0,NaN", "nan,nan", "Inf,0", "0,-Inf"} {
		_, _, err := ParseLatLng(bad)
		assert.Error(t, err, bad)
	}
}

func TestHasMarkup(t *testing.T) {
	assert.False(t, HasMarkup(""))
	assert.False(t, HasMarkup("ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"))
	assert.False(t, HasMarkup("https://evidence.example.org/a?b=1&c=2"))
	assert.False(t, HasMarkup("O'Brien"))
	assert.True(t, HasMarkup("<script>alert(1)</script>"))
	assert.True(t, HasMarkup(`<img src=x onerror="x()">`))
	assert.True(t, HasMarkup("&lt;b&gt;"))
}
