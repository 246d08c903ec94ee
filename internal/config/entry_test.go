package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolutionOrder_MostToLeastSpecific(t *testing.T) {
	order := resolutionOrder("ledger", "acme", "t-1")

	assert.Equal(t, []tuple{
		{"ledger", "acme", "t-1"},
		{"ledger", "acme", ""},
		{"ledger", "", "t-1"},
		{"ledger", "", ""},
	}, order)
}

func TestResolutionOrder_NoBrandNoTenant(t *testing.T) {
	order := resolutionOrder("ledger", "", "")
	assert.Equal(t, []tuple{{"ledger", "", ""}}, order)
}

func TestResolutionOrder_BrandOnly(t *testing.T) {
	order := resolutionOrder("ledger", "acme", "")
	assert.Equal(t, []tuple{
		{"ledger", "acme", ""},
		{"ledger", "", ""},
	}, order)
}

func TestTuple_CacheKeyDistinguishesTuples(t *testing.T) {
	a := tuple{"ledger", "acme", "t-1"}
	b := tuple{"ledger", "acme", "t-2"}
	assert.NotEqual(t, a.cacheKey("allowNegative"), b.cacheKey("allowNegative"))
}
