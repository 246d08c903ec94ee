package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_GetPath(t *testing.T) {
	v := Map(map[string]Value{
		"db": Map(map[string]Value{
			"password": String("s3cret"),
			"port":     Int(5432),
		}),
	})

	got, ok := v.Get(Path("db.password"))
	require.True(t, ok)
	assert.Equal(t, "s3cret", got.Str)

	_, ok = v.Get(Path("db.missing"))
	assert.False(t, ok)

	_, ok = v.Get(Path("nope.at.all"))
	assert.False(t, ok)
}

func TestValue_Without(t *testing.T) {
	v := Map(map[string]Value{
		"db": Map(map[string]Value{
			"password": String("s3cret"),
			"host":     String("localhost"),
		}),
		"public": Bool(true),
	})

	filtered := v.Without([]string{"db.password"})

	_, ok := filtered.Get(Path("db.password"))
	assert.False(t, ok, "sensitive path must be removed")

	host, ok := filtered.Get(Path("db.host"))
	require.True(t, ok)
	assert.Equal(t, "localhost", host.Str)

	// original is untouched
	orig, ok := v.Get(Path("db.password"))
	require.True(t, ok)
	assert.Equal(t, "s3cret", orig.Str)
}

func TestValue_Without_MissingPathIsNoop(t *testing.T) {
	v := Map(map[string]Value{"a": Int(1)})
	out := v.Without([]string{"b.c"})
	got, ok := out.Get(Path("a"))
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Int)
}

func TestMergeInto_ScalarReplacesLowerLayer(t *testing.T) {
	dst := Map(map[string]Value{"ledger": Map(map[string]Value{"allowNegative": Bool(false)})})
	src := Map(map[string]Value{"ledger": Map(map[string]Value{"allowNegative": Bool(true)})})

	merged := MergeInto(dst, src)

	v, ok := merged.Get(Path("ledger.allowNegative"))
	require.True(t, ok)
	assert.True(t, v.Bool)
}

func TestMergeInto_PreservesUnrelatedKeys(t *testing.T) {
	dst := Map(map[string]Value{
		"a": Int(1),
		"nested": Map(map[string]Value{
			"x": Int(1),
			"y": Int(2),
		}),
	})
	src := Map(map[string]Value{
		"nested": Map(map[string]Value{"y": Int(99)}),
	})

	merged := MergeInto(dst, src)

	a, ok := merged.Get(Path("a"))
	require.True(t, ok)
	assert.Equal(t, int64(1), a.Int)

	x, ok := merged.Get(Path("nested.x"))
	require.True(t, ok)
	assert.Equal(t, int64(1), x.Int)

	y, ok := merged.Get(Path("nested.y"))
	require.True(t, ok)
	assert.Equal(t, int64(99), y.Int)
}

func TestMergeInto_NullSrcIsNoop(t *testing.T) {
	dst := Map(map[string]Value{"a": Int(1)})
	merged := MergeInto(dst, Null())
	v, ok := merged.Get(Path("a"))
	require.True(t, ok)
	assert.Equal(t, int64(1), v.Int)
}
