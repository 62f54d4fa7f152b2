package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOp(t *testing.T) {
	op := GreaterEq | OrFlag
	assert.True(t, op.Or())
	assert.Equal(t, GreaterEq, op.Mask())
	assert.Equal(t, ">=", op.String())
	assert.False(t, Equals.Or())
	assert.Equal(t, "", None.String())
}

func TestParseOp(t *testing.T) {
	tests := []struct {
		in   string
		want Op
	}{
		{"", None},
		{"<=", LessEq},
		{"<", LessEq},
		{">=", GreaterEq},
		{">", GreaterEq},
		{"<<", Less},
		{">>", Greater},
		{"=", Equals},
		{"!=", NotEquals},
	}
	for _, tt := range tests {
		got, err := ParseOp(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseOp("~>")
	assert.Error(t, err)
}

func TestCheckOp(t *testing.T) {
	assert.True(t, CheckOp(-1, LessEq))
	assert.True(t, CheckOp(0, LessEq))
	assert.False(t, CheckOp(1, LessEq))
	assert.True(t, CheckOp(1, GreaterEq))
	assert.False(t, CheckOp(0, Less))
	assert.True(t, CheckOp(1, Greater))
	assert.True(t, CheckOp(0, Equals))
	assert.True(t, CheckOp(1, NotEquals))
	assert.True(t, CheckOp(-5, None))
	assert.True(t, CheckOp(0, Equals|OrFlag))
}

type fakeSystem struct{ label string }

func (f fakeSystem) Label() string { return f.label }

func (fakeSystem) CompareVersion(a, b string) int { return 0 }

func (fakeSystem) CheckDependency(string, Op, string) bool { return true }

func (fakeSystem) UpstreamVersion(v string) string { return v }

func TestRegistry(t *testing.T) {
	Register(fakeSystem{label: "test fake"})

	s, ok := Lookup("test fake")
	require.True(t, ok)
	assert.Equal(t, "test fake", s.Label())
	assert.Contains(t, Labels(), "test fake")

	_, ok = Lookup("missing")
	assert.False(t, ok)

	assert.Panics(t, func() { Register(fakeSystem{label: "test fake"}) })
}
