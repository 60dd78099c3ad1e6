package formula

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapEnv(cur, prev map[string]float64) Env {
	return EnvFunc(func(name string, lag int) (float64, bool) {
		src := cur
		if lag > 0 {
			src = prev
		}
		v, ok := src[name]
		return v, ok
	})
}

func TestParse_Precedence(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 4 - 3", 3},
		{"12 / 3 / 2", 2},
		{"-2 * 3", -6},
		{"- (1 + 1)", -2},
		{"1.22 * 100", 122},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.NoError(t, err)
			got, err := e.Eval(mapEnv(nil, nil))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestParse_References(t *testing.T) {
	e := MustParse("RI23*365/((RI01+RI02+RI03+RI04)*1.22)")
	env := mapEnv(map[string]float64{
		"RI23": 122, "RI01": 100, "RI02": 0, "RI03": 0, "RI04": 0,
	}, nil)
	got, err := e.Eval(env)
	require.NoError(t, err)
	assert.InDelta(t, 365.0, got, 1e-9)

	refs := Refs(e)
	require.Len(t, refs, 5)
	assert.Equal(t, "RI23", refs[0].Name)
	assert.False(t, UsesLag(e))
}

func TestParse_Prev(t *testing.T) {
	e := MustParse("RI13 / ((RI33 + prev(RI33)) / 2)")
	assert.True(t, UsesLag(e))

	env := mapEnv(map[string]float64{"RI13": 9, "RI33": 200}, map[string]float64{"RI33": 100})
	got, err := e.Eval(env)
	require.NoError(t, err)
	assert.InDelta(t, 0.06, got, 1e-12)
}

func TestEval_Errors(t *testing.T) {
	_, err := MustParse("RI01 / RI25").Eval(mapEnv(map[string]float64{"RI01": 1, "RI25": 0}, nil))
	assert.True(t, errors.Is(err, ErrDivisionByZero))

	_, err = MustParse("RI01 + X").Eval(mapEnv(map[string]float64{"RI01": 1}, nil))
	assert.True(t, errors.Is(err, ErrUnknownRef))
}

func TestParse_Invalid(t *testing.T) {
	for _, src := range []string{"", "1 +", "(1 + 2", "prev RI01", "prev(1)", "1 2", "RI01 % 2"} {
		_, err := Parse(src)
		assert.Error(t, err, "expected error for %q", src)
	}
	assert.Panics(t, func() { MustParse("((") })
}

func TestString_RoundTrips(t *testing.T) {
	e := MustParse("a - prev(b) * 2")
	again, err := Parse(e.String())
	require.NoError(t, err)
	assert.Equal(t, e.String(), again.String())
}
