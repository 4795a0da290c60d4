package core

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParameters_KeepsOrder(t *testing.T) {
	var p Parameters
	err := json.Unmarshal([]byte(`{"zeta": 1, "alpha": "a", "mid": {"nested": true}, "list": [1, "x"]}`), &p)
	require.NoError(t, err)

	require.Equal(t, []string{"zeta", "alpha", "mid", "list"}, p.Keys())

	want := Parameters{
		{Key: "zeta", Value: float64(1)},
		{Key: "alpha", Value: "a"},
		{Key: "mid", Value: map[string]any{"nested": true}},
		{Key: "list", Value: []any{float64(1), "x"}},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("unexpected parameters (-want +got):\n%s", diff)
	}

	b, err := json.Marshal(p)
	require.NoError(t, err)
	require.Equal(t, `{"zeta":1,"alpha":"a","mid":{"nested":true},"list":[1,"x"]}`, string(b))
}

func TestParameters_Set(t *testing.T) {
	p := Parameters{}
	p.Set("b", 1)
	p.Set("a", 2)
	p.Set("b", 3)

	require.Equal(t, []string{"b", "a"}, p.Keys())

	v, ok := p.Get("b")
	require.True(t, ok)
	require.Equal(t, 3, v)

	_, ok = p.Get("missing")
	require.False(t, ok)
}

func TestParameters_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    Parameters
	}{
		{name: "null", input: `null`, want: nil},
		{name: "empty", input: `{}`, want: Parameters{}},
		{name: "array", input: `[1,2]`, wantErr: true},
		{name: "string", input: `"x"`, wantErr: true},
		{name: "duplicate key keeps first position", input: `{"a":1,"b":2,"a":3}`, want: Parameters{{Key: "a", Value: float64(3)}, {Key: "b", Value: float64(2)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Parameters
			err := json.Unmarshal([]byte(tt.input), &p)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, p)
		})
	}
}

func TestParameters_MarshalEmpty(t *testing.T) {
	b, err := json.Marshal(Parameters(nil))
	require.NoError(t, err)
	require.Equal(t, `{}`, string(b))
}
