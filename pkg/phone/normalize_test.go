package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n, err := NewNormalizer("IN", "")
	require.NoError(t, err)
	require.Equal(t, "91", n.CallingCode())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ten digits gets default code", "9876543210", "+919876543210"},
		{"plus prefix kept as-is", "+1 415-555-0100", "+14155550100"},
		{"nine digits bare prefix", "441555501", "+441555501"},
		{"formatted national number", "(987) 654-3210", "+919876543210"},
		{"eleven digits bare prefix", "14155550100", "+14155550100"},
		{"surrounding whitespace", "  +44 20 7946 0958 ", "+442079460958"},
		{"inner plus is stripped", "98765+43210", "+919876543210"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_NoDigits(t *testing.T) {
	n, err := NewNormalizer("IN", "")
	require.NoError(t, err)

	for _, in := range []string{"", "   ", "+", "abc"} {
		_, err := n.Normalize(in)
		assert.ErrorIs(t, err, ErrEmpty, in)
	}
	assert.Equal(t, "abc", n.Canonical(" abc "))
}

func TestNewNormalizer(t *testing.T) {
	n, err := NewNormalizer("US", "")
	require.NoError(t, err)
	assert.Equal(t, "1", n.CallingCode())

	n, err = NewNormalizer("", "+44")
	require.NoError(t, err)
	assert.Equal(t, "44", n.CallingCode())

	got, err := n.Normalize("2079460958")
	require.NoError(t, err)
	assert.Equal(t, "+442079460958", got)

	_, err = NewNormalizer("ZZ", "")
	assert.Error(t, err)

	_, err = NewNormalizer("", "x1")
	assert.Error(t, err)
}
