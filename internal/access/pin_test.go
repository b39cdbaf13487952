package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePIN(t *testing.T) {
	for _, length := range []int{4, 6, 8, 10} {
		pin, err := GeneratePIN(length)
		require.NoError(t, err)
		assert.Len(t, pin, length)
		for _, c := range pin {
			assert.True(t, c >= '0' && c <= '9', "pin %q contains non-digit %q", pin, c)
		}
	}
}

func TestGeneratePINLengthBounds(t *testing.T) {
	for _, length := range []int{0, 3, 11, -1} {
		_, err := GeneratePIN(length)
		assert.Error(t, err, "length %d should be rejected", length)
	}
}

func TestHashPIN(t *testing.T) {
	h := HashPIN("123456")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashPIN("123456"))
	assert.NotEqual(t, h, HashPIN("123457"))
}

func TestMaskPIN(t *testing.T) {
	tests := []struct {
		pin  string
		want string
	}{
		{"123456", "****56"},
		{"1234", "**34"},
		{"12", "**"},
		{"1", "*"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskPIN(tt.pin))
	}
}
