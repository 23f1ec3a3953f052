package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1.2.3", "v1.2.3"},
		{"v1.2.3", "v1.2.3"},
		{" 0.1.0 ", "v0.1.0"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestIsRelease(t *testing.T) {
	assert.True(t, IsRelease("1.4.0"))
	assert.True(t, IsRelease("v2.0.1"))
	assert.False(t, IsRelease("v2.0.1-rc.1"))
	assert.False(t, IsRelease("dev"))
	assert.False(t, IsRelease(""))
}

func TestCurrent(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "dev"
	assert.Equal(t, "dev", Current())

	Version = "1.3.0"
	assert.Equal(t, "v1.3.0", Current())
}
