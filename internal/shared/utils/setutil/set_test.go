package setutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_Basics(t *testing.T) {
	s := New("res_b", "res_a", "res_b")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("res_a"))
	assert.False(t, s.Has("res_c"))

	s.Add("res_c")
	s.Remove("res_a")
	assert.Equal(t, []string{"res_b", "res_c"}, s.Sorted())
}

func TestSet_CloneIsIndependent(t *testing.T) {
	s := New(1, 2)
	c := s.Clone()
	c.Add(3)
	s.Remove(1)

	assert.Equal(t, []int{2}, s.Sorted())
	assert.Equal(t, []int{1, 2, 3}, c.Sorted())
}

func TestSet_EmptySorted(t *testing.T) {
	assert.Empty(t, New[string]().Sorted())
}
