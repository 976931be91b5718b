package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParamsValid(t *testing.T) {
	p := DefaultParams()
	assert.NoError(t, p.Validate())
}

func TestBuilderOverrides(t *testing.T) {
	b := NewBuilder().WithMinSectionSize(4).WithMaxDelay(5)
	p, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 4, p.Node.MinSectionSize)
	assert.Equal(t, uint64(5), p.MaxDelay)
}

func TestFromPresetUnknown(t *testing.T) {
	_, err := FromPreset("bogus")
	assert.Error(t, err)
}

func TestInvalidMinSectionSize(t *testing.T) {
	_, err := NewBuilder().WithMinSectionSize(0).Build()
	assert.ErrorIs(t, err, ErrInvalidMinSectionSize)
}
