package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"zero frame pool size", func(c *Config) { c.FramePoolSize = 0 }, true},
		{"frame pool size at queue capacity", func(c *Config) { c.FramePoolSize = queueCapacity }, true},
		{"frame pool size one below capacity", func(c *Config) { c.FramePoolSize = queueCapacity - 1 }, false},
		{"negative exposure patch window", func(c *Config) { c.ExposurePatchWindow = -1 }, true},
		{"zero bootstrap gravity threshold", func(c *Config) { c.BootstrapGravityThresholdDeg = 0 }, true},
		{"zero aligned search gravity threshold", func(c *Config) { c.AlignedSearchGravityThresholdDeg = 0 }, true},
		{"zero aligned search min tolerance", func(c *Config) { c.AlignedSearchMinToleranceDeg = 0 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := DefaultConfig()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigBuilders(t *testing.T) {
	t.Parallel()

	c := DefaultConfig().WithFramePoolSize(2).WithExposurePatchWindow(0)
	assert.Equal(t, 2, c.FramePoolSize)
	assert.Equal(t, 0, int(c.ExposurePatchWindow))
	require.NoError(t, c.Validate())
}
