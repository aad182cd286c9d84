package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const presetFixture = `presets:
  classic:
    description: "经典参数"
    ma_period: 20
    rsi_period: 14

  scalp:
    ma_period: 9
    rsi_period: 7
    params:
      rsi_oversold: 25
    schema:
      type: object
      properties:
        rsi_oversold:
          type: number
          minimum: 0
          maximum: 50
`

func writePresetFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistryLoad(t *testing.T) {
	r, err := NewRegistry(writePresetFile(t, presetFixture))
	require.NoError(t, err)

	t.Run("快照与查询", func(t *testing.T) {
		snap := r.Snapshot()
		assert.Len(t, snap.Presets, 2)
		assert.Equal(t, []string{"classic", "scalp"}, r.IDs())

		p, ok := r.Preset("classic")
		require.True(t, ok)
		assert.Equal(t, 20, p.MAPeriod)
		assert.Equal(t, 14, p.RSIPeriod)
		assert.Equal(t, "经典参数", p.Description)

		_, ok = r.Preset("missing")
		assert.False(t, ok)
	})

	t.Run("缺省值填充", func(t *testing.T) {
		path := writePresetFile(t, "presets:\n  bare: {}\n")
		r2, err := NewRegistry(path)
		require.NoError(t, err)
		p, ok := r2.Preset("bare")
		require.True(t, ok)
		assert.Equal(t, 20, p.MAPeriod)
		assert.Equal(t, 14, p.RSIPeriod)
	})

	t.Run("空路径报错", func(t *testing.T) {
		_, err := NewRegistry("  ")
		assert.Error(t, err)
	})

	t.Run("未知字段拒绝", func(t *testing.T) {
		path := writePresetFile(t, "presets:\n  x:\n    ma_period: 5\n    bogus_field: 1\n")
		_, err := NewRegistry(path)
		assert.Error(t, err)
	})
}

func TestRegistryValidate(t *testing.T) {
	r, err := NewRegistry(writePresetFile(t, presetFixture))
	require.NoError(t, err)

	t.Run("schema 通过", func(t *testing.T) {
		p, err := r.Validate("scalp", map[string]any{"rsi_oversold": 30.0})
		require.NoError(t, err)
		assert.Equal(t, 9, p.MAPeriod)
	})

	t.Run("schema 拒绝越界", func(t *testing.T) {
		_, err := r.Validate("scalp", map[string]any{"rsi_oversold": 80.0})
		assert.Error(t, err)
	})

	t.Run("无 schema 放行", func(t *testing.T) {
		_, err := r.Validate("classic", map[string]any{"anything": true})
		assert.NoError(t, err)
	})

	t.Run("未知预设", func(t *testing.T) {
		_, err := r.Validate("missing", nil)
		assert.Error(t, err)
	})
}
