package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacylights-live/internal/state"
)

func TestNewFixtures_Single(t *testing.T) {
	c, err := NewCatalog("")
	require.NoError(t, err)

	fixtures, err := c.NewFixtures(BulkRequest{Type: "MiniLed", Name: "Spot", Address: 10})
	require.NoError(t, err)
	require.Len(t, fixtures, 1)

	f := fixtures[0]
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "Spot", f.Name)
	assert.Equal(t, "MiniLed", f.Type)
	assert.Equal(t, 10, f.Address)
	assert.NotNil(t, f.Properties)
	assert.Empty(t, f.Properties)
}

func TestNewFixtures_Bulk(t *testing.T) {
	c, err := NewCatalog("")
	require.NoError(t, err)

	fixtures, err := c.NewFixtures(BulkRequest{Type: "FunGenerationSeParQuadLedRgbUv", Name: "Par", Universe: 1, Address: 1, Amount: 3})
	require.NoError(t, err)
	require.Len(t, fixtures, 3)

	ids := map[string]bool{}
	for i, f := range fixtures {
		assert.Equal(t, 1+8*i, f.Address)
		assert.Equal(t, 1, f.Universe)
		ids[f.ID] = true
	}
	assert.Len(t, ids, 3)
	assert.Equal(t, "Par 1", fixtures[0].Name)
	assert.Equal(t, "Par 3", fixtures[2].Name)
}

func TestNewFixtures_Errors(t *testing.T) {
	c, err := NewCatalog("")
	require.NoError(t, err)

	tests := []struct {
		name string
		req  BulkRequest
		want error
	}{
		{"unknown type", BulkRequest{Type: "Nope", Address: 1}, ErrUnknownType},
		{"address zero", BulkRequest{Type: "Dimmer", Address: 0}, ErrAddressRange},
		{"address too high", BulkRequest{Type: "Dimmer", Address: 513}, ErrAddressRange},
		{"overrun", BulkRequest{Type: "FunGenerationSeParQuadLedRgbUv", Address: 500, Amount: 2}, ErrAddressRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.NewFixtures(tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	fixtures, err := c.NewFixtures(BulkRequest{Type: "Dimmer", Address: 512})
	require.NoError(t, err)
	assert.Len(t, fixtures, 1)
}

func TestRenderFrames(t *testing.T) {
	c, err := NewCatalog("")
	require.NoError(t, err)

	fixtures := []state.Fixture{
		{ID: "a", Type: "Dimmer", Universe: 0, Address: 1, Properties: state.Properties{"dimmer": state.Int(255)}},
		{ID: "b", Type: "FunGenerationSeParQuadLedRgbUv", Universe: 0, Address: 10, Properties: state.Properties{"color": state.RGB(1, 2, 3)}},
		{ID: "c", Type: "Dimmer", Universe: 1, Address: 512, Properties: state.Properties{"dimmer": state.Int(9)}},
		{ID: "d", Type: "Dimmer", Universe: 5, Address: 1},
		{ID: "e", Type: "FunGenerationSeParQuadLedRgbUv", Universe: 1, Address: 510, Properties: state.Properties{"color": state.RGB(4, 5, 6)}},
	}

	frames, err := c.RenderFrames(fixtures, 2)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Len(t, frames[0], state.UniverseSize)
	assert.Equal(t, 255, frames[0][0])
	assert.Equal(t, []int{1, 2, 3}, frames[0][9:12])
	assert.Equal(t, []int{4, 5, 6}, frames[1][509:512])
}

func TestRenderFrames_UnknownType(t *testing.T) {
	c, err := NewCatalog("")
	require.NoError(t, err)

	frames, err := c.RenderFrames([]state.Fixture{
		{ID: "x", Type: "Nope", Address: 1},
		{ID: "y", Type: "Dimmer", Address: 2, Properties: state.Properties{"dimmer": state.Int(3)}},
	}, 1)
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Equal(t, 3, frames[0][1])
}
