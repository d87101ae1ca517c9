package interpret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantLat  float64
		wantLon  float64
		wantsHit bool
	}{
		{
			name:    "plain pair",
			text:    "what is near 19.07 72.88",
			wantLat: 19.07, wantLon: 72.88, wantsHit: true,
		},
		{
			name:    "hemisphere letters",
			text:    "images around 19.07 n 72.87 e",
			wantLat: 19.07, wantLon: 72.87, wantsHit: true,
		},
		{
			name:    "south and west negate",
			text:    "buoys at 33.9 s 18.4 w",
			wantLat: -33.9, wantLon: -18.4, wantsHit: true,
		},
		{
			name:    "following word is not a hemisphere",
			text:    "what is near 19.07 72.88 within 100 km",
			wantLat: 19.07, wantLon: 72.88, wantsHit: true,
		},
		{
			name:    "north letter followed by word",
			text:    "19.07 n 72.88 western ghats",
			wantLat: 19.07, wantLon: 72.88, wantsHit: true,
		},
		{
			name:     "single number",
			text:     "within 100 km of mumbai",
			wantsHit: false,
		},
		{
			name:     "out of range latitude",
			text:     "at 99.0 72.88",
			wantsHit: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt, ok := parseCoordinates(tt.text)
			require.Equal(t, tt.wantsHit, ok)
			if !ok {
				return
			}
			assert.InDelta(t, tt.wantLat, pt.Lat, 0.001)
			assert.InDelta(t, tt.wantLon, pt.Lon, 0.001)
		})
	}
}

func TestNormalizeDropsBarePunctuationTokens(t *testing.T) {
	n := DefaultNormalizer{}

	tests := []struct {
		raw        string
		wantEmpty  bool
		wantTokens []string
	}{
		{raw: "?!.", wantEmpty: true},
		{raw: "-- . °", wantEmpty: true},
		{raw: "What is INSAT-3D?", wantTokens: []string{"what", "is", "insat-3d"}},
		{raw: "near 19.07° n", wantTokens: []string{"near", "19.07°", "n"}},
	}
	for _, tt := range tests {
		normalized, tokens := n.Normalize(tt.raw)
		if tt.wantEmpty {
			assert.Empty(t, normalized, tt.raw)
			assert.Nil(t, tokens, tt.raw)
			continue
		}
		assert.Equal(t, tt.wantTokens, tokens, tt.raw)
	}
}
