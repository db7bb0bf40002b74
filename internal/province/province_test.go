package province

import (
	"io"
	"log/slog"
	"testing"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_BundledDataset(t *testing.T) {
	c := Load(testLogger())
	all := c.All()
	require.Len(t, all, 81)

	plates := make(map[int]bool, len(all))
	for _, p := range all {
		assert.False(t, plates[p.Plate], "duplicate plate %d", p.Plate)
		plates[p.Plate] = true

		pt := p.Point()
		assert.True(t, domain.Turkey.QueryBounds.Contains(pt.Lat, pt.Lon), "%s outside Turkey: %+v", p.Name, pt)
	}
}

func TestLookup(t *testing.T) {
	c := Load(testLogger())

	tests := []struct {
		query string
		want  string
		plate int
	}{
		{"İstanbul", "İstanbul", 34},
		{"istanbul", "İstanbul", 34},
		{"ISTANBUL", "İstanbul", 34},
		{"  izmir ", "İzmir", 35},
		{"Sanliurfa", "Şanlıurfa", 63},
		{"ŞANLIURFA", "Şanlıurfa", 63},
		{"igdir", "Iğdır", 76},
		{"Ankara", "Ankara", 6},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p, err := c.Lookup(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name)
			assert.Equal(t, tt.plate, p.Plate)
		})
	}

	_, err := c.Lookup("Atlantis")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_Coordinates(t *testing.T) {
	c := Load(testLogger())
	p, err := c.Lookup("Ankara")
	require.NoError(t, err)
	assert.Equal(t, domain.Point{Lat: 39.9334, Lon: 32.8597}, p.Point())
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"not yaml":       "{{{",
		"empty":          "[]",
		"missing name":   "- plate: 1\n  location: [1, 2]\n",
		"short location": "- name: X\n  plate: 1\n  location: [1]\n",
		"out of range":   "- name: X\n  plate: 1\n  location: [91, 2]\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestFallback(t *testing.T) {
	c := New(fallback)
	require.Len(t, c.All(), 3)
	p, err := c.Lookup("izmir")
	require.NoError(t, err)
	assert.Equal(t, []float64{38.4237, 27.1428}, p.Location)
}

func TestAll_ReturnsCopy(t *testing.T) {
	c := New(fallback)
	all := c.All()
	all[0].Name = "changed"
	assert.Equal(t, "İstanbul", c.All()[0].Name)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "istanbul", Fold("İSTANBUL"))
	assert.Equal(t, "igdir", Fold("IĞDIR"))
	assert.Equal(t, "canakkale", Fold("Çanakkale"))
}
