// Package province provides the bundled catalog of Turkish provinces used to
// resolve a province name to a search centre.
package province

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no province matches a name.
var ErrNotFound = errors.New("province not found")

//go:embed provinces.yaml
var bundled []byte

// fallback is served when the bundled dataset cannot be parsed.
var fallback = []Province{
	{Name: "İstanbul", Plate: 34, Location: []float64{41.0082, 28.9784}},
	{Name: "Ankara", Plate: 6, Location: []float64{39.9334, 32.8597}},
	{Name: "İzmir", Plate: 35, Location: []float64{38.4237, 27.1428}},
}

// Province is one catalog entry. Location is [lat, lon].
type Province struct {
	Name     string    `yaml:"name" json:"name"`
	Plate    int       `yaml:"plate" json:"plate"`
	Location []float64 `yaml:"location" json:"location"`
}

// Point returns the province centre.
func (p Province) Point() domain.Point {
	return domain.Point{Lat: p.Location[0], Lon: p.Location[1]}
}

// Catalog is an immutable, name-indexed list of provinces.
type Catalog struct {
	provinces []Province
	byKey     map[string]int
}

// Load parses the bundled dataset, falling back to a small built-in list
// when it is malformed.
func Load(logger *slog.Logger) *Catalog {
	provinces, err := Parse(bundled)
	if err != nil {
		logger.Error("bundled province dataset unreadable, using fallback", "error", err)
		provinces = fallback
	}
	return New(provinces)
}

// Parse decodes and validates a YAML province list.
func Parse(data []byte) ([]Province, error) {
	var provinces []Province
	if err := yaml.Unmarshal(data, &provinces); err != nil {
		return nil, fmt.Errorf("decode provinces: %w", err)
	}
	if len(provinces) == 0 {
		return nil, errors.New("decode provinces: empty list")
	}
	for i, p := range provinces {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("province %d: missing name", i)
		}
		if len(p.Location) != 2 {
			return nil, fmt.Errorf("province %q: location must be [lat, lon], got %d values", p.Name, len(p.Location))
		}
		lat, lon := p.Location[0], p.Location[1]
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("province %q: location out of range", p.Name)
		}
	}
	return provinces, nil
}

// New indexes provinces by folded name. Later duplicates are ignored.
func New(provinces []Province) *Catalog {
	c := &Catalog{
		provinces: provinces,
		byKey:     make(map[string]int, len(provinces)),
	}
	for i, p := range provinces {
		key := Fold(p.Name)
		if _, dup := c.byKey[key]; !dup {
			c.byKey[key] = i
		}
	}
	return c
}

// All returns the provinces in catalog order.
func (c *Catalog) All() []Province {
	out := make([]Province, len(c.provinces))
	copy(out, c.provinces)
	return out
}

// Lookup finds a province by name, ignoring case and Turkish diacritics, so
// "istanbul", "ISTANBUL" and "İstanbul" all match.
func (c *Catalog) Lookup(name string) (Province, error) {
	i, ok := c.byKey[Fold(name)]
	if !ok {
		return Province{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.provinces[i], nil
}

var asciiFold = strings.NewReplacer(
	"ı", "i",
	"ş", "s",
	"ğ", "g",
	"ü", "u",
	"ö", "o",
	"ç", "c",
	"â", "a",
	"î", "i",
	"û", "u",
)

// Fold normalizes a province name for comparison.
func Fold(name string) string {
	lower := strings.ToLowerSpecial(unicode.TurkishCase, strings.TrimSpace(name))
	return asciiFold.Replace(lower)
}
