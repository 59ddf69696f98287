// Package fixture describes the channel layout of each fixture type and
// renders fixture properties into DMX channel values.
package fixture

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bbernstein/lacylights-live/internal/state"
)

//go:embed profiles.yaml
var builtinProfiles []byte

// ErrUnknownType is returned when a fixture type has no profile.
var ErrUnknownType = errors.New("unknown fixture type")

var propertyPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(?:\[(\d+)\])?$`)

// Channel is one DMX channel of a profile.
type Channel struct {
	Name     string `yaml:"name" json:"name"`
	Property string `yaml:"property,omitempty" json:"property,omitempty"`
	Default  int    `yaml:"default,omitempty" json:"default,omitempty"`

	property  string
	component int
}

// Profile is the channel layout of a fixture type.
type Profile struct {
	Type         string    `yaml:"-" json:"type"`
	Manufacturer string    `yaml:"manufacturer" json:"manufacturer"`
	Channels     []Channel `yaml:"channels" json:"channels"`
}

// ChannelCount returns the number of DMX channels the fixture occupies.
func (p Profile) ChannelCount() int {
	return len(p.Channels)
}

// Render returns the channel values for props in DMX order. Channels whose
// property is absent send their default.
func (p Profile) Render(props state.Properties) []byte {
	out := make([]byte, len(p.Channels))
	for i, ch := range p.Channels {
		v := ch.Default
		if ch.property != "" {
			if val, ok := props[ch.property]; ok {
				v = val.Component(ch.component)
			}
		}
		out[i] = byte(clamp(v))
	}
	return out
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

type document struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Catalog is a set of profiles keyed by fixture type.
type Catalog struct {
	profiles map[string]Profile
}

// NewCatalog returns the built-in profiles, overlaid by the profiles in the
// file at overlayPath when it is not empty.
func NewCatalog(overlayPath string) (*Catalog, error) {
	c, err := ParseCatalog(builtinProfiles)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in profiles: %w", err)
	}
	if overlayPath == "" {
		return c, nil
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture profiles: %w", err)
	}
	overlay, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", overlayPath, err)
	}
	for name, p := range overlay.profiles {
		c.profiles[name] = p
	}
	return c, nil
}

// ParseCatalog reads a YAML profile document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	c := &Catalog{profiles: make(map[string]Profile, len(doc.Profiles))}
	for name, p := range doc.Profiles {
		if len(p.Channels) == 0 {
			return nil, fmt.Errorf("profile %s has no channels", name)
		}
		if len(p.Channels) > state.UniverseSize {
			return nil, fmt.Errorf("profile %s has %d channels", name, len(p.Channels))
		}
		p.Type = name
		for i := range p.Channels {
			ch := &p.Channels[i]
			if ch.Default < 0 || ch.Default > 255 {
				return nil, fmt.Errorf("profile %s channel %d: default %d out of range", name, i+1, ch.Default)
			}
			if ch.Property == "" {
				continue
			}
			m := propertyPattern.FindStringSubmatch(ch.Property)
			if m == nil {
				return nil, fmt.Errorf("profile %s channel %d: invalid property %q", name, i+1, ch.Property)
			}
			ch.property = m[1]
			if m[2] != "" {
				ch.component, _ = strconv.Atoi(m[2])
			}
		}
		c.profiles[name] = p
	}
	return c, nil
}

// Types returns the known fixture types in alphabetical order.
func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.profiles))
	for name := range c.profiles {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Lookup returns the profile of a fixture type.
func (c *Catalog) Lookup(fixtureType string) (Profile, error) {
	p, ok := c.profiles[fixtureType]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownType, fixtureType)
	}
	return p, nil
}
