package fixture

import (
	"errors"
	"fmt"

	"github.com/lucsky/cuid"

	"github.com/bbernstein/lacylights-live/internal/state"
)

// ErrAddressRange is returned when fixtures would not fit in a universe.
var ErrAddressRange = errors.New("address out of range")

// BulkRequest describes one or more fixtures of the same type patched back
// to back.
type BulkRequest struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Universe int    `json:"universe"`
	Address  int    `json:"address"`
	Amount   int    `json:"amount,omitempty"`
}

// NewFixtures creates the fixtures of req. Each fixture starts right after
// the previous one, and names are numbered from 1 when more than one fixture
// is created.
func (c *Catalog) NewFixtures(req BulkRequest) ([]state.Fixture, error) {
	profile, err := c.Lookup(req.Type)
	if err != nil {
		return nil, err
	}
	amount := req.Amount
	if amount <= 0 {
		amount = 1
	}
	if req.Universe < 0 {
		return nil, fmt.Errorf("invalid universe %d", req.Universe)
	}
	if req.Address < 1 || req.Address > state.UniverseSize {
		return nil, fmt.Errorf("%w: %d", ErrAddressRange, req.Address)
	}
	offset := profile.ChannelCount()
	if last := req.Address + offset*amount - 1; last > state.UniverseSize {
		return nil, fmt.Errorf("%w: %d x %s at %d ends on channel %d", ErrAddressRange, amount, req.Type, req.Address, last)
	}

	fixtures := make([]state.Fixture, amount)
	for i := range fixtures {
		name := req.Name
		if amount > 1 {
			name = fmt.Sprintf("%s %d", req.Name, i+1)
		}
		fixtures[i] = state.Fixture{
			ID:         cuid.New(),
			Type:       req.Type,
			Name:       name,
			Universe:   req.Universe,
			Address:    req.Address + offset*i,
			Properties: state.Properties{},
		}
	}
	return fixtures, nil
}

// RenderFrames renders every fixture into per-universe channel frames of
// state.UniverseSize values. Fixtures on universes beyond the given count
// are skipped. Channels past the end of a universe are dropped. The error
// joins the fixtures that could not be rendered.
func (c *Catalog) RenderFrames(fixtures []state.Fixture, universes int) ([][]int, error) {
	frames := make([][]int, universes)
	for i := range frames {
		frames[i] = make([]int, state.UniverseSize)
	}

	var errs []error
	for _, f := range fixtures {
		if f.Universe < 0 || f.Universe >= universes {
			continue
		}
		profile, err := c.Lookup(f.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("fixture %s: %w", f.ID, err))
			continue
		}
		if f.Address < 1 || f.Address > state.UniverseSize {
			errs = append(errs, fmt.Errorf("fixture %s: %w: %d", f.ID, ErrAddressRange, f.Address))
			continue
		}
		values := profile.Render(f.Properties)
		frame := frames[f.Universe]
		for i, v := range values {
			ch := f.Address - 1 + i
			if ch >= len(frame) {
				break
			}
			frame[ch] = int(v)
		}
	}
	return frames, errors.Join(errs...)
}
