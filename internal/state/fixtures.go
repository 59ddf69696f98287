package state

import (
	"cmp"
	"fmt"
	"slices"
)

// reduceFixtures handles the fixtureManager slice.
func reduceFixtures(prev []Fixture, action Action) ([]Fixture, error) {
	switch a := action.(type) {
	case AddFixture:
		if indexOfFixture(prev, a.Fixture.ID) >= 0 {
			return prev, fmt.Errorf("add fixture %q: %w", a.Fixture.ID, ErrDuplicateID)
		}
		fixture := a.Fixture
		fixture.Properties = Properties{}.Merge(a.Fixture.Properties)
		return append(slices.Clip(prev), fixture), nil

	case SetFixtureProperties:
		i := indexOfFixture(prev, a.FixtureID)
		if i < 0 {
			return prev, fmt.Errorf("set properties of fixture %q: %w", a.FixtureID, ErrNotFound)
		}
		next := slices.Clone(prev)
		next[i].Properties = prev[i].Properties.Merge(a.Properties)
		return next, nil

	case SetAllFixtureProperties:
		return mergeFixtureBatch(prev, a.FixtureBatch), nil

	case ResetFixtureProperties:
		i := indexOfFixture(prev, a.FixtureID)
		if i < 0 {
			return prev, fmt.Errorf("reset properties of fixture %q: %w", a.FixtureID, ErrNotFound)
		}
		next := slices.Clone(prev)
		next[i].Properties = Properties{}
		return next, nil

	case RemoveFixture:
		return removeFixture(prev, a.FixtureID)

	case RemoveFixtureFromEverywhere:
		return removeFixture(prev, a.FixtureID)
	}
	return prev, nil
}

// mergeFixtureBatch applies a batch of property patches in fixture order.
// Ids that do not match a fixture are skipped.
func mergeFixtureBatch(prev []Fixture, batch map[string]Properties) []Fixture {
	type target struct {
		index int
		patch Properties
	}
	targets := make([]target, 0, len(batch))
	for id, patch := range batch {
		if i := indexOfFixture(prev, id); i >= 0 {
			targets = append(targets, target{index: i, patch: patch})
		}
	}
	if len(targets) == 0 {
		return prev
	}
	slices.SortFunc(targets, func(a, b target) int { return cmp.Compare(a.index, b.index) })

	next := slices.Clone(prev)
	for _, t := range targets {
		next[t.index].Properties = next[t.index].Properties.Merge(t.patch)
	}
	return next
}

func removeFixture(prev []Fixture, id string) ([]Fixture, error) {
	i := indexOfFixture(prev, id)
	if i < 0 {
		return prev, fmt.Errorf("remove fixture %q: %w", id, ErrNotFound)
	}
	return slices.Delete(slices.Clone(prev), i, i+1), nil
}

func indexOfFixture(fixtures []Fixture, id string) int {
	return indexByID(fixtures, id, func(f Fixture) string { return f.ID })
}
