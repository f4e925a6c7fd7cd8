package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSelector is returned when an entity selector cannot be parsed.
var ErrUnknownSelector = errors.New("unknown entity selector")

// EntitySelector identifies which remote record type and timestamp field a
// count targets.
type EntitySelector int

const (
	// ItemsCreated counts items by their createdAt timestamp.
	ItemsCreated EntitySelector = iota
	// ScoreResultsUpdated counts score results by their updatedAt timestamp.
	ScoreResultsUpdated
)

// AllSelectors returns every selector in display order.
func AllSelectors() []EntitySelector {
	return []EntitySelector{ItemsCreated, ScoreResultsUpdated}
}

// String returns the stable identifier used in cache keys and APIs.
func (s EntitySelector) String() string {
	switch s {
	case ItemsCreated:
		return "items_created"
	case ScoreResultsUpdated:
		return "score_results_updated"
	default:
		return fmt.Sprintf("selector(%d)", int(s))
	}
}

// DisplayName returns a short human label.
func (s EntitySelector) DisplayName() string {
	switch s {
	case ItemsCreated:
		return "Items"
	case ScoreResultsUpdated:
		return "Score Results"
	default:
		return "Unknown"
	}
}

// Next cycles to the next selector.
func (s EntitySelector) Next() EntitySelector {
	return (s + 1) % EntitySelector(len(AllSelectors()))
}

// MarshalText implements encoding.TextMarshaler.
func (s EntitySelector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *EntitySelector) UnmarshalText(text []byte) error {
	parsed, err := ParseEntitySelector(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseEntitySelector parses a selector name, accepting a few common aliases.
func ParseEntitySelector(name string) (EntitySelector, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	switch normalized {
	case "items_created", "items", "item", "itemscreated":
		return ItemsCreated, nil
	case "score_results_updated", "score_results", "scoreresults", "scoreresultsupdated", "scores":
		return ScoreResultsUpdated, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSelector, name)
	}
}
