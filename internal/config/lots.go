package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"campus_parking/internal/domain"

	"gopkg.in/yaml.v3"
)

var ErrInvalidCatalogue = errors.New("invalid lot catalogue")

var defaultCampusCenter = domain.Coordinate{Lat: 51.3782, Lng: -2.3264}

// defaultLots is used when LOTS_FILE is unset.
var defaultLots = []domain.Lot{
	{
		ID:          "Great Hall",
		Capacity:    31,
		Coordinate:  domain.Coordinate{Lat: 51.3790, Lng: -2.3270},
		Rate:        "£1.50/hour",
		Location:    "North side of the Great Hall, entrance from Campus Road",
		Restriction: "Staff and visitors",
	},
	{
		ID:          "Library",
		Capacity:    45,
		Coordinate:  domain.Coordinate{Lat: 51.3776, Lng: -2.3251},
		Rate:        "£1.00/hour",
		Location:    "Behind the main library",
		Restriction: "Students with permit",
	},
	{
		ID:          "Sports Centre",
		Capacity:    60,
		Coordinate:  domain.Coordinate{Lat: 51.3769, Lng: -2.3290},
		Rate:        "Free after 18:00",
		Location:    "Sports Centre east car park",
		Restriction: "Open to all",
	},
	{
		ID:          "Engineering",
		Capacity:    24,
		Coordinate:  domain.Coordinate{Lat: 51.3795, Lng: -2.3238},
		Rate:        "£2.00/hour",
		Location:    "Engineering block service yard",
		Restriction: "Staff only",
	},
}

type catalogueFile struct {
	Lots []domain.Lot `yaml:"lots"`
}

// LoadLots reads the lot catalogue from path, or returns the built-in campus lots when path
// is empty. Relative feed directories are resolved against frameRoot.
func LoadLots(path, frameRoot string) ([]domain.Lot, error) {
	var lots []domain.Lot
	if path == "" {
		lots = append(lots, defaultLots...)
	} else {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read lot catalogue %s: %w", path, err)
		}
		var file catalogueFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalogue, err)
		}
		lots = file.Lots
	}

	if err := validateLots(lots); err != nil {
		return nil, err
	}

	for i := range lots {
		if lots[i].FeedPath != "" && frameRoot != "" && !filepath.IsAbs(lots[i].FeedPath) {
			lots[i].FeedPath = filepath.Join(frameRoot, lots[i].FeedPath)
		}
	}
	return lots, nil
}

func validateLots(lots []domain.Lot) error {
	if len(lots) == 0 {
		return fmt.Errorf("%w: no lots configured", ErrInvalidCatalogue)
	}
	seen := make(map[string]bool, len(lots))
	for _, lot := range lots {
		if lot.ID == "" {
			return fmt.Errorf("%w: lot with empty id", ErrInvalidCatalogue)
		}
		if seen[lot.ID] {
			return fmt.Errorf("%w: duplicate lot id %q", ErrInvalidCatalogue, lot.ID)
		}
		if lot.Capacity <= 0 {
			return fmt.Errorf("%w: lot %q has capacity %d", ErrInvalidCatalogue, lot.ID, lot.Capacity)
		}
		seen[lot.ID] = true
	}
	return nil
}
