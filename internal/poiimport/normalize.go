package poiimport

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sincitytravels/navigator/internal/models"
	"go.uber.org/zap"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,20}$`)

const (
	defaultCity  = "Las Vegas"
	defaultState = "NV"
)

// Skip explains why a record was left out of the import
type Skip struct {
	Source string
	ID     string
	Reason string
}

// Validate trims and defaults each record and drops the ones the datastore
// would reject. Duplicate ids keep the first record seen.
func Validate(records []Record, logger *zap.Logger) ([]Record, []Skip) {
	if logger == nil {
		logger = zap.NewNop()
	}

	valid := make([]Record, 0, len(records))
	var skipped []Skip
	seen := make(map[string]string, len(records))

	for _, rec := range records {
		rec = normalize(rec)

		if reason := rejectReason(rec); reason != "" {
			skipped = append(skipped, Skip{Source: rec.Source, ID: rec.ID, Reason: reason})
			continue
		}

		if first, dup := seen[rec.ID]; dup {
			logger.Warn("duplicate POI id",
				zap.String("id", rec.ID),
				zap.String("kept", first),
				zap.String("dropped", rec.Source),
			)
			skipped = append(skipped, Skip{Source: rec.Source, ID: rec.ID, Reason: "duplicate id"})
			continue
		}
		seen[rec.ID] = rec.Source
		valid = append(valid, rec)
	}

	logger.Info("validated POI records",
		zap.Int("total", len(records)),
		zap.Int("valid", len(valid)),
		zap.Int("skipped", len(skipped)),
	)
	return valid, skipped
}

func normalize(rec Record) Record {
	rec.ID = strings.TrimSpace(rec.ID)
	rec.Name = strings.TrimSpace(rec.Name)
	rec.Category = strings.ToLower(strings.TrimSpace(rec.Category))
	rec.CasinoProperty = strings.TrimSpace(rec.CasinoProperty)
	if rec.Location.City == "" {
		rec.Location.City = defaultCity
	}
	if rec.Location.State == "" {
		rec.Location.State = defaultState
	}
	return rec
}

func rejectReason(rec Record) string {
	switch {
	case rec.ID == "":
		return "missing id"
	case !idPattern.MatchString(rec.ID):
		return fmt.Sprintf("invalid id %q", rec.ID)
	case rec.Name == "":
		return "missing name"
	case !models.ValidCategory(rec.Category):
		return fmt.Sprintf("unknown category %q", rec.Category)
	}

	lat, lng := rec.Location.Coordinates.Lat, rec.Location.Coordinates.Lng
	if lat == nil || lng == nil || *lat == 0 || *lng == 0 {
		return "missing coordinates"
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
		return "coordinates out of range"
	}
	return ""
}
