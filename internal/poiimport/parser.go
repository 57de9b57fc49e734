package poiimport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Record is one POI document as collected by the scraping pipeline
type Record struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Subcategory    string   `json:"subcategory"`
	CasinoProperty string   `json:"casino_property"`
	Location       Location `json:"location"`
	Contact        Contact  `json:"contact"`
	Description    string   `json:"description"`
	Cuisine        []string `json:"cuisine"`
	Features       []string `json:"features"`
	Tags           []string `json:"tags"`
	IsClosed       bool     `json:"is_closed"`

	// Source is the file the record was read from
	Source string `json:"-"`
}

// Location holds the address block of a POI document
type Location struct {
	Coordinates struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"coordinates"`
	Address string      `json:"address"`
	City    string      `json:"city"`
	State   string      `json:"state"`
	Zip     LooseString `json:"zip"`
	Level   LooseString `json:"level"`
	Area    string      `json:"area"`
}

// Contact holds phone and web details
type Contact struct {
	Phone        string `json:"phone"`
	Website      string `json:"website"`
	Reservations string `json:"reservations"`
}

// LooseString accepts either a JSON string or a JSON number
type LooseString string

// UnmarshalJSON implements json.Unmarshaler
func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = LooseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*s = LooseString(strconv.FormatInt(i, 10))
		return nil
	}
	*s = LooseString(n.String())
	return nil
}

// FileError records a document that could not be read or decoded
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// ParseDir reads every *.json document below dir, skipping hidden
// directories. Files are visited in lexical order. Unreadable or malformed
// documents are reported as FileErrors and do not stop the walk.
func ParseDir(dir string) ([]Record, []FileError, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("POI directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%s is not a directory", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	var records []Record
	var fileErrs []FileError
	for _, path := range paths {
		rec, err := parseFile(path)
		if err != nil {
			fileErrs = append(fileErrs, FileError{Path: path, Err: err})
			continue
		}
		records = append(records, rec)
	}

	return records, fileErrs, nil
}

func parseFile(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("invalid JSON: %w", err)
	}
	rec.Source = path
	return rec, nil
}
