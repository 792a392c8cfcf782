package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/tphakala/cyanwatch/internal/backend"
	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/geo"
)

// Rejection reasons, also used as metric labels.
const (
	ReasonFileMissing    = "file_missing"
	ReasonFilenameLength = "filename_length"
	ReasonFileType       = "file_type"
	ReasonEmpty          = "empty"
	ReasonColumnCount    = "column_count"
	ReasonColumnName     = "column_name"
	ReasonMaxLocations   = "max_locations"
	ReasonRow            = "row"
)

// Default upload limits.
const (
	DefaultMaxRows           = 1000
	DefaultMaxFilenameLength = 128
	DefaultExtension         = "csv"
)

// DefaultColumns is the header whitelist.
var DefaultColumns = []string{"latitude", "longitude", "type"}

// requiredColumns is the exact header width.
const requiredColumns = 3

// ValidationError is a rejected upload. It is returned as a value, never
// as a failure of the operation.
type ValidationError struct {
	Reason  string `json:"-"`
	Message string `json:"error"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func reject(reason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Limits bounds what an upload may contain.
type Limits struct {
	// MaxRows counts the header row
	MaxRows           int
	MaxFilenameLength int
	Extension         string
	Columns           []string
}

// DefaultLimits returns the standard upload limits.
func DefaultLimits() Limits {
	return Limits{
		MaxRows:           DefaultMaxRows,
		MaxFilenameLength: DefaultMaxFilenameLength,
		Extension:         DefaultExtension,
		Columns:           slices.Clone(DefaultColumns),
	}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxRows <= 0 {
		l.MaxRows = def.MaxRows
	}
	if l.MaxFilenameLength <= 0 {
		l.MaxFilenameLength = def.MaxFilenameLength
	}
	if l.Extension == "" {
		l.Extension = def.Extension
	}
	if len(l.Columns) == 0 {
		l.Columns = def.Columns
	}
	return l
}

// FileInfo describes the selected upload file.
type FileInfo struct {
	Name    string
	Present bool
}

// ValidateFile checks presence, name length and extension.
func (l Limits) ValidateFile(f FileInfo) *ValidationError {
	l = l.withDefaults()
	if !f.Present || f.Name == "" {
		return reject(ReasonFileMissing, "no file selected")
	}
	if len(f.Name) > l.MaxFilenameLength {
		return reject(ReasonFilenameLength, "filename exceeds %d characters", l.MaxFilenameLength)
	}
	ext := strings.TrimPrefix(filepath.Ext(f.Name), ".")
	if !strings.EqualFold(ext, l.Extension) {
		return reject(ReasonFileType, "invalid file type %q, expected .%s", ext, l.Extension)
	}
	return nil
}

// readRows splits text into trimmed rows, skipping blank lines.
func readRows(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, rec)
	}
}

// ValidateContent checks the header against the column whitelist and the
// total row count, header included, against MaxRows.
func (l Limits) ValidateContent(text string) *ValidationError {
	l = l.withDefaults()

	rows, err := readRows(text)
	if err != nil {
		return reject(ReasonRow, "malformed csv: %v", err)
	}
	if len(rows) == 0 {
		return reject(ReasonEmpty, "file is empty")
	}

	header := rows[0]
	if len(header) != requiredColumns {
		return reject(ReasonColumnCount, "expected %d columns, found %d", requiredColumns, len(header))
	}
	seen := make(map[string]bool, len(header))
	for _, col := range header {
		name := strings.ToLower(col)
		if !slices.Contains(l.Columns, name) {
			return reject(ReasonColumnName, "invalid column name %q, expected one of %s", col, strings.Join(l.Columns, ", "))
		}
		if seen[name] {
			return reject(ReasonColumnName, "duplicate column %q", col)
		}
		seen[name] = true
	}

	if len(rows) > l.MaxRows {
		return reject(ReasonMaxLocations, "file exceeds the maximum of %d locations", l.MaxRows-1)
	}

	for i, row := range rows[1:] {
		if len(row) != requiredColumns {
			return reject(ReasonColumnCount, "row %d: expected %d columns, found %d", i+2, requiredColumns, len(row))
		}
	}
	return nil
}

// ToBatchLocations maps every data row to a BatchLocation. Columns are
// matched by header name, so their order is free. The type value is taken
// verbatim apart from surrounding whitespace. Coordinates must parse as
// floats and lie within the valid latitude and longitude ranges.
func ToBatchLocations(body string) ([]backend.BatchLocation, *ValidationError) {
	rows, err := readRows(body)
	if err != nil {
		return nil, reject(ReasonRow, "malformed csv: %v", err)
	}
	if len(rows) == 0 {
		return nil, reject(ReasonEmpty, "file is empty")
	}

	idx := map[string]int{}
	for i, col := range rows[0] {
		idx[strings.ToLower(col)] = i
	}
	latCol, okLat := idx["latitude"]
	lonCol, okLon := idx["longitude"]
	typeCol, okType := idx["type"]
	if !okLat || !okLon || !okType {
		return nil, reject(ReasonColumnName, "header must name latitude, longitude and type")
	}

	locs := make([]backend.BatchLocation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if len(row) <= max(latCol, lonCol, typeCol) {
			return nil, reject(ReasonColumnCount, "row %d: expected %d columns, found %d", line, requiredColumns, len(row))
		}
		lat, err := strconv.ParseFloat(row[latCol], 64)
		if err != nil {
			return nil, reject(ReasonRow, "row %d: invalid latitude %q", line, row[latCol])
		}
		lon, err := strconv.ParseFloat(row[lonCol], 64)
		if err != nil {
			return nil, reject(ReasonRow, "row %d: invalid longitude %q", line, row[lonCol])
		}
		if err := geo.Validate(lat, lon); err != nil {
			return nil, reject(ReasonRow, "row %d: %v", line, err)
		}
		locs = append(locs, backend.BatchLocation{
			Latitude:  lat,
			Longitude: lon,
			Type:      row[typeCol],
		})
	}
	return locs, nil
}
