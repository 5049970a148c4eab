package core

import (
	"strings"
	"time"
)

// InferredType is the simplified type bucket of a spreadsheet column or a
// destination column.
type InferredType string

const (
	TypeString   InferredType = "STRING"
	TypeInteger  InferredType = "INTEGER"
	TypeDecimal  InferredType = "DECIMAL"
	TypeBoolean  InferredType = "BOOLEAN"
	TypeDate     InferredType = "DATE"
	TypeDateTime InferredType = "DATETIME"
	TypeUnknown  InferredType = "UNKNOWN"
)

// SQLType returns the SQL Server type the legacy importer used when creating
// columns for this bucket.
func (t InferredType) SQLType() string {
	switch t {
	case TypeInteger:
		return "INT"
	case TypeDecimal:
		return "DECIMAL"
	case TypeBoolean:
		return "BIT"
	case TypeDate:
		return "DATE"
	case TypeDateTime:
		return "DATETIME2"
	default:
		return "NVARCHAR"
	}
}

// SourceColumn is a spreadsheet column after type inference.
type SourceColumn struct {
	Name     string       `json:"name"`
	Position int          `json:"position"`
	Values   []any        `json:"-"` // non-null values
	Type     InferredType `json:"type"`
	Nulls    int          `json:"nulls"`
}

// DestinationColumn is a read-only snapshot of a destination table column.
type DestinationColumn struct {
	Name       string       `json:"name"`
	SQLType    string       `json:"sql_type"`
	Type       InferredType `json:"type"`
	Nullable   bool         `json:"nullable"`
	HasDefault bool         `json:"has_default"`
	MaxLength  int          `json:"max_length,omitempty"` // 0 = unbounded
	Precision  int          `json:"precision,omitempty"`
	Scale      int          `json:"scale,omitempty"`
	Ordinal    int          `json:"ordinal"`
}

// MatchCategory classifies a ColumnMapping.
type MatchCategory string

const (
	MatchExact         MatchCategory = "exact_match"
	MatchFuzzy         MatchCategory = "fuzzy_match"
	MatchLowConfidence MatchCategory = "low_confidence"
	MatchNone          MatchCategory = "no_match"
	MatchManual        MatchCategory = "manual"
)

// Suggestion is an alternative destination offered for an unmatched column.
type Suggestion struct {
	Column string  `json:"column"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ColumnMapping links one spreadsheet column to at most one destination
// column. An empty Destination means no match was found.
type ColumnMapping struct {
	Source           string        `json:"source"`
	Destination      string        `json:"destination,omitempty"`
	Type             InferredType  `json:"type"`
	Confidence       float64       `json:"confidence"`
	Category         MatchCategory `json:"category"`
	ValidationErrors []string      `json:"validation_errors,omitempty"`
	Alternatives     []Suggestion  `json:"alternatives,omitempty"`
}

// Mapped reports whether the mapping has a destination.
func (m ColumnMapping) Mapped() bool { return m.Destination != "" }

// IdentifierKind is the origin of a unique identifier.
type IdentifierKind string

const (
	KindPrimaryKey       IdentifierKind = "PRIMARY_KEY"
	KindUniqueConstraint IdentifierKind = "UNIQUE_CONSTRAINT"
	KindUniqueIndex      IdentifierKind = "UNIQUE_INDEX"
)

// UniqueIdentifier is a set of columns the destination enforces as unique.
// Priority 1 is the primary key, 2 a unique constraint, 3 a unique index.
type UniqueIdentifier struct {
	Kind     IdentifierKind `json:"kind"`
	Name     string         `json:"name"`
	Columns  []string       `json:"columns"`
	Priority int            `json:"priority"`
}

// String describes the identifier for warnings and reports.
func (u *UniqueIdentifier) String() string {
	if u == nil {
		return "none"
	}
	return string(u.Kind) + " " + u.Name + " (" + strings.Join(u.Columns, ", ") + ")"
}

// Severity of a validation issue.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the severity by name in JSON.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ValidationIssue is one problem found in a cell, row or the table as a whole.
// Row is the spreadsheet row number (header = 1, first data row = 2); 0 means
// the issue is not tied to a row.
type ValidationIssue struct {
	Row          int      `json:"row"`
	Column       string   `json:"column"`
	Value        any      `json:"value,omitempty"`
	Rule         string   `json:"rule"`
	Message      string   `json:"message"`
	Severity     Severity `json:"severity"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// ValidationResult aggregates the issues of one validation pass.
type ValidationResult struct {
	Valid        bool              `json:"valid"`
	RowCount     int               `json:"row_count"`
	ErrorRows    int               `json:"error_rows"`
	ErrorRate    float64           `json:"error_rate"`
	ErrorCount   int               `json:"error_count"`
	WarningCount int               `json:"warning_count"`
	InfoCount    int               `json:"info_count"`
	Issues       []ValidationIssue `json:"issues"`
	Summary      string            `json:"summary"`
}

// Errors returns the issues at ERROR severity or above.
func (r *ValidationResult) Errors() []ValidationIssue {
	return r.filter(func(s Severity) bool { return s >= SeverityError })
}

// Warnings returns the issues at WARNING severity.
func (r *ValidationResult) Warnings() []ValidationIssue {
	return r.filter(func(s Severity) bool { return s == SeverityWarning })
}

func (r *ValidationResult) filter(keep func(Severity) bool) []ValidationIssue {
	var out []ValidationIssue
	for _, is := range r.Issues {
		if keep(is.Severity) {
			out = append(out, is)
		}
	}
	return out
}

// FilterResult is the outcome of one duplicate-filtering run. Rows holds the
// only rows that should be inserted downstream.
type FilterResult struct {
	Success        bool              `json:"success"`
	RunID          string            `json:"run_id"`
	OriginalCount  int               `json:"original_count"`
	NewCount       int               `json:"new_count"`
	DuplicateCount int               `json:"duplicate_count"`
	Identifier     *UniqueIdentifier `json:"identifier,omitempty"`
	Rows           *Table            `json:"-"`
	Existing       []int             `json:"existing,omitempty"` // indexes into the input
	ProcessingTime time.Duration     `json:"processing_time"`
	Errors         []string          `json:"errors,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
}

// TableRef names a table or view in a schema.
type TableRef struct {
	Name string `json:"name"`
	Type string `json:"type"` // "BASE TABLE", "VIEW"
}

// KeySet is a named, ordered list of columns (a unique constraint or index).
type KeySet struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}
