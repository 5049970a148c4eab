package core

// convert.go defines what each type bucket accepts.
//
// Spreadsheet cells are messy:
//   - numbers carry currency symbols, thousands separators or accounting
//     parentheses
//   - dates come in US, ISO and two-digit-year forms, with or without a time
//   - booleans are written in English or Spanish
//   - Excel formula prefixes (="value") survive CSV export
//
// Every Parse* function accepts either a native Go value (int64, float64,
// bool, time.Time from XLSX or a driver) or a string, and reports ok=false
// when the value does not belong to the bucket.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var integerRegex = regexp.MustCompile(`^[+-]?\d+$`)

// twoDigitYearPivot: two-digit years that land more than this many years in
// the future are moved back a century.
const twoDigitYearPivot = 20

var (
	dateTimeLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006/01/02 15:04:05",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006 3:04:05 PM",
		"1/2/2006 3:04 PM",
		"1/2/2006 3:04:05PM",
		"1/2/2006 3:04PM",
		"1-2-2006 15:04:05",
		"1-2-2006 15:04",
	}
	twoDigitYearDateTimeLayouts = []string{
		"1/2/06 15:04:05", "1/2/06 15:04", "1/2/06 3:04 PM", "1-2-06 15:04",
	}
	fourDigitYearLayouts = []string{
		"1/2/2006", "1-2-2006", "1.2.2006",
		"2006-01-02", "2006/01/02", "2006.01.02", "2006-1-2", "2006/1/2",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006",
		"20060102",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "1-2-06", "1.2.06",
	}
)

// IsNull reports whether v is missing: nil, or a string that is blank or one
// of DefaultNullTokens.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		for _, tok := range DefaultNullTokens {
			if s == tok {
				return true
			}
		}
		return false
	case float64:
		return math.IsNaN(x)
	default:
		return false
	}
}

// Stringify renders a cell the way it would appear in the spreadsheet.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case pgtype.Numeric:
		return FormatDecimal(x)
	default:
		return fmt.Sprint(x)
	}
}

// FormatDecimal renders n in plain positional notation ("-12.50"), the form
// every supported database accepts for a decimal parameter. Invalid and
// non-finite values render as "".
func FormatDecimal(n pgtype.Numeric) string {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return ""
	}
	digits := n.Int.String()
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	switch {
	case n.Exp >= 0:
		digits += strings.Repeat("0", int(n.Exp))
	default:
		scale := int(-n.Exp)
		if len(digits) <= scale {
			digits = strings.Repeat("0", scale-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
	}
	if neg && strings.Trim(digits, "0.") != "" {
		digits = "-" + digits
	}
	return digits
}

// ParseInteger accepts integral native numbers and digit strings, optionally
// with thousands separators ("1,234").
func ParseInteger(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1<<53 {
			return int64(x), true
		}
		return 0, false
	case string:
		s := strings.ReplaceAll(CleanCell(x), ",", "")
		if !integerRegex.MatchString(s) {
			return 0, false
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// ParseDecimal accepts native numbers and numeric strings. Currency symbols,
// thousands separators and accounting-style negatives "(12.50)" are allowed.
func ParseDecimal(v any) (pgtype.Numeric, bool) {
	var s string
	switch x := v.(type) {
	case int, int32, int64:
		s = Stringify(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return pgtype.Numeric{}, false
		}
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case pgtype.Numeric:
		return x, x.Valid
	case string:
		s = cleanNumber(x)
	default:
		return pgtype.Numeric{}, false
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{}, false
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}, false
	}
	return n, n.Valid
}

// ParseFloat is ParseDecimal returning a float64.
func ParseFloat(v any) (float64, bool) {
	n, ok := ParseDecimal(v)
	if !ok {
		return 0, false
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return 0, false
	}
	return f.Float64, true
}

func cleanNumber(s string) string {
	s = CleanCell(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if negative {
		s = "-" + s
	}
	return s
}

// ParseBool accepts native booleans, 0/1 numbers and the given literals.
func ParseBool(v any, literals BoolLiterals) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int64:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	case int:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	case float64:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	case string:
		return literals.Parse(CleanCell(x))
	}
	return false, false
}

// ParseTime accepts native time values and strings in any known date or
// date-time layout. hasClock reports whether the string carried a time part.
func ParseTime(v any) (t time.Time, hasClock bool, ok bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !(x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0), true
	case string:
		s := strings.ToUpper(CleanCell(x))
		if s == "" {
			return time.Time{}, false, false
		}
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true, true
			}
		}
		for _, layout := range twoDigitYearDateTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return pivotYear(t), true, true
			}
		}
		if t, ok := ParseDate(s); ok {
			return t, false, true
		}
	}
	return time.Time{}, false, false
}

// ParseDate parses a date-only string.
func ParseDate(s string) (time.Time, bool) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, false
	}

	// 4-digit years are unambiguous, try them first
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pivotYear(t), true
		}
	}
	return time.Time{}, false
}

func pivotYear(t time.Time) time.Time {
	if t.Year() > time.Now().Year()+twoDigitYearPivot {
		return t.AddDate(-100, 0, 0)
	}
	return t
}

// CleanCell removes common spreadsheet export artifacts from a cell value:
// surrounding whitespace, the Excel formula prefix (="...") and surrounding
// quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}
