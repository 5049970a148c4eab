package core

import "strings"

// SimplifyType maps a native SQL type name (SQL Server, PostgreSQL or
// SQLite spelling) to a type bucket. Length and precision suffixes such as
// "nvarchar(50)" or "numeric(10,2)" are ignored. Unknown types fall back to
// STRING; binary types map to UNKNOWN.
func SimplifyType(sqlType string) InferredType {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimSuffix(t, "[]")

	switch t {
	case "int", "integer", "bigint", "smallint", "tinyint", "int2", "int4", "int8",
		"serial", "bigserial", "smallserial", "mediumint":
		return TypeInteger
	case "float", "real", "decimal", "numeric", "money", "smallmoney",
		"double precision", "double", "float4", "float8":
		return TypeDecimal
	case "bit", "bool", "boolean":
		return TypeBoolean
	case "date":
		return TypeDate
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset", "time",
		"timestamp", "timestamptz", "timestamp without time zone",
		"timestamp with time zone", "time without time zone", "time with time zone":
		return TypeDateTime
	case "binary", "varbinary", "image", "bytea", "blob":
		return TypeUnknown
	default:
		return TypeString
	}
}

// IsCharType reports whether the SQL type carries a character length limit.
func IsCharType(sqlType string) bool {
	t := strings.ToLower(sqlType)
	for _, p := range []string{"char", "varchar", "nchar", "nvarchar", "character", "character varying", "text"} {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}
