package core

import "strings"

// PatternBucket is a named semantic group of column-name fragments.
type PatternBucket struct {
	Name     string
	Keywords []string
}

// DefaultBuckets is the bilingual (English/Spanish) bucket table used for the
// column matcher's pattern bonus. Order matters: the first bucket that both
// names hit ends the bonus scan.
func DefaultBuckets() []PatternBucket {
	return []PatternBucket{
		{Name: "id", Keywords: []string{"id", "identifier", "key", "codigo", "code"}},
		{Name: "name", Keywords: []string{"name", "nombre", "title", "titulo", "descripcion", "description"}},
		{Name: "date", Keywords: []string{"date", "fecha", "time", "tiempo", "created", "updated", "modified"}},
		{Name: "email", Keywords: []string{"email", "correo", "mail"}},
		{Name: "phone", Keywords: []string{"phone", "telefono", "tel", "celular", "mobile"}},
		{Name: "address", Keywords: []string{"address", "direccion", "location", "ubicacion"}},
		{Name: "status", Keywords: []string{"status", "estado", "active", "activo", "enabled"}},
		{Name: "amount", Keywords: []string{"amount", "monto", "price", "precio", "cost", "costo", "value", "valor"}},
		{Name: "quantity", Keywords: []string{"quantity", "cantidad", "qty", "count", "numero"}},
	}
}

// Matches reports whether name contains any of the bucket's keywords.
func (b PatternBucket) Matches(name string) bool {
	for _, kw := range b.Keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// BoolLiterals is a case-insensitive set of textual booleans.
type BoolLiterals struct {
	True  []string
	False []string
}

// InferenceBoolLiterals is the narrow set used when guessing a column's type.
// Single letters and the digits 1/0 are left out so code columns such as
// "Y"/"N"/"S" and integer columns holding 0 or 1 keep their own type.
func InferenceBoolLiterals() BoolLiterals {
	return BoolLiterals{
		True:  []string{"true", "yes", "si", "sí", "verdadero"},
		False: []string{"false", "no", "falso"},
	}
}

// AcceptedBoolLiterals is the wide set accepted when a destination column is
// already known to be boolean.
func AcceptedBoolLiterals() BoolLiterals {
	return BoolLiterals{
		True:  []string{"true", "t", "yes", "y", "1", "si", "sí", "verdadero"},
		False: []string{"false", "f", "no", "n", "0", "falso"},
	}
}

// Parse returns the boolean value of s and whether s is a known literal.
func (b BoolLiterals) Parse(s string) (value, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false, false
	}
	for _, t := range b.True {
		if s == t {
			return true, true
		}
	}
	for _, f := range b.False {
		if s == f {
			return false, true
		}
	}
	return false, false
}

// Contains reports whether s is a known literal.
func (b BoolLiterals) Contains(s string) bool {
	_, ok := b.Parse(s)
	return ok
}

// DefaultNullTokens are the cell texts treated as missing values.
var DefaultNullTokens = []string{"", "null", "none", "n/a", "na", "#n/a", "nan"}
