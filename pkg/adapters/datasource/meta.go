package datasource

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ekaya-inc/querypad/pkg/models"
)

// dateLayouts are the string forms recognised as dates when inferring types.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// InferMeta derives the ordered field list and per-field metadata of a result.
// Column order from the driver comes first; keys only seen in rows follow in
// sorted order so output is stable.
func InferMeta(columns []string, rows []map[string]any) ([]string, map[string]models.FieldMeta) {
	seen := make(map[string]bool, len(columns))
	fields := make([]string, 0, len(columns))
	for _, c := range columns {
		if !seen[c] {
			seen[c] = true
			fields = append(fields, c)
		}
	}

	var extras []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				extras = append(extras, k)
			}
		}
	}
	sort.Strings(extras)
	fields = append(fields, extras...)

	meta := make(map[string]models.FieldMeta, len(fields))
	for _, f := range fields {
		meta[f] = models.FieldMeta{Datatype: models.DatatypeNull}
	}

	for _, row := range rows {
		for k, v := range row {
			if v == nil {
				continue
			}
			m := meta[k]
			dt := datatypeOf(v)
			switch {
			case m.Datatype == models.DatatypeNull:
				m.Datatype = dt
			case m.Datatype != dt:
				m.Datatype = models.DatatypeString
			}
			if n := utf8.RuneCountInString(serializeValue(v)); n > m.MaxValueLength {
				m.MaxValueLength = n
			}
			meta[k] = m
		}
	}

	return fields, meta
}

func datatypeOf(v any) string {
	switch x := v.(type) {
	case bool:
		return models.DatatypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return models.DatatypeNumber
	case time.Time:
		return models.DatatypeDate
	case []byte:
		return datatypeOfString(string(x))
	case string:
		return datatypeOfString(x)
	}
	return models.DatatypeString
}

func datatypeOfString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.DatatypeString
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return models.DatatypeNumber
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return models.DatatypeDate
		}
	}
	return models.DatatypeString
}

func serializeValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
