package diagnosis

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMalformedOutput is returned when model output is not a JSON object.
var ErrMalformedOutput = errors.New("malformed model output")

// Normalize parses raw model output into a Record. Output that is not a JSON
// object (after stripping an optional Markdown code fence) fails with
// ErrMalformedOutput. Missing or mistyped fields fall back to their zero
// values, with status defaulting to unknown.
func Normalize(raw string) (Record, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return Record{}, errors.Join(ErrMalformedOutput, errors.New("empty output"))
	}
	if !gjson.Valid(body) {
		return Record{}, errors.Join(ErrMalformedOutput, errors.New("invalid JSON"))
	}
	root := gjson.Parse(body)
	if !root.IsObject() {
		return Record{}, errors.Join(ErrMalformedOutput, errors.New("root is not an object"))
	}

	return Record{
		Name:       stringField(root, "name"),
		Status:     NormalizeStatus(root.Get("status")),
		Confidence: NormalizeConfidence(root.Get("confidence")),
		Problem:    stringField(root, "problem"),
		Cause:      stringField(root, "cause"),
		Treatment:  stringField(root, "treatment"),
		Prevention: stringField(root, "prevention"),
	}, nil
}

// stripCodeFence removes one surrounding ``` fence (with optional language tag).
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func stringField(root gjson.Result, key string) string {
	v := root.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(v.Str)
}

// NormalizeStatus maps a status value onto the enumerated set. Matching is
// case-insensitive and treats spaces and hyphens as underscores.
func NormalizeStatus(v gjson.Result) Status {
	if v.Type != gjson.String {
		return StatusUnknown
	}
	s := strings.ToLower(strings.TrimSpace(v.Str))
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")
	if st := Status(s); st.Valid() {
		return st
	}
	return StatusUnknown
}

// NormalizeConfidence coerces a number or numeric string (an optional
// trailing % is allowed) to an integer in [0, 100]. Anything else is 0.
func NormalizeConfidence(v gjson.Result) int {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v.Str), "%"))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return clamp(int(math.Round(math.Max(math.Min(f, 1e6), -1e6))), 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
