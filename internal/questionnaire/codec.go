package questionnaire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sra/api/internal/logger"
)

// Record is the persisted answer shape. The notes encoding is shared with
// previously stored data and must stay byte-for-byte stable.
type Record struct {
	Question string `json:"question"`
	Answer   bool   `json:"answer"`
	Notes    string `json:"notes"`
}

var (
	ErrKindMismatch   = errors.New("answer kind does not match question type")
	ErrMalformedNotes = errors.New("malformed multiselect notes")
)

// Encode flattens v into the persisted record for q.
func Encode(q Question, v Value) (Record, error) {
	if v.Kind != q.Type {
		return Record{}, fmt.Errorf("%w: question %d is %s, got %s", ErrKindMismatch, q.ID, q.Type, v.Kind)
	}

	r := Record{Question: q.Text}
	switch q.Type {
	case TypeBoolean:
		r.Answer = v.Bool
	case TypeText:
		r.Answer = true
		r.Notes = v.Text
	case TypeSelect:
		r.Answer = true
		r.Notes = encodeSelect(q, v)
	case TypeMultiSelect:
		r.Answer = true
		notes, err := encodeMulti(q, v)
		if err != nil {
			return Record{}, fmt.Errorf("encode question %d: %w", q.ID, err)
		}
		r.Notes = notes
	default:
		return Record{}, fmt.Errorf("%w: unknown type %q", ErrKindMismatch, q.Type)
	}
	return r, nil
}

// Decode is the inverse of Encode. Malformed multiselect notes decode to an
// empty selection and are logged.
func Decode(q Question, r Record) Value {
	v, err := decode(q, r)
	if err != nil {
		slog.Warn("questionnaire: dropping malformed answer notes",
			"question_id", q.ID, "error", err, "notes", logger.Truncate(r.Notes, 120))
	}
	return v
}

func decode(q Question, r Record) (Value, error) {
	switch q.Type {
	case TypeBoolean:
		return BoolValue(r.Answer), nil
	case TypeText:
		return TextValue(r.Notes), nil
	case TypeSelect:
		return decodeSelect(q, r.Notes), nil
	case TypeMultiSelect:
		return decodeMulti(q, r.Notes)
	default:
		return Value{Kind: q.Type}, fmt.Errorf("%w: unknown type %q", ErrKindMismatch, q.Type)
	}
}

func encodeSelect(q Question, v Value) string {
	notes := v.Option
	if q.Detail == nil || v.Option != q.Detail.Sentinel {
		return notes
	}
	if detail := strings.TrimSpace(v.Detail); detail != "" {
		notes += q.Detail.Separator + detail
	}
	return notes
}

func decodeSelect(q Question, notes string) Value {
	if q.Detail != nil {
		if option, detail, ok := strings.Cut(notes, q.Detail.Separator); ok {
			return SelectValue(option, detail)
		}
	}
	return SelectValue(notes, "")
}

func encodeMulti(q Question, v Value) (string, error) {
	items := make([]string, 0, len(v.Selected)+1)
	if q.FixedOptions {
		items = append(items, v.Selected...)
		return marshalItems(items)
	}

	other := strings.TrimSpace(v.Other)
	for _, item := range v.Selected {
		if rest, ok := strings.CutPrefix(item, OtherPrefix); ok {
			// an existing "Other: " entry is carried forward unless replaced
			if other == "" {
				other = rest
			}
			continue
		}
		items = append(items, item)
	}
	if other != "" {
		items = append(items, OtherPrefix+other)
	}
	return marshalItems(items)
}

func decodeMulti(q Question, notes string) (Value, error) {
	if notes == "" {
		return MultiValue(nil, ""), nil
	}

	var raw []any
	if err := json.Unmarshal([]byte(notes), &raw); err != nil {
		return MultiValue(nil, ""), fmt.Errorf("%w: %v", ErrMalformedNotes, err)
	}

	selected := make([]string, 0, len(raw))
	other := ""
	foundOther := false
	for _, entry := range raw {
		item, ok := entry.(string)
		if !ok {
			continue
		}
		if !q.FixedOptions {
			if rest, ok := strings.CutPrefix(item, OtherPrefix); ok {
				if !foundOther {
					other = rest
					foundOther = true
				}
				continue
			}
		}
		selected = append(selected, item)
	}
	return MultiValue(selected, other), nil
}

// marshalItems writes a compact JSON array without HTML escaping, matching
// what browsers produce for JSON.stringify.
func marshalItems(items []string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "", err
	}
	return restoreLineSeparators(strings.TrimSuffix(buf.String(), "\n")), nil
}

// restoreLineSeparators undoes the \u2028 and \u2029 escapes encoding/json
// always applies. JSON.stringify emits both characters raw. Escaped
// backslashes are skipped so user text containing `\u2028` is kept.
func restoreLineSeparators(s string) string {
	if !strings.Contains(s, `\u202`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch esc := s[i+1:min(i+6, len(s))]; esc {
		case "u2028":
			b.WriteRune('\u2028')
			i += 5
		case "u2029":
			b.WriteRune('\u2029')
			i += 5
		default:
			b.WriteByte(s[i])
			b.WriteByte(s[i+1])
			i++
		}
	}
	return b.String()
}
