package questionnaire

import (
	"slices"
	"strings"
)

// Value is a typed answer. Kind selects which fields are meaningful.
type Value struct {
	Kind Type `json:"kind"`

	Bool bool   `json:"bool,omitempty"`
	Text string `json:"text,omitempty"`

	Option string `json:"option,omitempty"`
	Detail string `json:"detail,omitempty"`

	Selected []string `json:"selected,omitempty"`
	Other    string   `json:"other,omitempty"`
}

func BoolValue(b bool) Value {
	return Value{Kind: TypeBoolean, Bool: b}
}

func TextValue(s string) Value {
	return Value{Kind: TypeText, Text: s}
}

func SelectValue(option, detail string) Value {
	return Value{Kind: TypeSelect, Option: option, Detail: detail}
}

func MultiValue(selected []string, other string) Value {
	if selected == nil {
		selected = []string{}
	}
	return Value{Kind: TypeMultiSelect, Selected: selected, Other: other}
}

func (v Value) IsTrue() bool {
	return v.Kind == TypeBoolean && v.Bool
}

// Contains reports whether a multiselect value has option selected.
func (v Value) Contains(option string) bool {
	return v.Kind == TypeMultiSelect && slices.Contains(v.Selected, option)
}

func (v Value) Equal(o Value) bool {
	return v.Kind == o.Kind && v.Bool == o.Bool && v.Text == o.Text &&
		v.Option == o.Option && v.Detail == o.Detail &&
		slices.Equal(v.Selected, o.Selected) && v.Other == o.Other
}

// Display renders v for people: Yes/No, the text, the option with its
// detail, or the selections joined with the Other text last.
func (v Value) Display() string {
	switch v.Kind {
	case TypeBoolean:
		if v.Bool {
			return "Yes"
		}
		return "No"
	case TypeText:
		return v.Text
	case TypeSelect:
		if v.Detail != "" {
			return v.Option + ": " + v.Detail
		}
		return v.Option
	case TypeMultiSelect:
		items := slices.Clone(v.Selected)
		if v.Other != "" {
			items = append(items, OtherPrefix+v.Other)
		}
		return strings.Join(items, ", ")
	default:
		return ""
	}
}

// Answers maps question id to value.
type Answers map[int]Value
