package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// ValueKind tags which variant a Value holds.
type ValueKind int

const (
	KindText ValueKind = iota
	KindNumber
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	default:
		return "text"
	}
}

// Value is a scalar property value: text, number or boolean.
// The zero value is the empty text.
type Value struct {
	kind ValueKind
	text string
	num  float64
	flag bool
}

func Text(s string) Value { return Value{kind: KindText, text: s} }

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

func (v Value) Kind() ValueKind { return v.kind }

// String renders the value the way it is compared against constraint values.
// Integral numbers print without a fractional part ("550", not "550.0").
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	default:
		return v.text
	}
}

// Float returns the numeric reading of the value. Text is parsed after trimming;
// booleans never have a numeric reading.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ValueOf converts a decoded scalar into a Value. Anything that is not a string,
// number or boolean is rendered with fmt and treated as text.
func ValueOf(raw any) Value {
	switch x := raw.(type) {
	case Value:
		return x
	case string:
		return Text(x)
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return Text(x.String())
	case nil:
		return Text("")
	default:
		return Text(fmt.Sprint(x))
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.flag)
	default:
		return json.Marshal(v.text)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	switch raw.(type) {
	case map[string]any, []any:
		return fmt.Errorf("decode value: expected scalar, got %s", string(data))
	}
	*v = ValueOf(raw)
	return nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: property value must be a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*v = Number(f)
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*v = Bool(b)
	default:
		*v = Text(node.Value)
	}
	return nil
}

// JSONSchema describes Value as a string, number or boolean scalar.
func (Value) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "number"},
			{Type: "boolean"},
		},
	}
}
