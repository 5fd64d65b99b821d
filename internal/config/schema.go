package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Field describes one settable leaf of the configuration.
type Field struct {
	Key     string
	Type    string
	Default string
}

var (
	configType = reflect.TypeOf(Config{})

	enumValues = map[reflect.Type][]string{
		reflect.TypeOf(CursorStyle("")): toStrings(cursorStyles),
		reflect.TypeOf(Blinking("")):    toStrings(blinkModes),
		reflect.TypeOf(Decorations("")): toStrings(decorations),
		reflect.TypeOf(StartupMode("")): toStrings(startupModes),
	}
)

// Schema lists every leaf key, sorted, with its type and default value.
func Schema() []Field {
	var fields []Field
	collectFields(reflect.ValueOf(Default()), "", &fields)
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Key < fields[j].Key
	})
	return fields
}

func collectFields(v reflect.Value, prefix string, out *[]Field) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := yamlName(t.Field(i))
		if name == "" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			collectFields(fv, key, out)
			continue
		}
		*out = append(*out, Field{Key: key, Type: typeName(fv.Type()), Default: formatDefault(fv)})
	}
}

// KnownKey reports whether key names a field of the configuration. Struct
// prefixes such as "window.padding" are accepted as well as leaves, and a
// map field accepts exactly one further segment ("env.TERM").
func KnownKey(key string) bool {
	if key == "" {
		return false
	}
	t := configType
	parts := strings.Split(key, ".")
	for i, part := range parts {
		switch t.Kind() {
		case reflect.Struct:
			f, ok := fieldByYAMLName(t, part)
			if !ok {
				return false
			}
			t = f.Type
		case reflect.Map:
			return part != "" && i == len(parts)-1
		default:
			return false
		}
	}
	return true
}

func fieldByYAMLName(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		if yamlName(t.Field(i)) == name {
			return t.Field(i), true
		}
	}
	return reflect.StructField{}, false
}

func yamlName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("yaml")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

func typeName(t reflect.Type) string {
	if values, ok := enumValues[t]; ok {
		return strings.Join(values, "|")
	}
	switch t.Kind() {
	case reflect.Slice:
		return "[" + typeName(t.Elem()) + "]"
	case reflect.Map:
		return "map[" + typeName(t.Key()) + "]" + typeName(t.Elem())
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	default:
		if t.Name() == "Color" {
			return "color"
		}
		return t.Kind().String()
	}
}

func formatDefault(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		if v.Len() == 0 {
			return ""
		}
	case reflect.String:
		return v.String()
	}
	return fmt.Sprint(v.Interface())
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
