// Package changeset diffs two values of the same struct type by their json
// field names. It feeds the "changes" section of update events.
package changeset

import (
	"reflect"
	"strings"
)

// Change is one field's before and after value.
type Change struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// Fields returns the named fields of obj keyed by json name. No names means
// every exported field.
func Fields(obj interface{}, fields ...string) map[string]interface{} {
	result := make(map[string]interface{})
	val := reflect.ValueOf(obj)
	if !val.IsValid() {
		return result
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return result
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return result
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonName(field)
		if name == "-" {
			continue
		}
		if len(fields) == 0 || contains(fields, name) {
			result[name] = val.Field(i).Interface()
		}
	}
	return result
}

// Diff reports the fields whose values differ between old and new.
func Diff(old, new interface{}, fields ...string) map[string]Change {
	changes := make(map[string]Change)
	oldFields := Fields(old, fields...)
	newFields := Fields(new, fields...)

	for name, newValue := range newFields {
		oldValue, ok := oldFields[name]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(oldValue, newValue) {
			changes[name] = Change{Old: oldValue, New: newValue}
		}
	}
	return changes
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return strings.ToLower(field.Name)
	}
	return strings.Split(tag, ",")[0]
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
