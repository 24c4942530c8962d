package domain

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// ErrInvalidPayload is returned when the body is not a JSON object.
var ErrInvalidPayload = errors.New("request body must be a JSON object")

// ParseRecord は送信 JSON を Record に変換する。formData のキー順は元の JSON の順序を保つ。
// id の有無はここでは検証しない。
func ParseRecord(body []byte) (*Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidPayload
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, ErrInvalidPayload
	}

	record := &Record{
		Raw:      append([]byte(nil), body...),
		Services: []string{},
	}

	if id := lastMember(root, "id"); id.Type == gjson.String || id.Type == gjson.Number {
		record.ID = id.String()
	}

	if services := lastMember(root, "services"); services.IsArray() {
		for _, item := range services.Array() {
			if item.Type == gjson.Null {
				continue
			}
			record.Services = append(record.Services, item.String())
		}
	}

	if formData := lastMember(root, "formData"); formData.IsObject() {
		record.FormData = []byte(formData.Raw)
		record.Fields = parseFields(formData)
	}

	return record, nil
}

// lastMember returns the last occurrence of key in object; a repeated top-level key
// resolves to its final value, like formData fields do.
func lastMember(object gjson.Result, key string) gjson.Result {
	var found gjson.Result
	object.ForEach(func(k, value gjson.Result) bool {
		if k.String() == key {
			found = value
		}
		return true
	})
	return found
}

// parseFields keeps first-occurrence order; a repeated key overwrites the earlier value.
func parseFields(object gjson.Result) []Field {
	fields := make([]Field, 0)
	index := make(map[string]int)
	object.ForEach(func(key, value gjson.Result) bool {
		field := Field{Key: key.String(), Value: Classify(value)}
		if i, ok := index[field.Key]; ok {
			fields[i] = field
			return true
		}
		index[field.Key] = len(fields)
		fields = append(fields, field)
		return true
	})
	return fields
}

// Classify maps one JSON value to its Value kind. It never fails; unknown shapes become OpaqueObject.
func Classify(value gjson.Result) Value {
	switch value.Type {
	case gjson.Null:
		return Absent{}
	case gjson.String:
		if value.Str == "" {
			return Absent{}
		}
		return Text{Value: value.Str}
	case gjson.Number:
		return Number{Value: value.Num}
	case gjson.True, gjson.False:
		return Boolean{Value: value.Bool()}
	case gjson.JSON:
		if value.IsArray() {
			return classifyArray(value)
		}
		if value.IsObject() {
			return classifyObject(value)
		}
	}
	return Absent{}
}

func classifyArray(value gjson.Result) Value {
	items := value.Array()
	if len(items) == 0 {
		return Absent{}
	}

	allObjects := true
	for _, item := range items {
		if !item.IsObject() {
			allObjects = false
			break
		}
	}
	if allObjects {
		objects := make([][]Field, 0, len(items))
		for _, item := range items {
			objects = append(objects, parseFields(item))
		}
		return ObjectList{Items: objects}
	}

	texts := make([]string, 0, len(items))
	for _, item := range items {
		texts = append(texts, primitiveText(item))
	}
	return List{Items: texts}
}

func classifyObject(value gjson.Result) Value {
	file := value.Get("file")
	if file.IsObject() {
		name := file.Get("name")
		if name.Exists() && name.Type != gjson.Null {
			return FileRef{Name: name.String(), Size: primitiveText(file.Get("size"))}
		}
	}
	return OpaqueObject{Raw: value.Raw}
}

func primitiveText(item gjson.Result) string {
	switch item.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return item.Str
	case gjson.Number:
		return FormatNumber(item.Num)
	case gjson.JSON:
		return strings.TrimSpace(string(pretty.Ugly([]byte(item.Raw))))
	default:
		return item.Raw
	}
}
