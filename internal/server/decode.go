package server

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/fastjson"
)

// LocationsFrom reads an array of location objects. A missing or null value
// yields no locations.
func LocationsFrom(v *fastjson.Value) ([]map[string]interface{}, error) {
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil, nil
	}
	arr, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("based_location_plain must be an array")
	}

	out := make([]map[string]interface{}, 0, len(arr))
	for i, item := range arr {
		obj, err := item.Object()
		if err != nil {
			return nil, fmt.Errorf("based_location_plain[%d] must be an object", i)
		}
		m := make(map[string]interface{}, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			m[string(key)] = plain(val)
		})
		out = append(out, m)
	}
	return out, nil
}

// TagsFrom reads an array of strings. A missing or null value yields no tags.
func TagsFrom(v *fastjson.Value) ([]string, error) {
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil, nil
	}
	arr, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("tag_plain must be an array")
	}

	out := make([]string, 0, len(arr))
	for i, item := range arr {
		b, err := item.StringBytes()
		if err != nil {
			return nil, fmt.Errorf("tag_plain[%d] must be a string", i)
		}
		out = append(out, string(b))
	}
	return out, nil
}

// plain converts a fastjson value into something encoding/json writes back
// unchanged. Values are copied since the parser is reused.
func plain(v *fastjson.Value) interface{} {
	switch v.Type() {
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return json.Number(v.String())
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return json.RawMessage(v.MarshalTo(nil))
	}
}
