package transform

import (
	"encoding/base64"
	"encoding/json"
	"net/url"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/record"
)

func init() {
	register("encoding", "base64Encode", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return base64.StdEncoding.EncodeToString([]byte(record.ToString(v))), nil
	})
	register("encoding", "base64Decode", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		raw, err := base64.StdEncoding.DecodeString(record.ToString(v))
		if err != nil {
			return nil, errdefs.Validation("encoding.base64Decode: %v", err)
		}
		return string(raw), nil
	})
	register("encoding", "urlEncode", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return url.QueryEscape(record.ToString(v)), nil
	})
	register("encoding", "urlDecode", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		s, err := url.QueryUnescape(record.ToString(v))
		if err != nil {
			return nil, errdefs.Validation("encoding.urlDecode: %v", err)
		}
		return s, nil
	})
	register("encoding", "jsonParse", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		var out any
		if err := json.Unmarshal([]byte(record.ToString(v)), &out); err != nil {
			return nil, errdefs.Validation("encoding.jsonParse: %v", err)
		}
		return out, nil
	})
	register("encoding", "jsonStringify", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errdefs.Validation("encoding.jsonStringify: %v", err)
		}
		return string(raw), nil
	})
}
