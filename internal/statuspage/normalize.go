package statuspage

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

// Normalize converts a raw components payload into a Snapshot.
//
// A missing "page" block is replaced by a synthetic PageInfo built from
// fallbackName and fallbackURL, with every other field set to UnknownValue.
// A missing or malformed "components" array, or any component lacking a
// required field, fails the whole normalization with a *FormatError.
func Normalize(raw json.RawMessage, fallbackName, fallbackURL string) (*Snapshot, error) {
	root, err := decodeObject(raw)
	if err != nil {
		return nil, &FormatError{Detail: "payload is not a JSON object", Err: err}
	}

	page, err := normalizePage(root, fallbackName, fallbackURL)
	if err != nil {
		return nil, err
	}

	components, err := normalizeComponents(root)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Page: page, Components: components}, nil
}

func normalizePage(root fields, fallbackName, fallbackURL string) (PageInfo, error) {
	rawPage, ok := root["page"]
	if !ok {
		return PageInfo{
			ID:        UnknownValue,
			Name:      fallbackName,
			TimeZone:  UnknownValue,
			UpdatedAt: UnknownValue,
			URL:       fallbackURL,
		}, nil
	}

	page, err := decodeObject(rawPage)
	if err != nil {
		return PageInfo{}, &FormatError{Detail: "page is not an object", Err: err}
	}

	var info PageInfo
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"id", &info.ID},
		{"name", &info.Name},
		{"time_zone", &info.TimeZone},
		{"updated_at", &info.UpdatedAt},
		{"url", &info.URL},
	} {
		v, err := page.requiredString(f.key)
		if err != nil {
			return PageInfo{}, withContext(err, "page")
		}
		*f.dst = v
	}

	return info, nil
}

func normalizeComponents(root fields) ([]Component, error) {
	rawComponents, ok := root["components"]
	if !ok {
		return nil, formatErrorf("components: missing")
	}
	if isNull(rawComponents) {
		return nil, formatErrorf("components: null")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(rawComponents, &items); err != nil {
		return nil, &FormatError{Detail: "components: not an array", Err: err}
	}

	components := make([]Component, 0, len(items))
	for i, item := range items {
		c, err := normalizeComponent(item)
		if err != nil {
			return nil, withContext(err, "components[%d]", i)
		}
		components = append(components, c)
	}

	return components, nil
}

func normalizeComponent(raw json.RawMessage) (Component, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return Component{}, &FormatError{Detail: "not an object", Err: err}
	}

	var (
		c    Component
		errs error
	)
	str := func(key string) string {
		if errs != nil {
			return ""
		}
		v, err := obj.requiredString(key)
		errs = err
		return v
	}

	c.ID = str("id")
	c.Name = str("name")
	c.Status = str("status")
	c.CreatedAt = str("created_at")
	c.UpdatedAt = str("updated_at")
	c.PageID = str("page_id")
	if errs != nil {
		return Component{}, errs
	}

	if c.Position, err = obj.requiredInt("position"); err != nil {
		return Component{}, err
	}

	if c.StartDate, err = obj.optionalString("start_date"); err != nil {
		return Component{}, err
	}
	if c.Description, err = obj.optionalString("description"); err != nil {
		return Component{}, err
	}
	if c.GroupID, err = obj.optionalString("group_id"); err != nil {
		return Component{}, err
	}
	if c.Group, err = obj.optionalBool("group", false); err != nil {
		return Component{}, err
	}
	if c.Showcase, err = obj.optionalBool("showcase", false); err != nil {
		return Component{}, err
	}
	if c.OnlyShowIfDegraded, err = obj.optionalBool("only_show_if_degraded", false); err != nil {
		return Component{}, err
	}

	return c, nil
}

// fields is a decoded JSON object with its values left raw, so presence
// and type can be checked per key.
type fields map[string]json.RawMessage

func decodeObject(raw json.RawMessage) (fields, error) {
	var obj fields
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	// "null" decodes into a nil map without error.
	if obj == nil {
		return nil, errNullValue
	}
	return obj, nil
}

var errNullValue = &FormatError{Detail: "null value"}

func (f fields) requiredString(key string) (string, error) {
	raw, ok := f[key]
	if !ok {
		return "", formatErrorf("%s: missing", key)
	}
	if isNull(raw) {
		return "", formatErrorf("%s: null", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &FormatError{Detail: key + ": not a string", Err: err}
	}
	return s, nil
}

func (f fields) requiredInt(key string) (int, error) {
	raw, ok := f[key]
	if !ok {
		return 0, formatErrorf("%s: missing", key)
	}
	if isNull(raw) {
		return 0, formatErrorf("%s: null", key)
	}
	// json.Number also accepts quoted numbers, which are not integers here.
	var n json.Number
	if raw[0] == '"' {
		return 0, formatErrorf("%s: not a number", key)
	}
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, &FormatError{Detail: key + ": not a number", Err: err}
	}
	i, err := strconv.ParseInt(n.String(), 10, strconv.IntSize)
	if err == nil {
		return int(i), nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, formatErrorf("%s: out of range", key)
	}

	// Integral values may still be written as 3.0 or 1e3.
	v, err := n.Float64()
	switch {
	case err != nil && !errors.Is(err, strconv.ErrRange):
		return 0, &FormatError{Detail: key + ": not a number", Err: err}
	case v != math.Trunc(v):
		return 0, formatErrorf("%s: not an integer", key)
	case v < math.MinInt || v >= math.MaxInt:
		return 0, formatErrorf("%s: out of range", key)
	}
	return int(v), nil
}

// optionalString returns nil when key is absent or null.
func (f fields) optionalString(key string) (*string, error) {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &FormatError{Detail: key + ": not a string", Err: err}
	}
	return &s, nil
}

// optionalBool returns def when key is absent or null.
func (f fields) optionalBool(key string, def bool) (bool, error) {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return def, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return def, &FormatError{Detail: key + ": not a boolean", Err: err}
	}
	return b, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// withContext prefixes the detail of a FormatError with its location.
func withContext(err error, format string, args ...interface{}) error {
	fe, ok := err.(*FormatError)
	if !ok {
		return err
	}
	prefix := formatErrorf(format, args...).Detail
	return &FormatError{Detail: prefix + "." + fe.Detail, Err: fe.Err}
}
