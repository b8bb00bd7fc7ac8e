package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode"

	"olympos.io/encoding/edn"
)

// Tagged values print as an EDN tagged literal, #tag followed by the encoded value.
type Tagged interface {
	EDNTag() (tag string, value any)
}

var (
	taggedType  = reflect.TypeOf((*Tagged)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
	rawJSONType = reflect.TypeOf(json.RawMessage(nil))
)

// WriteEDN writes v as EDN. Struct fields follow their json tags (name, omitempty, "-") and
// become kebab-case keywords in declaration order; map keys are sorted. time.Time prints as
// #inst and Tagged values as their tagged literal.
func WriteEDN(w io.Writer, v any, pretty bool) error {
	tree, err := ednValue(reflect.ValueOf(v))
	if err != nil {
		return err
	}
	b, err := edn.Marshal(tree)
	if err != nil {
		return err
	}
	if pretty {
		var buf bytes.Buffer
		if err := edn.PPrint(&buf, b, &edn.PPrintOpts{}); err != nil {
			return err
		}
		b = buf.Bytes()
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// ednMap keeps entry order, which edn's own map encoding does not.
type ednMap []ednPair

type ednPair struct {
	key any
	val any
}

func (m ednMap) MarshalEDN() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m {
		if i > 0 {
			buf.WriteByte(' ')
		}
		k, err := edn.Marshal(p.key)
		if err != nil {
			return nil, err
		}
		v, err := edn.Marshal(p.val)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(' ')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ednValue converts v into values the edn encoder handles: ednMap for structs and maps, []any
// for vectors, edn.Tag for Tagged and scalars as they are.
func ednValue(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if v.CanInterface() && v.Type().Implements(taggedType) && !(v.Kind() == reflect.Pointer && v.IsNil()) {
		tag, inner := v.Interface().(Tagged).EDNTag()
		iv, err := ednValue(reflect.ValueOf(inner))
		if err != nil {
			return nil, err
		}
		return edn.Tag{Tagname: tag, Value: iv}, nil
	}
	switch v.Type() {
	case timeType:
		var t time.Time
		reflect.ValueOf(&t).Elem().Set(v)
		return t.UTC(), nil
	case rawJSONType:
		if v.Len() == 0 {
			return nil, nil
		}
		var x any
		if err := json.Unmarshal(v.Bytes(), &x); err != nil {
			return nil, fmt.Errorf("edn: raw json: %w", err)
		}
		return ednValue(reflect.ValueOf(x))
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return ednValue(v.Elem())
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			// Numbers decoded from JSON arrive as float64; whole ones read better as integers.
			return int64(f), nil
		}
		return f, nil
	case reflect.String:
		return v.String(), nil
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		return ednVector(v)
	case reflect.Array:
		return ednVector(v)
	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		type entry struct {
			name string
			val  reflect.Value
		}
		entries := make([]entry, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			entries = append(entries, entry{name: fmt.Sprint(iter.Key().Interface()), val: iter.Value()})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
		m := make(ednMap, 0, len(entries))
		for _, en := range entries {
			ev, err := ednValue(en.val)
			if err != nil {
				return nil, err
			}
			m = append(m, ednPair{key: mapKey(en.name), val: ev})
		}
		return m, nil
	case reflect.Struct:
		return structMap(v, nil)
	default:
		return nil, fmt.Errorf("edn: unsupported type %s", v.Type())
	}
}

func ednVector(v reflect.Value) (any, error) {
	out := make([]any, v.Len())
	for i := range out {
		ev, err := ednValue(v.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = ev
	}
	return out, nil
}

// structMap lists the fields encoding/json would emit, embedded structs flattened.
func structMap(v reflect.Value, out ednMap) (ednMap, error) {
	if out == nil {
		out = ednMap{}
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := v.Field(i)
		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue
				}
				ft, fv = ft.Elem(), fv.Elem()
			}
			if ft.Kind() == reflect.Struct {
				var err error
				if out, err = structMap(fv, out); err != nil {
					return nil, err
				}
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if strings.Contains(","+opts+",", ",omitempty,") && isEmptyValue(fv) {
			continue
		}
		ev, err := ednValue(fv)
		if err != nil {
			return nil, err
		}
		out = append(out, ednPair{key: edn.Keyword(kebab(name)), val: ev})
	}
	return out, nil
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.Struct:
		return false
	default:
		return v.IsZero()
	}
}

// mapKey keeps map keys as keywords when they read as one, and as strings otherwise.
func mapKey(s string) any {
	k := kebab(s)
	if k == "" || unicode.IsDigit(rune(k[0])) {
		return s
	}
	for _, r := range k {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("-_.*+!?=/", r) {
			return s
		}
	}
	return edn.Keyword(k)
}

// kebab turns a json key into keyword text: "actorId" becomes actor-id, spaces become dashes.
func kebab(s string) string {
	var b strings.Builder
	prev := rune(0)
	for _, r := range strings.TrimSpace(s) {
		out := r
		switch {
		case unicode.IsSpace(r):
			out = '-'
		case unicode.IsUpper(r):
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				b.WriteByte('-')
			}
			out = unicode.ToLower(r)
		}
		b.WriteRune(out)
		prev = r
	}
	return b.String()
}
