package grid

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NullGlyph is what a user types into a cell editor to store NULL.
const NullGlyph = "\\0"

// ColumnType selects the codec used to move a cell between its display text
// and the value handed to the driver.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeReal
	TypeBoolean
	TypeBlob
	TypeVector
	TypeBigInt
	TypeDecimal
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "real"
	case TypeBoolean:
		return "boolean"
	case TypeBlob:
		return "blob"
	case TypeVector:
		return "vector"
	case TypeBigInt:
		return "bigint"
	case TypeDecimal:
		return "decimal"
	default:
		return "text"
	}
}

// DefaultValue marks a cell that should take the column default on INSERT.
type DefaultValue struct{}

// Default is the single DefaultValue sentinel.
var Default = DefaultValue{}

// IsDefault reports whether v is the Default sentinel.
func IsDefault(v any) bool {
	_, ok := v.(DefaultValue)
	return ok
}

// Display is the textual form of a cell. Null and Default are flags so that
// the literal strings "NULL" or "DEFAULT" stay representable as text.
type Display struct {
	Text    string
	Null    bool
	Default bool
}

// Codec converts between storage values and display text for one column type.
type Codec interface {
	ToDisplay(v any) Display
	ToStorage(d Display) any
	Equal(a, b any) bool
}

// ParseInput turns raw editor text into a Display. The NULL glyph is the only
// special input; everything else is literal text for the codec to interpret.
func ParseInput(text string) Display {
	if text == NullGlyph {
		return Display{Null: true}
	}
	return Display{Text: text}
}

// TypeFromDecl maps a declared column type (as reported by the driver) onto a
// codec. Matching is by substring so "VARCHAR(20)" and "unsigned bigint" work.
func TypeFromDecl(decl string) ColumnType {
	t := strings.ToUpper(strings.TrimSpace(decl))
	switch {
	case t == "":
		return TypeText
	case strings.Contains(t, "INTERVAL"), strings.Contains(t, "POINT"):
		return TypeText
	case strings.Contains(t, "VECTOR"), strings.Contains(t, "F32_BLOB"):
		return TypeVector
	case strings.Contains(t, "BIGINT"), t == "INT8", strings.Contains(t, "HUGEINT"),
		strings.Contains(t, "UBIGINT"), strings.Contains(t, "BIGSERIAL"):
		return TypeBigInt
	case strings.Contains(t, "BOOL"):
		return TypeBoolean
	case strings.Contains(t, "INT"), strings.Contains(t, "SERIAL"):
		return TypeInteger
	case strings.Contains(t, "BLOB"), strings.Contains(t, "BYTEA"), strings.Contains(t, "BINARY"):
		return TypeBlob
	case strings.Contains(t, "DECIMAL"), strings.Contains(t, "NUMERIC"):
		return TypeDecimal
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return TypeReal
	default:
		return TypeText
	}
}

var codecs = map[ColumnType]Codec{
	TypeText:    textCodec{},
	TypeInteger: integerCodec{},
	TypeReal:    realCodec{},
	TypeBoolean: booleanCodec{},
	TypeBlob:    blobCodec{},
	TypeVector:  vectorCodec{},
	TypeBigInt:  bigIntCodec{},
	TypeDecimal: decimalCodec{},
}

// CodecFor returns the codec for t, falling back to text.
func CodecFor(t ColumnType) Codec {
	if c, ok := codecs[t]; ok {
		return c
	}
	return textCodec{}
}

// special handles the two sentinels every codec shares.
func special(v any) (Display, bool) {
	switch {
	case v == nil:
		return Display{Null: true}, true
	case IsDefault(v):
		return Display{Default: true}, true
	}
	return Display{}, false
}

func specialStorage(d Display) (any, bool) {
	switch {
	case d.Default:
		return Default, true
	case d.Null:
		return nil, true
	}
	return nil, false
}

func sameSentinel(a, b any) (equal, decided bool) {
	if a == nil || b == nil {
		return a == nil && b == nil, true
	}
	if IsDefault(a) || IsDefault(b) {
		return IsDefault(a) && IsDefault(b), true
	}
	return false, false
}

type textCodec struct{}

func (textCodec) ToDisplay(v any) Display {
	if d, ok := special(v); ok {
		return d
	}
	return Display{Text: stringify(v)}
}

func (textCodec) ToStorage(d Display) any {
	if v, ok := specialStorage(d); ok {
		return v
	}
	return d.Text
}

func (textCodec) Equal(a, b any) bool {
	if eq, ok := sameSentinel(a, b); ok {
		return eq
	}
	return stringify(a) == stringify(b)
}

type integerCodec struct{}

func (integerCodec) ToDisplay(v any) Display {
	if d, ok := special(v); ok {
		return d
	}
	return Display{Text: stringify(v)}
}

// ToStorage parses an integer, keeping a finite float when the text is not
// integral. Integers outside the int64 range stay *big.Int. Empty or
// malformed input resolves to NULL.
func (integerCodec) ToStorage(d Display) any {
	if v, ok := specialStorage(d); ok {
		return v
	}
	s := strings.TrimSpace(d.Text)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if n, ok := new(big.Int).SetString(s, 10); ok {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return nil
}

func (integerCodec) Equal(a, b any) bool {
	return numericEqual(a, b)
}

type realCodec struct{}

func (realCodec) ToDisplay(v any) Display {
	if d, ok := special(v); ok {
		return d
	}
	return Display{Text: stringify(v)}
}

func (realCodec) ToStorage(d Display) any {
	if v, ok := specialStorage(d); ok {
		return v
	}
	s := strings.TrimSpace(d.Text)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func (realCodec) Equal(a, b any) bool {
	return numericEqual(a, b)
}

// decimalCodec carries exact numerics as their decimal text so that no
// digit is lost between the driver, the editor and the SQL literal.
type decimalCodec struct{}

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

func (decimalCodec) ToDisplay(v any) Display {
	if d, ok := special(v); ok {
		return d
	}
	return Display{Text: stringify(v)}
}

func (decimalCodec) ToStorage(d Display) any {
	if v, ok := specialStorage(d); ok {
		return v
	}
	s := strings.TrimSpace(d.Text)
	if !decimalPattern.MatchString(s) {
		return nil
	}
	return s
}

func (decimalCodec) Equal(a, b any) bool {
	return numericEqual(a, b)
}

type booleanCodec struct{}

func (booleanCodec) ToDisplay(v any) Display {
	if d, ok := special(v); ok {
		return d
	}
	if b, ok := toBool(v); ok {
		return Display{Text: strconv.FormatBool(b)}
	}
	return Display{Text: stringify(v)}
}

func (booleanCodec) ToStorage(d Display) any {
	if v, ok := specialStorage(d); ok {
		return v
	}
	if b, ok := toBool(d.Text); ok {
		return b
	}
	return nil
}

func (booleanCodec) Equal(a, b any) bool {
	if eq, ok := sameSentinel(a, b); ok {
		return eq
	}
	ab, aok := toBool(a)
	bb, bok := toBool(b)
	if aok && bok {
		return ab == bb
	}
	return stringify(a) == stringify(b)
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int64:
		return x != 0, x == 0 || x == 1
	case int:
		return x != 0, x == 0 || x == 1
	case []byte:
		return toBool(string(x))
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "t":
			return true, true
		case "0", "false", "f":
			return false, true
		}
	}
	return false, false
}

type blobCodec struct{}

func (blobCodec) ToDisplay(v any) Display {
	if d, ok := special(v); ok {
		return d
	}
	switch x := v.(type) {
	case []byte:
		return Display{Text: EscapeBytes(x)}
	case string:
		return Display{Text: EscapeBytes([]byte(x))}
	}
	return Display{Text: stringify(v)}
}

// ToStorage accepts the escaped form produced by ToDisplay. Anything
// unparseable is NULL.
func (blobCodec) ToStorage(d Display) any {
	if v, ok := specialStorage(d); ok {
		return v
	}
	b, err := UnescapeBytes(d.Text)
	if err != nil {
		return nil
	}
	return b
}

func (blobCodec) Equal(a, b any) bool {
	if eq, ok := sameSentinel(a, b); ok {
		return eq
	}
	return bytes.Equal(toBytes(a), toBytes(b))
}

// EscapeBytes renders bytes as printable ASCII, writing a backslash as `\\`
// and every other non-printable byte as `\xHH`.
func EscapeBytes(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch {
		case c == '\\':
			sb.WriteString(`\\`)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			sb.WriteString(`\x`)
			sb.WriteString(hex.EncodeToString([]byte{c}))
		}
	}
	return sb.String()
}

type escapeError struct {
	pos int
}

func (e *escapeError) Error() string {
	return "invalid escape sequence at offset " + strconv.Itoa(e.pos)
}

// UnescapeBytes reverses EscapeBytes.
func UnescapeBytes(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+1 >= len(s) {
			return nil, &escapeError{pos: i}
		}
		switch s[i+1] {
		case '\\':
			out = append(out, '\\')
			i++
		case 'x':
			if i+4 > len(s) {
				return nil, &escapeError{pos: i}
			}
			decoded, err := hex.DecodeString(s[i+2 : i+4])
			if err != nil {
				return nil, &escapeError{pos: i}
			}
			out = append(out, decoded[0])
			i += 3
		default:
			return nil, &escapeError{pos: i}
		}
	}
	return out, nil
}

type vectorCodec struct{}

func (vectorCodec) ToDisplay(v any) Display {
	if d, ok := special(v); ok {
		return d
	}
	b := toBytes(v)
	if b == nil || len(b)%4 != 0 {
		return Display{Text: stringify(v)}
	}
	parts := make([]string, len(b)/4)
	for i := range parts {
		f := math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return Display{Text: "[" + strings.Join(parts, ", ") + "]"}
}

// ToStorage parses "[1, 2.5]" into little-endian float32 bytes.
func (vectorCodec) ToStorage(d Display) any {
	if v, ok := specialStorage(d); ok {
		return v
	}
	s := strings.TrimSpace(d.Text)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSpace(s)
	if s == "" {
		return []byte{}
	}
	fields := strings.Split(s, ",")
	out := make([]byte, 4*len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(x)))
	}
	return out
}

func (vectorCodec) Equal(a, b any) bool {
	if eq, ok := sameSentinel(a, b); ok {
		return eq
	}
	return bytes.Equal(toBytes(a), toBytes(b))
}

type bigIntCodec struct{}

func (bigIntCodec) ToDisplay(v any) Display {
	if d, ok := special(v); ok {
		return d
	}
	return Display{Text: stringify(v)}
}

// ToStorage keeps values that fit in int64 as int64 so drivers bind them
// natively. Wider values stay *big.Int.
func (bigIntCodec) ToStorage(d Display) any {
	if v, ok := specialStorage(d); ok {
		return v
	}
	s := strings.TrimSpace(d.Text)
	if s == "" {
		return nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	if n.IsInt64() {
		return n.Int64()
	}
	return n
}

func (bigIntCodec) Equal(a, b any) bool {
	if eq, ok := sameSentinel(a, b); ok {
		return eq
	}
	an, aok := toBigInt(a)
	bn, bok := toBigInt(b)
	if aok && bok {
		return an.Cmp(bn) == 0
	}
	return stringify(a) == stringify(b)
}

func toBigInt(v any) (*big.Int, bool) {
	switch x := v.(type) {
	case *big.Int:
		return x, x != nil
	case int64:
		return big.NewInt(x), true
	case int:
		return big.NewInt(int64(x)), true
	case string:
		return new(big.Int).SetString(strings.TrimSpace(x), 10)
	case []byte:
		return new(big.Int).SetString(strings.TrimSpace(string(x)), 10)
	}
	return nil, false
}

// numericEqual compares two numeric cells by value so that int64(1),
// float64(1) and "1" are the same edit. Values are compared exactly unless
// one side is already a float.
func numericEqual(a, b any) bool {
	if eq, ok := sameSentinel(a, b); ok {
		return eq
	}
	if isFloat(a) || isFloat(b) {
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if aok && bok {
			return af == bf
		}
	} else {
		ar, aok := toRat(a)
		br, bok := toRat(b)
		if aok && bok {
			return ar.Cmp(br) == 0
		}
	}
	return stringify(a) == stringify(b)
}

func isFloat(v any) bool {
	switch v.(type) {
	case float64, float32:
		return true
	}
	return false
}

func toRat(v any) (*big.Rat, bool) {
	switch x := v.(type) {
	case int64:
		return new(big.Rat).SetInt64(x), true
	case int:
		return new(big.Rat).SetInt64(int64(x)), true
	case *big.Int:
		if x == nil {
			return nil, false
		}
		return new(big.Rat).SetInt(x), true
	case string:
		return parseDecimal(x)
	case []byte:
		return parseDecimal(string(x))
	}
	return nil, false
}

func parseDecimal(s string) (*big.Rat, bool) {
	s = strings.TrimSpace(s)
	if !decimalPattern.MatchString(s) {
		return nil, false
	}
	return new(big.Rat).SetString(s)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case *big.Int:
		if x == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f, err == nil
	}
	return 0, false
}

func toBytes(v any) []byte {
	switch x := v.(type) {
	case []byte:
		return x
	case string:
		return []byte(x)
	}
	return nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case *big.Int:
		if x == nil {
			return ""
		}
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
