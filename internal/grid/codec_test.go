package grid

import (
	"math"
	"math/big"
	"reflect"
	"strings"
	"testing"

	"tedgrid/internal/dblib"
)

func TestTypeFromDecl(t *testing.T) {
	tests := []struct {
		decl string
		want ColumnType
	}{
		{"", TypeText},
		{"TEXT", TypeText},
		{"varchar(255)", TypeText},
		{"INTEGER", TypeInteger},
		{"smallint", TypeInteger},
		{"serial", TypeInteger},
		{"BIGINT", TypeBigInt},
		{"int8", TypeBigInt},
		{"bigserial", TypeBigInt},
		{"BOOLEAN", TypeBoolean},
		{"BLOB", TypeBlob},
		{"bytea", TypeBlob},
		{"VARBINARY(16)", TypeBlob},
		{"REAL", TypeReal},
		{"double precision", TypeReal},
		{"numeric(10,2)", TypeDecimal},
		{"DECIMAL(38,10)", TypeDecimal},
		{"F32_BLOB(3)", TypeVector},
		{"vector(768)", TypeVector},
		{"interval", TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.decl, func(t *testing.T) {
			if got := TypeFromDecl(tt.decl); got != tt.want {
				t.Errorf("TypeFromDecl(%q) = %v, want %v", tt.decl, got, tt.want)
			}
		})
	}
}

func TestParseInput(t *testing.T) {
	if d := ParseInput(NullGlyph); !d.Null {
		t.Errorf("expected NULL glyph to parse as null, got %+v", d)
	}
	if d := ParseInput("NULL"); d.Null || d.Text != "NULL" {
		t.Errorf("expected literal NULL text to stay text, got %+v", d)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		typ   ColumnType
		value any
	}{
		{"text", TypeText, "hello"},
		{"text empty", TypeText, ""},
		{"text unicode", TypeText, "héllo 世界"},
		{"integer", TypeInteger, int64(42)},
		{"integer negative", TypeInteger, int64(-7)},
		{"integer max", TypeInteger, int64(math.MaxInt64)},
		{"integer above float precision", TypeInteger, int64(1<<53 + 1)},
		{"decimal", TypeDecimal, "12345678901234567890.12"},
		{"decimal tiny fraction", TypeDecimal, "0.1000000000000000000001"},
		{"real", TypeReal, 2.5},
		{"boolean true", TypeBoolean, true},
		{"boolean false", TypeBoolean, false},
		{"blob printable", TypeBlob, []byte("abc")},
		{"blob binary", TypeBlob, []byte{0x00, 0xff, '\\', 'x', '\n'}},
		{"vector", TypeVector, []byte{0, 0, 128, 63, 0, 0, 32, 64}},
		{"bigint small", TypeBigInt, int64(1 << 40)},
		{"null", TypeInteger, nil},
		{"default", TypeText, Default},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CodecFor(tt.typ)
			got := c.ToStorage(c.ToDisplay(tt.value))
			if !reflect.DeepEqual(got, tt.value) {
				t.Errorf("round trip of %#v gave %#v", tt.value, got)
			}
			if !c.Equal(got, tt.value) {
				t.Errorf("Equal(%#v, %#v) = false after round trip", got, tt.value)
			}
		})
	}
}

func TestBigIntRoundTrip(t *testing.T) {
	n, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	c := CodecFor(TypeBigInt)
	d := c.ToDisplay(n)
	if d.Text != "123456789012345678901234567890" {
		t.Fatalf("unexpected display %q", d.Text)
	}
	got, ok := c.ToStorage(d).(*big.Int)
	if !ok || got.Cmp(n) != 0 {
		t.Errorf("expected %v, got %#v", n, c.ToStorage(d))
	}
}

func TestNumericMalformedInputIsNull(t *testing.T) {
	for _, typ := range []ColumnType{TypeInteger, TypeReal, TypeBigInt, TypeDecimal} {
		c := CodecFor(typ)
		for _, in := range []string{"abc", "", "1.2.3"} {
			if v := c.ToStorage(Display{Text: in}); v != nil {
				t.Errorf("%v: ToStorage(%q) = %#v, want nil", typ, in, v)
			}
		}
	}
	rc := CodecFor(TypeReal)
	for _, in := range []string{"NaN", "Inf", "-Inf"} {
		if v := rc.ToStorage(Display{Text: in}); v != nil {
			t.Errorf("real: ToStorage(%q) = %#v, want nil", in, v)
		}
	}
}

func TestIntegerKeepsFractions(t *testing.T) {
	c := CodecFor(TypeInteger)
	if v := c.ToStorage(Display{Text: " 12 "}); v != int64(12) {
		t.Errorf("expected int64 12, got %#v", v)
	}
	if v := c.ToStorage(Display{Text: "1.5"}); v != 1.5 {
		t.Errorf("expected 1.5, got %#v", v)
	}
	n, ok := c.ToStorage(Display{Text: "99999999999999999999"}).(*big.Int)
	if !ok || n.String() != "99999999999999999999" {
		t.Errorf("expected an exact *big.Int beyond int64, got %#v", n)
	}
}

func TestBooleanParsing(t *testing.T) {
	c := CodecFor(TypeBoolean)
	for in, want := range map[string]any{"1": true, "t": true, "TRUE": true, "0": false, "f": false, "maybe": nil} {
		if got := c.ToStorage(Display{Text: in}); got != want {
			t.Errorf("ToStorage(%q) = %#v, want %#v", in, got, want)
		}
	}
	if d := c.ToDisplay(int64(1)); d.Text != "true" {
		t.Errorf("expected integer 1 to display as true, got %q", d.Text)
	}
}

func TestBlobEscapes(t *testing.T) {
	c := CodecFor(TypeBlob)
	d := c.ToDisplay([]byte{'a', 0x01, '\\'})
	if d.Text != `a\x01\\` {
		t.Errorf("unexpected display %q", d.Text)
	}
	for _, bad := range []string{`\q`, `\x1`, `\xzz`, `abc\`} {
		if v := c.ToStorage(Display{Text: bad}); v != nil {
			t.Errorf("ToStorage(%q) = %#v, want nil", bad, v)
		}
	}
}

func TestVectorDisplay(t *testing.T) {
	c := CodecFor(TypeVector)
	v := c.ToStorage(Display{Text: "[1, 2.5]"})
	if d := c.ToDisplay(v); d.Text != "[1, 2.5]" {
		t.Errorf("unexpected display %q", d.Text)
	}
	if v := c.ToStorage(Display{Text: "[1, x]"}); v != nil {
		t.Errorf("expected malformed vector to be nil, got %#v", v)
	}
}

func TestEqualNormalizesNumbers(t *testing.T) {
	c := CodecFor(TypeInteger)
	if !c.Equal(int64(1), float64(1)) {
		t.Error("expected int64(1) == float64(1)")
	}
	if !c.Equal(int64(1), "1") {
		t.Error(`expected int64(1) == "1"`)
	}
	if c.Equal(nil, int64(0)) {
		t.Error("expected NULL != 0")
	}
	if c.Equal(Default, nil) {
		t.Error("expected DEFAULT != NULL")
	}
}

func TestIntegerEqualIsExact(t *testing.T) {
	c := CodecFor(TypeInteger)
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"adjacent above 2^53", int64(1<<53 + 1), int64(1 << 53), false},
		{"max against max-1 text", int64(math.MaxInt64), "9223372036854775806", false},
		{"same value as text", int64(1<<53 + 1), "9007199254740993", true},
		{"big.Int against int64", big.NewInt(1<<53 + 1), int64(1 << 53), false},
		{"float side uses float", int64(2), 2.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%#v, %#v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDecimalKeepsDigits(t *testing.T) {
	c := CodecFor(TypeDecimal)
	if c.Equal("12345678901234567890.12", "12345678901234567890.13") {
		t.Error("decimals differing in the last digit should not be equal")
	}
	if !c.Equal("1.50", "1.5") {
		t.Error("trailing zeros should not make an edit")
	}
	if c.Equal("1/2", "0.5") {
		t.Error("fractions are not decimal text")
	}

	v := c.ToStorage(Display{Text: " 99999999999999999999.99 "})
	if v != "99999999999999999999.99" {
		t.Fatalf("expected the decimal text unchanged, got %#v", v)
	}
	if lit := dblib.FormatLiteral(dblib.PostgreSQL, v); !strings.Contains(lit, "99999999999999999999.99") {
		t.Errorf("literal lost digits: %s", lit)
	}
	if v := c.ToStorage(Display{Text: "1/3"}); v != nil {
		t.Errorf("expected fraction input to be NULL, got %#v", v)
	}
}
