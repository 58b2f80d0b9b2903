package frame

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseSimple(t *testing.T) {
	adv, f, err := Parse([]byte("+OK\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if adv != 5 || f.Kind != Simple || f.Str != "OK" {
		t.Fatalf("got %+v adv=%d", f, adv)
	}
}

func TestParseEmptySimple(t *testing.T) {
	adv, f, err := Parse([]byte("+\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if adv != 3 || f.Str != "" {
		t.Fatalf("got %+v adv=%d", f, adv)
	}
}

func TestParseError(t *testing.T) {
	adv, f, err := Parse([]byte("-ERR invalid password\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if adv != 23 || f.Kind != Error || f.Str != "ERR invalid password" {
		t.Fatalf("got %+v adv=%d", f, adv)
	}
}

func TestParseInteger(t *testing.T) {
	adv, f, err := Parse([]byte(":123\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if adv != 6 || f.Int != 123 {
		t.Fatalf("got %+v adv=%d", f, adv)
	}

	adv, f, err = Parse([]byte(":-123\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if adv != 7 || f.Int != -123 {
		t.Fatalf("got %+v adv=%d", f, adv)
	}
}

func TestParseNullBulk(t *testing.T) {
	adv, f, err := Parse([]byte("$-1\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if adv != 5 || !f.IsNull {
		t.Fatalf("got %+v adv=%d", f, adv)
	}
}

func TestParseBulk(t *testing.T) {
	adv, f, err := Parse([]byte("$6\r\nfoobar\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if adv != 12 || !bytes.Equal(f.Bulk, []byte("foobar")) {
		t.Fatalf("got %+v adv=%d", f, adv)
	}
}

func TestParseArray(t *testing.T) {
	adv, f, err := Parse([]byte("*2\r\n$5\r\nhello\r\n$5\r\nworld\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if adv != 26 || len(f.Array) != 2 {
		t.Fatalf("got %+v adv=%d", f, adv)
	}
	if !bytes.Equal(f.Array[0].Bulk, []byte("hello")) || !bytes.Equal(f.Array[1].Bulk, []byte("world")) {
		t.Fatalf("got %+v", f)
	}
}

func TestParseEmptyArray(t *testing.T) {
	adv, f, err := Parse([]byte("*0\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if adv != 4 || len(f.Array) != 0 {
		t.Fatalf("got %+v adv=%d", f, adv)
	}
}

func TestParseIncomplete(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("+OK"),
		[]byte("$6\r\nfoo"),
		[]byte("*2\r\n$5\r\nhello\r\n"),
	}
	for _, c := range cases {
		_, _, err := Parse(c)
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("%q: expected ErrIncomplete, got %v", c, err)
		}
	}
}

func TestParseProtocolErrors(t *testing.T) {
	cases := [][]byte{
		[]byte("*-2\r\n"),
		[]byte("$-2\r\n"),
		[]byte("!nope\r\n"),
		[]byte("$3\r\nabXY\r\n"),
	}
	for _, c := range cases {
		_, _, err := Parse(c)
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("%q: expected ProtocolError, got %v", c, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	frames := []Frame{
		NewSimple("OK"),
		NewError("ERR oops"),
		NewInteger(42),
		NewInteger(-7),
		NewBulk([]byte("hello")),
		NewBulk([]byte{}),
		NewNull(),
		NewArray(NewBulk([]byte("get")), NewBulk([]byte("foo"))),
		NewArray(),
	}
	for _, f := range frames {
		encoded := Encode(f)
		adv, decoded, err := Parse(encoded)
		if err != nil {
			t.Fatalf("%+v: %v", f, err)
		}
		if adv != len(encoded) {
			t.Fatalf("%+v: consumed %d of %d", f, adv, len(encoded))
		}
		if !framesEqual(f, decoded) {
			t.Fatalf("round trip mismatch: %+v != %+v", f, decoded)
		}
	}
}

func TestPartialReadResilience(t *testing.T) {
	original := NewArray(NewBulk([]byte("subscribe")), NewBulk([]byte("ch1")), NewInteger(1))
	encoded := Encode(original)

	var buf []byte
	var got *Frame
	for i := 0; i < len(encoded); i++ {
		buf = append(buf, encoded[i])
		adv, f, err := Parse(buf)
		if err == nil {
			if got != nil {
				t.Fatalf("spurious second frame at byte %d", i)
			}
			if adv != len(buf) {
				t.Fatalf("consumed %d of %d at final byte", adv, len(buf))
			}
			got = &f
			continue
		}
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("unexpected error before completion: %v", err)
		}
	}
	if got == nil {
		t.Fatal("never produced a frame")
	}
	if !framesEqual(*got, original) {
		t.Fatalf("got %+v want %+v", *got, original)
	}
}

func framesEqual(a, b Frame) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Simple, Error:
		return a.Str == b.Str
	case Integer:
		return a.Int == b.Int
	case Bulk:
		if a.IsNull != b.IsNull {
			return false
		}
		return bytes.Equal(a.Bulk, b.Bulk)
	case Array:
		if len(a.Array) != len(b.Array) {
			return false
		}
		for i := range a.Array {
			if !framesEqual(a.Array[i], b.Array[i]) {
				return false
			}
		}
		return true
	}
	return false
}
