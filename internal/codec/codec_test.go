package codec

import (
	"errors"
	"slices"
	"strings"
	"testing"

	dberrors "github.com/maruel/recdb/internal/errors"
	"github.com/maruel/recdb/internal/record"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", JSON, false},
		{"CSV", CSV, false},
		{"yml", YAML, false},
		{"xml", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
		if err != nil && !errors.Is(err, dberrors.ErrUnsupportedFormat) {
			t.Errorf("ParseFormat(%q) error is not ErrUnsupportedFormat: %v", tt.in, err)
		}
	}
	if f, err := FormatFromPath("inbox/users.csv"); err != nil || f != CSV {
		t.Errorf("FormatFromPath() = %q, %v", f, err)
	}
}

func TestJSON(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		recs, err := Decode(JSON, []byte(`[{"userId":"U001","availability":100,"isVerified":true}]`))
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 || recs[0]["availability"] != float64(100) || recs[0]["isVerified"] != true {
			t.Errorf("Decode() = %v", recs)
		}
	})
	t.Run("invalid", func(t *testing.T) {
		for _, in := range []string{`{`, `{"a":1}`, `[1,2]`, `[null]`} {
			if _, err := Decode(JSON, []byte(in)); err == nil {
				t.Errorf("Decode(%s) succeeded", in)
			}
		}
	})
	t.Run("export", func(t *testing.T) {
		out, err := Encode(JSON, []record.Record{{"a": "x<y"}}, Options{})
		if err != nil {
			t.Fatal(err)
		}
		want := "[\n  {\n    \"a\": \"x<y\"\n  }\n]\n"
		if string(out) != want {
			t.Errorf("Encode() = %q, want %q", out, want)
		}
		out, err = Encode(JSON, nil, Options{})
		if err != nil || strings.TrimSpace(string(out)) != "[]" {
			t.Errorf("Encode(nil) = %q, %v", out, err)
		}
	})
}

func TestCSV(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		in := "userId,userName,availability,isVerified,phone\n" +
			"U001,John Doe,100,true,007\n" +
			"U002,\"Smith, Jane\",75,false,\n" +
			",Nobody,1,true,x\n"
		recs, err := Decode(CSV, []byte(in))
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 3 {
			t.Fatalf("got %d records", len(recs))
		}
		if recs[0]["availability"] != float64(100) || recs[0]["isVerified"] != true || recs[0]["phone"] != "007" {
			t.Errorf("row 1 = %v", recs[0])
		}
		if recs[1]["userName"] != "Smith, Jane" {
			t.Errorf("row 2 = %v", recs[1])
		}
		if _, ok := recs[1]["phone"]; ok {
			t.Errorf("empty cell produced a field: %v", recs[1])
		}
		if _, ok := recs[2]["userId"]; ok {
			t.Errorf("empty key cell produced a field: %v", recs[2])
		}
	})
	t.Run("empty", func(t *testing.T) {
		recs, err := Decode(CSV, nil)
		if err != nil || len(recs) != 0 {
			t.Errorf("Decode(empty) = %v, %v", recs, err)
		}
	})
	t.Run("short rows", func(t *testing.T) {
		recs, err := Decode(CSV, []byte("a,b,c\n1\n"))
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 || recs[0]["a"] != float64(1) || len(recs[0]) != 1 {
			t.Errorf("Decode() = %v", recs)
		}
	})
	t.Run("export", func(t *testing.T) {
		recs := []record.Record{
			{"userId": "U001", "userName": "John", "status": "active,inactive"},
			{"userId": "U002", "userName": `Say "hi"`, "extra": float64(2)},
		}
		out, err := Encode(CSV, recs, Options{Columns: []string{"userId", "userName", "missing"}})
		if err != nil {
			t.Fatal(err)
		}
		want := "userId,userName,status,extra\n" +
			"U001,John,\"active,inactive\",\n" +
			"U002,\"Say \"\"hi\"\"\",,2\n"
		if string(out) != want {
			t.Errorf("Encode() =\n%s\nwant\n%s", out, want)
		}
		out, err = Encode(CSV, nil, Options{})
		if err != nil || len(out) != 0 {
			t.Errorf("Encode(nil) = %q, %v", out, err)
		}
	})
}

func TestYAML(t *testing.T) {
	in := "- userId: U001\n  availability: 100\n  joinDate: 2024-01-15\n- userId: U002\n  isVerified: false\n"
	recs, err := Decode(YAML, []byte(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0]["availability"] != float64(100) || recs[0]["joinDate"] != "2024-01-15" || recs[1]["isVerified"] != false {
		t.Errorf("Decode() = %#v", recs)
	}
	out, err := Encode(YAML, recs, Options{})
	if err != nil {
		t.Fatal(err)
	}
	again, err := Decode(YAML, out)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 2 || again[0]["joinDate"] != "2024-01-15" {
		t.Errorf("round trip = %#v\n%s", again, out)
	}
	if recs, err := Decode(YAML, nil); err != nil || len(recs) != 0 {
		t.Errorf("Decode(empty) = %v, %v", recs, err)
	}
	if _, err := Decode(YAML, []byte("a: [")); err == nil {
		t.Error("Decode(malformed) succeeded")
	}
}

func TestColumns(t *testing.T) {
	recs := []record.Record{{"b": 1, "a": 2}, {"c": 3, "a": 4}}
	if got := Columns(recs, []string{"c"}); !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Errorf("Columns() = %v", got)
	}
}
