package extract

import (
	"bytes"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/diagramgen/pkg/errors"
)

type nopExtractor struct{}

func (nopExtractor) Parse(io.Reader, string) error        { return nil }
func (nopExtractor) WriteDiagram(io.Writer) (bool, error) { return false, nil }

func nopFactory(Config) (Extractor, error) { return nopExtractor{}, nil }

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(".java", nopFactory)
	r.Register("KT", nopFactory)

	tests := []struct {
		file string
		want bool
	}{
		{"pkg/Foo.java", true},
		{"pkg/Foo.JAVA", true},
		{"Foo.kt", true},
		{"Foo.txt", false},
		{"Makefile", false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			if _, got := r.Lookup(tt.file); got != tt.want {
				t.Errorf("Lookup(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}

	if got := r.Extensions(); !slices.Equal(got, []string{"java", "kt"}) {
		t.Errorf("Extensions() = %v", got)
	}
}

func TestRegistryNewUnknown(t *testing.T) {
	_, err := NewRegistry().New("Foo.txt", Config{})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("New() error = %v, want INVALID_INPUT", err)
	}
}

func TestConfigOption(t *testing.T) {
	cfg := Config{Options: map[string]string{"edgerNames": "ast"}}
	if got := cfg.Option("edgerNames", "control-flow"); got != "ast" {
		t.Errorf("Option() = %q, want ast", got)
	}
	if got := cfg.Option("keepNode", "x"); got != "x" {
		t.Errorf("Option() = %q, want default", got)
	}
	lower := Config{Options: map[string]string{"edgernames": "ast"}}
	if got := lower.Option("edgerNames", ""); got != "ast" {
		t.Errorf("Option() case-insensitive = %q, want ast", got)
	}
	if got := (Config{}).Option("a", "b"); got != "b" {
		t.Errorf("Option() on nil map = %q, want b", got)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		encoding string
		want     string
		wantErr  bool
	}{
		{"empty means utf-8", []byte("héllo"), "", "héllo", false},
		{"utf-8", []byte("héllo"), "UTF-8", "héllo", false},
		{"latin1", []byte{'h', 0xe9, 'l', 'l', 'o'}, "ISO-8859-1", "héllo", false},
		{"unknown", []byte("x"), "no-such-charset", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Decode(bytes.NewReader(tt.input), tt.encoding)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeParse) {
					t.Errorf("Decode() error = %v, want PARSE", err)
				}
				return
			}
			var sb strings.Builder
			if _, err := io.Copy(&sb, r); err != nil {
				t.Fatal(err)
			}
			if sb.String() != tt.want {
				t.Errorf("Decode() = %q, want %q", sb.String(), tt.want)
			}
		})
	}
}
