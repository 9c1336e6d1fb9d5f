package config

import "testing"

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected Precedence
		wantErr  bool
	}{
		{"and_outer", AndOuter, false},
		{"AND-OUTER", AndOuter, false},
		{"", DefaultPrecedence, false},
		{"Default", DefaultPrecedence, false},
		{"and_tighter", AndTighter, false},
		{" And-Tighter ", AndTighter, false},
		{"or_outer", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePrecedence(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p != tt.expected {
				t.Errorf("ParsePrecedence(%q) = %v, want %v", tt.input, p, tt.expected)
			}
		})
	}
}

func TestPrecedenceString(t *testing.T) {
	for _, p := range []Precedence{DefaultPrecedence, AndOuter, AndTighter} {
		got, err := ParsePrecedence(p.String())
		if err != nil || got != p {
			t.Errorf("round trip of %v gave %v, %v", p, got, err)
		}
	}
}

func TestPrecedenceOr(t *testing.T) {
	if got := DefaultPrecedence.Or(AndTighter); got != AndTighter {
		t.Errorf("DefaultPrecedence.Or(AndTighter) = %v", got)
	}
	if got := AndOuter.Or(AndTighter); got != AndOuter {
		t.Errorf("AndOuter.Or(AndTighter) = %v", got)
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if c.Precedence != DefaultPrecedence {
		t.Errorf("default config should leave precedence to the pipeline, got %v", c.Precedence)
	}

	want := []string{"title", "ocr", "asr", "poi_name", "poi_city_name"}
	if len(c.KeywordFields) != len(want) {
		t.Fatalf("expected %d keyword fields, got %v", len(want), c.KeywordFields)
	}
	for i := range want {
		if c.KeywordFields[i] != want[i] {
			t.Errorf("field %d: expected %q, got %q", i, want[i], c.KeywordFields[i])
		}
	}
	if c.LocationField != "based_location" || c.TagsField != "tags" {
		t.Errorf("unexpected target fields: %q %q", c.LocationField, c.TagsField)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no fields", func(c *Config) { c.KeywordFields = nil }},
		{"blank field", func(c *Config) { c.KeywordFields = []string{"title", ""} }},
		{"no location field", func(c *Config) { c.LocationField = "" }},
		{"no tags field", func(c *Config) { c.TagsField = "" }},
		{"bad precedence", func(c *Config) { c.Precedence = Precedence(7) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestFieldsCopy(t *testing.T) {
	c := Default()
	f := c.Fields()
	f[0] = "changed"
	if c.KeywordFields[0] != "title" {
		t.Error("Fields must return a copy")
	}
}
