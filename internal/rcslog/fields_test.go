package rcslog

import (
	"testing"
)

func TestSplitTimestamp(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantDate  string
		wantClock string
	}{
		{"date and time", "2023/05/10 14:30:05", "10/05/2023", "14:30:05"},
		{"date only", "2023/05/10", "10/05/2023", "00:00:00"},
		{"midnight", "1999/12/31 00:00:00", "31/12/1999", "00:00:00"},
		{"unpadded date and time", "2023/5/1 9:0:7", "01/05/2023", "09:00:07"},
		{"unpadded date only", "2023/5/1", "01/05/2023", "00:00:00"},
		{"empty", "", "", ""},
		{"iso dashes", "2023-05-10 14:30:05 +0000", "", ""},
		{"garbage", "yesterday", "", ""},
		{"invalid month", "2023/13/10 10:00:00", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, clock := SplitTimestamp(tt.input)
			if date != tt.wantDate || clock != tt.wantClock {
				t.Errorf("SplitTimestamp(%q) = (%q, %q), want (%q, %q)",
					tt.input, date, clock, tt.wantDate, tt.wantClock)
			}
		})
	}
}

func TestDecodeStructuredMessage(t *testing.T) {
	tests := []struct {
		name         string
		message      string
		wantCategory string
		wantMinutes  *float64
		wantComment  string
	}{
		{"full", "#ANOMALIA#30#fix layout", "ANOMALIA", floatPtr(30), "fix layout"},
		{"fractional minutes", "#MANUT#1.5#tweak", "MANUT", floatPtr(1.5), "tweak"},
		{"padded minutes", "#MANUT# 15 #tweak", "MANUT", floatPtr(15), "tweak"},
		{"empty minutes", "#NOVA##new screen", "NOVA", nil, "new screen"},
		{"non-numeric minutes", "#NOVA#abc#new screen", "NOVA", nil, "new screen"},
		{"nan minutes", "#NOVA#nan#x", "NOVA", nil, "x"},
		{"NaN minutes", "#NOVA#NaN#x", "NOVA", nil, "x"},
		{"inf minutes", "#NOVA#inf#x", "NOVA", nil, "x"},
		{"negative infinity minutes", "#NOVA#-Infinity#x", "NOVA", nil, "x"},
		{"hex minutes", "#NOVA#0x1p3#x", "NOVA", nil, "x"},
		{"exponent minutes", "#NOVA#1e1#x", "NOVA", floatPtr(10), "x"},
		{"overflowing minutes", "#NOVA#1e400#x", "NOVA", nil, "x"},
		{"comment keeps hashes", "#NOVA#5#a#b#c", "NOVA", floatPtr(5), "a#b#c"},
		{"missing comment", "#NOVA#5#", "", nil, ""},
		{"only two fields", "#NOVA#5", "", nil, ""},
		{"empty category", "##5#x", "", nil, ""},
		{"not structured", "plain message", "", nil, ""},
		{"empty", "", "", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeStructuredMessage(tt.message)
			if got.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", got.Category, tt.wantCategory)
			}
			if got.Comment != tt.wantComment {
				t.Errorf("Comment = %q, want %q", got.Comment, tt.wantComment)
			}
			if !equalMinutes(got.Minutes, tt.wantMinutes) {
				t.Errorf("Minutes = %v, want %v", fmtMinutes(got.Minutes), fmtMinutes(tt.wantMinutes))
			}
		})
	}
}

func TestDecodeStructuredMessage_RoundTrip(t *testing.T) {
	categories := []string{"ANOMALIA", "MANUT", "Nova Tela", "x"}
	minutes := []string{"", "0", "45", "2.25"}
	comments := []string{"fix", "a longer comment with spaces", "#hash inside", "ç acentuação"}

	for _, c := range categories {
		for _, m := range minutes {
			for _, txt := range comments {
				got := DecodeStructuredMessage("#" + c + "#" + m + "#" + txt)
				if got.Category != c {
					t.Errorf("category for %q/%q/%q = %q", c, m, txt, got.Category)
				}
				if got.Comment != txt {
					t.Errorf("comment for %q/%q/%q = %q", c, m, txt, got.Comment)
				}
				if want := parseMinutes(m); !equalMinutes(got.Minutes, want) {
					t.Errorf("minutes for %q = %v, want %v", m, fmtMinutes(got.Minutes), fmtMinutes(want))
				}
			}
		}
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		path   string
		prefix string
		want   string
	}{
		{"/export/cvs/telas/Centro/ALPHA/tela1,v", "/export/cvs", "/telas/Centro/ALPHA/tela1"},
		{"/export/cvs/telas/Centro/ALPHA/tela1,v", "/export/cvs/", "/telas/Centro/ALPHA/tela1"},
		{"/other/root/tela1,v", "/export/cvs", "/other/root/tela1"},
		{"/export/cvs/tela1", "/export/cvs", "/tela1"},
		{"relative/tela1,v", "", "relative/tela1"},
	}

	for _, tt := range tests {
		if got := CleanPath(tt.path, tt.prefix); got != tt.want {
			t.Errorf("CleanPath(%q, %q) = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"/export/cvs/telas/Centro/ALPHA/tela1,v": "tela1",
		"/a/b/Attic/old.c,v":                    "old.c",
		"plain,v":                               "plain",
		"plain":                                 "plain",
		"/dir/":                                 "",
	}
	for in, want := range tests {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFinalizeMessage(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"single line", []string{"fix bug"}, "fix bug"},
		{"multi line", []string{"first", "second", "third"}, "first second third"},
		{"blank edges", []string{"", "  ", "body", ""}, "body"},
		{"empty placeholder", []string{EmptyLogMessage}, ""},
		{"empty placeholder with blank lines", []string{"", EmptyLogMessage, "   "}, ""},
		{"placeholder inside text", []string{"note:", EmptyLogMessage}, "note: " + EmptyLogMessage},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FinalizeMessage(tt.lines); got != tt.want {
				t.Errorf("FinalizeMessage(%q) = %q, want %q", tt.lines, got, tt.want)
			}
		})
	}
}

func TestFinalizeMessage_Idempotent(t *testing.T) {
	inputs := [][]string{
		{"a", "b"},
		{"#MANUT#10#x", "y"},
		{"", "z", ""},
	}
	for _, in := range inputs {
		once := FinalizeMessage(in)
		twice := FinalizeMessage([]string{once})
		if once != twice {
			t.Errorf("not idempotent: %q then %q", once, twice)
		}
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

func equalMinutes(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func fmtMinutes(v *float64) interface{} {
	if v == nil {
		return "<nil>"
	}
	return *v
}
