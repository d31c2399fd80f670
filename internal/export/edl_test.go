package export

import (
	"strings"
	"testing"
)

func TestSecondsToTimecode(t *testing.T) {
	tests := []struct {
		seconds float64
		fps     int
		want    string
	}{
		{0, 30, "00:00:00:00"},
		{1, 30, "00:00:01:00"},
		{1.5, 30, "00:00:01:15"},
		{61, 24, "00:01:01:00"},
		{3661.25, 24, "01:01:01:06"},
		{-1, 30, "00:00:00:00"},
	}

	for _, tt := range tests {
		if got := secondsToTimecode(tt.seconds, tt.fps); got != tt.want {
			t.Errorf("secondsToTimecode(%v, %d) = %q, want %q", tt.seconds, tt.fps, got, tt.want)
		}
	}
}

func TestGenerateEDL_Structure(t *testing.T) {
	clips := []EDLClip{
		{
			Name:       "Second Clip",
			MediaPath:  "/store/cd/cdef",
			SourceInS:  0,
			SourceOutS: 3,
			RecordInS:  10,
			RecordOutS: 13,
		},
		{
			Name:       "First Clip",
			MediaPath:  "/store/ab/abcd",
			SourceInS:  2,
			SourceOutS: 6,
			RecordInS:  0,
			RecordOutS: 4,
		},
	}

	edl := GenerateEDL(clips, "My Cut", 30)

	if !strings.HasPrefix(edl, "TITLE: My Cut\n") {
		t.Errorf("missing title line:\n%s", edl)
	}
	if !strings.Contains(edl, "FCM: NON-DROP FRAME") {
		t.Error("missing frame-count mode line")
	}

	// Events order by record position, not input order.
	first := strings.Index(edl, "First Clip")
	second := strings.Index(edl, "Second Clip")
	if first == -1 || second == -1 || first > second {
		t.Errorf("events out of record order:\n%s", edl)
	}

	if !strings.Contains(edl, "00:00:02:00 00:00:06:00 00:00:00:00 00:00:04:00") {
		t.Errorf("first event timecodes wrong:\n%s", edl)
	}
	if !strings.Contains(edl, "* MEDIA PATH:  /store/ab/abcd") {
		t.Error("missing media path comment")
	}
	if !strings.Contains(edl, "001  ") || !strings.Contains(edl, "002  ") {
		t.Error("missing event numbering")
	}
}

func TestGenerateEDL_DropFrame(t *testing.T) {
	edl := GenerateEDL(nil, "DF", 29.97)
	if !strings.Contains(edl, "FCM: DROP FRAME") {
		t.Error("29.97 fps did not mark drop frame")
	}

	edl = GenerateEDL(nil, "NDF", 25)
	if !strings.Contains(edl, "FCM: NON-DROP FRAME") {
		t.Error("25 fps marked drop frame")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"Plain Title", 0, "Plain Title"},
		{"slash/and\\pipe|", 0, "slash_and_pipe_"},
		{"tabs\tand\nnewlines", 0, "tabsandnewlines"},
		{"truncate me", 8, "truncate"},
		{"  padded  ", 0, "padded"},
	}

	for _, tt := range tests {
		if got := SanitizeName(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("SanitizeName(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
