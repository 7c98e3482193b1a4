package util

import (
	"reflect"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in       string
		def      int64
		expected int64
	}{
		{"10KB", 0, 10 * 1024},
		{"2MB", 0, 2 * 1024 * 1024},
		{"1GB", 0, 1024 * 1024 * 1024},
		{"4096", 0, 4096},
		{" 512kb ", 0, 512 * 1024},
		{"", 42, 42},
		{"garbage", 42, 42},
	}

	for _, tt := range tests {
		if got := ParseSize(tt.in, tt.def); got != tt.expected {
			t.Errorf("ParseSize(%q): expected %d, got %d", tt.in, tt.expected, got)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("sk-abcdef123456", 5); got != "sk-ab***" {
		t.Errorf("expected sk-ab***, got %s", got)
	}
	if got := MaskSecret("ab", 5); got != "***" {
		t.Errorf("short secrets should be fully masked, got %s", got)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in       string
		expected []string
	}{
		{"elevenlabs,tone", []string{"elevenlabs", "tone"}},
		{" elevenlabs , tone ", []string{"elevenlabs", "tone"}},
		{"solo", []string{"solo"}},
		{"a,,b,", []string{"a", "b"}},
		{"", nil},
		{"  ", nil},
	}

	for _, tt := range tests {
		if got := SplitList(tt.in); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("SplitList(%q): expected %v, got %v", tt.in, tt.expected, got)
		}
	}
}
