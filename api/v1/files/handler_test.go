package files

import "testing"

func TestSafeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		accepted bool
	}{
		{"plain file", "notes.txt", "notes.txt", true},
		{"nested path stripped", "reports/2026/summary.csv", "summary.csv", true},
		{"traversal stripped", "../../etc/passwd", "passwd", true},
		{"bare parent dir", "..", "", false},
		{"bare current dir", ".", "", false},
		{"trailing slash stripped", "uploads/", "uploads", true},
		{"root", "/", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := safeName(tt.input)
			if ok != tt.accepted {
				t.Fatalf("safeName(%q) accepted = %v, want %v", tt.input, ok, tt.accepted)
			}
			if ok && got != tt.want {
				t.Errorf("safeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
