package errors

import (
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://raw.githubusercontent.com/x/y.csv", false},
		{"http", "http://localhost:8080/data.csv", false},
		{"empty", "", true},
		{"ftp", "ftp://example.com/data.csv", true},
		{"no scheme", "example.com/data.csv", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSource(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https url", "https://example.com/dataset.csv", false},
		{"s3 object", "s3://census/stl/dataset.csv", false},
		{"relative path", "data/dataset.csv", false},
		{"absolute path", "/var/lib/tractstory/dataset.csv", false},
		{"file url", "file:///tmp/dataset.csv", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 3000), true},
		{"null byte", "data\x00.csv", true},
		{"newline", "data\n.csv", true},
		{"s3 without key", "s3://census", true},
		{"s3 without bucket", "s3:///dataset.csv", true},
		{"unknown scheme", "gopher://example.com/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSource(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSource(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidSource) && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("ValidateSource(%q) code = %v", tt.input, GetCode(err))
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"uuid", "0b7c9a4e-2f7d-4d52-9a61-6f1b0c3e8d11", false},
		{"empty", "", true},
		{"path", "../etc/passwd", true},
		{"too long", strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
