package errors

import (
	"testing"
)

func TestValidatePackageID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "googlechrome", false},
		{"valid with dash", "vcredist-all", false},
		{"valid with underscore", "my_package", false},
		{"valid with dots", "chocolatey-core.extension", false},
		{"valid mixed case", "KB2919355", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"path traversal ..", "foo..bar", true},
		{"slash", "foo/bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
		{"space", "foo bar", true},
		{"leading dot", ".hidden", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePackageID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePackageID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPackage) {
				t.Errorf("ValidatePackageID(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidPackage)
			}
		})
	}
}

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"latest", "", false},
		{"three part", "1.2.3", false},
		{"four part", "120.0.6099.130", false},
		{"prerelease", "2.0.0-beta1", false},
		{"truncated range", "1.2.3,2.0.0)", false},

		{"slash", "1.0/../../x", true},
		{"traversal", "..", true},
		{"backslash", "1\\0", true},
		{"control char", "1.0\n", true},
		{"too long", string(make([]byte, 200)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://example.com/setup.exe", false},
		{"http", "http://example.com/setup.exe", false},

		{"empty", "", true},
		{"ftp", "ftp://example.com/setup.exe", true},
		{"relative", "example.com/setup.exe", true},
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
