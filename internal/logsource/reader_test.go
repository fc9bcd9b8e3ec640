package logsource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleLog = `RCS file: /export/cvs/telas/Centro/ALPHA/tela1,v
Working file: ALPHA/tela1
----------------------------
revision 1.1
date: 2023/05/01 09:00:00;  author: maria;  state: Exp;
Initial revision
=============================================================================
`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

func TestNewReader(t *testing.T) {
	reader := NewReader(10)

	if reader == nil {
		t.Fatal("Expected reader to be created")
	}

	if reader.maxSizeMB != 10 {
		t.Errorf("Expected maxSizeMB 10, got %d", reader.maxSizeMB)
	}
}

func TestRead_FileNotFound(t *testing.T) {
	reader := NewReader(10)

	_, err := reader.Read("/nonexistent/cvs.log")

	if err == nil {
		t.Fatal("Expected error for nonexistent file")
	}

	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected 'not found' error, got: %v", err)
	}
}

func TestRead_Directory(t *testing.T) {
	reader := NewReader(10)

	_, err := reader.Read(t.TempDir())

	if err == nil || !strings.Contains(err.Error(), "directory") {
		t.Errorf("Expected 'directory' error, got: %v", err)
	}
}

func TestRead_ValidFile(t *testing.T) {
	path := writeFile(t, "cvs.log", []byte(sampleLog))

	reader := NewReader(10)
	result, err := reader.Read(path)

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result != sampleLog {
		t.Error("Content mismatch")
	}
}

func TestRead_Latin1File(t *testing.T) {
	// "manutenção" encoded as ISO-8859-1
	latin1 := []byte(strings.Replace(sampleLog, "Initial revision", "manuten\xe7\xe3o", 1))
	path := writeFile(t, "cvs.log", latin1)

	reader := NewReader(10)
	result, err := reader.Read(path)

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !strings.Contains(result, "manutenção") {
		t.Errorf("Expected Latin-1 content to be decoded, got: %q", result)
	}
}

func TestRead_FileTooBig(t *testing.T) {
	large := strings.Repeat(sampleLog, 2*1024*1024/len(sampleLog)+1)
	path := writeFile(t, "cvs.log", []byte(large))

	reader := NewReader(1) // 1MB limit
	_, err := reader.Read(path)

	if err == nil {
		t.Fatal("Expected error for file exceeding size limit")
	}

	if !strings.Contains(err.Error(), "exceeds maximum size") {
		t.Errorf("Expected 'exceeds maximum size' error, got: %v", err)
	}
}

func TestRead_EmptyFile(t *testing.T) {
	path := writeFile(t, "cvs.log", []byte("\n\n"))

	reader := NewReader(10)
	_, err := reader.Read(path)

	if err == nil {
		t.Fatal("Expected error for empty file")
	}

	if !strings.Contains(err.Error(), "empty") {
		t.Errorf("Expected 'empty' error, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	reader := NewReader(10)

	tests := []struct {
		name        string
		content     string
		expectError bool
	}{
		{
			name:        "Valid content",
			content:     sampleLog,
			expectError: false,
		},
		{
			name:        "Empty content",
			content:     "",
			expectError: true,
		},
		{
			name:        "Whitespace only",
			content:     " \n\t\n",
			expectError: true,
		},
		{
			name:        "Not a cvs log",
			content:     strings.Repeat("some unrelated text\n", 20),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reader.Validate(tt.content)
			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	got, err := Decode([]byte("caf\xe9"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "café" {
		t.Errorf("Decode() = %q, want %q", got, "café")
	}

	got, err = Decode([]byte("café"))
	if err != nil || got != "café" {
		t.Errorf("UTF-8 input should pass through, got %q, %v", got, err)
	}
}

func TestGetSourceInfo(t *testing.T) {
	path := writeFile(t, "cvs.log", []byte(sampleLog))

	reader := NewReader(10)
	info, err := reader.GetSourceInfo(path)

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, key := range []string{"size_bytes", "size_mb", "modified", "age_hours"} {
		if _, ok := info[key]; !ok {
			t.Errorf("Expected key %q in source info", key)
		}
	}

	if info["size_bytes"].(int64) != int64(len(sampleLog)) {
		t.Errorf("Expected size_bytes %d, got %v", len(sampleLog), info["size_bytes"])
	}

	if _, err := reader.GetSourceInfo("/nonexistent/cvs.log"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}
