package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidator_ValidateDirectory(t *testing.T) {
	v := NewValidator()

	tempDir := t.TempDir()
	tempFile := filepath.Join(tempDir, "testfile.txt")
	if err := os.WriteFile(tempFile, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid directory",
			path:    tempDir,
			wantErr: false,
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: true,
			errMsg:  "directory path cannot be empty",
		},
		{
			name:    "file instead of directory",
			path:    tempFile,
			wantErr: true,
			errMsg:  "path is not a directory",
		},
		{
			name:    "non-existent path",
			path:    "/non/existent/path/that/should/not/exist",
			wantErr: true,
			errMsg:  "invalid directory",
		},
		{
			name:    "current directory",
			path:    ".",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDirectory(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDirectory() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateDirectory() error message = %v, want to contain %v", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestValidator_ValidateFile(t *testing.T) {
	v := NewValidator()

	tempDir := t.TempDir()
	tempFile := filepath.Join(tempDir, "testfile.txt")
	if err := os.WriteFile(tempFile, []byte("test content"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid file",
			path:    tempFile,
			wantErr: false,
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: true,
			errMsg:  "file path cannot be empty",
		},
		{
			name:    "directory instead of file",
			path:    tempDir,
			wantErr: true,
			errMsg:  "path is a directory, not a file",
		},
		{
			name:    "non-existent file",
			path:    "/non/existent/file.txt",
			wantErr: true,
			errMsg:  "file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateFile(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFile() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateFile() error message = %v, want to contain %v", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestValidator_ResolvePath(t *testing.T) {
	v := NewValidator()

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{
			name: "empty path",
			path: "",
			want: "",
		},
		{
			name: "current directory",
			path: ".",
			want: cwd,
		},
		{
			name: "absolute path",
			path: "/usr/local/bin",
			want: "/usr/local/bin",
		},
		{
			name: "relative path",
			path: "subdir",
			want: filepath.Join(cwd, "subdir"),
		},
		{
			name: "relative path with parent",
			path: "../test",
			want: filepath.Join(filepath.Dir(cwd), "test"),
		},
		{
			name: "home directory",
			path: "~/inbox",
			want: filepath.Join(home, "inbox"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ResolvePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ResolvePath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ResolvePath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidator_ValidateTasks(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		tasks   []string
		wantErr bool
	}{
		{name: "none", tasks: nil},
		{name: "all", tasks: []string{"sentiment", "keywords", "topics", "summary"}},
		{name: "case insensitive", tasks: []string{"Sentiment"}},
		{name: "unknown", tasks: []string{"sentiment", "translation"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateTasks(tt.tasks)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTasks() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_ValidateTheme(t *testing.T) {
	v := NewValidator()

	for theme, wantErr := range map[string]bool{
		"dark":  false,
		"light": false,
		"":      true,
		"blue":  true,
	} {
		if err := v.ValidateTheme(theme); (err != nil) != wantErr {
			t.Errorf("ValidateTheme(%q) error = %v, wantErr %v", theme, err, wantErr)
		}
	}
}
