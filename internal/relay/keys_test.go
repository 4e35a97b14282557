package relay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain name", "report.pdf", "report.pdf"},
		{"path traversal", "../../etc/passwd", "passwd"},
		{"absolute path", "/etc/shadow", "shadow"},
		{"windows path", `C:\Users\bob\doc.pdf`, "doc.pdf"},
		{"spaces and shell characters", "my file $(rm).txt", "my_file___rm_.txt"},
		{"unicode letters kept", "résumé.pdf", "résumé.pdf"},
		{"dots only", "...", "file"},
		{"empty", "", "file"},
		{"hidden file keeps stem", ".bashrc", "bashrc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func TestBuildKey(t *testing.T) {
	key := BuildKey("uploads", "report.pdf")
	assert.True(t, strings.HasPrefix(key, "uploads/"))
	assert.True(t, strings.HasSuffix(key, "/report.pdf"))
	assert.NotContains(t, key, "..")

	// identical names must never collide
	assert.NotEqual(t, key, BuildKey("uploads", "report.pdf"))
}

func TestBuildKeyNoPrefix(t *testing.T) {
	key := BuildKey("", "a.bin")
	assert.False(t, strings.HasPrefix(key, "/"))
	assert.True(t, strings.HasSuffix(key, "/a.bin"))
}

func TestBuildKeyHostileNameStaysUnderPrefix(t *testing.T) {
	key := BuildKey("uploads", "../../../root/.ssh/authorized_keys")
	assert.True(t, strings.HasPrefix(key, "uploads/"))
	assert.True(t, strings.HasSuffix(key, "/authorized_keys"))
}
