package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" {
		t.Error("Version must never be empty")
	}
}

func TestString(t *testing.T) {
	i := Info{Version: "1.2.3"}
	if i.String() != "1.2.3" {
		t.Errorf("String() = %s", i.String())
	}

	i = Info{Version: "1.2.3", GitCommit: "0123456789abcdef"}
	got := i.String()
	if !strings.Contains(got, "01234567") || strings.Contains(got, "89abcdef") {
		t.Errorf("String() = %s, want 8-char commit", got)
	}
}
