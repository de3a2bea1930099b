package screenshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

func TestResolveScanDir_RejectsNonUUID(t *testing.T) {
	c := New(t.TempDir())
	if _, err := c.resolveScanDir("not-a-uuid"); err == nil {
		t.Fatal("expected non-UUID scanId to be rejected")
	}
}

func TestResolveScanDir_StaysInsideBase(t *testing.T) {
	base := t.TempDir()
	c := New(base)
	scanID := uuid.NewString()

	dir, err := c.resolveScanDir(scanID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	absBase, _ := filepath.Abs(base)
	if filepath.Dir(dir) != absBase {
		t.Errorf("expected scan dir directly under base, got %q (base %q)", dir, absBase)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected scan directory to be created: %v", err)
	}
}

func TestSanitizeRuleID_StripsAndTruncates(t *testing.T) {
	dirty := "rule/../id<script>" + string(make([]byte, 200))
	got := sanitizeRuleID(dirty)
	if len(got) > 100 {
		t.Errorf("expected truncation to 100 chars, got length %d", len(got))
	}
	for _, r := range got {
		if !(r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			t.Fatalf("unexpected character %q survived sanitization", r)
		}
	}
}

func TestClampToViewport_NeverNegativeDimensions(t *testing.T) {
	box := padBox(proto.DOMRect{X: -10, Y: -10, Width: 20, Height: 20}, 5)
	clamped := clampToViewport(box, 100, 100)
	if clamped.Width < 1 || clamped.Height < 1 {
		t.Errorf("expected clamped dimensions >= 1, got %+v", clamped)
	}
	if clamped.X < 0 || clamped.Y < 0 {
		t.Errorf("expected clamped origin >= 0, got %+v", clamped)
	}
}
