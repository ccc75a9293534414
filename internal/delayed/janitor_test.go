package delayed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"markbot/internal/transport"
	logx "markbot/pkg/logx"
)

func TestSweepRemovesOrphansOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, _ := newTestStore(t, dir)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	write := func(name string) string {
		t.Helper()
		path := filepath.Join(s.AttachmentsDir(), name)
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	live := write("1_kept.pdf")
	orphan := write("9_orphan.pdf")
	foreign := write("README.txt")

	if _, err := s.Create("with file", time.Now().Add(time.Hour),
		[]transport.Attachment{{FilePath: live, OriginalName: "kept.pdf"}}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	NewJanitor(s, logx.Nop()).Sweep()

	if _, err := os.Stat(live); err != nil {
		t.Fatal("referenced attachment was removed")
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatal("orphaned attachment survived the sweep")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Fatal("file outside the naming convention was removed")
	}
}
