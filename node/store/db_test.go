package store

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T, dir string) *DB {
	t.Helper()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	d := openTestDB(t, t.TempDir())

	if _, ok, err := d.GetHeader(7); err != nil || ok {
		t.Fatalf("missing header: ok=%v err=%v", ok, err)
	}
	if err := d.PutHeader(7, []byte(`{"height":7}`)); err != nil {
		t.Fatalf("PutHeader: %v", err)
	}
	raw, ok, err := d.GetHeader(7)
	if err != nil || !ok {
		t.Fatalf("GetHeader: ok=%v err=%v", ok, err)
	}
	if string(raw) != `{"height":7}` {
		t.Fatalf("header = %s", raw)
	}
}

func TestChainStateTip(t *testing.T) {
	d := openTestDB(t, t.TempDir())

	if _, ok, err := d.TipHeight(); err != nil || ok {
		t.Fatalf("empty tip: ok=%v err=%v", ok, err)
	}
	for _, h := range []uint64{3, 300, 30} {
		if err := d.PutChainState(h, []byte(`{}`)); err != nil {
			t.Fatalf("PutChainState(%d): %v", h, err)
		}
	}
	tip, ok, err := d.TipHeight()
	if err != nil || !ok {
		t.Fatalf("TipHeight: ok=%v err=%v", ok, err)
	}
	if tip != 300 {
		t.Fatalf("tip = %d, want 300", tip)
	}
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()

	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := d.PutHeader(1, []byte("one")); err != nil {
		t.Fatalf("PutHeader: %v", err)
	}
	if err := d.SetManifest(&Manifest{SchemaVersion: SchemaVersionV1, Network: "mainnet", TipHeight: 1}); err != nil {
		t.Fatalf("SetManifest: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	d2 := openTestDB(t, dir)
	raw, ok, err := d2.GetHeader(1)
	if err != nil || !ok || string(raw) != "one" {
		t.Fatalf("reopened header = %s ok=%v err=%v", raw, ok, err)
	}
	m := d2.Manifest()
	if m == nil || m.TipHeight != 1 || m.Network != "mainnet" {
		t.Fatalf("reopened manifest = %+v", m)
	}
}

func TestManifestSchemaGuard(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := d.SetManifest(&Manifest{SchemaVersion: SchemaVersionV1 + 1}); err != nil {
		t.Fatalf("SetManifest: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := Open(dir); err == nil {
		t.Fatal("expected error for unsupported schema version")
	}
}

func TestManifestAtomicWriteLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	d := openTestDB(t, dir)
	if err := d.SetManifest(&Manifest{SchemaVersion: SchemaVersionV1}); err != nil {
		t.Fatalf("SetManifest: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "MANIFEST.json")); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "MANIFEST.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}
