package efs

import "testing"

func TestRmdirRequiresEmpty(t *testing.T) {
	m := newTestMount(t, 64)

	if err := m.Mkdir("/d", 0755); err != nil {
		t.Fatalf("Mkdir: %s", err)
	}
	if _, err := m.Create("/d/file", 0644); err != nil {
		t.Fatalf("Create: %s", err)
	}

	if err := m.Rmdir("/d"); err != NotEmpty {
		t.Errorf("Rmdir non-empty dir: got %v, want NotEmpty", err)
	}

	if err := m.Unlink("/d/file"); err != nil {
		t.Fatalf("Unlink: %s", err)
	}
	if err := m.Rmdir("/d"); err != nil {
		t.Errorf("Rmdir empty dir: %s", err)
	}
	if _, err := m.Stat("/d"); err != NotFound {
		t.Errorf("Stat after rmdir: got %v, want NotFound", err)
	}
}

func TestDirentHoleReuse(t *testing.T) {
	m := newTestMount(t, 64)

	if _, err := m.Create("/a", 0644); err != nil {
		t.Fatalf("Create /a: %s", err)
	}
	if _, err := m.Create("/b", 0644); err != nil {
		t.Fatalf("Create /b: %s", err)
	}

	sizeBefore, err := m.dirChainSize("/")
	if err != nil {
		t.Fatalf("dirChainSize: %s", err)
	}

	if err := m.Unlink("/a"); err != nil {
		t.Fatalf("Unlink /a: %s", err)
	}
	if _, err := m.Create("/c", 0644); err != nil {
		t.Fatalf("Create /c: %s", err)
	}

	sizeAfter, err := m.dirChainSize("/")
	if err != nil {
		t.Fatalf("dirChainSize: %s", err)
	}
	if sizeAfter != sizeBefore {
		t.Errorf("directory size grew from %d to %d; expected the hole left by unlinking /a to be reused", sizeBefore, sizeAfter)
	}

	if _, _, err := m.dirLookup(m.sb.RootIno, "c"); err != nil {
		t.Errorf("lookup c: %s", err)
	}
}

// dirChainSize is a small test-only wrapper so tests can observe
// whether a directory's backing size grew (no hole reused) or not.
func (m *Mount) dirChainSize(path string) (uint64, error) {
	ino, _, err := m.resolve(path)
	if err != nil {
		return 0, err
	}
	_, size, err := m.dirChainAndSize(ino)
	return size, err
}

func TestReaddirSkipsHoles(t *testing.T) {
	m := newTestMount(t, 64)

	for _, name := range []string{"/a", "/b", "/c"} {
		if _, err := m.Create(name, 0644); err != nil {
			t.Fatalf("Create(%s): %s", name, err)
		}
	}
	if err := m.Unlink("/b"); err != nil {
		t.Fatalf("Unlink(/b): %s", err)
	}

	d, err := m.Opendir("/")
	if err != nil {
		t.Fatalf("Opendir: %s", err)
	}
	defer d.Closedir()

	seen := map[string]bool{}
	for {
		ent, err := d.Readdir()
		if err != nil {
			t.Fatalf("Readdir: %s", err)
		}
		if ent == nil {
			break
		}
		seen[ent.Name] = true
	}

	if seen["b"] {
		t.Errorf("readdir returned an unlinked entry")
	}
	if !seen["a"] || !seen["c"] {
		t.Errorf("readdir missing surviving entries, got %v", seen)
	}
}
