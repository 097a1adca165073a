package efs

import "testing"

// TestRenameAcrossDirectories covers scenario S6: moving a file between
// sibling directories updates lookups in both places.
func TestRenameAcrossDirectories(t *testing.T) {
	m := newTestMount(t, 128)

	if err := m.Mkdir("/src", 0755); err != nil {
		t.Fatalf("Mkdir /src: %s", err)
	}
	if err := m.Mkdir("/dst", 0755); err != nil {
		t.Fatalf("Mkdir /dst: %s", err)
	}
	f, err := m.Create("/src/file", 0644)
	if err != nil {
		t.Fatalf("Create: %s", err)
	}
	if _, err := f.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: %s", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}

	if err := m.Rename("/src/file", "/dst/file"); err != nil {
		t.Fatalf("Rename: %s", err)
	}

	if _, err := m.Stat("/src/file"); err != NotFound {
		t.Errorf("Stat old path: got %v, want NotFound", err)
	}
	st, err := m.Stat("/dst/file")
	if err != nil {
		t.Fatalf("Stat new path: %s", err)
	}
	if st.Size != 7 {
		t.Errorf("Size after rename = %d, want 7", st.Size)
	}
}

func TestRenameAtomicallyReplacesExistingFile(t *testing.T) {
	m := newTestMount(t, 128)

	a, err := m.Create("/a", 0644)
	if err != nil {
		t.Fatalf("Create /a: %s", err)
	}
	a.Write([]byte("from a"))
	a.Close()

	b, err := m.Create("/b", 0644)
	if err != nil {
		t.Fatalf("Create /b: %s", err)
	}
	b.Write([]byte("from b, longer"))
	b.Close()

	if err := m.Rename("/a", "/b"); err != nil {
		t.Fatalf("Rename: %s", err)
	}

	if _, err := m.Stat("/a"); err != NotFound {
		t.Errorf("Stat(/a) after rename: got %v, want NotFound", err)
	}

	rf, err := m.Open("/b", 0, 0)
	if err != nil {
		t.Fatalf("Open(/b): %s", err)
	}
	defer rf.Close()
	buf := make([]byte, 6)
	if _, err := readFull(rf, buf); err != nil {
		t.Fatalf("read: %s", err)
	}
	if string(buf) != "from a" {
		t.Errorf("content of /b after rename = %q, want %q", buf, "from a")
	}
}

func TestRenameRefusesNonEmptyDirectoryTarget(t *testing.T) {
	m := newTestMount(t, 128)

	if err := m.Mkdir("/empty", 0755); err != nil {
		t.Fatalf("Mkdir /empty: %s", err)
	}
	if err := m.Mkdir("/full", 0755); err != nil {
		t.Fatalf("Mkdir /full: %s", err)
	}
	if _, err := m.Create("/full/inner", 0644); err != nil {
		t.Fatalf("Create: %s", err)
	}

	if err := m.Rename("/empty", "/full"); err != NotEmpty {
		t.Errorf("Rename onto non-empty directory: got %v, want NotEmpty", err)
	}
}

func TestRenameDirectoryUpdatesDotDot(t *testing.T) {
	m := newTestMount(t, 128)

	if err := m.Mkdir("/src", 0755); err != nil {
		t.Fatalf("Mkdir /src: %s", err)
	}
	if err := m.Mkdir("/dst", 0755); err != nil {
		t.Fatalf("Mkdir /dst: %s", err)
	}
	if err := m.Mkdir("/src/child", 0755); err != nil {
		t.Fatalf("Mkdir /src/child: %s", err)
	}

	if err := m.Rename("/src/child", "/dst/child"); err != nil {
		t.Fatalf("Rename: %s", err)
	}

	ino, _, err := m.resolve("/dst/child")
	if err != nil {
		t.Fatalf("resolve /dst/child: %s", err)
	}
	parentIno, _, err := m.dirLookup(ino, "..")
	if err != nil {
		t.Fatalf("dirLookup ..: %s", err)
	}
	dstIno, _, err := m.resolve("/dst")
	if err != nil {
		t.Fatalf("resolve /dst: %s", err)
	}
	if parentIno != dstIno {
		t.Errorf("child's .. points at inode %d, want %d (new parent /dst)", parentIno, dstIno)
	}
}
