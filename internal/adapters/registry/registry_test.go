package registry

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bft-labs/migchan/internal/adapters/log"
	"github.com/bft-labs/migchan/internal/domain"
)

func TestMemory_PublishOrder(t *testing.T) {
	m := NewMemory()
	a := domain.InetAddress{Host: "127.0.0.1", Port: "4444"}
	b := domain.UnixAddress{Path: "/run/mig.sock"}

	m.Publish(a)
	m.Publish(b)

	got := m.Addresses()
	if !reflect.DeepEqual(got, []domain.Address{a, b}) {
		t.Errorf("Addresses() = %v", got)
	}

	got[0] = nil
	if m.Addresses()[0] != a {
		t.Error("Addresses() returned internal slice")
	}

	m.Reset()
	if len(m.Addresses()) != 0 {
		t.Error("Reset() kept addresses")
	}
}

func TestFile_PublishWritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "listen.json")
	f := NewFile(path, log.NewNoopLogger())

	f.Publish(domain.InetAddress{Host: "0.0.0.0", Port: "40001"})
	f.Publish(domain.InetAddress{Host: "0.0.0.0", Port: "40001"})

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []string{"tcp:0.0.0.0:40001", "tcp:0.0.0.0:40001"}
	if !reflect.DeepEqual(l.Addresses, want) {
		t.Errorf("Addresses = %v, want %v", l.Addresses, want)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestFile_Remove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listen.json")
	f := NewFile(path, log.NewNoopLogger())

	if err := f.Remove(); err != nil {
		t.Fatalf("Remove() on missing file error: %v", err)
	}

	f.Publish(domain.UnixAddress{Path: "/run/mig.sock"})
	if err := f.Remove(); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still present after Remove")
	}
}

func TestMulti_Publish(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	addr := domain.VsockAddress{CID: 3, Port: 1024}

	Multi{a, b}.Publish(addr)

	if len(a.Addresses()) != 1 || len(b.Addresses()) != 1 {
		t.Errorf("got %d and %d addresses, want 1 each", len(a.Addresses()), len(b.Addresses()))
	}
}
