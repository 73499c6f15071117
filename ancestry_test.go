package execenv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// fakeProc is one process in a fakeSource tree.
type fakeProc struct {
	env     []string
	ppid    int
	envErr  error
	statErr error
}

// fakeSource is an in-memory ProcessSource. It counts reads so tests can
// check the walk never revisits a process.
type fakeSource struct {
	procs map[int]fakeProc
	reads map[int]int
}

func newFakeSource(procs map[int]fakeProc) *fakeSource {
	return &fakeSource{procs: procs, reads: make(map[int]int)}
}

func (s *fakeSource) InitialEnviron(pid int) ([]string, error) {
	s.reads[pid]++
	p, ok := s.procs[pid]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return append([]string(nil), p.env...), p.envErr
}

func (s *fakeSource) ParentPID(pid int) (int, error) {
	p, ok := s.procs[pid]
	if !ok {
		return 0, fs.ErrNotExist
	}
	if p.statErr != nil {
		return 0, p.statErr
	}
	return p.ppid, nil
}

// threeLevelChain is a bundled process (300) started by another bundled
// process (200) started from a plain shell (100).
func threeLevelChain() map[int]fakeProc {
	return map[int]fakeProc{
		300: {env: []string{"APPDIR=/opt/App", "PATH=/opt/App/bin"}, ppid: 200},
		200: {env: []string{"APPDIR=/opt/App", "HOME=/bundled"}, ppid: 100},
		100: {env: []string{"HOME=/home/u", "PATH=/usr/bin", "LANG=C"}, ppid: 1},
	}
}

func TestAncestryReaderRead(t *testing.T) {
	src := newFakeSource(threeLevelChain())
	r := &AncestryReader{Source: src, Marker: "APPDIR", StartPID: 300}

	env, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !env.Owned() {
		t.Error("ancestor Environment should be owned by the caller")
	}
	assertEntries(t, env, "HOME=/home/u", "PATH=/usr/bin", "LANG=C")
}

func TestAncestryReaderStartOutsideBundle(t *testing.T) {
	src := newFakeSource(threeLevelChain())
	r := &AncestryReader{Source: src, Marker: "APPDIR", StartPID: 100}

	env, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	assertEntries(t, env, "HOME=/home/u", "PATH=/usr/bin", "LANG=C")
	if src.reads[300] != 0 || src.reads[200] != 0 {
		t.Error("walk should not look below the start pid")
	}
}

func TestAncestryReaderUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		procs  map[int]fakeProc
		start  int
		wantOp string
		wantIs error
	}{
		{
			name: "reaches init",
			procs: map[int]fakeProc{
				300: {env: []string{"APPDIR=/a"}, ppid: 200},
				200: {env: []string{"APPDIR=/a"}, ppid: 1},
			},
			start:  300,
			wantOp: "walk",
		},
		{
			name:   "start at init",
			procs:  map[int]fakeProc{},
			start:  1,
			wantOp: "walk",
		},
		{
			name:   "first read fails",
			procs:  map[int]fakeProc{},
			start:  300,
			wantOp: "environ",
			wantIs: fs.ErrNotExist,
		},
		{
			name: "permission denied",
			procs: map[int]fakeProc{
				300: {env: []string{"APPDIR=/a"}, ppid: 200},
				200: {envErr: fs.ErrPermission},
			},
			start:  300,
			wantOp: "environ",
			wantIs: fs.ErrPermission,
		},
		{
			name: "stat fails",
			procs: map[int]fakeProc{
				300: {env: []string{"APPDIR=/a"}, statErr: fs.ErrNotExist},
			},
			start:  300,
			wantOp: "stat",
			wantIs: fs.ErrNotExist,
		},
		{
			name: "pid cycle",
			procs: map[int]fakeProc{
				300: {env: []string{"APPDIR=/a"}, ppid: 200},
				200: {env: []string{"APPDIR=/a"}, ppid: 300},
			},
			start:  300,
			wantOp: "walk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource(tt.procs)
			r := &AncestryReader{Source: src, Marker: "APPDIR", StartPID: tt.start}

			env, err := r.Read()
			if env != nil {
				t.Errorf("Read returned %v, want nil Environment", env)
			}
			if !errors.Is(err, ErrAncestryUnavailable) {
				t.Fatalf("Read error = %v, want ErrAncestryUnavailable", err)
			}
			var ae *AncestryError
			if !errors.As(err, &ae) {
				t.Fatalf("Read error %T is not *AncestryError", err)
			}
			if ae.Op != tt.wantOp {
				t.Errorf("Op = %q, want %q", ae.Op, tt.wantOp)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error %v does not match %v", err, tt.wantIs)
			}
			for pid, n := range src.reads {
				if n > 1 {
					t.Errorf("pid %d read %d times", pid, n)
				}
			}
		})
	}
}

func TestAncestryReaderMalformedRecord(t *testing.T) {
	tests := []struct {
		name    string
		env     []string
		wantEnv []string
		wantErr bool
	}{
		{
			name:    "partial without marker is used",
			env:     []string{"HOME=/home/u"},
			wantEnv: []string{"HOME=/home/u"},
		},
		{
			name:    "partial with marker continues to init",
			env:     []string{"APPDIR=/a"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource(map[int]fakeProc{
				300: {env: []string{"APPDIR=/a"}, ppid: 200},
				200: {env: tt.env, envErr: fmt.Errorf("%w: entry 2", ErrMalformedRecord), ppid: 1},
			})
			r := &AncestryReader{Source: src, Marker: "APPDIR", StartPID: 300}
			env, err := r.Read()
			if tt.wantErr {
				if !errors.Is(err, ErrAncestryUnavailable) {
					t.Fatalf("Read error = %v, want ErrAncestryUnavailable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			assertEntries(t, env, tt.wantEnv...)
		})
	}
}

func TestAncestryReaderChain(t *testing.T) {
	src := newFakeSource(threeLevelChain())
	r := &AncestryReader{Source: src, Marker: "APPDIR", StartPID: 300}

	links, err := r.Chain()
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	want := []AncestryLink{
		{PID: 300, PPID: 200, Bundled: true},
		{PID: 200, PPID: 100, Bundled: true},
		{PID: 100},
	}
	if len(links) != len(want) {
		t.Fatalf("links = %+v, want %+v", links, want)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("link %d = %+v, want %+v", i, links[i], want[i])
		}
	}
}

func TestAncestryReaderChainStopsAtInit(t *testing.T) {
	src := newFakeSource(map[int]fakeProc{
		300: {env: []string{"APPDIR=/a"}, ppid: 1},
	})
	r := &AncestryReader{Source: src, Marker: "APPDIR", StartPID: 300}

	links, err := r.Chain()
	if !errors.Is(err, ErrAncestryUnavailable) {
		t.Fatalf("Chain error = %v, want ErrAncestryUnavailable", err)
	}
	if len(links) != 1 || links[0].PID != 300 || !links[0].Bundled {
		t.Errorf("links = %+v", links)
	}
}

// writeProcTree writes a synthetic proc filesystem below root.
func writeProcTree(t *testing.T, root string, procs map[int]fakeProc) {
	t.Helper()
	for pid, p := range procs {
		dir := filepath.Join(root, strconv.Itoa(pid))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		env := mustEnv(t, p.env...)
		// Kernel records carry no trailing empty entry.
		block := env.Block()
		block = block[:len(block)-1]
		if err := os.WriteFile(filepath.Join(dir, "environ"), block, 0o644); err != nil {
			t.Fatal(err)
		}
		stat := fmt.Sprintf("%d (my (odd) proc) S %d %d %d 0 -1\n", pid, p.ppid, p.ppid, p.ppid)
		if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(stat), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAncestryReaderProcTree(t *testing.T) {
	root := t.TempDir()
	writeProcTree(t, root, threeLevelChain())

	r := &AncestryReader{Source: NewProcSource(root), Marker: "APPDIR", StartPID: 300}
	env, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	assertEntries(t, env, "HOME=/home/u", "PATH=/usr/bin", "LANG=C")
}

func TestProcSourceMalformed(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "42")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "environ"), []byte("A=1\x00=bad\x00B=2\x00"), 0o644); err != nil {
		t.Fatal(err)
	}

	env, err := NewProcSource(root).InitialEnviron(42)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("InitialEnviron error = %v, want ErrMalformedRecord", err)
	}
	if len(env) != 1 || env[0] != "A=1" {
		t.Errorf("partial env = %q, want [A=1]", env)
	}
}

func TestParentPIDMatchesOS(t *testing.T) {
	if got, want := parentPID(), os.Getppid(); got != want {
		t.Errorf("parentPID() = %d, want %d", got, want)
	}
}
