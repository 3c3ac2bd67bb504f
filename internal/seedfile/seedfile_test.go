package seedfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rawblock/constructible-engine/internal/scalar"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp seed file: %v", err)
	}
	return path
}

func TestReadSkipsBlankAndCommentLines(t *testing.T) {
	path := writeTemp(t, "; seed points\n0,0\n\n0,1\n; trailing comment\n")

	pairs, err := Read(path, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []Pair{{X: "0", Y: "0"}, {X: "0", Y: "1"}}
	if len(pairs) != len(want) {
		t.Fatalf("got %d pairs, want %d", len(pairs), len(want))
	}
	for i, p := range pairs {
		if p != want[i] {
			t.Errorf("pair %d = %+v, want %+v", i, p, want[i])
		}
	}
}

func TestReadTrimsWhitespaceAroundFields(t *testing.T) {
	path := writeTemp(t, "  1.5 , -2.25  \n")

	pairs, err := Read(path, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(pairs))
	}
	if pairs[0] != (Pair{X: "1.5", Y: "-2.25"}) {
		t.Errorf("pair = %+v, want {1.5 -2.25}", pairs[0])
	}
}

func TestReadSkipsMalformedLines(t *testing.T) {
	path := writeTemp(t, "0,0\nnot-a-pair\n1,1\n")

	pairs, err := Read(path, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2 (malformed line should be skipped, not fatal)", len(pairs))
	}
}

func TestReadMissingFileIsFatal(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "does-not-exist.txt"), 0)
	if err == nil {
		t.Fatal("Read: expected error for missing file, got nil")
	}
}

func TestReadDefaultsBufferSize(t *testing.T) {
	path := writeTemp(t, "0,0\n")
	if _, err := Read(path, -1); err != nil {
		t.Fatalf("Read with non-positive bufferSize: %v", err)
	}
}

func TestFileReaderReadSeedsParsesIntoPoints(t *testing.T) {
	path := writeTemp(t, "0,0\n0,1\n")

	env, err := scalar.Init(200, "1e-20")
	if err != nil {
		t.Fatalf("scalar.Init: %v", err)
	}

	r := FileReader{Path: path, BufferSize: 0}
	points, err := r.ReadSeeds(env, 10)
	if err != nil {
		t.Fatalf("ReadSeeds: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].Fingerprint == "" || points[1].Fingerprint == "" {
		t.Error("ReadSeeds: expected non-empty fingerprints from NewPoint")
	}
}

func TestFileReaderReadSeedsSkipsUnparsableCoordinates(t *testing.T) {
	path := writeTemp(t, "0,0\nnot-a-number,3\n1,1\n")

	env, err := scalar.Init(200, "1e-20")
	if err != nil {
		t.Fatalf("scalar.Init: %v", err)
	}

	r := FileReader{Path: path}
	points, err := r.ReadSeeds(env, 10)
	if err != nil {
		t.Fatalf("ReadSeeds: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2 (bad coordinate pair should be skipped)", len(points))
	}
}

func TestFileReaderReadSeedsMissingFile(t *testing.T) {
	env, err := scalar.Init(200, "1e-20")
	if err != nil {
		t.Fatalf("scalar.Init: %v", err)
	}
	r := FileReader{Path: filepath.Join(t.TempDir(), "missing.txt")}
	if _, err := r.ReadSeeds(env, 10); err == nil {
		t.Fatal("ReadSeeds: expected error for missing file, got nil")
	}
}
