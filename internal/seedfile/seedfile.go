// Package seedfile reads the UTF-8 seed-point file described in spec.md §6
// (component C7 of SPEC_FULL.md): one "x,y" decimal pair per line, lines
// beginning with ';' are comments.
package seedfile

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rawblock/constructible-engine/internal/geometry"
	"github.com/rawblock/constructible-engine/internal/scalar"
)

// Pair is a raw, unparsed decimal coordinate pair straight from the file.
// FileReader.ReadSeeds converts these into geometry.Points using the run's Env.
type Pair struct {
	X, Y string
}

// Read loads every valid line of path. bufferSize sizes the scanner's buffer
// (STARTING_POINTS_FILE_LINE_BUFFER); a missing file is a fatal error, a
// malformed line is logged and skipped (spec.md §7).
func Read(path string, bufferSize int) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seedfile: opening %s: %w", path, err)
	}
	defer f.Close()

	if bufferSize <= 0 {
		bufferSize = 4096
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, bufferSize), bufferSize)

	var pairs []Pair
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			log.Printf("seedfile: %s:%d: malformed line %q, skipping", path, lineNo, line)
			continue
		}
		pairs = append(pairs, Pair{X: strings.TrimSpace(parts[0]), Y: strings.TrimSpace(parts[1])})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("seedfile: reading %s: %w", path, err)
	}
	return pairs, nil
}

// FileReader adapts a seed file path into a coordinator.SeedReader.
type FileReader struct {
	Path       string
	BufferSize int
}

// ReadSeeds satisfies coordinator.SeedReader: it reads the raw pairs and
// parses them into geometry.Points under the run's Env.
func (r FileReader) ReadSeeds(env *scalar.Env, fpDigits int) ([]geometry.Point, error) {
	pairs, err := Read(r.Path, r.BufferSize)
	if err != nil {
		return nil, err
	}

	points := make([]geometry.Point, 0, len(pairs))
	for _, pair := range pairs {
		x, err := env.FromString(pair.X)
		if err != nil {
			log.Printf("seedfile: skipping pair (%s,%s): bad x: %v", pair.X, pair.Y, err)
			continue
		}
		y, err := env.FromString(pair.Y)
		if err != nil {
			log.Printf("seedfile: skipping pair (%s,%s): bad y: %v", pair.X, pair.Y, err)
			continue
		}
		points = append(points, geometry.NewPoint(env, x, y, fpDigits))
	}
	return points, nil
}
