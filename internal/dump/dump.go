// Package dump writes the final "x,y" point listing described in spec.md §6
// (WRITE_POINTS_TO_FILE / OUTPUT_FILENAME). It is grounded on the original
// implementation's end-of-run dump (_examples/original_source/c/constructible.c:517-537,
// point.c's point_fprintf): sort known points, open OUTPUT_FILENAME, write one
// "x,y" line per point.
package dump

import (
	"bufio"
	"fmt"
	"os"

	"github.com/rawblock/constructible-engine/pkg/models"
)

// WriteKnownPoints writes one "x,y" line per row to path, in the order given.
// Callers pass rows already sorted by (x, y) — internal/store.Store.ListKnown
// orders by (xd, yd), mirroring the original's HASH_SORT before point_fprintf.
func WriteKnownPoints(path string, rows []models.PointRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dump: opening %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s,%s\n", r.XStr, r.YStr); err != nil {
			return fmt.Errorf("dump: writing %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("dump: flushing %s: %w", path, err)
	}
	return nil
}
