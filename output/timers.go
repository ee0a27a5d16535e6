package output

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Timers records the wall-clock time of each solve phase.
type Timers struct {
	Surface    time.Duration
	SourceTerm time.Duration
	Tree       time.Duration
	Clusters   time.Duration
	Lists      time.Duration
	Solve      time.Duration
	Energy     time.Duration
	Total      time.Duration
}

// Phase runs fn and stores its elapsed time into dst.
func Phase(dst *time.Duration, fn func() error) error {
	start := time.Now()
	err := fn()
	*dst = time.Since(start)
	return err
}

// WriteTimers writes the phase timings as a two-row CSV.
func WriteTimers(path string, t *Timers) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating timers output")
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	fmt.Fprintln(w, "surface,source_term,tree,clusters,interaction_lists,solve,energy,total")
	fmt.Fprintf(w, "%f,%f,%f,%f,%f,%f,%f,%f\n",
		t.Surface.Seconds(), t.SourceTerm.Seconds(), t.Tree.Seconds(),
		t.Clusters.Seconds(), t.Lists.Seconds(), t.Solve.Seconds(),
		t.Energy.Seconds(), t.Total.Seconds())

	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "writing timers output")
	}

	logrus.Infof("Wrote %s", path)
	return nil
}

// Log prints the phase timings.
func (t *Timers) Log() {
	logrus.Infof("Timings (s): surface %.5f, source term %.5f, tree %.5f, "+
		"clusters %.5f, lists %.5f, solve %.5f, energy %.5f, total %.5f",
		t.Surface.Seconds(), t.SourceTerm.Seconds(), t.Tree.Seconds(),
		t.Clusters.Seconds(), t.Lists.Seconds(), t.Solve.Seconds(),
		t.Energy.Seconds(), t.Total.Seconds())
}
