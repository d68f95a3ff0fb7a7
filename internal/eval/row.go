package eval

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Experiment phases tagged on metric rows.
const (
	PhaseSynth     = "synth"
	PhaseSelection = "sel"
)

// Row is one logical metric record: the context of an evaluation call
// followed by its cells.
type Row struct {
	Phase           string
	Metric          string
	Round           int // revision round, -1 when not applicable
	TrainTestSplit  bool
	IndependentTest bool
	Strategy        string
	Trial           int
	Result          EvalResult
}

var rowPrefix = []string{"exp_type", "metric", "revision_nr", "traintestsplit", "independent_test", "revtype", "trial"}

// Header returns the column names for nNorms norms. joint selects the
// 8-bucket matrix layout, which only applies to two norms.
func Header(nNorms int, joint bool) []string {
	out := append([]string(nil), rowPrefix...)
	for _, cell := range []string{CellInitialTrain, CellInitialTest, CellRevisedTrain, CellRevisedTest} {
		out = append(out, cell+"_val")
		if joint && nNorms == 2 {
			out = append(out, JointBuckets...)
			continue
		}
		for n := 0; n < nNorms; n++ {
			out = append(out,
				fmt.Sprintf("tp_%d", n),
				fmt.Sprintf("fp_%d", n),
				fmt.Sprintf("tn_%d", n),
				fmt.Sprintf("fn_%d", n),
			)
		}
	}
	return out
}

// Values renders the row in Header order.
func (r Row) Values() []string {
	round := "-"
	if r.Round >= 0 {
		round = strconv.Itoa(r.Round)
	}
	out := []string{
		r.Phase,
		r.Metric,
		round,
		strconv.FormatBool(r.TrainTestSplit),
		strconv.FormatBool(r.IndependentTest),
		r.Strategy,
		strconv.Itoa(r.Trial),
	}
	for _, m := range r.Result.Metrics {
		out = append(out, FormatQuality(m.Quality))
		for _, v := range m.Stats {
			out = append(out, strconv.Itoa(v))
		}
	}
	return out
}

// FormatQuality renders a quality score with the shortest exact decimal.
func FormatQuality(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// WriteCSV writes header and rows as ';'-separated records.
func WriteCSV(w io.Writer, header []string, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
