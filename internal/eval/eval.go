package eval

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region oracle
// Oracle reports whether n is violated on the i-th trace of a batch.
type Oracle func(n *norm.Norm, i int) bool

// Direct runs the violation automaton on every call.
func Direct(traces []trace.Trace) Oracle {
	return func(n *norm.Norm, i int) bool { return n.Violated(traces[i]) }
}

// Memo caches violation results per norm key for one trace batch. Selection
// scores many configurations that share norms, so each norm runs over the
// batch once.
type Memo struct {
	traces []trace.Trace
	cache  map[string][]bool
}

// NewMemo creates an empty cache over traces.
func NewMemo(traces []trace.Trace) *Memo {
	return &Memo{traces: traces, cache: make(map[string][]bool)}
}

// Violated reports whether n is violated on traces[i].
func (m *Memo) Violated(n *norm.Norm, i int) bool {
	return m.vector(n)[i]
}

// Oracle returns m as an Oracle.
func (m *Memo) Oracle() Oracle {
	return m.Violated
}

func (m *Memo) vector(n *norm.Norm) []bool {
	key := n.ID() + "=" + n.Key()
	if v, ok := m.cache[key]; ok {
		return v
	}
	v := make([]bool, len(m.traces))
	for i, t := range m.traces {
		v[i] = n.Violated(t)
	}
	m.cache[key] = v
	return v
}

// #endregion oracle

// #region quality

// Quality scores cfg on traces. An empty configuration scores Unscored;
// accuracy and mlacc score Unscored on an empty batch.
func Quality(metric Metric, cfg configuration.Configuration, traces []trace.Trace) (float64, error) {
	return QualityWith(metric, cfg, traces, Direct(traces))
}

// QualityWith is Quality with violations answered by violated.
func QualityWith(metric Metric, cfg configuration.Configuration, traces []trace.Trace, violated Oracle) (float64, error) {
	if _, err := ParseMetric(string(metric)); err != nil {
		return 0, err
	}
	if cfg.IsEmpty() {
		return Unscored, nil
	}
	switch metric {
	case MetricRandom:
		return 0, nil
	case MetricMLAcc:
		return multiLabelAccuracy(cfg, traces, violated), nil
	default:
		var sum float64
		norms := cfg.Norms()
		for _, n := range norms {
			sum += accuracy(n, traces, violated)
		}
		return sum / float64(len(norms)), nil
	}
}

// Accuracy is the fraction of traces where n is obeyed exactly when the
// objective is achieved.
func Accuracy(n *norm.Norm, traces []trace.Trace) float64 {
	return accuracy(n, traces, Direct(traces))
}

func accuracy(n *norm.Norm, traces []trace.Trace, violated Oracle) float64 {
	if len(traces) == 0 {
		return Unscored
	}
	correct := 0
	for i, t := range traces {
		if t.ObjectiveAchieved != violated(n, i) {
			correct++
		}
	}
	return float64(correct) / float64(len(traces))
}

// multiLabelAccuracy averages, over traces, the Jaccard index between the
// objective bit repeated per norm and the per-norm compliance bits.
func multiLabelAccuracy(cfg configuration.Configuration, traces []trace.Trace, violated Oracle) float64 {
	if len(traces) == 0 {
		return Unscored
	}
	norms := cfg.Norms()
	var total float64
	for i, t := range traces {
		union, inter := 0, 0
		for _, n := range norms {
			predicted := !violated(n, i)
			if t.ObjectiveAchieved || predicted {
				union++
			}
			if t.ObjectiveAchieved && predicted {
				inter++
			}
		}
		if union == 0 {
			total += 1
			continue
		}
		total += float64(inter) / float64(union)
	}
	return total / float64(len(traces))
}

// #endregion quality

// #region confusion

// Confusion builds the confusion matrix of n over traces.
func Confusion(n *norm.Norm, traces []trace.Trace) ConfusionMatrix {
	var m ConfusionMatrix
	for _, t := range traces {
		v := n.Violated(t)
		switch {
		case t.ObjectiveAchieved && !v:
			m.TP++
		case !t.ObjectiveAchieved && !v:
			m.FP++
		case !t.ObjectiveAchieved && v:
			m.TN++
		default:
			m.FN++
		}
	}
	return m
}

// Joint builds the 8-bucket matrix of the first two norms of cfg in registry order.
func Joint(cfg configuration.Configuration, traces []trace.Trace) (JointMatrix, error) {
	norms := cfg.Norms()
	if len(norms) != 2 {
		return JointMatrix{}, fmt.Errorf("joint matrix needs 2 norms, got %d", len(norms))
	}
	var m JointMatrix
	for _, t := range traces {
		v1, v2 := norms[0].Violated(t), norms[1].Violated(t)
		var idx int
		switch {
		case !v1 && v2:
			idx = 1
		case v1 && !v2:
			idx = 2
		case v1 && v2:
			idx = 3
		}
		if !t.ObjectiveAchieved {
			// negative buckets mirror the positive ones: nfw, npc2, npc1, nfc
			idx = 4 + idx
		}
		m[idx]++
	}
	return m, nil
}

// #endregion confusion

// #region eval-harness
// EvalHarness scores configuration pairs on train and test splits.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	if config.TrainFraction <= 0 || config.TrainFraction > 1 {
		config.TrainFraction = DefaultEvalConfig().TrainFraction
	}
	return &EvalHarness{config: config}
}

// Config returns the harness configuration.
func (h *EvalHarness) Config() EvalConfig {
	return h.config
}

// Split shuffles a copy of traces with rng and returns the first
// round(TrainFraction*n) as train and the rest as test. traces is not modified.
func (h *EvalHarness) Split(traces []trace.Trace, rng *rand.Rand) (train, test []trace.Trace) {
	shuffled := append([]trace.Trace(nil), traces...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	cut := int(math.Round(float64(len(shuffled)) * h.config.TrainFraction))
	return shuffled[:cut:cut], shuffled[cut:]
}

// splits picks the train and test batches per the harness settings.
func (h *EvalHarness) splits(traces, independent []trace.Trace, rng *rand.Rand) (train, test []trace.Trace) {
	switch {
	case h.config.TrainTestSplit:
		return h.Split(traces, rng)
	case h.config.IndependentTest:
		return traces, independent
	default:
		return traces, traces
	}
}

// EvaluateConfiguration scores a single configuration on both splits. The
// result keeps the four-cell layout: cfg fills the initial cells and the
// revised cells are Unscored.
func (h *EvalHarness) EvaluateConfiguration(cfg configuration.Configuration, traces, independent []trace.Trace, rng *rand.Rand) (EvalResult, error) {
	train, test := h.splits(traces, independent, rng)
	width := h.width(cfg, configuration.Configuration{})

	trainCell, err := h.cell(CellInitialTrain, cfg, train, width)
	if err != nil {
		return EvalResult{}, err
	}
	testCell, err := h.cell(CellInitialTest, cfg, test, width)
	if err != nil {
		return EvalResult{}, err
	}
	var none configuration.Configuration
	revTrain, err := h.cell(CellRevisedTrain, none, train, width)
	if err != nil {
		return EvalResult{}, err
	}
	revTest, err := h.cell(CellRevisedTest, none, test, width)
	if err != nil {
		return EvalResult{}, err
	}
	return EvalResult{
		Metric:  h.config.Metric,
		Metrics: []EvalMetric{trainCell, testCell, revTrain, revTest},
	}, nil
}

// EvaluatePair scores initial and revised on both splits. An empty revised
// configuration reuses the initial numbers; an empty initial configuration
// fills its cells with Unscored.
func (h *EvalHarness) EvaluatePair(initial, revised configuration.Configuration, traces, independent []trace.Trace, rng *rand.Rand) (EvalResult, error) {
	train, test := h.splits(traces, independent, rng)
	width := h.width(initial, revised)

	initTrain, err := h.cell(CellInitialTrain, initial, train, width)
	if err != nil {
		return EvalResult{}, err
	}
	initTest, err := h.cell(CellInitialTest, initial, test, width)
	if err != nil {
		return EvalResult{}, err
	}

	result := EvalResult{Metric: h.config.Metric, Revised: !revised.IsEmpty()}
	if !result.Revised {
		revTrain, revTest := initTrain, initTest
		revTrain.Name, revTest.Name = CellRevisedTrain, CellRevisedTest
		result.Metrics = []EvalMetric{initTrain, initTest, revTrain, revTest}
		return result, nil
	}

	revTrain, err := h.cell(CellRevisedTrain, revised, train, width)
	if err != nil {
		return EvalResult{}, err
	}
	revTest, err := h.cell(CellRevisedTest, revised, test, width)
	if err != nil {
		return EvalResult{}, err
	}
	result.Metrics = []EvalMetric{initTrain, initTest, revTrain, revTest}
	return result, nil
}

func (h *EvalHarness) cell(name string, cfg configuration.Configuration, traces []trace.Trace, width int) (EvalMetric, error) {
	q, err := Quality(h.config.Metric, cfg, traces)
	if err != nil {
		return EvalMetric{}, fmt.Errorf("score %s: %w", name, err)
	}
	return EvalMetric{Name: name, Quality: q, Stats: h.stats(cfg, traces, width)}, nil
}

// stats returns the joint matrix for two norms in joint mode, else one
// confusion matrix per norm. Absent configurations yield -1 fills.
func (h *EvalHarness) stats(cfg configuration.Configuration, traces []trace.Trace, width int) []int {
	joint := h.config.JointMatrix && width == 2
	if cfg.IsEmpty() {
		n := 4 * width
		if joint {
			n = len(JointBuckets)
		}
		out := make([]int, n)
		for i := range out {
			out[i] = -1
		}
		return out
	}
	if joint {
		m, err := Joint(cfg, traces)
		if err == nil {
			return m.Values()
		}
	}
	var out []int
	for _, n := range cfg.Norms() {
		out = append(out, Confusion(n, traces).Values()...)
	}
	return out
}

func (h *EvalHarness) width(cfgs ...configuration.Configuration) int {
	for _, c := range cfgs {
		if !c.IsEmpty() {
			return c.Len()
		}
	}
	if h.config.NormCount > 0 {
		return h.config.NormCount
	}
	return 1
}

// #endregion eval-harness
