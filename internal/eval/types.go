package eval

import "fmt"

// #region metric
// Metric names a configuration quality function.
type Metric string

const (
	// MetricRandom scores every configuration 0; the pick is made by a random draw.
	MetricRandom Metric = "random"
	// MetricAccuracy averages, over norms, the fraction of traces whose
	// violation label matches the objective.
	MetricAccuracy Metric = "accuracy"
	// MetricMLAcc is the multi-label (Jaccard) accuracy over all norms at once.
	MetricMLAcc Metric = "mlacc"
)

// UnknownMetricError is returned for a metric name with no quality function.
type UnknownMetricError struct {
	Name string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown quality metric %q", e.Name)
}

// ParseMetric maps a metric name to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricRandom, MetricAccuracy, MetricMLAcc:
		return Metric(s), nil
	}
	return "", &UnknownMetricError{Name: s}
}

// Unscored is the sentinel quality of an absent configuration or an empty batch.
const Unscored = -1.0

// #endregion metric

// #region eval-config
// EvalConfig controls how a configuration pair is evaluated.
type EvalConfig struct {
	Metric          Metric
	TrainTestSplit  bool    // shuffle a copy and hold out the tail
	TrainFraction   float64 // share of traces kept for training
	IndependentTest bool    // score the test cells on a separate batch
	JointMatrix     bool    // 8-bucket matrix when the configuration has two norms
	NormCount       int     // width of the stats when both configurations are absent
}

// DefaultEvalConfig returns the default experiment settings.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		Metric:        MetricAccuracy,
		TrainFraction: 0.75,
		JointMatrix:   true,
		NormCount:     1,
	}
}

// #endregion eval-config

// #region confusion
// ConfusionMatrix partitions traces by objective and violation of one norm.
// A positive trace achieved the objective; a norm predicts positive when it
// is not violated.
type ConfusionMatrix struct {
	TP int // achieved, not violated
	FP int // missed, not violated
	TN int // missed, violated
	FN int // achieved, violated
}

// Values returns TP, FP, TN and FN in order.
func (m ConfusionMatrix) Values() []int {
	return []int{m.TP, m.FP, m.TN, m.FN}
}

// JointBuckets names the cells of a JointMatrix in order.
var JointBuckets = []string{"pfc", "ppc1", "ppc2", "pfw", "nfw", "npc2", "npc1", "nfc"}

// JointMatrix crosses the compliance of two norms with the objective:
// positive/negative, fully correct, partly correct by norm 1 or 2, fully wrong.
type JointMatrix [8]int

// Values returns the buckets in JointBuckets order.
func (m JointMatrix) Values() []int {
	return append([]int(nil), m[:]...)
}

// #endregion confusion

// #region eval-result
// EvalMetric is one cell of a pair evaluation: the quality of a configuration
// on a split plus its confusion statistics.
type EvalMetric struct {
	Name    string
	Quality float64
	Stats   []int
}

// Cell names, in report order.
const (
	CellInitialTrain = "init_train"
	CellInitialTest  = "init_test"
	CellRevisedTrain = "new_train"
	CellRevisedTest  = "new_test"
)

// EvalResult compares an initial and a revised configuration on the train
// and test splits.
type EvalResult struct {
	Metric  Metric
	Revised bool // false when no revision was found and the initial numbers were reused
	Metrics []EvalMetric
}

// Cell returns the metric cell called name.
func (r EvalResult) Cell(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// Improvement is the revised minus the initial quality on the test split.
func (r EvalResult) Improvement() float64 {
	init, _ := r.Cell(CellInitialTest)
	rev, _ := r.Cell(CellRevisedTest)
	return rev.Quality - init.Quality
}

// #endregion eval-result
