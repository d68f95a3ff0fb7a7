package eval

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

func speedNorm() *norm.Norm {
	return norm.Must("MSN", norm.KindMaxSpeed,
		[][]string{{"condpos:km2"}},
		[][]string{{"speed:20"}},
		[][]string{{"deadpos:km5"}},
	)
}

func distNorm() *norm.Norm {
	return norm.Must("MDN", norm.KindMinDistance,
		[][]string{{"condpos:km1"}},
		[][]string{{"dist:5"}},
		[][]string{{"deadpos:km9"}},
	)
}

// drive builds a car trace over km1..km3. fast breaks the speed norm at km2;
// near breaks the distance norm at km2.
func drive(id string, fast, near, achieved bool) trace.Trace {
	speed, dist := 10.0, 50.0
	if fast {
		speed = 25
	}
	if near {
		dist = 3
	}
	return trace.Trace{
		ID: id,
		States: []trace.State{
			trace.NewState(1, 10, 50, trace.AgentCar, 0, 0),
			trace.NewState(2, speed, dist, trace.AgentCar, 0, 0),
			trace.NewState(3, 10, 50, trace.AgentCar, 0, 0),
		},
		ObjectiveAchieved: achieved,
	}
}

func TestAccuracy_PerfectAndInverted(t *testing.T) {
	n := speedNorm()
	perfect := []trace.Trace{drive("a", false, false, true), drive("b", true, false, false)}
	inverted := []trace.Trace{drive("a", false, false, false), drive("b", true, false, true)}

	if got := Accuracy(n, perfect); got != 1.0 {
		t.Fatalf("expected accuracy 1.0, got %v", got)
	}
	if got := Accuracy(n, inverted); got != 0.0 {
		t.Fatalf("expected accuracy 0.0, got %v", got)
	}
}

func TestQuality_AccuracyAveragesNorms(t *testing.T) {
	cfg := configuration.FromNorms(speedNorm(), distNorm())
	// speed norm right on both, distance norm right on one
	traces := []trace.Trace{drive("a", false, false, true), drive("b", true, false, false)}

	got, err := Quality(MetricAccuracy, cfg, traces)
	if err != nil {
		t.Fatalf("quality: %v", err)
	}
	if got != 0.75 {
		t.Fatalf("expected 0.75, got %v", got)
	}
}

func TestQuality_MultiLabel(t *testing.T) {
	cfg := configuration.FromNorms(speedNorm(), distNorm())

	right := []trace.Trace{drive("a", false, false, true), drive("b", true, true, false)}
	got, err := Quality(MetricMLAcc, cfg, right)
	if err != nil {
		t.Fatalf("quality: %v", err)
	}
	if got != 1.0 {
		t.Fatalf("expected 1.0 when both norms predict the objective, got %v", got)
	}

	wrong := []trace.Trace{drive("a", false, false, false), drive("b", true, true, true)}
	got, err = Quality(MetricMLAcc, cfg, wrong)
	if err != nil {
		t.Fatalf("quality: %v", err)
	}
	if got != 0.0 {
		t.Fatalf("expected 0.0 when both norms are always wrong, got %v", got)
	}

	// one norm right, one wrong on a positive trace: 1/2
	half := []trace.Trace{drive("c", false, true, true)}
	got, _ = Quality(MetricMLAcc, cfg, half)
	if got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
}

func TestQuality_Sentinels(t *testing.T) {
	cfg := configuration.FromNorms(speedNorm())

	for _, m := range []Metric{MetricAccuracy, MetricMLAcc} {
		got, err := Quality(m, cfg, nil)
		if err != nil {
			t.Fatalf("%s: %v", m, err)
		}
		if got != Unscored {
			t.Fatalf("%s on empty batch: expected %v, got %v", m, Unscored, got)
		}
	}

	got, _ := Quality(MetricRandom, cfg, []trace.Trace{drive("a", true, false, true)})
	if got != 0 {
		t.Fatalf("random metric should score 0, got %v", got)
	}

	got, _ = Quality(MetricAccuracy, configuration.Configuration{}, []trace.Trace{drive("a", true, false, true)})
	if got != Unscored {
		t.Fatalf("empty configuration should be unscored, got %v", got)
	}
}

func TestQuality_UnknownMetric(t *testing.T) {
	_, err := Quality("f1", configuration.FromNorms(speedNorm()), nil)
	var um *UnknownMetricError
	if !errors.As(err, &um) {
		t.Fatalf("expected UnknownMetricError, got %v", err)
	}
	if um.Name != "f1" {
		t.Fatalf("unexpected name %q", um.Name)
	}
}

func TestQualityWith_MemoMatchesDirect(t *testing.T) {
	cfg := configuration.FromNorms(speedNorm(), distNorm())
	traces := []trace.Trace{
		drive("a", false, false, true),
		drive("b", true, false, false),
		drive("c", false, true, true),
		drive("d", true, true, false),
	}
	memo := NewMemo(traces)
	for _, m := range []Metric{MetricAccuracy, MetricMLAcc} {
		want, _ := Quality(m, cfg, traces)
		got, _ := QualityWith(m, cfg, traces, memo.Oracle())
		if got != want {
			t.Fatalf("%s: memo %v != direct %v", m, got, want)
		}
	}
}

func TestConfusion_Partition(t *testing.T) {
	traces := []trace.Trace{
		drive("tp", false, false, true),
		drive("fp", false, false, false),
		drive("tn", true, false, false),
		drive("fn", true, false, true),
		drive("tn2", true, false, false),
	}
	got := Confusion(speedNorm(), traces)
	want := ConfusionMatrix{TP: 1, FP: 1, TN: 2, FN: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("confusion mismatch (-want +got):\n%s", diff)
	}
}

func TestJoint_Buckets(t *testing.T) {
	cfg := configuration.FromNorms(speedNorm(), distNorm())
	traces := []trace.Trace{
		drive("pfc", false, false, true),
		drive("ppc1", false, true, true),
		drive("ppc2", true, false, true),
		drive("pfw", true, true, true),
		drive("nfw", false, false, false),
		drive("npc2", false, true, false),
		drive("npc1", true, false, false),
		drive("nfc", true, true, false),
		drive("nfc2", true, true, false),
	}
	got, err := Joint(cfg, traces)
	if err != nil {
		t.Fatalf("joint: %v", err)
	}
	want := JointMatrix{1, 1, 1, 1, 1, 1, 1, 2}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if _, err := Joint(configuration.FromNorms(speedNorm()), traces); err == nil {
		t.Fatal("expected error for a single-norm configuration")
	}
}

func TestSplit_CopiesAndRounds(t *testing.T) {
	var traces []trace.Trace
	for i := 0; i < 10; i++ {
		traces = append(traces, drive(string(rune('a'+i)), i%2 == 0, false, i%3 == 0))
	}
	before := ids(traces)

	h := NewEvalHarness(DefaultEvalConfig())
	train, test := h.Split(traces, rand.New(rand.NewPCG(7, 0)))

	if len(train) != 8 || len(test) != 2 {
		t.Fatalf("expected 8/2 split (round(7.5)), got %d/%d", len(train), len(test))
	}
	if diff := cmp.Diff(before, ids(traces)); diff != "" {
		t.Fatalf("caller slice was reordered:\n%s", diff)
	}
	all := append(ids(train), ids(test)...)
	sort.Strings(all)
	if diff := cmp.Diff(before, all); diff != "" {
		t.Fatalf("split lost or duplicated traces:\n%s", diff)
	}

	first := test[0].ID
	_ = append(train, drive("z", false, false, false))
	if test[0].ID != first {
		t.Fatalf("appending to train overwrote test[0]: %s", test[0].ID)
	}
	all = append(ids(train), ids(test)...)
	sort.Strings(all)
	if diff := cmp.Diff(before, all); diff != "" {
		t.Fatalf("split lost or duplicated traces:\n%s", diff)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	var traces []trace.Trace
	for i := 0; i < 12; i++ {
		traces = append(traces, drive(string(rune('a'+i)), false, false, true))
	}
	h := NewEvalHarness(DefaultEvalConfig())
	a, _ := h.Split(traces, rand.New(rand.NewPCG(3, 0)))
	b, _ := h.Split(traces, rand.New(rand.NewPCG(3, 0)))
	if diff := cmp.Diff(ids(a), ids(b)); diff != "" {
		t.Fatalf("same seed gave different splits:\n%s", diff)
	}
}

func TestEvaluatePair_AbsentRevisionReusesInitial(t *testing.T) {
	initial := configuration.FromNorms(speedNorm())
	traces := []trace.Trace{drive("a", false, false, true), drive("b", true, false, true)}

	h := NewEvalHarness(DefaultEvalConfig())
	res, err := h.EvaluatePair(initial, configuration.Configuration{}, traces, nil, rand.New(rand.NewPCG(1, 0)))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Revised {
		t.Fatal("expected Revised=false")
	}
	if len(res.Metrics) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(res.Metrics))
	}
	initTest, _ := res.Cell(CellInitialTest)
	revTest, _ := res.Cell(CellRevisedTest)
	if initTest.Quality != 0.5 || revTest.Quality != initTest.Quality {
		t.Fatalf("expected reused quality 0.5, got init %v rev %v", initTest.Quality, revTest.Quality)
	}
	if diff := cmp.Diff(initTest.Stats, revTest.Stats); diff != "" {
		t.Fatalf("stats differ:\n%s", diff)
	}
	if res.Improvement() != 0 {
		t.Fatalf("expected no improvement, got %v", res.Improvement())
	}
}

func TestEvaluatePair_Revised(t *testing.T) {
	initial := configuration.FromNorms(speedNorm())
	revised := configuration.FromNorms(norm.Must("MSN", norm.KindMaxSpeed,
		[][]string{{"condpos:km2"}},
		[][]string{{"speed:30"}},
		[][]string{{"deadpos:km5"}},
	))
	// both achieve the objective; only the initial norm flags b
	traces := []trace.Trace{drive("a", false, false, true), drive("b", true, false, true)}

	h := NewEvalHarness(DefaultEvalConfig())
	res, err := h.EvaluatePair(initial, revised, traces, nil, rand.New(rand.NewPCG(1, 0)))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.Revised {
		t.Fatal("expected Revised=true")
	}
	if got := res.Improvement(); got != 0.5 {
		t.Fatalf("expected improvement 0.5, got %v", got)
	}
	rev, _ := res.Cell(CellRevisedTrain)
	if diff := cmp.Diff([]int{2, 0, 0, 0}, rev.Stats); diff != "" {
		t.Fatalf("revised stats (-want +got):\n%s", diff)
	}
}

func TestEvaluatePair_AbsentInitialFillsSentinels(t *testing.T) {
	cfg := DefaultEvalConfig()
	cfg.NormCount = 2
	h := NewEvalHarness(cfg)

	res, err := h.EvaluatePair(configuration.Configuration{}, configuration.Configuration{}, nil, nil, rand.New(rand.NewPCG(1, 0)))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for _, m := range res.Metrics {
		if m.Quality != Unscored {
			t.Fatalf("%s: expected %v, got %v", m.Name, Unscored, m.Quality)
		}
		if len(m.Stats) != len(JointBuckets) {
			t.Fatalf("%s: expected %d joint buckets, got %d", m.Name, len(JointBuckets), len(m.Stats))
		}
		for _, v := range m.Stats {
			if v != -1 {
				t.Fatalf("%s: expected -1 fill, got %v", m.Name, m.Stats)
			}
		}
	}
}

func TestEvaluatePair_IndependentTestBatch(t *testing.T) {
	cfg := DefaultEvalConfig()
	cfg.IndependentTest = true
	h := NewEvalHarness(cfg)

	initial := configuration.FromNorms(speedNorm())
	train := []trace.Trace{drive("a", false, false, true)}
	independent := []trace.Trace{drive("x", true, false, true)}

	res, err := h.EvaluatePair(initial, configuration.Configuration{}, train, independent, rand.New(rand.NewPCG(1, 0)))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	tr, _ := res.Cell(CellInitialTrain)
	te, _ := res.Cell(CellInitialTest)
	if tr.Quality != 1 || te.Quality != 0 {
		t.Fatalf("expected train 1 / test 0, got %v / %v", tr.Quality, te.Quality)
	}
}

func TestRow_HeaderMatchesValues(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	initial := configuration.FromNorms(speedNorm(), distNorm())
	res, err := h.EvaluatePair(initial, configuration.Configuration{}, []trace.Trace{drive("a", false, false, true)}, nil, rand.New(rand.NewPCG(1, 0)))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	row := Row{Phase: PhaseSelection, Metric: "accuracy", Round: 0, Strategy: "weakening", Trial: 3, Result: res}

	header := Header(2, true)
	if len(header) != 7+4*9 {
		t.Fatalf("unexpected header width %d", len(header))
	}
	values := row.Values()
	if len(values) != len(header) {
		t.Fatalf("header has %d columns, row has %d", len(header), len(values))
	}
	if values[2] != "0" || values[6] != "3" || values[7] != "1" {
		t.Fatalf("unexpected values %v", values[:8])
	}

	if got := len(Header(2, false)); got != 7+4*9 {
		t.Fatalf("per-norm header for two norms: expected %d columns, got %d", 7+4*9, got)
	}
	if got := len(Header(1, true)); got != 7+4*5 {
		t.Fatalf("single-norm header: expected %d columns, got %d", 7+4*5, got)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	row := Row{Phase: PhaseSynth, Metric: "-", Round: -1, Strategy: "alteration", Trial: 1,
		Result: EvalResult{Metrics: []EvalMetric{{Name: CellInitialTrain, Quality: 0.25, Stats: []int{1, 2, 3, 4}}}}}

	if err := WriteCSV(&buf, Header(1, false), []Row{row}); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "exp_type;metric;revision_nr;") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "synth;-;-;false;false;alteration;1;0.25;1;2;3;4" {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func ids(traces []trace.Trace) []string {
	out := make([]string, len(traces))
	for i, t := range traces {
		out[i] = t.ID
	}
	return out
}

func TestEvaluateConfiguration_IndependentTestBatch(t *testing.T) {
	cfg := DefaultEvalConfig()
	cfg.IndependentTest = true
	h := NewEvalHarness(cfg)

	c := configuration.FromNorms(speedNorm())
	train := []trace.Trace{drive("a", false, false, true)}
	independent := []trace.Trace{drive("x", true, false, true)}

	res, err := h.EvaluateConfiguration(c, train, independent, rand.New(rand.NewPCG(1, 0)))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Revised {
		t.Fatal("expected Revised=false")
	}
	if len(res.Metrics) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(res.Metrics))
	}
	tr, _ := res.Cell(CellInitialTrain)
	te, _ := res.Cell(CellInitialTest)
	if tr.Quality != 1 || te.Quality != 0 {
		t.Fatalf("expected train 1 / test 0, got %v / %v", tr.Quality, te.Quality)
	}
	for _, name := range []string{CellRevisedTrain, CellRevisedTest} {
		m, ok := res.Cell(name)
		if !ok {
			t.Fatalf("missing cell %s", name)
		}
		if m.Quality != Unscored {
			t.Fatalf("%s: expected %v, got %v", name, Unscored, m.Quality)
		}
		if diff := cmp.Diff([]int{-1, -1, -1, -1}, m.Stats); diff != "" {
			t.Fatalf("%s stats (-want +got):\n%s", name, diff)
		}
	}
}

func TestEvaluateConfiguration_TrainTestSplit(t *testing.T) {
	cfg := DefaultEvalConfig()
	cfg.TrainTestSplit = true
	h := NewEvalHarness(cfg)

	var traces []trace.Trace
	for i := 0; i < 4; i++ {
		traces = append(traces, drive(string(rune('a'+i)), i%2 == 0, false, true))
	}
	res, err := h.EvaluateConfiguration(configuration.FromNorms(speedNorm()), traces, nil, rand.New(rand.NewPCG(5, 0)))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	sum := func(v []int) int {
		total := 0
		for _, x := range v {
			total += x
		}
		return total
	}
	tr, _ := res.Cell(CellInitialTrain)
	te, _ := res.Cell(CellInitialTest)
	if sum(tr.Stats) != 3 || sum(te.Stats) != 1 {
		t.Fatalf("expected 3/1 split, got %d/%d", sum(tr.Stats), sum(te.Stats))
	}
}
