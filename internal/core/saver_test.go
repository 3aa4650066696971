package core

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"sweepcore/internal/infra/persistence/memory"
	"sweepcore/pkg/domain"
)

func mustRegister(t *testing.T, m *Measurement, name string, class ParamType, setpoints, basis []string) {
	t.Helper()
	if err := m.Register(name, "", "", class, setpoints, basis); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}

func startRun(t *testing.T, m *Measurement, cfg RunConfig) (*Saver, *memory.Store) {
	t.Helper()
	store := memory.NewStore(m.Name())
	saver, err := m.Run(context.Background(), store, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return saver, store
}

func TestScalarDependentYieldsOneRecord(t *testing.T) {
	m := NewMeasurement("scalar")
	mustRegister(t, m, "s", domain.TypeNumeric, nil, nil)
	mustRegister(t, m, "d", domain.TypeNumeric, []string{"s"}, nil)
	saver, store := startRun(t, m, RunConfig{})
	ctx := context.Background()

	if err := saver.AddResult(ctx, Result{Name: "d", Value: 1.0}, Result{Name: "s", Value: 2.0}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	records := store.Records()
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
	want := Record{"d": 1.0, "s": 2.0}
	if !reflect.DeepEqual(records[0], want) {
		t.Fatalf("unexpected record %v, want %v", records[0], want)
	}
}

func TestArrayDependentUnrollsInIndexOrder(t *testing.T) {
	m := NewMeasurement("sweep")
	mustRegister(t, m, "s", domain.TypeNumeric, nil, nil)
	mustRegister(t, m, "d", domain.TypeNumeric, []string{"s"}, nil)
	saver, store := startRun(t, m, RunConfig{})
	ctx := context.Background()

	dep := []float64{10, 20, 30}
	sp := []float64{1, 2, 3}
	if err := saver.AddResult(ctx, Result{Name: "d", Value: dep}, Result{Name: "s", Value: sp}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	records := store.Records()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec["d"] != dep[i] || rec["s"] != sp[i] {
			t.Fatalf("record %d out of order: %v", i, rec)
		}
	}
}

func TestMeshgridExpansionForUnnamedAxes(t *testing.T) {
	m := NewMeasurement("grid")
	producer := Producer{
		Name: "z",
		Kind: domain.KindArray,
		Axes: []Axis{
			{Values: []float64{10, 20}},
			{Values: []float64{1, 2, 3}},
		},
	}
	if err := m.RegisterProducer(producer, domain.TypeNumeric, nil, nil); err != nil {
		t.Fatalf("register producer: %v", err)
	}
	saver, store := startRun(t, m, RunConfig{})
	ctx := context.Background()

	payload := [][]float64{{1, 2, 3}, {4, 5, 6}}
	if err := saver.AddResult(ctx, Result{Name: "z", Value: payload}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	records := store.Records()
	if len(records) != 6 {
		t.Fatalf("expected 6 records, got %d", len(records))
	}
	wantAxis0 := []float64{10, 10, 10, 20, 20, 20}
	wantAxis1 := []float64{1, 2, 3, 1, 2, 3}
	wantZ := []float64{1, 2, 3, 4, 5, 6}
	for i, rec := range records {
		if rec["z_setpoint_0"] != wantAxis0[i] || rec["z_setpoint_1"] != wantAxis1[i] || rec["z"] != wantZ[i] {
			t.Fatalf("record %d has wrong grid values: %v", i, rec)
		}
	}
}

func TestMissingSetpointFailsWithDependencyError(t *testing.T) {
	m := NewMeasurement("missing")
	mustRegister(t, m, "s", domain.TypeNumeric, nil, nil)
	mustRegister(t, m, "d", domain.TypeNumeric, []string{"s"}, nil)
	saver, _ := startRun(t, m, RunConfig{})

	err := saver.AddResult(context.Background(), Result{Name: "d", Value: 1.0})
	var de domain.DependencyError
	if !errors.As(err, &de) {
		t.Fatalf("expected DependencyError, got %v", err)
	}
	if saver.Pending() != 0 {
		t.Fatalf("rejected call must not buffer records")
	}
}

func TestSetpointAloneIsValid(t *testing.T) {
	m := NewMeasurement("sp-only")
	mustRegister(t, m, "s", domain.TypeNumeric, nil, nil)
	mustRegister(t, m, "d", domain.TypeNumeric, []string{"s"}, nil)
	saver, _ := startRun(t, m, RunConfig{})

	if err := saver.AddResult(context.Background(), Result{Name: "s", Value: 2.0}); err != nil {
		t.Fatalf("setpoint alone must validate: %v", err)
	}
	// A setpoint without its dependent belongs to no group and no standalone
	// set; it yields no records.
	if saver.Pending() != 0 {
		t.Fatalf("expected no records for a lone setpoint, got %d", saver.Pending())
	}
}

func TestTypeValidation(t *testing.T) {
	m := NewMeasurement("types")
	mustRegister(t, m, "s", domain.TypeNumeric, nil, nil)
	mustRegister(t, m, "d", domain.TypeNumeric, []string{"s"}, nil)
	saver, store := startRun(t, m, RunConfig{})
	ctx := context.Background()

	err := saver.AddResult(ctx, Result{Name: "d", Value: "oops"}, Result{Name: "s", Value: 1.0})
	var sce domain.StorageClassError
	if !errors.As(err, &sce) {
		t.Fatalf("expected StorageClassError for string in numeric, got %v", err)
	}

	// A single-element array for a numeric scalar coerces to its element.
	if err := saver.AddResult(ctx, Result{Name: "d", Value: []float64{1.23}}, Result{Name: "s", Value: 2.0}); err != nil {
		t.Fatalf("single-element array must pass: %v", err)
	}
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	records := store.Records()
	if len(records) != 1 || records[0]["d"] != 1.23 || records[0]["s"] != 2.0 {
		t.Fatalf("expected coerced scalar record, got %v", records)
	}
}

func TestShapeMismatch(t *testing.T) {
	m := NewMeasurement("shapes")
	mustRegister(t, m, "s", domain.TypeNumeric, nil, nil)
	mustRegister(t, m, "d", domain.TypeNumeric, []string{"s"}, nil)
	saver, _ := startRun(t, m, RunConfig{})

	err := saver.AddResult(context.Background(),
		Result{Name: "d", Value: []float64{1, 2, 3, 4, 5}},
		Result{Name: "s", Value: []float64{1, 2, 3}})
	var sme domain.ShapeMismatchError
	if !errors.As(err, &sme) {
		t.Fatalf("expected ShapeMismatchError, got %v", err)
	}
	if sme.Param != "d" || sme.Setpoint != "s" {
		t.Fatalf("error must name both parameters: %+v", sme)
	}
}

func TestScalarSetpointBroadcast(t *testing.T) {
	m := NewMeasurement("broadcast")
	mustRegister(t, m, "s", domain.TypeNumeric, nil, nil)
	mustRegister(t, m, "d", domain.TypeNumeric, []string{"s"}, nil)
	saver, store := startRun(t, m, RunConfig{})
	ctx := context.Background()

	if err := saver.AddResult(ctx, Result{Name: "d", Value: []float64{7, 8}}, Result{Name: "s", Value: 0.5}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	records := store.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec["s"] != 0.5 {
			t.Fatalf("record %d missing broadcast setpoint: %v", i, rec)
		}
	}
}

func TestDuplicateResultFailsFast(t *testing.T) {
	m := NewMeasurement("dup")
	mustRegister(t, m, "x", domain.TypeNumeric, nil, nil)
	saver, _ := startRun(t, m, RunConfig{})

	err := saver.AddResult(context.Background(), Result{Name: "x", Value: 1.0}, Result{Name: "x", Value: 2.0})
	var dre domain.DuplicateResultError
	if !errors.As(err, &dre) {
		t.Fatalf("expected DuplicateResultError, got %v", err)
	}
}

func TestUnknownParameter(t *testing.T) {
	m := NewMeasurement("unknown")
	mustRegister(t, m, "x", domain.TypeNumeric, nil, nil)
	saver, _ := startRun(t, m, RunConfig{})

	err := saver.AddResult(context.Background(), Result{Name: "ghost", Value: 1.0})
	var upe domain.UnknownParameterError
	if !errors.As(err, &upe) {
		t.Fatalf("expected UnknownParameterError, got %v", err)
	}
}

func TestTextStandaloneFansOut(t *testing.T) {
	m := NewMeasurement("text")
	mustRegister(t, m, "note", domain.TypeText, nil, nil)
	saver, store := startRun(t, m, RunConfig{})
	ctx := context.Background()

	if err := saver.AddResult(ctx, Result{Name: "note", Value: []string{"a", "b", "c"}}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	records := store.Records()
	if len(records) != 3 {
		t.Fatalf("expected one record per string, got %d", len(records))
	}
	for i, want := range []string{"a", "b", "c"} {
		if records[i]["note"] != want {
			t.Fatalf("record %d: %v", i, records[i])
		}
	}
}

type failingStore struct {
	*memory.Store
	fail bool
}

func (f *failingStore) AddResults(ctx context.Context, records []domain.Record) (int, error) {
	if f.fail {
		return 0, errors.New("sink unavailable")
	}
	return f.Store.AddResults(ctx, records)
}

func TestFlushFailureKeepsBuffer(t *testing.T) {
	m := NewMeasurement("resilience")
	mustRegister(t, m, "x", domain.TypeNumeric, nil, nil)
	store := &failingStore{Store: memory.NewStore("resilience")}
	saver, err := m.Run(context.Background(), store, RunConfig{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	ctx := context.Background()

	if err := saver.AddResult(ctx, Result{Name: "x", Value: 1.0}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	store.fail = true
	if err := saver.Flush(ctx); err == nil {
		t.Fatalf("expected flush failure")
	}
	if saver.Pending() != 1 {
		t.Fatalf("buffer must be preserved after failed flush, pending=%d", saver.Pending())
	}
	if err := saver.AddResult(ctx, Result{Name: "x", Value: 2.0}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	store.fail = false
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	records := store.Records()
	if len(records) != 2 || records[0]["x"] != 1.0 || records[1]["x"] != 2.0 {
		t.Fatalf("expected both records once each, got %v", records)
	}
}

func TestPeriodicFlushInsideAddResult(t *testing.T) {
	m := NewMeasurement("periodic")
	mustRegister(t, m, "x", domain.TypeNumeric, nil, nil)
	if err := m.SetWritePeriod(100 * time.Millisecond); err != nil {
		t.Fatalf("set write period: %v", err)
	}
	saver, store := startRun(t, m, RunConfig{})
	ctx := context.Background()

	now := time.Unix(0, 0)
	saver.SetNowFunc(func() time.Time { return now })

	if err := saver.AddResult(ctx, Result{Name: "x", Value: 1.0}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	if n, _ := store.NumberOfResults(ctx); n != 0 {
		t.Fatalf("write period not elapsed, nothing should be flushed")
	}
	now = now.Add(200 * time.Millisecond)
	if err := saver.AddResult(ctx, Result{Name: "x", Value: 2.0}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	if n, _ := store.NumberOfResults(ctx); n != 2 {
		t.Fatalf("expected periodic flush to persist both records, got %d", n)
	}
	if saver.Pending() != 0 {
		t.Fatalf("buffer should be empty after periodic flush")
	}
}

func TestWritePeriodFloor(t *testing.T) {
	m := NewMeasurement("floor")
	if err := m.SetWritePeriod(500 * time.Microsecond); err == nil {
		t.Fatalf("expected rejection below 1ms")
	}
	if err := m.SetWritePeriod(time.Millisecond); err != nil {
		t.Fatalf("1ms must be accepted: %v", err)
	}
}

func TestCloseFlushesAndCompletes(t *testing.T) {
	m := NewMeasurement("close")
	mustRegister(t, m, "x", domain.TypeNumeric, nil, nil)
	saver, store := startRun(t, m, RunConfig{})
	ctx := context.Background()

	if err := saver.AddResult(ctx, Result{Name: "x", Value: 1.0}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	if err := saver.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n, _ := store.NumberOfResults(ctx); n != 1 {
		t.Fatalf("close must perform a final flush, got %d records", n)
	}
	var ace domain.AlreadyClosedError
	if err := saver.Close(ctx); !errors.As(err, &ace) {
		t.Fatalf("second close must fail with AlreadyClosedError, got %v", err)
	}
	if err := saver.AddResult(ctx, Result{Name: "x", Value: 2.0}); !errors.As(err, &ace) {
		t.Fatalf("add after close must fail with AlreadyClosedError, got %v", err)
	}
}

func TestDeliveredBatchesSurviveLaterFlushes(t *testing.T) {
	m := NewMeasurement("retained")
	mustRegister(t, m, "x", domain.TypeNumeric, nil, nil)
	var batches [][]Record
	cfg := RunConfig{Subscribers: []Subscriber{{
		Callback: func(records []Record, total int, state any) {
			batches = append(batches, records)
		},
	}}}
	saver, _ := startRun(t, m, cfg)
	ctx := context.Background()

	if err := saver.AddResult(ctx, Result{Name: "x", Value: 1.0}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := saver.AddResult(ctx, Result{Name: "x", Value: 2.0}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 delivered batches, got %d", len(batches))
	}
	// A retained batch must keep its contents after later submissions reuse
	// the saver; the flushed slice may not alias the write buffer.
	if got := batches[0][0]["x"]; got != 1.0 {
		t.Fatalf("first delivered batch changed after later flush: x=%v, want 1.0", got)
	}
	if got := batches[1][0]["x"]; got != 2.0 {
		t.Fatalf("second delivered batch wrong: x=%v, want 2.0", got)
	}
}

func TestRunRequiresParameters(t *testing.T) {
	m := NewMeasurement("empty")
	if _, err := m.Run(context.Background(), memory.NewStore("empty"), RunConfig{}); err == nil {
		t.Fatalf("expected error when no parameters registered")
	}
}

func TestRunHooksAndSubscribers(t *testing.T) {
	m := NewMeasurement("hooks")
	mustRegister(t, m, "x", domain.TypeNumeric, nil, nil)
	var before, after int
	m.AddBeforeRun(func(context.Context) error { before++; return nil })
	m.AddAfterRun(func(context.Context) error { after++; return nil })

	var notified [][]Record
	cfg := RunConfig{Subscribers: []Subscriber{{
		Callback: func(records []Record, total int, state any) {
			notified = append(notified, records)
		},
	}}}
	saver, _ := startRun(t, m, cfg)
	ctx := context.Background()
	if before != 1 {
		t.Fatalf("before-run hook not executed")
	}
	if err := saver.AddResult(ctx, Result{Name: "x", Value: 1.0}); err != nil {
		t.Fatalf("add result: %v", err)
	}
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(notified) != 1 || len(notified[0]) != 1 {
		t.Fatalf("subscriber not notified on flush: %v", notified)
	}
	if err := saver.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if after != 1 {
		t.Fatalf("after-run hook not executed")
	}
}
