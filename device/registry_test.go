package device

import (
	"context"
	"errors"
	"strings"
	"testing"

	"devicecore-go/errcode"
	"devicecore-go/x/logx"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"
)

// ---- test driver ----

type probeConfig struct {
	id   int
	fail error
}

type probeAPI interface{ Probe() string }

type probe struct{}

func (probe) Probe() string { return "probe" }

type recorder struct {
	calls map[string]int
	order []string
}

func newRecorder() *recorder { return &recorder{calls: map[string]int{}} }

func (rec *recorder) init(_ context.Context, d *Instance[probeConfig, probeAPI]) error {
	if d.State() != StateUninit {
		panic("init on a device that already left uninit")
	}
	rec.calls[d.Name()]++
	rec.order = append(rec.order, d.Name())
	return d.Config().fail
}

func newTestRegistry() *Registry { return NewRegistry(WithLogger(logx.Nop())) }

func define(t *testing.T, r *Registry, rec *recorder, name string, lvl Level, prio int, fail error) *Instance[probeConfig, probeAPI] {
	t.Helper()
	d, err := Define(r, Spec[probeConfig, probeAPI]{
		Name:     name,
		Config:   probeConfig{fail: fail},
		API:      probe{},
		Init:     rec.init,
		Level:    lvl,
		Priority: prio,
	})
	if err != nil {
		t.Fatalf("define %s: %v", name, err)
	}
	return d
}

// ---- tests ----

func TestInitAllOrdersByPriority(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()
	define(t, r, rec, "p2", PostKernel, 2, nil)
	define(t, r, rec, "p0", PostKernel, 0, nil)
	define(t, r, rec, "p1", PostKernel, 1, nil)

	if err := r.InitAll(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if diff := cmp.Diff([]string{"p0", "p1", "p2"}, rec.order); diff != "" {
		t.Fatalf("init order (-want +got):\n%s", diff)
	}
}

func TestInitAllOrdersByLevelThenDefinition(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()
	define(t, r, rec, "app", Application, 0, nil)
	define(t, r, rec, "late_a", PostKernel, 5, nil)
	define(t, r, rec, "early", PreKernel1, 99, nil)
	define(t, r, rec, "late_b", PostKernel, 5, nil)

	_ = r.InitAll(context.Background())

	want := []string{"early", "late_a", "late_b", "app"}
	if diff := cmp.Diff(want, rec.order); diff != "" {
		t.Fatalf("init order (-want +got):\n%s", diff)
	}
	var got []string
	for _, d := range r.Devices() {
		got = append(got, d.Name())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Devices() should report boot order (-want +got):\n%s", diff)
	}
}

func TestInitAllIsolatesFailures(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()
	boom := &errcode.E{C: errcode.HardwareNotReady, Op: "probe.init"}
	a := define(t, r, rec, "a", PostKernel, 0, nil)
	b := define(t, r, rec, "b", PostKernel, 1, boom)
	c := define(t, r, rec, "c", PostKernel, 2, nil)

	err := r.InitAll(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if !errors.Is(err, boom) || errcode.Of(err) != errcode.HardwareNotReady {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(multierr.Errors(err)) != 1 {
		t.Fatalf("want 1 failure, got %v", multierr.Errors(err))
	}
	for name, n := range map[string]int{"a": 1, "b": 1, "c": 1} {
		if rec.calls[name] != n {
			t.Fatalf("%s: init called %d times", name, rec.calls[name])
		}
	}
	if a.State() != StateReady || c.State() != StateReady {
		t.Fatalf("healthy devices: a=%v c=%v", a.State(), c.State())
	}
	if b.State() != StateFailed || !errors.Is(b.Err(), boom) {
		t.Fatalf("b: state=%v err=%v", b.State(), b.Err())
	}
	if IsReady(b) || !IsReady(a) || IsReady(nil) {
		t.Fatal("IsReady mismatch")
	}
}

func TestEveryDeviceLeavesUninit(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()
	for i, fail := range []error{nil, errors.New("x"), nil, errors.New("y")} {
		define(t, r, rec, string(rune('a'+i)), PostKernel, i, fail)
	}
	for _, d := range r.Devices() {
		if d.State() != StateUninit || d.Err() != nil {
			t.Fatalf("%s: pre-boot state %v", d.Name(), d.State())
		}
	}
	_ = r.InitAll(context.Background())
	for _, d := range r.Devices() {
		if s := d.State(); s != StateReady && s != StateFailed {
			t.Fatalf("%s: state %v after boot", d.Name(), s)
		}
	}
}

func TestInitAllRunsOnce(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()
	define(t, r, rec, "a", PostKernel, 0, errors.New("nope"))

	_ = r.InitAll(context.Background())
	err := r.InitAll(context.Background())
	if errcode.Of(err) != errcode.AlreadyInitialized {
		t.Fatalf("second InitAll: %v", err)
	}
	if rec.calls["a"] != 1 {
		t.Fatalf("init called %d times", rec.calls["a"])
	}
	if d, _ := r.Lookup("a"); d.State() != StateFailed {
		t.Fatal("failed device must stay failed")
	}
	if !r.Initialized() {
		t.Fatal("Initialized should report true")
	}
}

func TestDefineAfterInitIsRejected(t *testing.T) {
	r := newTestRegistry()
	_ = r.InitAll(context.Background())
	_, err := Define(r, Spec[probeConfig, probeAPI]{Name: "late", API: probe{}, Init: newRecorder().init})
	if errcode.Of(err) != errcode.RegistrySealed {
		t.Fatalf("want registry_sealed, got %v", err)
	}
}

func TestDefineValidates(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()
	define(t, r, rec, "a", PostKernel, 0, nil)

	cases := map[string]struct {
		spec Spec[probeConfig, probeAPI]
		want errcode.Code
	}{
		"empty name": {Spec[probeConfig, probeAPI]{API: probe{}, Init: rec.init}, errcode.InvalidParams},
		"nil api":    {Spec[probeConfig, probeAPI]{Name: "x", Init: rec.init}, errcode.InvalidParams},
		"nil init":   {Spec[probeConfig, probeAPI]{Name: "x", API: probe{}}, errcode.InvalidParams},
		"duplicate":  {Spec[probeConfig, probeAPI]{Name: "a", API: probe{}, Init: rec.init}, errcode.DuplicateDevice},
	}
	for name, tc := range cases {
		if _, err := Define(r, tc.spec); errcode.Of(err) != tc.want {
			t.Fatalf("%s: want %s, got %v", name, tc.want, err)
		}
	}
}

func TestMustDefinePanics(t *testing.T) {
	r := newTestRegistry()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustDefine(r, Spec[probeConfig, probeAPI]{Name: ""})
}

func TestLookup(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()
	a := define(t, r, rec, "a", PostKernel, 0, nil)

	if d, ok := r.Lookup("a"); !ok || d != Device(a) {
		t.Fatal("lookup by name failed")
	}
	if d, ok := r.Lookup("missing"); ok || d != nil {
		t.Fatal("unknown name must return nil, false")
	}
	typed, ok := LookupAs[probeConfig, probeAPI](r, "a")
	if !ok || typed != a {
		t.Fatal("typed lookup failed")
	}
	if _, ok := LookupAs[int, probeAPI](r, "a"); ok {
		t.Fatal("typed lookup with the wrong config type must fail")
	}
}

func TestInitPanicMarksFailed(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()
	bad, _ := Define(r, Spec[probeConfig, probeAPI]{
		Name: "bad",
		API:  probe{},
		Init: func(context.Context, *Instance[probeConfig, probeAPI]) error { panic("wedged") },
	})
	good := define(t, r, rec, "good", PostKernel, 1, nil)

	if err := r.InitAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if bad.State() != StateFailed || !good.IsReady() {
		t.Fatalf("bad=%v good=%v", bad.State(), good.State())
	}
	if !strings.Contains(bad.Err().Error(), "wedged") {
		t.Fatalf("panic value missing from error: %v", bad.Err())
	}
}

type ptrAPI struct{}

func (*ptrAPI) Probe() string { return "ptr" }

func TestDefineRejectsTypedNilAPI(t *testing.T) {
	r := newTestRegistry()
	var api *ptrAPI
	_, err := Define(r, Spec[probeConfig, *ptrAPI]{
		Name: "nilapi",
		API:  api,
		Init: func(context.Context, *Instance[probeConfig, *ptrAPI]) error { return nil },
	})
	if errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("want invalid_params, got %v", err)
	}
	_, err = Define(r, Spec[probeConfig, probeAPI]{
		Name: "niliface",
		API:  probeAPI(api),
		Init: newRecorder().init,
	})
	if errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("typed nil inside interface: want invalid_params, got %v", err)
	}
}

func TestDataSlot(t *testing.T) {
	r := newTestRegistry()
	counter := new(int)
	d, err := Define(r, Spec[probeConfig, probeAPI]{
		Name: "stateful",
		API:  probe{},
		Init: func(_ context.Context, d *Instance[probeConfig, probeAPI]) error {
			*d.Data().(*int)++
			return nil
		},
		Data: counter,
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = r.InitAll(context.Background())
	if *counter != 1 || d.Data() != any(counter) {
		t.Fatalf("data slot not carried through init: %d", *counter)
	}
}

func TestCancelledContextFailsRemaining(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()
	a := define(t, r, rec, "a", PostKernel, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.InitAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if a.State() != StateFailed || rec.calls["a"] != 0 {
		t.Fatalf("state=%v calls=%d", a.State(), rec.calls["a"])
	}
}

func TestConfigAndAPIAreShared(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()
	shared := probe{}
	a, _ := Define(r, Spec[probeConfig, probeAPI]{Name: "a", Config: probeConfig{id: 1}, API: shared, Init: rec.init})
	b, _ := Define(r, Spec[probeConfig, probeAPI]{Name: "b", Config: probeConfig{id: 2}, API: shared, Init: rec.init})
	if a.API() != b.API() {
		t.Fatal("API should be the same value")
	}
	if a.Config().id == b.Config().id {
		t.Fatal("configs should be distinct")
	}
	if a.Capability().(probeAPI).Probe() != "probe" {
		t.Fatal("capability dispatch failed")
	}
}

func TestStateStrings(t *testing.T) {
	if StateUninit.String() != "uninit" || StateReady.String() != "ready" || StateFailed.String() != "failed" {
		t.Fatal("state strings changed")
	}
	if PostKernel.String() != "post_kernel" {
		t.Fatal("level strings changed")
	}
}
