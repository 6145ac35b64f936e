package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
)

func TestMethodCall_Accessors(t *testing.T) {
	var decoded any
	payload := `{"adId":7,"ratio":1.5,"name":"x","flag":true,"nothing":null,
		"sizes":[{"w":320,"h":50}],"params":{"k":["a","b"]},"bad":{"k":[1]}}`
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatal(err)
	}
	call := &MethodCall{Method: "POBBannerView#loadAd", Arguments: decoded}

	if v, ok := call.Int("adId"); !ok || v != 7 {
		t.Errorf("Int(adId) = %d, %v", v, ok)
	}
	if _, ok := call.Int("ratio"); ok {
		t.Error("Non-integral number must not convert to int")
	}
	if v, ok := call.Float("ratio"); !ok || v != 1.5 {
		t.Errorf("Float(ratio) = %v, %v", v, ok)
	}
	if v, ok := call.String("name"); !ok || v != "x" {
		t.Errorf("String(name) = %q, %v", v, ok)
	}
	if _, ok := call.String("adId"); ok {
		t.Error("Number must not convert to string")
	}
	if v, ok := call.Bool("flag"); !ok || !v {
		t.Errorf("Bool(flag) = %v, %v", v, ok)
	}
	if !call.Has("nothing") || !call.IsNull("nothing") {
		t.Error("Expected nothing to be present and null")
	}
	if call.Has("missing") || call.IsNull("missing") {
		t.Error("Expected missing to be absent")
	}
	if l, ok := call.List("sizes"); !ok || len(l) != 1 {
		t.Errorf("List(sizes) = %v, %v", l, ok)
	}
	if m, ok := call.StringListMap("params"); !ok || len(m["k"]) != 2 || m["k"][1] != "b" {
		t.Errorf("StringListMap(params) = %v, %v", m, ok)
	}
	if _, ok := call.StringListMap("bad"); ok {
		t.Error("Non-string list entries must be rejected")
	}
}

func TestMethodCall_PrimitivePayload(t *testing.T) {
	call := &MethodCall{Method: "OpenWrapSDK#setCoppa", Arguments: true}

	if v, ok := call.BoolValue(); !ok || !v {
		t.Errorf("BoolValue = %v, %v", v, ok)
	}
	if call.Has("anything") {
		t.Error("Primitive payload has no keys")
	}
	if call.ArgumentMap() != nil {
		t.Error("Primitive payload has no argument map")
	}

	call = &MethodCall{Method: "OpenWrapSDK#setLogLevel", Arguments: float64(3)}
	if v, ok := call.IntValue(); !ok || v != 3 {
		t.Errorf("IntValue = %v, %v", v, ok)
	}
}

func TestRoute(t *testing.T) {
	tests := map[string]string{
		"OpenWrapSDK#setCoppa":                     "OpenWrapSDK",
		"initBannerAd":                             "initBannerAd",
		"POBBannerView#EventHandler#onAdServerWin": "POBBannerView",
		"":                                         "",
	}
	for in, want := range tests {
		if got := Route(in); got != want {
			t.Errorf("Route(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInvoke_Classification(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	ctx := context.Background()

	tests := []struct {
		name    string
		result  any
		err     error
		outcome string
		check   func(t *testing.T, r Reply)
	}{
		{"success", "2.1.0", nil, metrics.OutcomeSuccess, func(t *testing.T, r Reply) {
			if r.Result != "2.1.0" {
				t.Errorf("Expected result, got %v", r.Result)
			}
		}},
		{"not implemented", nil, ErrNotImplemented, metrics.OutcomeNotImplemented, func(t *testing.T, r Reply) {
			if !r.NotImplemented {
				t.Error("Expected NotImplemented")
			}
		}},
		{"dropped", nil, ErrNoReply, metrics.OutcomeDropped, func(t *testing.T, r Reply) {
			if !r.Dropped {
				t.Error("Expected Dropped")
			}
		}},
		{"platform error", nil, NewPlatformError(CodeMissingParameters, "Missing required parameter/s", nil),
			metrics.OutcomeError, func(t *testing.T, r Reply) {
				if r.Error == nil || r.Error.Code != CodeMissingParameters {
					t.Errorf("Expected missing parameter error, got %+v", r.Error)
				}
			}},
		{"plain error", nil, errors.New("boom"), metrics.OutcomeError, func(t *testing.T, r Reply) {
			if r.Error == nil || r.Error.Code != CodePlatformException || r.Error.Details != "boom" {
				t.Errorf("Expected wrapped platform exception, got %+v", r.Error)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := HandlerFunc(func(context.Context, *MethodCall) (any, error) { return tt.result, tt.err })
			r := Invoke(ctx, h, &MethodCall{Method: "route#" + tt.name}, m)
			tt.check(t, r)
			if r.Outcome() != tt.outcome {
				t.Errorf("Outcome = %s, want %s", r.Outcome(), tt.outcome)
			}
			if got := testutil.ToFloat64(m.MethodCalls.WithLabelValues("route", tt.outcome)); got < 1 {
				t.Errorf("Expected call counted under %s", tt.outcome)
			}
		})
	}
}

func TestInvoke_RecoversPanic(t *testing.T) {
	h := HandlerFunc(func(context.Context, *MethodCall) (any, error) { panic("kaboom") })

	r := Invoke(context.Background(), h, &MethodCall{Method: "initBannerAd"}, nil)

	if r.Error == nil || r.Error.Code != CodePlatformException {
		t.Fatalf("Expected platform exception after panic, got %+v", r)
	}
}

func TestOutbox_PreservesOrder(t *testing.T) {
	rec := NewRecorder()
	o := NewOutbox(rec, 4, nil)

	const n = 100
	for i := 0; i < n; i++ {
		o.InvokeMethod("event", map[string]any{"seq": i})
	}
	o.Close()

	events := rec.Events()
	if len(events) != n {
		t.Fatalf("Expected %d events, got %d", n, len(events))
	}
	for i, ev := range events {
		if ev.Arguments["seq"] != i {
			t.Fatalf("Event %d out of order: %v", i, ev.Arguments["seq"])
		}
	}
}

func TestOutbox_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	rec := NewRecorder()
	o := NewOutbox(rec, 8, nil)

	var wg sync.WaitGroup
	for ad := 0; ad < 4; ad++ {
		wg.Add(1)
		go func(ad int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				o.InvokeMethod("event", map[string]any{"adId": ad, "seq": i})
			}
		}(ad)
	}
	wg.Wait()
	o.Close()

	last := map[int]int{0: -1, 1: -1, 2: -1, 3: -1}
	for _, ev := range rec.Events() {
		ad := ev.Arguments["adId"].(int)
		seq := ev.Arguments["seq"].(int)
		if seq != last[ad]+1 {
			t.Fatalf("adId %d: expected seq %d, got %d", ad, last[ad]+1, seq)
		}
		last[ad] = seq
	}
}

func TestOutbox_DiscardsAfterClose(t *testing.T) {
	rec := NewRecorder()
	o := NewOutbox(rec, 1, nil)
	o.Close()
	o.Close()

	o.InvokeMethod("late", nil)

	if len(rec.Events()) != 0 {
		t.Errorf("Expected no events after close, got %v", rec.Methods())
	}
}

func TestOutbox_SinkErrorDoesNotStopDelivery(t *testing.T) {
	var mu sync.Mutex
	var delivered []string
	sink := SinkFunc(func(ev Event) error {
		if ev.Method == "bad" {
			return errors.New("write failed")
		}
		mu.Lock()
		delivered = append(delivered, ev.Method)
		mu.Unlock()
		return nil
	})

	o := NewOutbox(sink, 4, nil)
	o.InvokeMethod("a", nil)
	o.InvokeMethod("bad", nil)
	o.InvokeMethod("b", nil)
	o.Close()

	if strings.Join(delivered, ",") != "a,b" {
		t.Errorf("Expected a,b delivered, got %v", delivered)
	}
}

func TestRecorder_WaitFor(t *testing.T) {
	rec := NewRecorder()

	go func() {
		time.Sleep(10 * time.Millisecond)
		rec.InvokeMethod("onAdReceived", map[string]any{"adId": 1})
	}()

	ev, ok := rec.WaitFor("onAdReceived", time.Second)
	if !ok || ev.Arguments["adId"] != 1 {
		t.Fatalf("Expected onAdReceived, got %+v %v", ev, ok)
	}

	if _, ok := rec.WaitFor("never", 20*time.Millisecond); ok {
		t.Error("Expected timeout waiting for missing event")
	}
}

func TestStdioTransport_Serve(t *testing.T) {
	input := strings.Join([]string{
		`{"id":1,"method":"OpenWrapSDK#getVersion"}`,
		`not json`,
		`{"id":2,"method":"unknown"}`,
		`{"id":3,"method":"POBBannerView#loadAd","arguments":{"adId":99}}`,
		`{"id":4,"method":"initBannerAd","arguments":{}}`,
		``,
	}, "\n")

	h := HandlerFunc(func(_ context.Context, call *MethodCall) (any, error) {
		switch call.Method {
		case "OpenWrapSDK#getVersion":
			return "2.1.0", nil
		case "POBBannerView#loadAd":
			return nil, ErrNoReply
		case "initBannerAd":
			return nil, NewPlatformError(CodeMissingParameters, "Missing required parameter/s", nil)
		default:
			return nil, ErrNotImplemented
		}
	})

	var out bytes.Buffer
	tr := NewStdioTransport(strings.NewReader(input), &out, h, nil)
	if err := tr.Serve(context.Background()); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 reply lines (dropped call unanswered), got %d:\n%s", len(lines), out.String())
	}

	var first map[string]any
	json.Unmarshal([]byte(lines[0]), &first)
	if first["id"] != float64(1) || first["result"] != "2.1.0" {
		t.Errorf("Unexpected first reply: %s", lines[0])
	}

	var second map[string]any
	json.Unmarshal([]byte(lines[1]), &second)
	if second["id"] != float64(2) || second["notImplemented"] != true {
		t.Errorf("Unexpected second reply: %s", lines[1])
	}

	var third map[string]any
	json.Unmarshal([]byte(lines[2]), &third)
	errObj, _ := third["error"].(map[string]any)
	if third["id"] != float64(4) || errObj["code"] != CodeMissingParameters {
		t.Errorf("Unexpected third reply: %s", lines[2])
	}
}

func TestStdioTransport_DeliverEvent(t *testing.T) {
	var out bytes.Buffer
	tr := NewStdioTransport(strings.NewReader(""), &out, nil, nil)

	if err := tr.Deliver(Event{Method: "onAdReceived", Arguments: map[string]any{"adId": 7}}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != `{"arguments":{"adId":7},"method":"onAdReceived"}` {
		t.Errorf("Unexpected event frame: %s", got)
	}
}

func TestStdioTransport_ContextCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	tr := NewStdioTransport(r, &bytes.Buffer{}, HandlerFunc(func(context.Context, *MethodCall) (any, error) {
		return nil, nil
	}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- tr.Serve(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
