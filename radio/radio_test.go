package radio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mbocsi/gobeacon/adv"
	"github.com/mbocsi/gobeacon/proto"
)

// fakeHost is a scripted Host that records the call sequence and can
// deliver queued advertisements as soon as a scan starts.
type fakeHost struct {
	mu    sync.Mutex
	calls []string

	payload     []byte
	advCfg      AdvConfig
	scanCfg     ScanConfig
	advDuration uint16
	onComplete  func()
	onAdv       func([]byte)

	queued       [][]byte // delivered synchronously on StartScan
	autoComplete bool     // fire onComplete from StartAdvertising

	enableErr    error
	startAdvErr  error
	startScanErr error
}

func (h *fakeHost) record(call string) {
	h.mu.Lock()
	h.calls = append(h.calls, call)
	h.mu.Unlock()
}

func (h *fakeHost) callSeq() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.calls...)
}

func (h *fakeHost) Enable() error {
	h.record("enable")
	return h.enableErr
}

func (h *fakeHost) Disable() error {
	h.record("disable")
	return nil
}

func (h *fakeHost) ConfigureAdvertising(cfg AdvConfig, payload []byte) error {
	h.record("configure")
	h.advCfg = cfg
	h.payload = append([]byte{}, payload...)
	return nil
}

func (h *fakeHost) StartAdvertising(durationTicks uint16, onComplete func()) error {
	h.record("startAdv")
	if h.startAdvErr != nil {
		return h.startAdvErr
	}
	h.advDuration = durationTicks
	h.onComplete = onComplete
	if h.autoComplete {
		go onComplete()
	}
	return nil
}

func (h *fakeHost) StopAdvertising() error {
	h.record("stopAdv")
	return nil
}

func (h *fakeHost) StartScan(cfg ScanConfig, onAdvertisement func([]byte)) error {
	h.record("startScan")
	if h.startScanErr != nil {
		return h.startScanErr
	}
	h.scanCfg = cfg
	h.onAdv = onAdvertisement
	for _, data := range h.queued {
		onAdvertisement(data)
	}
	return nil
}

func (h *fakeHost) StopScan() error {
	h.record("stopScan")
	return nil
}

func rawAdvertisement(t *testing.T, m *proto.Message) []byte {
	t.Helper()
	var buf [proto.MaxEncodedSize]byte
	n, err := proto.Encode(m, buf[:])
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	payload, err := adv.BuildPayload(m.SenderID, adv.WrapFrame(buf[:n]))
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	return payload
}

func newTestRadio(h Host) *Radio {
	return New(h, Options{
		DeviceName:       "test-node",
		CompletionMargin: 50 * time.Millisecond,
	})
}

func TestOpenCloseLifecycle(t *testing.T) {
	h := &fakeHost{}
	r := newTestRadio(h)

	if err := r.Broadcast(proto.NewHello("x", proto.SourceNode), time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("broadcast before open: err = %v, want ErrClosed", err)
	}
	if err := r.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := r.Open(); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("double open: err = %v, want ErrAlreadyOpen", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second close: err = %v, want nil", err)
	}
}

func TestOpenPropagatesEnableFailure(t *testing.T) {
	h := &fakeHost{enableErr: errors.New("controller dead")}
	r := newTestRadio(h)
	if err := r.Open(); err == nil {
		t.Fatal("expected Open to fail")
	}
}

func TestBroadcastCompletesOnHostSignal(t *testing.T) {
	h := &fakeHost{autoComplete: true}
	r := newTestRadio(h)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := r.Broadcast(proto.NewHello("test-node", proto.SourceNode), 2*time.Second); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("broadcast did not return on completion signal (took %v)", elapsed)
	}

	if h.advDuration != 200 {
		t.Errorf("advertising duration = %d ticks, want 200 (2s in 10ms units)", h.advDuration)
	}
	if h.advCfg.Connectable || h.advCfg.Scannable {
		t.Error("advertisement must be non-connectable and non-scannable")
	}
	if !h.advCfg.Extended {
		t.Error("advertisement must use the extended encoding")
	}
	if h.advCfg.ChannelMap != ChannelMap39 {
		t.Errorf("channel map = %#x, want single fixed channel %#x", h.advCfg.ChannelMap, ChannelMap39)
	}
	if _, ok := adv.FindVendorData(h.payload); !ok {
		t.Error("configured payload carries no vendor data field")
	}
}

func TestBroadcastForcesStopOnMissedCompletion(t *testing.T) {
	h := &fakeHost{} // never signals completion
	r := newTestRadio(h)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}

	// Missed completion is eventual success, not an error.
	if err := r.Broadcast(proto.NewHello("test-node", proto.SourceNode), 10*time.Millisecond); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	stopped := false
	for _, c := range h.callSeq() {
		if c == "stopAdv" {
			stopped = true
		}
	}
	if !stopped {
		t.Error("expected forced StopAdvertising after completion timeout")
	}
}

func TestAdvertiseAndScanAreMutuallyExclusive(t *testing.T) {
	h := &fakeHost{}
	r := newTestRadio(h)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}

	if err := r.StartScan(func(*proto.Message) {}); err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	if err := r.Broadcast(proto.NewHello("x", proto.SourceNode), time.Millisecond); !errors.Is(err, ErrBusy) {
		t.Errorf("broadcast while scanning: err = %v, want ErrBusy", err)
	}
	if err := r.StartScan(func(*proto.Message) {}); !errors.Is(err, ErrBusy) {
		t.Errorf("second scan: err = %v, want ErrBusy", err)
	}
	if err := r.StopScan(); err != nil {
		t.Fatalf("StopScan failed: %v", err)
	}
	if err := r.StopScan(); err != nil {
		t.Errorf("redundant StopScan: err = %v, want nil", err)
	}
}

func TestScanUsesPassiveFixedRatio(t *testing.T) {
	h := &fakeHost{}
	r := newTestRadio(h)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	if err := r.Scan(time.Millisecond, func(*proto.Message) {}); err != nil {
		t.Fatal(err)
	}
	if !h.scanCfg.Passive {
		t.Error("scan must be passive")
	}
	if h.scanCfg.Interval != 160 || h.scanCfg.Window != 80 {
		t.Errorf("scan interval/window = %d/%d ticks, want 160/80", h.scanCfg.Interval, h.scanCfg.Window)
	}
}

func TestScanDeliversDecodedMessages(t *testing.T) {
	hello := proto.NewHello("swift-falcon-a3f2", proto.SourceNode)

	corrupt := rawAdvertisement(t, hello)
	corrupt[len(corrupt)-1] ^= 0xFF // breaks the codec but not the framing

	h := &fakeHost{queued: [][]byte{
		rawAdvertisement(t, hello),
		{0x02, 0x01, 0x06},                          // flags only, no vendor data
		{0x05, 0xFF, 0x4C, 0x00, 0x10, 0x05},        // foreign vendor id
		{0x07, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0, 0},  // our vendor id, wrong magic
		corrupt,
	}}
	r := newTestRadio(h)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}

	var got []*proto.Message
	if err := r.Scan(time.Millisecond, func(m *proto.Message) {
		got = append(got, m)
	}); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 {
		t.Fatalf("delivered %d messages, want 1", len(got))
	}
	if got[0].SenderID != "swift-falcon-a3f2" || got[0].Hello == nil {
		t.Errorf("unexpected message %+v", got[0])
	}
}

func TestCollectDeduplicates(t *testing.T) {
	m := proto.NewHello("node-a", proto.SourceHub)
	raw := rawAdvertisement(t, m)

	h := &fakeHost{queued: [][]byte{raw, raw, raw}}
	r := newTestRadio(h)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}

	msgs, dropped, err := r.Collect(time.Millisecond, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || dropped != 0 {
		t.Errorf("got %d messages (%d dropped), want 1 (0 dropped)", len(msgs), dropped)
	}
}

func TestCollectReportsOverflow(t *testing.T) {
	const capacity = 4
	var queued [][]byte
	for i := 0; i < capacity+1; i++ {
		m := proto.NewHello("node-a", proto.SourceHub)
		m.ID = uint32(1000 + i)
		queued = append(queued, rawAdvertisement(t, m))
	}

	h := &fakeHost{queued: queued}
	r := newTestRadio(h)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}

	msgs, dropped, err := r.Collect(time.Millisecond, capacity)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != capacity {
		t.Errorf("buffered %d messages, want %d", len(msgs), capacity)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestDedupWindowEvictsOldest(t *testing.T) {
	w := newDedupWindow(2)
	if !w.remember(1) || !w.remember(2) {
		t.Fatal("first sightings must be remembered")
	}
	if w.remember(1) {
		t.Error("resight of 1 not detected")
	}
	if !w.remember(3) { // evicts 1
		t.Fatal("new id rejected")
	}
	if !w.remember(1) {
		t.Error("evicted id should be treated as new again")
	}
}

func TestCloseCancelsScan(t *testing.T) {
	h := &fakeHost{}
	r := newTestRadio(h)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	if err := r.StartScan(func(*proto.Message) {}); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	seq := h.callSeq()
	want := []string{"enable", "startScan", "stopScan", "disable"}
	if len(seq) != len(want) {
		t.Fatalf("call sequence %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("call sequence %v, want %v", seq, want)
		}
	}
}
