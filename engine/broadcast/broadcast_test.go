package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sentientmushes/smadventure/types"
)

func quietHub(opts ...Option) *Hub {
	log, _ := test.NewNullLogger()
	return New(append([]Option{WithLogger(log), WithPace(0)}, opts...)...)
}

func TestHub_LevelThreshold(t *testing.T) {
	h := quietHub()
	buf := &Buffer{}
	h.Subscribe("log", buf, Filter{Min: types.LevelImportant})

	h.Post(Message{Level: types.LevelInfo, Text: "low"})
	h.Post(Message{Level: types.LevelImportant, Text: "equal"})
	h.Post(Message{Level: types.LevelSystem, Text: "high"})

	if n := h.Flush(context.Background()); n != 3 {
		t.Fatalf("expected 3 delivered, got %d", n)
	}
	got := buf.Drain()
	if len(got) != 2 || got[0] != "equal" || got[1] != "high" {
		t.Errorf("expected [equal high], got %v", got)
	}
}

func TestHub_BelowCap(t *testing.T) {
	h := quietHub()
	buf := &Buffer{}
	h.Subscribe("p", buf, Filter{Min: types.LevelInfo, Below: types.LevelEvent})

	h.Post(Message{Level: types.LevelImportant, Text: "kept"})
	h.Post(Message{Level: types.LevelEvent, Text: "capped"})
	h.Flush(context.Background())

	if got := buf.Drain(); len(got) != 1 || got[0] != "kept" {
		t.Errorf("expected [kept], got %v", got)
	}
}

func TestHub_PlaceScope(t *testing.T) {
	h := quietHub()
	scoped := &Buffer{}
	open := &Buffer{}
	h.Subscribe("scoped", scoped, Filter{Places: []string{"Cave"}})
	h.Subscribe("open", open, Filter{})

	h.Post(Message{Text: "cave", Places: []string{"Cave"}})
	h.Post(Message{Text: "field", Places: []string{"Field"}})
	h.Post(Message{Text: "everywhere"})
	h.Flush(context.Background())

	if got := scoped.Drain(); len(got) != 1 || got[0] != "cave" {
		t.Errorf("scoped: expected [cave], got %v", got)
	}
	if got := open.Drain(); len(got) != 3 {
		t.Errorf("open: expected 3 lines, got %v", got)
	}

	if !h.Scope("scoped", "Field") {
		t.Fatal("expected Scope to find subscription")
	}
	h.Post(Message{Text: "cave again", Places: []string{"Cave"}})
	h.Post(Message{Text: "field again", Places: []string{"Field"}})
	h.Flush(context.Background())
	if got := scoped.Drain(); len(got) != 1 || got[0] != "field again" {
		t.Errorf("rescoped: expected [field again], got %v", got)
	}
}

func TestHub_DirectRecipient(t *testing.T) {
	h := quietHub()
	direct := &Buffer{}
	h.Post(Message{Level: types.LevelVerbose, Text: "psst", To: direct})
	h.Flush(context.Background())

	if got := direct.Drain(); len(got) != 1 || got[0] != "psst" {
		t.Errorf("expected [psst], got %v", got)
	}
}

func TestHub_DirectRecipientAlsoSubscribed(t *testing.T) {
	h := quietHub()
	direct, other := &Buffer{}, &Buffer{}
	h.Subscribe("direct", direct, Filter{})
	h.Subscribe("other", other, Filter{})

	h.Post(Message{Level: types.LevelEvent, Text: "once", To: direct})
	h.Flush(context.Background())

	if got := direct.Drain(); len(got) != 1 {
		t.Errorf("direct recipient got %v, want one copy", got)
	}
	if got := other.Drain(); len(got) != 1 {
		t.Errorf("other subscriber got %v, want one copy", got)
	}
}

func TestHub_DirectFuncRecipient(t *testing.T) {
	h := quietHub()
	calls := 0
	fn := ChannelFunc(func(context.Context, Message) (bool, error) {
		calls++
		return true, nil
	})
	h.Subscribe("fn", fn, Filter{})

	h.Post(Message{Level: types.LevelEvent, Text: "hi", To: fn})
	h.Flush(context.Background())

	if calls != 2 {
		t.Errorf("calls = %d, want 2 for an incomparable channel", calls)
	}
}

func TestHub_UnsubscribeByName(t *testing.T) {
	h := quietHub()
	a, b := &Buffer{}, &Buffer{}
	h.Subscribe("a", a, Filter{})
	h.Subscribe("b", b, Filter{})

	if !h.Unsubscribe("a") {
		t.Fatal("expected a to be removed")
	}
	if h.Unsubscribe("a") {
		t.Error("expected second removal to report false")
	}

	h.Post(Message{Text: "hi"})
	h.Flush(context.Background())
	if a.Len() != 0 {
		t.Errorf("expected removed channel to get nothing, got %d", a.Len())
	}
	if b.Len() != 1 {
		t.Errorf("expected b to get 1 line, got %d", b.Len())
	}
}

func TestHub_AnonymousSubscriptionName(t *testing.T) {
	h := quietHub()
	x := h.Subscribe("", &Buffer{}, Filter{})
	y := h.Subscribe("", &Buffer{}, Filter{})
	if x == "" || y == "" || x == y {
		t.Errorf("expected distinct generated names, got %q and %q", x, y)
	}
	if got := len(h.Subscribers()); got != 2 {
		t.Errorf("expected 2 subscribers, got %d", got)
	}
}

func TestHub_DeliveryErrorDoesNotStopOthers(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := New(WithLogger(log), WithPace(0))
	failing := ChannelFunc(func(context.Context, Message) (bool, error) {
		return false, errors.New("backend down")
	})
	buf := &Buffer{}
	h.Subscribe("a-failing", failing, Filter{})
	h.Subscribe("b-buffer", buf, Filter{})

	h.Post(Message{Text: "hello"})
	h.Flush(context.Background())

	if buf.Len() != 1 {
		t.Errorf("expected buffer to receive message, got %d", buf.Len())
	}
	if hook.LastEntry() == nil || hook.LastEntry().Message != "broadcast delivery failed" {
		t.Errorf("expected delivery failure to be logged, got %v", hook.LastEntry())
	}
}

func TestHub_RunPacesOnlyAcceptedMessages(t *testing.T) {
	got := make(chan string, 8)
	reject := ChannelFunc(func(_ context.Context, m Message) (bool, error) {
		got <- m.Text
		return false, nil
	})

	log, _ := test.NewNullLogger()
	h := New(WithLogger(log), WithPace(time.Hour))
	h.Subscribe("reject", reject, Filter{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	for _, text := range []string{"one", "two", "three"} {
		h.Post(Message{Text: text})
	}
	for i := 0; i < 3; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatalf("rejected messages should not be paced; stalled after %d", i)
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHub_RunPausesAfterAcceptedMessage(t *testing.T) {
	got := make(chan string, 8)
	accept := ChannelFunc(func(_ context.Context, m Message) (bool, error) {
		got <- m.Text
		return true, nil
	})

	log, _ := test.NewNullLogger()
	h := New(WithLogger(log), WithPace(time.Hour))
	h.Subscribe("accept", accept, Filter{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	h.Post(Message{Text: "first"})
	h.Post(Message{Text: "second"})

	select {
	case text := <-got:
		if text != "first" {
			t.Fatalf("expected first, got %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first message never delivered")
	}
	select {
	case text := <-got:
		t.Fatalf("expected pacing pause, but %q was delivered", text)
	case <-time.After(50 * time.Millisecond):
	}
	if h.Pending() != 1 {
		t.Errorf("expected 1 pending message, got %d", h.Pending())
	}
}
