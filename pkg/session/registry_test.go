package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/minhyannv/discord-cli-go/pkg/config"
	"github.com/minhyannv/discord-cli-go/pkg/platform"
	"github.com/minhyannv/discord-cli-go/pkg/platform/platformtest"
)

// fakeDialer hands out prepared sessions by token.
func fakeDialer(byToken map[string]*platformtest.Session) platform.Dialer {
	return func(token string, bot bool) (platform.Session, error) {
		s, ok := byToken[token]
		if !ok {
			return nil, errors.New("unknown token " + token)
		}
		return s, nil
	}
}

func connected(t *testing.T) (*Registry, []*platformtest.Session) {
	t.Helper()
	me := platformtest.New("1", "me")
	botA := platformtest.New("2", "bot-a")
	botB := platformtest.New("3", "bot-b")
	r := New(fakeDialer(map[string]*platformtest.Session{"user": me, "a": botA, "b": botB}))
	err := r.ConnectAll(context.Background(), Account{Token: "user"}, []Account{
		{Name: "a", Token: "a", Bot: true},
		{Name: "b", Token: "b", Bot: true},
	})
	if err != nil {
		t.Fatalf("ConnectAll: %v", err)
	}
	return r, []*platformtest.Session{me, botA, botB}
}

func TestConnectAllOpensEverySessionInOrder(t *testing.T) {
	r, fakes := connected(t)

	got := r.Sessions()
	if len(got) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(got))
	}
	for i, f := range fakes {
		if got[i] != platform.Session(f) {
			t.Fatalf("session %d out of order", i)
		}
		if f.Opened != 1 {
			t.Fatalf("session %d opened %d times", i, f.Opened)
		}
	}
	if r.Active() != platform.Session(fakes[0]) || r.Primary() != platform.Session(fakes[0]) {
		t.Fatal("expected primary session to be active")
	}
}

func TestConnectAllPrimaryFailureClosesOthers(t *testing.T) {
	me := platformtest.New("1", "me")
	me.OpenErr = platformtest.ErrBoom
	bot := platformtest.New("2", "bot")
	r := New(fakeDialer(map[string]*platformtest.Session{"user": me, "bot": bot}))

	err := r.ConnectAll(context.Background(), Account{Token: "user"}, []Account{{Token: "bot", Bot: true}})
	if !errors.Is(err, platformtest.ErrBoom) {
		t.Fatalf("expected primary error, got %v", err)
	}
	if bot.CloseCount() != 1 {
		t.Fatalf("expected bot session to be closed, got %d closes", bot.CloseCount())
	}
}

func TestConnectAllDropsFailedBots(t *testing.T) {
	me := platformtest.New("1", "me")
	good := platformtest.New("3", "good")
	r := New(fakeDialer(map[string]*platformtest.Session{"user": me, "good": good}))

	err := r.ConnectAll(context.Background(), Account{Token: "user"}, []Account{
		{Name: "missing", Token: "missing", Bot: true},
		{Name: "good", Token: "good", Bot: true},
	})
	if err != nil {
		t.Fatalf("ConnectAll: %v", err)
	}
	got := r.Sessions()
	if len(got) != 2 || got[1] != platform.Session(good) {
		t.Fatalf("expected [me good], got %d sessions", len(got))
	}
}

func TestSwitch(t *testing.T) {
	r, fakes := connected(t)

	if err := r.Switch(2); err != nil {
		t.Fatalf("Switch(2): %v", err)
	}
	if r.Active() != platform.Session(fakes[2]) || r.ActiveIndex() != 2 {
		t.Fatal("expected session 2 to be active")
	}

	for _, bad := range []int{-1, 3, 100} {
		err := r.Switch(bad)
		if !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("Switch(%d): expected ErrIndexOutOfRange, got %v", bad, err)
		}
		if r.ActiveIndex() != 2 {
			t.Fatalf("Switch(%d) changed active session to %d", bad, r.ActiveIndex())
		}
	}
}

func TestEventsAreTaggedWithSource(t *testing.T) {
	r, fakes := connected(t)

	fakes[1].Emit(platform.Event{Kind: platform.EventMessage, Message: platform.Message{Content: "hi"}})

	select {
	case ev := <-r.Events():
		if ev.Source != platform.Session(fakes[1]) {
			t.Fatal("expected event tagged with bot-a")
		}
		if ev.Message.Content != "hi" {
			t.Fatalf("unexpected content %q", ev.Message.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestDisconnectAllClosesEachSessionOnceDespiteFailures(t *testing.T) {
	r, fakes := connected(t)
	fakes[1].CloseErr = platformtest.ErrBoom

	err := r.DisconnectAll()
	if !errors.Is(err, platformtest.ErrBoom) {
		t.Fatalf("expected joined close error, got %v", err)
	}
	if again := r.DisconnectAll(); again != err {
		t.Fatalf("expected repeated call to return first result, got %v", again)
	}
	for i, f := range fakes {
		if f.CloseCount() != 1 {
			t.Fatalf("session %d closed %d times", i, f.CloseCount())
		}
	}

	select {
	case <-r.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
}

func TestEventsDroppedAfterTeardown(t *testing.T) {
	me := platformtest.New("1", "me")
	r := New(fakeDialer(map[string]*platformtest.Session{"user": me}), WithEventBuffer(1))
	if err := r.ConnectAll(context.Background(), Account{Token: "user"}, nil); err != nil {
		t.Fatalf("ConnectAll: %v", err)
	}
	handler := r.sink(me)
	_ = r.DisconnectAll()

	done := make(chan struct{})
	go func() {
		handler(platform.Event{Kind: platform.EventMessage})
		handler(platform.Event{Kind: platform.EventMessage})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sink blocked after teardown")
	}
	if len(r.Events()) != 0 {
		t.Fatalf("expected no queued events, got %d", len(r.Events()))
	}
}

func TestLoadBots(t *testing.T) {
	dir := t.TempDir()

	bots, err := LoadBots(filepath.Join(dir, "missing.yaml"))
	if err != nil || bots != nil {
		t.Fatalf("expected no bots for missing file, got %v, %v", bots, err)
	}

	path := filepath.Join(dir, "bots.yaml")
	content := `bots:
  - name: helper
    token: " abc "
  - token: def
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write bots.yaml: %v", err)
	}
	bots, err = LoadBots(path)
	if err != nil {
		t.Fatalf("LoadBots: %v", err)
	}
	want := []Account{
		{Name: "helper", Token: "abc", Bot: true},
		{Name: "bot-2", Token: "def", Bot: true},
	}
	if diff := cmp.Diff(want, bots); diff != "" {
		t.Fatalf("bots mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadBotsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bots.yaml")
	for _, content := range []string{"bots: [", "bots:\n  - name: x\n", "bots: 3\n"} {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write bots.yaml: %v", err)
		}
		if _, err := LoadBots(path); !errors.Is(err, config.ErrConfigCorrupt) {
			t.Fatalf("content %q: expected ErrConfigCorrupt, got %v", content, err)
		}
	}
}
