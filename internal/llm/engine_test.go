package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"mixagent/internal/action"
)

func TestParseActionsPlainArray(t *testing.T) {
	actions := ParseActions(`[{"action":"set_fader","channel":3,"value":0.8,"urgency":"fast"}]`)
	if len(actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(actions))
	}
	a := actions[0]
	if a.Type != action.SetFader || a.Channel != 3 || a.Value != 0.8 || a.Urgency != action.Fast {
		t.Errorf("parsed = %+v", a)
	}
}

func TestParseActionsSurroundingProse(t *testing.T) {
	response := `Looking at the mix, the vocal is buried.

Here's what I suggest:
[
  {"action": "set_fader", "channel": 12, "value": 0.7, "reason": "lift vocal"},
  {"action": "observation", "reason": "drums are well balanced"}
]
Let me know if you'd like more detail.`

	actions := ParseActions(response)
	if len(actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(actions))
	}
	if actions[0].Type != action.SetFader || actions[1].Type != action.Observation {
		t.Errorf("parsed = %+v", actions)
	}
}

func TestParseActionsMalformed(t *testing.T) {
	cases := []string{
		"",
		"no array here",
		"{\"action\": \"set_fader\"}", // object, not array
		"[{broken json]",
		"]backwards[",
	}
	for _, response := range cases {
		if got := ParseActions(response); len(got) != 0 {
			t.Errorf("ParseActions(%q) = %+v, want none", response, got)
		}
	}
}

func TestParseActionsUnknownEntriesDegrade(t *testing.T) {
	actions := ParseActions(`[{"action":"reticulate_splines","channel":2},{"action":"mute","channel":4}]`)
	if len(actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(actions))
	}
	if actions[0].Type != action.NoAction {
		t.Errorf("unknown action parsed as %v", actions[0].Type)
	}
	if actions[1].Type != action.MuteChannel || actions[1].Channel != 4 {
		t.Errorf("mute = %+v", actions[1])
	}
}

// stubClient returns a canned response or error.
type stubClient struct {
	response string
	err      error
	calls    int
}

func (s *stubClient) Complete(context.Context, string, string) (string, error) {
	s.calls++
	return s.response, s.err
}

func newTestEngine(primary, fallback Client, ollamaPrimary bool) *Engine {
	e := &Engine{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	e.cfg.OllamaPrimary = ollamaPrimary
	if ollamaPrimary {
		e.ollama, e.anthropic = primary, fallback
	} else {
		e.anthropic, e.ollama = primary, fallback
	}
	return e
}

func TestCallRawFallsBack(t *testing.T) {
	primary := &stubClient{err: errors.New("boom")}
	fallback := &stubClient{response: "[]"}
	e := newTestEngine(primary, fallback, false)

	got, err := e.CallRaw("sys", "user")
	if err != nil {
		t.Fatalf("CallRaw: %v", err)
	}
	if got != "[]" {
		t.Errorf("response = %q", got)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.calls, fallback.calls)
	}
	if e.TotalCalls() != 1 || e.FailedCalls() != 0 {
		t.Errorf("counters = %d/%d", e.TotalCalls(), e.FailedCalls())
	}
}

func TestCallRawAllBackendsFail(t *testing.T) {
	primary := &stubClient{err: errors.New("a")}
	fallback := &stubClient{err: errors.New("b")}
	e := newTestEngine(primary, fallback, false)

	if _, err := e.CallRaw("sys", "user"); err == nil {
		t.Fatal("CallRaw succeeded with failing backends")
	}
	if e.FailedCalls() != 1 {
		t.Errorf("FailedCalls = %d, want 1", e.FailedCalls())
	}
}

func TestCallRawOllamaPrimaryOrder(t *testing.T) {
	ollama := &stubClient{response: "local"}
	anthropic := &stubClient{response: "cloud"}
	e := newTestEngine(ollama, anthropic, true)

	got, err := e.CallRaw("sys", "user")
	if err != nil {
		t.Fatalf("CallRaw: %v", err)
	}
	if got != "local" {
		t.Errorf("response = %q, want local first", got)
	}
	if anthropic.calls != 0 {
		t.Errorf("anthropic called %d times in ollama-primary happy path", anthropic.calls)
	}
}

func TestDecideMixActionsEmptyStateSafe(t *testing.T) {
	primary := &stubClient{response: `[{"action":"no_action","reason":"nothing to do"}]`}
	e := newTestEngine(primary, nil, false)

	actions := e.DecideMixActions(map[string]any{"channels": []any{}}, nil)
	if len(actions) != 1 || actions[0].Type != action.NoAction {
		t.Errorf("actions = %+v", actions)
	}
}

func TestDecideMixActionsBackendFailure(t *testing.T) {
	e := newTestEngine(&stubClient{err: errors.New("down")}, nil, false)
	if got := e.DecideMixActions(map[string]any{}, nil); got != nil {
		t.Errorf("actions = %+v, want nil", got)
	}
}
