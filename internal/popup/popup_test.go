package popup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/pagebrief/internal/inference"
	"github.com/hyperifyio/pagebrief/internal/pagetext"
)

type fakeAdapter struct {
	calls atomic.Int32
	out   string
	err   error
	last  inference.Request
	block chan struct{}
	mu    sync.Mutex
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Infer(ctx context.Context, req inference.Request) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.out, f.err
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }
func (failingSource) Capture(ctx context.Context) (pagetext.PageText, error) {
	return pagetext.PageText{}, errors.New("no tab")
}

func page(text string) pagetext.Source {
	return pagetext.Static{Page: pagetext.PageText{Text: text}}
}

func TestController_SummarizeReturnsAdapterText(t *testing.T) {
	a := &fakeAdapter{out: "short"}
	c := &Controller{Source: page("long page"), Adapter: a}
	res := c.Summarize(context.Background())
	if res.Text != "short" || res.Placeholder() {
		t.Fatalf("unexpected result: %+v", res)
	}
	if a.last.Task != inference.TaskSummarize || a.last.Text != "long page" {
		t.Fatalf("unexpected request: %+v", a.last)
	}
}

func TestController_AskPassesQuery(t *testing.T) {
	a := &fakeAdapter{out: "yes"}
	c := &Controller{Source: page("ctx"), Adapter: a}
	res := c.Ask(context.Background(), "is it?")
	if res.Text != "yes" || res.Action != ActionAsk {
		t.Fatalf("unexpected result: %+v", res)
	}
	if a.last.Task != inference.TaskAnswer || a.last.Query != "is it?" {
		t.Fatalf("unexpected request: %+v", a.last)
	}
}

func TestController_Placeholders(t *testing.T) {
	cases := []struct {
		name   string
		action Action
		err    error
		want   string
	}{
		{"model", ActionSummarize, inference.ErrModelNotLoaded, PlaceholderModelNotLoaded},
		{"tokenizer", ActionAsk, inference.ErrTokenizerNotLoaded, PlaceholderTokenizerNotLoaded},
		{"no result", ActionSummarize, inference.ErrNoResult, ""},
		{"empty output", ActionSummarize, inference.ErrEmptyOutput, PlaceholderNoOutput},
		{"summary error", ActionSummarize, errors.New("boom"), PlaceholderSummaryError},
		{"answer error", ActionAsk, errors.New("boom"), PlaceholderAnswerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Controller{Source: page("p"), Adapter: &fakeAdapter{err: tc.err}}
			res, err := c.Run(context.Background(), tc.action, "q")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Text != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, res.Text)
			}
			if !res.Placeholder() || !errors.Is(res.Err, tc.err) {
				t.Fatalf("expected absorbed error, got %+v", res)
			}
		})
	}
}

func TestController_CaptureFailureSkipsInference(t *testing.T) {
	a := &fakeAdapter{out: "x"}
	res := (&Controller{Source: failingSource{}, Adapter: a}).Summarize(context.Background())
	if res.Text != "" || res.Err == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if a.calls.Load() != 0 {
		t.Fatal("adapter must not run without page text")
	}
}

func TestController_UnknownAction(t *testing.T) {
	_, err := (&Controller{Source: page(""), Adapter: &fakeAdapter{}}).Run(context.Background(), "translate", "")
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
	if _, err := ParseAction("nope"); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
	if a, err := ParseAction(" ASK "); err != nil || a != ActionAsk {
		t.Fatalf("unexpected parse: %v %v", a, err)
	}
}

func TestController_CollapsesConcurrentIdenticalActions(t *testing.T) {
	a := &fakeAdapter{out: "once", block: make(chan struct{})}
	c := &Controller{Source: page("p"), Adapter: a}

	var wg sync.WaitGroup
	results := make([]Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Summarize(context.Background())
		}(i)
	}
	deadline := time.Now().Add(2 * time.Second)
	for a.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(a.block)
	wg.Wait()

	if n := a.calls.Load(); n != 1 {
		t.Fatalf("expected one inference, got %d", n)
	}
	for i, r := range results {
		if r.Text != "once" {
			t.Fatalf("result %d: %q", i, r.Text)
		}
	}
}

func TestController_DifferentPagesAreNotShared(t *testing.T) {
	a := &fakeAdapter{out: "ok", block: make(chan struct{})}
	c := &Controller{Adapter: a}

	var wg sync.WaitGroup
	for _, text := range []string{"first page", "second page"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, _ = c.RunSource(context.Background(), page(text), ActionSummarize, "")
		}(text)
	}
	deadline := time.Now().Add(2 * time.Second)
	for a.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(a.block)
	wg.Wait()

	if n := a.calls.Load(); n != 2 {
		t.Fatalf("expected one inference per page, got %d", n)
	}
}

func TestController_CancelledCallerDoesNotCancelJoiners(t *testing.T) {
	a := &fakeAdapter{out: "done", block: make(chan struct{})}
	c := &Controller{Source: page("p"), Adapter: a}

	firstCtx, cancel := context.WithCancel(context.Background())
	first := make(chan Result, 1)
	go func() {
		res, _ := c.Run(firstCtx, ActionSummarize, "")
		first <- res
	}()
	deadline := time.Now().Add(2 * time.Second)
	for a.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	second := make(chan Result, 1)
	go func() {
		res, _ := c.Run(context.Background(), ActionSummarize, "")
		second <- res
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	res := <-first
	if !errors.Is(res.Err, context.Canceled) || res.Text != PlaceholderSummaryError {
		t.Fatalf("cancelled caller: %+v", res)
	}
	close(a.block)
	res = <-second
	if res.Err != nil || res.Text != "done" {
		t.Fatalf("joiner should get the shared result, got %+v", res)
	}
	if n := a.calls.Load(); n != 1 {
		t.Fatalf("expected one inference, got %d", n)
	}
}

func TestController_StdinIsNeverShared(t *testing.T) {
	if got := location(&pagetext.File{Path: "-"}); got != "" {
		t.Fatalf("stdin must not be shared, got %q", got)
	}
	if location(&pagetext.HTTP{URL: "https://a"}) == location(&pagetext.HTTP{URL: "https://b"}) {
		t.Fatal("different URLs must not share a key")
	}
}

func TestController_RemoteRendersSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"summary":"X"}`))
	}))
	defer srv.Close()

	c := &Controller{Source: page("text"), Adapter: inference.NewRemote(inference.RemoteConfig{URL: srv.URL})}
	res := c.Summarize(context.Background())
	out := TerminalRenderer{Layout: TerminalLayout}.String(res)
	if res.Text != "X" || !strings.HasSuffix(out, "\nX\n") {
		t.Fatalf("expected X rendered, got %q", out)
	}
}

func TestController_RemoteNonOKRendersNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := &Controller{Source: page("text"), Adapter: inference.NewRemote(inference.RemoteConfig{URL: srv.URL})}
	res := c.Summarize(context.Background())
	if res.Text != "" || !errors.Is(res.Err, inference.ErrNoResult) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if out := (TerminalRenderer{}).String(res); out != "Summary\n" {
		t.Fatalf("expected header only, got %q", out)
	}
}

func TestController_EmptyPageStillRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"summary":"nothing here"}`))
	}))
	defer srv.Close()

	c := &Controller{Source: page(""), Adapter: inference.NewRemote(inference.RemoteConfig{URL: srv.URL})}
	res := c.Summarize(context.Background())
	if hits.Load() != 1 || res.Text != "nothing here" {
		t.Fatalf("expected one request, got %d hits and %+v", hits.Load(), res)
	}
}
