package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FocuswithJustin/NarrativeCues/core/cues"
	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
)

const causalJSON = `{"cues":[{"type":"causal","location":"Mark 1:12","explanation":"the Spirit drives him out","confidence":0.9}]}`

// countingAnalyzer replays responses in order and records every request.
type countingAnalyzer struct {
	mu        sync.Mutex
	responses []func(ctx context.Context) (string, error)
	requests  []Request
}

func (a *countingAnalyzer) Analyze(ctx context.Context, req Request) (string, error) {
	a.mu.Lock()
	i := len(a.requests)
	a.requests = append(a.requests, req)
	a.mu.Unlock()
	if i >= len(a.responses) {
		i = len(a.responses) - 1
	}
	return a.responses[i](ctx)
}

func (a *countingAnalyzer) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func reply(s string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return s, nil }
}

func fail(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

func block(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestClient_RetryThenSucceed(t *testing.T) {
	a := &countingAnalyzer{responses: []func(context.Context) (string, error){
		fail(errors.New("connection reset")),
		reply("Here is the analysis:\n```json\n" + causalJSON + "\n```\nLet me know."),
	}}
	c := NewClient(a, WithBackoff(0))

	res, err := c.Analyze(context.Background(), "καὶ εὐθὺς τὸ πνεῦμα αὐτὸν ἐκβάλλει", "Mark 1:12")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.Attempts != 2 || res.Cached {
		t.Errorf("Attempts = %d, Cached = %v", res.Attempts, res.Cached)
	}
	if len(res.Cues) != 1 {
		t.Fatalf("Cues = %+v", res.Cues)
	}
	if cat, ok := res.Cues[0].Category(); !ok || cat != cues.Causal {
		t.Errorf("Category() = %v, %v", cat, ok)
	}
	if res.Cues[0].Confidence != 0.9 {
		t.Errorf("Confidence = %v", res.Cues[0].Confidence)
	}

	// Retries repeat the identical request.
	if a.requests[0] != a.requests[1] {
		t.Errorf("retry changed the request: %+v vs %+v", a.requests[0], a.requests[1])
	}
	if res.RequestID != a.requests[0].ID || res.RequestID == "" {
		t.Errorf("RequestID = %q, sent %q", res.RequestID, a.requests[0].ID)
	}
}

func TestClient_Timeout(t *testing.T) {
	a := &countingAnalyzer{responses: []func(context.Context) (string, error){block}}
	c := NewClient(a, WithTimeout(20*time.Millisecond), WithRetries(1), WithBackoff(0))

	_, err := c.Analyze(context.Background(), "text", "")
	var aerr *apperrors.AnalysisError
	if !errors.As(err, &aerr) {
		t.Fatalf("error = %v, want *AnalysisError", err)
	}
	if aerr.Reason != ReasonTimeout || aerr.Attempts != 2 {
		t.Errorf("Reason = %q, Attempts = %d", aerr.Reason, aerr.Attempts)
	}
	if !errors.Is(err, apperrors.ErrAnalysis) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error %v should wrap ErrAnalysis and DeadlineExceeded", err)
	}
	var lerr *apperrors.LoadError
	if errors.As(err, &lerr) {
		t.Error("analysis failure must not look like a load failure")
	}
	if a.calls() != 2 {
		t.Errorf("calls = %d, want 2", a.calls())
	}
}

func TestClient_BadResponses(t *testing.T) {
	tests := []struct {
		name   string
		resp   func(context.Context) (string, error)
		reason string
	}{
		{"empty", reply("  \n"), ReasonEmpty},
		{"prose only", reply("I could not find any cues."), ReasonMalformed},
		{"no cues key", reply(`{"result":[]}`), ReasonMalformed},
		{"call error", fail(errors.New("exit status 2")), ReasonCall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &countingAnalyzer{responses: []func(context.Context) (string, error){tt.resp}}
			c := NewClient(a, WithRetries(0))

			_, err := c.Analyze(context.Background(), "text", "")
			var aerr *apperrors.AnalysisError
			if !errors.As(err, &aerr) {
				t.Fatalf("error = %v, want *AnalysisError", err)
			}
			if aerr.Reason != tt.reason || aerr.Attempts != 1 {
				t.Errorf("Reason = %q, Attempts = %d; want %q, 1", aerr.Reason, aerr.Attempts, tt.reason)
			}
		})
	}
}

func TestClient_Cache(t *testing.T) {
	a := &countingAnalyzer{responses: []func(context.Context) (string, error){reply(causalJSON)}}
	c := NewClient(a)
	ctx := context.Background()

	first, err := c.Analyze(ctx, "text", "Mark 1:12")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Analyze(ctx, "text", "Mark 1:12")
	if err != nil {
		t.Fatal(err)
	}
	if a.calls() != 1 {
		t.Errorf("identical requests made %d calls, want 1", a.calls())
	}
	if !second.Cached || second.RequestID != first.RequestID {
		t.Errorf("second = %+v", second)
	}

	if _, err := c.Analyze(ctx, "text", "Mark 1:13"); err != nil {
		t.Fatal(err)
	}
	if a.calls() != 2 {
		t.Errorf("different reference should miss the cache: calls = %d", a.calls())
	}

	uncached := NewClient(a, WithCacheTTL(0))
	for i := 0; i < 2; i++ {
		if _, err := uncached.Analyze(ctx, "text", ""); err != nil {
			t.Fatal(err)
		}
	}
	if a.calls() != 4 {
		t.Errorf("disabled cache: calls = %d, want 4", a.calls())
	}
}

// memResults is a ResultStore shared between clients.
type memResults struct {
	mu      sync.Mutex
	results map[string]Result
	expires map[string]time.Time
}

func newMemResults() *memResults {
	return &memResults{results: make(map[string]Result), expires: make(map[string]time.Time)}
}

func (m *memResults) LoadResult(_ context.Context, key string, now time.Time) (Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[key]
	if !ok || !now.Before(m.expires[key]) {
		return Result{}, false, nil
	}
	return r, true, nil
}

func (m *memResults) SaveResult(_ context.Context, key string, r Result, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[key] = r
	m.expires[key] = expires
	return nil
}

func (m *memResults) DeleteResult(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.results, key)
	delete(m.expires, key)
	return nil
}

func TestClient_ResultStore(t *testing.T) {
	a := &countingAnalyzer{responses: []func(context.Context) (string, error){reply(causalJSON)}}
	results := newMemResults()
	ctx := context.Background()

	first, err := NewClient(a, WithResultStore(results)).Analyze(ctx, "text", "Mark 1:12")
	if err != nil {
		t.Fatal(err)
	}

	// A fresh client has an empty memory cache and must fall back to the store.
	later := NewClient(a, WithResultStore(results))
	second, err := later.Analyze(ctx, "text", "Mark 1:12")
	if err != nil {
		t.Fatal(err)
	}
	if a.calls() != 1 {
		t.Errorf("stored result not reused: calls = %d, want 1", a.calls())
	}
	if !second.Cached || second.RequestID != first.RequestID || len(second.Cues) != 1 {
		t.Errorf("second = %+v", second)
	}

	expired := NewClient(a, WithResultStore(results))
	expired.now = func() time.Time { return time.Now().Add(DefaultCacheTTL + time.Second) }
	if _, err := expired.Analyze(ctx, "text", "Mark 1:12"); err != nil {
		t.Fatal(err)
	}
	if a.calls() != 2 {
		t.Errorf("expired result reused: calls = %d, want 2", a.calls())
	}

	disabled := NewClient(a, WithResultStore(results), WithCacheTTL(0))
	if _, err := disabled.Analyze(ctx, "text", "Mark 1:12"); err != nil {
		t.Fatal(err)
	}
	if a.calls() != 3 {
		t.Errorf("disabled cache read the store: calls = %d, want 3", a.calls())
	}
}

func TestClient_Forget(t *testing.T) {
	a := &countingAnalyzer{responses: []func(context.Context) (string, error){reply(causalJSON)}}
	results := newMemResults()
	c := NewClient(a, WithResultStore(results))
	ctx := context.Background()

	if _, err := c.Analyze(ctx, "text", "Mark 1:12"); err != nil {
		t.Fatal(err)
	}
	if err := c.Forget(ctx, "text", "Mark 1:12"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	res, err := c.Analyze(ctx, "text", "Mark 1:12")
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached || a.calls() != 2 {
		t.Errorf("after Forget: cached = %v, calls = %d", res.Cached, a.calls())
	}
}

func TestClient_Canceled(t *testing.T) {
	a := &countingAnalyzer{responses: []func(context.Context) (string, error){block}}
	c := NewClient(a, WithTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Analyze(ctx, "text", "")
	var aerr *apperrors.AnalysisError
	if !errors.As(err, &aerr) || aerr.Reason != ReasonCanceled {
		t.Fatalf("error = %v, want canceled AnalysisError", err)
	}
	if a.calls() != 1 {
		t.Errorf("canceled context should stop retries: calls = %d", a.calls())
	}
}

func TestClient_EmptyText(t *testing.T) {
	a := &countingAnalyzer{responses: []func(context.Context) (string, error){reply(causalJSON)}}
	_, err := NewClient(a).Analyze(context.Background(), " \t", "")
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("error = %v, want validation error", err)
	}
	if a.calls() != 0 {
		t.Error("analyzer should not be called for empty text")
	}
}

func TestExtractCues(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		conf    Confidence
		wantErr bool
	}{
		{"bare", causalJSON, 1, 0.9, false},
		{"prose", "Sure! " + causalJSON + " Hope this helps.", 1, 0.9, false},
		{"fenced", "```json\n" + causalJSON + "\n```", 1, 0.9, false},
		{"string confidence", `{"cues":[{"type":"absence","location":"1:45","explanation":"","confidence":"0.8"}]}`, 1, 0.8, false},
		{"percent confidence", `{"cues":[{"type":"absence","location":"1:45","explanation":"","confidence":"80%"}]}`, 1, 0.8, false},
		{"clamped confidence", `{"cues":[{"type":"primacy","location":"1:1","explanation":"","confidence":1.7}]}`, 1, 1, false},
		{"empty array", `{"cues":[]}`, 0, 0, false},
		{"no cues key", `{"analysis":"none"}`, 0, 0, true},
		{"no object", "nothing to report", 0, 0, true},
		{"broken object", `{"cues":[{"type":}`, 0, 0, true},
		{"empty", "", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCues(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractCues() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			if tt.want > 0 && got[0].Confidence != tt.conf {
				t.Errorf("Confidence = %v, want %v", got[0].Confidence, tt.conf)
			}
		})
	}

	if _, err := ExtractCues("   "); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("blank input error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestAnalyzedCue_Category(t *testing.T) {
	if _, ok := (AnalyzedCue{Type: "irony"}).Category(); ok {
		t.Error("unknown type should not map to a category")
	}
	if cat, ok := (AnalyzedCue{Type: "Prolepsis"}).Category(); !ok || cat != cues.Prolepsis {
		t.Errorf("Category() = %v, %v", cat, ok)
	}
}

func TestResponseSchema(t *testing.T) {
	raw, err := ResponseSchema()
	if err != nil {
		t.Fatalf("ResponseSchema() error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	s := string(raw)
	for _, want := range []string{`"cues"`, `"confidence"`, `"focalization"`, `"additionalProperties":false`} {
		if !strings.Contains(s, want) {
			t.Errorf("schema missing %s", want)
		}
	}
}

// TestHelperProcess is not a real test. It stands in for an external
// analyzer when re-executed by the CommandAnalyzer tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	switch os.Getenv("HELPER_MODE") {
	case "fail":
		fmt.Fprintln(os.Stderr, "model unavailable")
		os.Exit(3)
	case "sleep":
		time.Sleep(10 * time.Second)
	default:
		var env struct {
			RequestID      string          `json:"request_id"`
			Text           string          `json:"text"`
			Reference      string          `json:"reference"`
			ResponseSchema json.RawMessage `json:"response_schema"`
		}
		if err := json.NewDecoder(os.Stdin).Decode(&env); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if len(env.ResponseSchema) == 0 {
			fmt.Fprintln(os.Stderr, "missing schema")
			os.Exit(2)
		}
		fmt.Printf("Analysis of %s (%d runes):\n", env.Reference, len([]rune(env.Text)))
		fmt.Printf(`{"cues":[{"type":"causal","location":%q,"explanation":"echo","confidence":0.5}]}`+"\n", env.Reference)
	}
}

func helperAnalyzer(mode string) *CommandAnalyzer {
	a := NewCommandAnalyzer(os.Args[0], "-test.run=TestHelperProcess", "--")
	a.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
	return a
}

func TestCommandAnalyzer(t *testing.T) {
	raw, err := helperAnalyzer("echo").Analyze(context.Background(), Request{ID: "r1", Text: "πνεῦμα", Reference: "Mark 1:10"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !strings.HasPrefix(raw, "Analysis of Mark 1:10 (6 runes):") {
		t.Errorf("raw = %q", raw)
	}
	found, err := ExtractCues(raw)
	if err != nil || len(found) != 1 || found[0].Location != "Mark 1:10" {
		t.Errorf("ExtractCues() = %+v, %v", found, err)
	}
}

func TestCommandAnalyzer_Failures(t *testing.T) {
	_, err := helperAnalyzer("fail").Analyze(context.Background(), Request{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("error = %v, want stderr in message", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = helperAnalyzer("sleep").Analyze(ctx, Request{Text: "x"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}

	if _, err := (&CommandAnalyzer{}).Analyze(context.Background(), Request{Text: "x"}); err == nil {
		t.Error("expected error for empty argv")
	}
}

func TestClientWithCommandAnalyzer(t *testing.T) {
	c := NewClient(helperAnalyzer("echo"), WithTimeout(30*time.Second))
	res, err := c.Analyze(context.Background(), "ἰδοὺ ἀποστέλλω", "Mark 1:2")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Cues) != 1 || res.Cues[0].Location != "Mark 1:2" {
		t.Errorf("Cues = %+v", res.Cues)
	}
}
