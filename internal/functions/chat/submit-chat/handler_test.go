// internal/functions/chat/submit-chat/handler_test.go
package submitchat

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-rag-functions/internal/common/config"
	"legal-rag-functions/internal/common/database"
	"legal-rag-functions/internal/common/llm"
)

// ==========================
// Test Logger Implementation
// ==========================

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t      *testing.T
	fields map[string]interface{}
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{t: t, fields: make(map[string]interface{})}
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, l.mergeFields(fields))
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, l.mergeFields(fields))
}

func (l *TestLogger) With(fields map[string]interface{}) Logger {
	return &TestLogger{t: l.t, fields: l.mergeFields(fields)}
}

func (l *TestLogger) mergeFields(fields map[string]interface{}) map[string]interface{} {
	allFields := make(map[string]interface{})
	for k, v := range l.fields {
		allFields[k] = v
	}
	for k, v := range fields {
		allFields[k] = v
	}
	return allFields
}

// ==========================
// Fakes
// ==========================

// timeline records chat calls and pauses in the order they happen.
type timeline struct {
	mu     sync.Mutex
	events []string
}

func (tl *timeline) add(event string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.events = append(tl.events, event)
}

func (tl *timeline) all() []string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return append([]string(nil), tl.events...)
}

func (tl *timeline) sleep(_ context.Context, d time.Duration) error {
	tl.add("sleep " + d.String())
	return nil
}

type fakeBackend struct {
	tl      *timeline
	answer  string
	failAt  int
	failErr error
	calls   [][]llm.Message
}

func (f *fakeBackend) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.calls = append(f.calls, messages)
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, string(m.Role)+":"+m.Content)
	}
	f.tl.add("call " + strings.Join(parts, " | "))

	if f.failErr != nil && len(f.calls) == f.failAt {
		return "", f.failErr
	}
	if messages[len(messages)-1].Role == llm.RoleUser {
		return f.answer, nil
	}
	return "primed", nil
}

type fakeSearcher struct {
	chunks []string
	err    error
	query  string
	calls  int
}

func (f *fakeSearcher) Search(_ context.Context, query string) (ChunkIterator, error) {
	f.calls++
	f.query = query
	if f.err != nil {
		return nil, f.err
	}
	return NewSliceIterator(f.chunks...), nil
}

// ==========================
// Test Helper Functions
// ==========================

const testSystemPrompt = "You are a law proceedings assistant that pores over court proceeding documents to answer law-related queries and search for potential appeals."

func createTestConfig() *Config {
	return &Config{
		Index:          "proceedings",
		Top:            5,
		SelectField:    "chunk",
		SystemPrompt:   testSystemPrompt,
		FallbackAnswer: "I'm sorry, I couldn't find an answer to your question.",
		PrimeMode:      config.PrimeModeSequential,
		PrimeDelay:     5 * time.Second,
	}
}

type testRig struct {
	handler  *Handler
	searcher *fakeSearcher
	backend  *fakeBackend
	tl       *timeline
}

func newTestRig(t *testing.T, cfg *Config, chunks []string, answer string) *testRig {
	tl := &timeline{}
	searcher := &fakeSearcher{chunks: chunks}
	backend := &fakeBackend{tl: tl, answer: answer}
	orch := NewOrchestrator(backend, cfg, nil).WithSleep(tl.sleep)
	return &testRig{
		handler:  NewHandler(cfg, searcher, orch, NewTestLogger(t)),
		searcher: searcher,
		backend:  backend,
		tl:       tl,
	}
}

func ask(h http.Handler, method, question string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/SubmitChat", strings.NewReader(question))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ==========================
// Orchestration Tests
// ==========================

func TestHandler_SequentialPrimeThenAsk(t *testing.T) {
	rig := newTestRig(t, createTestConfig(), []string{"Appeals must be filed within 30 days."}, "You have 30 days to appeal.")

	rec := ask(rig.handler, http.MethodPost, "What is the appeal deadline?")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "You have 30 days to appeal.", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "What is the appeal deadline?", rig.searcher.query)

	assert.Equal(t, []string{
		"call system:" + testSystemPrompt,
		"sleep 5s",
		"call system:Context: Appeals must be filed within 30 days.",
		"sleep 5s",
		"call user:Question: What is the appeal deadline?",
	}, rig.tl.all())
}

func TestHandler_FiltersBlankChunksKeepsDuplicates(t *testing.T) {
	rig := newTestRig(t, createTestConfig(), []string{"", "Rule 4(a)", "   ", "Rule 4(a)", "\n\t", "Rule 26"}, "answer")

	rec := ask(rig.handler, http.MethodPost, "deadline?")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, rig.backend.calls, 5)
	assert.Equal(t, "Context: Rule 4(a)", rig.backend.calls[1][0].Content)
	assert.Equal(t, "Context: Rule 4(a)", rig.backend.calls[2][0].Content)
	assert.Equal(t, "Context: Rule 26", rig.backend.calls[3][0].Content)
	assert.Equal(t, "Question: deadline?", rig.backend.calls[4][0].Content)
}

func TestHandler_NoChunksStillSeedsAndAsks(t *testing.T) {
	rig := newTestRig(t, createTestConfig(), nil, "general answer")

	rec := ask(rig.handler, http.MethodGet, "anything?")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{
		"call system:" + testSystemPrompt,
		"sleep 5s",
		"call user:Question: anything?",
	}, rig.tl.all())
}

func TestHandler_FallbackAnswer(t *testing.T) {
	rig := newTestRig(t, createTestConfig(), []string{"chunk"}, "")

	rec := ask(rig.handler, http.MethodPost, "question")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "I'm sorry, I couldn't find an answer to your question.", rec.Body.String())
}

func TestHandler_WhitespaceAnswerReturnedAsIs(t *testing.T) {
	for _, answer := range []string{"   ", "\n"} {
		rig := newTestRig(t, createTestConfig(), []string{"chunk"}, answer)

		rec := ask(rig.handler, http.MethodPost, "question")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, answer, rec.Body.String())
	}
}

func TestHandler_CombinedMode(t *testing.T) {
	cfg := createTestConfig()
	cfg.PrimeMode = config.PrimeModeCombined
	rig := newTestRig(t, cfg, []string{"A", "B"}, "combined answer")

	rec := ask(rig.handler, http.MethodPost, "Q?")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "combined answer", rec.Body.String())

	require.Len(t, rig.backend.calls, 1)
	msgs := rig.backend.calls[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: testSystemPrompt}, msgs[0])
	assert.Equal(t, "Context: A", msgs[1].Content)
	assert.Equal(t, "Context: B", msgs[2].Content)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Question: Q?"}, msgs[3])

	for _, e := range rig.tl.all() {
		assert.False(t, strings.HasPrefix(e, "sleep"))
	}
}

// ==========================
// Failure Tests
// ==========================

func TestHandler_ChatFailureAbortsWithoutPartialAnswer(t *testing.T) {
	tests := []struct {
		name      string
		failAt    int
		wantCalls int
	}{
		{"seed call fails", 1, 1},
		{"context call fails", 2, 2},
		{"answer call fails", 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, createTestConfig(), []string{"c1", "c2"}, "never returned")
			rig.backend.failAt = tt.failAt
			rig.backend.failErr = &llm.AuthError{Err: stderrors.New("401 Access denied due to invalid subscription key")}

			rec := ask(rig.handler, http.MethodPost, "question")

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, "Error communicating with OpenAI service.", rec.Body.String())
			assert.Len(t, rig.backend.calls, tt.wantCalls)
		})
	}
}

func TestHandler_SearchFailure(t *testing.T) {
	rig := newTestRig(t, createTestConfig(), nil, "x")
	rig.searcher.err = stderrors.New("search error: [404 Not Found]")

	rec := ask(rig.handler, http.MethodPost, "question")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error communicating with search service.", rec.Body.String())
	assert.Empty(t, rig.backend.calls)
}

func TestHandler_EmptyQuestion(t *testing.T) {
	for _, body := range []string{"", "   \n"} {
		rig := newTestRig(t, createTestConfig(), []string{"chunk"}, "x")

		rec := ask(rig.handler, http.MethodPost, body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No question provided.", rec.Body.String())
		assert.Equal(t, 0, rig.searcher.calls)
		assert.Empty(t, rig.backend.calls)
	}
}

func TestHandler_CancelledDuringDelay(t *testing.T) {
	cfg := createTestConfig()
	cfg.PrimeDelay = time.Hour
	tl := &timeline{}
	backend := &fakeBackend{tl: tl, answer: "x"}
	orch := NewOrchestrator(backend, cfg, nil)
	h := NewHandler(cfg, &fakeSearcher{chunks: []string{"c"}}, orch, NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/SubmitChat", strings.NewReader("q")).WithContext(ctx)
	rec := httptest.NewRecorder()

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return after cancellation")
	}

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An unexpected error occurred.", rec.Body.String())
	assert.Len(t, backend.calls, 1)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
	assert.NoError(t, sleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, sleepContext(ctx, time.Minute), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

// ==========================
// Iterator And Assembler Tests
// ==========================

func TestNonBlank(t *testing.T) {
	it := NonBlank(NewSliceIterator("", "a", " ", "b", "\t\n"))

	var got []string
	for {
		chunk, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, chunk)
	}
	assert.Equal(t, []string{"a", "b"}, got)

	_, ok := it.Next()
	assert.False(t, ok)
}

func TestAssemble(t *testing.T) {
	conv := Assemble("sys", NewSliceIterator("one", "two", "one"), "why?")

	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: "sys"}, conv.System)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Question: why?"}, conv.Question)
	require.Len(t, conv.Contexts, 3)
	assert.Equal(t, "Context: one", conv.Contexts[0].Content)
	assert.Equal(t, "Context: two", conv.Contexts[1].Content)
	assert.Equal(t, "Context: one", conv.Contexts[2].Content)

	assert.Len(t, conv.Priming(), 4)
	assert.Len(t, conv.Combined(), 5)
}

// ==========================
// Elasticsearch Searcher Tests
// ==========================

func newESServer(t *testing.T, handler http.HandlerFunc) *database.ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := database.NewElasticsearch(config.SearchConfig{Endpoint: srv.URL, Index: "proceedings"}, nil)
	require.NoError(t, err)
	return client
}

func TestESSearcher_Search(t *testing.T) {
	var query map[string]interface{}
	client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/proceedings/_search", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &query))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":4},"hits":[
			{"_id":"1","_source":{"chunk":"Appeals must be filed within 30 days."}},
			{"_id":"2","_source":{}},
			{"_id":"3","_source":{"chunk":"   "}},
			{"_id":"4","_source":{"chunk":"Notice of appeal goes to the clerk."}}
		]}}`))
	})

	searcher := NewESSearcher(client, createTestConfig())
	it, err := searcher.Search(context.Background(), "What is the appeal deadline?")
	require.NoError(t, err)

	assert.EqualValues(t, 5, query["size"])
	assert.Equal(t, []interface{}{"chunk"}, query["_source"])
	sqs := query["query"].(map[string]interface{})["simple_query_string"].(map[string]interface{})
	assert.Equal(t, "What is the appeal deadline?", sqs["query"])

	conv := Assemble("sys", NonBlank(it), "q")
	require.Len(t, conv.Contexts, 2)
	assert.Equal(t, "Context: Appeals must be filed within 30 days.", conv.Contexts[0].Content)
	assert.Equal(t, "Context: Notice of appeal goes to the clerk.", conv.Contexts[1].Content)
}

func TestESSearcher_IndexMissing(t *testing.T) {
	client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
	})

	_, err := NewESSearcher(client, createTestConfig()).Search(context.Background(), "q")
	assert.ErrorContains(t, err, "search error")
}

func TestHandler_EndToEndWithElasticsearch(t *testing.T) {
	client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"chunk":"Appeals must be filed within 30 days."}}]}}`))
	})

	cfg := createTestConfig()
	tl := &timeline{}
	backend := &fakeBackend{tl: tl, answer: "Thirty days."}
	orch := NewOrchestrator(backend, cfg, nil).WithSleep(tl.sleep)
	h := NewHandler(cfg, NewESSearcher(client, cfg), orch, NewTestLogger(t))

	rec := ask(h, http.MethodPost, "What is the appeal deadline?")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Thirty days.", rec.Body.String())
	assert.Len(t, backend.calls, 3)
	assert.Equal(t, 2, strings.Count(strings.Join(tl.all(), "\n"), "sleep 5s"))
	assert.Equal(t, fmt.Sprintf("call user:Question: %s", "What is the appeal deadline?"), tl.all()[4])
}
