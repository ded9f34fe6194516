package command

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	apperrors "github.com/louisbranch/leaderboard/internal/platform/errors"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/nonce"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/score"
	"github.com/louisbranch/leaderboard/internal/testkit/leaderboardfakes"
)

const testClient = "203.0.113.7"

type dispatcherHarness struct {
	store      *leaderboardfakes.Store
	dispatcher *Dispatcher
	observer   *recordingObserver
}

func newHarness(t *testing.T) *dispatcherHarness {
	t.Helper()
	store := leaderboardfakes.NewStore()
	auth, err := nonce.NewAuthenticator(store, nonce.DefaultSharedSecret)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	scores, err := score.NewService(store)
	if err != nil {
		t.Fatalf("new score service: %v", err)
	}
	observer := &recordingObserver{}
	dispatcher, err := NewDispatcher(auth, scores, observer)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return &dispatcherHarness{store: store, dispatcher: dispatcher, observer: observer}
}

// signed builds a protected request carrying a valid proof for the
// challenge currently stored for testClient.
func (h *dispatcherHarness) signed(t *testing.T, cmd, data string) Request {
	t.Helper()
	challenge, ok := h.store.Nonce(testClient)
	if !ok {
		t.Fatal("no challenge stored for client")
	}
	body := []byte("command=" + cmd + "&data=" + data)
	return Request{
		ClientIdentity: testClient,
		Command:        Set(cmd),
		Data:           Set(data),
		ClientNonce:    Set("client-nonce"),
		Hash:           nonce.ComputeProof(challenge, "client-nonce", body, []byte(nonce.DefaultSharedSecret)),
		RawBody:        body,
	}
}

func (h *dispatcherHarness) issue(t *testing.T) string {
	t.Helper()
	env := h.dispatcher.Dispatch(context.Background(), Request{
		ClientIdentity: testClient,
		Command:        Set("get_nonce"),
		Data:           Set("{}"),
	})
	if !env.OK() {
		t.Fatalf("get_nonce error = %s", env.Error)
	}
	return env.Response.(NonceResponse).Nonce
}

func TestNewDispatcherRequiresCollaborators(t *testing.T) {
	store := leaderboardfakes.NewStore()
	auth, _ := nonce.NewAuthenticator(store, "s")
	scores, _ := score.NewService(store)
	if _, err := NewDispatcher(nil, scores, nil); err == nil {
		t.Fatal("expected error for nil authenticator")
	}
	if _, err := NewDispatcher(auth, nil, nil); err == nil {
		t.Fatal("expected error for nil score service")
	}
	d, err := NewDispatcher(auth, scores, nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if _, ok := d.observer.(NopObserver); !ok {
		t.Fatalf("observer = %T, want NopObserver", d.observer)
	}
}

func TestDispatchMissingCommand(t *testing.T) {
	h := newHarness(t)
	env := h.dispatcher.Dispatch(context.Background(), Request{ClientIdentity: testClient, Data: Set("{}")})

	encoded, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(encoded), `{"error":"missing_command","response":{}}`; got != want {
		t.Fatalf("envelope = %s, want %s", got, want)
	}
}

func TestDispatchCheckOrder(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want apperrors.Code
	}{
		{
			name: "missing data",
			req:  Request{Command: Set("get_scores")},
			want: apperrors.CodeMissingData,
		},
		{
			name: "missing data before unknown command",
			req:  Request{Command: Set("foo")},
			want: apperrors.CodeMissingData,
		},
		{
			name: "invalid json before unknown command",
			req:  Request{Command: Set("foo"), Data: Set("{oops")},
			want: apperrors.CodeInvalidJSON,
		},
		{
			name: "null data",
			req:  Request{Command: Set("add_score"), Data: Set("null")},
			want: apperrors.CodeInvalidJSON,
		},
		{
			name: "unknown command",
			req:  Request{Command: Set("foo"), Data: Set("{}")},
			want: apperrors.CodeInvalidCommand,
		},
		{
			name: "missing client nonce",
			req:  Request{Command: Set("get_scores"), Data: Set("{}"), Hash: "abc"},
			want: apperrors.CodeInvalidNonce,
		},
		{
			name: "no challenge issued",
			req:  Request{Command: Set("add_score"), Data: Set("{}"), ClientNonce: Set("c"), Hash: "abc"},
			want: apperrors.CodeServerMissingNonce,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			tc.req.ClientIdentity = testClient
			env := h.dispatcher.Dispatch(context.Background(), tc.req)
			if env.Error != string(tc.want) {
				t.Fatalf("error = %q, want %q", env.Error, tc.want)
			}
			if env.CommandName() != tc.req.Command.Value {
				t.Fatalf("command = %q, want %q", env.CommandName(), tc.req.Command.Value)
			}
			if h.store.InsertCalls != 0 || len(h.store.ListLimits) != 0 {
				t.Fatal("store must not be touched on failure")
			}
		})
	}
}

func TestDispatchUnknownCommandEchoes(t *testing.T) {
	h := newHarness(t)
	env := h.dispatcher.Dispatch(context.Background(), Request{
		ClientIdentity: testClient,
		Command:        Set("foo"),
		Data:           Set("{}"),
	})
	encoded, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(encoded), `{"error":"invalid_command","command":"foo","response":{}}`; got != want {
		t.Fatalf("envelope = %s, want %s", got, want)
	}
}

func TestDispatchGetNonceStoresChallenge(t *testing.T) {
	h := newHarness(t)
	challenge := h.issue(t)
	if len(challenge) != 64 {
		t.Fatalf("challenge length = %d, want 64", len(challenge))
	}
	stored, ok := h.store.Nonce(testClient)
	if !ok || stored != challenge {
		t.Fatalf("stored = %q, want %q", stored, challenge)
	}

	second := h.issue(t)
	if second == challenge {
		t.Fatal("expected a new challenge on reissue")
	}
	if stored, _ := h.store.Nonce(testClient); stored != second {
		t.Fatal("reissue must replace the stored challenge")
	}
}

func TestDispatchAddScoreThenGetScores(t *testing.T) {
	h := newHarness(t)
	for _, s := range []string{"10", "30", "20"} {
		h.issue(t)
		env := h.dispatcher.Dispatch(context.Background(), h.signed(t, "add_score", `{"username":"p`+s+`","score":`+s+`}`))
		if !env.OK() {
			t.Fatalf("add_score error = %s", env.Error)
		}
		encoded, _ := json.Marshal(env.Response)
		if string(encoded) != "{}" {
			t.Fatalf("add_score response = %s, want {}", encoded)
		}
	}

	h.issue(t)
	env := h.dispatcher.Dispatch(context.Background(), h.signed(t, "get_scores", `{"score_number":5}`))
	if !env.OK() {
		t.Fatalf("get_scores error = %s", env.Error)
	}
	encoded, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"error":"none","command":"get_scores","response":{"0":{"username":"p30","score":30},"1":{"username":"p20","score":20},"2":{"username":"p10","score":10},"size":3}}`
	if string(encoded) != want {
		t.Fatalf("envelope = %s\nwant %s", encoded, want)
	}
}

func TestDispatchGetScoresDefaultLimit(t *testing.T) {
	h := newHarness(t)
	h.issue(t)
	env := h.dispatcher.Dispatch(context.Background(), h.signed(t, "get_scores", `{}`))
	if !env.OK() {
		t.Fatalf("error = %s", env.Error)
	}
	if len(h.store.ListLimits) != 1 || h.store.ListLimits[0] != score.DefaultLimit {
		t.Fatalf("limits = %v, want [%d]", h.store.ListLimits, score.DefaultLimit)
	}
}

func TestDispatchAddScoreMissingFields(t *testing.T) {
	tests := []struct {
		data string
		want apperrors.Code
	}{
		{data: `{"score":42}`, want: apperrors.CodeMissingUsername},
		{data: `{"username":"ann"}`, want: apperrors.CodeMissingScore},
		{data: `{}`, want: apperrors.CodeMissingScore},
	}
	for _, tc := range tests {
		t.Run(tc.data, func(t *testing.T) {
			h := newHarness(t)
			h.issue(t)
			env := h.dispatcher.Dispatch(context.Background(), h.signed(t, "add_score", tc.data))
			if env.Error != string(tc.want) {
				t.Fatalf("error = %q, want %q", env.Error, tc.want)
			}
			if h.store.InsertCalls != 0 {
				t.Fatalf("insert calls = %d, want 0", h.store.InsertCalls)
			}
			if _, ok := h.store.Nonce(testClient); ok {
				t.Fatal("challenge must be consumed")
			}
		})
	}
}

func TestDispatchEmptyClientNonceIsChecked(t *testing.T) {
	h := newHarness(t)
	challenge := h.issue(t)
	body := []byte(`command=get_scores&data={}`)
	req := Request{
		ClientIdentity: testClient,
		Command:        Set("get_scores"),
		Data:           Set("{}"),
		ClientNonce:    Set(""),
		Hash:           nonce.ComputeProof(challenge, "", body, []byte(nonce.DefaultSharedSecret)),
		RawBody:        body,
	}

	env := h.dispatcher.Dispatch(context.Background(), req)
	if !env.OK() {
		t.Fatalf("error = %q, want none", env.Error)
	}
	if _, ok := h.store.Nonce(testClient); ok {
		t.Fatal("challenge must be consumed")
	}
}

func TestDispatchGetNonceAcceptsEmptyArray(t *testing.T) {
	h := newHarness(t)
	env := h.dispatcher.Dispatch(context.Background(), Request{
		ClientIdentity: testClient,
		Command:        Set("get_nonce"),
		Data:           Set("[]"),
	})
	if !env.OK() {
		t.Fatalf("error = %q, want none", env.Error)
	}
	if _, ok := h.store.Nonce(testClient); !ok {
		t.Fatal("expected a stored challenge")
	}
}

func TestDispatchTamperedBody(t *testing.T) {
	h := newHarness(t)
	h.issue(t)
	req := h.signed(t, "add_score", `{"username":"ann","score":1}`)
	req.RawBody = []byte(`command=add_score&data={"username":"ann","score":999}`)
	req.Data = Set(`{"username":"ann","score":999}`)

	env := h.dispatcher.Dispatch(context.Background(), req)
	if env.Error != string(apperrors.CodeInvalidNonceOrHash) {
		t.Fatalf("error = %q, want invalid_nonce_or_hash", env.Error)
	}
	if h.store.InsertCalls != 0 {
		t.Fatal("tampered request must not insert")
	}
}

func TestDispatchReplayIsRejected(t *testing.T) {
	h := newHarness(t)
	h.issue(t)
	req := h.signed(t, "add_score", `{"username":"ann","score":5}`)

	if env := h.dispatcher.Dispatch(context.Background(), req); !env.OK() {
		t.Fatalf("first submit error = %s", env.Error)
	}
	env := h.dispatcher.Dispatch(context.Background(), req)
	if env.Error != string(apperrors.CodeServerMissingNonce) {
		t.Fatalf("replay error = %q, want server_missing_nonce", env.Error)
	}
	if len(h.store.Scores) != 1 {
		t.Fatalf("scores = %d, want 1", len(h.store.Scores))
	}
}

func TestDispatchStorageFailure(t *testing.T) {
	h := newHarness(t)
	h.issue(t)
	h.store.InsertErr = errors.New("disk full")

	env := h.dispatcher.Dispatch(context.Background(), h.signed(t, "add_score", `{"username":"ann","score":5}`))
	if env.Error != "db_error disk full" {
		t.Fatalf("error = %q, want db_error disk full", env.Error)
	}
}

func TestDispatchNonceStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.store.PutNonceErr = errors.New("locked")
	env := h.dispatcher.Dispatch(context.Background(), Request{
		ClientIdentity: testClient,
		Command:        Set("get_nonce"),
		Data:           Set("{}"),
	})
	if env.Error != "db_error locked" {
		t.Fatalf("error = %q, want db_error locked", env.Error)
	}
}

func TestDispatchObserverHooks(t *testing.T) {
	h := newHarness(t)
	h.issue(t)
	h.dispatcher.Dispatch(context.Background(), Request{ClientIdentity: testClient})

	events := h.observer.snapshot()
	want := []string{
		"received", "resolved get_nonce false", "emitted none",
		"received", "emitted missing_command",
	}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestDispatchConcurrentProofsConsumeOnce(t *testing.T) {
	h := newHarness(t)
	h.issue(t)
	req := h.signed(t, "get_scores", `{}`)

	var wg sync.WaitGroup
	results := make(chan Envelope, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- h.dispatcher.Dispatch(context.Background(), req)
		}()
	}
	wg.Wait()
	close(results)

	ok, missing := 0, 0
	for env := range results {
		switch env.Error {
		case string(apperrors.CodeNone):
			ok++
		case string(apperrors.CodeServerMissingNonce):
			missing++
		}
	}
	if ok != 1 || missing != 1 {
		t.Fatalf("ok = %d missing = %d, want 1 and 1", ok, missing)
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) RequestReceived(ctx context.Context, _ Request) context.Context {
	o.add("received")
	return ctx
}

func (o *recordingObserver) CommandResolved(_ context.Context, name Name, protected bool) {
	if protected {
		o.add("resolved " + string(name) + " true")
		return
	}
	o.add("resolved " + string(name) + " false")
}

func (o *recordingObserver) ResponseEmitted(_ context.Context, env Envelope) {
	o.add("emitted " + env.Error)
}

func (o *recordingObserver) add(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}
