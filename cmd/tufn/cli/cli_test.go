package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tufnapp/tufngate/api"
	"github.com/tufnapp/tufngate/backend"
	"github.com/tufnapp/tufngate/backend/memory"
	"github.com/tufnapp/tufngate/config"
	"github.com/tufnapp/tufngate/identity"
	"github.com/tufnapp/tufngate/localstate"
	"github.com/tufnapp/tufngate/pkg/tufngate"
)

type harness struct {
	local  *localstate.MemoryStore
	remote *memory.Store
}

func newHarness() *harness {
	return &harness{local: localstate.NewMemoryStore(), remote: memory.New()}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := &App{
		Out: &out,
		Err: &out,
		LoadConfig: func() (config.Client, error) {
			return config.Client{StateFile: "unused", LogLevel: "error"}, nil
		},
		OpenLocal: func(string) (localstate.Store, error) { return h.local, nil },
		NewRemote: func(config.Client) backend.Store { return h.remote },
	}
	root := NewRootCmd(app)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestJoin(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "join", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, tufngate.MsgJoined+"\n", out)
	require.Len(t, h.remote.Signups(), 1)

	joined, err := localstate.Joined(h.local)
	require.NoError(t, err)
	assert.True(t, joined)

	// a fresh process reads the persisted flag and sends nothing
	out, err = h.run(t, "join", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, tufngate.MsgAlreadyJoined+"\n", out)
	assert.Len(t, h.remote.Signups(), 1)
}

func TestJoin_InvalidEmail(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "join", "not-an-email")
	require.Error(t, err)
	assert.ErrorIs(t, err, tufngate.ErrValidation)
	assert.Contains(t, out, tufngate.MsgInvalidEmail)
	assert.Empty(t, h.remote.Signups())
}

func TestJoin_ConflictJSON(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.remote.InsertSignup(context.Background(), backend.Signup{
		Fingerprint: "3f2b8c1e-9d4a-4c6b-8e2f-1a7d5c9b0e34",
		Email:       "ada@example.com",
	}))

	out, err := h.run(t, "join", "ada@example.com", "--json")
	require.Error(t, err)

	var got tufngate.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, tufngate.OutcomeConflict, got.Kind)
	assert.Equal(t, tufngate.MsgConflict, got.Message)
}

func TestReviewAndFeedback(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "review", "--name", "Grace", "--rating", "5", "--comment", "Helps me stay on task all day.")
	require.NoError(t, err)
	assert.Equal(t, tufngate.MsgReviewThanks+"\n", out)
	assert.Len(t, h.remote.Reviews(), 1)

	out, err = h.run(t, "feedback", "--category", "feature", "--message", "Please add a weekly summary view.")
	require.NoError(t, err)
	assert.Equal(t, tufngate.MsgFeedbackThanks+"\n", out)
	assert.Len(t, h.remote.Feedback(), 1)

	out, err = h.run(t, "review", "--name", "G", "--rating", "7", "--comment", "meh")
	require.Error(t, err)
	assert.Contains(t, out, tufngate.MsgInvalidFields)
	assert.Contains(t, out, "rating:")
}

func TestCountAndStatus(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "count")
	require.NoError(t, err)
	assert.Equal(t, "0 on the waitlist\n", out)

	_, err = h.run(t, "join", "ada@example.com")
	require.NoError(t, err)

	out, err = h.run(t, "count", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":1}`, out)

	out, err = h.run(t, "status", "--json")
	require.NoError(t, err)
	var st tufngate.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Joined)
	assert.True(t, identity.IsValid(st.Identity))
}

func TestIdentity(t *testing.T) {
	h := newHarness()

	first, err := h.run(t, "identity")
	require.NoError(t, err)
	first = strings.TrimSpace(first)
	assert.True(t, identity.IsValid(first))

	again, err := h.run(t, "identity")
	require.NoError(t, err)
	assert.Equal(t, first, strings.TrimSpace(again))

	reset, err := h.run(t, "identity", "--reset")
	require.NoError(t, err)
	assert.NotEqual(t, first, strings.TrimSpace(reset))
}

func TestTheme(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light\n", out)

	out, err = h.run(t, "theme", "DARK")
	require.NoError(t, err)
	assert.Equal(t, "dark\n", out)

	v, ok, err := h.local.Get(localstate.KeyTheme)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", v)

	_, err = h.run(t, "theme", "sepia")
	assert.Error(t, err)
}

func TestDownloads(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "downloads")
	require.NoError(t, err)
	assert.Contains(t, out, "https://tufn.app/downloads/tufn-windows.exe")
	assert.Contains(t, out, "https://tufn.app/downloads/tufn-linux.deb")

	out, err = h.run(t, "downloads", "mac")
	require.NoError(t, err)
	assert.Contains(t, out, "Downloading Tufn for macOS...")
	assert.Contains(t, out, "1. Open the downloaded tufn-macos.dmg file")

	_, err = h.run(t, "downloads", "beos")
	assert.Error(t, err)
}

// serveAPI runs the real router over httptest and returns a runner whose
// CLI talks to it with state kept in a temp file.
func serveAPI(t *testing.T) (*memory.Store, string, func(args ...string) (string, error)) {
	t.Helper()
	db := memory.New()
	gate, err := tufngate.New(tufngate.WithSweep(0, tufngate.DefaultRetention))
	require.NoError(t, err)
	router, err := api.NewRouter(api.Deps{Backend: db, Gate: gate, APIKeys: map[string]struct{}{"anon": {}}})
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	statePath := filepath.Join(t.TempDir(), "state.json")
	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		app := &App{
			Out: &out,
			Err: &out,
			LoadConfig: func() (config.Client, error) {
				return config.ClientFromMap(map[string]string{
					"TUFN_ENDPOINT":   srv.URL,
					"TUFN_API_KEY":    "anon",
					"TUFN_STATE_FILE": statePath,
					"TUFN_LOG_LEVEL":  "error",
				})
			},
		}
		root := NewRootCmd(app)
		root.SetArgs(args)
		err := root.Execute()
		return out.String(), err
	}
	return db, statePath, run
}

func TestEndToEndOverHTTP(t *testing.T) {
	db, statePath, run := serveAPI(t)

	out, err := run("join", "ada@example.com")
	require.NoError(t, err, out)
	assert.Equal(t, tufngate.MsgJoined+"\n", out)
	require.Len(t, db.Signups(), 1)

	out, err = run("count")
	require.NoError(t, err)
	assert.Equal(t, "1 on the waitlist\n", out)

	// the flag survived on disk
	local, err := localstate.OpenFile(statePath)
	require.NoError(t, err)
	joined, err := localstate.Joined(local)
	require.NoError(t, err)
	assert.True(t, joined)

	id, ok, err := local.Get(localstate.KeyIdentity)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, db.Signups()[0].Fingerprint)
}

func TestReviewOverHTTP_EscapedOnce(t *testing.T) {
	db, _, run := serveAPI(t)

	// 47 runes as typed, 63 once escaped, over the 50 rune name limit
	name := "Tom & Jerry's Cartoon Club & Friends' Review Co"
	comment := "Rock & roll focus sessions, <3 the timer's sound"

	out, err := run("review", "--name", name, "--rating", "4", "--comment", comment)
	require.NoError(t, err, out)
	assert.Equal(t, tufngate.MsgReviewThanks+"\n", out)

	rows := db.Reviews()
	require.Len(t, rows, 1)
	assert.Equal(t, html.EscapeString(name), rows[0].Name)
	assert.Equal(t, html.EscapeString(comment), rows[0].Comment)

	out, err = run("feedback", "--name", name, "--category", "general", "--message", "Q&A page says \"soon\" & that's all")
	require.NoError(t, err, out)
	require.Len(t, db.Feedback(), 1)
	assert.Equal(t, html.EscapeString(name), db.Feedback()[0].Name)
	assert.Equal(t, "Q&amp;A page says &#34;soon&#34; &amp; that&#39;s all", db.Feedback()[0].Message)
}
