package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizbattle/internal/client"
)

func TestAccountCommands(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["username"] == "taken" {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"message":"Username already exists"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"message":"User created successfully"}`)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"Login successful","user":{"username":"alice"}}`)
	})
	mux.HandleFunc("/api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"1","username":"alice","score":4,"date":"2025-01-02T03:04:05Z"}]`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := filepath.Join(t.TempDir(), "session.yaml")

	run := func(stdin string, args ...string) (string, error) {
		cmd := NewRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetIn(bytes.NewBufferString(stdin))
		cmd.SetArgs(append(args, "--server", srv.URL, "--session", session, "--log-level", "error"))
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("", "register", "-u", "alice", "-p", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Registration successful")

	_, err = run("", "register", "-u", "taken", "-p", "pw")
	require.EqualError(t, err, "Username already exists")

	out, err = run("pw\n", "login", "-u", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Password: ")
	assert.Contains(t, out, "Welcome, alice!")

	s, err := client.LoadSession(session)
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Username)

	out, err = run("", "leaderboard")
	require.NoError(t, err)
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "alice")

	_, err = run("", "logout")
	require.NoError(t, err)

	s, err = client.LoadSession(session)
	require.NoError(t, err)
	assert.False(t, s.LoggedIn())

	_, err = run("", "play")
	require.Error(t, err, "play should require a login")
}

func TestSeedCmd_RequiresOneSource(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"seed", "--log-level", "error"})
	require.Error(t, cmd.Execute())
}
