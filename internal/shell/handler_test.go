package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braid/internal/config"
	"braid/internal/controller"
	"braid/internal/testutils"
	"braid/pkg/braidtypes"
)

type fakePrinter struct {
	out strings.Builder
}

func (f *fakePrinter) Printf(format string, vals ...interface{}) {
	fmt.Fprintf(&f.out, format, vals...)
}

func (f *fakePrinter) Println(vals ...interface{}) {
	fmt.Fprintln(&f.out, vals...)
}

func newTestSession(t *testing.T) (*Session, *testutils.MockLLMClient) {
	t.Helper()
	testutils.ResetCounters()

	settings := &config.Settings{
		SystemPrompt:      "You are a helpful assistant.",
		WarningThreshold:  config.DefaultWarningThreshold,
		CriticalThreshold: config.DefaultCriticalThreshold,
		DriftThreshold:    config.DefaultDriftThreshold,
		DriftWindow:       config.DefaultDriftWindow,
		IntentDecayRate:   config.DefaultIntentDecayRate,
		MinMessagesToKeep: config.DefaultMinMessagesToKeep,
		SummaryTimeout:    config.DefaultSummaryTimeout,
		SummaryMaxTokens:  config.DefaultSummaryMaxTokens,
		TestMode:          true,
	}
	client := testutils.NewMockLLMClient()
	model := braidtypes.ModelCard{Name: "mock-model", Provider: "mock", ContextWindow: 100000, MaxOutputTokens: 256}
	ctrl := controller.New(settings, model, client, nil)
	return NewSession(ctrl, nil, nil, nil, settings), client
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		name  string
		arg   string
		ok    bool
	}{
		{`\status`, "status", "", true},
		{`\model gpt-4o`, "model", "gpt-4o", true},
		{`\save my session`, "save", "my session", true},
		{`\UNWAYPOINT 3`, "unwaypoint", "3", true},
		{`plain chat message`, "", "", false},
		{`\`, "", "", false},
		{`back\slash mid-message`, "", "", false},
	}
	for _, tt := range tests {
		name, arg, ok := parseCommand(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.name, name, tt.input)
		assert.Equal(t, tt.arg, arg, tt.input)
	}
}

func TestSendMessageStreamsToOutput(t *testing.T) {
	s, client := newTestSession(t)
	client.QueueStream("Hello", " world")

	var out fakePrinter
	s.sendMessage(&out, "hi")

	assert.Contains(t, out.out.String(), "Hello world")
	assert.Equal(t, "Hello world", s.lastResponse)
}

func TestSendMessageReportsError(t *testing.T) {
	s, client := newTestSession(t)
	client.FailStreams(fmt.Errorf("provider unavailable"))
	client.QueueStream()

	var out fakePrinter
	s.sendMessage(&out, "hi")

	assert.Contains(t, out.out.String(), "Error:")
	assert.Empty(t, s.lastResponse)
}

func TestStatusCommand(t *testing.T) {
	s, client := newTestSession(t)
	client.QueueStream("reply")

	var chat fakePrinter
	s.sendMessage(&chat, "a question about the weather")

	var out fakePrinter
	s.dispatch(&out, "status", "")

	text := out.out.String()
	assert.Contains(t, text, "State: normal")
	assert.Contains(t, text, "Messages: 2 active, 0 summarized")
}

func TestWaypointCommands(t *testing.T) {
	s, client := newTestSession(t)
	client.QueueStream("reply")

	var chat fakePrinter
	s.sendMessage(&chat, "first message")

	var out fakePrinter
	s.dispatch(&out, "waypoint", "")
	assert.Contains(t, out.out.String(), "Waypoint added at message 1")

	out.out.Reset()
	s.dispatch(&out, "waypoints", "")
	assert.Contains(t, out.out.String(), "message 1")

	out.out.Reset()
	s.dispatch(&out, "unwaypoint", "1")
	assert.Contains(t, out.out.String(), "Waypoint removed")

	out.out.Reset()
	s.dispatch(&out, "unwaypoint", "nonsense")
	assert.Contains(t, out.out.String(), "Usage:")
}

func TestWaypointWithoutMessages(t *testing.T) {
	s, _ := newTestSession(t)

	var out fakePrinter
	s.dispatch(&out, "waypoint", "")
	assert.Contains(t, out.out.String(), "Error:")
}

func TestSummaryCommandWhenEmpty(t *testing.T) {
	s, _ := newTestSession(t)

	var out fakePrinter
	s.dispatch(&out, "summary", "")
	assert.Contains(t, out.out.String(), "No summary yet.")
}

func TestRollbackCommand(t *testing.T) {
	s, client := newTestSession(t)
	client.QueueStream("reply")

	var chat fakePrinter
	s.sendMessage(&chat, "something")

	var out fakePrinter
	s.dispatch(&out, "rollback", "")
	assert.Contains(t, out.out.String(), "Last exchange removed.")

	out.out.Reset()
	s.dispatch(&out, "rollback", "")
	assert.Contains(t, out.out.String(), "Nothing to roll back.")
}

func TestUnknownCommand(t *testing.T) {
	s, _ := newTestSession(t)

	var out fakePrinter
	s.dispatch(&out, "bogus", "")
	text := out.out.String()
	assert.Contains(t, text, `Unknown command: \bogus`)
	assert.Contains(t, text, `\help`)
}

func TestAttachAndDetach(t *testing.T) {
	s, _ := newTestSession(t)

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("Alpha paragraph about widgets.\n\nBeta paragraph about gadgets."), 0o644))

	var out fakePrinter
	s.dispatch(&out, "attach", path)
	assert.Contains(t, out.out.String(), "Indexed notes.md (2 chunks)")

	out.out.Reset()
	s.dispatch(&out, "detach", "notes.md")
	assert.Contains(t, out.out.String(), "Removed notes.md")

	out.out.Reset()
	s.dispatch(&out, "detach", "notes.md")
	assert.Contains(t, out.out.String(), "No document named notes.md")
}
