// Package shell provides the interactive chat interface and input
// routing for braid. Lines starting with a backslash are control
// commands; everything else is sent to the model as a user message.
package shell

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell/v2"

	"braid/internal/catalog"
	"braid/internal/config"
	"braid/internal/controller"
	"braid/internal/logger"
	"braid/internal/render"
	"braid/internal/store"
)

// printer is the subset of ishell.Context used by command handlers.
// ishell.Context satisfies it; tests use a buffer-backed fake.
type printer interface {
	Printf(format string, vals ...interface{})
	Println(vals ...interface{})
}

// Session routes interactive input to the controller and formats the
// results for the terminal.
type Session struct {
	controller *controller.Controller
	renderer   *render.Renderer
	catalog    *catalog.Catalog
	sessions   *store.SessionStore
	settings   *config.Settings

	lastResponse string
}

// NewSession wires a shell session around an existing controller.
func NewSession(ctrl *controller.Controller, renderer *render.Renderer, cat *catalog.Catalog, sessions *store.SessionStore, settings *config.Settings) *Session {
	return &Session{
		controller: ctrl,
		renderer:   renderer,
		catalog:    cat,
		sessions:   sessions,
		settings:   settings,
	}
}

// ProcessInput handles one line from the interactive shell.
func (s *Session) ProcessInput(c *ishell.Context) {
	if len(c.RawArgs) == 0 {
		return
	}
	input := strings.TrimSpace(strings.Join(c.RawArgs, " "))
	if input == "" || strings.HasPrefix(input, "%%") {
		return
	}

	if name, arg, ok := parseCommand(input); ok {
		if name == "exit" || name == "quit" {
			c.Stop()
			return
		}
		s.dispatch(c, name, arg)
		return
	}

	s.sendMessage(c, input)
}

// parseCommand splits a backslash command into its name and argument.
// Returns ok=false for plain chat input.
func parseCommand(input string) (name, arg string, ok bool) {
	if !strings.HasPrefix(input, `\`) {
		return "", "", false
	}
	rest := strings.TrimPrefix(input, `\`)
	if rest == "" {
		return "", "", false
	}
	parts := strings.SplitN(rest, " ", 2)
	name = strings.ToLower(parts[0])
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return name, arg, true
}

func (s *Session) sendMessage(c printer, text string) {
	response, err := s.controller.HandleUserMessage(context.Background(), text, func(chunk string) {
		c.Printf("%s", chunk)
	})
	c.Println()
	if err != nil {
		logger.Error("Turn failed", "error", err)
		c.Printf("Error: %s\n", err.Error())
		return
	}
	s.lastResponse = response
}

func (s *Session) dispatch(c printer, name, arg string) {
	switch name {
	case "help":
		s.printHelp(c)
	case "status":
		s.printStatus(c)
	case "model":
		s.switchModel(c, arg)
	case "models":
		s.listModels(c)
	case "waypoint":
		s.addWaypoint(c)
	case "waypoints":
		s.listWaypoints(c)
	case "unwaypoint":
		s.removeWaypoint(c, arg)
	case "summary":
		s.printSummary(c)
	case "render":
		s.renderLast(c)
	case "regen":
		s.regenerate(c)
	case "rollback":
		s.rollback(c)
	case "attach":
		s.attachDocument(c, arg)
	case "detach":
		s.detachDocument(c, arg)
	case "memory":
		s.controller.SetMemory(arg)
		c.Println("Memory block updated.")
	case "scratchpad":
		s.controller.SetScratchpad(arg)
		c.Println("Scratchpad block updated.")
	case "save":
		s.saveSession(c, arg)
	case "load":
		s.loadSession(c, arg)
	case "sessions":
		s.listSessions(c)
	default:
		c.Printf("Unknown command: \\%s\n", name)
		c.Println(`Type \help for available commands`)
	}
}

func (s *Session) printHelp(c printer) {
	c.Println(`Commands:
  \status            show context budget and intent state
  \model <name>      switch models
  \models            list available models
  \waypoint          mark the current message as a summarization boundary
  \waypoints         list waypoints
  \unwaypoint <idx>  remove the waypoint at a message index
  \summary           show the active conversation summary
  \render            re-display the last response as rendered markdown
  \regen             regenerate the last response
  \rollback          remove the last exchange
  \attach <path>     index a document for retrieval
  \detach <id>       remove an indexed document
  \memory <text>     set the long-term memory block
  \scratchpad <text> set the scratchpad block
  \save [name]       save the session
  \load <id>         load a saved session
  \sessions          list saved sessions
  \exit              quit`)
}

func (s *Session) printStatus(c printer) {
	status := s.controller.Status()
	c.Printf("State: %s\n", status.State)
	c.Printf("Tokens: %d / %d (%.1f%%)\n", status.CurrentTokens, status.ContextWindow, status.Percentage*100)
	c.Printf("Messages: %d active, %d summarized\n", status.ActiveCount, status.SummarizedCount)
	c.Printf("Intent: %s\n", s.controller.IntentMode())
}

func (s *Session) switchModel(c printer, name string) {
	if name == "" {
		c.Println("Usage: \\model <name>")
		return
	}
	if err := s.controller.SetModelByName(name); err != nil {
		c.Printf("Error: %s\n", err.Error())
		return
	}
	c.Printf("Switched to %s\n", name)
}

func (s *Session) listModels(c printer) {
	for _, card := range s.catalog.Models() {
		c.Printf("%-32s %-10s window=%d\n", card.Name, card.Provider, card.ContextWindow)
	}
}

func (s *Session) addWaypoint(c printer) {
	record, err := s.controller.AddWaypoint()
	if err != nil {
		c.Printf("Error: %s\n", err.Error())
		return
	}
	c.Printf("Waypoint added at message %d\n", record.MessageIndex)
}

func (s *Session) listWaypoints(c printer) {
	records := s.controller.Waypoints()
	if len(records) == 0 {
		c.Println("No waypoints.")
		return
	}
	for _, record := range records {
		c.Printf("message %d (created %s)\n", record.MessageIndex, record.CreatedAt.Format("15:04:05"))
	}
}

func (s *Session) removeWaypoint(c printer, arg string) {
	index, err := strconv.Atoi(arg)
	if err != nil {
		c.Println("Usage: \\unwaypoint <message-index>")
		return
	}
	if !s.controller.RemoveWaypoint(index) {
		c.Printf("No waypoint at message %d\n", index)
		return
	}
	c.Printf("Waypoint removed at message %d\n", index)
}

func (s *Session) printSummary(c printer) {
	xml := s.controller.SummaryXML()
	if xml == "" {
		c.Println("No summary yet.")
		return
	}
	c.Println(xml)
}

func (s *Session) renderLast(c printer) {
	if s.lastResponse == "" {
		c.Println("Nothing to render.")
		return
	}
	if s.renderer == nil {
		c.Println(s.lastResponse)
		return
	}
	rendered, err := s.renderer.Render(s.lastResponse)
	if err != nil {
		c.Printf("Error: %s\n", err.Error())
		return
	}
	c.Println(rendered)
}

func (s *Session) regenerate(c printer) {
	response, err := s.controller.Regenerate(context.Background(), func(chunk string) {
		c.Printf("%s", chunk)
	})
	c.Println()
	if err != nil {
		c.Printf("Error: %s\n", err.Error())
		return
	}
	s.lastResponse = response
}

func (s *Session) rollback(c printer) {
	if !s.controller.Rollback() {
		c.Println("Nothing to roll back.")
		return
	}
	c.Println("Last exchange removed.")
}

func (s *Session) attachDocument(c printer, path string) {
	if path == "" {
		c.Println("Usage: \\attach <path>")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		c.Printf("Error: %s\n", err.Error())
		return
	}
	docID := filepath.Base(path)
	chunks := s.controller.AttachDocument(docID, path, string(data))
	c.Printf("Indexed %s (%d chunks)\n", docID, chunks)
}

func (s *Session) detachDocument(c printer, docID string) {
	if docID == "" {
		c.Println("Usage: \\detach <id>")
		return
	}
	if !s.controller.DetachDocument(docID) {
		c.Printf("No document named %s\n", docID)
		return
	}
	c.Printf("Removed %s\n", docID)
}

func (s *Session) saveSession(c printer, name string) {
	if err := s.controller.SaveSession(name); err != nil {
		c.Printf("Error: %s\n", err.Error())
		return
	}
	c.Printf("Session saved as %s\n", s.controller.SessionID())
}

func (s *Session) loadSession(c printer, id string) {
	if id == "" {
		c.Println("Usage: \\load <session-id>")
		return
	}
	if err := s.controller.LoadSession(id); err != nil {
		c.Printf("Error: %s\n", err.Error())
		return
	}
	c.Printf("Session %s loaded.\n", id)
}

func (s *Session) listSessions(c printer) {
	if s.sessions == nil {
		c.Println("No session store configured.")
		return
	}
	ids, err := s.sessions.List()
	if err != nil {
		c.Printf("Error: %s\n", err.Error())
		return
	}
	if len(ids) == 0 {
		c.Println("No saved sessions.")
		return
	}
	for _, id := range ids {
		c.Println(id)
	}
}

// Banner returns the greeting printed when the shell starts.
func Banner(version string) string {
	return fmt.Sprintf("braid v%s - context-aware chat\nType '\\help' for commands or '\\exit' to quit.", version)
}
