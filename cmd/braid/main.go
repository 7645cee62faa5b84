// Package main provides the braid CLI entry point. Braid is a
// context-aware chat client that keeps long conversations inside the
// model's context window through budget tracking, drift detection, and
// background summarization.
package main

import (
	"fmt"
	"os"

	"github.com/abiosoft/ishell/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"braid/internal/catalog"
	"braid/internal/config"
	"braid/internal/controller"
	"braid/internal/llm"
	"braid/internal/logger"
	"braid/internal/render"
	"braid/internal/shell"
	"braid/internal/store"
	"braid/internal/version"
)

var (
	logLevel  string
	logFile   string
	testMode  bool
	modelName string
)

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "braid",
	Short: "braid - context-aware LLM chat",
	Long: `Braid is a terminal chat client that manages the model's context window
for you: it tracks token pressure, detects topic drift, and summarizes
older turns in the background so conversations can run indefinitely.`,
	Run: runChat,
}

// chatCmd is the explicit form of the default behavior.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Run:   runChat,
}

// modelsCmd lists the embedded model catalog.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models",
	Run:   runModels,
}

// sessionsCmd lists saved sessions.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved sessions",
	Run:   runSessions,
}

// versionCmd prints build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.GetFormattedVersion())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&testMode, "test-mode", false, "Run in deterministic test mode")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "Model to chat with (defaults to configured model)")

	for _, flag := range []string{"log-level", "log-file", "test-mode", "model"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	if err := logger.Configure(logLevel, logFile, testMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

func runChat(_ *cobra.Command, _ []string) {
	logger.Info("Starting braid", "version", version.GetVersion())

	settings, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}
	settings.TestMode = testMode

	cat, err := catalog.Load()
	if err != nil {
		logger.Fatal("Failed to load model catalog", "error", err)
	}

	name := modelName
	if name == "" {
		name = settings.DefaultModel
	}
	card, err := cat.Lookup(name)
	if err != nil {
		logger.Fatal("Unknown model", "model", name, "error", err)
	}

	client, err := llm.NewClient(settings, card)
	if err != nil {
		logger.Fatal("Failed to build provider client", "model", name, "error", err)
	}

	sessions, err := store.NewSessionStore(settings.DataDir)
	if err != nil {
		logger.Fatal("Failed to open session store", "dir", settings.DataDir, "error", err)
	}

	renderer, err := render.NewRenderer()
	if err != nil {
		logger.Fatal("Failed to initialize renderer", "error", err)
	}

	ctrl := controller.New(settings, card, client, sessions)
	session := shell.NewSession(ctrl, renderer, cat, sessions, settings)

	sh := ishell.New()
	sh.SetPrompt("braid> ")

	// Built-in commands are removed so every line reaches the router.
	sh.DeleteCmd("exit")
	sh.DeleteCmd("help")

	sh.Println(shell.Banner(version.GetVersion()))
	sh.NotFound(session.ProcessInput)
	sh.Run()

	// Let any background summarization finish before exiting so the
	// autosaved state is consistent.
	ctrl.WaitForSummarization()
	logger.Info("Session ended", "id", ctrl.SessionID())
}

func runModels(_ *cobra.Command, _ []string) {
	cat, err := catalog.Load()
	if err != nil {
		logger.Fatal("Failed to load model catalog", "error", err)
	}
	for _, card := range cat.Models() {
		marker := " "
		if card.Deprecated {
			marker = "!"
		}
		fmt.Printf("%s %-32s %-10s window=%-8d max_output=%d\n",
			marker, card.Name, card.Provider, card.ContextWindow, card.MaxOutputTokens)
	}
}

func runSessions(_ *cobra.Command, _ []string) {
	settings, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}
	sessions, err := store.NewSessionStore(settings.DataDir)
	if err != nil {
		logger.Fatal("Failed to open session store", "dir", settings.DataDir, "error", err)
	}
	ids, err := sessions.List()
	if err != nil {
		logger.Fatal("Failed to list sessions", "error", err)
	}
	if len(ids) == 0 {
		fmt.Println("No saved sessions.")
		return
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}
