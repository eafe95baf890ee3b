// ligantctl - command line client for the ligant protein design backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ligant-ai/ligant-client/internal/api"
	"github.com/ligant-ai/ligant-client/internal/chat"
	"github.com/ligant-ai/ligant-client/internal/config"
	"github.com/ligant-ai/ligant-client/internal/jobs"
	"github.com/ligant-ai/ligant-client/internal/model"
	"github.com/ligant-ai/ligant-client/internal/store"
	"github.com/ligant-ai/ligant-client/internal/util"
	"github.com/ligant-ai/ligant-client/internal/viz"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	cmd := "chat"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "chat":
		err = runChat(args)
	case "conversations":
		err = runConversations(args)
	case "jobs":
		err = runJobs(args)
	case "job":
		err = runJob(args)
	case "design":
		err = runDesign(args)
	case "health":
		err = runHealth(args)
	case "version":
		fmt.Printf("ligantctl %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`ligantctl - protein design chat client

Usage:
  ligantctl [chat]            interactive chat session (default)
  ligantctl conversations     list conversations
  ligantctl jobs              list design jobs
  ligantctl job <id>          show status and results of one job
  ligantctl design [flags]    launch a structure generation job
  ligantctl health            check backend health
  ligantctl version           print version

Configuration is read from ~/.ligant/config.toml. LIGANT_SERVER_URL and
LIGANT_API_TOKEN override the file.
`)
}

// newClient builds an API client from the loaded configuration.
func newClient(cfg *config.Config) *api.Client {
	client := api.NewClient(cfg.Server.BaseURL, cfg.Auth.Token).
		WithTimeout(time.Duration(cfg.Server.TimeoutSecs) * time.Second).
		WithArtifactRate(cfg.Artifacts.RatePerSec, cfg.Artifacts.Burst)
	client.WithSessionExpiredHandler(func() {
		fmt.Fprintln(os.Stderr, "Session expired. Set LIGANT_API_TOKEN and try again.")
	})
	return client
}

// =============================================================================
// CHAT
// =============================================================================

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	conversationID := fs.String("conversation", "", "resume an existing conversation id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client := newClient(cfg)
	if !client.IsConfigured() {
		return errors.New("no API token configured; set LIGANT_API_TOKEN or auth.token in config")
	}

	// The local store is best-effort: chat works without it.
	var localStore *store.Store
	if cfg.Store.Enabled {
		localStore, err = store.Open(cfg.Store.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: local store unavailable: %v\n", err)
			localStore = nil
		} else {
			defer localStore.Close()
		}
	}

	tracker := jobs.NewTracker()
	renderer := newRenderer(os.Stdout)

	session := chat.NewSession(client).WithJobSink(tracker)
	session.OnError(func(err error) {
		fmt.Fprintf(os.Stderr, "stream error: %v\n", err)
	})
	session.OnChange(func() {
		if !session.IsStreaming() {
			renderer.render(session)
		}
	})

	coordinator := viz.NewCoordinator(tracker, client, client, session)
	if localStore != nil {
		coordinator.WithRecorder(localStore)
	}
	coordinator.Start()
	defer coordinator.Close()

	// Token rotation without restart: pick up config edits while running.
	if path, err := config.ConfigPath(); err == nil {
		if watcher, werr := config.NewWatcher(path, func(updated *config.Config) {
			client.SetToken(updated.Auth.Token)
		}); werr == nil {
			if watcher.Watch() == nil {
				defer watcher.Close()
			}
		}
	}

	ctx := context.Background()

	if err := session.RefreshConversations(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load conversations: %v\n", err)
		if localStore != nil {
			if cached, cerr := localStore.CachedConversations(); cerr == nil && len(cached) > 0 {
				fmt.Fprintln(os.Stderr, "Showing cached conversation list:")
				printConversations(cached)
			}
		}
	} else if localStore != nil {
		localStore.CacheConversations(session.Conversations())
	}

	if *conversationID != "" {
		if err := session.SelectConversation(ctx, *conversationID); err != nil {
			return fmt.Errorf("could not open conversation %s: %w", *conversationID, err)
		}
		renderer.render(session)
	}

	fmt.Println("ligant chat. Type a message, /help for commands, /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := handleChatCommand(ctx, session, tracker, localStore, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		if err := session.SendMessage(ctx, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		renderer.render(session)
	}
}

// handleChatCommand processes a slash command. Returns true when the REPL
// should exit.
func handleChatCommand(ctx context.Context, session *chat.Session, tracker *jobs.Tracker, localStore *store.Store, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Print(`Commands:
  /conversations        list conversations
  /open <id>            switch to a conversation
  /new                  start a fresh conversation
  /jobs                 list pending design jobs
  /options              show the current option block, if any
  /quit                 exit
`)
		return false, nil

	case "/conversations":
		if err := session.RefreshConversations(ctx); err != nil {
			return false, err
		}
		printConversations(session.Conversations())
		return false, nil

	case "/open":
		if len(fields) < 2 {
			return false, errors.New("usage: /open <conversation-id>")
		}
		if err := session.SelectConversation(ctx, fields[1]); err != nil {
			return false, err
		}
		if localStore != nil {
			if records, err := localStore.VisualizationRecords(fields[1]); err == nil && len(records) > 0 {
				fmt.Printf("  [%d structure set(s) generated by background jobs here]\n", len(records))
			}
		}
		return false, nil

	case "/new":
		session.Reset()
		fmt.Println("Started a new conversation.")
		return false, nil

	case "/jobs":
		pending := tracker.Jobs()
		if len(pending) == 0 {
			fmt.Println("No pending design jobs.")
			return false, nil
		}
		for _, job := range pending {
			fmt.Printf("  %s  (conversation %s, started %s)\n",
				job.JobID, job.ConversationID, job.CreatedAt.Format(time.RFC3339))
		}
		return false, nil

	case "/options":
		set, ok := session.ActiveOptions()
		if !ok {
			fmt.Println("No options to choose from.")
			return false, nil
		}
		for _, opt := range set.Options {
			fmt.Printf("  %d. %s", opt.Number, opt.Label)
			if opt.Description != "" {
				fmt.Printf(" - %s", opt.Description)
			}
			fmt.Println()
		}
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// renderer prints messages that finished since the previous render. The
// session mutates its transcript in place during streaming, so rendering
// waits for idle state.
type renderer struct {
	mu      sync.Mutex
	out     *os.File
	printed int
	convID  string
}

func newRenderer(out *os.File) *renderer {
	return &renderer{out: out}
}

func (r *renderer) render(session *chat.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ConversationID() != r.convID {
		r.convID = session.ConversationID()
		r.printed = 0
	}

	messages := session.Messages()
	for _, msg := range messages[min(r.printed, len(messages)):] {
		r.printMessage(msg)
	}
	r.printed = len(messages)
}

func (r *renderer) printMessage(msg model.Message) {
	switch msg.Role {
	case model.RoleUser:
		fmt.Fprintf(r.out, "\nyou: %s\n", msg.Content)
	case model.RoleSystem:
		fmt.Fprintf(r.out, "\n[%s]\n", strings.TrimSpace(msg.Content))
	default:
		fmt.Fprintf(r.out, "\nassistant: %s\n", strings.TrimSpace(msg.Content))
		for _, tc := range msg.ToolCalls {
			state := "running"
			if tc.Resolved {
				state = "done"
			}
			fmt.Fprintf(r.out, "  [tool %s: %s]\n", tc.Name, state)
		}
		if n := len(msg.Visualizations); n > 0 {
			fmt.Fprintf(r.out, "  [%d structure(s) attached]\n", n)
		}
		if msg.ModelUsed != "" {
			fmt.Fprintf(r.out, "  (model: %s)\n", msg.ModelUsed)
		}
	}
}

func printConversations(conversations []model.Conversation) {
	if len(conversations) == 0 {
		fmt.Println("No conversations.")
		return
	}
	for _, conv := range conversations {
		title := conv.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("  %s  %s", conv.ID, util.TruncateRunes(title, 60))
		if conv.Preview != "" {
			fmt.Printf("  %s", util.TruncateRunes(conv.Preview, 48))
		}
		if conv.LastActivity != "" {
			fmt.Printf("  (%s)", conv.LastActivity)
		}
		fmt.Println()
	}
}

// =============================================================================
// NON-INTERACTIVE COMMANDS
// =============================================================================

func runConversations(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client := newClient(cfg)

	conversations, err := client.Conversations(context.Background())
	if err != nil {
		return err
	}
	printConversations(conversations)
	return nil
}

func runJobs(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client := newClient(cfg)

	list, err := client.ListJobs(context.Background())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No jobs.")
		return nil
	}
	for _, job := range list {
		fmt.Printf("  %s  %-10s", job.JobID, job.Status)
		if job.Contigs != "" {
			fmt.Printf("  contigs=%s", job.Contigs)
		}
		if job.ErrorMessage != "" {
			fmt.Printf("  error=%s", job.ErrorMessage)
		}
		fmt.Println()
	}
	return nil
}

func runJob(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: ligantctl job <id>")
	}
	jobID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client := newClient(cfg)
	ctx := context.Background()

	status, err := client.JobStatus(ctx, jobID)
	if err != nil {
		return err
	}
	fmt.Printf("Job %s: %s\n", status.JobID, status.Status)
	if status.Progress != nil {
		fmt.Printf("  progress: %.0f%%\n", *status.Progress*100)
	}
	if status.Message != "" {
		fmt.Printf("  message: %s\n", status.Message)
	}

	if status.Status == "completed" {
		results, err := client.JobResults(ctx, jobID)
		if err != nil {
			return err
		}
		fmt.Printf("  designs: %d\n", results.NumDesigns)
		for _, id := range results.OutputPDBIDs {
			fmt.Printf("    %s\n", id)
		}
	}
	return nil
}

func runDesign(args []string) error {
	fs := flag.NewFlagSet("design", flag.ExitOnError)
	input := fs.String("input", "", "input PDB artifact id (required)")
	contigs := fs.String("contigs", "", "contig specification (required)")
	numDesigns := fs.Int("designs", 1, "number of designs to generate")
	diffuserT := fs.Int("t", 0, "diffuser timesteps (0 = backend default)")
	hotspots := fs.String("hotspots", "", "comma-separated hotspot residues")
	watch := fs.Bool("watch", false, "stream progress until the job finishes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" || *contigs == "" {
		return errors.New("usage: ligantctl design -input <pdb-id> -contigs <spec> [-designs N] [-t N] [-hotspots A56,B12] [-watch]")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client := newClient(cfg)
	ctx := context.Background()

	req := api.DesignJobRequest{
		InputPDBID: *input,
		Contigs:    *contigs,
		NumDesigns: *numDesigns,
		DiffuserT:  *diffuserT,
	}
	if *hotspots != "" {
		req.HotspotRes = strings.Split(*hotspots, ",")
	}

	resp, err := client.StartDesignJob(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Job %s started (%s)\n", resp.JobID, resp.Status)

	if !*watch {
		return nil
	}

	done := make(chan model.JobState, 1)
	monitor := jobs.NewMonitor(resp.JobID, client).
		OnUpdate(func(state model.JobState) {
			if state.Progress >= 0 {
				fmt.Printf("  %s  %.0f%%  %s\n", state.Status, state.Progress*100, state.Message)
			} else {
				fmt.Printf("  %s  %s\n", state.Status, state.Message)
			}
		}).
		OnTerminal(func(state model.JobState) {
			done <- state
		})
	monitor.Start()
	defer monitor.Stop()

	<-monitor.Done()
	select {
	case state := <-done:
		if state.Status == model.JobStatusCompleted {
			fmt.Printf("Completed: %d artifact(s)\n", len(state.OutputArtifacts))
			for _, id := range state.OutputArtifacts {
				fmt.Printf("    %s\n", id)
			}
		} else {
			fmt.Printf("Failed: %s\n", state.Message)
		}
	default:
		fmt.Println("Stream closed before the job finished. Check 'ligantctl job' later.")
	}
	return nil
}

func runHealth(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client := newClient(cfg)

	health, err := client.Health(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Backend: %s\n", health.Status)
	if health.GPUAvailable {
		fmt.Printf("GPU: %s\n", health.GPUName)
	} else {
		fmt.Println("GPU: not available")
	}
	return nil
}
