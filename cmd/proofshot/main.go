package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/v0xg/proofshot/internal/capture"
	"github.com/v0xg/proofshot/internal/consent"
	"github.com/v0xg/proofshot/internal/extract"
	"github.com/v0xg/proofshot/internal/imaging"
	"github.com/v0xg/proofshot/internal/session"
)

var (
	outputDir   string
	width       int
	height      int
	headful     bool
	navTimeout  int
	batchSize   int
	maxRetries  int
	retryDelay  int
	thumbWidth  int
	provider    string
	model       string
	maxMessages int
	noHighlight bool
	verbose     bool
	profileRoot string
)

var logger *log.Logger

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "proofshot",
		Short: "Capture framed screenshots proving a piece of text appears on a page",
		Long: `proofshot navigates to a page, defeats consent overlays and lazy loading,
locates a target text, and saves a framed screenshot of the region around it.

Examples:
  proofshot capture "https://example.com/pricing" "Cancel anytime"
  proofshot batch requests.json
  proofshot auto "https://example.com" --provider claude`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = log.NewWithOptions(os.Stderr, log.Options{
				ReportTimestamp: true,
				Prefix:          "proofshot",
			})
			if verbose {
				logger.SetLevel(log.DebugLevel)
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&outputDir, "output", "o", ".", "Directory for output PNGs")
	pf.IntVar(&width, "width", 1280, "Viewport width")
	pf.IntVar(&height, "height", 720, "Viewport height")
	pf.BoolVar(&headful, "headful", false, "Run the browser with a visible window")
	pf.IntVar(&navTimeout, "timeout", 30, "Navigation timeout (seconds)")
	pf.IntVar(&thumbWidth, "thumb-width", 0, "Also write a thumbnail at this width (0 disables)")
	pf.BoolVar(&noHighlight, "no-highlight", false, "Skip outlining the matched text")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")
	pf.StringVar(&profileRoot, "profile-root", "", "Directory for throwaway browser profiles (default: system temp)")

	captureCmd := &cobra.Command{
		Use:   "capture <url> <text>",
		Short: "Capture a single framed screenshot",
		Args:  cobra.ExactArgs(2),
		RunE:  runCapture,
	}

	batchCmd := &cobra.Command{
		Use:   "batch <requests.json>",
		Short: "Capture many screenshots from a JSON request file",
		Long: `batch reads a JSON array of requests and captures each one:

  [
    {"id": "pricing", "url": "https://example.com/pricing", "text": "Cancel anytime"},
    {"id": "hero",    "url": "https://example.com",         "text": "Ship faster"}
  ]

Failed items are reported in the summary and never abort the run.`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}
	batchCmd.Flags().IntVar(&batchSize, "batch-size", 3, "Concurrent captures per window")
	batchCmd.Flags().IntVar(&maxRetries, "retries", 2, "Retries per failed capture")
	batchCmd.Flags().IntVar(&retryDelay, "retry-delay", 1000, "Base retry backoff (ms)")

	autoCmd := &cobra.Command{
		Use:   "auto <url>",
		Short: "Extract quotable passages with an AI provider and capture each",
		Args:  cobra.ExactArgs(1),
		RunE:  runAuto,
	}
	autoCmd.Flags().StringVar(&provider, "provider", "", "AI provider: claude, openai (default: from env or claude)")
	autoCmd.Flags().StringVar(&model, "model", "", "Specific model override")
	autoCmd.Flags().IntVar(&maxMessages, "max-messages", 5, "Maximum passages to extract")
	autoCmd.Flags().IntVar(&batchSize, "batch-size", 3, "Concurrent captures per window")
	autoCmd.Flags().IntVar(&maxRetries, "retries", 2, "Retries per failed capture")
	autoCmd.Flags().IntVar(&retryDelay, "retry-delay", 1000, "Base retry backoff (ms)")

	rootCmd.AddCommand(captureCmd, batchCmd, autoCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newOrchestrator() (*capture.Orchestrator, *session.Manager) {
	sessions := session.NewManager(session.Config{
		ViewportWidth:  width,
		ViewportHeight: height,
		Headless:       !headful,
		ProfileRoot:    profileRoot,
		Logger:         logger,
	})
	orch := capture.NewOrchestrator(sessions, capture.Options{
		NavTimeout:       time.Duration(navTimeout) * time.Second,
		DisableHighlight: noHighlight,
		Consent:          consent.Config{Logger: logger},
		Logger:           logger,
	})
	return orch, sessions
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCapture(cmd *cobra.Command, args []string) error {
	url, text := args[0], args[1]

	ctx, cancel := signalContext()
	defer cancel()

	orch, sessions := newOrchestrator()
	defer sessions.Teardown()

	fmt.Printf("→ Capturing %q on %s... ", text, url)
	res, err := orch.Process(ctx, capture.Request{ID: "capture", URL: url, TargetText: text})
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("capture failed: %w", err)
	}
	if !res.OK() {
		fmt.Println("failed")
		return fmt.Errorf("capture failed: %s (%s)", res.Failure, res.FailureDetail)
	}
	fmt.Printf("done (%dx%d, via %s)\n", res.Width, res.Height, res.Strategy)

	path, err := writeResult(res)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Saved to %s\n", path)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	requests, err := loadRequests(args[0])
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return fmt.Errorf("no requests in %s", args[0])
	}

	ctx, cancel := signalContext()
	defer cancel()

	orch, sessions := newOrchestrator()
	defer sessions.Teardown()

	results := runRequests(ctx, orch, requests)
	return writeSummary(requests, results)
}

func runAuto(cmd *cobra.Command, args []string) error {
	url := args[0]

	selectedProvider := provider
	if selectedProvider == "" {
		selectedProvider = os.Getenv("PROOFSHOT_DEFAULT_PROVIDER")
		if selectedProvider == "" {
			selectedProvider = "claude"
		}
	}

	extractor, err := extract.NewProvider(selectedProvider, model)
	if err != nil {
		return fmt.Errorf("AI provider init failed: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	orch, sessions := newOrchestrator()
	defer sessions.Teardown()

	fmt.Printf("→ Reading %s... ", url)
	page, err := readPageContent(ctx, sessions, url)
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("page read failed: %w", err)
	}
	fmt.Printf("done (%d chars)\n", len(page.Text))

	fmt.Printf("→ Extracting passages via %s... ", selectedProvider)
	messages, err := extractor.ExtractMessages(ctx, page, maxMessages)
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("extraction failed: %w", err)
	}
	fmt.Printf("done (%d passages)\n", len(messages))
	if len(messages) == 0 {
		fmt.Println("✓ Nothing quotable on this page")
		return nil
	}
	for i, m := range messages {
		fmt.Printf("  [%d] %q\n", i+1, m)
	}

	requests := make([]capture.Request, len(messages))
	for i, m := range messages {
		requests[i] = capture.Request{
			ID:         fmt.Sprintf("passage-%02d", i+1),
			URL:        url,
			TargetText: m,
		}
	}

	results := runRequests(ctx, orch, requests)
	return writeSummary(requests, results)
}

// readPageContent loads the URL once and pulls title and visible text for the
// extractor.
func readPageContent(ctx context.Context, sessions *session.Manager, url string) (extract.PageContent, error) {
	page, err := sessions.Acquire(ctx)
	if err != nil {
		return extract.PageContent{}, err
	}
	defer sessions.Release(page)

	nav := page.Timeout(time.Duration(navTimeout) * time.Second)
	defer nav.CancelTimeout()
	if err := nav.Navigate(url); err != nil {
		return extract.PageContent{}, err
	}
	if err := nav.WaitLoad(); err != nil {
		return extract.PageContent{}, err
	}
	session.WaitStable(page, 6*time.Second)

	res, err := page.Eval(`() => ({
		title: document.title,
		text: (document.body ? document.body.innerText : '').slice(0, 20000)
	})`)
	if err != nil {
		return extract.PageContent{}, err
	}
	return extract.PageContent{
		URL:   url,
		Title: res.Value.Get("title").String(),
		Text:  res.Value.Get("text").String(),
	}, nil
}

func runRequests(ctx context.Context, orch *capture.Orchestrator, requests []capture.Request) []*capture.Result {
	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	spin.Suffix = fmt.Sprintf(" capturing 0/%d", len(requests))
	spin.Start()
	defer spin.Stop()

	opts := capture.BatchOptions{
		BatchSize:  batchSize,
		MaxRetries: maxRetries,
		RetryDelay: time.Duration(retryDelay) * time.Millisecond,
		Logger:     logger,
		OnProgress: func(done, total int, item capture.Request) {
			spin.Suffix = fmt.Sprintf(" capturing %d/%d (last: %s)", done, total, item.ID)
		},
	}
	return capture.RunBatch(ctx, orch, requests, opts)
}

// loadRequests parses the batch request file and fills in missing IDs.
func loadRequests(path string) ([]capture.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw []struct {
		ID   string `json:"id"`
		URL  string `json:"url"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	requests := make([]capture.Request, 0, len(raw))
	for i, r := range raw {
		if r.URL == "" || r.Text == "" {
			return nil, fmt.Errorf("request %d in %s is missing url or text", i+1, path)
		}
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("request-%02d", i+1)
		}
		requests = append(requests, capture.Request{ID: id, URL: r.URL, TargetText: r.Text})
	}
	return requests, nil
}

// writeResult saves the PNG (and optional thumbnail) and returns the main path.
func writeResult(res *capture.Result) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", outputDir, err)
	}

	path := filepath.Join(outputDir, sanitizeFilename(res.ID)+".png")
	if err := os.WriteFile(path, res.Image, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	if thumbWidth > 0 {
		thumb, err := imaging.Thumbnail(res.Image, uint(thumbWidth))
		if err != nil {
			logger.Warn("thumbnail generation failed", "id", res.ID, "err", err)
			return path, nil
		}
		thumbPath := filepath.Join(outputDir, sanitizeFilename(res.ID)+"_thumb.png")
		if err := os.WriteFile(thumbPath, thumb, 0o644); err != nil {
			logger.Warn("thumbnail write failed", "path", thumbPath, "err", err)
		}
	}
	return path, nil
}

// writeSummary saves successful captures and prints one line per request.
// A failed item never fails the command unless everything failed.
func writeSummary(requests []capture.Request, results []*capture.Result) error {
	var succeeded int
	fmt.Println()
	for i, res := range results {
		if res == nil {
			fmt.Printf("  ✗ %s: no result\n", requests[i].ID)
			continue
		}
		if !res.OK() {
			fmt.Printf("  ✗ %s: %s (%s)\n", res.ID, res.Failure, res.FailureDetail)
			continue
		}
		path, err := writeResult(res)
		if err != nil {
			fmt.Printf("  ✗ %s: %v\n", res.ID, err)
			continue
		}
		succeeded++
		fmt.Printf("  ✓ %s → %s (%dx%d, via %s, %d requests blocked)\n",
			res.ID, path, res.Width, res.Height, res.Strategy, res.Consent.BlockedRequests)
	}
	fmt.Printf("\n✓ %d/%d captured\n", succeeded, len(requests))

	if succeeded == 0 {
		return fmt.Errorf("all %d captures failed", len(requests))
	}
	return nil
}

// sanitizeFilename keeps IDs safe to use as file names.
func sanitizeFilename(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
