package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-ocr/internal/classify"
	"github.com/zombor/receipt-ocr/internal/pipeline"
	"github.com/zombor/receipt-ocr/internal/receipt"
	"github.com/zombor/receipt-ocr/internal/recognition"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-ocr")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "receipt-ocr.db", "Database file path")
		storagePath     = fs.StringLong("storage", "./receipts", "Storage directory path")
		recognizerType  = fs.StringLong("recognizer", "tesseract", "OCR engines in fallback order: 'tesseract', 'gemini', 'ollama' (e.g. gemini,tesseract)")
		tesseractLang   = fs.StringLong("tesseract-lang", "eng", "Tesseract language")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name for recognition")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl, llama3.2-vision)")
		classifierModel = fs.StringLong("classifier-model", "none", "Category model fused with the rules: 'none' or 'gemini'")
		minConfidence   = fs.Float64Long("min-line-confidence", recognition.DefaultConfidenceFloor, "Drop recognized lines below this confidence")
		matchThreshold  = fs.Float64Long("match-threshold", receipt.DefaultMatchThreshold, "Minimum similarity for fuzzy item matches")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		scan            = fs.BoolLong("scan", "Process the image files given as arguments, print JSON and exit")
		workers         = fs.IntLong("workers", 4, "Receipts processed at once in --scan mode")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_OCR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	// Initialize recognizers; more than one name builds a fallback chain
	var engines []recognition.Recognizer
	for _, name := range strings.Split(*recognizerType, ",") {
		engine, err := newRecognizer(strings.TrimSpace(name), recognizerConfig{
			tesseractLang: *tesseractLang,
			geminiKey:     apiKey,
			geminiModel:   *geminiModel,
			ollamaURL:     *ollamaURL,
			ollamaModel:   *ollamaModel,
		})
		if err != nil {
			slog.Error("Failed to initialize recognizer", "type", name, "error", err)
			os.Exit(1)
		}
		engines = append(engines, engine)
	}
	var recognizer recognition.Recognizer = engines[0]
	if len(engines) > 1 {
		recognizer = recognition.NewChain(engines...)
	}
	defer recognizer.Close()

	// Initialize classifier, optionally with a model signal
	var classifierOpts []classify.Option
	switch *classifierModel {
	case "none", "":
	case "gemini":
		if apiKey == "" {
			slog.Error("Gemini API key is required for the gemini classifier model")
			os.Exit(1)
		}
		model, err := classify.NewGeminiModel(apiKey, "")
		if err != nil {
			slog.Error("Failed to initialize Gemini classifier", "error", err)
			os.Exit(1)
		}
		defer model.Close()
		classifierOpts = append(classifierOpts, classify.WithModel(model))
	default:
		slog.Error("Invalid classifier model", "type", *classifierModel, "valid", "none or gemini")
		os.Exit(1)
	}

	p := pipeline.New(recognizer,
		pipeline.WithClassifier(classify.New(classifierOpts...)),
		pipeline.WithConfidenceFloor(*minConfidence),
	)

	if *scan {
		if err := scanFiles(p, fs.GetArgs(), *workers); err != nil {
			slog.Error("Scan failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	receiptService := receipt.NewService(db, p, store)
	receiptService.SetMatchThreshold(*matchThreshold)

	// Initialize server
	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(receiptService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

type recognizerConfig struct {
	tesseractLang string
	geminiKey     string
	geminiModel   string
	ollamaURL     string
	ollamaModel   string
}

// newRecognizer creates a single OCR engine by name
func newRecognizer(name string, cfg recognizerConfig) (recognition.Recognizer, error) {
	switch name {
	case "tesseract":
		slog.Info("Initializing Tesseract recognizer...", "language", cfg.tesseractLang)
		return recognition.NewTesseract(cfg.tesseractLang), nil
	case "gemini":
		if cfg.geminiKey == "" {
			return nil, fmt.Errorf("gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini recognizer...", "model", cfg.geminiModel)
		return recognition.NewGemini(cfg.geminiKey, cfg.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return recognition.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid recognizer type %q (valid: tesseract, gemini or ollama)", name)
	}
}

// scanFiles runs the pipeline over files and writes the results to stdout
// as a JSON array in argument order
func scanFiles(p *pipeline.Pipeline, paths []string, workers int) error {
	if len(paths) == 0 {
		return fmt.Errorf("no files given")
	}

	images := make([]recognition.Image, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		images = append(images, recognition.Image{Data: data, ContentType: receipt.ContentTypeFor(path)})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := p.ProcessAll(ctx, images, workers)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
