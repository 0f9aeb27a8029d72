package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Gaziyo/tuutta-genie/internal/assessment"
	"github.com/Gaziyo/tuutta-genie/internal/extract"
	"github.com/Gaziyo/tuutta-genie/internal/handler"
	appI18n "github.com/Gaziyo/tuutta-genie/internal/i18n"
	"github.com/Gaziyo/tuutta-genie/internal/llm"
	"github.com/Gaziyo/tuutta-genie/internal/model"
	"github.com/Gaziyo/tuutta-genie/internal/search"
	"github.com/Gaziyo/tuutta-genie/internal/storage"
	"github.com/Gaziyo/tuutta-genie/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "genie",
		Short: "AI learning companion: assessment generation, tutoring, and web search",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `genie --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "genie.db", "SQLite database path")
	f.String("backend-url", "http://localhost:8000", "Hosted AI backend base URL")
	f.String("backend-key", "", "API key for the hosted backend")
	f.String("fallback-key", "", "Direct provider API key enabling fallback (or set GENIE_FALLBACK_KEY)")
	f.String("fallback-url", "", "Direct provider base URL (empty for the provider default)")
	f.String("model", "gpt-4o-mini", "Preferred completion model")
	f.String("voice", "nova", "Text-to-speech voice")
	f.StringP("lang", "l", "en", "Response language for error messages (en, es)")
	f.String("storage-endpoint", "", "MinIO endpoint for uploads (empty keeps uploads inline)")
	f.String("storage-access-key", "", "MinIO access key")
	f.String("storage-secret-key", "", "MinIO secret key")
	f.String("storage-bucket", "genie-uploads", "MinIO bucket for source files")
	f.Bool("storage-ssl", true, "Use TLS for MinIO")
	f.Int("scrape-limit", 5, "Max result pages to scrape on the full search tier")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [file]",
		Short: "Generate an assessment from a local file and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.String("backend-url", "http://localhost:8000", "Hosted AI backend base URL")
	f.String("backend-key", "", "API key for the hosted backend")
	f.String("fallback-key", "", "Direct provider API key enabling fallback")
	f.String("fallback-url", "", "Direct provider base URL (empty for the provider default)")
	f.String("model", "gpt-4o-mini", "Preferred completion model")
	f.String("voice", "nova", "Text-to-speech voice")
	f.StringP("type", "t", "general", "Assessment type (general, mathematics, speaking, reading, writing, listening)")
	f.IntP("count", "n", 5, "Number of questions")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored assessments and evaluations as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "genie.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("GENIE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("genie")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/genie")
	v.AddConfigPath("/etc/genie")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func newLLM(v *viper.Viper) *llm.Client {
	return llm.New(
		v.GetString("backend-url"),
		v.GetString("backend-key"),
		v.GetString("fallback-key"),
		v.GetString("fallback-url"),
		v.GetString("model"),
		v.GetString("voice"),
	)
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	llmClient := newLLM(v)
	if err := llmClient.Ping(cmd.Context()); err != nil {
		slog.Warn("AI backend unreachable at startup", "url", v.GetString("backend-url"), "error", err)
	} else {
		slog.Info("AI backend OK", "url", v.GetString("backend-url"), "model", v.GetString("model"))
	}

	// Object storage is optional; without it uploads stay inline as data URIs.
	var fetcher extract.Fetcher
	var uploads handler.Uploader
	if endpoint := v.GetString("storage-endpoint"); endpoint != "" {
		objects, err := storage.New(cmd.Context(), endpoint,
			v.GetString("storage-access-key"), v.GetString("storage-secret-key"),
			v.GetString("storage-bucket"), v.GetBool("storage-ssl"))
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		fetcher = objects
		uploads = objects
		slog.Info("object storage enabled", "endpoint", endpoint, "bucket", v.GetString("storage-bucket"))
	}

	extractor := extract.New(extract.NewVisionOCR(llmClient), fetcher)

	searchClient := search.New(
		search.NewBackendTier(v.GetString("backend-url"), v.GetString("backend-key")),
		search.NewDuckDuckGo(10),
		search.NewFullScraper(v.GetInt("scrape-limit")),
	)

	generator := assessment.NewGenerator(llmClient, llmClient)
	evaluator := assessment.NewEvaluator(llmClient)

	h := handler.New(db, llmClient, extractor, searchClient, generator, evaluator, uploads)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("model"),
		"backend_url", v.GetString("backend-url"),
		"fallback", v.GetString("fallback-key") != "",
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	at := v.GetString("type")
	if !model.IsValidAssessmentType(at) {
		return fmt.Errorf("unknown assessment type %q", at)
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	llmClient := newLLM(v)
	extractor := extract.New(extract.NewVisionOCR(llmClient), nil)

	name := filepath.Base(path)
	mimeType := mimeTypeForFile(name)
	upload := model.FileUpload{
		Name:       name,
		MimeType:   mimeType,
		ContentRef: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
		Size:       int64(len(data)),
	}
	text, err := extractor.Extract(cmd.Context(), &upload)
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}

	generator := assessment.NewGenerator(llmClient, llmClient)
	a, err := generator.Generate(cmd.Context(), text, model.AssessmentType(at), v.GetInt("count"), "")
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	out, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return writeOutput(v.GetString("output"), out)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	assessments, err := db.ListAssessments()
	if err != nil {
		return fmt.Errorf("list assessments: %w", err)
	}

	export := model.AssessmentExport{
		ExportedAt: time.Now(),
		Count:      len(assessments),
	}
	for _, a := range assessments {
		evals, err := db.ListEvaluations(a.ID)
		if err != nil {
			return fmt.Errorf("list evaluations for %s: %w", a.ID, err)
		}
		export.Assessments = append(export.Assessments, model.AssessmentRecord{
			Assessment:  a,
			Evaluations: evals,
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return writeOutput(v.GetString("output"), data)
}

func writeOutput(outPath string, data []byte) error {
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

func mimeTypeForFile(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
