package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cohortlab/weeklysurvey/internal/account"
	"github.com/cohortlab/weeklysurvey/internal/activity"
	"github.com/cohortlab/weeklysurvey/internal/calendar"
	"github.com/cohortlab/weeklysurvey/internal/catalog"
	"github.com/cohortlab/weeklysurvey/internal/handler"
	appI18n "github.com/cohortlab/weeklysurvey/internal/i18n"
	"github.com/cohortlab/weeklysurvey/internal/identity"
	"github.com/cohortlab/weeklysurvey/internal/metrics"
	"github.com/cohortlab/weeklysurvey/internal/model"
	"github.com/cohortlab/weeklysurvey/internal/results"
	"github.com/cohortlab/weeklysurvey/internal/store"
	"github.com/cohortlab/weeklysurvey/internal/survey"
	"github.com/cohortlab/weeklysurvey/internal/timeline"
)

const sessionCleanupInterval = time.Hour

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "weeklysurvey",
		Short: "Weekly pre/post survey site for a course cohort",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), catalogCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `weeklysurvey --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write logs to this file, rotated by size")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP survey server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "weeklysurvey.db", "SQLite database path")
	f.StringP("catalog", "c", "questions/survey_questions.yaml", "Question catalog (.yaml or .xlsx)")
	f.String("course-start", "2022-10-03", "First day of the course (YYYY-MM-DD)")
	f.String("timezone", "Europe/London", "Time zone the course calendar runs in")
	f.String("identity", "local", "Identity provider (local, firebase)")
	f.String("firebase-api-key", "", "Firebase web API key (identity=firebase)")
	f.String("token-secret", "", "Signing secret for local provider tokens (identity=local)")
	f.StringP("lang", "l", "en", "Default UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /dute)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.String("timeline-pre-goals", timeline.DefaultFields.PreGoals, "Pre-survey question shown as weekly goals")
	f.String("timeline-pre-plans", timeline.DefaultFields.PrePlans, "Pre-survey question shown as weekly plans")
	f.String("timeline-post-plans", timeline.DefaultFields.PostPlans, "Post-survey question shown as follow-up plans")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export survey submissions or the activity log as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "weeklysurvey.db", "SQLite database path")
	f.StringP("survey", "s", "", "Survey to export (pre, post)")
	f.Bool("activities", false, "Export the activity log instead of submissions")
	f.String("user", "", "Only export this user's activities")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)

	cmd.MarkFlagsMutuallyExclusive("survey", "activities")

	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog [path]",
		Short: "Validate a question catalog and print a summary",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCatalog,
	}
	f := cmd.Flags()
	f.StringP("catalog", "c", "questions/survey_questions.yaml", "Question catalog (.yaml or .xlsx)")
	addLogFlags(cmd)
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

	var out io.Writer = os.Stderr
	if path := v.GetString("log-file"); path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("WEEKLYSURVEY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("weeklysurvey")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/weeklysurvey")
	v.AddConfigPath("/etc/weeklysurvey")
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

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	course, err := calendar.Parse(v.GetString("course-start"), v.GetString("timezone"))
	if err != nil {
		return err
	}
	cat, err := loadCatalog(ctx, db, v.GetString("catalog"))
	if err != nil {
		return err
	}
	if err := checkMetadata(ctx, db, store.MetaCourseStart, v.GetString("course-start")); err != nil {
		return err
	}

	lang := v.GetString("lang")
	if err := initLanguage(lang); err != nil {
		return err
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	acts := activity.New(db, m)

	var (
		provider identity.Provider
		resetter handler.Resetter
	)
	switch kind := v.GetString("identity"); kind {
	case "local":
		local, err := identity.NewLocal(db, v.GetString("token-secret"), func(token string) string {
			return basePath + "/reset/" + token
		})
		if err != nil {
			return fmt.Errorf("%w: set --token-secret or WEEKLYSURVEY_TOKEN_SECRET", err)
		}
		provider, resetter = local, local
	case "firebase":
		fb, err := identity.NewFirebase(v.GetString("firebase-api-key"), "")
		if err != nil {
			return fmt.Errorf("%w: set --firebase-api-key or WEEKLYSURVEY_FIREBASE_API_KEY", err)
		}
		provider = fb
	default:
		return fmt.Errorf("unknown identity provider %q (want local or firebase)", kind)
	}

	h, err := handler.New(handler.Deps{
		Accounts: account.New(provider, db, acts, course, m),
		Surveys:  survey.New(cat, db, acts, course, m),
		Results:  results.New(cat, db, course),
		Timeline: timeline.New(db, course, timeline.Fields{
			PreGoals:  v.GetString("timeline-pre-goals"),
			PrePlans:  v.GetString("timeline-pre-plans"),
			PostPlans: v.GetString("timeline-post-plans"),
		}),
		Activity: acts,
		Resetter: resetter,
		Store:    db,
		Metrics:  m,
	}, model.SiteConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	go cleanupSessions(ctx, db)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"catalog", v.GetString("catalog"),
		"course_start", course.Start().Format(calendar.DateLayout),
		"timezone", course.Location().String(),
		"week", course.WeekNo(time.Now()),
		"identity", v.GetString("identity"),
		"lang", lang,
		"languages", appI18n.Languages(),
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

// initLanguage loads the translations and requires a locale file for the
// default language.
func initLanguage(lang string) error {
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	langs := appI18n.Languages()
	if !slices.Contains(langs, lang) {
		return fmt.Errorf("no translations for language %q (available: %s)", lang, strings.Join(langs, ", "))
	}
	return nil
}

// loadCatalog reads the question catalog and records its hash. A catalog that
// changed since the last run is loaded but logged: stored answers keep the
// question ids they were written with.
func loadCatalog(ctx context.Context, db *store.Store, path string) (*catalog.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	if err := checkMetadata(ctx, db, store.MetaCatalogHash, sha256sum(data)); err != nil {
		return nil, err
	}
	return cat, nil
}

// checkMetadata stores value under key, warning when it differs from the
// value recorded by an earlier run.
func checkMetadata(ctx context.Context, db *store.Store, key, value string) error {
	stored, err := db.GetMetadata(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if stored == value {
		return nil
	}
	if stored != "" {
		slog.Warn("configuration changed since last run", "key", key, "was", stored, "now", value)
	}
	if err := db.SetMetadata(ctx, key, value); err != nil {
		return fmt.Errorf("record %s: %w", key, err)
	}
	return nil
}

func cleanupSessions(ctx context.Context, db *store.Store) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.CleanupExpiredSessions(ctx); err != nil {
				slog.Warn("failed to clean up expired sessions", "error", err)
			}
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	activities := v.GetBool("activities")
	if !activities && v.GetString("survey") == "" {
		return errors.New("--survey is required unless --activities is set")
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var export any
	if activities {
		export, err = exportActivities(ctx, db, v.GetString("user"))
	} else {
		export, err = exportSubmissions(ctx, db, v.GetString("survey"))
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
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
	_, _ = fmt.Fprintln(w)
	return nil
}

func exportSubmissions(ctx context.Context, db *store.Store, survey string) (*model.SurveyExport, error) {
	t, err := model.ParseSurveyType(survey)
	if err != nil {
		return nil, err
	}
	records, err := db.ExportSubmissions(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("export submissions: %w", err)
	}
	courseStart, err := db.GetMetadata(ctx, store.MetaCourseStart)
	if err != nil {
		return nil, fmt.Errorf("read course start: %w", err)
	}
	slog.Info("exported submissions", "survey", t, "count", len(records))
	return &model.SurveyExport{
		Survey:      t,
		CourseStart: courseStart,
		ExportedAt:  time.Now().UTC(),
		Count:       len(records),
		Submissions: records,
	}, nil
}

func exportActivities(ctx context.Context, db *store.Store, userID string) (*model.ActivityExport, error) {
	acts, err := db.ListActivities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	if acts == nil {
		acts = []model.Activity{}
	}
	slog.Info("exported activities", "user", userID, "count", len(acts))
	return &model.ActivityExport{
		UserID:     userID,
		ExportedAt: time.Now().UTC(),
		Count:      len(acts),
		Activities: acts,
	}, nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	path := v.GetString("catalog")
	if len(args) == 1 {
		path = args[0]
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", path)
	for _, t := range model.SurveyTypes {
		qs := cat.Questions(t)
		charted := 0
		for _, q := range qs {
			if q.Chart != model.ChartNone {
				charted++
			}
		}
		fmt.Fprintf(out, "  %s survey: %d questions, %d charted\n", t, len(qs), charted)
		for _, q := range qs {
			fmt.Fprintf(out, "    %-4s %-14s %-10s %s\n", q.ID(), q.Widget, q.Chart, q.ShortLabel)
		}
	}
	fmt.Fprintf(out, "  learning objectives: %d weeks\n", cat.Weeks())
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
