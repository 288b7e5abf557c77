// Package cli implements the milestone-tracker CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rcliao/milestone-tracker/internal/catalog"
	"github.com/rcliao/milestone-tracker/internal/config"
	"github.com/rcliao/milestone-tracker/internal/evidence"
	"github.com/rcliao/milestone-tracker/internal/logging"
	"github.com/rcliao/milestone-tracker/internal/model"
	"github.com/rcliao/milestone-tracker/internal/profile"
	"github.com/rcliao/milestone-tracker/internal/responses"
	"github.com/rcliao/milestone-tracker/internal/store"
)

var (
	cfgFile string
	v       = viper.New()
	cfg     *config.Config
	logger  = zap.NewNop()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "milestone-tracker",
	Short: "Track child developmental milestones",
	Long: "Record caregiver answers to developmental milestones, see progress for the child's age, " +
		"and reconcile completed milestones with the remote evaluation service.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/.milestone-tracker/config.yaml)")
	pf.StringP("db", "d", "", "Database path (default: $MILESTONE_TRACKER_DB or ~/.milestone-tracker/tracker.db)")
	pf.String("backend", "", "Storage backend: sqlite or redis")
	pf.String("redis-url", "", "Redis URL for the redis backend")
	pf.StringP("profile", "p", "", "Child profile (default: default)")
	pf.String("service-url", "", "Evaluation service base URL")
	pf.String("catalog", "", "Milestone catalog JSON replacing the built-in one")
	pf.String("log-level", "", "Log level: debug, info, warn, error")

	for key, flag := range map[string]string{
		"db":               "db",
		"backend":          "backend",
		"redis.url":        "redis-url",
		"profile":          "profile",
		"service.base_url": "service-url",
		"catalog.file":     "catalog",
		"log.level":        "log-level",
	} {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.Init(v, cfgFile); err != nil {
		return err
	}
	c, err := config.FromViper(v)
	if err != nil {
		return err
	}
	cfg = c
	logger = logging.New(cfg.Log)
	return nil
}

func openStore() (store.Store, error) {
	switch cfg.Backend {
	case "redis":
		return store.NewRedisStore(cfg.Redis.URL)
	default:
		return store.NewSQLiteStore(cfg.DB)
	}
}

func loadCatalog() (*catalog.Catalog, error) {
	if cfg.Catalog.File != "" {
		return catalog.Load(cfg.Catalog.File)
	}
	return catalog.Default(), nil
}

// session is the opened state most commands work on.
type session struct {
	store   store.Store
	catalog *catalog.Catalog
	book    *responses.Book
	profile *profile.Profile
}

func openSession(ctx context.Context, obs responses.Observer) (*session, error) {
	cat, err := loadCatalog()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	s, err := openStore()
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	opts := []responses.Option{responses.WithLogger(logger)}
	if obs != nil {
		opts = append(opts, responses.WithObserver(obs))
	}
	book, err := responses.Open(ctx, cat, s, cfg.Profile, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	prof, err := profile.Load(ctx, s, cfg.Profile)
	if err != nil {
		s.Close()
		return nil, err
	}
	return &session{store: s, catalog: cat, book: book, profile: prof}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// newEvidenceRecorder uploads to object storage when an endpoint is
// configured and references local files otherwise.
func newEvidenceRecorder(book *responses.Book) (*evidence.Recorder, error) {
	var up evidence.Uploader = evidence.LocalUploader{Dir: cfg.Evidence.LocalDir}
	if cfg.Evidence.Endpoint != "" {
		m, err := evidence.NewMinioUploader(evidence.MinioConfig{
			Endpoint:  cfg.Evidence.Endpoint,
			AccessKey: cfg.Evidence.AccessKey,
			SecretKey: cfg.Evidence.SecretKey,
			Bucket:    cfg.Evidence.Bucket,
			Region:    cfg.Evidence.Region,
			UseSSL:    cfg.Evidence.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		up = m
	}
	return evidence.NewRecorder(up, book, cfg.Evidence.Salt, evidence.WithLogger(logger)), nil
}

func printJSON(w io.Writer, val any) {
	b, _ := json.MarshalIndent(val, "", "  ")
	fmt.Fprintln(w, string(b))
}

// exitCode is 2 for failures worth retrying and 1 otherwise.
func exitCode(err error) int {
	if model.IsRetryable(err) {
		return 2
	}
	return 1
}

func exitErr(msg string, err error) {
	logger.Sync()
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(exitCode(err))
}

// Execute runs the root command and exits non-zero on failure.
func Execute(ctx context.Context) {
	err := RootCmd.ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}
