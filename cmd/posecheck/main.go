package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/danielpatrickdp/posture-check/internal/estimator"
	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/pipeline"
	"github.com/danielpatrickdp/posture-check/internal/rules"
	"github.com/danielpatrickdp/posture-check/internal/state"
)

// #region main
func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred closes run before exit.
func run(args []string) int {
	fs := flag.NewFlagSet("posecheck", flag.ContinueOnError)
	dbPath := fs.String("db", envOr("POSECHECK_DB", "posecheck.db"), "evaluation history database")
	estAddr := fs.String("estimator", envOr("ESTIMATOR_ADDR", "localhost:50051"), "pose estimation service address")
	rulesPath := fs.String("rules", "", "rule config (.json, .yaml); built-in rules when empty")
	workers := fs.Int("workers", pipeline.DefaultConfig().Workers, "frames evaluated in parallel")
	originMissing := fs.Bool("origin-missing", false, "treat keypoints at (0,0) as undetected")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: posecheck [--rules rules.yaml] [--db path] [--estimator host:port] file...")
		fmt.Fprintln(os.Stderr, "  images (.jpg .jpeg .png .bmp) go through the estimator; .json files hold keypoints")
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	set := rules.DefaultRuleSet()
	if *rulesPath != "" {
		var err error
		if set, err = rules.LoadFile(*rulesPath); err != nil {
			log.Printf("failed to load rules: %v", err)
			return 1
		}
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		log.Printf("failed to open store: %v", err)
		return 1
	}
	defer store.Close()

	evalCfg := eval.Config{TreatOriginAsMissing: *originMissing}
	evaluator := eval.NewEvaluator(set, evalCfg)
	cfg := pipeline.DefaultConfig()
	cfg.Workers = *workers

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// The estimator connection is only opened when an image is given.
	var est pipeline.Estimator
	var client *estimator.Client
	if hasImages(fs.Args()) {
		client, err = estimator.NewClient(*estAddr)
		if err != nil {
			log.Printf("failed to connect to estimator at %s: %v", *estAddr, err)
			return 1
		}
		defer client.Close()
		est = client
	}

	p := pipeline.New(evaluator, est, pipeline.NewStoreRecorder(store, set, evalCfg), cfg, logger)

	fmt.Printf("posecheck: %d rules (%s) | DB: %s\n", set.Len(), strings.Join(set.Names(), ", "), *dbPath)

	code := 0
	for _, path := range fs.Args() {
		if err := process(ctx, p, path); err != nil {
			log.Printf("%s: %v", path, err)
			code = 1
		}
	}
	return code
}

// #endregion main

// #region process
func process(ctx context.Context, p *pipeline.Pipeline, path string) error {
	kind, format := pipeline.Classify(path)
	switch kind {
	case pipeline.InputImage:
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		res, err := p.ProcessImage(ctx, path, data, format)
		if err != nil {
			return err
		}
		printResult(res)
		return nil

	case pipeline.InputKeypoints:
		frames, err := pipeline.LoadKeypointFile(path)
		if err != nil {
			return err
		}
		for _, res := range p.Run(ctx, frames) {
			if res.Err != nil {
				return res.Err
			}
			printResult(res)
		}
		return nil

	default:
		return fmt.Errorf("unsupported file type")
	}
}

func printResult(res pipeline.FrameResult) {
	labels := res.Labels()
	if len(labels) == 0 {
		fmt.Printf("[%s #%d] no person detected\n", res.Source, res.Index)
		return
	}
	for i, label := range labels {
		fmt.Printf("[%s #%d] person %d: %s\n", res.Source, res.Index, i, label)
	}
}

// #endregion process

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func hasImages(paths []string) bool {
	for _, p := range paths {
		if kind, _ := pipeline.Classify(p); kind == pipeline.InputImage {
			return true
		}
	}
	return false
}

// #endregion helpers
