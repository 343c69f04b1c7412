package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/application/pipeline"
	"github.com/garyjia/bid-reconciler/internal/application/service"
	"github.com/garyjia/bid-reconciler/internal/config"
	"github.com/garyjia/bid-reconciler/internal/container"
	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/sheet"
	"github.com/garyjia/bid-reconciler/pkg/utils"
)

// Offline run of one bidder workbook against the tender BOQ in the store.
// Exit codes: 1 setup or I/O failure, 2 blocking errors (mapping, validation,
// duplicate rows, nothing to import), 3 warnings present without -force.

type options struct {
	configPath string
	envPath    string
	tenderID   string
	bidderID   string
	bidPath    string
	boqPath    string
	reportPath string
	force      bool
	dryRun     bool
}

type outcome struct {
	RunID      string                        `json:"runId"`
	Mapping    entity.MappingValidation      `json:"mapping"`
	Match      *matchSummary                 `json:"match,omitempty"`
	Currency   *entity.CurrencyNormalization `json:"currency,omitempty"`
	Validation *entity.ValidationResult      `json:"validation,omitempty"`
	Import     *service.CommitOutcome        `json:"import,omitempty"`
	Error      string                        `json:"error,omitempty"`
}

type matchSummary struct {
	Exact     int `json:"exact"`
	Fuzzy     int `json:"fuzzy"`
	Extra     int `json:"extra"`
	Unmatched int `json:"unmatched"`
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "configs/config.yaml", "path to config file")
	flag.StringVar(&opts.envPath, "env", ".env", "optional env file")
	flag.StringVar(&opts.tenderID, "tender", "", "tender id (required)")
	flag.StringVar(&opts.bidderID, "bidder", "", "bidder id (required)")
	flag.StringVar(&opts.bidPath, "bid", "", "bidder workbook (.xlsx, required)")
	flag.StringVar(&opts.boqPath, "boq", "", "master BOQ workbook to store for the tender before the run")
	flag.StringVar(&opts.reportPath, "report", "", "write the comparison report to this .xlsx path")
	flag.BoolVar(&opts.force, "force", false, "import despite validation warnings")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "stop after validation")
	flag.Parse()

	if opts.tenderID == "" || opts.bidderID == "" || opts.bidPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(opts.configPath, opts.envPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	if err := c.Start(ctx); err != nil {
		log.Fatalf("Failed to start container: %v", err)
	}

	out, code := run(ctx, c, opts, logger)
	if err := c.Close(); err != nil {
		logger.Error("Container shutdown failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to write outcome: %v", err)
	}
	os.Exit(code)
}

func run(ctx context.Context, c *container.Container, opts options, logger *zap.Logger) (outcome, int) {
	svc := c.Services().Import
	decoder := c.Decoder()
	var out outcome

	fail := func(err error) (outcome, int) {
		out.Error = err.Error()
		switch {
		case errors.Is(err, pipeline.ErrBlockingValidation),
			errors.Is(err, pipeline.ErrDuplicateRow),
			errors.Is(err, pipeline.ErrNothingToImport):
			return out, 2
		case errors.Is(err, pipeline.ErrWarningsUnacknowledged):
			return out, 3
		default:
			return out, 1
		}
	}

	if opts.boqPath != "" {
		items, err := readWorkbook(opts.boqPath, decoder.LoadBoqWorkbook)
		if err != nil {
			return fail(fmt.Errorf("BOQ workbook: %w", err))
		}
		if err := svc.ReplaceBoq(ctx, opts.tenderID, items); err != nil {
			return fail(err)
		}
		logger.Info("Master BOQ stored", zap.String("tender_id", opts.tenderID), zap.Int("items", len(items)))
	}

	parsed, err := readWorkbook(opts.bidPath, decoder.Decode)
	if err != nil {
		return fail(fmt.Errorf("bid workbook: %w", err))
	}

	snap, err := svc.StartRun(ctx, opts.tenderID, opts.bidderID)
	if err != nil {
		return fail(err)
	}
	out.RunID = snap.ID

	if _, err := svc.Parse(ctx, snap.ID, parsed); err != nil {
		return fail(err)
	}

	mapping, err := svc.Map(ctx, snap.ID, nil)
	if err != nil {
		return fail(err)
	}
	out.Mapping = mapping.Validation

	match, err := svc.Match(ctx, snap.ID)
	if err != nil {
		return fail(err)
	}
	out.Match = &matchSummary{
		Exact:     match.ExactMatches,
		Fuzzy:     match.FuzzyMatches,
		Extra:     match.ExtraItems,
		Unmatched: match.UnmatchedItems,
	}

	norm, err := svc.Normalize(ctx, snap.ID)
	if err != nil {
		return fail(err)
	}
	out.Currency = &norm.Currency

	verdict, err := svc.Validate(ctx, snap.ID)
	if err != nil {
		return fail(err)
	}
	out.Validation = &verdict

	if opts.reportPath != "" {
		if err := writeReport(ctx, svc, snap.ID, opts.reportPath); err != nil {
			return fail(err)
		}
	}

	if opts.dryRun {
		_ = svc.Cancel(ctx, snap.ID)
		return out, 0
	}

	result, err := svc.Commit(ctx, snap.ID, pipeline.CommitOptions{ForceImport: opts.force})
	if err != nil {
		return fail(err)
	}
	out.Import = &result
	return out, 0
}

func readWorkbook[T any](path string, decode func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	return decode(f)
}

func writeReport(ctx context.Context, svc service.ImportService, runID, path string) error {
	report, err := svc.Report(ctx, runID)
	if err != nil {
		return err
	}

	snap := report.Snapshot
	content := sheet.Report{
		RunID:        snap.ID,
		TenderID:     snap.TenderID,
		BidderID:     snap.BidderID,
		BaseCurrency: snap.Normalization.Currency.BaseCurrency,
		Items:        snap.Normalization.Items,
		Master:       report.Master,
	}
	if snap.Validation != nil {
		content.Issues = snap.Validation.Issues
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := sheet.WriteReport(f, content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
