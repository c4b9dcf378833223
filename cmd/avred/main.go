// Command avred locates, verifies, and reports the byte ranges inside a
// file that trigger detection by a remote scanner.
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/common-nighthawk/go-figure"

	"github.com/an0x03e8/avred/config"
	"github.com/an0x03e8/avred/model"
	"github.com/an0x03e8/avred/notify"
	"github.com/an0x03e8/avred/oracle"
	"github.com/an0x03e8/avred/orchestrator"
	"github.com/an0x03e8/avred/report"
	"github.com/an0x03e8/avred/storage"
	"github.com/an0x03e8/avred/xlog"
)

var (
	filePath = flag.String("file", "", "path to the file to scan")
	rescan   = flag.Bool("rescan", false, "re-run the scan stage even if a prior outcome exists")
	recover_ = flag.Bool("recover", false, "list incomplete runs left by a previous process and exit")
)

func main() {
	flag.Parse()

	banner := figure.NewFigure("avred", "standard", true)
	banner.Print()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := xlog.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	db, err := storage.NewDatabase(cfg.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("open database")
	}
	defer db.Close()

	outcomes := storage.NewOutcomeStore(db)
	oracleLog := storage.NewOracleLog(db)
	deadLetter := storage.NewDeadLetterQueue(db)

	if *recover_ {
		runRecovery(logger, outcomes, db)
		return
	}

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: avred -file <path>")
		os.Exit(1)
	}

	if err := run(cfg, logger, outcomes, oracleLog, deadLetter, *filePath, *rescan); err != nil {
		logger.WithError(err).Error("run failed")
		os.Exit(1)
	}
}

func runRecovery(logger *xlog.Logger, outcomes *storage.OutcomeStore, db *storage.Database) {
	entry := logger.WithComponent("recovery")
	rs := storage.NewRecoveryService(outcomes, db, entry)
	count, err := rs.Resume()
	if err != nil {
		entry.WithError(err).Fatal("recovery failed")
	}
	fmt.Printf("%d incomplete run(s) ready to resume\n", count)
}

func run(cfg *config.Config, logger *xlog.Logger, outcomes *storage.OutcomeStore, oracleLog *storage.OracleLog, deadLetter *storage.DeadLetterQueue, path string, rescan bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	filename := filepath.Base(path)
	hash := sha256.Sum256(data)
	fileHash := hex.EncodeToString(hash[:])

	var outcome *model.Outcome
	if !rescan {
		outcome, err = outcomes.GetByFileHash(fileHash)
		if err != nil {
			return fmt.Errorf("load prior outcome: %w", err)
		}
	}
	if outcome == nil {
		outcome = model.NewOutcome(model.FileInfo{Name: filename, Size: len(data), Hash: fileHash})
	}
	outcome.ScannerName = cfg.ScannerName

	entry := logger.WithRun(outcome.RunID).WithField("file", filename)

	baseOracle := newHTTPOracle(cfg.ScannerURL, cfg.ScannerTimeout, outcome.RunID, oracleLog)
	resilientOracle := oracle.NewResilient(baseOracle, oracle.DefaultResilientConfig())
	var rateLimited oracle.Oracle = resilientOracle
	if cfg.MaxOracleCallsPerRun > 0 {
		rateLimited = oracle.NewRateLimited(resilientOracle, cfg.MaxOracleCallsPerRun, time.Minute)
	}
	countingOracle := oracle.NewCounting(rateLimited)

	bar := pb.StartNew(0)
	progressOracle := &progressReporter{inner: countingOracle, bar: bar, counting: countingOracle}

	orc := orchestrator.New(entry, progressOracle, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orc.Process(ctx, outcome, data, filename); err != nil {
		bar.Finish()
		if saveErr := deadLetter.Add(outcome.RunID, filename, err); saveErr != nil {
			entry.WithError(saveErr).Error("failed to record dead letter entry")
		}
		return fmt.Errorf("process file: %w", err)
	}
	bar.Finish()

	if err := outcomes.Save(outcome); err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}

	fmt.Println(report.Summary(outcome))
	for _, m := range outcome.Matches {
		fmt.Println(report.MatchDump(data, m))
	}

	if cfg.TelegramNotifyToken != "" {
		notifier, err := notify.NewTelegramNotifier(cfg.TelegramNotifyToken, cfg.TelegramNotifyChatID, entry)
		if err != nil {
			entry.WithError(err).Warn("telegram notifier unavailable")
		} else if err := notifier.NotifyCompletion(outcome); err != nil {
			entry.WithError(err).Warn("failed to send completion notification")
		}
	}

	return nil
}

// progressReporter drives a terminal progress bar off the oracle's running
// call count, replacing the Python CLI's periodic "chunks done" print —
// the pipeline never knows the eventual call total up front, so the bar
// grows its target alongside the count rather than starting from one.
type progressReporter struct {
	inner    oracle.Oracle
	bar      *pb.ProgressBar
	counting *oracle.Counting
}

func (p *progressReporter) Detects(ctx context.Context, data []byte, filename string) (bool, error) {
	detected, err := p.inner.Detects(ctx, data, filename)
	calls := p.counting.Calls()
	if calls > p.bar.Total() {
		p.bar.SetTotal(calls)
	}
	p.bar.SetCurrent(calls)
	return detected, err
}

func (p *progressReporter) Health(ctx context.Context) error {
	return p.inner.Health(ctx)
}

// httpOracle is the reference scanner transport: it POSTs the candidate
// bytes to a remote scanning endpoint and interprets a JSON
// {"detected": bool} response. This is wiring glue outside the core's
// scope — the core only depends on oracle.Oracle.
type httpOracle struct {
	url       string
	client    *http.Client
	runID     string
	oracleLog *storage.OracleLog
}

func newHTTPOracle(url string, timeout time.Duration, runID string, oracleLog *storage.OracleLog) *httpOracle {
	return &httpOracle{
		url:       url,
		client:    &http.Client{Timeout: timeout},
		runID:     runID,
		oracleLog: oracleLog,
	}
}

type detectionResponse struct {
	Detected bool `json:"detected"`
}

func (h *httpOracle) Detects(ctx context.Context, data []byte, filename string) (bool, error) {
	start := time.Now()
	detected, err := h.detects(ctx, data, filename)
	if logErr := h.oracleLog.Record(h.runID, filename, len(data), detected, err, time.Since(start)); logErr != nil {
		// Audit logging must never mask the real detection result.
		fmt.Fprintf(os.Stderr, "oracle log: %v\n", logErr)
	}
	return detected, err
}

func (h *httpOracle) detects(ctx context.Context, data []byte, filename string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url+"/scan?filename="+filename, bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("build scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := h.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("scan request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("scan request returned %d: %s", resp.StatusCode, string(body))
	}

	var result detectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode scan response: %w", err)
	}
	return result.Detected, nil
}

func (h *httpOracle) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scanner unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
