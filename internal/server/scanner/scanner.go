// Package scanner classifies uploaded payloads as clean or infected before
// the lifecycle layer commits them. It runs a cheap extension heuristic first
// and hands survivors to an external signature engine (ClamAV by default).
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/oculis/filevault/internal/logging"
)

// Verdict is the scanner's classification of a payload.
type Verdict int

const (
	// VerdictClean means the payload may be stored and served.
	VerdictClean Verdict = iota
	// VerdictInfected means a threat was identified, by heuristic or engine.
	VerdictInfected
	// VerdictError means the engine ran but failed; distinct from a threat.
	VerdictError
)

// Result is the narrow verdict type produced at the scanner boundary.
// Enclosing logic branches on Verdict, never on raw engine output.
type Result struct {
	Verdict Verdict
	// Threat names the detected threat when Verdict is VerdictInfected.
	Threat string
	// Err describes the engine failure when Verdict is VerdictError.
	Err string

	// Diagnostics recorded regardless of verdict.
	FileType  string
	Signature string
	Duration  time.Duration
}

// Clean reports whether the payload passed.
func (r Result) Clean() bool { return r.Verdict == VerdictClean }

// Config controls scanner behavior.
type Config struct {
	// EngineCommand is the external scan binary (e.g. "clamscan").
	EngineCommand string
	// HighRiskExtensions are rejected by the heuristic without an engine call.
	HighRiskExtensions []string
	// FailClosed treats an unavailable engine as a scan error instead of
	// falling back to a heuristic-only clean verdict.
	FailClosed bool
	// TempDir holds scoped scan artifacts; empty means the OS default.
	TempDir string
}

// Scanner is the two-stage content scanning pipeline.
type Scanner struct {
	cmd        string
	highRisk   map[string]struct{}
	failClosed bool
	tempDir    string
	logger     logging.Logger
}

// New constructs a Scanner from config.
func New(cfg Config, logger logging.Logger) *Scanner {
	highRisk := make(map[string]struct{}, len(cfg.HighRiskExtensions))
	for _, ext := range cfg.HighRiskExtensions {
		highRisk[strings.ToLower(ext)] = struct{}{}
	}
	return &Scanner{
		cmd:        cfg.EngineCommand,
		highRisk:   highRisk,
		failClosed: cfg.FailClosed,
		tempDir:    cfg.TempDir,
		logger:     logger.With("module", "scanner"),
	}
}

// Scan classifies the payload. The heuristic stage fails fast on high-risk
// filenames; otherwise the payload is written to a scoped temp file and
// handed to the engine. The temp file never outlives the call.
func (s *Scanner) Scan(ctx context.Context, data []byte, originalName string) Result {
	fileType := mimetype.Detect(data).String()

	if s.isHighRisk(originalName) {
		return Result{
			Verdict:   VerdictInfected,
			Threat:    "High-risk file type detected",
			FileType:  fileType,
			Signature: "High-risk extension",
		}
	}

	tempPath := filepath.Join(s.tempDirOrDefault(), "scan-"+uuid.New().String())
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return Result{
			Verdict:   VerdictError,
			Err:       fmt.Sprintf("failed to stage payload for scan: %v", err),
			FileType:  fileType,
			Signature: "Scan error",
		}
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil {
			s.logger.Error(ctx, "failed to remove scan temp file", "path", tempPath, "error", err)
		}
	}()

	start := time.Now()
	res, invokeErr := s.runEngine(ctx, tempPath)
	res.Duration = time.Since(start)
	res.FileType = fileType

	if invokeErr != nil {
		// The engine could not be invoked at all. Default behavior degrades
		// to the heuristic-only verdict; FailClosed turns it into an error.
		if s.failClosed {
			s.logger.Error(ctx, "scan engine unavailable, failing closed", "error", invokeErr)
			return Result{
				Verdict:   VerdictError,
				Err:       fmt.Sprintf("scan engine unavailable: %v", invokeErr),
				FileType:  fileType,
				Signature: "Scan error",
			}
		}
		s.logger.Warn(ctx, "scan engine unavailable, falling back to heuristic-only verdict", "error", invokeErr)
		return Result{
			Verdict:   VerdictClean,
			FileType:  fileType,
			Signature: "Heuristic validation only (scan engine unavailable)",
		}
	}

	return res
}

func (s *Scanner) isHighRisk(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := s.highRisk[ext]
	return ok
}

func (s *Scanner) tempDirOrDefault() string {
	if s.tempDir != "" {
		return s.tempDir
	}
	return os.TempDir()
}
