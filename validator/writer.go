package validator

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/teranos/validus/anomalies"
	"github.com/teranos/validus/artifact"
	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/logger"
	"github.com/teranos/validus/stats"
)

// Well-known keys on the validation output and execution result.
const (
	// AnomaliesKey is the output-artifact key on the execution result.
	AnomaliesKey = "anomalies"

	// PropertyBlessedKey is the artifact custom property holding the
	// per-split blessing map.
	PropertyBlessedKey = "blessed"

	// AlertsPropertyKey is the execution-result side-channel key for the
	// packed alert list. It is present only when at least one alert
	// exists; absence (not an empty list) signals "no alerts".
	AlertsPropertyKey = "component_generated_alerts"

	// AnomaliesFileName is the per-split serialized report file name.
	AnomaliesFileName = "SchemaDiff.json"

	stagingSuffix = ".staging"
	backupSuffix  = ".prev"
)

// Writer persists per-split anomaly reports and assembles the run's
// execution result.
type Writer struct {
	log *zap.SugaredLogger
}

// NewWriter creates an output writer.
func NewWriter(log *zap.SugaredLogger) *Writer {
	if log == nil {
		log = logger.ComponentLogger("validator.writer")
	}
	return &Writer{log: log}
}

// Write persists one report per retained split under the output
// artifact's URI at Split-{name}/SchemaDiff.json, annotates the output
// descriptor (split list, span, blessing map) and returns the execution
// result with the packed alert list attached when any alert exists.
//
// Writes are staged then committed: every report is first written to a
// temporary sibling file, and only after all stage writes succeed is
// each renamed into place. A failure during staging removes the staged
// files and commits nothing. During commit, each prior final file is
// moved aside first; a rename failure restores every file already
// touched, so a prior run's output is never left half overwritten.
// Serialization is canonical, making re-runs byte-stable.
func (w *Writer) Write(
	output *artifact.Artifact,
	retained []string,
	span int64,
	reports map[string]*anomalies.Report,
	blessings map[string]Blessing,
	alerts []Alert,
) (*artifact.ExecutionResult, error) {
	staged := make([]string, 0, len(retained))
	cleanup := func() {
		for _, path := range staged {
			os.Remove(path)
		}
	}

	// Stage phase: all writes happen against temporary names.
	for _, split := range retained {
		report, ok := reports[split]
		if !ok {
			cleanup()
			return nil, errors.Newf("no anomaly report produced for split %s", split)
		}

		dir := filepath.Join(output.URI, stats.SplitDir(split))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			cleanup()
			return nil, errors.IOf(err, "creating output directory for split %s", split)
		}

		raw, err := report.Marshal()
		if err != nil {
			cleanup()
			return nil, err
		}

		stagePath := filepath.Join(dir, AnomaliesFileName+stagingSuffix)
		if err := os.WriteFile(stagePath, raw, 0o644); err != nil {
			cleanup()
			return nil, errors.IOf(err, "staging anomalies for split %s", split)
		}
		staged = append(staged, stagePath)
	}

	// Commit phase: move each prior final file aside, then rename the
	// staged file into place. On failure, everything already committed is
	// rolled back to its prior content before returning.
	backups := make(map[string]string)
	committed := make([]string, 0, len(retained))
	for i, split := range retained {
		finalPath := filepath.Join(output.URI, stats.SplitDir(split), AnomaliesFileName)
		backupPath := finalPath + backupSuffix

		if _, err := os.Stat(finalPath); err == nil {
			if err := os.Rename(finalPath, backupPath); err != nil {
				w.rollback(committed, backups)
				cleanup()
				return nil, errors.IOf(err, "preparing commit for split %s", split)
			}
			backups[finalPath] = backupPath
		}

		if err := os.Rename(staged[i], finalPath); err != nil {
			w.rollback(committed, backups)
			cleanup()
			return nil, errors.IOf(err, "committing anomalies for split %s", split)
		}
		committed = append(committed, finalPath)

		w.log.Debugw("anomalies written",
			logger.FieldSplit, split,
			logger.FieldFile, finalPath)
	}
	for _, backupPath := range backups {
		os.Remove(backupPath)
	}

	encoded, err := artifact.EncodeSplitNames(retained)
	if err != nil {
		return nil, err
	}
	output.SplitNames = encoded
	output.Span = span

	blessingProperty := make(map[string]string, len(blessings))
	for split, b := range blessings {
		blessingProperty[split] = b.String()
	}
	output.SetProperty(PropertyBlessedKey, blessingProperty)

	result := artifact.NewExecutionResult()
	result.AddOutput(AnomaliesKey, output)
	if len(alerts) > 0 {
		result.SetExecutionProperty(AlertsPropertyKey, alerts)
	}

	return result, nil
}

// rollback undoes a partially applied commit phase: files already
// renamed into place are removed, then every file moved aside is
// restored to its final path. Best effort; restore failures are logged.
func (w *Writer) rollback(committed []string, backups map[string]string) {
	for _, finalPath := range committed {
		os.Remove(finalPath)
	}
	for finalPath, backupPath := range backups {
		if err := os.Rename(backupPath, finalPath); err != nil {
			w.log.Warnw("failed to restore prior anomalies during rollback",
				logger.FieldFile, finalPath,
				"error", err)
		}
	}
}
