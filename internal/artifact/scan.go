package artifact

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Extension is the file extension the scanner treats as an artifact.
const Extension = ".json"

// Diagnostic records why one candidate file was excluded.
type Diagnostic struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// ScanResult is the outcome of scanning one directory.
// Valid is ordered by artifact version; ties keep filename order.
type ScanResult struct {
	Dir        string
	Candidates int
	Valid      []*Validated
	Invalid    []Diagnostic
}

// Scan validates every artifact file directly inside dir.
//
// Candidates are discovered in filename order (names compared in Unicode
// NFC so discovery does not depend on how the filesystem normalizes them),
// then the valid ones are re-sorted by version. A file that fails
// validation becomes a Diagnostic; it never aborts the scan.
//
// Scan returns a *ScanError when dir is not a directory, holds no
// candidates, or holds no valid artifact. In the last case the result is
// returned alongside the error so callers can report the diagnostics.
func Scan(dir string, ids Identities, logger *slog.Logger) (*ScanResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ScanError{Code: ErrCodeNotADirectory, Dir: dir, Message: fmt.Sprintf("path not found: %s", dir), Err: err}
		}
		return nil, &ScanError{Code: ErrCodeScanFailed, Dir: dir, Message: fmt.Sprintf("cannot access %s", dir), Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Code: ErrCodeNotADirectory, Dir: dir, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	paths, err := FindCandidates(dir)
	if err != nil {
		return nil, &ScanError{Code: ErrCodeScanFailed, Dir: dir, Message: "failed to read directory", Err: err}
	}
	if len(paths) == 0 {
		return nil, &ScanError{Code: ErrCodeNoCandidateFiles, Dir: dir, Message: fmt.Sprintf("no %s files found in %s", Extension, dir)}
	}
	logger.Info("found candidate artifacts", "dir", dir, "count", len(paths))

	result := &ScanResult{Dir: dir, Candidates: len(paths)}
	for i, path := range paths {
		v, err := Validate(path, ids)
		if err != nil {
			d := diagnose(path, err)
			result.Invalid = append(result.Invalid, d)
			logger.Warn("artifact invalid",
				"file", d.Name,
				"progress", fmt.Sprintf("%d/%d", i+1, len(paths)),
				"kind", d.Kind,
				"error", d.Message,
			)
			continue
		}
		result.Valid = append(result.Valid, v)
		logger.Info("artifact valid",
			"file", v.Name(),
			"progress", fmt.Sprintf("%d/%d", i+1, len(paths)),
			"version", v.Artifact.Version,
			"entries", len(v.Artifact.Entries),
			"key", v.Key.String(),
		)
	}

	sort.SliceStable(result.Valid, func(i, j int) bool {
		return result.Valid[i].Artifact.Version < result.Valid[j].Artifact.Version
	})

	if len(result.Valid) == 0 {
		return result, &ScanError{
			Code:    ErrCodeNoValidArtifacts,
			Dir:     dir,
			Message: fmt.Sprintf("none of %d artifact files in %s passed validation", len(paths), dir),
		}
	}
	return result, nil
}

// FindCandidates lists regular files with the artifact extension directly
// inside dir, sorted by NFC-normalized file name.
func FindCandidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		key  string
		path string
	}
	var found []candidate
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != Extension {
			continue
		}
		found = append(found, candidate{
			key:  norm.NFC.String(e.Name()),
			path: filepath.Join(dir, e.Name()),
		})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].key < found[j].key })

	paths := make([]string, len(found))
	for i, c := range found {
		paths[i] = c.path
	}
	return paths, nil
}

func diagnose(path string, err error) Diagnostic {
	d := Diagnostic{Path: path, Name: baseName(path), Index: -1, Kind: KindMalformed, Message: err.Error()}
	var ve *ValidationError
	if errors.As(err, &ve) {
		d.Kind = ve.Kind
		d.Index = ve.Index
	}
	return d
}

func baseName(path string) string {
	return filepath.Base(path)
}
