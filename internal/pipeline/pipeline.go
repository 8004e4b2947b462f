// Package pipeline drives the per-file repair state machine over an input
// tree: classify, then copy through or rewrite, mirroring the tree layout
// at the destination root.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/navtrace/recfix/internal/classify"
	"github.com/navtrace/recfix/internal/repair"
	"github.com/navtrace/recfix/pkg/envelope"
)

// ErrSameInOut is returned when the resolved input and output paths are
// identical; running in place would destroy the source recordings.
var ErrSameInOut = errors.New("input and output paths are identical")

// Action is the outcome of processing one file.
type Action string

const (
	ActionSkipped   Action = "skipped"
	ActionCopied    Action = "copied"
	ActionRewritten Action = "rewritten"
)

// FileResult describes what happened to a single recording.
type FileResult struct {
	InputPath   string
	OutputPath  string
	Action      Action
	Profile     classify.Profile
	Emitted     uint64
	Dropped     uint64
	Counts      map[envelope.RecordType]repair.DropCounts
	SwitchNoise uint64
}

// Summary aggregates a whole run.
type Summary struct {
	Scanned   int
	Skipped   int
	Copied    int
	Rewritten int
	Dropped   uint64
}

// Recorder persists per-file outcomes, typically to the repair catalog.
type Recorder interface {
	RecordFile(res FileResult) error
}

// Options configures a run.
type Options struct {
	InputPath  string
	OutputPath string
	Extension  string // recording file extension, e.g. ".rec"
	Verbose    bool
}

// Pipeline processes recordings one at a time; any failure aborts the
// remaining batch. Partial output of a failed rewrite is left in place for
// inspection.
type Pipeline struct {
	opts     Options
	logger   *zap.SugaredLogger
	recorder Recorder
}

// New returns a Pipeline. logger must be non-nil; recorder may be nil.
func New(opts Options, logger *zap.SugaredLogger, recorder Recorder) *Pipeline {
	return &Pipeline{opts: opts, logger: logger, recorder: recorder}
}

// Run processes the input file or tree sequentially and returns the run
// summary. The first failure is returned immediately.
func (p *Pipeline) Run() (Summary, error) {
	var sum Summary

	inAbs, err := filepath.Abs(p.opts.InputPath)
	if err != nil {
		return sum, err
	}
	outAbs, err := filepath.Abs(p.opts.OutputPath)
	if err != nil {
		return sum, err
	}
	if resolvePath(inAbs) == resolvePath(outAbs) {
		return sum, ErrSameInOut
	}

	info, err := os.Stat(inAbs)
	if err != nil {
		return sum, fmt.Errorf("opening input: %w", err)
	}

	if !info.IsDir() {
		res, err := p.processFile(inAbs, p.destinationFor(filepath.Base(inAbs)))
		if err != nil {
			return sum, err
		}
		sum.account(res)
		return sum, nil
	}

	err = filepath.WalkDir(inAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !p.isRecording(path) {
			return nil
		}
		rel, err := filepath.Rel(inAbs, path)
		if err != nil {
			return err
		}
		res, err := p.processFile(path, p.destinationFor(rel))
		if err != nil {
			return err
		}
		sum.account(res)
		return nil
	})
	return sum, err
}

func (s *Summary) account(res FileResult) {
	s.Scanned++
	s.Dropped += res.Dropped
	switch res.Action {
	case ActionSkipped:
		s.Skipped++
	case ActionCopied:
		s.Copied++
	case ActionRewritten:
		s.Rewritten++
	}
}

// isRecording matches the configured extension, compressed or not.
func (p *Pipeline) isRecording(path string) bool {
	name := strings.TrimSuffix(path, envelope.CompressedSuffix)
	return strings.HasSuffix(name, p.opts.Extension)
}

func (p *Pipeline) destinationFor(rel string) string {
	return filepath.Join(p.opts.OutputPath, rel)
}

// resolvePath follows symlinks so an output path aliasing the input is
// caught. Best effort: a path that does not exist yet (a fresh output
// root) resolves to itself.
func resolvePath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

// processFile runs the CheckDestination → Classify → CopyThrough|Rewrite
// state machine for one recording.
func (p *Pipeline) processFile(src, dst string) (FileResult, error) {
	res := FileResult{InputPath: src, OutputPath: dst}

	// Never overwrite existing output; re-runs are cheap no-ops.
	if _, err := os.Stat(dst); err == nil {
		p.logger.Infof("skipping %s: output already exists", src)
		res.Action = ActionSkipped
		return p.record(res)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return res, fmt.Errorf("checking destination %s: %w", dst, err)
	}

	scan, err := p.classifyFile(src)
	if err != nil {
		return res, fmt.Errorf("classifying %s: %w", src, err)
	}
	res.Profile = scan.Profile

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return res, fmt.Errorf("creating output directory: %w", err)
	}

	if scan.Profile.Fine() {
		if err := copyThrough(src, dst); err != nil {
			return res, fmt.Errorf("copying %s: %w", src, err)
		}
		res.Action = ActionCopied
		p.logger.Infof("copied %s: no defects", src)
		return p.record(res)
	}

	if err := p.rewriteFile(src, dst, scan, &res); err != nil {
		return res, fmt.Errorf("rewriting %s: %w", src, err)
	}
	res.Action = ActionRewritten
	p.logResult(res)
	return p.record(res)
}

func (p *Pipeline) record(res FileResult) (FileResult, error) {
	if p.recorder == nil {
		return res, nil
	}
	if err := p.recorder.RecordFile(res); err != nil {
		return res, fmt.Errorf("recording outcome for %s: %w", res.InputPath, err)
	}
	return res, nil
}

func (p *Pipeline) classifyFile(path string) (classify.Result, error) {
	rc, err := envelope.OpenFile(path)
	if err != nil {
		return classify.Result{}, err
	}
	defer rc.Close()
	return classify.Scan(envelope.NewReader(rc))
}

func (p *Pipeline) rewriteFile(src, dst string, scan classify.Result, res *FileResult) error {
	rc, err := envelope.OpenFile(src)
	if err != nil {
		return err
	}
	defer rc.Close()

	wc, err := envelope.CreateFile(dst)
	if err != nil {
		return err
	}
	return p.rewriteTo(rc, wc, scan, res)
}

// rewriteTo drives replay → corrector → writer and closes wc. The close
// error must be checked: a compressed writer emits its final frames during
// Close, so an error there means the output on disk is truncated.
func (p *Pipeline) rewriteTo(rc io.Reader, wc io.WriteCloser, scan classify.Result, res *FileResult) error {
	source := repair.NewSource(envelope.NewReader(rc), scan.Ordered)
	corrector := repair.NewCorrector(scan.Profile)
	writer := envelope.NewWriter(wc)

	for source.Scan() {
		rec, emit, err := corrector.Apply(source.Record())
		if err != nil {
			wc.Close()
			return err
		}
		if !emit {
			continue
		}
		if err := writer.WriteRecord(rec); err != nil {
			wc.Close()
			return err
		}
		res.Emitted++
	}
	if err := source.Err(); err != nil {
		wc.Close()
		return err
	}
	if err := writer.Flush(); err != nil {
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}

	res.Counts = corrector.Counts()
	res.SwitchNoise = corrector.SwitchStateDropped()
	res.Dropped = corrector.TotalDropped()
	return nil
}

// copyThrough duplicates the recording byte-for-byte, including any
// compression envelope, so defect-free files keep exact fidelity.
func copyThrough(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (p *Pipeline) logResult(res FileResult) {
	p.logger.Infof("rewrote %s: pre-SI=%v broken-patch=%v switch-noise=%v, %d records emitted, %d dropped",
		res.InputPath, res.Profile.PreSIUnits, res.Profile.FromBrokenPatch,
		res.Profile.SwitchStateNoise, res.Emitted, res.Dropped)
	if !p.opts.Verbose {
		return
	}
	for _, t := range []envelope.RecordType{
		envelope.TypeMagneticField,
		envelope.TypeAngularVelocity,
		envelope.TypeAltitude,
		envelope.TypeGroundSpeed,
		envelope.TypeGeodeticHeading,
	} {
		c := res.Counts[t]
		if c.Duplicates == 0 && c.Dropouts == 0 && c.Sentinels == 0 {
			continue
		}
		p.logger.Infof("  %s: %d duplicates, %d dropouts, %d sentinels",
			t, c.Duplicates, c.Dropouts, c.Sentinels)
	}
	if res.SwitchNoise > 0 {
		p.logger.Infof("  switch-state: %d noise records dropped", res.SwitchNoise)
	}
}
