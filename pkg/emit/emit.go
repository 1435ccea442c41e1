// Package emit drives the extraction of one source file into diagram files.
//
// An extractor may yield several diagrams per source file. [Session] walks
// them with an explicit state machine:
//
//	Start -> ExtractNext -> ResolvePath -> Guard -> Write -> (more ? ExtractNext : Done)
//
// The loop always runs at least once, the diagram index starts at zero and
// grows by one per diagram, and the extractor alone decides when the loop
// ends. Every error is fatal to the caller's run.
package emit

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/diagramgen/pkg/dest"
	"github.com/matzehuels/diagramgen/pkg/errors"
	"github.com/matzehuels/diagramgen/pkg/extract"
	"github.com/matzehuels/diagramgen/pkg/naming"
)

// AfterWriteFunc is called once per written diagram, before the next one is
// extracted.
type AfterWriteFunc func(ctx context.Context, job naming.DiagramJob) error

// Emitter writes the diagrams of one source file at a time.
type Emitter struct {
	Template   string // naming template, relative to OutputDir
	OutputDir  string
	Logger     *log.Logger
	AfterWrite AfterWriteFunc
}

// Result describes the diagrams written for one source file.
type Result struct {
	Count int
	Jobs  []naming.DiagramJob
}

// Emit parses src with ex and writes every diagram it yields. file supplies
// the {directory} and {basename} values of the template.
func (e *Emitter) Emit(ctx context.Context, ex extract.Extractor, src []byte, encoding string, file naming.SourceFile) (Result, error) {
	s := e.NewSession(ex, src, encoding, file)
	for s.State() != StateDone {
		s.Step(ctx)
	}
	return s.Result(), s.Err()
}

// NewSession starts a session for one source file.
func (e *Emitter) NewSession(ex extract.Extractor, src []byte, encoding string, file naming.SourceFile) *Session {
	logger := e.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		emitter:  e,
		logger:   logger,
		ex:       ex,
		src:      src,
		encoding: encoding,
		file:     file,
		state:    StateStart,
	}
}

// State is a step of the per-file emission loop.
type State int

const (
	StateStart State = iota
	StateExtractNext
	StateResolvePath
	StateGuard
	StateWrite
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateExtractNext:
		return "extract-next"
	case StateResolvePath:
		return "resolve-path"
	case StateGuard:
		return "guard"
	case StateWrite:
		return "write"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Session is the emission loop for one source file.
type Session struct {
	emitter  *Emitter
	logger   *log.Logger
	ex       extract.Extractor
	src      []byte
	encoding string
	file     naming.SourceFile

	state State
	index int
	more  bool
	path  string
	buf   bytes.Buffer
	jobs  []naming.DiagramJob
	err   error
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Index returns the index of the diagram being processed.
func (s *Session) Index() int { return s.index }

// Err returns the error that ended the session, if any.
func (s *Session) Err() error { return s.err }

// Result returns the diagrams written so far.
func (s *Session) Result() Result {
	return Result{Count: len(s.jobs), Jobs: append([]naming.DiagramJob(nil), s.jobs...)}
}

// Step performs one transition and returns the new state. Any failure moves
// the session to StateDone with Err set.
func (s *Session) Step(ctx context.Context) State {
	switch s.state {
	case StateStart:
		if err := s.ex.Parse(bytes.NewReader(s.src), s.encoding); err != nil {
			return s.fail(asCode(err, errors.ErrCodeParse, "parse %s", s.file.Path))
		}
		s.state = StateExtractNext

	case StateExtractNext:
		if err := ctx.Err(); err != nil {
			return s.fail(err)
		}
		s.buf.Reset()
		more, err := s.ex.WriteDiagram(&s.buf)
		if err != nil {
			return s.fail(asCode(err, errors.ErrCodeIO, "extract diagram %d of %s", s.index, s.file.Path))
		}
		s.more = more
		s.state = StateResolvePath

	case StateResolvePath:
		rel := naming.ResolveFor(s.emitter.Template, s.file, s.index)
		s.path = filepath.Join(s.emitter.OutputDir, filepath.FromSlash(rel))
		s.state = StateGuard

	case StateGuard:
		if err := dest.Prepare(s.path); err != nil {
			return s.fail(err)
		}
		s.state = StateWrite

	case StateWrite:
		if err := s.write(); err != nil {
			return s.fail(err)
		}
		job := naming.DiagramJob{Source: s.file, Index: s.index, Path: s.path}
		s.jobs = append(s.jobs, job)
		if s.emitter.AfterWrite != nil {
			if err := s.emitter.AfterWrite(ctx, job); err != nil {
				return s.fail(err)
			}
		}
		s.index++
		if s.more {
			s.state = StateExtractNext
		} else {
			s.state = StateDone
		}
	}
	return s.state
}

func (s *Session) write() (err error) {
	s.logger.Infof("Writing %s", s.path)
	f, err := dest.OpenNew(s.path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(errors.ErrCodeIO, cerr, "close %s", s.path).WithPath(s.path)
		}
	}()
	if _, err := f.Write(s.buf.Bytes()); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", s.path).WithPath(s.path)
	}
	return nil
}

func (s *Session) fail(err error) State {
	s.err = err
	s.state = StateDone
	return s.state
}

// asCode keeps structured errors as they are and wraps anything else with code.
func asCode(err error, code errors.Code, format string, args ...any) error {
	if errors.GetCode(err) != "" {
		return err
	}
	return errors.Wrap(code, err, format, args...)
}
