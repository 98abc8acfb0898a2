package shellexec

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/Charles-JpEG/pysh/core/plan"
)

// ErrRedirectTarget is reported when a redirection target cannot be
// opened.
var ErrRedirectTarget = errors.New("cannot open redirect target")

// stdio is one stage's resolved streams.
type stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func (s *stdio) writer(fd int) io.Writer {
	if fd == 2 {
		return s.err
	}
	return s.out
}

func (s *stdio) setWriter(fd int, w io.Writer) {
	if fd == 2 {
		s.err = w
	} else {
		s.out = w
	}
}

// applyRedirects opens each redirection in order against the base
// streams. In-order application gives the usual semantics: `> f 2>&1`
// sends both streams to f, `2>&1 > f` sends stderr to the old stdout.
// The returned closers are the opened files.
func applyRedirects(fs afero.Fs, base stdio, redirs []plan.Redirect) (stdio, []io.Closer, error) {
	var files []io.Closer
	fail := func(err error) (stdio, []io.Closer, error) {
		for _, f := range files {
			f.Close()
		}
		return stdio{}, nil, err
	}

	for _, r := range redirs {
		switch r.Mode {
		case plan.RedirIn:
			f, err := fs.Open(r.Target)
			if err != nil {
				return fail(fmt.Errorf("%w: %s: %v", ErrRedirectTarget, r.Target, err))
			}
			files = append(files, f)
			base.in = f

		case plan.RedirOut, plan.RedirAppend:
			flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			if r.Mode == plan.RedirAppend {
				flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
			}
			f, err := fs.OpenFile(r.Target, flags, 0o644)
			if err != nil {
				return fail(fmt.Errorf("%w: %s: %v", ErrRedirectTarget, r.Target, err))
			}
			files = append(files, f)
			base.setWriter(r.Fd, f)

		case plan.RedirDup:
			if r.DupFd != 1 && r.DupFd != 2 {
				return fail(fmt.Errorf("%w: bad descriptor %d", plan.ErrBadRedirect, r.DupFd))
			}
			base.setWriter(r.Fd, base.writer(r.DupFd))
		}
	}
	return base, files, nil
}
