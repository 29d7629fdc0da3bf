package searcher

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/dl/grepkit/matcher"
)

// lineRec is one line pulled from a source: content without its terminator,
// and the number of source bytes it consumed including the terminator.
type lineRec struct {
	data    []byte
	size    int
	hadTerm bool
	nulTerm bool // terminator was a NUL (binary Convert mode)
}

// lineSource yields lines for the scan loop. Returned data is only valid
// until the next call.
type lineSource interface {
	next() (lineRec, bool, error)
}

// sliceSource walks an in-memory buffer without copying.
type sliceSource struct {
	data    []byte
	pos     int
	term    byte
	convert bool
}

func (s *sliceSource) next() (lineRec, bool, error) {
	if s.pos >= len(s.data) {
		return lineRec{}, false, nil
	}
	rest := s.data[s.pos:]
	idx := bytes.IndexByte(rest, s.term)
	nul := false
	if s.convert {
		if j := bytes.IndexByte(rest, 0); j >= 0 && (idx < 0 || j < idx) {
			idx = j
			nul = true
		}
	}
	if idx < 0 {
		s.pos = len(s.data)
		return lineRec{data: rest, size: len(rest)}, true, nil
	}
	s.pos += idx + 1
	return lineRec{data: rest[:idx], size: idx + 1, hadTerm: true, nulTerm: nul}, true, nil
}

// readerSource reads a stream incrementally, buffering at most one read
// chunk past the unconsumed lines and never more than limit bytes total.
type readerSource struct {
	r       io.Reader
	term    byte
	convert bool
	limit   int // 0 = unlimited

	buf     []byte
	scratch []byte
	eof     bool
}

func (s *readerSource) next() (lineRec, bool, error) {
	for {
		idx := bytes.IndexByte(s.buf, s.term)
		nul := false
		if s.convert {
			if j := bytes.IndexByte(s.buf, 0); j >= 0 && (idx < 0 || j < idx) {
				idx = j
				nul = true
			}
		}
		if idx >= 0 {
			rec := lineRec{data: s.buf[:idx], size: idx + 1, hadTerm: true, nulTerm: nul}
			s.buf = s.buf[idx+1:]
			return rec, true, nil
		}
		if s.eof {
			if len(s.buf) == 0 {
				return lineRec{}, false, nil
			}
			rec := lineRec{data: s.buf, size: len(s.buf)}
			s.buf = s.buf[len(s.buf):]
			return rec, true, nil
		}
		if err := s.fill(); err != nil {
			return lineRec{}, false, err
		}
	}
}

func (s *readerSource) fill() error {
	if s.scratch == nil {
		s.scratch = make([]byte, 64*1024)
	}
	space := len(s.scratch)
	if s.limit > 0 {
		remain := s.limit - len(s.buf)
		if remain <= 0 {
			// The unterminated line already fills the cap.
			return ErrHeapLimit
		}
		if remain < space {
			space = remain
		}
	}
	n, err := s.r.Read(s.scratch[:space])
	if n > 0 {
		s.buf = append(s.buf, s.scratch[:n]...)
	}
	if err == io.EOF {
		s.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	return nil
}

// SearchSlice scans an in-memory buffer.
func (s *Searcher) SearchSlice(m *matcher.Matcher, data []byte, sink Sink) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()
	return s.searchSlice(m, data, sink)
}

func (s *Searcher) searchSlice(m *matcher.Matcher, data []byte, sink Sink) error {
	if s.cfg.bomSniffing {
		data = sniffBOM(data)
	}
	if s.cfg.multiLine {
		return s.scanMulti(m, data, sink)
	}
	src := &sliceSource{data: data, term: s.cfg.lineTerm, convert: s.cfg.binary == BinaryConvert}
	return s.scanLines(m, src, sink)
}

// SearchReader scans a sequential stream, buffering at most heap-limit bytes.
func (s *Searcher) SearchReader(m *matcher.Matcher, r io.Reader, sink Sink) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()
	return s.searchReader(m, r, sink)
}

func (s *Searcher) searchReader(m *matcher.Matcher, r io.Reader, sink Sink) error {
	if s.cfg.heapLimit != nil && *s.cfg.heapLimit == 0 {
		// Heap disabled: a stream cannot be searched without buffering.
		return ErrHeapLimit
	}
	if s.cfg.multiLine {
		data, err := s.readAll(r)
		if err != nil {
			return err
		}
		return s.searchSlice(m, data, sink)
	}

	var rdr io.Reader = r
	if s.cfg.bomSniffing {
		head := make([]byte, 3)
		n, err := io.ReadFull(r, head)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("read source: %w", err)
		}
		head = head[:n]
		switch {
		case n >= 2 && (head[0] == 0xFF && head[1] == 0xFE || head[0] == 0xFE && head[1] == 0xFF):
			// UTF-16 needs whole-input decoding before line splitting.
			data, err := s.readAll(io.MultiReader(bytes.NewReader(head), r))
			if err != nil {
				return err
			}
			return s.searchSlice(m, data, sink)
		case n == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF:
			// UTF-8 BOM: drop the mark, stream the rest.
		default:
			rdr = io.MultiReader(bytes.NewReader(head), r)
		}
	}

	limit := 0
	if s.cfg.heapLimit != nil {
		limit = *s.cfg.heapLimit
	}
	src := &readerSource{r: rdr, term: s.cfg.lineTerm, convert: s.cfg.binary == BinaryConvert, limit: limit}
	return s.scanLines(m, src, sink)
}

// readAll materializes a stream, honoring the heap limit as a hard cap.
func (s *Searcher) readAll(r io.Reader) ([]byte, error) {
	if s.cfg.heapLimit == nil {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		return data, nil
	}
	limit := *s.cfg.heapLimit
	data, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	if len(data) > limit {
		return nil, ErrHeapLimit
	}
	return data, nil
}

// SearchPath scans a file. With the heap disabled (limit of zero) the file is
// memory-mapped; with an unset limit it is read whole; with a positive limit
// files that fit are read whole and larger ones are streamed.
func (s *Searcher) SearchPath(m *matcher.Matcher, path string, sink Sink) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	fd, err := openFile(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return fmt.Errorf("stat %s: %w", path, err)
	}
	size := stat.Size
	if size == 0 {
		unix.Close(fd)
		return s.searchSlice(m, nil, sink)
	}

	hl := s.cfg.heapLimit
	switch {
	case hl != nil && *hl == 0:
		res, err := readMmap(fd, size)
		if err != nil {
			return fmt.Errorf("mmap %s: %w", path, err)
		}
		defer res.close()
		return s.searchSlice(m, res.data, sink)
	case hl == nil || size <= int64(*hl):
		res, err := readBuffered(fd, size)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		defer res.close()
		return s.searchSlice(m, res.data, sink)
	default:
		f := os.NewFile(uintptr(fd), path)
		defer f.Close()
		return s.searchReader(m, f, sink)
	}
}

// openFile opens a file with O_NOATIME, falling back without it.
func openFile(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOATIME, 0)
	if err != nil {
		fd, err = unix.Open(path, unix.O_RDONLY, 0)
	}
	return fd, err
}

type readResult struct {
	data  []byte
	close func() error
}

// bufPool reuses read buffers across scans. Buffers are stored as *[]byte so
// the pool can keep the backing array when a slice grows.
var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 64*1024)
		return &b
	},
}

// readBuffered reads a whole file from an already-open fd into a pooled
// buffer. Takes ownership of fd.
func readBuffered(fd int, size int64) (readResult, error) {
	bp := bufPool.Get().(*[]byte)
	buf := *bp
	if cap(buf) < int(size) {
		buf = make([]byte, size)
	} else {
		buf = buf[:size]
	}

	var total int
	for total < int(size) {
		n, err := unix.Pread(fd, buf[total:], int64(total))
		if err != nil {
			unix.Close(fd)
			*bp = buf
			bufPool.Put(bp)
			return readResult{}, err
		}
		if n == 0 {
			break
		}
		total += n
	}
	unix.Close(fd)

	return readResult{
		data: buf[:total],
		close: func() error {
			*bp = buf
			bufPool.Put(bp)
			return nil
		},
	}, nil
}

// readMmap memory-maps an already-opened fd of known size, hinting the
// kernel for sequential access. Falls back to a buffered read when the map
// fails. Takes ownership of fd.
func readMmap(fd int, size int64) (readResult, error) {
	unix.Fadvise(fd, 0, size, unix.FADV_SEQUENTIAL)

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE|unix.MAP_POPULATE)
	if err != nil {
		return readBuffered(fd, size)
	}
	unix.Madvise(data, unix.MADV_SEQUENTIAL)

	return readResult{
		data: data,
		close: func() error {
			unix.Madvise(data, unix.MADV_DONTNEED)
			unix.Munmap(data)
			unix.Close(fd)
			return nil
		},
	}, nil
}
