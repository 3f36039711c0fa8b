package singlezip

import (
	stdflate "compress/flate"
	"io"
	"sort"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// A Compressor is a streaming DEFLATE transform owned by one Writer.
//
// Flush pushes all pending output to the underlying writer and reports the
// number of bytes consumed and produced so far. Close ends the stream;
// after a Flush it appends exactly TrailerLen more bytes.
type Compressor interface {
	io.Writer
	Flush() (in, out int64, err error)
	Close() error
	TrailerLen() int64
}

// A Decompressor returns a new decompressing reader, reading from r.
// The ReadCloser's Close method must be used to release associated resources.
type Decompressor func(r io.Reader) io.ReadCloser

// A Backend pairs the two halves of a DEFLATE implementation.
type Backend struct {
	NewCompressor   func(w io.Writer, level int) (Compressor, error)
	NewDecompressor Decompressor
}

const (
	// BackendKlauspost is github.com/klauspost/compress/flate.
	BackendKlauspost = "klauspost"
	// BackendStdlib is compress/flate.
	BackendStdlib = "stdlib"

	DefaultBackend = BackendKlauspost
	DefaultLevel   = flate.BestCompression
)

var backends = map[string]Backend{
	// The final block is an empty fixed-Huffman block: 3 header bits and
	// a 7 bit end-of-block code, 0x03 0x00 once byte aligned.
	BackendKlauspost: {
		NewCompressor: func(w io.Writer, level int) (Compressor, error) {
			cw := &countWriter{w: w}
			fw, err := flate.NewWriter(cw, level)
			if err != nil {
				return nil, err
			}
			return &flateCompressor{fw: fw, cw: cw, trailer: 2}, nil
		},
		NewDecompressor: func(r io.Reader) io.ReadCloser {
			return flate.NewReader(r)
		},
	},
	// The final block is an empty stored block: one header byte and
	// LEN/NLEN, 0x01 0x00 0x00 0xff 0xff.
	BackendStdlib: {
		NewCompressor: func(w io.Writer, level int) (Compressor, error) {
			cw := &countWriter{w: w}
			fw, err := stdflate.NewWriter(cw, level)
			if err != nil {
				return nil, err
			}
			return &flateCompressor{fw: fw, cw: cw, trailer: 5}, nil
		},
		NewDecompressor: func(r io.Reader) io.ReadCloser {
			return stdflate.NewReader(r)
		},
	},
}

// RegisterBackend registers or overrides a DEFLATE backend under name.
// It is not safe to call concurrently with Create or Open.
func RegisterBackend(name string, b Backend) {
	backends[name] = b
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func backend(name string) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	b, ok := backends[name]
	if !ok {
		return Backend{}, errors.Wrapf(ErrBackend, "%q", name)
	}
	return b, nil
}

type flateWriter interface {
	io.WriteCloser
	Flush() error
}

// flateCompressor adapts a flate writer to Compressor, counting input
// bytes itself and output bytes through cw.
type flateCompressor struct {
	fw      flateWriter
	cw      *countWriter
	in      int64
	trailer int64
}

func (c *flateCompressor) Write(p []byte) (int, error) {
	n, err := c.fw.Write(p)
	c.in += int64(n)
	return n, err
}

func (c *flateCompressor) Flush() (int64, int64, error) {
	if err := c.fw.Flush(); err != nil {
		return 0, 0, err
	}
	return c.in, c.cw.count, nil
}

func (c *flateCompressor) Close() error {
	return c.fw.Close()
}

func (c *flateCompressor) TrailerLen() int64 {
	return c.trailer
}

type countWriter struct {
	w     io.Writer
	count int64
}

func (w *countWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.count += int64(n)
	return n, err
}
