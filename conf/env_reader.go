package conf

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// NewEnvExpandedReader expands ${VAR} and ${VAR:-default} line by line.
func NewEnvExpandedReader(origin io.Reader) io.Reader {
	return &envExpandedReader{
		origin: bufio.NewReader(origin),
	}
}

type envExpandedReader struct {
	origin  *bufio.Reader
	pending []byte
	eof     bool
}

func (r *envExpandedReader) Read(p []byte) (int, error) {
	for len(r.pending) < len(p) && !r.eof {
		line, err := r.origin.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				return 0, err
			}
			r.eof = true
		}

		r.pending = append(r.pending, os.Expand(line, lookupEnv)...)
	}

	if len(r.pending) == 0 && r.eof {
		return 0, io.EOF
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func lookupEnv(key string) string {
	name, fallback, ok := strings.Cut(key, ":-")
	if !ok {
		return os.Getenv(key)
	}

	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}
