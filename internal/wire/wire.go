// Package wire implements the little-endian length-prefixed framing that
// crosses the trust boundary between the controller and the conversion
// worker, plus the newline-terminated decimal preamble the worker reads
// on stdin.
package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadExact reads exactly n bytes from r, or returns an error. Short reads
// (including EOF before n bytes arrive) are treated as a broken transport,
// not a recoverable condition.
func ReadExact(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.New("wire: negative read length")
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	if err != nil || read != n {
		return nil, fmt.Errorf("wire: short read (%d of %d bytes): %w", read, n, err)
	}
	return buf, nil
}

// WriteAll writes the whole of data to w or returns an error.
func WriteAll(w io.Writer, data []byte) error {
	written, err := w.Write(data)
	if err != nil || written != len(data) {
		return fmt.Errorf("wire: short write (%d of %d bytes): %w", written, len(data), err)
	}
	return nil
}

// Uint16LE decodes a little-endian u16 from the first two bytes of data.
func Uint16LE(data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, errors.New("wire: need at least 2 bytes to decode uint16")
	}
	return binary.LittleEndian.Uint16(data), nil
}

// PutUint16LE encodes v as two little-endian bytes.
func PutUint16LE(v uint16) []byte {
	buf := new(bytes.Buffer)
	// binary.Write on a fixed-width integer into a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}

// ReadUint16LE reads and decodes a little-endian u16 directly from r.
func ReadUint16LE(r io.Reader) (uint16, error) {
	buf, err := ReadExact(r, 2)
	if err != nil {
		return 0, err
	}
	return Uint16LE(buf)
}

// WriteUint16LE writes v to w as two little-endian bytes.
func WriteUint16LE(w io.Writer, v uint16) error {
	return WriteAll(w, PutUint16LE(v))
}

// ReadDecimalLine reads one newline-terminated decimal ASCII line and
// parses it as an unsigned integer, matching the preamble fields the
// producer reads: the default_password line is the only non-numeric one,
// handled separately by ReadLine.
func ReadDecimalLine(r *bufio.Reader) (uint64, error) {
	line, err := ReadLine(r)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("wire: expected decimal line, got %q: %w", line, err)
	}
	return n, nil
}

// ReadLine reads one newline-terminated line, with the trailing newline
// (and any carriage return) stripped. Used for both the decimal preamble
// fields and the raw default_password line, which must not itself contain
// a newline.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("wire: failed to read line: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteDecimalLine writes n as a decimal ASCII string followed by a
// newline.
func WriteDecimalLine(w io.Writer, n uint64) error {
	return WriteAll(w, []byte(strconv.FormatUint(n, 10)+"\n"))
}

// WriteLine writes s followed by a newline. s must not itself contain a
// newline; callers are responsible for that invariant (e.g. passwords are
// rejected upstream if they contain one).
func WriteLine(w io.Writer, s string) error {
	return WriteAll(w, []byte(s+"\n"))
}
