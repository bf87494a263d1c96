package wire

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint16LERoundTrip(t *testing.T) {
	for _, v := range []uint16{0, 1, 255, 256, 65535} {
		buf := new(bytes.Buffer)
		require.NoError(t, WriteUint16LE(buf, v))
		got, err := ReadUint16LE(buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestReadExactShortReadFails(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2})
	_, err := ReadExact(r, 4)
	require.Error(t, err)
}

func TestDecimalLineRoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteDecimalLine(buf, 42))
	n, err := ReadDecimalLine(bufio.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, uint64(42), n)
}

func TestReadLineStripsNewline(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("hunter2\n"))
	line, err := ReadLine(r)
	require.NoError(t, err)
	require.Equal(t, "hunter2", line)
}

func TestReadLineEmptyPassword(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("\n3\n"))
	line, err := ReadLine(r)
	require.NoError(t, err)
	require.Equal(t, "", line)
	n, err := ReadDecimalLine(r)
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)
}
