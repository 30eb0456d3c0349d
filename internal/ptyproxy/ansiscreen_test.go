package ptyproxy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScreenPlainTextAndTitle(t *testing.T) {
	s := NewScreen(40, 5)
	s.Write([]byte("\x1b]0;claude - working\x07hello world\r\n"))
	title, lines := s.Snapshot()
	require.Equal(t, "claude - working", title)
	require.Equal(t, "hello world", lines[0])
}

func TestScreenCursorPositioning(t *testing.T) {
	s := NewScreen(20, 3)
	s.Write([]byte("\x1b[2;1Hrow two"))
	_, lines := s.Snapshot()
	require.Equal(t, "row two", lines[1])
}

func TestScreenEraseLine(t *testing.T) {
	s := NewScreen(20, 2)
	s.Write([]byte("hello world"))
	s.Write([]byte("\r\x1b[K"))
	_, lines := s.Snapshot()
	require.Equal(t, "", lines[0])
}

func TestScreenScrollsOldestLineOut(t *testing.T) {
	s := NewScreen(20, 2)
	s.Write([]byte("line1\r\nline2\r\nline3"))
	_, lines := s.Snapshot()
	require.Equal(t, "line2", lines[0])
	require.Equal(t, "line3", lines[1])
}

func TestScreenResizeClearsContent(t *testing.T) {
	s := NewScreen(20, 2)
	s.Write([]byte("hello"))
	s.Resize(10, 4)
	_, lines := s.Snapshot()
	require.Len(t, lines, 4)
	require.Equal(t, "", lines[0])
}
