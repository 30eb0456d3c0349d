package tmux

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	outputs map[string]string
}

func (s stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	key := name + " " + strings.Join(args, " ")
	for prefix, out := range s.outputs {
		if strings.HasPrefix(key, prefix) {
			return []byte(out), nil
		}
	}
	return nil, nil
}

func TestParseTarget(t *testing.T) {
	session, window, pane := ParseTarget("work:2.1")
	require.Equal(t, "work", session)
	require.Equal(t, "2", window)
	require.Equal(t, "1", pane)
}

func TestListPanes(t *testing.T) {
	c := NewWithRunner(stubRunner{outputs: map[string]string{
		"tmux list-panes": "work:0.0\tclaude\t/home/dev/proj\t1234\t✳ my-project\nwork:0.1\tzsh\t/home/dev\t5678\t\n",
	}})
	panes, err := c.ListPanes(context.Background())
	require.NoError(t, err)
	require.Len(t, panes, 2)
	require.Equal(t, "work:0.0", panes[0].Target)
	require.Equal(t, "claude", panes[0].Command)
	require.Equal(t, 1234, panes[0].PID)
	require.Equal(t, "✳ my-project", panes[0].Title)
}

func TestCapturePane(t *testing.T) {
	c := NewWithRunner(stubRunner{outputs: map[string]string{
		"tmux capture-pane": "line one\nline two\n",
	}})
	lines, err := c.CapturePane(context.Background(), "work:0.0", 30)
	require.NoError(t, err)
	require.Equal(t, []string{"line one", "line two"}, lines)
}

func TestHasDescendantComm(t *testing.T) {
	c := NewWithRunner(stubRunner{outputs: map[string]string{
		"ps -eo": "1\t0\tinit\n100\t1\tzsh\n200\t100\tclaude\n300\t200\tcaffeinate\n",
	}})
	pt := c.LoadProcessTable(context.Background())
	require.True(t, pt.HasDescendantComm(100, "caffeinate"))
	require.False(t, pt.HasDescendantComm(100, "node"))
}
