package interactive

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfbench/vp8122a-go/pkg/command"
)

type fakeSession struct {
	sent     []string
	queries  []string
	reply    string
	err      error
	resource string
	identity string
}

func (f *fakeSession) Send(_ context.Context, cmd string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeSession) Apply(_ context.Context, cmds []command.Rendered) error {
	if f.err != nil {
		return f.err
	}
	for _, c := range cmds {
		f.sent = append(f.sent, c.Text)
	}
	return nil
}

func (f *fakeSession) Query(_ context.Context, cmd string) (string, error) {
	f.queries = append(f.queries, cmd)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeSession) ResourceID() string { return f.resource }
func (f *fakeSession) Identity() string   { return f.identity }
func (f *fakeSession) Connected() bool    { return f.resource != "" }

func newShell(sess *fakeSession) (*Shell, *bytes.Buffer) {
	var out bytes.Buffer
	reg := command.Default(command.WithClampHandler(func(command.RangeViolation) {}))
	return New(sess, reg, &out), &out
}

func TestExecutePaths(t *testing.T) {
	sess := &fakeSession{}
	sh, out := newShell(sess)

	quit := sh.Execute(context.Background(), "am.set 30 am.on freq.MHz 0.531")
	assert.False(t, quit)
	assert.Equal(t, []string{"AM 30", "AM ON", "FR 0.531MZ"}, sess.sent)
	assert.Contains(t, out.String(), "> FR 0.531MZ")
}

func TestExecuteClamped(t *testing.T) {
	sess := &fakeSession{}
	sh, out := newShell(sess)

	sh.Execute(context.Background(), "am.set 130")
	assert.Equal(t, []string{"AM 125"}, sess.sent)
	assert.Contains(t, out.String(), "clamped from 130")
}

func TestExecuteUnknown(t *testing.T) {
	sess := &fakeSession{}
	sh, out := newShell(sess)

	sh.Execute(context.Background(), "bogus.on")
	assert.Empty(t, sess.sent)
	assert.Contains(t, out.String(), "Unknown command")
}

func TestExecuteMissingValue(t *testing.T) {
	sess := &fakeSession{}
	sh, out := newShell(sess)

	sh.Execute(context.Background(), "am.set")
	assert.Empty(t, sess.sent)
	assert.Contains(t, out.String(), "Error:")
}

func TestExecuteRawKeepsText(t *testing.T) {
	sess := &fakeSession{}
	sh, _ := newShell(sess)

	sh.Execute(context.Background(), "raw  AP 20.0DB")
	assert.Equal(t, []string{"AP 20.0DB"}, sess.sent)
}

func TestExecuteQuery(t *testing.T) {
	sess := &fakeSession{reply: "0.531MZ"}
	sh, out := newShell(sess)

	sh.Execute(context.Background(), "query FR?")
	assert.Equal(t, []string{"FR?"}, sess.queries)
	assert.Contains(t, out.String(), "< 0.531MZ")
}

func TestExecuteQueryError(t *testing.T) {
	sess := &fakeSession{err: errors.New("transport timeout")}
	sh, out := newShell(sess)

	sh.Execute(context.Background(), "query FR?")
	assert.Contains(t, out.String(), "Error: transport timeout")
}

func TestExecuteInit(t *testing.T) {
	sess := &fakeSession{}
	sh, _ := newShell(sess)

	sh.Execute(context.Background(), "init")
	assert.Equal(t, []string{
		"AM 30", "AM ON", "AP 20.0DB", "MS 01", "AM T1", "FR 0.531MZ", "AP 50", "CO ON",
	}, sess.sent)
}

func TestExecuteRetune(t *testing.T) {
	sess := &fakeSession{}
	sh, out := newShell(sess)

	sh.Execute(context.Background(), "retune 1.008")
	assert.Equal(t, []string{"CO OF", "FR 1.008MZ", "CO ON"}, sess.sent)

	sess.sent = nil
	sh.Execute(context.Background(), "retune abc")
	assert.Empty(t, sess.sent)
	assert.Contains(t, out.String(), "Invalid frequency")
}

func TestExecuteList(t *testing.T) {
	sh, out := newShell(&fakeSession{})

	sh.Execute(context.Background(), "list freq")
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "freq.MHz <value>")
	assert.Contains(t, lines[1], "freq.kHz <value>")
}

func TestExecuteStatus(t *testing.T) {
	sess := &fakeSession{}
	sh, out := newShell(sess)

	sh.Execute(context.Background(), "status")
	assert.Contains(t, out.String(), "Not connected")

	out.Reset()
	sess.resource = "TCPIP0::127.0.0.1::5025::SOCKET"
	sess.identity = "Panasonic,VP-8122A,0,1.00"
	sh.Execute(context.Background(), "status")
	assert.Contains(t, out.String(), "Resource: TCPIP0::127.0.0.1::5025::SOCKET")
	assert.Contains(t, out.String(), "Identity: Panasonic,VP-8122A,0,1.00")
}

func TestExecuteQuit(t *testing.T) {
	sh, _ := newShell(&fakeSession{})

	for _, in := range []string{"quit", "exit", "q", "QUIT"} {
		assert.True(t, sh.Execute(context.Background(), in), in)
	}
	assert.False(t, sh.Execute(context.Background(), "   "))
}

func TestRest(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"raw", ""},
		{"raw FR 1MZ", "FR 1MZ"},
		{"  query   *IDN? ", "*IDN?"},
	}
	for _, tt := range tests {
		if got := rest(tt.in); got != tt.want {
			t.Errorf("rest(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
