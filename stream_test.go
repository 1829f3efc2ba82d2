package slip_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/danderson/slip"
	"github.com/danderson/slip/sliptest"
	"github.com/google/go-cmp/cmp"
)

// readAll reads msgs from s until io.EOF, formatting results the same
// way as drain.
func readAll(t *testing.T, s *slip.Stream) []string {
	t.Helper()
	var ret []string
	for {
		msg, err := s.ReadMsg()
		if errors.Is(err, io.EOF) {
			return ret
		}
		var pe *slip.ProtocolError
		if errors.As(err, &pe) {
			ret = append(ret, errResult(string(pe.Packet), pe.Reason))
			continue
		}
		if err != nil {
			t.Fatalf("ReadMsg() got unexpected err: %v", err)
		}
		ret = append(ret, msgResult(string(msg)))
	}
}

func TestStreamRoundTrip(t *testing.T) {
	msgs := []string{"hallo", "", end + esc, "", "bye"}

	for _, opts := range []*slip.StreamOptions{
		nil,
		{ChunkSize: 1},
		{ChunkSize: 3},
	} {
		var buf bytes.Buffer
		s := slip.NewStream(&buf, opts)
		var want []string
		for _, msg := range msgs {
			if err := s.WriteMsg([]byte(msg)); err != nil {
				t.Fatalf("WriteMsg(%q) got err: %v", msg, err)
			}
			want = append(want, msgResult(msg))
		}
		if diff := cmp.Diff(readAll(t, s), want); diff != "" {
			t.Errorf("wrong messages with options %+v (-got+want):\n%s", opts, diff)
		}
	}
}

func TestStreamChunkedInput(t *testing.T) {
	var data []byte
	for _, msg := range []string{"one", "two" + end, esc + "three"} {
		data = append(data, slip.Encode([]byte(msg))...)
	}
	want := []string{msgResult("one"), msgResult("two" + end), msgResult(esc + "three")}

	for n := 1; n <= len(data); n++ {
		s := slip.NewReader(sliptest.Chunks(sliptest.SplitEvery(data, n)...), nil)
		if diff := cmp.Diff(readAll(t, s), want); diff != "" {
			t.Fatalf("chunks of %d bytes: wrong messages (-got+want):\n%s", n, diff)
		}
	}
}

func TestStreamPartialWrites(t *testing.T) {
	var out bytes.Buffer
	sw := &sliptest.ShortWriter{W: &out, Max: 3}
	s := slip.NewStream(struct {
		io.Reader
		io.Writer
	}{&out, sw}, nil)

	msg := []byte("hello" + end + "world")
	if err := s.WriteMsg(msg); err != nil {
		t.Fatalf("WriteMsg() got err: %v", err)
	}
	want := slip.Encode(msg)
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("written packet wrong:\n  got: % x\n want: % x", out.Bytes(), want)
	}
	if wantCalls := (len(want) + 2) / 3; sw.Calls != wantCalls {
		t.Errorf("got %d writes, want %d", sw.Calls, wantCalls)
	}
}

type stuckWriter struct{}

func (stuckWriter) Write([]byte) (int, error) { return 0, nil }

func TestStreamStuckWrite(t *testing.T) {
	s := slip.NewStream(struct {
		io.Reader
		io.Writer
	}{bytes.NewReader(nil), stuckWriter{}}, nil)
	if err := s.WriteMsg([]byte("x")); !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("WriteMsg() to stuck writer got err %v, want io.ErrShortWrite", err)
	}
}

func TestStreamTruncated(t *testing.T) {
	s := slip.NewReader(bytes.NewReader([]byte(end+"hi"+end+end+"tru")), nil)
	want := []string{
		msgResult("hi"),
		errResult("tru", slip.ErrUnterminated),
	}
	if diff := cmp.Diff(readAll(t, s), want); diff != "" {
		t.Errorf("wrong results (-got+want):\n%s", diff)
	}
	if _, err := s.ReadMsg(); !errors.Is(err, io.EOF) {
		t.Errorf("ReadMsg() after end of stream got err %v, want io.EOF", err)
	}
}

func TestStreamMessages(t *testing.T) {
	data := end + "a" + end + end + "b" + esc + "x" + end + end + end + "c" + end
	s := slip.NewReader(bytes.NewReader([]byte(data)), &slip.StreamOptions{ChunkSize: 2})

	var got []string
	for msg, err := range s.Messages() {
		if slip.IsProtocolError(err) {
			got = append(got, "error")
			continue
		} else if err != nil {
			t.Fatalf("Messages() yielded unexpected err: %v", err)
		}
		got = append(got, string(msg))
	}
	if diff := cmp.Diff(got, []string{"a", "error", "", "c"}); diff != "" {
		t.Errorf("wrong messages (-got+want):\n%s", diff)
	}
}

var errBroken = errors.New("broken reader")

type brokenReader struct {
	data []byte
}

func (b *brokenReader) Read(bs []byte) (int, error) {
	if len(b.data) == 0 {
		return 0, errBroken
	}
	n := copy(bs, b.data)
	b.data = b.data[n:]
	return n, nil
}

func TestStreamReadError(t *testing.T) {
	s := slip.NewReader(&brokenReader{data: slip.Encode([]byte("ok"))}, nil)

	var got []string
	var gotErr error
	for msg, err := range s.Messages() {
		if err != nil {
			gotErr = err
			continue
		}
		got = append(got, string(msg))
	}
	if diff := cmp.Diff(got, []string{"ok"}); diff != "" {
		t.Errorf("wrong messages (-got+want):\n%s", diff)
	}
	if !errors.Is(gotErr, errBroken) {
		t.Errorf("Messages() yielded err %v, want %v", gotErr, errBroken)
	}
}

func TestStreamReadOnly(t *testing.T) {
	s := slip.NewReader(bytes.NewReader(nil), nil)
	if err := s.WriteMsg([]byte("x")); !errors.Is(err, slip.ErrNotWritable) {
		t.Fatalf("WriteMsg() on reader got err %v, want ErrNotWritable", err)
	}
	if _, err := s.ReadMsg(); !errors.Is(err, io.EOF) {
		t.Fatalf("ReadMsg() on empty reader got err %v, want io.EOF", err)
	}
}

func TestStreamFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packets")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating file: %v", err)
	}
	defer f.Close()

	msgs := []string{"first", esc + end, "", "last"}
	w := slip.NewStream(f, &slip.StreamOptions{Options: slip.Options{OmitLeadingEnd: true}})
	for _, msg := range msgs[:2] {
		if err := w.WriteMsg([]byte(msg)); err != nil {
			t.Fatalf("WriteMsg(%q) got err: %v", msg, err)
		}
	}
	// Empty messages need the leading END to be recognized.
	w2 := slip.NewStream(f, nil)
	for _, msg := range msgs[2:] {
		if err := w2.WriteMsg([]byte(msg)); err != nil {
			t.Fatalf("WriteMsg(%q) got err: %v", msg, err)
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seeking to start: %v", err)
	}
	var want []string
	for _, msg := range msgs {
		want = append(want, msgResult(msg))
	}
	if diff := cmp.Diff(readAll(t, slip.NewReader(f, nil)), want); diff != "" {
		t.Errorf("wrong messages read back (-got+want):\n%s", diff)
	}
}
