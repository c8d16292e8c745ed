package stream

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

// sliceSource serves fixed lines and counts how many were pulled.
type sliceSource struct {
	lines []string
	pos   int
	read  int
}

func (s *sliceSource) Next() bool {
	if s.pos >= len(s.lines) {
		return false
	}
	s.pos++
	s.read++
	return true
}

func (s *sliceSource) Bytes() []byte { return []byte(s.lines[s.pos-1]) }

func src(lines ...string) *sliceSource { return &sliceSource{lines: lines} }

func TestDecodeSimpleScenario(t *testing.T) {
	got := Decode(src(`{"response":"4","done":false}`, `{"response":"","done":true}`))
	require.Equal(t, "4", got)
}

func TestDecodeAccumulatesAndTrims(t *testing.T) {
	got := Decode(src(
		`{"response":"  Hello","done":false}`,
		`{"response":", world","done":false}`,
		`{"response":"!\n\n","done":true}`,
	))
	require.Equal(t, "Hello, world!", got)
	require.Equal(t, got, strings.TrimSpace(got))
}

func TestDecodeSkipsMalformedLines(t *testing.T) {
	got := Decode(src(
		`{"response":"a","done":false}`,
		`{"respo`,
		``,
		`not json`,
		`{"response":"b","done":true}`,
	))
	require.Equal(t, "ab", got)
}

func TestDecodeErrorShortCircuits(t *testing.T) {
	s := src(
		`{"error":"model not found","done":false}`,
		`{"response":"never","done":false}`,
		`{"done":true}`,
	)
	res := Decoder{}.Decode(s)
	require.Equal(t, "Error: model not found", res.Text)
	require.True(t, res.Failed)
	require.Equal(t, 1, s.read, "no line after the error may be read")
}

func TestDecodeErrorDiscardsPartialText(t *testing.T) {
	got := Decode(src(
		`{"response":"partial answer ","done":false}`,
		`{"response":"more","done":false}`,
		`{"error":"out of memory"}`,
		`{"response":"tail","done":true}`,
	))
	require.Equal(t, "Error: out of memory", got)
}

func TestDecodeErrorIsNotTrimmed(t *testing.T) {
	got := Decode(src(`{"error":" spaced "}`))
	require.Equal(t, "Error:  spaced ", got)
}

func TestDecodeStopsAtDone(t *testing.T) {
	s := src(`{"response":"x","done":true}`, `{"response":"y","done":false}`)
	require.Equal(t, "x", Decode(s))
	require.Equal(t, 1, s.read)
}

func TestDecodePrematureEndIsNormal(t *testing.T) {
	require.Equal(t, "half", Decode(src(`{"response":"half ","done":false}`)))
	require.Equal(t, "", Decode(src()))
}

func TestDecodeIsPure(t *testing.T) {
	lines := []string{`{"response":" a "}`, `{"response":"b"}`, `{"done":true}`}
	first := Decode(src(lines...))
	second := Decode(src(lines...))
	require.Equal(t, first, second)
}

func TestDecoderObserverSeesEventsInOrder(t *testing.T) {
	var kinds []Kind
	res := Decoder{Observer: func(ev Event) { kinds = append(kinds, ev.Kind) }}.Decode(src(
		`{"response":"a"}`,
		`{"response":"b","done":true}`,
	))
	require.Equal(t, []Kind{TextChunk, TextChunk, Done}, kinds)
	require.Equal(t, 2, res.Chunks)
}

func TestParseLine(t *testing.T) {
	evs, ok := ParseLine([]byte(`{"response":"hi","done":true}`))
	require.True(t, ok)
	require.Equal(t, []Event{{Kind: TextChunk, Text: "hi"}, {Kind: Done}}, evs)

	evs, ok = ParseLine([]byte(`{"done":false}`))
	require.True(t, ok)
	require.Empty(t, evs)

	_, ok = ParseLine([]byte(`garbage`))
	require.False(t, ok)
}

func TestLinesOverReader(t *testing.T) {
	body := io.NopCloser(strings.NewReader("{\"response\":\"4\",\"done\":false}\n{\"response\":\"\",\"done\":true}\n"))
	l := NewLines(body)
	defer l.Close()
	require.Equal(t, "4", Decode(l))
	require.NoError(t, l.Err())
}

func TestLinesSkipOversizedFragment(t *testing.T) {
	huge := `{"response":"` + strings.Repeat("x", MaxLineBytes) + `"}`
	body := io.NopCloser(strings.NewReader(`{"response":"a"}` + "\n" + huge + "\n" + `{"response":"b","done":true}` + "\n"))
	l := NewLines(body)
	defer l.Close()

	require.Equal(t, "ab", Decode(l))
	require.NoError(t, l.Err())
	require.Equal(t, 1, l.Skipped())
}

func TestLinesTrimCarriageReturnAndKeepUnterminatedTail(t *testing.T) {
	l := NewLines(io.NopCloser(strings.NewReader("{\"response\":\"a\"}\r\n\n{\"response\":\"b\"}")))
	defer l.Close()

	var got []string
	for l.Next() {
		got = append(got, string(l.Bytes()))
	}
	require.Equal(t, []string{`{"response":"a"}`, "", `{"response":"b"}`}, got)
	require.NoError(t, l.Err())
}

func TestLinesReportReadFailure(t *testing.T) {
	r := io.MultiReader(strings.NewReader("{\"response\":\"a\"}\n{\"resp"), iotest.ErrReader(io.ErrUnexpectedEOF))
	l := NewLines(io.NopCloser(r))
	defer l.Close()

	require.True(t, l.Next())
	require.False(t, l.Next())
	require.ErrorIs(t, l.Err(), io.ErrUnexpectedEOF)
}
