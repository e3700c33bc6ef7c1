package sip

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/icom/internal/core"
	"firestige.xyz/icom/internal/core/coretest"
	"firestige.xyz/icom/internal/core/decoder"
	"firestige.xyz/icom/internal/core/filter"
	"firestige.xyz/icom/internal/log"
)

func newTestInspector(t *testing.T, buf *bytes.Buffer) *Inspector {
	t.Helper()
	logger, err := log.NewWithWriter(&log.LoggerConfig{Level: "debug", Pattern: "%msg %field"}, buf)
	require.NoError(t, err)
	return New(logger)
}

func newTestProgram(t *testing.T) *filter.Program {
	t.Helper()
	p, err := filter.New(filter.Config{Match: decoder.MatchConfig{
		Source:   netip.MustParseAddr(coretest.SourceIP),
		DestPort: coretest.DestPort,
	}})
	require.NoError(t, err)
	return p
}

func rewrittenRegister(t *testing.T) ([]byte, filter.Result) {
	t.Helper()
	frame := coretest.MustBuild(coretest.FrameSpec{DstPort: 5060, Payload: []byte(coretest.SIPRegister())})
	res := newTestProgram(t).Inspect(frame)
	require.True(t, res.Rewritten)
	return frame, res
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		expected bool
	}{
		{"SIP INVITE request", "INVITE sip:alice@example.com SIP/2.0\r\n", true},
		{"SIP REGISTER request", "REGISTER sip:example.com SIP/2.0\r\n", true},
		{"SIP 200 OK response", "SIP/2.0 200 OK\r\n", true},
		{"Not SIP - HTTP request", "GET /index.html HTTP/1.1\r\n", false},
		{"Not SIP - random data", "some random data", false},
		{"Empty data", "", false},
		{"False positive - INVITE without space", "INVITEsomething", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Detect([]byte(tt.data)))
		})
	}
}

func TestLineAt(t *testing.T) {
	payload := []byte("A: 1\r\nB: 2,  3\r\nC: 4\r\n")
	assert.Equal(t, "B: 2,  3", lineAt(payload, 11))
	assert.Equal(t, "A: 1", lineAt(payload, 0))
	assert.Equal(t, "", lineAt(payload, -1))
	assert.Equal(t, "", lineAt(payload, len(payload)))
	assert.Equal(t, "tail", lineAt([]byte("tail"), 2))
}

func TestInspectRewrittenRegister(t *testing.T) {
	var buf bytes.Buffer
	insp := newTestInspector(t, &buf)
	frame, res := rewrittenRegister(t)

	require.NoError(t, insp.Inspect(frame, res.Match, res.FoldOffset))

	out := buf.String()
	assert.Contains(t, out, "rewritten SIP message")
	assert.Contains(t, out, "method=REGISTER")
	assert.Contains(t, out, "call_id=8f1d2c3b@172.20.222.1")
	assert.Contains(t, out, `merged=Authorization: Digest username="1001",realm="icom.example",  nonce="a1b2c3"`)
}

func TestParseSummary(t *testing.T) {
	var buf bytes.Buffer
	insp := newTestInspector(t, &buf)

	s, err := insp.Parse([]byte(coretest.SIPRegister()))
	require.NoError(t, err)
	assert.True(t, s.Request)
	assert.Equal(t, "REGISTER", s.Method)
	assert.Equal(t, "8f1d2c3b@172.20.222.1", s.CallID)
	assert.Equal(t, "REGISTER sip:icom.example SIP/2.0", s.StartLine)
	assert.Greater(t, s.Headers, 5)

	resp := "SIP/2.0 200 OK\r\n" +
		"Via: SIP/2.0/UDP 172.20.222.1:5060;branch=z9hG4bK-524287-1\r\n" +
		"From: <sip:1001@icom.example>;tag=4a5b6c\r\n" +
		"To: <sip:1001@icom.example>;tag=99\r\n" +
		"Call-ID: resp-1@icom\r\n" +
		"CSeq: 2 REGISTER\r\n" +
		"Content-Length: 0\r\n" +
		"\r\n"
	s, err = insp.Parse([]byte(resp))
	require.NoError(t, err)
	assert.False(t, s.Request)
	assert.Equal(t, 200, s.StatusCode)
	assert.Equal(t, "resp-1@icom", s.CallID)
}

func TestInspectNotSIP(t *testing.T) {
	var buf bytes.Buffer
	insp := newTestInspector(t, &buf)

	m := decoder.Match{UDPOffset: 34, PayloadOffset: coretest.PayloadOffset}
	frame := coretest.MustBuild(coretest.FrameSpec{DstPort: 5060, Payload: []byte("hello,\r\n world")})
	assert.ErrorIs(t, insp.Inspect(frame, m, 8), core.ErrNotSIP)

	assert.ErrorIs(t, insp.Inspect([]byte{0x01, 0x02}, m, 0), core.ErrNotSIP)

	_, err := insp.Parse(nil)
	assert.ErrorIs(t, err, core.ErrNotSIP)
}

// With IPv4 options the filter reads the UDP header from the options and
// scans from the fixed offset 42. The inspector must see those same bytes,
// not the payload a full decoder would find at 46.
func TestInspectUsesFilterOffsets(t *testing.T) {
	var buf bytes.Buffer
	insp := newTestInspector(t, &buf)

	plain := coretest.MustBuild(coretest.FrameSpec{DstPort: 5060, Payload: []byte(coretest.SIPRegister())})
	options := []byte{0x13, 0xc4, 0x13, 0xc4} // read as ports 5060 -> 5060
	frame := append(append(bytes.Clone(plain[:34]), options...), plain[34:]...)
	frame[14] = 0x46 // IHL 6

	res := newTestProgram(t).Inspect(frame)
	require.True(t, res.Rewritten, "fold is found from the fixed payload offset")
	require.Equal(t, coretest.PayloadOffset, res.Match.PayloadOffset)

	err := insp.Inspect(frame, res.Match, res.FoldOffset)
	assert.ErrorIs(t, err, core.ErrNotSIP, "payload at offset 42 starts inside the real UDP header")
	assert.NotContains(t, buf.String(), "rewritten SIP message")
}
