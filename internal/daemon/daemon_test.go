package daemon

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/icom/internal/config"
	"firestige.xyz/icom/internal/core"
	"firestige.xyz/icom/internal/core/coretest"
	"firestige.xyz/icom/internal/log"
	"firestige.xyz/icom/internal/source"
)

// fakeSource yields its frames and then blocks until ctx is done, or returns
// io.EOF when finite is set.
type fakeSource struct {
	frames [][]byte
	finite bool
	closed *atomic.Int32
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) ReadPacket(ctx context.Context) (core.RawPacket, error) {
	if len(f.frames) > 0 {
		frame := f.frames[0]
		f.frames = f.frames[1:]
		return core.RawPacket{Data: frame, Timestamp: time.Now(), OrigLen: uint32(len(frame))}, nil
	}
	if f.finite {
		return core.RawPacket{}, io.EOF
	}
	<-ctx.Done()
	return core.RawPacket{}, ctx.Err()
}

func (f *fakeSource) Close() error {
	f.closed.Add(1)
	return nil
}

func testConfig(t *testing.T, out string) *config.Config {
	t.Helper()
	return &config.Config{
		Filter:  config.FilterConfig{SourceIP: coretest.SourceIP, DestPort: coretest.DestPort},
		Capture: config.CaptureConfig{Workers: 2, FanoutID: 9, ChannelSize: 64, SnapLen: 65535},
		Sinks: []config.SinkConfig{
			{Type: "pcap", Options: map[string]any{"path": out}},
			{Type: "discard"},
		},
		Log: log.LoggerConfig{Level: "info"},
	}
}

func countFrames(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	n := 0
	for {
		if _, _, err := r.ReadPacketData(); err != nil {
			return n
		}
		n++
	}
}

func TestDaemonRunUntilShutdown(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pcap")
	pidFile := filepath.Join(dir, "icom.pid")
	cfg := testConfig(t, out)

	var closed atomic.Int32
	opener := func(_ *config.Config, i int) (source.Source, error) {
		frames := [][]byte{
			coretest.MustBuild(coretest.FrameSpec{DstPort: 5060, Payload: []byte(coretest.SIPRegister())}),
			coretest.MustBuild(coretest.FrameSpec{DstPort: 5061, Payload: []byte("other")}),
		}
		return &fakeSource{frames: frames, closed: &closed}, nil
	}

	d := New(cfg, pidFile, opener)
	require.NoError(t, d.Start())
	assert.FileExists(t, pidFile)

	runErr := make(chan error, 1)
	go func() { runErr <- d.Run() }()

	require.Eventually(t, func() bool {
		return d.Stats().Received == 4
	}, 5*time.Second, 10*time.Millisecond)

	d.Shutdown()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	stats := d.Stats()
	assert.Equal(t, uint64(2), stats.Rewritten)
	assert.Equal(t, uint64(4), stats.Passed)
	assert.Equal(t, int32(2), closed.Load())
	assert.Equal(t, 4, countFrames(t, out))
	assert.NoFileExists(t, pidFile)
	assert.NoError(t, d.Stop(), "second stop is a no-op")
}

func TestDaemonRunEndsWithSources(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.pcap")
	cfg := testConfig(t, out)
	cfg.Capture.Workers = 1

	var closed atomic.Int32
	opener := func(_ *config.Config, _ int) (source.Source, error) {
		return &fakeSource{
			frames: [][]byte{coretest.MustBuild(coretest.FrameSpec{DstPort: 5060})},
			finite: true,
			closed: &closed,
		}, nil
	}

	d := New(cfg, "", opener)
	require.NoError(t, d.Start())
	require.NoError(t, d.Run())
	assert.Equal(t, uint64(1), d.Stats().Received)
	assert.Equal(t, 1, countFrames(t, out))
}

func TestDaemonStartFailsOnSourceError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.pcap")
	cfg := testConfig(t, out)

	var closed atomic.Int32
	opener := func(_ *config.Config, i int) (source.Source, error) {
		if i == 1 {
			return nil, errors.New("no such device")
		}
		return &fakeSource{closed: &closed}, nil
	}

	d := New(cfg, "", opener)
	err := d.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such device")
	assert.Equal(t, int32(1), closed.Load(), "already opened sources are closed")
}

func TestDaemonStartFailsOnUnknownSink(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "out.pcap"))
	cfg.Sinks = append(cfg.Sinks, config.SinkConfig{Type: "carrier-pigeon"})

	d := New(cfg, "", func(*config.Config, int) (source.Source, error) {
		t.Fatal("sources must not be opened when sinks fail")
		return nil, nil
	})
	assert.ErrorIs(t, d.Start(), core.ErrUnknownSink)
}
