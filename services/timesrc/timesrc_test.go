package timesrc

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thingcode-go/errcode"
	"thingcode-go/x/timex"
)

func reply(unix int64) []byte {
	b := make([]byte, 48)
	b[0] = 0x1c // VN=3, Mode=4
	binary.BigEndian.PutUint32(b[40:44], uint32(unix+ntpEpochOffset))
	return b
}

func TestParseResponse(t *testing.T) {
	got, err := ParseResponse(reply(1_700_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), got)

	_, err = ParseResponse(make([]byte, 10))
	assert.Equal(t, errcode.Malformed, errcode.Of(err))

	bad := reply(1_700_000_000)
	bad[0] = 0x1b
	_, err = ParseResponse(bad)
	assert.Equal(t, errcode.Malformed, errcode.Of(err))
}

func TestSNTPAgainstLocalServer(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()
	go func() {
		buf := make([]byte, 48)
		_, addr, err := pc.ReadFrom(buf)
		if err != nil {
			return
		}
		_, _ = pc.WriteTo(reply(1_700_000_123), addr)
	}()

	s := &SNTP{Server: pc.LocalAddr().String(), Timeout: time.Second}
	got, err := s.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_123), got)
}

func TestSNTPRetries(t *testing.T) {
	attempts := 0
	s := &SNTP{
		Server: "time.invalid",
		Dial: func(context.Context, string, string) (net.Conn, error) {
			attempts++
			return nil, errors.New("unreachable")
		},
	}
	_, err := s.Now(context.Background())
	assert.Equal(t, errcode.NoTime, errcode.Of(err))
	assert.Equal(t, 6, attempts)
}

func TestSystemRejectsUnsetClock(t *testing.T) {
	m := timex.NewManual()
	got, err := System{Clock: m}.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, m.T.Unix(), got)

	m.T = time.Unix(100, 0)
	_, err = System{Clock: m}.Now(context.Background())
	assert.Equal(t, errcode.NoTime, errcode.Of(err))
}

func TestFromY2K(t *testing.T) {
	src := Func(func(context.Context) (int64, error) { return 753_315_200, nil })
	got, err := FromY2K{Src: src}.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), got)
}
