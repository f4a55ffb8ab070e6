// Package timesrc provides the calendar time a wake cycle compares shadow
// metadata against. All sources return Unix seconds.
package timesrc

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net"
	"time"

	"thingcode-go/errcode"
	"thingcode-go/x/logx"
	"thingcode-go/x/timex"
)

// Source returns the current time in Unix seconds or fails.
type Source interface {
	Now(ctx context.Context) (int64, error)
}

// Func adapts a function to Source.
type Func func(ctx context.Context) (int64, error)

func (f Func) Now(ctx context.Context) (int64, error) { return f(ctx) }

// System reads the host clock. It fails while the clock is obviously unset
// (before 2020), as on a board that has just powered up.
type System struct{ Clock timex.Clock }

func (s System) Now(context.Context) (int64, error) {
	var c timex.Clock = timex.System{}
	if s.Clock != nil {
		c = s.Clock
	}
	t := c.Now().Unix()
	if t < minValid {
		return 0, &errcode.E{C: errcode.NoTime, Op: "system_time", Msg: "clock not set"}
	}
	return t, nil
}

const minValid = 1_577_836_800 // 2020-01-01

// FromY2K converts a source counting from 2000-01-01, as MCU RTCs do.
type FromY2K struct{ Src Source }

func (f FromY2K) Now(ctx context.Context) (int64, error) {
	s, err := f.Src.Now(ctx)
	if err != nil {
		return 0, err
	}
	return timex.UnixFromY2K(s), nil
}

// SNTP queries a server with the minimal client mode packet.
type SNTP struct {
	Server  string
	Retries int
	Timeout time.Duration
	Log     *slog.Logger
	// Dial is replaceable for tests.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// ntpEpochOffset is the seconds from 1900-01-01 to 1970-01-01.
const ntpEpochOffset = 2_208_988_800

func (s *SNTP) Now(ctx context.Context) (int64, error) {
	retries := s.Retries
	if retries < 1 {
		retries = 6
	}
	log := logx.OrDiscard(s.Log)
	var last error
	for i := 0; i < retries; i++ {
		t, err := s.query(ctx)
		if err == nil {
			return t, nil
		}
		last = err
		log.Warn("ntp query failed", "server", s.Server, "attempt", i+1, "err", err)
		if ctx.Err() != nil {
			break
		}
	}
	return 0, errcode.Wrap(errcode.NoTime, "sntp", last)
}

func (s *SNTP) query(ctx context.Context) (int64, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	dial := s.Dial
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	server := s.Server
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "123")
	}
	conn, err := dial(ctx, "udp", server)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	var pkt [48]byte
	pkt[0] = 0x1b // LI=0, VN=3, Mode=3 (client)
	if _, err := conn.Write(pkt[:]); err != nil {
		return 0, err
	}
	n, err := conn.Read(pkt[:])
	if err != nil {
		return 0, err
	}
	return ParseResponse(pkt[:n])
}

// ParseResponse extracts the transmit timestamp (seconds) from a server
// reply.
func ParseResponse(b []byte) (int64, error) {
	if len(b) < 48 {
		return 0, &errcode.E{C: errcode.Malformed, Op: "sntp", Msg: "short reply"}
	}
	if mode := b[0] & 0x07; mode != 4 {
		return 0, &errcode.E{C: errcode.Malformed, Op: "sntp", Msg: "not a server reply"}
	}
	secs := int64(binary.BigEndian.Uint32(b[40:44]))
	if secs == 0 {
		return 0, &errcode.E{C: errcode.Malformed, Op: "sntp", Msg: "zero timestamp"}
	}
	return secs - ntpEpochOffset, nil
}
