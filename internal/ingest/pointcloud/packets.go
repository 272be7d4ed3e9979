package pointcloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/liframe/internal/ingest"
	"github.com/banshee-data/liframe/internal/timeutil"
)

// PacketSource yields raw sensor UDP payloads.
type PacketSource interface {
	ReadPacket(ctx context.Context) ([]byte, error)
	Close() error
}

const udpPollInterval = 250 * time.Millisecond

// UDPSource reads payloads from a UDP socket.
type UDPSource struct {
	conn *net.UDPConn
	buf  []byte
}

// ListenUDP binds addr (host:port). rcvBuf > 0 sets the socket receive buffer.
func ListenUDP(addr string, rcvBuf int) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	if rcvBuf > 0 {
		if err := conn.SetReadBuffer(rcvBuf); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set receive buffer: %w", err)
		}
	}
	return &UDPSource{conn: conn, buf: make([]byte, 65535)}, nil
}

// Addr is the bound local address.
func (s *UDPSource) Addr() net.Addr { return s.conn.LocalAddr() }

// ReadPacket blocks until a datagram arrives, ctx is done, or the socket closes.
func (s *UDPSource) ReadPacket(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(udpPollInterval)); err != nil {
			return nil, err
		}
		n, _, err := s.conn.ReadFromUDP(s.buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, ingest.ErrClosed
			}
			return nil, err
		}
		out := make([]byte, n)
		copy(out, s.buf[:n])
		return out, nil
	}
}

func (s *UDPSource) Close() error { return s.conn.Close() }

type packetDataReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// PCAPSource replays UDP payloads from a pcap or pcapng capture, pacing them
// by their capture timestamps.
type PCAPSource struct {
	f      *os.File
	r      packetDataReader
	port   int
	clock  timeutil.Clock
	lastTS time.Time
	pace   bool
}

// OpenPCAP opens a capture. port > 0 keeps only datagrams sent to that port.
// When pace is false packets are returned as fast as they are read.
func OpenPCAP(path string, port int, pace bool, clock timeutil.Clock) (*PCAPSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	var r packetDataReader
	if strings.EqualFold(filepath.Ext(path), ".pcapng") {
		r, err = pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(f)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read PCAP header %s: %w", path, err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &PCAPSource{f: f, r: r, port: port, clock: clock, pace: pace}, nil
}

// ReadPacket returns the next matching UDP payload, or io.EOF at the end of the capture.
func (s *PCAPSource) ReadPacket(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, ci, err := s.r.ReadPacketData()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("read PCAP packet: %w", err)
		}
		pkt := gopacket.NewPacket(data, s.r.LinkType(), gopacket.NoCopy)
		udpLayer := pkt.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if s.port > 0 && int(udp.DstPort) != s.port {
			continue
		}
		if s.pace && !s.lastTS.IsZero() {
			if err := timeutil.SleepContext(ctx, s.clock, ci.Timestamp.Sub(s.lastTS)); err != nil {
				return nil, err
			}
		}
		s.lastTS = ci.Timestamp
		return udp.Payload, nil
	}
}

func (s *PCAPSource) Close() error { return s.f.Close() }
