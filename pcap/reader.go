// Package pcap extracts BGP messages from packet captures
package pcap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/google/gopacket/tcpassembly"

	"github.com/taktv6/bgpwire/packet"
)

// Message is a BGP message found in a capture. Err is set if the
// message was framed correctly but could not be decoded.
type Message struct {
	Timestamp time.Time
	Src       string
	Dst       string
	Raw       []byte
	Msg       *packet.BGPMessage
	Err       error
}

// Handler is called for every message in capture order
type Handler func(m *Message)

// Stats counts what a Reader has seen
type Stats struct {
	Packets      uint64
	Messages     uint64
	Errors       uint64
	SkippedBytes uint64
}

// Reader reassembles BGP sessions from a capture
type Reader struct {
	port        layers.TCPPort
	maxBuffered int
	dec         *packet.Decoder
	handler     Handler
	stats       Stats
}

// NewReader creates a reader for BGP sessions on TCP port port. Messages
// are decoded with opt and passed to h. Streams holding more than
// maxBuffered bytes without a complete message are reset.
func NewReader(port uint16, maxBuffered int, opt *packet.Options, h Handler) *Reader {
	return &Reader{
		port:        layers.TCPPort(port),
		maxBuffered: maxBuffered,
		dec:         packet.NewDecoder(opt),
		handler:     h,
	}
}

// Stats returns the counters of r
func (r *Reader) Stats() Stats {
	return r.stats
}

// ReadFile reads the pcap file at path
func (r *Reader) ReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("Unable to open capture: %w", err)
	}
	defer f.Close()

	return r.Read(f)
}

// Read reads a capture in pcap format from in
func (r *Reader) Read(in io.Reader) error {
	pr, err := pcapgo.NewReader(in)
	if err != nil {
		return fmt.Errorf("Unable to read capture header: %w", err)
	}

	assembler := tcpassembly.NewAssembler(tcpassembly.NewStreamPool(&streamFactory{r: r}))
	source := gopacket.NewPacketSource(pr, pr.LinkType())
	source.NoCopy = true

	for {
		p, err := source.NextPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("Unable to read packet %d: %w", r.stats.Packets+1, err)
		}

		r.stats.Packets++
		r.assemble(assembler, p)
	}

	assembler.FlushAll()
	return nil
}

func (r *Reader) assemble(a *tcpassembly.Assembler, p gopacket.Packet) {
	nl := p.NetworkLayer()
	tl, ok := p.TransportLayer().(*layers.TCP)
	if nl == nil || !ok {
		return
	}

	if tl.SrcPort != r.port && tl.DstPort != r.port {
		return
	}

	a.AssembleWithTimestamp(nl.NetworkFlow(), tl, p.Metadata().Timestamp)
}

func (r *Reader) emit(m *Message) {
	r.stats.Messages++
	if m.Err != nil {
		r.stats.Errors++
	}

	if r.handler != nil {
		r.handler(m)
	}
}

type streamFactory struct {
	r *Reader
}

func (f *streamFactory) New(netFlow, tcpFlow gopacket.Flow) tcpassembly.Stream {
	glog.V(2).Infof("New stream %s:%s -> %s:%s", netFlow.Src(), tcpFlow.Src(), netFlow.Dst(), tcpFlow.Dst())
	return &bgpStream{
		r:   f.r,
		src: fmt.Sprintf("%s:%s", netFlow.Src(), tcpFlow.Src()),
		dst: fmt.Sprintf("%s:%s", netFlow.Dst(), tcpFlow.Dst()),
	}
}

// bgpStream splits one direction of a TCP connection into BGP messages
type bgpStream struct {
	r        *Reader
	src, dst string
	buf      []byte
	seen     time.Time
}

var marker = bytes.Repeat([]byte{0xff}, packet.MarkerLen)

func (s *bgpStream) Reassembled(rs []tcpassembly.Reassembly) {
	for _, x := range rs {
		if x.Skip > 0 {
			glog.V(1).Infof("%s -> %s: %d bytes lost, resynchronizing", s.src, s.dst, x.Skip)
			s.skip(len(s.buf))
		}

		s.seen = x.Seen
		s.buf = append(s.buf, x.Bytes...)
		s.split()

		if len(s.buf) > s.r.maxBuffered {
			glog.Warningf("%s -> %s: %d bytes without a complete message, dropping", s.src, s.dst, len(s.buf))
			s.skip(len(s.buf))
		}
	}
}

func (s *bgpStream) ReassemblyComplete() {
	if len(s.buf) > 0 {
		glog.V(1).Infof("%s -> %s: %d trailing bytes at end of stream", s.src, s.dst, len(s.buf))
		s.skip(len(s.buf))
	}
}

func (s *bgpStream) skip(n int) {
	s.r.stats.SkippedBytes += uint64(n)
	s.buf = s.buf[n:]
	if len(s.buf) == 0 {
		s.buf = nil
	}
}

// split passes every complete message at the start of the buffer on
func (s *bgpStream) split() {
	for len(s.buf) > 0 {
		i := bytes.Index(s.buf, marker)
		if i < 0 {
			// Keep what might be the start of a marker
			if n := len(s.buf) - (packet.MarkerLen - 1); n > 0 {
				s.skip(n)
			}
			return
		}
		if i > 0 {
			s.skip(i)
		}

		l, err := packet.PeekLength(s.buf)
		if errors.Is(err, packet.ErrTruncatedInput) {
			return
		}
		if err != nil {
			glog.V(1).Infof("%s -> %s: %v", s.src, s.dst, err)
			s.skip(1)
			continue
		}

		if len(s.buf) < l {
			return
		}

		raw := make([]byte, l)
		copy(raw, s.buf[:l])
		s.buf = s.buf[l:]

		msg, err := s.r.dec.Decode(bytes.NewBuffer(raw))
		if err != nil {
			glog.V(1).Infof("%s -> %s: %v", s.src, s.dst, err)
		}

		s.r.emit(&Message{
			Timestamp: s.seen,
			Src:       s.src,
			Dst:       s.dst,
			Raw:       raw,
			Msg:       msg,
			Err:       err,
		})
	}
}
