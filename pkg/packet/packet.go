package packet

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/sys/unix"
)

const (
	minIPv4Len = 20
	minIPv6Len = 40
)

// Packet is the transfer buffer of the splice loop plus a read-only IP
// view over it used for diagnostics. The buffer is reused for every
// iteration; only the first Size bytes are meaningful.
type Packet struct {
	Bytes []byte
	Size  int
	ipv6  bool
}

func New(maxBufferSize int) *Packet {
	return &Packet{
		Bytes: make([]byte, maxBufferSize),
	}
}

func (p *Packet) Reset() {
	p.Size = 0
	p.ipv6 = false
}

// Parse records the valid length of the buffer and sanity-checks it as
// an IP packet. The relay does not depend on the check succeeding; a
// non-nil error only means the diagnostics cannot decode the payload.
func (p *Packet) Parse(size int) error {
	p.Size = size
	p.ipv6 = false
	// At least 20 bytes (IPv4 header length) is needed
	if size < minIPv4Len {
		return fmt.Errorf("short packet length=%v", size)
	}
	version := p.Version()
	if version != 4 && version != 6 {
		return fmt.Errorf("unknown IP version %v", version)
	}
	p.ipv6 = version == 6
	if p.ipv6 && size < minIPv6Len {
		return fmt.Errorf("short ipv6 packet length=%v", size)
	}
	return nil
}

// Data returns the valid portion of the buffer.
func (p Packet) Data() []byte {
	return p.Bytes[:p.Size]
}

func (p Packet) Len() int {
	return p.Size
}

func (p Packet) Version() uint8 {
	return p.Bytes[0] >> 4
}

func (p Packet) Protocol() byte {
	if p.ipv6 {
		return p.Bytes[6]
	}
	return p.Bytes[9]
}

func ProtoToString(proto byte) string {
	switch proto {
	case unix.IPPROTO_UDP:
		return "udp"
	case unix.IPPROTO_TCP:
		return "tcp"
	case unix.IPPROTO_ICMP:
		return "icmp"
	case unix.IPPROTO_ICMPV6:
		return "icmp6"
	}
	return "ip"
}

func (p Packet) String() string {
	var first gopacket.Decoder
	switch {
	case p.Size >= minIPv4Len && p.Version() == 4:
		first = layers.LayerTypeIPv4
	case p.Size >= minIPv6Len && p.Version() == 6:
		first = layers.LayerTypeIPv6
	default:
		return fmt.Sprintf("raw len: %v", p.Size)
	}
	decoded := gopacket.NewPacket(p.Data(), first, gopacket.NoCopy)
	netLayer := decoded.NetworkLayer()
	if netLayer == nil {
		return fmt.Sprintf("malformed len: %v", p.Size)
	}
	flow := netLayer.NetworkFlow()
	return fmt.Sprintf("%v(%v -> %v) len: %v",
		ProtoToString(p.Protocol()), flow.Src(), flow.Dst(), p.Size)
}
