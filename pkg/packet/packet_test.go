package packet

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	. "github.com/onsi/gomega"
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	err := gopacket.SerializeLayers(buf, opts, ls...)
	if err != nil {
		t.Fatalf("failed to serialize test packet: %v", err)
	}
	return buf.Bytes()
}

func ipv4UDP(t *testing.T) []byte {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 231, 0, 1).To4(),
		DstIP:    net.IPv4(10, 231, 0, 2).To4(),
	}
	udp := &layers.UDP{SrcPort: 4000, DstPort: 53}
	err := udp.SetNetworkLayerForChecksum(ip)
	if err != nil {
		t.Fatalf("failed to bind checksum layer: %v", err)
	}
	return serialize(t, ip, udp, gopacket.Payload([]byte{0x01, 0x02, 0x03}))
}

func TestParseIPv4(t *testing.T) {
	RegisterTestingT(t)
	raw := ipv4UDP(t)

	pkt := New(16384)
	copy(pkt.Bytes, raw)
	Expect(pkt.Parse(len(raw))).NotTo(HaveOccurred())
	Expect(pkt.Len()).To(Equal(len(raw)))
	Expect(pkt.Version()).To(Equal(uint8(4)))
	Expect(ProtoToString(pkt.Protocol())).To(Equal("udp"))
	Expect(pkt.Data()).To(Equal(raw))
	Expect(pkt.String()).To(Equal("udp(10.231.0.1 -> 10.231.0.2) len: 31"))
}

func TestParseIPv6(t *testing.T) {
	RegisterTestingT(t)
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("fd00::1"),
		DstIP:      net.ParseIP("fd00::2"),
	}
	udp := &layers.UDP{SrcPort: 4000, DstPort: 53}
	err := udp.SetNetworkLayerForChecksum(ip)
	if err != nil {
		t.Fatalf("failed to bind checksum layer: %v", err)
	}
	raw := serialize(t, ip, udp)

	pkt := New(16384)
	copy(pkt.Bytes, raw)
	Expect(pkt.Parse(len(raw))).NotTo(HaveOccurred())
	Expect(pkt.Version()).To(Equal(uint8(6)))
	Expect(ProtoToString(pkt.Protocol())).To(Equal("udp"))
	Expect(pkt.String()).To(ContainSubstring("fd00::1 -> fd00::2"))
}

func TestParseShort(t *testing.T) {
	RegisterTestingT(t)
	pkt := New(16384)
	copy(pkt.Bytes, []byte{0x01, 0x02, 0x03})
	Expect(pkt.Parse(3)).To(HaveOccurred())
	// The relay still carries the bytes even when they do not decode.
	Expect(pkt.Len()).To(Equal(3))
	Expect(pkt.Data()).To(Equal([]byte{0x01, 0x02, 0x03}))
	Expect(pkt.String()).To(Equal("raw len: 3"))
}

func TestParseUnknownVersion(t *testing.T) {
	RegisterTestingT(t)
	pkt := New(16384)
	pkt.Bytes[0] = 0xff
	Expect(pkt.Parse(minIPv4Len)).To(HaveOccurred())
	Expect(pkt.Len()).To(Equal(minIPv4Len))
}

func TestReset(t *testing.T) {
	RegisterTestingT(t)
	raw := ipv4UDP(t)
	pkt := New(16384)
	copy(pkt.Bytes, raw)
	Expect(pkt.Parse(len(raw))).NotTo(HaveOccurred())

	pkt.Reset()
	Expect(pkt.Len()).To(Equal(0))
	Expect(pkt.Data()).To(BeEmpty())
}
