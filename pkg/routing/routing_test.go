package routing

import (
	"net"
	"testing"

	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"

	"tunsplice/pkg/config"
)

func TestPointToPoint(t *testing.T) {
	RegisterTestingT(t)
	addr, err := pointToPoint("10.231.0.1/32", "10.231.0.2")
	Expect(err).NotTo(HaveOccurred())
	Expect(addr.IP.String()).To(Equal("10.231.0.1"))
	Expect(addr.Peer).NotTo(BeNil())
	Expect(addr.Peer.IP.String()).To(Equal("10.231.0.2"))
	ones, bits := addr.Peer.Mask.Size()
	Expect(ones).To(Equal(32))
	Expect(bits).To(Equal(32))
}

func TestPointToPointInvalid(t *testing.T) {
	RegisterTestingT(t)
	_, err := pointToPoint("not-an-address", "10.231.0.2")
	Expect(err).To(HaveOccurred())

	_, err = pointToPoint("10.231.0.1/32", "not-a-peer")
	Expect(err).To(HaveOccurred())
}

func TestLocalHostRoute(t *testing.T) {
	RegisterTestingT(t)
	route := localHostRoute(net.ParseIP("10.231.0.1"))
	Expect(route.Table).To(Equal(unix.RT_TABLE_LOCAL))
	Expect(route.Type).To(Equal(unix.RTN_LOCAL))
	Expect(route.Dst.String()).To(Equal("10.231.0.1/32"))
}

func TestPeerRoute(t *testing.T) {
	RegisterTestingT(t)
	route := peerRoute(net.ParseIP("10.231.0.2"), 7, 101)
	Expect(route.LinkIndex).To(Equal(7))
	Expect(route.Table).To(Equal(101))
	Expect(route.Dst.String()).To(Equal("10.231.0.2/32"))
}

func TestInboundRule(t *testing.T) {
	RegisterTestingT(t)
	rule := inboundRule("tun0", 101)
	Expect(rule.IifName).To(Equal("tun0"))
	Expect(rule.Table).To(Equal(101))
}

func TestNewEndpoint(t *testing.T) {
	RegisterTestingT(t)
	dev := config.Device{
		Name:    "tun%d",
		Address: "10.231.0.1/32",
		Peer:    "10.231.0.2",
	}
	ep, err := newEndpoint("tun3", dev, 100)
	Expect(err).NotTo(HaveOccurred())
	Expect(ep.name).To(Equal("tun3"))
	Expect(ep.table).To(Equal(100))
	Expect(ep.peer.String()).To(Equal("10.231.0.2"))
}
