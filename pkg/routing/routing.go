package routing

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"tunsplice/pkg/config"
)

// Configurator replaces the provisioning script of the original
// deployment. For each spliced interface it assigns the point-to-point
// address, brings the link up, removes the kernel's automatic
// local-table host route, installs a dedicated routing table with a
// route to the interface's peer, and attaches a policy rule sending
// traffic arriving on the interface to that table. The net effect is
// that the two interfaces behave as endpoints of a private routed
// point-to-point network.
type Configurator struct {
	conf  *config.Config
	rules []*netlink.Rule
}

type endpoint struct {
	name  string
	addr  *netlink.Addr
	peer  net.IP
	table int
}

func New(conf *config.Config) *Configurator {
	return &Configurator{conf: conf}
}

// Configure applies the whole setup for both interfaces. devices holds
// the kernel-assigned names in configuration order. Failures are fatal
// to the caller; a partially configured network is not usable.
func (c *Configurator) Configure(devices [2]string) error {
	for i, dev := range c.conf.Devices {
		ep, err := newEndpoint(devices[i], dev, c.conf.RoutingTableBase+i)
		if err != nil {
			return err
		}
		err = c.configureEndpoint(ep)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Configurator) configureEndpoint(ep *endpoint) error {
	logrus.Infof("Configuring %v (address: %v, peer: %v, table: %v)",
		ep.name, ep.addr, ep.peer, ep.table)

	link, err := netlink.LinkByName(ep.name)
	if err != nil {
		return fmt.Errorf("failed to find device %v - err: %w", ep.name, err)
	}

	err = netlink.AddrAdd(link, ep.addr)
	if err != nil {
		return fmt.Errorf("failed to set address %v on %v - err: %w", ep.addr, ep.name, err)
	}

	err = netlink.LinkSetUp(link)
	if err != nil {
		return fmt.Errorf("failed to set device %v up - err: %w", ep.name, err)
	}

	// The kernel inserted a host route for the address into the local
	// table; without removing it, traffic to the peer short-circuits
	// inside the host instead of traversing the splice.
	err = netlink.RouteDel(localHostRoute(ep.addr.IP))
	if err != nil {
		return fmt.Errorf("failed to remove local route for %v - err: %w", ep.addr.IP, err)
	}

	err = netlink.RouteAdd(peerRoute(ep.peer, link.Attrs().Index, ep.table))
	if err != nil {
		return fmt.Errorf("failed to add peer route for %v - err: %w", ep.peer, err)
	}

	rule := inboundRule(ep.name, ep.table)
	err = netlink.RuleAdd(rule)
	if err != nil {
		return fmt.Errorf("failed to add policy rule for %v - err: %w", ep.name, err)
	}
	c.rules = append(c.rules, rule)

	return nil
}

// Teardown removes the policy rules. Addresses and routes vanish with
// the interfaces themselves.
func (c *Configurator) Teardown() error {
	for _, rule := range c.rules {
		err := netlink.RuleDel(rule)
		if err != nil {
			logrus.WithError(err).Warnf("Failed to remove policy rule for table %v", rule.Table)
		}
	}
	c.rules = nil
	return nil
}

func newEndpoint(name string, dev config.Device, table int) (*endpoint, error) {
	addr, err := pointToPoint(dev.Address, dev.Peer)
	if err != nil {
		return nil, err
	}
	return &endpoint{
		name:  name,
		addr:  addr,
		peer:  addr.Peer.IP,
		table: table,
	}, nil
}

// pointToPoint builds the address of one endpoint with the other
// endpoint as its peer, the way `ip addr add <addr> peer <peer>` does.
func pointToPoint(address, peer string) (*netlink.Addr, error) {
	addr, err := netlink.ParseAddr(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %v - err: %w", address, err)
	}
	peerIP := net.ParseIP(peer)
	if peerIP == nil {
		return nil, fmt.Errorf("invalid peer address %v", peer)
	}
	addr.Peer = &net.IPNet{
		IP:   peerIP,
		Mask: net.CIDRMask(32, 32),
	}
	return addr, nil
}

func localHostRoute(ip net.IP) *netlink.Route {
	return &netlink.Route{
		Dst: &net.IPNet{
			IP:   ip,
			Mask: net.CIDRMask(32, 32),
		},
		Table: unix.RT_TABLE_LOCAL,
		Type:  unix.RTN_LOCAL,
	}
}

func peerRoute(peer net.IP, linkIndex, table int) *netlink.Route {
	return &netlink.Route{
		LinkIndex: linkIndex,
		Dst: &net.IPNet{
			IP:   peer,
			Mask: net.CIDRMask(32, 32),
		},
		Table: table,
		Scope: netlink.SCOPE_LINK,
	}
}

func inboundRule(ifname string, table int) *netlink.Rule {
	rule := netlink.NewRule()
	rule.IifName = ifname
	rule.Table = table
	return rule
}
