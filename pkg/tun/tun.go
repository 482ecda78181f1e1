package tun

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

const (
	devicePath = "/dev/net/tun"

	defaultTemplate = "tun%d"
	defaultMTU      = 1500
)

// Device is a point-to-point virtual interface backed by the kernel
// tun driver. It exchanges raw IP packets with no link-layer framing
// and no packet-information prefix. The device is not persistent: the
// kernel reclaims it when the descriptor is closed.
type Device struct {
	template string
	name     string
	mtu      int
	file     *os.File
}

func New(opts ...Option) *Device {
	dev := &Device{
		template: defaultTemplate,
		mtu:      defaultMTU,
	}
	for _, opt := range opts {
		opt(dev)
	}
	return dev
}

// Start allocates the interface. The template may contain a kernel
// name pattern such as "tun%d"; the concrete name the kernel assigned
// is available from Name afterwards. Any failure here is fatal to the
// caller, there are no retries.
func (t *Device) Start() error {
	logrus.Infof("Creating tun device from template %v (mtu: %v)", t.template, t.mtu)
	err := t.allocate()
	if err != nil {
		return err
	}
	logrus.Infof("Created: %v", t.name)
	return nil
}

func (t *Device) allocate() error {
	fd, err := unix.Open(devicePath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("failed to open %v - err: %w", devicePath, err)
	}

	ifr, err := unix.NewIfreq(t.template)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("invalid name template %v - err: %w", t.template, err)
	}
	ifr.SetUint16(unix.IFF_TUN | unix.IFF_NO_PI)

	err = unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to configure tun device %v - err: %w", t.template, err)
	}

	t.name = ifr.Name()
	t.file = os.NewFile(uintptr(fd), t.name)

	link, err := netlink.LinkByName(t.name)
	if err != nil {
		t.file.Close()
		return fmt.Errorf("failed to find tun device %v - err: %w", t.name, err)
	}
	err = netlink.LinkSetMTU(link, t.mtu)
	if err != nil {
		t.file.Close()
		return fmt.Errorf("failed to set tun device mtu to %v - err: %w", t.mtu, err)
	}
	return nil
}

// Name returns the kernel-assigned interface name, or the template if
// the device has not been allocated yet.
func (t *Device) Name() string {
	if t.name == "" {
		return t.template
	}
	return t.name
}

func (t *Device) Fd() int {
	return int(t.file.Fd())
}

func (t *Device) Read(pkt []byte) (int, error) {
	return t.file.Read(pkt)
}

func (t *Device) Write(pkt []byte) (int, error) {
	return t.file.Write(pkt)
}

// Stop closes the descriptor; the kernel removes the interface with it.
func (t *Device) Stop() error {
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	if err != nil {
		return fmt.Errorf("failed to close tun device %v - err: %w", t.name, err)
	}
	return nil
}
