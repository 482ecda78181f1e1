package splice

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"tunsplice/pkg/packet"
)

const defaultWaitTimeout = time.Second

// engine owns the two endpoints of the splice and the single transfer
// buffer shared between them. One goroutine runs the whole relay:
// wait for readiness on either descriptor, read at most one buffer
// from each ready device, write the bytes verbatim to the other one.
// Per-iteration I/O failures are absorbed; the data is dropped.
type engine struct {
	devices     [2]NetIO
	pkt         *packet.Packet
	prov        Provisioner
	waitTimeout time.Duration
}

func New(maxBufferSize int, first, second NetIO, opts ...Option) *engine {
	e := &engine{
		devices:     [2]NetIO{first, second},
		pkt:         packet.New(maxBufferSize),
		waitTimeout: defaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts both devices, applies provisioning, and relays until the
// context is cancelled. Only startup failures are returned; they leave
// nothing behind (anything already started is stopped again).
func (e *engine) Run(ctx context.Context) error {
	logrus.Info("Starting the splice engine")
	err := e.start()
	if err != nil {
		return err
	}
	defer e.cleanup()

	logrus.Infof("Splicing %v <-> %v", e.devices[0].Name(), e.devices[1].Name())
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Stopping the splice engine")
			return nil
		default:
		}

		ready, err := e.wait()
		if err != nil {
			logrus.WithError(err).Error("Failure in waiting for readiness")
			continue
		}
		for i, isReady := range ready {
			if !isReady {
				continue
			}
			e.service(e.devices[i], e.devices[1-i])
		}
	}
}

func (e *engine) start() error {
	for i, dev := range e.devices {
		err := dev.Start()
		if err != nil {
			e.stopDevices(e.devices[:i])
			return fmt.Errorf("failed to start device %v - err: %w", dev.Name(), err)
		}
		logrus.Infof("Successfully started %v", dev.Name())
	}
	if e.prov != nil {
		names := [2]string{e.devices[0].Name(), e.devices[1].Name()}
		err := e.prov.Configure(names)
		if err != nil {
			e.stopDevices(e.devices[:])
			return fmt.Errorf("failed to configure network - err: %w", err)
		}
	}
	return nil
}

func (e *engine) cleanup() {
	if e.prov != nil {
		err := e.prov.Teardown()
		if err != nil {
			logrus.WithError(err).Error("Failed tearing down network configuration")
		}
	}
	e.stopDevices(e.devices[:])
}

func (e *engine) stopDevices(devices []NetIO) {
	for _, dev := range devices {
		err := dev.Stop()
		if err != nil {
			logrus.WithError(err).Errorf("Failed cleaning up %v", dev.Name())
		}
	}
}

// wait blocks until a device is readable, the timeout elapses, or a
// signal interrupts the call. Error conditions on a descriptor also
// count as readable so that the subsequent read surfaces them.
func (e *engine) wait() ([2]bool, error) {
	var ready [2]bool
	fds := []unix.PollFd{
		{Fd: int32(e.devices[0].Fd()), Events: unix.POLLIN},
		{Fd: int32(e.devices[1].Fd()), Events: unix.POLLIN},
	}
	num, err := unix.Poll(fds, int(e.waitTimeout.Milliseconds()))
	if err != nil {
		if err == unix.EINTR {
			return ready, nil
		}
		return ready, err
	}
	if num == 0 {
		return ready, nil
	}
	for i, fd := range fds {
		if fd.Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			ready[i] = true
		}
	}
	return ready, nil
}

// service moves one read's worth of bytes from src to dst. A read of
// length L, zero included, becomes exactly one write of L bytes; a
// failed or short write drops the data.
func (e *engine) service(src, dst NetIO) {
	e.pkt.Reset()
	num, err := src.Read(e.pkt.Bytes)
	if err != nil {
		logrus.WithError(err).Errorf("Failure in reading from %v", src.Name())
		return
	}
	logrus.Infof("Received %v bytes from %v", num, src.Name())

	err = e.pkt.Parse(num)
	if err != nil {
		logrus.Debugf("Payload from %v does not decode: %v", src.Name(), err)
	} else if logrus.IsLevelEnabled(logrus.DebugLevel) {
		logrus.Debugf("Packet: %v", e.pkt)
	}

	sent, err := dst.Write(e.pkt.Data())
	if err != nil {
		logrus.WithError(err).Errorf("Failed to write to %v", dst.Name())
		return
	}
	if sent != num {
		logrus.Errorf("Short write to %v: %v of %v bytes", dst.Name(), sent, num)
		return
	}
	logrus.Debugf("Sent %v bytes to %v", num, dst.Name())
}
