package splice

// NetIO is one endpoint of the splice: a descriptor-backed device the
// engine can wait on, read from, and write to. Exactly one platform
// implementation exists (pkg/tun); tests substitute pipe-backed fakes.
type NetIO interface {
	Start() error
	Stop() error

	Name() string
	Fd() int

	Read([]byte) (int, error)
	Write([]byte) (int, error)
}

// Provisioner applies external network configuration once both devices
// exist. It stands in for the provisioning script of the original
// deployment (addresses, policy routes, rules).
type Provisioner interface {
	Configure(devices [2]string) error
	Teardown() error
}
