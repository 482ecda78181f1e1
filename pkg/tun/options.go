package tun

type Option func(*Device)

func WithTemplate(template string) Option {
	return func(t *Device) {
		t.template = template
	}
}

func WithMTU(mtu int) Option {
	return func(t *Device) {
		t.mtu = mtu
	}
}
