package consensus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type Option func(*Pool) error

func WithLogger(l *logrus.Entry) Option {
	return func(p *Pool) error {
		p.logger = l
		return nil
	}
}

func WithTracer(t Tracer) Option {
	return func(p *Pool) error {
		p.tracer = t
		return nil
	}
}

func WithRegisterer(r prometheus.Registerer) Option {
	return func(p *Pool) error {
		p.registerer = r
		return nil
	}
}

// WithCertifiedBuffer sets the capacity of the Certified channel
func WithCertifiedBuffer(n int) Option {
	return func(p *Pool) error {
		p.certifiedBuffer = n
		return nil
	}
}
