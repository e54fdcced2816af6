package editlock

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	AcquireTotal *prometheus.CounterVec // result=granted|denied|error
	RenewTotal   *prometheus.CounterVec // result=renewed|lost|error
	ReleaseTotal *prometheus.CounterVec // result=released|error
	LeasesHeld   prometheus.Gauge
}

// NewMetrics builds the coordinator collectors and registers them on reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AcquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editlock_acquire_total",
				Help: "Edit lease acquire attempts by result",
			},
			[]string{"result"},
		),
		RenewTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editlock_renew_total",
				Help: "Edit lease renewal ticks by result",
			},
			[]string{"result"},
		),
		ReleaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editlock_release_total",
				Help: "Edit lease releases by result",
			},
			[]string{"result"},
		),
		LeasesHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "editlock_leases_held",
			Help: "Edit leases this client currently believes it holds",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.AcquireTotal, m.RenewTotal, m.ReleaseTotal, m.LeasesHeld)
	}
	return m
}

func (m *Metrics) acquired(result string) {
	if m != nil {
		m.AcquireTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) renewed(result string) {
	if m != nil {
		m.RenewTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) released(result string) {
	if m != nil {
		m.ReleaseTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) held(n int) {
	if m != nil {
		m.LeasesHeld.Set(float64(n))
	}
}
