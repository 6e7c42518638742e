package prom

import (
	"errors"
	"fmt"
	"sync"

	xhttp "github.com/nimasrn/expense-tracker/pkg/http"
	"github.com/nimasrn/expense-tracker/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemLedger  = "ledger"
	SystemAccount = "account"
	SystemMail    = "mail"
	SystemQueue   = "queue"
)

const (
	MetricGuardRejections  = "guard_rejections_total"
	MetricLedgerMutations  = "mutations_total"
	MetricAccountEvents    = "events_total"
	MetricMailDispatch     = "dispatch_total"
	MetricMailDuration     = "dispatch_duration_seconds"
	MetricQueueDepth       = "depth"
	MetricQueuePending     = "pending"
	MetricWorkerBufferSize = "worker_buffer_size"
)

const (
	TypeCounterVec   = "counterVec"
	TypeHistogramVec = "histogramVec"
	TypeGaugeVec     = "gaugeVec"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionGaugeVec = make(map[string]*prometheus.GaugeVec)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// Create registers every metric of the application under nameSpace.
// Until it is called all Add* helpers are no-ops.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = prometheus.Labels{"env": env, "instance": host}
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(CreateMetric(TypeCounterVec, SystemLedger, MetricGuardRejections, "operation"))
	hasError(CreateMetric(TypeCounterVec, SystemLedger, MetricLedgerMutations, "operation"))
	hasError(CreateMetric(TypeCounterVec, SystemAccount, MetricAccountEvents, "event"))
	hasError(CreateMetric(TypeCounterVec, SystemMail, MetricMailDispatch, "status"))
	hasError(CreateMetric(TypeHistogramVec, SystemMail, MetricMailDuration, "driver"))
	hasError(CreateMetric(TypeGaugeVec, SystemQueue, MetricQueueDepth, "queue"))
	hasError(CreateMetric(TypeGaugeVec, SystemQueue, MetricQueuePending, "queue"))
	hasError(CreateMetric(TypeGaugeVec, SystemQueue, MetricWorkerBufferSize, "queue"))

	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labels ...string) error {
	switch metricType {
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labels)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labels)
	case TypeGaugeVec:
		return createGaugeVec(metricSubsystem, metricName, labels)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

// NewServer returns an engine exposing the default registry at url.
func NewServer(url string) *xhttp.Engine {
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.GET(url, fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	return s
}

func ListenAndServe(addr string, url string) error {
	logger.Info("[metrics-server] listening...", "addr", addr, "url", url)
	return NewServer(url).ListenAndServe(addr)
}

func register(c prometheus.Collector) error {
	err := prometheus.Register(c)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return nil
	}
	return err
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		return nil
	}
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		return nil
	}
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	}, labels)
	return register(MetricCollectionHistogramVec[subsystem+name])
}

func createGaugeVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		return nil
	}
	MetricCollectionGaugeVec[subsystem+name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionGaugeVec[subsystem+name])
}

func SetGaugeVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Set(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func IncGuardRejection(operation string) {
	IncCounterVec(SystemLedger, MetricGuardRejections, operation)
}

func IncLedgerMutation(operation string) {
	IncCounterVec(SystemLedger, MetricLedgerMutations, operation)
}

func IncAccountEvent(event string) {
	IncCounterVec(SystemAccount, MetricAccountEvents, event)
}

func AddMailDispatch(status, driver string, seconds float64) {
	IncCounterVec(SystemMail, MetricMailDispatch, status)
	AddHistogramVec(SystemMail, MetricMailDuration, seconds, driver)
}
