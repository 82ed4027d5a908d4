package service

import (
	"net/http"
	"sync"

	"github.com/hashicorp/go-metrics"
	"github.com/mosaicnetworks/dpalgo/src/node"
	"github.com/mosaicnetworks/dpalgo/src/register"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// Service exposes the state of the nodes of a process over HTTP:
//
//  /stats      per-node statistics, keyed by listening address
//  /registers  per-node register snapshots, keyed by listening address
//  /metrics    the content of the in-memory metrics sink
type Service struct {
	sync.Mutex

	bindAddress string
	nodes       []*node.Node
	sink        metrics.MetricSink
	mux         *http.ServeMux
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, nodes []*node.Node, sink metrics.MetricSink, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		nodes:       nodes,
		sink:        sink,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering dpalgo API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/registers", s.makeHandler(s.GetRegisters))
	s.mux.HandleFunc("/metrics", s.makeHandler(s.GetMetrics))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving dpalgo API")

	err := http.ListenAndServe(s.bindAddress, s.mux)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	res := make(map[string]map[string]string, len(s.nodes))
	for _, n := range s.nodes {
		stats, err := n.GetStats()
		if err != nil {
			stats = map[string]string{
				"addr":  n.Addr(),
				"state": n.GetState().String(),
				"error": err.Error(),
			}
		}
		res[n.Addr()] = stats
	}

	s.encode(w, res)
}

// GetRegisters ...
func (s *Service) GetRegisters(w http.ResponseWriter, r *http.Request) {
	res := make(map[string][]register.Snapshot, len(s.nodes))
	for _, n := range s.nodes {
		snaps, err := n.GetRegisters()
		if err != nil {
			s.logger.WithError(err).WithField("node", n.Addr()).Warn("Retrieving registers")
			continue
		}
		res[n.Addr()] = snaps
	}

	s.encode(w, res)
}

// GetMetrics ...
func (s *Service) GetMetrics(w http.ResponseWriter, r *http.Request) {
	inm, ok := s.sink.(*metrics.InmemSink)
	if !ok {
		http.Error(w, "metrics are not kept in memory", http.StatusNotFound)
		return
	}

	summary, err := inm.DisplayMetrics(w, r)
	if err != nil {
		s.logger.WithError(err).Error("Displaying metrics")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.encode(w, summary)
}

func (s *Service) encode(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(w, jh)

	if err := enc.Encode(v); err != nil {
		s.logger.WithError(err).Error("Encoding response")
	}
}
