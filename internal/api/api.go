package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/ledgercert/pkg/storage"
)

const (
	readHeaderTimeout = 5 * time.Second
)

type APIHandler interface {
	Setup(*Api, *mux.Router) error
}

var (
	reg = []func() APIHandler{}
)

type Option func(*Api)

func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *Api) {
		a.gatherer = g
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(a *Api) {
		a.logger = l
	}
}

// Api serves read only views of the ledger store over HTTP
type Api struct {
	store    storage.Reader
	gatherer prometheus.Gatherer
	peers    PeerLister
	epochs   EpochSource
	logger   *logrus.Entry

	router *mux.Router
	srv    *http.Server
}

func NewAPI(store storage.Reader, opts ...Option) (*Api, error) {
	l := logrus.New()
	l.SetOutput(io.Discard)

	a := &Api{
		store:    store,
		gatherer: prometheus.DefaultGatherer,
		logger:   logrus.NewEntry(l),
		router:   mux.NewRouter(),
	}

	for _, opt := range opts {
		opt(a)
	}

	for _, newHandler := range reg {
		if err := newHandler().Setup(a, a.router); err != nil {
			return nil, errors.Wrap(err, "registering handler")
		}
	}

	a.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		a.writeError(w, http.StatusNotFound, storage.ErrNotFound)
	})

	a.srv = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return a, nil
}

func (a *Api) Handler() http.Handler {
	return a.router
}

func (a *Api) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	return a.Serve(lis)
}

func (a *Api) Serve(lis net.Listener) error {
	a.logger.WithField("addr", lis.Addr().String()).Info("serving query api")

	if err := a.srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (a *Api) Shutdown(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *Api) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.WithError(err).Error("encoding response")
	}
}

func (a *Api) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	msg := err.Error()
	if status == http.StatusNotFound {
		msg = storage.ErrNotFound.Error()
	}

	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg}); err != nil {
		a.logger.WithError(err).Error("encoding error response")
	}
}

// writeResult maps a store read onto a response; a nil record is a 404
func (a *Api) writeResult(w http.ResponseWriter, v interface{}, found bool, err error) {
	switch {
	case err != nil:
		a.logger.WithError(err).Error("reading ledger store")
		a.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	case !found:
		a.writeError(w, http.StatusNotFound, storage.ErrNotFound)
	default:
		a.writeJSON(w, v)
	}
}

var errBadParam = errors.New("invalid parameter")

func uintVar(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(errBadParam, "%s must be an unsigned integer", name)
	}

	return v, nil
}
