package service

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"sync"

	"github.com/fractalnet/fractal/src/node"
	"github.com/sirupsen/logrus"
)

// Service exposes a local HTTP API over the node: read posts and peers,
// publish, edit, and evaluate.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of the
// http package. It is possible that another server in the same process is
// simultaneously using the DefaultServerMux. In which case, the handlers will
// be accessible from both servers. This is usefull when Fractal is used
// in-memory and expected to use the same endpoint (address:port) as the
// application's API.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering Fractal API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/posts", s.makeHandler(s.PostsHandler))
	http.HandleFunc("/posts/", s.makeHandler(s.PostHandler))
	http.HandleFunc("/drafts", s.makeHandler(s.GetDrafts))
	http.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	http.HandleFunc("/connect", s.makeHandler(s.Connect))
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

// Serve calls ListenAndServe. This is a blocking call. It is not necessary to
// call Serve when Fractal is used in-memory and another server has already
// been started with the DefaultServerMux and the same address:port
// combination. Indeed, Fractal API handlers have already been registered when
// the service was instantiated.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving Fractal API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// PostsHandler serves the active post set on GET and publishes a new post on
// POST. The request body is the raw content; the ?draft query flag stores it
// without publishing.
func (s *Service) PostsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.node.ActivePosts())

	case http.MethodPost:
		content, err := ioutil.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		draft := r.URL.Query().Get("draft") == "true"

		post, err := s.node.CreatePost(string(content), draft)
		if err != nil {
			s.logger.WithError(err).Error("Creating post")
			http.Error(w, err.Error(), statusFor(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(post)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// PostHandler serves one post on GET /posts/{id}, rewrites it on PUT, and
// evaluates it on POST /posts/{id}/like or /posts/{id}/dislike.
func (s *Service) PostHandler(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/posts/"):]

	id, action := param, ""
	if i := len(param) - len("/like"); i > 0 && param[i:] == "/like" {
		id, action = param[:i], "like"
	} else if i := len(param) - len("/dislike"); i > 0 && param[i:] == "/dislike" {
		id, action = param[:i], "dislike"
	}

	switch {
	case r.Method == http.MethodGet && action == "":
		post, ok := s.node.GetPost(id)
		if !ok {
			http.Error(w, "post not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(post)

	case r.Method == http.MethodPut && action == "":
		content, err := ioutil.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		post, err := s.node.EditPost(id, string(content))
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		if post == nil {
			http.Error(w, "not the author", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(post)

	case r.Method == http.MethodPost && action != "":
		var err error
		if action == "like" {
			err = s.node.Like(id)
		} else {
			err = s.node.Dislike(id)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// GetDrafts ...
func (s *Service) GetDrafts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.DraftPosts())
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.Peers())
}

// Connect dials the peer address given in the request body.
func (s *Service) Connect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	addr, err := ioutil.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.node.Connect(string(addr)); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps lifecycle errors to HTTP status codes.
func statusFor(err error) int {
	switch err {
	case node.ErrUnauthenticated:
		return http.StatusUnauthorized
	case node.ErrQuotaExceeded, node.ErrBanned:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
