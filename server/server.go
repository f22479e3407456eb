// Package server is a local web front end for browsing shared repositories
// as a single configured user. It only listens on loopback addresses.
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"repo-view/api"
	"repo-view/model"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Backend is the remote API the server browses.
type Backend interface {
	Contents(ctx context.Context, ref model.RepositoryRef, path string) (model.Content, error)
	Archive(ctx context.Context, ref model.RepositoryRef) (*api.Archive, error)
	Repositories(ctx context.Context) ([]model.Repository, error)
}

type Server struct {
	backend  Backend
	username string
	log      *logrus.Entry

	// key to prevent request forgery; static for server's lifetime.
	key string

	router *chi.Mux
}

type Option func(*Server)

func WithLogger(log *logrus.Entry) Option {
	return func(s *Server) {
		s.log = log
	}
}

// New returns a Server browsing backend as username.
func New(backend Backend, username string, opts ...Option) (*Server, error) {
	key, err := generateKey()
	if err != nil {
		return nil, err
	}

	s := &Server{
		backend:  backend,
		username: username,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		key:      key,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *chi.Mux {
	rtr := chi.NewRouter()
	rtr.Use(RequestMiddleware(s.log))

	// liveness testing
	rtr.Get("/_ok", s.serveOK)

	rtr.Get("/", s.serveRepositories)

	// JSON view model for script clients
	rtr.Route("/_view", func(rtr chi.Router) {
		rtr.Use(cors.Default().Handler)
		rtr.Get("/{owner}/{id}", s.serveViewJSON)
		rtr.Get("/{owner}/{id}/*", s.serveViewJSON)
	})

	rtr.Get("/{owner}/zip/{id}", s.serveArchive)

	rtr.Get("/{owner}/{id}", s.serveView)
	rtr.Get("/{owner}/{id}/*", s.serveView)

	return rtr
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	// Disallow listening on non-loopback addresses: every visitor acts as
	// the configured user.
	if err := IsLocal(addr); err != nil {
		return err
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Warn("shutdown")
		}
	}()

	s.log.WithField("addr", "http://"+l.Addr().String()).Info("serving")
	if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// IsLocal and generateKey are taken from upspin-ui.
// Copyright 2017 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// IsLocal returns an error if the given address is not a loopback address.
func IsLocal(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return err
	}
	for _, ip := range ips {
		if !ip.IsLoopback() {
			return fmt.Errorf("cannot listen on non-loopback address %q", addr)
		}
	}
	return nil
}

func generateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", b), nil
}
