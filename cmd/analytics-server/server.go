// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The Analytics Server records blog usage events.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/go-chi/chi/v5"

	"github.com/edrlab/analytics-server/pkg/conf"
	"github.com/edrlab/analytics-server/pkg/content"
	"github.com/edrlab/analytics-server/pkg/stor"
)

// Server context
type Server struct {
	*conf.Config
	stor.Store
	Fetcher *content.Fetcher
	Router  *chi.Mux
}

func main() {

	s := Server{}

	// Initialize the configuration from a config file or/and environment variables
	configFile := os.Getenv("ANALYTICS_CONFIG")
	c, err := conf.Init(configFile)
	if err != nil {
		log.Println("Configuration failed: " + err.Error())
		os.Exit(1)
	}
	s.Config = c

	s.initialize()

	// Set the log level and format
	setLogLevel(s.Config.LogLevel)

	// Watch the config file to apply log level changes without a restart
	if configFile != "" {
		go watchConfig(configFile)
	}

	// Graceful shutdown
	server := &http.Server{
		Addr:    ":" + strconv.Itoa(c.Port),
		Handler: s.Router,
	}

	// System signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Println("Server starting on port " + strconv.Itoa(c.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutdown requested, initiating graceful shutdown...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Error during shutdown: %v", err)
	}
	log.Println("Server halted.")
}

// initialize sets the database, content fetcher and routes
func (s *Server) initialize() {
	var err error

	// Init database
	s.Store, err = stor.Init(s.Config.Dsn)
	if err != nil {
		log.Println("Database setup failed: " + err.Error())
		os.Exit(1)
	}

	// Init the content gateway fetcher
	s.Fetcher = content.NewFetcher(s.Config.Content.Gateways, time.Duration(s.Config.Content.TimeoutSec)*time.Second)

	// Init routes
	s.Router = s.setRoutes()
}

func setLogLevel(logLevel string) {
	if logLevel == "" {
		return
	}
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Println("Invalid log level specified, defaulting to debug")
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{})
}
