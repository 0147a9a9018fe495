// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package main

import (
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/edrlab/analytics-server/pkg/conf"
)

// watchConfig monitors changes of the configuration file and applies
// the log level on the fly. Other settings require a restart.
func watchConfig(configFile string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Errorf("Error creating watcher: %v", err)
		return
	}
	defer watcher.Close()

	err = watcher.Add(configFile)
	if err != nil {
		log.Errorf("Error watching the configuration file: %v", err)
		return
	}

	log.Printf("Monitoring configuration file: %s", configFile)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				c, err := conf.Init(configFile)
				if err != nil {
					log.Errorf("Error re-reading the configuration: %v", err)
					continue
				}
				log.Printf("Configuration modified, applying log level %q", c.LogLevel)
				setLogLevel(c.LogLevel)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Error watching: %v", err)
		}
	}
}
