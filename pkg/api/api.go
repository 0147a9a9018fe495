// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// Package api manages the api controllers
package api

import (
	"github.com/edrlab/analytics-server/pkg/conf"
	"github.com/edrlab/analytics-server/pkg/content"
	"github.com/edrlab/analytics-server/pkg/stor"
)

// APICtrl contains the context required by http handlers.
type APICtrl struct {
	*conf.Config
	stor.Store
	Fetcher *content.Fetcher
}

// NewAPICtrl returns a new API controller
func NewAPICtrl(cf *conf.Config, st stor.Store, ft *content.Fetcher) *APICtrl {
	return &APICtrl{
		Config:  cf,
		Store:   st,
		Fetcher: ft,
	}
}
