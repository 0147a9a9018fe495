// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package api

import (
	"errors"
	"net/http"

	"github.com/edrlab/analytics-server/pkg/content"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// GetContent proxies a content-addressed payload (a code snippet) from the
// configured IPFS gateways. The frontend gets a single stable origin and
// the gateway fallback policy stays server side.
func (a *APICtrl) GetContent(w http.ResponseWriter, r *http.Request) {

	// check the presence of the required param
	param := chi.URLParam(r, "cid")
	if param == "" {
		render.Render(w, r, ErrInvalidRequest(errors.New("missing required content identifier")))
		return
	}
	cid, err := content.ExtractCID(param)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	body, err := a.Fetcher.Fetch(r.Context(), cid)
	if err != nil {
		render.Render(w, r, ErrGateway(err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(body)
}
