// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The content package fetches content-addressed payloads (code snippets)
// from public IPFS gateways, trying each configured gateway in sequence.
package content

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrBadCID is returned when no content identifier can be extracted from the input.
var ErrBadCID = errors.New("invalid IPFS content identifier")

// ErrUnreachable is returned when every configured gateway failed or
// answered with an error page.
var ErrUnreachable = errors.New("content unreachable on all gateways")

// cidPattern matches v0 (Qm...) and v1 (base32/base58) content identifiers.
var cidPattern = regexp.MustCompile(`(Qm[1-9A-HJ-NP-Za-km-z]{44}|b[A-Za-z2-7]{58}|B[A-Z2-7]{58}|z[1-9A-HJ-NP-Za-km-z]{48}|F[0-9A-Za-z]{50})`)

// Fetcher retrieves content-addressed payloads through a list of gateways.
type Fetcher struct {
	gateways []string
	client   *http.Client
}

// NewFetcher returns a fetcher using the given gateway URL prefixes,
// each ending with a slash, e.g. "https://ipfs.io/ipfs/".
func NewFetcher(gateways []string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		gateways: gateways,
		client:   &http.Client{Timeout: timeout},
	}
}

// ExtractCID pulls a content identifier out of a CID or a full gateway URL.
func ExtractCID(s string) (string, error) {
	cid := cidPattern.FindString(s)
	if cid == "" {
		return "", ErrBadCID
	}
	return cid, nil
}

// Fetch tries each gateway in order and returns the first usable payload.
// Gateways answering with an HTML error page instead of the raw content
// are skipped. There is no backoff: the next gateway is the retry.
func (f *Fetcher) Fetch(ctx context.Context, cid string) ([]byte, error) {

	for _, gateway := range f.gateways {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, gateway+cid, nil)
		if err != nil {
			continue
		}
		req.Header.Set("Accept", "text/plain")

		resp, err := f.client.Do(req)
		if err != nil {
			log.Debugf("Gateway %s failed: %v", gateway, err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}
		// an HTML page here is a gateway error page, not the content
		if looksLikeHTML(body) {
			continue
		}
		return DecodeBase64OrPlain(body), nil
	}
	return nil, ErrUnreachable
}

func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(trimmed, []byte("<!DOCTYPE")) || bytes.HasPrefix(trimmed, []byte("<html"))
}

// base64Pattern matches a standard base64 alphabet with optional padding.
var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

// DecodeBase64OrPlain decodes payloads pinned as base64 text and returns
// everything else untouched.
func DecodeBase64OrPlain(body []byte) []byte {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, string(body))
	cleaned = strings.Trim(cleaned, `"'`+"`")

	if cleaned == "" || !base64Pattern.MatchString(cleaned) {
		return body
	}
	if missing := len(cleaned) % 4; missing != 0 {
		cleaned += strings.Repeat("=", 4-missing)
	}
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return body
	}
	return decoded
}
