// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

package formaudit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const formsEndpoint = "api/v1/forms"

// CHTFormLister asks a CHT instance which forms it has installed. The
// instance API returns attachment filenames; contact forms and the
// ".xml" suffix are stripped off.
type CHTFormLister struct {
	cfg    InstanceConfig
	client *http.Client
	log    Logger
}

// NewCHTFormLister returns a CHTFormLister. Basic-auth credentials are
// read per call from the environment variables named in cfg.
func NewCHTFormLister(cfg InstanceConfig, log Logger) *CHTFormLister {
	if log == nil {
		log = NopLogger{}
	}
	return &CHTFormLister{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

// ListInstalledForms returns the form ids installed on a country's
// instance, in the order the instance reports them.
func (l *CHTFormLister) ListInstalledForms(ctx context.Context, country string) ([]string, error) {
	key := strings.ToUpper(country)
	base, ok := l.cfg.BaseURLs[key]
	if !ok {
		return nil, fmt.Errorf("no instance configured for country %q", country)
	}

	username := os.Getenv(l.cfg.UsernameEnvs[key])
	password := os.Getenv(l.cfg.PasswordEnvs[key])
	if username == "" || password == "" {
		return nil, fmt.Errorf("credentials for %s are not set (%s, %s)",
			key, l.cfg.UsernameEnvs[key], l.cfg.PasswordEnvs[key])
	}

	url := strings.TrimSuffix(base, "/") + "/" + formsEndpoint
	l.log.Infof("fetching installed forms from %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building forms request: %w", err)
	}
	req.SetBasicAuth(username, password)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching installed forms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("forms endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var files []string
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("decoding forms response: %w", err)
	}

	var formIDs []string
	for _, f := range files {
		if strings.HasPrefix(f, "contact:") {
			continue
		}
		formIDs = append(formIDs, strings.TrimSuffix(f, ".xml"))
	}
	l.log.Infof("found %d forms on %s instance", len(formIDs), key)
	return formIDs, nil
}
