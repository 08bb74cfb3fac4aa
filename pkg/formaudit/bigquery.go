// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

package formaudit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/viant/bigquery"
)

// BigQueryWarehouse reads view definitions out of BigQuery through the
// database/sql driver. Connections are opened lazily, one per
// project/dataset pair, and reused across calls.
type BigQueryWarehouse struct {
	log Logger

	mu    sync.Mutex
	conns map[string]*sql.DB
}

// NewBigQueryWarehouse returns a BigQueryWarehouse. Credentials come
// from the ambient Google application-default environment.
func NewBigQueryWarehouse(log Logger) *BigQueryWarehouse {
	if log == nil {
		log = NopLogger{}
	}
	return &BigQueryWarehouse{log: log, conns: map[string]*sql.DB{}}
}

// ViewQuery returns the SQL definition of a view. A missing view wraps
// ErrNotFound.
func (w *BigQueryWarehouse) ViewQuery(ctx context.Context, project, dataset, view string) (string, error) {
	if project == "" || dataset == "" || view == "" {
		return "", fmt.Errorf("project, dataset and view must be non-empty")
	}

	db, err := w.connect(project, dataset)
	if err != nil {
		return "", err
	}

	w.log.Infof("fetching view definition for %s.%s.%s", project, dataset, view)
	var definition string
	err = db.QueryRowContext(ctx,
		"SELECT view_definition FROM INFORMATION_SCHEMA.VIEWS WHERE table_name = ?", view).
		Scan(&definition)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("view %s.%s.%s: %w", project, dataset, view, ErrNotFound)
	case err != nil:
		return "", fmt.Errorf("querying view definition for %s: %w", view, err)
	}
	return definition, nil
}

func (w *BigQueryWarehouse) connect(project, dataset string) (*sql.DB, error) {
	key := project + "/" + dataset
	w.mu.Lock()
	defer w.mu.Unlock()

	if db, ok := w.conns[key]; ok {
		return db, nil
	}
	db, err := sql.Open("bigquery", fmt.Sprintf("bigquery://%s/%s", project, dataset))
	if err != nil {
		return nil, fmt.Errorf("opening BigQuery connection to %s: %w", key, err)
	}
	w.conns[key] = db
	return db, nil
}

// Close releases every cached connection.
func (w *BigQueryWarehouse) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for key, db := range w.conns {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing connection to %s: %w", key, err)
		}
		delete(w.conns, key)
	}
	return firstErr
}
