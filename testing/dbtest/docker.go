// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package dbtest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/strata/internal/db/common"
	"github.com/ory/dockertest/v3"
)

var mx sync.Mutex

type image struct {
	repository string
	tag        string
	env        []string
	port       string
	urlFormat  string
	urlEnv     string
}

var images = map[string]image{
	Postgres: {
		repository: "postgres",
		tag:        "15",
		env:        []string{"POSTGRES_PASSWORD=password", "POSTGRES_DB=strata"},
		port:       "5432/tcp",
		urlFormat:  "postgres://postgres:password@%s/strata?sslmode=disable",
		urlEnv:     "STRATA_TESTING_PG_URL",
	},
	Mysql: {
		repository: "mysql",
		tag:        "8.0",
		env:        []string{"MYSQL_ROOT_PASSWORD=password", "MYSQL_DATABASE=strata"},
		port:       "3306/tcp",
		urlFormat:  "mysql://root:password@%s/strata",
		urlEnv:     "STRATA_TESTING_MYSQL_URL",
	},
}

// StartDbInDocker starts a database container for dialect and returns a
// connection uri once the database answers.  Setting STRATA_TESTING_PG_URL
// or STRATA_TESTING_MYSQL_URL uses that database instead.
func StartDbInDocker(dialect string, opt ...Option) (cleanup func() error, retURL, container string, err error) {
	mx.Lock()
	defer mx.Unlock()
	noop := func() error { return nil }

	img, ok := images[dialect]
	if !ok {
		return noop, "", "", fmt.Errorf("unsupported dialect: %s", dialect)
	}
	if url := os.Getenv(img.urlEnv); url != "" {
		return noop, url, "", nil
	}

	opts := GetOpts(opt...)
	if opts.withContainerImage != "" {
		img.repository, img.tag, err = splitImage(opts.withContainerImage, img.tag)
		if err != nil {
			return noop, "", "", fmt.Errorf("error parsing reference: %w", err)
		}
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		return noop, "", "", fmt.Errorf("could not connect to docker: %w", err)
	}
	if err := pool.Client.Ping(); err != nil {
		return noop, "", "", fmt.Errorf("could not connect to docker: %w", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: img.repository,
		Tag:        img.tag,
		Env:        img.env,
	})
	if err != nil {
		return noop, "", "", fmt.Errorf("could not start resource: %w", err)
	}
	cleanup = func() error {
		return cleanupDockerResource(pool, resource)
	}

	url := fmt.Sprintf(img.urlFormat, resource.GetHostPort(img.port))
	if err := pool.Retry(func() error {
		db, _, err := common.Open(context.Background(), url)
		if err != nil {
			return err
		}
		return db.Close()
	}); err != nil {
		return cleanup, "", "", fmt.Errorf("could not ping %s on startup: %w", dialect, err)
	}
	return cleanup, url, resource.Container.Name, nil
}

// cleanupDockerResource will clean up the dockertest resources
func cleanupDockerResource(pool *dockertest.Pool, resource *dockertest.Resource) error {
	var err error
	for i := 0; i < 10; i++ {
		err = pool.Purge(resource)
		if err == nil {
			return nil
		}
	}
	if strings.Contains(err.Error(), "No such container") {
		return nil
	}
	return fmt.Errorf("failed to cleanup local container: %s", err)
}

// splitImage separates a repo:tag reference.  A missing tag means
// defaultTag.
func splitImage(ref, defaultTag string) (string, string, error) {
	separated := strings.Split(ref, ":")
	switch len(separated) {
	case 1:
		return separated[0], defaultTag, nil
	case 2:
		return separated[0], separated[1], nil
	default:
		return "", "", fmt.Errorf("valid reference format is repo:tag, got: %s", ref)
	}
}
