package main

import (
	"io"
	"log"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"

	"github.com/soter-security/soter/cache"
	"github.com/soter-security/soter/inventory"
	"github.com/soter-security/soter/notify"
	"github.com/soter-security/soter/scan"
	"github.com/soter-security/soter/transport"
	"github.com/soter-security/soter/wpvulndb"
)

type app struct {
	scanner *scan.Scanner
	close   func() error
}

func newApp(c config, stdout io.Writer, reg prometheus.Registerer, scanOpts ...scan.Option) (*app, error) {
	backend, closeCache, err := newCache(c)
	if err != nil {
		return nil, xerrors.Errorf("cache error: %w", err)
	}

	client, err := newClient(c, backend)
	if err != nil {
		_ = closeCache()
		return nil, err
	}

	if reg != nil {
		scanOpts = append(scanOpts, scan.WithMetrics(scan.NewMetrics(reg)))
	}
	return &app{
		scanner: scan.NewScanner(client, newInventory(c), newNotifier(c, stdout), scanOpts...),
		close:   closeCache,
	}, nil
}

func newCache(c config) (cache.Cache, func() error, error) {
	noop := func() error { return nil }
	switch c.Cache.Backend {
	case "memory":
		return cache.NewMemory(), noop, nil
	case "file":
		f, err := cache.NewFile(c.Cache.Dir)
		if err != nil {
			return nil, nil, err
		}
		return f, noop, nil
	case "sqlite", "postgres":
		db, err := cache.OpenSQL(c.Cache.Backend, c.Cache.DSN)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	return nil, nil, xerrors.Errorf("unknown cache backend %q", c.Cache.Backend)
}

func newClient(c config, backend cache.Cache) (*wpvulndb.Client, error) {
	baseURL, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return nil, xerrors.Errorf("invalid api.base_url: %w", err)
	}

	httpClient := transport.NewClient(
		transport.WithBaseURL(baseURL),
		transport.WithRetry(c.API.Retry),
		transport.WithTimeout(c.API.Timeout),
		transport.WithSite(c.Site.Name, c.Site.URL),
	)
	return wpvulndb.NewClient(httpClient, backend, wpvulndb.WithTTL(c.Cache.TTL)), nil
}

func newInventory(c config) scan.Inventory {
	if c.Inventory.Source == "wordpress" {
		return inventory.NewWordPress(c.Inventory.WordPress, inventory.WithActiveThemes(c.Inventory.ActiveThemes...))
	}
	return inventory.NewManifest(c.Inventory.Manifest)
}

// newNotifier always includes the JSON report when configured; the other
// channels follow notify.enabled.
func newNotifier(c config, stdout io.Writer) notify.Multi {
	var notifiers notify.Multi
	if c.Notify.ReportDir != "" {
		notifiers = append(notifiers, notify.NewReport(c.Notify.ReportDir, c.Site.Name))
	}
	if !c.Notify.Enabled {
		log.Print("Notifications are disabled")
		return notifiers
	}
	if c.Notify.Stdout {
		notifiers = append(notifiers, notify.NewWriter(stdout, c.Site.Name, c.Site.URL))
	}
	if c.Notify.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlack(c.Notify.SlackWebhook, c.Site.Name, c.Site.URL))
	}
	return notifiers
}
