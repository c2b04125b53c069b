package inventory

import (
	"fmt"
	"log"
	"strings"

	"github.com/soter-security/soter/wpvulndb"
)

// Package is an installed plugin or theme.
type Package struct {
	Slug    string `yaml:"slug" json:"slug"`
	Version string `yaml:"version" json:"version"`
}

// Inventory lists what is installed on a site. Core is the dotted WordPress
// version, empty when unknown.
type Inventory struct {
	Core    string    `yaml:"wordpress" json:"wordpress,omitempty"`
	Plugins []Package `yaml:"plugins" json:"plugins,omitempty"`
	Themes  []Package `yaml:"themes" json:"themes,omitempty"`
}

// Component is a single item to check against the database.
type Component struct {
	Kind    wpvulndb.Kind `json:"kind"`
	Slug    string        `json:"slug"`
	Version string        `json:"version"`
}

func (c Component) String() string {
	if c.Kind == wpvulndb.KindCore {
		return fmt.Sprintf("WordPress %s", c.Version)
	}
	return fmt.Sprintf("%s %s %s", c.Kind, c.Slug, c.Version)
}

// Components flattens the inventory in scan order: plugins, themes, then core.
// Entries without a slug or a version cannot be matched and are dropped.
func (inv Inventory) Components() []Component {
	var components []Component
	add := func(kind wpvulndb.Kind, pkgs []Package) {
		for _, p := range pkgs {
			slug, ver := strings.TrimSpace(p.Slug), strings.TrimSpace(p.Version)
			if slug == "" || ver == "" {
				log.Printf("Skip %s %q: slug or version missing", kind, p.Slug)
				continue
			}
			components = append(components, Component{Kind: kind, Slug: slug, Version: ver})
		}
	}
	add(wpvulndb.KindPlugin, inv.Plugins)
	add(wpvulndb.KindTheme, inv.Themes)

	if core := strings.TrimSpace(inv.Core); core != "" {
		components = append(components, Component{Kind: wpvulndb.KindCore, Slug: "wordpress", Version: core})
	}
	return components
}
