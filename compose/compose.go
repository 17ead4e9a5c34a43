// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package compose understands just enough of a docker compose service
// definition to validate it before boot, derive the ports it publishes,
// and bring it up.
package compose

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/distribution/reference"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// FileName is the service definition's name within the payload.
const FileName = "docker-compose.yml"

// Project is a parsed service definition.
type Project struct {
	Services map[string]Service `yaml:"services"`
}

// Service is a single containerised service.
type Service struct {
	Image         string    `yaml:"image"`
	Build         yaml.Node `yaml:"build"`
	ContainerName string    `yaml:"container_name"`
	Ports         []Port    `yaml:"ports"`
	DependsOn     DependsOn `yaml:"depends_on"`
}

// DependsOn lists the services a service waits for. Both the list and
// the mapping forms are accepted.
type DependsOn []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *DependsOn) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		*d = names
	case yaml.MappingNode:
		var names []string
		for i := 0; i < len(node.Content); i += 2 {
			names = append(names, node.Content[i].Value)
		}
		*d = names
	default:
		return errors.NotValidf("depends_on at line %d", node.Line)
	}
	return nil
}

// Port is a published port range. Container-only ports have no
// published range.
type Port struct {
	HostIP    string
	Published []int
	Target    string
	Protocol  string
	raw       string
}

type longPort struct {
	Target    interface{} `yaml:"target"`
	Published interface{} `yaml:"published"`
	HostIP    string      `yaml:"host_ip"`
	Protocol  string      `yaml:"protocol"`
}

// UnmarshalYAML implements yaml.Unmarshaler. It accepts the short
// "[ip:]published:target[/proto]" string, a bare container port, and
// the long mapping syntax.
func (p *Port) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		port, err := ParsePort(node.Value)
		if err != nil {
			return errors.Annotatef(err, "line %d", node.Line)
		}
		*p = port
	case yaml.MappingNode:
		var long longPort
		if err := node.Decode(&long); err != nil {
			return err
		}
		p.raw = fmt.Sprintf("line %d", node.Line)
		p.HostIP = long.HostIP
		p.Protocol = long.Protocol
		p.Target = fmt.Sprint(long.Target)
		if long.Target == nil {
			return errors.NotValidf("port at line %d without target", node.Line)
		}
		if long.Published != nil {
			published, err := parseRange(fmt.Sprint(long.Published))
			if err != nil {
				return errors.Annotatef(err, "line %d", node.Line)
			}
			p.Published = published
		}
	default:
		return errors.NotValidf("port at line %d", node.Line)
	}
	return nil
}

// ParsePort parses the short port syntax.
func ParsePort(s string) (Port, error) {
	p := Port{raw: s}
	spec := s
	if i := strings.LastIndex(spec, "/"); i >= 0 {
		p.Protocol = spec[i+1:]
		spec = spec[:i]
	}
	parts := strings.Split(spec, ":")
	switch len(parts) {
	case 1:
		p.Target = parts[0]
	case 2:
		p.Target = parts[1]
		published, err := parseRange(parts[0])
		if err != nil {
			return Port{}, errors.Annotatef(err, "port %q", s)
		}
		p.Published = published
	case 3:
		p.HostIP = parts[0]
		p.Target = parts[2]
		if parts[1] != "" {
			published, err := parseRange(parts[1])
			if err != nil {
				return Port{}, errors.Annotatef(err, "port %q", s)
			}
			p.Published = published
		}
	default:
		return Port{}, errors.NotValidf("port %q", s)
	}
	if _, err := parseRange(p.Target); err != nil {
		return Port{}, errors.Annotatef(err, "port %q", s)
	}
	return p, nil
}

// parseRange parses "8000" or "8000-8010".
func parseRange(s string) ([]int, error) {
	lo, hi, isRange := strings.Cut(s, "-")
	first, err := parsePortNumber(lo)
	if err != nil {
		return nil, errors.Trace(err)
	}
	last := first
	if isRange {
		if last, err = parsePortNumber(hi); err != nil {
			return nil, errors.Trace(err)
		}
		if last < first {
			return nil, errors.NotValidf("port range %q", s)
		}
	}
	ports := make([]int, 0, last-first+1)
	for port := first; port <= last; port++ {
		ports = append(ports, port)
	}
	return ports, nil
}

func parsePortNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return 0, errors.NotValidf("port number %q", s)
	}
	return n, nil
}

// String returns the port as written.
func (p Port) String() string {
	return p.raw
}

// Parse decodes and validates a service definition.
func Parse(data []byte) (*Project, error) {
	var project Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, errors.Annotate(err, "cannot parse service definition")
	}
	if err := project.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid service definition")
	}
	return &project, nil
}

// Validate checks that every service can be started: it names a valid
// image or a build context, and depends only on services that exist.
func (p *Project) Validate() error {
	if len(p.Services) == 0 {
		return errors.NotValidf("empty services")
	}
	names := set.NewStrings()
	for name := range p.Services {
		names.Add(name)
	}
	for _, name := range names.SortedValues() {
		svc := p.Services[name]
		switch {
		case svc.Image != "":
			if _, err := reference.ParseNormalizedNamed(svc.Image); err != nil {
				return errors.NewNotValid(err, fmt.Sprintf("service %q image %q", name, svc.Image))
			}
		case svc.Build.Kind == 0:
			return errors.NotValidf("service %q without image or build", name)
		}
		for _, dep := range svc.DependsOn {
			if !names.Contains(dep) {
				return errors.NotValidf("service %q depending on unknown service %q", name, dep)
			}
		}
	}
	return nil
}

// Images returns the distinct images the project pulls.
func (p *Project) Images() []string {
	images := set.NewStrings()
	for _, svc := range p.Services {
		if svc.Image != "" {
			images.Add(svc.Image)
		}
	}
	return images.SortedValues()
}

// PublishedPorts returns the host ports published by every service,
// sorted and without duplicates. Ports bound to an address other than
// loopback or the wildcard are left out as they cannot be probed
// locally.
func (p *Project) PublishedPorts() []int {
	ports := set.NewInts()
	for _, svc := range p.Services {
		for _, port := range svc.Ports {
			if !localBinding(port.HostIP) {
				continue
			}
			for _, n := range port.Published {
				ports.Add(n)
			}
		}
	}
	values := ports.Values()
	sort.Ints(values)
	return values
}

func localBinding(ip string) bool {
	switch strings.Trim(ip, "[]") {
	case "", "0.0.0.0", "127.0.0.1", "::", "::1", "localhost":
		return true
	}
	return false
}
