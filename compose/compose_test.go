// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package compose_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/agentbox/compose"
)

type composeSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&composeSuite{})

const definition = `
services:
  openhands:
    image: docker.all-hands.dev/all-hands-ai/openhands:0.9
    container_name: openhands-app
    ports:
      - "3000:3000"
    depends_on:
      - litellm
  litellm:
    image: ghcr.io/berriai/litellm:main-latest
    ports:
      - "127.0.0.1:4000:4000"
      - target: 9090
        published: "9091"
    depends_on:
      openhands-db:
        condition: service_started
  openhands-db:
    image: postgres:16
    ports:
      - "5432"
  vscode:
    build: ./vscode
    ports:
      - "8000-8002:8000-8002/tcp"
      - "10.0.0.5:7000:7000"
`

func (s *composeSuite) TestParse(c *gc.C) {
	project, err := compose.Parse([]byte(definition))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(project.Services, gc.HasLen, 4)
	c.Check(project.Services["openhands"].ContainerName, gc.Equals, "openhands-app")
	c.Check(project.Services["litellm"].DependsOn, jc.DeepEquals, compose.DependsOn{"openhands-db"})
	c.Check(project.Images(), jc.DeepEquals, []string{
		"docker.all-hands.dev/all-hands-ai/openhands:0.9",
		"ghcr.io/berriai/litellm:main-latest",
		"postgres:16",
	})
}

func (s *composeSuite) TestPublishedPorts(c *gc.C) {
	project, err := compose.Parse([]byte(definition))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(project.PublishedPorts(), jc.DeepEquals, []int{3000, 4000, 8000, 8001, 8002, 9091})
}

var parsePortTests = []struct {
	in        string
	hostIP    string
	published []int
	target    string
	protocol  string
}{
	{in: "3000", target: "3000"},
	{in: "3000:3001", published: []int{3000}, target: "3001"},
	{in: "127.0.0.1:4000:4000", hostIP: "127.0.0.1", published: []int{4000}, target: "4000"},
	{in: "127.0.0.1::4000", hostIP: "127.0.0.1", target: "4000"},
	{in: "53:53/udp", published: []int{53}, target: "53", protocol: "udp"},
	{in: "8000-8001:9000-9001", published: []int{8000, 8001}, target: "9000-9001"},
}

func (s *composeSuite) TestParsePort(c *gc.C) {
	for i, test := range parsePortTests {
		c.Logf("test %d: %q", i, test.in)
		port, err := compose.ParsePort(test.in)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(port.HostIP, gc.Equals, test.hostIP)
		c.Check(port.Published, jc.DeepEquals, test.published)
		c.Check(port.Target, gc.Equals, test.target)
		c.Check(port.Protocol, gc.Equals, test.protocol)
		c.Check(port.String(), gc.Equals, test.in)
	}
}

func (s *composeSuite) TestParsePortInvalid(c *gc.C) {
	for _, in := range []string{"", "http", "0:80", "70000:80", "9-8:80", "a:b:c:d"} {
		c.Logf("port %q", in)
		_, err := compose.ParsePort(in)
		c.Check(err, jc.Satisfies, errors.IsNotValid)
	}
}

var invalidDefinitions = []struct {
	about string
	data  string
	err   string
}{{
	about: "no services",
	data:  "services: {}\n",
	err:   `invalid service definition: empty services not valid`,
}, {
	about: "bad image",
	data:  "services:\n  app:\n    image: app/UPPER\n",
	err:   `invalid service definition: service "app" image "app/UPPER": .*`,
}, {
	about: "no image or build",
	data:  "services:\n  app:\n    container_name: app\n",
	err:   `invalid service definition: service "app" without image or build not valid`,
}, {
	about: "unknown dependency",
	data:  "services:\n  app:\n    image: busybox\n    depends_on: [db]\n",
	err:   `invalid service definition: service "app" depending on unknown service "db" not valid`,
}, {
	about: "bad port",
	data:  "services:\n  app:\n    image: busybox\n    ports: [\"99999:80\"]\n",
	err:   `cannot parse service definition: line 4: port "99999:80": port number "99999" not valid`,
}}

func (s *composeSuite) TestInvalid(c *gc.C) {
	for i, test := range invalidDefinitions {
		c.Logf("test %d: %s", i, test.about)
		_, err := compose.Parse([]byte(test.data))
		c.Check(err, gc.ErrorMatches, test.err)
	}
}
