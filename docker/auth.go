// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package docker manages the registry credentials the container runtime
// uses to pull images for the agent services.
package docker

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/distribution/reference"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v2"
)

var logger = loggo.GetLogger("agentbox.docker")

// BasicAuthConfig contains authorization information for basic auth.
type BasicAuthConfig struct {
	// Auth is the base64 encoded "username:password" string.
	Auth string `json:"auth,omitempty" yaml:"auth,omitempty"`

	// Username holds the username used to gain access to a non-public image.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`

	// Password holds the password used to gain access to a non-public image.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// Empty checks if the auth information is empty.
func (ba BasicAuthConfig) Empty() bool {
	return ba.Auth == "" && ba.Username == "" && ba.Password == ""
}

func (ba *BasicAuthConfig) init() {
	if ba.Empty() {
		return
	}
	if ba.Auth == "" {
		ba.Auth = base64.StdEncoding.EncodeToString([]byte(ba.Username + ":" + ba.Password))
	}
}

// ImageRepoDetails contains authorization information for connecting to a Registry.
type ImageRepoDetails struct {
	BasicAuthConfig `json:",inline" yaml:",inline"`

	// ServerAddress is the registry host, e.g. "123.dkr.ecr.eu-west-1.amazonaws.com".
	ServerAddress string `json:"serveraddress,omitempty" yaml:"serveraddress,omitempty"`
}

// NewImageRepoDetails returns registry details for server, decoding a
// base64 "username:password" token as issued by ECR.
func NewImageRepoDetails(server, token string) (ImageRepoDetails, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return ImageRepoDetails{}, errors.NewNotValid(err, "registry token")
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return ImageRepoDetails{}, errors.NotValidf("registry token without separator")
	}
	rid := ImageRepoDetails{
		BasicAuthConfig: BasicAuthConfig{Username: username, Password: password},
		ServerAddress:   registryHost(server),
	}
	if err := rid.Validate(); err != nil {
		return ImageRepoDetails{}, errors.Trace(err)
	}
	rid.init()
	return rid, nil
}

// registryHost strips any scheme and path from a registry endpoint.
func registryHost(server string) string {
	if i := strings.Index(server, "://"); i >= 0 {
		server = server[i+3:]
	}
	host, _, _ := strings.Cut(server, "/")
	return host
}

// String returns yaml format.
func (rid ImageRepoDetails) String() string {
	d, _ := yaml.Marshal(rid)
	return string(d)
}

// Validate validates the details.
func (rid ImageRepoDetails) Validate() error {
	if rid.ServerAddress == "" {
		return errors.NotValidf("empty server address")
	}
	// A registry host must be usable as the domain of an image reference.
	probe := rid.ServerAddress + "/probe"
	named, err := reference.ParseNormalizedNamed(probe)
	if err != nil {
		return errors.NewNotValid(err, fmt.Sprintf("registry %q", rid.ServerAddress))
	}
	if reference.Domain(named) != rid.ServerAddress {
		return errors.NotValidf("registry %q", rid.ServerAddress)
	}
	if rid.BasicAuthConfig.Empty() {
		return errors.NotValidf("registry %q without credentials", rid.ServerAddress)
	}
	return nil
}

// RegistryForImage returns the registry host an image is pulled from.
func RegistryForImage(image string) (string, error) {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return "", errors.NewNotValid(err, fmt.Sprintf("docker image path %q", image))
	}
	return reference.Domain(named), nil
}

// UncoveredImages returns the images pulled from a registry which has
// no entry in details.
func UncoveredImages(images []string, details []ImageRepoDetails) ([]string, error) {
	covered := set.NewStrings()
	for _, rid := range details {
		covered.Add(rid.ServerAddress)
	}
	var out []string
	for _, image := range images {
		host, err := RegistryForImage(image)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if !covered.Contains(host) {
			out = append(out, image)
		}
	}
	return out, nil
}

type dockerConfigData struct {
	Auths map[string]json.RawMessage `json:"auths"`
}

// WriteConfig merges the registry details into the docker client
// configuration at path, keeping entries for other registries and any
// other settings already in the file. The file is written atomically
// with mode 0600 and owned by uid and gid.
func WriteConfig(path string, uid, gid int, details ...ImageRepoDetails) error {
	existing := make(map[string]json.RawMessage)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Annotatef(err, "reading %s", path)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &existing); err != nil {
			return errors.Annotatef(err, "parsing %s", path)
		}
	}

	var auths dockerConfigData
	if raw, ok := existing["auths"]; ok {
		if err := json.Unmarshal(raw, &auths.Auths); err != nil {
			return errors.Annotatef(err, "parsing auths in %s", path)
		}
	}
	if auths.Auths == nil {
		auths.Auths = make(map[string]json.RawMessage)
	}
	for _, rid := range details {
		if err := rid.Validate(); err != nil {
			return errors.Trace(err)
		}
		rid.init()
		entry, err := json.Marshal(struct {
			Auth string `json:"auth"`
		}{rid.Auth})
		if err != nil {
			return errors.Trace(err)
		}
		auths.Auths[rid.ServerAddress] = entry
		logger.Infof("writing credentials for %s to %s", rid.ServerAddress, path)
	}
	rawAuths, err := json.Marshal(auths.Auths)
	if err != nil {
		return errors.Trace(err)
	}
	existing["auths"] = rawAuths

	out, err := json.MarshalIndent(existing, "", "\t")
	if err != nil {
		return errors.Trace(err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Annotatef(err, "creating %s", dir)
	}
	if err := os.Lchown(dir, uid, gid); err != nil {
		return errors.Annotatef(err, "chown %s", dir)
	}
	return errors.Trace(utils.AtomicWriteFileAndChange(path, out, func(tmp string) error {
		if err := os.Chmod(tmp, 0600); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(os.Lchown(tmp, uid, gid))
	}))
}
