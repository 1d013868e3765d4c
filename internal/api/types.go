// Package api defines the types shared between the database, source
// and command layers.
package api

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ralph-pm/ralph/internal/version"
)

// Dependency is one declared dependency of a package: a name plus a
// version requirement. In manifests it is serialized as a two-element
// array, ["name", ">=1.0,<2"].
type Dependency struct {
	Name        string
	Requirement version.Requirement
}

func (d Dependency) String() string {
	if d.Requirement.MatchesAll() {
		return d.Name
	}
	return d.Name + "@" + d.Requirement.String()
}

func (d Dependency) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{d.Name, d.Requirement.String()})
}

func (d *Dependency) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) == 0 || len(pair) > 2 {
		return fmt.Errorf("dependency must be a [name, requirement] pair")
	}
	d.Name = pair[0]
	if len(pair) == 2 {
		req, err := version.ParseRequirement(pair[1])
		if err != nil {
			return err
		}
		d.Requirement = req
	} else {
		d.Requirement = version.Requirement{}
	}
	return nil
}

// Package is one immutable entry of a source's catalog, identified by
// (name, version) within that source. Manifest fields we do not model
// are carried verbatim in Extra.
type Package struct {
	Name         string
	Version      *version.Version
	Dependencies []Dependency
	BuildSystem  string
	VCS          string
	Extra        map[string]json.RawMessage
}

func (p *Package) String() string {
	return p.Name + "@" + p.Version.String()
}

// manifest keys we lift out of Extra.
const (
	keyName         = "name"
	keyVersion      = "version"
	keyDependencies = "dependencies"
	keyBuildSystem  = "buildSystem"
	keyVCS          = "vcs"
)

// ParseManifest parses a ralph.json manifest into a Package.
func ParseManifest(data []byte) (*Package, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	pkg := &Package{Extra: map[string]json.RawMessage{}}

	var name string
	if raw, ok := fields[keyName]; ok {
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, fmt.Errorf("manifest name: %w", err)
		}
	}
	if name == "" {
		return nil, fmt.Errorf("manifest has no name")
	}
	pkg.Name = name

	var versionStr string
	if raw, ok := fields[keyVersion]; ok {
		if err := json.Unmarshal(raw, &versionStr); err != nil {
			return nil, fmt.Errorf("manifest version: %w", err)
		}
	}
	ver, err := version.Parse(versionStr)
	if err != nil {
		return nil, err
	}
	pkg.Version = ver

	if raw, ok := fields[keyDependencies]; ok {
		if err := json.Unmarshal(raw, &pkg.Dependencies); err != nil {
			return nil, fmt.Errorf("manifest dependencies: %w", err)
		}
	}
	if raw, ok := fields[keyBuildSystem]; ok {
		if err := json.Unmarshal(raw, &pkg.BuildSystem); err != nil {
			return nil, fmt.Errorf("manifest buildSystem: %w", err)
		}
	}
	if raw, ok := fields[keyVCS]; ok {
		if err := json.Unmarshal(raw, &pkg.VCS); err != nil {
			return nil, fmt.Errorf("manifest vcs: %w", err)
		}
	}

	for key, raw := range fields {
		switch key {
		case keyName, keyVersion, keyDependencies, keyBuildSystem, keyVCS:
		default:
			pkg.Extra[key] = raw
		}
	}

	return pkg, nil
}

// MarshalManifest is the inverse of ParseManifest.
func (p *Package) MarshalManifest() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	for key, raw := range p.Extra {
		fields[key] = raw
	}

	put := func(key string, v interface{}) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields[key] = raw
		return nil
	}

	if err := put(keyName, p.Name); err != nil {
		return nil, err
	}
	if err := put(keyVersion, p.Version.String()); err != nil {
		return nil, err
	}
	if len(p.Dependencies) > 0 {
		if err := put(keyDependencies, p.Dependencies); err != nil {
			return nil, err
		}
	}
	if p.BuildSystem != "" {
		if err := put(keyBuildSystem, p.BuildSystem); err != nil {
			return nil, err
		}
	}
	if p.VCS != "" {
		if err := put(keyVCS, p.VCS); err != nil {
			return nil, err
		}
	}

	return MarshalIndentSorted(fields)
}

// MarshalIndentSorted renders v as the canonical on-disk JSON form:
// sorted keys, two-space indent, trailing newline.
func MarshalIndentSorted(v interface{}) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// PackageRef identifies an installed package: the source it came from
// plus (name, version). Field order keeps the marshaled keys sorted.
type PackageRef struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Version string `json:"version"`
}

// InstalledPackage is one record of a package group. Field order
// keeps the marshaled keys sorted.
type InstalledPackage struct {
	Config      PackageConfiguration `json:"config"`
	InstalledAt time.Time            `json:"installedAt"`
	PackageRef
}

// PackageConfiguration is the ordered feature -> value map captured at
// install time. It is part of the installed record, not of package
// identity.
type PackageConfiguration struct {
	keys   []string
	values map[string]string
}

// ConfigurationFromItems builds a configuration from repeated
// "key=value" command-line items. A bare key means "on".
func ConfigurationFromItems(items []string) PackageConfiguration {
	var c PackageConfiguration
	for _, item := range items {
		key, value, found := strings.Cut(item, "=")
		if !found {
			value = "on"
		}
		c.Set(key, value)
	}
	return c
}

func (c *PackageConfiguration) Set(key, value string) {
	if c.values == nil {
		c.values = map[string]string{}
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

func (c PackageConfiguration) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c PackageConfiguration) Len() int { return len(c.keys) }

// Keys returns the feature names in insertion order.
func (c PackageConfiguration) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Equal is order-insensitive: two configurations are equal when they
// bind the same features to the same values.
func (c PackageConfiguration) Equal(other PackageConfiguration) bool {
	if len(c.values) != len(other.values) {
		return false
	}
	for key, value := range c.values {
		if ov, ok := other.values[key]; !ok || ov != value {
			return false
		}
	}
	return true
}

func (c PackageConfiguration) MarshalJSON() ([]byte, error) {
	keys := append([]string(nil), c.keys...)
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		valueJSON, err := json.Marshal(c.values[key])
		if err != nil {
			return nil, err
		}
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(valueJSON)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func (c *PackageConfiguration) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	*c = PackageConfiguration{}
	for _, key := range keys {
		c.Set(key, m[key])
	}
	return nil
}
