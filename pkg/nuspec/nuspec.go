// Package nuspec reads the .nuspec manifest of an extracted package.
//
// The manifest is an XML document whose root carries a single metadata
// element with the package id, version and an optional dependency list:
//
//	<package xmlns="http://schemas.microsoft.com/packaging/2015/06/nuspec.xsd">
//	  <metadata>
//	    <id>sample</id>
//	    <version>2.0.0</version>
//	    <dependencies>
//	      <dependency id="dep1" />
//	      <dependency id="A" version="[1.0.0]" />
//	    </dependencies>
//	  </metadata>
//	</package>
//
// Element matching ignores the namespace, so every published schema
// revision parses the same way.
package nuspec

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/chocorepack/pkg/errors"
)

// Extension is the manifest file extension.
const Extension = ".nuspec"

// Manifest is the identity and dependency list of one package.
type Manifest struct {
	ID           string       // Package id as published (case preserved)
	Version      string       // Concrete version of this archive
	Dependencies []Dependency // Declared dependencies in document order
	Path         string       // Manifest file the values were read from
}

// Dependency is one declared dependency. Version holds the raw range or pin
// from the manifest; it is empty when the attribute is absent.
type Dependency struct {
	ID      string
	Version string
}

// Pin derives a concrete version from the dependency's version attribute by
// dropping one leading '[' and one trailing ']'. An exact pin "[1.2.3]"
// becomes "1.2.3"; an open range such as "[1.2.3,2.0.0)" degrades to the
// literal "1.2.3,2.0.0)". No range resolution is attempted.
//
// An empty result means "no constraint, use the latest release".
func (d Dependency) Pin() string {
	v := strings.TrimSpace(d.Version)
	v = strings.TrimPrefix(v, "[")
	v = strings.TrimSuffix(v, "]")
	return strings.TrimSpace(v)
}

// IsRange reports whether the raw version looks like a range rather than a
// pin, i.e. whether Pin is only an approximation.
func (d Dependency) IsRange() bool {
	return strings.ContainsAny(d.Version, ",()")
}

// Find returns the path of the first file in dir whose name ends in
// .nuspec, in directory listing order, or "" if there is none.
func Find(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), Extension) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", nil
}

// Read locates and parses the manifest of the package extracted in dir.
//
// A directory without a manifest is not an error: Read returns (nil, nil)
// and callers treat the package as having nothing to do. A manifest that
// cannot be parsed, or that lacks an id or version, returns an
// INVALID_MANIFEST error.
func Read(dir string) (*Manifest, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}
	return ReadFile(path)
}

// ReadFile parses the manifest at path.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", filepath.Base(path))
	}
	m.Path = path
	return m, nil
}

// Parse decodes manifest XML.
func Parse(data []byte) (*Manifest, error) {
	var doc nuspecDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	md := doc.Metadata
	m := &Manifest{
		ID:      strings.TrimSpace(md.ID),
		Version: strings.TrimSpace(md.Version),
	}
	if m.ID == "" {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "manifest has no id")
	}
	if m.Version == "" {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "manifest %s has no version", m.ID)
	}

	for _, item := range md.Dependencies.Items {
		switch item.XMLName.Local {
		case "dependency":
			m.appendDep(item.ID, item.Version)
		case "group":
			for _, d := range item.Deps {
				m.appendDep(d.ID, d.Version)
			}
		}
	}
	return m, nil
}

func (m *Manifest) appendDep(id, version string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	m.Dependencies = append(m.Dependencies, Dependency{ID: id, Version: version})
}

type nuspecDoc struct {
	Metadata nuspecMetadata `xml:"metadata"`
}

type nuspecMetadata struct {
	ID           string           `xml:"id"`
	Version      string           `xml:"version"`
	Dependencies nuspecDependents `xml:"dependencies"`
}

// nuspecDependents keeps <dependency> and <group> children in document order.
type nuspecDependents struct {
	Items []nuspecItem `xml:",any"`
}

type nuspecItem struct {
	XMLName xml.Name
	ID      string             `xml:"id,attr"`
	Version string             `xml:"version,attr"`
	Deps    []nuspecDependency `xml:"dependency"`
}

type nuspecDependency struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
}
