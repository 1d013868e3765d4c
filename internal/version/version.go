// Package version implements the version and version-requirement
// model: dotted numeric versions with an optional pre-release tag, and
// comma-separated conjunctions of constraint clauses.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// ErrMalformedVersion is wrapped by all Parse failures.
var ErrMalformedVersion = errors.New("malformed version")

var versionRe = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)*)(-([0-9A-Za-z.-]+))?$`)

// Version is a parsed package version: numeric components plus an
// optional pre-release tag. Ordering is lexicographic over the
// numeric components; a pre-release tag orders before its release.
type Version struct {
	raw      string
	segments []int
	pre      string
	v        *goversion.Version
}

// Parse parses "N(.N)*(-tag)?" into a Version.
func Parse(s string) (*Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedVersion, s)
	}

	var segments []int
	for _, part := range strings.Split(m[1], ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedVersion, s)
		}
		segments = append(segments, n)
	}

	v, err := goversion.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedVersion, s)
	}

	return &Version{raw: s, segments: segments, pre: m[3], v: v}, nil
}

// MustParse is Parse for statically known inputs; it panics on error.
func MustParse(s string) *Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v *Version) String() string { return v.raw }

// Segments returns the numeric components as parsed.
func (v *Version) Segments() []int {
	return append([]int(nil), v.segments...)
}

// Prerelease returns the pre-release tag, or "".
func (v *Version) Prerelease() string { return v.pre }

// Compare returns -1, 0 or 1. Missing trailing components compare as
// zero, so "1.2" == "1.2.0".
func (v *Version) Compare(other *Version) int {
	return v.v.Compare(other.v)
}

func (v *Version) Equal(other *Version) bool    { return v.Compare(other) == 0 }
func (v *Version) LessThan(other *Version) bool { return v.Compare(other) < 0 }

func (v *Version) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(v.raw)), nil
}

func (v *Version) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

// fromSegments builds the release version with the given numeric
// components, for requirement upper bounds.
func fromSegments(segments []int) *Version {
	parts := make([]string, len(segments))
	for i, n := range segments {
		parts[i] = strconv.Itoa(n)
	}
	return MustParse(strings.Join(parts, "."))
}
