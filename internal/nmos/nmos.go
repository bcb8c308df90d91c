// Package nmos implements the narrow AMWA NMOS subset the core exposes as
// an external collaborator (spec.md §1/§6): an API version type, and the
// IS-04 self/receiver resource shapes the node-level façade serves. It does
// not implement a registry, registration client, or IS-05 connection
// management — those are out of scope (spec.md Non-goals).
package nmos

import (
	"fmt"
	"strconv"
	"strings"
)

// APIVersion is an NMOS API version, e.g. "v1.3". Not to be confused with
// the version of a resource.
type APIVersion struct {
	Major int16
	Minor int16
}

// Valid reports whether the version was parsed from a well-formed string.
func (v APIVersion) Valid() bool {
	return v.Major > 0 && v.Minor >= 0
}

// String renders the version as "vX.Y".
func (v APIVersion) String() string {
	return fmt.Sprintf("v%d.%d", v.Major, v.Minor)
}

// ParseAPIVersion parses a string of the form "vX.Y", returning an error if
// it is malformed or carries trailing characters.
func ParseAPIVersion(s string) (APIVersion, error) {
	if !strings.HasPrefix(s, "v") {
		return APIVersion{}, fmt.Errorf("nmos: version %q must start with 'v'", s)
	}
	rest := strings.TrimPrefix(s, "v")
	majorStr, minorStr, ok := strings.Cut(rest, ".")
	if !ok {
		return APIVersion{}, fmt.Errorf("nmos: version %q missing '.'", s)
	}
	major, err := strconv.ParseInt(majorStr, 10, 16)
	if err != nil {
		return APIVersion{}, fmt.Errorf("nmos: version %q has invalid major: %w", s, err)
	}
	minor, err := strconv.ParseInt(minorStr, 10, 16)
	if err != nil {
		return APIVersion{}, fmt.Errorf("nmos: version %q has invalid minor: %w", s, err)
	}
	v := APIVersion{Major: int16(major), Minor: int16(minor)}
	if !v.Valid() {
		return APIVersion{}, fmt.Errorf("nmos: version %q out of range", s)
	}
	return v, nil
}

// ClockRefType names the two clock reference kinds an NMOS node clock
// resource can describe.
type ClockRefType string

const (
	ClockRefInternal ClockRefType = "internal"
	ClockRefPTP      ClockRefType = "ptp"
)

// Clock is the narrow subset of IS-04's node clock object the core
// publishes: whether it is locked to a PTP grandmaster, and if so, which
// one.
type Clock struct {
	Name      string       `json:"name"`
	RefType   ClockRefType `json:"ref_type"`
	Traceable bool         `json:"traceable,omitempty"`
	Version   string       `json:"version,omitempty"`
	GMIdentity string      `json:"gmid,omitempty"`
	Locked    bool         `json:"locked,omitempty"`
}

// Receiver is the narrow subset of an IS-04 receiver resource the façade
// serves: enough to describe one RTP/AES67 receive stream's identity and
// current subscription, not the full IS-04 schema.
type Receiver struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Format       string `json:"format"` // urn:x-nmos:format:audio
	Transport    string `json:"transport"`
	DeviceID     string `json:"device_id"`
	SubscriptionActive bool `json:"subscription_active"`
}

// Self is the narrow subset of the IS-04 node "self" resource.
type Self struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Version  string   `json:"version"`
	Hostname string   `json:"hostname"`
	APIVersions []string `json:"api_versions"`
	Clocks   []Clock  `json:"clocks"`
}
