// Package classify maps a request's method, path and body shape to the audit
// vocabulary. Every function here is pure.
package classify

import (
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	audit "medgate/pkg/platform/audit"
)

// Classification is the audit view of one request.
type Classification struct {
	Action       audit.ActionType
	ResourceType audit.ResourceType
	ResourceID   string
	ContainsPHI  bool
	PHIElements  []audit.PHIElement
}

// BodyShape is the set of field names present in a JSON body, at any depth.
// Values are never retained.
type BodyShape struct {
	keys map[string]struct{}
}

// maxShapeDepth bounds the walk over nested bodies.
const maxShapeDepth = 8

// ShapeOf collects the field names of a decoded JSON object.
func ShapeOf(body map[string]any) BodyShape {
	shape := BodyShape{keys: make(map[string]struct{})}
	collectKeys(body, shape.keys, 0)
	return shape
}

// ShapeOfKeys builds a shape from explicit field names.
func ShapeOfKeys(keys ...string) BodyShape {
	shape := BodyShape{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		shape.keys[k] = struct{}{}
	}
	return shape
}

// Has reports whether any of the names is present.
func (b BodyShape) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := b.keys[n]; ok {
			return true
		}
	}
	return false
}

func collectKeys(v any, into map[string]struct{}, depth int) {
	if depth > maxShapeDepth {
		return
	}
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			into[k] = struct{}{}
			collectKeys(child, into, depth+1)
		}
	case []any:
		for _, child := range t {
			collectKeys(child, into, depth+1)
		}
	}
}

var versionSegment = regexp.MustCompile(`^v[0-9]+$`)

var ssnFields = []string{"ssn", "social_security_number", "socialSecurityNumber"}

var resourceBySegment = map[string]audit.ResourceType{
	"member":    audit.ResourceMember,
	"members":   audit.ResourceMember,
	"claim":     audit.ResourceClaim,
	"claims":    audit.ResourceClaim,
	"provider":  audit.ResourceProvider,
	"providers": audit.ResourceProvider,
	"user":      audit.ResourceUser,
	"users":     audit.ResourceUser,
	"auth":      audit.ResourceUser,
	"admin":     audit.ResourceAdmin,
}

// Classify is total: every input yields a Classification, falling back to
// ACCESS and UNKNOWN.
func Classify(method, path string, body BodyShape) Classification {
	segments := splitPath(path)

	c := Classification{
		Action:       actionFor(method, segments),
		ResourceType: resourceFor(segments),
		ResourceID:   resourceIDFor(segments),
	}
	c.PHIElements = phiElementsFor(c.ResourceType, body)
	c.ContainsPHI = len(c.PHIElements) > 0
	return c
}

// IsPHIResource reports whether records of this type carry PHI.
func IsPHIResource(rt audit.ResourceType) bool {
	return rt == audit.ResourceMember || rt == audit.ResourceClaim
}

func splitPath(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	raw := strings.Split(path, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func actionFor(method string, segments []string) audit.ActionType {
	for _, s := range segments {
		switch strings.ToLower(s) {
		case "login":
			return audit.ActionLogin
		case "logout":
			return audit.ActionLogout
		}
	}
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return audit.ActionSelect
	case http.MethodPost:
		return audit.ActionInsert
	case http.MethodPut, http.MethodPatch:
		return audit.ActionUpdate
	case http.MethodDelete:
		return audit.ActionDelete
	default:
		return audit.ActionAccess
	}
}

// resourceFor looks only at the first meaningful segment.
func resourceFor(segments []string) audit.ResourceType {
	for _, s := range segments {
		lower := strings.ToLower(s)
		if lower == "api" || versionSegment.MatchString(lower) {
			continue
		}
		if rt, ok := resourceBySegment[lower]; ok {
			return rt
		}
		return audit.ResourceUnknown
	}
	return audit.ResourceUnknown
}

func resourceIDFor(segments []string) string {
	for _, s := range segments {
		if isDigits(s) || isCanonicalUUID(s) {
			return s
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isCanonicalUUID accepts only the 8-4-4-4-12 hex form.
func isCanonicalUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func phiElementsFor(rt audit.ResourceType, body BodyShape) []audit.PHIElement {
	var elements []audit.PHIElement
	switch rt {
	case audit.ResourceMember:
		elements = []audit.PHIElement{audit.PHIDemographic, audit.PHIContact, audit.PHIIdentification}
		if body.Has(ssnFields...) {
			elements = append(elements, audit.PHISSN)
		}
	case audit.ResourceClaim:
		elements = []audit.PHIElement{audit.PHIMedical, audit.PHIFinancial}
	default:
		return nil
	}
	sort.Slice(elements, func(i, j int) bool { return elements[i] < elements[j] })
	return elements
}
