package siteconfig

import "strings"

// AttributeKind is the closed set of things a field rule can read from a
// matched element.
type AttributeKind int

const (
	// AttributeText reads the trimmed visible text.
	AttributeText AttributeKind = iota
	// AttributeHref reads the link target, resolved against the base URL.
	AttributeHref
	// AttributeOther reads a named attribute verbatim.
	AttributeOther
)

// Attribute says what to extract once a field's element is found.
type Attribute struct {
	kind AttributeKind
	name string
}

var (
	Text = Attribute{kind: AttributeText}
	Href = Attribute{kind: AttributeHref}
)

// Other reads the named HTML attribute.
func Other(name string) Attribute {
	return ParseAttribute(name)
}

// ParseAttribute maps a configuration string to an Attribute. "text" and an
// empty string mean Text, "href" means Href, anything else is the name of an
// attribute to read.
func ParseAttribute(s string) Attribute {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "", "text":
		return Text
	case "href":
		return Href
	default:
		return Attribute{kind: AttributeOther, name: name}
	}
}

func (a Attribute) Kind() AttributeKind { return a.kind }

// Name is the HTML attribute read for AttributeOther and "href" for
// AttributeHref. It is empty for AttributeText.
func (a Attribute) Name() string {
	switch a.kind {
	case AttributeHref:
		return "href"
	case AttributeOther:
		return a.name
	default:
		return ""
	}
}

func (a Attribute) String() string {
	if a.kind == AttributeText {
		return "text"
	}
	return a.Name()
}

func (a Attribute) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Attribute) UnmarshalText(b []byte) error {
	*a = ParseAttribute(string(b))
	return nil
}
