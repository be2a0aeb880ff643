// Package security builds Content-Security-Policy values for the served client.
package security

import "strings"

// Source keywords. They must stay quoted in the header value.
const (
	Self         = "'self'"
	None         = "'none'"
	UnsafeInline = "'unsafe-inline'"
)

type directive struct {
	name    string
	sources []string
}

// CSP builds a Content-Security-Policy header value. Directives render in
// the order they were first mentioned.
type CSP struct {
	directives []directive
}

// NewCSP creates an empty policy.
func NewCSP() *CSP {
	return &CSP{}
}

// ClientPolicy keeps the bundled client on its own origin. Inline styles
// and data: images are allowed and framing is not.
func ClientPolicy() *CSP {
	return NewCSP().
		DefaultSrc(Self).
		ImgSrc(Self, "data:").
		StyleSrc(Self, UnsafeInline).
		ConnectSrc(Self).
		FrameAncestors(None)
}

// Set replaces the sources of a directive. With no sources it renders as a
// bare flag such as upgrade-insecure-requests.
func (c *CSP) Set(name string, sources ...string) *CSP {
	if d := c.lookup(name); d != nil {
		d.sources = clean(sources)
	}
	return c
}

// Add appends sources to a directive.
func (c *CSP) Add(name string, sources ...string) *CSP {
	if d := c.lookup(name); d != nil {
		d.sources = append(d.sources, clean(sources)...)
	}
	return c
}

func (c *CSP) DefaultSrc(sources ...string) *CSP     { return c.Set("default-src", sources...) }
func (c *CSP) ScriptSrc(sources ...string) *CSP      { return c.Set("script-src", sources...) }
func (c *CSP) StyleSrc(sources ...string) *CSP       { return c.Set("style-src", sources...) }
func (c *CSP) ImgSrc(sources ...string) *CSP         { return c.Set("img-src", sources...) }
func (c *CSP) ConnectSrc(sources ...string) *CSP     { return c.Set("connect-src", sources...) }
func (c *CSP) FrameAncestors(sources ...string) *CSP { return c.Set("frame-ancestors", sources...) }

// String renders the header value. A nil policy is empty.
func (c *CSP) String() string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	for i, d := range c.directives {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(d.name)
		for _, source := range d.sources {
			sb.WriteByte(' ')
			sb.WriteString(source)
		}
	}
	return sb.String()
}

// lookup finds or appends the named directive. Names are case-insensitive.
func (c *CSP) lookup(name string) *directive {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	for i := range c.directives {
		if c.directives[i].name == name {
			return &c.directives[i]
		}
	}
	c.directives = append(c.directives, directive{name: name})
	return &c.directives[len(c.directives)-1]
}

func clean(sources []string) []string {
	var out []string
	for _, source := range sources {
		if source = strings.TrimSpace(source); source != "" {
			out = append(out, source)
		}
	}
	return out
}
