package utils

import (
	"strings"

	"github.com/valyala/bytebufferpool"
)

// Prompt and template rendering share one pool; buffers settle at the size of a rendered prompt.
var renderPool bytebufferpool.Pool

func Get() *bytebufferpool.ByteBuffer {
	return renderPool.Get()
}

func Put(buf *bytebufferpool.ByteBuffer) {
	renderPool.Put(buf)
}

// Concat joins parts without intermediate allocations.
func Concat(parts ...string) string {
	buf := Get()
	defer Put(buf)

	for _, p := range parts {
		_, _ = buf.WriteString(p)
	}
	return buf.String()
}

// Fill replaces every placeholder in tmpl with value.
func Fill(tmpl, placeholder, value string) string {
	if placeholder == "" || !strings.Contains(tmpl, placeholder) {
		return tmpl
	}

	buf := Get()
	defer Put(buf)

	for {
		before, after, found := strings.Cut(tmpl, placeholder)
		_, _ = buf.WriteString(before)
		if !found {
			break
		}
		_, _ = buf.WriteString(value)
		tmpl = after
	}
	return buf.String()
}
