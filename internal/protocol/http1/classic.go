package http1

import (
	"strings"

	"github.com/marmos91/mediaforge/pkg/buffer"
)

// classicGrammar reads exactly content-length body bytes.
type classicGrammar struct{}

func (classicGrammar) pending() Outcome { return NeedMore }
func (classicGrammar) done() Outcome { return Complete }
func (classicGrammar) failure() Outcome { return Malformed }

func (classicGrammar) advance(r *Request, buf *buffer.Buffer) (bool, error) {
	if r.state != StateBody {
		return false, nil
	}

	need := r.contentLength - len(r.body)
	data := buf.Peek()
	if len(data) == 0 {
		return false, nil
	}
	if len(data) > need {
		data = data[:need]
	}
	r.body = append(r.body, data...)
	buf.Retrieve(len(data))

	if len(r.body) < r.contentLength {
		return true, nil
	}

	if isFormEncoded(r.headers["content-type"]) {
		DecodeForm(string(r.body), r.form)
	}
	r.state = StateFinish
	return true, nil
}

// Body returns the raw classic body.
func (r *Request) Body() []byte { return r.body }

// FormEncoded reports whether a classic body is decoded into Form: a request
// whose content type is absent or application/x-www-form-urlencoded.
func (r *Request) FormEncoded() bool {
	return r.contentLength > 0 && isFormEncoded(r.headers["content-type"])
}

func isFormEncoded(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.EqualFold(strings.TrimSpace(mt), "application/x-www-form-urlencoded")
}

// DecodeForm decodes "key=value&key=value" into dst. Malformed percent
// escapes are kept literally rather than rejected. A pair without '=' is
// stored with an empty value; later duplicates win.
func DecodeForm(body string, dst map[string]string) {
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key := Unescape(k)
		if key == "" {
			continue
		}
		dst[key] = Unescape(v)
	}
}

// Unescape performs best-effort form unescaping: '+' becomes a space and
// "%XX" with two hex digits becomes that byte.
func Unescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '+':
			sb.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			sb.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
