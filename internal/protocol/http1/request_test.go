package http1

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mediaforge/pkg/buffer"
)

// feed parses each chunk the way a connection does: append, parse, drain.
func feed(t *testing.T, r *Request, chunks ...string) (Outcome, error) {
	t.Helper()
	buf := buffer.New()
	defer buf.Release()

	var (
		out Outcome
		err error
	)
	for _, c := range chunks {
		buf.AppendString(c)
		out, err = r.Parse(buf)
		buf.RetrieveAll()
	}
	return out, err
}

// ============================================================================
// Request line
// ============================================================================

func TestRequestLine(t *testing.T) {
	tests := []struct {
		line, method, path, version string
	}{
		{"GET /video/a.mp4 HTTP/1.1", "GET", "/video/a.mp4", "1.1"},
		{"POST /upload HTTP/1.0", "POST", "/upload", "1.0"},
		{"DELETE /x?y=1 HTTP/2", "DELETE", "/x?y=1", "2"},
		{"PUT  HTTP/1.1", "PUT", "/index.html", "1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r := NewRequest(Options{})
			buf := buffer.New()
			defer buf.Release()
			buf.AppendString(tt.line + "\r\n")

			out, err := r.Parse(buf)
			require.NoError(t, err)
			assert.Equal(t, NeedMore, out)
			assert.Equal(t, StateHeaders, r.State())
			assert.Equal(t, tt.method, r.Method())
			assert.Equal(t, tt.path, r.Path())
			assert.Equal(t, tt.version, r.Version())
		})
	}
}

func TestMalformedRequestLine(t *testing.T) {
	for _, line := range []string{
		"GET",
		"GET /",
		"GET / FTP/1.1",
		"GET / HTTP/",
		" / HTTP/1.1",
		"GET / HTTP/1.1 extra",
	} {
		t.Run(line, func(t *testing.T) {
			r := NewRequest(Options{})
			out, err := feed(t, r, line+"\r\n")
			assert.Equal(t, Malformed, out)
			assert.ErrorIs(t, err, ErrMalformedRequestLine)
			assert.Equal(t, StateRequestLine, r.State(), "state must not advance")
			assert.True(t, IsMalformed(err))
		})
	}
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/index.html", NormalizePath("/"))
	assert.Equal(t, "/index.html", NormalizePath(""))
	for _, p := range []string{"/index", "/register", "/login", "/welcome", "/video", "/picture"} {
		assert.Equal(t, p+".html", NormalizePath(p))
	}
	for _, p := range []string{"/about", "/video/", "/index.html", "/vid_1_2/master.m3u8", "/login.html"} {
		assert.Equal(t, p, NormalizePath(p))
	}
}

func TestResourcePathDropsQuery(t *testing.T) {
	r := NewRequest(Options{})
	_, err := feed(t, r, "GET /vid_1_2/master.m3u8?t=99 HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "/vid_1_2/master.m3u8?t=99", r.Path())
	assert.Equal(t, "/vid_1_2/master.m3u8", r.ResourcePath())
}

// ============================================================================
// Headers
// ============================================================================

func TestHeaderKeysAreCaseFolded(t *testing.T) {
	for _, line := range []string{"Content-Length: 5", "content-length: 5", "CONTENT-LENGTH:5"} {
		r := NewRequest(Options{})
		_, err := feed(t, r, "POST /f HTTP/1.1\r\n"+line+"\r\n")
		require.NoError(t, err)

		v, ok := r.Header("content-length")
		assert.True(t, ok, line)
		assert.Equal(t, "5", v, line)
		assert.Equal(t, "5", r.Headers()["content-length"])
	}
}

func TestHeaderLineWithoutColonIsIgnored(t *testing.T) {
	r := NewRequest(Options{})
	out, err := feed(t, r, "GET / HTTP/1.1\r\nnonsense\r\nHost: a\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Len(t, r.Headers(), 1)
}

func TestKeepAliveGetFinishesAfterHeaders(t *testing.T) {
	r := NewRequest(Options{})
	out, err := feed(t, r, "GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	require.NoError(t, err)

	assert.Equal(t, Complete, out)
	assert.Equal(t, StateFinish, r.State())
	assert.True(t, r.IsKeepAlive())
	assert.Equal(t, "/index.html", r.Path())
	assert.Empty(t, r.Body())
}

func TestKeepAliveRequiresHTTP11(t *testing.T) {
	r := NewRequest(Options{})
	_, err := feed(t, r, "GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n")
	require.NoError(t, err)
	assert.False(t, r.IsKeepAlive())

	r = NewRequest(Options{})
	_, err = feed(t, r, "GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	require.NoError(t, err)
	assert.False(t, r.IsKeepAlive())
}

func TestGetIgnoresContentLength(t *testing.T) {
	r := NewRequest(Options{})
	out, err := feed(t, r, "GET /a HTTP/1.1\r\nContent-Length: 10\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
}

func TestPostWithoutContentLengthFinishes(t *testing.T) {
	r := NewRequest(Options{})
	out, err := feed(t, r, "POST /login HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Equal(t, "/login.html", r.Path())
}

func TestLinesSplitAcrossReads(t *testing.T) {
	r := NewRequest(Options{})
	out, err := feed(t, r, "GET /vid", "eo HTTP/1.1\r", "\nConnection: ke", "ep-alive\r\n", "\r\n")
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Equal(t, "/video.html", r.Path())
	assert.True(t, r.IsKeepAlive())
}

func TestLimits(t *testing.T) {
	t.Run("LineTooLong", func(t *testing.T) {
		r := NewRequest(Options{MaxLineBytes: 32})
		out, err := feed(t, r, "GET /"+strings.Repeat("a", 64))
		assert.Equal(t, Malformed, out)
		assert.ErrorIs(t, err, ErrLineTooLong)
	})

	t.Run("HeaderBlockTooLarge", func(t *testing.T) {
		r := NewRequest(Options{MaxHeaderBytes: 64})
		out, err := feed(t, r, "GET / HTTP/1.1\r\n"+strings.Repeat("X-A: b\r\n", 20))
		assert.Equal(t, Malformed, out)
		assert.ErrorIs(t, err, ErrHeaderTooLarge)
	})

	t.Run("BodyTooLarge", func(t *testing.T) {
		r := NewRequest(Options{MaxFormBytes: 8})
		out, err := feed(t, r, "POST /f HTTP/1.1\r\nContent-Length: 9\r\n\r\n")
		assert.Equal(t, Malformed, out)
		assert.ErrorIs(t, err, ErrBodyTooLarge)
	})

	t.Run("BadContentLength", func(t *testing.T) {
		r := NewRequest(Options{})
		out, err := feed(t, r, "POST /f HTTP/1.1\r\nContent-Length: -1\r\n\r\n")
		assert.Equal(t, Malformed, out)
		assert.ErrorIs(t, err, ErrMalformedContentLen)
	})
}

func TestFailureIsSticky(t *testing.T) {
	r := NewRequest(Options{})
	_, err := feed(t, r, "BROKEN\r\n")
	require.Error(t, err)

	out, err := feed(t, r, "GET / HTTP/1.1\r\n\r\n")
	assert.Equal(t, Malformed, out)
	assert.Error(t, err)

	r.Reset()
	out, err = feed(t, r, "GET / HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
}

// ============================================================================
// Classic bodies
// ============================================================================

func TestUrlencodedPostDecodesForm(t *testing.T) {
	r := NewRequest(Options{})
	out, err := feed(t, r,
		"POST /register HTTP/1.1\r\nContent-Type: application/x-www-form-urlencoded\r\nContent-Length: 9\r\n\r\na=1&b=two")
	require.NoError(t, err)

	assert.Equal(t, Complete, out)
	assert.Equal(t, map[string]string{"a": "1", "b": "two"}, r.Form())
	assert.True(t, r.FormEncoded())
	assert.Equal(t, "a=1&b=two", string(r.Body()))
}

func TestFormBodyAcrossReads(t *testing.T) {
	r := NewRequest(Options{})
	out, err := feed(t, r, "POST /login HTTP/1.1\r\nContent-Length: 19\r\n\r\nuser=ann", "&pw=s%21cr")
	require.NoError(t, err)
	assert.Equal(t, NeedMore, out)

	out, err = feed(t, r, "t")
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Equal(t, "ann", r.FormValue("user"))
	assert.Equal(t, "s!crt", r.FormValue("pw"))
}

func TestNonFormBodyIsNotDecoded(t *testing.T) {
	r := NewRequest(Options{})
	_, err := feed(t, r, "POST /api HTTP/1.1\r\nContent-Type: application/json\r\nContent-Length: 7\r\n\r\n{\"a\":1}")
	require.NoError(t, err)
	assert.Empty(t, r.Form())
	assert.False(t, r.FormEncoded())
	assert.Equal(t, `{"a":1}`, string(r.Body()))
}

func TestDecodeForm(t *testing.T) {
	tests := []struct {
		in   string
		want map[string]string
	}{
		{"a=1&b=two", map[string]string{"a": "1", "b": "two"}},
		{"name=John+Doe&city=S%C3%A3o", map[string]string{"name": "John Doe", "city": "São"}},
		{"bad=%zz&trail=%4", map[string]string{"bad": "%zz", "trail": "%4"}},
		{"flag&x=&=y&&a=1&a=2", map[string]string{"flag": "", "x": "", "a": "2"}},
		{"k%3D=v%26", map[string]string{"k=": "v&"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := map[string]string{}
			DecodeForm(tt.in, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateAndOutcomeStrings(t *testing.T) {
	assert.Equal(t, "BODY_DATA", StateBodyData.String())
	assert.Equal(t, "upload_failed", UploadFailed.String())
	assert.True(t, UploadFailed.Failed())
	assert.False(t, UploadStreaming.Failed())
}
