package sigv4

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty becomes root", in: "", want: "/"},
		{name: "plain path unchanged", in: "/photos/2024/img.png", want: "/photos/2024/img.png"},
		{name: "spaces", in: "/my photos/img 1.png", want: "/my%20photos/img%201.png"},
		{name: "slash preserved between segments", in: "/a/b/c", want: "/a/b/c"},
		{name: "reserved characters", in: "/a$b#c?d", want: "/a%24b%23c%3Fd"},
		{name: "unreserved pass through", in: "/a-b.c_d~e", want: "/a-b.c_d~e"},
		{name: "utf-8 encoded per byte", in: "/héllo", want: "/h%C3%A9llo"},
		{name: "plus is encoded", in: "/a+b", want: "/a%2Bb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodePath(tt.in))
		})
	}
}

func TestEncodeQuery(t *testing.T) {
	tests := []struct {
		name string
		in   url.Values
		want string
	}{
		{name: "empty", in: nil, want: ""},
		{
			name: "sorted by key",
			in:   url.Values{"b": {"2"}, "a": {"1"}},
			want: "a=1&b=2",
		},
		{
			name: "values sorted within key",
			in:   url.Values{"k": {"z", "a"}},
			want: "k=a&k=z",
		},
		{
			name: "empty value keeps equals sign",
			in:   url.Values{"uploads": {""}},
			want: "uploads=",
		},
		{
			name: "strict encoding of key and value",
			in:   url.Values{"pre fix": {"a/b+c"}},
			want: "pre%20fix=a%2Fb%2Bc",
		},
		{
			name: "tilde not encoded",
			in:   url.Values{"k": {"~v"}},
			want: "k=~v",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeQuery(tt.in))
		})
	}
}

func TestCanonicalHeaders(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Type", "text/plain")
	header.Set("X-Amz-Date", "20130524T000000Z")
	header.Set("X-Custom", "  a   b  ")
	header.Set("Authorization", "skip me")
	header.Set("User-Agent", "skip me too")

	canonical, signedList := CanonicalHeaders(header, "example.com")

	assert.Equal(t,
		"content-type:text/plain\n"+
			"host:example.com\n"+
			"x-amz-date:20130524T000000Z\n"+
			"x-custom:a b\n",
		canonical)
	assert.Equal(t, "content-type;host;x-amz-date;x-custom", signedList)
}

func TestCanonicalHeaders_MultiValue(t *testing.T) {
	header := http.Header{}
	header.Add("X-Multi", "one")
	header.Add("X-Multi", "two")

	canonical, signedList := CanonicalHeaders(header, "h")

	assert.Equal(t, "host:h\nx-multi:one,two\n", canonical)
	assert.Equal(t, "host;x-multi", signedList)
}

func TestBuildCanonicalRequest(t *testing.T) {
	got := BuildCanonicalRequest(
		"GET", "/test.txt", "a=1",
		"host:example.com\n", "host",
		EmptyStringSHA256,
	)
	want := "GET\n/test.txt\na=1\nhost:example.com\n\nhost\n" + EmptyStringSHA256
	assert.Equal(t, want, got)

	// Pure function: identical inputs, identical output.
	assert.Equal(t, got, BuildCanonicalRequest(
		"GET", "/test.txt", "a=1",
		"host:example.com\n", "host",
		EmptyStringSHA256,
	))
}

func TestBuildStringToSign(t *testing.T) {
	got := BuildStringToSign("20130524T000000Z", "20130524/us-east-1/s3/aws4_request", "canonical")
	assert.Equal(t,
		"AWS4-HMAC-SHA256\n"+
			"20130524T000000Z\n"+
			"20130524/us-east-1/s3/aws4_request\n"+
			SHA256Hex([]byte("canonical")),
		got)
}

func TestStripExcessSpaces(t *testing.T) {
	assert.Equal(t, "a b c", stripExcessSpaces("  a   b  c "))
	assert.Equal(t, "plain", stripExcessSpaces("plain"))
	assert.Equal(t, "", stripExcessSpaces("   "))
}
