package xhttp

import (
	"net/http"
	"testing"
)

func TestGetRequestIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{name: "forwarded ip", xff: "203.0.113.195", remote: "192.0.2.1:1234", want: "203.0.113.195"},
		{name: "forwarded ip with port", xff: "203.0.113.195:8080", remote: "192.0.2.1:1234", want: "203.0.113.195"},
		{name: "forwarded chain keeps client hop", xff: "203.0.113.195, 10.0.0.2, 10.0.0.3", remote: "10.0.0.4:443", want: "203.0.113.195"},
		{name: "forwarded chain with padding", xff: "  198.51.100.7 ,10.0.0.2", remote: "10.0.0.4:443", want: "198.51.100.7"},
		{name: "forwarded ipv6", xff: "2001:db8::1", remote: "192.0.2.1:1234", want: "2001:db8::1"},
		{name: "forwarded ipv6 with port", xff: "[2001:db8::1]:8080", remote: "192.0.2.1:1234", want: "2001:db8::1"},
		{name: "remote with port", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
		{name: "remote ipv6", remote: "[2001:db8::1]:1234", want: "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &http.Request{Header: http.Header{}, RemoteAddr: tt.remote}
			if tt.xff != "" {
				r.Header.Set(XForwardedFor, tt.xff)
			}
			if got := GetRequestIP(r); got != tt.want {
				t.Errorf("GetRequestIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
