package transport_test

import (
	"context"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/transport"
	"github.com/superb-ai/spb-curate-go/pkg/utils/try"
)

func TestHTTP_Send(t *testing.T) {
	t.Run("it sends method, header and body, and reads the whole response", func(t *testing.T) {
		var gotMethod, gotHeader, gotBody string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotHeader = r.Header.Get("X-Api-Key")
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			w.Header().Set("X-Request-Id", "req-1")
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"detail":"conflict"}`))
		}))
		defer srv.Close()

		testee := try.To(transport.NewHTTP()).OrFatal(t)
		resp := try.To(testee.Send(context.Background(), &transport.Request{
			Method: http.MethodPost,
			URL:    srv.URL + "/curate/batch/jobs/",
			Header: http.Header{"X-Api-Key": []string{"key"}},
			Body:   []byte(`{"a":1}`),
		})).OrFatal(t)

		if gotMethod != http.MethodPost || gotHeader != "key" || gotBody != `{"a":1}` {
			t.Errorf("request: method = %s, header = %s, body = %s", gotMethod, gotHeader, gotBody)
		}
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status: %d", resp.StatusCode)
		}
		if string(resp.Body) != `{"detail":"conflict"}` {
			t.Errorf("body: %s", resp.Body)
		}
		if resp.Header.Get("X-Request-Id") != "req-1" {
			t.Errorf("header: %v", resp.Header)
		}
	})

	t.Run("a refused connection is worth retrying", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		addr := l.Addr().String()
		l.Close()

		testee := try.To(transport.NewHTTP()).OrFatal(t)
		_, err = testee.Send(context.Background(), &transport.Request{
			Method: http.MethodGet, URL: "http://" + addr + "/",
		})
		assertConnectionError(t, err, true)
	})

	t.Run("a timeout is worth retrying", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		testee := try.To(transport.NewHTTP(transport.WithTimeout(10 * time.Millisecond))).OrFatal(t)
		_, err := testee.Send(context.Background(), &transport.Request{
			Method: http.MethodGet, URL: srv.URL,
		})
		assertConnectionError(t, err, true)
	})

	t.Run("an untrusted certificate is not worth retrying", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		testee := try.To(transport.NewHTTP()).OrFatal(t)
		_, err := testee.Send(context.Background(), &transport.Request{
			Method: http.MethodGet, URL: srv.URL,
		})
		assertConnectionError(t, err, false)
	})

	t.Run("a trusted CA makes the TLS server reachable", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		}))
		defer srv.Close()

		ca := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
		testee := try.To(transport.NewHTTP(transport.WithCACerts(ca))).OrFatal(t)
		resp := try.To(testee.Send(context.Background(), &transport.Request{
			Method: http.MethodGet, URL: srv.URL,
		})).OrFatal(t)
		if string(resp.Body) != "ok" {
			t.Errorf("body: %s", resp.Body)
		}
	})

	t.Run("a broken CA is rejected", func(t *testing.T) {
		_, err := transport.NewHTTP(transport.WithCACerts([]byte("not a pem")))
		if err == nil {
			t.Error("no error")
		}
	})
}

func TestShared(t *testing.T) {
	if transport.Shared() != transport.Shared() {
		t.Error("Shared returns different transports")
	}
}

func assertConnectionError(t *testing.T, err error, shouldRetry bool) {
	t.Helper()
	if !errors.Is(err, xe.ErrAPIConnection) {
		t.Fatalf("unexpected error: %v", err)
	}
	var apierr *xe.Error
	if !errors.As(err, &apierr) {
		t.Fatalf("not *errors.Error: %v", err)
	}
	if apierr.ShouldRetry != shouldRetry {
		t.Errorf("should retry: actual = %v, expected = %v (%v)", apierr.ShouldRetry, shouldRetry, err)
	}
}
