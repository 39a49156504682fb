// Package transport sends HTTP requests for the client.
//
// The API layer talks to the network only through Transport,
// so that it can be replaced in tests.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
)

// DefaultTimeout is the timeout of a request sent by the shared transport.
const DefaultTimeout = 80 * time.Second

type Request struct {
	Method string
	URL    string
	Header http.Header

	// Body is the payload. nil for no body.
	Body []byte
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Transport interface {
	// Send sends the request and reads the whole response.
	//
	// # Returns
	//
	// - *Response: response of any status.
	//
	// - error: APIConnectionError when no response is received.
	Send(ctx context.Context, req *Request) (*Response, error)
}

// HTTP is a Transport over net/http.
type HTTP struct {
	client *http.Client
}

var _ Transport = &HTTP{}

type Option func(*http.Client) (*http.Client, error)

// WithTimeout sets the timeout of each request.
func WithTimeout(d time.Duration) Option {
	return func(hc *http.Client) (*http.Client, error) {
		hc.Timeout = d
		return hc, nil
	}
}

// WithCACerts trusts the CA certificates, given as PEM.
func WithCACerts(pems ...[]byte) Option {
	return func(hc *http.Client) (*http.Client, error) {
		if len(pems) == 0 {
			return hc, nil
		}
		if hc.Transport == nil {
			hc.Transport = http.DefaultTransport
		}
		tran, ok := hc.Transport.(*http.Transport)
		if !ok {
			return nil, xe.New("failed to add ca cert")
		}
		tran = tran.Clone()

		tcc := tran.TLSClientConfig.Clone()
		if tcc == nil {
			tcc = &tls.Config{}
		}
		rootcas := tcc.RootCAs
		if rootcas == nil {
			rootcas = x509.NewCertPool()
			tcc.RootCAs = rootcas
		}
		for _, pem := range pems {
			if !rootcas.AppendCertsFromPEM(pem) {
				return nil, xe.New("failed to add cert")
			}
		}
		tran.TLSClientConfig = tcc
		hc.Transport = tran
		return hc, nil
	}
}

// WithHTTPClient uses the given client as a base. Later options modify it.
func WithHTTPClient(hc *http.Client) Option {
	return func(*http.Client) (*http.Client, error) {
		return hc, nil
	}
}

func NewHTTP(options ...Option) (*HTTP, error) {
	hc := &http.Client{Timeout: DefaultTimeout}
	for _, opt := range options {
		var err error
		if hc, err = opt(hc); err != nil {
			return nil, err
		}
	}
	return &HTTP{client: hc}, nil
}

var shared = sync.OnceValue(func() *HTTP {
	h, _ := NewHTTP()
	return h
})

// Shared returns the transport shared in the process. It is created at the first call.
func Shared() *HTTP {
	return shared()
}

func (h *HTTP) Send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, xe.Connection(
			"Unexpected error communicating with Superb AI. "+
				"It looks like there's probably a configuration issue locally.",
			false, err,
		)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}

	resp, err := h.client.Do(hreq)
	if err != nil {
		return nil, Classify(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Classify(err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       payload,
	}, nil
}

// Classify converts an error occurred in sending a request into APIConnectionError.
//
// Certificate failures are not worth retrying. Timeouts and connection failures are.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	const unexpected = "Unexpected error communicating with Superb AI."

	if isCertificateError(err) {
		return xe.Connection(
			"Could not verify Superb AI's SSL certificate. "+
				"Please make sure that your network is not intercepting certificates.",
			false, err,
		)
	}
	if isTimeout(err) || isConnectionError(err) {
		return xe.Connection(unexpected, true, err)
	}
	return xe.Connection(fmt.Sprintf("%s (network error: %T)", unexpected, err), false, err)
}

func isCertificateError(err error) bool {
	var (
		verification *tls.CertificateVerificationError
		unknownCA    x509.UnknownAuthorityError
		invalid      x509.CertificateInvalidError
		hostname     x509.HostnameError
		record       tls.RecordHeaderError
	)
	return errors.As(err, &verification) ||
		errors.As(err, &unknownCA) ||
		errors.As(err, &invalid) ||
		errors.As(err, &hostname) ||
		errors.As(err, &record)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	return errors.As(err, &opErr) ||
		errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}
