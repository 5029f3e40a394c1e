package pipeline

import "net/http"

type roundTripper struct {
	p *Pipeline
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.p.Intercept(req, rt.p.base.RoundTrip)
}

// RoundTripper exposes the pipeline as an http.RoundTripper sending through
// the configured transport.
func (p *Pipeline) RoundTripper() http.RoundTripper {
	return roundTripper{p: p}
}

// Client returns an http.Client whose requests go through the pipeline.
func (p *Pipeline) Client() *http.Client {
	return &http.Client{Transport: p.RoundTripper()}
}
