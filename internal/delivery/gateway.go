// Package delivery turns link tokens into HTTP responses: a proxied 206
// stream or a redirect to a direct backend URL.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/captain108/FileToLink-cap/internal/balancer"
	"github.com/captain108/FileToLink-cap/internal/byterange"
	"github.com/captain108/FileToLink-cap/internal/config"
	"github.com/captain108/FileToLink-cap/internal/domain"
	"github.com/captain108/FileToLink-cap/internal/link"
	"github.com/captain108/FileToLink-cap/internal/logging"
	"github.com/captain108/FileToLink-cap/internal/metrics"
)

// Options configures a Gateway.
type Options struct {
	Mode        string        // config.ModeProxy or config.ModeRedirect
	RedirectTTL time.Duration // Lifetime of direct URLs in redirect mode
}

// Gateway serves link tokens from the sessions of a registry.
type Gateway struct {
	registry *balancer.Registry
	opts     Options
}

// NewGateway creates a Gateway.
func NewGateway(registry *balancer.Registry, opts Options) *Gateway {
	if opts.Mode == "" {
		opts.Mode = config.ModeProxy
	}
	if opts.RedirectTTL <= 0 {
		opts.RedirectTTL = time.Hour
	}
	return &Gateway{registry: registry, opts: opts}
}

// Mode returns the delivery mode.
func (g *Gateway) Mode() string { return g.opts.Mode }

// Serve answers a link request in the configured mode. rawPath is the
// still-escaped path after the route prefix.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, rawPath string) {
	if g.opts.Mode == config.ModeRedirect {
		g.ServeRedirect(w, r, rawPath)
		return
	}
	g.ServeMedia(w, r, rawPath)
}

// ServeMedia proxies the requested window of the object as a 206 response.
func (g *Gateway) ServeMedia(w http.ResponseWriter, r *http.Request, rawPath string) {
	ctx := r.Context()
	log := logging.WithContext(ctx)

	media, err := g.Open(ctx, rawPath, r.URL.Query(), r.Header.Get("Range"))
	if err != nil {
		status, msg := StatusFor(err)
		g.reject(ctx, config.ModeProxy, status, err)
		http.Error(w, msg, status)
		return
	}
	defer media.Close()

	media.SetHeaders(w.Header())
	w.WriteHeader(http.StatusPartialContent)

	n, err := media.Send(ctx, w)
	metrics.RecordDelivery(config.ModeProxy, outcome(err))
	if err != nil {
		// Headers are gone; all that is left is to stop and log.
		fields := []zap.Field{
			logging.Session(media.SessionID()),
			logging.ObjectID(media.Request.ObjectID),
			zap.Int64("sent", n),
			zap.Int64("want", media.Range.Length()),
			zap.Error(err),
		}
		if errors.Is(err, context.Canceled) {
			log.Debug("client went away mid-stream", fields...)
		} else {
			log.Warn("stream aborted", fields...)
		}
	}
}

// Open runs every step of a proxied delivery up to the first body byte: it
// decodes the link, leases a session, makes sure the session is connected,
// fetches and verifies the metadata and negotiates the range. On success the
// caller owns the returned Media and must Send or Close it; on failure no
// lease is held.
func (g *Gateway) Open(ctx context.Context, rawPath string, query url.Values, rangeHeader string) (*Media, error) {
	lnk, err := link.Parse(rawPath, query)
	if err != nil {
		return nil, err
	}

	lease, err := g.registry.Acquire()
	if err != nil {
		return nil, err
	}
	owned := false
	defer func() {
		if !owned {
			lease.Release()
		}
	}()

	meta, err := g.verifiedMetadata(ctx, lease, lnk)
	if err != nil {
		return nil, err
	}

	rng, err := byterange.Parse(rangeHeader, meta.FileSize)
	if err != nil {
		return nil, err
	}

	owned = true
	return &Media{
		Request: domain.StreamRequest{Link: lnk, RangeHeader: rangeHeader, SessionID: lease.SessionID()},
		Meta:    meta,
		Range:   rng,
		lease:   lease,
	}, nil
}

// ServeRedirect answers with a 302 to a direct, time-limited backend URL.
func (g *Gateway) ServeRedirect(w http.ResponseWriter, r *http.Request, rawPath string) {
	ctx := r.Context()

	target, err := g.directURL(ctx, rawPath, r.URL.Query())
	if err != nil {
		status, msg := redirectStatusFor(err)
		g.reject(ctx, config.ModeRedirect, status, err)
		http.Error(w, msg, status)
		return
	}

	metrics.RecordDelivery(config.ModeRedirect, outcome(nil))
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)
}

func (g *Gateway) directURL(ctx context.Context, rawPath string, query url.Values) (string, error) {
	lnk, err := link.Parse(rawPath, query)
	if err != nil {
		return "", err
	}

	lease, err := g.registry.Acquire()
	if err != nil {
		return "", err
	}
	defer lease.Release()

	meta, err := g.verifiedMetadata(ctx, lease, lnk)
	if err != nil {
		return "", err
	}
	return lease.Streamer().DirectURL(ctx, meta, g.opts.RedirectTTL)
}

// Resolve returns the verified metadata for lnk. The session lease is held
// only for the lookup.
func (g *Gateway) Resolve(ctx context.Context, lnk domain.Link) (*domain.ObjectMetadata, error) {
	lease, err := g.registry.Acquire()
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	return g.verifiedMetadata(ctx, lease, lnk)
}

// verifiedMetadata connects the leased session if needed, fetches fresh
// metadata and checks the link hash against it.
func (g *Gateway) verifiedMetadata(ctx context.Context, lease *balancer.Lease, lnk domain.Link) (*domain.ObjectMetadata, error) {
	s := lease.Streamer()
	if err := s.EnsureConnected(ctx); err != nil {
		return nil, err
	}

	meta, err := s.FileInfo(ctx, lnk.ObjectID)
	if err != nil {
		return nil, err
	}
	if meta.FileSize <= 0 {
		return nil, fmt.Errorf("object %d has size %d: %w", lnk.ObjectID, meta.FileSize, domain.ErrObjectNotFound)
	}
	if !meta.HashMatches(lnk.SecretHash) {
		return nil, fmt.Errorf("object %d: %w", lnk.ObjectID, domain.ErrUnauthorized)
	}
	return meta, nil
}

func (g *Gateway) reject(ctx context.Context, mode string, status int, err error) {
	metrics.RecordDelivery(mode, outcome(err))

	log := logging.WithContext(ctx)
	fields := []zap.Field{zap.String("mode", mode), zap.Int("status", status), zap.Error(err)}
	if expected(err) {
		log.Debug("delivery rejected", fields...)
		return
	}
	log.Error("delivery failed", fields...)
}
