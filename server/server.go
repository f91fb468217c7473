// server/server.go
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/markeidelman/clinicweb/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"
)

// errInsecureKey marks a TLS key readable by group or others.
var errInsecureKey = errors.New("TLS key file has overly permissive permissions")

// WithShutdownSignals returns a context canceled on SIGINT or SIGTERM. The
// returned cancel also stops signal delivery.
func WithShutdownSignals(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			if logger != nil {
				logger.Info("shutdown signal received", zap.Stringer("signal", sig))
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// ListenAndServeWithContext serves handler over plain HTTP, HTTPS with
// Let's Encrypt (http-01), or HTTPS with manual certificates, and blocks
// until ctx is canceled or a listener fails. HTTPS modes also run a :80
// server that redirects to HTTPS and answers ACME challenges.
func ListenAndServeWithContext(ctx context.Context, cfg *config.CoreConfig, handler http.Handler, logger *zap.Logger) error {
	if cfg == nil {
		return errors.New("ListenAndServeWithContext: cfg is nil")
	}
	if handler == nil {
		return errors.New("ListenAndServeWithContext: handler is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := newHTTPServer(cfg, handler, logger)
	ln, aux, err := listen(ctx, cfg, srv, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("primary server error: %w", err)
		}
		return nil
	})
	if aux != nil {
		g.Go(func() error {
			if err := aux.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("auxiliary server error: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server…")
		// ctx is already done; the shutdown window is measured from now.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if aux != nil {
			_ = aux.Shutdown(shutdownCtx)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}

func newHTTPServer(cfg *config.CoreConfig, handler http.Handler, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	if stdlog, err := zap.NewStdLogAt(logger, zapcore.WarnLevel); err == nil {
		srv.ErrorLog = stdlog
	}
	return srv
}

// listen binds the primary listener for the configured mode and, for HTTPS,
// prepares the :80 auxiliary server. The auxiliary server is not started.
func listen(ctx context.Context, cfg *config.CoreConfig, srv *http.Server, logger *zap.Logger) (net.Listener, *http.Server, error) {
	httpAddr := ":" + strconv.Itoa(cfg.HTTP.HTTPPort)
	httpsAddr := ":" + strconv.Itoa(cfg.HTTP.HTTPSPort)

	if !cfg.HTTP.UseHTTPS {
		ln, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("listen http %s: %w", httpAddr, err)
		}
		logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
		return ln, nil, nil
	}

	var (
		tlsCfg   *tls.Config
		redirect = httpRedirectHandler()
		mode     string
	)
	if cfg.TLS.UseLetsEncrypt {
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.TLS.Domain),
			Cache:      autocert.DirCache(cfg.TLS.LetsEncryptCacheDir),
			Email:      cfg.TLS.LetsEncryptEmail,
		}
		redirect = m.HTTPHandler(redirect)
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, GetCertificate: m.GetCertificate}
		mode = "lets_encrypt"

		// The http-01 challenge needs :80 up before a certificate can be
		// issued, so warm-up runs against a temporary challenge server.
		warm := &http.Server{Addr: ":80", Handler: redirect, ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout}
		go func() { _ = warm.ListenAndServe() }()
		if err := waitForCert(ctx, m, cfg.TLS.Domain, 60*time.Second); err != nil {
			logger.Warn("autocert pre-warm failed; first HTTPS hits may see TLS errors", zap.Error(err))
		}
		_ = warm.Close()
	} else {
		if err := validateTLSFiles(cfg.TLS.CertFile, cfg.TLS.KeyFile); err != nil {
			if !errors.Is(err, errInsecureKey) || cfg.IsProd() {
				return nil, nil, err
			}
			logger.Warn("TLS key file security warning (would block in prod)", zap.Error(err))
		}
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load TLS cert/key: %w", err)
		}
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, Certificates: []tls.Certificate{cert}}
		mode = "manual"
	}

	srv.TLSConfig = tlsCfg
	baseLn, err := net.Listen("tcp", httpsAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen https %s: %w", httpsAddr, err)
	}
	logger.Info("HTTPS server listening",
		zap.String("addr", httpsAddr),
		zap.String("tls_mode", mode),
		zap.String("domain", cfg.TLS.Domain))

	aux := newHTTPServer(cfg, redirect, logger)
	aux.Addr = ":80"
	return tls.NewListener(baseLn, tlsCfg), aux, nil
}

// httpRedirectHandler sends every plain-HTTP request to the same host and
// path over HTTPS. Hosts and request targets carrying control characters are
// rejected so the Location header cannot be forged.
func httpRedirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqURI := r.URL.RequestURI()
		if !isValidHost(r.Host) || strings.IndexFunc(reqURI, isControl) >= 0 {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "https://"+r.Host+reqURI, http.StatusMovedPermanently)
	})
}

func isControl(c rune) bool {
	return c < 0x20 || c == 0x7f
}

// isValidHost accepts host, host:port and bracketed IPv6 forms.
func isValidHost(host string) bool {
	if host == "" || strings.Contains(host, "://") || strings.HasPrefix(host, "/") {
		return false
	}
	hostPart := host
	if h, portStr, err := net.SplitHostPort(host); err == nil {
		port, perr := strconv.Atoi(portStr)
		if perr != nil || port <= 0 || port > 65535 {
			return false
		}
		hostPart = h
	}
	if hostPart == "" || strings.IndexFunc(hostPart, isControl) >= 0 {
		return false
	}
	if strings.HasPrefix(hostPart, "[") && strings.HasSuffix(hostPart, "]") {
		ip := hostPart[1 : len(hostPart)-1]
		if i := strings.IndexByte(ip, '%'); i != -1 {
			ip = ip[:i]
		}
		return net.ParseIP(ip) != nil
	}
	return true
}

// validateTLSFiles checks that cert and key exist and are files. A key
// readable by group or others yields an error wrapping errInsecureKey.
func validateTLSFiles(certFile, keyFile string) error {
	if certFile == "" || keyFile == "" {
		return errors.New("manual TLS selected but cert_file / key_file not provided")
	}
	for _, f := range []struct{ kind, path string }{{"certificate", certFile}, {"key", keyFile}} {
		info, err := os.Stat(f.path)
		if err != nil {
			return fmt.Errorf("cannot access TLS %s file %s: %w", f.kind, f.path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("TLS %s path is a directory, not a file: %s", f.kind, f.path)
		}
		if f.kind == "key" && runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
			return fmt.Errorf("%w: %s has mode %o (recommended: 0600)", errInsecureKey, f.path, info.Mode().Perm())
		}
	}
	return nil
}

// waitForCert polls autocert until a certificate for host is cached, the
// timeout passes or ctx ends.
func waitForCert(ctx context.Context, m *autocert.Manager, host string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		_, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: host})
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for cert for %q: %w (last error: %v)", host, ctx.Err(), err)
		case <-ticker.C:
		}
	}
}
