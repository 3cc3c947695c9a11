// Package util provides utility functions for the gpt2giga proxy server.
// It includes helper functions for outbound proxy configuration, HTTP client
// setup, and other common operations used across the application.
package util

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"

	"github.com/gpt2giga/gpt2giga/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// SetProxy configures the provided HTTP client with proxy and TLS settings
// from the configuration. It supports SOCKS5, HTTP, and HTTPS proxies and
// honors the GigaChat insecure-skip-verify flag, since the Sber CA that signs
// the backend certificates is not present in common trust stores.
func SetProxy(cfg *config.Config, httpClient *http.Client) *http.Client {
	var transport *http.Transport
	proxyURL, errParse := url.Parse(cfg.ProxyURL)
	if cfg.ProxyURL != "" && errParse == nil {
		if proxyURL.Scheme == "socks5" {
			username := proxyURL.User.Username()
			password, _ := proxyURL.User.Password()
			proxyAuth := &proxy.Auth{User: username, Password: password}
			dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
			if errSOCKS5 != nil {
				log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
				return httpClient
			}
			transport = &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				},
			}
		} else if proxyURL.Scheme == "http" || proxyURL.Scheme == "https" {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	if transport == nil && cfg.GigaChat.InsecureSkipVerify {
		transport = &http.Transport{}
	}
	if transport != nil {
		if cfg.GigaChat.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpClient.Transport = transport
	}
	return httpClient
}
