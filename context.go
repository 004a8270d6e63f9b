package goGuard

import (
	"context"

	"github.com/MrEthical07/goGuard/session"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type deviceContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine records it
// on audit events and in the auth error log context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the User-Agent string to ctx. CaptureFingerprint
// falls back to it when the reported device has no user agent.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

// WithDevice attaches client-reported device attributes to ctx. Login
// captures a fingerprint from them when present.
func WithDevice(ctx context.Context, device session.Device) context.Context {
	return context.WithValue(ctx, deviceContextKey{}, device)
}

func deviceFromContext(ctx context.Context) (session.Device, bool) {
	if ctx == nil {
		return session.Device{}, false
	}

	device, ok := ctx.Value(deviceContextKey{}).(session.Device)
	return device, ok
}

// ClientIPFromContext returns the IP attached by WithClientIP.
func ClientIPFromContext(ctx context.Context) string {
	return clientIPFromContext(ctx)
}

// UserAgentFromContext returns the user agent attached by WithUserAgent.
func UserAgentFromContext(ctx context.Context) string {
	return userAgentFromContext(ctx)
}
