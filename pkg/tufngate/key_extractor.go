package tufngate

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/tufnapp/tufngate/identity"
)

// FingerprintHeader carries the client's identity token on hosted
// endpoint requests.
const FingerprintHeader = "X-Tufn-Fingerprint"

// KeyExtractor derives the client part of a rate limit key from a request.
type KeyExtractor func(*http.Request) (string, error)

func remoteIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port
		ip = r.RemoteAddr
	}
	if ip == "" {
		return "", fmt.Errorf("%w: empty IP address", ErrKeyExtractionFailed)
	}
	return "ip:" + ip, nil
}

// ExtractIP keys on r.RemoteAddr without the port.
func ExtractIP() KeyExtractor {
	return remoteIP
}

// ExtractIPWithProxy prefers the first X-Forwarded-For hop, then
// X-Real-IP, then RemoteAddr. Only use it behind a proxy that overwrites
// those headers.
func ExtractIPWithProxy() KeyExtractor {
	return func(r *http.Request) (string, error) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return "ip:" + ip, nil
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return "ip:" + xri, nil
		}
		return remoteIP(r)
	}
}

// ExtractFingerprint keys on the identity token in FingerprintHeader.
// Tokens that are not UUID v4 are rejected so clients cannot pick
// arbitrary keys.
func ExtractFingerprint() KeyExtractor {
	return func(r *http.Request) (string, error) {
		fp := strings.TrimSpace(r.Header.Get(FingerprintHeader))
		if fp == "" {
			return "", fmt.Errorf("%w: %s header missing", ErrKeyExtractionFailed, FingerprintHeader)
		}
		if !identity.IsValid(fp) {
			return "", fmt.Errorf("%w: %s is not a valid identity", ErrKeyExtractionFailed, FingerprintHeader)
		}
		return "fp:" + fp, nil
	}
}

// ExtractHeader keys on the value of an arbitrary header.
func ExtractHeader(name string) KeyExtractor {
	return func(r *http.Request) (string, error) {
		value := r.Header.Get(name)
		if value == "" {
			return "", fmt.Errorf("%w: header %s not found or empty", ErrKeyExtractionFailed, name)
		}
		return "header:" + name + ":" + value, nil
	}
}

// ExtractCookie keys on a cookie value.
func ExtractCookie(name string) KeyExtractor {
	return func(r *http.Request) (string, error) {
		c, err := r.Cookie(name)
		if err != nil {
			return "", fmt.Errorf("%w: cookie %s: %v", ErrKeyExtractionFailed, name, err)
		}
		if c.Value == "" {
			return "", fmt.Errorf("%w: cookie %s is empty", ErrKeyExtractionFailed, name)
		}
		return "cookie:" + name + ":" + c.Value, nil
	}
}

// ExtractStatic puts every caller under one key.
func ExtractStatic(key string) KeyExtractor {
	return func(*http.Request) (string, error) {
		if key == "" {
			return "", fmt.Errorf("%w: static key is empty", ErrKeyExtractionFailed)
		}
		return key, nil
	}
}

// ExtractComposite returns the first key any extractor produces.
//
// Example:
//
//	ExtractComposite(ExtractFingerprint(), ExtractIPWithProxy())
func ExtractComposite(extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) (string, error) {
		if len(extractors) == 0 {
			return "", fmt.Errorf("%w: no extractors provided", ErrKeyExtractionFailed)
		}
		var lastErr error
		for _, extract := range extractors {
			key, err := extract(r)
			if err == nil && key != "" {
				return key, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			return "", fmt.Errorf("%w: all extractors returned empty key", ErrKeyExtractionFailed)
		}
		return "", fmt.Errorf("%w: all extractors failed: %v", ErrKeyExtractionFailed, lastErr)
	}
}

// ParseKeyExtractorConfig builds a KeyExtractor from its config string.
// Supported forms:
//   - "ip", "ip-proxy", "fingerprint"
//   - "header:X-API-Key", "cookie:session_id", "static:global"
//   - "fingerprint,ip-proxy" for a composite tried left to right
func ParseKeyExtractorConfig(config string) (KeyExtractor, error) {
	if strings.Contains(config, ",") {
		parts := strings.Split(config, ",")
		extractors := make([]KeyExtractor, 0, len(parts))
		for _, p := range parts {
			e, err := ParseKeyExtractorConfig(strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			extractors = append(extractors, e)
		}
		return ExtractComposite(extractors...), nil
	}

	kind, arg, hasArg := strings.Cut(config, ":")
	switch kind {
	case "ip":
		return ExtractIP(), nil
	case "ip-proxy":
		return ExtractIPWithProxy(), nil
	case "fingerprint":
		return ExtractFingerprint(), nil
	case "header", "cookie", "static":
		if !hasArg || arg == "" {
			return nil, fmt.Errorf("%w: %s extractor requires format '%s:value'", ErrInvalidConfig, kind, kind)
		}
		switch kind {
		case "header":
			return ExtractHeader(arg), nil
		case "cookie":
			return ExtractCookie(arg), nil
		default:
			return ExtractStatic(arg), nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown key extractor type: %s", ErrInvalidConfig, kind)
	}
}
