// Package authmw provides HTTP middleware for reviewer bearer token authentication.
package authmw

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

type reviewerKey struct{}

// WithReviewer returns a copy of ctx carrying the authenticated reviewer name.
func WithReviewer(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, reviewerKey{}, name)
}

// ReviewerFromContext returns the reviewer set by Reviewers, if any.
func ReviewerFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(reviewerKey{}).(string)
	return name, ok && name != ""
}

type credential struct {
	name  string
	token []byte
}

// Reviewers returns middleware that accepts a Bearer token belonging to one of
// the configured reviewers (name -> token) and places the reviewer name in the
// request context. Every configured token is compared in constant time.
func Reviewers(tokens map[string]string) func(http.Handler) http.Handler {
	creds := make([]credential, 0, len(tokens))
	for name, tok := range tokens {
		if name == "" || tok == "" {
			continue
		}
		creds = append(creds, credential{name: name, token: []byte(tok)})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			got := []byte(auth[len("Bearer "):])

			reviewer := ""
			for _, c := range creds {
				if subtle.ConstantTimeCompare(got, c.token) == 1 {
					reviewer = c.name
				}
			}
			if reviewer == "" {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithReviewer(r.Context(), reviewer)))
		})
	}
}

// ParseReviewerTokens parses a comma-separated list of name:token pairs.
func ParseReviewerTokens(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, tok, ok := strings.Cut(pair, ":")
		name, tok = strings.TrimSpace(name), strings.TrimSpace(tok)
		if !ok || name == "" || tok == "" {
			return nil, fmt.Errorf("reviewer token %q: want name:token", pair)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("reviewer %q listed twice", name)
		}
		out[name] = tok
	}
	return out, nil
}
