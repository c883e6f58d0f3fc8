package middleware

import "net/http"

// corsHeaders match what browser clients send: the shared extraction secret
// and the gateway signature ride on custom headers.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	"Access-Control-Allow-Headers": "Authorization, Content-Type, X-Doc-Secret, Stripe-Signature, X-Request-Id",
}

// CORS sets permissive CORS headers on every response and answers preflight
// OPTIONS with an empty success.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
