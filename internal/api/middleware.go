package api

import "net/http"

// cors sets the permissive CORS headers on every response.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Range, Content-Type, *")
		h.Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Content-Disposition")
		next.ServeHTTP(w, r)
	})
}

// rejectHEAD answers HEAD with 405. GET routes would otherwise match HEAD
// and open a backend stream whose body is thrown away.
func rejectHEAD(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Allow", "GET, OPTIONS")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
