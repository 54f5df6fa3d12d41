package core

func registerTestRoutes(mux *http.ServeMux) {
	handleAPI(mux, "GET", "/api/core/from-test", []string{"document.read"}, nil)
}
