package core

func scratch(mux *http.ServeMux) {
	handleAPI(mux, "GET", "/api/core/scratch", []string{"document.read"}, nil)
}
