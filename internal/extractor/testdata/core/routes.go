package core

import "net/http"

func registerRoutes(mux *http.ServeMux) {
	handleAPI(mux, "GET", "/api/core/datasets", []string{"document.read"}, listDatasets)
	handleAPI(mux, http.MethodPost, "/api/core/datasets/", []string{"document.write"}, createDataset)
	handleAPI(mux, "delete", "/api/core/datasets/{id}", []string{"document.write", "document.read"}, deleteDataset)
	handleAPI(mux, "GET", "/api/core/health", nil, health)
	handleAPI(mux, "TRACE", "/api/core/trace", []string{"qa.read"}, trace)
	mux.HandleFunc("/api/core/raw", raw)
}

var descriptors = []Route{
	{Method: http.MethodPatch, Path: "/api/core/datasets/{id}", Permissions: []string{"document.write"}},
	{Method: "GET", Path: "/api/core/open"},
}
