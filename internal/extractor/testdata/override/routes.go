package override

func register(mux *http.ServeMux) {
	handleAPI(mux, "GET", "/api/core/datasets", []string{"qa.read"}, listDatasets)
}
