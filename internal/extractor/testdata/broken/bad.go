package broken

func register(mux *http.ServeMux) {
	handleAPI(mux, "GET", "/api/broken", []string{"qa.read"}
