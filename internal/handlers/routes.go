package handlers

import "github.com/gorilla/mux"

// Register adds every story route to r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/generate-story", h.GenerateStory).Methods("POST")
	r.HandleFunc("/generate-stories-batch", h.GenerateStoriesBatch).Methods("POST")
	r.HandleFunc("/enqueue-stories", h.EnqueueStories).Methods("POST")
	r.HandleFunc("/random-story", h.RandomStory).Methods("GET")
	r.HandleFunc("/stories", h.ListStories).Methods("GET")
	r.HandleFunc("/stories/{genre}/{id}", h.GetStory).Methods("GET")
	r.HandleFunc("/view/{genre}/{id}", h.ViewStory).Methods("GET")
	r.HandleFunc("/assets/{key:.+}", h.GetAsset).Methods("GET")
	r.HandleFunc("/ws/generate-story", h.GenerateStoryWS).Methods("GET")
}
