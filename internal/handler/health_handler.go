package handler

import (
	"net/http"

	"notesync/pkg/response"
)

func Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{"status": "ok"})
}
