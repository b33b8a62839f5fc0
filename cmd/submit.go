package cmd

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/judgenot0/watchdog/structs"
	"github.com/judgenot0/watchdog/utils"
)

// handleSubmit enqueues a job for asynchronous execution. The body must be
// a complete QueuedJob; broken specs are rejected here instead of poisoning
// the queue.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.SendResponse(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var envelope structs.QueuedJob
	if err := json.Unmarshal(body, &envelope); err != nil {
		utils.SendResponse(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if _, err := structs.ParseJob(body); err != nil {
		utils.SendResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.manager.QueueMessage(body); err != nil {
		utils.SendResponse(w, http.StatusBadRequest, "Failed to queue job")
		return
	}
	utils.SendResponse(w, http.StatusOK, "")
}
