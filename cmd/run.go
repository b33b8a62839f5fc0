package cmd

import (
	"io"
	"net/http"

	"github.com/judgenot0/watchdog/structs"
	"github.com/judgenot0/watchdog/utils"
)

// handlerRun executes a job synchronously and answers with its verdict.
// The request borrows a worker token so HTTP traffic and queued jobs share
// the same concurrency bound.
func (s *Server) handlerRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.SendResponse(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	job, err := structs.ParseJob(body)
	if err != nil {
		utils.SendResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	slave := <-s.scheduler.WorkChannel
	defer func() {
		s.scheduler.WorkChannel <- slave
	}()

	verdict, err := s.scheduler.Run(job)
	if err != nil {
		utils.SendResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SendResponse(w, http.StatusOK, verdict)
}
