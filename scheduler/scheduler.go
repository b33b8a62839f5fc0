package scheduler

import (
	"log"

	"github.com/judgenot0/watchdog/handlers"
	"github.com/judgenot0/watchdog/structs"
	"github.com/judgenot0/watchdog/watchdog"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Scheduler bounds how many jobs run at once. Each worker token admits one
// supervised target; the channel doubles as the free list.
type Scheduler struct {
	WorkChannel chan structs.Worker
	WorkerCount int
	Handler     *handlers.Handler
}

func NewScheduler(handler *handlers.Handler) *Scheduler {
	return &Scheduler{
		Handler: handler,
	}
}

func (mngr *Scheduler) With(workerCount int) {
	mngr.WorkChannel = make(chan structs.Worker, workerCount)
	mngr.WorkerCount = workerCount

	for i := 0; i < workerCount; i++ {
		mngr.WorkChannel <- structs.Worker{Id: i}
		log.Printf("Worker %d added to pool", i)
	}
}

// Run executes one job with the daemon's watchdog options.
func (mngr *Scheduler) Run(job *structs.Job) (*structs.Verdict, error) {
	return watchdog.Run(job, watchdog.Options{
		MemoryUsageFile: mngr.Handler.Config.MemoryUsageFile,
	})
}

// Work runs one queued job to completion and reports its verdict. The
// delivery is acked either way; a job the watchdog cannot even start would
// poison the queue if redelivered.
func (mngr *Scheduler) Work(w structs.Worker, job structs.QueuedJob, d amqp.Delivery) {
	defer func() {
		d.Ack(false)
		mngr.WorkChannel <- w
	}()

	observeJobStart()
	verdict, err := mngr.Run(&job.Job)
	if err != nil {
		observeJobDone("error", 0)
		log.Printf("Job %d failed to start: %v", job.JobID, err)
		return
	}

	result := handlers.Classify(verdict)
	observeJobDone(result, verdict.TimeMS)

	if err := mngr.Handler.ProduceVerdict(job.JobID, verdict); err != nil {
		log.Printf("Job %d verdict delivery failed: %v", job.JobID, err)
	}
}
