package handlers

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/wonny/longshort/internal/scheduler"
	"github.com/wonny/longshort/pkg/logger"
)

// JobRunner is the part of the scheduler the API exposes
type JobRunner interface {
	GetJobStats() map[string]scheduler.JobStats
	RunJob(jobName string) error
}

// SchedulerHandler handles scheduler endpoints
type SchedulerHandler struct {
	runner JobRunner
	logger *logger.Logger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(runner JobRunner, log *logger.Logger) *SchedulerHandler {
	return &SchedulerHandler{runner: runner, logger: log}
}

// ListJobs returns stats of every registered job
// GET /api/scheduler/jobs
func (h *SchedulerHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	stats := h.runner.GetJobStats()

	jobs := make([]scheduler.JobStats, 0, len(stats))
	for _, s := range stats {
		jobs = append(jobs, s)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].JobName < jobs[j].JobName })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// RunJob triggers a job outside its schedule
// POST /api/scheduler/jobs/{name}/run
func (h *SchedulerHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.runner.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.WithField("job", name).Info("Job triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"job":    name,
		"status": "triggered",
	})
}
