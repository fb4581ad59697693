package run

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// runState is the live, mutable view of one executing run. Counter updates
// are serialized through its mutex; the persisted run record trails it.
type runState struct {
	mu         sync.Mutex
	run        pipeline.CampaignRun
	currentURL string
	stopped    atomic.Bool
}

func newRunState(run pipeline.CampaignRun) *runState {
	return &runState{run: run}
}

// requestStop flips both the cooperative flag and the in-memory status so
// trailing counter persists do not resurrect a running state.
func (st *runState) requestStop() {
	st.stopped.Store(true)
	st.mu.Lock()
	st.run.Status = pipeline.RunStatusStopped
	st.mu.Unlock()
}

func (st *runState) snapshot() pipeline.CampaignRun {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.run
}

func (st *runState) setCurrentURL(url string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.currentURL = url
}

func (st *runState) incProcessedSources() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.run.ProcessedSources++
}

func (st *runState) addItemsFound(n int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.run.ItemsFound += n
}

func (st *runState) incItemsCreated() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.run.ItemsCreated++
}

func (st *runState) finalize(status pipeline.RunStatus, errText string, at time.Time) pipeline.CampaignRun {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.run.Status = status
	st.run.CompletedAt = &at
	if errText != "" {
		st.run.ErrorText = errText
	}
	return st.run
}

// progress derives a live snapshot, estimating remaining time from the
// average per-source duration so far.
func (st *runState) progress(now time.Time) pipeline.Progress {
	st.mu.Lock()
	defer st.mu.Unlock()

	p := pipeline.Progress{
		RunID:            st.run.ID,
		CampaignID:       st.run.CampaignID,
		CurrentURL:       st.currentURL,
		TotalSources:     st.run.TotalSources,
		ProcessedSources: st.run.ProcessedSources,
		ItemsFound:       st.run.ItemsFound,
		ItemsCreated:     st.run.ItemsCreated,
	}
	if st.run.ProcessedSources > 0 && st.run.TotalSources > st.run.ProcessedSources {
		elapsed := now.Sub(st.run.StartedAt).Seconds()
		perSource := elapsed / float64(st.run.ProcessedSources)
		p.ETASeconds = perSource * float64(st.run.TotalSources-st.run.ProcessedSources)
	}
	return p
}
