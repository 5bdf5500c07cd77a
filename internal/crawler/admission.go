package crawler

import (
	"context"
	"fmt"
	"slices"

	"github.com/JakeFAU/sitecrawler/internal/metrics"
)

// admission turns the links found on one page into new frontier tasks.
type admission struct {
	maxDepth      int
	allowedDomain string
	visited       VisitedSet
}

// admitResult separates accepted tasks from the links rejected for being
// off-domain, which the caller logs.
type admitResult struct {
	tasks     []Task
	offDomain []string
}

// uniqueLinks returns a sorted, non-nil copy of links without duplicates.
func uniqueLinks(links []string) []string {
	out := make([]string, len(links))
	copy(out, links)
	slices.Sort(out)
	return slices.Compact(out)
}

// admit filters links discovered on a page at depth. On a visited-set error
// it returns the tasks claimed before the failure along with the error. Depth and domain checks
// run inside the visited set's critical section together with the claim, so
// the whole batch is decided atomically against other pages.
func (a admission) admit(ctx context.Context, depth int, links []string) (admitResult, error) {
	next := depth + 1
	var (
		res       admitResult
		tooDeep   int
		evaluated int
	)
	claimed, err := a.visited.ClaimBatch(ctx, links, func(link string) bool {
		evaluated++
		if next > a.maxDepth {
			tooDeep++
			return false
		}
		if !InAllowedDomain(link, a.allowedDomain) {
			res.offDomain = append(res.offDomain, link)
			return false
		}
		return true
	})

	// Claimed URLs are marked visited, so they must be enqueued even when the
	// batch failed partway.
	res.tasks = make([]Task, 0, len(claimed))
	for _, link := range claimed {
		res.tasks = append(res.tasks, Task{URL: link, Depth: next})
	}
	if err != nil {
		metrics.ObserveAdmission(metrics.AdmissionAdmitted, len(claimed))
		return res, fmt.Errorf("claim links: %w", err)
	}

	metrics.ObserveAdmission(metrics.AdmissionAdmitted, len(claimed))
	metrics.ObserveAdmission(metrics.AdmissionDepth, tooDeep)
	metrics.ObserveAdmission(metrics.AdmissionDomain, len(res.offDomain))
	metrics.ObserveAdmission(metrics.AdmissionDuplicate, evaluated-tooDeep-len(res.offDomain)-len(claimed))
	return res, nil
}
