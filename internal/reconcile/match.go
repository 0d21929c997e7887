package reconcile

import (
	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/urlutil"
)

// Match finds the result to display for a site: by name first, then by URL
// origin so a renamed site keeps its history.
func Match(site domain.Site, results []domain.Result) (domain.Result, bool) {
	for _, r := range results {
		if r.Name == site.Name {
			return r, true
		}
	}
	for _, r := range results {
		if urlutil.SameOrigin(r.URL, site.URL) {
			return r, true
		}
	}
	return domain.Result{}, false
}
