package notifications

import (
	"github.com/shipctl/ship/pkg/session"
	"github.com/shipctl/ship/pkg/types"
)

// StaticData is the part of the notification template data model set upon initialization.
type StaticData struct {
	Title string
	Host  string
}

// Data is the notification template data model.
type Data struct {
	StaticData
	Scanned     int
	Updated     []string
	Failed      []string
	RateLimited []string
	Prune       *types.PruneReport
}

// NewData builds the template data for a run.
func NewData(static StaticData, report *session.Report) Data {
	data := Data{StaticData: static}
	if report == nil {
		return data
	}

	data.Scanned = report.Scanned()

	for _, result := range report.Updated() {
		data.Updated = append(data.Updated, result.Target.String())
	}

	for _, result := range report.Failed() {
		data.Failed = append(data.Failed, result.Target.String())
	}

	for _, result := range report.RateLimited() {
		data.RateLimited = append(data.RateLimited, result.Target.String())
	}

	if prune, err := report.Prune(); prune != nil && err == nil {
		data.Prune = prune
	}

	return data
}

// Empty reports whether the run produced nothing worth notifying about.
func (d Data) Empty() bool {
	return len(d.Updated) == 0 && len(d.Failed) == 0
}
