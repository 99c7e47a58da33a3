// Package session collects the results of one scan and update run.
//
// Key components:
//   - Report: Scan outcomes in completion order, update results and prune totals.
//   - Progress: The counter behind the "[n/total]" progress line.
//
// Usage example:
//
//	report := session.NewReport(len(targets))
//	report.AddResult(result)
//	for _, r := range report.Updatable() {
//	    fmt.Println(r.Target)
//	}
package session
