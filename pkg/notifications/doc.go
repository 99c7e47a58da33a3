// Package notifications sends a run summary through shoutrrr services.
//
// Key components:
//   - Notifier: Renders the summary template and delivers it to every configured URL.
//   - Data: The template data model built from a session.Report.
//   - Preview: Renders a template against sample data without sending anything.
//
// Usage example:
//
//	notifier, err := notifications.New(urls, "", notifications.StaticData{Host: host})
//	if err != nil {
//	    return err
//	}
//	err = notifier.Notify(report)
package notifications
