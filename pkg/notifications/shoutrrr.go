package notifications

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"text/template"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/sirupsen/logrus"

	shoutrrrTypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/shipctl/ship/pkg/session"
)

// LocalLog is a logrus logger for notification delivery problems.
var LocalLog = logrus.WithField("notify", "no")

var (
	// errInitSender indicates shoutrrr rejected a notification URL.
	errInitSender = errors.New("failed to initialize shoutrrr notifications")
	// errExecuteTemplate indicates the notification template failed to execute.
	errExecuteTemplate = errors.New("failed to execute notification template")
	// errSendFailed indicates at least one service failed to deliver the message.
	errSendFailed = errors.New("failed to send notification")
)

// router defines the interface for sending Shoutrrr notifications.
type router interface {
	Send(message string, params *shoutrrrTypes.Params) []error
}

// Notifier delivers run summaries to shoutrrr services.
type Notifier struct {
	urls     []string
	router   router
	template *template.Template
	params   *shoutrrrTypes.Params
	data     StaticData
}

// GetScheme extracts the scheme part of a Shoutrrr URL.
// It returns "invalid" if no scheme is found.
func GetScheme(url string) string {
	schemeEnd := strings.Index(url, ":")
	if schemeEnd <= 0 {
		return "invalid"
	}

	return url[:schemeEnd]
}

// New creates a Notifier for urls.
//
// Parameters:
//   - urls: Shoutrrr service URLs.
//   - tplString: Message template; empty selects DefaultTemplate.
//   - data: Static template data; a non-empty Title is passed to services as the title.
//
// Returns:
//   - *Notifier: Ready notifier.
//   - error: Non-nil if a URL or the template is invalid.
func New(urls []string, tplString string, data StaticData) (*Notifier, error) {
	tpl, err := parseTemplate(tplString)
	if err != nil {
		return nil, err
	}

	logger := log.New(logrus.StandardLogger().WriterLevel(logrus.TraceLevel), "Shoutrrr: ", 0)

	sender, err := shoutrrr.NewSender(logger, urls...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInitSender, err)
	}

	return newNotifier(urls, sender, tpl, data), nil
}

func newNotifier(urls []string, sender router, tpl *template.Template, data StaticData) *Notifier {
	params := &shoutrrrTypes.Params{}
	if data.Title != "" {
		params.SetTitle(data.Title)
	}

	return &Notifier{urls: urls, router: sender, template: tpl, params: params, data: data}
}

// Names returns the service names derived from the configured URLs.
func (n *Notifier) Names() []string {
	names := make([]string, len(n.urls))
	for i, u := range n.urls {
		names[i] = GetScheme(u)
	}

	return names
}

// Notify sends the summary of report when at least one stack was updated or failed.
//
// Parameters:
//   - report: Report of the finished run.
//
// Returns:
//   - error: Non-nil if rendering failed or any service failed to deliver.
func (n *Notifier) Notify(report *session.Report) error {
	data := NewData(n.data, report)
	if data.Empty() {
		LocalLog.Debug("Nothing updated, skipping notification")

		return nil
	}

	message, err := render(n.template, data)
	if err != nil {
		return err
	}

	return n.send(message)
}

// Send delivers a raw message to every service.
func (n *Notifier) Send(message string) error {
	return n.send(message)
}

func (n *Notifier) send(message string) error {
	var failures []error

	for i, err := range n.router.Send(message, n.params) {
		if err == nil {
			continue
		}

		scheme := "invalid"
		if i < len(n.urls) {
			scheme = GetScheme(n.urls[i])
		}

		LocalLog.WithFields(logrus.Fields{
			"service": scheme,
			"index":   i,
		}).WithError(err).Error("Failed to send shoutrrr notification")

		failures = append(failures, fmt.Errorf("%s: %w", scheme, err))
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w: %w", errSendFailed, errors.Join(failures...))
	}

	return nil
}

func render(tpl *template.Template, data Data) (string, error) {
	var body bytes.Buffer
	if err := tpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("%w: %w", errExecuteTemplate, err)
	}

	return strings.TrimSpace(body.String()), nil
}
